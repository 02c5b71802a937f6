package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/redraftlabs/redraft/pkg/jobs"
	"github.com/redraftlabs/redraft/pkg/ledger"
	"github.com/redraftlabs/redraft/pkg/logger"
	"github.com/redraftlabs/redraft/svc/rewrite"
)

// RewriteHandlers serves job submission, the progress stream, and the
// synchronous result fallback.
type RewriteHandlers struct {
	svc            *rewrite.Service
	log            *slog.Logger
	subscribeGrace time.Duration
}

// RewriteOption configures the handlers.
type RewriteOption func(*RewriteHandlers)

// WithSubscribeGrace overrides the stall window before the events
// stream falls back to Await.
func WithSubscribeGrace(d time.Duration) RewriteOption {
	return func(h *RewriteHandlers) {
		if d > 0 {
			h.subscribeGrace = d
		}
	}
}

func NewRewriteHandlers(svc *rewrite.Service, log *slog.Logger, opts ...RewriteOption) *RewriteHandlers {
	if log == nil {
		log = slog.Default()
	}
	h := &RewriteHandlers{
		svc:            svc,
		log:            log,
		subscribeGrace: defaultSubscribeGrace,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type startRequest struct {
	Text             string  `json:"text"`
	Mode             string  `json:"mode"`
	Budget           float64 `json:"budget"`
	PreserveEntities bool    `json:"preserve_entities"`
	StyleSample      string  `json:"style_sample"`
}

// Start admits a job and answers its id.
func (h *RewriteHandlers) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	jobID, err := h.svc.Start(r.Context(), userFrom(r), jobs.Request{
		Kind:             jobs.Kind(req.Mode),
		Text:             req.Text,
		Budget:           req.Budget,
		PreserveEntities: req.PreserveEntities,
		StyleSample:      req.StyleSample,
	})
	switch {
	case err == nil:
		respondJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
	case errors.Is(err, rewrite.ErrEmptyText):
		respondError(w, http.StatusBadRequest, "text is empty")
	case errors.Is(err, rewrite.ErrInsufficientBalance):
		respondError(w, http.StatusPaymentRequired, "insufficient word balance")
	case errors.Is(err, rewrite.ErrRateLimited):
		respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
	case errors.Is(err, ledger.ErrEntryNotFound):
		respondError(w, http.StatusNotFound, "subscriber not found")
	case errors.Is(err, jobs.ErrBrokerClosed):
		respondError(w, http.StatusServiceUnavailable, "service shutting down")
	default:
		h.log.ErrorContext(r.Context(), "job start failed", logger.UserID(userFrom(r)), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// Events streams progress as newline-delimited JSON. When the push
// channel stalls past the grace period the handler falls back to Await
// and emits the terminal record, so every client eventually gets one.
func (h *RewriteHandlers) Events(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	ch, err := h.svc.Subscribe(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			respondError(w, http.StatusNotFound, "job not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	grace := time.NewTimer(h.subscribeGrace)
	defer grace.Stop()

	for {
		select {
		case ev, open := <-ch:
			if !open {
				// Channel closed without a terminal record, which
				// happens when the subscription is dropped as a slow
				// consumer. Settle via Await so the client still gets
				// its terminal event.
				h.emitTerminal(r, enc, flusher, jobID)
				return
			}
			if err := enc.Encode(ev); err != nil {
				return
			}
			flusher.Flush()
			if ev.Status.Terminal() {
				return
			}
			if !grace.Stop() {
				select {
				case <-grace.C:
				default:
				}
			}
			grace.Reset(h.subscribeGrace)

		case <-grace.C:
			// Push path stalled; settle the stream deterministically.
			h.emitTerminal(r, enc, flusher, jobID)
			return

		case <-r.Context().Done():
			return
		}
	}
}

func (h *RewriteHandlers) emitTerminal(r *http.Request, enc *json.Encoder, flusher http.Flusher, jobID string) {
	res, err := h.svc.Await(r.Context(), jobID)

	ev := jobs.ProgressEvent{
		JobID:     jobID,
		Timestamp: time.Now().UTC(),
	}
	if err != nil {
		ev.Status = jobs.StatusFailed
		ev.Error = err.Error()
	} else {
		ev.Status = jobs.StatusCompleted
		ev.Progress = 100
		ev.Result = res
	}

	if encodeErr := enc.Encode(ev); encodeErr != nil {
		return
	}
	flusher.Flush()
}

type resultResponse struct {
	JobID  string   `json:"job_id"`
	Result string   `json:"result"`
	Alerts []string `json:"alerts,omitempty"`
}

// Result blocks for the job's terminal state; it is the pull fallback
// when the events stream cannot be used.
func (h *RewriteHandlers) Result(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	res, err := h.svc.Await(r.Context(), jobID)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, resultResponse{JobID: jobID, Result: res.Text, Alerts: res.Alerts})
	case errors.Is(err, jobs.ErrJobNotFound):
		respondError(w, http.StatusNotFound, "job not found")
	case errors.Is(err, jobs.ErrBrokerRestarted):
		respondError(w, http.StatusConflict, "job interrupted, retry the request")
	case errors.Is(err, r.Context().Err()):
		// Client went away; nothing sensible to write.
	default:
		respondError(w, http.StatusBadGateway, "job failed")
	}
}
