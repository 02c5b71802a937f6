package rewrite

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/redraftlabs/redraft/pkg/jobs"
)

// EngineConfig configures the upstream rewriting engine client.
type EngineConfig struct {
	BaseURL string        `env:"ENGINE_BASE_URL,required"`
	Token   string        `env:"ENGINE_TOKEN"`
	Timeout time.Duration `env:"ENGINE_TIMEOUT" envDefault:"10m"`
}

// HTTPEngine calls the rewriting engine over HTTP and relays its
// newline-delimited JSON progress stream.
type HTTPEngine struct {
	baseURL string
	token   string
	timeout time.Duration
	client  *http.Client
}

// NewHTTPEngine creates an engine client.
func NewHTTPEngine(cfg EngineConfig) (*HTTPEngine, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("rewrite: engine base URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &HTTPEngine{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		timeout: timeout,
		// Per-request deadlines come from the context; the client
		// itself stays unbounded so streams are not cut mid-flight.
		client: &http.Client{},
	}, nil
}

type engineRequest struct {
	Text             string  `json:"text"`
	Mode             string  `json:"mode"`
	Budget           float64 `json:"budget,omitempty"`
	PreserveEntities bool    `json:"preserve_entities"`
	StyleSample      string  `json:"style_sample,omitempty"`
}

// streamRecord is one NDJSON line from the engine. Terminal records
// carry status "completed" with the result inline, or "error"/"failed"
// with a message.
type streamRecord struct {
	Status     string   `json:"status"`
	Progress   int      `json:"progress"`
	Message    string   `json:"message"`
	Step       int      `json:"step"`
	TotalSteps int      `json:"total_steps"`
	Phase      string   `json:"phase"`
	Partial    string   `json:"partial"`
	Result     string   `json:"result"`
	Alerts     []string `json:"alerts"`
	Error      string   `json:"error"`
}

// Run implements jobs.Engine.
func (e *HTTPEngine) Run(ctx context.Context, req jobs.Request, emit func(jobs.ProgressEvent)) (*jobs.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	payload, err := json.Marshal(engineRequest{
		Text:             req.Text,
		Mode:             string(req.Kind),
		Budget:           req.Budget,
		PreserveEntities: req.PreserveEntities,
		StyleSample:      req.StyleSample,
	})
	if err != nil {
		return nil, errors.Join(ErrEngineFailed, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/process", bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Join(ErrEngineFailed, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/x-ndjson")
	if e.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+e.token)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, e.classify(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, errors.Join(ErrEngineFailed, fmt.Errorf("engine answered %d: %s", resp.StatusCode, body))
	}

	return e.consumeStream(ctx, resp.Body, emit)
}

func (e *HTTPEngine) consumeStream(ctx context.Context, body io.Reader, emit func(jobs.ProgressEvent)) (*jobs.Result, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var rec streamRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			// Skip garbage lines; the terminal record decides the
			// job's fate.
			continue
		}

		switch rec.Status {
		case "completed":
			return &jobs.Result{Text: rec.Result, Alerts: rec.Alerts}, nil
		case "error", "failed":
			msg := rec.Error
			if msg == "" {
				msg = rec.Message
			}
			return nil, errors.Join(ErrEngineFailed, errors.New(msg))
		default:
			emit(jobs.ProgressEvent{
				Progress:   rec.Progress,
				Phase:      rec.Phase,
				Message:    rec.Message,
				Step:       rec.Step,
				TotalSteps: rec.TotalSteps,
				Partial:    rec.Partial,
			})
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, e.classify(ctx, err)
	}
	return nil, errors.Join(ErrEngineFailed, errors.New("stream ended without terminal record"))
}

func (e *HTTPEngine) classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Join(ErrUpstreamTimeout, err)
	}
	return errors.Join(ErrEngineFailed, err)
}
