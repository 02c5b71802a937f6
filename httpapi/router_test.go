package httpapi_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redraftlabs/redraft/httpapi"
	"github.com/redraftlabs/redraft/pkg/catalog"
	"github.com/redraftlabs/redraft/pkg/jobs"
	"github.com/redraftlabs/redraft/pkg/ledger"
	"github.com/redraftlabs/redraft/pkg/webhook"
	"github.com/redraftlabs/redraft/svc/billing"
	"github.com/redraftlabs/redraft/svc/rewrite"
)

const testSecret = "whsec_http_test"

type testAPI struct {
	server *httptest.Server
	store  *ledger.MemoryStore
}

func newTestAPI(t *testing.T, engine jobs.Engine, billingOpts ...billing.Option) *testAPI {
	t.Helper()

	store := ledger.NewMemoryStore()
	log := slog.New(slog.DiscardHandler)

	cat, err := catalog.New("v1", map[string]catalog.PlanPrice{
		"pri_basic_monthly": {Tier: catalog.TierBasic, Period: catalog.PeriodMonthly},
		"pri_pro_monthly":   {Tier: catalog.TierPro, Period: catalog.PeriodMonthly},
	})
	require.NoError(t, err)

	billingSvc, err := billing.New(store, cat, testSecret, append([]billing.Option{billing.WithLogger(log)}, billingOpts...)...)
	require.NoError(t, err)

	if engine == nil {
		engine = jobs.EngineFunc(func(ctx context.Context, req jobs.Request, emit func(jobs.ProgressEvent)) (*jobs.Result, error) {
			emit(jobs.ProgressEvent{Progress: 50, Phase: "rewriting"})
			return &jobs.Result{Text: "rewritten output text"}, nil
		})
	}
	rewriteSvc, err := rewrite.New(store, engine, nil, rewrite.WithLogger(log))
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = rewriteSvc.Shutdown(ctx)
	})

	router := httpapi.NewRouter(httpapi.RouterConfig{
		Billing: httpapi.NewBillingHandlers(billingSvc, log),
		Rewrite: httpapi.NewRewriteHandlers(rewriteSvc, log, httpapi.WithSubscribeGrace(time.Second)),
		Logger:  log,
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testAPI{server: server, store: store}
}

func (a *testAPI) seed(t *testing.T, entry *ledger.Entry) *ledger.Entry {
	t.Helper()

	if entry.UserID == uuid.Nil {
		entry.UserID = uuid.New()
	}
	require.NoError(t, a.store.Create(context.Background(), entry))
	return entry
}

func (a *testAPI) do(t *testing.T, method, path string, userID uuid.UUID, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	if userID != uuid.Nil {
		req.Header.Set("X-User-ID", userID.String())
	}

	resp, err := a.server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, nil)
	resp := api.do(t, http.MethodGet, "/health", uuid.Nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebhookEndpoint(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, nil)

	event := map[string]any{
		"event_type": "subscription.activated",
		"data": map[string]any{
			"id":       "sub_http",
			"status":   "active",
			"customer": map[string]any{"email": "hook@example.com"},
			"items":    []map[string]any{{"price": map[string]any{"id": "pri_pro_monthly"}}},
		},
	}
	raw, err := json.Marshal(event)
	require.NoError(t, err)

	t.Run("accepts signed event", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, api.server.URL+"/webhooks/paddle", bytes.NewReader(raw))
		require.NoError(t, err)
		req.Header.Set("Paddle-Signature", webhook.Sign(testSecret, raw, time.Now()))

		resp, err := api.server.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		entry, err := api.store.GetByEmail(context.Background(), "hook@example.com")
		require.NoError(t, err)
		assert.Equal(t, catalog.TierPro, entry.Plan)
	})

	t.Run("rejects bad signature", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, api.server.URL+"/webhooks/paddle", bytes.NewReader(raw))
		require.NoError(t, err)
		req.Header.Set("Paddle-Signature", webhook.Sign("other-secret", raw, time.Now()))

		resp, err := api.server.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestPlanChangeEndpoint(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, nil)

	t.Run("requires identity", func(t *testing.T) {
		resp := api.do(t, http.MethodPost, "/billing/plan", uuid.Nil, map[string]string{"plan": "pro"})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("upgrade succeeds", func(t *testing.T) {
		entry := api.seed(t, &ledger.Entry{
			Email:       "up@example.com",
			Plan:        catalog.TierFree,
			WordBalance: 600,
		})

		resp := api.do(t, http.MethodPost, "/billing/plan", entry.UserID, map[string]string{
			"plan":           "pro",
			"billing_period": "monthly",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody[map[string]any](t, resp)
		assert.Equal(t, "pro", body["plan"])
		assert.Equal(t, float64(15000), body["word_balance"])
	})

	t.Run("downgrade answers 409 with retry_at", func(t *testing.T) {
		renews := time.Now().Add(10 * 24 * time.Hour)
		entry := api.seed(t, &ledger.Entry{
			Email:         "down@example.com",
			Plan:          catalog.TierPro,
			BillingPeriod: catalog.PeriodMonthly,
			WordBalance:   15000,
			CycleRenewsAt: renews,
		})

		resp := api.do(t, http.MethodPost, "/billing/plan", entry.UserID, map[string]string{
			"plan":           "basic",
			"billing_period": "monthly",
		})
		require.Equal(t, http.StatusConflict, resp.StatusCode)

		body := decodeBody[map[string]string](t, resp)
		assert.NotEmpty(t, body["error"])
		retryAt, err := time.Parse(time.RFC3339, body["retry_at"])
		require.NoError(t, err)
		assert.WithinDuration(t, renews, retryAt, time.Second)
	})
}

type stubPortal struct {
	url string
	err error
}

func (p stubPortal) PortalSessionURL(context.Context, string, string) (string, error) {
	return p.url, p.err
}

func TestPortalSessionEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("answers portal url", func(t *testing.T) {
		api := newTestAPI(t, nil, billing.WithPortalProvider(stubPortal{url: "https://portal.example.com/s/abc"}))
		entry := api.seed(t, &ledger.Entry{
			Email:               "portal@example.com",
			Plan:                catalog.TierPro,
			ProviderCustomerRef: "ctm_1",
		})

		resp := api.do(t, http.MethodPost, "/billing/portal", entry.UserID, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decodeBody[map[string]string](t, resp)
		assert.Equal(t, "https://portal.example.com/s/abc", body["url"])
	})

	t.Run("provider failure answers 502", func(t *testing.T) {
		api := newTestAPI(t, nil, billing.WithPortalProvider(stubPortal{err: fmt.Errorf("provider down")}))
		entry := api.seed(t, &ledger.Entry{
			Email:               "portal502@example.com",
			Plan:                catalog.TierPro,
			ProviderCustomerRef: "ctm_2",
		})

		resp := api.do(t, http.MethodPost, "/billing/portal", entry.UserID, nil)
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	})
}

func TestRewriteFlow(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, nil)
	entry := api.seed(t, &ledger.Entry{
		Email:       "writer@example.com",
		Plan:        catalog.TierBasic,
		WordBalance: 5000,
	})

	resp := api.do(t, http.MethodPost, "/rewrite", entry.UserID, map[string]any{
		"text": "este es el texto original",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	jobID := decodeBody[map[string]string](t, resp)["job_id"]
	require.NotEmpty(t, jobID)

	t.Run("events stream ends with terminal record", func(t *testing.T) {
		resp := api.do(t, http.MethodGet, "/rewrite/"+jobID+"/events", uuid.Nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/x-ndjson", resp.Header.Get("Content-Type"))

		var events []jobs.ProgressEvent
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			var ev jobs.ProgressEvent
			require.NoError(t, json.Unmarshal([]byte(line), &ev))
			events = append(events, ev)
		}
		require.NoError(t, scanner.Err())
		require.NotEmpty(t, events)

		final := events[len(events)-1]
		assert.Equal(t, jobs.StatusCompleted, final.Status)
		require.NotNil(t, final.Result)
		assert.Equal(t, "rewritten output text", final.Result.Text)
	})

	t.Run("result fallback", func(t *testing.T) {
		resp := api.do(t, http.MethodGet, "/rewrite/"+jobID+"/result", uuid.Nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody[map[string]any](t, resp)
		assert.Equal(t, "rewritten output text", body["result"])
	})

	t.Run("settlement debited the ledger", func(t *testing.T) {
		got, err := api.store.Get(context.Background(), entry.UserID)
		require.NoError(t, err)
		assert.Equal(t, int64(4997), got.WordBalance)
	})

	t.Run("unknown job answers 404", func(t *testing.T) {
		resp := api.do(t, http.MethodGet, "/rewrite/"+uuid.NewString()+"/events", uuid.Nil, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		resp = api.do(t, http.MethodGet, "/rewrite/"+uuid.NewString()+"/result", uuid.Nil, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

// stallingRecorder blocks the first body write until released, keeping
// the events handler from draining its subscription.
type stallingRecorder struct {
	header  http.Header
	buf     bytes.Buffer
	stalled chan struct{}
	release chan struct{}
	once    sync.Once
}

func (w *stallingRecorder) Header() http.Header { return w.header }
func (w *stallingRecorder) WriteHeader(int)     {}
func (w *stallingRecorder) Flush()              {}

func (w *stallingRecorder) Write(p []byte) (int, error) {
	w.once.Do(func() {
		close(w.stalled)
		<-w.release
	})
	return w.buf.Write(p)
}

func TestEventsStreamDroppedSubscriberStillGetsTerminal(t *testing.T) {
	t.Parallel()

	store := ledger.NewMemoryStore()
	log := slog.New(slog.DiscardHandler)

	stalled := make(chan struct{})
	release := make(chan struct{})
	proceed := make(chan struct{})
	flooded := make(chan struct{})

	engine := jobs.EngineFunc(func(ctx context.Context, req jobs.Request, emit func(jobs.ProgressEvent)) (*jobs.Result, error) {
		emit(jobs.ProgressEvent{Progress: 5, Phase: "rewriting"})
		<-proceed
		for i := range 8 {
			emit(jobs.ProgressEvent{Progress: 10 + i*10, Phase: "rewriting"})
		}
		close(flooded)
		return &jobs.Result{Text: "survived the drop"}, nil
	})

	svc, err := rewrite.New(store, engine, []jobs.Option{jobs.WithBufferSize(1)}, rewrite.WithLogger(log))
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})

	entry := &ledger.Entry{
		UserID:      uuid.New(),
		Email:       "drop@example.com",
		Plan:        catalog.TierBasic,
		WordBalance: 5000,
	}
	require.NoError(t, store.Create(context.Background(), entry))

	jobID, err := svc.Start(context.Background(), entry.UserID, jobs.Request{Text: "texto para procesar"})
	require.NoError(t, err)

	router := httpapi.NewRouter(httpapi.RouterConfig{
		Rewrite: httpapi.NewRewriteHandlers(svc, log),
		Logger:  log,
	})

	w := &stallingRecorder{header: make(http.Header), stalled: stalled, release: release}
	req := httptest.NewRequest(http.MethodGet, "/rewrite/"+jobID+"/events", nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		router.ServeHTTP(w, req)
	}()

	<-stalled
	// Overflow the subscription while the handler cannot drain it; the
	// broadcaster drops it and closes the channel without a terminal
	// record.
	close(proceed)
	<-flooded
	close(release)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("events handler did not finish")
	}

	var events []jobs.ProgressEvent
	scanner := bufio.NewScanner(&w.buf)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var ev jobs.ProgressEvent
		require.NoError(t, json.Unmarshal([]byte(line), &ev))
		events = append(events, ev)
	}
	require.NoError(t, scanner.Err())
	require.NotEmpty(t, events)

	final := events[len(events)-1]
	assert.Equal(t, jobs.StatusCompleted, final.Status)
	require.NotNil(t, final.Result)
	assert.Equal(t, "survived the drop", final.Result.Text)
}

func TestRewriteAdmissionErrors(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, nil)

	t.Run("empty text", func(t *testing.T) {
		entry := api.seed(t, &ledger.Entry{
			Email:       "empty@example.com",
			Plan:        catalog.TierBasic,
			WordBalance: 100,
		})
		resp := api.do(t, http.MethodPost, "/rewrite", entry.UserID, map[string]any{"text": "   "})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("insufficient balance", func(t *testing.T) {
		entry := api.seed(t, &ledger.Entry{
			Email:       "broke@example.com",
			Plan:        catalog.TierFree,
			WordBalance: 1,
		})
		resp := api.do(t, http.MethodPost, "/rewrite", entry.UserID, map[string]any{
			"text": "demasiadas palabras para este saldo",
		})
		assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	})
}
