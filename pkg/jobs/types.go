package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Status is a job lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transitions can leave s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Kind selects which engine operation a job runs.
type Kind string

const (
	KindRewrite Kind = "rewrite"
	KindDetect  Kind = "detect"
)

// Request is the payload handed to the engine.
type Request struct {
	UserID           uuid.UUID
	Kind             Kind
	Text             string
	Budget           float64 // rewrite aggressiveness, 0..1
	PreserveEntities bool
	StyleSample      string
}

// Result is the engine's terminal output, present only for completed
// jobs.
type Result struct {
	Text   string   `json:"text"`
	Alerts []string `json:"alerts,omitempty"`
}

// ProgressEvent is one record on a job's progress channel. The
// terminal event carries Status completed or failed and, when
// completed, the full result inline so clients need no second call.
type ProgressEvent struct {
	JobID      string    `json:"job_id"`
	Status     Status    `json:"status"`
	Progress   int       `json:"progress"` // 0-100, monotonically non-decreasing
	Phase      string    `json:"phase,omitempty"`
	Message    string    `json:"message,omitempty"`
	Step       int       `json:"step,omitempty"`
	TotalSteps int       `json:"total_steps,omitempty"`
	Partial    string    `json:"partial,omitempty"`
	Result     *Result   `json:"result,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Engine runs the external rewrite/detect call. Implementations call
// emit for intermediate progress and return the terminal result; the
// broker owns lifecycle transitions and ignores terminal statuses in
// emitted events.
type Engine interface {
	Run(ctx context.Context, req Request, emit func(ProgressEvent)) (*Result, error)
}

// EngineFunc adapts a function to the Engine interface.
type EngineFunc func(ctx context.Context, req Request, emit func(ProgressEvent)) (*Result, error)

func (f EngineFunc) Run(ctx context.Context, req Request, emit func(ProgressEvent)) (*Result, error) {
	return f(ctx, req, emit)
}

// CompletionHook observes exactly one terminal transition per job.
// The rewrite service settles word debits through it; jobErr is nil
// for completed jobs.
type CompletionHook func(ctx context.Context, jobID string, req Request, res *Result, jobErr error)
