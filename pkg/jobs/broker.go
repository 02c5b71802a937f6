package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/redraftlabs/redraft/pkg/broadcast"
)

// Broker manages job lifecycles and progress fan-out. Each job's
// engine call runs on its own goroutine; subscribers observe it
// through a per-job broadcaster.
type Broker struct {
	engine     Engine
	logger     *slog.Logger
	retention  time.Duration
	runTimeout time.Duration
	bufferSize int
	onComplete CompletionHook

	mu     sync.RWMutex
	jobs   map[string]*job
	closed bool
	wg     sync.WaitGroup
}

type job struct {
	id        string
	req       Request
	caster    *broadcast.MemoryBroadcaster[ProgressEvent]
	done      chan struct{}
	gcTimer   *time.Timer
	cancelRun context.CancelFunc

	mu       sync.Mutex
	status   Status
	progress int
	phase    string
	message  string
	partial  string
	result   *Result
	err      error
}

// Option configures the broker.
type Option func(*Broker)

// WithRetention bounds how long terminal jobs stay queryable before
// garbage collection.
func WithRetention(d time.Duration) Option {
	return func(b *Broker) {
		if d > 0 {
			b.retention = d
		}
	}
}

// WithRunTimeout caps a single engine run. The engine call is assumed
// to carry its own timeout; this is the broker's upper bound on top.
func WithRunTimeout(d time.Duration) Option {
	return func(b *Broker) {
		if d > 0 {
			b.runTimeout = d
		}
	}
}

// WithCompletionHook registers the hook invoked once per terminal job.
func WithCompletionHook(hook CompletionHook) Option {
	return func(b *Broker) { b.onComplete = hook }
}

// WithLogger sets the broker's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Broker) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithBufferSize sets each subscriber's channel capacity.
func WithBufferSize(n int) Option {
	return func(b *Broker) {
		if n > 0 {
			b.bufferSize = n
		}
	}
}

// NewBroker creates a broker running jobs against the given engine.
func NewBroker(engine Engine, opts ...Option) (*Broker, error) {
	if engine == nil {
		return nil, ErrEngineRequired
	}

	b := &Broker{
		engine:     engine,
		logger:     slog.Default(),
		retention:  5 * time.Minute,
		runTimeout: 10 * time.Minute,
		bufferSize: 32,
		jobs:       make(map[string]*job),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Start registers a new job and returns its id immediately. The
// engine run proceeds on its own goroutine and outlives the caller's
// request context.
func (b *Broker) Start(ctx context.Context, req Request) (string, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return "", ErrBrokerClosed
	}

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.runTimeout)
	j := &job{
		id:        uuid.NewString(),
		req:       req,
		status:    StatusPending,
		caster:    broadcast.NewMemoryBroadcaster[ProgressEvent](b.bufferSize),
		done:      make(chan struct{}),
		cancelRun: cancel,
	}
	b.jobs[j.id] = j
	b.wg.Add(1)
	b.mu.Unlock()

	go b.run(runCtx, j)

	return j.id, nil
}

func (b *Broker) run(ctx context.Context, j *job) {
	defer b.wg.Done()
	defer j.cancelRun()

	b.transition(j, StatusRunning)

	res, err := b.engine.Run(ctx, j.req, func(ev ProgressEvent) {
		b.applyProgress(j, ev)
	})
	if err != nil {
		b.fail(j, err)
		return
	}
	b.complete(j, res)
}

// applyProgress updates the job under its lock and broadcasts the
// normalized event. Terminal statuses from the engine are ignored;
// only the broker transitions jobs.
func (b *Broker) applyProgress(j *job, ev ProgressEvent) {
	j.mu.Lock()
	if j.status.Terminal() {
		j.mu.Unlock()
		return
	}

	// Monotonic clamp: progress never goes backwards no matter what
	// the upstream stream reports.
	j.progress = min(max(ev.Progress, j.progress), 100)
	if ev.Phase != "" {
		j.phase = ev.Phase
	}
	if ev.Message != "" {
		j.message = ev.Message
	}
	if ev.Partial != "" {
		j.partial = ev.Partial
	}

	out := ProgressEvent{
		JobID:      j.id,
		Status:     StatusRunning,
		Progress:   j.progress,
		Phase:      j.phase,
		Message:    j.message,
		Step:       ev.Step,
		TotalSteps: ev.TotalSteps,
		Partial:    ev.Partial,
		Timestamp:  time.Now().UTC(),
	}
	j.mu.Unlock()

	j.caster.Broadcast(broadcast.Message[ProgressEvent]{Data: out})
}

func (b *Broker) transition(j *job, status Status) {
	j.mu.Lock()
	if j.status.Terminal() {
		j.mu.Unlock()
		return
	}
	j.status = status
	out := j.snapshotLocked()
	j.mu.Unlock()

	j.caster.Broadcast(broadcast.Message[ProgressEvent]{Data: out})
}

func (b *Broker) complete(j *job, res *Result) {
	j.mu.Lock()
	if j.status.Terminal() {
		j.mu.Unlock()
		return
	}
	j.status = StatusCompleted
	j.progress = 100
	j.result = res
	out := j.snapshotLocked()
	j.mu.Unlock()

	b.settle(j, res, nil)
	b.finish(j, out)
}

func (b *Broker) fail(j *job, err error) {
	j.mu.Lock()
	if j.status.Terminal() {
		j.mu.Unlock()
		return
	}
	j.status = StatusFailed
	j.err = err
	out := j.snapshotLocked()
	j.mu.Unlock()

	b.logger.Error("job failed", slog.String("job_id", j.id), slog.Any("error", err))
	b.settle(j, nil, err)
	b.finish(j, out)
}

// settle invokes the completion hook exactly once per terminal job.
// It runs before the terminal event is broadcast so observers never
// see a completed job whose debit has not been attempted.
func (b *Broker) settle(j *job, res *Result, jobErr error) {
	if b.onComplete == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	b.onComplete(ctx, j.id, j.req, res, jobErr)
}

func (b *Broker) finish(j *job, terminal ProgressEvent) {
	j.caster.Broadcast(broadcast.Message[ProgressEvent]{Data: terminal})
	close(j.done)

	// Give live subscribers a beat to drain, then close their
	// channels; Await and late Subscribe work off the job record until
	// retention expires.
	caster := j.caster
	time.AfterFunc(time.Second, func() { _ = caster.Close() })

	j.gcTimer = time.AfterFunc(b.retention, func() {
		b.mu.Lock()
		delete(b.jobs, j.id)
		b.mu.Unlock()
	})
}

// snapshotLocked builds the event describing the job's current state.
// Callers must hold j.mu.
func (j *job) snapshotLocked() ProgressEvent {
	ev := ProgressEvent{
		JobID:     j.id,
		Status:    j.status,
		Progress:  j.progress,
		Phase:     j.phase,
		Message:   j.message,
		Partial:   j.partial,
		Timestamp: time.Now().UTC(),
	}
	if j.status == StatusCompleted {
		ev.Result = j.result
	}
	if j.status == StatusFailed && j.err != nil {
		ev.Error = j.err.Error()
	}
	return ev
}

func (b *Broker) lookup(jobID string) (*job, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	j, ok := b.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	return j, nil
}

// Subscribe returns a channel of progress events for the job: the
// current state first, then live updates, ending with exactly one
// terminal event after which the channel closes. Cancelling ctx only
// detaches the observer; the job keeps running.
func (b *Broker) Subscribe(ctx context.Context, jobID string) (<-chan ProgressEvent, error) {
	j, err := b.lookup(jobID)
	if err != nil {
		return nil, err
	}

	// Subscribing under the job lock pins the ordering: every event
	// broadcast after the snapshot has progress >= the snapshot's.
	j.mu.Lock()
	sub := j.caster.Subscribe(ctx)
	snapshot := j.snapshotLocked()
	terminal := j.status.Terminal()
	j.mu.Unlock()

	out := make(chan ProgressEvent, b.bufferSize)
	go func() {
		defer close(out)
		defer sub.Close()

		select {
		case out <- snapshot:
		case <-ctx.Done():
			return
		}
		if terminal {
			return
		}

		for {
			select {
			case msg, ok := <-sub.Receive():
				if !ok {
					return
				}
				select {
				case out <- msg.Data:
				case <-ctx.Done():
					return
				}
				if msg.Data.Status.Terminal() {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// Await blocks until the job reaches a terminal state and returns its
// result. It is the pull-style fallback when the push channel cannot
// be established or is interrupted.
func (b *Broker) Await(ctx context.Context, jobID string) (*Result, error) {
	j, err := b.lookup(jobID)
	if err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-j.done:
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status == StatusFailed {
		return nil, j.err
	}
	return j.result, nil
}

// Status returns the job's current lifecycle state.
func (b *Broker) Status(jobID string) (Status, error) {
	j, err := b.lookup(jobID)
	if err != nil {
		return "", err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status, nil
}

// Shutdown stops accepting work and fails every non-terminal job with
// ErrBrokerRestarted. Jobs are not resumable across restarts; callers
// retry the whole request.
func (b *Broker) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	running := make([]*job, 0, len(b.jobs))
	for _, j := range b.jobs {
		running = append(running, j)
	}
	b.mu.Unlock()

	// Fail before cancelling so an engine that returns on cancellation
	// cannot race the job into a context.Canceled failure.
	for _, j := range running {
		b.fail(j, ErrBrokerRestarted)
		j.cancelRun()
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
