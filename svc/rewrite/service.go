package rewrite

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/redraftlabs/redraft/pkg/jobs"
	"github.com/redraftlabs/redraft/pkg/ledger"
	"github.com/redraftlabs/redraft/pkg/logger"
	"github.com/redraftlabs/redraft/pkg/ratelimiter"
)

// Service admits, runs, and settles rewriting jobs.
type Service struct {
	store   ledger.Store
	broker  *jobs.Broker
	limiter ratelimiter.Limiter
	log     *slog.Logger
}

// Option configures the service.
type Option func(*Service) error

// WithLimiter enables per-subscriber job-start rate limiting.
func WithLimiter(l ratelimiter.Limiter) Option {
	return func(s *Service) error {
		s.limiter = l
		return nil
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) error {
		if l != nil {
			s.log = l
		}
		return nil
	}
}

// New creates the rewrite service. The broker is built here so the
// settlement hook is always wired; brokerOpts are passed through.
func New(store ledger.Store, engine jobs.Engine, brokerOpts []jobs.Option, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if engine == nil {
		return nil, ErrEngineRequired
	}

	s := &Service{
		store: store,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	brokerOpts = append(brokerOpts,
		jobs.WithCompletionHook(s.settle),
		jobs.WithLogger(s.log),
	)
	broker, err := jobs.NewBroker(engine, brokerOpts...)
	if err != nil {
		return nil, err
	}
	s.broker = broker
	return s, nil
}

// Start admits and launches one job, returning its id. Admission
// word-counts the input, checks the balance, and applies the rate
// limit; the actual debit happens at settlement from produced words.
func (s *Service) Start(ctx context.Context, userID uuid.UUID, req jobs.Request) (string, error) {
	words := CountWords(req.Text)
	if words == 0 {
		return "", ErrEmptyText
	}

	entry, err := s.store.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	if entry.WordBalance < words {
		return "", ErrInsufficientBalance
	}

	if s.limiter != nil {
		res, err := s.limiter.Allow(ctx, "rewrite:"+userID.String())
		if err != nil {
			return "", err
		}
		if !res.Allowed() {
			return "", ErrRateLimited
		}
	}

	req.UserID = userID
	if req.Kind == "" {
		req.Kind = jobs.KindRewrite
	}

	jobID, err := s.broker.Start(ctx, req)
	if err != nil {
		return "", err
	}

	s.log.InfoContext(ctx, "job admitted",
		logger.JobID(jobID),
		logger.UserID(userID),
		slog.Int64("input_words", words),
	)
	return jobID, nil
}

// Subscribe streams progress events for the job.
func (s *Service) Subscribe(ctx context.Context, jobID string) (<-chan jobs.ProgressEvent, error) {
	return s.broker.Subscribe(ctx, jobID)
}

// Await blocks for the job's terminal result.
func (s *Service) Await(ctx context.Context, jobID string) (*jobs.Result, error) {
	return s.broker.Await(ctx, jobID)
}

// Status reports the job's lifecycle state.
func (s *Service) Status(jobID string) (jobs.Status, error) {
	return s.broker.Status(jobID)
}

// Shutdown drains the broker, failing still-running jobs.
func (s *Service) Shutdown(ctx context.Context) error {
	return s.broker.Shutdown(ctx)
}

// settle debits produced words once per job. Failed jobs produced
// nothing billable; duplicate settlements are absorbed by the debit
// idempotency key.
func (s *Service) settle(ctx context.Context, jobID string, req jobs.Request, res *jobs.Result, jobErr error) {
	if jobErr != nil || res == nil {
		return
	}

	words := CountWords(res.Text)
	if words == 0 {
		return
	}

	balance, err := s.store.Debit(ctx, req.UserID, jobID, words)
	switch {
	case errors.Is(err, ledger.ErrDoubleDebit):
		s.log.InfoContext(ctx, "duplicate settlement ignored", logger.JobID(jobID), logger.UserID(req.UserID))
	case err != nil:
		s.log.ErrorContext(ctx, "settlement failed", logger.JobID(jobID), logger.UserID(req.UserID), logger.Error(err))
	default:
		s.log.InfoContext(ctx, "job settled",
			logger.JobID(jobID),
			logger.UserID(req.UserID),
			slog.Int64("produced_words", words),
			slog.Int64("balance", balance),
		)
	}
}
