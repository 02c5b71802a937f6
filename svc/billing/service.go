package billing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/redraftlabs/redraft/pkg/catalog"
	"github.com/redraftlabs/redraft/pkg/ledger"
	"github.com/redraftlabs/redraft/pkg/logger"
	"github.com/redraftlabs/redraft/pkg/transition"
	"github.com/redraftlabs/redraft/pkg/webhook"
)

// PortalProvider creates customer portal sessions at the payment
// provider. Kept as an interface so tests never hit the Paddle API.
type PortalProvider interface {
	PortalSessionURL(ctx context.Context, customerRef, subscriptionRef string) (string, error)
}

// Service reconciles webhook events and serves plan changes.
type Service struct {
	store  ledger.Store
	cat    *catalog.Catalog
	secret string
	portal PortalProvider
	log    *slog.Logger
	now    func() time.Time
}

// Option configures the service.
type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithPortalProvider wires the customer portal backend.
func WithPortalProvider(p PortalProvider) Option {
	return func(s *Service) { s.portal = p }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates the billing service. webhookSecret signs inbound
// provider events.
func New(store ledger.Store, cat *catalog.Catalog, webhookSecret string, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if cat == nil {
		return nil, ErrCatalogRequired
	}
	if webhookSecret == "" {
		return nil, ErrSecretRequired
	}

	s := &Service{
		store:  store,
		cat:    cat,
		secret: webhookSecret,
		log:    slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ChangePlan runs a self-service plan change through the transition
// rules and applies the resulting patch. Denials return a
// *PlanChangeDeniedError carrying the earliest legal retry time.
func (s *Service) ChangePlan(ctx context.Context, userID uuid.UUID, change transition.Change) (*ledger.Entry, error) {
	entry, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	decision := transition.Decide(entry, change, s.cat.QuotaFor, s.now())
	if !decision.Allowed {
		return nil, &PlanChangeDeniedError{Reason: decision.Reason, RetryAt: decision.RetryAt}
	}

	if err := s.store.ApplyPatch(ctx, userID, decision.Patch); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, userID)
}

// HandleWebhook verifies, decodes, and reconciles one provider event.
// Signature and shape failures are returned as errors (the HTTP layer
// answers 400); everything else is acknowledged, including events the
// transition rules refuse to apply.
func (s *Service) HandleWebhook(ctx context.Context, rawBody []byte, signatureHeader string) error {
	if err := webhook.VerifyHeader(s.secret, rawBody, signatureHeader, s.now()); err != nil {
		return errors.Join(ErrSignatureInvalid, err)
	}

	event, err := decodeEvent(rawBody)
	if err != nil {
		return err
	}

	switch ev := event.(type) {
	case SubscriptionEvent:
		return s.applySubscriptionEvent(ctx, ev)
	case UnknownEvent:
		s.log.InfoContext(ctx, "ignoring webhook event", logger.EventType(ev.Type))
		return nil
	default:
		s.log.InfoContext(ctx, "ignoring webhook event", logger.EventType(event.EventType()))
		return nil
	}
}

func (s *Service) applySubscriptionEvent(ctx context.Context, ev SubscriptionEvent) error {
	// No email means no ledger linkage; the event is inapplicable, not
	// malformed, and must be acknowledged so the provider stops
	// redelivering it.
	if ev.Email == "" {
		s.log.WarnContext(ctx, "subscription event without customer email",
			logger.EventType(ev.Type),
			slog.String("subscription_ref", ev.SubscriptionRef),
		)
		return nil
	}

	// The pre-event state decides whether the event starts a new cycle
	// and whether its plan change is legal.
	prior, err := s.store.GetByEmail(ctx, ev.Email)
	if err != nil && !errors.Is(err, ledger.ErrEntryNotFound) {
		return err
	}

	// Provider-side fact lands unconditionally; entries are created on
	// first contact with the free plan.
	entry, err := s.store.UpsertProvider(ctx, ev.Email, ledger.ProviderUpdate{
		Status:          ev.Status,
		PriceRef:        ev.PriceRef,
		CustomerRef:     ev.CustomerRef,
		SubscriptionRef: ev.SubscriptionRef,
		CycleStartedAt:  ev.CycleStartedAt,
		CycleRenewsAt:   ev.CycleRenewsAt,
	})
	if err != nil {
		return err
	}

	if ev.PriceRef == "" {
		return nil
	}

	price, ok := s.cat.Resolve(ev.PriceRef)
	if !ok {
		// Unknown price is non-fatal: linkage and status are already
		// applied, plan and period stay untouched.
		s.log.WarnContext(ctx, "webhook price not in catalog",
			logger.EventType(ev.Type),
			slog.String("price_ref", ev.PriceRef),
		)
		return nil
	}

	change := transition.Change{Plan: price.Tier, BillingPeriod: price.Period}

	base := prior
	if base == nil {
		base = entry
	}

	decision := transition.Decide(base, change, s.cat.QuotaFor, s.now())
	if !decision.Allowed {
		s.log.WarnContext(ctx, "provider event denied by transition rules",
			logger.EventType(ev.Type),
			logger.UserID(entry.UserID),
			logger.Plan(change.Plan),
			slog.Any("reason", decision.Reason),
		)
		return nil
	}

	// Apply only when the event starts a new cycle or actually moves
	// plan/period; re-delivered events must not refresh the balance
	// mid-cycle.
	planChanged := change.Plan != base.Plan || change.BillingPeriod != base.BillingPeriod
	cycleAdvanced := ev.CycleRenewsAt != nil &&
		(prior == nil || ev.CycleRenewsAt.After(prior.CycleRenewsAt))
	if !planChanged && !cycleAdvanced {
		return nil
	}

	if err := s.store.ApplyPatch(ctx, entry.UserID, decision.Patch); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "ledger reconciled from provider event",
		logger.EventType(ev.Type),
		logger.UserID(entry.UserID),
		logger.Plan(change.Plan),
	)
	return nil
}

// PortalSession creates a customer portal session for the subscriber.
// Any provider failure maps to ErrPortalUnavailable; callers decide
// whether to retry.
func (s *Service) PortalSession(ctx context.Context, userID uuid.UUID) (string, error) {
	if s.portal == nil {
		return "", ErrPortalUnavailable
	}

	entry, err := s.store.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	if entry.ProviderCustomerRef == "" {
		return "", errors.Join(ErrPortalUnavailable, errors.New("no provider customer linked"))
	}

	url, err := s.portal.PortalSessionURL(ctx, entry.ProviderCustomerRef, entry.ProviderSubscriptionRef)
	if err != nil {
		s.log.ErrorContext(ctx, "portal session failed", logger.UserID(userID), logger.Error(err))
		return "", errors.Join(ErrPortalUnavailable, err)
	}
	return url, nil
}
