package billing

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Event is one decoded webhook event. Exactly one concrete type per
// event family; payloads that match no family decode to UnknownEvent
// so handlers never poke at untyped maps.
type Event interface {
	EventType() string
}

// SubscriptionEvent carries the provider-side subscription fact:
// linkage refs, status, price reference, and cycle bounds.
type SubscriptionEvent struct {
	Type            string
	SubscriptionRef string
	CustomerRef     string
	Email           string
	Status          string
	PriceRef        string
	CycleStartedAt  *time.Time
	CycleRenewsAt   *time.Time
}

func (e SubscriptionEvent) EventType() string { return e.Type }

// UnknownEvent is any verified event the service does not act on. It
// is acknowledged and logged, never an error.
type UnknownEvent struct {
	Type string
}

func (e UnknownEvent) EventType() string { return e.Type }

type eventEnvelope struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Event     *struct {
		Type string `json:"type"`
	} `json:"event"`
	Data json.RawMessage `json:"data"`
}

type subscriptionData struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	CustomerID string `json:"customer_id"`
	Customer   *struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"customer"`
	Subscription *struct {
		ID string `json:"id"`
	} `json:"subscription"`
	Items []struct {
		Price struct {
			ID string `json:"id"`
		} `json:"price"`
	} `json:"items"`
	NextBilledAt               *time.Time `json:"next_billed_at"`
	CurrentBillingPeriodEndsAt *time.Time `json:"current_billing_period_ends_at"`
	StartDate                  *time.Time `json:"start_date"`
	CreatedAt                  *time.Time `json:"created_at"`
}

// decodeEvent parses a verified webhook payload. The envelope names
// its type either as a top-level event_type or a nested event.type.
func decodeEvent(payload []byte) (Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, errors.Join(ErrMalformedEvent, err)
	}

	eventType := env.EventType
	if eventType == "" && env.Event != nil {
		eventType = env.Event.Type
	}
	if eventType == "" {
		return nil, errors.Join(ErrMalformedEvent, errors.New("missing event type"))
	}

	if !strings.HasPrefix(eventType, "subscription.") {
		return UnknownEvent{Type: eventType}, nil
	}

	var data subscriptionData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, errors.Join(ErrMalformedEvent, err)
	}

	ev := SubscriptionEvent{
		Type:            eventType,
		SubscriptionRef: data.ID,
		Status:          data.Status,
		CustomerRef:     data.CustomerID,
	}
	if ev.SubscriptionRef == "" && data.Subscription != nil {
		ev.SubscriptionRef = data.Subscription.ID
	}
	if data.Customer != nil {
		ev.Email = data.Customer.Email
		if ev.CustomerRef == "" {
			ev.CustomerRef = data.Customer.ID
		}
	}
	if len(data.Items) > 0 {
		ev.PriceRef = data.Items[0].Price.ID
	}

	switch {
	case data.NextBilledAt != nil:
		ev.CycleRenewsAt = data.NextBilledAt
	case data.CurrentBillingPeriodEndsAt != nil:
		ev.CycleRenewsAt = data.CurrentBillingPeriodEndsAt
	}
	switch {
	case data.StartDate != nil:
		ev.CycleStartedAt = data.StartDate
	case data.CreatedAt != nil:
		ev.CycleStartedAt = data.CreatedAt
	}

	return ev, nil
}
