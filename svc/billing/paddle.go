package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
)

// PaddleConfig configures the Paddle API client.
type PaddleConfig struct {
	APIKey      string `env:"PADDLE_API_KEY,required"`
	Environment string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
}

// PaddlePortal implements PortalProvider against the Paddle API.
type PaddlePortal struct {
	client *paddle.SDK
}

// NewPaddlePortal creates a Paddle-backed portal provider.
func NewPaddlePortal(cfg PaddleConfig) (*PaddlePortal, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("billing: paddle API key is required")
	}

	var (
		client *paddle.SDK
		err    error
	)
	switch strings.ToLower(cfg.Environment) {
	case "sandbox":
		client, err = paddle.NewSandbox(cfg.APIKey)
	case "production", "":
		client, err = paddle.New(cfg.APIKey)
	default:
		return nil, fmt.Errorf("billing: invalid paddle environment %q", cfg.Environment)
	}
	if err != nil {
		return nil, fmt.Errorf("billing: failed to create paddle client: %w", err)
	}

	return &PaddlePortal{client: client}, nil
}

// PortalSessionURL creates a customer portal session and returns its
// overview URL.
func (p *PaddlePortal) PortalSessionURL(ctx context.Context, customerRef, subscriptionRef string) (string, error) {
	req := &paddle.CreateCustomerPortalSessionRequest{
		CustomerID: customerRef,
	}
	if subscriptionRef != "" {
		req.SubscriptionIDs = []string{subscriptionRef}
	}

	session, err := p.client.CustomerPortalSessionsClient.CreateCustomerPortalSession(ctx, req)
	if err != nil {
		return "", fmt.Errorf("billing: paddle portal session: %w", err)
	}
	if session.URLs.General.Overview == "" {
		return "", errors.New("billing: paddle returned no portal URL")
	}
	return session.URLs.General.Overview, nil
}
