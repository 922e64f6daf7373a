// Package billing talks to the payment provider: customers, checkout and
// portal sessions, and signed webhooks.
package billing

import (
	"context"
	"errors"

	"mygizmo/internal/models"
)

var (
	ErrDisabled         = errors.New("billing is not configured")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrInvalidPayload   = errors.New("invalid webhook payload")
)

// Provider event types acted on by the webhook.
const (
	CheckoutCompleted   = "checkout.session.completed"
	SubscriptionDeleted = "customer.subscription.deleted"
	SubscriptionUpdated = "customer.subscription.updated"
)

type Event struct {
	Type       string
	CustomerID string
	Status     string
}

// SubscriptionStatus maps the event to the account state it implies.
// ok is false for events that do not change the subscription.
func (e Event) SubscriptionStatus() (status string, ok bool) {
	switch e.Type {
	case CheckoutCompleted:
		return models.SubscriptionActive, true
	case SubscriptionDeleted:
		return models.SubscriptionInactive, true
	case SubscriptionUpdated:
		return e.Status, e.Status != ""
	default:
		return "", false
	}
}

type Client interface {
	Enabled() bool
	PublishableKey() string
	// CreateCustomer returns the provider customer id.
	CreateCustomer(ctx context.Context, email, name string) (string, error)
	// CreateCheckoutSession returns the session id handed to the browser.
	CreateCheckoutSession(ctx context.Context, customerID, successURL, cancelURL string) (string, error)
	// CreatePortalSession returns the portal URL.
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
	ParseWebhook(payload []byte, signature string) (Event, error)
}

// New returns a Stripe client, or Disabled when no secret key is set.
func New(cfg models.StripeConfig) Client {
	if cfg.SecretKey == "" {
		return Disabled{}
	}
	return NewStripe(cfg, nil)
}

// Disabled is used when the deployment has no payment provider.
type Disabled struct{}

func (Disabled) Enabled() bool          { return false }
func (Disabled) PublishableKey() string { return "" }

func (Disabled) CreateCustomer(context.Context, string, string) (string, error) {
	return "", nil
}

func (Disabled) CreateCheckoutSession(context.Context, string, string, string) (string, error) {
	return "", ErrDisabled
}

func (Disabled) CreatePortalSession(context.Context, string, string) (string, error) {
	return "", ErrDisabled
}

func (Disabled) ParseWebhook([]byte, string) (Event, error) {
	return Event{}, ErrDisabled
}
