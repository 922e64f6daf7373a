package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"

	"mygizmo/internal/models"
)

type Stripe struct {
	api           *client.API
	priceID       string
	publishable   string
	webhookSecret string
}

// NewStripe builds a client for cfg. backends may be nil to use the
// provider's public endpoints.
func NewStripe(cfg models.StripeConfig, backends *stripe.Backends) *Stripe {
	api := &client.API{}
	api.Init(cfg.SecretKey, backends)
	return &Stripe{
		api:           api,
		priceID:       cfg.PriceID,
		publishable:   cfg.PublishableKey,
		webhookSecret: cfg.WebhookSecret,
	}
}

func (s *Stripe) Enabled() bool          { return true }
func (s *Stripe) PublishableKey() string { return s.publishable }

func (s *Stripe) CreateCustomer(ctx context.Context, email, name string) (string, error) {
	const op = "billing.Stripe.CreateCustomer"

	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx
	c, err := s.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return c.ID, nil
}

func (s *Stripe) CreateCheckoutSession(ctx context.Context, customerID, successURL, cancelURL string) (string, error) {
	const op = "billing.Stripe.CreateCheckoutSession"

	if customerID == "" {
		return "", fmt.Errorf("%s: account has no billing customer", op)
	}
	params := &stripe.CheckoutSessionParams{
		Customer:           stripe.String(customerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(s.priceID),
			Quantity: stripe.Int64(1),
		}},
		Mode:                stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		AllowPromotionCodes: stripe.Bool(true),
		SuccessURL:          stripe.String(successURL + "?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:           stripe.String(cancelURL),
	}
	params.Context = ctx
	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return sess.ID, nil
}

func (s *Stripe) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	const op = "billing.Stripe.CreatePortalSession"

	if customerID == "" {
		return "", fmt.Errorf("%s: account has no billing customer", op)
	}
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx
	sess, err := s.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return sess.URL, nil
}

// ParseWebhook verifies the signature header and extracts the customer
// and subscription status of the event.
func (s *Stripe) ParseWebhook(payload []byte, signature string) (Event, error) {
	const op = "billing.Stripe.ParseWebhook"

	evt, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		if errors.Is(err, webhook.ErrNotSigned) || errors.Is(err, webhook.ErrInvalidHeader) ||
			errors.Is(err, webhook.ErrNoValidSignature) || errors.Is(err, webhook.ErrTooOld) {
			return Event{}, fmt.Errorf("%s: %w: %v", op, ErrInvalidSignature, err)
		}
		return Event{}, fmt.Errorf("%s: %w: %v", op, ErrInvalidPayload, err)
	}

	out := Event{Type: string(evt.Type)}
	if evt.Data == nil {
		return out, nil
	}

	switch out.Type {
	case CheckoutCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &sess); err != nil {
			return Event{}, fmt.Errorf("%s: %w: %v", op, ErrInvalidPayload, err)
		}
		if sess.Customer != nil {
			out.CustomerID = sess.Customer.ID
		}
	case SubscriptionDeleted, SubscriptionUpdated:
		var sub stripe.Subscription
		if err := json.Unmarshal(evt.Data.Raw, &sub); err != nil {
			return Event{}, fmt.Errorf("%s: %w: %v", op, ErrInvalidPayload, err)
		}
		if sub.Customer != nil {
			out.CustomerID = sub.Customer.ID
		}
		out.Status = string(sub.Status)
	}
	return out, nil
}
