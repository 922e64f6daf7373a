package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"mygizmo/internal/billing"
	"mygizmo/internal/events"
	"mygizmo/internal/storage"
)

func (s *Server) url(path string) string {
	return strings.TrimRight(s.cfg.BaseURL, "/") + path
}

// customerID returns the billing customer of the signed-in account.
func (s *Server) customerID(c *gin.Context) (string, error) {
	acc, err := s.db.GetAccountByID(c.Request.Context(), identity(c).AccountID)
	if err != nil {
		return "", err
	}
	if acc.StripeCustomerID == nil {
		return "", nil
	}
	return *acc.StripeCustomerID, nil
}

func (s *Server) handleCheckoutSession(c *gin.Context) {
	customer, err := s.customerID(c)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		return
	}
	id, err := s.billing.CreateCheckoutSession(c.Request.Context(), customer, s.url("/success"), s.url("/cancel"))
	if err != nil {
		log.Warn().Err(err).Msg("checkout session failed")
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

func (s *Server) handlePortalSession(c *gin.Context) {
	customer, err := s.customerID(c)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		return
	}
	url, err := s.billing.CreatePortalSession(c.Request.Context(), customer, s.url("/dashboard"))
	if err != nil {
		log.Warn().Err(err).Msg("portal session failed")
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (s *Server) handleCheckoutResult(page, message string) gin.HandlerFunc {
	category := "success"
	if page == "cancel" {
		category = "info"
	}
	return func(c *gin.Context) {
		addFlash(c, category, message)
		s.render(c, http.StatusOK, page, "Subscription", nil)
	}
}

// handleStripeWebhook mirrors subscription changes onto the account.
// Unknown customers and event types are acknowledged.
func (s *Server) handleStripeWebhook(c *gin.Context) {
	ctx := c.Request.Context()

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.String(http.StatusBadRequest, "Invalid payload")
		return
	}
	evt, err := s.billing.ParseWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		log.Warn().Err(err).Msg("rejected webhook")
		if errors.Is(err, billing.ErrInvalidSignature) {
			c.String(http.StatusBadRequest, "Invalid signature")
			return
		}
		c.String(http.StatusBadRequest, "Invalid payload")
		return
	}

	status, ok := evt.SubscriptionStatus()
	if !ok {
		log.Debug().Str("type", evt.Type).Msg("unhandled webhook event type")
		c.String(http.StatusOK, "OK")
		return
	}

	acc, err := s.db.SetSubscriptionStatus(ctx, evt.CustomerID, status)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			log.Warn().Str("customer_id", evt.CustomerID).Str("type", evt.Type).Msg("webhook for unknown customer")
			c.String(http.StatusOK, "OK")
			return
		}
		log.Error().Err(err).Str("customer_id", evt.CustomerID).Msg("subscription update failed")
		c.String(http.StatusInternalServerError, "Update failed")
		return
	}

	log.Info().Int64("account_id", acc.ID).Str("status", status).Msg("subscription status updated")
	if s.events != nil {
		err := s.events.Publish(ctx, events.Event{
			Type:      events.SubscriptionChanged,
			AccountID: acc.ID,
			Status:    status,
		})
		if err != nil {
			log.Warn().Err(err).Msg("failed to publish subscription change")
		}
	}
	c.String(http.StatusOK, "OK")
}
