package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"mygizmo/internal/events"
)

var (
	ArtifactsStored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "artifacts_stored_total",
		Help: "Artifacts kept for signed-in users, by tool.",
	}, []string{"tool"})

	SubscriptionChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subscription_changes_total",
		Help: "Subscription status changes applied from billing webhooks, by new status.",
	}, []string{"status"})

	AccountsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "accounts_deleted_total",
		Help: "Accounts deleted by their owners.",
	})
)

// EventCounter counts domain events as they are consumed.
func EventCounter() events.Handler {
	return events.HandlerFunc(func(_ context.Context, e events.Event) error {
		switch e.Type {
		case events.ArtifactStored:
			ArtifactsStored.WithLabelValues(e.Tool).Inc()
		case events.SubscriptionChanged:
			SubscriptionChanges.WithLabelValues(e.Status).Inc()
		case events.AccountDeleted:
			AccountsDeleted.Inc()
		}
		return nil
	})
}
