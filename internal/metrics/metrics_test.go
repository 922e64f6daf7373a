package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"mygizmo/internal/events"
)

func TestMiddleware_CountsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusTeapot) })
	r.GET("/metrics", gin.WrapH(Handler()))

	before := testutil.ToFloat64(HTTPRequests.WithLabelValues("GET", "/items/:id", "418"))
	for _, id := range []string{"1", "2"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/items/"+id, nil))
		require.Equal(t, http.StatusTeapot, w.Code)
	}
	after := testutil.ToFloat64(HTTPRequests.WithLabelValues("GET", "/items/:id", "418"))
	require.Equal(t, before+2, after)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Positive(t, testutil.ToFloat64(HTTPRequests.WithLabelValues("GET", "unmatched", "404")))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, strings.Contains(w.Body.String(), "http_requests_total"))
}

func TestEventCounter(t *testing.T) {
	h := EventCounter()
	ctx := context.Background()

	stored := testutil.ToFloat64(ArtifactsStored.WithLabelValues("Image Studio"))
	active := testutil.ToFloat64(SubscriptionChanges.WithLabelValues("active"))
	deleted := testutil.ToFloat64(AccountsDeleted)

	require.NoError(t, h.Handle(ctx, events.Event{Type: events.ArtifactStored, Tool: "Image Studio"}))
	require.NoError(t, h.Handle(ctx, events.Event{Type: events.ArtifactStored, Tool: "Image Studio"}))
	require.NoError(t, h.Handle(ctx, events.Event{Type: events.SubscriptionChanged, Status: "active"}))
	require.NoError(t, h.Handle(ctx, events.Event{Type: events.AccountDeleted, StoredNames: []string{"a"}}))
	require.NoError(t, h.Handle(ctx, events.Event{Type: "something.else"}))

	require.Equal(t, stored+2, testutil.ToFloat64(ArtifactsStored.WithLabelValues("Image Studio")))
	require.Equal(t, active+1, testutil.ToFloat64(SubscriptionChanges.WithLabelValues("active")))
	require.Equal(t, deleted+1, testutil.ToFloat64(AccountsDeleted))
}
