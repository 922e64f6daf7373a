package bgremove

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPRemover_Remove(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		f, _, err := r.FormFile("file")
		require.NoError(t, err)
		data, err := io.ReadAll(f)
		require.NoError(t, err)
		require.Equal(t, "raw-image", string(data))

		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png-without-background"))
	}))
	defer srv.Close()

	out, err := NewHTTPRemover(srv.URL, srv.Client()).Remove(context.Background(), []byte("raw-image"))
	require.NoError(t, err)
	require.Equal(t, "png-without-background", string(out))
}

func TestHTTPRemover_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model crashed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewHTTPRemover(srv.URL, nil).Remove(context.Background(), []byte("x"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "model crashed")
}

func TestHTTPRemover_NotConfigured(t *testing.T) {
	_, err := NewHTTPRemover("", nil).Remove(context.Background(), []byte("x"))
	require.ErrorIs(t, err, ErrNotConfigured)
}
