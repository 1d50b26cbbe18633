package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eosearch/internal/errdefs"
)

func TestClientGetAndPost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		switch r.Method {
		case http.MethodGet:
			_, _ = io.WriteString(w, `{"ok":true}`)
		case http.MethodPost:
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]any{"echo": body["q"]})
		}
	}))
	defer srv.Close()

	c := NewClient(Options{})
	headers := map[string]string{"X-Api-Key": "secret"}

	resp, err := c.Get(context.Background(), srv.URL, headers)
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.JSONEq(t, `{"ok":true}`, string(resp.Body))

	resp, err = c.Post(context.Background(), srv.URL, map[string]any{"q": "x"}, headers)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.JSONEq(t, `{"echo":"x"}`, string(resp.Body))
}

func TestResponseCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	resp, err := NewClient(Options{}).Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)

	err = resp.Check("probe", srv.URL)
	var te *errdefs.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusNotFound, te.StatusCode)
	assert.Contains(t, err.Error(), "nope")
}

func TestClientNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(Options{Timeout: time.Second}).Get(context.Background(), url, nil)
	var te *errdefs.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.MethodGet, te.Op)
}

func TestClientRateLimitHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(Options{RPS: 0.001, Burst: 1})
	_, err := c.Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Get(ctx, srv.URL, nil)
	require.Error(t, err)
}

func TestServerServesHandler(t *testing.T) {
	s, err := StartServer(0, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "up")
	}))
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- s.Serve() }()

	resp, err := NewClient(Options{}).Get(context.Background(), fmt.Sprintf("http://127.0.0.1:%d", s.Port()), nil)
	require.NoError(t, err)
	assert.Equal(t, "up", string(resp.Body))

	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, <-done)
}
