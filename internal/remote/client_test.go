package remote

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"curiesuite/internal/errors"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(retries int) *Client {
	return New(nil, Options{Service: "test", Timeout: 5 * time.Second, MaxRetries: retries, RetryBase: time.Millisecond}, zerolog.Nop())
}

func TestDoRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, "FINISHED")
	}))
	defer srv.Close()

	body, err := newTestClient(3).Text(context.Background(), Get(srv.URL))
	require.NoError(t, err)
	assert.Equal(t, "FINISHED", body)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDoGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(2).Text(context.Background(), Get(srv.URL))
	require.Error(t, err)
	assert.Equal(t, errors.CodeExternalService, errors.GetCode(err))
	assert.Equal(t, int32(3), calls.Load())
}

func TestDoDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "invalid parameters", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestClient(3).Text(context.Background(), Get(srv.URL))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid parameters")
	assert.Equal(t, int32(1), calls.Load())
}

func TestPostFormResendsBody(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "a@b.org", r.PostForm.Get("email"))
		assert.Equal(t, "curiesuite", r.UserAgent())
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		io.WriteString(w, "job-1")
	}))
	defer srv.Close()

	body, err := newTestClient(1).Text(context.Background(), PostForm(srv.URL, url.Values{"email": {"a@b.org"}}))
	require.NoError(t, err)
	assert.Equal(t, "job-1", body)
}

func TestDoHonorsCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(nil, Options{Service: "test", RetryBase: time.Second}, zerolog.Nop()).Do(ctx, Get(srv.URL))
	assert.ErrorIs(t, err, context.Canceled)
}
