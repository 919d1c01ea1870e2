package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qboxio/qbox/pkg/reqtree"
)

func TestDoSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Reply", "yes")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := New(DefaultCircuitBreakerConfig())
	resp, err := c.Do(context.Background(), Request{
		Method:  http.MethodGet,
		URL:     srv.URL,
		Headers: reqtree.NewHeaders(nil),
		Timeout: time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, []byte("ok"), resp.Body)
	v, ok := resp.Headers.Get("x-reply")
	require.True(t, ok)
	assert.Equal(t, "yes", v)
}

func TestDoTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(DefaultCircuitBreakerConfig())
	_, err := c.Do(context.Background(), Request{
		Method:  http.MethodGet,
		URL:     srv.URL,
		Headers: reqtree.NewHeaders(nil),
		Timeout: 5 * time.Millisecond,
	})
	assert.ErrorIs(t, err, TimeoutError)
}

func TestDoTransportError(t *testing.T) {
	c := New(DefaultCircuitBreakerConfig())
	_, err := c.Do(context.Background(), Request{
		Method:  http.MethodGet,
		URL:     "http://127.0.0.1:1",
		Headers: reqtree.NewHeaders(nil),
		Timeout: time.Second,
	})
	require.Error(t, err)
	var te *TransportError
	assert.ErrorAs(t, err, &te)
}
