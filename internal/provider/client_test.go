package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelane/waitboard/internal/resilience"
)

// newTestTransport builds a transport wired to an httptest TLS server,
// with a generous politeness limit so tests are not throttled.
func newTestTransport(srv *httptest.Server) (*Transport, *resilience.Registry) {
	registry := resilience.NewRegistry(resilience.DefaultRegistryConfig())
	tr := NewTransport(registry, TransportConfig{
		HostRate:  1000,
		HostBurst: 1000,
	}).WithHTTPClient(srv.Client())
	return tr, registry
}

// serverPolicy allows the httptest server's host on both lists.
func serverPolicy(srv *httptest.Server) HostPolicy {
	u, _ := url.Parse(srv.URL)
	return HostPolicy{
		APIHosts:     []string{u.Hostname()},
		WebsiteHosts: []string{u.Hostname()},
	}
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestFetchBytes_Success(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Contains(t, r.Header.Get("User-Agent"), "waitboard")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tr, registry := newTestTransport(srv)
	body, err := tr.FetchBytes(context.Background(), mustParse(t, srv.URL+"/waits"), 0)

	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))

	st := registry.States()[srv.URL+"/waits"]
	assert.False(t, st.Open)
	assert.Zero(t, st.ConsecutiveFailures)
}

func TestFetchBytes_RefusedInsideCallInterval(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`ok`))
	}))
	defer srv.Close()

	tr, _ := newTestTransport(srv)
	u := mustParse(t, srv.URL+"/waits")

	_, err := tr.FetchBytes(context.Background(), u, 0)
	require.NoError(t, err)

	// Second call lands inside the 2s endpoint interval.
	_, err = tr.FetchBytes(context.Background(), u, 0)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, int64(1), hits.Load(), "refused call must not reach the network")
}

func TestFetchBytes_RetriesTransientStatus(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`recovered`))
	}))
	defer srv.Close()

	tr, registry := newTestTransport(srv)
	body, err := tr.FetchBytes(context.Background(), mustParse(t, srv.URL+"/flaky"), 2)

	require.NoError(t, err)
	assert.Equal(t, "recovered", string(body))
	assert.Equal(t, int64(2), hits.Load())

	// Retries happen inside one logical fetch: one attempt, one success.
	st := registry.States()[srv.URL+"/flaky"]
	assert.Zero(t, st.ConsecutiveFailures)
}

func TestFetchBytes_NonTransientStatusDoesNotRetry(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	tr, registry := newTestTransport(srv)
	_, err := tr.FetchBytes(context.Background(), mustParse(t, srv.URL+"/gone"), 2)

	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, int64(1), hits.Load())

	st := registry.States()[srv.URL+"/gone"]
	assert.Equal(t, 1, st.ConsecutiveFailures)
}

func TestFetchBytes_FailuresOpenBreaker(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	clock := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	registry := resilience.NewRegistry(resilience.DefaultRegistryConfig()).
		WithNow(func() time.Time { return clock })
	tr := NewTransport(registry, TransportConfig{HostRate: 1000, HostBurst: 1000}).
		WithHTTPClient(srv.Client())
	u := mustParse(t, srv.URL+"/bad")

	for i := 0; i < 3; i++ {
		_, err := tr.FetchBytes(context.Background(), u, 0)
		require.Error(t, err)
		clock = clock.Add(5 * time.Second)
	}

	// Breaker is open now; the next call is refused without a request.
	_, err := tr.FetchBytes(context.Background(), u, 0)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.True(t, registry.States()[u.String()].Open)
}

func TestFetchBytes_ClassifiesNetworkErrors(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // immediately closed: connection refused

	registry := resilience.NewRegistry(resilience.DefaultRegistryConfig())
	tr := NewTransport(registry, TransportConfig{HostRate: 1000, HostBurst: 1000})

	_, err := tr.FetchBytes(context.Background(), mustParse(t, srv.URL+"/x"), 0)
	require.Error(t, err)
	var ne *NetworkError
	assert.ErrorAs(t, err, &ne)
}
