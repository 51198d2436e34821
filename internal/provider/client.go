package provider

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/carelane/waitboard/internal/model"
	"github.com/carelane/waitboard/internal/resilience"
)

// Client produces a wait time record for one facility.
type Client interface {
	Kind() Kind
	Fetch(ctx context.Context, f model.Facility) (*model.WaitTimeRecord, error)
}

// TransportConfig tunes the shared HTTP transport.
type TransportConfig struct {
	// RequestTimeout bounds a single HTTP request. Default: 30s.
	RequestTimeout time.Duration

	// FetchBudget bounds one logical resource fetch including retries.
	// Default: 60s.
	FetchBudget time.Duration

	// HostRate and HostBurst configure the per-host politeness limiter.
	// Defaults: 1 req/s, burst 2.
	HostRate  rate.Limit
	HostBurst int

	UserAgent string
}

// Transport is the shared HTTPS fetch path for all network providers:
// allow-list validation happens in the callers, gating happens here.
// Every logical fetch consults the resilience registry exactly once and
// reports its outcome back once, so retries inside a fetch do not skew
// the breaker's consecutive-failure count.
type Transport struct {
	http     *http.Client
	registry *resilience.Registry
	cfg      TransportConfig

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	// nowFunc allows test injection of time for record timestamps.
	nowFunc func() time.Time
}

// timeNow is the clock signature handed to normalization helpers.
type timeNow = func() time.Time

// NewTransport creates the shared transport. The registry must not be nil.
func NewTransport(registry *resilience.Registry, cfg TransportConfig) *Transport {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.FetchBudget <= 0 {
		cfg.FetchBudget = 60 * time.Second
	}
	if cfg.HostRate <= 0 {
		cfg.HostRate = 1
	}
	if cfg.HostBurst <= 0 {
		cfg.HostBurst = 2
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "waitboard/1.0"
	}
	return &Transport{
		http: &http.Client{
			Timeout: cfg.RequestTimeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		registry: registry,
		cfg:      cfg,
		limiters: make(map[string]*rate.Limiter),
		nowFunc:  time.Now,
	}
}

// WithHTTPClient swaps the underlying HTTP client. Used by tests to
// trust an httptest TLS server's certificate.
func (t *Transport) WithHTTPClient(hc *http.Client) *Transport {
	t.http = hc
	return t
}

// WithNow sets a fixed clock for testing.
func (t *Transport) WithNow(now func() time.Time) *Transport {
	t.nowFunc = now
	return t
}

// now returns the transport clock.
func (t *Transport) now() timeNow {
	return t.nowFunc
}

// FetchBytes performs one gated GET of u with the given number of extra
// retry attempts. The endpoint key for gating is the full URL string.
func (t *Transport) FetchBytes(ctx context.Context, u *url.URL, retries int) ([]byte, error) {
	key := u.String()
	// Check-and-mark in one step so two concurrent fetches of the same
	// endpoint can never both pass a half-open breaker.
	if !t.registry.Acquire(key) {
		return nil, eris.Wrapf(ErrRateLimited, "endpoint %s", key)
	}

	ctx, cancel := context.WithTimeout(ctx, t.cfg.FetchBudget)
	defer cancel()

	body, err := resilience.DoVal(ctx, resilience.RetryConfig{
		MaxAttempts:    retries + 1,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     8 * time.Second,
		ShouldRetry:    retryableFetchError,
	}, func(ctx context.Context) ([]byte, error) {
		return t.get(ctx, u)
	})
	if err != nil {
		t.registry.RecordFailure(key)
		return nil, err
	}
	t.registry.RecordSuccess(key)
	return body, nil
}

func (t *Transport) get(ctx context.Context, u *url.URL) ([]byte, error) {
	if err := t.limiter(u.Hostname()).Wait(ctx); err != nil {
		return nil, classifyNetworkError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "provider: build request")
	}
	req.Header.Set("User-Agent", t.cfg.UserAgent)
	req.Header.Set("Accept", "application/json, text/html;q=0.9, */*;q=0.5")

	resp, err := t.http.Do(req)
	if err != nil {
		return nil, classifyNetworkError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, classifyNetworkError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Message: http.StatusText(resp.StatusCode), StatusCode: resp.StatusCode}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(apiErr, resp.StatusCode)
		}
		return nil, apiErr
	}

	return body, nil
}

// retryableFetchError retries transient statuses and recoverable network
// failures; InvalidURL, decode and client-level API errors never retry.
func retryableFetchError(err error) bool {
	var ne *NetworkError
	if errors.As(err, &ne) {
		switch ne.Kind {
		case NetworkTimeout, NetworkOther, NetworkOffline:
			return true
		default:
			return false
		}
	}
	return resilience.IsTransient(err)
}

// limiter returns the politeness limiter for a host, creating it lazily.
func (t *Transport) limiter(host string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.limiters[host]
	if !ok {
		l = rate.NewLimiter(t.cfg.HostRate, t.cfg.HostBurst)
		t.limiters[host] = l
	}
	return l
}
