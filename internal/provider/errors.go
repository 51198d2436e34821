// Package provider implements the upstream clients that produce wait time
// records: the structured queue API, the slot availability API, the
// health-records minutes API, the HTML scraper and the synthetic
// estimator. All clients gate their calls through the resilience
// registry and share one validated HTTPS transport.
package provider

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"

	"github.com/rotisserie/eris"
)

// Sentinel failures shared by all providers. Matched with errors.Is.
var (
	// ErrInvalidURL means scheme or host validation failed; no network
	// call was made.
	ErrInvalidURL = eris.New("provider: invalid url")

	// ErrRateLimited means the resilience registry refused the call
	// (interval window or open breaker).
	ErrRateLimited = eris.New("provider: rate limited")

	// ErrNoData means the upstream was reached but produced nothing
	// usable for this facility.
	ErrNoData = eris.New("provider: no data")

	// ErrDecode means the payload arrived but could not be decoded.
	ErrDecode = eris.New("provider: decode failure")
)

// APIError reports a non-2xx or semantically malformed upstream response.
type APIError struct {
	Message    string
	StatusCode int
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider: api error (status %d): %s", e.StatusCode, e.Message)
	}
	return "provider: api error: " + e.Message
}

// NetworkKind categorizes a transport-level failure.
type NetworkKind string

const (
	NetworkTimeout         NetworkKind = "timeout"
	NetworkOffline         NetworkKind = "offline"
	NetworkHostUnreachable NetworkKind = "host_unreachable"
	NetworkTLS             NetworkKind = "tls"
	NetworkOther           NetworkKind = "other"
)

// NetworkError wraps a transport-level failure with its category.
type NetworkError struct {
	Kind NetworkKind
	Err  error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("provider: network error (%s): %v", e.Kind, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// classifyNetworkError maps a raw transport error onto the taxonomy.
func classifyNetworkError(err error) *NetworkError {
	kind := NetworkOther

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = NetworkTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = NetworkTimeout
	default:
		var dnsErr *net.DNSError
		var tlsRecordErr tls.RecordHeaderError
		var certErr *tls.CertificateVerificationError
		var opErr *net.OpError
		switch {
		case errors.As(err, &dnsErr):
			kind = NetworkHostUnreachable
		case errors.As(err, &tlsRecordErr), errors.As(err, &certErr):
			kind = NetworkTLS
		case errors.As(err, &opErr):
			if opErr.Op == "dial" {
				kind = NetworkHostUnreachable
			}
		}
	}

	return &NetworkError{Kind: kind, Err: err}
}
