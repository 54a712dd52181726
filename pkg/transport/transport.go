// Package transport builds the HTTP client used to reach a smart connector.
//
// The client has no overall timeout because the long poll is held open by the
// server; per-request bounds are applied by the caller through contexts.
package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/net/http2"

	"github.com/TNO/knowledge-engine/pkg/config"
)

// New creates an HTTP client for cfg. With HTTP2 set, TLS connections
// negotiate HTTP/2; with a CA path, the server certificate is verified
// against it; with the circuit breaker enabled, requests fail fast after
// repeated server errors.
func New(cfg config.ConnectorConfig, logger *slog.Logger) (*http.Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	base := http.DefaultTransport.(*http.Transport).Clone()
	base.IdleConnTimeout = 90 * time.Second

	if cfg.CAPath != "" {
		pem, err := os.ReadFile(cfg.CAPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}
		base.TLSClientConfig = &tls.Config{
			RootCAs:    pool,
			MinVersion: tls.VersionTLS12,
		}
	}

	if cfg.HTTP2 {
		if err := http2.ConfigureTransport(base); err != nil {
			return nil, fmt.Errorf("failed to configure HTTP/2: %w", err)
		}
	}

	var rt http.RoundTripper = base
	if cfg.CircuitBreaker.Enabled {
		rt = NewBreakerTransport(rt, cfg.CircuitBreaker, "smart-connector", logger)
	}

	return &http.Client{Transport: rt}, nil
}

// errServerFailure marks a 5xx response as a failure for the breaker.
var errServerFailure = errors.New("smart connector server error")

// BreakerTransport is a RoundTripper guarded by a circuit breaker. Transport
// errors and 5xx responses count as failures; 5xx responses are still
// returned to the caller.
type BreakerTransport struct {
	next http.RoundTripper
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerTransport wraps next with a circuit breaker configured by cfg.
func NewBreakerTransport(next http.RoundTripper, cfg config.CircuitBreakerConfig, name string, logger *slog.Logger) *BreakerTransport {
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    time.Duration(cfg.Interval) * time.Second,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= cfg.ReadyToTripRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isCanceled(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				logger.Error("Circuit breaker opened, too many failures detected", "breaker", name, "from", from.String())
				return
			}
			logger.Info("Circuit breaker changed state", "breaker", name, "from", from.String(), "to", to.String())
		},
	}

	return &BreakerTransport{
		next: next,
		cb:   gobreaker.NewCircuitBreaker(st),
	}
}

// RoundTrip implements http.RoundTripper
func (t *BreakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	res, err := t.cb.Execute(func() (interface{}, error) {
		resp, err := t.next.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, errServerFailure
		}
		return resp, nil
	})

	if errors.Is(err, errServerFailure) {
		return res.(*http.Response), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.cb.Name(), err)
	}
	return res.(*http.Response), nil
}

// State returns the breaker state.
func (t *BreakerTransport) State() gobreaker.State {
	return t.cb.State()
}

// isCanceled reports whether err comes from a cancelled request; those do
// not count against the breaker.
func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
