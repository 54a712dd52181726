package tke

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/TNO/knowledge-engine/pkg/metrics"
)

// DefaultRequestTimeout bounds every request except the long poll, which the
// smart connector holds open until a handle request arrives or it sends a 202.
const DefaultRequestTimeout = 30 * time.Second

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for all requests. The client must
// not have a Timeout shorter than the smart connector's long-poll timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records client activity in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithRequestTimeout bounds non-poll requests. Zero disables the bound.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.requestTimeout = d
	}
}

// WithClock replaces the clock used to schedule lease renewals.
func WithClock(clock Clock) Option {
	return func(c *Client) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithErrorHandler is called with errors of background tasks: a terminated
// long poll or a failed lease renewal.
func WithErrorHandler(fn func(kb *KnowledgeBase, err error)) Option {
	return func(c *Client) {
		c.onError = fn
	}
}

// Clock schedules functions after a delay.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a scheduled function that can be cancelled.
type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
