// Package connectortest starts a fake smart connector for tests.
//
//	sc := connectortest.New(t)
//	client, _ := tke.NewClient(sc.Endpoint)
package connectortest

import (
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/TNO/knowledge-engine/pkg/config"
	"github.com/TNO/knowledge-engine/pkg/server"
	"github.com/TNO/knowledge-engine/pkg/server/runtime"
)

// DefaultPollTimeout is the heartbeat interval of long polls in tests.
const DefaultPollTimeout = 200 * time.Millisecond

// Connector is a running fake smart connector.
type Connector struct {
	// Endpoint is the REST base URL to pass to tke.NewClient.
	Endpoint string

	httpServer *httptest.Server
	server     *server.Server
}

type options struct {
	pollTimeout time.Duration
	logger      *slog.Logger
}

// Option configures a Connector.
type Option func(*options)

// WithPollTimeout sets the long-poll heartbeat interval.
func WithPollTimeout(d time.Duration) Option {
	return func(o *options) { o.pollTimeout = d }
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// New starts a fake smart connector that is shut down when the test ends.
func New(t testing.TB, opts ...Option) *Connector {
	t.Helper()

	o := options{pollTimeout: DefaultPollTimeout, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	srv := server.New(config.FakeConnectorConfig{
		Mode:        gin.TestMode,
		PollTimeout: o.pollTimeout,
	}, o.logger)
	srv.Setup()

	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		hs.CloseClientConnections()
		hs.Close()
	})

	return &Connector{
		Endpoint:   hs.URL + server.BasePath,
		httpServer: hs,
		server:     srv,
	}
}

// Runtime returns the in-memory runtime, for inspecting or seeding state.
func (c *Connector) Runtime() *runtime.Runtime {
	return c.server.Runtime()
}

// URL returns the server root URL.
func (c *Connector) URL() string {
	return c.httpServer.URL
}
