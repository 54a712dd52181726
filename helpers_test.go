package tke

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/TNO/knowledge-engine/pkg/types"
)

const (
	testKB  = "http://example.org/kb1"
	testKI  = "http://example.org/kb1/interaction/answer"
	pattern = "?a <http://example.org/isRelatedTo> ?b ."
)

type recordedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// scriptedConnector is an httptest server that records every request and
// answers through a per-test handler.
type scriptedConnector struct {
	mu       sync.Mutex
	requests []recordedRequest
	handle   func(w http.ResponseWriter, r *http.Request, body []byte)
	server   *httptest.Server
}

func newScriptedConnector(t *testing.T, handle func(w http.ResponseWriter, r *http.Request, body []byte)) *scriptedConnector {
	t.Helper()
	sc := &scriptedConnector{handle: handle}
	sc.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		path := strings.TrimPrefix(r.URL.Path, "/rest")

		sc.mu.Lock()
		sc.requests = append(sc.requests, recordedRequest{Method: r.Method, Path: path, Header: r.Header.Clone(), Body: body})
		sc.mu.Unlock()

		r.URL.Path = path
		sc.handle(w, r, body)
	}))
	t.Cleanup(func() {
		sc.server.CloseClientConnections()
		sc.server.Close()
	})
	return sc
}

func (sc *scriptedConnector) endpoint() string {
	return sc.server.URL + "/rest"
}

func (sc *scriptedConnector) requestsFor(method, path string) []recordedRequest {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	var out []recordedRequest
	for _, r := range sc.requests {
		if r.Method == method && r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func (sc *scriptedConnector) count(method, path string) int {
	return len(sc.requestsFor(method, path))
}

func (sc *scriptedConnector) sequence() []string {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	out := make([]string, 0, len(sc.requests))
	for _, r := range sc.requests {
		out = append(out, r.Method+" "+r.Path)
	}
	return out
}

func newTestClient(t *testing.T, endpoint string, opts ...Option) *Client {
	t.Helper()
	c, err := NewClient(endpoint, opts...)
	require.NoError(t, err)
	return c
}

func registration() types.KnowledgeBaseRegistration {
	return types.KnowledgeBaseRegistration{ID: testKB, Name: "KB1", Description: "test knowledge base"}
}

// syncBuffer is a bytes.Buffer safe for concurrent logging and reading.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func bufferLogger(buf *syncBuffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// fakeClock records scheduled functions instead of running them.
type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	timer := &fakeTimer{d: d, f: f}
	c.timers = append(c.timers, timer)
	return &clockTimer{clock: c, timer: timer}
}

type clockTimer struct {
	clock *fakeClock
	timer *fakeTimer
}

func (t *clockTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	was := !t.timer.stopped
	t.timer.stopped = true
	return was
}

func (c *fakeClock) scheduled() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.timers))
	for i, t := range c.timers {
		out[i] = t.d
	}
	return out
}

// fire runs the i-th scheduled function on the calling goroutine.
func (c *fakeClock) fire(i int) {
	c.mu.Lock()
	f := c.timers[i].f
	c.mu.Unlock()
	f()
}

func (c *fakeClock) stopped(i int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timers[i].stopped
}

func waitDone(t *testing.T, kb *KnowledgeBase) {
	t.Helper()
	select {
	case <-kb.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("long poll did not terminate")
	}
}
