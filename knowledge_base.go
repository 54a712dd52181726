package tke

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/TNO/knowledge-engine/pkg/types"
)

// KnowledgeBase is a handle for one knowledge base registered at a smart
// connector. It owns the handlers of its reactive interactions, the long-poll
// worker that dispatches to them and the lease renewal timer.
//
// Close stops both background tasks. Close must not be called from a Handler.
type KnowledgeBase struct {
	client *Client
	reg    types.KnowledgeBaseRegistration
	logger *slog.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	stopping atomic.Bool // set by Unregister

	mu       sync.RWMutex
	handlers map[string]Handler
	polling  bool
	closed   bool
	done     chan struct{}
	err      error

	leaseMu      sync.Mutex
	leaseTimer   Timer
	leaseExpires time.Time
}

func newKnowledgeBase(c *Client, reg types.KnowledgeBaseRegistration) *KnowledgeBase {
	ctx, cancel := context.WithCancel(context.Background())
	return &KnowledgeBase{
		client:   c,
		reg:      reg,
		logger:   c.logger.With("kb", reg.ID),
		ctx:      ctx,
		cancel:   cancel,
		handlers: make(map[string]Handler),
		done:     make(chan struct{}),
	}
}

// ID returns the knowledge base id.
func (kb *KnowledgeBase) ID() string {
	return kb.reg.ID
}

// Registration returns the registration the handle was created with.
func (kb *KnowledgeBase) Registration() types.KnowledgeBaseRegistration {
	return kb.reg
}

// Unregister deletes the knowledge base at the smart connector and, on
// success, closes the handle.
func (kb *KnowledgeBase) Unregister(ctx context.Context) error {
	kb.stopping.Store(true)
	resp, err := kb.client.do(ctx, http.MethodDelete, "/sc", kbHeaders(kb.reg.ID), nil, true)
	if err != nil {
		kb.stopping.Store(false)
		return kindError(ErrUnregistration, "DELETE /sc", err)
	}
	defer resp.Body.Close()
	if !isSuccess(resp) {
		kb.stopping.Store(false)
		return responseError(resp, ErrUnregistration, "DELETE /sc")
	}
	drain(resp)

	kb.logger.Info("Unregistered knowledge base")
	kb.Close()
	return nil
}

// Close stops the long poll and the lease renewal and waits for the long
// poll to return. It does not unregister the knowledge base. Close is
// idempotent.
func (kb *KnowledgeBase) Close() {
	kb.mu.Lock()
	if kb.closed {
		kb.mu.Unlock()
		<-kb.done
		return
	}
	kb.closed = true
	polling := kb.polling
	kb.mu.Unlock()

	kb.cancel()
	kb.stopLeaseRenewal()

	if !polling {
		close(kb.done)
		return
	}
	<-kb.done
}

// Done is closed when the long poll has terminated, or when the handle is
// closed if polling never started.
func (kb *KnowledgeBase) Done() <-chan struct{} {
	return kb.done
}

// Err returns the error that terminated the long poll. It is nil while the
// poll is running and after a clean Close.
func (kb *KnowledgeBase) Err() error {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.err
}

// Polling reports whether the long poll was started.
func (kb *KnowledgeBase) Polling() bool {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.polling
}

func (kb *KnowledgeBase) setHandler(id string, h Handler) bool {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	if kb.closed {
		return false
	}
	kb.handlers[id] = h
	if !kb.polling {
		kb.polling = true
		go kb.pollLoop()
	}
	return true
}

func (kb *KnowledgeBase) handler(id string) Handler {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.handlers[id]
}

func (kb *KnowledgeBase) removeHandler(id string) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	delete(kb.handlers, id)
}
