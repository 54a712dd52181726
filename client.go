package tke

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/TNO/knowledge-engine/pkg/metrics"
	"github.com/TNO/knowledge-engine/pkg/types"
)

// Client talks to one smart connector REST endpoint, e.g. "http://localhost:8280/rest".
type Client struct {
	endpoint       string
	http           *http.Client
	logger         *slog.Logger
	metrics        *metrics.Metrics
	clock          Clock
	requestTimeout time.Duration
	onError        func(kb *KnowledgeBase, err error)
}

// RegisterOptions holds optional parameters for RegisterKnowledgeBase.
type RegisterOptions struct {
	// Reregister unregisters an existing knowledge base with the same id
	// instead of failing with ErrRegistrationConflict.
	Reregister bool
}

// NewClient creates a client for the smart connector at endpoint.
func NewClient(endpoint string, opts ...Option) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid endpoint %q: scheme must be http or https", endpoint)
	}

	c := &Client{
		endpoint:       strings.TrimRight(endpoint, "/"),
		http:           &http.Client{},
		logger:         slog.Default(),
		clock:          realClock{},
		requestTimeout: DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("endpoint", c.endpoint)

	return c, nil
}

// Endpoint returns the smart connector endpoint.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// RegisterKnowledgeBase registers a knowledge base and returns its handle.
// If reg requests a lease, the handle starts renewing it right away.
func (c *Client) RegisterKnowledgeBase(ctx context.Context, reg types.KnowledgeBaseRegistration, options *RegisterOptions) (*KnowledgeBase, error) {
	if options == nil {
		options = &RegisterOptions{}
	}
	if err := reg.Validate(); err != nil {
		return nil, kindError(ErrRegistration, "validate", err)
	}

	exists, err := c.exists(ctx, reg.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		if !options.Reregister {
			return nil, fmt.Errorf("%w: %s", ErrRegistrationConflict, reg.ID)
		}
		c.logger.Info("Unregistering existing knowledge base", "kb", reg.ID)
		if err := c.KnowledgeBaseHandle(reg.ID).Unregister(ctx); err != nil {
			return nil, err
		}
	}

	resp, err := c.do(ctx, http.MethodPost, "/sc", nil, reg, true)
	if err != nil {
		return nil, kindError(ErrRegistration, "POST /sc", err)
	}
	defer resp.Body.Close()
	if !isSuccess(resp) {
		return nil, responseError(resp, ErrRegistration, "POST /sc")
	}
	drain(resp)

	kb := newKnowledgeBase(c, reg)
	c.logger.Info("Registered knowledge base", "kb", reg.ID, "lease_seconds", reg.LeaseRenewalTime)
	if reg.LeaseRenewalTime > 0 {
		kb.scheduleLeaseRenewal()
	}
	return kb, nil
}

// KnowledgeBaseHandle returns a handle for an already registered knowledge
// base without contacting the smart connector. The handle does not renew a lease.
func (c *Client) KnowledgeBaseHandle(id string) *KnowledgeBase {
	return newKnowledgeBase(c, types.KnowledgeBaseRegistration{ID: id})
}

// KnowledgeBases lists the knowledge bases registered at the smart connector.
// A non-empty id restricts the listing to that knowledge base.
func (c *Client) KnowledgeBases(ctx context.Context, id string) ([]types.SmartConnector, error) {
	resp, err := c.do(ctx, http.MethodGet, "/sc", kbHeaders(id), nil, true)
	if err != nil {
		return nil, kindError(ErrListing, "GET /sc", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, responseError(resp, ErrListing, "GET /sc")
	}

	var scs []types.SmartConnector
	if err := json.NewDecoder(resp.Body).Decode(&scs); err != nil {
		return nil, kindError(ErrListing, "decode knowledge bases", err)
	}
	return scs, nil
}

// exists reports whether a knowledge base with id is registered. Any non-200
// response means it is not.
func (c *Client) exists(ctx context.Context, id string) (bool, error) {
	resp, err := c.do(ctx, http.MethodGet, "/sc", kbHeaders(id), nil, true)
	if err != nil {
		return false, kindError(ErrRegistration, "GET /sc", err)
	}
	defer resp.Body.Close()
	drain(resp)
	return resp.StatusCode == http.StatusOK, nil
}

// do sends a request with an optional JSON body. bounded requests are
// limited by the request timeout; the long poll is not.
func (c *Client) do(ctx context.Context, method, path string, headers map[string]string, body any, bounded bool) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	var cancel context.CancelFunc
	if bounded && c.requestTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reader)
	if err != nil {
		if cancel != nil {
			cancel()
		}
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	op := method + " " + path
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(op, 0, time.Since(start))
		if cancel != nil {
			cancel()
		}
		return nil, err
	}
	c.metrics.ObserveRequest(op, resp.StatusCode, time.Since(start))

	if cancel != nil {
		resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
	}
	return resp, nil
}

func (c *Client) reportError(kb *KnowledgeBase, err error) {
	if c.onError != nil {
		c.onError(kb, err)
	}
}

// cancelBody releases the request context once the body is closed.
type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

func kbHeaders(id string) map[string]string {
	headers := map[string]string{}
	if id != "" {
		headers[types.HeaderKnowledgeBaseID] = id
	}
	return headers
}

func isSuccess(resp *http.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 64 << 10

func responseError(resp *http.Response, kind error, op string) *ResponseError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &ResponseError{
		Kind:       kind,
		Op:         op,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}

// drain consumes the body so the connection can be reused.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
}
