// Package runtime is an in-memory knowledge engine runtime backing the fake
// smart connector. It keeps registered knowledge bases and their knowledge
// interactions, queues handle requests for long-polling knowledge bases and
// routes ASK and POST calls to every other knowledge base whose ANSWER or
// REACT interaction has an identical graph pattern.
//
// Matching is exact string comparison of patterns; there is no reasoning.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/TNO/knowledge-engine/pkg/types"
)

// Errors returned by Runtime. The HTTP layer maps them to status codes.
var (
	ErrInvalid        = errors.New("invalid request")
	ErrNotFound       = errors.New("not found")
	ErrSuspended      = errors.New("knowledge base suspended")
	ErrAlreadyPolling = errors.New("only one connection per Knowledge-Base-Id is allowed and we already have one")
	ErrStopping       = errors.New("this long polling request is cancelled because the knowledge base is stopping")
)

// Exchange statuses reported in exchange info.
const (
	ExchangeSucceeded = "SUCCEEDED"
	ExchangeFailed    = "FAILED"
)

// handleQueueSize bounds the handle requests queued for one knowledge base.
const handleQueueSize = 64

// ExchangeInfo describes one exchange with an answering or reacting
// knowledge base.
type ExchangeInfo struct {
	KnowledgeBaseID        string           `json:"knowledgeBaseId"`
	KnowledgeInteractionID string           `json:"knowledgeInteractionId"`
	ExchangeStart          int64            `json:"exchangeStart"`
	ExchangeEnd            int64            `json:"exchangeEnd"`
	Status                 string           `json:"status"`
	FailedMessage          string           `json:"failedMessage,omitempty"`
	BindingSet             types.BindingSet `json:"bindingSet"`
}

// Result is the outcome of Ask or Post.
type Result struct {
	BindingSet       types.BindingSet `json:"bindingSet"`
	ResultBindingSet types.BindingSet `json:"resultBindingSet,omitempty"`
	ExchangeInfo     []ExchangeInfo   `json:"exchangeInfo"`
}

// Runtime holds all knowledge bases of one fake smart connector.
type Runtime struct {
	logger      *slog.Logger
	pollTimeout time.Duration
	now         func() time.Time

	mu         sync.Mutex
	kbs        map[string]*knowledgeBase
	order      []string
	suspended  map[string]bool
	nextHandle int
}

type knowledgeBase struct {
	info         types.SmartConnector
	interactions map[string]types.KnowledgeInteractionInfo
	kiOrder      []string
	queue        chan *pendingRequest
	pending      map[int]*pendingRequest
	polling      bool
	stopped      chan struct{}
	leaseExpires time.Time
}

type pendingRequest struct {
	req      types.HandleRequest
	response chan types.BindingSet
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) { r.logger = logger }
}

// WithNow sets the time source used for leases and exchange timestamps.
func WithNow(now func() time.Time) Option {
	return func(r *Runtime) { r.now = now }
}

// New creates a runtime. A long poll without pending requests is answered
// with a heartbeat after pollTimeout.
func New(pollTimeout time.Duration, opts ...Option) *Runtime {
	r := &Runtime{
		logger:      slog.Default(),
		pollTimeout: pollTimeout,
		now:         time.Now,
		kbs:         make(map[string]*knowledgeBase),
		suspended:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// PollTimeout returns the heartbeat interval of long polls.
func (r *Runtime) PollTimeout() time.Duration {
	return r.pollTimeout
}

// Register adds a knowledge base. Registering an id twice is invalid.
func (r *Runtime) Register(reg types.KnowledgeBaseRegistration) error {
	if err := reg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.expireLocked()

	if _, ok := r.kbs[reg.ID]; ok {
		return fmt.Errorf("%w: a smart connector with knowledge base id %s already exists", ErrInvalid, reg.ID)
	}
	kb := &knowledgeBase{
		info: types.SmartConnector{
			KnowledgeBaseID:          reg.ID,
			KnowledgeBaseName:        reg.Name,
			KnowledgeBaseDescription: reg.Description,
			LeaseRenewalTime:         reg.LeaseRenewalTime,
		},
		interactions: make(map[string]types.KnowledgeInteractionInfo),
		queue:        make(chan *pendingRequest, handleQueueSize),
		pending:      make(map[int]*pendingRequest),
		stopped:      make(chan struct{}),
	}
	if reg.LeaseRenewalTime > 0 {
		kb.leaseExpires = r.now().Add(reg.Lease())
	}
	r.kbs[reg.ID] = kb
	r.order = append(r.order, reg.ID)
	delete(r.suspended, reg.ID)

	r.logger.Info("Registered knowledge base", "kb", reg.ID, "lease_seconds", reg.LeaseRenewalTime)
	return nil
}

// Exists reports whether a knowledge base with id is registered.
func (r *Runtime) Exists(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expireLocked()
	_, ok := r.kbs[id]
	return ok
}

// List returns all knowledge bases, or only the one with id when id is set.
func (r *Runtime) List(id string) ([]types.SmartConnector, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expireLocked()

	if id != "" {
		kb, err := r.lookupLocked(id)
		if err != nil {
			return nil, err
		}
		return []types.SmartConnector{kb.info}, nil
	}

	scs := make([]types.SmartConnector, 0, len(r.order))
	for _, kbID := range r.order {
		scs = append(scs, r.kbs[kbID].info)
	}
	return scs, nil
}

// Delete removes a knowledge base. Its long poll ends with ErrStopping and
// exchanges waiting on it fail.
func (r *Runtime) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expireLocked()

	if _, err := r.lookupLocked(id); err != nil {
		return err
	}
	r.removeLocked(id)
	r.logger.Info("Unregistered knowledge base", "kb", id)
	return nil
}

// AddInteraction registers ki for the knowledge base and returns its id. A
// named interaction gets a stable id derived from the name.
func (r *Runtime) AddInteraction(kbID string, ki types.KnowledgeInteraction) (string, error) {
	if err := ki.Validate(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.expireLocked()

	kb, err := r.lookupLocked(kbID)
	if err != nil {
		return "", err
	}

	suffix := ki.Name
	if suffix == "" {
		suffix = uuid.New().String()
	}
	id := strings.TrimRight(kbID, "/") + "/interaction/" + suffix
	if _, ok := kb.interactions[id]; ok {
		return "", fmt.Errorf("%w: knowledge interaction %s already exists", ErrInvalid, id)
	}

	kb.interactions[id] = types.KnowledgeInteractionInfo{KnowledgeInteraction: ki, ID: id}
	kb.kiOrder = append(kb.kiOrder, id)
	r.logger.Info("Registered knowledge interaction", "kb", kbID, "ki", id, "type", ki.Kind.String())
	return id, nil
}

// RemoveInteraction unregisters the interaction kiID.
func (r *Runtime) RemoveInteraction(kbID, kiID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expireLocked()

	kb, err := r.lookupLocked(kbID)
	if err != nil {
		return err
	}
	if _, ok := kb.interactions[kiID]; !ok {
		return fmt.Errorf("%w: knowledge interaction %s", ErrNotFound, kiID)
	}
	delete(kb.interactions, kiID)
	kb.kiOrder = slices.DeleteFunc(kb.kiOrder, func(id string) bool { return id == kiID })
	return nil
}

// Interactions lists the interactions of a knowledge base in registration order.
func (r *Runtime) Interactions(kbID string) ([]types.KnowledgeInteractionInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expireLocked()

	kb, err := r.lookupLocked(kbID)
	if err != nil {
		return nil, err
	}
	kis := make([]types.KnowledgeInteractionInfo, 0, len(kb.kiOrder))
	for _, id := range kb.kiOrder {
		kis = append(kis, kb.interactions[id])
	}
	return kis, nil
}

// RenewLease extends the lease of a knowledge base by its lease renewal time.
func (r *Runtime) RenewLease(kbID string) (*types.Lease, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expireLocked()

	kb, err := r.lookupLocked(kbID)
	if err != nil {
		return nil, err
	}
	if kb.info.LeaseRenewalTime <= 0 {
		return nil, fmt.Errorf("%w: knowledge base %s has no lease", ErrInvalid, kbID)
	}
	kb.leaseExpires = r.now().Add(time.Duration(kb.info.LeaseRenewalTime) * time.Second)
	return &types.Lease{KnowledgeBaseID: kbID, Expires: kb.leaseExpires.UnixMilli()}, nil
}

// Poll waits for the next handle request of a knowledge base. It returns
// nil, nil when the poll timeout passes without a request.
func (r *Runtime) Poll(ctx context.Context, kbID string) (*types.HandleRequest, error) {
	r.mu.Lock()
	r.expireLocked()
	kb, err := r.lookupLocked(kbID)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	if kb.polling {
		r.mu.Unlock()
		return nil, ErrAlreadyPolling
	}
	kb.polling = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		kb.polling = false
		r.mu.Unlock()
	}()

	timer := time.NewTimer(r.pollTimeout)
	defer timer.Stop()

	for {
		select {
		case p := <-kb.queue:
			if !r.isPending(kb, p) {
				continue
			}
			return &p.req, nil
		case <-timer.C:
			return nil, nil
		case <-kb.stopped:
			return nil, ErrStopping
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// isPending reports whether p still has a waiting asker.
func (r *Runtime) isPending(kb *knowledgeBase, p *pendingRequest) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := kb.pending[p.req.HandleRequestID]
	return ok
}

// Respond delivers the bindings answering handle request handleID.
func (r *Runtime) Respond(kbID, kiID string, resp types.HandleResponse) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	kb, err := r.lookupLocked(kbID)
	if err != nil {
		return err
	}
	p, ok := kb.pending[resp.HandleRequestID]
	if !ok {
		return fmt.Errorf("%w: handle request id %d", ErrNotFound, resp.HandleRequestID)
	}
	if p.req.KnowledgeInteractionID != kiID {
		return fmt.Errorf("%w: handle request %d belongs to knowledge interaction %s", ErrInvalid, resp.HandleRequestID, p.req.KnowledgeInteractionID)
	}
	delete(kb.pending, resp.HandleRequestID)

	bs := resp.BindingSet
	if bs == nil {
		bs = types.BindingSet{}
	}
	p.response <- bs
	return nil
}

// Ask invokes the ASK interaction kiID with bindings.
func (r *Runtime) Ask(ctx context.Context, kbID, kiID string, bindings types.BindingSet) (*Result, error) {
	return r.invoke(ctx, kbID, kiID, types.AskInteraction, bindings)
}

// Post invokes the POST interaction kiID with bindings.
func (r *Runtime) Post(ctx context.Context, kbID, kiID string, bindings types.BindingSet) (*Result, error) {
	return r.invoke(ctx, kbID, kiID, types.PostInteraction, bindings)
}

type target struct {
	kb     *knowledgeBase
	kiID   string
	handle *pendingRequest
}

func (r *Runtime) invoke(ctx context.Context, kbID, kiID string, kind types.InteractionKind, bindings types.BindingSet) (*Result, error) {
	if bindings == nil {
		bindings = types.BindingSet{}
	}

	targets, err := r.route(kbID, kiID, kind, bindings)
	if err != nil {
		return nil, err
	}

	start := r.now().UnixMilli()
	union := types.BindingSet{}
	seen := make(map[string]bool)
	infos := make([]ExchangeInfo, 0, len(targets))

	for i, t := range targets {
		info := ExchangeInfo{
			KnowledgeBaseID:        t.kb.info.KnowledgeBaseID,
			KnowledgeInteractionID: t.kiID,
			ExchangeStart:          start,
			Status:                 ExchangeSucceeded,
			BindingSet:             types.BindingSet{},
		}

		select {
		case bs := <-t.handle.response:
			info.BindingSet = bs
			for _, b := range bs {
				key := bindingKey(b)
				if !seen[key] {
					seen[key] = true
					union = append(union, b)
				}
			}
		case <-t.kb.stopped:
			info.Status = ExchangeFailed
			info.FailedMessage = "knowledge base stopped before responding"
		case <-ctx.Done():
			r.forget(targets[i:])
			return nil, ctx.Err()
		}

		info.ExchangeEnd = r.now().UnixMilli()
		infos = append(infos, info)
	}

	result := &Result{ExchangeInfo: infos}
	if kind == types.AskInteraction {
		result.BindingSet = union
	} else {
		result.BindingSet = bindings
		result.ResultBindingSet = union
	}
	return result, nil
}

// route queues a handle request at every matching interaction of the other
// knowledge bases.
func (r *Runtime) route(kbID, kiID string, kind types.InteractionKind, bindings types.BindingSet) ([]target, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expireLocked()

	kb, err := r.lookupLocked(kbID)
	if err != nil {
		return nil, err
	}
	ki, ok := kb.interactions[kiID]
	if !ok {
		return nil, fmt.Errorf("%w: knowledge interaction %s", ErrNotFound, kiID)
	}
	if ki.Kind != kind {
		return nil, fmt.Errorf("%w: given knowledge interaction id should have type %s and not %s", ErrInvalid, kind, ki.Kind)
	}

	var targets []target
	for _, otherID := range r.order {
		if otherID == kbID {
			continue
		}
		other := r.kbs[otherID]
		for _, otherKI := range other.kiOrder {
			info := other.interactions[otherKI]
			if !matches(ki.KnowledgeInteraction, info.KnowledgeInteraction) {
				continue
			}

			r.nextHandle++
			p := &pendingRequest{
				req: types.HandleRequest{
					HandleRequestID:           r.nextHandle,
					KnowledgeInteractionID:    otherKI,
					BindingSet:                cloneBindings(bindings),
					RequestingKnowledgeBaseID: kbID,
				},
				response: make(chan types.BindingSet, 1),
			}
			select {
			case other.queue <- p:
			default:
				r.logger.Warn("Handle queue full, skipping knowledge base", "kb", otherID, "ki", otherKI)
				continue
			}
			other.pending[p.req.HandleRequestID] = p
			targets = append(targets, target{kb: other, kiID: otherKI, handle: p})
		}
	}

	r.logger.Debug("Routed knowledge interaction", "kb", kbID, "ki", kiID, "targets", len(targets))
	return targets, nil
}

// forget drops unanswered handle requests after their asker gave up.
func (r *Runtime) forget(targets []target) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range targets {
		delete(t.kb.pending, t.handle.req.HandleRequestID)
	}
}

// matches reports whether the reactive interaction other serves the
// proactive interaction ki.
func matches(ki, other types.KnowledgeInteraction) bool {
	switch ki.Kind {
	case types.AskInteraction:
		return other.Kind == types.AnswerInteraction && other.GraphPattern == ki.GraphPattern
	case types.PostInteraction:
		return other.Kind == types.ReactInteraction &&
			other.ArgumentGraphPattern == ki.ArgumentGraphPattern &&
			other.ResultGraphPattern == ki.ResultGraphPattern
	default:
		return false
	}
}

func (r *Runtime) lookupLocked(id string) (*knowledgeBase, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: Knowledge-Base-Id header is required", ErrInvalid)
	}
	if kb, ok := r.kbs[id]; ok {
		return kb, nil
	}
	if r.suspended[id] {
		delete(r.suspended, id)
		return nil, fmt.Errorf("%w: %s was suspended due to inactivity, please reregister it and its knowledge interactions", ErrSuspended, id)
	}
	return nil, fmt.Errorf("%w: knowledge base %s", ErrNotFound, id)
}

func (r *Runtime) removeLocked(id string) {
	kb := r.kbs[id]
	close(kb.stopped)
	delete(r.kbs, id)
	r.order = slices.DeleteFunc(r.order, func(kbID string) bool { return kbID == id })
}

// expireLocked suspends knowledge bases whose lease has passed.
func (r *Runtime) expireLocked() {
	now := r.now()
	for _, id := range slices.Clone(r.order) {
		kb := r.kbs[id]
		if kb.leaseExpires.IsZero() || now.Before(kb.leaseExpires) {
			continue
		}
		r.removeLocked(id)
		r.suspended[id] = true
		r.logger.Warn("Suspended knowledge base, lease expired", "kb", id)
	}
}

func cloneBindings(bs types.BindingSet) types.BindingSet {
	out := make(types.BindingSet, len(bs))
	for i, b := range bs {
		out[i] = b.Clone()
	}
	return out
}

func bindingKey(b types.Binding) string {
	keys := slices.Collect(maps.Keys(b))
	sort.Strings(keys)
	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(b[k])
		sb.WriteByte(';')
	}
	return sb.String()
}
