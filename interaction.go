package tke

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/TNO/knowledge-engine/pkg/types"
)

// Handler answers a handle request of an ANSWER or REACT interaction. It runs
// on the knowledge base's long-poll goroutine. A nil result is sent as an
// empty binding set.
type Handler func(ctx context.Context, req *types.HandleRequest) types.BindingSet

// BindingsHandler adapts a function of the incoming bindings to a Handler.
func BindingsHandler(fn func(types.BindingSet) types.BindingSet) Handler {
	return func(_ context.Context, req *types.HandleRequest) types.BindingSet {
		return fn(req.BindingSet)
	}
}

// Interaction is a knowledge interaction registered by a KnowledgeBase.
// Proactive interactions (ASK, POST) can be invoked.
type Interaction struct {
	kb   *KnowledgeBase
	ID   string
	Kind types.InteractionKind
}

// RegisterKnowledgeInteraction registers ki. ANSWER and REACT interactions
// require handler, which is stored under the issued id; the first one starts
// the long poll. handler is ignored for ASK and POST.
func (kb *KnowledgeBase) RegisterKnowledgeInteraction(ctx context.Context, ki types.KnowledgeInteraction, handler Handler) (*Interaction, error) {
	if err := ki.Validate(); err != nil {
		return nil, kindError(ErrInteractionRegistration, "validate", err)
	}
	if ki.Kind.Reactive() && handler == nil {
		return nil, fmt.Errorf("%w: %w", ErrInteractionRegistration, ErrMissingHandler)
	}

	resp, err := kb.client.do(ctx, http.MethodPost, "/sc/ki", kbHeaders(kb.reg.ID), ki, true)
	if err != nil {
		return nil, kindError(ErrInteractionRegistration, "POST /sc/ki", err)
	}
	defer resp.Body.Close()
	if !isSuccess(resp) {
		return nil, responseError(resp, ErrInteractionRegistration, "POST /sc/ki")
	}
	id, err := readInteractionID(resp.Body)
	if err != nil {
		return nil, kindError(ErrInteractionRegistration, "read interaction id", err)
	}

	interaction := &Interaction{kb: kb, ID: id, Kind: ki.Kind}
	switch ki.Kind {
	case types.AnswerInteraction, types.ReactInteraction:
		if !kb.setHandler(id, handler) {
			return nil, fmt.Errorf("%w: %w", ErrInteractionRegistration, ErrClosed)
		}
	case types.AskInteraction, types.PostInteraction:
	}

	kb.logger.Info("Registered knowledge interaction", "type", ki.Kind.String(), "ki", id)
	return interaction, nil
}

// RegisterAsk registers an ASK interaction for graphPattern.
func (kb *KnowledgeBase) RegisterAsk(ctx context.Context, graphPattern string) (*Interaction, error) {
	return kb.RegisterKnowledgeInteraction(ctx, types.KnowledgeInteraction{
		Kind:         types.AskInteraction,
		GraphPattern: graphPattern,
	}, nil)
}

// RegisterAnswer registers an ANSWER interaction for graphPattern.
func (kb *KnowledgeBase) RegisterAnswer(ctx context.Context, graphPattern string, handler Handler) (*Interaction, error) {
	return kb.RegisterKnowledgeInteraction(ctx, types.KnowledgeInteraction{
		Kind:         types.AnswerInteraction,
		GraphPattern: graphPattern,
	}, handler)
}

// RegisterPost registers a POST interaction. resultGraphPattern may be empty.
func (kb *KnowledgeBase) RegisterPost(ctx context.Context, argumentGraphPattern, resultGraphPattern string) (*Interaction, error) {
	return kb.RegisterKnowledgeInteraction(ctx, types.KnowledgeInteraction{
		Kind:                 types.PostInteraction,
		ArgumentGraphPattern: argumentGraphPattern,
		ResultGraphPattern:   resultGraphPattern,
	}, nil)
}

// RegisterReact registers a REACT interaction. resultGraphPattern may be empty.
func (kb *KnowledgeBase) RegisterReact(ctx context.Context, argumentGraphPattern, resultGraphPattern string, handler Handler) (*Interaction, error) {
	return kb.RegisterKnowledgeInteraction(ctx, types.KnowledgeInteraction{
		Kind:                 types.ReactInteraction,
		ArgumentGraphPattern: argumentGraphPattern,
		ResultGraphPattern:   resultGraphPattern,
	}, handler)
}

// UnregisterKnowledgeInteraction removes the interaction with id and its handler.
func (kb *KnowledgeBase) UnregisterKnowledgeInteraction(ctx context.Context, id string) error {
	headers := kbHeaders(kb.reg.ID)
	headers[types.HeaderKnowledgeInteractionID] = id

	resp, err := kb.client.do(ctx, http.MethodDelete, "/sc/ki", headers, nil, true)
	if err != nil {
		return kindError(ErrInteractionRegistration, "DELETE /sc/ki", err)
	}
	defer resp.Body.Close()
	if !isSuccess(resp) {
		return responseError(resp, ErrInteractionRegistration, "DELETE /sc/ki")
	}
	drain(resp)

	kb.removeHandler(id)
	kb.logger.Info("Unregistered knowledge interaction", "ki", id)
	return nil
}

// KnowledgeInteractions lists the interactions registered for this knowledge base.
func (kb *KnowledgeBase) KnowledgeInteractions(ctx context.Context) ([]types.KnowledgeInteractionInfo, error) {
	resp, err := kb.client.do(ctx, http.MethodGet, "/sc/ki", kbHeaders(kb.reg.ID), nil, true)
	if err != nil {
		return nil, kindError(ErrListing, "GET /sc/ki", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, responseError(resp, ErrListing, "GET /sc/ki")
	}

	var kis []types.KnowledgeInteractionInfo
	if err := json.NewDecoder(resp.Body).Decode(&kis); err != nil {
		return nil, kindError(ErrListing, "decode knowledge interactions", err)
	}
	return kis, nil
}

// Invoke posts bindings to an ASK or POST interaction and returns the parsed
// result. ASK results are in BindingSet, POST results in ResultBindingSet.
func (i *Interaction) Invoke(ctx context.Context, bindings types.BindingSet) (*types.InvocationResult, error) {
	path := i.Kind.Path()
	if path == "" {
		return nil, fmt.Errorf("%w: %s cannot be invoked", ErrInvocation, i.Kind)
	}

	headers := kbHeaders(i.kb.reg.ID)
	headers[types.HeaderKnowledgeInteractionID] = i.ID

	op := http.MethodPost + " " + path
	resp, err := i.kb.client.do(ctx, http.MethodPost, path, headers, bindings, true)
	if err != nil {
		return nil, kindError(ErrInvocation, op, err)
	}
	defer resp.Body.Close()
	if !isSuccess(resp) {
		return nil, responseError(resp, ErrInvocation, op)
	}

	var result types.InvocationResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, kindError(ErrInvocation, "decode result", err)
	}
	return &result, nil
}

// Func returns Invoke as a function value.
func (i *Interaction) Func() func(context.Context, types.BindingSet) (*types.InvocationResult, error) {
	return i.Invoke
}

// Unregister removes this interaction.
func (i *Interaction) Unregister(ctx context.Context) error {
	return i.kb.UnregisterKnowledgeInteraction(ctx, i.ID)
}

// readInteractionID accepts a plain text id or {"knowledgeInteractionId": ...}.
func readInteractionID(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(string(data))
	if strings.HasPrefix(text, "{") {
		var body struct {
			KnowledgeInteractionID string `json:"knowledgeInteractionId"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return "", err
		}
		text = body.KnowledgeInteractionID
	}
	if text == "" {
		return "", fmt.Errorf("empty knowledge interaction id")
	}
	return text, nil
}
