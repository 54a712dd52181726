package tke

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/TNO/knowledge-engine/pkg/types"
	"github.com/TNO/knowledge-engine/pkg/utils"
)

// pollState is a state of the long-poll loop.
type pollState int

const (
	stateIdle pollState = iota
	statePolling
	stateRetry    // 202: nothing pending, poll again
	stateDispatch // a handle request was answered
	stateFatal    // the loop terminates
)

func (s pollState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case statePolling:
		return "polling"
	case stateRetry:
		return "retry"
	case stateDispatch:
		return "dispatch"
	case stateFatal:
		return "fatal"
	default:
		return fmt.Sprintf("pollState(%d)", int(s))
	}
}

// pollLoop runs until the handle is closed or a poll fails.
func (kb *KnowledgeBase) pollLoop() {
	kb.client.metrics.PollerStarted()
	defer kb.client.metrics.PollerStopped()

	err := kb.poll(kb.ctx)
	switch {
	case err == nil:
	case kb.ctx.Err() != nil && errors.Is(err, context.Canceled):
		// closed while waiting
		err = nil
	case kb.stopping.Load() && errors.Is(err, ErrKnowledgeBaseStopped):
		// our own Unregister ended the poll
		err = nil
	}

	kb.mu.Lock()
	kb.err = err
	kb.mu.Unlock()
	close(kb.done)

	if err != nil {
		kb.logger.Error("Long poll terminated", "error", err)
		kb.client.reportError(kb, err)
		return
	}
	kb.logger.Debug("Long poll stopped")
}

func (kb *KnowledgeBase) poll(ctx context.Context) (err error) {
	defer utils.RecoverAsError(&err)

	state := stateIdle
	for ctx.Err() == nil {
		state = statePolling
		kb.logger.Debug("Awaiting long poll", "state", state.String())

		state, err = kb.pollOnce(ctx)
		kb.client.metrics.PollResult(state.String())
		if state == stateFatal {
			return err
		}
	}
	return nil
}

// pollOnce performs one GET /sc/handle and, if it carries a handle request,
// dispatches it.
func (kb *KnowledgeBase) pollOnce(ctx context.Context) (pollState, error) {
	const op = "GET /sc/handle"

	resp, err := kb.client.do(ctx, http.MethodGet, "/sc/handle", kbHeaders(kb.reg.ID), nil, false)
	if err != nil {
		return stateFatal, kindError(ErrLongPollTransport, op, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusAccepted:
		drain(resp)
		return stateRetry, nil
	case isSuccess(resp):
		var req types.HandleRequest
		if err := json.NewDecoder(resp.Body).Decode(&req); err != nil {
			return stateFatal, kindError(ErrLongPollTransport, "decode handle request", err)
		}
		return kb.dispatch(ctx, &req)
	default:
		return stateFatal, responseError(resp, ErrLongPollTransport, op)
	}
}

// dispatch runs the handler of req synchronously and posts its result.
func (kb *KnowledgeBase) dispatch(ctx context.Context, req *types.HandleRequest) (pollState, error) {
	handler := kb.handler(req.KnowledgeInteractionID)
	if handler == nil {
		kb.client.metrics.Dispatch("unknown")
		return stateFatal, fmt.Errorf("%w: %s", ErrUnknownInteraction, req.KnowledgeInteractionID)
	}

	kb.logger.Info("Handling request",
		"ki", req.KnowledgeInteractionID,
		"handle_request_id", req.HandleRequestID,
		"requesting_kb", req.RequestingKnowledgeBaseID,
		"bindings", len(req.BindingSet))

	result := handler(ctx, req)
	if result == nil {
		kb.logger.Warn("Using empty binding set as ANSWER/REACT, since the handler returned nothing",
			"ki", req.KnowledgeInteractionID)
		result = types.BindingSet{}
		kb.client.metrics.Dispatch("empty")
	} else {
		kb.client.metrics.Dispatch("ok")
	}

	headers := kbHeaders(kb.reg.ID)
	headers[types.HeaderKnowledgeInteractionID] = req.KnowledgeInteractionID
	body := types.HandleResponse{HandleRequestID: req.HandleRequestID, BindingSet: result}

	resp, err := kb.client.do(ctx, http.MethodPost, "/sc/handle", headers, body, true)
	if err != nil {
		return stateFatal, kindError(ErrHandleResponse, "POST /sc/handle", err)
	}
	defer resp.Body.Close()
	if !isSuccess(resp) {
		return stateFatal, responseError(resp, ErrHandleResponse, "POST /sc/handle")
	}
	drain(resp)

	return stateDispatch, nil
}
