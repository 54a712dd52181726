package runtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TNO/knowledge-engine/pkg/types"
)

const pattern = "?a <http://example.org/isRelatedTo> ?b ."

func registration(id string) types.KnowledgeBaseRegistration {
	return types.KnowledgeBaseRegistration{ID: id, Name: id, Description: "test"}
}

func isPolling(rt *Runtime, kbID string) bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	kb, ok := rt.kbs[kbID]
	return ok && kb.polling
}

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	return New(50 * time.Millisecond)
}

func TestRegisterAndList(t *testing.T) {
	rt := newTestRuntime(t)

	require.NoError(t, rt.Register(registration("http://example.org/kb1")))
	require.NoError(t, rt.Register(registration("http://example.org/kb2")))

	err := rt.Register(registration("http://example.org/kb1"))
	assert.ErrorIs(t, err, ErrInvalid)

	err = rt.Register(types.KnowledgeBaseRegistration{ID: "kb3", Name: "kb3"})
	assert.ErrorIs(t, err, ErrInvalid)

	all, err := rt.List("")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "http://example.org/kb1", all[0].KnowledgeBaseID)

	one, err := rt.List("http://example.org/kb2")
	require.NoError(t, err)
	require.Len(t, one, 1)

	_, err = rt.List("http://example.org/missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.True(t, rt.Exists("http://example.org/kb1"))
	require.NoError(t, rt.Delete("http://example.org/kb1"))
	assert.False(t, rt.Exists("http://example.org/kb1"))
	assert.ErrorIs(t, rt.Delete("http://example.org/kb1"), ErrNotFound)
}

func TestInteractions(t *testing.T) {
	rt := newTestRuntime(t)
	kbID := "http://example.org/kb1"
	require.NoError(t, rt.Register(registration(kbID)))

	id, err := rt.AddInteraction(kbID, types.KnowledgeInteraction{Kind: types.AskInteraction, GraphPattern: pattern})
	require.NoError(t, err)
	assert.Contains(t, id, kbID+"/interaction/")

	named, err := rt.AddInteraction(kbID, types.KnowledgeInteraction{Kind: types.AskInteraction, Name: "ask-related", GraphPattern: pattern})
	require.NoError(t, err)
	assert.Equal(t, kbID+"/interaction/ask-related", named)

	_, err = rt.AddInteraction(kbID, types.KnowledgeInteraction{Kind: types.AskInteraction, Name: "ask-related", GraphPattern: pattern})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = rt.AddInteraction(kbID, types.KnowledgeInteraction{Kind: types.PostInteraction})
	assert.ErrorIs(t, err, ErrInvalid)

	kis, err := rt.Interactions(kbID)
	require.NoError(t, err)
	require.Len(t, kis, 2)
	assert.Equal(t, id, kis[0].ID)

	require.NoError(t, rt.RemoveInteraction(kbID, id))
	assert.ErrorIs(t, rt.RemoveInteraction(kbID, id), ErrNotFound)

	kis, err = rt.Interactions(kbID)
	require.NoError(t, err)
	assert.Len(t, kis, 1)
}

func TestPollHeartbeatAndConflict(t *testing.T) {
	rt := New(300 * time.Millisecond)
	kbID := "http://example.org/kb1"
	require.NoError(t, rt.Register(registration(kbID)))

	var wg sync.WaitGroup
	wg.Add(1)
	var first *types.HandleRequest
	var firstErr error
	go func() {
		defer wg.Done()
		first, firstErr = rt.Poll(context.Background(), kbID)
	}()

	require.Eventually(t, func() bool { return isPolling(rt, kbID) }, time.Second, time.Millisecond)
	_, err := rt.Poll(context.Background(), kbID)
	assert.ErrorIs(t, err, ErrAlreadyPolling)

	wg.Wait()
	assert.NoError(t, firstErr)
	assert.Nil(t, first)
}

func TestPollStopsWhenDeleted(t *testing.T) {
	rt := New(time.Hour)
	kbID := "http://example.org/kb1"
	require.NoError(t, rt.Register(registration(kbID)))

	errCh := make(chan error, 1)
	go func() {
		_, err := rt.Poll(context.Background(), kbID)
		errCh <- err
	}()

	require.Eventually(t, func() bool { return isPolling(rt, kbID) }, time.Second, time.Millisecond)
	require.NoError(t, rt.Delete(kbID))

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrStopping)
	case <-time.After(time.Second):
		t.Fatal("poll did not end")
	}
}

func TestAskAnswerExchange(t *testing.T) {
	rt := New(time.Second)
	asker, answerer := "http://example.org/kb1", "http://example.org/kb2"
	require.NoError(t, rt.Register(registration(asker)))
	require.NoError(t, rt.Register(registration(answerer)))

	askID, err := rt.AddInteraction(asker, types.KnowledgeInteraction{Kind: types.AskInteraction, GraphPattern: pattern})
	require.NoError(t, err)
	answerID, err := rt.AddInteraction(answerer, types.KnowledgeInteraction{Kind: types.AnswerInteraction, GraphPattern: pattern})
	require.NoError(t, err)
	_, err = rt.AddInteraction(answerer, types.KnowledgeInteraction{Kind: types.AnswerInteraction, GraphPattern: "?x ?y ?z ."})
	require.NoError(t, err)

	answers := types.BindingSet{
		{"a": "<http://example.org/Math>", "b": "<http://example.org/Science>"},
		{"a": "<http://example.org/Books>", "b": "<http://example.org/Magazines>"},
	}

	go func() {
		req, err := rt.Poll(context.Background(), answerer)
		if err != nil || req == nil {
			return
		}
		_ = rt.Respond(answerer, req.KnowledgeInteractionID, types.HandleResponse{
			HandleRequestID: req.HandleRequestID,
			BindingSet:      answers,
		})
	}()

	result, err := rt.Ask(context.Background(), asker, askID, types.BindingSet{{}})
	require.NoError(t, err)
	assert.Equal(t, answers, result.BindingSet)
	require.Len(t, result.ExchangeInfo, 1)
	assert.Equal(t, answerID, result.ExchangeInfo[0].KnowledgeInteractionID)
	assert.Equal(t, ExchangeSucceeded, result.ExchangeInfo[0].Status)
}

func TestPostReactExchange(t *testing.T) {
	rt := New(time.Second)
	poster, reactor := "http://example.org/kb1", "http://example.org/kb2"
	require.NoError(t, rt.Register(registration(poster)))
	require.NoError(t, rt.Register(registration(reactor)))

	ki := types.KnowledgeInteraction{Kind: types.PostInteraction, ArgumentGraphPattern: "?s <http://example.org/hasValue> ?v ."}
	postID, err := rt.AddInteraction(poster, ki)
	require.NoError(t, err)
	ki.Kind = types.ReactInteraction
	_, err = rt.AddInteraction(reactor, ki)
	require.NoError(t, err)

	go func() {
		req, err := rt.Poll(context.Background(), reactor)
		if err != nil || req == nil {
			return
		}
		_ = rt.Respond(reactor, req.KnowledgeInteractionID, types.HandleResponse{HandleRequestID: req.HandleRequestID})
	}()

	arg := types.BindingSet{{"s": "<http://example.org/sensor1>", "v": "21"}}
	result, err := rt.Post(context.Background(), poster, postID, arg)
	require.NoError(t, err)
	assert.Equal(t, arg, result.BindingSet)
	assert.Equal(t, types.BindingSet{}, result.ResultBindingSet)
	require.Len(t, result.ExchangeInfo, 1)
}

func TestAskWithoutAnswerers(t *testing.T) {
	rt := newTestRuntime(t)
	kbID := "http://example.org/kb1"
	require.NoError(t, rt.Register(registration(kbID)))
	askID, err := rt.AddInteraction(kbID, types.KnowledgeInteraction{Kind: types.AskInteraction, GraphPattern: pattern})
	require.NoError(t, err)

	result, err := rt.Ask(context.Background(), kbID, askID, nil)
	require.NoError(t, err)
	assert.Empty(t, result.BindingSet)
	assert.Empty(t, result.ExchangeInfo)

	_, err = rt.Post(context.Background(), kbID, askID, nil)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestRespondValidation(t *testing.T) {
	rt := newTestRuntime(t)
	kbID := "http://example.org/kb1"
	require.NoError(t, rt.Register(registration(kbID)))

	err := rt.Respond(kbID, "http://example.org/kb1/interaction/x", types.HandleResponse{HandleRequestID: 7})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLeaseExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rt := New(time.Second, WithNow(func() time.Time { return now }))

	kbID := "http://example.org/kb1"
	reg := registration(kbID)
	reg.LeaseRenewalTime = 10
	require.NoError(t, rt.Register(reg))

	now = now.Add(8 * time.Second)
	lease, err := rt.RenewLease(kbID)
	require.NoError(t, err)
	assert.Equal(t, now.Add(10*time.Second).UnixMilli(), lease.Expires)

	now = now.Add(11 * time.Second)
	_, err = rt.Poll(context.Background(), kbID)
	assert.ErrorIs(t, err, ErrSuspended)

	_, err = rt.Poll(context.Background(), kbID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRenewLeaseWithoutLease(t *testing.T) {
	rt := newTestRuntime(t)
	kbID := "http://example.org/kb1"
	require.NoError(t, rt.Register(registration(kbID)))

	_, err := rt.RenewLease(kbID)
	assert.ErrorIs(t, err, ErrInvalid)
}
