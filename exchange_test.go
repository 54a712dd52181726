package tke

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TNO/knowledge-engine/pkg/connectortest"
	"github.com/TNO/knowledge-engine/pkg/metrics"
	"github.com/TNO/knowledge-engine/pkg/types"
)

func TestAskAnswerExchange(t *testing.T) {
	sc := connectortest.New(t)
	m := metrics.New()
	c := newTestClient(t, sc.Endpoint, WithMetrics(m))
	ctx := context.Background()

	kb1, err := c.RegisterKnowledgeBase(ctx, types.KnowledgeBaseRegistration{
		ID: "http://example.org/kb1", Name: "KB1", Description: "asks",
	}, nil)
	require.NoError(t, err)
	kb2, err := c.RegisterKnowledgeBase(ctx, types.KnowledgeBaseRegistration{
		ID: "http://example.org/kb2", Name: "KB2", Description: "answers",
	}, nil)
	require.NoError(t, err)

	ask, err := kb1.RegisterAsk(ctx, pattern)
	require.NoError(t, err)

	relations := types.BindingSet{
		{"a": "<http://example.org/Math>", "b": "<http://example.org/Science>"},
		{"a": "<http://example.org/Books>", "b": "<http://example.org/Magazines>"},
	}
	var mu sync.Mutex
	var requester string
	_, err = kb2.RegisterAnswer(ctx, pattern, func(_ context.Context, req *types.HandleRequest) types.BindingSet {
		mu.Lock()
		requester = req.RequestingKnowledgeBaseID
		mu.Unlock()
		return relations.Match(req.BindingSet)
	})
	require.NoError(t, err)

	result, err := ask.Invoke(ctx, types.BindingSet{{}})
	require.NoError(t, err)
	assert.ElementsMatch(t, relations, result.BindingSet)

	result, err = ask.Invoke(ctx, types.BindingSet{{"a": "<http://example.org/Books>"}})
	require.NoError(t, err)
	assert.Equal(t, relations[1:], result.BindingSet)

	mu.Lock()
	assert.Equal(t, kb1.ID(), requester)
	mu.Unlock()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Dispatches.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requests.WithLabelValues("POST /sc/ask", "200")))

	kis, err := kb2.KnowledgeInteractions(ctx)
	require.NoError(t, err)
	require.Len(t, kis, 1)
	assert.Equal(t, types.AnswerInteraction, kis[0].Kind)

	require.NoError(t, kb2.Unregister(ctx))
	waitDone(t, kb2)
	assert.NoError(t, kb2.Err())

	result, err = ask.Invoke(ctx, types.BindingSet{{}})
	require.NoError(t, err)
	assert.Empty(t, result.BindingSet)

	require.NoError(t, kb1.Unregister(ctx))

	scs, err := c.KnowledgeBases(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, scs)
}

func TestPostReactExchange(t *testing.T) {
	sc := connectortest.New(t)
	c := newTestClient(t, sc.Endpoint)
	ctx := context.Background()

	poster, err := c.RegisterKnowledgeBase(ctx, types.KnowledgeBaseRegistration{ID: "http://example.org/sensor", Name: "sensor"}, nil)
	require.NoError(t, err)
	defer poster.Close()
	reactor, err := c.RegisterKnowledgeBase(ctx, types.KnowledgeBaseRegistration{ID: "http://example.org/logger", Name: "logger"}, nil)
	require.NoError(t, err)
	defer reactor.Close()

	const (
		argument = "?s <http://example.org/hasValue> ?v ."
		result   = "?s <http://example.org/stored> ?ok ."
	)
	post, err := poster.RegisterPost(ctx, argument, result)
	require.NoError(t, err)

	received := make(chan types.BindingSet, 1)
	_, err = reactor.RegisterReact(ctx, argument, result, BindingsHandler(func(bs types.BindingSet) types.BindingSet {
		received <- bs
		out := types.BindingSet{}
		for _, b := range bs {
			out = append(out, types.Binding{"s": b["s"], "ok": "true"})
		}
		return out
	}))
	require.NoError(t, err)

	arg := types.BindingSet{{"s": "<http://example.org/sensor/1>", "v": "21.5"}}
	res, err := post.Invoke(ctx, arg)
	require.NoError(t, err)
	assert.Equal(t, types.BindingSet{{"s": "<http://example.org/sensor/1>", "ok": "true"}}, res.ResultBindingSet)

	select {
	case bs := <-received:
		assert.Equal(t, arg, bs)
	case <-time.After(time.Second):
		t.Fatal("react handler not called")
	}
}

func TestReregisterAgainstConnector(t *testing.T) {
	sc := connectortest.New(t)
	c := newTestClient(t, sc.Endpoint)
	ctx := context.Background()

	reg := types.KnowledgeBaseRegistration{ID: "http://example.org/kb1", Name: "KB1"}
	kb, err := c.RegisterKnowledgeBase(ctx, reg, nil)
	require.NoError(t, err)
	defer kb.Close()

	_, err = c.RegisterKnowledgeBase(ctx, reg, nil)
	assert.ErrorIs(t, err, ErrRegistrationConflict)

	again, err := c.RegisterKnowledgeBase(ctx, reg, &RegisterOptions{Reregister: true})
	require.NoError(t, err)
	defer again.Close()

	scs, err := c.KnowledgeBases(ctx, reg.ID)
	require.NoError(t, err)
	assert.Len(t, scs, 1)
}

func TestLeaseAgainstConnector(t *testing.T) {
	sc := connectortest.New(t)
	c := newTestClient(t, sc.Endpoint, WithClock(&fakeClock{}))
	ctx := context.Background()

	kb, err := c.RegisterKnowledgeBase(ctx, types.KnowledgeBaseRegistration{ID: "http://example.org/kb1", Name: "KB1", LeaseRenewalTime: 30}, nil)
	require.NoError(t, err)
	defer kb.Close()

	before := time.Now()
	lease, err := kb.RenewLease(ctx)
	require.NoError(t, err)
	assert.Equal(t, kb.ID(), lease.KnowledgeBaseID)
	assert.WithinDuration(t, before.Add(30*time.Second), lease.ExpiresAt(), 2*time.Second)
	assert.Equal(t, lease.ExpiresAt(), kb.LeaseExpires())
}
