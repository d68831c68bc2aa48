package eventwire

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/eventwire/eventwire/typeref"
)

// Async failures are isolated: every observer runs regardless of sibling
// failures and the handle aggregates all of them.
func TestFireAsyncAggregatesAllFailures(t *testing.T) {
	bus := newTestBus()
	defer bus.Close(context.Background())

	first := errors.New("first failure")
	second := errors.New("second failure")
	var survivor atomic.Int64

	for _, cfg := range []ObserverConfig{
		{ObservedType: typeref.ClassRef(testBook), Async: true,
			Handler: func(context.Context, any, EventMetadata) error { return first }},
		{ObservedType: typeref.ClassRef(testBook), Async: true,
			Handler: func(context.Context, any, EventMetadata) error { return second }},
		{ObservedType: typeref.ClassRef(testBook), Async: true,
			Handler: countingHandler(&survivor)},
	} {
		_, err := bus.Observe(cfg)
		require.NoError(t, err)
	}

	completion, err := bus.FireAsync(context.Background(), bookEvent{title: "dune"}, typeref.ClassRef(testBook), nil, nil)
	require.NoError(t, err)

	payload, err := completion.Wait(context.Background())
	require.Error(t, err)
	assert.Equal(t, bookEvent{title: "dune"}, payload)
	assert.Equal(t, int64(1), survivor.Load())

	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, second)
	assert.Len(t, multierr.Errors(err), 2)
}

func TestFireAsyncRecoversObserverPanic(t *testing.T) {
	bus := newTestBus()
	defer bus.Close(context.Background())

	_, err := bus.Observe(ObserverConfig{
		ObservedType: typeref.ClassRef(testBook),
		Async:        true,
		Handler: func(context.Context, any, EventMetadata) error {
			panic("observer exploded")
		},
	})
	require.NoError(t, err)

	completion, err := bus.FireAsync(context.Background(), bookEvent{}, typeref.ClassRef(testBook), nil, nil)
	require.NoError(t, err)

	_, err = completion.Wait(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "observer exploded")
}

func TestFireAsyncWithNoObserversSettlesImmediately(t *testing.T) {
	bus := newTestBus()

	completion, err := bus.FireAsync(context.Background(), bookEvent{}, typeref.ClassRef(testBook), nil, nil)
	require.NoError(t, err)
	assert.True(t, completion.Settled())

	payload, err := completion.Result()
	assert.NoError(t, err)
	assert.Equal(t, bookEvent{}, payload)
}

func TestCompletionSettlesExactlyOnce(t *testing.T) {
	completion := newCompletion("payload", 2)
	assert.False(t, completion.Settled())
	assert.NoError(t, completion.Err())

	completion.taskFailed(errors.New("one"))
	completion.taskDone()
	assert.False(t, completion.Settled())

	completion.taskDone()
	assert.True(t, completion.Settled())
	assert.Error(t, completion.Err())

	select {
	case <-completion.Done():
	default:
		t.Fatal("done channel not closed after settling")
	}
}

func TestCompletionOnComplete(t *testing.T) {
	completion := newCompletion("payload", 1)

	early := make(chan error, 1)
	completion.OnComplete(func(payload any, err error) {
		assert.Equal(t, "payload", payload)
		early <- err
	})

	completion.taskDone()

	select {
	case err := <-early:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("continuation attached before settling never ran")
	}

	// Late attachment sees the resolved value immediately.
	late := make(chan error, 1)
	completion.OnComplete(func(_ any, err error) { late <- err })
	select {
	case err := <-late:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("continuation attached after settling never ran")
	}
}

func TestCompletionWaitHonorsContext(t *testing.T) {
	completion := newCompletion("payload", 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := completion.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
