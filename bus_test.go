package eventwire

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventwire/eventwire/typeref"
)

func TestFireInvokesInPriorityOrder(t *testing.T) {
	bus := newTestBus()
	var order []string

	for _, reg := range []struct {
		tag      string
		priority int
	}{
		{"thirty", 30},
		{"ten", 10},
		{"twenty", 20},
	} {
		_, err := bus.Observe(ObserverConfig{
			ObservedType: typeref.ClassRef(testBook),
			Priority:     reg.priority,
			Handler:      orderedHandler(reg.tag, &order),
		})
		require.NoError(t, err)
	}

	require.NoError(t, bus.Fire(context.Background(), bookEvent{title: "dune"}, typeref.ClassRef(testBook)))
	assert.Equal(t, []string{"ten", "twenty", "thirty"}, order)
}

func TestFireFailsFast(t *testing.T) {
	bus := newTestBus()
	var order []string
	boom := errors.New("boom")

	_, err := bus.Observe(ObserverConfig{
		ObservedType: typeref.ClassRef(testBook),
		Priority:     1,
		Handler:      orderedHandler("first", &order),
	})
	require.NoError(t, err)
	_, err = bus.Observe(ObserverConfig{
		ID:           "failing",
		ObservedType: typeref.ClassRef(testBook),
		Priority:     2,
		Handler: func(context.Context, any, EventMetadata) error {
			order = append(order, "second")
			return boom
		},
	})
	require.NoError(t, err)
	_, err = bus.Observe(ObserverConfig{
		ObservedType: typeref.ClassRef(testBook),
		Priority:     3,
		Handler:      orderedHandler("third", &order),
	})
	require.NoError(t, err)

	err = bus.Fire(context.Background(), bookEvent{}, typeref.ClassRef(testBook))
	require.Error(t, err)
	assert.Equal(t, []string{"first", "second"}, order)
	assert.ErrorIs(t, err, boom)

	var notificationErr *NotificationError
	require.ErrorAs(t, err, &notificationErr)
	assert.Equal(t, "failing", notificationErr.ObserverID)
}

func TestFirePartitionsByMode(t *testing.T) {
	bus := newTestBus()
	defer bus.Close(context.Background())

	var syncCount, asyncCount atomic.Int64
	_, err := bus.Observe(ObserverConfig{
		ObservedType: typeref.ClassRef(testBook),
		Handler:      countingHandler(&syncCount),
	})
	require.NoError(t, err)
	_, err = bus.Observe(ObserverConfig{
		ObservedType: typeref.ClassRef(testBook),
		Async:        true,
		Handler:      countingHandler(&asyncCount),
	})
	require.NoError(t, err)

	require.NoError(t, bus.Fire(context.Background(), bookEvent{}, typeref.ClassRef(testBook)))
	assert.Equal(t, int64(1), syncCount.Load())
	assert.Zero(t, asyncCount.Load())

	completion, err := bus.FireAsync(context.Background(), bookEvent{}, typeref.ClassRef(testBook), nil, nil)
	require.NoError(t, err)
	_, err = completion.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), syncCount.Load())
	assert.Equal(t, int64(1), asyncCount.Load())
}

func TestFireWithQualifiers(t *testing.T) {
	bus := newTestBus()
	admin := NewQualifier("admin", nil)

	var plain, qualified atomic.Int64
	_, err := bus.Observe(ObserverConfig{
		ObservedType: typeref.ClassRef(testBook),
		Handler:      countingHandler(&plain),
	})
	require.NoError(t, err)
	_, err = bus.Observe(ObserverConfig{
		ObservedType: typeref.ClassRef(testBook),
		Qualifiers:   []Qualifier{admin},
		Handler:      countingHandler(&qualified),
	})
	require.NoError(t, err)

	require.NoError(t, bus.Fire(context.Background(), bookEvent{}, typeref.ClassRef(testBook)))
	assert.Equal(t, int64(1), plain.Load())
	assert.Zero(t, qualified.Load())

	require.NoError(t, bus.Fire(context.Background(), bookEvent{}, typeref.ClassRef(testBook), admin))
	assert.Equal(t, int64(2), plain.Load())
	assert.Equal(t, int64(1), qualified.Load())
}

func TestFireRejectsContainerEventClasses(t *testing.T) {
	bus := newTestBus()

	err := bus.Fire(context.Background(), AfterDiscovery{}, typeref.ClassRef(ClassAfterDiscovery))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrContainerEventFired)

	_, err = bus.FireAsync(context.Background(), BeforeShutdown{}, typeref.ClassRef(ClassBeforeShutdown), nil, nil)
	assert.ErrorIs(t, err, ErrContainerEventFired)
}

func TestFireLifecycleDeliversToExtensionsOnly(t *testing.T) {
	bus := newTestBus()

	var extension, application atomic.Int64
	_, err := bus.Observe(ObserverConfig{
		ObservedType: typeref.ClassRef(ClassAfterDiscovery),
		Component:    ComponentExtension,
		Handler:      countingHandler(&extension),
	})
	require.NoError(t, err)
	_, err = bus.Observe(ObserverConfig{
		ObservedType: typeref.ClassRef(ClassAfterDiscovery),
		Component:    ComponentApplication,
		Handler:      countingHandler(&application),
	})
	require.NoError(t, err)

	require.NoError(t, bus.FireLifecycle(context.Background(), AfterDiscovery{}, typeref.ClassRef(ClassAfterDiscovery)))
	assert.Equal(t, int64(1), extension.Load())
	assert.Zero(t, application.Load())
}

func TestFireLifecycleErrorEscalation(t *testing.T) {
	bus := newTestBus()
	boom := errors.New("extension broke")

	for _, class := range []*typeref.Class{ClassAfterDiscovery, ClassAfterValidation} {
		_, err := bus.Observe(ObserverConfig{
			ObservedType: typeref.ClassRef(class),
			Component:    ComponentExtension,
			Handler: func(context.Context, any, EventMetadata) error {
				return boom
			},
		})
		require.NoError(t, err)
	}

	err := bus.FireLifecycle(context.Background(), AfterDiscovery{}, typeref.ClassRef(ClassAfterDiscovery))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrContainerLifecycle)
	assert.ErrorIs(t, err, boom)

	// Errors during the terminal validation event fail the deployment.
	err = bus.FireLifecycle(context.Background(), AfterValidation{}, typeref.ClassRef(ClassAfterValidation))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDeploymentFailed)
	assert.ErrorIs(t, err, boom)
}

type recordingSynchronizer struct {
	phases []TransactionPhase
}

func (s *recordingSynchronizer) RegisterSynchronization(_ context.Context, phase TransactionPhase, _ *Observer, _ any) error {
	s.phases = append(s.phases, phase)
	return nil
}

func TestTransactionPhaseHandoff(t *testing.T) {
	synchronizer := &recordingSynchronizer{}
	bus := newTestBus(WithTransactionSynchronizer(synchronizer))

	var invoked atomic.Int64
	_, err := bus.Observe(ObserverConfig{
		ObservedType:     typeref.ClassRef(testBook),
		TransactionPhase: PhaseAfterSuccess,
		Handler:          countingHandler(&invoked),
	})
	require.NoError(t, err)

	require.NoError(t, bus.Fire(context.Background(), bookEvent{}, typeref.ClassRef(testBook)))
	assert.Zero(t, invoked.Load())
	assert.Equal(t, []TransactionPhase{PhaseAfterSuccess}, synchronizer.phases)
}

func TestTransactionPhaseFallsBackToImmediate(t *testing.T) {
	// Without a synchronizer collaborator the observer is notified in line.
	bus := newTestBus()

	var invoked atomic.Int64
	_, err := bus.Observe(ObserverConfig{
		ObservedType:     typeref.ClassRef(testBook),
		TransactionPhase: PhaseAfterCompletion,
		Handler:          countingHandler(&invoked),
	})
	require.NoError(t, err)

	require.NoError(t, bus.Fire(context.Background(), bookEvent{}, typeref.ClassRef(testBook)))
	assert.Equal(t, int64(1), invoked.Load())
}

func TestFireAsyncRejectsTransactionPhase(t *testing.T) {
	bus := newTestBus()

	var invoked atomic.Int64
	_, err := bus.Observe(ObserverConfig{
		ObservedType:     typeref.ClassRef(testBook),
		Async:            true,
		TransactionPhase: PhaseBeforeCompletion,
		Handler:          countingHandler(&invoked),
	})
	require.NoError(t, err)

	_, err = bus.FireAsync(context.Background(), bookEvent{}, typeref.ClassRef(testBook), nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAsyncObserverTransactionPhase)
	assert.Zero(t, invoked.Load())
}

// inlineExecutor runs tasks synchronously on the submitting goroutine.
type inlineExecutor struct {
	submissions int
}

func (e *inlineExecutor) Submit(task func()) error {
	e.submissions++
	task()
	return nil
}

func TestFireAsyncExecutorOverride(t *testing.T) {
	busExecutor := &inlineExecutor{}
	bus := newTestBus(WithExecutor(busExecutor))

	var invoked atomic.Int64
	_, err := bus.Observe(ObserverConfig{
		ObservedType: typeref.ClassRef(testBook),
		Async:        true,
		Handler:      countingHandler(&invoked),
	})
	require.NoError(t, err)

	completion, err := bus.FireAsync(context.Background(), bookEvent{}, typeref.ClassRef(testBook), nil, nil)
	require.NoError(t, err)
	require.True(t, completion.Settled())
	assert.Equal(t, 1, busExecutor.submissions)

	override := &inlineExecutor{}
	completion, err = bus.FireAsync(context.Background(), bookEvent{}, typeref.ClassRef(testBook), nil,
		&AsyncOptions{Executor: override})
	require.NoError(t, err)
	require.True(t, completion.Settled())
	assert.Equal(t, 1, override.submissions)
	assert.Equal(t, 1, busExecutor.submissions)
	assert.Equal(t, int64(2), invoked.Load())
}

type rejectingExecutor struct{}

func (rejectingExecutor) Submit(func()) error { return ErrPoolShutdown }

func TestFireAsyncSurfacesSubmissionFailure(t *testing.T) {
	bus := newTestBus(WithExecutor(rejectingExecutor{}))

	_, err := bus.Observe(ObserverConfig{
		ObservedType: typeref.ClassRef(testBook),
		Async:        true,
		Handler:      nopHandler,
	})
	require.NoError(t, err)

	_, err = bus.FireAsync(context.Background(), bookEvent{}, typeref.ClassRef(testBook), nil, nil)
	assert.ErrorIs(t, err, ErrPoolShutdown)
}

func TestCloseWithoutDefaultPool(t *testing.T) {
	bus := newTestBus()
	assert.NoError(t, bus.Close(context.Background()))
}
