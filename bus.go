package eventwire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/eventwire/eventwire/typeref"
)

// Bus is the event notification dispatcher. It owns the observer registry, the
// resolver and the default worker pool, and executes the firing protocol:
// resolve, partition by mode, order by priority, invoke.
//
// Multiple firings proceed concurrently on independent goroutines; the
// registry is written only during bootstrap. Within one synchronous firing
// observers run strictly in priority order on the caller's goroutine; across
// firings no ordering guarantee exists.
type Bus struct {
	registry    *Registry
	resolver    *Resolver
	config      *Config
	txn         TransactionSynchronizer
	diagnostics QualifierDiagnostics
	logger      *slog.Logger

	executor    Executor
	defaultPool *Pool
	poolOnce    sync.Once
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the structured logger used by the bus and its registry.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) { b.logger = logger }
}

// WithConfig sets the bus configuration.
func WithConfig(config *Config) Option {
	return func(b *Bus) { b.config = config }
}

// WithExecutor supplies an external executor for asynchronous invocation,
// replacing the bus's default worker pool.
func WithExecutor(executor Executor) Option {
	return func(b *Bus) { b.executor = executor }
}

// WithTransactionSynchronizer sets the transaction-synchronization
// collaborator used for observers with a non-default transaction phase.
func WithTransactionSynchronizer(txn TransactionSynchronizer) Option {
	return func(b *Bus) { b.txn = txn }
}

// WithQualifierDiagnostics sets the collaborator used to validate fired
// qualifiers when a non-lifecycle firing matches zero observers.
func WithQualifierDiagnostics(diagnostics QualifierDiagnostics) Option {
	return func(b *Bus) { b.diagnostics = diagnostics }
}

// New creates a Bus with the given options.
func New(opts ...Option) *Bus {
	b := &Bus{}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	if b.config == nil {
		b.config = DefaultConfig()
	}
	b.registry = NewRegistry(b.config.RawCacheSize, b.config.PresenceCacheSize, b.logger)
	b.resolver = NewResolver(b.registry, b.diagnostics, b.logger)
	return b
}

// Register inserts an observer into the registry.
func (b *Bus) Register(observer *Observer) error {
	return b.registry.Register(observer)
}

// Observe constructs an observer from the configuration and registers it.
func (b *Bus) Observe(cfg ObserverConfig) (*Observer, error) {
	observer, err := NewObserver(cfg)
	if err != nil {
		return nil, err
	}
	if err := b.registry.Register(observer); err != nil {
		return nil, err
	}
	return observer, nil
}

// AllObservers returns every registered observer; order is unspecified.
func (b *Bus) AllObservers() []*Observer {
	return b.registry.AllObservers()
}

// HasLifecycleObserver reports whether any observer declares the given
// qualifier. Cached per distinct qualifier value until ClearCaches.
func (b *Bus) HasLifecycleObserver(qualifier Qualifier) bool {
	return b.registry.HasLifecycleObserver(qualifier)
}

// ClearCaches resets the derived caches. Call exactly once at the end of
// bootstrap so lifecycle-time resolutions never leak into steady state.
func (b *Bus) ClearCaches() {
	b.registry.ClearCaches()
}

// Fire delivers an event synchronously to all matching synchronous observers
// in ascending priority order on the caller's goroutine. The first observer
// error aborts the remaining invocations and propagates to the caller.
func (b *Bus) Fire(ctx context.Context, event any, declared typeref.Ref, qualifiers ...Qualifier) error {
	metadata := newEventMetadata(declared, qualifiers, false)
	_, err := b.fire(ctx, event, metadata, false, nil)
	return err
}

// AsyncOptions configures one asynchronous firing.
type AsyncOptions struct {
	// Executor overrides the bus executor for this firing.
	Executor Executor
}

// FireAsync delivers an event to all matching asynchronous observers via the
// worker pool and returns the completion handle without blocking. All tasks
// run to completion regardless of individual failures; the handle aggregates
// every error.
func (b *Bus) FireAsync(ctx context.Context, event any, declared typeref.Ref, qualifiers []Qualifier, opts *AsyncOptions) (*Completion, error) {
	metadata := newEventMetadata(declared, qualifiers, false)
	var executor Executor
	if opts != nil {
		executor = opts.Executor
	}
	return b.fire(ctx, event, metadata, true, executor)
}

// FireLifecycle delivers a container lifecycle event synchronously. Matching
// uses the inverted container rules and delivery is restricted to observers
// owned by extension components; observer errors escalate per the lifecycle
// error policy and abort the bootstrap.
func (b *Bus) FireLifecycle(ctx context.Context, event any, declared typeref.Ref, qualifiers ...Qualifier) error {
	metadata := newEventMetadata(declared, qualifiers, true)
	_, err := b.fire(ctx, event, metadata, false, nil)
	return err
}

// Close drains and releases the default worker pool. When the context carries
// no deadline the configured shutdown timeout bounds the drain. Busses using an
// external executor have nothing to release.
func (b *Bus) Close(ctx context.Context) error {
	if b.defaultPool == nil {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok && b.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.config.ShutdownTimeout)
		defer cancel()
	}
	return b.defaultPool.Close(ctx)
}

// poolExecutor returns the executor for an async firing: the per-call
// override, the externally supplied executor, or the lazily created default
// pool, in that order.
func (b *Bus) poolExecutor(override Executor) Executor {
	if override != nil {
		return override
	}
	if b.executor != nil {
		return b.executor
	}
	b.poolOnce.Do(func() {
		b.defaultPool = NewPool(b.config.WorkerCount, b.config.QueueSize, b.logger)
	})
	return b.defaultPool
}

func (b *Bus) fire(ctx context.Context, event any, metadata EventMetadata, async bool, executor Executor) (*Completion, error) {
	eventClass := dynamicClass(event, metadata.Declared)
	if !metadata.Lifecycle && IsContainerEventClass(eventClass) {
		return nil, fmt.Errorf("%w: %s", ErrContainerEventFired, eventClass)
	}

	candidates, err := b.resolver.ResolveObservers(event, metadata)
	if err != nil {
		return nil, err
	}

	// Partition: observers registered for the opposite mode are never invoked
	// by firings of this mode.
	retained := candidates[:0:0]
	for _, observer := range candidates {
		if observer.IsAsync() != async {
			continue
		}
		// Container events are never delivered to ordinary application
		// observers, even if one somehow registered for them.
		if metadata.Lifecycle && observer.Component() != ComponentExtension {
			continue
		}
		retained = append(retained, observer)
	}

	sort.SliceStable(retained, func(i, j int) bool {
		return retained[i].Priority() < retained[j].Priority()
	})

	if async {
		return b.invokeAsync(ctx, event, metadata, retained, b.poolExecutor(executor))
	}
	return nil, b.invokeSync(ctx, event, metadata, retained)
}

func (b *Bus) invokeSync(ctx context.Context, event any, metadata EventMetadata, observers []*Observer) error {
	for _, observer := range observers {
		var err error
		if phase := observer.TransactionPhase(); phase != PhaseInProgress && b.txn != nil {
			err = b.txn.RegisterSynchronization(ctx, phase, observer, event)
		} else {
			err = observer.Notify(ctx, event, metadata)
		}
		if err != nil {
			// Fail fast: remaining observers in the ordered list are not
			// invoked.
			return b.escalate(err, event, metadata, observer)
		}
	}
	return nil
}

func (b *Bus) invokeAsync(ctx context.Context, event any, metadata EventMetadata, observers []*Observer, executor Executor) (*Completion, error) {
	// A non-default transaction phase on an async observer is a configuration
	// error; it is raised before anything is submitted.
	for _, observer := range observers {
		if observer.TransactionPhase() != PhaseInProgress {
			return nil, fmt.Errorf("%w: observer %s declares phase %s",
				ErrAsyncObserverTransactionPhase, observer.ObserverID(), observer.TransactionPhase())
		}
	}

	completion := newCompletion(event, len(observers))
	for _, observer := range observers {
		observer := observer
		task := func() {
			defer completion.taskDone()
			defer func() {
				if r := recover(); r != nil {
					completion.taskFailed(fmt.Errorf("observer %s panicked: %v", observer.ObserverID(), r))
					b.logger.Error("async observer panicked",
						"observerID", observer.ObserverID(), "firingID", metadata.FiringID, "panic", r)
				}
			}()
			if err := observer.Notify(ctx, event, metadata); err != nil {
				completion.taskFailed(&NotificationError{
					ObserverID: observer.ObserverID(),
					EventType:  metadata.Declared.Key(),
					Err:        err,
				})
				b.logger.Error("async observer failed",
					"observerID", observer.ObserverID(), "firingID", metadata.FiringID, "error", err)
			}
		}
		if err := executor.Submit(task); err != nil {
			// Pool rejection surfaces to the firer immediately, never as a
			// silent drop.
			return nil, err
		}
	}
	return completion, nil
}

// escalate reclassifies a synchronous observer error per the error policy:
// lifecycle delivery errors become deployment or container configuration
// errors; ordinary observer errors are wrapped as notification failures once.
func (b *Bus) escalate(err error, event any, metadata EventMetadata, observer *Observer) error {
	if metadata.Lifecycle {
		if dynamicClass(event, metadata.Declared) == ClassAfterValidation {
			return fmt.Errorf("%w: %w", ErrDeploymentFailed, err)
		}
		return fmt.Errorf("%w: %w", ErrContainerLifecycle, err)
	}
	var notificationErr *NotificationError
	if errors.As(err, &notificationErr) {
		return err
	}
	return &NotificationError{
		ObserverID: observer.ObserverID(),
		EventType:  metadata.Declared.Key(),
		Err:        err,
	}
}
