package markersync

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"crimemap/internal/models"

	"go.uber.org/zap"
)

// ErrClosed is returned by operations on a closed engine.
var ErrClosed = errors.New("marker sync engine closed")

// State is the lifecycle stage of an Engine.
type State int32

const (
	StateUninitialized State = iota
	StateInitialized
	StatePopulated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StatePopulated:
		return "populated"
	}
	return "unknown"
}

// Options configures an Engine.
type Options struct {
	Fetcher Fetcher
	Surface Surface
	Filters *FilterState
	Logger  *zap.Logger

	// SettleInterval defaults to DefaultSettleInterval.
	SettleInterval time.Duration
	// FetchTimeout bounds a single fetch; zero means no timeout.
	FetchTimeout time.Duration
	// RefetchOnFilterChange schedules a settle fetch after every filter
	// change, since a wider filter may need incidents the cache lacks.
	RefetchOnFilterChange bool
}

// Stats is a point-in-time view of engine counters.
type Stats struct {
	State         State
	Cached        int
	Fetches       int64
	FetchFailures int64
	Reconciles    int64
}

// Engine keeps the markers on a Surface in sync with incidents fetched for
// the viewport and with the published filter. Viewport moves are debounced
// into fetches; filter changes reconcile straight away. Fetches are never
// cancelled by later ones and may overlap; the idempotent cache merge makes
// their arrival order irrelevant. Reconciliations run one at a time.
type Engine struct {
	cache       *Cache
	reconciler  *Reconciler
	coordinator *Coordinator
	debouncer   *Debouncer
	filters     *FilterState
	surface     Surface
	logr        *zap.Logger
	refetch     bool

	reconcileMu sync.Mutex
	state       atomic.Int32

	fetches       atomic.Int64
	fetchFailures atomic.Int64
	reconciles    atomic.Int64

	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	unsubs   []func()
	inflight sync.WaitGroup
	closed   bool
}

// New builds an engine. Nothing runs until Start.
func New(opts Options) (*Engine, error) {
	if opts.Fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if opts.Surface == nil {
		return nil, errors.New("surface is required")
	}
	if opts.Filters == nil {
		return nil, errors.New("filter state is required")
	}
	logr := opts.Logger
	if logr == nil {
		logr = zap.NewNop()
	}

	e := &Engine{
		cache:   NewCache(),
		filters: opts.Filters,
		surface: opts.Surface,
		logr:    logr,
		refetch: opts.RefetchOnFilterChange,
	}
	e.reconciler = NewReconciler(e.cache, opts.Surface, logr)
	e.coordinator = NewCoordinator(opts.Fetcher, e.cache, logr, opts.FetchTimeout, e.afterMerge)
	e.debouncer = NewDebouncer(opts.SettleInterval, e.onSettled)
	return e, nil
}

// Start subscribes to filter changes and viewport moves and schedules the
// initial fetch for the current view.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.ctx != nil {
		return errors.New("engine already started")
	}

	e.ctx, e.cancel = context.WithCancel(ctx)
	e.unsubs = append(e.unsubs,
		e.filters.Subscribe(e.onFilterChanged),
		e.surface.OnViewportChange(e.debouncer.NotifyMoved),
	)
	e.state.CompareAndSwap(int32(StateUninitialized), int32(StateInitialized))
	e.logr.Info("marker sync engine started")

	e.debouncer.NotifyMoved()
	return nil
}

// Refresh fetches for the current viewport and filter right away,
// bypassing the debouncer. Failures are logged and returned. Close waits
// for a running Refresh and, once started, cancels it.
func (e *Engine) Refresh(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	engineCtx := e.ctx
	e.inflight.Add(1)
	e.mu.Unlock()
	defer e.inflight.Done()

	if engineCtx != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(ctx)
		defer cancel()
		stop := context.AfterFunc(engineCtx, cancel)
		defer stop()
	}
	return e.fetch(ctx)
}

// Reconcile re-runs the reconciler against the current filter.
func (e *Engine) Reconcile() (Result, error) {
	if e.isClosed() {
		return Result{}, ErrClosed
	}
	return e.reconcile()
}

// Cache exposes the engine's incident cache for reads.
func (e *Engine) Cache() *Cache {
	return e.cache
}

// State returns the lifecycle stage.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Stats returns the engine counters.
func (e *Engine) Stats() Stats {
	return Stats{
		State:         e.State(),
		Cached:        e.cache.Len(),
		Fetches:       e.fetches.Load(),
		FetchFailures: e.fetchFailures.Load(),
		Reconciles:    e.reconciles.Load(),
	}
}

// Wait blocks until every settle-triggered fetch started so far finished.
func (e *Engine) Wait() {
	e.inflight.Wait()
}

// Close stops the debouncer, drops subscriptions and cancels in-flight
// fetches. The rendered markers stay as they are.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.debouncer.Stop()
	for _, unsub := range e.unsubs {
		unsub()
	}
	e.unsubs = nil
	if e.cancel != nil {
		e.cancel()
	}
	e.mu.Unlock()

	e.inflight.Wait()
	e.logr.Info("marker sync engine closed", zap.Int("cached", e.cache.Len()))
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

func (e *Engine) onSettled() {
	e.mu.Lock()
	if e.closed || e.ctx == nil {
		e.mu.Unlock()
		return
	}
	ctx := e.ctx
	e.inflight.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.inflight.Done()
		_ = e.fetch(ctx)
	}()
}

func (e *Engine) fetch(ctx context.Context) error {
	bounds, err := e.surface.Viewport()
	if err != nil {
		e.logr.Warn("viewport lookup failed, skipping fetch", zap.Error(err))
		return err
	}

	f := e.filters.Current()
	e.fetches.Add(1)
	if _, err := e.coordinator.Fetch(ctx, bounds, f); err != nil {
		e.fetchFailures.Add(1)
		return err
	}
	// an empty selection sends no request and leaves the state alone
	if !f.Empty() {
		e.state.Store(int32(StatePopulated))
	}
	return nil
}

func (e *Engine) afterMerge(_ []models.Incident) {
	if _, err := e.reconcile(); err != nil {
		e.logr.Error("reconcile after fetch failed", zap.Error(err))
	}
}

// onFilterChanged ignores the delivered snapshot; reconcile reads the
// current filter under its lock.
func (e *Engine) onFilterChanged(_ Filter) {
	if e.isClosed() {
		return
	}
	if _, err := e.reconcile(); err != nil {
		e.logr.Error("reconcile after filter change failed", zap.Error(err))
	}
	if e.refetch {
		e.debouncer.NotifyMoved()
	}
}

func (e *Engine) reconcile() (Result, error) {
	e.reconcileMu.Lock()
	defer e.reconcileMu.Unlock()

	e.reconciles.Add(1)
	return e.reconciler.Reconcile(e.filters.Current())
}
