package accessory

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultPollInterval is the reconciliation period. The same value is the
// deadline applied to each tick's device queries.
const DefaultPollInterval = 2000 * time.Millisecond

// AliveChecker is the primary-device query used by the Reconciler.
type AliveChecker interface {
	CheckAlive(ctx context.Context) bool
}

// VolumeReader is the secondary-device query used by the Reconciler.
type VolumeReader interface {
	IsConnected() bool
	Volume(ctx context.Context) (int, error)
}

// Reconciler periodically polls both devices and refreshes CachedState.
//
// Each tick queries the primary's liveness and, only while the secondary is
// connected, the secondary's volume, concurrently and under a deadline equal
// to the poll interval. Results that arrive in time are stored; failed or
// abandoned queries leave the cached field unchanged. The next tick is always
// scheduled one interval after the previous one finished, whatever its
// outcome. The loop only ends when its context is cancelled or Stop is called.
//
// Thread Safety: All methods are safe for concurrent use.
type Reconciler struct {
	primary   AliveChecker
	secondary VolumeReader
	cache     *CachedState
	interval  time.Duration
	logger    Logger

	observers   []func(State)
	observersMu sync.RWMutex

	// Shutdown coordination (stopOnce prevents double-close panics)
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// ReconcilerConfig holds the dependencies of a Reconciler.
type ReconcilerConfig struct {
	Primary   AliveChecker
	Secondary VolumeReader
	Cache     *CachedState

	// Interval is the poll period and tick deadline.
	// Default: DefaultPollInterval.
	Interval time.Duration

	Logger Logger
}

// volumeResult carries the outcome of one volume query.
type volumeResult struct {
	pct int
	err error
}

// NewReconciler creates a Reconciler. Call Start to begin polling.
func NewReconciler(cfg ReconcilerConfig) *Reconciler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	cache := cfg.Cache
	if cache == nil {
		cache = NewCachedState(State{})
	}

	return &Reconciler{
		primary:   cfg.Primary,
		secondary: cfg.Secondary,
		cache:     cache,
		interval:  interval,
		logger:    orNop(cfg.Logger),
		done:      make(chan struct{}),
	}
}

// Cache returns the state cache written by this Reconciler.
func (r *Reconciler) Cache() *CachedState {
	return r.cache
}

// Interval returns the poll period.
func (r *Reconciler) Interval() time.Duration {
	return r.interval
}

// OnUpdate registers fn to receive every snapshot a tick stores. Observers
// run synchronously on the reconciler goroutine and must not block.
func (r *Reconciler) OnUpdate(fn func(State)) {
	r.observersMu.Lock()
	r.observers = append(r.observers, fn)
	r.observersMu.Unlock()
}

// Start begins periodic reconciliation. The first tick runs immediately.
func (r *Reconciler) Start(ctx context.Context) {
	r.wg.Add(1)
	go r.loop(ctx)
}

// Stop ends reconciliation and waits for the current tick to finish.
// Safe to call multiple times.
func (r *Reconciler) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
		r.wg.Wait()
	})
}

func (r *Reconciler) loop(ctx context.Context) {
	defer r.wg.Done()

	// Stop must also abort a tick that is waiting on devices.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-r.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		r.logger.Debug("tick")
		if err := r.Tick(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error("state poll incomplete", "error", err)
		}

		timer.Reset(r.interval)
	}
}

// Tick runs one reconciliation pass and returns the combined query errors.
// The cache is updated with whatever completed before the deadline.
func (r *Reconciler) Tick(ctx context.Context) error {
	tickCtx, cancel := context.WithTimeout(ctx, r.interval)
	defer cancel()

	powerCh := make(chan bool, 1)
	go func() {
		powerCh <- r.primary.CheckAlive(tickCtx)
	}()

	var volumeCh chan volumeResult
	pending := 1
	if r.secondary != nil && r.secondary.IsConnected() {
		volumeCh = make(chan volumeResult, 1)
		pending++
		go func() {
			pct, err := r.secondary.Volume(tickCtx)
			volumeCh <- volumeResult{pct: pct, err: err}
		}()
	}

	next := r.cache.Load()
	updated := false
	var errs []error

	for pending > 0 {
		select {
		case on := <-powerCh:
			powerCh = nil
			pending--
			// A "not alive" caused by the deadline is a timeout, not an observation.
			if !on && tickCtx.Err() != nil {
				continue
			}
			next.PowerOn = on
			updated = true

		case res := <-volumeCh:
			volumeCh = nil
			pending--
			if res.err != nil {
				errs = append(errs, res.err)
				continue
			}
			next.VolumePercent = res.pct
			updated = true

		case <-tickCtx.Done():
			late, err := collectReady(&next, powerCh, volumeCh)
			if late {
				updated = true
			}
			if err != nil {
				errs = append(errs, err)
			}
			if err := ctx.Err(); err != nil {
				errs = append(errs, err)
			} else {
				errs = append(errs, ErrTickTimeout)
			}
			pending = 0
		}
	}

	if updated {
		next.UpdatedAt = time.Now().UTC()
		r.cache.store(next)
		r.notify(next)
	}

	return errors.Join(errs...)
}

// collectReady takes results that were already buffered when the deadline
// fired; select picks among ready cases at random. A false liveness result
// is still discarded because the deadline may have caused it. Nil channels
// were consumed earlier.
func collectReady(next *State, powerCh <-chan bool, volumeCh <-chan volumeResult) (bool, error) {
	updated := false
	var err error

	select {
	case on := <-powerCh:
		if on {
			next.PowerOn = true
			updated = true
		}
	default:
	}

	select {
	case res := <-volumeCh:
		if res.err != nil {
			err = res.err
		} else {
			next.VolumePercent = res.pct
			updated = true
		}
	default:
	}

	return updated, err
}

func (r *Reconciler) notify(s State) {
	r.observersMu.RLock()
	observers := make([]func(State), len(r.observers))
	copy(observers, r.observers)
	r.observersMu.RUnlock()

	for _, fn := range observers {
		fn(s)
	}
}
