package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Result is what the remote refresh operation reports on success.
type Result struct {
	CSVFilesFetched int `json:"csv_files_fetched"`
	RowsImported    int `json:"rows_imported"`
}

// Remote is the backend collaborator. Refresh runs the actual data
// refresh; LastSync reports the server-side last sync (zero = none).
type Remote interface {
	Refresh(ctx context.Context) (*Result, error)
	LastSync(ctx context.Context) (time.Time, error)
}

// Persistence is the durable slot holding the last successful sync.
// Implementations must degrade silently: Load reports absent on any
// storage failure and Save never propagates errors.
type Persistence interface {
	Load() (time.Time, bool)
	Save(t time.Time)
}

// State is the read-only surface consumed by status and button views.
type State struct {
	IsLoading     bool       `json:"isLoading"`
	CanSync       bool       `json:"canSync"`
	LastSync      *time.Time `json:"lastSyncTime"`
	NextAvailable *time.Time `json:"nextAvailableTime"`
	TimeUntilNext string     `json:"timeUntilNext"`
	Error         string     `json:"error,omitempty"`
}

// Controller owns the sync lifecycle: availability, the live countdown,
// the trigger action, and reconciliation with the server-reported sync
// time. lastSync, loading and errMsg are the only authoritative fields;
// everything else in State is re-derived from them on every read.
type Controller struct {
	rule   Rule
	remote Remote
	store  Persistence
	tick   time.Duration
	now    func() time.Time

	mu       sync.Mutex
	lastSync time.Time
	loading  bool
	errMsg   string
	closed   bool

	onUpdate func(State)
}

func NewController(rule Rule, remote Remote, store Persistence, tick time.Duration) *Controller {
	c := &Controller{
		rule:   rule,
		remote: remote,
		store:  store,
		tick:   tick,
		now:    time.Now,
	}
	if t, ok := store.Load(); ok {
		c.lastSync = t
	}
	return c
}

// SetClock overrides the time source. Test hook; call before Run.
func (c *Controller) SetClock(now func() time.Time) { c.now = now }

// SetOnUpdate registers a callback invoked with a fresh snapshot on
// every tick. Call before Run.
func (c *Controller) SetOnUpdate(fn func(State)) { c.onUpdate = fn }

// Snapshot derives the current state from the authoritative fields.
// Idempotent: calling it any number of times has no side effects.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() State {
	now := c.now()
	st := State{
		IsLoading: c.loading,
		Error:     c.errMsg,
	}
	if !c.lastSync.IsZero() {
		t := c.lastSync
		st.LastSync = &t
	}
	if next := c.rule.NextAvailable(c.lastSync, now); next.IsZero() {
		st.CanSync = !c.loading
	} else {
		st.NextAvailable = &next
		st.TimeUntilNext = FormatRemaining(next, now)
	}
	return st
}

// TriggerSync performs one refresh if the availability rule allows it.
// A call while a sync is already in flight, or while the rule forbids
// one, is a no-op that returns the current state. A failed refresh
// surfaces its message in State.Error and never advances the last-sync
// record, so the user can retry immediately.
func (c *Controller) TriggerSync(ctx context.Context) State {
	c.mu.Lock()
	eligible := !c.loading && !c.closed && c.rule.NextAvailable(c.lastSync, c.now()).IsZero()
	if !eligible {
		st := c.snapshotLocked()
		c.mu.Unlock()
		return st
	}
	c.loading = true
	c.errMsg = ""
	c.mu.Unlock()

	log.Info().Msg("data sync started")
	res, err := c.remote.Refresh(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		// Completed after teardown: discard the result.
		return c.snapshotLocked()
	}
	c.loading = false
	if err != nil {
		c.errMsg = err.Error()
		log.Error().Err(err).Msg("data sync failed")
		return c.snapshotLocked()
	}
	c.lastSync = c.now()
	c.errMsg = ""
	c.store.Save(c.lastSync)
	log.Info().
		Int("csv_files", res.CSVFilesFetched).
		Int("rows", res.RowsImported).
		Time("last_sync", c.lastSync).
		Msg("data sync complete")
	return c.snapshotLocked()
}

// Reconcile adopts the server-reported last sync when it is strictly
// newer than the local record; an older or equal report leaves the
// local value untouched. Best effort: failures are logged, never
// surfaced as State.Error.
func (c *Controller) Reconcile(ctx context.Context) {
	serverLast, err := c.remote.LastSync(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("server sync status unavailable")
		return
	}
	if serverLast.IsZero() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !serverLast.After(c.lastSync) {
		return
	}
	c.lastSync = serverLast
	c.store.Save(serverLast)
	log.Info().Time("last_sync", serverLast).Msg("adopted server-reported last sync")
}

// Run reconciles once in the background, then re-derives state on every
// tick until ctx is cancelled. The tick never touches the authoritative
// fields; only TriggerSync and Reconcile write them.
func (c *Controller) Run(ctx context.Context) error {
	go c.Reconcile(ctx)

	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.Close()
			return ctx.Err()
		case <-ticker.C:
			if c.onUpdate != nil {
				c.onUpdate(c.Snapshot())
			}
		}
	}
}

// Close marks the controller torn down. In-flight refreshes may still
// complete, but their results are discarded.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}
