// Package watch runs the stock-watching loop: it checks every target on a
// fixed interval, tracks per-target availability and decides which changes
// are worth a notification.
package watch

import (
	"sync"
	"time"

	"github.com/fwojciec/stockwatch"
)

// TargetStatus is what the watcher currently knows about a target.
type TargetStatus struct {
	Target *stockwatch.Target

	// State is nil until the target has been observed successfully.
	State *stockwatch.TrackState

	CheckedAt   time.Time
	Failure     string // reason of the last check if it failed
	ContentHash string
}

// Known reports whether the target's availability is known.
func (s TargetStatus) Known() bool {
	return s.State != nil
}

type entry struct {
	target      *stockwatch.Target
	state       *stockwatch.TrackState
	checkedAt   time.Time
	failure     string
	contentHash string
}

// Tracker owns the availability state of every watched target, keyed by
// target ID. State lives in memory only and is rebuilt after a restart.
//
// Tracker is safe for concurrent use.
type Tracker struct {
	limit int

	mu      sync.Mutex
	entries map[string]*entry
	active  map[string]struct{}

	// version counts membership changes. added and removed record the
	// version at which Track or Forget last touched an ID.
	version uint64
	added   map[string]uint64
	removed map[string]uint64
}

// NewTracker creates a Tracker that sends at most limit availability
// notifications per availability window. A limit below 1 uses
// stockwatch.DefaultRepeatCap.
func NewTracker(limit int) *Tracker {
	if limit < 1 {
		limit = stockwatch.DefaultRepeatCap
	}
	return &Tracker{
		limit:   limit,
		entries: make(map[string]*entry),
		active:  make(map[string]struct{}),
		added:   make(map[string]uint64),
		removed: make(map[string]uint64),
	}
}

// Cap returns the repeat notification cap.
func (tr *Tracker) Cap() int {
	return tr.limit
}

// Observe feeds one observation for t through the decision table and
// records the result. It returns the notification to send, if any.
func (tr *Tracker) Observe(t *stockwatch.Target, obs stockwatch.Observation, baseline bool) *stockwatch.Event {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.observe(t, obs, baseline)
}

// Apply is like Observe but ignores observations for targets that are not
// in the active set, such as a target removed while its check was running.
func (tr *Tracker) Apply(t *stockwatch.Target, obs stockwatch.Observation, baseline bool) *stockwatch.Event {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	if _, ok := tr.active[t.ID]; !ok {
		return nil
	}
	return tr.observe(t, obs, baseline)
}

func (tr *Tracker) observe(t *stockwatch.Target, obs stockwatch.Observation, baseline bool) *stockwatch.Event {
	e := tr.entries[t.ID]
	if e == nil {
		e = &entry{}
		tr.entries[t.ID] = e
	}

	next, ev := stockwatch.Observe(obs, e.state, baseline, tr.limit)

	e.target = t
	e.state = next
	e.checkedAt = obs.CheckedAt
	if obs.Err != nil {
		e.failure = stockwatch.ErrorMessage(obs.Err)
	} else {
		e.failure = ""
		e.contentHash = obs.ContentHash
	}

	if ev != nil {
		ev.Target = t
	}
	return ev
}

// Version returns the current membership version. Read it before loading
// the target list and pass it to Sync with that list.
func (tr *Tracker) Version() uint64 {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.version
}

// Sync makes targets the active set and drops state for every other
// target. The list is taken to reflect the store as of version: targets
// tracked after it stay active even when the list lacks them, and targets
// forgotten after it stay excluded even when the list still has them.
func (tr *Tracker) Sync(version uint64, targets []*stockwatch.Target) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	active := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		if v, ok := tr.removed[t.ID]; ok && v > version {
			continue
		}
		active[t.ID] = struct{}{}
	}
	for id, v := range tr.added {
		if v > version {
			active[id] = struct{}{}
		} else {
			delete(tr.added, id)
		}
	}
	for id, v := range tr.removed {
		if v <= version {
			delete(tr.removed, id)
		}
	}
	for id := range tr.entries {
		if _, ok := active[id]; !ok {
			delete(tr.entries, id)
		}
	}
	tr.active = active
}

// Track adds a single target to the active set.
func (tr *Tracker) Track(t *stockwatch.Target) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	tr.version++
	delete(tr.removed, t.ID)
	tr.added[t.ID] = tr.version
	tr.active[t.ID] = struct{}{}
}

// Forget deletes all state for the target. A later observation of the same
// target is treated as its first.
func (tr *Tracker) Forget(id string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	tr.version++
	delete(tr.entries, id)
	delete(tr.active, id)
	delete(tr.added, id)
	tr.removed[id] = tr.version
}

// Tombstones returns the number of forgotten targets still excluded from
// lists loaded before they were forgotten.
func (tr *Tracker) Tombstones() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return len(tr.removed)
}

// KnownState returns a copy of the target's state, if it has one.
func (tr *Tracker) KnownState(id string) (stockwatch.TrackState, bool) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	e := tr.entries[id]
	if e == nil || e.state == nil {
		return stockwatch.TrackState{}, false
	}
	return *e.state, true
}

// Status returns everything known about the target. It returns false when
// the target has never been checked.
func (tr *Tracker) Status(id string) (TargetStatus, bool) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	e := tr.entries[id]
	if e == nil {
		return TargetStatus{}, false
	}
	st := TargetStatus{
		Target:      e.target,
		CheckedAt:   e.checkedAt,
		Failure:     e.failure,
		ContentHash: e.contentHash,
	}
	if e.state != nil {
		s := *e.state
		st.State = &s
	}
	return st, true
}

// Len returns the number of targets with recorded state.
func (tr *Tracker) Len() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return len(tr.entries)
}
