package stockwatch

import "time"

// DefaultRepeatCap is the number of "in stock" notifications sent for one
// continuous availability window, the transition alert included.
const DefaultRepeatCap = 3

// Observation is the outcome of checking a target once.
type Observation struct {
	Available   bool
	Err         error // fetch or classify failure; Available is meaningless when set
	Title       string
	ContentHash string
	CheckedAt   time.Time
}

// TrackState is the last known availability of a target. A target without
// a TrackState has not been observed successfully yet.
type TrackState struct {
	Available bool `json:"available"`

	// Repeats counts the availability notifications sent since the target
	// last became available. It stays within [0, cap].
	Repeats int `json:"repeats"`
}

// EventKind identifies the kind of notification an observation produced.
type EventKind int

const (
	EventStatus         EventKind = iota + 1 // current status, announced once per baseline run
	EventAvailable                           // transition to available
	EventStillAvailable                      // repeated availability reminder
	EventUnavailable                         // transition to unavailable
	EventCheckFailed                         // check failure, reported during the baseline run only
)

// String returns a short name for the kind.
func (k EventKind) String() string {
	switch k {
	case EventStatus:
		return "status"
	case EventAvailable:
		return "available"
	case EventStillAvailable:
		return "still_available"
	case EventUnavailable:
		return "unavailable"
	case EventCheckFailed:
		return "check_failed"
	default:
		return "unknown"
	}
}

// Event is a notification decided by Observe.
type Event struct {
	Kind      EventKind
	Target    *Target
	Available bool
	Repeat    int // position of a still-available reminder, e.g. 2 of Cap
	Cap       int
	Err       error
	At        time.Time
}

// Observe applies one observation to the prior state of a target and
// returns the next state together with the notification to send, if any.
// A nil prior means the target has never been observed successfully; a nil
// next state means it still has not. Rules are evaluated in order:
//
//  1. failed check: state unchanged, reported only during the baseline run
//  2. first observation: seed the state, announce it only during the baseline run
//  3. still available below the cap: remind and count
//  4. unchanged: silent
//  5. became available: announce, count restarts at 1
//  6. became unavailable: announce, count resets to 0
//
// A limit below 1 is treated as 1.
func Observe(obs Observation, prior *TrackState, baseline bool, limit int) (*TrackState, *Event) {
	if limit < 1 {
		limit = 1
	}

	if obs.Err != nil {
		next := copyState(prior)
		if baseline {
			return next, &Event{Kind: EventCheckFailed, Err: obs.Err, Cap: limit, At: obs.CheckedAt}
		}
		return next, nil
	}

	if prior == nil {
		next := &TrackState{Available: obs.Available}
		if !baseline {
			return next, nil
		}
		if obs.Available {
			// The announcement stands in for the whole availability window.
			next.Repeats = limit
		}
		return next, &Event{Kind: EventStatus, Available: obs.Available, Cap: limit, At: obs.CheckedAt}
	}

	switch {
	case obs.Available && prior.Available && prior.Repeats < limit:
		next := &TrackState{Available: true, Repeats: prior.Repeats + 1}
		return next, &Event{Kind: EventStillAvailable, Available: true, Repeat: next.Repeats, Cap: limit, At: obs.CheckedAt}
	case obs.Available == prior.Available:
		return copyState(prior), nil
	case obs.Available:
		return &TrackState{Available: true, Repeats: 1}, &Event{Kind: EventAvailable, Available: true, Repeat: 1, Cap: limit, At: obs.CheckedAt}
	default:
		return &TrackState{Available: false, Repeats: 0}, &Event{Kind: EventUnavailable, Cap: limit, At: obs.CheckedAt}
	}
}

func copyState(s *TrackState) *TrackState {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
