package stockwatch_test

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/fwojciec/stockwatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func available() stockwatch.Observation   { return stockwatch.Observation{Available: true} }
func unavailable() stockwatch.Observation { return stockwatch.Observation{Available: false} }
func failed() stockwatch.Observation {
	return stockwatch.Observation{Err: stockwatch.Errorf(stockwatch.EUNAVAILABLE, "HTTP 503")}
}

func TestObserve_Scenarios(t *testing.T) {
	t.Parallel()

	t.Run("baseline run announces available status and caps repeats", func(t *testing.T) {
		t.Parallel()

		next, ev := stockwatch.Observe(available(), nil, true, 3)

		require.NotNil(t, ev)
		assert.Equal(t, stockwatch.EventStatus, ev.Kind)
		assert.True(t, ev.Available)
		assert.Equal(t, &stockwatch.TrackState{Available: true, Repeats: 3}, next)
	})

	t.Run("still available below the cap reminds with count", func(t *testing.T) {
		t.Parallel()

		next, ev := stockwatch.Observe(available(), &stockwatch.TrackState{Available: true, Repeats: 1}, false, 3)

		require.NotNil(t, ev)
		assert.Equal(t, stockwatch.EventStillAvailable, ev.Kind)
		assert.Equal(t, 2, ev.Repeat)
		assert.Equal(t, 3, ev.Cap)
		assert.Equal(t, &stockwatch.TrackState{Available: true, Repeats: 2}, next)
	})

	t.Run("still available at the cap is silent", func(t *testing.T) {
		t.Parallel()

		prior := &stockwatch.TrackState{Available: true, Repeats: 3}
		next, ev := stockwatch.Observe(available(), prior, false, 3)

		assert.Nil(t, ev)
		assert.Equal(t, &stockwatch.TrackState{Available: true, Repeats: 3}, next)
	})

	t.Run("available to unavailable announces and resets", func(t *testing.T) {
		t.Parallel()

		next, ev := stockwatch.Observe(unavailable(), &stockwatch.TrackState{Available: true, Repeats: 2}, false, 3)

		require.NotNil(t, ev)
		assert.Equal(t, stockwatch.EventUnavailable, ev.Kind)
		assert.Equal(t, &stockwatch.TrackState{Available: false, Repeats: 0}, next)
	})

	t.Run("fetch error leaves state unchanged and is silent", func(t *testing.T) {
		t.Parallel()

		prior := &stockwatch.TrackState{Available: false, Repeats: 0}
		next, ev := stockwatch.Observe(failed(), prior, false, 3)

		assert.Nil(t, ev)
		assert.Equal(t, &stockwatch.TrackState{Available: false, Repeats: 0}, next)
	})

	t.Run("first observation outside baseline seeds silently", func(t *testing.T) {
		t.Parallel()

		next, ev := stockwatch.Observe(unavailable(), nil, false, 3)

		assert.Nil(t, ev)
		assert.Equal(t, &stockwatch.TrackState{Available: false, Repeats: 0}, next)
	})
}

func TestObserve_Rules(t *testing.T) {
	t.Parallel()

	t.Run("baseline error is reported once and creates no state", func(t *testing.T) {
		t.Parallel()

		next, ev := stockwatch.Observe(failed(), nil, true, 3)

		assert.Nil(t, next)
		require.NotNil(t, ev)
		assert.Equal(t, stockwatch.EventCheckFailed, ev.Kind)
		assert.Equal(t, "HTTP 503", stockwatch.ErrorMessage(ev.Err))
	})

	t.Run("steady-state error on unknown target keeps it unknown", func(t *testing.T) {
		t.Parallel()

		next, ev := stockwatch.Observe(failed(), nil, false, 3)

		assert.Nil(t, next)
		assert.Nil(t, ev)
	})

	t.Run("baseline error keeps a known state", func(t *testing.T) {
		t.Parallel()

		prior := &stockwatch.TrackState{Available: true, Repeats: 2}
		next, ev := stockwatch.Observe(failed(), prior, true, 3)

		require.NotNil(t, ev)
		assert.Equal(t, stockwatch.EventCheckFailed, ev.Kind)
		assert.Equal(t, prior, next)
	})

	t.Run("baseline announces unavailable status with zero repeats", func(t *testing.T) {
		t.Parallel()

		next, ev := stockwatch.Observe(unavailable(), nil, true, 3)

		require.NotNil(t, ev)
		assert.Equal(t, stockwatch.EventStatus, ev.Kind)
		assert.False(t, ev.Available)
		assert.Equal(t, &stockwatch.TrackState{Available: false, Repeats: 0}, next)
	})

	t.Run("unavailable to available announces with count one", func(t *testing.T) {
		t.Parallel()

		next, ev := stockwatch.Observe(available(), &stockwatch.TrackState{Available: false}, false, 3)

		require.NotNil(t, ev)
		assert.Equal(t, stockwatch.EventAvailable, ev.Kind)
		assert.Equal(t, 1, ev.Repeat)
		assert.Equal(t, &stockwatch.TrackState{Available: true, Repeats: 1}, next)
	})

	t.Run("unknown to available outside baseline is silent", func(t *testing.T) {
		t.Parallel()

		next, ev := stockwatch.Observe(available(), nil, false, 3)

		assert.Nil(t, ev)
		assert.Equal(t, &stockwatch.TrackState{Available: true, Repeats: 0}, next)
	})

	t.Run("still unavailable is silent", func(t *testing.T) {
		t.Parallel()

		next, ev := stockwatch.Observe(unavailable(), &stockwatch.TrackState{}, false, 3)

		assert.Nil(t, ev)
		assert.Equal(t, &stockwatch.TrackState{}, next)
	})

	t.Run("does not alias the prior state", func(t *testing.T) {
		t.Parallel()

		prior := &stockwatch.TrackState{Available: true, Repeats: 3}
		next, _ := stockwatch.Observe(available(), prior, false, 3)
		next.Repeats = 0

		assert.Equal(t, 3, prior.Repeats)
	})

	t.Run("cap below one behaves as one", func(t *testing.T) {
		t.Parallel()

		next, ev := stockwatch.Observe(available(), &stockwatch.TrackState{Available: false}, false, 0)
		require.NotNil(t, ev)
		assert.Equal(t, 1, next.Repeats)

		next, ev = stockwatch.Observe(available(), next, false, 0)
		assert.Nil(t, ev)
		assert.Equal(t, 1, next.Repeats)
	})
}

func TestObserve_RepeatedAvailabilityStopsAtCap(t *testing.T) {
	t.Parallel()

	var state *stockwatch.TrackState
	state, _ = stockwatch.Observe(unavailable(), state, false, 3)

	var kinds []stockwatch.EventKind
	for i := 0; i < 10; i++ {
		var ev *stockwatch.Event
		state, ev = stockwatch.Observe(available(), state, false, 3)
		if ev != nil {
			kinds = append(kinds, ev.Kind)
		}
	}

	assert.Equal(t, []stockwatch.EventKind{
		stockwatch.EventAvailable,
		stockwatch.EventStillAvailable,
		stockwatch.EventStillAvailable,
	}, kinds)
	assert.Equal(t, &stockwatch.TrackState{Available: true, Repeats: 3}, state)
}

func TestObserve_RepeatsStayWithinBounds(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	for _, limit := range []int{1, 2, 3, 5} {
		var state *stockwatch.TrackState
		for i := 0; i < 500; i++ {
			var obs stockwatch.Observation
			switch rng.Intn(3) {
			case 0:
				obs = available()
			case 1:
				obs = unavailable()
			default:
				obs = stockwatch.Observation{Err: errors.New("boom")}
			}
			baseline := i == 0

			prev := state
			var ev *stockwatch.Event
			state, ev = stockwatch.Observe(obs, state, baseline, limit)

			if state != nil {
				require.GreaterOrEqual(t, state.Repeats, 0)
				require.LessOrEqual(t, state.Repeats, limit)
			}
			// Transitions always produce exactly one event with the documented reset.
			if prev != nil && obs.Err == nil && prev.Available != obs.Available {
				require.NotNil(t, ev)
				if obs.Available {
					require.Equal(t, stockwatch.EventAvailable, ev.Kind)
					require.Equal(t, 1, state.Repeats)
				} else {
					require.Equal(t, stockwatch.EventUnavailable, ev.Kind)
					require.Equal(t, 0, state.Repeats)
				}
			}
		}
	}
}

func TestEventKind_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "status", stockwatch.EventStatus.String())
	assert.Equal(t, "available", stockwatch.EventAvailable.String())
	assert.Equal(t, "still_available", stockwatch.EventStillAvailable.String())
	assert.Equal(t, "unavailable", stockwatch.EventUnavailable.String())
	assert.Equal(t, "check_failed", stockwatch.EventCheckFailed.String())
	assert.Equal(t, "unknown", stockwatch.EventKind(0).String())
}
