package watch

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/fwojciec/stockwatch"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultInterval is the wait between two cycles.
	DefaultInterval = 60 * time.Second
	// DefaultCooldown is the wait after a cycle fails unexpectedly.
	DefaultCooldown = 60 * time.Second
	// DefaultConcurrency is the number of targets checked at once.
	DefaultConcurrency = 4
)

// State is the phase the scheduler is in.
type State int32

const (
	StateBaseline State = iota // first pass, announcing every target
	StateSteady                // regular cycles
	StateBackoff               // cooling down after a failed cycle
)

// String returns a short name for the state.
func (s State) String() string {
	switch s {
	case StateBaseline:
		return "baseline"
	case StateSteady:
		return "steady"
	case StateBackoff:
		return "backoff"
	default:
		return "unknown"
	}
}

// Scheduler checks every target once per interval until its context is
// canceled. The first pass is the baseline run, which announces the
// current status of every target.
type Scheduler struct {
	Targets    stockwatch.TargetService
	Checker    *Checker
	Tracker    *Tracker
	Dispatcher *Dispatcher

	Interval    time.Duration
	Cooldown    time.Duration
	Concurrency int

	Logger *slog.Logger

	state atomic.Int32
}

// State returns the current scheduler state.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Run runs the baseline pass and then steady cycles until ctx is canceled.
// A cycle that fails unexpectedly puts the scheduler in backoff for the
// cooldown period; Run itself only returns on cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	s.setState(StateBaseline)

	announced, baselineDone := false, false
	for ctx.Err() == nil {
		wait := s.interval()
		err := recovered(func() error {
			if !announced {
				s.announce(ctx)
				announced = true
			}
			return s.Cycle(ctx, !baselineDone)
		})
		if err != nil {
			s.logger().Error("cycle failed", "state", s.State().String(), "cooldown", s.cooldown(), "err", err)
			s.setState(StateBackoff)
			wait = s.cooldown()
		} else {
			baselineDone = true
			s.setState(StateSteady)
		}

		if !sleep(ctx, wait) {
			break
		}

		if baselineDone {
			s.setState(StateSteady)
		} else {
			s.setState(StateBaseline)
		}
	}
	return nil
}

// announce sends the startup notice.
func (s *Scheduler) announce(ctx context.Context) {
	count := -1
	if targets, err := s.Targets.FindTargets(ctx, stockwatch.TargetFilter{}); err == nil {
		count = len(targets)
	}
	if err := s.Dispatcher.Send(ctx, FormatStartup(count, s.interval())); err != nil {
		s.logger().Warn("startup notice not sent", "err", err)
	}
}

// recovered runs fn, converting a panic into an error.
func recovered(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panicked: %v", r)
		}
	}()
	return fn()
}

// Cycle checks every current target once and dispatches the resulting
// notifications in list order. Targets are checked concurrently; a failed
// check only produces an error observation for that target.
//
// Once ctx is canceled no further checks start, but checks already running
// finish and their results are still recorded.
func (s *Scheduler) Cycle(ctx context.Context, baseline bool) error {
	version := s.Tracker.Version()
	targets, err := s.Targets.FindTargets(ctx, stockwatch.TargetFilter{})
	if err != nil {
		if baseline {
			return fmt.Errorf("load targets: %w", err)
		}
		// Known state is kept; a failed read says nothing about removals.
		s.logger().Warn("load targets failed, skipping cycle", "err", err)
		return nil
	}

	s.Tracker.Sync(version, targets)
	if len(targets) == 0 {
		s.logger().Debug("no targets to check")
		return nil
	}

	begin := time.Now()
	checkCtx := context.WithoutCancel(ctx)
	results := make([]stockwatch.Observation, len(targets))
	started := make([]bool, len(targets))

	var g errgroup.Group
	g.SetLimit(s.concurrency())
	for i, t := range targets {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			started[i] = true
			results[i] = s.Checker.Check(checkCtx, t.URL)
			return nil
		})
	}
	_ = g.Wait()

	var checked, failed, events int
	for i, t := range targets {
		if !started[i] {
			continue
		}
		checked++

		obs := results[i]
		if obs.Err != nil {
			failed++
			s.logger().Warn("check failed", "target", t.DisplayName(), "url", t.URL, "err", obs.Err)
		}

		ev := s.Tracker.Apply(t, obs, baseline)
		if ev == nil {
			continue
		}
		events++
		s.logger().Info("notify", "target", t.DisplayName(), "event", ev.Kind.String())
		if err := s.Dispatcher.Dispatch(checkCtx, ev); err != nil {
			s.logger().Error("notification not queued", "target", t.DisplayName(), "err", err)
		}
	}

	s.logger().Info("cycle",
		"baseline", baseline,
		"targets", len(targets),
		"checked", checked,
		"failed", failed,
		"events", events,
		"duration", time.Since(begin),
	)
	return nil
}

func (s *Scheduler) setState(st State) {
	s.state.Store(int32(st))
}

func (s *Scheduler) interval() time.Duration {
	if s.Interval > 0 {
		return s.Interval
	}
	return DefaultInterval
}

func (s *Scheduler) cooldown() time.Duration {
	if s.Cooldown > 0 {
		return s.Cooldown
	}
	return DefaultCooldown
}

func (s *Scheduler) concurrency() int {
	if s.Concurrency > 0 {
		return s.Concurrency
	}
	return DefaultConcurrency
}

func (s *Scheduler) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// sleep waits for d and reports whether ctx is still live.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
