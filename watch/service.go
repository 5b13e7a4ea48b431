package watch

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/fwojciec/stockwatch"
)

// Service implements the operator commands shared by the CLI and the chat
// bot. Add and remove are serialized so concurrent commands cannot
// interleave their store writes.
type Service struct {
	Targets stockwatch.TargetService
	Tracker *Tracker
	Checker *Checker

	mu sync.Mutex
}

// AddTarget validates and stores a new target. With check set, the target
// is checked right away and its state seeded silently, so the returned
// status can confirm what the watcher sees; a failed check does not prevent
// the target from being added. An empty name defaults to the page title
// when the check found one, otherwise to the URL host.
func (s *Service) AddTarget(ctx context.Context, target *stockwatch.Target, check bool) (*TargetStatus, error) {
	unnamed := strings.TrimSpace(target.Name) == ""
	target.URL = strings.TrimSpace(target.URL)
	if err := stockwatch.ValidateURL(target.URL); err != nil {
		return nil, err
	}

	// Fail fast on duplicates before spending a fetch on them.
	if err := s.ensureUnique(ctx, target.URL); err != nil {
		return nil, err
	}

	var obs stockwatch.Observation
	if check {
		obs = s.Checker.Check(ctx, target.URL)
		if unnamed && obs.Title != "" {
			target.Name = obs.Title
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureUnique(ctx, target.URL); err != nil {
		return nil, err
	}
	if err := s.Targets.CreateTarget(ctx, target); err != nil {
		return nil, err
	}

	status := &TargetStatus{Target: target}
	if check {
		s.Tracker.Track(target)
		s.Tracker.Observe(target, obs, false)
		if st, ok := s.Tracker.Status(target.ID); ok {
			status = &st
		}
	}
	return status, nil
}

func (s *Service) ensureUnique(ctx context.Context, rawURL string) error {
	existing, err := s.Targets.FindTargets(ctx, stockwatch.TargetFilter{URL: &rawURL, Limit: 1})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return stockwatch.Errorf(stockwatch.ECONFLICT, "target %s is already watched", rawURL)
	}
	return nil
}

// RemoveTarget deletes the target referred to by ref, which may be its ID,
// its URL or its 1-based position in ListTargets, and forgets its state.
func (s *Service) RemoveTarget(ctx context.Context, ref string) (*stockwatch.Target, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, err := s.resolve(ctx, strings.TrimSpace(ref))
	if err != nil {
		return nil, err
	}
	if err := s.Targets.DeleteTarget(ctx, target.ID); err != nil {
		return nil, err
	}
	s.Tracker.Forget(target.ID)
	return target, nil
}

func (s *Service) resolve(ctx context.Context, ref string) (*stockwatch.Target, error) {
	if ref == "" {
		return nil, stockwatch.Errorf(stockwatch.EINVALID, "target reference required")
	}

	if n, err := strconv.Atoi(strings.TrimPrefix(ref, "#")); err == nil {
		targets, err := s.Targets.FindTargets(ctx, stockwatch.TargetFilter{})
		if err != nil {
			return nil, err
		}
		if n < 1 || n > len(targets) {
			return nil, stockwatch.Errorf(stockwatch.ENOTFOUND, "no target #%d, the list has %d", n, len(targets))
		}
		return targets[n-1], nil
	}

	if stockwatch.ValidateURL(ref) == nil {
		targets, err := s.Targets.FindTargets(ctx, stockwatch.TargetFilter{URL: &ref, Limit: 1})
		if err != nil {
			return nil, err
		}
		if len(targets) == 0 {
			return nil, stockwatch.Errorf(stockwatch.ENOTFOUND, "%s is not watched", ref)
		}
		return targets[0], nil
	}

	return s.Targets.FindTargetByID(ctx, ref)
}

// ListTargets returns every target in list order with its known status.
func (s *Service) ListTargets(ctx context.Context) ([]TargetStatus, error) {
	targets, err := s.Targets.FindTargets(ctx, stockwatch.TargetFilter{})
	if err != nil {
		return nil, err
	}

	statuses := make([]TargetStatus, 0, len(targets))
	for _, t := range targets {
		st, _ := s.Tracker.Status(t.ID)
		st.Target = t
		statuses = append(statuses, st)
	}
	return statuses, nil
}

// CheckURL checks an arbitrary URL once without recording anything.
func (s *Service) CheckURL(ctx context.Context, rawURL string) (stockwatch.Observation, error) {
	rawURL = strings.TrimSpace(rawURL)
	if err := stockwatch.ValidateURL(rawURL); err != nil {
		return stockwatch.Observation{}, err
	}
	return s.Checker.Check(ctx, rawURL), nil
}
