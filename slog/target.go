package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/stockwatch"
)

// Ensure LoggingTargetService implements stockwatch.TargetService.
var _ stockwatch.TargetService = (*LoggingTargetService)(nil)

// LoggingTargetService wraps a TargetService, logging every write at info
// level and failed reads at warn level.
type LoggingTargetService struct {
	next   stockwatch.TargetService
	logger *slog.Logger
}

// NewLoggingTargetService creates a new LoggingTargetService.
func NewLoggingTargetService(next stockwatch.TargetService, logger *slog.Logger) *LoggingTargetService {
	return &LoggingTargetService{next: next, logger: logger}
}

// CreateTarget logs the new target and delegates to the wrapped service.
func (s *LoggingTargetService) CreateTarget(ctx context.Context, target *stockwatch.Target) (err error) {
	defer func(begin time.Time) {
		s.logger.Info("create target",
			"id", target.ID,
			"url", target.URL,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.CreateTarget(ctx, target)
}

// FindTargetByID delegates to the wrapped service.
func (s *LoggingTargetService) FindTargetByID(ctx context.Context, id string) (target *stockwatch.Target, err error) {
	defer func() {
		if err != nil && stockwatch.ErrorCode(err) != stockwatch.ENOTFOUND {
			s.logger.Warn("find target", "id", id, "err", err)
		}
	}()
	return s.next.FindTargetByID(ctx, id)
}

// FindTargets delegates to the wrapped service.
func (s *LoggingTargetService) FindTargets(ctx context.Context, filter stockwatch.TargetFilter) (targets []*stockwatch.Target, err error) {
	defer func(begin time.Time) {
		level := slog.LevelDebug
		if err != nil {
			level = slog.LevelWarn
		}
		s.logger.Log(ctx, level, "find targets",
			"count", len(targets),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.FindTargets(ctx, filter)
}

// DeleteTarget logs the removal and delegates to the wrapped service.
func (s *LoggingTargetService) DeleteTarget(ctx context.Context, id string) (err error) {
	defer func(begin time.Time) {
		s.logger.Info("delete target",
			"id", id,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.DeleteTarget(ctx, id)
}
