package mock

import (
	"context"

	"github.com/fwojciec/stockwatch"
)

var _ stockwatch.TargetService = (*TargetService)(nil)

// TargetService is a mock implementation of stockwatch.TargetService.
type TargetService struct {
	CreateTargetFn   func(ctx context.Context, target *stockwatch.Target) error
	FindTargetByIDFn func(ctx context.Context, id string) (*stockwatch.Target, error)
	FindTargetsFn    func(ctx context.Context, filter stockwatch.TargetFilter) ([]*stockwatch.Target, error)
	DeleteTargetFn   func(ctx context.Context, id string) error
}

func (s *TargetService) CreateTarget(ctx context.Context, target *stockwatch.Target) error {
	return s.CreateTargetFn(ctx, target)
}

func (s *TargetService) FindTargetByID(ctx context.Context, id string) (*stockwatch.Target, error) {
	return s.FindTargetByIDFn(ctx, id)
}

func (s *TargetService) FindTargets(ctx context.Context, filter stockwatch.TargetFilter) ([]*stockwatch.Target, error) {
	return s.FindTargetsFn(ctx, filter)
}

func (s *TargetService) DeleteTarget(ctx context.Context, id string) error {
	return s.DeleteTargetFn(ctx, id)
}
