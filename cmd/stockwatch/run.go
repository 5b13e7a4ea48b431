package main

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// Run executes the run command. It blocks until the context is canceled,
// then delivers pending notifications before returning.
func (c *RunCmd) Run(deps *Dependencies) error {
	logger := deps.Logger
	logger.Info("watcher starting",
		"interval", deps.Scheduler.Interval,
		"cap", deps.Service.Tracker.Cap(),
		"store", deps.Config.Store,
		"fetcher", deps.Config.Fetcher,
	)

	g, ctx := errgroup.WithContext(deps.Ctx)
	g.Go(func() error {
		return deps.Scheduler.Run(ctx)
	})
	if deps.Bot != nil {
		g.Go(func() error {
			return deps.Bot.Run(ctx)
		})
	}
	err := g.Wait()

	if cerr := deps.Dispatcher.Close(); cerr != nil {
		logger.Warn("pending notifications dropped", "err", cerr)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("watcher stopped")
	return nil
}
