package agent

import (
	"context"

	"golang.org/x/sync/errgroup"

	"aw-watcher-mpv/internal/watcher"
)

// run starts the heartbeat loop on its own goroutine, waits for the player to
// shut down, then cancels the loop and joins it. It does not return while a
// heartbeat may still be in flight.
func (a *Agent) run(ctx context.Context) error {
	loopCtx, cancelLoop := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelLoop()

	var g errgroup.Group
	g.Go(func() error {
		state := a.loop.Run(loopCtx)
		if state == watcher.StateAborted {
			a.logger.Warn("heartbeat loop aborted, waiting for player shutdown")
		}
		return nil
	})
	if a.cfg.ProbeListenAddr != "" {
		g.Go(func() error {
			if err := a.runProbeListener(loopCtx); err != nil {
				a.logger.Error("probe endpoint unavailable", "addr", a.cfg.ProbeListenAddr, "error", err)
			}
			return nil
		})
	}

	a.waitForShutdown(ctx)
	cancelLoop()
	return g.Wait()
}

func (a *Agent) waitForShutdown(ctx context.Context) {
	select {
	case <-a.host.Shutdown():
		a.logger.Info("player shutdown received, stopping")
	case <-ctx.Done():
		a.logger.Info("shutdown requested, stopping", "reason", context.Cause(ctx))
	}
}

func (a *Agent) shutdown(ctx context.Context) {
	if err := a.transport.Close(ctx); err != nil {
		a.logger.Warn("transport close failed", "error", err)
	}
	if err := a.host.Close(); err != nil {
		a.logger.Warn("mpv ipc close failed", "error", err)
	}
	a.logger.Debug("agent health", "snapshot", a.health.Snapshot())
}
