package agent

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"aw-watcher-mpv/internal/config"
	"aw-watcher-mpv/internal/identity"
	"aw-watcher-mpv/internal/model"
	"aw-watcher-mpv/internal/stream"
	"aw-watcher-mpv/internal/watcher"
)

// Host is the player connection the agent owns: a property store plus a
// shutdown notification.
type Host interface {
	watcher.Host
	Shutdown() <-chan struct{}
	Close() error
}

type Agent struct {
	cfg       config.Config
	logger    *slog.Logger
	host      Host
	transport stream.Transport
	loop      *watcher.Loop
	bucket    model.Bucket
	health    *HealthStatus
}

func New(ctx context.Context, cfg config.Config, host Host, logger *slog.Logger) (*Agent, error) {
	transport, err := stream.NewTransportFromConfig(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}
	return NewWithTransport(ctx, cfg, host, transport, logger), nil
}

func NewWithTransport(ctx context.Context, cfg config.Config, host Host, transport stream.Transport, logger *slog.Logger) *Agent {
	hostname := identity.Hostname(ctx)
	bucket := model.Bucket{
		ID:       identity.BucketID(config.AgentName, hostname),
		Type:     model.BucketTypeCurrentlyPlaying,
		Client:   config.AgentName,
		Hostname: hostname,
	}

	health := NewHealthStatus()
	loop := watcher.NewLoop(host, transport, watcher.Options{
		Bucket:            bucket,
		PollInterval:      cfg.PollInterval,
		PulseTime:         cfg.PulseSeconds(),
		TrackedProperties: cfg.TrackedProperties,
		IdleProperty:      cfg.IdleProperty,
		Observer:          health,
	}, logger)

	return &Agent{
		cfg:       cfg,
		logger:    logger,
		host:      host,
		transport: transport,
		loop:      loop,
		bucket:    bucket,
		health:    health,
	}
}

// Run blocks until the player shuts down, ctx is done, or SIGINT/SIGTERM
// arrives. A loop that aborted on its own is only logged; Run keeps waiting
// for shutdown so the player never sees the watcher disappear early.
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("config loaded",
		"path", a.cfg.Path,
		"url", a.cfg.URL,
		"transport", a.cfg.Transport,
		"poll_time", a.cfg.PollInterval,
		"pulse_time", a.cfg.PulseTime,
		"log_level", a.cfg.LogLevel,
		"properties", a.cfg.TrackedProperties,
	)
	a.logger.Info("starting aw-watcher-mpv", "bucket", a.bucket.ID, "version", a.cfg.AgentVersion)

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := a.run(sigCtx)
	a.shutdown(context.WithoutCancel(ctx))
	if runErr != nil {
		return runErr
	}
	a.logger.Info("aw-watcher-mpv stopped")
	return nil
}

func (a *Agent) Health() *HealthStatus {
	return a.health
}
