package watcher

import (
	"context"
	"log/slog"
	"time"

	"aw-watcher-mpv/internal/logging"
	"aw-watcher-mpv/internal/model"
)

// DefaultCheckInterval bounds how long a cancellation request can go unseen.
const DefaultCheckInterval = 200 * time.Millisecond

// Host is the player's property store. Implementations need not be safe
// for concurrent use: the loop is the only caller.
type Host interface {
	PropertyLister
	Flag(ctx context.Context, name string) (bool, error)
	String(ctx context.Context, name string) (string, error)
}

type Transport interface {
	CreateBucket(ctx context.Context, b model.Bucket) error
	SendHeartbeat(ctx context.Context, hb model.Heartbeat) error
}

type Options struct {
	Bucket            model.Bucket
	PollInterval      time.Duration
	PulseTime         float64
	TrackedProperties []string
	IdleProperty      string
	CheckInterval     time.Duration
	Observer          Observer
}

// Loop paces heartbeats by counting short sleeps. The same counter is the
// failure budget: when heartbeat ticks keep failing to read the player, the
// count passes twice the heartbeat cadence and the loop aborts.
type Loop struct {
	logger    *slog.Logger
	host      Host
	transport Transport
	opts      Options
	observer  Observer

	sleep func(ctx context.Context, d time.Duration) bool
	now   func() time.Time
}

func NewLoop(host Host, transport Transport, opts Options, logger *slog.Logger) *Loop {
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = DefaultCheckInterval
	}
	obs := opts.Observer
	if obs == nil {
		obs = nopObserver{}
	}
	return &Loop{
		logger:    logger,
		host:      host,
		transport: transport,
		opts:      opts,
		observer:  obs,
		sleep:     sleepWithContext,
		now:       time.Now,
	}
}

// TicksNeeded is the number of check intervals between heartbeats.
func TicksNeeded(poll, check time.Duration) int {
	if check <= 0 {
		return 1
	}
	n := int((poll + check - 1) / check)
	if n < 1 {
		return 1
	}
	return n
}

// Run blocks until ctx is cancelled (StateStopped) or the loop gives up
// (StateAborted). Network calls are not interrupted by cancellation; they are
// bounded by the transport's own timeout.
func (l *Loop) Run(ctx context.Context) State {
	l.setState(StateInitializing)
	bucket := l.opts.Bucket

	props := ValidateProperties(ctx, l.host, l.opts.TrackedProperties, l.logger)
	if len(props) == 0 {
		if ctx.Err() != nil {
			return l.setState(StateStopped)
		}
		logging.Fatal(l.logger, "no tracked property is available")
		return l.setState(StateAborted)
	}

	if err := l.transport.CreateBucket(context.WithoutCancel(ctx), bucket); err != nil {
		logging.Fatal(l.logger, "failed to create bucket", "bucket", bucket.ID, "error", err)
		return l.setState(StateAborted)
	}
	l.logger.Info("bucket created", "bucket", bucket.ID)

	needed := TicksNeeded(l.opts.PollInterval, l.opts.CheckInterval)
	l.logger.Debug("loops needed for heartbeat", "ticks", needed, "check_interval", l.opts.CheckInterval)
	l.setState(StateRunning)

	ticks := 0
	for {
		if ctx.Err() != nil {
			return l.setState(StateStopped)
		}
		if !l.sleep(ctx, l.opts.CheckInterval) {
			return l.setState(StateStopped)
		}
		ticks++
		// Past twice the cadence without a reset: stop before reading again.
		if ticks > 2*needed {
			logging.Fatal(l.logger, "max retries reached, something is very wrong", "ticks", ticks)
			return l.setState(StateAborted)
		}
		if ticks < needed {
			continue
		}
		if l.heartbeatTick(ctx, props) {
			ticks = 0
		}
	}
}

// heartbeatTick reports whether the tick counter should be reset. Failures
// to read the player leave it running toward the abort ceiling.
func (l *Loop) heartbeatTick(ctx context.Context, props []string) bool {
	idle, err := l.host.Flag(ctx, l.opts.IdleProperty)
	if err != nil {
		if ctx.Err() == nil {
			l.logger.Error("could not get idle property", "property", l.opts.IdleProperty, "error", err)
		}
		return false
	}
	// Nothing playing: no heartbeat, but not a failure either.
	if idle {
		return true
	}

	data := make(model.Record, len(props))
	for _, p := range props {
		v, err := l.host.String(ctx, p)
		if err != nil {
			if ctx.Err() == nil {
				l.logger.Error("could not get property", "property", p, "error", err)
			}
			continue
		}
		data[p] = v
	}
	if len(data) == 0 {
		if ctx.Err() == nil {
			l.logger.Error("no property could be read, skipping heartbeat")
		}
		return false
	}

	hb := model.Heartbeat{
		BucketID:  l.opts.Bucket.ID,
		Timestamp: l.now().UTC(),
		PulseTime: l.opts.PulseTime,
		Data:      data,
	}
	l.logger.Debug("sending heartbeat")
	err = l.transport.SendHeartbeat(context.WithoutCancel(ctx), hb)
	l.observer.HeartbeatSent(hb.Timestamp, err)
	if err != nil {
		l.logger.Error("could not send heartbeat", "error", err)
	} else {
		l.logger.Info("heartbeat sent", "data", data)
	}
	return true
}

func (l *Loop) setState(s State) State {
	l.observer.StateChanged(s)
	return s
}

// sleepWithContext reports false when ctx ended before d elapsed.
func sleepWithContext(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
