package daemon

import (
	"context"
	"log/slog"
	"time"

	"github.com/modoterra/lifedash/pkg/transport/uds"
)

// PollLoop pings the store every interval and broadcasts health.changed when
// the result flips.
type PollLoop struct {
	daemon   *Daemon
	interval time.Duration
	timeout  time.Duration
	onChange []func(uds.HealthEvent)
	now      func() time.Time
	logger   *slog.Logger
}

// NewPollLoop creates a poll loop for the given daemon.
func NewPollLoop(d *Daemon, interval time.Duration, logger *slog.Logger) *PollLoop {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := interval
	if timeout <= 0 || timeout > 5*time.Second {
		timeout = 5 * time.Second
	}
	return &PollLoop{daemon: d, interval: interval, timeout: timeout, now: time.Now, logger: logger}
}

// OnChange registers fn to run after every health transition.
func (pl *PollLoop) OnChange(fn func(uds.HealthEvent)) {
	pl.onChange = append(pl.onChange, fn)
}

// Run starts the poll loop. Blocks until ctx is cancelled.
func (pl *PollLoop) Run(ctx context.Context) {
	pl.tick(ctx)

	ticker := time.NewTicker(pl.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pl.tick(ctx)
		}
	}
}

func (pl *PollLoop) tick(ctx context.Context) {
	st := pl.daemon.dash.Store()

	pingCtx, cancel := context.WithTimeout(ctx, pl.timeout)
	err := st.Ping(pingCtx)
	cancel()
	if ctx.Err() != nil {
		return
	}

	h := uds.HealthEvent{Store: st.Name(), OK: err == nil, CheckedAt: pl.now()}
	if err != nil {
		h.Error = err.Error()
	}
	if !pl.daemon.setHealth(h) {
		return
	}

	if h.OK {
		pl.logger.Info("store healthy", "store", h.Store)
	} else {
		pl.logger.Error("store unhealthy", "store", h.Store, "err", h.Error)
	}
	if evt, err := uds.NewEvent(uds.EventHealthChanged, h); err == nil {
		pl.daemon.Server().Broadcast(evt)
	}
	for _, fn := range pl.onChange {
		fn(h)
	}
}
