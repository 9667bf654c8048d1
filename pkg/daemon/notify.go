package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	sddaemon "github.com/coreos/go-systemd/v22/daemon"
)

// NotifyReady tells systemd the socket is up. It is a no-op outside a
// Type=notify unit.
func NotifyReady(logger *slog.Logger) {
	notify(logger, sddaemon.SdNotifyReady)
}

// NotifyStopping tells systemd a shutdown has begun.
func NotifyStopping(logger *slog.Logger) {
	notify(logger, sddaemon.SdNotifyStopping)
}

// NotifyStatus sets the free-form status line shown by systemctl status.
func NotifyStatus(logger *slog.Logger, format string, args ...any) {
	notify(logger, "STATUS="+fmt.Sprintf(format, args...))
}

func notify(logger *slog.Logger, state string) {
	sent, err := sddaemon.SdNotify(false, state)
	if err != nil {
		logger.Warn("sd_notify failed", "state", state, "err", err)
		return
	}
	if sent {
		logger.Debug("sd_notify", "state", state)
	}
}

// RunWatchdog pets the systemd watchdog at half the configured interval for
// as long as healthy reports true. It returns at once when the unit has no
// WatchdogSec.
func RunWatchdog(ctx context.Context, healthy func() bool, logger *slog.Logger) {
	interval, err := sddaemon.SdWatchdogEnabled(false)
	if err != nil {
		logger.Warn("watchdog config invalid", "err", err)
		return
	}
	if interval == 0 {
		return
	}

	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if healthy() {
				notify(logger, sddaemon.SdNotifyWatchdog)
			}
		}
	}
}
