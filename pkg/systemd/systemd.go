// Package systemd speaks the sd_notify protocol for long-running modes.
// Outside a systemd unit every call is a no-op.
package systemd

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "phasebot/pkg/logx"
)

// Notifier reports service state to the service manager.
type Notifier struct {
	log  logx.Logger
	send func(state string) (bool, error)
}

func NewNotifier(log logx.Logger) *Notifier {
	return &Notifier{
		log:  log.With(logx.String("component", "systemd")),
		send: func(state string) (bool, error) { return daemon.SdNotify(false, state) },
	}
}

// Ready reports startup complete with a status line.
func (n *Notifier) Ready(status string) {
	n.notify(daemon.SdNotifyReady + "\nSTATUS=" + status)
}

// Status updates the status line shown by systemctl.
func (n *Notifier) Status(status string) { n.notify("STATUS=" + status) }

// Stopping reports that shutdown has begun.
func (n *Notifier) Stopping() { n.notify(daemon.SdNotifyStopping) }

// Watchdog pings the service watchdog.
func (n *Notifier) Watchdog() { n.notify(daemon.SdNotifyWatchdog) }

// WatchdogInterval returns how often Watchdog should be called, or 0 when
// the unit has no watchdog.
func WatchdogInterval() time.Duration {
	d, err := daemon.SdWatchdogEnabled(false)
	if err != nil || d <= 0 {
		return 0
	}
	return d / 2
}

// RunWatchdog pings every interval until ctx is done. It returns at once
// when interval is 0.
func (n *Notifier) RunWatchdog(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			n.Watchdog()
		}
	}
}

func (n *Notifier) notify(state string) {
	sent, err := n.send(state)
	if err != nil {
		n.log.Warn("sd_notify failed", logx.Err(fmt.Errorf("notify %q: %w", state, err)))
		return
	}
	if sent {
		n.log.Trace("sd_notify", logx.String("state", state))
	}
}
