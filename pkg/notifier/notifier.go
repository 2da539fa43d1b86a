// Package notifier sends desktop notifications for long-running builds.
package notifier

import (
	"fmt"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/cheribuild/cheribuild/pkg/logger"
)

// BuildNotifier reports invocation results through the desktop
// notification service. Disabled notifiers drop everything, so callers
// never need to guard.
type BuildNotifier struct {
	enabled bool
	logger  logger.Logger
}

// Config represents notification configuration.
type Config struct {
	Enabled bool
}

// New creates a build notifier.
func New(config Config, log logger.Logger) *BuildNotifier {
	return &BuildNotifier{enabled: config.Enabled, logger: log}
}

// NotifySuccess reports a finished invocation.
func (n *BuildNotifier) NotifySuccess(targetCount int, duration time.Duration) {
	if !n.enabled {
		return
	}
	message := fmt.Sprintf("%d targets built in %s", targetCount, formatDuration(duration))
	if targetCount == 1 {
		message = fmt.Sprintf("1 target built in %s", formatDuration(duration))
	}
	n.send("cheribuild: build succeeded", message, false)
}

// NotifyFailure reports the target and error that halted the build.
func (n *BuildNotifier) NotifyFailure(target string, err error) {
	if !n.enabled {
		return
	}
	n.send("cheribuild: build failed", fmt.Sprintf("%s: %v", target, err), true)
}

func (n *BuildNotifier) send(title, message string, beep bool) {
	if err := beeep.Notify(title, message, ""); err != nil {
		n.logger.Debug("Failed to send notification", logger.WithField("error", err))
	}
	if beep {
		if err := beeep.Beep(beeep.DefaultFreq, beeep.DefaultDuration); err != nil {
			n.logger.Debug("Failed to play sound", logger.WithField("error", err))
		}
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}
