package notifier_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/cheribuild/cheribuild/pkg/logger"
	"github.com/cheribuild/cheribuild/pkg/notifier"
)

func testLogger() logger.Logger {
	return logger.CreateLoggerWithOutput("", "debug", &bytes.Buffer{})
}

func TestDisabledNotifierIsSilent(t *testing.T) {
	n := notifier.New(notifier.Config{Enabled: false}, testLogger())

	// Disabled notifiers must be safe to call unconditionally.
	n.NotifySuccess(3, 42*time.Second)
	n.NotifyFailure("cheribsd-riscv64-purecap", errors.New("make failed"))
}

func TestEnabledNotifierDoesNotPanic(t *testing.T) {
	// Without a notification service the beeep call fails; that failure
	// is logged and swallowed.
	n := notifier.New(notifier.Config{Enabled: true}, testLogger())

	n.NotifySuccess(1, 90*time.Second)
	n.NotifyFailure("llvm", errors.New("clang crashed"))
}
