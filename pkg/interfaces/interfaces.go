// Package interfaces provides abstractions for dependency injection and testability
package interfaces

import (
	"context"
	"time"

	"github.com/cheribuild/cheribuild/pkg/state"
	"github.com/cheribuild/cheribuild/pkg/targets"
	"github.com/cheribuild/cheribuild/pkg/types"
	"github.com/cheribuild/cheribuild/pkg/utils"
)

// Lifecycle runs the build stages of a single target instance. The engine
// decides which stages to invoke and in what order; implementations only
// know how to perform each stage for their project kind. Every method must
// route filesystem and process mutations through the injected Runner so
// that pretend mode stays side-effect free.
type Lifecycle interface {
	UpdateSource(ctx context.Context) error
	Clean(ctx context.Context) error
	Configure(ctx context.Context) error
	Build(ctx context.Context) error
	Install(ctx context.Context) error
	Test(ctx context.Context) error
	Benchmark(ctx context.Context) error
}

// LifecycleFactory creates the Lifecycle implementation for a target
// instance based on the project kind recorded on its template. The deleter
// is scoped to the current target; Clean implementations hand directories
// to it instead of blocking on removal.
type LifecycleFactory interface {
	CreateLifecycle(inst *targets.Instance, deleter *utils.AsyncDeleter) (Lifecycle, error)
}

// BuildNotifier handles desktop notifications about run outcomes
type BuildNotifier interface {
	NotifySuccess(targetCount int, duration time.Duration)
	NotifyFailure(target string, err error)
}

// RunRecorder persists per-invocation run records
type RunRecorder interface {
	Begin(requested, planned []string) *state.Record
	Append(rec *state.Record, result state.TargetResult)
	Finish(rec *state.Record, success bool) error
}

// ProcessManager handles signal-driven shutdown coordination
type ProcessManager interface {
	RegisterShutdownHandler(handler func())
	Start(ctx context.Context)
	Stop()
	IsRunning() bool
}

// ProgressReporter observes plan execution for user-facing progress
// display. The engine calls it once per plan and once per planned
// target; a nil reporter disables reporting.
type ProgressReporter interface {
	PlanStarted(total int)
	TargetStarted(name string, index, total int)
	TargetFinished(name string, state types.ExecutionState)
	PlanFinished()
}

// Dependencies contains all injectable engine dependencies
type Dependencies struct {
	Lifecycles LifecycleFactory
	Recorder   RunRecorder
	Notifier   BuildNotifier
	Processes  ProcessManager
	Progress   ProgressReporter
}
