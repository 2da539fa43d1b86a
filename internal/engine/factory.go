package engine

import (
	"github.com/cheribuild/cheribuild/pkg/config"
	"github.com/cheribuild/cheribuild/pkg/interfaces"
	"github.com/cheribuild/cheribuild/pkg/logger"
	"github.com/cheribuild/cheribuild/pkg/notifier"
	"github.com/cheribuild/cheribuild/pkg/process"
	"github.com/cheribuild/cheribuild/pkg/projects"
	"github.com/cheribuild/cheribuild/pkg/runner"
	"github.com/cheribuild/cheribuild/pkg/state"
)

// DependencyFactory creates default implementations of the engine's
// collaborators. This centralizes dependency creation and removes hidden
// concrete fallbacks from constructors.
type DependencyFactory struct {
	cfg *config.Resolver
	run runner.Runner
	log logger.Logger
}

// NewDependencyFactory creates a new dependency factory
func NewDependencyFactory(cfg *config.Resolver, run runner.Runner, log logger.Logger) *DependencyFactory {
	return &DependencyFactory{cfg: cfg, run: run, log: log}
}

// CreateDefaults creates all default dependencies for the engine. The
// run recorder is only created for real invocations; a pretend run must
// not leave a state directory behind.
func (f *DependencyFactory) CreateDefaults() (interfaces.Dependencies, error) {
	deps := interfaces.Dependencies{
		Lifecycles: projects.NewFactory(f.cfg, f.run, f.log),
		Processes:  process.NewManager(f.log),
	}

	if !f.run.Pretending() {
		out, err := f.cfg.GetGlobal(config.OptOutputRoot)
		if err != nil {
			return interfaces.Dependencies{}, err
		}
		deps.Recorder = state.NewRecorder(out.String(), f.log)
	}

	notify, err := f.cfg.GetGlobal(config.OptDesktopNotify)
	if err != nil {
		return interfaces.Dependencies{}, err
	}
	deps.Notifier = notifier.New(notifier.Config{Enabled: notify.Bool()}, f.log)

	return deps, nil
}

// CreateWithOverrides creates dependencies with specific overrides.
// This is useful for testing or custom configurations; non-nil values
// replace the defaults.
func (f *DependencyFactory) CreateWithOverrides(overrides interfaces.Dependencies) (interfaces.Dependencies, error) {
	deps, err := f.CreateDefaults()
	if err != nil {
		return interfaces.Dependencies{}, err
	}

	if overrides.Lifecycles != nil {
		deps.Lifecycles = overrides.Lifecycles
	}
	if overrides.Recorder != nil {
		deps.Recorder = overrides.Recorder
	}
	if overrides.Notifier != nil {
		deps.Notifier = overrides.Notifier
	}
	if overrides.Processes != nil {
		deps.Processes = overrides.Processes
	}

	return deps, nil
}
