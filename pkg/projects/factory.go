package projects

import (
	"fmt"

	"github.com/cheribuild/cheribuild/pkg/config"
	"github.com/cheribuild/cheribuild/pkg/interfaces"
	"github.com/cheribuild/cheribuild/pkg/logger"
	"github.com/cheribuild/cheribuild/pkg/runner"
	"github.com/cheribuild/cheribuild/pkg/targets"
	"github.com/cheribuild/cheribuild/pkg/types"
	"github.com/cheribuild/cheribuild/pkg/utils"
)

// Factory creates lifecycle implementations based on the project kind
type Factory struct {
	cfg *config.Resolver
	run runner.Runner
	log logger.Logger
}

// NewFactory creates a new lifecycle factory
func NewFactory(cfg *config.Resolver, run runner.Runner, log logger.Logger) *Factory {
	return &Factory{cfg: cfg, run: run, log: log}
}

// CreateLifecycle creates the appropriate lifecycle for an instance.
func (f *Factory) CreateLifecycle(inst *targets.Instance, deleter *utils.AsyncDeleter) (interfaces.Lifecycle, error) {
	run := f.run
	if tr, ok := run.(interface{ ForTarget(string) runner.Runner }); ok {
		run = tr.ForTarget(inst.Name())
	}

	base := &baseLifecycle{
		inst:    inst,
		cfg:     f.cfg,
		run:     run,
		log:     f.log.WithTarget(inst.Name()),
		deleter: deleter,
	}

	switch inst.Kind() {
	case types.KindAutotools:
		return &autotoolsLifecycle{baseLifecycle: base}, nil

	case types.KindCMake:
		return &cmakeLifecycle{baseLifecycle: base}, nil

	case types.KindBSDMake:
		return &bsdMakeLifecycle{baseLifecycle: base}, nil

	case types.KindSysrootArchive:
		return &sysrootLifecycle{baseLifecycle: base}, nil

	case types.KindDiskImage:
		return &diskImageLifecycle{baseLifecycle: base}, nil

	case types.KindRunQEMU:
		return &runQEMULifecycle{baseLifecycle: base}, nil

	case types.KindGroup:
		return groupLifecycle{}, nil

	default:
		return nil, fmt.Errorf("no lifecycle for project kind %q (target %s)", inst.Kind(), inst.Name())
	}
}
