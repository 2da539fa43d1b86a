// Package engine executes build plans. It walks the planned targets in
// order, runs the enabled lifecycle stages for each one, records the
// outcome and stops at the first failure.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/cheribuild/cheribuild/pkg/config"
	"github.com/cheribuild/cheribuild/pkg/interfaces"
	"github.com/cheribuild/cheribuild/pkg/logger"
	"github.com/cheribuild/cheribuild/pkg/plan"
	"github.com/cheribuild/cheribuild/pkg/runner"
	"github.com/cheribuild/cheribuild/pkg/state"
	"github.com/cheribuild/cheribuild/pkg/targets"
	"github.com/cheribuild/cheribuild/pkg/types"
	"github.com/cheribuild/cheribuild/pkg/utils"
)

// StageError reports which target and stage stopped a run.
type StageError struct {
	Target string
	Stage  types.Stage
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("target %s failed during %s: %v", e.Target, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Report summarizes a run. Results holds one entry per planned target in
// plan order, including skipped entries and the failing target when the
// run stopped early.
type Report struct {
	Results  []state.TargetResult
	Duration time.Duration
}

// Built counts the targets that completed all their stages.
func (r *Report) Built() int {
	n := 0
	for _, res := range r.Results {
		if res.State == types.StateDone {
			n++
		}
	}
	return n
}

// actions captures the invocation-level switches that select which
// optional stages a run performs. They are resolved once per run; the
// per-stage skip options are resolved per target instead.
type actions struct {
	build         bool
	test          bool
	benchmark     bool
	configureOnly bool
}

// Engine is the sequential plan executor.
type Engine struct {
	cfg  *config.Resolver
	log  logger.Logger
	run  runner.Runner
	deps interfaces.Dependencies
}

// New creates an Engine. The lifecycle factory is required; recorder,
// notifier and process manager may be nil.
func New(cfg *config.Resolver, log logger.Logger, run runner.Runner, deps interfaces.Dependencies) *Engine {
	if deps.Lifecycles == nil {
		panic("LifecycleFactory dependency is required")
	}
	return &Engine{cfg: cfg, log: log, run: run, deps: deps}
}

// Run executes the plan. Targets run one at a time; within a target the
// stages run in their fixed order with each stage gated by the resolved
// configuration. The first stage failure stops the run and the returned
// error carries the target and stage. The Report is returned in both the
// success and the failure case.
func (e *Engine) Run(ctx context.Context, requested []string, p *plan.Plan) (*Report, error) {
	start := time.Now()
	report := &Report{}

	acts, err := e.resolveActions()
	if err != nil {
		return report, err
	}
	startIdx, err := e.startIndex(p)
	if err != nil {
		return report, err
	}

	// Pretend runs leave no trace: no run record, no notifications.
	var rec *state.Record
	if e.deps.Recorder != nil && !e.run.Pretending() {
		rec = e.deps.Recorder.Begin(requested, p.Names())
	}
	record := func(res state.TargetResult) {
		report.Results = append(report.Results, res)
		if rec != nil {
			e.deps.Recorder.Append(rec, res)
		}
	}
	finish := func(success bool) {
		report.Duration = time.Since(start)
		if rec != nil {
			if err := e.deps.Recorder.Finish(rec, success); err != nil {
				e.log.Warn("Failed to persist run record", logger.WithField("error", err))
			}
		}
	}

	e.log.Info(fmt.Sprintf("Executing plan with %d target(s)", len(p.Targets)))
	if e.deps.Progress != nil {
		e.deps.Progress.PlanStarted(len(p.Targets))
		defer e.deps.Progress.PlanFinished()
	}

	for i, inst := range p.Targets {
		skip, err := e.shouldSkip(i, startIdx, inst)
		if err != nil {
			finish(false)
			return report, err
		}
		if skip {
			inst.SetState(types.StateSkipped)
			record(state.TargetResult{Target: inst.Name(), State: types.StateSkipped})
			e.log.WithTarget(inst.Name()).Info("Skipped")
			if e.deps.Progress != nil {
				e.deps.Progress.TargetFinished(inst.Name(), types.StateSkipped)
			}
			continue
		}

		if e.deps.Progress != nil {
			e.deps.Progress.TargetStarted(inst.Name(), i, len(p.Targets))
		}
		res, err := e.runTarget(ctx, inst, acts)
		record(res)
		if e.deps.Progress != nil {
			e.deps.Progress.TargetFinished(inst.Name(), res.State)
		}
		if err != nil {
			finish(false)
			if e.deps.Notifier != nil && !e.run.Pretending() {
				e.deps.Notifier.NotifyFailure(inst.Name(), err)
			}
			return report, err
		}
	}

	finish(true)
	if e.deps.Notifier != nil && !e.run.Pretending() {
		e.deps.Notifier.NotifySuccess(report.Built(), report.Duration)
	}
	return report, nil
}

// runTarget walks the stages of one instance. Directories handed to the
// async deleter during clean are removed in the background while the later
// stages run; the deleter is joined before the target is reported done so
// a failed removal still fails the target.
func (e *Engine) runTarget(ctx context.Context, inst *targets.Instance, acts actions) (state.TargetResult, error) {
	tlog := e.log.WithTarget(inst.Name())
	start := time.Now()

	fail := func(stage types.Stage, err error) (state.TargetResult, error) {
		inst.SetState(types.StateFailed)
		res := state.TargetResult{
			Target:   inst.Name(),
			State:    types.StateFailed,
			Stage:    stage,
			Duration: time.Since(start),
			Error:    err.Error(),
		}
		tlog.Error(fmt.Sprintf("%s stage failed", stage), logger.WithField("error", err))
		return res, &StageError{Target: inst.Name(), Stage: stage, Err: err}
	}

	deleter := utils.NewAsyncDeleter(ctx, tlog, e.run)
	lc, err := e.deps.Lifecycles.CreateLifecycle(inst, deleter)
	if err != nil {
		inst.SetState(types.StateFailed)
		res := state.TargetResult{
			Target: inst.Name(),
			State:  types.StateFailed,
			Error:  err.Error(),
		}
		return res, fmt.Errorf("creating lifecycle for %s: %w", inst.Name(), err)
	}

	inst.SetState(types.StateRunning)

	var last types.Stage
	for _, stage := range types.Stages() {
		if err := ctx.Err(); err != nil {
			return fail(stage, err)
		}
		enabled, err := e.stageEnabled(stage, inst, acts)
		if err != nil {
			return fail(stage, err)
		}
		if !enabled {
			continue
		}
		tlog.Debug(fmt.Sprintf("Running %s stage", stage))
		if err := e.runStage(ctx, lc, stage); err != nil {
			return fail(stage, err)
		}
		last = stage
	}

	if err := deleter.Wait(); err != nil {
		return fail(types.StageClean, err)
	}

	inst.SetState(types.StateDone)
	duration := time.Since(start)
	tlog.Success(fmt.Sprintf("Completed in %s", duration.Round(time.Millisecond)))
	return state.TargetResult{
		Target:   inst.Name(),
		State:    types.StateDone,
		Stage:    last,
		Duration: duration,
	}, nil
}

func (e *Engine) runStage(ctx context.Context, lc interfaces.Lifecycle, stage types.Stage) error {
	switch stage {
	case types.StageUpdateSource:
		return lc.UpdateSource(ctx)
	case types.StageClean:
		return lc.Clean(ctx)
	case types.StageConfigure:
		return lc.Configure(ctx)
	case types.StageBuild:
		return lc.Build(ctx)
	case types.StageInstall:
		return lc.Install(ctx)
	case types.StageTest:
		return lc.Test(ctx)
	case types.StageBenchmark:
		return lc.Benchmark(ctx)
	default:
		return fmt.Errorf("unknown stage: %s", stage)
	}
}

// stageEnabled decides whether a stage runs for the given instance. The
// per-stage options resolve through the target so <target>/<option>
// overrides apply; the invocation actions are global.
func (e *Engine) stageEnabled(stage types.Stage, inst *targets.Instance, acts actions) (bool, error) {
	boolOpt := func(name string) (bool, error) {
		v, err := e.cfg.GetForTarget(name, inst)
		if err != nil {
			return false, err
		}
		return v.Bool(), nil
	}

	switch stage {
	case types.StageUpdateSource:
		skip, err := boolOpt(config.OptSkipUpdate)
		if err != nil {
			return false, err
		}
		return !skip, nil
	case types.StageClean:
		return boolOpt(config.OptClean)
	case types.StageConfigure:
		force, err := boolOpt(config.OptForceConfigure)
		if err != nil {
			return false, err
		}
		if force {
			return true, nil
		}
		skip, err := boolOpt(config.OptSkipConfigure)
		if err != nil {
			return false, err
		}
		return !skip, nil
	case types.StageBuild:
		if !acts.build || acts.configureOnly {
			return false, nil
		}
		skip, err := boolOpt(config.OptSkipBuild)
		if err != nil {
			return false, err
		}
		return !skip, nil
	case types.StageInstall:
		if !acts.build || acts.configureOnly {
			return false, nil
		}
		skip, err := boolOpt(config.OptSkipInstall)
		if err != nil {
			return false, err
		}
		return !skip, nil
	case types.StageTest:
		return acts.test && !acts.configureOnly, nil
	case types.StageBenchmark:
		return acts.benchmark && !acts.configureOnly, nil
	default:
		return false, fmt.Errorf("unknown stage: %s", stage)
	}
}

func (e *Engine) resolveActions() (actions, error) {
	var acts actions
	for _, opt := range []struct {
		name string
		dst  *bool
	}{
		{config.OptBuild, &acts.build},
		{config.OptTest, &acts.test},
		{config.OptBenchmark, &acts.benchmark},
		{config.OptConfigureOnly, &acts.configureOnly},
	} {
		v, err := e.cfg.GetGlobal(opt.name)
		if err != nil {
			return acts, err
		}
		*opt.dst = v.Bool()
	}
	return acts, nil
}

// startIndex returns the plan index execution starts at. Everything before
// it is marked skipped. Derived from --start-with / --start-after.
func (e *Engine) startIndex(p *plan.Plan) (int, error) {
	startWith, err := e.cfg.GetGlobal(config.OptStartWith)
	if err != nil {
		return 0, err
	}
	startAfter, err := e.cfg.GetGlobal(config.OptStartAfter)
	if err != nil {
		return 0, err
	}
	if startWith.String() != "" && startAfter.String() != "" {
		return 0, fmt.Errorf("--%s and --%s are mutually exclusive", config.OptStartWith, config.OptStartAfter)
	}

	name, offset, flag := startWith.String(), 0, config.OptStartWith
	if startAfter.String() != "" {
		name, offset, flag = startAfter.String(), 1, config.OptStartAfter
	}
	if name == "" {
		return 0, nil
	}
	for i, inst := range p.Targets {
		if inst.Name() == name {
			return i + offset, nil
		}
	}
	return 0, fmt.Errorf("--%s target %q is not part of the plan %v", flag, name, p.Names())
}

func (e *Engine) shouldSkip(idx, startIdx int, inst *targets.Instance) (bool, error) {
	if idx < startIdx {
		return true, nil
	}
	v, err := e.cfg.GetForTarget(config.OptSkip, inst)
	if err != nil {
		return false, err
	}
	return v.Bool(), nil
}
