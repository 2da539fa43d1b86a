package engine

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/cheribuild/cheribuild/pkg/config"
	"github.com/cheribuild/cheribuild/pkg/graph"
	"github.com/cheribuild/cheribuild/pkg/interfaces"
	"github.com/cheribuild/cheribuild/pkg/logger"
	"github.com/cheribuild/cheribuild/pkg/mocks"
	"github.com/cheribuild/cheribuild/pkg/plan"
	"github.com/cheribuild/cheribuild/pkg/targets"
	"github.com/cheribuild/cheribuild/pkg/types"
)

// testEnv wires an Engine over a three-target plan:
// toolchain -> libfoo-riscv64 -> app-riscv64.
type testEnv struct {
	reg      *targets.Registry
	cfg      *config.Resolver
	run      *mocks.MockRunner
	factory  *mocks.MockLifecycleFactory
	recorder *mocks.MockRecorder
	notifier *mocks.MockNotifier
	engine   *Engine
	plan     *plan.Plan
}

func newTestEnv(t *testing.T, cli map[string]interface{}) *testEnv {
	t.Helper()

	options := config.NewRegistry()
	if err := config.RegisterGlobals(options); err != nil {
		t.Fatalf("RegisterGlobals: %v", err)
	}
	reg := targets.NewRegistry()
	reg.MustRegister(&targets.Template{Name: "toolchain", Kind: types.KindCMake})
	reg.MustRegister(&targets.Template{
		Name:          "libfoo",
		Kind:          types.KindAutotools,
		Architectures: []types.Architecture{types.ArchRISCV64},
		Dependencies: func(arch types.Architecture, r *config.Resolver) []targets.Dep {
			return []targets.Dep{targets.ToolchainDep("toolchain")}
		},
	})
	reg.MustRegister(&targets.Template{
		Name:          "app",
		Kind:          types.KindAutotools,
		Architectures: []types.Architecture{types.ArchRISCV64},
		Dependencies: func(arch types.Architecture, r *config.Resolver) []targets.Dep {
			return []targets.Dep{targets.HardDep("libfoo")}
		},
	})
	if err := reg.Expand(); err != nil {
		t.Fatalf("Expand: %v", err)
	}

	cfg := config.NewResolver(options, reg, config.Sources{CommandLine: cli})

	requested, err := reg.Resolve([]string{"app-riscv64"}, cfg)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	p, err := plan.NewPlanner(graph.NewBuilder(reg, cfg)).Plan(requested, plan.Options{
		IncludeDependencies: true,
		IncludeToolchain:    true,
	})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	wantPlan := []string{"toolchain", "libfoo-riscv64", "app-riscv64"}
	if strings.Join(p.Names(), " ") != strings.Join(wantPlan, " ") {
		t.Fatalf("plan = %v, want %v", p.Names(), wantPlan)
	}

	env := &testEnv{
		reg:      reg,
		cfg:      cfg,
		run:      mocks.NewMockRunner(),
		factory:  mocks.NewMockLifecycleFactory(),
		recorder: mocks.NewMockRecorder(),
		notifier: mocks.NewMockNotifier(),
		plan:     p,
	}
	log := logger.CreateLoggerWithOutput("", "error", io.Discard)
	env.engine = New(cfg, log, env.run, interfaces.Dependencies{
		Lifecycles: env.factory,
		Recorder:   env.recorder,
		Notifier:   env.notifier,
	})
	return env
}

func (env *testEnv) runPlan(t *testing.T) (*Report, error) {
	t.Helper()
	return env.engine.Run(context.Background(), []string{"app-riscv64"}, env.plan)
}

func stageNames(stages []types.Stage) string {
	out := make([]string, len(stages))
	for i, s := range stages {
		out[i] = string(s)
	}
	return strings.Join(out, " ")
}

func TestNewRequiresLifecycleFactory(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("New without a lifecycle factory should panic")
		}
	}()
	New(nil, logger.CreateLoggerWithOutput("", "error", io.Discard), mocks.NewMockRunner(), interfaces.Dependencies{})
}

func TestRunExecutesPlanInOrder(t *testing.T) {
	env := newTestEnv(t, nil)

	report, err := env.runPlan(t)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	created := env.factory.GetCreated()
	if strings.Join(created, " ") != "toolchain libfoo-riscv64 app-riscv64" {
		t.Errorf("lifecycles created = %v, want plan order", created)
	}
	if len(report.Results) != 3 || report.Built() != 3 {
		t.Errorf("report = %+v, want 3 built targets", report.Results)
	}
	for _, res := range report.Results {
		if res.State != types.StateDone {
			t.Errorf("%s state = %s, want done", res.Target, res.State)
		}
	}
	inst, _ := env.reg.Instance("app-riscv64")
	if inst.State() != types.StateDone {
		t.Errorf("instance state = %s, want done", inst.State())
	}
}

func TestStageGating(t *testing.T) {
	tests := []struct {
		name       string
		cli        map[string]interface{}
		wantStages string
	}{
		{
			name:       "default build pipeline",
			cli:        nil,
			wantStages: "update-source configure build install",
		},
		{
			name:       "skip update",
			cli:        map[string]interface{}{config.OptSkipUpdate: true},
			wantStages: "configure build install",
		},
		{
			name:       "clean build",
			cli:        map[string]interface{}{config.OptClean: true},
			wantStages: "update-source clean configure build install",
		},
		{
			name:       "skip configure",
			cli:        map[string]interface{}{config.OptSkipConfigure: true},
			wantStages: "update-source build install",
		},
		{
			name: "force configure wins over skip",
			cli: map[string]interface{}{
				config.OptSkipConfigure:  true,
				config.OptForceConfigure: true,
			},
			wantStages: "update-source configure build install",
		},
		{
			name:       "skip build",
			cli:        map[string]interface{}{config.OptSkipBuild: true},
			wantStages: "update-source configure install",
		},
		{
			name:       "skip install",
			cli:        map[string]interface{}{config.OptSkipInstall: true},
			wantStages: "update-source configure build",
		},
		{
			name:       "build action disabled",
			cli:        map[string]interface{}{config.OptBuild: false},
			wantStages: "update-source configure",
		},
		{
			name:       "test action",
			cli:        map[string]interface{}{config.OptTest: true},
			wantStages: "update-source configure build install test",
		},
		{
			name:       "benchmark action",
			cli:        map[string]interface{}{config.OptBenchmark: true},
			wantStages: "update-source configure build install benchmark",
		},
		{
			name: "configure only",
			cli: map[string]interface{}{
				config.OptConfigureOnly: true,
				config.OptTest:          true,
			},
			wantStages: "update-source configure",
		},
		{
			name: "configure only with clean",
			cli: map[string]interface{}{
				config.OptConfigureOnly: true,
				config.OptClean:         true,
			},
			wantStages: "update-source clean configure",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.cli)
			if _, err := env.runPlan(t); err != nil {
				t.Fatalf("Run: %v", err)
			}
			got := stageNames(env.factory.Lifecycle("app-riscv64").GetStages())
			if got != tt.wantStages {
				t.Errorf("stages = %q, want %q", got, tt.wantStages)
			}
		})
	}
}

func TestPerTargetStageOverride(t *testing.T) {
	env := newTestEnv(t, map[string]interface{}{
		"app-riscv64/" + config.OptSkipBuild: true,
	})
	if _, err := env.runPlan(t); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := stageNames(env.factory.Lifecycle("app-riscv64").GetStages()); got != "update-source configure install" {
		t.Errorf("app stages = %q, want build skipped", got)
	}
	if got := stageNames(env.factory.Lifecycle("libfoo-riscv64").GetStages()); got != "update-source configure build install" {
		t.Errorf("libfoo stages = %q, want the full pipeline", got)
	}
}

func TestFirstFailureStopsRun(t *testing.T) {
	env := newTestEnv(t, nil)
	boom := errors.New("compiler exploded")
	env.factory.Lifecycle("libfoo-riscv64").SetStageError(types.StageBuild, boom)

	report, err := env.runPlan(t)
	if err == nil {
		t.Fatal("expected the run to fail")
	}

	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("error type = %T, want *StageError", err)
	}
	if stageErr.Target != "libfoo-riscv64" || stageErr.Stage != types.StageBuild {
		t.Errorf("failure at %s/%s, want libfoo-riscv64/build", stageErr.Target, stageErr.Stage)
	}
	if !errors.Is(err, boom) {
		t.Error("StageError should unwrap to the stage's error")
	}

	if len(report.Results) != 2 {
		t.Fatalf("results = %+v, want toolchain and libfoo only", report.Results)
	}
	if report.Results[0].State != types.StateDone || report.Results[1].State != types.StateFailed {
		t.Errorf("result states = %+v", report.Results)
	}
	if report.Results[1].Stage != types.StageBuild || report.Results[1].Error == "" {
		t.Errorf("failed result = %+v, want the build stage and an error", report.Results[1])
	}

	for _, created := range env.factory.GetCreated() {
		if created == "app-riscv64" {
			t.Error("app should not start after libfoo failed")
		}
	}
	if failures := env.notifier.GetFailures(); len(failures) != 1 || failures[0] != "libfoo-riscv64" {
		t.Errorf("failure notifications = %v", failures)
	}
	if finished, success := env.recorder.WasFinished(); !finished || success {
		t.Errorf("record finished=%v success=%v, want finished and unsuccessful", finished, success)
	}

	inst, _ := env.reg.Instance("app-riscv64")
	if inst.State() != types.StatePending {
		t.Errorf("app state = %s, want pending", inst.State())
	}
}

func TestLifecycleCreationFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.factory.SetCreateError(errors.New("unknown project kind"))

	report, err := env.runPlan(t)
	if err == nil || !strings.Contains(err.Error(), "creating lifecycle for toolchain") {
		t.Fatalf("error = %v, want a lifecycle creation failure", err)
	}
	if len(report.Results) != 1 || report.Results[0].State != types.StateFailed {
		t.Errorf("results = %+v", report.Results)
	}
}

func TestSkippedTargets(t *testing.T) {
	env := newTestEnv(t, map[string]interface{}{
		"libfoo-riscv64/" + config.OptSkip: true,
	})

	report, err := env.runPlan(t)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Results) != 3 {
		t.Fatalf("results = %+v", report.Results)
	}
	if report.Results[1].Target != "libfoo-riscv64" || report.Results[1].State != types.StateSkipped {
		t.Errorf("libfoo result = %+v, want skipped", report.Results[1])
	}
	if report.Built() != 2 {
		t.Errorf("built = %d, want 2", report.Built())
	}
	for _, created := range env.factory.GetCreated() {
		if created == "libfoo-riscv64" {
			t.Error("skipped target should not get a lifecycle")
		}
	}
	inst, _ := env.reg.Instance("libfoo-riscv64")
	if inst.State() != types.StateSkipped {
		t.Errorf("libfoo state = %s, want skipped", inst.State())
	}
}

func TestStartWith(t *testing.T) {
	env := newTestEnv(t, map[string]interface{}{
		config.OptStartWith: "libfoo-riscv64",
	})

	report, err := env.runPlan(t)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	wantStates := []types.ExecutionState{types.StateSkipped, types.StateDone, types.StateDone}
	for i, res := range report.Results {
		if res.State != wantStates[i] {
			t.Errorf("%s state = %s, want %s", res.Target, res.State, wantStates[i])
		}
	}
}

func TestStartAfter(t *testing.T) {
	env := newTestEnv(t, map[string]interface{}{
		config.OptStartAfter: "libfoo-riscv64",
	})

	report, err := env.runPlan(t)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	wantStates := []types.ExecutionState{types.StateSkipped, types.StateSkipped, types.StateDone}
	for i, res := range report.Results {
		if res.State != wantStates[i] {
			t.Errorf("%s state = %s, want %s", res.Target, res.State, wantStates[i])
		}
	}
}

func TestStartWithValidation(t *testing.T) {
	env := newTestEnv(t, map[string]interface{}{
		config.OptStartWith:  "libfoo-riscv64",
		config.OptStartAfter: "libfoo-riscv64",
	})
	if _, err := env.runPlan(t); err == nil || !strings.Contains(err.Error(), "mutually exclusive") {
		t.Errorf("error = %v, want the flags rejected as mutually exclusive", err)
	}

	env = newTestEnv(t, map[string]interface{}{
		config.OptStartWith: "no-such-target",
	})
	if _, err := env.runPlan(t); err == nil || !strings.Contains(err.Error(), "not part of the plan") {
		t.Errorf("error = %v, want an unknown start target error", err)
	}
}

func TestRecorderCapturesRun(t *testing.T) {
	env := newTestEnv(t, nil)

	if _, err := env.runPlan(t); err != nil {
		t.Fatalf("Run: %v", err)
	}

	rec := env.recorder.GetRecord()
	if rec == nil {
		t.Fatal("no run record captured")
	}
	if strings.Join(rec.Requested, " ") != "app-riscv64" {
		t.Errorf("recorded request = %v", rec.Requested)
	}
	if strings.Join(rec.Plan, " ") != "toolchain libfoo-riscv64 app-riscv64" {
		t.Errorf("recorded plan = %v", rec.Plan)
	}
	if len(rec.Results) != 3 {
		t.Errorf("recorded results = %+v", rec.Results)
	}
	if finished, success := env.recorder.WasFinished(); !finished || !success {
		t.Errorf("record finished=%v success=%v, want a successful finish", finished, success)
	}
	if env.notifier.GetSuccessCount() != 1 {
		t.Errorf("success notifications = %d, want 1", env.notifier.GetSuccessCount())
	}
}

func TestPretendRunLeavesNoTrace(t *testing.T) {
	env := newTestEnv(t, nil)
	env.run.SetPretending(true)

	report, err := env.runPlan(t)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Built() != 3 {
		t.Errorf("built = %d, want the full pretend walk", report.Built())
	}
	if env.recorder.GetRecord() != nil {
		t.Error("pretend run must not open a run record")
	}
	if env.notifier.GetSuccessCount() != 0 {
		t.Error("pretend run must not notify")
	}
}

func TestContextCancellationFailsCurrentTarget(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.engine.Run(ctx, []string{"app-riscv64"}, env.plan)
	if err == nil {
		t.Fatal("expected a cancellation error")
	}
	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("error type = %T, want *StageError", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled underneath", err)
	}
}
