package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/cheribuild/cheribuild/internal/engine"
	"github.com/cheribuild/cheribuild/pkg/config"
	"github.com/cheribuild/cheribuild/pkg/graph"
	"github.com/cheribuild/cheribuild/pkg/logger"
	"github.com/cheribuild/cheribuild/pkg/plan"
	"github.com/cheribuild/cheribuild/pkg/runner"
	"github.com/cheribuild/cheribuild/pkg/targets"
	"github.com/cheribuild/cheribuild/pkg/utils"
	"github.com/cheribuild/cheribuild/pkg/validation"
)

func (a *app) run(cmd *cobra.Command, args []string) error {
	cfg, err := a.newResolver(cmd.Flags())
	if err != nil {
		return err
	}

	switch {
	case a.listTargets:
		return a.runListTargets(cmd)
	case a.dumpConfig:
		return runDumpConfiguration(cmd, cfg)
	case a.getOption != "":
		return runGetConfigOption(cmd, cfg, a.getOption)
	}

	if len(args) == 0 {
		return fmt.Errorf("at least one target name is required (see --list-targets)")
	}

	return a.runBuild(cmd, args, cfg)
}

// newResolver assembles the input layers for this invocation: parsed
// flags, the merged config file and the environment bridge.
func (a *app) newResolver(flags *pflag.FlagSet) (*config.Resolver, error) {
	sources := config.Sources{
		CommandLine: a.commandLineValues(flags),
		Env:         envBridge,
	}
	if path := resolveConfigPath(); path != "" {
		doc, err := config.LoadDocument(path)
		if err != nil {
			return nil, err
		}
		sources.File = doc
	}
	return config.NewResolver(a.options, a.targets, sources), nil
}

// runBuild executes the full pipeline: validate the catalog, resolve the
// requested targets, plan, then hand the plan to the engine.
func (a *app) runBuild(cmd *cobra.Command, args []string, cfg *config.Resolver) error {
	pretend, err := cfg.GetGlobal(config.OptPretend)
	if err != nil {
		return err
	}
	quiet, err := cfg.GetGlobal(config.OptQuiet)
	if err != nil {
		return err
	}
	verbose, err := cfg.GetGlobal(config.OptVerbose)
	if err != nil {
		return err
	}
	log := logger.CreateLogger("", logLevel(verbose.Bool(), quiet.Bool()))

	if result := validation.ValidateCatalog(a.targets, cfg); !result.Valid {
		for _, issue := range result.Errors {
			printError(issue.Error())
		}
		return fmt.Errorf("target catalog validation failed")
	}

	requested, err := a.targets.Resolve(args, cfg)
	if err != nil {
		return err
	}

	srcRoot, err := cfg.GetGlobal(config.OptSourceRoot)
	if err != nil {
		return err
	}
	outRoot, err := cfg.GetGlobal(config.OptOutputRoot)
	if err != nil {
		return err
	}
	buildRoot, err := cfg.GetGlobal(config.OptBuildRoot)
	if err != nil {
		return err
	}
	if !quiet.Bool() {
		printInfo(fmt.Sprintf("Sources will be stored in %s", srcRoot.String()))
		printInfo(fmt.Sprintf("Build artifacts will be stored in %s", outRoot.String()))
	}

	run, err := a.newRunner(cfg, log, pretend.Bool(), outRoot.String())
	if err != nil {
		return err
	}
	for _, dir := range []string{srcRoot.String(), outRoot.String(), buildRoot.String()} {
		if utils.DirectoryExists(dir) {
			continue
		}
		if err := run.MkdirAll(dir); err != nil {
			return fmt.Errorf("creating root directory %s: %w", dir, err)
		}
	}

	planned, err := a.plan(cfg, requested)
	if err != nil {
		return err
	}
	if a.printPlan {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Will execute the following %d targets:\n", len(planned.Targets))
		for _, name := range planned.Names() {
			fmt.Fprintf(out, "   %s\n", name)
		}
		return nil
	}

	factory := engine.NewDependencyFactory(cfg, run, log)
	deps, err := factory.CreateDefaults()
	if err != nil {
		return err
	}
	if !verbose.Bool() && !quiet.Bool() && !pretend.Bool() && term.IsTerminal(int(os.Stdout.Fd())) {
		deps.Progress = newProgressBar()
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	deps.Processes.RegisterShutdownHandler(cancel)
	deps.Processes.Start(ctx)
	defer deps.Processes.Stop()

	report, err := engine.New(cfg, log, run, deps).Run(ctx, args, planned)
	if err != nil {
		return err
	}
	if !quiet.Bool() {
		printSuccess(fmt.Sprintf("Built %d target(s) in %s",
			report.Built(), report.Duration.Round(time.Millisecond)))
	}
	return nil
}

// newRunner picks the mutation boundary for the invocation. Pretend mode
// swaps in the announcing runner; otherwise build output optionally goes
// to per-target log files under the output root.
func (a *app) newRunner(cfg *config.Resolver, log logger.Logger, pretend bool, outRoot string) (runner.Runner, error) {
	if pretend {
		return runner.NewPretend(log), nil
	}
	writeLog, err := cfg.GetGlobal(config.OptWriteLogfile)
	if err != nil {
		return nil, err
	}
	logPath := ""
	if writeLog.Bool() {
		logPath = filepath.Join(outRoot, ".cheribuild", "logs", "build.log")
	}
	return runner.NewReal(log, logPath), nil
}

func (a *app) plan(cfg *config.Resolver, requested []*targets.Instance) (*plan.Plan, error) {
	includeDeps, err := cfg.GetGlobal(config.OptIncludeDependencies)
	if err != nil {
		return nil, err
	}
	includeToolchain, err := cfg.GetGlobal(config.OptIncludeToolchain)
	if err != nil {
		return nil, err
	}
	onlyDeps, err := cfg.GetGlobal(config.OptOnlyDependencies)
	if err != nil {
		return nil, err
	}

	planner := plan.NewPlanner(graph.NewBuilder(a.targets, cfg))
	return planner.Plan(requested, plan.Options{
		IncludeDependencies: includeDeps.Bool(),
		IncludeToolchain:    includeToolchain.Bool(),
		OnlyDependencies:    onlyDeps.Bool(),
	})
}

// logLevel maps the verbosity options onto the logger's level scale.
func logLevel(verbose, quiet bool) string {
	switch {
	case verbose:
		return "debug"
	case quiet:
		return "warning"
	default:
		return "info"
	}
}
