// Package cli provides the command-line interface for cheribuild
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cheribuild/cheribuild/pkg/config"
	"github.com/cheribuild/cheribuild/pkg/projects"
	"github.com/cheribuild/cheribuild/pkg/targets"
	"github.com/cheribuild/cheribuild/pkg/utils"
)

var (
	cfgFile string
	version string
)

// app carries one invocation's state: the declared option and target
// registries plus the dynamic flag table derived from them.
type app struct {
	options *config.Registry
	targets *targets.Registry

	// flags maps every registered flag name, bare or target-prefixed,
	// to the option it sets.
	flags map[string]*config.Option

	listTargets bool
	dumpConfig  bool
	printPlan   bool
	getOption   string
}

// Execute runs the CLI
func Execute(v string) error {
	version = v

	cmd, err := newRootCmd()
	if err != nil {
		return err
	}
	return cmd.Execute()
}

// newRootCmd builds the root command. The option and target catalogs are
// registered first because the command's flag set is generated from them.
func newRootCmd() (*cobra.Command, error) {
	a, err := newApp()
	if err != nil {
		return nil, err
	}
	return a.command(), nil
}

func newApp() (*app, error) {
	a := &app{
		options: config.NewRegistry(),
		targets: targets.NewRegistry(),
		flags:   make(map[string]*config.Option),
	}
	if err := projects.RegisterAll(a.options, a.targets); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cheribuild [target...]",
		Short: "Build CHERI hardware and software from a single command",
		Long: `cheribuild builds the CHERI toolchain, CheriBSD and related projects
for multiple architectures, resolving the dependencies between them.

Targets are named <project>-<architecture>, e.g. cheribsd-riscv64-purecap.
A bare project name or an alias like "sdk" picks the configured default
architecture. Any option can be scoped to one target or project by
prefixing it, e.g. --cheribsd-riscv64-purecap/kernel-config=GENERIC or
--cheribsd/make-jobs=4 for every cheribsd variant. Per-project options
such as source-directory, make-options or repository only exist in that
prefixed form.`,
		Version:      version,
		SilenceUsage: true,
		RunE:         a.run,
	}

	cobra.OnInitialize(initConfig)

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/cheribuild.json)")
	cmd.Flags().BoolVar(&a.listTargets, "list-targets", false, "List all available targets and exit")
	cmd.Flags().BoolVar(&a.dumpConfig, "dump-configuration", false, "Print the effective configuration as JSON and exit")
	cmd.Flags().StringVar(&a.getOption, "get-config-option", "", "Print the resolved value of one option key and exit")
	cmd.Flags().BoolVar(&a.printPlan, "print-plan", false, "Print the ordered target plan instead of executing it")

	a.registerOptionFlags(cmd.Flags())

	cmd.AddCommand(newStatusCmd(a))
	cmd.AddCommand(newLogsCmd(a))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func initConfig() {
	// Read CHERIBUILD_* environment variables; option-name keys map onto
	// them with dashes replaced, so "source-root" reads
	// CHERIBUILD_SOURCE_ROOT.
	viper.SetEnvPrefix("CHERIBUILD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// envBridge adapts the environment surface to the resolver's lookup
// contract through viper. An empty variable counts as unset.
func envBridge(name string) (string, bool) {
	key := strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(name, "CHERIBUILD_"), "_", "-"))
	if !viper.IsSet(key) {
		return "", false
	}
	return viper.GetString(key), true
}

// resolveConfigPath picks the config file for this invocation: the
// --config flag, then CHERIBUILD_CONFIG, then the default location when
// it exists.
func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if env := viper.GetString("config"); env != "" {
		return env
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(home, ".config", "cheribuild.json")
	if utils.FileExists(path) {
		return path
	}
	return ""
}

// Helper functions

func printSuccess(message string) {
	fmt.Printf("%s %s\n", color.GreenString("[cheribuild]"), message)
}

func printError(message string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", color.RedString("[cheribuild]"), message)
}

func printInfo(message string) {
	fmt.Printf("%s %s\n", color.CyanString("[cheribuild]"), message)
}

func printWarning(message string) {
	fmt.Printf("%s %s\n", color.YellowString("[cheribuild]"), message)
}
