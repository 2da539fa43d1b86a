package config

import (
	"fmt"
	"runtime"

	"github.com/cheribuild/cheribuild/pkg/types"
)

// Names of the built-in global options referenced by other packages.
const (
	OptPretend             = "pretend"
	OptQuiet               = "quiet"
	OptVerbose             = "verbose"
	OptClean               = "clean"
	OptForce               = "force"
	OptSkipUpdate          = "skip-update"
	OptSkipConfigure       = "skip-configure"
	OptForceConfigure      = "force-configure"
	OptConfigureOnly       = "configure-only"
	OptSkipBuild           = "skip-build"
	OptSkipInstall         = "skip-install"
	OptSkipSDK             = "skip-sdk"
	OptIncludeDependencies = "include-dependencies"
	OptIncludeToolchain    = "include-toolchain-dependencies"
	OptOnlyDependencies    = "only-dependencies"
	OptStartWith           = "start-with"
	OptStartAfter          = "start-after"
	OptBuild               = "build"
	OptTest                = "test"
	OptBenchmark           = "benchmark"
	OptMakeJobs            = "make-jobs"
	OptSourceRoot          = "source-root"
	OptOutputRoot          = "output-root"
	OptBuildRoot           = "build-root"
	OptDefaultArchitecture = "default-architecture"
	OptDesktopNotify       = "desktop-notifications"
	OptWriteLogfile        = "write-logfile"
	OptSkip                = "skip"
)

// RegisterGlobals declares the built-in option set shared by every
// invocation. Project-specific options (source and install directories,
// per-project knobs) are registered by the project catalog.
func RegisterGlobals(reg *Registry) error {
	archNames := make([]string, 0, len(types.CrossArchitectures()))
	for _, a := range types.CrossArchitectures() {
		archNames = append(archNames, string(a))
	}

	opts := []*Option{
		{
			Name: OptPretend, Shorthand: "p", Scope: ScopeGlobal, Kind: KindBool,
			CommandLineOnly: true,
			Help:            "Print commands instead of executing them",
		},
		{
			Name: OptQuiet, Shorthand: "q", Scope: ScopeGlobal, Kind: KindBool,
			CommandLineOnly: true,
			Help:            "Don't show stdout of the commands that are executed",
		},
		{
			Name: OptVerbose, Shorthand: "v", Scope: ScopeGlobal, Kind: KindBool,
			CommandLineOnly: true,
			Help:            "Print all commands that are executed",
		},
		{
			Name: OptClean, Shorthand: "c", Scope: ScopeGlobal, Kind: KindBool,
			Help: "Remove the build directory before build",
		},
		{
			Name: OptForce, Shorthand: "f", Scope: ScopeGlobal, Kind: KindBool,
			Help: "Don't prompt for user input but use the default action",
		},
		{
			Name: OptSkipUpdate, Scope: ScopeGlobal, Kind: KindBool,
			Help: "Skip the update stage and build from the current sources",
		},
		{
			Name: OptSkipConfigure, Scope: ScopeGlobal, Kind: KindBool,
			Help: "Skip the configure stage",
		},
		{
			Name: OptForceConfigure, Scope: ScopeGlobal, Kind: KindBool,
			Help: "Always run the configure stage, even when not needed",
		},
		{
			Name: OptConfigureOnly, Scope: ScopeGlobal, Kind: KindBool,
			CommandLineOnly: true,
			Help:            "Stop after the configure stage",
		},
		{
			Name: OptSkipBuild, Scope: ScopeGlobal, Kind: KindBool,
			Help: "Skip the build stage",
		},
		{
			Name: OptSkipInstall, Scope: ScopeGlobal, Kind: KindBool,
			Help: "Skip the install stage",
		},
		{
			Name: OptSkipSDK, Scope: ScopeGlobal, Kind: KindBool,
			Help: "Skip building dependencies that are part of the SDK; assume they are already installed",
		},
		{
			Name: OptIncludeDependencies, Shorthand: "d", Scope: ScopeGlobal, Kind: KindBool,
			Help: "Also build the dependencies of the requested targets",
		},
		{
			Name: OptIncludeToolchain, Scope: ScopeGlobal, Kind: KindBool,
			Default: true,
			Help:    "Include toolchain dependencies when expanding the dependency graph",
		},
		{
			Name: OptOnlyDependencies, Scope: ScopeGlobal, Kind: KindBool,
			CommandLineOnly: true,
			Help:            "Build the dependencies of the requested targets but not the targets themselves",
		},
		{
			Name: OptStartWith, Scope: ScopeGlobal, Kind: KindString,
			CommandLineOnly: true,
			Help:            "Resume the plan at the named target, skipping everything before it",
		},
		{
			Name: OptStartAfter, Scope: ScopeGlobal, Kind: KindString,
			CommandLineOnly: true,
			Help:            "Resume the plan after the named target, skipping it and everything before it",
		},
		{
			Name: OptBuild, Scope: ScopeGlobal, Kind: KindBool,
			CommandLineOnly: true, Default: true,
			Help: "Run the build pipeline for the requested targets (default action)",
		},
		{
			Name: OptTest, Scope: ScopeGlobal, Kind: KindBool,
			CommandLineOnly: true,
			Help:            "Run the test stage for the requested targets",
		},
		{
			Name: OptBenchmark, Scope: ScopeGlobal, Kind: KindBool,
			CommandLineOnly: true,
			Help:            "Run the benchmark stage for the requested targets",
		},
		{
			Name: OptMakeJobs, Shorthand: "j", Scope: ScopeGlobal, Kind: KindInt,
			Compute: func(r *Resolver, t Target) (interface{}, error) {
				return runtime.NumCPU(), nil
			},
			DefaultDesc: "number of CPUs",
			Help:        "Number of jobs to use for compiling",
		},
		{
			Name: OptSourceRoot, Scope: ScopeGlobal, Kind: KindPath,
			Default: "~/cheri",
			EnvVar:  "CHERIBUILD_SOURCE_ROOT",
			Help:    "The directory to store the cloned sources",
		},
		{
			Name: OptOutputRoot, Scope: ScopeGlobal, Kind: KindPath,
			Compute: func(r *Resolver, t Target) (interface{}, error) {
				src, err := r.GetGlobal(OptSourceRoot)
				if err != nil {
					return nil, err
				}
				return src.String() + "/output", nil
			},
			DefaultDesc: "<source-root>/output",
			EnvVar:      "CHERIBUILD_OUTPUT_ROOT",
			Help:        "The directory for install roots, disk images and SDKs",
		},
		{
			Name: OptBuildRoot, Scope: ScopeGlobal, Kind: KindPath,
			Compute: func(r *Resolver, t Target) (interface{}, error) {
				src, err := r.GetGlobal(OptSourceRoot)
				if err != nil {
					return nil, err
				}
				return src.String() + "/build", nil
			},
			DefaultDesc: "<source-root>/build",
			EnvVar:      "CHERIBUILD_BUILD_ROOT",
			Help:        "The directory for out-of-tree build directories",
		},
		{
			Name: OptDefaultArchitecture, Scope: ScopeGlobal, Kind: KindEnum,
			Default:    string(types.ArchRISCV64Purecap),
			EnumValues: archNames,
			Help:       "The architecture a bare template name or alias expands to",
		},
		{
			Name: OptDesktopNotify, Scope: ScopeGlobal, Kind: KindBool,
			Help: "Send a desktop notification when a run finishes",
		},
		{
			Name: OptWriteLogfile, Scope: ScopeGlobal, Kind: KindBool,
			Help: "Write the build output of each target to a logfile",
		},
		{
			Name: OptSkip, Scope: ScopePerTarget, Kind: KindBool,
			Help: "Skip this target even when it appears in the plan",
		},
	}

	for _, opt := range opts {
		if err := reg.Register(opt); err != nil {
			return fmt.Errorf("registering built-in options: %w", err)
		}
	}
	return nil
}
