package projects

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/cheribuild/cheribuild/pkg/config"
	"github.com/cheribuild/cheribuild/pkg/logger"
	"github.com/cheribuild/cheribuild/pkg/runner"
	"github.com/cheribuild/cheribuild/pkg/targets"
	"github.com/cheribuild/cheribuild/pkg/types"
	"github.com/cheribuild/cheribuild/pkg/utils"
)

// baseLifecycle provides the stages shared by every checked-out project:
// git-driven source updates, async build directory cleaning, and config
// lookups. Project kinds embed it and override the stages they implement.
type baseLifecycle struct {
	inst    *targets.Instance
	cfg     *config.Resolver
	run     runner.Runner
	log     logger.Logger
	deleter *utils.AsyncDeleter
}

func (b *baseLifecycle) UpdateSource(ctx context.Context) error {
	src, err := b.stringOpt(OptSourceDir)
	if err != nil {
		return err
	}
	repo, err := b.stringOpt(OptRepository)
	if err != nil {
		return err
	}
	if !utils.DirectoryExists(filepath.Join(src, ".git")) {
		return b.run.Run(ctx, runner.Command{
			Path: "git",
			Args: []string{"clone", repo, src},
		})
	}
	return b.run.Run(ctx, runner.Command{
		Path: "git",
		Args: []string{"-C", src, "pull", "--rebase", "--autostash"},
	})
}

// Clean hands the build directory to the async deleter and recreates it
// empty, so configure can start while the old tree is still being removed.
func (b *baseLifecycle) Clean(ctx context.Context) error {
	build, err := b.stringOpt(OptBuildDir)
	if err != nil {
		return err
	}
	if err := b.deleter.Remove(build); err != nil {
		return err
	}
	return b.run.MkdirAll(build)
}

func (b *baseLifecycle) Configure(ctx context.Context) error {
	b.log.Debug("Nothing to configure")
	return nil
}

func (b *baseLifecycle) Build(ctx context.Context) error {
	b.log.Debug("Nothing to build")
	return nil
}

func (b *baseLifecycle) Install(ctx context.Context) error {
	b.log.Debug("Nothing to install")
	return nil
}

func (b *baseLifecycle) Test(ctx context.Context) error {
	b.log.Debug("No tests defined")
	return nil
}

func (b *baseLifecycle) Benchmark(ctx context.Context) error {
	b.log.Debug("No benchmarks defined")
	return nil
}

// Option lookup helpers, all resolved in the context of the instance so
// per-target overrides and class defaults apply.

func (b *baseLifecycle) stringOpt(name string) (string, error) {
	v, err := b.cfg.GetForTarget(name, b.inst)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

func (b *baseLifecycle) listOpt(name string) ([]string, error) {
	v, err := b.cfg.GetForTarget(name, b.inst)
	if err != nil {
		return nil, err
	}
	return v.StringList(), nil
}

func (b *baseLifecycle) intOpt(name string) (int, error) {
	v, err := b.cfg.GetForTarget(name, b.inst)
	if err != nil {
		return 0, err
	}
	return v.Int(), nil
}

func (b *baseLifecycle) makeJobs() (int, error) {
	return b.intOpt(config.OptMakeJobs)
}

func (b *baseLifecycle) isCross() bool {
	return b.inst.Architecture() != types.ArchNative
}

func (b *baseLifecycle) outputRoot() (string, error) {
	v, err := b.cfg.GetGlobal(config.OptOutputRoot)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

func (b *baseLifecycle) sdkDir() (string, error) {
	out, err := b.outputRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(out, "sdk"), nil
}

// sysrootDir is where the extracted CheriBSD sysroot for the instance's
// architecture lives, used both by the sysroot lifecycle and as the
// --sysroot for cross compilation.
func (b *baseLifecycle) sysrootDir() (string, error) {
	sdk, err := b.sdkDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(sdk, "sysroot-"+string(b.inst.Architecture())), nil
}

func (b *baseLifecycle) imagePath() (string, error) {
	out, err := b.outputRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(out, "cheribsd-"+string(b.inst.Architecture())+".img"), nil
}

// crossEnv points the build at the SDK cross compiler and sysroot.
func (b *baseLifecycle) crossEnv() (map[string]string, error) {
	sdk, err := b.sdkDir()
	if err != nil {
		return nil, err
	}
	sysroot, err := b.sysrootDir()
	if err != nil {
		return nil, err
	}
	triple := tripleFor(b.inst.Architecture())
	return map[string]string{
		"CC":     filepath.Join(sdk, "bin", "clang"),
		"CXX":    filepath.Join(sdk, "bin", "clang++"),
		"CFLAGS": fmt.Sprintf("--target=%s --sysroot=%s", triple, sysroot),
	}, nil
}

// tripleFor maps an architecture to the clang target triple used for
// CheriBSD cross builds.
func tripleFor(arch types.Architecture) string {
	switch arch.Family() {
	case "riscv64":
		return "riscv64-unknown-freebsd"
	case "mips64":
		return "mips64-unknown-freebsd"
	case "aarch64", "morello":
		return "aarch64-unknown-freebsd"
	case "amd64":
		return "x86_64-unknown-freebsd"
	default:
		return string(arch) + "-unknown-freebsd"
	}
}
