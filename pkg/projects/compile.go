package projects

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/cheribuild/cheribuild/pkg/runner"
)

// autotoolsLifecycle drives configure-script projects: qemu, gdb, gmp,
// mpfr and bbl. Cross instances configure with --host and the SDK
// compiler and install through DESTDIR.
type autotoolsLifecycle struct {
	*baseLifecycle
}

func (l *autotoolsLifecycle) Configure(ctx context.Context) error {
	src, err := l.stringOpt(OptSourceDir)
	if err != nil {
		return err
	}
	build, err := l.stringOpt(OptBuildDir)
	if err != nil {
		return err
	}
	install, err := l.stringOpt(OptInstallDir)
	if err != nil {
		return err
	}
	if err := l.run.MkdirAll(build); err != nil {
		return err
	}

	var args []string
	var env map[string]string
	if l.isCross() {
		args = append(args, "--host="+tripleFor(l.inst.Architecture()), "--prefix=/usr/local")
		env, err = l.crossEnv()
		if err != nil {
			return err
		}
	} else {
		args = append(args, "--prefix="+install)
	}
	extra, err := l.listOpt(OptConfigureOptions)
	if err != nil {
		return err
	}
	args = append(args, extra...)

	return l.run.Run(ctx, runner.Command{
		Path: filepath.Join(src, "configure"),
		Args: args,
		Dir:  build,
		Env:  env,
	})
}

func (l *autotoolsLifecycle) Build(ctx context.Context) error {
	build, err := l.stringOpt(OptBuildDir)
	if err != nil {
		return err
	}
	jobs, err := l.makeJobs()
	if err != nil {
		return err
	}
	extra, err := l.listOpt(OptMakeOptions)
	if err != nil {
		return err
	}
	args := append([]string{fmt.Sprintf("-j%d", jobs)}, extra...)
	return l.run.Run(ctx, runner.Command{Path: "make", Args: args, Dir: build})
}

func (l *autotoolsLifecycle) Install(ctx context.Context) error {
	build, err := l.stringOpt(OptBuildDir)
	if err != nil {
		return err
	}
	cmd := runner.Command{Path: "make", Args: []string{"install"}, Dir: build}
	if l.isCross() {
		install, err := l.stringOpt(OptInstallDir)
		if err != nil {
			return err
		}
		cmd.Env = map[string]string{"DESTDIR": install}
	}
	return l.run.Run(ctx, cmd)
}

// Test runs the upstream check suite. Cross-built binaries cannot run on
// the host, so only native instances have a test stage.
func (l *autotoolsLifecycle) Test(ctx context.Context) error {
	if l.isCross() {
		l.log.Debug("Skipping tests for cross build")
		return nil
	}
	build, err := l.stringOpt(OptBuildDir)
	if err != nil {
		return err
	}
	return l.run.Run(ctx, runner.Command{Path: "make", Args: []string{"check"}, Dir: build})
}

// cmakeLifecycle drives CMake projects with the Ninja generator. The only
// catalog member today is llvm.
type cmakeLifecycle struct {
	*baseLifecycle
}

func (l *cmakeLifecycle) Configure(ctx context.Context) error {
	src, err := l.stringOpt(OptSourceDir)
	if err != nil {
		return err
	}
	build, err := l.stringOpt(OptBuildDir)
	if err != nil {
		return err
	}
	install, err := l.stringOpt(OptInstallDir)
	if err != nil {
		return err
	}
	args := []string{
		"-G", "Ninja",
		"-S", src,
		"-B", build,
		"-DCMAKE_BUILD_TYPE=Release",
		"-DCMAKE_INSTALL_PREFIX=" + install,
	}
	extra, err := l.listOpt(OptCMakeOptions)
	if err != nil {
		return err
	}
	args = append(args, extra...)
	return l.run.Run(ctx, runner.Command{Path: "cmake", Args: args})
}

func (l *cmakeLifecycle) Build(ctx context.Context) error {
	build, err := l.stringOpt(OptBuildDir)
	if err != nil {
		return err
	}
	jobs, err := l.makeJobs()
	if err != nil {
		return err
	}
	args := []string{"--build", build, "-j", fmt.Sprintf("%d", jobs)}
	return l.run.Run(ctx, runner.Command{Path: "cmake", Args: args})
}

func (l *cmakeLifecycle) Install(ctx context.Context) error {
	build, err := l.stringOpt(OptBuildDir)
	if err != nil {
		return err
	}
	return l.run.Run(ctx, runner.Command{Path: "cmake", Args: []string{"--build", build, "--target", "install"}})
}

func (l *cmakeLifecycle) Test(ctx context.Context) error {
	if l.isCross() {
		l.log.Debug("Skipping tests for cross build")
		return nil
	}
	build, err := l.stringOpt(OptBuildDir)
	if err != nil {
		return err
	}
	return l.run.Run(ctx, runner.Command{
		Path: "ctest",
		Args: []string{"--output-on-failure"},
		Dir:  build,
	})
}

// bsdMakeLifecycle drives the CheriBSD world and kernel build. The stage
// commands follow the FreeBSD build system: buildworld/buildkernel into
// MAKEOBJDIRPREFIX, then installworld/installkernel/distribution under
// DESTDIR.
type bsdMakeLifecycle struct {
	*baseLifecycle
}

func (l *bsdMakeLifecycle) Build(ctx context.Context) error {
	src, err := l.stringOpt(OptSourceDir)
	if err != nil {
		return err
	}
	build, err := l.stringOpt(OptBuildDir)
	if err != nil {
		return err
	}
	// make refuses to run with a missing MAKEOBJDIRPREFIX.
	if err := l.run.MkdirAll(build); err != nil {
		return err
	}
	jobs, err := l.makeJobs()
	if err != nil {
		return err
	}
	kernConf, err := l.stringOpt(OptKernelConfig)
	if err != nil {
		return err
	}
	extra, err := l.listOpt(OptMakeOptions)
	if err != nil {
		return err
	}
	args := []string{
		"-C", src,
		fmt.Sprintf("-j%d", jobs),
		"KERNCONF=" + kernConf,
		"buildworld", "buildkernel",
	}
	args = append(args, extra...)
	env, err := l.worldEnv()
	if err != nil {
		return err
	}
	return l.run.Run(ctx, runner.Command{Path: "make", Args: args, Env: env})
}

func (l *bsdMakeLifecycle) Install(ctx context.Context) error {
	src, err := l.stringOpt(OptSourceDir)
	if err != nil {
		return err
	}
	install, err := l.stringOpt(OptInstallDir)
	if err != nil {
		return err
	}
	kernConf, err := l.stringOpt(OptKernelConfig)
	if err != nil {
		return err
	}
	if err := l.run.MkdirAll(install); err != nil {
		return err
	}
	args := []string{
		"-C", src,
		"DESTDIR=" + install,
		"KERNCONF=" + kernConf,
		"installworld", "installkernel", "distribution",
	}
	env, err := l.worldEnv()
	if err != nil {
		return err
	}
	return l.run.Run(ctx, runner.Command{Path: "make", Args: args, Env: env})
}

// worldEnv points the world build at the out-of-tree object directory and
// the SDK cross toolchain.
func (l *bsdMakeLifecycle) worldEnv() (map[string]string, error) {
	build, err := l.stringOpt(OptBuildDir)
	if err != nil {
		return nil, err
	}
	sdk, err := l.sdkDir()
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"MAKEOBJDIRPREFIX": build,
		"XCC":              filepath.Join(sdk, "bin", "clang"),
		"XCXX":             filepath.Join(sdk, "bin", "clang++"),
	}, nil
}
