package projects

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/cheribuild/cheribuild/pkg/logger"
	"github.com/cheribuild/cheribuild/pkg/runner"
	"github.com/cheribuild/cheribuild/pkg/types"
)

// sysrootLifecycle packages the installed CheriBSD world into a sysroot
// archive under the SDK and unpacks it next to the archive. It has no
// sources of its own; everything it needs comes from the cheribsd rootfs
// at the same architecture.
type sysrootLifecycle struct {
	*baseLifecycle
}

func (l *sysrootLifecycle) archivePath() (string, error) {
	sysroot, err := l.sysrootDir()
	if err != nil {
		return "", err
	}
	return sysroot + ".tar.xz", nil
}

func (l *sysrootLifecycle) UpdateSource(ctx context.Context) error { return nil }

func (l *sysrootLifecycle) Clean(ctx context.Context) error {
	archive, err := l.archivePath()
	if err != nil {
		return err
	}
	sysroot, err := l.sysrootDir()
	if err != nil {
		return err
	}
	if err := l.deleter.Remove(archive); err != nil {
		return err
	}
	return l.deleter.Remove(sysroot)
}

func (l *sysrootLifecycle) Build(ctx context.Context) error {
	rootfs, err := l.stringOpt(OptInstallDir)
	if err != nil {
		return err
	}
	archive, err := l.archivePath()
	if err != nil {
		return err
	}
	l.log.Info("Creating sysroot archive", logger.WithField("archive", archive))
	return l.run.CreateTarball(rootfs, archive)
}

func (l *sysrootLifecycle) Install(ctx context.Context) error {
	archive, err := l.archivePath()
	if err != nil {
		return err
	}
	sysroot, err := l.sysrootDir()
	if err != nil {
		return err
	}
	return l.run.ExtractTarball(archive, sysroot)
}

// diskImageLifecycle assembles a bootable file system image from the
// per-architecture rootfs using the SDK's makefs.
type diskImageLifecycle struct {
	*baseLifecycle
}

func (l *diskImageLifecycle) UpdateSource(ctx context.Context) error { return nil }

func (l *diskImageLifecycle) Clean(ctx context.Context) error {
	img, err := l.imagePath()
	if err != nil {
		return err
	}
	return l.deleter.Remove(img)
}

func (l *diskImageLifecycle) Build(ctx context.Context) error {
	rootfs, err := l.stringOpt(OptInstallDir)
	if err != nil {
		return err
	}
	img, err := l.imagePath()
	if err != nil {
		return err
	}
	sdk, err := l.sdkDir()
	if err != nil {
		return err
	}
	l.log.Info("Creating disk image", logger.WithField("image", img))
	return l.run.Run(ctx, runner.Command{
		Path: filepath.Join(sdk, "bin", "makefs"),
		Args: []string{
			"-t", "ffs",
			"-o", "version=2",
			"-Z",
			"-B", "le",
			img,
			rootfs,
		},
	})
}

func (l *diskImageLifecycle) Install(ctx context.Context) error { return nil }

// runQEMULifecycle boots the disk image in the SDK's qemu. Launching the
// emulator is this target's build stage; there is nothing to configure,
// install or clean.
type runQEMULifecycle struct {
	*baseLifecycle
}

func (l *runQEMULifecycle) UpdateSource(ctx context.Context) error { return nil }
func (l *runQEMULifecycle) Clean(ctx context.Context) error        { return nil }
func (l *runQEMULifecycle) Install(ctx context.Context) error      { return nil }

func (l *runQEMULifecycle) Build(ctx context.Context) error {
	img, err := l.imagePath()
	if err != nil {
		return err
	}
	rootfs, err := l.stringOpt(OptInstallDir)
	if err != nil {
		return err
	}
	sdk, err := l.sdkDir()
	if err != nil {
		return err
	}
	port, err := l.intOpt(OptSSHPort)
	if err != nil {
		return err
	}
	arch := l.inst.Architecture()
	args := []string{
		"-M", machineFor(arch),
		"-m", "2048",
		"-nographic",
		"-kernel", filepath.Join(rootfs, "boot", "kernel", "kernel"),
		"-drive", "if=none,file=" + img + ",id=drv,format=raw",
		"-device", "virtio-blk-device,drive=drv",
		"-device", "virtio-net-device,netdev=net0",
		"-netdev", fmt.Sprintf("user,id=net0,hostfwd=tcp::%d-:22", port),
	}
	return l.run.Run(ctx, runner.Command{
		Path: filepath.Join(sdk, "bin", qemuSystemBinary(arch)),
		Args: args,
	})
}

// groupLifecycle backs aggregate targets such as cheribsd-sdk and all.
// The value of a group is its dependency edges; every stage is a no-op.
type groupLifecycle struct{}

func (groupLifecycle) UpdateSource(ctx context.Context) error { return nil }
func (groupLifecycle) Clean(ctx context.Context) error        { return nil }
func (groupLifecycle) Configure(ctx context.Context) error    { return nil }
func (groupLifecycle) Build(ctx context.Context) error        { return nil }
func (groupLifecycle) Install(ctx context.Context) error      { return nil }
func (groupLifecycle) Test(ctx context.Context) error         { return nil }
func (groupLifecycle) Benchmark(ctx context.Context) error    { return nil }

func qemuSystemBinary(arch types.Architecture) string {
	switch arch.Family() {
	case "riscv64":
		if arch.IsCHERI() {
			return "qemu-system-riscv64cheri"
		}
		return "qemu-system-riscv64"
	case "mips64":
		if arch.IsCHERI() {
			return "qemu-system-cheri128"
		}
		return "qemu-system-mips64"
	case "morello":
		return "qemu-system-morello"
	case "aarch64":
		return "qemu-system-aarch64"
	default:
		return "qemu-system-x86_64"
	}
}

func machineFor(arch types.Architecture) string {
	switch arch.Family() {
	case "riscv64", "aarch64", "morello":
		return "virt"
	case "mips64":
		return "malta"
	default:
		return "q35"
	}
}
