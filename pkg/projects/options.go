// Package projects declares the buildable target catalog: the templates,
// their per-target options, and the lifecycle implementations that drive
// each project kind through the runner.
package projects

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cheribuild/cheribuild/pkg/config"
	"github.com/cheribuild/cheribuild/pkg/types"
)

// Names of the per-target options registered by the catalog.
const (
	OptSourceDir        = "source-directory"
	OptBuildDir         = "build-directory"
	OptInstallDir       = "install-directory"
	OptRepository       = "repository"
	OptConfigureOptions = "configure-options"
	OptMakeOptions      = "make-options"
	OptCMakeOptions     = "cmake-options"
	OptKernelConfig     = "kernel-config"
	OptIncludeGDB       = "include-gdb"
	OptSSHPort          = "ssh-forwarding-port"
)

// RegisterOptions declares the per-target options the lifecycles read.
// Path options default to locations derived from the global root
// directories, so overriding source-root moves everything at once.
func RegisterOptions(reg *config.Registry) error {
	opts := []*config.Option{
		{
			Name: OptRepository, Scope: config.ScopePerTarget, Kind: config.KindString,
			Compute: func(r *config.Resolver, t config.Target) (interface{}, error) {
				return "https://github.com/CTSRD-CHERI/" + baseName(t) + ".git", nil
			},
			DefaultDesc: "https://github.com/CTSRD-CHERI/<target>.git",
			Help:        "The git repository to clone this project from",
		},
		{
			Name: OptSourceDir, Scope: config.ScopePerTarget, Kind: config.KindPath,
			Compute:     computeSourceDir,
			DefaultDesc: "<source-root>/<repository name>",
			Help:        "Override the directory the sources are cloned to",
		},
		{
			Name: OptBuildDir, Scope: config.ScopePerTarget, Kind: config.KindPath,
			Compute:     computeBuildDir,
			DefaultDesc: "<build-root>/<target>-build",
			Help:        "Override the out-of-tree build directory",
		},
		{
			Name: OptInstallDir, Scope: config.ScopePerTarget, Kind: config.KindPath,
			Compute:     computeInstallDir,
			DefaultDesc: "<output-root>/sdk for native targets, <output-root>/rootfs-<architecture> otherwise",
			Help:        "Override the directory this project installs to",
		},
		{
			Name: OptConfigureOptions, Scope: config.ScopePerTarget, Kind: config.KindStringList,
			Help: "Extra arguments passed to the configure script",
		},
		{
			Name: OptMakeOptions, Scope: config.ScopePerTarget, Kind: config.KindStringList,
			Help: "Extra arguments passed to every make invocation",
		},
		{
			Name: OptCMakeOptions, Scope: config.ScopePerTarget, Kind: config.KindStringList,
			Owner: "llvm",
			Help:  "Extra -D arguments passed to the CMake configure step",
		},
		{
			Name: OptKernelConfig, Scope: config.ScopePerTarget, Kind: config.KindString,
			Owner: "cheribsd",
			Compute: func(r *config.Resolver, t config.Target) (interface{}, error) {
				return defaultKernelConfig(t.Architecture()), nil
			},
			DefaultDesc: "per-architecture QEMU kernel configuration",
			Help:        "The kernel configuration to build",
		},
		{
			Name: OptIncludeGDB, Scope: config.ScopePerTarget, Kind: config.KindBool,
			Owner: "disk-image", Default: true,
			Help: "Include the gdb binaries in the disk image",
		},
		{
			Name: OptSSHPort, Scope: config.ScopePerTarget, Kind: config.KindInt,
			Owner: "run", Default: 19500,
			Help: "The host port forwarded to the guest SSH port",
		},
	}

	for _, opt := range opts {
		if err := reg.Register(opt); err != nil {
			return fmt.Errorf("registering project options: %w", err)
		}
	}
	return nil
}

func computeSourceDir(r *config.Resolver, t config.Target) (interface{}, error) {
	root, err := r.GetGlobal(config.OptSourceRoot)
	if err != nil {
		return nil, err
	}
	repo, err := r.GetForTarget(OptRepository, t)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSuffix(filepath.Base(repo.String()), ".git")
	return filepath.Join(root.String(), name), nil
}

func computeBuildDir(r *config.Resolver, t config.Target) (interface{}, error) {
	root, err := r.GetGlobal(config.OptBuildRoot)
	if err != nil {
		return nil, err
	}
	return filepath.Join(root.String(), t.Name()+"-build"), nil
}

// computeInstallDir places native artifacts in the shared SDK prefix and
// cross artifacts in the per-architecture root filesystem.
func computeInstallDir(r *config.Resolver, t config.Target) (interface{}, error) {
	root, err := r.GetGlobal(config.OptOutputRoot)
	if err != nil {
		return nil, err
	}
	if t.Architecture() == types.ArchNative {
		return filepath.Join(root.String(), "sdk"), nil
	}
	return filepath.Join(root.String(), "rootfs-"+string(t.Architecture())), nil
}

// baseName is the template name an instance was expanded from.
func baseName(t config.Target) string {
	return t.Ancestry()[0]
}

func defaultKernelConfig(arch types.Architecture) string {
	switch arch.Family() {
	case "riscv64":
		if arch.IsPurecap() {
			return "CHERI-PURECAP-QEMU"
		}
		if arch.IsHybrid() {
			return "CHERI-QEMU"
		}
		return "QEMU"
	case "mips64":
		if arch.IsCHERI() {
			return "CHERI_MALTA64"
		}
		return "MALTA64"
	case "morello":
		if arch.IsPurecap() {
			return "GENERIC-MORELLO-PURECAP"
		}
		return "GENERIC-MORELLO"
	default:
		return "GENERIC"
	}
}
