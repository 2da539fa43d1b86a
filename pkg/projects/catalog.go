package projects

import (
	"fmt"

	"github.com/cheribuild/cheribuild/pkg/config"
	"github.com/cheribuild/cheribuild/pkg/targets"
	"github.com/cheribuild/cheribuild/pkg/types"
)

// crossAndNative lists every cross architecture plus the host, for
// projects that build both a host tool and per-architecture variants.
func crossAndNative() []types.Architecture {
	return append([]types.Architecture{types.ArchNative}, types.CrossArchitectures()...)
}

// RegisterTargets declares the built-in target catalog. Registration order
// is the canonical expansion order, so it is part of plan determinism.
func RegisterTargets(reg *targets.Registry) error {
	templates := []*targets.Template{
		{
			Name: "llvm", Kind: types.KindCMake, SDKComponent: true,
			Defaults: map[string]interface{}{
				OptRepository: "https://github.com/CTSRD-CHERI/llvm-project.git",
			},
		},
		{
			Name: "qemu", Kind: types.KindAutotools, SDKComponent: true,
			Defaults: map[string]interface{}{
				OptConfigureOptions: []string{"--target-list=riscv64cheri-softmmu,morello-softmmu"},
			},
		},
		{
			Name: "gmp", Kind: types.KindAutotools,
			Architectures: crossAndNative(),
		},
		{
			Name: "mpfr", Kind: types.KindAutotools,
			Architectures: crossAndNative(),
			Dependencies: func(arch types.Architecture, r *config.Resolver) []targets.Dep {
				return []targets.Dep{targets.HardDep("gmp")}
			},
		},
		{
			Name: "gdb", Kind: types.KindAutotools,
			Architectures: crossAndNative(),
			Dependencies: func(arch types.Architecture, r *config.Resolver) []targets.Dep {
				return []targets.Dep{
					targets.HardDep("gmp"),
					targets.HardDep("mpfr"),
				}
			},
			Defaults: map[string]interface{}{
				OptRepository: "https://github.com/CTSRD-CHERI/gdb.git",
			},
		},
		{
			Name: "bbl", Kind: types.KindAutotools,
			Architectures: []types.Architecture{
				types.ArchRISCV64, types.ArchRISCV64Hybrid, types.ArchRISCV64Purecap,
			},
			Dependencies: func(arch types.Architecture, r *config.Resolver) []targets.Dep {
				return []targets.Dep{targets.ToolchainDep("llvm")}
			},
			Defaults: map[string]interface{}{
				OptRepository: "https://github.com/CTSRD-CHERI/riscv-pk.git",
			},
		},
		{
			Name: "cheribsd", Kind: types.KindBSDMake,
			Architectures: types.CrossArchitectures(),
			Dependencies: func(arch types.Architecture, r *config.Resolver) []targets.Dep {
				deps := []targets.Dep{targets.ToolchainDep("llvm")}
				if arch.Family() == "riscv64" && arch.IsCHERI() {
					deps = append(deps, targets.HardDep("bbl"))
				}
				return deps
			},
		},
		{
			Name: "cheribsd-sysroot", Kind: types.KindSysrootArchive,
			Architectures: types.CrossArchitectures(),
			Dependencies: func(arch types.Architecture, r *config.Resolver) []targets.Dep {
				return []targets.Dep{targets.HardDep("cheribsd")}
			},
		},
		{
			Name: "cheribsd-sdk", Kind: types.KindGroup,
			Architectures: types.CrossArchitectures(),
			Dependencies: func(arch types.Architecture, r *config.Resolver) []targets.Dep {
				return []targets.Dep{
					targets.HardDep("llvm"),
					targets.HardDep("qemu"),
					targets.HardDep("gdb-native"),
					targets.HardDep("cheribsd-sysroot"),
				}
			},
		},
		{
			Name: "disk-image", Kind: types.KindDiskImage,
			Architectures: types.CrossArchitectures(),
			Dependencies: func(arch types.Architecture, r *config.Resolver) []targets.Dep {
				return []targets.Dep{
					targets.HardDep("cheribsd"),
					targets.HardDepIf("gdb", OptIncludeGDB),
				}
			},
		},
		{
			Name: "run", Kind: types.KindRunQEMU,
			Architectures: types.CrossArchitectures(),
			Dependencies: func(arch types.Architecture, r *config.Resolver) []targets.Dep {
				return []targets.Dep{
					targets.HardDep("disk-image"),
					targets.ToolchainDep("qemu"),
				}
			},
		},
		{
			Name: "all", Kind: types.KindGroup,
			Architectures: types.CrossArchitectures(),
			Dependencies: func(arch types.Architecture, r *config.Resolver) []targets.Dep {
				return []targets.Dep{
					targets.HardDep("cheribsd-sdk"),
					targets.HardDep("disk-image"),
				}
			},
		},
	}

	for _, tmpl := range templates {
		if err := reg.Register(tmpl); err != nil {
			return fmt.Errorf("registering target catalog: %w", err)
		}
	}

	if err := reg.RegisterAlias("sdk", "cheribsd-sdk"); err != nil {
		return fmt.Errorf("registering target aliases: %w", err)
	}
	return nil
}

// RegisterAll declares the catalog's options and targets and expands the
// registry. This is the single entry point invocations use.
func RegisterAll(options *config.Registry, reg *targets.Registry) error {
	if err := config.RegisterGlobals(options); err != nil {
		return err
	}
	if err := RegisterOptions(options); err != nil {
		return err
	}
	if err := RegisterTargets(reg); err != nil {
		return err
	}
	return reg.Expand()
}
