package targets_test

import (
	"errors"
	"testing"

	"github.com/cheribuild/cheribuild/pkg/config"
	"github.com/cheribuild/cheribuild/pkg/targets"
	"github.com/cheribuild/cheribuild/pkg/types"
)

func newCatalog(t *testing.T) *targets.Registry {
	t.Helper()
	reg := targets.NewRegistry()
	reg.MustRegister(&targets.Template{Name: "llvm", Kind: types.KindCMake, SDKComponent: true})
	reg.MustRegister(&targets.Template{Name: "qemu", Kind: types.KindAutotools, SDKComponent: true})
	reg.MustRegister(&targets.Template{
		Name:          "gdb",
		Kind:          types.KindAutotools,
		Architectures: []types.Architecture{types.ArchNative, types.ArchRISCV64, types.ArchRISCV64Purecap},
	})
	reg.MustRegister(&targets.Template{
		Name:          "freebsd",
		Kind:          types.KindBSDMake,
		Architectures: []types.Architecture{types.ArchRISCV64, types.ArchAArch64},
	})
	reg.MustRegister(&targets.Template{
		Name:          "cheribsd",
		Parent:        "freebsd",
		Kind:          types.KindBSDMake,
		Architectures: []types.Architecture{types.ArchRISCV64, types.ArchRISCV64Purecap, types.ArchMorelloPurecap},
		Defaults:      map[string]interface{}{config.OptMakeJobs: 4},
		Dependencies: func(arch types.Architecture, r *config.Resolver) []targets.Dep {
			return []targets.Dep{targets.ToolchainDep("llvm")}
		},
	})
	reg.MustRegister(&targets.Template{
		Name:          "cheribsd-sdk",
		Kind:          types.KindGroup,
		Architectures: []types.Architecture{types.ArchRISCV64, types.ArchRISCV64Purecap},
		Dependencies: func(arch types.Architecture, r *config.Resolver) []targets.Dep {
			return []targets.Dep{
				targets.HardDep("llvm"),
				targets.HardDep("qemu"),
				targets.HardDep("gdb-native"),
				targets.HardDep("cheribsd"),
			}
		},
	})
	reg.MustRegister(&targets.Template{
		Name:          "morello-firmware",
		Kind:          types.KindCMake,
		Architectures: []types.Architecture{types.ArchMorelloPurecap},
	})
	if err := reg.RegisterAlias("sdk", "cheribsd-sdk"); err != nil {
		t.Fatalf("RegisterAlias: %v", err)
	}
	if err := reg.Expand(); err != nil {
		t.Fatalf("Expand: %v", err)
	}
	return reg
}

func newConfigResolver(t *testing.T, reg *targets.Registry, cli map[string]interface{}) *config.Resolver {
	t.Helper()
	options := config.NewRegistry()
	config.RegisterGlobals(options)
	return config.NewResolver(options, reg, config.Sources{CommandLine: cli})
}

func TestExpandInstanceNames(t *testing.T) {
	reg := newCatalog(t)

	want := []string{
		"llvm",
		"qemu",
		"gdb-native", "gdb-riscv64", "gdb-riscv64-purecap",
		"freebsd-riscv64", "freebsd-aarch64",
		"cheribsd-riscv64", "cheribsd-riscv64-purecap", "cheribsd-morello-purecap",
		"cheribsd-sdk-riscv64", "cheribsd-sdk-riscv64-purecap",
		"morello-firmware-morello-purecap",
	}
	got := reg.TargetNames()
	if len(got) != len(want) {
		t.Fatalf("TargetNames returned %d names, want %d: %v", len(got), len(want), got)
	}
	for i, name := range want {
		if got[i] != name {
			t.Errorf("TargetNames[%d] = %q, want %q", i, got[i], name)
		}
	}
}

func TestResolveExactInstance(t *testing.T) {
	reg := newCatalog(t)
	cfg := newConfigResolver(t, reg, nil)

	inst, err := reg.ResolveOne("cheribsd-riscv64", cfg)
	if err != nil {
		t.Fatalf("ResolveOne: %v", err)
	}
	if inst.Name() != "cheribsd-riscv64" {
		t.Errorf("resolved %q, want cheribsd-riscv64", inst.Name())
	}
	if inst.Architecture() != types.ArchRISCV64 {
		t.Errorf("architecture = %q, want riscv64", inst.Architecture())
	}
}

func TestResolveBareTemplateUsesDefaultArchitecture(t *testing.T) {
	reg := newCatalog(t)

	inst, err := reg.ResolveOne("cheribsd", newConfigResolver(t, reg, nil))
	if err != nil {
		t.Fatalf("ResolveOne: %v", err)
	}
	if inst.Name() != "cheribsd-riscv64-purecap" {
		t.Errorf("resolved %q, want cheribsd-riscv64-purecap", inst.Name())
	}

	cli := map[string]interface{}{config.OptDefaultArchitecture: "morello-purecap"}
	inst, err = reg.ResolveOne("cheribsd", newConfigResolver(t, reg, cli))
	if err != nil {
		t.Fatalf("ResolveOne with override: %v", err)
	}
	if inst.Name() != "cheribsd-morello-purecap" {
		t.Errorf("resolved %q, want cheribsd-morello-purecap", inst.Name())
	}
}

func TestResolveAlias(t *testing.T) {
	reg := newCatalog(t)
	cfg := newConfigResolver(t, reg, nil)

	inst, err := reg.ResolveOne("sdk", cfg)
	if err != nil {
		t.Fatalf("ResolveOne(sdk): %v", err)
	}
	if inst.Name() != "cheribsd-sdk-riscv64-purecap" {
		t.Errorf("sdk resolved to %q, want cheribsd-sdk-riscv64-purecap", inst.Name())
	}
}

func TestResolveSingleton(t *testing.T) {
	reg := newCatalog(t)
	cfg := newConfigResolver(t, reg, nil)

	inst, err := reg.ResolveOne("llvm", cfg)
	if err != nil {
		t.Fatalf("ResolveOne(llvm): %v", err)
	}
	if inst.Name() != "llvm" || inst.Architecture() != types.ArchNative {
		t.Errorf("llvm resolved to %q/%q, want llvm/native", inst.Name(), inst.Architecture())
	}
}

func TestResolveUnknownTarget(t *testing.T) {
	reg := newCatalog(t)
	cfg := newConfigResolver(t, reg, nil)

	_, err := reg.ResolveOne("cheribs", cfg)
	var unknown *targets.UnknownTargetError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownTargetError, got %v", err)
	}
	if unknown.Name != "cheribs" {
		t.Errorf("error names %q, want cheribs", unknown.Name)
	}
	if len(unknown.Suggestions) == 0 {
		t.Error("expected suggestions for near miss")
	}
}

func TestResolveUnsupportedDefaultArchitecture(t *testing.T) {
	reg := newCatalog(t)
	cfg := newConfigResolver(t, reg, nil)

	_, err := reg.ResolveOne("morello-firmware", cfg)
	var unsupported *targets.UnsupportedArchitectureError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedArchitectureError, got %v", err)
	}
	if unsupported.Target != "morello-firmware" || unsupported.Architecture != "riscv64-purecap" {
		t.Errorf("error = %v, want morello-firmware/riscv64-purecap", err)
	}
}

func TestResolveDep(t *testing.T) {
	reg := newCatalog(t)
	from, _ := reg.Instance("cheribsd-sdk-riscv64-purecap")

	tests := []struct {
		dep  string
		want string
	}{
		{"cheribsd", "cheribsd-riscv64-purecap"},
		{"llvm", "llvm"},
		{"gdb-native", "gdb-native"},
		{"gdb", "gdb-riscv64-purecap"},
	}
	for _, tt := range tests {
		inst, err := reg.ResolveDep(from, targets.HardDep(tt.dep))
		if err != nil {
			t.Errorf("ResolveDep(%q): %v", tt.dep, err)
			continue
		}
		if inst.Name() != tt.want {
			t.Errorf("ResolveDep(%q) = %q, want %q", tt.dep, inst.Name(), tt.want)
		}
	}

	_, err := reg.ResolveDep(from, targets.HardDep("no-such-target"))
	var unknown *targets.UnknownTargetError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownTargetError for missing dependency, got %v", err)
	}
}

func TestDuplicateRegistration(t *testing.T) {
	reg := targets.NewRegistry()
	reg.MustRegister(&targets.Template{Name: "llvm", Kind: types.KindCMake})

	err := reg.Register(&targets.Template{Name: "llvm", Kind: types.KindCMake})
	var dup *targets.DuplicateTargetError
	if !errors.As(err, &dup) || dup.Name != "llvm" {
		t.Fatalf("expected DuplicateTargetError for llvm, got %v", err)
	}

	if err := reg.RegisterAlias("llvm", "qemu"); err == nil {
		t.Error("alias shadowing a template name should fail")
	}
}

func TestExpandRunsOnce(t *testing.T) {
	reg := targets.NewRegistry()
	reg.MustRegister(&targets.Template{Name: "llvm", Kind: types.KindCMake})
	if err := reg.Expand(); err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if err := reg.Expand(); err == nil {
		t.Error("second Expand should fail")
	}
	if err := reg.Register(&targets.Template{Name: "qemu", Kind: types.KindAutotools}); err == nil {
		t.Error("Register after Expand should fail")
	}
}

func TestExpandRejectsBadParents(t *testing.T) {
	reg := targets.NewRegistry()
	reg.MustRegister(&targets.Template{Name: "orphan", Parent: "missing", Kind: types.KindCMake})
	if err := reg.Expand(); err == nil {
		t.Fatal("unknown parent should fail expansion")
	}

	reg = targets.NewRegistry()
	reg.MustRegister(&targets.Template{Name: "a", Parent: "b", Kind: types.KindCMake})
	reg.MustRegister(&targets.Template{Name: "b", Parent: "a", Kind: types.KindCMake})
	if err := reg.Expand(); err == nil {
		t.Fatal("cyclic parent chain should fail expansion")
	}
}

func TestAncestryAndClassDefaults(t *testing.T) {
	reg := newCatalog(t)
	inst, ok := reg.Instance("cheribsd-riscv64-purecap")
	if !ok {
		t.Fatal("cheribsd-riscv64-purecap not expanded")
	}

	ancestry := inst.Ancestry()
	if len(ancestry) != 2 || ancestry[0] != "cheribsd" || ancestry[1] != "freebsd" {
		t.Errorf("Ancestry = %v, want [cheribsd freebsd]", ancestry)
	}

	if v, ok := inst.ClassDefault(config.OptMakeJobs); !ok || v != 4 {
		t.Errorf("ClassDefault(make-jobs) = %v/%v, want 4/true", v, ok)
	}
	if _, ok := inst.ClassDefault("no-such-option"); ok {
		t.Error("ClassDefault for undeclared option should report absent")
	}
}

func TestClassDefaultInheritsFromParent(t *testing.T) {
	reg := targets.NewRegistry()
	reg.MustRegister(&targets.Template{
		Name:     "base",
		Kind:     types.KindBSDMake,
		Defaults: map[string]interface{}{config.OptMakeJobs: 6},
	})
	reg.MustRegister(&targets.Template{
		Name:          "child",
		Parent:        "base",
		Kind:          types.KindBSDMake,
		Architectures: []types.Architecture{types.ArchRISCV64},
	})
	if err := reg.Expand(); err != nil {
		t.Fatalf("Expand: %v", err)
	}

	inst, _ := reg.Instance("child-riscv64")
	if v, ok := inst.ClassDefault(config.OptMakeJobs); !ok || v != 6 {
		t.Errorf("inherited ClassDefault = %v/%v, want 6/true", v, ok)
	}
}
