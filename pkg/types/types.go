// Package types provides core types shared across the cheribuild packages
package types

import (
	"fmt"
	"strings"
)

// Architecture identifies a cross-compilation variant of a target.
type Architecture string

const (
	// ArchNative marks architecture-independent targets that build for the host.
	ArchNative Architecture = "native"

	ArchRISCV64        Architecture = "riscv64"
	ArchRISCV64Hybrid  Architecture = "riscv64-hybrid"
	ArchRISCV64Purecap Architecture = "riscv64-purecap"
	ArchMIPS64         Architecture = "mips64"
	ArchMIPS64Hybrid   Architecture = "mips64-hybrid"
	ArchMIPS64Purecap  Architecture = "mips64-purecap"
	ArchAArch64        Architecture = "aarch64"
	ArchMorelloHybrid  Architecture = "morello-hybrid"
	ArchMorelloPurecap Architecture = "morello-purecap"
	ArchAMD64          Architecture = "amd64"
)

// CrossArchitectures lists every cross-compilation architecture in the
// canonical order used for registry expansion. ArchNative is excluded on
// purpose; native-only targets are registered without an architecture list.
func CrossArchitectures() []Architecture {
	return []Architecture{
		ArchRISCV64,
		ArchRISCV64Hybrid,
		ArchRISCV64Purecap,
		ArchMIPS64,
		ArchMIPS64Hybrid,
		ArchMIPS64Purecap,
		ArchAArch64,
		ArchMorelloHybrid,
		ArchMorelloPurecap,
		ArchAMD64,
	}
}

// CHERIArchitectures lists the architectures that carry CHERI support,
// either hybrid or pure-capability.
func CHERIArchitectures() []Architecture {
	var out []Architecture
	for _, a := range CrossArchitectures() {
		if a.IsCHERI() {
			out = append(out, a)
		}
	}
	return out
}

// ParseArchitecture converts a string into a known Architecture.
func ParseArchitecture(s string) (Architecture, error) {
	if Architecture(s) == ArchNative {
		return ArchNative, nil
	}
	for _, a := range CrossArchitectures() {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown architecture: %s", s)
}

// IsHybrid reports whether the architecture runs CHERI in hybrid mode.
func (a Architecture) IsHybrid() bool {
	return strings.HasSuffix(string(a), "-hybrid")
}

// IsPurecap reports whether the architecture is pure-capability.
func (a Architecture) IsPurecap() bool {
	return strings.HasSuffix(string(a), "-purecap")
}

// IsCHERI reports whether the architecture has CHERI support at all.
func (a Architecture) IsCHERI() bool {
	return a.IsHybrid() || a.IsPurecap() || a.Family() == "morello"
}

// Family strips the CHERI variant suffix, leaving the base ISA name.
func (a Architecture) Family() string {
	s := string(a)
	s = strings.TrimSuffix(s, "-hybrid")
	s = strings.TrimSuffix(s, "-purecap")
	return s
}

// Stage identifies one phase of a target's build lifecycle.
type Stage string

const (
	StageUpdateSource Stage = "update-source"
	StageClean        Stage = "clean"
	StageConfigure    Stage = "configure"
	StageBuild        Stage = "build"
	StageInstall      Stage = "install"
	StageTest         Stage = "test"
	StageBenchmark    Stage = "benchmark"
)

// Stages returns every stage in execution order. The engine walks this
// slice for each target; the order is fixed and not configurable.
func Stages() []Stage {
	return []Stage{
		StageUpdateSource,
		StageClean,
		StageConfigure,
		StageBuild,
		StageInstall,
		StageTest,
		StageBenchmark,
	}
}

// ExecutionState tracks where a target instance is in a run.
type ExecutionState string

const (
	StatePending ExecutionState = "pending"
	StatePlanned ExecutionState = "planned"
	StateRunning ExecutionState = "running"
	StateDone    ExecutionState = "done"
	StateFailed  ExecutionState = "failed"
	StateSkipped ExecutionState = "skipped"
)

// EdgeKind classifies a dependency edge.
type EdgeKind string

const (
	// EdgeHard marks a dependency whose install output the dependent consumes.
	EdgeHard EdgeKind = "hard"
	// EdgeToolchain marks a dependency only needed to compile the dependent.
	// Toolchain edges are followed during plan expansion only when requested.
	EdgeToolchain EdgeKind = "toolchain"
)

// Action selects which optional stages a run performs in addition to the
// build pipeline.
type Action string

const (
	ActionBuild     Action = "build"
	ActionTest      Action = "test"
	ActionBenchmark Action = "benchmark"
)

// ProjectKind selects the lifecycle implementation for a target template.
type ProjectKind string

const (
	KindAutotools      ProjectKind = "autotools"
	KindCMake          ProjectKind = "cmake"
	KindBSDMake        ProjectKind = "bsd-make"
	KindSysrootArchive ProjectKind = "sysroot-archive"
	KindDiskImage      ProjectKind = "disk-image"
	KindRunQEMU        ProjectKind = "run-qemu"
	// KindGroup is a pseudo-target that only aggregates dependencies.
	KindGroup ProjectKind = "group"
)
