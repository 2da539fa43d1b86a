// Package targets implements the target registry: template declarations,
// their expansion into per-architecture instances, and name resolution.
package targets

import (
	"github.com/cheribuild/cheribuild/pkg/config"
	"github.com/cheribuild/cheribuild/pkg/types"
)

// Dep names one declared dependency edge. Target is either a template
// name, resolved at the dependent's architecture, or a concrete instance
// name such as "gdb-native".
type Dep struct {
	Target string
	Kind   types.EdgeKind

	// OnlyIf names a Bool option, resolved for the dependent instance,
	// that must be true for the edge to exist. Empty means unconditional.
	OnlyIf string
}

// HardDep declares a dependency whose install output the dependent needs.
func HardDep(target string) Dep {
	return Dep{Target: target, Kind: types.EdgeHard}
}

// HardDepIf declares a hard dependency gated on a Bool option, e.g. the
// gdb edge of disk images behind include-gdb.
func HardDepIf(target, option string) Dep {
	return Dep{Target: target, Kind: types.EdgeHard, OnlyIf: option}
}

// ToolchainDep declares a compile-time-only dependency.
func ToolchainDep(target string) Dep {
	return Dep{Target: target, Kind: types.EdgeToolchain}
}

// DependencyFunc computes the declared dependencies for one instance.
// It runs per architecture and may consult resolved configuration, so
// option values can add or remove edges.
type DependencyFunc func(arch types.Architecture, r *config.Resolver) []Dep

// Template declares a buildable target before expansion. Templates are
// immutable once registered; per-invocation variation happens through
// configuration, never by mutating the template.
type Template struct {
	// Name is the base target name, e.g. "cheribsd".
	Name string

	// Parent names another template whose declared defaults and option
	// ownership this one inherits. This is an explicit delegation chain,
	// not subclassing: only defaults and option applicability flow
	// through it.
	Parent string

	// Architectures lists the supported cross-compilation architectures.
	// A nil list declares an architecture-independent target that builds
	// once for the host and keeps its bare name.
	Architectures []types.Architecture

	// Kind selects the lifecycle implementation.
	Kind types.ProjectKind

	// SDKComponent marks targets that ship as part of the SDK; edges to
	// them are dropped when skip-sdk is set.
	SDKComponent bool

	// Dependencies declares the outgoing edges. May be nil for leaf
	// targets.
	Dependencies DependencyFunc

	// Defaults carries class-level option defaults, consulted by the
	// config resolver between explicit values and the environment.
	Defaults map[string]interface{}

	parent *Template
}

// SupportsArchitecture reports whether the template expands for the given
// architecture.
func (t *Template) SupportsArchitecture(arch types.Architecture) bool {
	if t.Architectures == nil {
		return arch == types.ArchNative
	}
	for _, a := range t.Architectures {
		if a == arch {
			return true
		}
	}
	return false
}

// IsSingleton reports whether the template expands to exactly one
// host-architecture instance.
func (t *Template) IsSingleton() bool {
	return t.Architectures == nil
}

// Ancestry returns the template name followed by its parents, nearest
// first. Valid only after the registry resolved parent links.
func (t *Template) Ancestry() []string {
	var out []string
	for cur := t; cur != nil; cur = cur.parent {
		out = append(out, cur.Name)
	}
	return out
}

// classDefault walks the parent chain for a declared default.
func (t *Template) classDefault(option string) (interface{}, bool) {
	for cur := t; cur != nil; cur = cur.parent {
		if cur.Defaults != nil {
			if v, ok := cur.Defaults[option]; ok {
				return v, true
			}
		}
	}
	return nil, false
}

// InstanceName returns the concrete name a template/architecture pair
// expands to. Singletons keep their bare name; native instances of
// multi-architecture templates get a "-native" suffix so the bare name
// stays free for default-architecture resolution.
func InstanceName(t *Template, arch types.Architecture) string {
	if t.IsSingleton() {
		return t.Name
	}
	if arch == types.ArchNative {
		return t.Name + "-native"
	}
	return t.Name + "-" + string(arch)
}
