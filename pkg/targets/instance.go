package targets

import (
	"github.com/cheribuild/cheribuild/pkg/types"
)

// Instance is one concrete buildable target produced by expanding a
// template for a single architecture. Instances are the unit the
// dependency graph, the planner and the engine operate on.
type Instance struct {
	name     string
	template *Template
	arch     types.Architecture
	state    types.ExecutionState
}

// Name returns the concrete target name, e.g. "cheribsd-riscv64-purecap".
func (i *Instance) Name() string { return i.name }

// Template returns the template this instance was expanded from.
func (i *Instance) Template() *Template { return i.template }

// Architecture returns the architecture this instance builds for.
func (i *Instance) Architecture() types.Architecture { return i.arch }

// Kind returns the lifecycle kind inherited from the template.
func (i *Instance) Kind() types.ProjectKind { return i.template.Kind }

// SDKComponent reports whether the instance ships as part of the SDK.
func (i *Instance) SDKComponent() bool { return i.template.SDKComponent }

// Ancestry returns the template name followed by its parents, nearest
// first. The config resolver probes these as key prefixes after the
// concrete instance name.
func (i *Instance) Ancestry() []string { return i.template.Ancestry() }

// ClassDefault walks the template parent chain for a declared default.
func (i *Instance) ClassDefault(option string) (interface{}, bool) {
	return i.template.classDefault(option)
}

// State returns the current execution state.
func (i *Instance) State() types.ExecutionState { return i.state }

// SetState records a state transition. The engine is the only writer.
func (i *Instance) SetState(s types.ExecutionState) { i.state = s }
