// Package plan orders resolved targets into the sequence the engine
// executes. Plans are deterministic for fixed inputs.
package plan

import (
	"github.com/cheribuild/cheribuild/pkg/graph"
	"github.com/cheribuild/cheribuild/pkg/targets"
	"github.com/cheribuild/cheribuild/pkg/types"
)

// Options control how the requested target list grows into a plan.
type Options struct {
	// IncludeDependencies expands the plan with the transitive
	// dependency closure. Off by default: an explicit target list means
	// build exactly this.
	IncludeDependencies bool

	// IncludeToolchain lets the expansion follow toolchain edges.
	// Ignored unless IncludeDependencies or OnlyDependencies is set.
	IncludeToolchain bool

	// OnlyDependencies builds what the requested targets need but not
	// the requested targets themselves, unless one is also a dependency
	// of another. Implies dependency expansion.
	OnlyDependencies bool
}

// Plan is an ordered target sequence. Every dependency edge between two
// members points backwards in the sequence.
type Plan struct {
	Targets []*targets.Instance
}

// Names returns the ordered target names.
func (p *Plan) Names() []string {
	out := make([]string, len(p.Targets))
	for i, inst := range p.Targets {
		out[i] = inst.Name()
	}
	return out
}

// Planner computes plans over one dependency graph builder.
type Planner struct {
	builder *graph.Builder
}

// NewPlanner returns a Planner over the given builder.
func NewPlanner(b *graph.Builder) *Planner {
	return &Planner{builder: b}
}

// Plan orders the requested instances. Requested targets keep their
// user order; each one's not-yet-placed in-plan dependencies are placed
// immediately before it, in declaration order. Edges of every kind
// order plan members, so two explicitly listed targets always come out
// dependency-first even without expansion.
func (p *Planner) Plan(requested []*targets.Instance, opts Options) (*Plan, error) {
	roots := dedupe(requested)

	expand := opts.IncludeDependencies || opts.OnlyDependencies
	members := make(map[string]bool)
	if expand {
		closure, err := p.builder.Closure(roots, opts.IncludeToolchain)
		if err != nil {
			return nil, err
		}
		for _, inst := range closure {
			members[inst.Name()] = true
		}
	} else {
		for _, inst := range roots {
			members[inst.Name()] = true
		}
	}

	pl := &placer{builder: p.builder, members: members, placed: make(map[string]bool)}
	for _, inst := range roots {
		if err := pl.place(inst); err != nil {
			return nil, err
		}
	}

	ordered := pl.order
	if opts.OnlyDependencies {
		kept, err := p.dropRequested(ordered, roots, opts.IncludeToolchain)
		if err != nil {
			return nil, err
		}
		ordered = kept
	}
	return &Plan{Targets: ordered}, nil
}

// dropRequested filters the explicitly requested instances out of the
// ordered plan, keeping any that another requested target depends on.
func (p *Planner) dropRequested(ordered, roots []*targets.Instance, includeToolchain bool) ([]*targets.Instance, error) {
	needed := make(map[string]bool)
	for _, root := range roots {
		edges, err := p.builder.EdgesFor(root)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			if e.Kind == types.EdgeToolchain && !includeToolchain {
				continue
			}
			closure, err := p.builder.Closure([]*targets.Instance{e.To}, includeToolchain)
			if err != nil {
				return nil, err
			}
			for _, inst := range closure {
				needed[inst.Name()] = true
			}
		}
	}
	requested := make(map[string]bool, len(roots))
	for _, root := range roots {
		requested[root.Name()] = true
	}
	kept := []*targets.Instance{}
	for _, inst := range ordered {
		if requested[inst.Name()] && !needed[inst.Name()] {
			continue
		}
		kept = append(kept, inst)
	}
	return kept, nil
}

type placer struct {
	builder *graph.Builder
	members map[string]bool
	placed  map[string]bool
	visit   []string
	order   []*targets.Instance
}

func (p *placer) place(inst *targets.Instance) error {
	name := inst.Name()
	if p.placed[name] {
		return nil
	}
	for i, n := range p.visit {
		if n == name {
			chain := append([]string{}, p.visit[i:]...)
			return &graph.DependencyCycleError{Chain: append(chain, name)}
		}
	}
	p.visit = append(p.visit, name)
	edges, err := p.builder.EdgesFor(inst)
	if err != nil {
		return err
	}
	for _, e := range edges {
		if !p.members[e.To.Name()] {
			continue
		}
		if err := p.place(e.To); err != nil {
			return err
		}
	}
	p.visit = p.visit[:len(p.visit)-1]
	p.placed[name] = true
	p.order = append(p.order, inst)
	return nil
}

func dedupe(insts []*targets.Instance) []*targets.Instance {
	seen := make(map[string]bool, len(insts))
	out := make([]*targets.Instance, 0, len(insts))
	for _, inst := range insts {
		if seen[inst.Name()] {
			continue
		}
		seen[inst.Name()] = true
		out = append(out, inst)
	}
	return out
}
