// Package graph turns declared target dependencies into a concrete edge
// set and computes the transitive closure the planner orders.
package graph

import (
	"github.com/cheribuild/cheribuild/pkg/config"
	"github.com/cheribuild/cheribuild/pkg/targets"
	"github.com/cheribuild/cheribuild/pkg/types"
)

// Edge is one resolved dependency edge between two instances.
type Edge struct {
	From *targets.Instance
	To   *targets.Instance
	Kind types.EdgeKind
}

// Builder resolves declared dependencies against the registry and the
// active configuration. Edge sets are memoized per instance, so one
// Builder sees a consistent graph even when computed config defaults
// are involved.
type Builder struct {
	registry *targets.Registry
	cfg      *config.Resolver
	memo     map[string][]Edge
}

// NewBuilder returns a Builder over an expanded registry.
func NewBuilder(registry *targets.Registry, cfg *config.Resolver) *Builder {
	return &Builder{
		registry: registry,
		cfg:      cfg,
		memo:     make(map[string][]Edge),
	}
}

// EdgesFor returns the outgoing edges of one instance in declaration
// order. Option-gated edges are dropped when their gate resolves false,
// and edges to SDK components are dropped when skip-sdk is set for the
// dependent instance.
func (b *Builder) EdgesFor(inst *targets.Instance) ([]Edge, error) {
	if edges, ok := b.memo[inst.Name()]; ok {
		return edges, nil
	}
	edges := []Edge{}
	if deps := inst.Template().Dependencies; deps != nil {
		skipSDK, err := b.skipSDK(inst)
		if err != nil {
			return nil, err
		}
		for _, dep := range deps(inst.Architecture(), b.cfg) {
			if dep.OnlyIf != "" {
				gate, err := b.cfg.GetForTarget(dep.OnlyIf, inst)
				if err != nil {
					return nil, err
				}
				if !gate.Bool() {
					continue
				}
			}
			to, err := b.registry.ResolveDep(inst, dep)
			if err != nil {
				return nil, err
			}
			if skipSDK && to.SDKComponent() {
				continue
			}
			edges = append(edges, Edge{From: inst, To: to, Kind: dep.Kind})
		}
	}
	b.memo[inst.Name()] = edges
	return edges, nil
}

func (b *Builder) skipSDK(inst *targets.Instance) (bool, error) {
	val, err := b.cfg.GetForTarget(config.OptSkipSDK, inst)
	if err != nil {
		return false, err
	}
	return val.Bool(), nil
}

// Closure returns the transitive dependency closure of the requested
// instances in breadth-first order, requested instances first. Toolchain
// edges are traversed only when includeToolchain is set; hard edges are
// always traversed. Cycle detection runs over every edge kind of the
// reached subgraph regardless of traversal settings.
func (b *Builder) Closure(requested []*targets.Instance, includeToolchain bool) ([]*targets.Instance, error) {
	var order []*targets.Instance
	seen := make(map[string]bool)
	queue := make([]*targets.Instance, 0, len(requested))
	for _, inst := range requested {
		if seen[inst.Name()] {
			continue
		}
		seen[inst.Name()] = true
		queue = append(queue, inst)
		order = append(order, inst)
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		edges, err := b.EdgesFor(cur)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			if e.Kind == types.EdgeToolchain && !includeToolchain {
				continue
			}
			if seen[e.To.Name()] {
				continue
			}
			seen[e.To.Name()] = true
			queue = append(queue, e.To)
			order = append(order, e.To)
		}
	}
	if err := b.checkCycles(order, seen); err != nil {
		return nil, err
	}
	return order, nil
}
