package graph

import (
	"fmt"
	"strings"

	"github.com/cheribuild/cheribuild/pkg/targets"
)

// DependencyCycleError reports a cycle in the dependency graph. Chain
// holds the full cycle path, first node repeated at the end.
type DependencyCycleError struct {
	Chain []string
}

func (e *DependencyCycleError) Error() string {
	return fmt.Sprintf("dependency cycle: %s", strings.Join(e.Chain, " -> "))
}

const (
	colorWhite = iota
	colorGrey
	colorBlack
)

// checkCycles runs a depth-first walk over the subgraph induced by the
// reached instances, following every edge kind.
func (b *Builder) checkCycles(order []*targets.Instance, reached map[string]bool) error {
	colors := make(map[string]int, len(order))
	var path []string

	var visit func(inst *targets.Instance) error
	visit = func(inst *targets.Instance) error {
		colors[inst.Name()] = colorGrey
		path = append(path, inst.Name())
		edges, err := b.EdgesFor(inst)
		if err != nil {
			return err
		}
		for _, e := range edges {
			name := e.To.Name()
			if !reached[name] {
				continue
			}
			switch colors[name] {
			case colorGrey:
				start := 0
				for i, n := range path {
					if n == name {
						start = i
						break
					}
				}
				chain := append([]string{}, path[start:]...)
				chain = append(chain, name)
				return &DependencyCycleError{Chain: chain}
			case colorWhite:
				if err := visit(e.To); err != nil {
					return err
				}
			}
		}
		path = path[:len(path)-1]
		colors[inst.Name()] = colorBlack
		return nil
	}

	for _, inst := range order {
		if colors[inst.Name()] == colorWhite {
			if err := visit(inst); err != nil {
				return err
			}
		}
	}
	return nil
}
