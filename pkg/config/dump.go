package config

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Dump serializes the effective configuration as a JSON document in the
// same shape config files use: global options at the top level, one
// nested section per target instance. Command-line-only options are
// excluded. Feeding the output back through LoadDocument reproduces every
// resolved value.
//
// Output is deterministic: option values are memoized and JSON object
// keys are emitted sorted.
func (r *Resolver) Dump() ([]byte, error) {
	doc := make(map[string]interface{})

	for _, opt := range r.registry.Options() {
		if opt.CommandLineOnly || opt.Scope != ScopeGlobal {
			continue
		}
		v, err := r.GetGlobal(opt.Name)
		if err != nil {
			return nil, fmt.Errorf("dumping %s: %w", opt.Name, err)
		}
		doc[opt.Name] = v.Raw
	}

	if r.index != nil {
		for _, name := range r.index.TargetNames() {
			t, ok := r.index.LookupTarget(name)
			if !ok {
				continue
			}
			section, err := r.dumpTarget(t, doc)
			if err != nil {
				return nil, err
			}
			if len(section) > 0 {
				doc[name] = section
			}
		}
	}

	return json.MarshalIndent(doc, "", "  ")
}

// dumpTarget collects one instance section: every applicable per-target
// option, plus global options whose per-target value differs from the
// global one (prefixed overrides and class defaults).
func (r *Resolver) dumpTarget(t Target, globals map[string]interface{}) (map[string]interface{}, error) {
	section := make(map[string]interface{})
	for _, opt := range r.registry.Options() {
		if opt.CommandLineOnly {
			continue
		}
		switch opt.Scope {
		case ScopePerTarget:
			if !r.applicable(opt, t) {
				continue
			}
			v, err := r.GetForTarget(opt.Name, t)
			if err != nil {
				return nil, fmt.Errorf("dumping %s/%s: %w", t.Name(), opt.Name, err)
			}
			section[opt.Name] = v.Raw
		case ScopeGlobal:
			v, err := r.GetForTarget(opt.Name, t)
			if err != nil {
				return nil, fmt.Errorf("dumping %s/%s: %w", t.Name(), opt.Name, err)
			}
			if !reflect.DeepEqual(v.Raw, globals[opt.Name]) {
				section[opt.Name] = v.Raw
			}
		}
	}
	return section, nil
}
