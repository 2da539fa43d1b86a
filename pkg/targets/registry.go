package targets

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cheribuild/cheribuild/pkg/config"
	"github.com/cheribuild/cheribuild/pkg/types"
)

// Registry holds the declared templates and, after Expand, the concrete
// instances. It implements config.TargetIndex so the resolver can probe
// instance names without importing this package.
type Registry struct {
	templates  []*Template
	byName     map[string]*Template
	aliases    map[string]string
	instances  []*Instance
	instByName map[string]*Instance
	expanded   bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:     make(map[string]*Template),
		aliases:    make(map[string]string),
		instByName: make(map[string]*Instance),
	}
}

// Register adds a template. Registration closes once Expand ran.
func (r *Registry) Register(t *Template) error {
	if r.expanded {
		return fmt.Errorf("register %q: registry already expanded", t.Name)
	}
	if t.Name == "" {
		return fmt.Errorf("register: empty target name")
	}
	if _, ok := r.byName[t.Name]; ok {
		return &DuplicateTargetError{Name: t.Name}
	}
	if _, ok := r.aliases[t.Name]; ok {
		return &DuplicateTargetError{Name: t.Name}
	}
	r.templates = append(r.templates, t)
	r.byName[t.Name] = t
	return nil
}

// MustRegister registers a template and panics on error. Catalog
// declarations run at startup where a bad declaration is a programming
// error.
func (r *Registry) MustRegister(t *Template) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// RegisterAlias maps a convenience name to a template. The alias
// resolves like the bare template name, so multi-architecture templates
// pick up the configured default architecture.
func (r *Registry) RegisterAlias(alias, target string) error {
	if r.expanded {
		return fmt.Errorf("register alias %q: registry already expanded", alias)
	}
	if _, ok := r.byName[alias]; ok {
		return &DuplicateTargetError{Name: alias}
	}
	if _, ok := r.aliases[alias]; ok {
		return &DuplicateTargetError{Name: alias}
	}
	r.aliases[alias] = target
	return nil
}

// Expand materializes every template into its concrete instances. It
// runs exactly once, after all registrations and before any resolution.
func (r *Registry) Expand() error {
	if r.expanded {
		return fmt.Errorf("registry already expanded")
	}
	for _, t := range r.templates {
		if err := r.linkParent(t); err != nil {
			return err
		}
	}
	for alias, target := range r.aliases {
		if _, ok := r.byName[target]; !ok {
			return fmt.Errorf("alias %q points at unknown target %q", alias, target)
		}
	}
	for _, t := range r.templates {
		if t.IsSingleton() {
			if err := r.addInstance(t, types.ArchNative); err != nil {
				return err
			}
			continue
		}
		for _, arch := range t.Architectures {
			if err := r.addInstance(t, arch); err != nil {
				return err
			}
		}
	}
	r.expanded = true
	return nil
}

func (r *Registry) linkParent(t *Template) error {
	if t.Parent == "" {
		return nil
	}
	seen := map[string]bool{t.Name: true}
	cur := t
	for cur.Parent != "" {
		next, ok := r.byName[cur.Parent]
		if !ok {
			return fmt.Errorf("target %q names unknown parent %q", cur.Name, cur.Parent)
		}
		if seen[next.Name] {
			return fmt.Errorf("target %q has a cyclic parent chain through %q", t.Name, next.Name)
		}
		seen[next.Name] = true
		cur.parent = next
		cur = next
	}
	return nil
}

func (r *Registry) addInstance(t *Template, arch types.Architecture) error {
	name := InstanceName(t, arch)
	if _, ok := r.instByName[name]; ok {
		return &DuplicateTargetError{Name: name}
	}
	if _, ok := r.byName[name]; ok && name != t.Name {
		return &DuplicateTargetError{Name: name}
	}
	inst := &Instance{name: name, template: t, arch: arch, state: types.StatePending}
	r.instances = append(r.instances, inst)
	r.instByName[name] = inst
	return nil
}

// Instances returns the concrete instances in expansion order.
func (r *Registry) Instances() []*Instance {
	out := make([]*Instance, len(r.instances))
	copy(out, r.instances)
	return out
}

// Templates returns the registered templates in registration order.
func (r *Registry) Templates() []*Template {
	out := make([]*Template, len(r.templates))
	copy(out, r.templates)
	return out
}

// Instance looks up a concrete instance by exact name.
func (r *Registry) Instance(name string) (*Instance, bool) {
	inst, ok := r.instByName[name]
	return inst, ok
}

// Template looks up a template by base name.
func (r *Registry) Template(name string) (*Template, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// TargetNames returns every concrete instance name in expansion order.
func (r *Registry) TargetNames() []string {
	out := make([]string, len(r.instances))
	for i, inst := range r.instances {
		out[i] = inst.name
	}
	return out
}

// LookupTarget implements config.TargetIndex.
func (r *Registry) LookupTarget(name string) (config.Target, bool) {
	inst, ok := r.instByName[name]
	if !ok {
		return nil, false
	}
	return inst, true
}

// Resolve maps user-supplied names to instances. Each name resolves as
// an exact instance, an alias, or a bare multi-architecture template
// name expanded with the configured default architecture, in that order.
func (r *Registry) Resolve(names []string, cfg *config.Resolver) ([]*Instance, error) {
	out := make([]*Instance, 0, len(names))
	for _, name := range names {
		inst, err := r.ResolveOne(name, cfg)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, nil
}

// ResolveOne resolves a single user-supplied name.
func (r *Registry) ResolveOne(name string, cfg *config.Resolver) (*Instance, error) {
	if inst, ok := r.instByName[name]; ok {
		return inst, nil
	}
	lookup := name
	if target, ok := r.aliases[lookup]; ok {
		lookup = target
	}
	if t, ok := r.byName[lookup]; ok {
		if t.IsSingleton() {
			if inst, ok := r.instByName[t.Name]; ok {
				return inst, nil
			}
		} else {
			arch, err := r.defaultArchitecture(cfg)
			if err != nil {
				return nil, err
			}
			if !t.SupportsArchitecture(arch) {
				return nil, &UnsupportedArchitectureError{Target: t.Name, Architecture: string(arch)}
			}
			if inst, ok := r.instByName[InstanceName(t, arch)]; ok {
				return inst, nil
			}
		}
	}
	return nil, &UnknownTargetError{Name: name, Suggestions: r.suggest(name)}
}

// ResolveDep resolves a declared dependency of from. Template names
// resolve at the dependent's architecture; exact instance names resolve
// as-is, so cross-architecture edges stay expressible.
func (r *Registry) ResolveDep(from *Instance, dep Dep) (*Instance, error) {
	if inst, ok := r.instByName[dep.Target]; ok {
		return inst, nil
	}
	if t, ok := r.byName[dep.Target]; ok {
		arch := from.arch
		if t.IsSingleton() {
			arch = types.ArchNative
		}
		if !t.SupportsArchitecture(arch) {
			return nil, &UnsupportedArchitectureError{Target: t.Name, Architecture: string(arch)}
		}
		if inst, ok := r.instByName[InstanceName(t, arch)]; ok {
			return inst, nil
		}
	}
	return nil, fmt.Errorf("target %q: dependency %w", from.name, &UnknownTargetError{Name: dep.Target, Suggestions: r.suggest(dep.Target)})
}

func (r *Registry) defaultArchitecture(cfg *config.Resolver) (types.Architecture, error) {
	val, err := cfg.GetGlobal(config.OptDefaultArchitecture)
	if err != nil {
		return "", err
	}
	arch, err := types.ParseArchitecture(val.String())
	if err != nil {
		return "", fmt.Errorf("default-architecture: %w", err)
	}
	return arch, nil
}

// suggest returns up to three names sharing a prefix or substring with
// the miss, aliases and templates included.
func (r *Registry) suggest(name string) []string {
	var candidates []string
	for _, inst := range r.instances {
		candidates = append(candidates, inst.name)
	}
	for _, t := range r.templates {
		if !t.IsSingleton() {
			candidates = append(candidates, t.Name)
		}
	}
	for alias := range r.aliases {
		candidates = append(candidates, alias)
	}
	sort.Strings(candidates)
	var out []string
	for _, c := range candidates {
		if c == name {
			continue
		}
		if strings.Contains(c, name) || strings.Contains(name, c) {
			out = append(out, c)
			if len(out) == 3 {
				break
			}
		}
	}
	return out
}
