package config

import (
	"fmt"
)

// TargetIndex exposes the registered build targets to the resolver. It is
// implemented by targets.Registry and used for dump iteration and for
// suggesting prefixed option forms in error messages.
type TargetIndex interface {
	// TargetNames returns concrete instance names in registration order.
	TargetNames() []string
	// LookupTarget finds an instance by its concrete name.
	LookupTarget(name string) (Target, bool)
}

type memoKey struct {
	option string
	target string
}

// Resolver answers option lookups by walking the precedence layers:
//
//  1. command line, exact target then ancestor templates
//  2. command line, global name
//  3. config file, exact target then ancestor templates
//  4. template-declared class default
//  5. environment variable
//  6. computed default (lazy, memoized, cycle-checked)
//  7. compiled-in static default
//
// A resolver is built once per invocation and is not safe for concurrent
// use; the build pipeline resolves configuration single-threaded.
type Resolver struct {
	registry *Registry
	index    TargetIndex
	sources  Sources

	memo       map[memoKey]interface{}
	inProgress map[memoKey]bool
	stack      []string
}

// NewResolver creates a resolver over the given option registry, target
// index, and input layers. The index may be nil when only global options
// are resolved, e.g. during early bootstrap.
func NewResolver(registry *Registry, index TargetIndex, sources Sources) *Resolver {
	return &Resolver{
		registry:   registry,
		index:      index,
		sources:    sources,
		memo:       make(map[memoKey]interface{}),
		inProgress: make(map[memoKey]bool),
	}
}

// Registry returns the option registry the resolver reads from.
func (r *Resolver) Registry() *Registry { return r.registry }

// GetGlobal resolves a global option by bare name. Looking up a
// per-target option without a prefix fails with a suggestion for a valid
// prefixed form.
func (r *Resolver) GetGlobal(name string) (Value, error) {
	opt, ok := r.registry.Global(name)
	if !ok {
		if pt, isPerTarget := r.registry.PerTarget(name); isPerTarget {
			return Value{}, &UnknownOptionError{
				Name:        name,
				Suggestions: r.suggestPrefixed(pt),
			}
		}
		return Value{}, &UnknownOptionError{Name: name}
	}
	return r.resolve(opt, nil)
}

// GetForTarget resolves an option in the context of a target. The name is
// the bare option name; prefix handling happens in Get.
func (r *Resolver) GetForTarget(name string, t Target) (Value, error) {
	if t == nil {
		return r.GetGlobal(name)
	}
	opt, err := r.optionFor(name, t)
	if err != nil {
		return Value{}, err
	}
	return r.resolve(opt, t)
}

// Get resolves a possibly target-prefixed option key. The prefix must be
// a concrete instance name; callers with access to the target registry
// translate aliases and template names before querying.
func (r *Resolver) Get(key string) (Value, error) {
	prefix, name := SplitKey(key)
	if prefix == "" {
		return r.GetGlobal(name)
	}
	if r.index == nil {
		return Value{}, fmt.Errorf("no targets registered for option key %q", key)
	}
	t, ok := r.index.LookupTarget(prefix)
	if !ok {
		return Value{}, fmt.Errorf("unknown target %q in option key %q", prefix, key)
	}
	return r.GetForTarget(name, t)
}

// optionFor picks the option a bare name refers to for a target:
// a per-target option applicable to the target wins over a global one.
func (r *Resolver) optionFor(name string, t Target) (*Option, error) {
	if opt, ok := r.registry.PerTarget(name); ok {
		if r.applicable(opt, t) {
			return opt, nil
		}
		if _, isGlobal := r.registry.Global(name); !isGlobal {
			return nil, &UnknownOptionError{
				Name:        t.Name() + "/" + name,
				Suggestions: r.suggestPrefixed(opt),
			}
		}
	}
	if opt, ok := r.registry.Global(name); ok {
		return opt, nil
	}
	return nil, &UnknownOptionError{Name: name}
}

func (r *Resolver) applicable(opt *Option, t Target) bool {
	if opt.Owner == "" {
		return true
	}
	for _, ancestor := range t.Ancestry() {
		if ancestor == opt.Owner {
			return true
		}
	}
	return false
}

// resolve walks the precedence layers for one option.
func (r *Resolver) resolve(opt *Option, t Target) (Value, error) {
	prefixes := lookupPrefixes(t)

	// Layer 1+2: command line.
	for _, prefix := range prefixes {
		if raw, ok := r.sources.CommandLine[prefix+"/"+opt.Name]; ok {
			return r.coerced(opt, raw, SourceCommandLine, prefix)
		}
	}
	if opt.Scope == ScopeGlobal || t == nil {
		if raw, ok := r.sources.CommandLine[opt.Name]; ok {
			return r.coerced(opt, raw, SourceCommandLine, "")
		}
	}

	// Layer 3: config file.
	for _, prefix := range prefixes {
		if raw, ok := r.sources.File.Lookup(prefix, opt.Name); ok {
			return r.coerced(opt, raw, SourceConfigFile, prefix)
		}
	}
	if opt.Scope == ScopeGlobal || t == nil {
		if raw, ok := r.sources.File.Lookup("", opt.Name); ok {
			return r.coerced(opt, raw, SourceConfigFile, "")
		}
	}

	// Layer 4: template-declared class default.
	if t != nil {
		if raw, ok := t.ClassDefault(opt.Name); ok {
			return r.coerced(opt, raw, SourceClassDefault, t.Name())
		}
	}

	// Layer 5: environment.
	if opt.EnvVar != "" {
		if raw, ok := r.sources.envLookup()(opt.EnvVar); ok {
			return r.coerced(opt, raw, SourceEnvironment, "")
		}
	}

	// Layer 6: computed default.
	if opt.Compute != nil {
		v, err := r.computed(opt, t)
		if err != nil {
			return Value{}, err
		}
		return Value{Raw: v, Source: SourceComputedDefault}, nil
	}

	// Layer 7: static default.
	if opt.Default != nil {
		v, err := opt.Coerce(opt.Default)
		if err != nil {
			return Value{}, fmt.Errorf("static default for %s: %w", opt.Name, err)
		}
		return Value{Raw: v, Source: SourceStaticDefault}, nil
	}
	return Value{Raw: opt.Zero(), Source: SourceStaticDefault}, nil
}

// computed evaluates an option's computed default at most once per
// (option, target) pair. Re-entering an in-flight evaluation means the
// default transitively depends on itself.
func (r *Resolver) computed(opt *Option, t Target) (interface{}, error) {
	key := memoKey{option: opt.Name, target: targetKey(t)}
	if v, ok := r.memo[key]; ok {
		return v, nil
	}
	display := displayKey(opt, t)
	if r.inProgress[key] {
		chain := make([]string, 0, len(r.stack)+1)
		chain = append(chain, r.stack...)
		chain = append(chain, display)
		return nil, &CycleError{Chain: chain}
	}

	r.inProgress[key] = true
	r.stack = append(r.stack, display)
	raw, err := opt.Compute(r, t)
	r.stack = r.stack[:len(r.stack)-1]
	delete(r.inProgress, key)
	if err != nil {
		return nil, err
	}

	v, err := opt.Coerce(raw)
	if err != nil {
		return nil, fmt.Errorf("computed default for %s: %w", display, err)
	}
	r.memo[key] = v
	return v, nil
}

func (r *Resolver) coerced(opt *Option, raw interface{}, src Source, prefix string) (Value, error) {
	v, err := opt.Coerce(raw)
	if err != nil {
		key := opt.Name
		if prefix != "" {
			key = prefix + "/" + opt.Name
		}
		return Value{}, fmt.Errorf("%s value for %s: %w", src, key, err)
	}
	return Value{Raw: v, Source: src}, nil
}

// suggestPrefixed builds example prefixed forms for a per-target option,
// preferring real registered instance names.
func (r *Resolver) suggestPrefixed(opt *Option) []string {
	var out []string
	if r.index != nil {
		for _, name := range r.index.TargetNames() {
			t, ok := r.index.LookupTarget(name)
			if !ok {
				continue
			}
			if r.applicable(opt, t) {
				out = append(out, name+"/"+opt.Name)
				if len(out) == 2 {
					return out
				}
			}
		}
	}
	if len(out) == 0 {
		owner := opt.Owner
		if owner == "" {
			owner = "<target>"
		}
		out = append(out, owner+"/"+opt.Name)
	}
	return out
}

// lookupPrefixes returns the key prefixes probed for a target, nearest
// first: the instance name, then its template ancestry.
func lookupPrefixes(t Target) []string {
	if t == nil {
		return nil
	}
	return append([]string{t.Name()}, t.Ancestry()...)
}

func targetKey(t Target) string {
	if t == nil {
		return ""
	}
	return t.Name()
}

func displayKey(opt *Option, t Target) string {
	if t == nil {
		return opt.Name
	}
	return t.Name() + "/" + opt.Name
}
