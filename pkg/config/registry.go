package config

import (
	"fmt"
	"strings"
)

// Registry holds every declared option. Options register once during
// startup; iteration order is registration order so that generated CLI
// flags and dumps stay stable.
type Registry struct {
	options   []*Option
	global    map[string]*Option
	perTarget map[string]*Option
}

// NewRegistry creates an empty option registry.
func NewRegistry() *Registry {
	return &Registry{
		global:    make(map[string]*Option),
		perTarget: make(map[string]*Option),
	}
}

// Register adds an option. Names must be unique within their scope.
func (r *Registry) Register(opt *Option) error {
	if opt.Name == "" {
		return fmt.Errorf("option name must not be empty")
	}
	if strings.Contains(opt.Name, "/") {
		return fmt.Errorf("option name %q must not contain '/'", opt.Name)
	}
	if opt.Kind == KindEnum && len(opt.EnumValues) == 0 {
		return fmt.Errorf("enum option %s declares no values", opt.Name)
	}

	switch opt.Scope {
	case ScopeGlobal:
		if _, exists := r.global[opt.Name]; exists {
			return fmt.Errorf("duplicate global option: %s", opt.Name)
		}
		r.global[opt.Name] = opt
	case ScopePerTarget:
		if _, exists := r.perTarget[opt.Name]; exists {
			return fmt.Errorf("duplicate per-target option: %s", opt.Name)
		}
		r.perTarget[opt.Name] = opt
	default:
		return fmt.Errorf("option %s has invalid scope %q", opt.Name, opt.Scope)
	}

	r.options = append(r.options, opt)
	return nil
}

// MustRegister registers an option and panics on error. The built-in
// catalog uses it during startup where a failure is a programming bug.
func (r *Registry) MustRegister(opt *Option) *Option {
	if err := r.Register(opt); err != nil {
		panic(err)
	}
	return opt
}

// Global looks up a global option by bare name.
func (r *Registry) Global(name string) (*Option, bool) {
	opt, ok := r.global[name]
	return opt, ok
}

// PerTarget looks up a per-target option by bare name.
func (r *Registry) PerTarget(name string) (*Option, bool) {
	opt, ok := r.perTarget[name]
	return opt, ok
}

// Options returns all options in registration order.
func (r *Registry) Options() []*Option {
	out := make([]*Option, len(r.options))
	copy(out, r.options)
	return out
}

// SplitKey separates a possibly target-prefixed option key into its prefix
// and bare name. "cheribsd-riscv64/make-jobs" yields ("cheribsd-riscv64",
// "make-jobs"); a bare key yields an empty prefix.
func SplitKey(key string) (prefix, name string) {
	if i := strings.LastIndex(key, "/"); i >= 0 {
		return key[:i], key[i+1:]
	}
	return "", key
}
