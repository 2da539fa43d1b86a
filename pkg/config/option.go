// Package config implements the layered option system: option declaration,
// config file loading, and precedence-ordered value resolution.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cheribuild/cheribuild/pkg/types"
)

// Kind identifies the value type of an option.
type Kind string

const (
	KindBool       Kind = "bool"
	KindInt        Kind = "int"
	KindString     Kind = "string"
	KindEnum       Kind = "enum"
	KindPath       Kind = "path"
	KindStringList Kind = "string-list"
)

// Scope determines whether an option is resolved globally or per target.
type Scope string

const (
	// ScopeGlobal options resolve without a target. They can still carry
	// target-prefixed overrides and template-declared class defaults.
	ScopeGlobal Scope = "global"
	// ScopePerTarget options only resolve in the context of a target; a
	// bare lookup is an error that names a prefixed form.
	ScopePerTarget Scope = "per-target"
)

// Target is the view of a build target the config layer needs. It is
// implemented by targets.Instance; keeping the interface here avoids a
// dependency from config onto the target registry.
type Target interface {
	// Name returns the concrete instance name, e.g. "cheribsd-riscv64-purecap".
	Name() string
	// Ancestry returns the template name followed by its parents, nearest
	// first, e.g. ["cheribsd", "freebsd"].
	Ancestry() []string
	// Architecture returns the instance's cross-compilation architecture.
	Architecture() types.Architecture
	// ClassDefault returns the nearest template-declared default for the
	// named option, walking the parent chain.
	ClassDefault(option string) (interface{}, bool)
}

// ComputeFunc derives an option's default from other resolved options.
// The target is nil for global resolution. Implementations must only read
// configuration through the passed resolver so that cycles are detected.
type ComputeFunc func(r *Resolver, t Target) (interface{}, error)

// Option declares a single configuration knob.
type Option struct {
	// Name is the bare option name without any target prefix.
	Name      string
	Shorthand string
	Scope     Scope
	Kind      Kind

	// Owner restricts a per-target option to targets whose ancestry
	// contains the named template. Empty means every target.
	Owner string

	// Default is the compiled-in fallback. A nil Default resolves to the
	// kind's zero value unless Compute is set.
	Default interface{}
	// Compute lazily derives the default from other options. Evaluated at
	// most once per (option, target) pair.
	Compute ComputeFunc
	// DefaultDesc describes the computed default in help output.
	DefaultDesc string

	// EnvVar names the environment variable consulted between class
	// defaults and computed defaults. Empty disables the environment layer.
	EnvVar string

	Help       string
	EnumValues []string

	// CommandLineOnly excludes the option from config files and from Dump.
	// Used for action and query flags.
	CommandLineOnly bool
}

// QualifiedName returns the form under which a per-target option is
// addressed for its owning template, or the bare name for global options.
func (o *Option) QualifiedName() string {
	if o.Scope == ScopePerTarget && o.Owner != "" {
		return o.Owner + "/" + o.Name
	}
	return o.Name
}

// Coerce converts a raw value from any source layer into the option's
// canonical Go type: bool, int, string, or []string.
func (o *Option) Coerce(raw interface{}) (interface{}, error) {
	switch o.Kind {
	case KindBool:
		return coerceBool(raw)
	case KindInt:
		return coerceInt(raw)
	case KindString:
		return coerceString(raw)
	case KindEnum:
		s, err := coerceString(raw)
		if err != nil {
			return nil, err
		}
		for _, v := range o.EnumValues {
			if v == s {
				return s, nil
			}
		}
		return nil, fmt.Errorf("invalid value %q for %s (choose from %s)",
			s, o.Name, strings.Join(o.EnumValues, ", "))
	case KindPath:
		s, err := coerceString(raw)
		if err != nil {
			return nil, err
		}
		return expandPath(s), nil
	case KindStringList:
		return coerceStringList(raw)
	default:
		return nil, fmt.Errorf("option %s has unknown kind %q", o.Name, o.Kind)
	}
}

// Zero returns the kind's zero value, used when an option has neither a
// static nor a computed default. List options always resolve to a non-nil
// slice so values survive a dump/load round trip unchanged.
func (o *Option) Zero() interface{} {
	switch o.Kind {
	case KindBool:
		return false
	case KindInt:
		return 0
	case KindStringList:
		return []string{}
	default:
		return ""
	}
}

func coerceBool(raw interface{}) (interface{}, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid boolean %q", v)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("expected boolean, got %T", raw)
	}
}

func coerceInt(raw interface{}) (interface{}, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != float64(int(v)) {
			return nil, fmt.Errorf("expected integer, got %v", v)
		}
		return int(v), nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", v)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("expected integer, got %T", raw)
	}
}

func coerceString(raw interface{}) (string, error) {
	if s, ok := raw.(string); ok {
		return s, nil
	}
	return "", fmt.Errorf("expected string, got %T", raw)
}

func coerceStringList(raw interface{}) (interface{}, error) {
	switch v := raw.(type) {
	case nil:
		return []string{}, nil
	case []string:
		if v == nil {
			return []string{}, nil
		}
		return v, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string list element, got %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		if v == "" {
			return []string{}, nil
		}
		return strings.Split(v, ","), nil
	default:
		return nil, fmt.Errorf("expected string list, got %T", raw)
	}
}

// expandPath resolves a leading ~ against the current home directory.
// Relative paths are kept as written; lifecycles resolve them against the
// relevant root directories.
func expandPath(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
