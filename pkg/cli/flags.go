package cli

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/cheribuild/cheribuild/pkg/config"
)

// flagPrefix is one target or template name an option key can be scoped
// to, with the ancestry used to decide which per-target options apply.
type flagPrefix struct {
	name     string
	ancestry []string
}

// registerOptionFlags declares one pflag per registered option. Global
// options appear under their bare name; every option additionally gets a
// prefixed variant per target and template so keys like
// --cheribsd-riscv64-purecap/make-jobs parse without a custom flag
// parser. The prefixed variants are hidden to keep --help readable, with
// one visible form per project-owned option.
func (a *app) registerOptionFlags(flags *pflag.FlagSet) {
	prefixes := a.flagPrefixes()

	for _, opt := range a.options.Options() {
		if opt.Scope == config.ScopeGlobal {
			a.addFlag(flags, opt.Name, opt.Shorthand, opt, false)
		} else if opt.Owner != "" {
			a.addFlag(flags, opt.Owner+"/"+opt.Name, "", opt, false)
		}

		for _, prefix := range prefixes {
			if !prefixApplies(opt, prefix.ancestry) {
				continue
			}
			name := prefix.name + "/" + opt.Name
			if _, taken := a.flags[name]; taken {
				continue
			}
			a.addFlag(flags, name, "", opt, true)
		}
	}
}

// flagPrefixes returns every valid option key prefix: each concrete
// instance name plus each template name reachable through an ancestry.
func (a *app) flagPrefixes() []flagPrefix {
	var out []flagPrefix
	seen := make(map[string]bool)
	for _, inst := range a.targets.Instances() {
		ancestry := inst.Ancestry()
		if !seen[inst.Name()] {
			seen[inst.Name()] = true
			out = append(out, flagPrefix{name: inst.Name(), ancestry: ancestry})
		}
		for i, tmpl := range ancestry {
			if seen[tmpl] {
				continue
			}
			seen[tmpl] = true
			out = append(out, flagPrefix{name: tmpl, ancestry: ancestry[i:]})
		}
	}
	return out
}

// prefixApplies reports whether an option can be scoped to a prefix with
// the given ancestry. Owner-restricted options only apply below their
// owning template.
func prefixApplies(opt *config.Option, ancestry []string) bool {
	if opt.Owner == "" {
		return true
	}
	for _, name := range ancestry {
		if name == opt.Owner {
			return true
		}
	}
	return false
}

func (a *app) addFlag(flags *pflag.FlagSet, name, shorthand string, opt *config.Option, hidden bool) {
	help := opt.Help
	if opt.DefaultDesc != "" {
		help = fmt.Sprintf("%s (default: %s)", help, opt.DefaultDesc)
	}

	switch opt.Kind {
	case config.KindBool:
		def, _ := opt.Default.(bool)
		flags.BoolP(name, shorthand, def, help)
	case config.KindInt:
		def, _ := opt.Default.(int)
		flags.IntP(name, shorthand, def, help)
	case config.KindStringList:
		def, _ := opt.Default.([]string)
		flags.StringSliceP(name, shorthand, def, help)
	default:
		def, _ := opt.Default.(string)
		flags.StringP(name, shorthand, def, help)
	}
	if hidden {
		_ = flags.MarkHidden(name)
	}
	a.flags[name] = opt
}

// commandLineValues collects the explicitly set option flags, keyed the
// way the resolver consumes them: bare names for global options and
// "<target>/<option>" for scoped values. Untouched flags stay absent so
// config files and defaults keep their precedence.
func (a *app) commandLineValues(flags *pflag.FlagSet) map[string]interface{} {
	values := make(map[string]interface{})
	flags.Visit(func(f *pflag.Flag) {
		opt, ok := a.flags[f.Name]
		if !ok {
			return
		}
		switch opt.Kind {
		case config.KindBool:
			v, _ := flags.GetBool(f.Name)
			values[f.Name] = v
		case config.KindInt:
			v, _ := flags.GetInt(f.Name)
			values[f.Name] = v
		case config.KindStringList:
			v, _ := flags.GetStringSlice(f.Name)
			values[f.Name] = v
		default:
			v, _ := flags.GetString(f.Name)
			values[f.Name] = v
		}
	})
	return values
}
