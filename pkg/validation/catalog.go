// Package validation provides target catalog validation functionality
package validation

import (
	"fmt"

	"github.com/cheribuild/cheribuild/pkg/config"
	"github.com/cheribuild/cheribuild/pkg/targets"
	"github.com/cheribuild/cheribuild/pkg/types"
)

// CatalogValidator validates the expanded target catalog. The registry
// enforces structural rules at registration time (unique names, known
// parents, valid aliases); the validator covers what only exists after
// expansion, chiefly that every declared dependency resolves for every
// architecture a target builds for.
type CatalogValidator struct {
	registry *targets.Registry
	cfg      *config.Resolver
}

// NewCatalogValidator creates a new catalog validator
func NewCatalogValidator(registry *targets.Registry, cfg *config.Resolver) *CatalogValidator {
	return &CatalogValidator{
		registry: registry,
		cfg:      cfg,
	}
}

// ValidationError represents a validation finding
type ValidationError struct {
	Target  string
	Field   string
	Message string
	Level   ValidationLevel
}

// ValidationLevel represents error severity
type ValidationLevel string

const (
	ValidationLevelError   ValidationLevel = "error"
	ValidationLevelWarning ValidationLevel = "warning"
	ValidationLevelInfo    ValidationLevel = "info"
)

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s.%s: %s", e.Level, e.Target, e.Field, e.Message)
}

// ValidationResult contains validation results
type ValidationResult struct {
	Valid  bool
	Errors []ValidationError
}

// AddError adds an error to the validation result
func (r *ValidationResult) AddError(target, field, message string, level ValidationLevel) {
	r.Errors = append(r.Errors, ValidationError{
		Target:  target,
		Field:   field,
		Message: message,
		Level:   level,
	})
	if level == ValidationLevelError {
		r.Valid = false
	}
}

// lifecycleKinds are the project kinds the lifecycle factory can build.
// A template declaring any other kind would only fail once the engine
// reaches it mid-run.
var lifecycleKinds = map[types.ProjectKind]bool{
	types.KindAutotools:      true,
	types.KindCMake:          true,
	types.KindBSDMake:        true,
	types.KindSysrootArchive: true,
	types.KindDiskImage:      true,
	types.KindRunQEMU:        true,
	types.KindGroup:          true,
}

// ValidateCatalog validates the full catalog held by the registry.
func ValidateCatalog(registry *targets.Registry, cfg *config.Resolver) *ValidationResult {
	return NewCatalogValidator(registry, cfg).Validate()
}

// Validate checks every template and every expanded instance.
func (v *CatalogValidator) Validate() *ValidationResult {
	result := &ValidationResult{Valid: true}

	for _, tmpl := range v.registry.Templates() {
		v.validateTemplate(tmpl, result)
	}
	for _, inst := range v.registry.Instances() {
		v.validateDependencies(inst, result)
	}

	return result
}

func (v *CatalogValidator) validateTemplate(tmpl *targets.Template, result *ValidationResult) {
	if !lifecycleKinds[tmpl.Kind] {
		result.AddError(tmpl.Name, "kind",
			fmt.Sprintf("no lifecycle exists for project kind %q", tmpl.Kind),
			ValidationLevelError)
	}

	// A non-nil empty architecture list expands to nothing; the target
	// exists in name only.
	if tmpl.Architectures != nil && len(tmpl.Architectures) == 0 {
		result.AddError(tmpl.Name, "architectures",
			"declares an empty architecture list, no instances were created",
			ValidationLevelWarning)
	}
}

// validateDependencies evaluates the instance's declared edges so broken
// dependency names surface at startup instead of halfway through a run.
func (v *CatalogValidator) validateDependencies(inst *targets.Instance, result *ValidationResult) {
	deps := inst.Template().Dependencies
	if deps == nil {
		return
	}

	for _, dep := range deps(inst.Architecture(), v.cfg) {
		resolved, err := v.registry.ResolveDep(inst, dep)
		if err != nil {
			result.AddError(inst.Name(), "dependencies", err.Error(), ValidationLevelError)
			continue
		}
		if resolved.Name() == inst.Name() {
			result.AddError(inst.Name(), "dependencies",
				"target depends on itself", ValidationLevelError)
		}
		if dep.OnlyIf != "" {
			v.validateGate(inst, dep, result)
		}
	}
}

// validateGate checks that a conditional edge names a declared Bool
// option.
func (v *CatalogValidator) validateGate(inst *targets.Instance, dep targets.Dep, result *ValidationResult) {
	reg := v.cfg.Registry()
	opt, ok := reg.PerTarget(dep.OnlyIf)
	if !ok {
		opt, ok = reg.Global(dep.OnlyIf)
	}
	if !ok {
		result.AddError(inst.Name(), "dependencies",
			fmt.Sprintf("edge to %s gated on unknown option %q", dep.Target, dep.OnlyIf),
			ValidationLevelError)
		return
	}
	if opt.Kind != config.KindBool {
		result.AddError(inst.Name(), "dependencies",
			fmt.Sprintf("edge to %s gated on non-boolean option %q", dep.Target, dep.OnlyIf),
			ValidationLevelError)
	}
}
