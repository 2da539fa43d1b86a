package targets

import (
	"fmt"
	"strings"
)

// UnknownTargetError reports a name that matches no instance, template or
// alias. Suggestions carry near misses for the error message.
type UnknownTargetError struct {
	Name        string
	Suggestions []string
}

func (e *UnknownTargetError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("unknown target %q", e.Name)
	}
	return fmt.Sprintf("unknown target %q, did you mean %s?", e.Name, strings.Join(e.Suggestions, " or "))
}

// DuplicateTargetError reports a second registration of an already taken
// template or instance name.
type DuplicateTargetError struct {
	Name string
}

func (e *DuplicateTargetError) Error() string {
	return fmt.Sprintf("target %q registered twice", e.Name)
}

// UnsupportedArchitectureError reports a template asked to expand or
// resolve for an architecture it does not declare.
type UnsupportedArchitectureError struct {
	Target       string
	Architecture string
}

func (e *UnsupportedArchitectureError) Error() string {
	return fmt.Sprintf("target %q does not support architecture %q", e.Target, e.Architecture)
}
