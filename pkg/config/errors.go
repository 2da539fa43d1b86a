package config

import (
	"fmt"
	"strings"
)

// UnknownOptionError is returned when a lookup names an option that was
// never registered, or names a per-target option without a target prefix.
type UnknownOptionError struct {
	Name        string
	Suggestions []string
}

func (e *UnknownOptionError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("unknown option: %s", e.Name)
	}
	return fmt.Sprintf("unknown option: %s (did you mean %s?)",
		e.Name, strings.Join(e.Suggestions, " or "))
}

// CycleError is returned when a computed default transitively depends on
// its own value. Chain holds the evaluation path, ending with the option
// that closed the cycle.
type CycleError struct {
	Chain []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cyclic config default: %s", strings.Join(e.Chain, " -> "))
}

// IncludeError is returned when loading a config file fails inside an
// #include chain, including the case of a file including itself.
type IncludeError struct {
	File  string
	Chain []string
	Err   error
}

func (e *IncludeError) Error() string {
	if len(e.Chain) > 0 {
		return fmt.Sprintf("config include %s (via %s): %v",
			e.File, strings.Join(e.Chain, " -> "), e.Err)
	}
	return fmt.Sprintf("config include %s: %v", e.File, e.Err)
}

func (e *IncludeError) Unwrap() error { return e.Err }
