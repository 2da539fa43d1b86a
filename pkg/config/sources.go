package config

import "os"

// Source identifies which layer supplied a resolved value.
type Source string

const (
	SourceCommandLine     Source = "explicit-cli"
	SourceConfigFile      Source = "explicit-config-file"
	SourceEnvironment     Source = "environment"
	SourceClassDefault    Source = "inherited-class-default"
	SourceComputedDefault Source = "computed-default"
	SourceStaticDefault   Source = "static-default"
)

// Value is a resolved option value together with its winning source layer.
type Value struct {
	Raw    interface{}
	Source Source
}

// Bool returns the value as a bool; false for non-bool values.
func (v Value) Bool() bool {
	b, _ := v.Raw.(bool)
	return b
}

// Int returns the value as an int; 0 for non-int values.
func (v Value) Int() int {
	n, _ := v.Raw.(int)
	return n
}

// String returns the value as a string; "" for non-string values.
func (v Value) String() string {
	s, _ := v.Raw.(string)
	return s
}

// StringList returns the value as a string slice; nil for other values.
func (v Value) StringList() []string {
	l, _ := v.Raw.([]string)
	return l
}

// EnvLookup reads one environment variable. Injectable so tests resolve
// against a fixed environment.
type EnvLookup func(name string) (string, bool)

// Sources bundles the raw input layers for one resolve pass. All fields
// may be left zero; resolution then falls through to declared defaults.
type Sources struct {
	// CommandLine maps option keys to values parsed from flags. Keys are
	// either bare names or target-prefixed ("cheribsd/make-jobs"). Values
	// carry the flag's native type.
	CommandLine map[string]interface{}

	// File is the merged config file document.
	File Document

	// Env resolves environment variables; defaults to os.LookupEnv.
	Env EnvLookup
}

func (s Sources) envLookup() EnvLookup {
	if s.Env != nil {
		return s.Env
	}
	return os.LookupEnv
}
