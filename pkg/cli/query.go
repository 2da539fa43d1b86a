package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cheribuild/cheribuild/pkg/config"
)

// runListTargets prints every concrete target name in registration
// order. Aliases are skipped to keep the output short.
func (a *app) runListTargets(cmd *cobra.Command) error {
	names := a.targets.TargetNames()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "There are %d available targets:\n", len(names))
	for _, name := range names {
		fmt.Fprintf(out, "  %s\n", name)
	}
	return nil
}

// runDumpConfiguration prints the effective configuration as a JSON
// document that can be fed back in as a config file.
func runDumpConfiguration(cmd *cobra.Command, cfg *config.Resolver) error {
	data, err := cfg.Dump()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

// runGetConfigOption resolves one option key, bare or target-prefixed,
// and prints the value. Unknown keys fail with the resolver's
// suggestions.
func runGetConfigOption(cmd *cobra.Command, cfg *config.Resolver, key string) error {
	v, err := cfg.Get(key)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	switch raw := v.Raw.(type) {
	case []string:
		data, err := json.Marshal(raw)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	default:
		fmt.Fprintln(out, raw)
	}
	return nil
}
