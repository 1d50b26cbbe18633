package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"eosearch/internal/config"
	"eosearch/internal/spec"
)

const providersFlag = "providers"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eosearch [sub-command]",
		Short: "Search Earth observation data catalogs",
		Long: `eosearch submits searches to asynchronous catalog providers, polls the
  resulting jobs and turns provider results into normalized entries.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage: true,
	}
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newFormatCmd())
	cmd.AddCommand(newExtractCmd())
	cmd.AddCommand(newConvertersCmd())
	return cmd
}

// parseKeyValues turns key=value pairs into a map. Values are read as YAML
// scalars, so numbers and booleans keep their type.
func parseKeyValues(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", pair)
		}
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil || v == nil {
			v = raw
		}
		out[key] = v
	}
	return out, nil
}

func loadProvider(cmd *cobra.Command, name string) (spec.Provider, error) {
	path, err := cmd.Flags().GetString(providersFlag)
	if err != nil {
		return spec.Provider{}, err
	}
	catalog, err := config.LoadProviders(path)
	if err != nil {
		return spec.Provider{}, err
	}
	p, ok := catalog.Providers[name]
	if !ok {
		return spec.Provider{}, fmt.Errorf("provider %q is not in %s", name, path)
	}
	return p, nil
}
