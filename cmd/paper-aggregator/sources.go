// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/paper-aggregator/internal/sources"
	"github.com/pdiddy/paper-aggregator/pkg/types"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the available sources and whether they are enabled",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		enabled := make(map[string]bool)
		for _, name := range cfg.Sources.Enabled {
			enabled[types.CanonicalSource(name)] = true
		}
		for _, name := range sources.Names() {
			state := "enabled"
			if len(enabled) > 0 && !enabled[name] {
				state = "disabled"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-18s %s\n", name, state)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
