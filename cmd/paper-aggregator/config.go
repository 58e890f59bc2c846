// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/paper-aggregator/internal/secrets"
	"github.com/pdiddy/paper-aggregator/pkg/types"
)

// bindFlags points config keys at this command's flags. It runs from
// PreRunE because several commands share flag names and viper keeps one
// binding per key.
func bindFlags(cmd *cobra.Command, keys map[string]string) error {
	for flag, key := range keys {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("binding --%s: %w", flag, err)
		}
	}
	return nil
}

// loadConfig decodes v into a Config, fills API keys from the secrets
// directory where config and environment left them empty, and validates.
func loadConfig(v *viper.Viper) (types.Config, error) {
	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decoding config: %w", err)
	}
	secrets.Apply(loadedSecrets, &cfg.Sources)

	cfg.Aggregate = cfg.Aggregate.WithDefaults()
	if err := cfg.Aggregate.Validate(); err != nil {
		return types.Config{}, err
	}
	return cfg, nil
}
