// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the paper-aggregator CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/paper-aggregator/internal/logging"
	"github.com/pdiddy/paper-aggregator/internal/secrets"
	"github.com/pdiddy/paper-aggregator/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// loadedSecrets holds API keys loaded from the secrets directory at startup.
	loadedSecrets map[string]string

	// logger is built in PersistentPreRunE from --log-level/--log-format.
	logger = zap.NewNop()
)

// replacer maps config keys to environment variable names.
var replacer = strings.NewReplacer(".", "_", "-", "_")

// rootCmd is the base command for the paper-aggregator CLI.
var rootCmd = &cobra.Command{
	Use:   "paper-aggregator",
	Short: "Aggregate and deduplicate research papers from multiple sources",
	Long: `paper-aggregator queries arXiv, Semantic Scholar and PubMed in parallel,
merges the results into one list and removes duplicates by fuzzy title
matching. Results can be printed, exported, saved to a local library or
collected on a schedule.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		log, err := logging.New(viper.GetString("log.level"), viper.GetString("log.format"))
		if err != nil {
			return err
		}
		logger = log

		s, err := secrets.Load(viper.GetString("secrets_dir"), logger)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			logger.Debug("loaded secrets", zap.Strings("keys", keys))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./paper-aggregator.yaml or ~/.config/paper-aggregator/paper-aggregator.yaml)")
	pf.String("log-level", "warn", "log level: debug, info, warn, error")
	pf.String("log-format", logging.FormatConsole, "log format: console or json")
	pf.String("secrets-dir", ".secrets/", "directory holding API key files")

	_ = viper.BindPFlag("log.level", pf.Lookup("log-level"))
	_ = viper.BindPFlag("log.format", pf.Lookup("log-format"))
	_ = viper.BindPFlag("secrets_dir", pf.Lookup("secrets-dir"))
	setDefaults(viper.GetViper())
}

// setDefaults registers every config key so AutomaticEnv can resolve it
// during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("aggregate.max_workers", types.DefaultMaxWorkers)
	v.SetDefault("aggregate.source_timeout", types.DefaultSourceTimeout)
	v.SetDefault("aggregate.dedup_threshold", types.DefaultDedupThreshold)
	v.SetDefault("aggregate.default_limit", types.DefaultLimit)
	v.SetDefault("sources.enabled", []string{})
	v.SetDefault("sources.timeout", types.DefaultSourceTimeout)
	v.SetDefault("sources.user_agent", types.DefaultUserAgent)
	v.SetDefault("sources.max_retries", 3)
	v.SetDefault("sources.semantic_scholar_api_key", "")
	v.SetDefault("sources.pubmed_api_key", "")
	v.SetDefault("sources.pubmed_email", "")
	v.SetDefault("storage.dsn", "papers.db")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("paper-aggregator")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "paper-aggregator"))
		}
	}

	viper.SetEnvPrefix("PAPER_AGGREGATOR")
	viper.SetEnvKeyReplacer(replacer)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}
