// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/paper-aggregator/internal/render"
	"github.com/pdiddy/paper-aggregator/internal/sources"
	"github.com/pdiddy/paper-aggregator/pkg/types"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <id>",
	Short: "Fetch a single paper by provider id",
	Long: `Lookup fetches one paper directly instead of searching. arXiv takes an
arXiv id such as 1706.03762; Semantic Scholar takes its own paper id or a
prefixed id such as DOI:10.48550/arXiv.1706.03762 or PMID:31234567.`,
	Example: `  paper-aggregator lookup 1706.03762 --source arxiv
  paper-aggregator lookup DOI:10.1038/nature14539 --format csl`,
	Args: cobra.ExactArgs(1),
	RunE: runLookup,
}

func init() {
	lookupCmd.Flags().StringP("source", "s", sources.SemanticScholarName, "source to ask: arxiv or semantic_scholar")
	lookupCmd.Flags().StringP("format", "f", render.FormatTable, "output format")
	rootCmd.AddCommand(lookupCmd)
}

func runLookup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	source, _ := cmd.Flags().GetString("source")
	format, _ := cmd.Flags().GetString("format")

	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	cfg.Sources.Enabled = []string{source}
	srcs, err := sources.Registry(cfg.Sources, nil, logger.Named("sources"))
	if err != nil {
		return err
	}
	lk, ok := srcs[0].(sources.IDLookup)
	if !ok {
		return fmt.Errorf("%s does not support lookup by id", srcs[0].Name())
	}

	r, err := lk.FetchByID(ctx, args[0])
	if err != nil {
		return err
	}
	return render.Write(cmd.OutOrStdout(), format, []types.Record{r}, 0)
}
