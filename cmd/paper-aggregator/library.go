// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/paper-aggregator/internal/render"
	"github.com/pdiddy/paper-aggregator/internal/storage"
	"github.com/pdiddy/paper-aggregator/pkg/types"
)

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "Inspect records saved with search --save or watch",
	Long: `Library reads the local record database. Records are stored once per
(title, source, DOI, arXiv id, PubMed id); saving the same search twice
adds nothing.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		return bindFlags(cmd, map[string]string{"db": "storage.dsn"})
	},
}

// --- list subcommand ---

var libraryListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print saved records, optionally only those from one source",
	RunE: func(cmd *cobra.Command, args []string) error {
		source, _ := cmd.Flags().GetString("source")
		format, _ := cmd.Flags().GetString("format")

		return withStore(cmd, func(ctx context.Context, store storage.Store) error {
			var (
				recs []types.Record
				err  error
			)
			if source != "" {
				recs, err = store.BySource(ctx, source)
			} else {
				recs, err = store.All(ctx)
			}
			if err != nil {
				return err
			}
			return render.Write(cmd.OutOrStdout(), format, recs, 0)
		})
	},
}

// --- count subcommand ---

var libraryCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of saved records",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, store storage.Store) error {
			n, err := store.Count(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		})
	},
}

// --- exists subcommand ---

var libraryExistsCmd = &cobra.Command{
	Use:   "exists",
	Short: "Report whether a record with this title and author list is saved",
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		authors, _ := cmd.Flags().GetStringSlice("author")
		if title == "" {
			return fmt.Errorf("--title is required")
		}
		return withStore(cmd, func(ctx context.Context, store storage.Store) error {
			ok, err := store.Exists(ctx, title, authors)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ok)
			return nil
		})
	},
}

func withStore(cmd *cobra.Command, fn func(context.Context, storage.Store) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	store, err := storage.Open(ctx, cfg.Storage, logger.Named("storage"))
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(ctx, store)
}

func init() {
	libraryCmd.PersistentFlags().String("db", "", "library database: SQLite path or postgres:// URL")

	libraryListCmd.Flags().String("source", "", "only records from this source")
	libraryListCmd.Flags().StringP("format", "f", render.FormatTable, "output format")

	libraryExistsCmd.Flags().String("title", "", "exact record title")
	libraryExistsCmd.Flags().StringSlice("author", nil, "authors in order (repeat or comma-separate)")

	libraryCmd.AddCommand(libraryListCmd, libraryCountCmd, libraryExistsCmd)
	rootCmd.AddCommand(libraryCmd)
}
