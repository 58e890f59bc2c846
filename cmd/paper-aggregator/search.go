// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/paper-aggregator/internal/aggregate"
	"github.com/pdiddy/paper-aggregator/internal/filter"
	"github.com/pdiddy/paper-aggregator/internal/render"
	"github.com/pdiddy/paper-aggregator/internal/sources"
	"github.com/pdiddy/paper-aggregator/internal/storage"
	"github.com/pdiddy/paper-aggregator/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Query all sources in parallel and print merged results",
	Long: `Search sends the query to every selected source concurrently, merges the
results, removes duplicates by fuzzy title matching and sorts them newest
first. A source that fails or times out is reported and skipped; the rest
still contribute.

Results can be filtered by author substring, publication year or age,
source, or PDF availability, written as a table, JSON, CSV, CSL-YAML or
citation lines, saved to the local library, or saved as
a query file that --from-file can render again without network access.`,
	Example: `  paper-aggregator search "graph neural networks" --limit 20
  paper-aggregator search -q "covid-19" --sources pubmed --year 2021 --format csv -o covid.csv
  paper-aggregator search -q "attention" --save --save-query attention.yaml
  paper-aggregator search --from-file attention.yaml --format csl`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd, map[string]string{
			"workers":   "aggregate.max_workers",
			"timeout":   "aggregate.source_timeout",
			"threshold": "aggregate.dedup_threshold",
			"db":        "storage.dsn",
		})
	},
	RunE: runSearch,
}

func init() {
	f := searchCmd.Flags()
	f.StringP("query", "q", "", "search query (or pass it as arguments)")
	f.IntP("limit", "l", 0, "maximum records per source (default from config, 10)")
	f.StringSliceP("sources", "s", nil, "sources to query, comma-separated (default: all enabled)")
	f.Bool("no-dedupe", false, "keep duplicate records from different sources")
	f.String("author", "", "keep records with an author containing this text")
	f.IntP("year", "y", 0, "keep records published in this year")
	f.String("source-filter", "", "keep records that came from this source")
	f.Bool("has-pdf", false, "keep records with a PDF link")
	f.Int("recent", 0, "keep records published within this many years")
	f.StringP("format", "f", render.FormatTable, "output format: "+strings.Join(render.Formats(), ", "))
	f.StringP("output", "o", "", "write output to this file instead of stdout")
	f.Bool("save", false, "save results to the library database")
	f.String("db", "", "library database: SQLite path or postgres:// URL")
	f.String("save-query", "", "save the query and results to this YAML file")
	f.String("from-file", "", "render a saved query file instead of searching")
	f.String("metrics-file", "", "write Prometheus metrics for this run to this file")
	f.Int("workers", 0, "maximum sources fetched in parallel")
	f.Duration("timeout", 0, "per-source timeout")
	f.Float64("threshold", 0, "title similarity at which records are merged (0-1)")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	query, _ := cmd.Flags().GetString("query")
	if query == "" && len(args) > 0 {
		query = strings.Join(args, " ")
	}
	limit, _ := cmd.Flags().GetInt("limit")
	selected, _ := cmd.Flags().GetStringSlice("sources")
	noDedupe, _ := cmd.Flags().GetBool("no-dedupe")
	author, _ := cmd.Flags().GetString("author")
	year, _ := cmd.Flags().GetInt("year")
	sourceFilter, _ := cmd.Flags().GetString("source-filter")
	hasPDF, _ := cmd.Flags().GetBool("has-pdf")
	recent, _ := cmd.Flags().GetInt("recent")
	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")
	save, _ := cmd.Flags().GetBool("save")
	saveQuery, _ := cmd.Flags().GetString("save-query")
	fromFile, _ := cmd.Flags().GetString("from-file")
	metricsFile, _ := cmd.Flags().GetString("metrics-file")

	if year != 0 && (year < 1900 || year > time.Now().Year()) {
		return fmt.Errorf("year must be between 1900 and %d", time.Now().Year())
	}
	if limit < 0 {
		return fmt.Errorf("limit must be positive, got %d", limit)
	}
	if recent < 0 {
		return fmt.Errorf("recent must not be negative, got %d", recent)
	}

	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}

	params := render.QueryParams{
		Query:   query,
		Limit:   limit,
		Sources: selected,
		Dedupe:  !noDedupe,
		Author:  author,
		Year:    year,
	}

	var out aggregate.Output
	if fromFile != "" {
		qf, err := render.ReadQueryFile(fromFile)
		if err != nil {
			return err
		}
		params = qf.Query
		out = aggregate.Output{
			Records:      qf.Results,
			RunID:        qf.Summary.RunID,
			Fetched:      qf.Summary.Fetched,
			DupsRemoved:  qf.Summary.DuplicatesRemoved,
			SourceCounts: qf.Summary.SourceCounts,
			SourceErrors: qf.Summary.SourceErrors,
		}
	} else {
		if strings.TrimSpace(query) == "" {
			return fmt.Errorf("query is required: pass --query or a positional argument")
		}
		if params.Limit == 0 {
			params.Limit = cfg.Aggregate.DefaultLimit
		}

		reg := prometheus.NewRegistry()
		orch, err := newOrchestrator(cfg, aggregate.NewMetrics(reg))
		if err != nil {
			return err
		}
		out, err = orch.Run(ctx, params.Request())
		if err != nil {
			return err
		}
		reportSourceErrors(cmd.ErrOrStderr(), out.SourceErrors)

		if metricsFile != "" {
			if err := prometheus.WriteToTextfile(metricsFile, reg); err != nil {
				return fmt.Errorf("writing metrics: %w", err)
			}
		}
	}

	if author != "" {
		out.Records = filter.ByAuthor(out.Records, author)
	}
	if year != 0 {
		out.Records = filter.ByYear(out.Records, year)
	}
	if sourceFilter != "" {
		out.Records = filter.BySource(out.Records, sourceFilter)
	}
	if hasPDF {
		out.Records = filter.WithPDF(out.Records)
	}
	if recent > 0 {
		out.Records = filter.Recent(out.Records, recent, time.Now())
	}

	if err := writeResults(cmd.OutOrStdout(), output, format, out); err != nil {
		return err
	}

	if save {
		n, err := saveRecords(ctx, cfg.Storage, out.Records)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "saved %d new record(s) to %s\n", n, cfg.Storage.DSN)
	}
	if saveQuery != "" {
		if err := render.WriteQueryFile(saveQuery, render.NewQueryFile(params, out)); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "query saved to %s\n", saveQuery)
	}
	return nil
}

// newOrchestrator registers the enabled source adapters.
func newOrchestrator(cfg types.Config, m *aggregate.Metrics) (*aggregate.Orchestrator, error) {
	srcs, err := sources.Registry(cfg.Sources, nil, logger.Named("sources"))
	if err != nil {
		return nil, err
	}
	return aggregate.New(srcs, cfg.Aggregate, logger.Named("aggregate"), m)
}

func reportSourceErrors(w io.Writer, errs map[string]string) {
	for _, name := range sortedKeys(errs) {
		fmt.Fprintf(w, "warning: %s failed: %s\n", name, errs[name])
	}
}

func writeResults(stdout io.Writer, path, format string, out aggregate.Output) error {
	if path == "" {
		return render.Write(stdout, format, out.Records, out.DupsRemoved)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	if err := render.Write(f, format, out.Records, out.DupsRemoved); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing output file: %w", err)
	}
	logger.Info("results written", zap.String("path", path), zap.Int("records", len(out.Records)))
	return nil
}

func saveRecords(ctx context.Context, cfg types.StorageConfig, recs []types.Record) (int, error) {
	store, err := storage.Open(ctx, cfg, logger.Named("storage"))
	if err != nil {
		return 0, err
	}
	defer store.Close()
	return store.SaveMany(ctx, recs)
}
