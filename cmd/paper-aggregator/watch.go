// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/paper-aggregator/internal/aggregate"
	"github.com/pdiddy/paper-aggregator/internal/storage"
)

var watchCmd = &cobra.Command{
	Use:   "watch [query]",
	Short: "Collect new records for a query into the library on a schedule",
	Long: `Watch runs the same aggregation as search on a cron schedule and saves
the results to the library database. Records already saved are skipped,
so each run only adds what is new. Runs never overlap; a run still in
progress when the next one is due causes that tick to be skipped.

The schedule accepts standard five-field cron expressions and descriptors
such as "@hourly" or "@every 6h". Stop with Ctrl-C.`,
	Example: `  paper-aggregator watch -q "protein folding" --schedule "@every 12h" --db papers.db`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd, map[string]string{"db": "storage.dsn"})
	},
	RunE: runWatch,
}

func init() {
	f := watchCmd.Flags()
	f.StringP("query", "q", "", "search query (or pass it as arguments)")
	f.String("schedule", "@every 6h", "cron schedule")
	f.IntP("limit", "l", 0, "maximum records per source (default from config, 10)")
	f.StringSliceP("sources", "s", nil, "sources to query (default: all enabled)")
	f.String("db", "", "library database: SQLite path or postgres:// URL")
	f.Bool("run-now", true, "run once immediately before waiting for the schedule")
	f.String("metrics-file", "", "rewrite Prometheus metrics to this file after each run")

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	query, _ := cmd.Flags().GetString("query")
	if query == "" && len(args) > 0 {
		query = strings.Join(args, " ")
	}
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("query is required: pass --query or a positional argument")
	}
	schedule, _ := cmd.Flags().GetString("schedule")
	limit, _ := cmd.Flags().GetInt("limit")
	selected, _ := cmd.Flags().GetStringSlice("sources")
	runNow, _ := cmd.Flags().GetBool("run-now")
	metricsFile, _ := cmd.Flags().GetString("metrics-file")

	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	if limit <= 0 {
		limit = cfg.Aggregate.DefaultLimit
	}

	reg := prometheus.NewRegistry()
	saved := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "paper_aggregator",
		Name:      "saved_records_total",
		Help:      "Records added to the library by watch runs.",
	})
	reg.MustRegister(saved)

	orch, err := newOrchestrator(cfg, aggregate.NewMetrics(reg))
	if err != nil {
		return err
	}
	store, err := storage.Open(ctx, cfg.Storage, logger.Named("storage"))
	if err != nil {
		return err
	}
	defer store.Close()

	req := aggregate.Request{Query: query, Limit: limit, Sources: selected, Dedupe: true}
	log := logger.Named("watch").With(zap.String("query", query))

	job := func() {
		n, err := collect(ctx, orch, store, req)
		if err != nil {
			log.Error("scheduled run failed", zap.Error(err))
			return
		}
		saved.Add(float64(n))
		log.Info("scheduled run completed", zap.Int("new_records", n))
		if metricsFile != "" {
			if err := prometheus.WriteToTextfile(metricsFile, reg); err != nil {
				log.Warn("could not write metrics", zap.Error(err))
			}
		}
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(schedule, job); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	if runNow {
		job()
	}
	c.Start()
	fmt.Fprintf(cmd.ErrOrStderr(), "watching %q on schedule %s (Ctrl-C to stop)\n", query, schedule)

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// collect runs one aggregation and saves the results, returning how many
// records were new.
func collect(ctx context.Context, orch *aggregate.Orchestrator, store storage.Store, req aggregate.Request) (int, error) {
	out, err := orch.Run(ctx, req)
	if err != nil {
		return 0, err
	}
	for _, name := range sortedKeys(out.SourceErrors) {
		logger.Warn("source failed during scheduled run",
			zap.String("source", name),
			zap.String("error", out.SourceErrors[name]))
	}
	return store.SaveMany(ctx, out.Records)
}
