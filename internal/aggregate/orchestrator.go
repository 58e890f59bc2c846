// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package aggregate fans a query out to bibliographic sources in parallel,
// isolates per-source failures, deduplicates the combined records and
// returns them in a deterministic order.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/paper-aggregator/internal/dedup"
	"github.com/pdiddy/paper-aggregator/pkg/types"
)

// Source fetches records for a query from one provider. Implementations
// report provider faults as errors; the orchestrator turns any error,
// panic or timeout into an empty result for that source.
type Source interface {
	Name() string
	FetchPapers(ctx context.Context, query string, limit int) ([]types.Record, error)
}

// YearSource is a Source that can restrict a search to one publication
// year on the provider side.
type YearSource interface {
	Source
	FetchPapersInYear(ctx context.Context, query string, limit, year int) ([]types.Record, error)
}

// ErrInvalidSource matches every *InvalidSourceError via errors.Is.
var ErrInvalidSource = errors.New("invalid source")

// InvalidSourceError reports requested source ids that are not registered.
type InvalidSourceError struct {
	Unknown   []string
	Available []string
}

func (e *InvalidSourceError) Error() string {
	return fmt.Sprintf("invalid source(s): %s (available: %s)",
		strings.Join(e.Unknown, ", "), strings.Join(e.Available, ", "))
}

// Is reports whether target is ErrInvalidSource.
func (e *InvalidSourceError) Is(target error) bool { return target == ErrInvalidSource }

// Request describes one aggregation run.
type Request struct {
	Query string
	// Limit is the per-source record limit; values below 1 become 1.
	Limit int
	// Sources selects registered source ids; empty selects all.
	Sources []string
	Dedupe  bool
	// Year, when set, is passed to sources that implement YearSource.
	// Other sources are queried without it.
	Year int
}

// Output holds the records of a run and what happened along the way.
type Output struct {
	Records      []types.Record
	RunID        string
	Fetched      int
	DupsRemoved  int
	SourceCounts map[string]int
	SourceErrors map[string]string
}

// Orchestrator dispatches queries to its registered sources. It keeps no
// per-run state, so concurrent runs are independent.
type Orchestrator struct {
	sources map[string]Source
	names   []string
	cfg     types.AggregateConfig
	dedup   *dedup.Engine
	log     *zap.Logger
	metrics *Metrics
}

// New registers sources under their Name. Zero config values take the
// defaults from types; log and metrics may be nil.
func New(sources []Source, cfg types.AggregateConfig, log *zap.Logger, metrics *Metrics) (*Orchestrator, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("aggregate config: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}

	o := &Orchestrator{
		sources: make(map[string]Source, len(sources)),
		cfg:     cfg,
		dedup:   dedup.New(cfg.DedupThreshold, log.Named("dedup")),
		log:     log,
		metrics: metrics,
	}
	for _, s := range sources {
		name := s.Name()
		if name == "" {
			return nil, fmt.Errorf("source with empty name")
		}
		if _, dup := o.sources[name]; dup {
			return nil, fmt.Errorf("source %q registered twice", name)
		}
		o.sources[name] = s
		o.names = append(o.names, name)
	}
	sort.Strings(o.names)
	return o, nil
}

// ListSources returns the registered source ids in sorted order.
func (o *Orchestrator) ListSources() []string {
	return append([]string(nil), o.names...)
}

// Aggregate runs a query and returns only the sorted records.
func (o *Orchestrator) Aggregate(ctx context.Context, query string, limit int, sources []string, dedupe bool) ([]types.Record, error) {
	out, err := o.Run(ctx, Request{Query: query, Limit: limit, Sources: sources, Dedupe: dedupe})
	if err != nil {
		return nil, err
	}
	return out.Records, nil
}

type outcome struct {
	source  string
	records []types.Record
	err     error
}

// Run fans the query out to the selected sources on a bounded worker pool
// and returns the combined, optionally deduplicated, sorted records.
//
// A blank query returns an empty Output without touching any source.
// Unknown source ids fail the whole run with an *InvalidSourceError before
// any source is called. Source failures never fail the run; they are
// logged and listed in Output.SourceErrors. If ctx is cancelled the run
// returns ctx.Err().
func (o *Orchestrator) Run(ctx context.Context, req Request) (Output, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return Output{}, nil
	}
	selected, err := o.selectSources(req.Sources)
	if err != nil {
		return Output{}, err
	}
	limit := max(req.Limit, 1)

	runID := uuid.NewString()
	log := o.log.With(zap.String("run_id", runID))
	log.Info("aggregation started",
		zap.String("query", query),
		zap.Int("limit", limit),
		zap.Int("sources", len(selected)))
	o.metrics.observeRun()

	outcomes := make(chan outcome, len(selected))
	go func() {
		var g errgroup.Group
		g.SetLimit(min(o.cfg.MaxWorkers, len(selected)))
		for _, s := range selected {
			g.Go(func() error {
				outcomes <- o.fetch(ctx, log, s, query, limit, req.Year)
				return nil
			})
		}
		_ = g.Wait()
		close(outcomes)
	}()

	out := Output{
		RunID:        runID,
		SourceCounts: make(map[string]int, len(selected)),
		SourceErrors: make(map[string]string),
	}
	var all []types.Record
	for oc := range outcomes {
		if oc.err != nil {
			out.SourceErrors[oc.source] = oc.err.Error()
			out.SourceCounts[oc.source] = 0
			continue
		}
		out.SourceCounts[oc.source] = len(oc.records)
		all = append(all, oc.records...)
	}
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}
	out.Fetched = len(all)

	if req.Dedupe {
		deduped, err := o.dedup.Deduplicate(all)
		if err != nil {
			return Output{}, fmt.Errorf("deduplicating: %w", err)
		}
		out.DupsRemoved = len(all) - len(deduped)
		o.metrics.observeDuplicates(out.DupsRemoved)
		all = deduped
	}

	sortRecords(all)
	out.Records = all

	log.Info("aggregation finished",
		zap.Int("fetched", out.Fetched),
		zap.Int("returned", len(out.Records)),
		zap.Int("duplicates_removed", out.DupsRemoved),
		zap.Int("failed_sources", len(out.SourceErrors)))
	return out, nil
}

// selectSources resolves requested ids, reporting every unknown one.
func (o *Orchestrator) selectSources(requested []string) ([]Source, error) {
	if len(requested) == 0 {
		selected := make([]Source, 0, len(o.names))
		for _, name := range o.names {
			selected = append(selected, o.sources[name])
		}
		return selected, nil
	}

	var selected []Source
	var unknown []string
	seen := make(map[string]bool, len(requested))
	for _, raw := range requested {
		name := strings.ToLower(strings.TrimSpace(raw))
		if seen[name] {
			continue
		}
		seen[name] = true
		s, ok := o.sources[name]
		if !ok {
			unknown = append(unknown, raw)
			continue
		}
		selected = append(selected, s)
	}
	if len(unknown) > 0 {
		return nil, &InvalidSourceError{Unknown: unknown, Available: o.ListSources()}
	}
	return selected, nil
}

// fetch calls one source under the per-source timeout. It never returns
// records alongside an error.
func (o *Orchestrator) fetch(ctx context.Context, log *zap.Logger, s Source, query string, limit, year int) outcome {
	name := s.Name()
	start := time.Now()

	fctx, cancel := context.WithTimeout(ctx, o.cfg.SourceTimeout)
	defer cancel()

	type result struct {
		records []types.Record
		err     error
		panic   bool
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- result{err: fmt.Errorf("source panicked: %v", p), panic: true}
			}
		}()
		var (
			recs []types.Record
			err  error
		)
		if ys, ok := s.(YearSource); ok && year > 0 {
			recs, err = ys.FetchPapersInYear(fctx, query, limit, year)
		} else {
			recs, err = s.FetchPapers(fctx, query, limit)
		}
		done <- result{records: recs, err: err}
	}()

	var res result
	status := outcomeOK
	select {
	case res = <-done:
		switch {
		case res.panic:
			status = outcomePanic
		case res.err != nil:
			status = outcomeError
		}
	case <-fctx.Done():
		res = result{err: fmt.Errorf("fetch aborted after %s: %w", time.Since(start).Round(time.Millisecond), fctx.Err())}
		status = outcomeTimeout
	}
	elapsed := time.Since(start)

	if res.err != nil {
		o.metrics.observeFetch(name, status, 0, elapsed)
		log.Error("source fetch failed",
			zap.String("source", name),
			zap.String("outcome", status),
			zap.Duration("elapsed", elapsed),
			zap.Error(res.err))
		return outcome{source: name, err: res.err}
	}

	o.metrics.observeFetch(name, status, len(res.records), elapsed)
	log.Debug("source fetch finished",
		zap.String("source", name),
		zap.Int("records", len(res.records)),
		zap.Duration("elapsed", elapsed))
	return outcome{source: name, records: res.records}
}

// sortRecords orders records by year (newest first, unknown last), then
// citations (most first, unknown as zero), then case-folded title.
func sortRecords(records []types.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if ya, yb := a.Year(), b.Year(); ya != yb {
			return ya > yb
		}
		ca, _ := a.Citations()
		cb, _ := b.Citations()
		if ca != cb {
			return ca > cb
		}
		return strings.ToLower(a.Title()) < strings.ToLower(b.Title())
	})
}
