// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dedup

import (
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/paper-aggregator/pkg/types"
)

// now stamps merged records. Tests override it.
var now = time.Now

// Engine clusters records whose normalized titles are at least Threshold
// similar and merges each cluster. An Engine holds no per-call state and
// is safe for concurrent use.
type Engine struct {
	threshold float64
	log       *zap.Logger
}

// New returns an Engine. A threshold outside (0, 1] falls back to
// types.DefaultDedupThreshold; a nil logger discards output.
func New(threshold float64, log *zap.Logger) *Engine {
	if threshold <= 0 || threshold > 1 {
		threshold = types.DefaultDedupThreshold
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{threshold: threshold, log: log}
}

// Threshold returns the similarity at or above which records cluster.
func (e *Engine) Threshold() float64 { return e.threshold }

type cluster struct {
	key     string
	members []types.Record
}

// Deduplicate groups records greedily: each record joins the first
// existing cluster whose key (the normalized title of its first member)
// is similar enough, or opens a new one. The output has one record per
// cluster in the order clusters were opened. Records whose normalized
// title is empty are dropped.
//
// Cluster membership depends on input order; two equally good clusters
// never compete for a record because the earlier one always wins.
func (e *Engine) Deduplicate(records []types.Record) ([]types.Record, error) {
	if len(records) == 0 {
		return nil, nil
	}

	var clusters []*cluster
	for _, r := range records {
		key := NormalizeTitle(r.Title())
		if key == "" {
			e.log.Warn("skipping record with empty normalized title",
				zap.String("title", r.Title()), zap.String("source", r.Source()))
			continue
		}

		var home *cluster
		for _, c := range clusters {
			if Similarity(key, c.key) >= e.threshold {
				home = c
				break
			}
		}
		if home == nil {
			home = &cluster{key: key}
			clusters = append(clusters, home)
		}
		home.members = append(home.members, r)
	}

	out := make([]types.Record, 0, len(clusters))
	for _, c := range clusters {
		merged, err := MergeCluster(c.members)
		if err != nil {
			return nil, err
		}
		if len(c.members) > 1 {
			e.log.Debug("merged duplicate cluster",
				zap.String("key", c.key),
				zap.Int("members", len(c.members)),
				zap.String("title", merged.Title()),
				zap.String("source", merged.Source()))
		}
		out = append(out, merged)
	}

	e.log.Debug("deduplication complete",
		zap.Int("input", len(records)),
		zap.Int("output", len(out)),
		zap.Float64("threshold", e.threshold))
	return out, nil
}
