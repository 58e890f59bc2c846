// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package render

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paper-aggregator/internal/aggregate"
	"github.com/pdiddy/paper-aggregator/pkg/types"
)

// QueryFile is a saved search: the request, its records and a summary,
// so results can be reloaded without querying the providers again.
type QueryFile struct {
	Query   QueryParams    `yaml:"query"`
	Results []types.Record `yaml:"results"`
	Summary QuerySummary   `yaml:"summary"`
}

// QueryParams stores the request in a serializable form. Author and Year
// are the post-aggregation filters the CLI applied, if any.
type QueryParams struct {
	Query   string   `yaml:"query"`
	Limit   int      `yaml:"limit"`
	Sources []string `yaml:"sources,omitempty"`
	Dedupe  bool     `yaml:"dedupe"`
	Author  string   `yaml:"author,omitempty"`
	Year    int      `yaml:"year,omitempty"`
}

// QuerySummary stores run statistics and a timestamp.
type QuerySummary struct {
	RunID             string            `yaml:"run_id,omitempty"`
	Total             int               `yaml:"total"`
	Fetched           int               `yaml:"fetched"`
	DuplicatesRemoved int               `yaml:"duplicates_removed"`
	SourceCounts      map[string]int    `yaml:"source_counts,omitempty"`
	SourceErrors      map[string]string `yaml:"source_errors,omitempty"`
	Timestamp         time.Time         `yaml:"timestamp"`
}

var now = time.Now

// NewQueryFile assembles a query file from a finished run. out.Records
// may already have been filtered by the caller.
func NewQueryFile(params QueryParams, out aggregate.Output) QueryFile {
	return QueryFile{
		Query:   params,
		Results: out.Records,
		Summary: QuerySummary{
			RunID:             out.RunID,
			Total:             len(out.Records),
			Fetched:           out.Fetched,
			DuplicatesRemoved: out.DupsRemoved,
			SourceCounts:      out.SourceCounts,
			SourceErrors:      out.SourceErrors,
			Timestamp:         now().UTC(),
		},
	}
}

// WriteQueryFile saves qf as YAML at path.
func WriteQueryFile(path string, qf QueryFile) error {
	data, err := yaml.Marshal(&qf)
	if err != nil {
		return fmt.Errorf("marshaling query file: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing query file: %w", err)
	}
	return nil
}

// ReadQueryFile loads a previously saved query file.
func ReadQueryFile(path string) (*QueryFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading query file: %w", err)
	}
	var qf QueryFile
	if err := yaml.Unmarshal(data, &qf); err != nil {
		return nil, fmt.Errorf("parsing query file: %w", err)
	}
	return &qf, nil
}

// Request converts stored parameters back into an aggregation request.
func (p QueryParams) Request() aggregate.Request {
	return aggregate.Request{
		Query:   p.Query,
		Limit:   p.Limit,
		Sources: p.Sources,
		Dedupe:  p.Dedupe,
		Year:    p.Year,
	}
}
