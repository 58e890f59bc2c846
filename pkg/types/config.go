// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"time"
)

// Defaults applied by the CLI and by constructors that receive zero values.
const (
	DefaultMaxWorkers     = 4
	DefaultSourceTimeout  = 30 * time.Second
	DefaultDedupThreshold = 0.96
	DefaultLimit          = 10
	DefaultUserAgent      = "paper-aggregator/0.1 (+https://github.com/pdiddy/paper-aggregator)"
)

// HTTPConfig holds shared HTTP settings used by the source adapters.
type HTTPConfig struct {
	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is sent with every provider request.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// MaxRetries bounds retries on HTTP 429 and 5xx responses.
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// AggregateConfig holds settings for the aggregation orchestrator.
type AggregateConfig struct {
	// MaxWorkers caps the number of sources fetched in parallel (default 4).
	MaxWorkers int `json:"max_workers" yaml:"max_workers" mapstructure:"max_workers"`

	// SourceTimeout bounds a single source fetch (default 30s). A source
	// that exceeds it contributes zero records.
	SourceTimeout time.Duration `json:"source_timeout" yaml:"source_timeout" mapstructure:"source_timeout"`

	// DedupThreshold is the title similarity at or above which two records
	// are treated as the same work (default 0.96).
	DedupThreshold float64 `json:"dedup_threshold" yaml:"dedup_threshold" mapstructure:"dedup_threshold"`

	// DefaultLimit is the per-source limit when the caller gives none.
	DefaultLimit int `json:"default_limit" yaml:"default_limit" mapstructure:"default_limit"`
}

// WithDefaults returns a copy of c with zero values replaced by defaults.
func (c AggregateConfig) WithDefaults() AggregateConfig {
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = DefaultMaxWorkers
	}
	if c.SourceTimeout <= 0 {
		c.SourceTimeout = DefaultSourceTimeout
	}
	if c.DedupThreshold == 0 {
		c.DedupThreshold = DefaultDedupThreshold
	}
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = DefaultLimit
	}
	return c
}

// Validate rejects settings that cannot be defaulted.
func (c AggregateConfig) Validate() error {
	if c.DedupThreshold < 0 || c.DedupThreshold > 1 {
		return fmt.Errorf("dedup_threshold must be within [0, 1], got %v", c.DedupThreshold)
	}
	if c.MaxWorkers < 0 {
		return fmt.Errorf("max_workers must not be negative, got %d", c.MaxWorkers)
	}
	return nil
}

// SourcesConfig selects and configures the provider adapters.
type SourcesConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Enabled lists the adapters to register; empty means all.
	Enabled []string `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// SemanticScholarAPIKey is an optional key for higher rate limits.
	SemanticScholarAPIKey string `json:"semantic_scholar_api_key,omitempty" yaml:"semantic_scholar_api_key,omitempty" mapstructure:"semantic_scholar_api_key"`

	// PubMedAPIKey is an optional NCBI E-utilities key.
	PubMedAPIKey string `json:"pubmed_api_key,omitempty" yaml:"pubmed_api_key,omitempty" mapstructure:"pubmed_api_key"`

	// PubMedEmail identifies the caller to NCBI as their usage policy asks.
	PubMedEmail string `json:"pubmed_email,omitempty" yaml:"pubmed_email,omitempty" mapstructure:"pubmed_email"`
}

// StorageConfig selects the record store.
type StorageConfig struct {
	// DSN is a SQLite file path, or a postgres:// URL for PostgreSQL.
	DSN string `json:"dsn" yaml:"dsn" mapstructure:"dsn"`
}

// Validate rejects an empty DSN.
func (c StorageConfig) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("storage dsn is empty")
	}
	return nil
}

// Config groups all settings of the aggregator.
type Config struct {
	Aggregate AggregateConfig `json:"aggregate" yaml:"aggregate" mapstructure:"aggregate"`
	Sources   SourcesConfig   `json:"sources" yaml:"sources" mapstructure:"sources"`
	Storage   StorageConfig   `json:"storage" yaml:"storage" mapstructure:"storage"`
}
