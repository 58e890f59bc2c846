// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAggregateConfigWithDefaults(t *testing.T) {
	c := AggregateConfig{}.WithDefaults()
	assert.Equal(t, DefaultMaxWorkers, c.MaxWorkers)
	assert.Equal(t, DefaultSourceTimeout, c.SourceTimeout)
	assert.Equal(t, DefaultDedupThreshold, c.DedupThreshold)
	assert.Equal(t, DefaultLimit, c.DefaultLimit)

	custom := AggregateConfig{MaxWorkers: 2, SourceTimeout: time.Second, DedupThreshold: 0.9, DefaultLimit: 3}
	assert.Equal(t, custom, custom.WithDefaults())
}

func TestAggregateConfigValidate(t *testing.T) {
	assert.NoError(t, AggregateConfig{DedupThreshold: 1}.Validate())
	assert.Error(t, AggregateConfig{DedupThreshold: 1.2}.Validate())
	assert.Error(t, AggregateConfig{DedupThreshold: -0.1}.Validate())
	assert.Error(t, AggregateConfig{MaxWorkers: -1}.Validate())
}

func TestStorageConfigValidate(t *testing.T) {
	assert.Error(t, StorageConfig{}.Validate())
	assert.NoError(t, StorageConfig{DSN: "papers.db"}.Validate())
}
