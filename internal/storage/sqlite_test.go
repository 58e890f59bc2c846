// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pdiddy/paper-aggregator/pkg/types"
)

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

var created = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func rec(t *testing.T, f types.RecordFields) types.Record {
	t.Helper()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = created
	}
	r, err := types.NewRecord(f)
	require.NoError(t, err)
	return r
}

func intPtr(n int) *int { return &n }

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "db", "papers.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	full := rec(t, types.RecordFields{
		Title:             "Attention Is All You Need",
		Authors:           []string{"Ashish Vaswani", "Noam Shazeer"},
		PublishedDate:     "2017-06-12",
		Source:            "arxiv,semantic_scholar",
		Abstract:          "Transformers.",
		URL:               "https://arxiv.org/abs/1706.03762",
		DOI:               "10.48550/arXiv.1706.03762",
		Keywords:          []string{"cs.CL", "cs.LG"},
		Citations:         intPtr(90000),
		Journal:           "NeurIPS",
		Volume:            "30",
		Issue:             "1",
		Pages:             "5998-6008",
		PDFURL:            "https://arxiv.org/pdf/1706.03762",
		ArxivID:           "1706.03762",
		PubMedID:          "",
		SemanticScholarID: "204e3073",
	})
	bare := rec(t, types.RecordFields{Title: "Bare", Source: "pubmed"})

	n, err := s.SaveMany(ctx, []types.Record{full, bare})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, full.Fields(), got[0].Fields())
	assert.Equal(t, bare.Fields(), got[1].Fields())
	_, ok := got[1].Citations()
	assert.False(t, ok, "absent citations stay absent")
}

func TestSQLiteSaveManyIgnoresDuplicates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := rec(t, types.RecordFields{Title: "Same Paper", Source: "arxiv"})
	b := rec(t, types.RecordFields{Title: "Same Paper", Source: "pubmed"})

	n, err := s.SaveMany(ctx, []types.Record{a, b})
	require.NoError(t, err)
	assert.Equal(t, 2, n, "different sources are different identities")

	again := rec(t, types.RecordFields{Title: "Same Paper", Source: "arxiv", Abstract: "changed"})
	n, err = s.SaveMany(ctx, []types.Record{a, again})
	require.NoError(t, err)
	assert.Zero(t, n)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSQLiteSaveManyEmpty(t *testing.T) {
	s := openTestStore(t)
	n, err := s.SaveMany(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLiteBySourceMatchesTokens(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.SaveMany(ctx, []types.Record{
		rec(t, types.RecordFields{Title: "One", Source: "arxiv"}),
		rec(t, types.RecordFields{Title: "Two", Source: "arxiv,pubmed"}),
		rec(t, types.RecordFields{Title: "Three", Source: "semantic_scholar"}),
		rec(t, types.RecordFields{Title: "Four", Source: "arxivish"}),
	})
	require.NoError(t, err)

	got, err := s.BySource(ctx, "ArXiv")
	require.NoError(t, err)
	var titles []string
	for _, r := range got {
		titles = append(titles, r.Title())
	}
	assert.Equal(t, []string{"One", "Two"}, titles)

	got, err = s.BySource(ctx, "Semantic Scholar")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Three", got[0].Title())

	got, err = s.BySource(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLiteExists(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.SaveMany(ctx, []types.Record{
		rec(t, types.RecordFields{Title: "Graph Networks", Authors: []string{"Ada", "Grace"}}),
		rec(t, types.RecordFields{Title: "No Authors"}),
	})
	require.NoError(t, err)

	tests := []struct {
		name    string
		title   string
		authors []string
		want    bool
	}{
		{"exact", "Graph Networks", []string{"Ada", "Grace"}, true},
		{"trimmed", "  Graph Networks ", []string{" Ada", "Grace", ""}, true},
		{"author order matters", "Graph Networks", []string{"Grace", "Ada"}, false},
		{"missing author", "Graph Networks", []string{"Ada"}, false},
		{"no authors", "No Authors", nil, true},
		{"unknown title", "Other", nil, false},
		{"blank title", " ", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Exists(ctx, tt.title, tt.authors)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSQLiteSkipsUnreadableRows(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "papers.db"), zap.New(core))
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	_, err = s.SaveMany(ctx, []types.Record{rec(t, types.RecordFields{Title: "Good"})})
	require.NoError(t, err)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO papers (title, authors_json, keywords_json, created_at) VALUES ('Broken', 'not json', '[]', '')`)
	require.NoError(t, err)

	got, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Good", got[0].Title())
	assert.Equal(t, 1, logs.FilterMessage("skipping unreadable row").Len())

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSQLiteReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "papers.db")
	ctx := context.Background()

	s, err := OpenSQLite(ctx, path, nil)
	require.NoError(t, err)
	_, err = s.SaveMany(ctx, []types.Record{rec(t, types.RecordFields{Title: "Persisted"})})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenSQLite(ctx, path, nil)
	require.NoError(t, err)
	defer s.Close()
	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestOpenSelectsBackend(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, types.StorageConfig{}, nil)
	require.Error(t, err)

	st, err := Open(ctx, types.StorageConfig{DSN: "sqlite://" + filepath.Join(t.TempDir(), "x.db")}, nil)
	require.NoError(t, err)
	defer st.Close()
	_, ok := st.(*SQLiteStore)
	assert.True(t, ok)

	mem, err := Open(ctx, types.StorageConfig{DSN: ":memory:"}, nil)
	require.NoError(t, err)
	defer mem.Close()
	_, ok = mem.(*SQLiteStore)
	assert.True(t, ok)
}

func TestIsPostgresDSN(t *testing.T) {
	assert.True(t, isPostgresDSN("postgres://u:p@localhost/db"))
	assert.True(t, isPostgresDSN("PostgreSQL://localhost/db"))
	assert.False(t, isPostgresDSN("papers.db"))
	assert.False(t, isPostgresDSN("sqlite://papers.db"))
}
