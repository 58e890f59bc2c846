// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package storage persists aggregated records in SQLite or PostgreSQL.
// Both backends share one table layout: authors and keywords are JSON
// arrays, and the identity tuple (title, source, doi, arxiv_id,
// pubmed_id) is unique so saving the same record twice is a no-op.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/paper-aggregator/pkg/types"
)

// Store is a persistent collection of records.
type Store interface {
	// SaveMany inserts records, skipping those whose identity tuple is
	// already stored, and returns how many rows were added.
	SaveMany(ctx context.Context, records []types.Record) (int, error)

	// All returns every stored record in insertion order.
	All(ctx context.Context) ([]types.Record, error)

	// BySource returns records whose source list contains source.
	BySource(ctx context.Context, source string) ([]types.Record, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// Exists reports whether a record with this exact title and author
	// list is stored.
	Exists(ctx context.Context, title string, authors []string) (bool, error)

	Close() error
}

// Open selects the backend from the DSN: postgres:// and postgresql://
// URLs go to PostgreSQL, anything else is a SQLite path (an optional
// sqlite:// prefix is stripped).
func Open(ctx context.Context, cfg types.StorageConfig, log *zap.Logger) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	if isPostgresDSN(cfg.DSN) {
		return OpenPostgres(ctx, cfg.DSN, log.Named("postgres"))
	}
	return OpenSQLite(ctx, strings.TrimPrefix(cfg.DSN, "sqlite://"), log.Named("sqlite"))
}

func isPostgresDSN(dsn string) bool {
	lower := strings.ToLower(dsn)
	return strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://")
}

// paperRow is the persisted form of a Record. The gorm tags drive the
// PostgreSQL migration; the SQLite schema mirrors them by hand.
type paperRow struct {
	ID                uint      `gorm:"primaryKey"`
	Title             string    `gorm:"column:title;not null;index:idx_papers_identity,unique"`
	AuthorsJSON       string    `gorm:"column:authors_json;type:text;not null"`
	PublishedDate     string    `gorm:"column:published_date"`
	Source            string    `gorm:"column:source;not null;default:'';index:idx_papers_identity,unique"`
	Abstract          string    `gorm:"column:abstract;type:text"`
	URL               string    `gorm:"column:url"`
	DOI               string    `gorm:"column:doi;not null;default:'';index:idx_papers_identity,unique"`
	KeywordsJSON      string    `gorm:"column:keywords_json;type:text;not null"`
	Citations         *int      `gorm:"column:citations"`
	Journal           string    `gorm:"column:journal"`
	Volume            string    `gorm:"column:volume"`
	Issue             string    `gorm:"column:issue"`
	Pages             string    `gorm:"column:pages"`
	PDFURL            string    `gorm:"column:pdf_url"`
	ArxivID           string    `gorm:"column:arxiv_id;not null;default:'';index:idx_papers_identity,unique"`
	PubMedID          string    `gorm:"column:pubmed_id;not null;default:'';index:idx_papers_identity,unique"`
	SemanticScholarID string    `gorm:"column:semantic_scholar_id"`
	CreatedAt         time.Time `gorm:"column:created_at;not null"`
}

func (paperRow) TableName() string { return "papers" }

func toRow(r types.Record) (paperRow, error) {
	authors, err := encodeList(r.Authors())
	if err != nil {
		return paperRow{}, fmt.Errorf("encoding authors: %w", err)
	}
	keywords, err := encodeList(r.Keywords())
	if err != nil {
		return paperRow{}, fmt.Errorf("encoding keywords: %w", err)
	}
	row := paperRow{
		Title:             r.Title(),
		AuthorsJSON:       authors,
		PublishedDate:     r.PublishedDate(),
		Source:            r.Source(),
		Abstract:          r.Abstract(),
		URL:               r.URL(),
		DOI:               r.DOI(),
		KeywordsJSON:      keywords,
		Journal:           r.Journal(),
		Volume:            r.Volume(),
		Issue:             r.Issue(),
		Pages:             r.Pages(),
		PDFURL:            r.PDFURL(),
		ArxivID:           r.ArxivID(),
		PubMedID:          r.PubMedID(),
		SemanticScholarID: r.SemanticScholarID(),
		CreatedAt:         r.CreatedAt().UTC(),
	}
	if n, ok := r.Citations(); ok {
		row.Citations = &n
	}
	return row, nil
}

func (row paperRow) record() (types.Record, error) {
	f := types.RecordFields{
		Title:             row.Title,
		PublishedDate:     row.PublishedDate,
		Source:            row.Source,
		Abstract:          row.Abstract,
		URL:               row.URL,
		DOI:               row.DOI,
		Citations:         row.Citations,
		Journal:           row.Journal,
		Volume:            row.Volume,
		Issue:             row.Issue,
		Pages:             row.Pages,
		PDFURL:            row.PDFURL,
		ArxivID:           row.ArxivID,
		PubMedID:          row.PubMedID,
		SemanticScholarID: row.SemanticScholarID,
		CreatedAt:         row.CreatedAt,
	}
	if err := decodeList(row.AuthorsJSON, &f.Authors); err != nil {
		return types.Record{}, fmt.Errorf("decoding authors: %w", err)
	}
	if err := decodeList(row.KeywordsJSON, &f.Keywords); err != nil {
		return types.Record{}, fmt.Errorf("decoding keywords: %w", err)
	}
	return types.NewRecord(f)
}

// records converts rows, skipping any that no longer validate.
func records(rows []paperRow, log *zap.Logger) []types.Record {
	out := make([]types.Record, 0, len(rows))
	for _, row := range rows {
		r, err := row.record()
		if err != nil {
			log.Warn("skipping unreadable row", zap.Uint("id", row.ID), zap.Error(err))
			continue
		}
		out = append(out, r)
	}
	return out
}

// hasSource reports whether the comma-separated marker contains source.
func hasSource(marker, source string) bool {
	for _, tok := range types.SourceTokens(marker) {
		if tok == source {
			return true
		}
	}
	return false
}

// identity normalizes an Exists lookup the same way NewRecord normalizes
// stored records.
func identity(title string, authors []string) (string, string, bool) {
	r, err := types.NewRecord(types.RecordFields{Title: title, Authors: authors})
	if err != nil {
		return "", "", false
	}
	list, err := encodeList(r.Authors())
	if err != nil {
		return "", "", false
	}
	return r.Title(), list, true
}

func encodeList(in []string) (string, error) {
	if len(in) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(in)
	return string(b), err
}

func decodeList(s string, out *[]string) error {
	if s == "" {
		return nil
	}
	return json.Unmarshal([]byte(s), out)
}
