// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/pdiddy/paper-aggregator/pkg/types"
)

// SQLiteStore keeps records in a local SQLite file.
type SQLiteStore struct {
	db  *sql.DB
	log *zap.Logger
}

const sqliteSchema = `CREATE TABLE IF NOT EXISTS papers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	authors_json TEXT NOT NULL,
	published_date TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL DEFAULT '',
	abstract TEXT NOT NULL DEFAULT '',
	url TEXT NOT NULL DEFAULT '',
	doi TEXT NOT NULL DEFAULT '',
	keywords_json TEXT NOT NULL,
	citations INTEGER,
	journal TEXT NOT NULL DEFAULT '',
	volume TEXT NOT NULL DEFAULT '',
	issue TEXT NOT NULL DEFAULT '',
	pages TEXT NOT NULL DEFAULT '',
	pdf_url TEXT NOT NULL DEFAULT '',
	arxiv_id TEXT NOT NULL DEFAULT '',
	pubmed_id TEXT NOT NULL DEFAULT '',
	semantic_scholar_id TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	UNIQUE(title, source, doi, arxiv_id, pubmed_id)
)`

const selectColumns = `id, title, authors_json, published_date, source, abstract, url, doi,
	keywords_json, citations, journal, volume, issue, pages, pdf_url,
	arxiv_id, pubmed_id, semantic_scholar_id, created_at`

// OpenSQLite opens or creates the database at path, creating parent
// directories and the schema as needed. ":memory:" is accepted.
func OpenSQLite(ctx context.Context, path string, log *zap.Logger) (*SQLiteStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serializes
	// writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	log.Debug("database ready", zap.String("path", path))
	return &SQLiteStore{db: db, log: log}, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveMany inserts records in one transaction.
func (s *SQLiteStore) SaveMany(ctx context.Context, recs []types.Record) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO papers (title, authors_json, published_date, source, abstract, url, doi,
			keywords_json, citations, journal, volume, issue, pages, pdf_url,
			arxiv_id, pubmed_id, semantic_scholar_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, r := range recs {
		row, err := toRow(r)
		if err != nil {
			return 0, err
		}
		res, err := stmt.ExecContext(ctx,
			row.Title, row.AuthorsJSON, row.PublishedDate, row.Source, row.Abstract,
			row.URL, row.DOI, row.KeywordsJSON, row.Citations, row.Journal,
			row.Volume, row.Issue, row.Pages, row.PDFURL, row.ArxivID,
			row.PubMedID, row.SemanticScholarID, row.CreatedAt.Format(time.RFC3339Nano),
		)
		if err != nil {
			return 0, fmt.Errorf("inserting %q: %w", row.Title, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("counting inserted rows: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing: %w", err)
	}
	s.log.Info("saved records",
		zap.Int("offered", len(recs)),
		zap.Int("inserted", inserted))
	return inserted, nil
}

// All returns every stored record in insertion order.
func (s *SQLiteStore) All(ctx context.Context) ([]types.Record, error) {
	rows, err := s.query(ctx, `SELECT `+selectColumns+` FROM papers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return records(rows, s.log), nil
}

// BySource narrows with a substring match and then compares source
// tokens exactly, so "arxiv" finds records merged as "arxiv,pubmed".
func (s *SQLiteStore) BySource(ctx context.Context, source string) ([]types.Record, error) {
	source = types.CanonicalSource(source)
	if source == "" {
		return nil, nil
	}
	rows, err := s.query(ctx,
		`SELECT `+selectColumns+` FROM papers WHERE instr(source, ?) > 0 ORDER BY id`, source)
	if err != nil {
		return nil, err
	}
	var matched []paperRow
	for _, row := range rows {
		if hasSource(row.Source, source) {
			matched = append(matched, row)
		}
	}
	return records(matched, s.log), nil
}

// Count returns the number of stored records.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM papers`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return n, nil
}

// Exists matches the normalized title and author list exactly.
func (s *SQLiteStore) Exists(ctx context.Context, title string, authors []string) (bool, error) {
	t, list, ok := identity(title, authors)
	if !ok {
		return false, nil
	}
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM papers WHERE title = ? AND authors_json = ?`, t, list,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking record: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) query(ctx context.Context, q string, args ...any) ([]paperRow, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var out []paperRow
	for rows.Next() {
		var (
			row       paperRow
			citations sql.NullInt64
			created   string
		)
		if err := rows.Scan(
			&row.ID, &row.Title, &row.AuthorsJSON, &row.PublishedDate, &row.Source,
			&row.Abstract, &row.URL, &row.DOI, &row.KeywordsJSON, &citations,
			&row.Journal, &row.Volume, &row.Issue, &row.Pages, &row.PDFURL,
			&row.ArxivID, &row.PubMedID, &row.SemanticScholarID, &created,
		); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		if citations.Valid {
			n := int(citations.Int64)
			row.Citations = &n
		}
		if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
			row.CreatedAt = t
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
