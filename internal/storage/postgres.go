// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/pdiddy/paper-aggregator/pkg/types"
)

// PostgresStore keeps records in PostgreSQL through gorm.
type PostgresStore struct {
	db  *gorm.DB
	log *zap.Logger
}

// OpenPostgres connects to dsn and migrates the papers table.
func OpenPostgres(ctx context.Context, dsn string, log *zap.Logger) (*PostgresStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return newPostgresStore(ctx, db, log)
}

func newPostgresStore(ctx context.Context, db *gorm.DB, log *zap.Logger) (*PostgresStore, error) {
	if err := db.WithContext(ctx).AutoMigrate(&paperRow{}); err != nil {
		return nil, fmt.Errorf("migrating papers table: %w", err)
	}
	log.Debug("database ready")
	return &PostgresStore{db: db, log: log}, nil
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *PostgresStore) SaveMany(ctx context.Context, recs []types.Record) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	rows := make([]paperRow, 0, len(recs))
	for _, r := range recs {
		row, err := toRow(r)
		if err != nil {
			return 0, err
		}
		rows = append(rows, row)
	}

	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows)
	if res.Error != nil {
		return 0, fmt.Errorf("inserting records: %w", res.Error)
	}
	s.log.Info("saved records",
		zap.Int("offered", len(recs)),
		zap.Int64("inserted", res.RowsAffected))
	return int(res.RowsAffected), nil
}

func (s *PostgresStore) All(ctx context.Context) ([]types.Record, error) {
	var rows []paperRow
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	return records(rows, s.log), nil
}

func (s *PostgresStore) BySource(ctx context.Context, source string) ([]types.Record, error) {
	source = types.CanonicalSource(source)
	if source == "" {
		return nil, nil
	}
	var rows []paperRow
	err := s.db.WithContext(ctx).
		Where("strpos(source, ?) > 0", source).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	matched := rows[:0]
	for _, row := range rows {
		if hasSource(row.Source, source) {
			matched = append(matched, row)
		}
	}
	return records(matched, s.log), nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&paperRow{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return int(n), nil
}

func (s *PostgresStore) Exists(ctx context.Context, title string, authors []string) (bool, error) {
	t, list, ok := identity(title, authors)
	if !ok {
		return false, nil
	}
	var n int64
	err := s.db.WithContext(ctx).Model(&paperRow{}).
		Where("title = ? AND authors_json = ?", t, list).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("checking record: %w", err)
	}
	return n > 0, nil
}
