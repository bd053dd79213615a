package main

import (
	"context"
	"database/sql"
	"log"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// journal is an optional append-only log of resolution outcomes. It is never
// read back into the pipeline.
type journal struct {
	db *sql.DB
}

// openJournal connects to MySQL when DB_NAME is set; otherwise journaling is
// disabled and a nil journal is returned.
func openJournal(ctx context.Context, cfg config) (*journal, error) {
	if cfg.DBName == "" {
		return nil, nil
	}

	db, err := sql.Open("mysql", cfg.dsn())
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := ensureResolutionsTable(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &journal{db: db}, nil
}

func ensureResolutionsTable(ctx context.Context, db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS resolutions (
  id BIGINT AUTO_INCREMENT PRIMARY KEY,
  short_url VARCHAR(512) NOT NULL,
  place_name VARCHAR(255) NULL,
  latitude DECIMAL(10,7) NULL,
  longitude DECIMAL(10,7) NULL,
  strategy VARCHAR(64) NULL,
  resolved TINYINT(1) NOT NULL DEFAULT 0,
  took_ms INT NOT NULL,
  created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`
	_, err := db.ExecContext(ctx, ddl)
	return err
}

func (j *journal) record(ctx context.Context, shortURL string, res result, took time.Duration) {
	if j == nil {
		return
	}

	const stmt = `
INSERT INTO resolutions (short_url, place_name, latitude, longitude, strategy, resolved, took_ms, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	lat, lng := sql.NullFloat64{}, sql.NullFloat64{}
	if res.Resolved {
		lat = sql.NullFloat64{Float64: res.Coord.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: res.Coord.Lng, Valid: true}
	}

	_, err := j.db.ExecContext(ctx, stmt,
		shortURL,
		nullString(res.PlaceName),
		lat,
		lng,
		nullString(res.Strategy),
		res.Resolved,
		took.Milliseconds(),
		time.Now(),
	)
	if err != nil {
		log.Printf("   warning: unable to journal resolution of %s: %v", shortURL, err)
	}
}

func (j *journal) close() {
	if j == nil {
		return
	}
	j.db.Close()
}

func nullString(value string) sql.NullString {
	value = strings.TrimSpace(value)
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
