package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

const createScanResults = `
CREATE TABLE IF NOT EXISTS scan_results (
  id BIGSERIAL PRIMARY KEY,
  about TEXT,
  common_symptoms TEXT,
  disclaimer TEXT,
  prediction TEXT,
  severity TEXT,
  treatment_recommendations TEXT
);`

// Migrate creates the scan_results table when it does not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, createScanResults); err != nil {
		return fmt.Errorf("migrate scan_results: %w", err)
	}
	return nil
}
