package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	// test ping
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
  id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
  about TEXT,
  common_symptoms TEXT,
  disclaimer TEXT,
  prediction VARCHAR(255),
  severity VARCHAR(64),
  treatment_recommendations TEXT
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
`

// Migrate creates the scan_results table when it does not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, createScanResults); err != nil {
		return fmt.Errorf("migrate scan_results: %w", err)
	}
	return nil
}
