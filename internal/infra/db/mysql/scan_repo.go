package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	domain "github.com/bryanwahyu/skinlytics/internal/domain/scans"
)

type ScanRepository struct {
	db *sql.DB
}

func NewScanRepository(db *sql.DB) *ScanRepository {
	return &ScanRepository{db: db}
}

// Insert appends r and returns it with the auto-increment id.
func (r *ScanRepository) Insert(ctx context.Context, res domain.ScanResult) (domain.ScanResult, error) {
	const q = `
INSERT INTO scan_results
  (about, common_symptoms, disclaimer, prediction, severity, treatment_recommendations)
VALUES (?,?,?,?,?,?);
`
	symptoms, err := domain.EncodeList(res.CommonSymptoms)
	if err != nil {
		return domain.ScanResult{}, err
	}
	treatments, err := domain.EncodeList(res.TreatmentRecommendations)
	if err != nil {
		return domain.ScanResult{}, err
	}

	out, err := r.db.ExecContext(ctx, q, res.About, symptoms, res.Disclaimer, res.Prediction, res.Severity, treatments)
	if err != nil {
		return domain.ScanResult{}, fmt.Errorf("inserting scan result: %w", err)
	}
	id, err := out.LastInsertId()
	if err != nil {
		return domain.ScanResult{}, fmt.Errorf("reading insert id: %w", err)
	}
	return res.WithID(id), nil
}

// QueryAll returns every record, newest first.
func (r *ScanRepository) QueryAll(ctx context.Context) ([]domain.ScanResult, error) {
	const q = `
SELECT id, about, common_symptoms, disclaimer, prediction, severity, treatment_recommendations
FROM scan_results
ORDER BY id DESC;
`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("querying scan results: %w", err)
	}
	defer rows.Close()

	out := []domain.ScanResult{}
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// Get by ID
func (r *ScanRepository) Get(ctx context.Context, id int64) (domain.ScanResult, error) {
	const q = `
SELECT id, about, common_symptoms, disclaimer, prediction, severity, treatment_recommendations
FROM scan_results
WHERE id=? LIMIT 1;
`
	res, err := scanResult(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ScanResult{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.ScanResult{}, err
	}
	return res, nil
}
