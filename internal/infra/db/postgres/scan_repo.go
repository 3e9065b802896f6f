package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	domain "github.com/bryanwahyu/skinlytics/internal/domain/scans"
)

type ScanRepository struct{ db *sql.DB }

func NewScanRepository(db *sql.DB) *ScanRepository { return &ScanRepository{db: db} }

// Insert appends a record; the id comes from the BIGSERIAL sequence.
func (r *ScanRepository) Insert(ctx context.Context, res domain.ScanResult) (domain.ScanResult, error) {
	const q = `
INSERT INTO scan_results
  (about, common_symptoms, disclaimer, prediction, severity, treatment_recommendations)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING id;`

	symptoms, err := domain.EncodeList(res.CommonSymptoms)
	if err != nil {
		return domain.ScanResult{}, err
	}
	treatments, err := domain.EncodeList(res.TreatmentRecommendations)
	if err != nil {
		return domain.ScanResult{}, err
	}

	var id int64
	err = r.db.QueryRowContext(ctx, q, res.About, symptoms, res.Disclaimer, res.Prediction, res.Severity, treatments).Scan(&id)
	if err != nil {
		return domain.ScanResult{}, fmt.Errorf("inserting scan result: %w", err)
	}
	return res.WithID(id), nil
}

func (r *ScanRepository) QueryAll(ctx context.Context) ([]domain.ScanResult, error) {
	const q = `
SELECT id, about, common_symptoms, disclaimer, prediction, severity, treatment_recommendations
FROM scan_results
ORDER BY id DESC;`
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

func (r *ScanRepository) Get(ctx context.Context, id int64) (domain.ScanResult, error) {
	const q = `
SELECT id, about, common_symptoms, disclaimer, prediction, severity, treatment_recommendations
FROM scan_results
WHERE id=$1;`
	res, err := scanResult(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ScanResult{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.ScanResult{}, err
	}
	return res, nil
}
