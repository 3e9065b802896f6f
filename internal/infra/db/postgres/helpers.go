package postgres

import (
	"database/sql"

	domain "github.com/bryanwahyu/skinlytics/internal/domain/scans"
)

type rowScanner interface {
	Scan(dest ...any) error
}

// scanResult reads one scan_results row, tolerating NULL columns.
func scanResult(row rowScanner) (domain.ScanResult, error) {
	var (
		r                                domain.ScanResult
		about, symptoms, disclaimer      sql.NullString
		prediction, severity, treatments sql.NullString
	)
	if err := row.Scan(&r.ID, &about, &symptoms, &disclaimer, &prediction, &severity, &treatments); err != nil {
		return domain.ScanResult{}, err
	}
	r.About = about.String
	r.Disclaimer = disclaimer.String
	r.Prediction = prediction.String
	r.Severity = severity.String

	var err error
	if r.CommonSymptoms, err = domain.DecodeList(symptoms.String); err != nil {
		return domain.ScanResult{}, err
	}
	if r.TreatmentRecommendations, err = domain.DecodeList(treatments.String); err != nil {
		return domain.ScanResult{}, err
	}
	return r, nil
}
