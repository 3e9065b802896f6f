// Package schema decodes the prediction service's JSON response.
//
// Decoding is field-by-field: a missing or wrong-typed field becomes the
// empty value of its type and never fails the call. Only a body that is not
// a JSON object at all is an error.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	domain "github.com/bryanwahyu/skinlytics/internal/domain/scans"
)

// Field names of the prediction response.
const (
	FieldAbout                    = "about"
	FieldCommonSymptoms           = "common_symptoms"
	FieldDisclaimer               = "disclaimer"
	FieldPrediction               = "prediction"
	FieldSeverity                 = "severity"
	FieldTreatmentRecommendations = "treatment_recommendations"
)

var errNotObject = errors.New("response is not a JSON object")

// Decode turns a response body into an unpersisted ScanResult.
// An empty body is treated as {}.
func Decode(body []byte) (domain.ScanResult, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		body = []byte("{}")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return domain.ScanResult{}, &domain.ServiceError{Err: fmt.Errorf("decode prediction: %w", err)}
	}
	if fields == nil {
		return domain.ScanResult{}, &domain.ServiceError{Err: errNotObject}
	}

	return domain.ScanResult{
		About:                    stringField(fields[FieldAbout]),
		CommonSymptoms:           listField(fields[FieldCommonSymptoms]),
		Disclaimer:               stringField(fields[FieldDisclaimer]),
		Prediction:               stringField(fields[FieldPrediction]),
		Severity:                 stringField(fields[FieldSeverity]),
		TreatmentRecommendations: listField(fields[FieldTreatmentRecommendations]),
	}, nil
}

func stringField(raw json.RawMessage) string {
	if raw == nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// listField keeps string elements in order and skips anything else, null included.
func listField(raw json.RawMessage) []string {
	out := []string{}
	if raw == nil {
		return out
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return out
	}
	for _, item := range items {
		if bytes.Equal(item, []byte("null")) {
			continue
		}
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			continue
		}
		out = append(out, s)
	}
	return out
}
