package schema

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/skinlytics/internal/domain/scans"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		body string
		want domain.ScanResult
	}{
		{
			name: "full response",
			body: `{"prediction":"Acne","severity":"Mild","about":"A common skin condition.",
				"common_symptoms":["Redness","Bumps"],
				"treatment_recommendations":["Wash twice daily","Avoid oily products"],
				"disclaimer":"Not medical advice."}`,
			want: domain.ScanResult{
				Prediction:               "Acne",
				Severity:                 "Mild",
				About:                    "A common skin condition.",
				Disclaimer:               "Not medical advice.",
				CommonSymptoms:           []string{"Redness", "Bumps"},
				TreatmentRecommendations: []string{"Wash twice daily", "Avoid oily products"},
			},
		},
		{
			name: "missing symptoms and disclaimer",
			body: `{"prediction":"Eczema","severity":"Moderate","about":"Dry skin.","treatment_recommendations":["Moisturize"]}`,
			want: domain.ScanResult{
				Prediction:               "Eczema",
				Severity:                 "Moderate",
				About:                    "Dry skin.",
				Disclaimer:               "",
				CommonSymptoms:           []string{},
				TreatmentRecommendations: []string{"Moisturize"},
			},
		},
		{
			name: "wrong types resolve to empty",
			body: `{"prediction":42,"severity":null,"about":["x"],"common_symptoms":"Redness","treatment_recommendations":{"a":1},"disclaimer":true}`,
			want: domain.ScanResult{
				CommonSymptoms:           []string{},
				TreatmentRecommendations: []string{},
			},
		},
		{
			name: "non-string list elements are skipped",
			body: `{"common_symptoms":["Redness",1,null,"Bumps",{"x":1}]}`,
			want: domain.ScanResult{
				CommonSymptoms:           []string{"Redness", "Bumps"},
				TreatmentRecommendations: []string{},
			},
		},
		{
			name: "unknown fields ignored",
			body: `{"prediction":"Acne","confidence":0.93}`,
			want: domain.ScanResult{
				Prediction:               "Acne",
				CommonSymptoms:           []string{},
				TreatmentRecommendations: []string{},
			},
		},
		{
			name: "empty body",
			body: "",
			want: domain.ScanResult{
				CommonSymptoms:           []string{},
				TreatmentRecommendations: []string{},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.body))
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Decode() mismatch (-want +got):\n%s", diff)
			}
			assert.Zero(t, got.ID)
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	for _, body := range []string{`{"prediction":`, `<html>502</html>`, `["Acne"]`, `null`, `"Acne"`} {
		_, err := Decode([]byte(body))
		var svcErr *domain.ServiceError
		require.ErrorAs(t, err, &svcErr, body)
		assert.Zero(t, svcErr.StatusCode)
	}
}
