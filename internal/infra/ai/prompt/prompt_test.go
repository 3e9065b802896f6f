package prompt

import (
	"strings"
	"testing"

	"github.com/bryanwahyu/skinlytics/internal/infra/ai/schema"
)

func TestSystemPromptNamesEveryField(t *testing.T) {
	p := GetSystemPrompt()
	for _, f := range []string{
		schema.FieldPrediction,
		schema.FieldSeverity,
		schema.FieldAbout,
		schema.FieldCommonSymptoms,
		schema.FieldTreatmentRecommendations,
		schema.FieldDisclaimer,
	} {
		if !strings.Contains(p, `"`+f+`"`) {
			t.Errorf("system prompt does not mention %q", f)
		}
	}
}

func TestUserPrompt(t *testing.T) {
	if got := GetUserPrompt(1024); !strings.Contains(got, "1024 bytes") {
		t.Errorf("GetUserPrompt() = %q", got)
	}
}
