package scans

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanResult_WithIDDoesNotShareLists(t *testing.T) {
	r := ScanResult{Prediction: "Acne", CommonSymptoms: []string{"Redness"}}
	saved := r.WithID(7)

	saved.CommonSymptoms[0] = "changed"

	assert.Equal(t, int64(0), r.ID)
	assert.Equal(t, int64(7), saved.ID)
	assert.Equal(t, "Redness", r.CommonSymptoms[0])
	assert.NotNil(t, saved.TreatmentRecommendations)
}

func TestScanResult_Level(t *testing.T) {
	tests := map[string]SeverityLevel{
		"Mild":      SeverityMild,
		" moderate": SeverityModerate,
		"SEVERE":    SeveritySevere,
		"":          SeverityUnknown,
		"critical":  SeverityUnknown,
	}
	for in, want := range tests {
		assert.Equal(t, want, ScanResult{Severity: in}.Level(), in)
	}
}

func TestScanResult_Summary(t *testing.T) {
	assert.Equal(t, "Acne (Mild)", ScanResult{Prediction: "Acne", Severity: "Mild"}.Summary())
	assert.Equal(t, "Eczema", ScanResult{Prediction: "Eczema"}.Summary())
	assert.Equal(t, "unknown", ScanResult{}.Summary())
}

func TestMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "no image", err: ErrNoImage, want: "No image selected"},
		{name: "io", err: &IOError{Handle: "file:///x.jpg", Err: fs.ErrNotExist}, want: "failed to read image: file does not exist"},
		{name: "status", err: &ServiceError{StatusCode: 500}, want: "API Error: 500"},
		{name: "parse", err: &ServiceError{Err: errors.New("unexpected EOF")}, want: "invalid response: unexpected EOF"},
		{name: "store", err: fmt.Errorf("attempt: %w", &StoreError{Op: "save", Err: errors.New("disk full")}), want: "failed to save result: disk full"},
		{name: "other", err: errors.New("boom"), want: "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Message(tt.err))
		})
	}
}

func TestStateName(t *testing.T) {
	assert.Equal(t, "idle", StateName(Idle{}))
	assert.Equal(t, "loading", StateName(Loading{}))
	assert.Equal(t, "success", StateName(Success{}))
	assert.Equal(t, "error", StateName(Error{Message: "x"}))
	assert.True(t, Success{}.Terminal())
	assert.False(t, Loading{}.Terminal())
}
