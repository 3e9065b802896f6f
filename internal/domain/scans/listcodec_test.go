package scans

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeList_Empty(t *testing.T) {
	enc, err := EncodeList(nil)
	require.NoError(t, err)
	assert.Equal(t, "", enc)

	enc, err = EncodeList([]string{})
	require.NoError(t, err)
	assert.Equal(t, "", enc)
}

func TestDecodeList_Empty(t *testing.T) {
	got, err := DecodeList("")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestListRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   []string
	}{
		{name: "single", in: []string{"Redness"}},
		{name: "ordered", in: []string{"Wash twice daily", "Avoid oily products", "See a dermatologist"}},
		{name: "old delimiter inside element", in: []string{"a|;|b", "|;|", "c"}},
		{name: "empty element", in: []string{"", "x", ""}},
		{name: "quotes and commas", in: []string{`say "hi"`, "a, b", "[1,2]"}},
		{name: "newlines and unicode", in: []string{"line1\nline2", "rougeur ✓"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := EncodeList(tt.in)
			require.NoError(t, err)
			got, err := DecodeList(enc)
			require.NoError(t, err)
			assert.Equal(t, tt.in, got)
		})
	}
}

func TestDecodeList_Invalid(t *testing.T) {
	_, err := DecodeList("Redness|;|Bumps")
	assert.Error(t, err)
}

func TestDecodeList_Null(t *testing.T) {
	got, err := DecodeList("null")
	require.NoError(t, err)
	assert.Equal(t, []string{}, got)
}
