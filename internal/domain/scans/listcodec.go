package scans

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EncodeList encodes a string list for a single text column. The encoding is
// a JSON array, so any element content round-trips. An empty list encodes to "".
func EncodeList(list []string) (string, error) {
	if len(list) == 0 {
		return "", nil
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("encode list: %w", err)
	}
	return string(b), nil
}

// DecodeList is the inverse of EncodeList. "" decodes to an empty, non-nil list.
func DecodeList(data string) ([]string, error) {
	if strings.TrimSpace(data) == "" {
		return []string{}, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}
