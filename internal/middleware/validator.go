package middleware

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
)

// ValidateHandle checks an image handle before it reaches the controller.
// An empty handle is allowed; the controller reports it as "No image selected".
func ValidateHandle(handle string, schemes []string) error {
	if handle == "" {
		return nil
	}
	if len(handle) > 2048 {
		return fmt.Errorf("handle too long")
	}
	if strings.ContainsAny(handle, "\x00\n\r") {
		return fmt.Errorf("invalid characters in handle")
	}

	scheme := "file"
	if i := strings.Index(handle, "://"); i > 0 {
		u, err := url.Parse(handle)
		if err != nil {
			return fmt.Errorf("invalid handle: %w", err)
		}
		scheme = strings.ToLower(u.Scheme)
	}
	if len(schemes) > 0 {
		ok := false
		for _, s := range schemes {
			if strings.EqualFold(s, scheme) {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("unsupported handle scheme: %s (allowed: %s)", scheme, strings.Join(schemes, ", "))
		}
	}
	if scheme == "file" {
		p := strings.TrimPrefix(handle, "file://")
		return ValidatePath(p)
	}
	return nil
}

// ValidatePath validates file paths (for security)
func ValidatePath(path string) error {
	if path == "" {
		return nil
	}

	for _, seg := range strings.Split(filepath.ToSlash(path), "/") {
		if seg == ".." {
			return fmt.Errorf("path traversal detected")
		}
	}

	cleaned := filepath.Clean(path)
	blocked := []string{"/etc", "/proc", "/sys", "/dev", "/boot"}
	for _, b := range blocked {
		if cleaned == b || strings.HasPrefix(cleaned, b+"/") {
			return fmt.Errorf("access to %s is not allowed", b)
		}
	}

	dangerous := []string{"$(", "`", "&", "|", ";", "\n", "\r"}
	for _, d := range dangerous {
		if strings.Contains(path, d) {
			return fmt.Errorf("invalid characters in path")
		}
	}
	return nil
}

// ValidateImageExt accepts the upload extensions the prediction service understands.
func ValidateImageExt(filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp", ".heic":
		return ext, nil
	case "":
		return ".jpg", nil
	default:
		return "", fmt.Errorf("unsupported image type %q", ext)
	}
}

// ValidateID parses a positive record id.
func ValidateID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

// ValidateLimit clamps a page size; 0 means no limit.
func ValidateLimit(limit int) int {
	if limit < 0 {
		return 0
	}
	if limit > 500 {
		return 500
	}
	return limit
}
