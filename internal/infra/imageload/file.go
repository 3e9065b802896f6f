// Package imageload resolves opaque image handles into upload bytes.
package imageload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	domain "github.com/bryanwahyu/skinlytics/internal/domain/scans"
)

// DefaultMaxBytes caps how much of an image is read.
const DefaultMaxBytes = 10 << 20

var errTooLarge = errors.New("image exceeds size limit")

// FileLoader reads file:// handles and bare paths.
//
// When CacheDir is set the source is first copied into a temporary file there
// and the upload bytes are read from that copy, which is removed afterwards.
// When Roots is non-empty the path must be inside one of them.
type FileLoader struct {
	CacheDir string
	Roots    []string
	MaxBytes int64
}

func (l *FileLoader) Load(ctx context.Context, h domain.Handle) ([]byte, error) {
	fail := func(err error) ([]byte, error) {
		return nil, &domain.IOError{Handle: h, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	path, err := filePath(h)
	if err != nil {
		return fail(err)
	}
	if err := l.checkRoots(path); err != nil {
		return fail(err)
	}

	src, err := os.Open(path)
	if err != nil {
		return fail(err)
	}
	defer src.Close()

	if l.CacheDir == "" {
		b, err := l.readLimited(src)
		if err != nil {
			return fail(err)
		}
		return b, nil
	}

	b, err := l.stage(src)
	if err != nil {
		return fail(err)
	}
	return b, nil
}

func (l *FileLoader) stage(src io.Reader) ([]byte, error) {
	if err := os.MkdirAll(l.CacheDir, 0o700); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(l.CacheDir, "upload-*.jpg")
	if err != nil {
		return nil, fmt.Errorf("create staging file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	limit := l.maxBytes()
	n, err := io.Copy(tmp, io.LimitReader(src, limit+1))
	if err != nil {
		return nil, fmt.Errorf("stage image: %w", err)
	}
	if n > limit {
		return nil, errTooLarge
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return io.ReadAll(tmp)
}

func (l *FileLoader) readLimited(r io.Reader) ([]byte, error) {
	limit := l.maxBytes()
	b, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > limit {
		return nil, errTooLarge
	}
	return b, nil
}

func (l *FileLoader) maxBytes() int64 {
	if l.MaxBytes > 0 {
		return l.MaxBytes
	}
	return DefaultMaxBytes
}

func (l *FileLoader) checkRoots(path string) error {
	if len(l.Roots) == 0 {
		return nil
	}
	for _, root := range l.Roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(abs, path)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil
		}
	}
	return fmt.Errorf("path %s is outside the allowed directories", path)
}

// filePath turns a file:// URI or bare path into a clean absolute path.
func filePath(h domain.Handle) (string, error) {
	raw := string(h)
	if strings.HasPrefix(raw, "file://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("invalid file handle: %w", err)
		}
		if u.Host != "" && u.Host != "localhost" {
			return "", fmt.Errorf("remote file host %q not supported", u.Host)
		}
		raw = u.Path
	}
	if raw == "" {
		return "", errors.New("empty path")
	}
	if strings.ContainsRune(raw, 0) {
		return "", errors.New("invalid characters in path")
	}
	return filepath.Abs(filepath.Clean(raw))
}
