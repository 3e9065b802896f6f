package imageload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	domain "github.com/bryanwahyu/skinlytics/internal/domain/scans"
)

// DirStager keeps uploaded images in a local directory and hands out
// file:// handles for them. It is used when no object store is configured.
type DirStager struct {
	Dir string
}

// Put writes r to Dir/key and returns its handle.
func (d *DirStager) Put(ctx context.Context, key string, r io.Reader, _ int64, _ string) (domain.Handle, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := filepath.Join(d.Dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return domain.Handle(u.String()), nil
}

// Remove deletes a file previously returned by Put. Handles outside Dir are
// refused.
func (d *DirStager) Remove(ctx context.Context, h domain.Handle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	u, err := url.Parse(string(h))
	if err != nil || u.Scheme != "file" {
		return fmt.Errorf("not a staged file handle: %q", h)
	}
	dir, err := filepath.Abs(d.Dir)
	if err != nil {
		return err
	}
	path := filepath.Clean(filepath.FromSlash(u.Path))
	if !strings.HasPrefix(path, dir+string(filepath.Separator)) {
		return errors.New("handle is outside the upload directory")
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
