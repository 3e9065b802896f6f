package imageload

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/skinlytics/internal/domain/scans"
)

func writeImage(t *testing.T, dir, name string, b []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func TestFileLoader_BarePathAndURI(t *testing.T) {
	dir := t.TempDir()
	path := writeImage(t, dir, "scan.jpg", []byte("jpeg-bytes"))

	l := &FileLoader{}
	got, err := l.Load(context.Background(), domain.Handle(path))
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), got)

	got, err = l.Load(context.Background(), domain.Handle("file://"+filepath.ToSlash(path)))
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), got)
}

func TestFileLoader_StagesThroughCacheDir(t *testing.T) {
	src := t.TempDir()
	cache := filepath.Join(t.TempDir(), "cache")
	path := writeImage(t, src, "scan.jpg", []byte("staged"))

	l := &FileLoader{CacheDir: cache}
	got, err := l.Load(context.Background(), domain.Handle(path))
	require.NoError(t, err)
	assert.Equal(t, []byte("staged"), got)

	entries, err := os.ReadDir(cache)
	require.NoError(t, err)
	assert.Empty(t, entries, "staging file should be removed")
}

func TestFileLoader_MissingFileIsIOError(t *testing.T) {
	l := &FileLoader{}
	_, err := l.Load(context.Background(), domain.Handle(filepath.Join(t.TempDir(), "nope.jpg")))

	var ioErr *domain.IOError
	require.ErrorAs(t, err, &ioErr)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.True(t, strings.HasPrefix(domain.Message(err), "failed to read image: "))
}

func TestFileLoader_SizeLimit(t *testing.T) {
	dir := t.TempDir()
	path := writeImage(t, dir, "big.jpg", bytes.Repeat([]byte("x"), 64))

	for _, cache := range []string{"", t.TempDir()} {
		l := &FileLoader{MaxBytes: 16, CacheDir: cache}
		_, err := l.Load(context.Background(), domain.Handle(path))
		assert.ErrorIs(t, err, errTooLarge, "cacheDir=%q", cache)
	}
}

func TestFileLoader_Roots(t *testing.T) {
	allowed := t.TempDir()
	other := t.TempDir()
	inside := writeImage(t, allowed, "a.jpg", []byte("a"))
	outside := writeImage(t, other, "b.jpg", []byte("b"))

	l := &FileLoader{Roots: []string{allowed}}
	_, err := l.Load(context.Background(), domain.Handle(inside))
	require.NoError(t, err)

	_, err = l.Load(context.Background(), domain.Handle(outside))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside the allowed directories")

	_, err = l.Load(context.Background(), domain.Handle(filepath.Join(allowed, "..", filepath.Base(other), "b.jpg")))
	require.Error(t, err)
}

func TestFileLoader_RejectsRemoteHost(t *testing.T) {
	_, err := (&FileLoader{}).Load(context.Background(), "file://example.com/scan.jpg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not supported")
}

func TestFileLoader_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&FileLoader{}).Load(ctx, "/tmp/anything.jpg")
	assert.ErrorIs(t, err, context.Canceled)
}

type stubLoader struct{ got domain.Handle }

func (s *stubLoader) Load(_ context.Context, h domain.Handle) ([]byte, error) {
	s.got = h
	return []byte("stub"), nil
}

func TestRouter_DispatchesByScheme(t *testing.T) {
	file := &stubLoader{}
	s3 := &stubLoader{}
	r := NewRouter()
	r.Register("file", file)
	r.Register("S3", s3)

	_, err := r.Load(context.Background(), "s3://bucket/key.jpg")
	require.NoError(t, err)
	assert.Equal(t, domain.Handle("s3://bucket/key.jpg"), s3.got)

	_, err = r.Load(context.Background(), "/tmp/plain.jpg")
	require.NoError(t, err)
	assert.Equal(t, domain.Handle("/tmp/plain.jpg"), file.got)

	_, err = r.Load(context.Background(), "ftp://host/x.jpg")
	var ioErr *domain.IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Contains(t, err.Error(), `unsupported handle scheme "ftp"`)

	assert.ElementsMatch(t, []string{"file", "s3"}, r.Schemes())
}

func TestScheme(t *testing.T) {
	tests := map[domain.Handle]string{
		"file:///a.jpg":  "file",
		"S3://b/k":       "s3",
		"/abs/path.jpg":  "file",
		"relative.jpg":   "file",
		"://missing.jpg": "file",
	}
	for h, want := range tests {
		assert.Equal(t, want, Scheme(h), "handle %q", h)
	}
}

func TestDirStager_RoundTripsThroughFileLoader(t *testing.T) {
	dir := t.TempDir()
	stager := &DirStager{Dir: dir}

	h, err := stager.Put(context.Background(), "uploads/abc.jpg", strings.NewReader("uploaded"), 8, "image/jpeg")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(h), "file://"), "got %q", h)

	got, err := (&FileLoader{Roots: []string{dir}}).Load(context.Background(), h)
	require.NoError(t, err)
	assert.Equal(t, []byte("uploaded"), got)

	_, err = stager.Put(context.Background(), "uploads/abc.jpg", strings.NewReader("again"), 5, "image/jpeg")
	assert.Error(t, err, "existing keys are not overwritten")
}

func TestDirStager_Remove(t *testing.T) {
	dir := t.TempDir()
	stager := &DirStager{Dir: dir}
	ctx := context.Background()

	h, err := stager.Put(ctx, "uploads/gone.jpg", strings.NewReader("x"), 1, "")
	require.NoError(t, err)

	require.NoError(t, stager.Remove(ctx, h))
	_, err = os.Stat(filepath.Join(dir, "uploads", "gone.jpg"))
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	assert.NoError(t, stager.Remove(ctx, h), "removing twice is fine")

	outside := filepath.Join(t.TempDir(), "keep.jpg")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o600))
	assert.Error(t, stager.Remove(ctx, domain.Handle("file://"+filepath.ToSlash(outside))))
	assert.FileExists(t, outside)

	assert.Error(t, stager.Remove(ctx, "s3://bucket/key.jpg"))
}
