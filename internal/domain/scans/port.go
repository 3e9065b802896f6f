package scans

import "context"

// Handle is an opaque reference to image bytes owned by the capture surface,
// e.g. "file:///tmp/a.jpg" or "s3://bucket/uploads/x.jpg". Empty means no image.
type Handle string

// ImageLoader resolves a handle into the bytes to upload.
type ImageLoader interface {
	Load(ctx context.Context, h Handle) ([]byte, error)
}

// Analyzer sends image bytes to the prediction service.
// The returned result is not yet persisted (ID == 0).
type Analyzer interface {
	Analyze(ctx context.Context, image []byte) (ScanResult, error)
}

// Repository port (append-only persistence)
type Repository interface {
	// Insert assigns the next id and stores the record, returning it with the id set.
	Insert(ctx context.Context, r ScanResult) (ScanResult, error)
	// QueryAll returns every record ordered by id descending.
	QueryAll(ctx context.Context) ([]ScanResult, error)
	// Get returns ErrNotFound when no record has the id.
	Get(ctx context.Context, id int64) (ScanResult, error)
}
