// Package memory is an in-process scans.Repository. Records live for the
// lifetime of the process.
package memory

import (
	"context"
	"sync"

	domain "github.com/bryanwahyu/skinlytics/internal/domain/scans"
)

type ScanRepository struct {
	mu     sync.RWMutex
	nextID int64
	rows   []domain.ScanResult // ascending id
}

func NewScanRepository() *ScanRepository {
	return &ScanRepository{nextID: 1}
}

// Insert appends a copy of r under the next id.
func (r *ScanRepository) Insert(ctx context.Context, s domain.ScanResult) (domain.ScanResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.ScanResult{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	saved := s.WithID(r.nextID)
	r.nextID++
	r.rows = append(r.rows, saved.Clone())
	return saved, nil
}

// QueryAll returns copies of every record, newest first.
func (r *ScanRepository) QueryAll(ctx context.Context) ([]domain.ScanResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.ScanResult, 0, len(r.rows))
	for i := len(r.rows) - 1; i >= 0; i-- {
		out = append(out, r.rows[i].Clone())
	}
	return out, nil
}

func (r *ScanRepository) Get(ctx context.Context, id int64) (domain.ScanResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.ScanResult{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	// ids are dense from 1
	if id < 1 || id > int64(len(r.rows)) {
		return domain.ScanResult{}, domain.ErrNotFound
	}
	return r.rows[id-1].Clone(), nil
}
