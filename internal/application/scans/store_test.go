package scans

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/skinlytics/internal/domain/scans"
	"github.com/bryanwahyu/skinlytics/internal/feed"
	"github.com/bryanwahyu/skinlytics/internal/infra/db/memory"
)

// failingRepo fails the selected operations and otherwise delegates to memory.
type failingRepo struct {
	*memory.ScanRepository
	insertErr error
	queryErr  error
	queries   int
}

func (r *failingRepo) Insert(ctx context.Context, s domain.ScanResult) (domain.ScanResult, error) {
	if r.insertErr != nil {
		return domain.ScanResult{}, r.insertErr
	}
	return r.ScanRepository.Insert(ctx, s)
}

func (r *failingRepo) QueryAll(ctx context.Context) ([]domain.ScanResult, error) {
	r.queries++
	// first call is NewStore's initial load
	if r.queryErr != nil && r.queries > 1 {
		return nil, r.queryErr
	}
	return r.ScanRepository.QueryAll(ctx)
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(context.Background(), memory.NewScanRepository(), nil)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func nextSnapshot(t *testing.T, sub *feed.Subscription[[]domain.ScanResult]) []domain.ScanResult {
	t.Helper()
	select {
	case snap, ok := <-sub.C():
		require.True(t, ok)
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot received")
		return nil
	}
}

func ids(rs []domain.ScanResult) []int64 {
	out := make([]int64, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.ID)
	}
	return out
}

func TestStore_InsertAssignsIncreasingIDs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var last int64
	for i := 0; i < 10; i++ {
		saved, err := s.Insert(ctx, domain.ScanResult{Prediction: "Acne"})
		require.NoError(t, err)
		assert.Equal(t, last+1, saved.ID)
		last = saved.ID
	}
}

func TestStore_QueryAllNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	r1, err := s.Insert(ctx, domain.ScanResult{Prediction: "r1"})
	require.NoError(t, err)
	r2, err := s.Insert(ctx, domain.ScanResult{Prediction: "r2"})
	require.NoError(t, err)

	all, err := s.QueryAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.ScanResult{r2, r1}, all)
}

func TestStore_RejectsAlreadyPersisted(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Insert(context.Background(), domain.ScanResult{ID: 3})

	var stErr *domain.StoreError
	assert.ErrorAs(t, err, &stErr)
}

func TestStore_FeedEmitsSnapshotPerInsert(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sub := s.Subscribe()
	defer sub.Close()
	assert.Empty(t, nextSnapshot(t, sub))

	for i := 0; i < 3; i++ {
		_, err := s.Insert(ctx, domain.ScanResult{})
		require.NoError(t, err)
	}

	assert.Equal(t, []int64{1}, ids(nextSnapshot(t, sub)))
	assert.Equal(t, []int64{2, 1}, ids(nextSnapshot(t, sub)))
	assert.Equal(t, []int64{3, 2, 1}, ids(nextSnapshot(t, sub)))
}

func TestStore_LateSubscriberGetsCurrentHistory(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewScanRepository()
	_, err := repo.Insert(ctx, domain.ScanResult{Prediction: "before start"})
	require.NoError(t, err)

	s, err := NewStore(ctx, repo, nil)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Insert(ctx, domain.ScanResult{Prediction: "after start"})
	require.NoError(t, err)

	sub := s.Subscribe()
	defer sub.Close()
	snap := nextSnapshot(t, sub)
	require.Len(t, snap, 2)
	assert.Equal(t, "after start", snap[0].Prediction)
	assert.Equal(t, "before start", snap[1].Prediction)
}

func TestStore_ConcurrentInsertsEmitInIDOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	sub := s.Subscribe()
	defer sub.Close()
	nextSnapshot(t, sub)

	const n = 50
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := s.Insert(ctx, domain.ScanResult{})
			errs <- err
		}()
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-errs)
	}

	for want := 1; want <= n; want++ {
		snap := nextSnapshot(t, sub)
		require.Len(t, snap, want)
		assert.Equal(t, int64(want), snap[0].ID)
	}
}

func TestStore_InsertFailureIsStoreError(t *testing.T) {
	repo := &failingRepo{ScanRepository: memory.NewScanRepository(), insertErr: errors.New("disk full")}
	s, err := NewStore(context.Background(), repo, nil)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Insert(context.Background(), domain.ScanResult{})
	var stErr *domain.StoreError
	require.ErrorAs(t, err, &stErr)
	assert.Equal(t, "save", stErr.Op)
}

func TestStore_ReloadFailureStillPublishes(t *testing.T) {
	ctx := context.Background()
	repo := &failingRepo{ScanRepository: memory.NewScanRepository(), queryErr: errors.New("read timeout")}
	s, err := NewStore(ctx, repo, nil)
	require.NoError(t, err)
	defer s.Close()

	sub := s.Subscribe()
	defer sub.Close()
	nextSnapshot(t, sub)

	saved, err := s.Insert(ctx, domain.ScanResult{Prediction: "Acne"})
	require.NoError(t, err)
	assert.Equal(t, []int64{saved.ID}, ids(nextSnapshot(t, sub)))
}

func TestStore_GetNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
