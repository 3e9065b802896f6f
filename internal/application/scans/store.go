package scans

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	domain "github.com/bryanwahyu/skinlytics/internal/domain/scans"
	"github.com/bryanwahyu/skinlytics/internal/feed"
)

// Store is the Result Store: a single-writer wrapper around a Repository that
// publishes the full newest-first history after every committed insert.
// Readers and subscribers never take the writer lock.
type Store struct {
	repo domain.Repository
	feed *feed.Broadcaster[[]domain.ScanResult]
	log  *slog.Logger

	mu sync.Mutex
}

// NewStore loads the persisted history so the first subscriber gets it immediately.
func NewStore(ctx context.Context, repo domain.Repository, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	all, err := repo.QueryAll(ctx)
	if err != nil {
		return nil, &domain.StoreError{Op: "load", Err: err}
	}
	return &Store{
		repo: repo,
		feed: feed.NewWith(all),
		log:  logger.With("component", "scans.store"),
	}, nil
}

// Insert assigns the next id, persists r and publishes the new snapshot.
// Id assignment, commit and publish happen under one lock, so the feed emits
// snapshots in exactly the order ids were assigned.
func (s *Store) Insert(ctx context.Context, r domain.ScanResult) (domain.ScanResult, error) {
	if r.Persisted() {
		return domain.ScanResult{}, &domain.StoreError{Op: "save", Err: fmt.Errorf("result already has id %d", r.ID)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	saved, err := s.repo.Insert(ctx, r.Clone())
	if err != nil {
		return domain.ScanResult{}, &domain.StoreError{Op: "save", Err: err}
	}

	all, err := s.repo.QueryAll(ctx)
	if err != nil {
		// The row is committed; build the snapshot from the previous one.
		s.log.Warn("reload after insert failed, extending previous snapshot", "id", saved.ID, "err", err)
		prev, _ := s.feed.Current()
		all = make([]domain.ScanResult, 0, len(prev)+1)
		all = append(all, saved)
		all = append(all, prev...)
	}
	s.feed.Publish(all)

	s.log.Info("scan result stored", "id", saved.ID, "result", saved.Summary())
	return saved, nil
}

// QueryAll returns every record, newest first.
func (s *Store) QueryAll(ctx context.Context) ([]domain.ScanResult, error) {
	all, err := s.repo.QueryAll(ctx)
	if err != nil {
		return nil, &domain.StoreError{Op: "load", Err: err}
	}
	return all, nil
}

// Get returns one record or domain.ErrNotFound.
func (s *Store) Get(ctx context.Context, id int64) (domain.ScanResult, error) {
	r, err := s.repo.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ScanResult{}, err
	}
	if err != nil {
		return domain.ScanResult{}, &domain.StoreError{Op: "load", Err: err}
	}
	return r, nil
}

// Subscribe is the History Feed: the current snapshot first, then one
// snapshot per insert. The caller closes the subscription.
func (s *Store) Subscribe() *feed.Subscription[[]domain.ScanResult] {
	return s.feed.Subscribe()
}

// Close ends all history subscriptions.
func (s *Store) Close() {
	s.feed.Close()
}
