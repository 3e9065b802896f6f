package scans

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bryanwahyu/skinlytics/internal/application"
	domain "github.com/bryanwahyu/skinlytics/internal/domain/scans"
	"github.com/bryanwahyu/skinlytics/internal/feed"
)

// ResultWriter persists an analyzed result and returns it with its id.
type ResultWriter interface {
	Insert(ctx context.Context, r domain.ScanResult) (domain.ScanResult, error)
}

// Controller drives one scan attempt at a time through
// Idle -> Loading -> Success|Error and publishes every state change.
//
// Each Start or Reset begins a new generation. A completion from an older
// generation is reported to its own caller but never applied to the state.
type Controller struct {
	loader   domain.ImageLoader
	analyzer domain.Analyzer
	results  ResultWriter
	clock    application.Clock
	log      *slog.Logger

	mu    sync.Mutex
	gen   uint64
	state *feed.Broadcaster[domain.State]

	wg sync.WaitGroup
}

// NewController wires the loader, analyzer and store into a controller in Idle.
func NewController(loader domain.ImageLoader, analyzer domain.Analyzer, results ResultWriter, clock application.Clock, logger *slog.Logger) *Controller {
	if clock == nil {
		clock = application.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		loader:   loader,
		analyzer: analyzer,
		results:  results,
		clock:    clock,
		log:      logger.With("component", "scans.controller"),
		state:    feed.NewWith[domain.State](domain.Idle{}),
	}
}

// Start begins an attempt for h. An empty handle fails immediately with
// "No image selected" without entering Loading. Otherwise the state moves to
// Loading and the load, upload and insert run on a separate goroutine.
//
// The returned channel receives this attempt's terminal state and is then
// closed. ctx bounds the attempt; pass a context that outlives the caller if
// the attempt must finish regardless.
func (c *Controller) Start(ctx context.Context, h domain.Handle) <-chan domain.State {
	done := make(chan domain.State, 1)

	c.mu.Lock()
	c.gen++
	gen := c.gen
	if h == "" {
		st := domain.Error{Message: domain.Message(domain.ErrNoImage)}
		c.state.Publish(st)
		c.mu.Unlock()

		c.log.Warn("scan rejected", "reason", st.Message)
		done <- st
		close(done)
		return done
	}
	c.state.Publish(domain.Loading{})
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		st := c.run(ctx, gen, h)
		c.finish(gen, st)
		done <- st
		close(done)
	}()
	return done
}

// Reset forces Idle. An in-flight attempt keeps running but its completion
// will not be applied.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.state.Publish(domain.Idle{})
}

// State returns the current state.
func (c *Controller) State() domain.State {
	st, _ := c.state.Current()
	return st
}

// Watch subscribes to state changes, starting with the current state.
func (c *Controller) Watch() *feed.Subscription[domain.State] {
	return c.state.Subscribe()
}

// Wait blocks until every started attempt has completed.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close waits for in-flight attempts and ends all watchers.
func (c *Controller) Close() {
	c.wg.Wait()
	c.state.Close()
}

func (c *Controller) run(ctx context.Context, gen uint64, h domain.Handle) domain.State {
	start := c.clock.Now()
	log := c.log.With("attempt", gen, "handle", string(h))

	fail := func(err error) domain.State {
		attrs := []any{"err", err, "duration", application.Since(c.clock, start)}
		var svcErr *domain.ServiceError
		if errors.As(err, &svcErr) {
			attrs = append(attrs, "status", svcErr.StatusCode, "upstream_fault", svcErr.IsServerError())
		}
		log.Error("scan failed", attrs...)
		return domain.Error{Message: domain.Message(err)}
	}

	img, err := c.loader.Load(ctx, h)
	if err != nil {
		var ioErr *domain.IOError
		if !errors.As(err, &ioErr) {
			err = &domain.IOError{Handle: h, Err: err}
		}
		return fail(err)
	}
	log.Debug("image loaded", "bytes", len(img))

	res, err := c.analyzer.Analyze(ctx, img)
	if err != nil {
		return fail(err)
	}

	saved, err := c.results.Insert(ctx, res)
	if err != nil {
		var stErr *domain.StoreError
		if !errors.As(err, &stErr) {
			err = &domain.StoreError{Op: "save", Err: err}
		}
		return fail(err)
	}
	if !saved.Persisted() {
		return fail(&domain.StoreError{Op: "save", Err: fmt.Errorf("store returned no id")})
	}

	log.Info("scan finished", "id", saved.ID, "result", saved.Summary(), "duration", application.Since(c.clock, start))
	return domain.Success{Result: saved}
}

func (c *Controller) finish(gen uint64, st domain.State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		c.log.Info("discarding stale attempt result", "attempt", gen, "current", c.gen, "state", domain.StateName(st))
		return
	}
	c.state.Publish(st)
}
