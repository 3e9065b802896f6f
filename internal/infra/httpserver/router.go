package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	domain "github.com/bryanwahyu/skinlytics/internal/domain/scans"
	"github.com/bryanwahyu/skinlytics/internal/feed"
	"github.com/bryanwahyu/skinlytics/internal/middleware"
)

// UploadField is the multipart field carrying the image on POST /v1/scans.
const UploadField = "image"

// Scanner is the part of the scan controller the API drives.
type Scanner interface {
	Start(ctx context.Context, h domain.Handle) <-chan domain.State
	Reset()
	State() domain.State
	Watch() *feed.Subscription[domain.State]
}

// History is the read side of the result store.
type History interface {
	QueryAll(ctx context.Context) ([]domain.ScanResult, error)
	Get(ctx context.Context, id int64) (domain.ScanResult, error)
	Subscribe() *feed.Subscription[[]domain.ScanResult]
}

// UploadStager keeps an uploaded image somewhere a loader can read it back.
// Staged images are removed once their attempt reaches a terminal state.
type UploadStager interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (domain.Handle, error)
	Remove(ctx context.Context, h domain.Handle) error
}

type Options struct {
	Stager         UploadStager
	Schemes        []string
	MaxUploadBytes int64
	Logger         *slog.Logger
}

type Router struct {
	scanner Scanner
	history History
	opts    Options
	log     *slog.Logger
}

func NewRouter(scanner Scanner, history History, opts Options) http.Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{scanner: scanner, history: history, opts: opts, log: logger.With("component", "httpserver")}
	mux := chi.NewRouter()

	mux.Route("/v1/scans", func(rt chi.Router) {
		rt.Post("/", r.wrap(r.handleUpload))
		rt.Get("/", r.wrap(r.handleList))
		rt.Post("/handle", r.wrap(r.handleStartHandle))
		rt.Get("/state", r.wrap(r.handleState))
		rt.Post("/reset", r.wrap(r.handleReset))
		rt.Get("/stream", r.wrap(r.handleStream))
		rt.Get("/{id}", r.wrap(r.handleGet))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

type statusError struct {
	code int
	err  error
}

func (e *statusError) Error() string { return e.err.Error() }
func (e *statusError) Unwrap() error { return e.err }

func badRequest(err error) error { return &statusError{code: http.StatusBadRequest, err: err} }

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			var se *statusError
			var tooLarge *http.MaxBytesError
			switch {
			case errors.Is(err, domain.ErrNotFound):
				http.Error(w, "not found", http.StatusNotFound)
			case errors.As(err, &tooLarge):
				http.Error(w, "image too large", http.StatusRequestEntityTooLarge)
			case errors.As(err, &se):
				http.Error(w, se.Error(), se.code)
			default:
				r.log.Error("request failed", "path", req.URL.Path, "err", err,
					"request_id", middleware.GetRequestID(req.Context()))
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
		}
	}
}

// StateResponse is the JSON form of a controller state.
type StateResponse struct {
	State   string             `json:"state"`
	Result  *domain.ScanResult `json:"result,omitempty"`
	Message string             `json:"message,omitempty"`
}

func NewStateResponse(st domain.State) StateResponse {
	out := StateResponse{State: domain.StateName(st)}
	switch v := st.(type) {
	case domain.Success:
		res := v.Result
		out.Result = &res
	case domain.Error:
		out.Message = v.Message
	}
	return out
}

func writeJSON(w http.ResponseWriter, code int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(v)
}

// terminalStatus maps a finished attempt to 200 or 422.
func terminalStatus(st domain.State) int {
	if _, ok := st.(domain.Success); ok {
		return http.StatusOK
	}
	return http.StatusUnprocessableEntity
}

// POST /v1/scans (multipart, field "image")
// Stages the upload, runs the attempt and answers with its terminal state.
func (r *Router) handleUpload(w http.ResponseWriter, req *http.Request) error {
	if r.opts.Stager == nil {
		return &statusError{code: http.StatusNotImplemented, err: errors.New("uploads are not configured")}
	}
	req.Body = http.MaxBytesReader(w, req.Body, r.opts.MaxUploadBytes+1<<20)

	var h domain.Handle
	file, header, err := req.FormFile(UploadField)
	switch {
	case errors.Is(err, http.ErrMissingFile):
		// no image: the controller reports it
	case err != nil:
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return badRequest(fmt.Errorf("invalid multipart body: %w", err))
	default:
		defer file.Close()
		if header.Size > r.opts.MaxUploadBytes {
			return &http.MaxBytesError{Limit: r.opts.MaxUploadBytes}
		}
		ext, err := middleware.ValidateImageExt(header.Filename)
		if err != nil {
			return badRequest(err)
		}
		key := "uploads/" + uuid.NewString() + ext
		h, err = r.opts.Stager.Put(req.Context(), key, file, header.Size, header.Header.Get("Content-Type"))
		if err != nil {
			return fmt.Errorf("staging upload: %w", err)
		}
		r.log.Debug("upload staged", "handle", string(h), "bytes", header.Size)
	}

	done := r.scanner.Start(context.WithoutCancel(req.Context()), h)
	if h != "" {
		done = r.removeAfter(done, h)
	}
	return r.wait(w, req, done)
}

// removeAfter deletes the staged image once the attempt is terminal, even if
// the client has gone away.
func (r *Router) removeAfter(done <-chan domain.State, h domain.Handle) <-chan domain.State {
	out := make(chan domain.State, 1)
	go func() {
		defer close(out)
		st, ok := <-done
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := r.opts.Stager.Remove(ctx, h); err != nil {
			r.log.Warn("failed to remove staged upload", "handle", string(h), "err", err)
		}
		if ok {
			out <- st
		}
	}()
	return out
}

// POST /v1/scans/handle {"handle": "..."}[?wait=true]
func (r *Router) handleStartHandle(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Handle string `json:"handle"`
	}
	if err := json.NewDecoder(io.LimitReader(req.Body, 1<<16)).Decode(&body); err != nil {
		return badRequest(fmt.Errorf("invalid body: %w", err))
	}
	if err := middleware.ValidateHandle(body.Handle, r.opts.Schemes); err != nil {
		return badRequest(err)
	}
	h := domain.Handle(body.Handle)

	if wait, _ := strconv.ParseBool(req.URL.Query().Get("wait")); wait {
		return r.startAndWait(w, req, h)
	}

	done := r.scanner.Start(context.WithoutCancel(req.Context()), h)
	select {
	case st := <-done:
		// empty handle: already terminal
		return writeJSON(w, terminalStatus(st), NewStateResponse(st))
	default:
	}
	return writeJSON(w, http.StatusAccepted, NewStateResponse(domain.Loading{}))
}

func (r *Router) startAndWait(w http.ResponseWriter, req *http.Request, h domain.Handle) error {
	return r.wait(w, req, r.scanner.Start(context.WithoutCancel(req.Context()), h))
}

func (r *Router) wait(w http.ResponseWriter, req *http.Request, done <-chan domain.State) error {
	select {
	case st := <-done:
		return writeJSON(w, terminalStatus(st), NewStateResponse(st))
	case <-req.Context().Done():
		return nil
	}
}

// GET /v1/scans/state
func (r *Router) handleState(w http.ResponseWriter, req *http.Request) error {
	return writeJSON(w, http.StatusOK, NewStateResponse(r.scanner.State()))
}

// POST /v1/scans/reset
func (r *Router) handleReset(w http.ResponseWriter, req *http.Request) error {
	r.scanner.Reset()
	return writeJSON(w, http.StatusOK, NewStateResponse(r.scanner.State()))
}

// GET /v1/scans?limit=20
func (r *Router) handleList(w http.ResponseWriter, req *http.Request) error {
	limit := 0
	if raw := req.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return badRequest(fmt.Errorf("invalid limit %q", raw))
		}
		limit = middleware.ValidateLimit(n)
	}

	list, err := r.history.QueryAll(req.Context())
	if err != nil {
		return err
	}
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return writeJSON(w, http.StatusOK, list)
}

// GET /v1/scans/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	id, err := middleware.ValidateID(chi.URLParam(req, "id"))
	if err != nil {
		return badRequest(err)
	}
	res, err := r.history.Get(req.Context(), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, res)
}
