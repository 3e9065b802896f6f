package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Event names on the /v1/scans/stream feed.
const (
	EventState   = "state"
	EventHistory = "history"
)

const keepAlive = 25 * time.Second

// GET /v1/scans/stream
// Server-sent events: the current state and history first, then every change.
func (r *Router) handleStream(w http.ResponseWriter, req *http.Request) error {
	rc := http.NewResponseController(w)
	// long-lived: lift the server write timeout for this response
	_ = rc.SetWriteDeadline(time.Time{})

	states := r.scanner.Watch()
	defer states.Close()
	history := r.history.Subscribe()
	defer history.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		r.log.Warn("stream cannot flush", "err", err)
		return nil
	}

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		var (
			event string
			data  any
		)
		select {
		case <-req.Context().Done():
			return nil
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return nil
			}
			_ = rc.Flush()
			continue
		case st, ok := <-states.C():
			if !ok {
				return nil
			}
			event, data = EventState, NewStateResponse(st)
		case snap, ok := <-history.C():
			if !ok {
				return nil
			}
			event, data = EventHistory, snap
		}

		b, err := json.Marshal(data)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, b); err != nil {
			// client went away
			return nil
		}
		if err := rc.Flush(); err != nil {
			return nil
		}
	}
}
