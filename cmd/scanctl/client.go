package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	domain "github.com/bryanwahyu/skinlytics/internal/domain/scans"
	"github.com/bryanwahyu/skinlytics/internal/infra/httpserver"
)

// apiClient talks to the scan API served by cmd/api.
type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(base string, hc *http.Client) *apiClient {
	return &apiClient{base: strings.TrimRight(base, "/"), http: hc}
}

type apiError struct {
	status int
	body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.status, strings.TrimSpace(e.body))
}

// upload posts the file at path and waits for the attempt's terminal state.
func (c *apiClient) upload(ctx context.Context, path string) (httpserver.StateResponse, error) {
	f, err := os.Open(path)
	if err != nil {
		return httpserver.StateResponse{}, err
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(httpserver.UploadField, filepath.Base(path))
	if err != nil {
		return httpserver.StateResponse{}, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return httpserver.StateResponse{}, err
	}
	if err := mw.Close(); err != nil {
		return httpserver.StateResponse{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/v1/scans", &buf)
	if err != nil {
		return httpserver.StateResponse{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.doState(req)
}

// startHandle asks the server to scan an image it can already reach.
func (c *apiClient) startHandle(ctx context.Context, h string) (httpserver.StateResponse, error) {
	body, err := json.Marshal(map[string]string{"handle": h})
	if err != nil {
		return httpserver.StateResponse{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/v1/scans/handle?wait=true", bytes.NewReader(body))
	if err != nil {
		return httpserver.StateResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doState(req)
}

func (c *apiClient) doState(req *http.Request) (httpserver.StateResponse, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return httpserver.StateResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusUnprocessableEntity {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return httpserver.StateResponse{}, &apiError{status: resp.StatusCode, body: string(b)}
	}
	var out httpserver.StateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return httpserver.StateResponse{}, fmt.Errorf("decoding state: %w", err)
	}
	return out, nil
}

func (c *apiClient) history(ctx context.Context, limit int) ([]domain.ScanResult, error) {
	url := c.base + "/v1/scans"
	if limit > 0 {
		url += fmt.Sprintf("?limit=%d", limit)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &apiError{status: resp.StatusCode, body: string(b)}
	}

	var out []domain.ScanResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding history: %w", err)
	}
	return out, nil
}

type streamEvent struct {
	Name string
	Data json.RawMessage
}

// stream calls fn for every server-sent event until ctx ends, the server
// closes the stream or fn returns false.
func (c *apiClient) stream(ctx context.Context, fn func(streamEvent) bool) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/v1/scans/stream", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &apiError{status: resp.StatusCode, body: string(b)}
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 64<<10), 8<<20)
	var ev streamEvent
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			ev.Name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.Data = json.RawMessage(strings.TrimPrefix(line, "data: "))
		case line == "" && ev.Name != "":
			if !fn(ev) {
				return nil
			}
			ev = streamEvent{}
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	return sc.Err()
}
