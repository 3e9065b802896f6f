// Package predict is the HTTP client for the remote prediction service.
package predict

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	domain "github.com/bryanwahyu/skinlytics/internal/domain/scans"
	"github.com/bryanwahyu/skinlytics/internal/infra/ai/schema"
)

const (
	// PredictPath is appended to the configured base URL.
	PredictPath = "/predict"

	// FormField is the multipart part carrying the image.
	FormField = "image"

	DefaultTimeout = 30 * time.Second

	uploadFilename = "upload.jpg"
	maxBodyBytes   = 4 << 20
)

// Client uploads images to POST {baseURL}/predict.
type Client struct {
	baseURL   string
	http      *http.Client
	userAgent string
	logger    *slog.Logger
}

// Option is a functional option for configuring the client.
type Option func(*Client)

// WithTimeout sets the whole-request timeout. Zero keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "predict.client")
	return c
}

// Analyze uploads image as a JPEG and decodes the diagnosis.
// A non-2xx status returns *scans.ServiceError with the status code and the
// body is not parsed.
func (c *Client) Analyze(ctx context.Context, image []byte) (domain.ScanResult, error) {
	start := time.Now()

	body, contentType, err := buildForm(image)
	if err != nil {
		return domain.ScanResult{}, fmt.Errorf("build multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+PredictPath, body)
	if err != nil {
		return domain.ScanResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.ScanResult{}, fmt.Errorf("predict request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		c.logger.Warn("prediction rejected", "status", resp.StatusCode, "latency", time.Since(start))
		return domain.ScanResult{}, &domain.ServiceError{StatusCode: resp.StatusCode}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return domain.ScanResult{}, &domain.ServiceError{Err: fmt.Errorf("read body: %w", err)}
	}

	result, err := schema.Decode(raw)
	if err != nil {
		return domain.ScanResult{}, err
	}

	c.logger.Debug("prediction received", "result", result.Summary(), "latency", time.Since(start))
	return result, nil
}

func buildForm(image []byte) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, FormField, uploadFilename))
	h.Set("Content-Type", "image/jpeg")
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(image); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
