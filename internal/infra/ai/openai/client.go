package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	domain "github.com/bryanwahyu/skinlytics/internal/domain/scans"
	"github.com/bryanwahyu/skinlytics/internal/infra/ai/prompt"
	"github.com/bryanwahyu/skinlytics/internal/infra/ai/schema"
)

const (
	maxTokens    = 1024
	defaultModel = "gpt-4o-mini"
)

// Client is a scans.Analyzer backed by an OpenAI vision model. The model is
// asked for the same JSON document the /predict service returns.
type Client struct {
	*openai.Client
	Model  string
	logger *slog.Logger
}

// NewClient builds a client. baseURL may be empty for the public API.
func NewClient(apiKey, model, baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		Client: openai.NewClientWithConfig(cfg),
		Model:  model,
		logger: logger.With("component", "openai.client"),
	}
}

func (c *Client) Analyze(ctx context.Context, image []byte) (domain.ScanResult, error) {
	model := c.Model
	if model == "" {
		model = defaultModel
	}
	req := openai.ChatCompletionRequest{
		Model: model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.GetSystemPrompt()},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt.GetUserPrompt(len(image))},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image),
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5") {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		return domain.ScanResult{}, mapError(err)
	}
	if len(resp.Choices) == 0 {
		return domain.ScanResult{}, &domain.ServiceError{Err: errors.New("no choices returned")}
	}

	res, err := schema.Decode([]byte(resp.Choices[0].Message.Content))
	if err != nil {
		return domain.ScanResult{}, err
	}
	c.logger.Debug("prediction received", "model", resp.Model, "result", res.Summary(), "tokens", resp.Usage.TotalTokens)
	return res, nil
}

// mapError keeps the provider's HTTP status so 429/5xx surface like /predict failures.
func mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &domain.ServiceError{StatusCode: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &domain.ServiceError{StatusCode: reqErr.HTTPStatusCode, Err: err}
	}
	return fmt.Errorf("failed to create chat completion: %w", err)
}
