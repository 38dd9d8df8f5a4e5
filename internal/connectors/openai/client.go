// Package openai connects the gateway to OpenAI compatible chat completion
// APIs, including Ollama and OpenRouter.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"dev.helix.gateway/internal/config"
	"dev.helix.gateway/internal/connectors"
	"dev.helix.gateway/internal/models"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	defaultTimeout = 60 * time.Second
	maxErrorBody   = 4 << 10
)

// APIError is a non-2xx upstream response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("openai API error: status %d: %s", e.StatusCode, e.Message)
}

// Client is an OpenAI compatible connector.
type Client struct {
	baseURL    string
	apiKey     string
	prices     connectors.PriceTable
	httpClient *http.Client
	log        *logrus.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// New creates a client for the given provider.
func New(cfg config.ProviderConfig, log *logrus.Logger, opts ...Option) *Client {
	if log == nil {
		log = logrus.New()
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	prices, err := connectors.NewPriceTable(cfg.Pricing)
	if err != nil {
		log.WithError(err).Warn("Ignoring invalid provider pricing, usage will not be costed")
		prices = connectors.PriceTable{}
	}

	c := &Client{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		prices:     prices,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ connectors.Connector = (*Client)(nil)

func newRecord(cfg *models.PromptConfig, stream bool) *models.PromptRequestRecord {
	return &models.PromptRequestRecord{
		ID:               uuid.New().String(),
		ApplicationID:    cfg.ApplicationID,
		PromptConfigID:   cfg.ID,
		ModelVendor:      cfg.ModelVendor,
		ModelType:        cfg.ModelType,
		IsStreamResponse: stream,
		StartTime:        time.Now(),
	}
}

// RequestPrompt performs a non-streamed completion. Failed calls still
// carry a request record with the error logged.
func (c *Client) RequestPrompt(ctx context.Context, cfg *models.PromptConfig, vars map[string]string) models.PromptResult {
	promptRequest, err := CreatePromptRequest(cfg, vars, false)
	if err != nil {
		return models.PromptResult{Error: err}
	}

	record := newRecord(cfg, false)
	resp, err := c.do(ctx, promptRequest)
	if err != nil {
		return c.failed(record, err)
	}
	defer resp.Body.Close()

	var completion ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return c.failed(record, fmt.Errorf("failed to decode completion: %w", err))
	}
	record.FinishTime = time.Now()

	if len(completion.Choices) == 0 {
		return c.failed(record, fmt.Errorf("completion %s has no choices", completion.ID))
	}

	content := completion.Choices[0].Message.Content
	c.account(record, completion.Usage, promptRequest, content)

	return models.PromptResult{Content: &content, RequestRecord: record}
}

// RequestStream streams a completion into ch and closes it.
func (c *Client) RequestStream(ctx context.Context, cfg *models.PromptConfig, vars map[string]string, ch chan<- models.PromptResult) {
	defer close(ch)

	send := func(result models.PromptResult) bool {
		select {
		case ch <- result:
			return true
		case <-ctx.Done():
			return false
		}
	}

	promptRequest, err := CreatePromptRequest(cfg, vars, true)
	if err != nil {
		c.log.WithError(err).Error("Failed to create prompt request")
		send(models.PromptResult{Error: err})
		return
	}

	record := newRecord(cfg, true)
	resp, err := c.do(ctx, promptRequest)
	if err != nil {
		send(c.failed(record, err))
		return
	}
	defer resp.Body.Close()

	var builder strings.Builder
	usage, err := readStream(resp.Body, func(delta string) bool {
		if record.StreamResponseLatency == 0 {
			record.StreamResponseLatency = time.Since(record.StartTime)
		}
		builder.WriteString(delta)
		return send(models.PromptResult{Content: &delta})
	})
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		send(c.failed(record, err))
		return
	}

	record.FinishTime = time.Now()
	c.account(record, usage, promptRequest, builder.String())

	send(models.PromptResult{RequestRecord: record})
}

// account fills token counts and costs, preferring upstream usage over
// local tokenization.
func (c *Client) account(record *models.PromptRequestRecord, usage *Usage, promptRequest *ChatRequest, response string) {
	if usage != nil {
		record.RequestTokens = usage.PromptTokens
		record.ResponseTokens = usage.CompletionTokens
		c.prices.Apply(record)
		return
	}
	connectors.ApplyTokenCountsAndCosts(record, connectors.CalculateTokenCountsAndCosts(
		RequestPromptString(promptRequest.Messages), response, c.prices[record.ModelType], record.ModelType,
	))
}

func (c *Client) failed(record *models.PromptRequestRecord, err error) models.PromptResult {
	c.log.WithError(err).WithField("prompt_config_id", record.PromptConfigID).Debug("Provider request failed")
	record.FinishTime = time.Now()
	record.ErrorLog = err.Error()
	return models.PromptResult{Error: err, RequestRecord: record}
}

func (c *Client) do(ctx context.Context, promptRequest *ChatRequest) (*http.Response, error) {
	body, err := json.Marshal(promptRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if promptRequest.Stream {
		req.Header.Set("Accept", "text/event-stream")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, newAPIError(resp)
	}
	return resp, nil
}

func newAPIError(resp *http.Response) *APIError {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	message := strings.TrimSpace(string(data))
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error.Message != "" {
		message = payload.Error.Message
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	return &APIError{StatusCode: resp.StatusCode, Message: message}
}
