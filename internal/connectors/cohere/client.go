// Package cohere connects the gateway to the Cohere chat API.
package cohere

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
	DefaultBaseURL = "https://api.cohere.ai/v1"
	defaultTimeout = 60 * time.Second
	maxErrorBody   = 4 << 10
)

// APIError is a non-2xx upstream response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cohere API error: status %d: %s", e.StatusCode, e.Message)
}

// Client is a Cohere connector.
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

// RequestPrompt performs a non-streamed chat call.
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

	var chat ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return c.failed(record, fmt.Errorf("failed to decode chat response: %w", err))
	}
	record.FinishTime = time.Now()

	c.account(record, &chat, promptRequest, chat.Text)
	return models.PromptResult{Content: &chat.Text, RequestRecord: record}
}

// RequestStream streams a chat reply into ch and closes it.
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
	final, err := readStream(resp.Body, func(text string) bool {
		if record.StreamResponseLatency == 0 {
			record.StreamResponseLatency = time.Since(record.StartTime)
		}
		builder.WriteString(text)
		return send(models.PromptResult{Content: &text})
	})
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		send(c.failed(record, err))
		return
	}

	record.FinishTime = time.Now()
	c.account(record, final, promptRequest, builder.String())
	send(models.PromptResult{RequestRecord: record})
}

// account fills token counts and costs from billed units when Cohere
// reports them and from local counting otherwise.
func (c *Client) account(record *models.PromptRequestRecord, chat *ChatResponse, promptRequest *ChatRequest, response string) {
	if chat != nil && chat.Meta != nil && chat.Meta.BilledUnits != nil {
		record.RequestTokens = chat.Meta.BilledUnits.InputTokens
		record.ResponseTokens = chat.Meta.BilledUnits.OutputTokens
		c.prices.Apply(record)
		return
	}
	connectors.ApplyTokenCountsAndCosts(record, connectors.CalculateTokenCountsAndCosts(
		RequestPromptString(promptRequest), response, c.prices[record.ModelType], record.ModelType,
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

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
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
		Message string `json:"message"`
	}
	message := strings.TrimSpace(string(data))
	if err := json.Unmarshal(data, &payload); err == nil && payload.Message != "" {
		message = payload.Message
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	return &APIError{StatusCode: resp.StatusCode, Message: message}
}
