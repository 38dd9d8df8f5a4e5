package cohere

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev.helix.gateway/internal/config"
	"dev.helix.gateway/internal/models"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func testPromptConfig() *models.PromptConfig {
	temperature := 0.3
	return &models.PromptConfig{
		ID:            "0b6b1f9e-8d3a-4e7c-a1f2-5c4d3e2b1a00",
		ApplicationID: "6f1d7a3e-0c39-4d7b-9f5e-2b8f1d2c9a10",
		ModelVendor:   "cohere",
		ModelType:     "command",
		ModelParameters: models.ModelParameters{
			Temperature: &temperature,
			Stop:        []string{"\n\n"},
		},
		ProviderPromptMessages: []models.PromptMessage{
			{Role: "system", Content: "You help {user_name}."},
			{Role: "user", Content: "Hi"},
			{Role: "assistant", Content: "Hello {user_name}"},
			{Role: "user", Content: "{question}"},
		},
		ExpectedTemplateVariables: []string{"user_name", "question"},
	}
}

var testVars = map[string]string{"user_name": "Ada", "question": "What is a monad?"}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(config.ProviderConfig{
		BaseURL: server.URL + "/",
		APIKey:  "co-test",
		Pricing: map[string]config.ModelPricing{
			"command": {InputTokenPrice: "1.00", OutputTokenPrice: "2.00", TokenUnitSize: 1_000_000},
		},
	}, quietLogger())
}

func TestCreatePromptRequest(t *testing.T) {
	t.Run("SplitsPreambleHistoryAndMessage", func(t *testing.T) {
		req, err := CreatePromptRequest(testPromptConfig(), testVars, false)
		require.NoError(t, err)

		assert.Equal(t, "command", req.Model)
		assert.Equal(t, "You help Ada.", req.Preamble)
		assert.Equal(t, "What is a monad?", req.Message)
		assert.Equal(t, []ChatMessage{
			{Role: "USER", Message: "Hi"},
			{Role: "CHATBOT", Message: "Hello Ada"},
		}, req.ChatHistory)
		require.NotNil(t, req.Temperature)
		assert.InDelta(t, 0.3, *req.Temperature, 1e-9)
		assert.Equal(t, []string{"\n\n"}, req.StopSequences)
		assert.False(t, req.Stream)
	})

	t.Run("UnknownModel", func(t *testing.T) {
		cfg := testPromptConfig()
		cfg.ModelType = "gpt-4"
		_, err := CreatePromptRequest(cfg, testVars, false)
		assert.ErrorContains(t, err, "unknown model type {gpt-4}")
	})

	t.Run("UnknownRole", func(t *testing.T) {
		cfg := testPromptConfig()
		cfg.ProviderPromptMessages = append(cfg.ProviderPromptMessages, models.PromptMessage{Role: "tool", Content: "x"})
		_, err := CreatePromptRequest(cfg, testVars, false)
		assert.ErrorContains(t, err, "unknown message role {tool}")
	})

	t.Run("MustEndWithUser", func(t *testing.T) {
		cfg := testPromptConfig()
		cfg.ProviderPromptMessages = cfg.ProviderPromptMessages[:3]
		_, err := CreatePromptRequest(cfg, testVars, false)
		assert.ErrorContains(t, err, "must end with a user message")
	})

	t.Run("MissingVariable", func(t *testing.T) {
		_, err := CreatePromptRequest(testPromptConfig(), map[string]string{"user_name": "Ada"}, false)
		assert.Error(t, err)
	})
}

func TestRequestPromptString(t *testing.T) {
	req, err := CreatePromptRequest(testPromptConfig(), testVars, false)
	require.NoError(t, err)
	assert.Equal(t, "You help Ada.\nHi\nHello Ada\nWhat is a monad?", RequestPromptString(req))
}

func TestClient_RequestPrompt(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/chat", r.URL.Path)
			assert.Equal(t, "Bearer co-test", r.Header.Get("Authorization"))

			var req ChatRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "What is a monad?", req.Message)
			assert.False(t, req.Stream)

			fmt.Fprint(w, `{"response_id":"r-1","text":"A monoid.","finish_reason":"COMPLETE","meta":{"billed_units":{"input_tokens":20,"output_tokens":4}}}`)
		})

		result := client.RequestPrompt(context.Background(), testPromptConfig(), testVars)
		require.NoError(t, result.Error)
		require.NotNil(t, result.Content)
		assert.Equal(t, "A monoid.", *result.Content)

		record := result.RequestRecord
		require.NotNil(t, record)
		assert.Equal(t, 20, record.RequestTokens)
		assert.Equal(t, 4, record.ResponseTokens)
		assert.Equal(t, "0.00002", record.RequestTokensCost.String())
		assert.Equal(t, "0.000008", record.ResponseTokensCost.String())
		assert.Equal(t, "cohere", record.ModelVendor)
	})

	t.Run("CountsTokensWithoutBilledUnits", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"text":"the quick brown fox"}`)
		})

		result := client.RequestPrompt(context.Background(), testPromptConfig(), testVars)
		require.NoError(t, result.Error)
		assert.Equal(t, 6, result.RequestRecord.ResponseTokens)
		assert.Positive(t, result.RequestRecord.RequestTokens)
		assert.True(t, result.RequestRecord.ResponseTokensCost.IsPositive())
	})

	t.Run("APIError", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"message":"invalid api token"}`)
		})

		result := client.RequestPrompt(context.Background(), testPromptConfig(), testVars)
		var apiErr *APIError
		require.ErrorAs(t, result.Error, &apiErr)
		assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
		assert.Equal(t, "invalid api token", apiErr.Message)
		require.NotNil(t, result.RequestRecord)
		assert.Contains(t, result.RequestRecord.ErrorLog, "invalid api token")
	})

	t.Run("InvalidTemplate", func(t *testing.T) {
		client := New(config.ProviderConfig{}, quietLogger())
		result := client.RequestPrompt(context.Background(), testPromptConfig(), nil)
		assert.Error(t, result.Error)
		assert.Nil(t, result.RequestRecord)
	})
}

func ndjsonHandler(lines ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if !req.Stream {
			http.Error(w, "expected stream", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/stream+json")
		flusher, _ := w.(http.Flusher)
		for _, line := range lines {
			fmt.Fprintln(w, line)
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

func drain(t *testing.T, ch <-chan models.PromptResult) []models.PromptResult {
	t.Helper()
	var results []models.PromptResult
	timeout := time.After(5 * time.Second)
	for {
		select {
		case r, ok := <-ch:
			if !ok {
				return results
			}
			results = append(results, r)
		case <-timeout:
			t.Fatal("timed out waiting for stream")
		}
	}
}

func TestClient_RequestStream(t *testing.T) {
	t.Run("ChunksThenRecord", func(t *testing.T) {
		client := newTestClient(t, ndjsonHandler(
			`{"is_finished":false,"event_type":"stream-start","generation_id":"g-1"}`,
			`{"is_finished":false,"event_type":"text-generation","text":"A "}`,
			`{"is_finished":false,"event_type":"text-generation","text":"monoid."}`,
			`{"is_finished":true,"event_type":"stream-end","finish_reason":"COMPLETE","response":{"text":"A monoid.","meta":{"billed_units":{"input_tokens":20,"output_tokens":4}}}}`,
		))

		ch := make(chan models.PromptResult)
		go client.RequestStream(context.Background(), testPromptConfig(), testVars, ch)
		results := drain(t, ch)

		require.Len(t, results, 3)
		assert.Equal(t, "A ", *results[0].Content)
		assert.Equal(t, "monoid.", *results[1].Content)

		terminal := results[2]
		require.NoError(t, terminal.Error)
		require.NotNil(t, terminal.RequestRecord)
		assert.True(t, terminal.RequestRecord.IsStreamResponse)
		assert.Equal(t, 20, terminal.RequestRecord.RequestTokens)
		assert.Equal(t, 4, terminal.RequestRecord.ResponseTokens)
		assert.Equal(t, "0.000008", terminal.RequestRecord.ResponseTokensCost.String())
		assert.Positive(t, terminal.RequestRecord.StreamResponseLatency)
	})

	t.Run("ErrorFinish", func(t *testing.T) {
		client := newTestClient(t, ndjsonHandler(
			`{"event_type":"text-generation","text":"partial"}`,
			`{"is_finished":true,"event_type":"stream-end","finish_reason":"ERROR_TOXIC"}`,
		))

		ch := make(chan models.PromptResult)
		go client.RequestStream(context.Background(), testPromptConfig(), testVars, ch)
		results := drain(t, ch)

		require.Len(t, results, 2)
		require.Error(t, results[1].Error)
		assert.Contains(t, results[1].Error.Error(), "ERROR_TOXIC")
		require.NotNil(t, results[1].RequestRecord)
	})

	t.Run("MalformedEvent", func(t *testing.T) {
		client := newTestClient(t, ndjsonHandler(`{not json`))

		ch := make(chan models.PromptResult)
		go client.RequestStream(context.Background(), testPromptConfig(), testVars, ch)
		results := drain(t, ch)

		require.Len(t, results, 1)
		assert.ErrorContains(t, results[0].Error, "failed to decode stream event")
	})

	t.Run("UpstreamError", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "upstream down", http.StatusBadGateway)
		})

		ch := make(chan models.PromptResult)
		go client.RequestStream(context.Background(), testPromptConfig(), testVars, ch)
		results := drain(t, ch)

		require.Len(t, results, 1)
		assert.True(t, results[0].IsTerminal())
		assert.Error(t, results[0].Error)
	})

	t.Run("CancelledConsumer", func(t *testing.T) {
		client := newTestClient(t, ndjsonHandler(
			`{"event_type":"text-generation","text":"one"}`,
			`{"event_type":"text-generation","text":"two"}`,
			`{"event_type":"stream-end","finish_reason":"COMPLETE"}`,
		))

		ctx, cancel := context.WithCancel(context.Background())
		ch := make(chan models.PromptResult)
		done := make(chan struct{})
		go func() {
			client.RequestStream(ctx, testPromptConfig(), testVars, ch)
			close(done)
		}()

		first := <-ch
		assert.Equal(t, "one", *first.Content)
		cancel()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("stream did not stop after cancel")
		}
	})
}

func TestReadStream_EndWithoutResponse(t *testing.T) {
	body := strings.NewReader("\n{\"event_type\":\"text-generation\",\"text\":\"x\"}\n{\"event_type\":\"stream-end\",\"finish_reason\":\"MAX_TOKENS\"}\n")

	var texts []string
	final, err := readStream(body, func(s string) bool {
		texts = append(texts, s)
		return true
	})
	require.NoError(t, err)
	require.NotNil(t, final)
	assert.Equal(t, "MAX_TOKENS", final.FinishReason)
	assert.Equal(t, []string{"x"}, texts)
}

func TestNew_Defaults(t *testing.T) {
	client := New(config.ProviderConfig{}, nil)
	assert.Equal(t, DefaultBaseURL, client.baseURL)
	assert.Equal(t, defaultTimeout, client.httpClient.Timeout)
}
