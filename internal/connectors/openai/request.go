package openai

import (
	"fmt"
	"strings"

	"dev.helix.gateway/internal/connectors"
	"dev.helix.gateway/internal/models"
)

// ChatMessage is one message of a chat completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StreamOptions asks the upstream to append token usage to a stream.
type StreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// ChatRequest is the body of POST /chat/completions.
type ChatRequest struct {
	Model            string         `json:"model"`
	Messages         []ChatMessage  `json:"messages"`
	Stream           bool           `json:"stream,omitempty"`
	StreamOptions    *StreamOptions `json:"stream_options,omitempty"`
	Temperature      *float64       `json:"temperature,omitempty"`
	TopP             *float64       `json:"top_p,omitempty"`
	MaxTokens        *int           `json:"max_tokens,omitempty"`
	PresencePenalty  *float64       `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64       `json:"frequency_penalty,omitempty"`
	Stop             []string       `json:"stop,omitempty"`
}

// Usage reports upstream token accounting.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is a non-streamed completion.
type ChatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage *Usage `json:"usage,omitempty"`
}

// StreamResponse is one SSE data payload of a streamed completion.
type StreamResponse struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *Usage `json:"usage,omitempty"`
}

var validRoles = map[string]bool{
	"system":    true,
	"user":      true,
	"assistant": true,
	"tool":      true,
}

// CreatePromptRequest builds a chat request from a prompt config, binding
// template variables into every message.
func CreatePromptRequest(cfg *models.PromptConfig, vars map[string]string, stream bool) (*ChatRequest, error) {
	if cfg.ModelType == "" {
		return nil, fmt.Errorf("prompt config %s has no model type", cfg.ID)
	}

	params := cfg.ModelParameters
	req := &ChatRequest{
		Model:            cfg.ModelType,
		Messages:         make([]ChatMessage, 0, len(cfg.ProviderPromptMessages)),
		Temperature:      params.Temperature,
		TopP:             params.TopP,
		MaxTokens:        params.MaxTokens,
		PresencePenalty:  params.PresencePenalty,
		FrequencyPenalty: params.FrequencyPenalty,
		Stop:             params.Stop,
	}
	if stream {
		req.Stream = true
		req.StreamOptions = &StreamOptions{IncludeUsage: true}
	}

	for _, message := range cfg.ProviderPromptMessages {
		if !validRoles[message.Role] {
			return nil, fmt.Errorf("unknown message role {%s}", message.Role)
		}
		content, err := connectors.ParseTemplateVariables(message.Content, cfg.ExpectedTemplateVariables, vars)
		if err != nil {
			return nil, err
		}
		req.Messages = append(req.Messages, ChatMessage{Role: message.Role, Content: content})
	}

	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("prompt config %s has no messages", cfg.ID)
	}
	return req, nil
}

// RequestPromptString joins message contents for token estimation.
func RequestPromptString(messages []ChatMessage) string {
	contents := make([]string, 0, len(messages))
	for _, message := range messages {
		if message.Content != "" {
			contents = append(contents, message.Content)
		}
	}
	return strings.Join(contents, "\n")
}
