package cohere

import (
	"fmt"
	"strings"

	"dev.helix.gateway/internal/connectors"
	"dev.helix.gateway/internal/models"
)

// ModelTypes lists the Cohere generation models the gateway accepts.
var ModelTypes = map[string]bool{
	"command":               true,
	"command-light":         true,
	"command-nightly":       true,
	"command-light-nightly": true,
	"command-r":             true,
	"command-r-plus":        true,
}

// ChatMessage is one prior turn of a conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Model            string        `json:"model"`
	Message          string        `json:"message"`
	Preamble         string        `json:"preamble,omitempty"`
	ChatHistory      []ChatMessage `json:"chat_history,omitempty"`
	Stream           bool          `json:"stream,omitempty"`
	Temperature      *float64      `json:"temperature,omitempty"`
	P                *float64      `json:"p,omitempty"`
	MaxTokens        *int          `json:"max_tokens,omitempty"`
	PresencePenalty  *float64      `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64      `json:"frequency_penalty,omitempty"`
	StopSequences    []string      `json:"stop_sequences,omitempty"`
}

// BilledUnits reports the tokens Cohere charged for.
type BilledUnits struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Meta carries response accounting.
type Meta struct {
	BilledUnits *BilledUnits `json:"billed_units,omitempty"`
}

// ChatResponse is a non-streamed chat reply.
type ChatResponse struct {
	ResponseID   string `json:"response_id"`
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason"`
	Meta         *Meta  `json:"meta,omitempty"`
}

// StreamEvent is one line of a streamed chat reply.
type StreamEvent struct {
	EventType    string        `json:"event_type"`
	IsFinished   bool          `json:"is_finished"`
	Text         string        `json:"text"`
	FinishReason string        `json:"finish_reason"`
	Response     *ChatResponse `json:"response,omitempty"`
}

var historyRoles = map[string]string{
	"user":      "USER",
	"assistant": "CHATBOT",
}

// CreatePromptRequest builds a chat request from a prompt config. System
// messages form the preamble, the last user message is the prompt and
// every turn before it becomes chat history.
func CreatePromptRequest(cfg *models.PromptConfig, vars map[string]string, stream bool) (*ChatRequest, error) {
	if !ModelTypes[cfg.ModelType] {
		return nil, fmt.Errorf("unknown model type {%s}", cfg.ModelType)
	}

	params := cfg.ModelParameters
	req := &ChatRequest{
		Model:            cfg.ModelType,
		Stream:           stream,
		Temperature:      params.Temperature,
		P:                params.TopP,
		MaxTokens:        params.MaxTokens,
		PresencePenalty:  params.PresencePenalty,
		FrequencyPenalty: params.FrequencyPenalty,
		StopSequences:    params.Stop,
	}

	var preamble []string
	var turns []ChatMessage
	for _, message := range cfg.ProviderPromptMessages {
		content, err := connectors.ParseTemplateVariables(message.Content, cfg.ExpectedTemplateVariables, vars)
		if err != nil {
			return nil, err
		}
		if message.Role == "system" {
			preamble = append(preamble, content)
			continue
		}
		role, ok := historyRoles[message.Role]
		if !ok {
			return nil, fmt.Errorf("unknown message role {%s}", message.Role)
		}
		turns = append(turns, ChatMessage{Role: role, Message: content})
	}

	if len(turns) == 0 || turns[len(turns)-1].Role != "USER" {
		return nil, fmt.Errorf("prompt config %s must end with a user message", cfg.ID)
	}
	req.Message = turns[len(turns)-1].Message
	req.ChatHistory = turns[:len(turns)-1]
	req.Preamble = strings.Join(preamble, "\n")
	return req, nil
}

// RequestPromptString joins every prompt text for token counting.
func RequestPromptString(req *ChatRequest) string {
	parts := make([]string, 0, len(req.ChatHistory)+2)
	if req.Preamble != "" {
		parts = append(parts, req.Preamble)
	}
	for _, turn := range req.ChatHistory {
		parts = append(parts, turn.Message)
	}
	parts = append(parts, req.Message)
	return strings.Join(parts, "\n")
}
