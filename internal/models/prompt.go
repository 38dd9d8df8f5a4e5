package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// PromptMessage is a single provider message template.
type PromptMessage struct {
	Role    string `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// ModelParameters holds provider sampling parameters.
type ModelParameters struct {
	Temperature      *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	TopP             *float64 `json:"top_p,omitempty" yaml:"top_p,omitempty"`
	MaxTokens        *int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty" yaml:"presence_penalty,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty" yaml:"frequency_penalty,omitempty"`
	Stop             []string `json:"stop,omitempty" yaml:"stop,omitempty"`
}

// PromptConfig describes how prompts for an application are built and which
// provider serves them.
type PromptConfig struct {
	ID                        string          `json:"id" yaml:"id" db:"id"`
	ApplicationID             string          `json:"application_id" yaml:"application_id" db:"application_id"`
	Name                      string          `json:"name" yaml:"name" db:"name"`
	ModelVendor               string          `json:"model_vendor" yaml:"model_vendor" db:"model_vendor"`
	ModelType                 string          `json:"model_type" yaml:"model_type" db:"model_type"`
	ModelParameters           ModelParameters `json:"model_parameters" yaml:"model_parameters" db:"model_parameters"`
	ProviderPromptMessages    []PromptMessage `json:"provider_prompt_messages" yaml:"provider_prompt_messages" db:"provider_prompt_messages"`
	ExpectedTemplateVariables []string        `json:"expected_template_variables" yaml:"expected_template_variables" db:"expected_template_variables"`
	IsDefault                 bool            `json:"is_default" yaml:"is_default" db:"is_default"`
	CreatedAt                 time.Time       `json:"created_at" yaml:"created_at,omitempty" db:"created_at"`
	UpdatedAt                 time.Time       `json:"updated_at" yaml:"updated_at,omitempty" db:"updated_at"`
}

// PromptRequestRecord is the usage record written for every provider call.
type PromptRequestRecord struct {
	ID                    string        `json:"id" db:"id"`
	ApplicationID         string        `json:"application_id" db:"application_id"`
	PromptConfigID        string        `json:"prompt_config_id" db:"prompt_config_id"`
	ModelVendor           string        `json:"model_vendor" db:"model_vendor"`
	ModelType             string        `json:"model_type" db:"model_type"`
	IsStreamResponse      bool          `json:"is_stream_response" db:"is_stream_response"`
	RequestTokens         int           `json:"request_tokens" db:"request_tokens"`
	ResponseTokens        int           `json:"response_tokens" db:"response_tokens"`
	// Costs are in the currency of the provider's price table.
	RequestTokensCost  decimal.Decimal `json:"request_tokens_cost" db:"request_tokens_cost"`
	ResponseTokensCost decimal.Decimal `json:"response_tokens_cost" db:"response_tokens_cost"`
	StartTime             time.Time     `json:"start_time" db:"start_time"`
	FinishTime            time.Time     `json:"finish_time" db:"finish_time"`
	StreamResponseLatency time.Duration `json:"-" db:"stream_response_latency"`
	ErrorLog              string        `json:"error_log,omitempty" db:"error_log"`
	ExpiresAt             *time.Time    `json:"expires_at,omitempty" db:"expires_at"`
}

// Duration returns the wall time between start and finish.
func (r *PromptRequestRecord) Duration() time.Duration {
	if r == nil || r.FinishTime.IsZero() || r.StartTime.IsZero() {
		return 0
	}
	return r.FinishTime.Sub(r.StartTime)
}

// PromptResult is a provider outcome. For streams, every content chunk is a
// PromptResult and the terminal one carries RequestRecord or Error.
type PromptResult struct {
	Content       *string
	RequestRecord *PromptRequestRecord
	Error         error
}

// IsTerminal reports whether the result ends a stream.
func (r PromptResult) IsTerminal() bool {
	return r.Error != nil || r.RequestRecord != nil
}

// MarshalJSON renders the record as an event payload with durations in milliseconds.
func (r PromptRequestRecord) MarshalJSON() ([]byte, error) {
	type alias PromptRequestRecord
	return json.Marshal(struct {
		alias
		DurationMs              int64 `json:"duration_ms"`
		StreamResponseLatencyMs int64 `json:"stream_response_latency_ms,omitempty"`
	}{
		alias:                   alias(r),
		DurationMs:              r.Duration().Milliseconds(),
		StreamResponseLatencyMs: r.StreamResponseLatency.Milliseconds(),
	})
}
