package connectors

import (
	"fmt"

	"github.com/shopspring/decimal"

	"dev.helix.gateway/internal/config"
	"dev.helix.gateway/internal/models"
)

// ModelPricing is the price of TokenUnitSize tokens of one model.
type ModelPricing struct {
	InputTokenPrice  decimal.Decimal
	OutputTokenPrice decimal.Decimal
	TokenUnitSize    int64
}

// Costs prices request and response token counts. Zero pricing costs nothing.
func (p ModelPricing) Costs(requestTokens, responseTokens int) (request, response decimal.Decimal) {
	if p.TokenUnitSize <= 0 {
		return decimal.Zero, decimal.Zero
	}
	unitSize := decimal.NewFromInt(p.TokenUnitSize)
	request = decimal.NewFromInt(int64(requestTokens)).Div(unitSize).Mul(p.InputTokenPrice)
	response = decimal.NewFromInt(int64(responseTokens)).Div(unitSize).Mul(p.OutputTokenPrice)
	return request, response
}

// PriceTable maps model types of one provider to their pricing.
type PriceTable map[string]ModelPricing

// NewPriceTable parses configured prices.
func NewPriceTable(cfg map[string]config.ModelPricing) (PriceTable, error) {
	table := make(PriceTable, len(cfg))
	for model, pricing := range cfg {
		input, err := decimal.NewFromString(pricing.InputTokenPrice)
		if err != nil {
			return nil, fmt.Errorf("invalid input token price for %s: %w", model, err)
		}
		output, err := decimal.NewFromString(pricing.OutputTokenPrice)
		if err != nil {
			return nil, fmt.Errorf("invalid output token price for %s: %w", model, err)
		}
		if pricing.TokenUnitSize <= 0 {
			return nil, fmt.Errorf("token unit size for %s must be positive", model)
		}
		table[model] = ModelPricing{InputTokenPrice: input, OutputTokenPrice: output, TokenUnitSize: pricing.TokenUnitSize}
	}
	return table, nil
}

// Apply sets the record's costs from its token counts.
func (t PriceTable) Apply(record *models.PromptRequestRecord) {
	record.RequestTokensCost, record.ResponseTokensCost = t[record.ModelType].Costs(record.RequestTokens, record.ResponseTokens)
}

// TokenCountCostResult is the token accounting of one prompt exchange.
type TokenCountCostResult struct {
	RequestTokenCount  int
	ResponseTokenCount int
	RequestTokenCost   decimal.Decimal
	ResponseTokenCost  decimal.Decimal
}

// CalculateTokenCountsAndCosts counts the tokens of a prompt and its
// response with the tokenizer of modelType and prices them.
func CalculateTokenCountsAndCosts(promptRequest, promptResponse string, pricing ModelPricing, modelType string) TokenCountCostResult {
	result := TokenCountCostResult{
		RequestTokenCount:  CountTokens(promptRequest, modelType),
		ResponseTokenCount: CountTokens(promptResponse, modelType),
	}
	result.RequestTokenCost, result.ResponseTokenCost = pricing.Costs(result.RequestTokenCount, result.ResponseTokenCount)
	return result
}

// ApplyTokenCountsAndCosts writes a TokenCountCostResult into record.
func ApplyTokenCountsAndCosts(record *models.PromptRequestRecord, result TokenCountCostResult) {
	record.RequestTokens = result.RequestTokenCount
	record.ResponseTokens = result.ResponseTokenCount
	record.RequestTokensCost = result.RequestTokenCost
	record.ResponseTokensCost = result.ResponseTokenCost
}
