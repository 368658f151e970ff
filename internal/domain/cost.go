package domain

import (
	"strings"

	"github.com/IGLOU-EU/go-wildcard/v2"
)

// BatchDiscount is the flat price multiplier applied to batch-mode calls.
const BatchDiscount = 0.5

// TokenPrice is a price per million tokens. Prices are estimates for
// comparing providers, not for billing reconciliation.
type TokenPrice struct {
	InputUSDPerMTok     float64
	OutputUSDPerMTok    float64
	CacheReadUSDPerMTok float64
}

type modelPrice struct {
	Pattern string
	Price   TokenPrice
}

const pricingAsOf = "2026-06"

// PricingAsOf is the effective date of the pricing table.
func PricingAsOf() string { return pricingAsOf }

// First matching pattern wins, so narrower patterns come first.
var providerPrices = map[string][]modelPrice{
	"anthropic": {
		{Pattern: "claude-opus*", Price: TokenPrice{15.00, 75.00, 1.50}},
		{Pattern: "claude-sonnet*", Price: TokenPrice{3.00, 15.00, 0.30}},
		{Pattern: "claude-haiku*", Price: TokenPrice{0.80, 4.00, 0.08}},
	},
	"gemini": {
		{Pattern: "gemini-*-flash-lite*", Price: TokenPrice{0.10, 0.40, 0.025}},
		{Pattern: "gemini-*-flash*", Price: TokenPrice{0.30, 2.50, 0.075}},
		{Pattern: "gemini-*-pro*", Price: TokenPrice{1.25, 10.00, 0.31}},
	},
}

// LookupPrice finds the price entry for a provider and model.
func LookupPrice(provider, model string) (TokenPrice, bool) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	model = strings.ToLower(strings.TrimSpace(model))
	if provider == "" || model == "" {
		return TokenPrice{}, false
	}
	for _, p := range providerPrices[provider] {
		if wildcard.Match(p.Pattern, model) {
			return p.Price, true
		}
	}
	return TokenPrice{}, false
}

// EstimateCost returns the estimated USD cost of a call. Unknown models cost
// zero and report ok=false. Cache reads are billed at the cache rate and are
// not double counted as input.
func EstimateCost(provider, model string, u Usage, batch bool) (usd float64, ok bool) {
	price, ok := LookupPrice(provider, model)
	if !ok {
		return 0, false
	}
	usd = float64(u.InputTokens)/1e6*price.InputUSDPerMTok +
		float64(u.OutputTokens)/1e6*price.OutputUSDPerMTok +
		float64(u.CacheReadTokens)/1e6*price.CacheReadUSDPerMTok
	if batch {
		usd *= BatchDiscount
	}
	return usd, true
}
