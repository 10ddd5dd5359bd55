// Package fxrate looks up currency conversion rates.
package fxrate

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// Provider returns the multiplier converting one unit of from into to, or false when no rate is known
type Provider interface {
	Rate(ctx context.Context, from, to string) (decimal.Decimal, bool)
}

// StaticProvider converts through a table of base-currency rates
type StaticProvider struct {
	base  string
	rates map[string]decimal.Decimal // Units of base per unit of the keyed currency
}

// NewStaticProvider copies rates with upper-cased currency codes
func NewStaticProvider(base string, rates map[string]decimal.Decimal) *StaticProvider {
	table := make(map[string]decimal.Decimal, len(rates))
	for currency, rate := range rates {
		table[strings.ToUpper(currency)] = rate
	}
	return &StaticProvider{base: strings.ToUpper(base), rates: table}
}

func (p *StaticProvider) Rate(_ context.Context, from, to string) (decimal.Decimal, bool) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)

	if from == to {
		return decimal.NewFromInt(1), true
	}

	fromRate, fromOK := p.lookup(from)
	toRate, toOK := p.lookup(to)
	if !fromOK || !toOK || toRate.IsZero() {
		return decimal.Zero, false
	}

	return fromRate.DivRound(toRate, 8), true
}

func (p *StaticProvider) lookup(currency string) (decimal.Decimal, bool) {
	if currency == p.base {
		return decimal.NewFromInt(1), true
	}
	rate, ok := p.rates[currency]
	return rate, ok && rate.IsPositive()
}
