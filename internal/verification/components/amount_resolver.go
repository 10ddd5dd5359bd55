package components

import (
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/vendweave-gateway/internal/domain/verification"
	"github.com/vendweave-gateway/internal/verification/service"
)

// A candidate must be strictly closer than amountTolerance to subtotal - discount + shipping + tax
var amountTolerance = decimal.RequireFromString("0.01")

// Name variants for the order breakdown, tried in order
var (
	subtotalFields = []string{"subtotal", "sub_total"}
	discountFields = []string{"discount", "discount_amount", "coupon_discount"}
	shippingFields = []string{"shipping", "shipping_cost", "shipping_amount"}
	taxFields      = []string{"tax", "tax_amount"}
)

type amountCandidate struct {
	field string
	value decimal.Decimal
}

type AmountResolverImpl struct {
	primary   []string
	secondary []string
	logger    *slog.Logger
}

func NewAmountResolver(primary, secondary []string, logger *slog.Logger) service.AmountResolver {
	return &AmountResolverImpl{
		primary:   primary,
		secondary: secondary,
		logger:    logger,
	}
}

// Resolve returns the best guess for the payable amount and never fails.
// Zero means no amount field was found.
func (r *AmountResolverImpl) Resolve(orderData map[string]interface{}) decimal.Decimal {
	candidates := collectCandidates(orderData, r.primary)
	if len(candidates) == 0 {
		candidates = collectCandidates(orderData, r.secondary)
	}

	switch len(candidates) {
	case 0:
		r.logger.Warn("No amount field found in order data, resolving to zero", "fields", len(orderData))
		return decimal.Zero
	case 1:
		return candidates[0].value
	}

	if calculated, ok := calculateFromComponents(orderData); ok {
		for _, c := range candidates {
			if c.value.Sub(calculated).Abs().LessThan(amountTolerance) {
				r.logger.Debug("Amount validated against order breakdown", "field", c.field, "amount", c.value.String())
				return c.value
			}
		}
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.value.GreaterThan(best.value) {
			best = c
		}
	}

	r.logger.Warn("Ambiguous order amount, using the largest candidate",
		"field", best.field,
		"amount", best.value.String(),
		"candidates", len(candidates),
	)
	return best.value
}

func collectCandidates(orderData map[string]interface{}, fields []string) []amountCandidate {
	var candidates []amountCandidate
	for _, field := range fields {
		v, ok := orderData[field]
		if !ok {
			continue
		}
		if amount, ok := verification.ParseAmount(v); ok {
			candidates = append(candidates, amountCandidate{field: field, value: amount})
		}
	}
	return candidates
}

// calculateFromComponents needs at least a subtotal; missing adjustments count as zero
func calculateFromComponents(orderData map[string]interface{}) (decimal.Decimal, bool) {
	subtotal, ok := firstAmount(orderData, subtotalFields)
	if !ok {
		return decimal.Zero, false
	}
	discount, _ := firstAmount(orderData, discountFields)
	shipping, _ := firstAmount(orderData, shippingFields)
	tax, _ := firstAmount(orderData, taxFields)

	return subtotal.Sub(discount).Add(shipping).Add(tax), true
}

func firstAmount(orderData map[string]interface{}, names []string) (decimal.Decimal, bool) {
	for _, name := range names {
		if v, ok := orderData[name]; ok {
			if amount, ok := verification.ParseAmount(v); ok {
				return amount, true
			}
		}
	}
	return decimal.Zero, false
}
