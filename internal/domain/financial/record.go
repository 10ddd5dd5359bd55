// Package financial models the financial status derived from confirmed payments.
package financial

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the financial outcome of a payment against its order
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusPartial   Status = "PARTIAL"
	StatusOverpaid  Status = "OVERPAID"
	StatusRefunded  Status = "REFUNDED"
	StatusCancelled Status = "CANCELLED"
)

// AllStatuses lists every financial status in display order
var AllStatuses = []Status{StatusPending, StatusConfirmed, StatusPartial, StatusOverpaid, StatusRefunded, StatusCancelled}

// SettleableStatuses are the statuses a settlement batch picks up
var SettleableStatuses = []Status{StatusConfirmed, StatusPartial, StatusOverpaid}

// Money amounts are compared and stored at this precision
const MoneyScale = 2

// Normalized amounts keep more precision than money
const NormalizedScale = 8

// Record is the financial view of one reference
type Record struct {
	ID               int64               `json:"id"`
	Reference        string              `json:"reference"`
	OrderID          string              `json:"order_id"`
	StoreSlug        string              `json:"store_slug"`
	AmountExpected   decimal.Decimal     `json:"amount_expected"`
	AmountPaid       decimal.Decimal     `json:"amount_paid"`
	Currency         string              `json:"currency"`
	BaseCurrency     string              `json:"base_currency"`
	ExchangeRate     decimal.NullDecimal `json:"exchange_rate"`
	NormalizedAmount decimal.NullDecimal `json:"normalized_amount"`
	Status           Status              `json:"status"`
	Gateway          string              `json:"gateway"`
	TrxID            *string             `json:"trx_id,omitempty"`
	SettlementID     *string             `json:"settlement_id,omitempty"`
	LedgerExported   bool                `json:"ledger_exported"`
	ConfirmedAt      *time.Time          `json:"confirmed_at,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// Context carries optional facts about the payment beyond the two amounts
type Context struct {
	Currency string
	Refund   bool
	Status   string // An explicit provider status such as "refunded"
}

// DetermineStatus derives the financial status from rounded amounts
func DetermineStatus(expected, paid decimal.Decimal, ctx Context) Status {
	if ctx.Refund || strings.EqualFold(strings.TrimSpace(ctx.Status), "refunded") {
		return StatusRefunded
	}

	expected = expected.Round(MoneyScale)
	paid = paid.Round(MoneyScale)

	switch {
	case paid.IsNegative():
		return StatusRefunded
	case paid.Equal(expected):
		return StatusConfirmed
	case paid.LessThan(expected):
		return StatusPartial
	case paid.GreaterThan(expected):
		return StatusOverpaid
	default:
		return StatusPending
	}
}

// EffectivePaid is the amount used for cross-gateway totals: normalized when known, raw otherwise
func (r *Record) EffectivePaid() decimal.Decimal {
	if r.NormalizedAmount.Valid {
		return r.NormalizedAmount.Decimal
	}
	return r.AmountPaid
}

// ExpectedInBase converts the expected amount with the stored rate, or returns it unchanged without one
func (r *Record) ExpectedInBase() decimal.Decimal {
	if r.ExchangeRate.Valid {
		return r.AmountExpected.Mul(r.ExchangeRate.Decimal)
	}
	return r.AmountExpected
}

// Payment is a confirmed payment to be recorded against its reference
type Payment struct {
	Reference      string
	OrderID        string
	StoreSlug      string
	AmountExpected decimal.Decimal
	AmountPaid     decimal.Decimal
	Gateway        string
	TrxID          string
	Context        Context
}
