package financial

import (
	"time"

	"github.com/shopspring/decimal"
)

// Settlement groups unsettled records for payout
type Settlement struct {
	ID            int64           `json:"id"`
	SettlementID  string          `json:"settlement_id"`
	StoreSlug     string          `json:"store_slug,omitempty"`
	Gateway       string          `json:"gateway,omitempty"`
	Date          time.Time       `json:"date"`
	TotalExpected decimal.Decimal `json:"total_expected"`
	TotalPaid     decimal.Decimal `json:"total_paid"`
	RecordCount   int             `json:"record_count"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Filter narrows a record selection. Empty fields do not filter.
type Filter struct {
	StoreSlug string
	Gateway   string
	Date      *time.Time // Matches records created on this calendar day (UTC)
}

// Reconciliation totals every gateway's contribution to one order
type Reconciliation struct {
	OrderID      string                     `json:"order_id"`
	BaseCurrency string                     `json:"base_currency"`
	Gateways     map[string]decimal.Decimal `json:"gateways"`
	TotalPaid    decimal.Decimal            `json:"total_paid"`
	RecordCount  int                        `json:"record_count"`
}
