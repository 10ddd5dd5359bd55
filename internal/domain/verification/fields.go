package verification

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Canonical keys of a normalized provider payload
const (
	FieldOrderID            = "order_id"
	FieldAmount             = "amount"
	FieldStoreSlug          = "store_slug"
	FieldReference          = "reference"
	FieldTrxID              = "trx_id"
	FieldStatus             = "status"
	FieldRawStatus          = "raw_status"
	FieldPaymentMethod      = "payment_method"
	FieldCurrency           = "currency"
	FieldReferenceStatus    = "reference_status"
	FieldReferenceCreatedAt = "reference_created_at"
	FieldReferenceExpiresAt = "reference_expires_at"
	FieldMessage            = "message"
)

// Fields is a provider payload after normalization. Values keep their decoded JSON types.
type Fields map[string]interface{}

// Has reports whether key holds a non-blank value
func (f Fields) Has(key string) bool {
	return f.String(key) != ""
}

// String renders the value under key as trimmed text, or "" when absent
func (f Fields) String(key string) string {
	v, ok := f[key]
	if !ok {
		return ""
	}
	return ValueString(v)
}

// Status returns the canonical status, defaulting to pending
func (f Fields) Status() Status {
	switch s := Status(f.String(FieldStatus)); s {
	case StatusConfirmed, StatusPending, StatusExpired, StatusUsed, StatusFailed:
		return s
	}
	return StatusPending
}

// Decimal parses the value under key as an amount
func (f Fields) Decimal(key string) (decimal.Decimal, bool) {
	v, ok := f[key]
	if !ok {
		return decimal.Zero, false
	}
	return ParseAmount(v)
}

// ValueString converts a decoded JSON scalar to text
func ValueString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case decimal.Decimal:
		return t.String()
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// ParseAmount accepts numbers, json.Number and numeric strings such as "1,250.00"
func ParseAmount(v interface{}) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, true
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(n), ",", "")
		if s == "" {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(s)
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(n), true
	case float32:
		return decimal.NewFromFloat32(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case int32:
		return decimal.NewFromInt32(n), true
	}
	return decimal.Zero, false
}
