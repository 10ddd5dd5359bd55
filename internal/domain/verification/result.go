// Package verification holds the outcome of a single payment verification attempt.
package verification

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Status is the caller-visible state of a verification attempt
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusUsed      Status = "used"
	StatusExpired   Status = "expired"
	StatusFailed    Status = "failed"
)

// Stable machine-readable failure codes
const (
	CodeStoreMismatch          = "STORE_MISMATCH"
	CodeAmountMismatch         = "AMOUNT_MISMATCH"
	CodeMethodMismatch         = "METHOD_MISMATCH"
	CodeReferenceMismatch      = "REFERENCE_MISMATCH"
	CodeReferenceExpired       = "REFERENCE_EXPIRED"
	CodeReferenceReplay        = "REFERENCE_REPLAY"
	CodeReferenceCancelled     = "REFERENCE_CANCELLED"
	CodeTransactionNotFound    = "TRANSACTION_NOT_FOUND"
	CodeTransactionAlreadyUsed = "TRANSACTION_ALREADY_USED"
	CodeTransactionExpired     = "TRANSACTION_EXPIRED"
	CodeTransactionFailed      = "TRANSACTION_FAILED"
	CodeInvalidPaymentMethod   = "INVALID_PAYMENT_METHOD"
	CodeInvalidCredentials     = "INVALID_CREDENTIALS"
	CodeAPIError               = "API_ERROR"
	CodeInternalError          = "INTERNAL_ERROR"
)

// ReferenceMeta describes the reference lifecycle state attached to a confirmed result
type ReferenceMeta struct {
	Status    string
	CreatedAt string
	ExpiresAt string
}

// Result is constructed once per verification attempt and never mutated.
// Use the constructors below; the zero value is not a valid result.
type Result struct {
	Status             Status           `json:"status"`
	TrxID              string           `json:"trx_id,omitempty"`
	Amount             *decimal.Decimal `json:"amount,omitempty"`
	PaymentMethod      string           `json:"payment_method,omitempty"`
	StoreSlug          string           `json:"store_slug,omitempty"`
	ReferenceStatus    string           `json:"reference_status,omitempty"`
	ReferenceCreatedAt string           `json:"reference_created_at,omitempty"`
	ReferenceExpiresAt string           `json:"reference_expires_at,omitempty"`
	ErrorCode          string           `json:"error_code,omitempty"`
	ErrorMessage       string           `json:"error_message,omitempty"`
	Message            string           `json:"message,omitempty"`
}

// Confirmed builds a successful result
func Confirmed(trxID string, amount decimal.Decimal, paymentMethod, storeSlug string, ref ReferenceMeta) Result {
	return Result{
		Status:             StatusConfirmed,
		TrxID:              trxID,
		Amount:             &amount,
		PaymentMethod:      paymentMethod,
		StoreSlug:          storeSlug,
		ReferenceStatus:    ref.Status,
		ReferenceCreatedAt: ref.CreatedAt,
		ReferenceExpiresAt: ref.ExpiresAt,
	}
}

// Pending builds a result for a transaction that is not settled yet
func Pending(message string) Result {
	return Result{Status: StatusPending, Message: message}
}

// Failed builds a failure with a stable code
func Failed(code, message string) Result {
	return Result{Status: StatusFailed, ErrorCode: code, ErrorMessage: message}
}

// AlreadyUsed signals that the transaction was consumed by another order
func AlreadyUsed(trxID string) Result {
	return Result{
		Status:       StatusUsed,
		TrxID:        trxID,
		ErrorCode:    CodeTransactionAlreadyUsed,
		ErrorMessage: fmt.Sprintf("Transaction %s has already been used for another order", trxID),
	}
}

// Expired signals that the provider expired the transaction
func Expired(trxID string) Result {
	return Result{
		Status:       StatusExpired,
		TrxID:        trxID,
		ErrorCode:    CodeTransactionExpired,
		ErrorMessage: fmt.Sprintf("Transaction %s has expired", trxID),
	}
}

func (r Result) IsConfirmed() bool {
	return r.Status == StatusConfirmed
}

func (r Result) IsPending() bool {
	return r.Status == StatusPending
}

// IsFailed reports failed, used and expired outcomes
func (r Result) IsFailed() bool {
	switch r.Status {
	case StatusFailed, StatusUsed, StatusExpired:
		return true
	}
	return false
}

// IsTerminal reports whether polling can stop
func (r Result) IsTerminal() bool {
	return !r.IsPending()
}

// ToMap returns the serialized form, omitting empty fields
func (r Result) ToMap() map[string]interface{} {
	data := map[string]interface{}{
		"status": string(r.Status),
	}
	if r.TrxID != "" {
		data["trx_id"] = r.TrxID
	}
	if r.Amount != nil {
		data["amount"] = r.Amount.StringFixed(2)
	}
	if r.PaymentMethod != "" {
		data["payment_method"] = r.PaymentMethod
	}
	if r.StoreSlug != "" {
		data["store_slug"] = r.StoreSlug
	}
	if r.ReferenceStatus != "" {
		data["reference_status"] = r.ReferenceStatus
	}
	if r.ReferenceCreatedAt != "" {
		data["reference_created_at"] = r.ReferenceCreatedAt
	}
	if r.ReferenceExpiresAt != "" {
		data["reference_expires_at"] = r.ReferenceExpiresAt
	}
	if r.ErrorCode != "" {
		data["error_code"] = r.ErrorCode
		data["error_message"] = r.ErrorMessage
	}
	if r.Message != "" {
		data["message"] = r.Message
	}
	return data
}
