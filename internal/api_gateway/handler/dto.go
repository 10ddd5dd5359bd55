package handler

import (
	"time"

	"github.com/vendweave-gateway/internal/domain/reference"
)

// Validation codes returned before a request reaches the verifier
const (
	CodeMissingAmount        = "MISSING_AMOUNT"
	CodeInvalidAmount        = "INVALID_AMOUNT"
	CodeMissingPaymentMethod = "MISSING_PAYMENT_METHOD"
)

// VerifyPaymentRequest represents a request to verify a payment.
// Amount accepts a JSON number or a numeric string.
type VerifyPaymentRequest struct {
	OrderID       string      `json:"order_id" binding:"required"`
	Amount        interface{} `json:"amount"`
	PaymentMethod string      `json:"payment_method"`
	TrxID         string      `json:"trx_id,omitempty"`
	Reference     string      `json:"reference,omitempty"`
}

// PollQuery represents the query string of the poll endpoint
type PollQuery struct {
	Amount        string `form:"amount"`
	PaymentMethod string `form:"payment_method"`
	TrxID         string `form:"trx_id"`
	Reference     string `form:"reference"`
}

// ReserveReferenceRequest represents a request to reserve a payment reference
type ReserveReferenceRequest struct {
	OrderID       string      `json:"order_id" binding:"required"`
	Amount        interface{} `json:"amount"`
	PaymentMethod string      `json:"payment_method"`
	Reference     string      `json:"reference" binding:"required"`
}

// ReferenceResponse represents a reference in API responses
type ReferenceResponse struct {
	Reference   string `json:"reference"`
	OrderID     string `json:"order_id"`
	StoreID     string `json:"store_id"`
	Status      string `json:"status"`
	ExpiresAt   string `json:"expires_at"`
	MatchedAt   string `json:"matched_at,omitempty"`
	ReplayCount int    `json:"replay_count"`
	CreatedAt   string `json:"created_at"`
}

// PollingResponse tells the client how to keep polling
type PollingResponse struct {
	IntervalMS     int64 `json:"interval_ms"`
	MaxRequests    int   `json:"max_requests"`
	TimeoutSeconds int64 `json:"timeout_seconds"`
}

// PaginationParams represents offset pagination parameters for list endpoints
type PaginationParams struct {
	Limit  int `form:"limit,default=20" binding:"min=1,max=100"`
	Offset int `form:"offset,default=0" binding:"min=0"`
}

// mapReferenceToResponse maps a reference to its response DTO
func mapReferenceToResponse(ref *reference.Reference) ReferenceResponse {
	response := ReferenceResponse{
		Reference:   ref.Reference,
		OrderID:     ref.OrderID,
		StoreID:     ref.StoreID,
		Status:      ref.Status.Lower(),
		ExpiresAt:   ref.ExpiresAt.UTC().Format(time.RFC3339),
		ReplayCount: ref.ReplayCount,
		CreatedAt:   ref.CreatedAt.UTC().Format(time.RFC3339),
	}

	if ref.MatchedAt != nil {
		response.MatchedAt = ref.MatchedAt.UTC().Format(time.RFC3339)
	}

	return response
}
