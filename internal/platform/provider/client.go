// Package provider talks to the POS provider that holds the authoritative transaction records.
package provider

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidCredentials is returned when the provider rejects the API key or store secret,
// or when the client was built without them.
var ErrInvalidCredentials = errors.New("provider authentication failed")

// ConnectionError covers transport failures, provider 5xx responses and undecodable bodies
type ConnectionError struct {
	Message string
	Err     error
}

func (e *ConnectionError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Request identifies the payment the caller expects the provider to hold
type Request struct {
	OrderID       string
	Amount        decimal.Decimal
	PaymentMethod string
	TrxID         string
	Reference     string
}

// Response is the decoded provider body. Body is a JSON object or array as sent.
type Response struct {
	HTTPStatus int
	Body       interface{}
}

// PollingLimits tells polling clients how often and how long to poll
type PollingLimits struct {
	Interval    time.Duration
	MaxRequests int
	Timeout     time.Duration
}

// Client is the provider capability the verification core consumes
type Client interface {
	// Poll is the cheap status lookup used while the customer is paying
	Poll(ctx context.Context, req Request) (*Response, error)
	// Verify is the authoritative check for a known transaction id
	Verify(ctx context.Context, req Request) (*Response, error)
	// Confirm asks the provider to mark the transaction consumed
	Confirm(ctx context.Context, trxID, reference string) (*Response, error)
	ReserveReference(ctx context.Context, req Request) (*Response, error)
	StoreSlug() string
	PollingLimits() PollingLimits
}
