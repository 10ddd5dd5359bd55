// Package reference models payment reference codes and their lifecycle.
package reference

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrEmptyReference = errors.New("reference code cannot be empty")
	ErrEmptyStoreID   = errors.New("store id cannot be empty")
	ErrEmptyOrderID   = errors.New("order id cannot be empty")
	ErrInvalidTTL     = errors.New("reference ttl must be positive")
)

// Status is the lifecycle state of a reference
type Status string

const (
	StatusReserved  Status = "RESERVED"
	StatusMatched   Status = "MATCHED"
	StatusExpired   Status = "EXPIRED"
	StatusReplayed  Status = "REPLAYED"
	StatusCancelled Status = "CANCELLED"
)

// AllStatuses lists every lifecycle state in display order
var AllStatuses = []Status{StatusReserved, StatusMatched, StatusExpired, StatusReplayed, StatusCancelled}

// ParseStatus accepts either case, returning false for unknown values
func ParseStatus(raw string) (Status, bool) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	for _, known := range AllStatuses {
		if s == known {
			return s, true
		}
	}
	return "", false
}

// IsActive reports whether the status blocks another reservation of the same code in the store
func (s Status) IsActive() bool {
	return s == StatusReserved || s == StatusMatched
}

// Consumed reports whether a payment already matched this reference
func (s Status) Consumed() bool {
	return s == StatusMatched || s == StatusReplayed
}

// Lower is the form exposed to API callers, e.g. "matched"
func (s Status) Lower() string {
	return strings.ToLower(string(s))
}

// Reference is a code placed in a payment note, reserved for one order in one store
type Reference struct {
	ID          int64      `json:"id"`
	Reference   string     `json:"reference"`
	OrderID     string     `json:"order_id"`
	StoreID     string     `json:"store_id"`
	Status      Status     `json:"status"`
	ExpiresAt   time.Time  `json:"expires_at"`
	MatchedAt   *time.Time `json:"matched_at,omitempty"`
	ReplayCount int        `json:"replay_count"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewReference creates a RESERVED reference expiring ttl after now
func NewReference(storeID, orderID, code string, ttl time.Duration, now time.Time) (*Reference, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrEmptyReference
	}
	if storeID == "" {
		return nil, ErrEmptyStoreID
	}
	if orderID == "" {
		return nil, ErrEmptyOrderID
	}
	if ttl <= 0 {
		return nil, ErrInvalidTTL
	}

	return &Reference{
		Reference: code,
		OrderID:   orderID,
		StoreID:   storeID,
		Status:    StatusReserved,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IsOverdue reports whether the reservation window has closed at the given instant
func (r *Reference) IsOverdue(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// BelongsTo reports whether the reference is scoped to storeID. An empty storeID matches any store.
func (r *Reference) BelongsTo(storeID string) bool {
	return storeID == "" || r.StoreID == storeID
}
