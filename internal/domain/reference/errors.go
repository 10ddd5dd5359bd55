package reference

import "errors"

var (
	// ErrGovernanceDisabled is returned by every ledger operation when reference tracking is off
	ErrGovernanceDisabled    = errors.New("reference governance is disabled")
	ErrActiveReferenceExists = errors.New("an active reference with this code already exists for the store")
	ErrStoreMismatch         = errors.New("reference belongs to another store")
	ErrReferenceExpired      = errors.New("reference has expired")
	ErrReferenceCancelled    = errors.New("reference was cancelled")
	ErrReferenceReplayed     = errors.New("reference was already matched")
	ErrNotCancellable        = errors.New("only reserved references can be cancelled")
)

// ErrReferenceNotFound indicates a missing reference
type ErrReferenceNotFound struct {
	Reference string
}

func (e ErrReferenceNotFound) Error() string {
	return "reference not found: " + e.Reference
}

// Is matches any ErrReferenceNotFound when the target carries no code
func (e ErrReferenceNotFound) Is(target error) bool {
	t, ok := target.(ErrReferenceNotFound)
	if !ok {
		return false
	}
	if t.Reference == "" {
		return true
	}
	return e.Reference == t.Reference
}

// ErrConcurrentTransition indicates a lost compare-and-swap on the reference status
type ErrConcurrentTransition struct {
	Reference string
}

func (e ErrConcurrentTransition) Error() string {
	return "concurrent status transition detected for reference: " + e.Reference
}

func (e ErrConcurrentTransition) Is(target error) bool {
	t, ok := target.(ErrConcurrentTransition)
	if !ok {
		return false
	}
	if t.Reference == "" {
		return true
	}
	return e.Reference == t.Reference
}
