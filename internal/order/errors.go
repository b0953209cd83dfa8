package order

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by Service matches exactly one of these
// under errors.Is.
var (
	ErrValidation    = errors.New("validation error")
	ErrStateConflict = errors.New("state conflict")
	ErrCollaborator  = errors.New("collaborator failure")
)

var (
	ErrAddressNotFound = fmt.Errorf("%w: address not found", ErrValidation)
	ErrCartEmpty       = fmt.Errorf("%w: shopping cart is empty", ErrValidation)
	ErrInvalidLine     = fmt.Errorf("%w: cart line has no quantity", ErrValidation)

	ErrNotFound    = fmt.Errorf("%w: order not found", ErrStateConflict)
	ErrNotOwned    = fmt.Errorf("%w: order does not belong to user", ErrStateConflict)
	ErrOrderStatus = fmt.Errorf("%w: order status error", ErrStateConflict)
)

// ErrDuplicateNumber reports an order number another instance already used.
// Submit retries with a fresh number.
var ErrDuplicateNumber = errors.New("order number taken")

// collaborator tags err as a datastore/cache/gateway failure unless it
// already carries a kind.
func collaborator(op string, err error) error {
	if errors.Is(err, ErrValidation) || errors.Is(err, ErrStateConflict) || errors.Is(err, ErrCollaborator) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrCollaborator, op, err)
}
