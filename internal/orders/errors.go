package orders

import (
	"errors"
	"fmt"

	"github.com/joao-fontenele/shopfront/internal/domain"
)

var (
	ErrValidation        = errors.New("invalid order request")
	ErrItemNotFound      = errors.New("item not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrCommitFailed      = errors.New("order could not be committed")
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidStatus     = errors.New("invalid order status")
	ErrInvalidTransition = errors.New("invalid status transition")
)

type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

type ItemNotFoundError struct {
	ItemID int64
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("item %d not found", e.ItemID)
}

func (e *ItemNotFoundError) Is(target error) bool { return target == ErrItemNotFound }

type InsufficientStockError struct {
	ItemID    int64
	Name      string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %d, requested %d", e.label(), e.Available, e.Requested)
}

func (e *InsufficientStockError) label() string {
	if e.Name == "" {
		return fmt.Sprintf("item %d", e.ItemID)
	}
	return e.Name
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// CommitError reports a storage failure. Nothing from the order survived.
type CommitError struct {
	Err error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("%s: %v", ErrCommitFailed, e.Err)
}

func (e *CommitError) Unwrap() []error { return []error{ErrCommitFailed, e.Err} }

type TransitionError struct {
	From domain.OrderStatus
	To   domain.OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot change order status from %s to %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// isRejection reports whether err is a business rule failure rather than a
// storage problem.
func isRejection(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrItemNotFound) || errors.Is(err, ErrInsufficientStock)
}
