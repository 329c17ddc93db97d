package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput rejects bad requests before any store interaction
	ErrInvalidInput = errors.New("invalid input")
	// ErrTerminalState is returned when a transition is attempted on an
	// order already in Paid or Cancelled
	ErrTerminalState = errors.New("order is in a terminal state")
	// ErrStockNotApplied guards settlement: an order may only be paid
	// after its stock deduction committed
	ErrStockNotApplied = errors.New("stock has not been applied to this order")
)

// InsufficientStockError aborts a stock application naming the first
// product that cannot cover its requested quantity. Nothing is
// deducted when it is returned.
type InsufficientStockError struct {
	ProductID string
	Name      string
	Have      int
	Need      int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for %s (have %d, need %d)", e.Name, e.Have, e.Need)
}
