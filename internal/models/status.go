package models

// OrderStatus is the order lifecycle state. Both terminal states are
// final: nothing transitions out of Paid or Cancelled.
type OrderStatus string

const (
	StatusReserved  OrderStatus = "Reserved"
	StatusPaid      OrderStatus = "Paid"
	StatusCancelled OrderStatus = "Cancelled"
)

var validNext = map[OrderStatus]map[OrderStatus]bool{
	StatusReserved:  {StatusPaid: true, StatusCancelled: true},
	StatusPaid:      {},
	StatusCancelled: {},
}

// CanTransition reports whether an order may move from one status to
// another. Self-transitions are not valid moves; callers treat them as
// no-ops before getting here.
func CanTransition(from, to OrderStatus) bool {
	return validNext[from][to]
}

// Terminal reports whether a status is final.
func (s OrderStatus) Terminal() bool {
	return s == StatusPaid || s == StatusCancelled
}
