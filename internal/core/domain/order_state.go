package domain

import "slices"

// Actor distinguishes automatic transitions from administrator overrides.
type Actor int

const (
	// ActorSystem covers gateway callbacks and checkout.
	ActorSystem Actor = iota
	// ActorAdmin is a trusted back-office operator.
	ActorAdmin
)

var systemTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCompleted, OrderStatusFailed, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusCompleted, OrderStatusFailed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusCompleted, OrderStatusCancelled},
}

var adminOnlyTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed},
	OrderStatusProcessing: {OrderStatusConfirmed},
	OrderStatusCompleted:  {OrderStatusRefunded},
}

// CanTransition reports whether actor may move an order from one status to another.
// A transition to the current status is never allowed; callers treat it as a no-op.
func CanTransition(from, to OrderStatus, actor Actor) bool {
	if slices.Contains(systemTransitions[from], to) {
		return true
	}
	return actor == ActorAdmin && slices.Contains(adminOnlyTransitions[from], to)
}

// IsTerminal reports whether no automatic transition leaves status s.
func IsTerminal(s OrderStatus) bool {
	return len(systemTransitions[s]) == 0
}

// NextPaymentStatus derives the payment status that accompanies an order status change.
func NextPaymentStatus(current PaymentStatus, to OrderStatus) PaymentStatus {
	switch to {
	case OrderStatusCompleted:
		return PaymentStatusPaid
	case OrderStatusFailed:
		return PaymentStatusFailed
	case OrderStatusRefunded:
		return PaymentStatusRefunded
	case OrderStatusCancelled:
		if current == PaymentStatusPaid {
			return PaymentStatusRefunded
		}
		return PaymentStatusFailed
	default:
		return current
	}
}

// AppliesInventory reports whether reaching status s consumes stock.
func AppliesInventory(s OrderStatus) bool {
	return s == OrderStatusConfirmed || s == OrderStatusCompleted
}
