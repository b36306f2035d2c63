package domain

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// OrderStatus represents where an order is in its lifecycle.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
	OrderStatusFailed     OrderStatus = "failed"
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusConfirmed,
		OrderStatusCompleted, OrderStatusCancelled, OrderStatusRefunded, OrderStatusFailed:
		return true
	}
	return false
}

// PaymentStatus represents the money side of an order.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

var (
	ErrEmptyOrder       = errors.New("order must contain at least one item")
	ErrInvalidQuantity  = errors.New("item quantity must be positive")
	ErrNegativeAmount   = errors.New("prices and fees must not be negative")
	ErrNegativeTotal    = errors.New("order total must not be negative")
	ErrMissingOrderNo   = errors.New("order number is required")
	ErrTotalsMismatch   = errors.New("order total does not match its items")
	ErrTransitionDenied = errors.New("order status transition not allowed")
)

// Customer is the buyer snapshot stored on the order.
type Customer struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// OrderItem is fixed at order creation.
type OrderItem struct {
	ProductID string `json:"product_id"`
	Title     string `json:"title"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	Subtotal  int64  `json:"subtotal"`
}

// StatusHistoryEntry is one step in an order's append-only status log.
type StatusHistoryEntry struct {
	Status    OrderStatus `json:"status"`
	Note      string      `json:"note,omitempty"`
	UpdatedBy string      `json:"updated_by"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// PaymentInfo accumulates gateway and operator metadata for an order.
// Values are only ever added or replaced by Merge, never cleared.
type PaymentInfo struct {
	Method        string `json:"method,omitempty"`
	Gateway       string `json:"gateway,omitempty"`
	RequestID     string `json:"request_id,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
	PayType       string `json:"pay_type,omitempty"`
	ResultCode    *int   `json:"result_code,omitempty"`
	Message       string `json:"message,omitempty"`
	Verified      bool   `json:"verified,omitempty"`

	PaymentCreatedAt *time.Time `json:"payment_created_at,omitempty"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`
	FailedAt         *time.Time `json:"failed_at,omitempty"`
	ConfirmedAt      *time.Time `json:"confirmed_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	CancelledAt      *time.Time `json:"cancelled_at,omitempty"`
	RefundedAt       *time.Time `json:"refunded_at,omitempty"`

	ConfirmedBy  string `json:"confirmed_by,omitempty"`
	CompletedBy  string `json:"completed_by,omitempty"`
	CancelledBy  string `json:"cancelled_by,omitempty"`
	RefundedBy   string `json:"refunded_by,omitempty"`
	CancelReason string `json:"cancel_reason,omitempty"`
	Note         string `json:"note,omitempty"`
}

// Merge returns p with every non-zero field of patch applied on top.
func (p PaymentInfo) Merge(patch PaymentInfo) PaymentInfo {
	out := p

	mergeString(&out.Method, patch.Method)
	mergeString(&out.Gateway, patch.Gateway)
	mergeString(&out.RequestID, patch.RequestID)
	mergeString(&out.TransactionID, patch.TransactionID)
	mergeString(&out.PayType, patch.PayType)
	mergeString(&out.Message, patch.Message)
	if patch.ResultCode != nil {
		code := *patch.ResultCode
		out.ResultCode = &code
	}
	if patch.Verified {
		out.Verified = true
	}

	mergeTime(&out.PaymentCreatedAt, patch.PaymentCreatedAt)
	mergeTime(&out.PaidAt, patch.PaidAt)
	mergeTime(&out.FailedAt, patch.FailedAt)
	mergeTime(&out.ConfirmedAt, patch.ConfirmedAt)
	mergeTime(&out.CompletedAt, patch.CompletedAt)
	mergeTime(&out.CancelledAt, patch.CancelledAt)
	mergeTime(&out.RefundedAt, patch.RefundedAt)

	mergeString(&out.ConfirmedBy, patch.ConfirmedBy)
	mergeString(&out.CompletedBy, patch.CompletedBy)
	mergeString(&out.CancelledBy, patch.CancelledBy)
	mergeString(&out.RefundedBy, patch.RefundedBy)
	mergeString(&out.CancelReason, patch.CancelReason)
	mergeString(&out.Note, patch.Note)

	return out
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func mergeTime(dst **time.Time, v *time.Time) {
	if v != nil {
		t := *v
		*dst = &t
	}
}

// Order is a customer order and the payment state attached to it.
type Order struct {
	OrderNumber   string        `json:"order_number"`
	Customer      Customer      `json:"customer"`
	Items         []OrderItem   `json:"items"`
	Subtotal      int64         `json:"subtotal"`
	ShippingFee   int64         `json:"shipping_fee"`
	Tax           int64         `json:"tax"`
	Discount      int64         `json:"discount"`
	Total         int64         `json:"total"`
	PaymentMethod string        `json:"payment_method"`
	Status        OrderStatus   `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	PaymentInfo   PaymentInfo   `json:"payment_info"`

	StatusHistory []StatusHistoryEntry `json:"status_history"`

	// InventoryAppliedAt is set once, when stock and purchase counts were
	// adjusted for this order.
	InventoryAppliedAt *time.Time `json:"inventory_applied_at,omitempty"`

	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewOrderParams holds the inputs for NewOrder.
type NewOrderParams struct {
	OrderNumber   string
	Customer      Customer
	Items         []OrderItem
	ShippingFee   int64
	Tax           int64
	Discount      int64
	PaymentMethod string
	Notes         string
	CreatedBy     string
	Now           time.Time
}

// NewOrder builds a pending order, computing line subtotals and the total.
func NewOrder(p NewOrderParams) (*Order, error) {
	if p.OrderNumber == "" {
		return nil, ErrMissingOrderNo
	}
	if len(p.Items) == 0 {
		return nil, ErrEmptyOrder
	}
	if p.ShippingFee < 0 || p.Tax < 0 || p.Discount < 0 {
		return nil, ErrNegativeAmount
	}

	items := make([]OrderItem, len(p.Items))
	var subtotal int64
	for i, it := range p.Items {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: product %s", ErrInvalidQuantity, it.ProductID)
		}
		if it.UnitPrice < 0 {
			return nil, ErrNegativeAmount
		}
		it.Subtotal = it.UnitPrice * int64(it.Quantity)
		subtotal += it.Subtotal
		items[i] = it
	}

	total := subtotal + p.ShippingFee + p.Tax - p.Discount
	if total < 0 {
		return nil, ErrNegativeTotal
	}

	createdBy := p.CreatedBy
	if createdBy == "" {
		createdBy = "customer"
	}

	return &Order{
		OrderNumber:   p.OrderNumber,
		Customer:      p.Customer,
		Items:         items,
		Subtotal:      subtotal,
		ShippingFee:   p.ShippingFee,
		Tax:           p.Tax,
		Discount:      p.Discount,
		Total:         total,
		PaymentMethod: p.PaymentMethod,
		Status:        OrderStatusPending,
		PaymentStatus: PaymentStatusPending,
		PaymentInfo:   PaymentInfo{Method: p.PaymentMethod},
		StatusHistory: []StatusHistoryEntry{{
			Status:    OrderStatusPending,
			Note:      "Order created",
			UpdatedBy: createdBy,
			UpdatedAt: p.Now,
		}},
		Notes:     p.Notes,
		CreatedAt: p.Now,
		UpdatedAt: p.Now,
	}, nil
}

// CheckTotals verifies total == sum(subtotals) + shipping + tax - discount.
func (o *Order) CheckTotals() error {
	var sum int64
	for _, it := range o.Items {
		if it.Subtotal != it.UnitPrice*int64(it.Quantity) {
			return fmt.Errorf("%w: line %s", ErrTotalsMismatch, it.ProductID)
		}
		sum += it.Subtotal
	}
	if sum != o.Subtotal || o.Total != sum+o.ShippingFee+o.Tax-o.Discount {
		return ErrTotalsMismatch
	}
	return nil
}

// Transition moves the order to status to and appends one history entry.
// The payment status follows the order status (see NextPaymentStatus).
func (o *Order) Transition(to OrderStatus, actor Actor, by, note string, at time.Time) (StatusHistoryEntry, error) {
	if !CanTransition(o.Status, to, actor) {
		return StatusHistoryEntry{}, fmt.Errorf("%w: %s -> %s", ErrTransitionDenied, o.Status, to)
	}

	o.PaymentStatus = NextPaymentStatus(o.PaymentStatus, to)
	o.Status = to
	o.UpdatedAt = at

	entry := StatusHistoryEntry{
		Status:    to,
		Note:      note,
		UpdatedBy: by,
		UpdatedAt: at,
	}
	o.StatusHistory = append(o.StatusHistory, entry)
	return entry, nil
}

// InventoryApplied reports whether stock was already adjusted for this order.
func (o *Order) InventoryApplied() bool {
	return o.InventoryAppliedAt != nil
}

// NewOrderNumber returns an order number of the form ORD{YYYYMMDD}{4 digits}.
func NewOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD%s%04d", now.Format("20060102"), rand.IntN(10000))
}
