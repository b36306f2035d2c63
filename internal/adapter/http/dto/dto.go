package dto

import "storefront-payments/internal/core/domain"

// CustomerRequest is the buyer block of an order.
type CustomerRequest struct {
	Name    string `json:"name" binding:"required,max=100"`
	Email   string `json:"email" binding:"omitempty,email,max=254"`
	Phone   string `json:"phone" binding:"required,max=20"`
	Address string `json:"address" binding:"max=300"`
}

// OrderItemRequest is one requested product line.
type OrderItemRequest struct {
	ProductID string `json:"product_id" binding:"required,max=64,safe_id"`
	Quantity  int    `json:"quantity" binding:"required,gt=0,lte=100"`
}

// CreateOrderRequest is the request body for placing an order.
type CreateOrderRequest struct {
	Customer      CustomerRequest    `json:"customer" binding:"required"`
	Items         []OrderItemRequest `json:"items" binding:"required,min=1,max=50,dive"`
	PaymentMethod string             `json:"payment_method" binding:"required,oneof=momo cod bank_transfer"`
	Discount      int64              `json:"discount" binding:"gte=0"`
	Notes         string             `json:"notes" binding:"max=500"`
}

// CreatePaymentRequest is the request body for creating a payment link.
type CreatePaymentRequest struct {
	OrderNumber   string `json:"order_number" binding:"required,order_number"`
	PaymentMethod string `json:"payment_method" binding:"required,oneof=momo"`
	OrderInfo     string `json:"order_info" binding:"max=255"`
}

// AdminActionRequest is the optional body of confirm/complete/refund.
type AdminActionRequest struct {
	Note string `json:"note" binding:"max=500"`
}

// CancelOrderRequest is the optional body of an admin cancel.
type CancelOrderRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// ListOrdersQuery holds the admin order list filters.
type ListOrdersQuery struct {
	Status        string `form:"status" binding:"omitempty,oneof=pending processing confirmed completed cancelled refunded failed"`
	PaymentStatus string `form:"payment_status" binding:"omitempty,oneof=pending paid failed refunded"`
	Page          int    `form:"page" binding:"omitempty,gte=1"`
	PageSize      int    `form:"page_size" binding:"omitempty,gte=1,lte=100"`
}

// PaymentResponse is the response body for a created payment link.
type PaymentResponse struct {
	PayURL      string `json:"pay_url"`
	Deeplink    string `json:"deeplink,omitempty"`
	QRCodeURL   string `json:"qr_code_url,omitempty"`
	RequestID   string `json:"request_id"`
	OrderNumber string `json:"order_number"`
	Amount      int64  `json:"amount"`
}

// NewPaymentResponse maps a gateway result.
func NewPaymentResponse(r *domain.PaymentResult) PaymentResponse {
	return PaymentResponse{
		PayURL:      r.PayURL,
		Deeplink:    r.Deeplink,
		QRCodeURL:   r.QRCodeURL,
		RequestID:   r.RequestID,
		OrderNumber: r.OrderID,
		Amount:      r.Amount,
	}
}

// PaymentStatusResponse is the checkout view of an order's payment.
type PaymentStatusResponse struct {
	OrderNumber   string               `json:"order_number"`
	Status        domain.OrderStatus   `json:"status"`
	PaymentStatus domain.PaymentStatus `json:"payment_status"`
	PaymentMethod string               `json:"payment_method"`
	Total         int64                `json:"total"`
	TransactionID string               `json:"transaction_id,omitempty"`
	PaidAt        *string              `json:"paid_at,omitempty"`
}

// NewPaymentStatusResponse maps an order.
func NewPaymentStatusResponse(o *domain.Order) PaymentStatusResponse {
	resp := PaymentStatusResponse{
		OrderNumber:   o.OrderNumber,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		PaymentMethod: o.PaymentMethod,
		Total:         o.Total,
		TransactionID: o.PaymentInfo.TransactionID,
	}
	if o.PaymentInfo.PaidAt != nil {
		s := o.PaymentInfo.PaidAt.UTC().Format("2006-01-02T15:04:05Z07:00")
		resp.PaidAt = &s
	}
	return resp
}

// OrderListResponse wraps a paginated order list.
type OrderListResponse struct {
	Items      []domain.Order `json:"items"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	TotalPages int            `json:"total_pages"`
}
