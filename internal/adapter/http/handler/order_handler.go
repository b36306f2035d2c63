package handler

import (
	"storefront-payments/internal/adapter/http/dto"
	"storefront-payments/internal/core/domain"
	"storefront-payments/internal/core/ports"
	"storefront-payments/pkg/apperror"
	"storefront-payments/pkg/response"

	"github.com/gin-gonic/gin"
)

// OrderHandler handles storefront order endpoints.
type OrderHandler struct {
	orderSvc ports.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderSvc ports.OrderService) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc}
}

// CreateOrder handles POST /api/v1/orders.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req dto.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	items := make([]ports.OrderLineInput, len(req.Items))
	for i, it := range req.Items {
		items[i] = ports.OrderLineInput{ProductID: it.ProductID, Quantity: it.Quantity}
	}

	order, err := h.orderSvc.CreateOrder(c.Request.Context(), ports.CreateOrderInput{
		Customer: domain.Customer{
			Name:    req.Customer.Name,
			Email:   req.Customer.Email,
			Phone:   req.Customer.Phone,
			Address: req.Customer.Address,
		},
		Items:         items,
		PaymentMethod: req.PaymentMethod,
		Discount:      req.Discount,
		Notes:         req.Notes,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, order)
}

// GetOrder handles GET /api/v1/orders/:orderNumber.
func (h *OrderHandler) GetOrder(c *gin.Context) {
	orderNumber, ok := orderNumberParam(c)
	if !ok {
		return
	}

	order, err := h.orderSvc.GetOrder(c.Request.Context(), orderNumber)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, order)
}

// orderNumberParam reads and checks :orderNumber, answering 400 when invalid.
func orderNumberParam(c *gin.Context) (string, bool) {
	orderNumber := c.Param("orderNumber")
	if !dto.IsOrderNumber(orderNumber) {
		response.Error(c, apperror.Validation("invalid order number"))
		return "", false
	}
	return orderNumber, true
}
