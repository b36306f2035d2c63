package handler

import (
	"context"

	"storefront-payments/internal/adapter/http/dto"
	"storefront-payments/internal/adapter/http/middleware"
	"storefront-payments/internal/core/domain"
	"storefront-payments/internal/core/ports"
	"storefront-payments/pkg/apperror"
	"storefront-payments/pkg/response"

	"github.com/gin-gonic/gin"
)

// AdminHandler handles back-office order endpoints.
type AdminHandler struct {
	orderSvc ports.OrderService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(orderSvc ports.OrderService) *AdminHandler {
	return &AdminHandler{orderSvc: orderSvc}
}

// ListOrders handles GET /api/v1/admin/orders.
func (h *AdminHandler) ListOrders(c *gin.Context) {
	var q dto.ListOrdersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	params := ports.OrderListParams{Page: q.Page, PageSize: q.PageSize}
	if q.Status != "" {
		s := domain.OrderStatus(q.Status)
		params.Status = &s
	}
	if q.PaymentStatus != "" {
		ps := domain.PaymentStatus(q.PaymentStatus)
		params.PaymentStatus = &ps
	}
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 {
		params.PageSize = 20
	}

	orders, total, err := h.orderSvc.ListOrders(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	if orders == nil {
		orders = []domain.Order{}
	}
	response.OK(c, dto.OrderListResponse{
		Items:      orders,
		Total:      total,
		Page:       params.Page,
		PageSize:   params.PageSize,
		TotalPages: int((total + int64(params.PageSize) - 1) / int64(params.PageSize)),
	})
}

// GetOrder handles GET /api/v1/admin/orders/:orderNumber.
func (h *AdminHandler) GetOrder(c *gin.Context) {
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

// ConfirmOrder handles PUT /api/v1/admin/orders/:orderNumber/confirm.
func (h *AdminHandler) ConfirmOrder(c *gin.Context) {
	h.noteAction(c, h.orderSvc.ConfirmOrder)
}

// CompleteOrder handles PUT /api/v1/admin/orders/:orderNumber/complete.
func (h *AdminHandler) CompleteOrder(c *gin.Context) {
	h.noteAction(c, h.orderSvc.CompleteOrder)
}

// RefundOrder handles PUT /api/v1/admin/orders/:orderNumber/refund.
func (h *AdminHandler) RefundOrder(c *gin.Context) {
	h.noteAction(c, h.orderSvc.RefundOrder)
}

// CancelOrder handles PUT /api/v1/admin/orders/:orderNumber/cancel.
func (h *AdminHandler) CancelOrder(c *gin.Context) {
	orderNumber, ok := orderNumberParam(c)
	if !ok {
		return
	}

	var req dto.CancelOrderRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	order, err := h.orderSvc.CancelOrder(c.Request.Context(), orderNumber, middleware.Actor(c), req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, order)
}

type adminAction func(ctx context.Context, orderNumber, actor, note string) (*domain.Order, error)

func (h *AdminHandler) noteAction(c *gin.Context, action adminAction) {
	orderNumber, ok := orderNumberParam(c)
	if !ok {
		return
	}

	var req dto.AdminActionRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	order, err := action(c.Request.Context(), orderNumber, middleware.Actor(c), req.Note)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, order)
}

// bindOptionalJSON binds and sanitizes a body if one was sent.
func bindOptionalJSON(c *gin.Context, req any) bool {
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(req); err != nil {
			response.Error(c, apperror.Validation(err.Error()))
			return false
		}
	}
	dto.SanitizeStruct(req)
	return true
}
