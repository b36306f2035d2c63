package handler

import (
	"strings"

	"storefront-payments/internal/adapter/http/dto"
	"storefront-payments/internal/core/domain"
	"storefront-payments/internal/core/ports"
	"storefront-payments/pkg/apperror"
	"storefront-payments/pkg/response"

	"github.com/gin-gonic/gin"
)

// PaymentHandler handles checkout payment endpoints.
type PaymentHandler struct {
	paymentSvc    ports.PaymentService
	publicBaseURL string
}

// NewPaymentHandler creates a new PaymentHandler. publicBaseURL is the
// externally reachable origin of this service; when empty the request's
// own scheme and host are used.
func NewPaymentHandler(paymentSvc ports.PaymentService, publicBaseURL string) *PaymentHandler {
	return &PaymentHandler{paymentSvc: paymentSvc, publicBaseURL: publicBaseURL}
}

// CreatePayment handles POST /api/v1/payments.
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	var req dto.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.paymentSvc.CreatePayment(c.Request.Context(), ports.CreatePaymentInput{
		OrderNumber:   req.OrderNumber,
		Method:        req.PaymentMethod,
		OrderInfo:     req.OrderInfo,
		ReturnBaseURL: h.baseURL(c),
		ClientIP:      c.ClientIP(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.NewPaymentResponse(result))
}

// GetPaymentStatus handles GET /api/v1/payments/status/:orderNumber.
func (h *PaymentHandler) GetPaymentStatus(c *gin.Context) {
	orderNumber := c.Param("orderNumber")
	if !dto.IsOrderNumber(orderNumber) {
		response.Error(c, apperror.Validation("invalid order number"))
		return
	}

	order, err := h.paymentSvc.GetPaymentStatus(c.Request.Context(), orderNumber)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewPaymentStatusResponse(order))
}

// ListMethods handles GET /api/v1/payments/methods.
func (h *PaymentHandler) ListMethods(c *gin.Context) {
	response.OK(c, domain.PaymentMethods())
}

func (h *PaymentHandler) baseURL(c *gin.Context) string {
	if h.publicBaseURL != "" {
		return strings.TrimRight(h.publicBaseURL, "/")
	}
	scheme := "http"
	if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host
}
