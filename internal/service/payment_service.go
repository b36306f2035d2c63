package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storefront-payments/config"
	"storefront-payments/internal/core/domain"
	"storefront-payments/internal/core/ports"
	"storefront-payments/pkg/apperror"
	"storefront-payments/pkg/logger"

	"github.com/rs/zerolog"
)

// Result codes answered to the gateway on the IPN endpoint.
const (
	AckApplied       = 0
	AckOrderNotFound = 1
	AckIgnored       = 2
	AckRejected      = 97
	AckInternalError = 99
)

// WebhookPath is where both the IPN and the browser return land.
const WebhookPath = "/api/v1/webhooks/momo"

// PaymentServiceImpl implements ports.PaymentService.
type PaymentServiceImpl struct {
	orderRepo  ports.OrderRepository
	gateway    ports.PaymentGateway
	verifier   ports.CallbackVerifier
	reconciler ports.OrderReconciler
	auditSvc   ports.AuditService
	momoCfg    config.MoMoConfig
	checkout   config.CheckoutConfig
	now        func() time.Time
	log        zerolog.Logger
}

var _ ports.PaymentService = (*PaymentServiceImpl)(nil)

// NewPaymentService creates a new PaymentServiceImpl.
func NewPaymentService(
	orderRepo ports.OrderRepository,
	gateway ports.PaymentGateway,
	verifier ports.CallbackVerifier,
	reconciler ports.OrderReconciler,
	auditSvc ports.AuditService,
	momoCfg config.MoMoConfig,
	checkout config.CheckoutConfig,
	log zerolog.Logger,
) *PaymentServiceImpl {
	return &PaymentServiceImpl{
		orderRepo:  orderRepo,
		gateway:    gateway,
		verifier:   verifier,
		reconciler: reconciler,
		auditSvc:   auditSvc,
		momoCfg:    momoCfg,
		checkout:   checkout,
		now:        time.Now,
		log:        logger.Component(log, "payment"),
	}
}

// CreatePayment requests a MoMo payment link for an open order and moves
// it to processing. A gateway failure leaves the order untouched.
func (s *PaymentServiceImpl) CreatePayment(ctx context.Context, in ports.CreatePaymentInput) (*domain.PaymentResult, error) {
	if in.Method != domain.PaymentMethodMoMo {
		return nil, apperror.Validation(fmt.Sprintf("unsupported payment method %q", in.Method))
	}

	order, err := s.orderRepo.GetByOrderNumber(ctx, in.OrderNumber)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get order: %w", err))
	}
	if order == nil {
		return nil, apperror.ErrOrderNotFound(in.OrderNumber)
	}
	if order.Status != domain.OrderStatusPending && order.Status != domain.OrderStatusProcessing {
		return nil, apperror.ErrInvalidTransition(string(order.Status), string(domain.OrderStatusProcessing))
	}

	description := strings.TrimSpace(in.OrderInfo)
	if description == "" {
		description = "Payment for order " + order.OrderNumber
	}
	fallback := strings.TrimRight(in.ReturnBaseURL, "/") + WebhookPath

	result, err := s.gateway.CreatePayment(ctx, domain.PaymentRequest{
		OrderID:     order.OrderNumber,
		Amount:      order.Total,
		Description: description,
		RedirectURL: firstNonEmpty(s.momoCfg.RedirectURL, fallback),
		NotifyURL:   firstNonEmpty(s.momoCfg.IPNURL, fallback),
		RequestType: s.momoCfg.RequestType,
		Lang:        s.momoCfg.Lang,
	})
	if err != nil {
		return nil, err
	}

	createdAt := s.now().UTC()
	if _, err := s.reconciler.MarkPaymentCreated(ctx, order.OrderNumber, domain.PaymentInfo{
		Method:           domain.PaymentMethodMoMo,
		Gateway:          domain.GatewayMoMo,
		RequestID:        result.RequestID,
		PaymentCreatedAt: &createdAt,
	}); err != nil {
		// The link is valid either way; the IPN settles a pending order directly.
		s.log.Error().Err(err).Str("order_number", order.OrderNumber).Msg("failed to record payment link on order")
	}

	s.auditSvc.Log(ctx, &domain.AuditLog{
		Actor:        "customer",
		Action:       domain.AuditActionPaymentCreate,
		ResourceType: "order",
		ResourceID:   order.OrderNumber,
		Details:      auditDetails(map[string]any{"request_id": result.RequestID, "amount": result.Amount}),
		IPAddress:    in.ClientIP,
	})

	s.log.Info().
		Str("order_number", order.OrderNumber).
		Str("request_id", result.RequestID).
		Int64("amount", result.Amount).
		Msg("payment link created")
	return result, nil
}

// HandleCallback verifies and applies an IPN, translating the outcome into
// the acknowledgement the gateway expects. Only failures that left the
// order untouched and may succeed later get a non-2xx answer.
func (s *PaymentServiceImpl) HandleCallback(ctx context.Context, payload map[string]string) ports.CallbackAck {
	result := s.verifier.Verify(payload)
	log := s.log.With().Str("order_number", result.OrderID).Str("trans_id", result.TransactionID).Logger()

	if !result.IsValidSignature {
		log.Warn().
			Str("reason", result.Message).
			Interface("payload", payload).
			Msg("rejected momo callback")
		s.auditSvc.Log(ctx, &domain.AuditLog{
			Actor:        domain.GatewayMoMo,
			Action:       domain.AuditActionCallbackRejected,
			ResourceType: "order",
			ResourceID:   result.OrderID,
			Details:      auditDetails(map[string]any{"reason": result.Message, "payload": payload}),
		})
		return ports.CallbackAck{HTTPStatus: http.StatusOK, ResultCode: AckRejected, Message: "rejected"}
	}

	_, err := s.reconciler.ApplyCallback(ctx, result.OrderID, result)
	switch {
	case err == nil:
		return ports.CallbackAck{HTTPStatus: http.StatusOK, ResultCode: AckApplied, Message: "success"}
	case apperror.HasCode(err, apperror.CodeOrderNotFound):
		log.Warn().Msg("callback for unknown order")
		return ports.CallbackAck{HTTPStatus: http.StatusOK, ResultCode: AckOrderNotFound, Message: "order not found"}
	case apperror.HasCode(err, apperror.CodeInvalidTransition), apperror.HasCode(err, apperror.CodeAmountMismatch):
		log.Warn().Err(err).Int("result_code", int(result.ResultCode)).Msg("callback ignored")
		return ports.CallbackAck{HTTPStatus: http.StatusOK, ResultCode: AckIgnored, Message: "ignored"}
	default:
		log.Error().Err(err).Msg("callback could not be applied")
		return ports.CallbackAck{HTTPStatus: http.StatusInternalServerError, ResultCode: AckInternalError, Message: "internal error"}
	}
}

// HandleReturnRedirect builds the frontend URL for a browser returning from
// the gateway. It never changes the order; the IPN does that.
func (s *PaymentServiceImpl) HandleReturnRedirect(_ context.Context, query map[string]string) string {
	result := s.verifier.Verify(query)

	status := "failed"
	switch {
	case !result.IsValidSignature:
		status = "error"
		s.log.Warn().Str("order_number", result.OrderID).Str("reason", result.Message).Msg("unverified return redirect")
	case result.IsSuccess:
		status = "success"
	}

	q := url.Values{}
	q.Set("status", status)
	q.Set("orderId", result.OrderID)
	q.Set("message", result.Message)
	return strings.TrimRight(s.checkout.FrontendURL, "/") + "/payment/result?" + q.Encode()
}

// GetPaymentStatus returns the order as last committed.
func (s *PaymentServiceImpl) GetPaymentStatus(ctx context.Context, orderNumber string) (*domain.Order, error) {
	order, err := s.orderRepo.GetByOrderNumber(ctx, orderNumber)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get order: %w", err))
	}
	if order == nil {
		return nil, apperror.ErrOrderNotFound(orderNumber)
	}
	return order, nil
}

func auditDetails(v map[string]any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
