package service

import (
	"maps"
	"strconv"
	"strings"

	"storefront-payments/config"
	"storefront-payments/internal/core/domain"
	"storefront-payments/internal/core/ports"
	"storefront-payments/pkg/logger"

	"github.com/rs/zerolog"
)

// MoMoCallbackVerifier implements ports.CallbackVerifier for MoMo IPN and
// return-redirect payloads.
type MoMoCallbackVerifier struct {
	cfg    config.MoMoConfig
	sigSvc ports.SignatureService
	log    zerolog.Logger
}

var _ ports.CallbackVerifier = (*MoMoCallbackVerifier)(nil)

// NewMoMoCallbackVerifier creates a new callback verifier.
func NewMoMoCallbackVerifier(cfg config.MoMoConfig, sigSvc ports.SignatureService, log zerolog.Logger) *MoMoCallbackVerifier {
	return &MoMoCallbackVerifier{
		cfg:    cfg,
		sigSvc: sigSvc,
		log:    logger.Component(log, "momo_callback"),
	}
}

// Verify recomputes the callback signature and normalizes the outcome.
// It always returns a populated result; when verification fails the reason
// is in Message and IsSuccess is false.
func (v *MoMoCallbackVerifier) Verify(payload map[string]string) *domain.CallbackResult {
	res := &domain.CallbackResult{
		OrderID:       payload["orderId"],
		RequestID:     payload["requestId"],
		TransactionID: payload["transId"],
		ResultCode:    domain.ParseResultCode(payload["resultCode"]),
		PayType:       payload["payType"],
		Message:       payload["message"],
		ResponseTime:  payload["responseTime"],
		Raw:           maps.Clone(payload),
	}
	if res.Raw == nil {
		res.Raw = map[string]string{}
	}
	if amount, err := strconv.ParseInt(strings.TrimSpace(payload["amount"]), 10, 64); err == nil {
		res.Amount = amount
	}

	if len(payload) == 0 {
		return v.reject(res, "empty callback payload")
	}
	supplied := strings.TrimSpace(payload["signature"])
	if supplied == "" {
		return v.reject(res, "missing signature")
	}
	if pc := payload["partnerCode"]; pc != v.cfg.PartnerCode {
		return v.reject(res, "partner code mismatch")
	}

	values := maps.Clone(payload)
	values["accessKey"] = v.cfg.AccessKey

	fields, err := SelectFields(domain.CallbackSignatureFields[:], values)
	if err != nil {
		return v.reject(res, err.Error())
	}
	if !v.sigSvc.Verify(v.cfg.SecretKey, v.sigSvc.BuildSigningString(fields), supplied) {
		return v.reject(res, "invalid signature")
	}

	res.IsValidSignature = true
	res.IsSuccess = res.ResultCode == domain.ResultCodeSuccess
	if res.Message == "" {
		res.Message = res.ResultCode.Message()
	}
	return res
}

func (v *MoMoCallbackVerifier) reject(res *domain.CallbackResult, reason string) *domain.CallbackResult {
	res.IsValidSignature = false
	res.IsSuccess = false
	res.Message = reason
	v.log.Debug().
		Str("order_number", res.OrderID).
		Str("reason", reason).
		Msg("momo: callback verification failed")
	return res
}
