package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"storefront-payments/internal/core/ports"
	"storefront-payments/internal/service"
	"storefront-payments/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// WebhookHandler receives MoMo notifications and browser returns.
type WebhookHandler struct {
	paymentSvc ports.PaymentService
	log        zerolog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(paymentSvc ports.PaymentService, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{paymentSvc: paymentSvc, log: log}
}

// HandleIPN handles POST /api/v1/webhooks/momo. It always answers in the
// gateway's {resultCode, message} format.
func (h *WebhookHandler) HandleIPN(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.log.Warn().Err(err).Msg("unreadable momo ipn body")
		response.Ack(c, http.StatusOK, service.AckRejected, "malformed payload")
		return
	}

	payload, err := decodeCallback(body)
	if err != nil {
		h.log.Warn().Err(err).Msg("undecodable momo ipn body")
		response.Ack(c, http.StatusOK, service.AckRejected, "malformed payload")
		return
	}

	ack := h.paymentSvc.HandleCallback(c.Request.Context(), payload)
	response.Ack(c, ack.HTTPStatus, ack.ResultCode, ack.Message)
}

// HandleReturn handles GET /api/v1/webhooks/momo, where the buyer's browser
// lands after paying. It never changes the order.
func (h *WebhookHandler) HandleReturn(c *gin.Context) {
	query := make(map[string]string)
	for k, v := range c.Request.URL.Query() {
		if len(v) > 0 {
			query[k] = v[0]
		}
	}
	c.Redirect(http.StatusFound, h.paymentSvc.HandleReturnRedirect(c.Request.Context(), query))
}

// decodeCallback flattens a JSON object into strings, keeping numbers in
// their literal form so signatures can be recomputed.
func decodeCallback(body []byte) (map[string]string, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("payload is not a JSON object")
	}

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
			out[k] = ""
		case string:
			out[k] = val
		case json.Number:
			out[k] = val.String()
		case bool:
			out[k] = strconv.FormatBool(val)
		default:
			return nil, fmt.Errorf("field %s has unsupported type %T", k, v)
		}
	}
	return out, nil
}
