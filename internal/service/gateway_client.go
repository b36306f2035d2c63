package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"storefront-payments/config"
	"storefront-payments/internal/core/domain"
	"storefront-payments/internal/core/ports"
	"storefront-payments/pkg/apperror"
	"storefront-payments/pkg/logger"

	"github.com/rs/zerolog"
)

// maxGatewayResponseBytes caps how much of a gateway response body is read.
const maxGatewayResponseBytes = 1 << 20

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// momoCreateRequest is the JSON body of a MoMo create-payment call.
type momoCreateRequest struct {
	PartnerCode string `json:"partnerCode"`
	PartnerName string `json:"partnerName"`
	StoreID     string `json:"storeId"`
	RequestID   string `json:"requestId"`
	Amount      int64  `json:"amount"`
	OrderID     string `json:"orderId"`
	OrderInfo   string `json:"orderInfo"`
	RedirectURL string `json:"redirectUrl"`
	IPNURL      string `json:"ipnUrl"`
	Lang        string `json:"lang"`
	ExtraData   string `json:"extraData"`
	RequestType string `json:"requestType"`
	Signature   string `json:"signature"`
}

type momoCreateResponse struct {
	ResultCode *int   `json:"resultCode"`
	Message    string `json:"message"`
	PayURL     string `json:"payUrl"`
	Deeplink   string `json:"deeplink"`
	QRCodeURL  string `json:"qrCodeUrl"`
}

// errRetryable marks an attempt failure that warrants another attempt.
var errRetryable = errors.New("retryable gateway failure")

// GatewayOption customizes a MoMoGatewayClient.
type GatewayOption func(*MoMoGatewayClient)

// WithClock overrides the time source used for request ids.
func WithClock(now func() time.Time) GatewayOption {
	return func(c *MoMoGatewayClient) { c.now = now }
}

// WithSleeper overrides the wait between attempts.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) GatewayOption {
	return func(c *MoMoGatewayClient) { c.sleep = sleep }
}

// MoMoGatewayClient implements ports.PaymentGateway against the MoMo v2 API.
type MoMoGatewayClient struct {
	cfg        config.MoMoConfig
	sigSvc     ports.SignatureService
	httpClient HTTPClient
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
	log        zerolog.Logger
}

var _ ports.PaymentGateway = (*MoMoGatewayClient)(nil)

// NewMoMoGatewayClient creates a gateway client. The credentials in cfg are
// expected to have been validated at startup.
func NewMoMoGatewayClient(
	cfg config.MoMoConfig,
	sigSvc ports.SignatureService,
	httpClient HTTPClient,
	log zerolog.Logger,
	opts ...GatewayOption,
) *MoMoGatewayClient {
	c := &MoMoGatewayClient{
		cfg:        cfg,
		sigSvc:     sigSvc,
		httpClient: httpClient,
		now:        time.Now,
		sleep:      sleepContext,
		log:        logger.Component(log, "momo_gateway"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreatePayment signs and sends a create-payment request, retrying network
// failures with linear backoff. The same requestId is used for every attempt.
func (c *MoMoGatewayClient) CreatePayment(ctx context.Context, req domain.PaymentRequest) (*domain.PaymentResult, error) {
	if err := validatePaymentRequest(req); err != nil {
		return nil, err
	}

	body, err := c.buildRequest(req)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("marshal momo request: %w", err))
	}

	log := c.log.With().
		Str("order_number", req.OrderID).
		Str("request_id", body.RequestID).
		Logger()

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, time.Duration(attempt)*c.cfg.RetryBackoff); err != nil {
				return nil, apperror.ErrGatewayUnreachable(err)
			}
		}

		resp, err := c.send(ctx, payload)
		if err == nil {
			log.Info().Int("attempt", attempt+1).Msg("momo: payment link created")
			return &domain.PaymentResult{
				OrderID:   body.OrderID,
				RequestID: body.RequestID,
				Amount:    body.Amount,
				PayURL:    resp.PayURL,
				Deeplink:  resp.Deeplink,
				QRCodeURL: resp.QRCodeURL,
				Signature: body.Signature,
			}, nil
		}
		if !errors.Is(err, errRetryable) {
			log.Warn().Err(err).Int("attempt", attempt+1).Msg("momo: create payment failed")
			return nil, err
		}

		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt+1).Msg("momo: attempt failed, retrying")
	}

	log.Error().Err(lastErr).Msg("momo: all attempts exhausted")
	return nil, apperror.ErrGatewayUnreachable(lastErr)
}

func validatePaymentRequest(req domain.PaymentRequest) error {
	if req.Amount <= 0 {
		return apperror.ErrInvalidAmount()
	}
	var missing []string
	if req.OrderID == "" {
		missing = append(missing, "orderId")
	}
	if req.Description == "" {
		missing = append(missing, "description")
	}
	if req.RedirectURL == "" {
		missing = append(missing, "redirectUrl")
	}
	if len(missing) > 0 {
		return apperror.ErrMalformedRequest(fmt.Sprintf("payment request is missing %v", missing))
	}
	return nil
}

// buildRequest fills defaults, generates the requestId and signs the body.
func (c *MoMoGatewayClient) buildRequest(req domain.PaymentRequest) (*momoCreateRequest, error) {
	body := &momoCreateRequest{
		PartnerCode: c.cfg.PartnerCode,
		PartnerName: c.cfg.PartnerName,
		StoreID:     c.cfg.StoreID,
		RequestID:   c.cfg.PartnerCode + strconv.FormatInt(c.now().UnixMilli(), 10),
		Amount:      req.Amount,
		OrderID:     req.OrderID,
		OrderInfo:   req.Description,
		RedirectURL: req.RedirectURL,
		IPNURL:      firstNonEmpty(req.NotifyURL, req.RedirectURL),
		Lang:        firstNonEmpty(req.Lang, c.cfg.Lang, "vi"),
		ExtraData:   req.ExtraData,
		RequestType: firstNonEmpty(req.RequestType, c.cfg.RequestType, "payWithATM"),
	}

	fields, err := SelectFields(domain.CreatePaymentSignatureFields[:], map[string]string{
		"accessKey":   c.cfg.AccessKey,
		"amount":      strconv.FormatInt(body.Amount, 10),
		"extraData":   body.ExtraData,
		"ipnUrl":      body.IPNURL,
		"orderId":     body.OrderID,
		"orderInfo":   body.OrderInfo,
		"partnerCode": body.PartnerCode,
		"redirectUrl": body.RedirectURL,
		"requestId":   body.RequestID,
		"requestType": body.RequestType,
	})
	if err != nil {
		return nil, err
	}
	body.Signature = c.sigSvc.Sign(c.cfg.SecretKey, c.sigSvc.BuildSigningString(fields))

	c.log.Debug().
		Str("order_number", body.OrderID).
		Str("access_key", logger.MaskSecret(c.cfg.AccessKey)).
		Msg("momo: request signed")
	return body, nil
}

// send performs one attempt bounded by the configured timeout.
func (c *MoMoGatewayClient) send(ctx context.Context, payload []byte) (*momoCreateResponse, error) {
	attemptCtx := ctx
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("build momo request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errRetryable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxGatewayResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", errRetryable, err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: http status %d", errRetryable, resp.StatusCode)
	}

	var out momoCreateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, apperror.ErrGatewayBadResponse(fmt.Errorf("decode (status %d): %w", resp.StatusCode, err))
	}
	if out.ResultCode == nil {
		return nil, apperror.ErrGatewayBadResponse(fmt.Errorf("response has no resultCode (status %d)", resp.StatusCode))
	}

	code := domain.ResultCode(*out.ResultCode)
	if code != domain.ResultCodeSuccess {
		msg := out.Message
		if msg == "" {
			msg = code.Message()
		}
		return nil, apperror.ErrGatewayRejected(int(code), msg)
	}
	if out.PayURL == "" {
		return nil, apperror.ErrGatewayBadResponse(errors.New("success response without payUrl"))
	}
	return &out, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
