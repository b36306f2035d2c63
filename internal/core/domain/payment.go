package domain

import (
	"strconv"
	"strings"
	"time"
)

// Payment methods accepted at checkout.
const (
	PaymentMethodMoMo         = "momo"
	PaymentMethodCOD          = "cod"
	PaymentMethodBankTransfer = "bank_transfer"
)

// GatewayMoMo names the MoMo gateway in stored payment metadata.
const GatewayMoMo = "momo"

// PaymentMethodInfo describes a payment method shown at checkout.
type PaymentMethodInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Enabled     bool   `json:"enabled"`
}

// PaymentMethods lists the checkout payment options.
func PaymentMethods() []PaymentMethodInfo {
	return []PaymentMethodInfo{
		{ID: PaymentMethodMoMo, Name: "MoMo", Description: "Pay with the MoMo e-wallet or ATM card", Enabled: true},
		{ID: PaymentMethodCOD, Name: "Cash on delivery", Description: "Pay the courier on delivery", Enabled: true},
		{ID: PaymentMethodBankTransfer, Name: "Bank transfer", Description: "Transfer to the shop bank account", Enabled: false},
	}
}

// SignedField is one key=value pair of a signing string.
type SignedField struct {
	Key   string
	Value string
}

// CreatePaymentSignatureFields is the gateway-mandated field order for
// signing a create-payment request.
var CreatePaymentSignatureFields = [...]string{
	"accessKey", "amount", "extraData", "ipnUrl", "orderId",
	"orderInfo", "partnerCode", "redirectUrl", "requestId", "requestType",
}

// CallbackSignatureFields is the gateway-mandated field order for
// verifying an IPN or return-redirect payload.
var CallbackSignatureFields = [...]string{
	"accessKey", "amount", "extraData", "message", "orderId", "orderInfo", "orderType",
	"partnerCode", "payType", "requestId", "responseTime", "resultCode", "transId",
}

// PaymentRequest is the input for creating a payment link.
type PaymentRequest struct {
	OrderID     string
	Amount      int64
	Description string
	RedirectURL string
	NotifyURL   string
	ExtraData   string
	RequestType string
	Lang        string
}

// PaymentResult is a payable link returned by the gateway.
type PaymentResult struct {
	OrderID   string `json:"order_id"`
	RequestID string `json:"request_id"`
	Amount    int64  `json:"amount"`
	PayURL    string `json:"pay_url"`
	Deeplink  string `json:"deeplink,omitempty"`
	QRCodeURL string `json:"qr_code_url,omitempty"`
	Signature string `json:"signature"`
}

// ResultCode is the gateway's numeric outcome code.
type ResultCode int

const (
	ResultCodeSuccess       ResultCode = 0
	ResultCodeUserCancelled ResultCode = 1006
	ResultCodeUnknown       ResultCode = -1
)

// ParseResultCode normalizes a result code received as text.
// Anything that is not an integer becomes ResultCodeUnknown.
func ParseResultCode(raw string) ResultCode {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return ResultCodeUnknown
	}
	return ResultCode(n)
}

var resultMessages = map[ResultCode]string{
	0:    "Transaction successful",
	9000: "Transaction authorized successfully",
	8000: "Transaction is awaiting payer confirmation",
	7000: "Transaction is being processed",
	7002: "Transaction is being processed by the payment provider",
	1000: "Transaction initiated, waiting for the user to confirm",
	1001: "Insufficient funds in the user's account",
	1002: "Transaction rejected by the issuer",
	1003: "Transaction was cancelled",
	1004: "Amount exceeds the user's payment limit",
	1005: "Payment URL or QR code has expired",
	1006: "Transaction was cancelled by the user",
	1007: "User account is inactive",
	1026: "Transaction restricted by promotion rules",
	1080: "Refund failed during processing",
	1081: "Refund rejected: original transaction may already be refunded",
	2001: "Transaction failed due to wrong account information",
	2007: "Transaction failed: account not registered",
	4001: "Transaction restricted for this user account",
	4100: "User did not log in",
	10:   "System is under maintenance",
	11:   "Access denied",
	12:   "Unsupported API version",
	13:   "Merchant authentication failed",
	20:   "Bad request format",
	21:   "Invalid transaction amount",
	40:   "Duplicate requestId",
	41:   "Duplicate orderId",
	42:   "Invalid orderId or orderId not found",
	43:   "Conflicting transaction in progress",
	99:   "Unknown error",
}

// Message returns the human-readable meaning of the code.
func (c ResultCode) Message() string {
	if msg, ok := resultMessages[c]; ok {
		return msg
	}
	return "Unknown error (code " + strconv.Itoa(int(c)) + ")"
}

// CallbackResult is the outcome of verifying a gateway notification.
type CallbackResult struct {
	OrderID       string
	RequestID     string
	TransactionID string
	ResultCode    ResultCode
	Amount        int64
	PayType       string
	Message       string
	ResponseTime  string

	// Raw keeps every received field for audit logging.
	Raw map[string]string

	IsValidSignature bool
	// IsSuccess is never true when IsValidSignature is false.
	IsSuccess bool
}

// DedupeKey identifies a distinct gateway outcome for an order.
func (r *CallbackResult) DedupeKey() string {
	return r.OrderID + ":" + r.TransactionID + ":" + strconv.Itoa(int(r.ResultCode))
}

// PaymentPatch returns the metadata a verified callback contributes to the order.
func (r *CallbackResult) PaymentPatch(at time.Time) PaymentInfo {
	code := int(r.ResultCode)
	patch := PaymentInfo{
		Gateway:       GatewayMoMo,
		RequestID:     r.RequestID,
		TransactionID: r.TransactionID,
		PayType:       r.PayType,
		ResultCode:    &code,
		Message:       r.Message,
		Verified:      r.IsValidSignature,
	}
	if r.IsSuccess {
		patch.PaidAt = &at
	} else {
		patch.FailedAt = &at
	}
	return patch
}
