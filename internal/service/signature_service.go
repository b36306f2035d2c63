package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"storefront-payments/internal/core/domain"
	"storefront-payments/pkg/apperror"
)

// HMACSignatureService implements ports.SignatureService using HMAC-SHA256.
type HMACSignatureService struct{}

// NewHMACSignatureService creates a new HMAC-SHA256 signature service.
func NewHMACSignatureService() *HMACSignatureService {
	return &HMACSignatureService{}
}

// Sign computes HMAC-SHA256 of payload using secretKey.
// Returns lowercase hex-encoded signature.
func (s *HMACSignatureService) Sign(secretKey string, payload string) string {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks if signature matches HMAC-SHA256(secretKey, payload).
// Uses constant-time comparison to prevent timing attacks.
func (s *HMACSignatureService) Verify(secretKey string, payload string, signature string) bool {
	expected := s.Sign(secretKey, payload)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

// BuildSigningString joins fields as key=value pairs separated by '&',
// keeping the order given.
func (s *HMACSignatureService) BuildSigningString(fields []domain.SignedField) string {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(f.Key)
		b.WriteByte('=')
		b.WriteString(f.Value)
	}
	return b.String()
}

// SelectFields picks keys from values in the given order. A key that is
// absent from values is a malformed request; empty values are kept.
func SelectFields(order []string, values map[string]string) ([]domain.SignedField, error) {
	fields := make([]domain.SignedField, 0, len(order))
	var missing []string
	for _, key := range order {
		v, ok := values[key]
		if !ok {
			missing = append(missing, key)
			continue
		}
		fields = append(fields, domain.SignedField{Key: key, Value: v})
	}
	if len(missing) > 0 {
		return nil, apperror.ErrMalformedRequest(fmt.Sprintf("missing signature fields: %s", strings.Join(missing, ", ")))
	}
	return fields, nil
}
