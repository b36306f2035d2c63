package service

import (
	"testing"

	"storefront-payments/internal/core/domain"
	"storefront-payments/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCallbackValues() map[string]string {
	return map[string]string{
		"accessKey":    "klm05TvNBzhg7h7j",
		"amount":       "50000",
		"extraData":    "",
		"message":      "Successful.",
		"orderId":      "ORD1",
		"orderInfo":    "test",
		"orderType":    "momo_wallet",
		"partnerCode":  "MOMOBKUN20180529",
		"payType":      "qr",
		"requestId":    "MOMOBKUN201805291716000000000",
		"responseTime": "1716000001000",
		"resultCode":   "0",
		"transId":      "4088878653",
	}
}

func TestHMACSignatureService_SignAndVerify(t *testing.T) {
	svc := NewHMACSignatureService()
	secretKey := "at67qH6mk8w5Y1nAyMoYKMWACiEi2bsa"
	payload := "accessKey=klm05TvNBzhg7h7j&amount=50000&extraData="

	signature := svc.Sign(secretKey, payload)

	assert.Regexp(t, `^[0-9a-f]{64}$`, signature, "signature should be 64-char lowercase hex (SHA-256)")
	assert.True(t, svc.Verify(secretKey, payload, signature))
}

func TestHMACSignatureService_VerifyAcceptsUppercaseHex(t *testing.T) {
	svc := NewHMACSignatureService()
	sig := svc.Sign("key", "payload")

	upper := []byte(sig)
	for i, c := range upper {
		if c >= 'a' && c <= 'f' {
			upper[i] = c - 32
		}
	}
	assert.True(t, svc.Verify("key", "payload", string(upper)))
}

func TestHMACSignatureService_VerifyFails(t *testing.T) {
	svc := NewHMACSignatureService()
	signature := svc.Sign("correct-key", "original payload")

	assert.False(t, svc.Verify("wrong-key", "original payload", signature))
	assert.False(t, svc.Verify("correct-key", "tampered payload", signature))
	assert.False(t, svc.Verify("correct-key", "original payload", "deadbeef"))
	assert.False(t, svc.Verify("correct-key", "original payload", ""))
}

func TestHMACSignatureService_DeterministicSign(t *testing.T) {
	svc := NewHMACSignatureService()
	fields, err := SelectFields(domain.CallbackSignatureFields[:], testCallbackValues())
	require.NoError(t, err)

	s1 := svc.BuildSigningString(fields)
	s2 := svc.BuildSigningString(fields)
	assert.Equal(t, s1, s2)
	assert.Equal(t, svc.Sign("k", s1), svc.Sign("k", s2))
	assert.True(t, svc.Verify("k", s1, svc.Sign("k", s2)))
}

func TestHMACSignatureService_BuildSigningString_CallbackOrder(t *testing.T) {
	svc := NewHMACSignatureService()
	fields, err := SelectFields(domain.CallbackSignatureFields[:], testCallbackValues())
	require.NoError(t, err)

	expected := "accessKey=klm05TvNBzhg7h7j&amount=50000&extraData=&message=Successful.&orderId=ORD1" +
		"&orderInfo=test&orderType=momo_wallet&partnerCode=MOMOBKUN20180529&payType=qr" +
		"&requestId=MOMOBKUN201805291716000000000&responseTime=1716000001000&resultCode=0&transId=4088878653"
	assert.Equal(t, expected, svc.BuildSigningString(fields))
}

func TestHMACSignatureService_BuildSigningString_CreateOrder(t *testing.T) {
	svc := NewHMACSignatureService()
	values := map[string]string{
		"requestType": "payWithATM",
		"requestId":   "MOMO1716000000000",
		"redirectUrl": "https://x/return",
		"partnerCode": "MOMO",
		"orderInfo":   "test",
		"orderId":     "ORD1",
		"ipnUrl":      "https://x/ipn",
		"extraData":   "",
		"amount":      "50000",
		"accessKey":   "AK",
	}
	fields, err := SelectFields(domain.CreatePaymentSignatureFields[:], values)
	require.NoError(t, err)

	assert.Equal(t,
		"accessKey=AK&amount=50000&extraData=&ipnUrl=https://x/ipn&orderId=ORD1&orderInfo=test"+
			"&partnerCode=MOMO&redirectUrl=https://x/return&requestId=MOMO1716000000000&requestType=payWithATM",
		svc.BuildSigningString(fields))
}

func TestHMACSignatureService_EmptyFieldList(t *testing.T) {
	assert.Equal(t, "", NewHMACSignatureService().BuildSigningString(nil))
}

func TestSelectFields_MissingFieldIsMalformed(t *testing.T) {
	values := testCallbackValues()
	delete(values, "payType")
	delete(values, "transId")

	fields, err := SelectFields(domain.CallbackSignatureFields[:], values)
	assert.Nil(t, fields)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeMalformedRequest))
	assert.Contains(t, err.Error(), "payType")
	assert.Contains(t, err.Error(), "transId")
	assert.NotContains(t, err.Error(), "undefined")
}

func TestSignature_TamperDetection(t *testing.T) {
	svc := NewHMACSignatureService()
	secret := "at67qH6mk8w5Y1nAyMoYKMWACiEi2bsa"
	values := testCallbackValues()

	fields, err := SelectFields(domain.CallbackSignatureFields[:], values)
	require.NoError(t, err)
	sig := svc.Sign(secret, svc.BuildSigningString(fields))

	for _, key := range domain.CallbackSignatureFields {
		t.Run(key, func(t *testing.T) {
			tampered := testCallbackValues()
			tampered[key] = tampered[key] + "x"

			f, err := SelectFields(domain.CallbackSignatureFields[:], tampered)
			require.NoError(t, err)
			assert.False(t, svc.Verify(secret, svc.BuildSigningString(f), sig))
		})
	}

	assert.False(t, svc.Verify(secret+"x", svc.BuildSigningString(fields), sig), "changed secret must fail")
}

func TestSignature_ReorderingChangesSignature(t *testing.T) {
	svc := NewHMACSignatureService()
	fields, err := SelectFields(domain.CallbackSignatureFields[:], testCallbackValues())
	require.NoError(t, err)

	swapped := append([]domain.SignedField(nil), fields...)
	swapped[0], swapped[1] = swapped[1], swapped[0]

	sig := svc.Sign("k", svc.BuildSigningString(fields))
	assert.False(t, svc.Verify("k", svc.BuildSigningString(swapped), sig))
}
