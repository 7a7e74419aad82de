package phonepe

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twelvenexus/oneplan-billing/internal/config"
	ierr "github.com/twelvenexus/oneplan-billing/internal/errors"
	"github.com/twelvenexus/oneplan-billing/internal/gateway"
	"github.com/twelvenexus/oneplan-billing/internal/httpclient"
	"github.com/twelvenexus/oneplan-billing/internal/logger"
)

type stubClient struct {
	lastReq  *httpclient.Request
	response *httpclient.Response
	err      error
}

func (s *stubClient) Send(ctx context.Context, req *httpclient.Request) (*httpclient.Response, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return s.response, nil
}

func newTestAdapter(client httpclient.Client) *Adapter {
	log, _ := logger.NewLogger(config.GetDefaultConfig())
	return New(config.PhonePeConfig{
		MerchantID:  "MERCHANT1",
		SaltKey:     "salt-key",
		SaltIndex:   "1",
		Environment: "sandbox",
	}, client, log)
}

func checksumFor(data, saltKey, saltIndex string) string {
	sum := sha256.Sum256([]byte(data + saltKey))
	return hex.EncodeToString(sum[:]) + "###" + saltIndex
}

func TestCreateOrder(t *testing.T) {
	stub := &stubClient{
		response: &httpclient.Response{
			StatusCode: 200,
			Body:       []byte(`{"success":true,"code":"PAYMENT_INITIATED","data":{"instrumentResponse":{"redirectInfo":{"url":"https://pay.example/redirect"}}}}`),
		},
	}
	adapter := newTestAdapter(stub)

	result, err := adapter.CreateOrder(context.Background(), &gateway.OrderRequest{
		Reference:   "ORD_01TEST",
		Amount:      decimal.NewFromInt(999),
		Currency:    "INR",
		CustomerID:  "tenant-1",
		RedirectURL: "https://app.example/return",
		CallbackURL: "https://app.example/webhooks/phonepe",
	})
	require.NoError(t, err)
	assert.Equal(t, "ORD_01TEST", result.GatewayOrderID)
	assert.Equal(t, "https://pay.example/redirect", result.CheckoutURL)

	require.NotNil(t, stub.lastReq)
	assert.Contains(t, stub.lastReq.URL, "/pg/v1/pay")

	// request body wraps a base64 payload; checksum covers payload+path
	var wrapper map[string]string
	require.NoError(t, json.Unmarshal(stub.lastReq.Body, &wrapper))
	encoded := wrapper["request"]
	require.NotEmpty(t, encoded)
	assert.Equal(t, checksumFor(encoded+"/pg/v1/pay", "salt-key", "1"), stub.lastReq.Headers[VerifyHeader])

	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	var sent map[string]any
	require.NoError(t, json.Unmarshal(raw, &sent))
	assert.Equal(t, "MERCHANT1", sent["merchantId"])
	assert.Equal(t, "ORD_01TEST", sent["merchantTransactionId"])
	assert.Equal(t, float64(99900), sent["amount"])
}

func TestVerifyPayment(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		stub := &stubClient{
			response: &httpclient.Response{
				StatusCode: 200,
				Body:       []byte(`{"code":"PAYMENT_SUCCESS","data":{"transactionId":"T123"}}`),
			},
		}
		adapter := newTestAdapter(stub)

		result, err := adapter.VerifyPayment(context.Background(), &gateway.VerifyRequest{
			GatewayOrderID: "ORD_01TEST",
		})
		require.NoError(t, err)
		assert.True(t, result.Verified)
		assert.Equal(t, "T123", result.GatewayPaymentID)
		assert.Contains(t, stub.lastReq.URL, "/pg/v1/status/MERCHANT1/ORD_01TEST")
		assert.Equal(t, "MERCHANT1", stub.lastReq.Headers["X-MERCHANT-ID"])
	})

	t.Run("pending payment is not verified", func(t *testing.T) {
		stub := &stubClient{
			response: &httpclient.Response{
				StatusCode: 200,
				Body:       []byte(`{"code":"PAYMENT_PENDING","data":{"transactionId":"T123"}}`),
			},
		}
		adapter := newTestAdapter(stub)

		result, err := adapter.VerifyPayment(context.Background(), &gateway.VerifyRequest{
			GatewayOrderID: "ORD_01TEST",
		})
		require.NoError(t, err)
		assert.False(t, result.Verified)
		assert.Equal(t, "PAYMENT_PENDING", result.FailureReason)
	})
}

func TestParseWebhook(t *testing.T) {
	adapter := newTestAdapter(&stubClient{})

	payload := `{"code":"PAYMENT_SUCCESS","data":{"merchantTransactionId":"ORD_01TEST","transactionId":"T123"}}`
	encoded := base64.StdEncoding.EncodeToString([]byte(payload))
	body, _ := json.Marshal(map[string]string{"response": encoded})

	t.Run("valid checksum", func(t *testing.T) {
		event, err := adapter.ParseWebhook(context.Background(), body, map[string]string{
			VerifyHeader: checksumFor(encoded, "salt-key", "1"),
		})
		require.NoError(t, err)
		assert.Equal(t, gateway.WebhookEventPaymentCaptured, event.EventType)
		assert.Equal(t, "ORD_01TEST", event.GatewayOrderID)
		assert.Equal(t, "T123", event.GatewayPaymentID)
	})

	t.Run("invalid checksum", func(t *testing.T) {
		_, err := adapter.ParseWebhook(context.Background(), body, map[string]string{
			VerifyHeader: checksumFor(encoded, "wrong-salt", "1"),
		})
		require.Error(t, err)
		assert.True(t, ierr.IsSignatureMismatch(err))
	})

	t.Run("missing checksum header", func(t *testing.T) {
		_, err := adapter.ParseWebhook(context.Background(), body, nil)
		require.Error(t, err)
		assert.True(t, ierr.IsSignatureMismatch(err))
	})

	t.Run("failed payment", func(t *testing.T) {
		failed := `{"code":"PAYMENT_ERROR","data":{"merchantTransactionId":"ORD_01TEST","transactionId":"T124"}}`
		failedEncoded := base64.StdEncoding.EncodeToString([]byte(failed))
		failedBody, _ := json.Marshal(map[string]string{"response": failedEncoded})

		event, err := adapter.ParseWebhook(context.Background(), failedBody, map[string]string{
			VerifyHeader: checksumFor(failedEncoded, "salt-key", "1"),
		})
		require.NoError(t, err)
		assert.Equal(t, gateway.WebhookEventPaymentFailed, event.EventType)
		assert.Equal(t, "PAYMENT_ERROR", event.FailureReason)
	})
}

func TestCapturePaymentIsNoOp(t *testing.T) {
	adapter := newTestAdapter(&stubClient{})
	assert.NoError(t, adapter.CapturePayment(context.Background(), "T123", decimal.NewFromInt(100)))
}
