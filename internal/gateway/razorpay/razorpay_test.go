package razorpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
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
	return New(config.RazorpayConfig{
		KeyID:         "rzp_test_key",
		KeySecret:     "test_secret",
		WebhookSecret: "whsec",
	}, client, log)
}

func sign(secret, data string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestCreateOrder(t *testing.T) {
	stub := &stubClient{
		response: &httpclient.Response{
			StatusCode: 200,
			Body:       []byte(`{"id":"order_ABC123","amount":149900,"currency":"INR","status":"created"}`),
		},
	}
	adapter := newTestAdapter(stub)

	result, err := adapter.CreateOrder(context.Background(), &gateway.OrderRequest{
		Reference: "ORD_01TEST",
		Amount:    decimal.NewFromInt(1499),
		Currency:  "INR",
	})
	require.NoError(t, err)
	assert.Equal(t, "order_ABC123", result.GatewayOrderID)

	require.NotNil(t, stub.lastReq)
	assert.Equal(t, "POST", stub.lastReq.Method)
	assert.Contains(t, stub.lastReq.URL, "/orders")
	assert.NotEmpty(t, stub.lastReq.Headers["Authorization"])

	var sent map[string]any
	require.NoError(t, json.Unmarshal(stub.lastReq.Body, &sent))
	assert.Equal(t, float64(149900), sent["amount"])
	assert.Equal(t, "INR", sent["currency"])
	assert.Equal(t, "ORD_01TEST", sent["receipt"])
}

func TestVerifyPayment(t *testing.T) {
	adapter := newTestAdapter(&stubClient{})

	t.Run("valid signature", func(t *testing.T) {
		result, err := adapter.VerifyPayment(context.Background(), &gateway.VerifyRequest{
			GatewayOrderID:   "order_ABC",
			GatewayPaymentID: "pay_XYZ",
			Signature:        sign("test_secret", "order_ABC|pay_XYZ"),
		})
		require.NoError(t, err)
		assert.True(t, result.Verified)
		assert.Equal(t, "pay_XYZ", result.GatewayPaymentID)
	})

	t.Run("tampered signature", func(t *testing.T) {
		result, err := adapter.VerifyPayment(context.Background(), &gateway.VerifyRequest{
			GatewayOrderID:   "order_ABC",
			GatewayPaymentID: "pay_XYZ",
			Signature:        sign("test_secret", "order_ABC|pay_OTHER"),
		})
		require.NoError(t, err)
		assert.False(t, result.Verified)
	})
}

func TestCapturePayment(t *testing.T) {
	t.Run("captures pending payment", func(t *testing.T) {
		stub := &stubClient{
			response: &httpclient.Response{
				StatusCode: 200,
				Body:       []byte(`{"id":"pay_XYZ","status":"captured"}`),
			},
		}
		adapter := newTestAdapter(stub)

		err := adapter.CapturePayment(context.Background(), "pay_XYZ", decimal.NewFromInt(500))
		require.NoError(t, err)
		assert.Contains(t, stub.lastReq.URL, "/payments/pay_XYZ/capture")

		var sent map[string]any
		require.NoError(t, json.Unmarshal(stub.lastReq.Body, &sent))
		assert.Equal(t, float64(50000), sent["amount"])
	})

	t.Run("already captured is a no-op", func(t *testing.T) {
		stub := &stubClient{
			err: httpclient.NewError(400, []byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"This payment has already been captured"}}`)),
		}
		adapter := newTestAdapter(stub)

		err := adapter.CapturePayment(context.Background(), "pay_XYZ", decimal.NewFromInt(500))
		require.NoError(t, err)
	})

	t.Run("other bad requests still fail", func(t *testing.T) {
		stub := &stubClient{
			err: httpclient.NewError(400, []byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"The amount is invalid"}}`)),
		}
		adapter := newTestAdapter(stub)

		err := adapter.CapturePayment(context.Background(), "pay_XYZ", decimal.NewFromInt(500))
		require.Error(t, err)
		assert.True(t, ierr.IsGatewayUnavailable(err))
	})

	t.Run("gateway outage still fails", func(t *testing.T) {
		stub := &stubClient{err: httpclient.NewError(503, []byte(`{"error":"unavailable"}`))}
		adapter := newTestAdapter(stub)

		err := adapter.CapturePayment(context.Background(), "pay_XYZ", decimal.NewFromInt(500))
		require.Error(t, err)
		assert.True(t, ierr.IsGatewayUnavailable(err))
	})
}

func TestRefundPayment(t *testing.T) {
	stub := &stubClient{
		response: &httpclient.Response{
			StatusCode: 200,
			Body:       []byte(`{"id":"rfnd_001","status":"processed"}`),
		},
	}
	adapter := newTestAdapter(stub)

	result, err := adapter.RefundPayment(context.Background(), &gateway.RefundRequest{
		GatewayPaymentID: "pay_XYZ",
		Amount:           decimal.NewFromInt(500),
		Reason:           "requested by customer",
	})
	require.NoError(t, err)
	assert.Equal(t, "rfnd_001", result.GatewayRefundID)
	assert.Contains(t, stub.lastReq.URL, "/payments/pay_XYZ/refund")
}

func TestRefundPaymentGatewayDown(t *testing.T) {
	stub := &stubClient{err: httpclient.NewError(503, []byte(`{"error":"unavailable"}`))}
	adapter := newTestAdapter(stub)

	_, err := adapter.RefundPayment(context.Background(), &gateway.RefundRequest{
		GatewayPaymentID: "pay_XYZ",
		Amount:           decimal.NewFromInt(500),
	})
	require.Error(t, err)
	assert.True(t, ierr.IsGatewayUnavailable(err))
}

func TestParseWebhook(t *testing.T) {
	adapter := newTestAdapter(&stubClient{})
	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_XYZ","order_id":"order_ABC","status":"captured"}}}}`)

	t.Run("valid signature", func(t *testing.T) {
		event, err := adapter.ParseWebhook(context.Background(), body, map[string]string{
			SignatureHeader: sign("whsec", string(body)),
		})
		require.NoError(t, err)
		assert.Equal(t, gateway.WebhookEventPaymentCaptured, event.EventType)
		assert.Equal(t, "order_ABC", event.GatewayOrderID)
		assert.Equal(t, "pay_XYZ", event.GatewayPaymentID)
	})

	t.Run("invalid signature", func(t *testing.T) {
		_, err := adapter.ParseWebhook(context.Background(), body, map[string]string{
			SignatureHeader: sign("wrong", string(body)),
		})
		require.Error(t, err)
		assert.True(t, ierr.IsSignatureMismatch(err))
	})

	t.Run("missing signature", func(t *testing.T) {
		_, err := adapter.ParseWebhook(context.Background(), body, nil)
		require.Error(t, err)
		assert.True(t, ierr.IsSignatureMismatch(err))
	})

	t.Run("failed payment event", func(t *testing.T) {
		failedBody := []byte(`{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_BAD","order_id":"order_ABC","status":"failed","error_description":"card declined"}}}}`)
		event, err := adapter.ParseWebhook(context.Background(), failedBody, map[string]string{
			SignatureHeader: sign("whsec", string(failedBody)),
		})
		require.NoError(t, err)
		assert.Equal(t, gateway.WebhookEventPaymentFailed, event.EventType)
		assert.Equal(t, "card declined", event.FailureReason)
	})

	t.Run("unknown event", func(t *testing.T) {
		unknownBody := []byte(`{"event":"invoice.paid","payload":{}}`)
		event, err := adapter.ParseWebhook(context.Background(), unknownBody, map[string]string{
			SignatureHeader: sign("whsec", string(unknownBody)),
		})
		require.NoError(t, err)
		assert.Equal(t, gateway.WebhookEventUnknown, event.EventType)
	})
}
