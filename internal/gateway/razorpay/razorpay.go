package razorpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/twelvenexus/oneplan-billing/internal/config"
	ierr "github.com/twelvenexus/oneplan-billing/internal/errors"
	"github.com/twelvenexus/oneplan-billing/internal/gateway"
	"github.com/twelvenexus/oneplan-billing/internal/httpclient"
	"github.com/twelvenexus/oneplan-billing/internal/logger"
	"github.com/twelvenexus/oneplan-billing/internal/types"
)

const baseURL = "https://api.razorpay.com/v1"

// SignatureHeader carries the webhook signature
const SignatureHeader = "X-Razorpay-Signature"

type Adapter struct {
	keyID         string
	keySecret     string
	webhookSecret string
	baseURL       string
	client        httpclient.Client
	logger        *logger.Logger
}

func New(cfg config.RazorpayConfig, client httpclient.Client, logger *logger.Logger) *Adapter {
	return &Adapter{
		keyID:         cfg.KeyID,
		keySecret:     cfg.KeySecret,
		webhookSecret: cfg.WebhookSecret,
		baseURL:       baseURL,
		client:        client,
		logger:        logger,
	}
}

func (a *Adapter) Type() types.PaymentGatewayType {
	return types.PaymentGatewayTypeRazorpay
}

func (a *Adapter) authHeader() string {
	creds := base64.StdEncoding.EncodeToString([]byte(a.keyID + ":" + a.keySecret))
	return "Basic " + creds
}

// toPaise converts a major-unit amount to the smallest currency unit
func toPaise(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).IntPart()
}

type orderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

func (a *Adapter) CreateOrder(ctx context.Context, req *gateway.OrderRequest) (*gateway.OrderResult, error) {
	payload := map[string]any{
		"amount":   toPaise(req.Amount),
		"currency": req.Currency,
		"receipt":  req.Reference,
	}
	if len(req.Notes) > 0 {
		payload["notes"] = req.Notes
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to build order request").
			Mark(ierr.ErrSystem)
	}

	resp, err := a.send(ctx, http.MethodPost, "/orders", body)
	if err != nil {
		return nil, err
	}

	var order orderResponse
	if err := json.Unmarshal(resp.Body, &order); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Unexpected order response from Razorpay").
			Mark(ierr.ErrGatewayUnavailable)
	}

	a.logger.Infow("created razorpay order",
		"gateway_order_id", order.ID,
		"reference", req.Reference,
	)

	return &gateway.OrderResult{
		GatewayOrderID: order.ID,
		Raw:            resp.Body,
	}, nil
}

// VerifyPayment checks the checkout callback signature: an HMAC-SHA256
// of "<order_id>|<payment_id>" keyed with the API secret.
func (a *Adapter) VerifyPayment(ctx context.Context, req *gateway.VerifyRequest) (*gateway.VerifyResult, error) {
	expected := hmacHex(a.keySecret, req.GatewayOrderID+"|"+req.GatewayPaymentID)
	if !hmac.Equal([]byte(expected), []byte(req.Signature)) {
		return &gateway.VerifyResult{
			Verified:      false,
			FailureReason: "signature mismatch",
		}, nil
	}

	return &gateway.VerifyResult{
		Verified:         true,
		GatewayPaymentID: req.GatewayPaymentID,
	}, nil
}

// CapturePayment is idempotent: Razorpay answers a capture of an
// already captured payment with a 400 BAD_REQUEST_ERROR, which is
// treated as success here.
func (a *Adapter) CapturePayment(ctx context.Context, gatewayPaymentID string, amount decimal.Decimal) error {
	body, err := json.Marshal(map[string]any{
		"amount": toPaise(amount),
	})
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to build capture request").
			Mark(ierr.ErrSystem)
	}

	_, err = a.send(ctx, http.MethodPost, fmt.Sprintf("/payments/%s/capture", gatewayPaymentID), body)
	if err != nil {
		if isAlreadyCaptured(err) {
			a.logger.Debugw("razorpay payment already captured",
				"gateway_payment_id", gatewayPaymentID)
			return nil
		}
		return err
	}

	a.logger.Infow("captured razorpay payment", "gateway_payment_id", gatewayPaymentID)
	return nil
}

func isAlreadyCaptured(err error) bool {
	httpErr, ok := httpclient.IsHTTPError(err)
	if !ok || httpErr.StatusCode != http.StatusBadRequest {
		return false
	}
	var payload struct {
		Error struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	}
	if jsonErr := json.Unmarshal(httpErr.Response, &payload); jsonErr != nil {
		return false
	}
	return payload.Error.Code == "BAD_REQUEST_ERROR" &&
		strings.Contains(strings.ToLower(payload.Error.Description), "already been captured")
}

type refundResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (a *Adapter) RefundPayment(ctx context.Context, req *gateway.RefundRequest) (*gateway.RefundResult, error) {
	body, err := json.Marshal(map[string]any{
		"amount": toPaise(req.Amount),
		"notes": map[string]string{
			"reason": req.Reason,
		},
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to build refund request").
			Mark(ierr.ErrSystem)
	}

	resp, err := a.send(ctx, http.MethodPost, fmt.Sprintf("/payments/%s/refund", req.GatewayPaymentID), body)
	if err != nil {
		return nil, err
	}

	var refund refundResponse
	if err := json.Unmarshal(resp.Body, &refund); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Unexpected refund response from Razorpay").
			Mark(ierr.ErrGatewayUnavailable)
	}

	a.logger.Infow("refunded razorpay payment",
		"gateway_payment_id", req.GatewayPaymentID,
		"gateway_refund_id", refund.ID,
	)

	return &gateway.RefundResult{
		GatewayRefundID: refund.ID,
		Raw:             resp.Body,
	}, nil
}

type webhookPayload struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID               string `json:"id"`
				OrderID          string `json:"order_id"`
				Status           string `json:"status"`
				ErrorDescription string `json:"error_description"`
			} `json:"entity"`
		} `json:"payment"`
		Order struct {
			Entity struct {
				ID string `json:"id"`
			} `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
}

// ParseWebhook verifies the body HMAC before any JSON parsing.
func (a *Adapter) ParseWebhook(ctx context.Context, body []byte, headers map[string]string) (*gateway.WebhookEvent, error) {
	signature := headers[SignatureHeader]
	if signature == "" {
		return nil, ierr.NewError("missing webhook signature").
			WithHint("Webhook signature header is missing").
			Mark(ierr.ErrSignatureMismatch)
	}

	expected := hmacHex(a.webhookSecret, string(body))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, ierr.NewError("invalid webhook signature").
			WithHint("Webhook signature verification failed").
			Mark(ierr.ErrSignatureMismatch)
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Webhook payload is not valid JSON").
			Mark(ierr.ErrValidation)
	}

	event := &gateway.WebhookEvent{
		Gateway:          types.PaymentGatewayTypeRazorpay,
		GatewayOrderID:   payload.Payload.Payment.Entity.OrderID,
		GatewayPaymentID: payload.Payload.Payment.Entity.ID,
		Raw:              body,
	}

	switch payload.Event {
	case "payment.captured":
		event.EventType = gateway.WebhookEventPaymentCaptured
	case "payment.failed":
		event.EventType = gateway.WebhookEventPaymentFailed
		event.FailureReason = payload.Payload.Payment.Entity.ErrorDescription
	case "order.paid":
		event.EventType = gateway.WebhookEventOrderPaid
		if event.GatewayOrderID == "" {
			event.GatewayOrderID = payload.Payload.Order.Entity.ID
		}
	default:
		event.EventType = gateway.WebhookEventUnknown
	}

	return event, nil
}

func (a *Adapter) send(ctx context.Context, method, path string, body []byte) (*httpclient.Response, error) {
	resp, err := a.client.Send(ctx, &httpclient.Request{
		Method: method,
		URL:    a.baseURL + path,
		Headers: map[string]string{
			"Authorization": a.authHeader(),
		},
		Body: body,
	})
	if err != nil {
		if httpErr, ok := httpclient.IsHTTPError(err); ok {
			return nil, ierr.WithError(httpErr).
				WithHint("Razorpay rejected the request").
				WithReportableDetails(map[string]any{
					"status_code": httpErr.StatusCode,
				}).
				Mark(ierr.ErrGatewayUnavailable)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to reach Razorpay").
			Mark(ierr.ErrGatewayUnavailable)
	}
	return resp, nil
}

func hmacHex(secret, data string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}
