package phonepe

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/twelvenexus/oneplan-billing/internal/config"
	ierr "github.com/twelvenexus/oneplan-billing/internal/errors"
	"github.com/twelvenexus/oneplan-billing/internal/gateway"
	"github.com/twelvenexus/oneplan-billing/internal/httpclient"
	"github.com/twelvenexus/oneplan-billing/internal/logger"
	"github.com/twelvenexus/oneplan-billing/internal/types"
)

const (
	productionURL = "https://api.phonepe.com/apis/hermes"
	sandboxURL    = "https://api-preprod.phonepe.com/apis/hermes"

	payPath    = "/pg/v1/pay"
	refundPath = "/pg/v1/refund"
	statusPath = "/pg/v1/status"
)

// VerifyHeader carries the X-VERIFY checksum on requests and callbacks
const VerifyHeader = "X-VERIFY"

type Adapter struct {
	merchantID string
	saltKey    string
	saltIndex  string
	baseURL    string
	client     httpclient.Client
	logger     *logger.Logger
}

func New(cfg config.PhonePeConfig, client httpclient.Client, logger *logger.Logger) *Adapter {
	url := sandboxURL
	if cfg.Environment == "production" {
		url = productionURL
	}
	return &Adapter{
		merchantID: cfg.MerchantID,
		saltKey:    cfg.SaltKey,
		saltIndex:  cfg.SaltIndex,
		baseURL:    url,
		client:     client,
		logger:     logger,
	}
}

func (a *Adapter) Type() types.PaymentGatewayType {
	return types.PaymentGatewayTypePhonePe
}

// checksum is PhonePe's X-VERIFY scheme: a SHA-256 over the payload
// plus salt key, suffixed with the salt index.
func (a *Adapter) checksum(data string) string {
	sum := sha256.Sum256([]byte(data + a.saltKey))
	return hex.EncodeToString(sum[:]) + "###" + a.saltIndex
}

func toPaise(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).IntPart()
}

func (a *Adapter) CreateOrder(ctx context.Context, req *gateway.OrderRequest) (*gateway.OrderResult, error) {
	request := map[string]any{
		"merchantId":            a.merchantID,
		"merchantTransactionId": req.Reference,
		"merchantUserId":        req.CustomerID,
		"amount":                toPaise(req.Amount),
		"redirectUrl":           req.RedirectURL,
		"redirectMode":          "POST",
		"callbackUrl":           req.CallbackURL,
		"paymentInstrument": map[string]string{
			"type": "PAY_PAGE",
		},
	}

	raw, err := json.Marshal(request)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to build order request").
			Mark(ierr.ErrSystem)
	}
	encoded := base64.StdEncoding.EncodeToString(raw)

	body, err := json.Marshal(map[string]string{"request": encoded})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to build order request").
			Mark(ierr.ErrSystem)
	}

	resp, err := a.send(ctx, http.MethodPost, payPath, body, map[string]string{
		VerifyHeader: a.checksum(encoded + payPath),
	})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Success bool   `json:"success"`
		Code    string `json:"code"`
		Data    struct {
			InstrumentResponse struct {
				RedirectInfo struct {
					URL string `json:"url"`
				} `json:"redirectInfo"`
			} `json:"instrumentResponse"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Unexpected order response from PhonePe").
			Mark(ierr.ErrGatewayUnavailable)
	}
	if !parsed.Success {
		return nil, ierr.NewError("phonepe order rejected").
			WithHint("PhonePe declined to open the order").
			WithReportableDetails(map[string]any{
				"code": parsed.Code,
			}).
			Mark(ierr.ErrGatewayUnavailable)
	}

	a.logger.Infow("created phonepe order", "merchant_transaction_id", req.Reference)

	// PhonePe keys everything on the merchant transaction id
	return &gateway.OrderResult{
		GatewayOrderID: req.Reference,
		CheckoutURL:    parsed.Data.InstrumentResponse.RedirectInfo.URL,
		Raw:            resp.Body,
	}, nil
}

// VerifyPayment queries the status API; PhonePe has no client-side
// signature to check, the server-to-server status call is the source
// of truth.
func (a *Adapter) VerifyPayment(ctx context.Context, req *gateway.VerifyRequest) (*gateway.VerifyResult, error) {
	path := fmt.Sprintf("%s/%s/%s", statusPath, a.merchantID, req.GatewayOrderID)

	resp, err := a.send(ctx, http.MethodGet, path, nil, map[string]string{
		VerifyHeader:    a.checksum(path),
		"X-MERCHANT-ID": a.merchantID,
	})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Code string `json:"code"`
		Data struct {
			TransactionID string `json:"transactionId"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Unexpected status response from PhonePe").
			Mark(ierr.ErrGatewayUnavailable)
	}

	if parsed.Code != "PAYMENT_SUCCESS" {
		return &gateway.VerifyResult{
			Verified:         false,
			GatewayPaymentID: parsed.Data.TransactionID,
			FailureReason:    parsed.Code,
		}, nil
	}

	return &gateway.VerifyResult{
		Verified:         true,
		GatewayPaymentID: parsed.Data.TransactionID,
	}, nil
}

// CapturePayment is a no-op; PhonePe captures automatically on success.
func (a *Adapter) CapturePayment(ctx context.Context, gatewayPaymentID string, amount decimal.Decimal) error {
	return nil
}

func (a *Adapter) RefundPayment(ctx context.Context, req *gateway.RefundRequest) (*gateway.RefundResult, error) {
	merchantRefundID := "REFUND_" + uuid.NewString()

	request := map[string]any{
		"merchantId":            a.merchantID,
		"merchantTransactionId": req.GatewayPaymentID,
		"originalTransactionId": req.GatewayPaymentID,
		"merchantRefundId":      merchantRefundID,
		"amount":                toPaise(req.Amount),
	}

	raw, err := json.Marshal(request)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to build refund request").
			Mark(ierr.ErrSystem)
	}
	encoded := base64.StdEncoding.EncodeToString(raw)

	body, err := json.Marshal(map[string]string{"request": encoded})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to build refund request").
			Mark(ierr.ErrSystem)
	}

	resp, err := a.send(ctx, http.MethodPost, refundPath, body, map[string]string{
		VerifyHeader: a.checksum(encoded + refundPath),
	})
	if err != nil {
		return nil, err
	}

	a.logger.Infow("refunded phonepe payment",
		"gateway_payment_id", req.GatewayPaymentID,
		"merchant_refund_id", merchantRefundID,
	)

	return &gateway.RefundResult{
		GatewayRefundID: merchantRefundID,
		Raw:             resp.Body,
	}, nil
}

type webhookBody struct {
	Response string `json:"response"`
}

type webhookData struct {
	Code string `json:"code"`
	Data struct {
		MerchantTransactionID string `json:"merchantTransactionId"`
		TransactionID         string `json:"transactionId"`
	} `json:"data"`
}

// ParseWebhook checks the X-VERIFY checksum over the base64 response
// before decoding it.
func (a *Adapter) ParseWebhook(ctx context.Context, body []byte, headers map[string]string) (*gateway.WebhookEvent, error) {
	verify := headers[VerifyHeader]
	if verify == "" {
		// Go's header canonicalization rewrites X-VERIFY
		verify = headers["X-Verify"]
	}
	if verify == "" {
		return nil, ierr.NewError("missing webhook checksum").
			WithHint("X-VERIFY header is missing").
			Mark(ierr.ErrSignatureMismatch)
	}

	var wrapper webhookBody
	if err := json.Unmarshal(body, &wrapper); err != nil || wrapper.Response == "" {
		return nil, ierr.NewError("invalid webhook body").
			WithHint("Webhook body must contain a base64 response").
			Mark(ierr.ErrValidation)
	}

	expected := a.checksum(wrapper.Response)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(verify)) != 1 {
		return nil, ierr.NewError("invalid webhook checksum").
			WithHint("Webhook checksum verification failed").
			Mark(ierr.ErrSignatureMismatch)
	}

	decoded, err := base64.StdEncoding.DecodeString(wrapper.Response)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Webhook response is not valid base64").
			Mark(ierr.ErrValidation)
	}

	var data webhookData
	if err := json.Unmarshal(decoded, &data); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Webhook response is not valid JSON").
			Mark(ierr.ErrValidation)
	}

	event := &gateway.WebhookEvent{
		Gateway:          types.PaymentGatewayTypePhonePe,
		GatewayOrderID:   data.Data.MerchantTransactionID,
		GatewayPaymentID: data.Data.TransactionID,
		Raw:              decoded,
	}

	switch data.Code {
	case "PAYMENT_SUCCESS":
		event.EventType = gateway.WebhookEventPaymentCaptured
	case "PAYMENT_ERROR", "PAYMENT_FAILED", "PAYMENT_DECLINED":
		event.EventType = gateway.WebhookEventPaymentFailed
		event.FailureReason = data.Code
	default:
		event.EventType = gateway.WebhookEventUnknown
	}

	return event, nil
}

func (a *Adapter) send(ctx context.Context, method, path string, body []byte, headers map[string]string) (*httpclient.Response, error) {
	resp, err := a.client.Send(ctx, &httpclient.Request{
		Method:  method,
		URL:     a.baseURL + path,
		Headers: headers,
		Body:    body,
	})
	if err != nil {
		if httpErr, ok := httpclient.IsHTTPError(err); ok {
			return nil, ierr.WithError(httpErr).
				WithHint("PhonePe rejected the request").
				WithReportableDetails(map[string]any{
					"status_code": httpErr.StatusCode,
				}).
				Mark(ierr.ErrGatewayUnavailable)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to reach PhonePe").
			Mark(ierr.ErrGatewayUnavailable)
	}
	return resp, nil
}
