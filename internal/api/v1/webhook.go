package v1

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	ierr "github.com/twelvenexus/oneplan-billing/internal/errors"
	"github.com/twelvenexus/oneplan-billing/internal/logger"
	"github.com/twelvenexus/oneplan-billing/internal/service"
	"github.com/twelvenexus/oneplan-billing/internal/types"
)

type WebhookHandler struct {
	service service.PaymentService
	log     *logger.Logger
}

func NewWebhookHandler(service service.PaymentService, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{service: service, log: log}
}

// @Summary Receive a gateway webhook
// @Description Verify and process a payment provider notification. A bad
// @Description signature gets 400; unknown events and orders are acked
// @Description with 200; internal processing failures surface as 5xx so
// @Description the provider redelivers, which is safe because processing
// @Description is idempotent on the gateway order id.
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param gateway path string true "Gateway" Enums(razorpay, phonepe)
// @Success 200 {object} map[string]string
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /webhooks/{gateway} [post]
func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	gatewayType := types.PaymentGatewayType(strings.ToUpper(c.Param("gateway")))

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Failed to read webhook body").
			Mark(ierr.ErrValidation))
		return
	}

	headers := make(map[string]string, len(c.Request.Header))
	for name := range c.Request.Header {
		headers[name] = c.GetHeader(name)
	}

	if err := h.service.HandleWebhook(c.Request.Context(), gatewayType, body, headers); err != nil {
		h.log.Error("Failed to handle webhook", "gateway", gatewayType, "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
