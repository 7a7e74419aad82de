package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/twelvenexus/oneplan-billing/internal/api/dto"
	ierr "github.com/twelvenexus/oneplan-billing/internal/errors"
	"github.com/twelvenexus/oneplan-billing/internal/logger"
	"github.com/twelvenexus/oneplan-billing/internal/service"
	"github.com/twelvenexus/oneplan-billing/internal/types"
)

type PaymentHandler struct {
	service service.PaymentService
	log     *logger.Logger
}

func NewPaymentHandler(service service.PaymentService, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{service: service, log: log}
}

// @Summary Initiate a payment
// @Description Open a gateway order for a subscription charge
// @Tags Payments
// @Accept json
// @Produce json
// @Param payment body dto.InitiatePaymentRequest true "Payment"
// @Success 201 {object} dto.PaymentResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 502 {object} ierr.ErrorResponse
// @Router /payments [post]
func (h *PaymentHandler) InitiatePayment(c *gin.Context) {
	var req dto.InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Error("Failed to bind JSON", "error", err)
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.InitiatePayment(c.Request.Context(), &req)
	if err != nil {
		h.log.Error("Failed to initiate payment", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// @Summary Complete a payment
// @Description Verify the gateway callback and settle the payment
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body dto.CompletePaymentRequest true "Completion"
// @Success 200 {object} dto.PaymentResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Router /payments/complete [post]
func (h *PaymentHandler) CompletePayment(c *gin.Context) {
	var req dto.CompletePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.CompletePayment(c.Request.Context(), &req)
	if err != nil {
		h.log.Error("Failed to complete payment", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Get a payment by ID
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} dto.PaymentResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /payments/{id} [get]
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("id is required").
			WithHint("Payment ID is required").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.GetPayment(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Get a payment by gateway order ID
// @Tags Payments
// @Produce json
// @Param order_id path string true "Gateway order ID"
// @Success 200 {object} dto.PaymentResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /payments/order/{order_id} [get]
func (h *PaymentHandler) GetPaymentByGatewayOrderID(c *gin.Context) {
	orderID := c.Param("order_id")
	resp, err := h.service.GetPaymentByGatewayOrderID(c.Request.Context(), orderID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary List payments
// @Tags Payments
// @Produce json
// @Param filter query types.PaymentFilter false "Filter"
// @Success 200 {object} dto.ListPaymentsResponse
// @Router /payments [get]
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	var filter types.PaymentFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid query parameters").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.ListPayments(c.Request.Context(), &filter)
	if err != nil {
		h.log.Error("Failed to list payments", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Total revenue for a tenant over a period
// @Description Sum of completed payments settled inside the window
// @Tags Payments
// @Produce json
// @Param X-Tenant-ID header string true "Tenant ID"
// @Param start_date query string true "Window start (RFC3339)"
// @Param end_date query string true "Window end (RFC3339)"
// @Success 200 {object} dto.RevenueResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Router /payments/revenue [get]
func (h *PaymentHandler) GetRevenue(c *gin.Context) {
	tenantID := c.GetHeader(types.HeaderTenantID)
	if tenantID == "" {
		tenantID = c.Query("tenant_id")
	}

	start, err := time.Parse(time.RFC3339, c.Query("start_date"))
	if err != nil {
		c.Error(ierr.WithError(err).
			WithHint("start_date must be an RFC3339 timestamp").
			Mark(ierr.ErrValidation))
		return
	}
	end, err := time.Parse(time.RFC3339, c.Query("end_date"))
	if err != nil {
		c.Error(ierr.WithError(err).
			WithHint("end_date must be an RFC3339 timestamp").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.GetRevenue(c.Request.Context(), tenantID, start, end)
	if err != nil {
		h.log.Error("Failed to compute revenue", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Refund a payment
// @Description Refund a completed payment, fully or partially
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path string true "Payment ID"
// @Param request body dto.RefundPaymentRequest false "Refund"
// @Success 200 {object} dto.PaymentResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Router /payments/{id}/refund [post]
func (h *PaymentHandler) RefundPayment(c *gin.Context) {
	id := c.Param("id")
	var req dto.RefundPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.RefundPayment(c.Request.Context(), id, &req)
	if err != nil {
		h.log.Error("Failed to refund payment", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Save a payment method
// @Description Store a tokenized payment instrument
// @Tags PaymentMethods
// @Accept json
// @Produce json
// @Param method body dto.SavePaymentMethodRequest true "Payment method"
// @Success 201 {object} dto.PaymentMethodResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Router /payment-methods [post]
func (h *PaymentHandler) SavePaymentMethod(c *gin.Context) {
	var req dto.SavePaymentMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.SavePaymentMethod(c.Request.Context(), &req)
	if err != nil {
		h.log.Error("Failed to save payment method", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// @Summary Get a payment method by ID
// @Tags PaymentMethods
// @Produce json
// @Param id path string true "Payment method ID"
// @Success 200 {object} dto.PaymentMethodResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /payment-methods/{id} [get]
func (h *PaymentHandler) GetPaymentMethod(c *gin.Context) {
	id := c.Param("id")
	resp, err := h.service.GetPaymentMethod(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary List a tenant's payment methods
// @Tags PaymentMethods
// @Produce json
// @Param tenant_id path string true "Tenant ID"
// @Success 200 {array} dto.PaymentMethodResponse
// @Router /payment-methods/tenant/{tenant_id} [get]
func (h *PaymentHandler) ListPaymentMethods(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	if tenantID == "" {
		c.Error(ierr.NewError("tenant_id is required").
			WithHint("Tenant ID is required").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.ListPaymentMethods(c.Request.Context(), tenantID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Set the default payment method
// @Tags PaymentMethods
// @Produce json
// @Param id path string true "Payment method ID"
// @Success 200 {object} dto.PaymentMethodResponse
// @Router /payment-methods/{id}/default [post]
func (h *PaymentHandler) SetDefaultPaymentMethod(c *gin.Context) {
	id := c.Param("id")
	resp, err := h.service.SetDefaultPaymentMethod(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Delete a payment method
// @Tags PaymentMethods
// @Produce json
// @Param id path string true "Payment method ID"
// @Success 200 {object} map[string]string
// @Router /payment-methods/{id} [delete]
func (h *PaymentHandler) DeletePaymentMethod(c *gin.Context) {
	id := c.Param("id")
	if err := h.service.DeletePaymentMethod(c.Request.Context(), id); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "payment method deleted successfully"})
}
