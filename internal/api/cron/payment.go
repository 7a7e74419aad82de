package cron

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/twelvenexus/oneplan-billing/internal/logger"
	"github.com/twelvenexus/oneplan-billing/internal/service"
)

// PaymentHandler handles payment related cron jobs
type PaymentHandler struct {
	sweepService service.SweepService
	logger       *logger.Logger
}

// NewPaymentHandler creates a new payment cron handler
func NewPaymentHandler(sweepService service.SweepService, logger *logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		sweepService: sweepService,
		logger:       logger,
	}
}

// ProcessStalePayments cancels payments stuck in PENDING past the
// configured timeout. Scheduled hourly.
func (h *PaymentHandler) ProcessStalePayments(c *gin.Context) {
	h.logger.Infow("starting stale payment cron job")

	result, err := h.sweepService.ProcessStalePayments(c.Request.Context())
	if err != nil {
		h.logger.Errorw("failed to process stale payments",
			"error", err)
		c.Error(err)
		return
	}

	h.logger.Infow("completed stale payment cron job",
		"processed", result.Processed)
	c.JSON(http.StatusOK, result)
}
