package cron

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/twelvenexus/oneplan-billing/internal/logger"
	"github.com/twelvenexus/oneplan-billing/internal/service"
)

// InvoiceHandler handles invoice related cron jobs
type InvoiceHandler struct {
	sweepService service.SweepService
	logger       *logger.Logger
}

// NewInvoiceHandler creates a new invoice cron handler
func NewInvoiceHandler(sweepService service.SweepService, logger *logger.Logger) *InvoiceHandler {
	return &InvoiceHandler{
		sweepService: sweepService,
		logger:       logger,
	}
}

// ProcessOverdueInvoices flags issued invoices past their due date.
// Scheduled daily at 4 AM.
func (h *InvoiceHandler) ProcessOverdueInvoices(c *gin.Context) {
	h.logger.Infow("starting overdue invoice cron job")

	result, err := h.sweepService.ProcessOverdueInvoices(c.Request.Context())
	if err != nil {
		h.logger.Errorw("failed to process overdue invoices",
			"error", err)
		c.Error(err)
		return
	}

	h.logger.Infow("completed overdue invoice cron job",
		"processed", result.Processed)
	c.JSON(http.StatusOK, result)
}
