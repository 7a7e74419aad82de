package cron

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/twelvenexus/oneplan-billing/internal/logger"
	"github.com/twelvenexus/oneplan-billing/internal/service"
)

// SubscriptionHandler handles subscription related cron jobs
type SubscriptionHandler struct {
	sweepService service.SweepService
	logger       *logger.Logger
}

// NewSubscriptionHandler creates a new subscription cron handler
func NewSubscriptionHandler(sweepService service.SweepService, logger *logger.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		sweepService: sweepService,
		logger:       logger,
	}
}

// ProcessDueRenewals advances auto-renewing subscriptions whose billing
// period has ended. Scheduled daily at midnight.
func (h *SubscriptionHandler) ProcessDueRenewals(c *gin.Context) {
	h.logger.Infow("starting subscription renewal cron job")

	result, err := h.sweepService.ProcessDueRenewals(c.Request.Context())
	if err != nil {
		h.logger.Errorw("failed to process subscription renewals",
			"error", err)
		c.Error(err)
		return
	}

	h.logger.Infow("completed subscription renewal cron job",
		"processed", result.Processed,
		"failed", result.Failed)
	c.JSON(http.StatusOK, result)
}

// ProcessExpiredTrials downgrades trials that ended without converting.
// Scheduled daily at 2 AM.
func (h *SubscriptionHandler) ProcessExpiredTrials(c *gin.Context) {
	h.logger.Infow("starting trial expiry cron job")

	result, err := h.sweepService.ProcessExpiredTrials(c.Request.Context())
	if err != nil {
		h.logger.Errorw("failed to process expired trials",
			"error", err)
		c.Error(err)
		return
	}

	h.logger.Infow("completed trial expiry cron job",
		"processed", result.Processed)
	c.JSON(http.StatusOK, result)
}

// ProcessExpiredSubscriptions cancels non-renewing subscriptions past
// their end date. Scheduled daily at 3 AM.
func (h *SubscriptionHandler) ProcessExpiredSubscriptions(c *gin.Context) {
	h.logger.Infow("starting subscription expiry cron job")

	result, err := h.sweepService.ProcessExpiredSubscriptions(c.Request.Context())
	if err != nil {
		h.logger.Errorw("failed to process expired subscriptions",
			"error", err)
		c.Error(err)
		return
	}

	h.logger.Infow("completed subscription expiry cron job",
		"processed", result.Processed)
	c.JSON(http.StatusOK, result)
}
