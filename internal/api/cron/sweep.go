package cron

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/twelvenexus/oneplan-billing/internal/logger"
	"github.com/twelvenexus/oneplan-billing/internal/service"
)

// SweepHandler triggers every maintenance pass in one call, for
// schedulers that prefer a single nightly job.
type SweepHandler struct {
	sweepService service.SweepService
	logger       *logger.Logger
}

func NewSweepHandler(sweepService service.SweepService, logger *logger.Logger) *SweepHandler {
	return &SweepHandler{
		sweepService: sweepService,
		logger:       logger,
	}
}

func (h *SweepHandler) RunAll(c *gin.Context) {
	h.logger.Infow("starting full sweep run")

	results, err := h.sweepService.RunAll(c.Request.Context())
	if err != nil {
		h.logger.Errorw("full sweep run failed", "error", err)
		c.Error(err)
		return
	}

	h.logger.Infow("completed full sweep run")
	c.JSON(http.StatusOK, results)
}
