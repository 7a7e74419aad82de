package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/twelvenexus/oneplan-billing/internal/api/dto"
	ierr "github.com/twelvenexus/oneplan-billing/internal/errors"
	"github.com/twelvenexus/oneplan-billing/internal/logger"
	"github.com/twelvenexus/oneplan-billing/internal/service"
	"github.com/twelvenexus/oneplan-billing/internal/types"
)

type PlanHandler struct {
	service service.PlanService
	log     *logger.Logger
}

func NewPlanHandler(service service.PlanService, log *logger.Logger) *PlanHandler {
	return &PlanHandler{service: service, log: log}
}

// @Summary Create a new plan
// @Description Create a new plan with per-cycle pricing and features
// @Tags Plans
// @Accept json
// @Produce json
// @Param plan body dto.CreatePlanRequest true "Plan configuration"
// @Success 201 {object} dto.PlanResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /plans [post]
func (h *PlanHandler) CreatePlan(c *gin.Context) {
	var req dto.CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Error("Failed to bind JSON", "error", err)
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.CreatePlan(c.Request.Context(), &req)
	if err != nil {
		h.log.Error("Failed to create plan", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// @Summary Get a plan by ID
// @Description Get a plan by ID
// @Tags Plans
// @Produce json
// @Param id path string true "Plan ID"
// @Success 200 {object} dto.PlanResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /plans/{id} [get]
func (h *PlanHandler) GetPlan(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("id is required").
			WithHint("Plan ID is required").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.GetPlan(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Get a plan by code
// @Description Get a plan by its stable code
// @Tags Plans
// @Produce json
// @Param code path string true "Plan code"
// @Success 200 {object} dto.PlanResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /plans/code/{code} [get]
func (h *PlanHandler) GetPlanByCode(c *gin.Context) {
	code := c.Param("code")
	if code == "" {
		c.Error(ierr.NewError("code is required").
			WithHint("Plan code is required").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.GetPlanByCode(c.Request.Context(), code)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary List plans
// @Description List plans with optional active-only filtering
// @Tags Plans
// @Produce json
// @Param filter query types.PlanFilter false "Filter"
// @Success 200 {object} dto.ListPlansResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /plans [get]
func (h *PlanHandler) ListPlans(c *gin.Context) {
	var filter types.PlanFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid query parameters").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.ListPlans(c.Request.Context(), &filter)
	if err != nil {
		h.log.Error("Failed to list plans", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary List popular plans
// @Description List active plans flagged as popular, in catalog order
// @Tags Plans
// @Produce json
// @Success 200 {object} dto.ListPlansResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /plans/popular [get]
func (h *PlanHandler) ListPopularPlans(c *gin.Context) {
	resp, err := h.service.ListPopularPlans(c.Request.Context())
	if err != nil {
		h.log.Error("Failed to list popular plans", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Update a plan
// @Description Update plan details, pricing and features
// @Tags Plans
// @Accept json
// @Produce json
// @Param id path string true "Plan ID"
// @Param plan body dto.UpdatePlanRequest true "Plan update"
// @Success 200 {object} dto.PlanResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Router /plans/{id} [put]
func (h *PlanHandler) UpdatePlan(c *gin.Context) {
	id := c.Param("id")
	var req dto.UpdatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.UpdatePlan(c.Request.Context(), id, &req)
	if err != nil {
		h.log.Error("Failed to update plan", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Delete a plan
// @Description Soft delete a plan without active subscriptions
// @Tags Plans
// @Produce json
// @Param id path string true "Plan ID"
// @Success 200 {object} map[string]string
// @Failure 400 {object} ierr.ErrorResponse
// @Router /plans/{id} [delete]
func (h *PlanHandler) DeletePlan(c *gin.Context) {
	id := c.Param("id")
	if err := h.service.DeletePlan(c.Request.Context(), id); err != nil {
		h.log.Error("Failed to delete plan", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "plan deleted successfully"})
}

// @Summary Activate a plan
// @Tags Plans
// @Produce json
// @Param id path string true "Plan ID"
// @Success 200 {object} map[string]string
// @Router /plans/{id}/activate [post]
func (h *PlanHandler) ActivatePlan(c *gin.Context) {
	id := c.Param("id")
	if err := h.service.ActivatePlan(c.Request.Context(), id); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "plan activated successfully"})
}

// @Summary Deactivate a plan
// @Tags Plans
// @Produce json
// @Param id path string true "Plan ID"
// @Success 200 {object} map[string]string
// @Router /plans/{id}/deactivate [post]
func (h *PlanHandler) DeactivatePlan(c *gin.Context) {
	id := c.Param("id")
	if err := h.service.DeactivatePlan(c.Request.Context(), id); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "plan deactivated successfully"})
}

// @Summary Mark a plan as popular
// @Tags Plans
// @Accept json
// @Produce json
// @Param id path string true "Plan ID"
// @Param request body dto.MarkPopularRequest true "Popularity flag"
// @Success 200 {object} map[string]string
// @Router /plans/{id}/popular [post]
func (h *PlanHandler) MarkPopular(c *gin.Context) {
	id := c.Param("id")
	var req dto.MarkPopularRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	if err := h.service.MarkPopular(c.Request.Context(), id, req.Popular); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "plan popularity updated"})
}

// @Summary Calculate a price
// @Description Resolve the charge for a plan, cycle and quantity
// @Tags Plans
// @Accept json
// @Produce json
// @Param request body dto.CalculatePriceRequest true "Price calculation"
// @Success 200 {object} dto.CalculatePriceResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Router /plans/price [post]
func (h *PlanHandler) CalculatePrice(c *gin.Context) {
	var req dto.CalculatePriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.CalculatePrice(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
