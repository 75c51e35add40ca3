package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gym-backoffice-api/internal/dto"
	"github.com/noah-isme/gym-backoffice-api/internal/models"
	"github.com/noah-isme/gym-backoffice-api/pkg/response"
)

type billingService interface {
	RunMonthly(ctx context.Context, req dto.MonthlyBillingRequest) (*models.BillingRunResult, error)
	ListCharges(ctx context.Context, year, month int) ([]models.MonthlyCharge, error)
}

// BillingHandler exposes the monthly billing run.
type BillingHandler struct {
	service billingService
}

// NewBillingHandler constructs handler.
func NewBillingHandler(svc billingService) *BillingHandler {
	return &BillingHandler{service: svc}
}

// RunMonthly godoc
// @Summary Create monthly charges from enrollments
// @Tags Billing
// @Accept json
// @Produce json
// @Param payload body dto.MonthlyBillingRequest true "Competence month"
// @Success 200 {object} response.Envelope
// @Router /billing/monthly [post]
func (h *BillingHandler) RunMonthly(c *gin.Context) {
	var req dto.MonthlyBillingRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.service.RunMonthly(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// ListCharges godoc
// @Summary List charges of a competence month
// @Tags Billing
// @Produce json
// @Param year query int true "Competence year"
// @Param month query int true "Competence month"
// @Success 200 {object} response.Envelope
// @Router /billing/charges [get]
func (h *BillingHandler) ListCharges(c *gin.Context) {
	year, err := intQuery(c, "year", 0)
	if err != nil {
		response.Error(c, err)
		return
	}
	month, err := intQuery(c, "month", 0)
	if err != nil {
		response.Error(c, err)
		return
	}
	charges, err := h.service.ListCharges(c.Request.Context(), year, month)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, charges, nil)
}
