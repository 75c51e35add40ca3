package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gym-backoffice-api/internal/dto"
	"github.com/noah-isme/gym-backoffice-api/internal/models"
	"github.com/noah-isme/gym-backoffice-api/pkg/response"
)

type enrollmentService interface {
	Enroll(ctx context.Context, req dto.EnrollRequest) (*models.Enrollment, error)
	End(ctx context.Context, id string, req dto.EndEnrollmentRequest) (*models.Enrollment, error)
	Get(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	ListByOffering(ctx context.Context, offeringID string, includeInactive bool) ([]models.EnrollmentDetail, error)
	ListParticipants(ctx context.Context, offeringID string) ([]models.EnrollmentDetail, error)
}

// EnrollmentHandler manages enrollment endpoints.
type EnrollmentHandler struct {
	service enrollmentService
}

// NewEnrollmentHandler constructs handler.
func NewEnrollmentHandler(svc enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{service: svc}
}

// Enroll godoc
// @Summary Enroll a client or dependent in a class offering
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body dto.EnrollRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	var req dto.EnrollRequest
	if !bindJSON(c, &req) {
		return
	}
	enrollment, err := h.service.Enroll(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// Get godoc
// @Summary Get enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	enrollment, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, enrollment)
}

// End godoc
// @Summary End an active enrollment
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body dto.EndEnrollmentRequest false "Optional end date"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/end [post]
func (h *EnrollmentHandler) End(c *gin.Context) {
	var req dto.EndEnrollmentRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	enrollment, err := h.service.End(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, enrollment)
}

// ListByOffering godoc
// @Summary List enrollments of an offering
// @Tags Enrollments
// @Produce json
// @Param id path string true "Offering ID"
// @Param includeInactive query bool false "Include ended enrollments"
// @Success 200 {object} response.Envelope
// @Router /offerings/{id}/enrollments [get]
func (h *EnrollmentHandler) ListByOffering(c *gin.Context) {
	includeInactive, err := boolQuery(c, "includeInactive")
	if err != nil {
		response.Error(c, err)
		return
	}
	items, err := h.service.ListByOffering(c.Request.Context(), c.Param("id"), includeInactive != nil && *includeInactive)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Participants godoc
// @Summary List current participants of an offering
// @Tags Enrollments
// @Produce json
// @Param id path string true "Offering ID"
// @Success 200 {object} response.Envelope
// @Router /offerings/{id}/participants [get]
func (h *EnrollmentHandler) Participants(c *gin.Context) {
	items, err := h.service.ListParticipants(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}
