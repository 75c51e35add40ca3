package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gym-backoffice-api/internal/dto"
	"github.com/noah-isme/gym-backoffice-api/internal/models"
	"github.com/noah-isme/gym-backoffice-api/internal/service"
	appErrors "github.com/noah-isme/gym-backoffice-api/pkg/errors"
	"github.com/noah-isme/gym-backoffice-api/pkg/response"
)

type offeringService interface {
	Create(ctx context.Context, req dto.CreateOfferingRequest) (*models.ClassOffering, error)
	Update(ctx context.Context, id string, patch dto.UpdateOfferingRequest) (*models.ClassOffering, error)
	ToggleActive(ctx context.Context, id string) (*models.ClassOffering, error)
	Get(ctx context.Context, id string) (*models.ClassOfferingDetail, error)
	List(ctx context.Context, filter models.ClassOfferingFilter) ([]models.ClassOfferingDetail, *models.Pagination, error)
	Occupancy(ctx context.Context, id string) (*models.OfferingOccupancy, error)
}

type offeringExporter interface {
	ExportOfferings(ctx context.Context, filter models.ClassOfferingFilter, format string) (*service.ExportFile, error)
}

// OfferingHandler manages class offering endpoints.
type OfferingHandler struct {
	service  offeringService
	exporter offeringExporter
}

// NewOfferingHandler constructs handler.
func NewOfferingHandler(svc offeringService, exporter offeringExporter) *OfferingHandler {
	return &OfferingHandler{service: svc, exporter: exporter}
}

// List godoc
// @Summary List class offerings
// @Tags Offerings
// @Produce json
// @Param q query string false "Search display name, modality or instructor"
// @Param condominiumId query string false "Filter by condominium (site)"
// @Param modalityId query string false "Filter by modality"
// @Param instructorId query string false "Filter by instructor"
// @Param weekday query string false "Filter by weekday (MON..SUN)"
// @Param active query bool false "Filter by active flag"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /offerings [get]
func (h *OfferingHandler) List(c *gin.Context) {
	filter, err := offeringFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	items, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Create godoc
// @Summary Create class offering
// @Tags Offerings
// @Accept json
// @Produce json
// @Param payload body dto.CreateOfferingRequest true "Offering payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /offerings [post]
func (h *OfferingHandler) Create(c *gin.Context) {
	var req dto.CreateOfferingRequest
	if !bindJSON(c, &req) {
		return
	}
	offering, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, offering)
}

// Get godoc
// @Summary Get class offering
// @Tags Offerings
// @Produce json
// @Param id path string true "Offering ID"
// @Success 200 {object} response.Envelope
// @Router /offerings/{id} [get]
func (h *OfferingHandler) Get(c *gin.Context) {
	offering, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, offering)
}

// Update godoc
// @Summary Update class offering
// @Tags Offerings
// @Accept json
// @Produce json
// @Param id path string true "Offering ID"
// @Param payload body dto.UpdateOfferingRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /offerings/{id} [put]
func (h *OfferingHandler) Update(c *gin.Context) {
	var req dto.UpdateOfferingRequest
	if !bindJSON(c, &req) {
		return
	}
	offering, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, offering)
}

// Toggle godoc
// @Summary Toggle class offering active flag
// @Tags Offerings
// @Produce json
// @Param id path string true "Offering ID"
// @Success 200 {object} response.Envelope
// @Router /offerings/{id}/toggle [post]
func (h *OfferingHandler) Toggle(c *gin.Context) {
	offering, err := h.service.ToggleActive(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, offering)
}

// Occupancy godoc
// @Summary Seat usage of a class offering
// @Tags Offerings
// @Produce json
// @Param id path string true "Offering ID"
// @Success 200 {object} response.Envelope
// @Router /offerings/{id}/occupancy [get]
func (h *OfferingHandler) Occupancy(c *gin.Context) {
	occupancy, err := h.service.Occupancy(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, occupancy)
}

// Export godoc
// @Summary Export class offerings
// @Tags Offerings
// @Produce text/csv,application/pdf
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /offerings/export [get]
func (h *OfferingHandler) Export(c *gin.Context) {
	filter, err := offeringFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.exporter.ExportOfferings(c.Request.Context(), filter, c.DefaultQuery("format", service.FormatCSV))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Body)
}

func offeringFilter(c *gin.Context) (models.ClassOfferingFilter, error) {
	filter := models.ClassOfferingFilter{
		Search:        strings.TrimSpace(c.Query("q")),
		CondominiumID: c.Query("condominiumId"),
		ModalityID:    c.Query("modalityId"),
		InstructorID:  c.Query("instructorId"),
	}
	if raw := c.Query("weekday"); raw != "" {
		day, err := models.ParseWeekday(raw)
		if err != nil {
			return filter, appErrors.Validation(err, "weekday must be one of MON..SUN")
		}
		filter.Weekday = &day
	}
	active, err := boolQuery(c, "active")
	if err != nil {
		return filter, err
	}
	filter.Active = active
	if filter.Page, err = intQuery(c, "page", 1); err != nil {
		return filter, err
	}
	if filter.PageSize, err = intQuery(c, "limit", 20); err != nil {
		return filter, err
	}
	return filter, nil
}
