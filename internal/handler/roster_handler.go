package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gym-backoffice-api/internal/dto"
	"github.com/noah-isme/gym-backoffice-api/internal/models"
	"github.com/noah-isme/gym-backoffice-api/internal/service"
	"github.com/noah-isme/gym-backoffice-api/pkg/response"
)

type rosterService interface {
	CreateRoster(ctx context.Context, req dto.CreateRosterRequest) (*models.RosterWithItems, error)
	Synchronize(ctx context.Context, rosterID string) (*models.RosterSyncResult, error)
	GenerateRange(ctx context.Context, offeringID string, req dto.GenerateRostersRequest) (*models.RosterRangeResult, error)
	ListRosters(ctx context.Context, offeringID string, filter dto.RosterListFilter) ([]models.AttendanceRosterSummary, error)
	OpenRoster(ctx context.Context, rosterID string) (*models.RosterWithItems, error)
}

type markingService interface {
	MarkItems(ctx context.Context, rosterID string, req dto.MarkItemsRequest) (*models.RosterWithItems, error)
	MarkAll(ctx context.Context, rosterID string, req dto.MarkAllRequest) (*dto.MarkAllResult, error)
}

type rosterExporter interface {
	ExportRosterSheet(ctx context.Context, rosterID string) (*service.ExportFile, error)
}

// RosterHandler manages attendance roster endpoints.
type RosterHandler struct {
	rosters  rosterService
	marking  markingService
	exporter rosterExporter
}

// NewRosterHandler constructs handler.
func NewRosterHandler(rosters rosterService, marking markingService, exporter rosterExporter) *RosterHandler {
	return &RosterHandler{rosters: rosters, marking: marking, exporter: exporter}
}

// Create godoc
// @Summary Create the roster of an offering for one date
// @Tags Rosters
// @Accept json
// @Produce json
// @Param payload body dto.CreateRosterRequest true "Roster payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /rosters [post]
func (h *RosterHandler) Create(c *gin.Context) {
	var req dto.CreateRosterRequest
	if !bindJSON(c, &req) {
		return
	}
	roster, err := h.rosters.CreateRoster(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, roster)
}

// Open godoc
// @Summary Get a roster with its items
// @Tags Rosters
// @Produce json
// @Param id path string true "Roster ID"
// @Success 200 {object} response.Envelope
// @Router /rosters/{id} [get]
func (h *RosterHandler) Open(c *gin.Context) {
	roster, err := h.rosters.OpenRoster(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, roster)
}

// Sync godoc
// @Summary Add items for enrollments missing from a roster
// @Tags Rosters
// @Produce json
// @Param id path string true "Roster ID"
// @Success 200 {object} response.Envelope
// @Router /rosters/{id}/sync [post]
func (h *RosterHandler) Sync(c *gin.Context) {
	result, err := h.rosters.Synchronize(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// Generate godoc
// @Summary Create rosters for every class date in a range
// @Tags Rosters
// @Accept json
// @Produce json
// @Param id path string true "Offering ID"
// @Param payload body dto.GenerateRostersRequest true "Inclusive date range"
// @Success 200 {object} response.Envelope
// @Router /offerings/{id}/rosters/generate [post]
func (h *RosterHandler) Generate(c *gin.Context) {
	var req dto.GenerateRostersRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.rosters.GenerateRange(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// ListByOffering godoc
// @Summary List roster summaries of an offering
// @Tags Rosters
// @Produce json
// @Param id path string true "Offering ID"
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /offerings/{id}/rosters [get]
func (h *RosterHandler) ListByOffering(c *gin.Context) {
	var filter dto.RosterListFilter
	var err error
	if filter.From, err = dateQuery(c, "from"); err != nil {
		response.Error(c, err)
		return
	}
	if filter.To, err = dateQuery(c, "to"); err != nil {
		response.Error(c, err)
		return
	}
	items, err := h.rosters.ListRosters(c.Request.Context(), c.Param("id"), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Mark godoc
// @Summary Record attendance on a roster
// @Tags Rosters
// @Accept json
// @Produce json
// @Param id path string true "Roster ID"
// @Param payload body dto.MarkItemsRequest true "Present items and notes"
// @Success 200 {object} response.Envelope
// @Router /rosters/{id}/marks [put]
func (h *RosterHandler) Mark(c *gin.Context) {
	var req dto.MarkItemsRequest
	if !bindJSON(c, &req) {
		return
	}
	roster, err := h.marking.MarkItems(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, roster)
}

// MarkAll godoc
// @Summary Set presence of every item on a roster
// @Tags Rosters
// @Accept json
// @Produce json
// @Param id path string true "Roster ID"
// @Param payload body dto.MarkAllRequest true "Presence value"
// @Success 200 {object} response.Envelope
// @Router /rosters/{id}/mark-all [post]
func (h *RosterHandler) MarkAll(c *gin.Context) {
	req := dto.MarkAllRequest{Present: true}
	if !bindOptionalJSON(c, &req) {
		return
	}
	result, err := h.marking.MarkAll(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// Export godoc
// @Summary Printable attendance sheet
// @Tags Rosters
// @Produce application/pdf
// @Param id path string true "Roster ID"
// @Success 200 {file} file
// @Router /rosters/{id}/export [get]
func (h *RosterHandler) Export(c *gin.Context) {
	file, err := h.exporter.ExportRosterSheet(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Body)
}
