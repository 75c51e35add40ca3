package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/gym-backoffice-api/internal/dto"
	"github.com/noah-isme/gym-backoffice-api/internal/models"
	"github.com/noah-isme/gym-backoffice-api/internal/repository"
	appErrors "github.com/noah-isme/gym-backoffice-api/pkg/errors"
)

type markingStore interface {
	FindByID(ctx context.Context, id string) (*models.AttendanceRoster, error)
	ListItems(ctx context.Context, rosterID string) ([]models.AttendanceItem, error)
	SaveMarks(ctx context.Context, params repository.MarkParams) error
	MarkAll(ctx context.Context, rosterID string, present bool) (int64, error)
}

// AttendanceMarkingService records presence and notes on existing rosters.
type AttendanceMarkingService struct {
	repo      markingStore
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAttendanceMarkingService builds an AttendanceMarkingService.
func NewAttendanceMarkingService(repo markingStore, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *AttendanceMarkingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceMarkingService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// MarkItems sets every item of the roster present iff listed, applies notes and the general note.
func (s *AttendanceMarkingService) MarkItems(ctx context.Context, rosterID string, req dto.MarkItemsRequest) (*models.RosterWithItems, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid marking payload")
	}
	roster, err := s.loadRoster(ctx, rosterID)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListItems(ctx, roster.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list roster items")
	}

	known := make(map[string]struct{}, len(items))
	for _, item := range items {
		known[item.ID] = struct{}{}
	}
	for _, id := range req.PresentItemIDs {
		if _, ok := known[id]; !ok {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("item %s is not on roster %s", id, roster.ID))
		}
	}
	for id := range req.Notes {
		if _, ok := known[id]; !ok {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("item %s is not on roster %s", id, roster.ID))
		}
	}

	params := repository.MarkParams{
		RosterID:       roster.ID,
		PresentItemIDs: req.PresentItemIDs,
		Notes:          req.Notes,
		GeneralNote:    req.GeneralNote,
	}
	if err := s.repo.SaveMarks(ctx, params); err != nil {
		return nil, appErrors.Internal(err, "failed to save attendance")
	}
	s.cache.InvalidatePattern(ctx, rosterSummaryPattern(roster.OfferingID))

	return s.reload(ctx, roster.ID)
}

// MarkAll sets every item of the roster to the requested presence.
func (s *AttendanceMarkingService) MarkAll(ctx context.Context, rosterID string, req dto.MarkAllRequest) (*dto.MarkAllResult, error) {
	roster, err := s.loadRoster(ctx, rosterID)
	if err != nil {
		return nil, err
	}
	updated, err := s.repo.MarkAll(ctx, roster.ID, req.Present)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to mark roster")
	}
	s.cache.InvalidatePattern(ctx, rosterSummaryPattern(roster.OfferingID))
	s.logger.Debug("roster marked", zap.String("roster_id", roster.ID), zap.Bool("present", req.Present), zap.Int64("updated", updated))
	return &dto.MarkAllResult{RosterID: roster.ID, Updated: updated, Present: req.Present}, nil
}

func (s *AttendanceMarkingService) reload(ctx context.Context, rosterID string) (*models.RosterWithItems, error) {
	roster, err := s.loadRoster(ctx, rosterID)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListItems(ctx, roster.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list roster items")
	}
	return &models.RosterWithItems{Roster: *roster, Items: items}, nil
}

func (s *AttendanceMarkingService) loadRoster(ctx context.Context, id string) (*models.AttendanceRoster, error) {
	roster, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "roster not found")
		}
		return nil, appErrors.Internal(err, "failed to load roster")
	}
	return roster, nil
}
