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

const defaultMaxRangeDays = 366

type rosterStore interface {
	Create(ctx context.Context, roster *models.AttendanceRoster) ([]models.AttendanceItem, error)
	AddItems(ctx context.Context, rosterID string, items []models.AttendanceItem) ([]models.AttendanceItem, error)
	FindByID(ctx context.Context, id string) (*models.AttendanceRoster, error)
	ExistingDates(ctx context.Context, offeringID string, from, to models.Date) (map[string]struct{}, error)
	List(ctx context.Context, offeringID string, from, to *models.Date) ([]models.AttendanceRosterSummary, error)
	ListItems(ctx context.Context, rosterID string) ([]models.AttendanceItem, error)
}

type activeEnrollmentLister interface {
	ListActiveOn(ctx context.Context, offeringID string, date models.Date) ([]models.EnrollmentDetail, error)
}

// AttendanceRosterService materialises per-date rosters from enrollment history.
type AttendanceRosterService struct {
	repo         rosterStore
	offerings    offeringReader
	enrollments  activeEnrollmentLister
	hooks        Hooks
	cache        *CacheService
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
	maxRangeDays int
}

// NewAttendanceRosterService builds an AttendanceRosterService. maxRangeDays bounds GenerateRange.
func NewAttendanceRosterService(
	repo rosterStore,
	offerings offeringReader,
	enrollments activeEnrollmentLister,
	hooks Hooks,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	maxRangeDays int,
) *AttendanceRosterService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if hooks == nil {
		hooks = noopHooks{}
	}
	if maxRangeDays <= 0 {
		maxRangeDays = defaultMaxRangeDays
	}
	return &AttendanceRosterService{
		repo:         repo,
		offerings:    offerings,
		enrollments:  enrollments,
		hooks:        hooks,
		cache:        cache,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
		maxRangeDays: maxRangeDays,
	}
}

// CreateRoster creates the roster of an offering for one date, populated with the enrollments active that day.
func (s *AttendanceRosterService) CreateRoster(ctx context.Context, req dto.CreateRosterRequest) (*models.RosterWithItems, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid roster payload")
	}
	offering, err := s.loadOffering(ctx, req.OfferingID)
	if err != nil {
		return nil, err
	}
	if !offering.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "offering is inactive")
	}
	date := *req.Date
	if !offering.RunsOn(date) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("offering does not run on %s (%s)", date.Weekday(), date))
	}
	if !offering.ValidOn(date) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s is outside the offering validity", date))
	}

	roster := &models.AttendanceRoster{OfferingID: offering.ID, Date: date, GeneralNote: req.GeneralNote}
	items, err := s.materialise(ctx, roster)
	if err != nil {
		if errors.Is(err, repository.ErrRosterExists) {
			s.metrics.RecordRosters(0, 1, 0, 0)
			return nil, appErrors.Clone(appErrors.ErrAlreadyExists, fmt.Sprintf("roster for offering %s on %s already exists", offering.ID, date))
		}
		return nil, appErrors.Internal(err, "failed to create roster")
	}

	s.metrics.RecordRosters(1, 0, 0, len(items))
	s.cache.InvalidatePattern(ctx, rosterSummaryPattern(offering.ID))
	return &models.RosterWithItems{Roster: *roster, Items: items}, nil
}

// Synchronize adds items for enrollments active on the roster date that are not yet listed.
// Existing items are never removed.
func (s *AttendanceRosterService) Synchronize(ctx context.Context, rosterID string) (*models.RosterSyncResult, error) {
	roster, err := s.loadRoster(ctx, rosterID)
	if err != nil {
		return nil, err
	}
	active, err := s.enrollments.ListActiveOn(ctx, roster.OfferingID, roster.Date)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list active enrollments")
	}
	current, err := s.repo.ListItems(ctx, roster.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list roster items")
	}

	listed := make(map[string]struct{}, len(current))
	for _, item := range current {
		if item.EnrollmentID != nil {
			listed[*item.EnrollmentID] = struct{}{}
		}
	}
	missing := make([]models.AttendanceItem, 0)
	for _, enrollment := range active {
		if _, ok := listed[enrollment.ID]; ok {
			continue
		}
		missing = append(missing, models.NewAttendanceItem(roster.ID, enrollment))
	}

	result := &models.RosterSyncResult{RosterID: roster.ID}
	if len(missing) > 0 {
		added, err := s.repo.AddItems(ctx, roster.ID, missing)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to synchronize roster")
		}
		result.Added = len(added)
	}
	result.AlreadyPresent = len(active) - result.Added

	if result.Added > 0 {
		s.metrics.RecordRosters(0, 0, 0, result.Added)
		s.cache.InvalidatePattern(ctx, rosterSummaryPattern(roster.OfferingID))
	}
	return result, nil
}

// GenerateRange creates rosters for every date of [from, to] on which the offering runs. Dates
// with a roster are counted as existing, dates outside the pattern or validity as skipped. A failure
// on one date is reported and the batch continues.
func (s *AttendanceRosterService) GenerateRange(ctx context.Context, offeringID string, req dto.GenerateRostersRequest) (*models.RosterRangeResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid range payload")
	}
	from, to := *req.From, *req.To
	if to.Before(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "range end is before range start")
	}
	if span := int(to.Sub(from.Time).Hours()/24) + 1; span > s.maxRangeDays {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("range exceeds %d days", s.maxRangeDays))
	}

	offering, err := s.loadOffering(ctx, offeringID)
	if err != nil {
		return nil, err
	}
	if !offering.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "offering is inactive")
	}

	existing, err := s.repo.ExistingDates(ctx, offering.ID, from, to)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load existing rosters")
	}

	result := &models.RosterRangeResult{OfferingID: offering.ID}
	itemsAdded := 0
	for date := from; !date.After(to); date = date.AddDays(1) {
		if !offering.RunsOn(date) || !offering.ValidOn(date) {
			result.Skipped++
			continue
		}
		if _, ok := existing[date.String()]; ok {
			result.Existing++
			continue
		}

		roster := &models.AttendanceRoster{OfferingID: offering.ID, Date: date}
		items, err := s.materialise(ctx, roster)
		switch {
		case errors.Is(err, repository.ErrRosterExists):
			result.Existing++
		case err != nil:
			s.logger.Warn("roster generation failed",
				zap.String("offering_id", offering.ID),
				zap.String("date", date.String()),
				zap.Error(err),
			)
			result.Errors = append(result.Errors, models.RosterRangeError{Date: date, Reason: err.Error()})
		default:
			result.Created++
			itemsAdded += len(items)
		}
	}

	s.metrics.RecordRosters(result.Created, result.Existing, result.Skipped, itemsAdded)
	if result.Created > 0 {
		s.cache.InvalidatePattern(ctx, rosterSummaryPattern(offering.ID))
	}
	s.logger.Info("roster range generated",
		zap.String("offering_id", offering.ID),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.Int("created", result.Created),
		zap.Int("existing", result.Existing),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", len(result.Errors)),
	)
	return result, nil
}

// ListRosters returns roster summaries of an offering, newest first.
func (s *AttendanceRosterService) ListRosters(ctx context.Context, offeringID string, filter dto.RosterListFilter) ([]models.AttendanceRosterSummary, error) {
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "range end is before range start")
	}
	if _, err := s.loadOffering(ctx, offeringID); err != nil {
		return nil, err
	}

	key := rosterSummaryKey(offeringID, dateKey(filter.From), dateKey(filter.To))
	var cached []models.AttendanceRosterSummary
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	summaries, err := s.repo.List(ctx, offeringID, filter.From, filter.To)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list rosters")
	}
	if summaries == nil {
		summaries = []models.AttendanceRosterSummary{}
	}
	s.cache.Set(ctx, key, summaries)
	return summaries, nil
}

// OpenRoster returns a roster with its items ordered by name.
func (s *AttendanceRosterService) OpenRoster(ctx context.Context, rosterID string) (*models.RosterWithItems, error) {
	roster, err := s.loadRoster(ctx, rosterID)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListItems(ctx, roster.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list roster items")
	}
	if items == nil {
		items = []models.AttendanceItem{}
	}
	return &models.RosterWithItems{Roster: *roster, Items: items}, nil
}

// materialise persists the roster with one item per enrollment active on its date. The
// active set is read by the store in the same transaction as the insert.
func (s *AttendanceRosterService) materialise(ctx context.Context, roster *models.AttendanceRoster) ([]models.AttendanceItem, error) {
	created, err := s.repo.Create(ctx, roster)
	if err != nil {
		return nil, err
	}
	s.hooks.OnRosterCreated(ctx, *roster, len(created))
	return created, nil
}

func (s *AttendanceRosterService) loadOffering(ctx context.Context, id string) (*models.ClassOffering, error) {
	offering, err := s.offerings.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return nil, appErrors.Internal(err, "failed to load offering")
	}
	return offering, nil
}

func (s *AttendanceRosterService) loadRoster(ctx context.Context, id string) (*models.AttendanceRoster, error) {
	roster, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "roster not found")
		}
		return nil, appErrors.Internal(err, "failed to load roster")
	}
	return roster, nil
}

func dateKey(d *models.Date) string {
	if d == nil {
		return "-"
	}
	return d.String()
}
