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

type offeringStore interface {
	Save(ctx context.Context, offering *models.ClassOffering, guard repository.OfferingGuard) error
	FindByID(ctx context.Context, id string) (*models.ClassOffering, error)
	FindDetail(ctx context.Context, id string) (*models.ClassOfferingDetail, error)
	List(ctx context.Context, filter models.ClassOfferingFilter) ([]models.ClassOfferingDetail, int, error)
}

type offeringReader interface {
	FindByID(ctx context.Context, id string) (*models.ClassOffering, error)
}

type offeringRegistry interface {
	FindModality(ctx context.Context, id string) (*models.Modality, error)
	FindCondominium(ctx context.Context, id string) (*models.Condominium, error)
}

type activeEnrollmentCounter interface {
	CountActive(ctx context.Context, offeringID string) (int, error)
}

// ClassOfferingService defines offerings and guards instructors against double booking.
type ClassOfferingService struct {
	repo        offeringStore
	registry    offeringRegistry
	enrollments activeEnrollmentCounter
	cache       *CacheService
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewClassOfferingService builds a ClassOfferingService.
func NewClassOfferingService(
	repo offeringStore,
	registry offeringRegistry,
	enrollments activeEnrollmentCounter,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *ClassOfferingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassOfferingService{
		repo:        repo,
		registry:    registry,
		enrollments: enrollments,
		cache:       cache,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
	}
}

// Create validates and stores a new active offering.
func (s *ClassOfferingService) Create(ctx context.Context, req dto.CreateOfferingRequest) (*models.ClassOffering, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid offering payload")
	}
	offering := &models.ClassOffering{
		InstructorID:    req.InstructorID,
		ModalityID:      req.ModalityID,
		CondominiumID:   req.CondominiumID,
		DisplayName:     req.DisplayName,
		Price:           req.Price,
		Capacity:        req.Capacity,
		Weekdays:        req.Weekdays,
		StartTime:       *req.StartTime,
		DurationMinutes: req.DurationMinutes,
		ValidFrom:       *req.ValidFrom,
		ValidUntil:      req.ValidUntil,
		Active:          true,
	}
	if err := s.save(ctx, offering, true); err != nil {
		return nil, err
	}
	s.logger.Info("offering created", zap.String("offering_id", offering.ID), zap.String("instructor_id", offering.InstructorID))
	return offering, nil
}

// Update merges patch into the stored offering and re-runs every validation, excluding the
// offering itself from the conflict search.
func (s *ClassOfferingService) Update(ctx context.Context, id string, patch dto.UpdateOfferingRequest) (*models.ClassOffering, error) {
	if err := s.validator.Struct(patch); err != nil {
		return nil, appErrors.Validation(err, "invalid offering payload")
	}
	offering, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(offering)
	if err := s.save(ctx, offering, offering.Active); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, occupancyKey(id))
	return offering, nil
}

// ToggleActive flips the active flag. Existing enrollments and rosters are left untouched;
// reactivation is checked for conflicts like a new offering.
func (s *ClassOfferingService) ToggleActive(ctx context.Context, id string) (*models.ClassOffering, error) {
	offering, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	offering.Active = !offering.Active
	if err := s.save(ctx, offering, offering.Active); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, occupancyKey(id))
	s.logger.Info("offering toggled", zap.String("offering_id", id), zap.Bool("active", offering.Active))
	return offering, nil
}

// Get returns an offering with registry names.
func (s *ClassOfferingService) Get(ctx context.Context, id string) (*models.ClassOfferingDetail, error) {
	detail, err := s.repo.FindDetail(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return nil, appErrors.Internal(err, "failed to load offering")
	}
	return detail, nil
}

// List returns a page of offerings.
func (s *ClassOfferingService) List(ctx context.Context, filter models.ClassOfferingFilter) ([]models.ClassOfferingDetail, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list offerings")
	}
	page, size := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Occupancy reports seat usage for an offering.
func (s *ClassOfferingService) Occupancy(ctx context.Context, id string) (*models.OfferingOccupancy, error) {
	var cached models.OfferingOccupancy
	if s.cache.Get(ctx, occupancyKey(id), &cached) {
		return &cached, nil
	}

	offering, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	active, err := s.enrollments.CountActive(ctx, id)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to count enrollments")
	}
	available := offering.Capacity - active
	if available < 0 {
		available = 0
	}
	occupancy := &models.OfferingOccupancy{OfferingID: id, Capacity: offering.Capacity, Active: active, Available: available}
	s.cache.Set(ctx, occupancyKey(id), occupancy)
	return occupancy, nil
}

func (s *ClassOfferingService) load(ctx context.Context, id string) (*models.ClassOffering, error) {
	offering, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return nil, appErrors.Internal(err, "failed to load offering")
	}
	return offering, nil
}

func (s *ClassOfferingService) save(ctx context.Context, offering *models.ClassOffering, checkConflicts bool) error {
	if err := offering.Validate(); err != nil {
		return appErrors.Validation(err, err.Error())
	}
	modality, err := s.registry.FindModality(ctx, offering.ModalityID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "modality not found")
		}
		return appErrors.Internal(err, "failed to load modality")
	}
	if !modality.Active && offering.Active {
		return appErrors.Clone(appErrors.ErrValidation, "modality is inactive")
	}
	if offering.CondominiumID != nil {
		site, err := s.registry.FindCondominium(ctx, *offering.CondominiumID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "condominium not found")
			}
			return appErrors.Internal(err, "failed to load condominium")
		}
		if !site.Active && offering.Active {
			return appErrors.Clone(appErrors.ErrValidation, "condominium is inactive")
		}
	}

	guard := func(instructor models.Instructor, siblings []models.ClassOffering) error {
		if !instructor.Active && offering.Active {
			return appErrors.Clone(appErrors.ErrValidation, "instructor is inactive")
		}
		if !checkConflicts {
			return nil
		}
		if other := FindConflict(*offering, siblings); other != nil {
			return &models.OfferingConflictError{OfferingID: other.ID, InstructorID: other.InstructorID}
		}
		return nil
	}

	err = s.repo.Save(ctx, offering, guard)
	if err == nil {
		return nil
	}

	var conflict *models.OfferingConflictError
	var appErr *appErrors.Error
	switch {
	case errors.As(err, &conflict):
		s.metrics.RecordScheduleConflict()
		s.logger.Info("offering rejected by schedule conflict", zap.String("conflicting_offering_id", conflict.OfferingID))
		return appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrScheduleConflict, fmt.Sprintf("instructor already teaches offering %s in this slot", conflict.OfferingID)),
			conflict,
		)
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, repository.ErrInstructorNotFound):
		return appErrors.Clone(appErrors.ErrNotFound, "instructor not found")
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "offering not found")
	default:
		return appErrors.Internal(err, "failed to save offering")
	}
}
