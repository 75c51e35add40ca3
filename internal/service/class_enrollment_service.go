package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/gym-backoffice-api/internal/dto"
	"github.com/noah-isme/gym-backoffice-api/internal/models"
	"github.com/noah-isme/gym-backoffice-api/internal/repository"
	appErrors "github.com/noah-isme/gym-backoffice-api/pkg/errors"
)

type enrollmentStore interface {
	Enroll(ctx context.Context, enrollment *models.Enrollment) error
	End(ctx context.Context, id string, endDate *models.Date) (*models.Enrollment, error)
	FindByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	ListActiveOn(ctx context.Context, offeringID string, date models.Date) ([]models.EnrollmentDetail, error)
	ListByOffering(ctx context.Context, offeringID string, includeInactive bool) ([]models.EnrollmentDetail, error)
	ListParticipants(ctx context.Context, offeringID string) ([]models.EnrollmentDetail, error)
}

type clientReader interface {
	FindClient(ctx context.Context, id string) (*models.Client, error)
}

// EnrollmentService manages enrollment lifecycles and seat capacity.
type EnrollmentService struct {
	repo      enrollmentStore
	offerings offeringReader
	clients   clientReader
	hooks     Hooks
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewEnrollmentService builds an EnrollmentService. A nil hooks value disables notifications.
func NewEnrollmentService(
	repo enrollmentStore,
	offerings offeringReader,
	clients clientReader,
	hooks Hooks,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if hooks == nil {
		hooks = noopHooks{}
	}
	return &EnrollmentService{
		repo:      repo,
		offerings: offerings,
		clients:   clients,
		hooks:     hooks,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Enroll registers a participant. Capacity and duplicate checks run atomically with the insert.
func (s *EnrollmentService) Enroll(ctx context.Context, req dto.EnrollRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid enrollment payload")
	}

	offering, err := s.offerings.FindByID(ctx, req.OfferingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return nil, appErrors.Internal(err, "failed to load offering")
	}
	if !offering.Active {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "offering not found or inactive")
	}
	if _, err := s.clients.FindClient(ctx, req.ClientID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "client not found")
		}
		return nil, appErrors.Internal(err, "failed to load client")
	}

	start := models.DateOf(s.now())
	if req.StartDate != nil {
		start = *req.StartDate
	}
	if offering.ValidUntil != nil && start.After(*offering.ValidUntil) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start date is after the offering validity")
	}

	enrollment := &models.Enrollment{
		OfferingID:     req.OfferingID,
		ClientID:       req.ClientID,
		ParticipantKey: models.ParticipantKey(req.ClientID, req.Participant),
		StartDate:      start,
	}
	if p := req.Participant; p != nil && strings.TrimSpace(p.Name) != "" {
		name := strings.TrimSpace(p.Name)
		enrollment.ParticipantName = &name
		enrollment.ParticipantBirthDate = p.BirthDate
		if p.Sex != "" {
			sex := p.Sex
			enrollment.ParticipantSex = &sex
		}
		if p.Document != "" {
			doc := p.Document
			enrollment.ParticipantDocument = &doc
		}
	}

	if err := s.repo.Enroll(ctx, enrollment); err != nil {
		switch {
		case errors.Is(err, repository.ErrCapacityExceeded):
			s.metrics.RecordEnrollment("capacity_exceeded")
			return nil, appErrors.Clone(appErrors.ErrCapacityExceeded, fmt.Sprintf("offering %s is full (capacity %d)", offering.ID, offering.Capacity))
		case errors.Is(err, repository.ErrDuplicateEnrollment):
			s.metrics.RecordEnrollment("duplicate")
			return nil, appErrors.Clone(appErrors.ErrDuplicateEnrollment, fmt.Sprintf("participant already enrolled in offering %s", offering.ID))
		case errors.Is(err, repository.ErrOfferingInactive), errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offering not found or inactive")
		default:
			s.metrics.RecordEnrollment(outcomeFailed)
			return nil, appErrors.Internal(err, "failed to enroll")
		}
	}

	s.metrics.RecordEnrollment(outcomeCreated)
	s.cache.Invalidate(ctx, occupancyKey(enrollment.OfferingID))
	s.hooks.OnEnrolled(ctx, *enrollment)
	s.logger.Info("enrollment created", zap.String("enrollment_id", enrollment.ID), zap.String("offering_id", enrollment.OfferingID))
	return enrollment, nil
}

// End deactivates an active enrollment. Attendance items already recorded are kept.
func (s *EnrollmentService) End(ctx context.Context, id string, req dto.EndEnrollmentRequest) (*models.Enrollment, error) {
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Internal(err, "failed to load enrollment")
	}
	if !current.Active {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no active enrollment with this id")
	}
	if req.EndDate != nil && req.EndDate.Before(current.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date is before the start date")
	}

	ended, err := s.repo.End(ctx, id, req.EndDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no active enrollment with this id")
		}
		return nil, appErrors.Internal(err, "failed to end enrollment")
	}

	s.metrics.RecordEnrollmentEnded()
	s.cache.Invalidate(ctx, occupancyKey(ended.OfferingID))
	s.hooks.OnEnrollmentEnded(ctx, *ended)
	return ended, nil
}

// Get returns an enrollment with client data.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Internal(err, "failed to load enrollment")
	}
	return detail, nil
}

// ListActiveOn returns the enrollments of an offering active on date.
func (s *EnrollmentService) ListActiveOn(ctx context.Context, offeringID string, date models.Date) ([]models.EnrollmentDetail, error) {
	if err := s.ensureOffering(ctx, offeringID); err != nil {
		return nil, err
	}
	items, err := s.repo.ListActiveOn(ctx, offeringID, date)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list enrollments")
	}
	return items, nil
}

// ListByOffering returns active, or all, enrollments of an offering.
func (s *EnrollmentService) ListByOffering(ctx context.Context, offeringID string, includeInactive bool) ([]models.EnrollmentDetail, error) {
	if err := s.ensureOffering(ctx, offeringID); err != nil {
		return nil, err
	}
	items, err := s.repo.ListByOffering(ctx, offeringID, includeInactive)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list enrollments")
	}
	return items, nil
}

// ListParticipants returns the current participants ordered by display name.
func (s *EnrollmentService) ListParticipants(ctx context.Context, offeringID string) ([]models.EnrollmentDetail, error) {
	if err := s.ensureOffering(ctx, offeringID); err != nil {
		return nil, err
	}
	items, err := s.repo.ListParticipants(ctx, offeringID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list participants")
	}
	return items, nil
}

func (s *EnrollmentService) ensureOffering(ctx context.Context, offeringID string) error {
	if _, err := s.offerings.FindByID(ctx, offeringID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return appErrors.Internal(err, "failed to load offering")
	}
	return nil
}
