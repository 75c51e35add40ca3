package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/gym-backoffice-api/internal/models"
)

const enrollmentColumns = `e.id, e.offering_id, e.client_id, e.participant_name, e.participant_birth_date,
	e.participant_sex, e.participant_document, e.participant_key, e.start_date, e.end_date, e.active,
	e.created_at, e.ended_at`

const enrollmentDetailSelect = `SELECT ` + enrollmentColumns + `, c.name AS client_name, c.document AS client_document
FROM enrollments e
JOIN clients c ON c.id = e.client_id`

const activeOnQuery = enrollmentDetailSelect + `
WHERE e.offering_id = $1 AND e.active AND e.start_date <= $2 AND (e.end_date IS NULL OR e.end_date >= $2)
ORDER BY COALESCE(NULLIF(e.participant_name, ''), c.name) ASC, e.id ASC`

// EnrollmentRepository persists class enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs an EnrollmentRepository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Enroll inserts an active enrollment after checking capacity and duplicates while holding
// a lock on the offering row, so concurrent callers cannot both take the last seat.
func (r *EnrollmentRepository) Enroll(ctx context.Context, enrollment *models.Enrollment) error {
	return runInTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var offering struct {
			Capacity int  `db:"capacity"`
			Active   bool `db:"active"`
		}
		const lockOffering = `SELECT capacity, active FROM class_offerings WHERE id = $1 FOR UPDATE`
		if err := tx.GetContext(ctx, &offering, lockOffering, enrollment.OfferingID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return sql.ErrNoRows
			}
			return fmt.Errorf("lock offering: %w", err)
		}
		if !offering.Active {
			return ErrOfferingInactive
		}

		var active int
		const countActive = `SELECT COUNT(*) FROM enrollments WHERE offering_id = $1 AND active`
		if err := tx.GetContext(ctx, &active, countActive, enrollment.OfferingID); err != nil {
			return fmt.Errorf("count active enrollments: %w", err)
		}
		if active >= offering.Capacity {
			return ErrCapacityExceeded
		}

		var duplicate bool
		const exists = `SELECT EXISTS (SELECT 1 FROM enrollments WHERE offering_id = $1 AND client_id = $2 AND participant_key = $3 AND active)`
		if err := tx.GetContext(ctx, &duplicate, exists, enrollment.OfferingID, enrollment.ClientID, enrollment.ParticipantKey); err != nil {
			return fmt.Errorf("check duplicate enrollment: %w", err)
		}
		if duplicate {
			return ErrDuplicateEnrollment
		}

		enrollment.ID = uuid.NewString()
		enrollment.Active = true
		enrollment.CreatedAt = time.Now().UTC()
		const insert = `INSERT INTO enrollments (id, offering_id, client_id, participant_name, participant_birth_date,
	participant_sex, participant_document, participant_key, start_date, end_date, active, created_at)
VALUES (:id, :offering_id, :client_id, :participant_name, :participant_birth_date,
	:participant_sex, :participant_document, :participant_key, :start_date, :end_date, :active, :created_at)`
		if _, err := tx.NamedExecContext(ctx, insert, enrollment); err != nil {
			enrollment.ID = ""
			if isUniqueViolation(err) {
				return ErrDuplicateEnrollment
			}
			return fmt.Errorf("insert enrollment: %w", err)
		}
		return nil
	})
}

// End deactivates an active enrollment. It returns sql.ErrNoRows when no active enrollment matches.
func (r *EnrollmentRepository) End(ctx context.Context, id string, endDate *models.Date) (*models.Enrollment, error) {
	const query = `UPDATE enrollments e SET active = FALSE, end_date = COALESCE($2, e.end_date), ended_at = $3
WHERE e.id = $1 AND e.active
RETURNING ` + enrollmentColumns
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id, endDate, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("end enrollment: %w", err)
	}
	return &enrollment, nil
}

// FindByID loads an enrollment with client data.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, enrollmentDetailSelect+` WHERE e.id = $1`, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ListActiveOn returns the enrollments of an offering covering date.
func (r *EnrollmentRepository) ListActiveOn(ctx context.Context, offeringID string, date models.Date) ([]models.EnrollmentDetail, error) {
	var items []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &items, activeOnQuery, offeringID, date); err != nil {
		return nil, fmt.Errorf("list enrollments active on %s: %w", date, err)
	}
	return items, nil
}

// ListByOffering returns the enrollments of an offering, newest first.
func (r *EnrollmentRepository) ListByOffering(ctx context.Context, offeringID string, includeInactive bool) ([]models.EnrollmentDetail, error) {
	query := enrollmentDetailSelect + ` WHERE e.offering_id = $1`
	if !includeInactive {
		query += ` AND e.active`
	}
	query += ` ORDER BY e.active DESC, e.start_date DESC, e.id ASC`
	var items []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &items, query, offeringID); err != nil {
		return nil, fmt.Errorf("list offering enrollments: %w", err)
	}
	return items, nil
}

// ListParticipants returns the active enrollments of an offering ordered by display name.
func (r *EnrollmentRepository) ListParticipants(ctx context.Context, offeringID string) ([]models.EnrollmentDetail, error) {
	query := enrollmentDetailSelect + ` WHERE e.offering_id = $1 AND e.active
ORDER BY LOWER(COALESCE(NULLIF(e.participant_name, ''), c.name)) ASC, e.id ASC`
	var items []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &items, query, offeringID); err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	return items, nil
}

// CountActive counts the active enrollments of an offering.
func (r *EnrollmentRepository) CountActive(ctx context.Context, offeringID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM enrollments WHERE offering_id = $1 AND active`, offeringID); err != nil {
		return 0, fmt.Errorf("count active enrollments: %w", err)
	}
	return count, nil
}
