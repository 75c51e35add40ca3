package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/gym-backoffice-api/internal/models"
)

// ErrInstructorNotFound is returned when an offering references an unknown instructor.
var ErrInstructorNotFound = errors.New("instructor not found")

// OfferingGuard inspects the instructor and its other active offerings before a write.
// Returning an error aborts the transaction.
type OfferingGuard func(instructor models.Instructor, siblings []models.ClassOffering) error

const offeringColumns = `o.id, o.instructor_id, o.modality_id, o.condominium_id, o.display_name, o.price, o.capacity, o.weekdays,
	o.start_minute, o.duration_minutes, o.valid_from, o.valid_until, o.active, o.created_at, o.updated_at`

const offeringDetailColumns = `m.name AS modality_name, i.name AS instructor_name, s.name AS condominium_name`

const offeringDetailFrom = `FROM class_offerings o
JOIN modalities m ON m.id = o.modality_id
JOIN instructors i ON i.id = o.instructor_id
LEFT JOIN condominiums s ON s.id = o.condominium_id`

// ClassOfferingRepository persists class offerings.
type ClassOfferingRepository struct {
	db *sqlx.DB
}

// NewClassOfferingRepository constructs a ClassOfferingRepository.
func NewClassOfferingRepository(db *sqlx.DB) *ClassOfferingRepository {
	return &ClassOfferingRepository{db: db}
}

// Save inserts (when offering.ID is empty) or updates an offering. The instructor row is locked
// so concurrent writes for the same instructor are serialised while guard runs.
func (r *ClassOfferingRepository) Save(ctx context.Context, offering *models.ClassOffering, guard OfferingGuard) error {
	return runInTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var instructor models.Instructor
		const lockInstructor = `SELECT id, name, active FROM instructors WHERE id = $1 FOR UPDATE`
		if err := tx.GetContext(ctx, &instructor, lockInstructor, offering.InstructorID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrInstructorNotFound
			}
			return fmt.Errorf("lock instructor: %w", err)
		}

		if guard != nil {
			var siblings []models.ClassOffering
			query := `SELECT ` + offeringColumns + ` FROM class_offerings o
WHERE o.instructor_id = $1 AND o.active AND o.id::text <> $2`
			if err := tx.SelectContext(ctx, &siblings, query, offering.InstructorID, offering.ID); err != nil {
				return fmt.Errorf("list instructor offerings: %w", err)
			}
			if err := guard(instructor, siblings); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		offering.UpdatedAt = now
		if offering.ID == "" {
			offering.ID = uuid.NewString()
			offering.CreatedAt = now
			const insert = `INSERT INTO class_offerings (id, instructor_id, modality_id, condominium_id, display_name, price, capacity, weekdays,
	start_minute, duration_minutes, valid_from, valid_until, active, created_at, updated_at)
VALUES (:id, :instructor_id, :modality_id, :condominium_id, :display_name, :price, :capacity, :weekdays,
	:start_minute, :duration_minutes, :valid_from, :valid_until, :active, :created_at, :updated_at)`
			if _, err := tx.NamedExecContext(ctx, insert, offering); err != nil {
				offering.ID = ""
				return fmt.Errorf("insert offering: %w", err)
			}
			return nil
		}

		const update = `UPDATE class_offerings SET instructor_id = :instructor_id, modality_id = :modality_id,
	condominium_id = :condominium_id, display_name = :display_name, price = :price, capacity = :capacity, weekdays = :weekdays,
	start_minute = :start_minute, duration_minutes = :duration_minutes, valid_from = :valid_from,
	valid_until = :valid_until, active = :active, updated_at = :updated_at
WHERE id = :id`
		res, err := tx.NamedExecContext(ctx, update, offering)
		if err != nil {
			return fmt.Errorf("update offering: %w", err)
		}
		if affected, err := res.RowsAffected(); err == nil && affected == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
}

// FindByID loads an offering.
func (r *ClassOfferingRepository) FindByID(ctx context.Context, id string) (*models.ClassOffering, error) {
	var offering models.ClassOffering
	query := `SELECT ` + offeringColumns + ` FROM class_offerings o WHERE o.id = $1`
	if err := r.db.GetContext(ctx, &offering, query, id); err != nil {
		return nil, err
	}
	return &offering, nil
}

// FindDetail loads an offering with modality and instructor names.
func (r *ClassOfferingRepository) FindDetail(ctx context.Context, id string) (*models.ClassOfferingDetail, error) {
	var detail models.ClassOfferingDetail
	query := `SELECT ` + offeringColumns + `, ` + offeringDetailColumns + ` ` + offeringDetailFrom + `
WHERE o.id = $1`
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// List returns offerings matching filter plus the total count.
func (r *ClassOfferingRepository) List(ctx context.Context, filter models.ClassOfferingFilter) ([]models.ClassOfferingDetail, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.CondominiumID != "" {
		args = append(args, filter.CondominiumID)
		conditions = append(conditions, fmt.Sprintf("o.condominium_id = $%d", len(args)))
	}
	if filter.ModalityID != "" {
		args = append(args, filter.ModalityID)
		conditions = append(conditions, fmt.Sprintf("o.modality_id = $%d", len(args)))
	}
	if filter.InstructorID != "" {
		args = append(args, filter.InstructorID)
		conditions = append(conditions, fmt.Sprintf("o.instructor_id = $%d", len(args)))
	}
	if filter.Weekday != nil {
		args = append(args, int(models.WeekdaysOf(*filter.Weekday)))
		conditions = append(conditions, fmt.Sprintf("o.weekdays & $%d <> 0", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		conditions = append(conditions, fmt.Sprintf("o.active = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(o.display_name) LIKE $%[1]d OR LOWER(m.name) LIKE $%[1]d OR LOWER(i.name) LIKE $%[1]d)", len(args)))
	}

	base := offeringDetailFrom + `
WHERE ` + strings.Join(conditions, " AND ")

	page, size := normalisePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf(`SELECT %s, %s %s
ORDER BY s.name ASC NULLS FIRST, m.name ASC, o.start_minute ASC, o.id ASC LIMIT %d OFFSET %d`,
		offeringColumns, offeringDetailColumns, base, size, (page-1)*size)

	var items []models.ClassOfferingDetail
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list offerings: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count offerings: %w", err)
	}
	return items, total, nil
}

func normalisePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return page, size
}
