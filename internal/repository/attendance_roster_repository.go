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
	"github.com/lib/pq"

	"github.com/noah-isme/gym-backoffice-api/internal/models"
)

const rosterColumns = `r.id, r.offering_id, r.roster_date, r.general_note, r.created_at, r.updated_at`

const itemColumns = `i.id, i.roster_id, i.enrollment_id, i.client_id, i.present, i.note, i.name_snapshot,
	i.document_snapshot, i.created_at, i.updated_at`

const insertItem = `INSERT INTO attendance_items (id, roster_id, enrollment_id, client_id, present, note, name_snapshot,
	document_snapshot, created_at, updated_at)
VALUES (:id, :roster_id, :enrollment_id, :client_id, :present, :note, :name_snapshot,
	:document_snapshot, :created_at, :updated_at)
ON CONFLICT (roster_id, enrollment_id) WHERE enrollment_id IS NOT NULL DO NOTHING`

// MarkParams carries a marking update for one roster.
type MarkParams struct {
	RosterID       string
	PresentItemIDs []string
	Notes          map[string]string
	GeneralNote    *string
}

// AttendanceRosterRepository persists rosters and their items.
type AttendanceRosterRepository struct {
	db *sqlx.DB
}

// NewAttendanceRosterRepository constructs an AttendanceRosterRepository.
func NewAttendanceRosterRepository(db *sqlx.DB) *AttendanceRosterRepository {
	return &AttendanceRosterRepository{db: db}
}

// Create inserts the roster and one item per enrollment active on the roster date, in a
// single transaction. The offering row is share-locked first so enrollments cannot be
// added or ended between reading the active set and writing the items. A roster already
// present for the same offering and date yields ErrRosterExists and nothing is written.
func (r *AttendanceRosterRepository) Create(ctx context.Context, roster *models.AttendanceRoster) ([]models.AttendanceItem, error) {
	var created []models.AttendanceItem
	err := runInTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var offeringID string
		const lockOffering = `SELECT id FROM class_offerings WHERE id = $1 FOR SHARE`
		if err := tx.GetContext(ctx, &offeringID, lockOffering, roster.OfferingID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return sql.ErrNoRows
			}
			return fmt.Errorf("lock offering: %w", err)
		}

		now := time.Now().UTC()
		id := uuid.NewString()
		const insertRoster = `INSERT INTO attendance_rosters (id, offering_id, roster_date, general_note, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)
ON CONFLICT (offering_id, roster_date) DO NOTHING
RETURNING id`
		var insertedID string
		if err := tx.QueryRowxContext(ctx, insertRoster, id, roster.OfferingID, roster.Date, roster.GeneralNote, now).Scan(&insertedID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrRosterExists
			}
			return fmt.Errorf("insert roster: %w", err)
		}

		var active []models.EnrollmentDetail
		if err := tx.SelectContext(ctx, &active, activeOnQuery+` FOR SHARE OF e`, roster.OfferingID, roster.Date); err != nil {
			return fmt.Errorf("list enrollments active on %s: %w", roster.Date, err)
		}

		created = make([]models.AttendanceItem, 0, len(active))
		for _, enrollment := range active {
			item := models.NewAttendanceItem(insertedID, enrollment)
			item.ID = uuid.NewString()
			item.CreatedAt = now
			item.UpdatedAt = now
			res, err := tx.NamedExecContext(ctx, insertItem, item)
			if err != nil {
				return fmt.Errorf("insert attendance item: %w", err)
			}
			if affected, _ := res.RowsAffected(); affected > 0 {
				created = append(created, item)
			}
		}

		roster.ID = insertedID
		roster.CreatedAt = now
		roster.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// AddItems inserts items skipping enrollments already on the roster. It returns the inserted items.
func (r *AttendanceRosterRepository) AddItems(ctx context.Context, rosterID string, items []models.AttendanceItem) ([]models.AttendanceItem, error) {
	var added []models.AttendanceItem
	err := runInTx(ctx, r.db, func(tx *sqlx.Tx) error {
		added = added[:0]
		now := time.Now().UTC()
		for _, item := range items {
			item.ID = uuid.NewString()
			item.RosterID = rosterID
			item.CreatedAt = now
			item.UpdatedAt = now
			res, err := tx.NamedExecContext(ctx, insertItem, item)
			if err != nil {
				return fmt.Errorf("insert attendance item: %w", err)
			}
			if affected, _ := res.RowsAffected(); affected > 0 {
				added = append(added, item)
			}
		}
		if len(added) > 0 {
			if _, err := tx.ExecContext(ctx, `UPDATE attendance_rosters SET updated_at = $2 WHERE id = $1`, rosterID, now); err != nil {
				return fmt.Errorf("touch roster: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// FindByID loads a roster.
func (r *AttendanceRosterRepository) FindByID(ctx context.Context, id string) (*models.AttendanceRoster, error) {
	var roster models.AttendanceRoster
	if err := r.db.GetContext(ctx, &roster, `SELECT `+rosterColumns+` FROM attendance_rosters r WHERE r.id = $1`, id); err != nil {
		return nil, err
	}
	return &roster, nil
}

// ExistingDates returns the dates in [from, to] that already have a roster for the offering.
func (r *AttendanceRosterRepository) ExistingDates(ctx context.Context, offeringID string, from, to models.Date) (map[string]struct{}, error) {
	var dates []models.Date
	const query = `SELECT roster_date FROM attendance_rosters WHERE offering_id = $1 AND roster_date BETWEEN $2 AND $3`
	if err := r.db.SelectContext(ctx, &dates, query, offeringID, from, to); err != nil {
		return nil, fmt.Errorf("list roster dates: %w", err)
	}
	set := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		set[d.String()] = struct{}{}
	}
	return set, nil
}

// List returns roster summaries for an offering, newest first.
func (r *AttendanceRosterRepository) List(ctx context.Context, offeringID string, from, to *models.Date) ([]models.AttendanceRosterSummary, error) {
	conditions := []string{"r.offering_id = $1"}
	args := []interface{}{offeringID}
	if from != nil {
		args = append(args, *from)
		conditions = append(conditions, fmt.Sprintf("r.roster_date >= $%d", len(args)))
	}
	if to != nil {
		args = append(args, *to)
		conditions = append(conditions, fmt.Sprintf("r.roster_date <= $%d", len(args)))
	}

	query := `SELECT ` + rosterColumns + `,
	COUNT(i.id) AS total_items,
	COUNT(i.id) FILTER (WHERE i.present) AS total_present
FROM attendance_rosters r
LEFT JOIN attendance_items i ON i.roster_id = r.id
WHERE ` + strings.Join(conditions, " AND ") + `
GROUP BY r.id
ORDER BY r.roster_date DESC`

	var summaries []models.AttendanceRosterSummary
	if err := r.db.SelectContext(ctx, &summaries, query, args...); err != nil {
		return nil, fmt.Errorf("list rosters: %w", err)
	}
	return summaries, nil
}

// ListItems returns the items of a roster ordered by snapshot name.
func (r *AttendanceRosterRepository) ListItems(ctx context.Context, rosterID string) ([]models.AttendanceItem, error) {
	query := `SELECT ` + itemColumns + ` FROM attendance_items i WHERE i.roster_id = $1 ORDER BY LOWER(i.name_snapshot) ASC, i.id ASC`
	var items []models.AttendanceItem
	if err := r.db.SelectContext(ctx, &items, query, rosterID); err != nil {
		return nil, fmt.Errorf("list attendance items: %w", err)
	}
	return items, nil
}

// SaveMarks sets presence for every item of the roster, applies notes and the general note in one transaction.
func (r *AttendanceRosterRepository) SaveMarks(ctx context.Context, params MarkParams) error {
	return runInTx(ctx, r.db, func(tx *sqlx.Tx) error {
		now := time.Now().UTC()
		present := params.PresentItemIDs
		if present == nil {
			present = []string{}
		}
		const mark = `UPDATE attendance_items SET present = (id::text = ANY($2)), updated_at = $3 WHERE roster_id = $1`
		if _, err := tx.ExecContext(ctx, mark, params.RosterID, pq.Array(present), now); err != nil {
			return fmt.Errorf("mark attendance items: %w", err)
		}

		for itemID, note := range params.Notes {
			const setNote = `UPDATE attendance_items SET note = $3, updated_at = $4 WHERE id = $1 AND roster_id = $2`
			if _, err := tx.ExecContext(ctx, setNote, itemID, params.RosterID, note, now); err != nil {
				return fmt.Errorf("set note for item %s: %w", itemID, err)
			}
		}

		if params.GeneralNote != nil {
			const setGeneral = `UPDATE attendance_rosters SET general_note = $2, updated_at = $3 WHERE id = $1`
			if _, err := tx.ExecContext(ctx, setGeneral, params.RosterID, *params.GeneralNote, now); err != nil {
				return fmt.Errorf("set roster note: %w", err)
			}
		}
		return nil
	})
}

// MarkAll sets the presence of every item of the roster and returns the number of items touched.
func (r *AttendanceRosterRepository) MarkAll(ctx context.Context, rosterID string, present bool) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE attendance_items SET present = $2, updated_at = $3 WHERE roster_id = $1`, rosterID, present, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("mark all attendance items: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark all attendance items: %w", err)
	}
	return affected, nil
}
