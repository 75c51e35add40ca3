package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/gym-backoffice-api/internal/models"
)

const chargeColumns = `id, client_id, competence_year, competence_month, due_date, subtotal, discount, amount,
	description, breakdown, category, status, created_at`

// BillingRepository reads billable enrollments and stores monthly charges.
type BillingRepository struct {
	db *sqlx.DB
}

// NewBillingRepository constructs a BillingRepository.
func NewBillingRepository(db *sqlx.DB) *BillingRepository {
	return &BillingRepository{db: db}
}

// ListBillable returns every enrollment whose interval intersects [monthStart, monthEnd], across all
// active offerings whose validity window also intersects the month. Ended enrollments without an end
// date never intersect.
func (r *BillingRepository) ListBillable(ctx context.Context, monthStart, monthEnd models.Date) ([]models.BillableEnrollment, error) {
	const query = `SELECT e.id AS enrollment_id, e.client_id, c.name AS client_name, e.participant_key, o.id AS offering_id,
	o.modality_id, m.name AS modality_name, o.price, e.start_date, e.end_date, e.active
FROM enrollments e
JOIN class_offerings o ON o.id = e.offering_id
JOIN modalities m ON m.id = o.modality_id
JOIN clients c ON c.id = e.client_id
WHERE e.start_date <= $2
	AND ((e.end_date IS NULL AND e.active) OR e.end_date >= $1)
	AND o.active
	AND o.valid_from <= $2
	AND (o.valid_until IS NULL OR o.valid_until >= $1)
ORDER BY c.name ASC, e.client_id ASC, m.name ASC`
	var rows []models.BillableEnrollment
	if err := r.db.SelectContext(ctx, &rows, query, monthStart, monthEnd); err != nil {
		return nil, fmt.Errorf("list billable enrollments: %w", err)
	}
	return rows, nil
}

// ChargedClients returns the clients holding a non-cancelled charge for the competence month.
func (r *BillingRepository) ChargedClients(ctx context.Context, year, month int) (map[string]struct{}, error) {
	var ids []string
	const query = `SELECT client_id FROM monthly_charges WHERE competence_year = $1 AND competence_month = $2 AND status <> $3`
	if err := r.db.SelectContext(ctx, &ids, query, year, month, models.ChargeStatusCancelled); err != nil {
		return nil, fmt.Errorf("list charged clients: %w", err)
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// InsertCharge stores a charge unless the client already holds a non-cancelled one for the month.
// It reports whether a row was written.
func (r *BillingRepository) InsertCharge(ctx context.Context, charge *models.MonthlyCharge) (bool, error) {
	charge.ID = uuid.NewString()
	charge.CreatedAt = time.Now().UTC()
	if charge.Status == "" {
		charge.Status = models.ChargeStatusOpen
	}
	const query = `INSERT INTO monthly_charges (` + chargeColumns + `)
VALUES (:id, :client_id, :competence_year, :competence_month, :due_date, :subtotal, :discount, :amount,
	:description, :breakdown, :category, :status, :created_at)
ON CONFLICT (client_id, competence_year, competence_month) WHERE status <> 'CANCELLED' DO NOTHING`
	res, err := r.db.NamedExecContext(ctx, query, charge)
	if err != nil {
		return false, fmt.Errorf("insert monthly charge: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert monthly charge: %w", err)
	}
	if affected == 0 {
		charge.ID = ""
		return false, nil
	}
	return true, nil
}

// ListCharges returns the charges of a competence month.
func (r *BillingRepository) ListCharges(ctx context.Context, year, month int) ([]models.MonthlyCharge, error) {
	query := `SELECT ` + chargeColumns + ` FROM monthly_charges WHERE competence_year = $1 AND competence_month = $2 ORDER BY created_at ASC, id ASC`
	var charges []models.MonthlyCharge
	if err := r.db.SelectContext(ctx, &charges, query, year, month); err != nil {
		return nil, fmt.Errorf("list monthly charges: %w", err)
	}
	return charges, nil
}
