package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gym-backoffice-api/internal/models"
)

func TestBillingRepositoryListBillableUsesMonthBounds(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewBillingRepository(db)
	start, end := models.MonthBounds(2024, time.February)

	mock.ExpectQuery(`WHERE e.start_date <= \$2\s+AND \(\(e.end_date IS NULL AND e.active\) OR e.end_date >= \$1\)\s+`+
		`AND o.active\s+AND o.valid_from <= \$2\s+AND \(o.valid_until IS NULL OR o.valid_until >= \$1\)`).
		WithArgs(start.Time, end.Time).
		WillReturnRows(sqlmock.NewRows([]string{"enrollment_id", "client_id", "client_name", "offering_id", "modality_id", "modality_name", "price", "start_date", "end_date", "active"}).
			AddRow("enr-1", "cli-1", "Ana", "off-1", "mod-1", "Pilates", "100.00", time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), nil, true))

	rows, err := repo.ListBillable(context.Background(), start, end)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Price.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, "2024-02-29", end.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBillingRepositoryInsertChargeSkipsExisting(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewBillingRepository(db)

	mock.ExpectExec(`INSERT INTO monthly_charges .*ON CONFLICT \(client_id, competence_year, competence_month\) WHERE status <> 'CANCELLED' DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO monthly_charges`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	first := &models.MonthlyCharge{ClientID: "cli-1", CompetenceYear: 2024, CompetenceMonth: 2, Amount: decimal.RequireFromString("212.75")}
	inserted, err := repo.InsertCharge(context.Background(), first)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, models.ChargeStatusOpen, first.Status)

	second := &models.MonthlyCharge{ClientID: "cli-1", CompetenceYear: 2024, CompetenceMonth: 2}
	inserted, err = repo.InsertCharge(context.Background(), second)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Empty(t, second.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBillingRepositoryChargedClients(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewBillingRepository(db)

	mock.ExpectQuery(`SELECT client_id FROM monthly_charges`).
		WithArgs(2024, 2, "CANCELLED").
		WillReturnRows(sqlmock.NewRows([]string{"client_id"}).AddRow("cli-1").AddRow("cli-2"))

	set, err := repo.ChargedClients(context.Background(), 2024, 2)
	require.NoError(t, err)
	assert.Len(t, set, 2)
	assert.Contains(t, set, "cli-2")
	assert.NoError(t, mock.ExpectationsWereMet())
}
