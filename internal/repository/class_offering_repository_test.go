package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gym-backoffice-api/internal/models"
)

var offeringRowColumns = []string{"id", "instructor_id", "modality_id", "display_name", "price", "capacity", "weekdays",
	"start_minute", "duration_minutes", "valid_from", "valid_until", "active", "created_at", "updated_at"}

func sampleOffering() *models.ClassOffering {
	return &models.ClassOffering{
		InstructorID:    "ins-1",
		ModalityID:      "mod-1",
		DisplayName:     "Evening Pilates",
		Price:           decimal.NewFromInt(100),
		Capacity:        10,
		Weekdays:        models.WeekdaysOf(time.Monday, time.Wednesday),
		StartTime:       18 * 60,
		DurationMinutes: 60,
		ValidFrom:       models.NewDate(2024, time.January, 1),
		Active:          true,
	}
}

func TestClassOfferingRepositorySaveInsertsAfterGuard(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewClassOfferingRepository(db)
	offering := sampleOffering()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, name, active FROM instructors WHERE id = $1 FOR UPDATE`)).
		WithArgs("ins-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "active"}).AddRow("ins-1", "Carla", true))
	mock.ExpectQuery(`FROM class_offerings o\s+WHERE o.instructor_id = \$1 AND o.active`).
		WithArgs("ins-1", "").
		WillReturnRows(sqlmock.NewRows(offeringRowColumns).
			AddRow("off-9", "ins-1", "mod-2", "", "80.00", 5, int64(models.WeekdaysOf(time.Friday)), 420, 45,
				time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), nil, true, time.Now(), time.Now()))
	mock.ExpectExec(`INSERT INTO class_offerings`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	var seen []models.ClassOffering
	err := repo.Save(context.Background(), offering, func(instructor models.Instructor, siblings []models.ClassOffering) error {
		assert.True(t, instructor.Active)
		seen = siblings
		return nil
	})
	require.NoError(t, err)
	assert.NotEmpty(t, offering.ID)
	require.Len(t, seen, 1)
	assert.Equal(t, "off-9", seen[0].ID)
	assert.True(t, seen[0].Weekdays.Has(time.Friday))
	assert.Equal(t, models.TimeOfDay(420), seen[0].StartTime)
	assert.True(t, seen[0].Price.Equal(decimal.NewFromInt(80)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassOfferingRepositorySaveGuardRejects(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewClassOfferingRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM instructors WHERE id = \$1 FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "active"}).AddRow("ins-1", "Carla", true))
	mock.ExpectQuery(`FROM class_offerings o`).WillReturnRows(sqlmock.NewRows(offeringRowColumns))
	mock.ExpectRollback()

	conflict := errors.New("conflict")
	err := repo.Save(context.Background(), sampleOffering(), func(models.Instructor, []models.ClassOffering) error { return conflict })
	assert.ErrorIs(t, err, conflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassOfferingRepositorySaveUnknownInstructor(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewClassOfferingRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM instructors`).WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := repo.Save(context.Background(), sampleOffering(), nil)
	assert.ErrorIs(t, err, ErrInstructorNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassOfferingRepositoryUpdateMissingRow(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewClassOfferingRepository(db)
	offering := sampleOffering()
	offering.ID = "off-404"

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM instructors`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "active"}).AddRow("ins-1", "Carla", true))
	mock.ExpectExec(`UPDATE class_offerings SET`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Save(context.Background(), offering, nil)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassOfferingRepositoryListFilters(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewClassOfferingRepository(db)
	wednesday := time.Wednesday
	active := true

	columns := append(append([]string{}, offeringRowColumns...), "modality_name", "instructor_name")
	mock.ExpectQuery(`o.weekdays & \$1 <> 0 AND o.active = \$2 AND \(LOWER\(o.display_name\) LIKE \$3`).
		WithArgs(int(models.WeekdaysOf(time.Wednesday)), true, "%pilates%").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("off-1", "ins-1", "mod-1", "Evening Pilates", "100", 10, int64(10), 1080, 60,
				time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC), true, time.Now(), time.Now(), "Pilates", "Carla"))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM class_offerings o`).
		WithArgs(int(models.WeekdaysOf(time.Wednesday)), true, "%pilates%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	items, total, err := repo.List(context.Background(), models.ClassOfferingFilter{Search: "Pilates", Weekday: &wednesday, Active: &active})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "Carla", items[0].InstructorName)
	require.NotNil(t, items[0].ValidUntil)
	assert.Equal(t, "2024-06-30", items[0].ValidUntil.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassOfferingRepositoryListByCondominium(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewClassOfferingRepository(db)

	columns := append(append([]string{}, offeringRowColumns...), "condominium_id", "modality_name", "instructor_name", "condominium_name")
	mock.ExpectQuery(`LEFT JOIN condominiums s ON s.id = o.condominium_id\s+WHERE 1=1 AND o.condominium_id = \$1 AND o.modality_id = \$2\s+ORDER BY s.name ASC NULLS FIRST`).
		WithArgs("site-1", "mod-1").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("off-1", "ins-1", "mod-1", "", "100", 10, int64(models.WeekdaysOf(time.Monday)), 420, 60,
				time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), nil, true, time.Now(), time.Now(),
				"site-1", "Pilates", "Carla", "Jardim Europa"))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM class_offerings o`).
		WithArgs("site-1", "mod-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	items, total, err := repo.List(context.Background(), models.ClassOfferingFilter{CondominiumID: "site-1", ModalityID: "mod-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].CondominiumID)
	assert.Equal(t, "site-1", *items[0].CondominiumID)
	require.NotNil(t, items[0].CondominiumName)
	assert.Equal(t, "Jardim Europa", *items[0].CondominiumName)
	assert.NoError(t, mock.ExpectationsWereMet())
}
