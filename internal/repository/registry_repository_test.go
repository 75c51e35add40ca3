package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRepositoryFindClient(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewRegistryRepository(db)

	mock.ExpectQuery(`SELECT id, name, document, active FROM clients WHERE id = \$1`).
		WithArgs("cli-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "document", "active"}).AddRow("cli-1", "Ana", "123", true))

	client, err := repo.FindClient(context.Background(), "cli-1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", client.Name)
	assert.True(t, client.Active)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistryRepositoryMissingRows(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewRegistryRepository(db)

	mock.ExpectQuery(`FROM instructors WHERE id = \$1`).WithArgs("ins-x").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`FROM modalities WHERE id = \$1`).WithArgs("mod-x").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindInstructor(context.Background(), "ins-x")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	_, err = repo.FindModality(context.Background(), "mod-x")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistryRepositoryFindCondominium(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewRegistryRepository(db)

	mock.ExpectQuery(`SELECT id, name, active FROM condominiums WHERE id = \$1`).
		WithArgs("site-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "active"}).AddRow("site-1", "Jardim Europa", true))
	mock.ExpectQuery(`FROM condominiums WHERE id = \$1`).WithArgs("site-x").WillReturnError(sql.ErrNoRows)

	site, err := repo.FindCondominium(context.Background(), "site-1")
	require.NoError(t, err)
	assert.Equal(t, "Jardim Europa", site.Name)
	_, err = repo.FindCondominium(context.Background(), "site-x")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
