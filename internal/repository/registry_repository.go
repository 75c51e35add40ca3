package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/gym-backoffice-api/internal/models"
)

// RegistryRepository reads the registries owned by other modules.
type RegistryRepository struct {
	db *sqlx.DB
}

// NewRegistryRepository constructs a RegistryRepository.
func NewRegistryRepository(db *sqlx.DB) *RegistryRepository {
	return &RegistryRepository{db: db}
}

// FindClient loads a client.
func (r *RegistryRepository) FindClient(ctx context.Context, id string) (*models.Client, error) {
	var client models.Client
	if err := r.db.GetContext(ctx, &client, `SELECT id, name, document, active FROM clients WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &client, nil
}

// FindInstructor loads an instructor.
func (r *RegistryRepository) FindInstructor(ctx context.Context, id string) (*models.Instructor, error) {
	var instructor models.Instructor
	if err := r.db.GetContext(ctx, &instructor, `SELECT id, name, active FROM instructors WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &instructor, nil
}

// FindModality loads a modality.
func (r *RegistryRepository) FindModality(ctx context.Context, id string) (*models.Modality, error) {
	var modality models.Modality
	if err := r.db.GetContext(ctx, &modality, `SELECT id, name, active FROM modalities WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &modality, nil
}

// FindCondominium loads a condominium (site).
func (r *RegistryRepository) FindCondominium(ctx context.Context, id string) (*models.Condominium, error) {
	var site models.Condominium
	if err := r.db.GetContext(ctx, &site, `SELECT id, name, active FROM condominiums WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &site, nil
}
