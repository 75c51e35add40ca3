package dto

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/gym-backoffice-api/internal/models"
)

// CreateOfferingRequest defines the payload for a new class offering.
type CreateOfferingRequest struct {
	InstructorID    string            `json:"instructorId" validate:"required"`
	ModalityID      string            `json:"modalityId" validate:"required"`
	CondominiumID   *string           `json:"condominiumId" validate:"omitempty,min=1"`
	DisplayName     string            `json:"displayName" validate:"max=120"`
	Price           decimal.Decimal   `json:"price"`
	Capacity        int               `json:"capacity" validate:"required,min=1"`
	Weekdays        models.Weekdays   `json:"weekdays"`
	StartTime       *models.TimeOfDay `json:"startTime" validate:"required"`
	DurationMinutes int               `json:"durationMinutes" validate:"required,min=1,max=1440"`
	ValidFrom       *models.Date      `json:"validFrom" validate:"required"`
	ValidUntil      *models.Date      `json:"validUntil"`
}

// UpdateOfferingRequest patches an offering. Nil fields keep their current value.
type UpdateOfferingRequest struct {
	InstructorID    *string           `json:"instructorId" validate:"omitempty,min=1"`
	ModalityID      *string           `json:"modalityId" validate:"omitempty,min=1"`
	CondominiumID   *string           `json:"condominiumId" validate:"omitempty,min=1"`
	DisplayName     *string           `json:"displayName" validate:"omitempty,max=120"`
	Price           *decimal.Decimal  `json:"price"`
	Capacity        *int              `json:"capacity" validate:"omitempty,min=1"`
	Weekdays        *models.Weekdays  `json:"weekdays"`
	StartTime       *models.TimeOfDay `json:"startTime"`
	DurationMinutes *int              `json:"durationMinutes" validate:"omitempty,min=1,max=1440"`
	ValidFrom       *models.Date      `json:"validFrom"`
	ValidUntil      *models.Date      `json:"validUntil"`
	// ClearValidUntil makes the validity window open-ended.
	ClearValidUntil bool `json:"clearValidUntil"`
	// ClearCondominium detaches the offering from its site.
	ClearCondominium bool `json:"clearCondominium"`
}

// Apply merges the patch into offering.
func (r UpdateOfferingRequest) Apply(offering *models.ClassOffering) {
	if r.InstructorID != nil {
		offering.InstructorID = *r.InstructorID
	}
	if r.ModalityID != nil {
		offering.ModalityID = *r.ModalityID
	}
	if r.ClearCondominium {
		offering.CondominiumID = nil
	} else if r.CondominiumID != nil {
		site := *r.CondominiumID
		offering.CondominiumID = &site
	}
	if r.DisplayName != nil {
		offering.DisplayName = *r.DisplayName
	}
	if r.Price != nil {
		offering.Price = *r.Price
	}
	if r.Capacity != nil {
		offering.Capacity = *r.Capacity
	}
	if r.Weekdays != nil {
		offering.Weekdays = *r.Weekdays
	}
	if r.StartTime != nil {
		offering.StartTime = *r.StartTime
	}
	if r.DurationMinutes != nil {
		offering.DurationMinutes = *r.DurationMinutes
	}
	if r.ValidFrom != nil {
		offering.ValidFrom = *r.ValidFrom
	}
	if r.ClearValidUntil {
		offering.ValidUntil = nil
	} else if r.ValidUntil != nil {
		until := *r.ValidUntil
		offering.ValidUntil = &until
	}
}

// OfferingListResult wraps a page of offerings.
type OfferingListResult struct {
	Items      []models.ClassOfferingDetail
	Pagination models.Pagination
}
