package dto

import "github.com/noah-isme/gym-backoffice-api/internal/models"

// EnrollRequest registers a client, or a dependent of the client, in an offering.
type EnrollRequest struct {
	OfferingID  string              `json:"offeringId" validate:"required"`
	ClientID    string              `json:"clientId" validate:"required"`
	Participant *models.Participant `json:"participant" validate:"omitempty"`
	StartDate   *models.Date        `json:"startDate"`
}

// EndEnrollmentRequest closes an enrollment.
type EndEnrollmentRequest struct {
	EndDate *models.Date `json:"endDate"`
}
