package dto

import "github.com/noah-isme/gym-backoffice-api/internal/models"

// CreateRosterRequest materialises the roster of one offering for one date.
type CreateRosterRequest struct {
	OfferingID  string       `json:"offeringId" validate:"required"`
	Date        *models.Date `json:"date" validate:"required"`
	GeneralNote string       `json:"generalNote" validate:"max=2000"`
}

// GenerateRostersRequest materialises rosters for every matching date in an inclusive range.
type GenerateRostersRequest struct {
	From *models.Date `json:"from" validate:"required"`
	To   *models.Date `json:"to" validate:"required"`
}

// RosterListFilter scopes roster summaries.
type RosterListFilter struct {
	From *models.Date
	To   *models.Date
}

// MarkItemsRequest records attendance on a roster. Items not listed as present are marked absent.
type MarkItemsRequest struct {
	PresentItemIDs []string          `json:"presentItemIds" validate:"dive,required"`
	Notes          map[string]string `json:"notes" validate:"dive,max=500"`
	GeneralNote    *string           `json:"generalNote" validate:"omitempty,max=2000"`
}

// MarkAllRequest bulk-sets presence.
type MarkAllRequest struct {
	Present bool `json:"present"`
}

// MarkAllResult reports how many items were updated.
type MarkAllResult struct {
	RosterID string `json:"rosterId"`
	Updated  int64  `json:"updated"`
	Present  bool   `json:"present"`
}
