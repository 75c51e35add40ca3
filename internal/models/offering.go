package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ClassOffering is a weekly-recurring class taught by one instructor.
type ClassOffering struct {
	ID              string          `db:"id" json:"id"`
	InstructorID    string          `db:"instructor_id" json:"instructor_id"`
	ModalityID      string          `db:"modality_id" json:"modality_id"`
	CondominiumID   *string         `db:"condominium_id" json:"condominium_id,omitempty"`
	DisplayName     string          `db:"display_name" json:"display_name"`
	Price           decimal.Decimal `db:"price" json:"price"`
	Capacity        int             `db:"capacity" json:"capacity"`
	Weekdays        Weekdays        `db:"weekdays" json:"weekdays"`
	StartTime       TimeOfDay       `db:"start_minute" json:"start_time"`
	DurationMinutes int             `db:"duration_minutes" json:"duration_minutes"`
	ValidFrom       Date            `db:"valid_from" json:"valid_from"`
	ValidUntil      *Date           `db:"valid_until" json:"valid_until,omitempty"`
	Active          bool            `db:"active" json:"active"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// EndTime is the exclusive end of the class slot.
func (o ClassOffering) EndTime() TimeOfDay {
	return o.StartTime + TimeOfDay(o.DurationMinutes)
}

// RunsOn reports whether the weekly pattern includes d's weekday.
func (o ClassOffering) RunsOn(d Date) bool {
	return o.Weekdays.Has(d.Weekday())
}

// ValidOn reports whether d falls inside the validity window.
func (o ClassOffering) ValidOn(d Date) bool {
	if d.Before(o.ValidFrom) {
		return false
	}
	if o.ValidUntil != nil && d.After(*o.ValidUntil) {
		return false
	}
	return true
}

// Validate checks the structural invariants of an offering.
func (o ClassOffering) Validate() error {
	if o.Weekdays.Empty() {
		return fmt.Errorf("at least one weekday must be selected")
	}
	if o.Capacity < 1 {
		return fmt.Errorf("capacity must be at least 1")
	}
	if o.DurationMinutes < 1 {
		return fmt.Errorf("duration must be at least 1 minute")
	}
	if o.StartTime < 0 || o.StartTime >= 24*60 {
		return fmt.Errorf("start time out of range")
	}
	if o.Price.IsNegative() {
		return fmt.Errorf("price cannot be negative")
	}
	if o.ValidFrom.IsZero() {
		return fmt.Errorf("valid_from is required")
	}
	if o.ValidUntil != nil && o.ValidUntil.Before(o.ValidFrom) {
		return fmt.Errorf("valid_until must not be before valid_from")
	}
	return nil
}

// ClassOfferingDetail enriches an offering with registry names.
type ClassOfferingDetail struct {
	ClassOffering
	ModalityName    string  `db:"modality_name" json:"modality_name"`
	InstructorName  string  `db:"instructor_name" json:"instructor_name"`
	CondominiumName *string `db:"condominium_name" json:"condominium_name,omitempty"`
}

// Label returns the display name or a modality based fallback.
func (d ClassOfferingDetail) Label() string {
	if d.DisplayName != "" {
		return d.DisplayName
	}
	return fmt.Sprintf("%s %s %s", d.ModalityName, d.Weekdays, d.StartTime)
}

// ClassOfferingFilter scopes offering listings.
type ClassOfferingFilter struct {
	Search        string
	CondominiumID string
	ModalityID    string
	InstructorID  string
	Weekday       *time.Weekday
	Active        *bool
	Page          int
	PageSize      int
}

// OfferingOccupancy summarises seat usage.
type OfferingOccupancy struct {
	OfferingID string `json:"offering_id"`
	Capacity   int    `json:"capacity"`
	Active     int    `json:"active"`
	Available  int    `json:"available"`
}

// OfferingConflictError names the offering that collides with a candidate schedule.
type OfferingConflictError struct {
	OfferingID   string `json:"offering_id"`
	InstructorID string `json:"instructor_id"`
}

// Error implements the error interface.
func (e *OfferingConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("schedule conflicts with offering %s of the same instructor", e.OfferingID)
}
