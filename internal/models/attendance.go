package models

import "time"

// AttendanceRoster is the attendance list of one offering on one date.
type AttendanceRoster struct {
	ID          string    `db:"id" json:"id"`
	OfferingID  string    `db:"offering_id" json:"offering_id"`
	Date        Date      `db:"roster_date" json:"date"`
	GeneralNote string    `db:"general_note" json:"general_note"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// AttendanceRosterSummary adds item counters to a roster.
type AttendanceRosterSummary struct {
	AttendanceRoster
	TotalItems   int `db:"total_items" json:"total_items"`
	TotalPresent int `db:"total_present" json:"total_present"`
}

// AttendanceItem is one participant line on a roster.
type AttendanceItem struct {
	ID               string    `db:"id" json:"id"`
	RosterID         string    `db:"roster_id" json:"roster_id"`
	EnrollmentID     *string   `db:"enrollment_id" json:"enrollment_id,omitempty"`
	ClientID         string    `db:"client_id" json:"client_id"`
	Present          bool      `db:"present" json:"present"`
	Note             string    `db:"note" json:"note"`
	NameSnapshot     string    `db:"name_snapshot" json:"name_snapshot"`
	DocumentSnapshot string    `db:"document_snapshot" json:"document_snapshot"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// NewAttendanceItem snapshots the participant identity of an enrollment.
func NewAttendanceItem(rosterID string, e EnrollmentDetail) AttendanceItem {
	enrollmentID := e.ID
	return AttendanceItem{
		RosterID:         rosterID,
		EnrollmentID:     &enrollmentID,
		ClientID:         e.ClientID,
		NameSnapshot:     e.DisplayName(),
		DocumentSnapshot: e.DisplayDocument(),
	}
}

// RosterSyncResult reports items added by a synchronization.
type RosterSyncResult struct {
	RosterID       string `json:"roster_id"`
	Added          int    `json:"added"`
	AlreadyPresent int    `json:"already_present"`
}

// RosterRangeResult reports the outcome of a batch generation.
type RosterRangeResult struct {
	OfferingID string             `json:"offering_id"`
	Created    int                `json:"created"`
	Existing   int                `json:"existing"`
	Skipped    int                `json:"skipped"`
	Errors     []RosterRangeError `json:"errors,omitempty"`
}

// RosterRangeError captures a failed date inside a batch generation.
type RosterRangeError struct {
	Date   Date   `json:"date"`
	Reason string `json:"reason"`
}

// RosterWithItems is an opened roster.
type RosterWithItems struct {
	Roster AttendanceRoster `json:"roster"`
	Items  []AttendanceItem `json:"items"`
}
