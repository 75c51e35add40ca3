package models

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Participant overrides the attending person when it is a dependent of the client.
type Participant struct {
	Name      string `json:"name" validate:"required,max=255"`
	BirthDate *Date  `json:"birth_date,omitempty"`
	Sex       string `json:"sex,omitempty" validate:"omitempty,oneof=M F O"`
	Document  string `json:"document,omitempty" validate:"omitempty,max=20"`
}

// Enrollment registers a client (or a dependent) in a class offering.
type Enrollment struct {
	ID                   string     `db:"id" json:"id"`
	OfferingID           string     `db:"offering_id" json:"offering_id"`
	ClientID             string     `db:"client_id" json:"client_id"`
	ParticipantName      *string    `db:"participant_name" json:"participant_name,omitempty"`
	ParticipantBirthDate *Date      `db:"participant_birth_date" json:"participant_birth_date,omitempty"`
	ParticipantSex       *string    `db:"participant_sex" json:"participant_sex,omitempty"`
	ParticipantDocument  *string    `db:"participant_document" json:"participant_document,omitempty"`
	ParticipantKey       string     `db:"participant_key" json:"participant_key"`
	StartDate            Date       `db:"start_date" json:"start_date"`
	EndDate              *Date      `db:"end_date" json:"end_date,omitempty"`
	Active               bool       `db:"active" json:"active"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	EndedAt              *time.Time `db:"ended_at" json:"ended_at,omitempty"`
}

// ActiveOn reports whether the enrollment covers d.
func (e Enrollment) ActiveOn(d Date) bool {
	if !e.Active || d.Before(e.StartDate) {
		return false
	}
	return e.EndDate == nil || !e.EndDate.Before(d)
}

// ActiveDuring reports whether the enrollment intersects [from, to].
// Ended enrollments without an end date are not considered.
func (e Enrollment) ActiveDuring(from, to Date) bool {
	if e.StartDate.After(to) {
		return false
	}
	if e.EndDate == nil {
		return e.Active
	}
	return !e.EndDate.Before(from)
}

// EnrollmentDetail joins the client registry data used for snapshots.
type EnrollmentDetail struct {
	Enrollment
	ClientName     string `db:"client_name" json:"client_name"`
	ClientDocument string `db:"client_document" json:"client_document"`
}

// DisplayName is the override name when present, else the client name.
func (d EnrollmentDetail) DisplayName() string {
	if d.ParticipantName != nil && strings.TrimSpace(*d.ParticipantName) != "" {
		return strings.TrimSpace(*d.ParticipantName)
	}
	return strings.TrimSpace(d.ClientName)
}

// DisplayDocument is the override document when present, else the client document.
func (d EnrollmentDetail) DisplayDocument() string {
	if d.ParticipantDocument != nil && *d.ParticipantDocument != "" {
		return *d.ParticipantDocument
	}
	return d.ClientDocument
}

// ParticipantKey derives the identity used to detect duplicate active enrollments.
func ParticipantKey(clientID string, p *Participant) string {
	if p == nil || strings.TrimSpace(p.Name) == "" {
		return "client:" + clientID
	}
	return "name:" + NormalizeName(p.Name)
}

var foldMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeName strips diacritics, lower-cases and collapses whitespace.
func NormalizeName(name string) string {
	folded, _, err := transform.String(foldMarks, name)
	if err != nil {
		folded = name
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}
