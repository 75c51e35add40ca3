package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ChargeStatus is the lifecycle of a monthly charge.
type ChargeStatus string

const (
	ChargeStatusOpen      ChargeStatus = "OPEN"
	ChargeStatusCancelled ChargeStatus = "CANCELLED"
)

// MonthlyCharge is a receivable produced by the monthly billing run.
type MonthlyCharge struct {
	ID              string          `db:"id" json:"id"`
	ClientID        string          `db:"client_id" json:"client_id"`
	CompetenceYear  int             `db:"competence_year" json:"competence_year"`
	CompetenceMonth int             `db:"competence_month" json:"competence_month"`
	DueDate         Date            `db:"due_date" json:"due_date"`
	Subtotal        decimal.Decimal `db:"subtotal" json:"subtotal"`
	Discount        decimal.Decimal `db:"discount" json:"discount"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	Description     string          `db:"description" json:"description"`
	Breakdown       string          `db:"breakdown" json:"breakdown"`
	Category        string          `db:"category" json:"category"`
	Status          ChargeStatus    `db:"status" json:"status"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// BillableEnrollment is an enrollment row joined with its offering pricing.
type BillableEnrollment struct {
	EnrollmentID string          `db:"enrollment_id"`
	ClientID     string          `db:"client_id"`
	ClientName   string          `db:"client_name"`
	Participant  string          `db:"participant_key"`
	OfferingID   string          `db:"offering_id"`
	ModalityID   string          `db:"modality_id"`
	ModalityName string          `db:"modality_name"`
	Price        decimal.Decimal `db:"price"`
	StartDate    Date            `db:"start_date"`
	EndDate      *Date           `db:"end_date"`
	Active       bool            `db:"active"`
}

// BillingRunResult summarises a billing run.
type BillingRunResult struct {
	Year    int               `json:"year"`
	Month   int               `json:"month"`
	DueDate Date              `json:"due_date"`
	Created int               `json:"created"`
	Skipped int               `json:"skipped"`
	Errors  []BillingRunError `json:"errors,omitempty"`
	Charges []MonthlyCharge   `json:"charges,omitempty"`
}

// BillingRunError reports a client that could not be charged.
type BillingRunError struct {
	ClientID string `json:"client_id"`
	Reason   string `json:"reason"`
}
