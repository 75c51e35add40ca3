package models

// Client is the read-only view of the customer registry.
type Client struct {
	ID       string `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	Document string `db:"document" json:"document"`
	Active   bool   `db:"active" json:"active"`
}

// Instructor is the read-only view of the staff registry.
type Instructor struct {
	ID     string `db:"id" json:"id"`
	Name   string `db:"name" json:"name"`
	Active bool   `db:"active" json:"active"`
}

// Condominium is the site (tenant) an offering is held at.
type Condominium struct {
	ID     string `db:"id" json:"id"`
	Name   string `db:"name" json:"name"`
	Active bool   `db:"active" json:"active"`
}

// Modality groups offerings of the same activity for billing.
type Modality struct {
	ID     string `db:"id" json:"id"`
	Name   string `db:"name" json:"name"`
	Active bool   `db:"active" json:"active"`
}
