package dto

// MonthlyBillingRequest parameterises a billing run. Zero DueDay and empty Category use configured defaults.
type MonthlyBillingRequest struct {
	Year     int    `json:"year" validate:"required,min=2000,max=2100"`
	Month    int    `json:"month" validate:"required,min=1,max=12"`
	DueDay   int    `json:"dueDay" validate:"omitempty,min=1,max=31"`
	Category string `json:"category" validate:"max=120"`
}
