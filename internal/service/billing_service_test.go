package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gym-backoffice-api/internal/dto"
	"github.com/noah-isme/gym-backoffice-api/internal/models"
	appErrors "github.com/noah-isme/gym-backoffice-api/pkg/errors"
)

func billable(enrollmentID, clientID, offeringID, modalityID, modalityName, price string, start models.Date, end *models.Date, active bool) models.BillableEnrollment {
	return models.BillableEnrollment{
		EnrollmentID: enrollmentID,
		ClientID:     clientID,
		ClientName:   "Client " + clientID,
		Participant:  "client:" + clientID,
		OfferingID:   offeringID,
		ModalityID:   modalityID,
		ModalityName: modalityName,
		Price:        decimal.RequireFromString(price),
		StartDate:    start,
		EndDate:      end,
		Active:       active,
	}
}

func TestDiscountRateTiers(t *testing.T) {
	cases := map[int]string{0: "0", 1: "0", 2: "0.05", 3: "0.075", 4: "0.1", 7: "0.1"}
	for modalities, want := range cases {
		assert.True(t, discountRate(modalities).Equal(decimal.RequireFromString(want)), "modalities=%d", modalities)
	}
}

func TestBillingServiceThreeModalityScenario(t *testing.T) {
	jan := models.NewDate(2024, time.January, 1)
	repo := &fakeBillingRepo{billable: []models.BillableEnrollment{
		billable("e1", "cli-1", "off-1", "mod-pilates", "Pilates", "100", jan, nil, true),
		billable("e2", "cli-1", "off-2", "mod-yoga", "Yoga", "80", jan, nil, true),
		billable("e3", "cli-1", "off-3", "mod-swim", "Swimming", "50", jan, nil, true),
	}}
	svc := NewBillingService(repo, NewMetricsService(), nil, nil, BillingConfig{})

	result, err := svc.RunMonthly(context.Background(), dto.MonthlyBillingRequest{Year: 2024, Month: 3})
	require.NoError(t, err)
	require.Equal(t, 1, result.Created)
	charge := result.Charges[0]
	assert.Equal(t, "230.00", charge.Subtotal.StringFixed(2))
	assert.Equal(t, "17.25", charge.Discount.StringFixed(2))
	assert.Equal(t, "212.75", charge.Amount.StringFixed(2))
	assert.Equal(t, "2024-03-05", charge.DueDate.String())
	assert.Equal(t, "Mensalidades", charge.Category)
	assert.Equal(t, models.ChargeStatusOpen, charge.Status)
	assert.Contains(t, charge.Breakdown, "Competence 2024-03")
	assert.Contains(t, charge.Breakdown, "Pilates: 1 x 100.00 = 100.00")
	assert.Contains(t, charge.Breakdown, "Discount (7.5%, 3 modalities): 17.25")
}

func TestBillingServiceCurrencyScale(t *testing.T) {
	jan := models.NewDate(2024, time.January, 1)
	newRepo := func() *fakeBillingRepo {
		return &fakeBillingRepo{billable: []models.BillableEnrollment{
			billable("e1", "cli-1", "off-1", "mod-pilates", "Pilates", "100", jan, nil, true),
			billable("e2", "cli-1", "off-2", "mod-yoga", "Yoga", "80", jan, nil, true),
			billable("e3", "cli-1", "off-3", "mod-swim", "Swimming", "50", jan, nil, true),
		}}
	}
	req := dto.MonthlyBillingRequest{Year: 2024, Month: 3}

	t.Run("unset keeps cents", func(t *testing.T) {
		svc := NewBillingService(newRepo(), nil, nil, nil, BillingConfig{})
		result, err := svc.RunMonthly(context.Background(), req)
		require.NoError(t, err)
		require.Len(t, result.Charges, 1)
		charge := result.Charges[0]
		assert.True(t, charge.Amount.Equal(decimal.RequireFromString("212.75")), charge.Amount.String())
		assert.Contains(t, charge.Breakdown, "Total: 212.75")
	})

	t.Run("negative falls back to cents", func(t *testing.T) {
		scale := int32(-1)
		svc := NewBillingService(newRepo(), nil, nil, nil, BillingConfig{CurrencyScale: &scale})
		result, err := svc.RunMonthly(context.Background(), req)
		require.NoError(t, err)
		assert.True(t, result.Charges[0].Discount.Equal(decimal.RequireFromString("17.25")))
	})

	t.Run("explicit zero rounds to whole units", func(t *testing.T) {
		scale := int32(0)
		svc := NewBillingService(newRepo(), nil, nil, nil, BillingConfig{CurrencyScale: &scale})
		result, err := svc.RunMonthly(context.Background(), req)
		require.NoError(t, err)
		charge := result.Charges[0]
		assert.True(t, charge.Discount.Equal(decimal.NewFromInt(17)), charge.Discount.String())
		assert.True(t, charge.Amount.Equal(decimal.NewFromInt(213)), charge.Amount.String())
		assert.Contains(t, charge.Breakdown, "Total: 213")
	})
}

func TestBillingServiceIsIdempotent(t *testing.T) {
	jan := models.NewDate(2024, time.January, 1)
	repo := &fakeBillingRepo{billable: []models.BillableEnrollment{
		billable("e1", "cli-1", "off-1", "mod-1", "Pilates", "100", jan, nil, true),
		billable("e2", "cli-2", "off-1", "mod-1", "Pilates", "100", jan, nil, true),
	}}
	svc := NewBillingService(repo, nil, nil, nil, BillingConfig{DefaultDueDay: 10, DefaultCategory: "Monthly"})
	ctx := context.Background()
	req := dto.MonthlyBillingRequest{Year: 2024, Month: 2}

	first, err := svc.RunMonthly(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Created)

	second, err := svc.RunMonthly(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 2, second.Skipped)

	charges, err := svc.ListCharges(ctx, 2024, 2)
	require.NoError(t, err)
	assert.Len(t, charges, 2)
	assert.Equal(t, "Monthly", charges[0].Category)
}

func TestBillingServiceGroupsUnitsAndClampsDueDate(t *testing.T) {
	jan := models.NewDate(2024, time.January, 1)
	endedInFeb := models.NewDate(2024, time.February, 10)
	endedInJan := models.NewDate(2024, time.January, 20)
	repo := &fakeBillingRepo{billable: []models.BillableEnrollment{
		billable("e1", "cli-1", "off-1", "mod-1", "Pilates", "100", jan, &endedInFeb, false),
		billable("e2", "cli-1", "off-2", "mod-1", "Pilates", "100", jan, nil, true),
		billable("e3", "cli-1", "off-9", "mod-2", "Yoga", "60", jan, &endedInJan, false),
		billable("e4", "cli-1", "off-1", "mod-1", "Pilates", "100", endedInFeb.AddDays(5), nil, true),
	}}
	svc := NewBillingService(repo, nil, nil, nil, BillingConfig{})

	result, err := svc.RunMonthly(context.Background(), dto.MonthlyBillingRequest{Year: 2024, Month: 2, DueDay: 31, Category: "Custom"})
	require.NoError(t, err)
	require.Len(t, result.Charges, 1)
	charge := result.Charges[0]
	assert.Equal(t, "2024-02-29", charge.DueDate.String())
	assert.Equal(t, "200.00", charge.Subtotal.StringFixed(2))
	assert.True(t, charge.Discount.IsZero())
	assert.Contains(t, charge.Breakdown, "Pilates: 2 x 100.00 = 200.00")
	assert.NotContains(t, charge.Breakdown, "Yoga")
	assert.Equal(t, "Custom", charge.Category)
}

func TestBillingServiceCollectsPerClientErrors(t *testing.T) {
	jan := models.NewDate(2024, time.January, 1)
	repo := &fakeBillingRepo{
		billable: []models.BillableEnrollment{
			billable("e1", "cli-neg", "off-1", "mod-1", "Pilates", "-10", jan, nil, true),
			billable("e2", "cli-fail", "off-2", "mod-1", "Pilates", "90", jan, nil, true),
			billable("e3", "cli-ok", "off-2", "mod-1", "Pilates", "90", jan, nil, true),
			billable("e4", "cli-free", "off-3", "mod-2", "Open gym", "0", jan, nil, true),
		},
		failFor: map[string]error{"cli-fail": errors.New("connection reset")},
	}
	svc := NewBillingService(repo, nil, nil, nil, BillingConfig{})

	result, err := svc.RunMonthly(context.Background(), dto.MonthlyBillingRequest{Year: 2024, Month: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, "cli-neg", result.Errors[0].ClientID)
	assert.Contains(t, result.Errors[0].Reason, "negative price")
	assert.Equal(t, "cli-fail", result.Errors[1].ClientID)
}

func TestBillingServiceValidation(t *testing.T) {
	svc := NewBillingService(&fakeBillingRepo{}, nil, nil, nil, BillingConfig{})
	ctx := context.Background()

	_, err := svc.RunMonthly(ctx, dto.MonthlyBillingRequest{Year: 2024, Month: 13})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	_, err = svc.RunMonthly(ctx, dto.MonthlyBillingRequest{Year: 2024, Month: 1, DueDay: 32})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	_, err = svc.ListCharges(ctx, 2024, 0)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
