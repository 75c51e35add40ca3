package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/gym-backoffice-api/internal/dto"
	"github.com/noah-isme/gym-backoffice-api/internal/models"
	appErrors "github.com/noah-isme/gym-backoffice-api/pkg/errors"
)

type billingStore interface {
	ListBillable(ctx context.Context, monthStart, monthEnd models.Date) ([]models.BillableEnrollment, error)
	ChargedClients(ctx context.Context, year, month int) (map[string]struct{}, error)
	InsertCharge(ctx context.Context, charge *models.MonthlyCharge) (bool, error)
	ListCharges(ctx context.Context, year, month int) ([]models.MonthlyCharge, error)
}

// BillingConfig carries the defaults of a billing run.
type BillingConfig struct {
	DefaultDueDay   int
	DefaultCategory string
	// CurrencyScale is the number of minor-unit digits. Nil means 2.
	CurrencyScale *int32
}

const defaultCurrencyScale int32 = 2

var discountTiers = []decimal.Decimal{
	decimal.Zero,
	decimal.Zero,
	decimal.RequireFromString("0.05"),
	decimal.RequireFromString("0.075"),
	decimal.RequireFromString("0.10"),
}

// discountRate maps a distinct modality count to its discount fraction.
func discountRate(modalities int) decimal.Decimal {
	if modalities < 0 {
		return decimal.Zero
	}
	if modalities >= len(discountTiers) {
		return discountTiers[len(discountTiers)-1]
	}
	return discountTiers[modalities]
}

// BillingService turns a month of enrollment history into one charge per client.
type BillingService struct {
	repo      billingStore
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       BillingConfig
	scale     int32
}

// NewBillingService builds a BillingService.
func NewBillingService(repo billingStore, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg BillingConfig) *BillingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultDueDay < 1 || cfg.DefaultDueDay > 31 {
		cfg.DefaultDueDay = 5
	}
	if cfg.DefaultCategory == "" {
		cfg.DefaultCategory = "Mensalidades"
	}
	scale := defaultCurrencyScale
	if cfg.CurrencyScale != nil && *cfg.CurrencyScale >= 0 {
		scale = *cfg.CurrencyScale
	}
	return &BillingService{repo: repo, metrics: metrics, validator: validate, logger: logger, cfg: cfg, scale: scale}
}

type billingLine struct {
	modalityID   string
	modalityName string
	price        decimal.Decimal
	units        map[string]struct{}
}

type clientBill struct {
	clientID   string
	clientName string
	lines      []*billingLine
	index      map[string]*billingLine
	invalid    string
}

// RunMonthly charges every client with enrollments intersecting the competence month. Clients already
// charged are skipped, so the run can be repeated safely. Per-client failures are collected.
func (s *BillingService) RunMonthly(ctx context.Context, req dto.MonthlyBillingRequest) (*models.BillingRunResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid billing payload")
	}
	dueDay := req.DueDay
	if dueDay == 0 {
		dueDay = s.cfg.DefaultDueDay
	}
	category := strings.TrimSpace(req.Category)
	if category == "" {
		category = s.cfg.DefaultCategory
	}

	month := time.Month(req.Month)
	monthStart, monthEnd := models.MonthBounds(req.Year, month)
	dueDate := models.ClampDay(req.Year, month, dueDay)

	rows, err := s.repo.ListBillable(ctx, monthStart, monthEnd)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load billable enrollments")
	}
	charged, err := s.repo.ChargedClients(ctx, req.Year, req.Month)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load existing charges")
	}

	result := &models.BillingRunResult{Year: req.Year, Month: req.Month, DueDate: dueDate}
	billed := decimal.Zero
	for _, bill := range groupByClient(rows) {
		if _, ok := charged[bill.clientID]; ok {
			result.Skipped++
			continue
		}
		if bill.invalid != "" {
			s.logger.Warn("client not billable", zap.String("client_id", bill.clientID), zap.String("reason", bill.invalid))
			result.Errors = append(result.Errors, models.BillingRunError{ClientID: bill.clientID, Reason: bill.invalid})
			continue
		}

		charge := s.buildCharge(bill, req.Year, month, dueDate, category)
		if charge.Subtotal.IsZero() {
			result.Skipped++
			continue
		}

		inserted, err := s.repo.InsertCharge(ctx, charge)
		if err != nil {
			s.logger.Warn("charge insert failed", zap.String("client_id", bill.clientID), zap.Error(err))
			result.Errors = append(result.Errors, models.BillingRunError{ClientID: bill.clientID, Reason: err.Error()})
			continue
		}
		if !inserted {
			result.Skipped++
			continue
		}
		result.Created++
		result.Charges = append(result.Charges, *charge)
		billed = billed.Add(charge.Amount)
	}

	amount, _ := billed.Float64()
	s.metrics.RecordBillingRun(result.Created, result.Skipped, len(result.Errors), amount)
	s.logger.Info("monthly billing run",
		zap.Int("year", req.Year),
		zap.Int("month", req.Month),
		zap.String("due_date", dueDate.String()),
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", len(result.Errors)),
		zap.String("billed", billed.StringFixed(s.scale)),
	)
	return result, nil
}

// ListCharges returns the charges of a competence month.
func (s *BillingService) ListCharges(ctx context.Context, year, month int) ([]models.MonthlyCharge, error) {
	if month < 1 || month > 12 || year < 2000 || year > 2100 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid competence month")
	}
	charges, err := s.repo.ListCharges(ctx, year, month)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list charges")
	}
	if charges == nil {
		charges = []models.MonthlyCharge{}
	}
	return charges, nil
}

func groupByClient(rows []models.BillableEnrollment) []*clientBill {
	bills := make([]*clientBill, 0)
	byClient := make(map[string]*clientBill)
	for _, row := range rows {
		bill, ok := byClient[row.ClientID]
		if !ok {
			bill = &clientBill{clientID: row.ClientID, clientName: row.ClientName, index: make(map[string]*billingLine)}
			byClient[row.ClientID] = bill
			bills = append(bills, bill)
		}
		if row.Price.IsNegative() {
			bill.invalid = fmt.Sprintf("offering %s has negative price %s", row.OfferingID, row.Price.String())
			continue
		}
		key := row.ModalityID + "|" + row.Price.String()
		line, ok := bill.index[key]
		if !ok {
			line = &billingLine{modalityID: row.ModalityID, modalityName: row.ModalityName, price: row.Price, units: make(map[string]struct{})}
			bill.index[key] = line
			bill.lines = append(bill.lines, line)
		}
		// A re-enrollment of the same participant in the same month is billed once.
		line.units[row.OfferingID+"|"+row.Participant] = struct{}{}
	}
	return bills
}

func (s *BillingService) buildCharge(bill *clientBill, year int, month time.Month, dueDate models.Date, category string) *models.MonthlyCharge {
	scale := s.scale
	lines := append([]*billingLine(nil), bill.lines...)
	sort.SliceStable(lines, func(i, j int) bool {
		if lines[i].modalityName != lines[j].modalityName {
			return lines[i].modalityName < lines[j].modalityName
		}
		return lines[i].price.LessThan(lines[j].price)
	})

	subtotal := decimal.Zero
	modalities := make(map[string]struct{})
	var breakdown strings.Builder
	fmt.Fprintf(&breakdown, "Competence %04d-%02d\n", year, int(month))
	for _, line := range lines {
		count := decimal.NewFromInt(int64(len(line.units)))
		total := line.price.Mul(count)
		subtotal = subtotal.Add(total)
		modalities[line.modalityID] = struct{}{}
		fmt.Fprintf(&breakdown, "%s: %d x %s = %s\n", line.modalityName, len(line.units), line.price.StringFixed(scale), total.StringFixed(scale))
	}

	rate := discountRate(len(modalities))
	discount := subtotal.Mul(rate).Round(scale)
	amount := subtotal.Sub(discount).Round(scale)
	fmt.Fprintf(&breakdown, "Subtotal: %s\n", subtotal.StringFixed(scale))
	fmt.Fprintf(&breakdown, "Discount (%s%%, %d modalities): %s\n", rate.Shift(2).String(), len(modalities), discount.StringFixed(scale))
	fmt.Fprintf(&breakdown, "Total: %s", amount.StringFixed(scale))

	return &models.MonthlyCharge{
		ClientID:        bill.clientID,
		CompetenceYear:  year,
		CompetenceMonth: int(month),
		DueDate:         dueDate,
		Subtotal:        subtotal.Round(scale),
		Discount:        discount,
		Amount:          amount,
		Description:     fmt.Sprintf("%s %02d/%04d - %s", category, int(month), year, bill.clientName),
		Breakdown:       breakdown.String(),
		Category:        category,
		Status:          models.ChargeStatusOpen,
	}
}
