package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/gym-backoffice-api/internal/models"
	appErrors "github.com/noah-isme/gym-backoffice-api/pkg/errors"
	"github.com/noah-isme/gym-backoffice-api/pkg/export"
)

const (
	FormatCSV = "csv"
	FormatPDF = "pdf"

	exportPageSize = 100
)

type offeringLister interface {
	List(ctx context.Context, filter models.ClassOfferingFilter) ([]models.ClassOfferingDetail, int, error)
	FindDetail(ctx context.Context, id string) (*models.ClassOfferingDetail, error)
}

type rosterReader interface {
	FindByID(ctx context.Context, id string) (*models.AttendanceRoster, error)
	ListItems(ctx context.Context, rosterID string) ([]models.AttendanceItem, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, opts export.PDFOptions) ([]byte, error)
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportService renders read-only tabular projections of offerings and rosters.
type ExportService struct {
	offerings offeringLister
	rosters   rosterReader
	csv       csvRenderer
	pdf       pdfRenderer
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers fall back to the default exporters.
func NewExportService(offerings offeringLister, rosters rosterReader, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{offerings: offerings, rosters: rosters, csv: csv, pdf: pdf, logger: logger, now: time.Now}
}

// ExportOfferings renders every offering matching filter as CSV or PDF.
func (s *ExportService) ExportOfferings(ctx context.Context, filter models.ClassOfferingFilter, format string) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = FormatCSV
	}
	if format != FormatCSV && format != FormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	var all []models.ClassOfferingDetail
	filter.PageSize = exportPageSize
	for page := 1; ; page++ {
		filter.Page = page
		items, total, err := s.offerings.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to list offerings")
		}
		all = append(all, items...)
		if len(items) == 0 || len(all) >= total {
			break
		}
	}

	dataset := export.Dataset{
		Columns: []export.Column{
			{Key: "name", Title: "Class", Width: 3},
			{Key: "modality", Title: "Modality", Width: 2},
			{Key: "instructor", Title: "Instructor", Width: 2},
			{Key: "days", Title: "Days", Width: 2},
			{Key: "time", Title: "Time", Width: 1.5},
			{Key: "capacity", Title: "Capacity", Width: 1},
			{Key: "price", Title: "Price", Width: 1},
			{Key: "validity", Title: "Validity", Width: 2.5},
			{Key: "status", Title: "Status", Width: 1},
		},
		Rows: make([]map[string]string, 0, len(all)),
	}
	for _, o := range all {
		validity := o.ValidFrom.String() + " -"
		if o.ValidUntil != nil {
			validity += " " + o.ValidUntil.String()
		}
		status := "active"
		if !o.Active {
			status = "inactive"
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"name":       o.Label(),
			"modality":   o.ModalityName,
			"instructor": o.InstructorName,
			"days":       o.Weekdays.String(),
			"time":       o.StartTime.String() + "-" + o.EndTime().String(),
			"capacity":   strconv.Itoa(o.Capacity),
			"price":      o.Price.StringFixed(2),
			"validity":   validity,
			"status":     status,
		})
	}

	stamp := s.now().UTC().Format("20060102_150405")
	file := &ExportFile{Filename: fmt.Sprintf("offerings_%s.%s", stamp, format)}
	var err error
	if format == FormatCSV {
		file.ContentType = "text/csv"
		file.Body, err = s.csv.Render(dataset)
	} else {
		file.ContentType = "application/pdf"
		file.Body, err = s.pdf.Render(dataset, export.PDFOptions{
			Title:     "Class offerings",
			Subtitle:  fmt.Sprintf("%d offerings", len(all)),
			Landscape: true,
		})
	}
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render offerings export")
	}
	s.logger.Debug("offerings exported", zap.String("format", format), zap.Int("rows", len(all)))
	return file, nil
}

// ExportRosterSheet renders a printable attendance sheet for a roster.
func (s *ExportService) ExportRosterSheet(ctx context.Context, rosterID string) (*ExportFile, error) {
	roster, err := s.rosters.FindByID(ctx, rosterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "roster not found")
		}
		return nil, appErrors.Internal(err, "failed to load roster")
	}
	offering, err := s.offerings.FindDetail(ctx, roster.OfferingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offering not found")
		}
		return nil, appErrors.Internal(err, "failed to load offering")
	}
	items, err := s.rosters.ListItems(ctx, roster.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list roster items")
	}

	dataset := export.Dataset{
		Columns: []export.Column{
			{Key: "n", Title: "#", Width: 0.5},
			{Key: "name", Title: "Participant", Width: 4},
			{Key: "document", Title: "Document", Width: 2},
			{Key: "present", Title: "Present", Width: 1},
			{Key: "note", Title: "Note", Width: 3},
		},
		Rows: make([]map[string]string, 0, len(items)),
	}
	present := 0
	for i, item := range items {
		mark := ""
		if item.Present {
			mark = "X"
			present++
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"n":        strconv.Itoa(i + 1),
			"name":     item.NameSnapshot,
			"document": item.DocumentSnapshot,
			"present":  mark,
			"note":     item.Note,
		})
	}

	footer := []string{fmt.Sprintf("Present: %d of %d", present, len(items))}
	if roster.GeneralNote != "" {
		footer = append(footer, "Note: "+roster.GeneralNote)
	}
	footer = append(footer, "Instructor: "+offering.InstructorName, "Signature: ______________________________")

	body, err := s.pdf.Render(dataset, export.PDFOptions{
		Title:    offering.Label(),
		Subtitle: fmt.Sprintf("%s %s, %s-%s", roster.Date.Weekday(), roster.Date, offering.StartTime, offering.EndTime()),
		Footer:   footer,
	})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render attendance sheet")
	}
	return &ExportFile{
		Filename:    fmt.Sprintf("attendance_%s_%s.pdf", sanitizeFilename(offering.Label()), roster.Date),
		ContentType: "application/pdf",
		Body:        body,
	}, nil
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(strings.ToLower(raw))
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
