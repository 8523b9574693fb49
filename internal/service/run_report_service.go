package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-exams/internal/dto"
	appErrors "github.com/noah-isme/sma-adp-exams/pkg/errors"
	"github.com/noah-isme/sma-adp-exams/pkg/export"
)

const runReportKeyPrefix = "reoptimizer:run:"

// ReportFormat names a rendering of a stored run report.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

type reportCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title, subtitle string) ([]byte, error)
}

// RenderedReport is an export ready to be sent as an attachment.
type RenderedReport struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// RunReportService keeps finished run reports in the cache and renders them for download.
type RunReportService struct {
	cache   reportCache
	csv     csvRenderer
	pdf     pdfRenderer
	metrics *MetricsService
	logger  *zap.Logger
	ttl     time.Duration
}

// NewRunReportService constructs a RunReportService.
func NewRunReportService(cache reportCache, metrics *MetricsService, ttl time.Duration, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *RunReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter(',')
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &RunReportService{cache: cache, csv: csv, pdf: pdf, metrics: metrics, logger: logger, ttl: ttl}
}

// Store caches the report under its run id.
func (s *RunReportService) Store(ctx context.Context, report *dto.ReoptimizeResponse) error {
	if s.cache == nil || report == nil {
		return nil
	}
	start := time.Now()
	err := s.cache.Set(ctx, runReportKeyPrefix+report.Summary.RunID, report, s.ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	return err
}

// Get returns a cached run report.
func (s *RunReportService) Get(ctx context.Context, runID string) (*dto.ReoptimizeResponse, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "run id is required")
	}
	if s.cache == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "run report not found or expired")
	}
	var report dto.ReoptimizeResponse
	start := time.Now()
	err := s.cache.Get(ctx, runReportKeyPrefix+runID, &report)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "run report not found or expired")
		}
		s.logger.Warn("run report lookup failed", zap.String("run_id", runID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load run report")
	}
	return &report, nil
}

// Export renders a cached run report as CSV or PDF. An empty format means CSV.
func (s *RunReportService) Export(ctx context.Context, runID string, format ReportFormat) (*RenderedReport, error) {
	if format == "" {
		format = ReportFormatCSV
	}
	if format != ReportFormatCSV && format != ReportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	report, err := s.Get(ctx, runID)
	if err != nil {
		return nil, err
	}

	dataset := buildRunDataset(report)
	var payload []byte
	contentType := "text/csv"
	switch format {
	case ReportFormatPDF:
		contentType = "application/pdf"
		payload, err = s.pdf.Render(dataset, "Exam table reoptimization", runSubtitle(report.Summary))
	default:
		payload, err = s.csv.Render(dataset)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render run report")
	}
	return &RenderedReport{
		Filename:    fmt.Sprintf("reoptimization_%s.%s", report.Summary.RunID, format),
		ContentType: contentType,
		Payload:     payload,
	}, nil
}

var runDatasetHeaders = []string{"table", "date", "shift", "area", "outcome", "group", "before", "after", "reason", "sub_reasons"}

// buildRunDataset flattens movements then unplaced rows into one table.
func buildRunDataset(report *dto.ReoptimizeResponse) export.Dataset {
	rows := make([]map[string]string, 0, len(report.Detail.Movements)+len(report.Detail.Unplaced))
	for _, m := range report.Detail.Movements {
		rows = append(rows, map[string]string{
			"table":   strconv.Itoa(m.TableNumber),
			"date":    m.Date,
			"shift":   strconv.Itoa(m.Shift),
			"area":    strconv.Itoa(m.AreaID),
			"outcome": string(m.Action),
			"group":   m.GroupID,
			"before":  formatPositions(m.Before),
			"after":   formatPositions(m.After),
		})
	}
	for _, u := range report.Detail.Unplaced {
		subReasons := make([]string, len(u.SubReasons))
		for i, r := range u.SubReasons {
			subReasons[i] = string(r)
		}
		rows = append(rows, map[string]string{
			"table":       strconv.Itoa(u.TableNumber),
			"date":        u.Date,
			"shift":       strconv.Itoa(u.Shift),
			"area":        strconv.Itoa(u.AreaID),
			"outcome":     "unplaced",
			"reason":      string(u.Reason),
			"sub_reasons": strings.Join(subReasons, "|"),
		})
	}
	return export.Dataset{Headers: runDatasetHeaders, Rows: rows}
}

func formatPositions(positions []*int) string {
	if len(positions) == 0 {
		return ""
	}
	parts := make([]string, len(positions))
	for i, pos := range positions {
		if pos == nil {
			parts[i] = "-"
			continue
		}
		parts[i] = strconv.Itoa(*pos)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func runSubtitle(summary dto.ReoptimizeSummary) string {
	mode := "commit"
	if summary.DryRun == 1 {
		mode = "dry run"
	}
	return fmt.Sprintf("Run %s (%s) at %s: %d movements, %d unplaced",
		summary.RunID, mode, summary.StartedAt.Format(time.RFC3339), summary.Movements, summary.UnplacedCount)
}
