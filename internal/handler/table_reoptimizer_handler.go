package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/sma-adp-exams/internal/dto"
	"github.com/noah-isme/sma-adp-exams/internal/service"
	appErrors "github.com/noah-isme/sma-adp-exams/pkg/errors"
	"github.com/noah-isme/sma-adp-exams/pkg/response"
)

type tableReoptimizer interface {
	Reoptimize(ctx context.Context, req dto.ReoptimizeRequest) (*dto.ReoptimizeResponse, error)
}

type runReportReader interface {
	Get(ctx context.Context, runID string) (*dto.ReoptimizeResponse, error)
	Export(ctx context.Context, runID string, format service.ReportFormat) (*service.RenderedReport, error)
}

// TableReoptimizerHandler exposes the exam table reoptimization endpoints.
type TableReoptimizerHandler struct {
	service   tableReoptimizer
	reports   runReportReader
	validator *validator.Validate
}

// NewTableReoptimizerHandler constructs the handler.
func NewTableReoptimizerHandler(svc *service.ReoptimizerService, reports *service.RunReportService) *TableReoptimizerHandler {
	return &TableReoptimizerHandler{service: svc, reports: reports, validator: validator.New()}
}

// Reoptimize godoc
// @Summary Merge unassigned exam tables into compatible groups
// @Description Runs one batch. With dryRun=true nothing is persisted and merges are reported as simulated.
// @Tags ExamTables
// @Accept json
// @Produce json
// @Param payload body dto.ReoptimizeRequest false "Reoptimization options"
// @Success 200 {object} response.Envelope{data=dto.ReoptimizeResponse}
// @Failure 400 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Security BearerAuth
// @Router /exam-tables/reoptimize [post]
func (h *TableReoptimizerHandler) Reoptimize(c *gin.Context) {
	var req dto.ReoptimizeRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reoptimization payload"))
		return
	}
	result, err := h.service.Reoptimize(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// GetRun godoc
// @Summary Fetch a previous reoptimization report
// @Tags ExamTables
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope{data=dto.ReoptimizeResponse}
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /exam-tables/reoptimize/runs/{id} [get]
func (h *TableReoptimizerHandler) GetRun(c *gin.Context) {
	report, err := h.reports.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report)
}

// ExportRun godoc
// @Summary Download a reoptimization report as CSV or PDF
// @Tags ExamTables
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Run ID"
// @Param format query string false "csv or pdf" Enums(csv, pdf)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /exam-tables/reoptimize/runs/{id}/export [get]
func (h *TableReoptimizerHandler) ExportRun(c *gin.Context) {
	var query dto.ReoptimizeExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export query"))
		return
	}
	if err := h.validator.Struct(query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "format must be csv or pdf"))
		return
	}
	rendered, err := h.reports.Export(c.Request.Context(), c.Param("id"), service.ReportFormat(query.Format))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, rendered.Filename, rendered.ContentType, rendered.Payload)
}
