package web

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ginjaninja78/payequity/internal/pipeline"
	"github.com/ginjaninja78/payequity/internal/report"
	"github.com/ginjaninja78/payequity/internal/types"
	"github.com/ginjaninja78/payequity/internal/validation"
	"github.com/ginjaninja78/payequity/pkg/utils"
)

// maxReportedErrors caps the row problems echoed in a response; the full
// list is in the spreadsheet and the log file.
const maxReportedErrors = 100

// ProcessRequest holds the form fields of an upload.
type ProcessRequest struct {
	Password string `form:"password" validate:"max=256"`
	Format   string `form:"format" validate:"omitempty,max=64"`
	Report   string `form:"report" validate:"omitempty,max=32"`
	DryRun   bool   `form:"dry_run"`
}

// ProcessResponse is returned by a successful run.
type ProcessResponse struct {
	File       string        `json:"file"`
	Layout     string        `json:"layout"`
	Report     string        `json:"report"`
	Stats      StatsResponse `json:"stats"`
	OverallGap string        `json:"overall_gap"`
	Errors     []ErrorItem   `json:"errors,omitempty"`
	Downloads  Downloads     `json:"downloads"`
}

// StatsResponse mirrors pipeline.Stats.
type StatsResponse struct {
	RowsRead         int   `json:"rows_read"`
	Records          int   `json:"records"`
	Dropped          int   `json:"dropped"`
	Skipped          int   `json:"skipped"`
	Excluded         int   `json:"excluded"`
	SuppressedGroups int   `json:"suppressed_groups"`
	ValidationErrors int   `json:"validation_errors"`
	Warnings         int   `json:"warnings"`
	DurationMS       int64 `json:"duration_ms"`
}

// ErrorItem is one row problem.
type ErrorItem struct {
	Row      int    `json:"row"`
	Employee string `json:"employee,omitempty"`
	Field    string `json:"field"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// Downloads names the artifacts available under /api/v1/files/.
type Downloads struct {
	Spreadsheet string `json:"spreadsheet,omitempty"`
	Report      string `json:"report,omitempty"`
	ErrorLog    string `json:"error_log,omitempty"`
}

// process handles POST /api/v1/process.
func (s *Server) process(c *fiber.Ctx) error {
	start := time.Now()

	var req ProcessRequest
	if err := c.BodyParser(&req); err != nil {
		s.metrics.observe(outcomeInvalid, 0, time.Since(start))
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Code: "INVALID_BODY", Message: "malformed form data"})
	}
	errs := validation.ValidateStruct(req)
	if _, ok := types.ParseReportType(req.Report); !ok {
		errs = append(errs, &validation.ValidationError{
			Field:    "Report",
			Value:    req.Report,
			Rule:     "report_type",
			Message:  "report must be consolidated, mean, median or complements (or CONSOLIDADO, PROMEDIO, MEDIANA, COMPLEMENTOS)",
			Severity: validation.SeverityError,
		})
	}
	if len(errs) > 0 {
		s.metrics.observe(outcomeInvalid, 0, time.Since(start))
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Code:    "VALIDATION",
			Message: "invalid options",
			Details: errorItems(errs),
		})
	}

	header, err := c.FormFile("file")
	if err != nil {
		s.metrics.observe(outcomeInvalid, 0, time.Since(start))
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Code: "MISSING_FILE", Message: "file is required"})
	}
	file, err := header.Open()
	if err != nil {
		return err
	}
	data, err := io.ReadAll(file)
	file.Close()
	if err != nil {
		return err
	}

	result, err := s.pipeline.Run(c.UserContext(), pipeline.Input{
		Name:     filepath.Base(header.Filename),
		Data:     data,
		Password: req.Password,
		Format:   req.Format,
		Report:   req.Report,
		DryRun:   req.DryRun,
	})
	if err != nil {
		status, outcome, code := classify(err)
		s.metrics.observe(outcome, 0, time.Since(start))
		if status >= fiber.StatusInternalServerError {
			s.log.Error().Err(err).Str("file", header.Filename).Msg("Processing failed")
		} else {
			s.log.Info().Err(err).Str("file", header.Filename).Msg("Upload rejected")
		}
		return c.Status(status).JSON(ErrorResponse{Code: code, Message: err.Error()})
	}

	s.metrics.observe(outcomeSuccess, result.Stats.RowsRead, time.Since(start))

	resp := ProcessResponse{
		File:       header.Filename,
		Layout:     result.Profile,
		Report:     string(result.Report),
		OverallGap: report.FormatGap(result.Model.OverallGap),
		Stats: StatsResponse{
			RowsRead:         result.Stats.RowsRead,
			Records:          result.Stats.Records,
			Dropped:          result.Stats.Dropped,
			Skipped:          result.Stats.Skipped,
			Excluded:         result.Stats.Excluded,
			SuppressedGroups: result.Model.Totals.SuppressedGroups,
			ValidationErrors: result.Model.Totals.ValidationErrors,
			Warnings:         result.Stats.Warnings,
			DurationMS:       result.Stats.Duration.Milliseconds(),
		},
		Errors: errorItems(result.Errors),
		Downloads: Downloads{
			Spreadsheet: baseName(result.SpreadsheetPath),
			Report:      baseName(result.ReportPath),
			ErrorLog:    baseName(result.ErrorLogPath),
		},
	}
	return c.JSON(resp)
}

// download handles GET /api/v1/files/:name.
func (s *Server) download(c *fiber.Ctx) error {
	name := c.Params("name")
	path, err := s.pipeline.Files().ResolveOutputFile(name)
	switch {
	case errors.Is(err, utils.ErrUnsafePath):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Code: "BAD_REQUEST", Message: "invalid file name"})
	case errors.Is(err, os.ErrNotExist):
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Code: "NOT_FOUND", Message: "file not found"})
	case err != nil:
		return err
	}
	return c.Download(path, name)
}

// classify maps a pipeline error onto status, metric outcome and code.
func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, pipeline.ErrInvalidInput):
		return fiber.StatusBadRequest, outcomeInvalid, "VALIDATION"
	case errors.Is(err, types.ErrFormat):
		return fiber.StatusBadRequest, outcomeFormat, "FORMAT"
	case errors.Is(err, types.ErrDecryption):
		return fiber.StatusUnprocessableEntity, outcomeDecryption, "DECRYPTION"
	case errors.Is(err, types.ErrRender):
		return fiber.StatusInternalServerError, outcomeRender, "RENDER"
	}
	return fiber.StatusInternalServerError, outcomeError, "INTERNAL"
}

func errorItems(errs []*validation.ValidationError) []ErrorItem {
	if len(errs) > maxReportedErrors {
		errs = errs[:maxReportedErrors]
	}
	items := make([]ErrorItem, 0, len(errs))
	for _, e := range errs {
		items = append(items, ErrorItem{
			Row:      e.RowNumber,
			Employee: e.EmployeeID,
			Field:    e.Field,
			Severity: e.Severity,
			Message:  e.Message,
		})
	}
	return items
}

func baseName(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Base(path)
}
