// =============================================================================
// Pay Equity Processor - Pipeline Module
// =============================================================================
//
// This module runs one invocation end to end. Both the CLI and the web
// adapter call Run; neither talks to the stages directly.
//
// PROCESSING PIPELINE:
//   1. Resolve the layout profile and report type
//   2. Read the workbook or CSV export
//   3. Normalize rows into employee records
//   4. Equalize compensation to a full-time basis
//   5. Aggregate statistics by category and gender
//   6. Write the spreadsheet and render the report in a temp workspace
//   7. Publish both into the output directory
//   8. Write the validation log when rows had problems
//
// CONCURRENCY:
//   A Pipeline holds only read-only configuration, so one value may serve
//   concurrent Run calls. Each call owns its own workspace.
//
// =============================================================================

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ginjaninja78/payequity/internal/aggregator"
	"github.com/ginjaninja78/payequity/internal/config"
	"github.com/ginjaninja78/payequity/internal/equalizer"
	"github.com/ginjaninja78/payequity/internal/normalizer"
	"github.com/ginjaninja78/payequity/internal/reader"
	"github.com/ginjaninja78/payequity/internal/report"
	"github.com/ginjaninja78/payequity/internal/types"
	"github.com/ginjaninja78/payequity/internal/validation"
	"github.com/ginjaninja78/payequity/internal/xlsxwriter"
	"github.com/ginjaninja78/payequity/pkg/logger"
	"github.com/ginjaninja78/payequity/pkg/utils"
)

// ErrInvalidInput marks requests naming an unknown layout or report type.
var ErrInvalidInput = errors.New("invalid input")

// =============================================================================
// INPUT AND RESULT
// =============================================================================

// Input describes one file to process.
type Input struct {
	// Name is the original file name; its extension selects the parser.
	// Defaults to the base name of Path.
	Name string

	// Path or Data supplies the content. Data wins when both are set.
	Path string
	Data []byte

	Password string

	// Format names the layout profile. Default: config default_format.
	Format string

	// Report is the report type. Default: config default_report.
	Report string

	// OutputDir overrides the configured output directory.
	OutputDir string

	// DryRun stops after aggregation; nothing is written.
	DryRun bool
}

// Stats contains counters about one run.
type Stats struct {
	// RowsRead is the number of data rows after trimming.
	RowsRead int

	// Records is the number of rows that became employee records.
	Records int

	// Dropped rows failed validation.
	Dropped int

	// Ignored rows were trailing or blank rows removed silently.
	Ignored int

	// Skipped records had no usable work fraction. They are written to the
	// spreadsheet but left out of the statistics.
	Skipped int

	// Excluded records are kept in the spreadsheet but left out of statistics.
	Excluded int

	// Warnings is the number of warning-severity problems.
	Warnings int

	Duration time.Duration
}

// Result represents the outcome of processing a single file.
type Result struct {
	InputPath string
	Profile   string
	Report    types.ReportType

	// Published artifacts. Empty on a dry run.
	SpreadsheetPath string
	ReportPath      string

	// ErrorLogPath is set when validation problems were logged.
	ErrorLogPath string

	Stats  Stats
	Errors []*validation.ValidationError
	Model  *types.ReportModel
}

// Summary is a one-line description of the run for terminal output.
func (r *Result) Summary() string {
	gap := report.FormatGap(r.Model.OverallGap)
	return fmt.Sprintf("%d records (%d dropped, %d skipped, %d excluded), overall gap %s",
		r.Stats.Records, r.Stats.Dropped, r.Stats.Skipped, r.Stats.Excluded, gap)
}

// =============================================================================
// PIPELINE
// =============================================================================

// Pipeline wires the processing stages to one configuration.
type Pipeline struct {
	cfg      *config.MainConfig
	profiles config.Profiles
	renderer *report.Renderer
	files    *utils.FileManager
	log      *logger.Logger
}

// New creates a Pipeline. A nil logger discards output.
func New(cfg *config.MainConfig, profiles config.Profiles, log *logger.Logger) *Pipeline {
	if log == nil {
		log = logger.Nop()
	}
	return &Pipeline{
		cfg:      cfg,
		profiles: profiles,
		renderer: report.NewRenderer(cfg.TemplatePath, log),
		files:    utils.NewFileManager(cfg.InputDir, cfg.OutputDir, cfg.OutputNameFormat),
		log:      log,
	}
}

// Files exposes the file manager used for output naming and downloads.
func (p *Pipeline) Files() *utils.FileManager {
	return p.files
}

// Run executes the pipeline for one file.
//
// RETURNS:
//   - The result, including validation problems that did not stop the run.
//   - An error wrapping ErrInvalidInput, a *types.FormatError, a
//     *types.DecryptionError or a *types.RenderError when the run aborts.
//     No artifact is published in that case.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Result, error) {
	start := time.Now()

	name := in.Name
	if name == "" {
		name = filepath.Base(in.Path)
	}
	log := p.log.With(map[string]string{"file": name})

	// =========================================================================
	// STEP 1: RESOLVE OPTIONS
	// =========================================================================

	format := in.Format
	if format == "" {
		format = p.cfg.DefaultFormat
	}
	profile, err := p.profiles.Get(format)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	reportName := in.Report
	if reportName == "" {
		reportName = p.cfg.DefaultReport
	}
	reportType, ok := types.ParseReportType(reportName)
	if !ok {
		return nil, fmt.Errorf("%w: unknown report type %q", ErrInvalidInput, reportName)
	}

	result := &Result{
		InputPath: in.Path,
		Profile:   profile.Name,
		Report:    reportType,
	}
	if result.InputPath == "" {
		result.InputPath = name
	}

	log.Info().Str("layout", profile.Name).Str("report", string(reportType)).Msg("Processing file")

	// =========================================================================
	// STEP 2: READ
	// =========================================================================

	table, err := reader.Read(ctx, reader.Source{Name: name, Path: in.Path, Data: in.Data},
		reader.OptionsFor(profile, in.Password, p.cfg.DefaultPassword))
	if err != nil {
		return nil, err
	}
	log.Debug().Int("rows", len(table.Rows)).Int("rules", len(table.ComplementRules)).Msg("Read input")

	// =========================================================================
	// STEP 3: NORMALIZE
	// =========================================================================

	out, err := normalizer.Normalize(table, profile, nil)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result.Errors = out.Errors.Errors
	result.Stats.RowsRead = out.RowsRead
	result.Stats.Records = len(out.Records)
	result.Stats.Dropped = out.Dropped
	result.Stats.Ignored = out.Ignored
	result.Stats.Warnings = out.Errors.WarningCount

	if len(out.Errors.Errors) > 0 {
		for _, ve := range out.Errors.Errors {
			log.Debug().Int("row", ve.RowNumber).Str("field", ve.Field).Str("severity", ve.Severity).Msg(ve.Message)
		}
		log.Warn().Int("errors", out.Errors.ErrorCount).Int("warnings", out.Errors.WarningCount).Msg("Rows with validation problems")
	}

	// =========================================================================
	// STEP 4: EQUALIZE
	// =========================================================================

	records, summary := equalizer.Equalize(out.Records)
	result.Stats.Skipped = summary.Skipped
	if summary.Skipped > 0 {
		log.Warn().Ints("rows", summary.SkippedRows).Msg("Records without a usable work fraction were skipped")
	}

	// =========================================================================
	// STEP 5: AGGREGATE
	// =========================================================================

	model := aggregator.Aggregate(records, aggregator.Options{
		ReportType:   reportType,
		MinGroupSize: p.cfg.MinGroupSize,
		SourceName:   name,
		Dimensions:   out.Dimensions,
	})
	model.Totals.ValidationErrors = out.Errors.ErrorCount
	result.Model = model
	result.Stats.Excluded = model.Totals.Excluded

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if in.DryRun {
		result.Stats.Duration = time.Since(start)
		log.Info().Msg("Dry run, no files written")
		return result, nil
	}

	// =========================================================================
	// STEP 6: WRITE ARTIFACTS
	// =========================================================================

	workspace, cleanup, err := utils.TempWorkspace("payequity-")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	dataTmp := filepath.Join(workspace, "datos.xlsx")
	opts := xlsxwriter.DefaultWriteOptions()
	opts.ComplementHeaders = out.ComplementHeaders
	opts.AttributeHeaders = attributeHeaders(out)
	if err := writeFile(dataTmp, func(f *os.File) error {
		return xlsxwriter.Write(records, out.Errors.Errors, f, opts)
	}); err != nil {
		return nil, fmt.Errorf("failed to write spreadsheet: %w", err)
	}

	reportTmp := filepath.Join(workspace, "informe.pdf")
	if err := writeFile(reportTmp, func(f *os.File) error {
		return p.renderer.Render(model, f)
	}); err != nil {
		return nil, err
	}

	// =========================================================================
	// STEP 7: PUBLISH
	// =========================================================================

	outputDir := in.OutputDir
	if outputDir == "" {
		outputDir = p.cfg.OutputDir
	}

	dataName := p.files.OutputName(name, "datos", "xlsx")
	if result.SpreadsheetPath, err = p.files.Publish(dataTmp, outputDir, dataName); err != nil {
		return nil, err
	}
	if result.ReportPath, err = p.files.Publish(reportTmp, outputDir, p.files.OutputName(name, "informe", "pdf")); err != nil {
		if rmErr := os.Remove(result.SpreadsheetPath); rmErr != nil {
			log.Warn().Err(rmErr).Str("path", result.SpreadsheetPath).Msg("Failed to remove partial output")
		}
		return nil, err
	}

	// =========================================================================
	// STEP 8: VALIDATION LOG
	// =========================================================================

	if len(out.Errors.Errors) > 0 {
		logPath := filepath.Join(outputDir, strings.TrimSuffix(dataName, filepath.Ext(dataName))+"_errors.log")
		if err := validation.WriteErrorLog(out.Errors.Errors, name, logPath); err != nil {
			log.Warn().Err(err).Msg("Failed to write validation log")
		} else {
			result.ErrorLogPath = logPath
		}
	}

	result.Stats.Duration = time.Since(start)
	log.Info().
		Int("records", result.Stats.Records).
		Int("dropped", result.Stats.Dropped).
		Int("skipped", result.Stats.Skipped).
		Int("excluded", result.Stats.Excluded).
		Str("report", result.ReportPath).
		Dur("duration", result.Stats.Duration).
		Msg("Processing complete")

	return result, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// writeFile creates path and hands it to write, closing it afterwards.
func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// attributeHeaders lists the descriptive source columns carried on the
// records, in sheet order.
func attributeHeaders(out *normalizer.Output) []string {
	if len(out.Records) == 0 {
		return nil
	}
	var headers []string
	for _, h := range out.Headers {
		if _, ok := out.Records[0].Attributes[h]; ok {
			headers = append(headers, h)
		}
	}
	return headers
}
