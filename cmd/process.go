// =============================================================================
// Pay Equity Processor - Process Command
// =============================================================================
//
// This file defines the 'process' command, which runs the pipeline over one
// register file or every register in a directory.
//
// COMMAND USAGE:
//   payequity process [flags]
//
// FLAGS:
//   --file        : A single register to process
//   --dir         : A directory of registers (default: input_dir)
//   --recursive   : Descend into subdirectories of --dir
//   --password    : Workbook password
//   --format      : Layout profile (general, dated, ...)
//   --report      : consolidated, mean, median or complements
//   --output      : Output directory (default: output_dir)
//   --dry-run     : Compute everything but write nothing
//
// Files in a directory are processed concurrently, at most max_concurrency
// at a time. A failure in one file does not stop the others.
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ginjaninja78/payequity/internal/pipeline"
	"github.com/ginjaninja78/payequity/internal/types"
	"github.com/ginjaninja78/payequity/pkg/utils"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var processOpts struct {
	file      string
	dir       string
	recursive bool
	password  string
	format    string
	report    string
	output    string
	dryRun    bool
}

// =============================================================================
// PROCESS COMMAND DEFINITION
// =============================================================================

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Equalize payroll registers and generate the pay gap report",
	Long: `The process command reads one register (--file) or every register in a
directory (--dir, default input_dir), equalizes the salaries and writes the
normalized workbook and the PDF report to the output directory.

Rows that cannot be used are listed in a validation log next to the outputs;
they never stop the run. A file that cannot be opened (wrong password, missing
sheet) fails on its own while the other files continue.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		if processOpts.file != "" && processOpts.dir != "" {
			return fmt.Errorf("--file and --dir are mutually exclusive")
		}
		if processOpts.file != "" && !utils.FileExists(processOpts.file) {
			return fmt.Errorf("file not found: %s", processOpts.file)
		}
		return runProcess(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(processCmd)

	flags := processCmd.Flags()
	flags.StringVar(&processOpts.file, "file", "", "Path to a single register file")
	flags.StringVar(&processOpts.dir, "dir", "", "Directory of register files (default: input_dir)")
	flags.BoolVar(&processOpts.recursive, "recursive", false, "Include subdirectories of --dir")
	flags.StringVar(&processOpts.password, "password", "", "Workbook password")
	flags.StringVar(&processOpts.format, "format", "", "Layout profile (default: default_format)")
	flags.StringVar(&processOpts.report, "report", "", "Report type: consolidated, mean, median or complements")
	flags.StringVar(&processOpts.output, "output", "", "Output directory (default: output_dir)")
	flags.BoolVar(&processOpts.dryRun, "dry-run", false, "Process without writing output files")
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// fileOutcome is the result slot of one file.
type fileOutcome struct {
	path   string
	result *pipeline.Result
	err    error
}

func runProcess(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startTime := time.Now()

	// =========================================================================
	// STEP 1: LOAD CONFIGURATION
	// =========================================================================

	fmt.Println("=== Pay Equity Processor ===")

	a, err := setup()
	if err != nil {
		return err
	}

	// =========================================================================
	// STEP 2: DISCOVER INPUT FILES
	// =========================================================================

	var inputFiles []string
	if processOpts.file != "" {
		inputFiles = []string{processOpts.file}
	} else {
		inputFiles, err = a.pipeline.Files().DiscoverInputFiles(processOpts.dir, processOpts.recursive)
		if err != nil {
			return fmt.Errorf("failed to discover input files: %w", err)
		}
	}

	if len(inputFiles) == 0 {
		fmt.Println("No register files found in the input directory.")
		return nil
	}
	fmt.Printf("Found %d file(s) to process\n", len(inputFiles))

	// =========================================================================
	// STEP 3: PROCESS FILES CONCURRENTLY
	// =========================================================================

	outcomes := make([]fileOutcome, len(inputFiles))

	g := new(errgroup.Group)
	g.SetLimit(a.cfg.MaxConcurrency)

	for i, path := range inputFiles {
		g.Go(func() error {
			result, err := a.pipeline.Run(ctx, pipeline.Input{
				Path:      path,
				Password:  processOpts.password,
				Format:    processOpts.format,
				Report:    processOpts.report,
				OutputDir: processOpts.output,
				DryRun:    processOpts.dryRun,
			})
			outcomes[i] = fileOutcome{path: path, result: result, err: err}
			return nil
		})
	}
	_ = g.Wait()

	// =========================================================================
	// STEP 4: COLLECT RESULTS
	// =========================================================================

	summary := utils.ProcessingSummary{
		StartTime:  startTime,
		TotalFiles: len(inputFiles),
	}

	for _, o := range outcomes {
		name := filepath.Base(o.path)
		if o.err != nil {
			summary.FailedFiles++
			summary.FailedFilesList = append(summary.FailedFilesList, utils.FailedFileInfo{
				InputFile:    o.path,
				ErrorMessage: o.err.Error(),
				ErrorType:    errorType(o.err),
			})
			fmt.Printf("  ✗ %s: %s\n", name, describe(o.err))
			continue
		}

		r := o.result
		summary.SuccessfulFiles++
		summary.TotalRows += r.Stats.RowsRead
		summary.TotalRecords += r.Stats.Records
		summary.ValidationErrors += len(r.Errors)
		summary.ProcessedFiles = append(summary.ProcessedFiles, utils.ProcessedFileInfo{
			InputFile:   o.path,
			DataFile:    r.SpreadsheetPath,
			ReportFile:  r.ReportPath,
			Rows:        r.Stats.RowsRead,
			Records:     r.Stats.Records,
			ProcessTime: r.Stats.Duration,
		})

		fmt.Printf("  ✓ %s: %s\n", name, r.Summary())
		if r.ReportPath != "" {
			fmt.Printf("      report:      %s\n", r.ReportPath)
			fmt.Printf("      spreadsheet: %s\n", r.SpreadsheetPath)
		}
		if r.ErrorLogPath != "" {
			fmt.Printf("      %d row problem(s) logged to %s\n", len(r.Errors), r.ErrorLogPath)
		}
	}

	// =========================================================================
	// STEP 5: PRINT SUMMARY
	// =========================================================================

	summary.EndTime = time.Now()
	fmt.Println("\n=== Processing Complete ===")
	fmt.Printf("Total files:       %d\n", summary.TotalFiles)
	fmt.Printf("Successful:        %d\n", summary.SuccessfulFiles)
	fmt.Printf("Errors:            %d\n", summary.FailedFiles)
	fmt.Printf("Records:           %d\n", summary.TotalRecords)
	fmt.Printf("Row problems:      %d\n", summary.ValidationErrors)
	fmt.Printf("Time elapsed:      %s\n", summary.EndTime.Sub(startTime).Round(time.Millisecond))

	if len(inputFiles) > 1 && !processOpts.dryRun {
		outputDir := processOpts.output
		if outputDir == "" {
			outputDir = a.cfg.OutputDir
		}
		if path, err := utils.WriteSummaryLog(summary, outputDir); err != nil {
			a.log.Warn().Err(err).Msg("Failed to write processing summary")
		} else {
			fmt.Printf("Summary written to %s\n", path)
		}
	}

	if summary.FailedFiles > 0 {
		return fmt.Errorf("%d of %d file(s) failed", summary.FailedFiles, summary.TotalFiles)
	}
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// describe turns a pipeline error into a message for the terminal.
func describe(err error) string {
	var de *types.DecryptionError
	if errors.As(err, &de) {
		if de.PasswordSet {
			return "the password is wrong (use --password or default_password)"
		}
		return "the workbook is password-protected (use --password)"
	}
	return err.Error()
}

// errorType classifies an error for the processing summary.
func errorType(err error) string {
	switch {
	case errors.Is(err, pipeline.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, types.ErrFormat):
		return "format"
	case errors.Is(err, types.ErrDecryption):
		return "decryption"
	case errors.Is(err, types.ErrRender):
		return "render"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	}
	return "error"
}
