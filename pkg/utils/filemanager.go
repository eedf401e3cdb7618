// =============================================================================
// Pay Equity Processor - File Manager Utility
// =============================================================================
//
// This module provides file management utilities for the processor:
//   - Input discovery (workbooks and CSV exports in a directory)
//   - Output naming from the configured name format
//   - Per-run temporary workspaces
//   - Publishing artifacts into the output directory
//   - Batch summary logs
//   - Retention cleanup of the output directory
//
// =============================================================================

package utils

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles file operations for the processor.
type FileManager struct {
	// InputDir is scanned when a batch run names no directory.
	InputDir string

	// OutputDir receives every published artifact.
	OutputDir string

	// NameFormat is the output file name format, see GenerateOutputFileName.
	NameFormat string
}

// NewFileManager creates a new FileManager with the specified directories.
func NewFileManager(inputDir, outputDir, nameFormat string) *FileManager {
	if nameFormat == "" {
		nameFormat = "{name}_{kind}_{timestamp}.{ext}"
	}
	return &FileManager{
		InputDir:   inputDir,
		OutputDir:  outputDir,
		NameFormat: nameFormat,
	}
}

// EnsureDirectories creates the input and output directories.
func (fm *FileManager) EnsureDirectories() error {
	for _, dir := range []string{fm.InputDir, fm.OutputDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// =============================================================================
// FILE DISCOVERY
// =============================================================================

// InputExtensions are the file types a batch run picks up.
var InputExtensions = []string{".xlsx", ".xlsm", ".csv"}

// DiscoverInputFiles lists register files in dir (InputDir when empty),
// sorted by path. Office lock files ("~$...") are skipped.
//
// PARAMETERS:
//   - dir: The directory to scan.
//   - recursive: Whether to descend into subdirectories.
func (fm *FileManager) DiscoverInputFiles(dir string, recursive bool) ([]string, error) {
	if dir == "" {
		dir = fm.InputDir
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), "~$") || !hasInputExtension(d.Name()) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan input directory: %w", err)
	}

	sort.Strings(files)
	return files, nil
}

func hasInputExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range InputExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// =============================================================================
// OUTPUT FILE NAMING
// =============================================================================

var unsafeNameChars = regexp.MustCompile(`[^\p{L}\p{N}._-]+`)

// GenerateOutputFileName generates a unique output file name.
//
// PARAMETERS:
//   - format: The format string for the file name.
//     Placeholders:
//     {uuid}      - A random UUID
//     {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
//     {date}      - Current date (YYYYMMDD)
//     {time}      - Current time (HHMMSS)
//     {name}      - Input file name without extension
//     {kind}      - "datos", "informe" or "errores"
//     {ext}       - File extension without dot
//   - params: A map of placeholder values.
//
// EXAMPLE:
//
//	format: "{name}_{kind}_{timestamp}.{ext}"
//	params: {"name": "registro 2024", "kind": "informe", "ext": "pdf"}
//	output: "registro_2024_informe_20240115_143022.pdf"
func GenerateOutputFileName(format string, params map[string]string) string {
	now := time.Now()

	replacements := map[string]string{
		"{uuid}":      uuid.New().String(),
		"{timestamp}": now.Format("20060102_150405"),
		"{date}":      now.Format("20060102"),
		"{time}":      now.Format("150405"),
	}
	for key, value := range params {
		if key == "name" {
			value = SanitizeFileName(value)
		}
		replacements["{"+key+"}"] = value
	}

	result := format
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}

	if ext := params["ext"]; ext != "" && !strings.HasSuffix(strings.ToLower(result), "."+strings.ToLower(ext)) {
		result += "." + ext
	}

	return result
}

// SanitizeFileName reduces s to letters, digits, dot, dash and underscore.
func SanitizeFileName(s string) string {
	s = unsafeNameChars.ReplaceAllString(strings.TrimSpace(s), "_")
	s = strings.Trim(s, "._")
	if s == "" {
		return "registro"
	}
	return s
}

// OutputName returns the output file name of one artifact of an input file.
func (fm *FileManager) OutputName(inputName, kind, ext string) string {
	base := strings.TrimSuffix(filepath.Base(inputName), filepath.Ext(inputName))
	return GenerateOutputFileName(fm.NameFormat, map[string]string{
		"name": base,
		"kind": kind,
		"ext":  ext,
	})
}

// =============================================================================
// WORKSPACE AND PUBLISHING
// =============================================================================

// TempWorkspace creates a private directory for one run. The returned
// cleanup removes it and everything in it; it is safe to call twice.
func TempWorkspace(prefix string) (string, func(), error) {
	dir, err := os.MkdirTemp("", prefix)
	if err != nil {
		return "", func() {}, fmt.Errorf("failed to create workspace: %w", err)
	}
	return dir, func() { _ = os.RemoveAll(dir) }, nil
}

// Publish copies src into dir (OutputDir when empty) under name.
//
// RETURNS:
//   - The path of the published file.
func (fm *FileManager) Publish(src, dir, name string) (string, error) {
	if dir == "" {
		dir = fm.OutputDir
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	dst := filepath.Join(dir, name)
	if err := copyFile(src, dst); err != nil {
		return "", fmt.Errorf("failed to publish %s: %w", name, err)
	}
	return dst, nil
}

// ErrUnsafePath is returned for download names that would leave the output directory.
var ErrUnsafePath = errors.New("unsafe file name")

// ResolveOutputFile maps a user-supplied file name to a path inside OutputDir.
func (fm *FileManager) ResolveOutputFile(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return "", ErrUnsafePath
	}
	path := filepath.Join(fm.OutputDir, name)
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", ErrUnsafePath
	}
	return path, nil
}

// =============================================================================
// PROCESSING SUMMARY
// =============================================================================

// ProcessingSummary contains summary information about a batch run.
type ProcessingSummary struct {
	StartTime        time.Time
	EndTime          time.Time
	TotalFiles       int
	SuccessfulFiles  int
	FailedFiles      int
	TotalRows        int
	TotalRecords     int
	ValidationErrors int
	ProcessedFiles   []ProcessedFileInfo
	FailedFilesList  []FailedFileInfo
}

// ProcessedFileInfo contains information about a successfully processed file.
type ProcessedFileInfo struct {
	InputFile   string
	DataFile    string
	ReportFile  string
	Rows        int
	Records     int
	ProcessTime time.Duration
}

// FailedFileInfo contains information about a failed file.
type FailedFileInfo struct {
	InputFile    string
	ErrorMessage string
	ErrorType    string
}

// WriteSummaryLog writes a batch summary to the output directory.
//
// RETURNS:
//   - The path to the summary file.
func WriteSummaryLog(summary ProcessingSummary, outputDir string) (string, error) {
	timestamp := time.Now().Format("20060102_150405")
	summaryPath := filepath.Join(outputDir, fmt.Sprintf("processing_summary_%s.txt", timestamp))

	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	duration := summary.EndTime.Sub(summary.StartTime)
	fmt.Fprintf(writer, "Pay Equity Processor - Processing Summary\n"+
		"================================================================================\n\n"+
		"Run Information:\n"+
		"  Start Time:     %s\n"+
		"  End Time:       %s\n"+
		"  Duration:       %s\n\n"+
		"Statistics:\n"+
		"  Total Files:        %d\n"+
		"  Successful:         %d\n"+
		"  Failed:             %d\n"+
		"  Total Rows:         %d\n"+
		"  Total Records:      %d\n"+
		"  Validation Errors:  %d\n\n",
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Format("2006-01-02 15:04:05"),
		duration.Round(time.Millisecond).String(),
		summary.TotalFiles,
		summary.SuccessfulFiles,
		summary.FailedFiles,
		summary.TotalRows,
		summary.TotalRecords,
		summary.ValidationErrors)

	if len(summary.ProcessedFiles) > 0 {
		writer.WriteString("Successful Files:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for _, pf := range summary.ProcessedFiles {
			fmt.Fprintf(writer, "  Input:        %s\n", pf.InputFile)
			fmt.Fprintf(writer, "  Data:         %s\n", pf.DataFile)
			fmt.Fprintf(writer, "  Report:       %s\n", pf.ReportFile)
			fmt.Fprintf(writer, "  Rows:         %d\n", pf.Rows)
			fmt.Fprintf(writer, "  Records:      %d\n", pf.Records)
			fmt.Fprintf(writer, "  Process Time: %s\n\n", pf.ProcessTime.Round(time.Millisecond).String())
		}
	}

	if len(summary.FailedFilesList) > 0 {
		writer.WriteString("Failed Files:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for _, ff := range summary.FailedFilesList {
			fmt.Fprintf(writer, "  File:  %s\n", ff.InputFile)
			fmt.Fprintf(writer, "  Type:  %s\n", ff.ErrorType)
			fmt.Fprintf(writer, "  Error: %s\n\n", ff.ErrorMessage)
		}
	}

	writer.WriteString("================================================================================\n" +
		"End of Summary\n")

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush summary file: %w", err)
	}

	return summaryPath, nil
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}

	return destFile.Sync()
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// CleanOldFiles removes regular files in dir older than maxAge. It does not
// descend into subdirectories.
//
// RETURNS:
//   - The number of files removed.
func CleanOldFiles(dir string, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	removed := 0

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to clean %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
				return removed, fmt.Errorf("failed to remove %s: %w", entry.Name(), err)
			}
			removed++
		}
	}

	return removed, nil
}
