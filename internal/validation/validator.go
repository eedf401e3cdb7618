// =============================================================================
// Pay Equity Processor - Validation Engine
// =============================================================================
//
// This module provides the row-level validation used by the normalizer and
// the struct validation used for configuration and upload options.
//
// ERROR HANDLING:
//   - Errors are collected, not thrown immediately
//   - Each error carries its context (row, employee, field, value)
//   - Errors can be warnings (row kept) or errors (row dropped)
//   - FormatErrors / WriteErrorLog render the summary shown after a run
//
// CELL COERCION:
//   Exports mix raw spreadsheet values ("1234.5"), Spanish formatting
//   ("1.234,56"), English formatting ("1,234.56"), percentages ("50%")
//   and spreadsheet serial dates. The Parse* helpers accept all of them;
//   lone separators are resolved with the layout's decimal mark.
//
// =============================================================================

package validation

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// ValidationError represents a single validation problem in one row.
type ValidationError struct {
	// Severity is "error" (row dropped) or "warning" (row kept).
	Severity string

	// Field is the source column (or canonical field) that failed.
	Field string

	// Value is the offending cell value.
	Value string

	// Rule is the validation rule that was violated.
	Rule string

	// Message is a human-readable error message.
	Message string

	// EmployeeID is the employee identifier of the row, when known.
	EmployeeID string

	// RowNumber is the row number in the source sheet.
	RowNumber int
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	who := ""
	if e.EmployeeID != "" {
		who = fmt.Sprintf(" (employee %s)", e.EmployeeID)
	}
	return fmt.Sprintf("[%s] Row %d%s, Field '%s': %s (value: '%s')",
		strings.ToUpper(e.Severity),
		e.RowNumber,
		who,
		e.Field,
		e.Message,
		e.Value,
	)
}

// =============================================================================
// VALIDATION RESULT
// =============================================================================

// ValidationResult accumulates errors across a run.
type ValidationResult struct {
	// Errors contains all validation errors, including warnings.
	Errors []*ValidationError

	// ErrorCount is the number of row-dropping errors.
	ErrorCount int

	// WarningCount is the number of warnings.
	WarningCount int

	// RowsValidated is the number of rows inspected.
	RowsValidated int
}

// Add records an error and updates the counters.
func (r *ValidationResult) Add(err *ValidationError) {
	if err.Severity == "" {
		err.Severity = SeverityError
	}
	r.Errors = append(r.Errors, err)
	if err.Severity == SeverityWarning {
		r.WarningCount++
	} else {
		r.ErrorCount++
	}
}

// IsValid is true if there are no row-dropping errors.
func (r *ValidationResult) IsValid() bool {
	return r.ErrorCount == 0
}

// =============================================================================
// CELL COERCION
// =============================================================================

// Decimal marks accepted by ParseNumber.
const (
	DecimalComma = ","
	DecimalPoint = "."
)

var (
	dotGrouped   = regexp.MustCompile(`^[+-]?[1-9]\d{0,2}(\.\d{3})+$`)
	commaGrouped = regexp.MustCompile(`^[+-]?[1-9]\d{0,2}(,\d{3})+$`)
)

// ParseNumber coerces a cell to a decimal. Blank cells return (0, false, nil).
//
// PARAMETERS:
//   - value: The raw cell text.
//   - decimalMark: DecimalComma or DecimalPoint when the source locale is
//     known (CSV exports). Empty for spreadsheet cells, whose numeric values
//     are stored raw with a point and never end in a fractional zero.
//
// RETURNS:
//   - The parsed number.
//   - Whether the cell held a value at all.
//   - An error message if the cell is not numeric.
//
// With a known locale, a lone separator that is not the decimal mark is a
// thousands separator when it groups exactly three digits: "20.000" is
// 20000 with DecimalComma and 20 with DecimalPoint.
func ParseNumber(value, decimalMark string) (decimal.Decimal, bool, error) {
	s := strings.TrimSpace(value)
	if s == "" || s == "-" {
		return decimal.Zero, false, nil
	}

	s = strings.NewReplacer(
		"€", "", "$", "", "EUR", "", "%", "",
		" ", "", "\u00a0", "", "\u202f", "", "'", "",
	).Replace(s)

	d, err := decimal.NewFromString(canonicalNumber(s, decimalMark))
	if err != nil {
		return decimal.Zero, true, fmt.Errorf("value '%s' is not a valid number", value)
	}
	return d, true, nil
}

// canonicalNumber rewrites s so that "." is the only separator left.
func canonicalNumber(s, decimalMark string) string {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		// The right-most separator is the decimal mark.
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")

	case lastComma >= 0:
		if strings.Count(s, ",") > 1 || (decimalMark == DecimalPoint && commaGrouped.MatchString(s)) {
			return strings.ReplaceAll(s, ",", "")
		}
		return strings.Replace(s, ",", ".", 1)

	case lastDot >= 0:
		grouping := false
		switch decimalMark {
		case DecimalComma:
			grouping = dotGrouped.MatchString(s)
		case "":
			// A raw cell never ends in a fractional zero, so "20.000" is text.
			grouping = dotGrouped.MatchString(s) && strings.HasSuffix(s, "0")
		}
		if strings.Count(s, ".") > 1 || grouping {
			return strings.ReplaceAll(s, ".", "")
		}
	}
	return s
}

// ParseDate coerces a cell to a date. Numeric cells are spreadsheet serial
// dates; text cells are tried against layouts in order.
func ParseDate(value string, layouts []string) (time.Time, bool, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return time.Time{}, false, nil
	}

	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, true, fmt.Errorf("value '%s' is not a valid date serial", value)
		}
		return t, true, nil
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true, nil
		}
	}
	// Timestamps written by other tools often carry a time part.
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t, true, nil
	}

	return time.Time{}, true, fmt.Errorf("value '%s' is not a valid date", value)
}

// IsPositiveResponse reports whether a configuration cell means "yes".
func IsPositiveResponse(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "sí", "si", "yes", "y", "1", "true":
		return true
	}
	return false
}

// =============================================================================
// STRUCT VALIDATION
// =============================================================================

var structValidator = validator.New()

// ValidateStruct checks `validate` tags and converts failures to
// ValidationErrors so adapters can report them the same way as row errors.
func ValidateStruct(s any) []*ValidationError {
	err := structValidator.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return []*ValidationError{{
			Severity: SeverityError,
			Rule:     "struct",
			Message:  err.Error(),
		}}
	}

	out := make([]*ValidationError, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		msg := fmt.Sprintf("failed '%s' validation", fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("failed '%s=%s' validation", fe.Tag(), fe.Param())
		}
		out = append(out, &ValidationError{
			Severity: SeverityError,
			Field:    fe.Field(),
			Value:    fmt.Sprint(fe.Value()),
			Rule:     fe.Tag(),
			Message:  msg,
		})
	}
	return out
}

// =============================================================================
// REPORTING
// =============================================================================

// FormatErrors formats validation errors for display or logging.
func FormatErrors(errs []*ValidationError) string {
	if len(errs) == 0 {
		return "No validation errors."
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Validation completed with %d issue(s):\n\n", len(errs)))
	for i, err := range errs {
		builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, err.Error()))
	}
	return builder.String()
}

// WriteErrorLog writes validation errors to a log file.
//
// PARAMETERS:
//   - errs: The validation errors to write.
//   - source: The input file the errors belong to, used in the header.
//   - filePath: The path to the output file.
func WriteErrorLog(errs []*ValidationError, source, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create error log: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	fmt.Fprintf(writer, "Pay Equity Processor - Validation Log\n")
	fmt.Fprintf(writer, "Source:    %s\n", source)
	fmt.Fprintf(writer, "Generated: %s\n\n", time.Now().Format("2006-01-02 15:04:05"))
	writer.WriteString(FormatErrors(errs))

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush error log: %w", err)
	}
	return nil
}
