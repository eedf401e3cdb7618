// =============================================================================
// Pay Equity Processor - XLSX Workbook Parser
// =============================================================================
//
// This module reads the compensation register workbook. It is responsible for:
//   - Opening plain and password-protected workbooks
//   - Locating the data sheet (default "BASE GENERAL")
//   - Turning the sheet into an ordered header -> value row set
//   - Reading the complement configuration sheets
//
// WORKBOOK STRUCTURE:
//
//   BASE GENERAL (required)
//   | ... | Reg. | Orden | Sexo | Grupo profesional | Salario base ... | PS1 ... | PE1 ... |
//
//   COMPLEMENTOS SALARIALES / COMPLEMENTOS EXTRASALARIALES (optional)
//   | Cod | Nombre          | ¿Es Normalizable? | ¿Es Anualizable? |
//   | PS1 | Plus convenio   | Sí                | No               |
//
// ENCRYPTION:
//   Protected workbooks are OLE2 compound files carrying an EncryptionInfo
//   stream. A missing or wrong password is a DecryptionError; the caller
//   never receives a partial table.
//
// =============================================================================

package xlsxparser

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/payequity/internal/types"
	"github.com/ginjaninja78/payequity/internal/validation"
)

// =============================================================================
// OPTIONS
// =============================================================================

// DefaultSheet is the data sheet of the compensation register.
const DefaultSheet = "BASE GENERAL"

// Configuration sheet names and the complement kind each one declares.
var configSheets = []struct {
	Name string
	Kind types.ComplementKind
}{
	{"COMPLEMENTOS SALARIALES", types.ComplementSalary},
	{"COMPLEMENTOS EXTRASALARIALES", types.ComplementExtra},
}

// ConfigColumns names the headers of the configuration sheets.
type ConfigColumns struct {
	Code         string
	Name         string
	Normalizable string
	Annualizable string
}

// DefaultConfigColumns returns the headers used by the register template.
func DefaultConfigColumns() ConfigColumns {
	return ConfigColumns{
		Code:         "Cod",
		Name:         "Nombre",
		Normalizable: "¿Es Normalizable?",
		Annualizable: "¿Es Anualizable?",
	}
}

// Options controls how a workbook is read.
type Options struct {
	// Password opens protected workbooks. Ignored for plain ones.
	Password string

	// Sheet is the data sheet name. Default: "BASE GENERAL".
	Sheet string

	// ConfigColumns overrides the configuration sheet headers.
	ConfigColumns *ConfigColumns
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// ParseFile reads a workbook from disk.
func ParseFile(path string, opts Options) (*types.RawTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workbook: %w", err)
	}
	return Parse(filepath.Base(path), data, opts)
}

// Parse reads a workbook held in memory.
//
// PARAMETERS:
//   - name: The file name, used in error messages.
//   - data: The workbook bytes.
//   - opts: Password and sheet settings.
//
// RETURNS:
//   - The raw table of the data sheet, with complement rules attached.
//   - A *types.FormatError if the file is not a workbook or the sheet is missing.
//   - A *types.DecryptionError if the password is missing or wrong.
func Parse(name string, data []byte, opts Options) (*types.RawTable, error) {
	if opts.Sheet == "" {
		opts.Sheet = DefaultSheet
	}

	f, err := open(name, data, opts.Password)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheetName, ok := findSheet(f, opts.Sheet)
	if !ok {
		return nil, &types.FormatError{
			Source: name,
			Reason: fmt.Sprintf("required sheet %q not found (sheets: %s)", opts.Sheet, strings.Join(f.GetSheetList(), ", ")),
		}
	}

	// Raw values keep numbers unformatted and dates as serials.
	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &types.FormatError{Source: name, Reason: "cannot read sheet " + sheetName, Err: err}
	}
	if len(rows) == 0 {
		return nil, &types.FormatError{Source: name, Reason: fmt.Sprintf("sheet %q is empty", sheetName)}
	}

	table := &types.RawTable{
		SourceName: name,
		SheetName:  sheetName,
		Headers:    cleanHeaders(rows[0]),
	}

	for i := 1; i < len(rows); i++ {
		if isRowEmpty(rows[i]) {
			continue
		}
		table.Rows = append(table.Rows, toRawRow(table.Headers, rows[i], i+1))
	}

	columns := DefaultConfigColumns()
	if opts.ConfigColumns != nil {
		columns = *opts.ConfigColumns
	}
	rules, err := parseComplementRules(f, columns)
	if err != nil {
		return nil, &types.FormatError{Source: name, Reason: "invalid complement configuration", Err: err}
	}
	table.ComplementRules = rules

	return table, nil
}

// open classifies open failures into format and decryption errors.
func open(name string, data []byte, password string) (*excelize.File, error) {
	encrypted := IsEncrypted(data)
	if !encrypted && !isZip(data) {
		if isOLE(data) {
			return nil, &types.FormatError{Source: name, Reason: "legacy .xls workbooks are not supported, save as .xlsx"}
		}
		return nil, &types.FormatError{Source: name, Reason: "not an xlsx workbook"}
	}
	if encrypted && password == "" {
		return nil, &types.DecryptionError{Source: name}
	}

	f, err := excelize.OpenReader(bytes.NewReader(data), excelize.Options{Password: password})
	if err != nil {
		if encrypted || errors.Is(err, excelize.ErrWorkbookPassword) {
			return nil, &types.DecryptionError{Source: name, PasswordSet: password != "", Err: err}
		}
		return nil, &types.FormatError{Source: name, Reason: "cannot open workbook", Err: err}
	}
	return f, nil
}

// =============================================================================
// FILE SIGNATURES
// =============================================================================

var (
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
	zipMagic = []byte{'P', 'K', 0x03, 0x04}

	// "EncryptionInfo" as UTF-16LE, the stream name in protected OOXML files.
	encryptionInfo = utf16le("EncryptionInfo")
)

// IsEncrypted reports whether data is a password-protected OOXML package.
func IsEncrypted(data []byte) bool {
	return isOLE(data) && bytes.Contains(data, encryptionInfo)
}

func isOLE(data []byte) bool { return bytes.HasPrefix(data, oleMagic) }
func isZip(data []byte) bool { return bytes.HasPrefix(data, zipMagic) }

func utf16le(s string) []byte {
	out := make([]byte, 0, len(s)*2)
	for _, r := range s {
		out = append(out, byte(r), 0)
	}
	return out
}

// =============================================================================
// SHEET HELPERS
// =============================================================================

// findSheet matches the sheet name exactly, then ignoring case and padding.
func findSheet(f *excelize.File, want string) (string, bool) {
	sheets := f.GetSheetList()
	for _, s := range sheets {
		if s == want {
			return s, true
		}
	}
	for _, s := range sheets {
		if strings.EqualFold(strings.TrimSpace(s), strings.TrimSpace(want)) {
			return s, true
		}
	}
	return "", false
}

// cleanHeaders trims headers, names blank ones Column_N and suffixes
// duplicates with .1, .2 so no column is lost.
func cleanHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	seen := make(map[string]int, len(raw))
	for i, h := range raw {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Column_%d", i+1)
		}
		if n, dup := seen[h]; dup {
			seen[h] = n + 1
			h = fmt.Sprintf("%s.%d", h, n+1)
		} else {
			seen[h] = 0
		}
		headers[i] = h
	}
	return headers
}

func toRawRow(headers, cells []string, number int) types.RawRow {
	row := types.RawRow{Number: number, Cells: make(map[string]string, len(headers))}
	for i, h := range headers {
		if i < len(cells) {
			row.Cells[h] = strings.TrimSpace(cells[i])
		} else {
			row.Cells[h] = ""
		}
	}
	return row
}

// isRowEmpty checks if a row contains only empty values.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// =============================================================================
// COMPLEMENT CONFIGURATION SHEETS
// =============================================================================

// parseComplementRules reads both configuration sheets. Absent sheets are
// skipped; nil is returned when neither exists.
func parseComplementRules(f *excelize.File, columns ConfigColumns) (map[string]types.ComplementRule, error) {
	var rules map[string]types.ComplementRule

	for _, cs := range configSheets {
		sheetName, ok := findSheet(f, cs.Name)
		if !ok {
			continue
		}
		rows, err := f.GetRows(sheetName)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", sheetName, err)
		}
		if len(rows) < 2 {
			continue
		}
		if rules == nil {
			rules = make(map[string]types.ComplementRule)
		}

		idx := headerIndex(rows[0])
		codeCol, hasCode := idx[strings.ToLower(columns.Code)]
		nameCol, hasName := idx[strings.ToLower(columns.Name)]
		if !hasCode && !hasName {
			return nil, fmt.Errorf("sheet %s needs a %q or %q column", sheetName, columns.Code, columns.Name)
		}
		normCol, hasNorm := idx[strings.ToLower(columns.Normalizable)]
		annCol, hasAnn := idx[strings.ToLower(columns.Annualizable)]

		for _, row := range rows[1:] {
			code, name := "", ""
			if hasCode {
				code = cell(row, codeCol)
			}
			if hasName {
				name = cell(row, nameCol)
			}
			if code == "" {
				// Some exports only carry "A210-Plus idiomas" in the name column.
				code = name
			}
			if code == "" {
				continue
			}

			code = types.ComplementCode(code)
			if types.IsDigits(code) {
				if cs.Kind == types.ComplementExtra {
					code = "PE" + code
				} else {
					code = "PS" + code
				}
			}

			rule := types.ComplementRule{Code: code, Name: name, Kind: cs.Kind}
			if hasNorm {
				rule.Normalizable = validation.IsPositiveResponse(cell(row, normCol))
			}
			if hasAnn {
				rule.Annualizable = validation.IsPositiveResponse(cell(row, annCol))
			}
			rules[code] = rule
		}
	}

	return rules, nil
}

func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func cell(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}
