// =============================================================================
// Pay Equity Processor - CSV Parser Module
// =============================================================================
//
// This module reads compensation registers exported as delimited text. It
// handles:
//   - Different delimiters (semicolon, comma, pipe, tab)
//   - Multi-line headers
//   - Legacy single-byte encodings (ISO-8859-1, Windows-1252) and UTF-8 BOMs
//   - Quoted fields with embedded delimiters
//
// The result is the same RawTable the workbook parser produces, so the rest
// of the pipeline does not care which format the register came in.
//
// =============================================================================

package csvparser

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/ginjaninja78/payequity/internal/config"
	"github.com/ginjaninja78/payequity/internal/types"
)

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// ParseFile reads a CSV register from disk.
func ParseFile(filePath string, settings config.CSVSettings) (*types.RawTable, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return Parse(filepath.Base(filePath), file, settings)
}

// ParseBytes reads a CSV register held in memory.
func ParseBytes(name string, data []byte, settings config.CSVSettings) (*types.RawTable, error) {
	return Parse(name, bytes.NewReader(data), settings)
}

// Parse reads a CSV register and returns its rows.
//
// PARAMETERS:
//   - name: The file name, used in error messages.
//   - r: The raw file contents.
//   - settings: Delimiter, encoding, header and decimal settings of the
//     layout profile.
//
// RETURNS:
//   - The raw table with one row per non-empty data line.
//   - A *types.FormatError if the file is empty, undecodable or malformed.
//
// PARSING PROCESS:
//  1. Decode the byte stream to UTF-8
//  2. Configure the CSV reader with the delimiter
//  3. Read and merge header rows
//  4. Convert each data row to a map of header -> value
func Parse(name string, r io.Reader, settings config.CSVSettings) (*types.RawTable, error) {
	decoder, err := decoderFor(settings.Encoding)
	if err != nil {
		return nil, &types.FormatError{Source: name, Reason: err.Error()}
	}

	csvReader := csv.NewReader(transform.NewReader(r, decoder))
	configureReader(csvReader, settings)

	allRows, err := csvReader.ReadAll()
	if err != nil {
		return nil, &types.FormatError{Source: name, Reason: "malformed CSV", Err: err}
	}
	if len(allRows) == 0 {
		return nil, &types.FormatError{Source: name, Reason: "CSV file is empty"}
	}

	headerRows := settings.HeaderRows
	if headerRows <= 0 {
		headerRows = 1
	}
	headers, err := extractHeaders(allRows, headerRows)
	if err != nil {
		return nil, &types.FormatError{Source: name, Reason: err.Error()}
	}

	table := &types.RawTable{
		SourceName:  name,
		Headers:     headers,
		DecimalMark: settings.DecimalSeparator,
	}
	for i := headerRows; i < len(allRows); i++ {
		row := allRows[i]
		if isRowEmpty(row) {
			continue
		}
		table.Rows = append(table.Rows, toRawRow(headers, row, i+1))
	}

	return table, nil
}

// decoderFor returns a decoder producing UTF-8 for the named encoding.
// The UTF-8 decoder also drops a leading byte order mark.
func decoderFor(name string) (transform.Transformer, error) {
	var enc encoding.Encoding
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), "_", "-")) {
	case "", "UTF-8", "UTF8":
		enc = unicode.UTF8BOM
	case "ISO-8859-1", "LATIN1", "LATIN-1":
		enc = charmap.ISO8859_1
	case "ISO-8859-15", "LATIN9":
		enc = charmap.ISO8859_15
	case "WINDOWS-1252", "CP1252":
		enc = charmap.Windows1252
	default:
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
	return enc.NewDecoder(), nil
}

// configureReader configures the CSV reader based on the settings.
func configureReader(reader *csv.Reader, settings config.CSVSettings) {
	switch settings.Delimiter {
	case "\\t", "\t", "tab", "TAB":
		reader.Comma = '\t'
	case "|", "pipe", "PIPE":
		reader.Comma = '|'
	case ";", "semicolon":
		reader.Comma = ';'
	case ",", "comma":
		reader.Comma = ','
	default:
		if len(settings.Delimiter) > 0 {
			reader.Comma = rune(settings.Delimiter[0])
		} else {
			reader.Comma = ';'
		}
	}

	// Exports often end rows early when trailing cells are blank.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	// Trimming would swallow empty fields of tab-separated rows.
	reader.TrimLeadingSpace = reader.Comma != '\t'
}

// extractHeaders merges the first headerRows rows into one header per column.
//
// Example:
//
//	Row 1: "Complemento", "",       "Salario"
//	Row 2: "PS1",         "PS2",    "base"
//	Result: "Complemento PS1", "PS2", "Salario base"
func extractHeaders(allRows [][]string, headerRows int) ([]string, error) {
	if len(allRows) < headerRows {
		return nil, fmt.Errorf("file has fewer rows than header_rows setting")
	}

	if headerRows == 1 {
		return cleanHeaders(allRows[0]), nil
	}

	maxCols := 0
	for i := 0; i < headerRows; i++ {
		if len(allRows[i]) > maxCols {
			maxCols = len(allRows[i])
		}
	}

	headers := make([]string, maxCols)
	for col := 0; col < maxCols; col++ {
		var parts []string
		for row := 0; row < headerRows; row++ {
			if col < len(allRows[row]) {
				if value := strings.TrimSpace(allRows[row][col]); value != "" {
					parts = append(parts, value)
				}
			}
		}
		headers[col] = strings.Join(parts, " ")
	}

	return cleanHeaders(headers), nil
}

// cleanHeaders trims headers, names blank ones Column_N and suffixes
// duplicates with .1, .2.
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	seen := make(map[string]int, len(headers))

	for i, header := range headers {
		header = strings.TrimSpace(header)
		if header == "" {
			header = fmt.Sprintf("Column_%d", i+1)
		}
		if n, dup := seen[header]; dup {
			seen[header] = n + 1
			header = fmt.Sprintf("%s.%d", header, n+1)
		} else {
			seen[header] = 0
		}
		cleaned[i] = header
	}

	return cleaned
}

func toRawRow(headers, row []string, number int) types.RawRow {
	out := types.RawRow{Number: number, Cells: make(map[string]string, len(headers))}
	for colIndex, header := range headers {
		if colIndex < len(row) {
			out.Cells[header] = strings.TrimSpace(row[colIndex])
		} else {
			out.Cells[header] = ""
		}
	}
	return out
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
