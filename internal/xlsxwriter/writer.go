// =============================================================================
// Pay Equity Processor - Spreadsheet Writer
// =============================================================================
//
// This module writes the normalized and equalized record set as a workbook
// that can be opened next to the report:
//
//   DATOS_PROCESADOS
//   | Orden | Fila | Grupo | Sexo | Excluido | Omitido | % jornada | Meses |
//   | Salario base | <complement columns as read> | SB+PS efectivo |
//   | SB+PS+PE efectivo | SB equiparado | <complement> equiparado ... |
//   | PS equiparado | PE equiparado | SB+PS | SB+PS+PE | <other source columns> |
//
//   ERRORES (only when there are validation problems)
//   | Fila | Empleado | Campo | Valor | Regla | Gravedad | Mensaje |
//
// One data row is written per record, so the row count is the input rows
// minus the rows dropped by validation. Records that could not be equalized
// are marked Omitido and their equalized cells are left blank.
//
// =============================================================================

package xlsxwriter

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/payequity/internal/types"
	"github.com/ginjaninja78/payequity/internal/validation"
)

// Sheet names of the output workbook.
const (
	SheetData   = "DATOS_PROCESADOS"
	SheetErrors = "ERRORES"
)

// =============================================================================
// WRITE OPTIONS
// =============================================================================

// WriteOptions contains options for workbook generation.
type WriteOptions struct {
	// ComplementHeaders fixes the complement column order. When empty the
	// order is taken from the records.
	ComplementHeaders []string

	// AttributeHeaders lists extra source columns copied at the end.
	AttributeHeaders []string

	// Decimals is the rounding of equalized amounts. Default: 2.
	Decimals int32
}

// DefaultWriteOptions returns the default write options.
func DefaultWriteOptions() WriteOptions {
	return WriteOptions{Decimals: 2}
}

// =============================================================================
// WRITER
// =============================================================================

// Write writes the records and validation errors to w as an xlsx workbook.
//
// PARAMETERS:
//   - records: Equalized records in source order, skipped ones included.
//   - errs: Row validation errors; the ERRORES sheet is added when non-empty.
//   - w: The destination.
//   - opts: Column and rounding options.
func Write(records []types.EqualizedRecord, errs []*validation.ValidationError, w io.Writer, opts WriteOptions) error {
	if opts.Decimals <= 0 {
		opts.Decimals = 2
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetData); err != nil {
		return fmt.Errorf("failed to create data sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"1E4389"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeData(f, records, opts, headerStyle); err != nil {
		return err
	}

	if len(errs) > 0 {
		if err := writeErrors(f, errs, headerStyle); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeData(f *excelize.File, records []types.EqualizedRecord, opts WriteOptions, headerStyle int) error {
	complements := opts.ComplementHeaders
	if len(complements) == 0 {
		complements = complementHeaders(records)
	}

	header := []any{"Orden", "Fila", "Grupo profesional", "Sexo", "Excluido", "Omitido", "% jornada", "Meses trabajados", "Salario base"}
	header = append(header, toAny(complements)...)
	header = append(header, "SB+PS efectivo", "SB+PS+PE efectivo", "Salario base equiparado")
	for _, h := range complements {
		header = append(header, h+" equiparado")
	}
	header = append(header, "Complementos salariales equiparados", "Complementos extrasalariales equiparados", "SB+PS", "SB+PS+PE")
	header = append(header, toAny(opts.AttributeHeaders)...)

	sw, err := f.NewStreamWriter(SheetData)
	if err != nil {
		return fmt.Errorf("failed to open data sheet: %w", err)
	}
	if err := sw.SetColWidth(1, len(header), 16); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}
	if err := sw.SetRow("A1", styled(header, headerStyle)); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	round := func(d decimal.Decimal) float64 { return d.Round(opts.Decimals).InexactFloat64() }

	for i, r := range records {
		byName := make(map[string]types.EqualizedComplement, len(r.EqualizedComplements))
		for _, c := range r.EqualizedComplements {
			byName[c.Name] = c
		}

		row := []any{
			r.ID,
			r.RowNumber,
			r.Category,
			r.Gender.Label(),
			yesNo(r.Excluded),
			yesNo(r.Skipped),
			r.WorkFraction.InexactFloat64(),
			r.MonthsWorked.Round(2).InexactFloat64(),
			r.BaseSalary.InexactFloat64(),
		}
		for _, h := range complements {
			row = append(row, byName[h].Amount.InexactFloat64())
		}
		row = append(row, round(r.EffectiveBasePlusSalary), round(r.EffectiveSalary))

		equalized := []any{round(r.EqualizedBase)}
		for _, h := range complements {
			equalized = append(equalized, round(byName[h].Equalized))
		}
		equalized = append(equalized,
			round(r.SalaryComplements),
			round(r.ExtraComplements),
			round(r.BasePlusSalary),
			round(r.EqualizedSalary),
		)
		if r.Skipped {
			equalized = make([]any, len(equalized))
		}
		row = append(row, equalized...)
		for _, h := range opts.AttributeHeaders {
			row = append(row, r.Attributes[h])
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush data sheet: %w", err)
	}
	return nil
}

func writeErrors(f *excelize.File, errs []*validation.ValidationError, headerStyle int) error {
	if _, err := f.NewSheet(SheetErrors); err != nil {
		return fmt.Errorf("failed to create errors sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(SheetErrors)
	if err != nil {
		return fmt.Errorf("failed to open errors sheet: %w", err)
	}
	header := []any{"Fila", "Empleado", "Campo", "Valor", "Regla", "Gravedad", "Mensaje"}
	if err := sw.SetColWidth(1, len(header), 18); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}
	if err := sw.SetRow("A1", styled(header, headerStyle)); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, e := range errs {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{e.RowNumber, e.EmployeeID, e.Field, e.Value, e.Rule, e.Severity, e.Message}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("failed to write error row %d: %w", i+2, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush errors sheet: %w", err)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// complementHeaders lists complement column names in first-seen order.
func complementHeaders(records []types.EqualizedRecord) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range records {
		for _, c := range r.EqualizedComplements {
			if !seen[c.Name] {
				seen[c.Name] = true
				out = append(out, c.Name)
			}
		}
	}
	return out
}

func styled(values []any, style int) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = excelize.Cell{StyleID: style, Value: v}
	}
	return out
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func yesNo(b bool) string {
	if b {
		return "Sí"
	}
	return "No"
}
