// Package testutil builds register workbooks for package tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// Workbook describes a register workbook to generate.
type Workbook struct {
	Sheet   string
	Headers []string
	Rows    [][]any

	// SalaryRules and ExtraRules become the configuration sheets when set.
	// Each row is Cod, Nombre, ¿Es Normalizable?, ¿Es Anualizable?.
	SalaryRules [][]any
	ExtraRules  [][]any
}

// SampleRegister is a small general-layout register:
//   - category A has two women and two men
//   - category B has one man (suppressed) and one excluded woman
//   - one row has a non-numeric salary
//   - one row has no category
//   - a trailing totals row sits after the last Orden
func SampleRegister() Workbook {
	return Workbook{
		Sheet: "BASE GENERAL",
		Headers: []string{
			"Notas", "Reg.", "Orden", "Sexo", "Grupo profesional", "% de jornada",
			"¿Cuántos meses ha trabajado?", "Salario base anual efectivo",
			"PS1 Plus convenio", "PE1 Dietas",
		},
		Rows: [][]any{
			{"", "", 1, "Mujeres", "A", 50, 12, 20000, 0, 0},
			{"", "", 2, "Mujeres", "A", 100, 12, 30000, 1000, 0},
			{"", "", 3, "Hombres", "A", 1, 12, 36000, 2000, 500},
			{"", "", 4, "Hombres", "A", 100, 6, 18000, 0, 0},
			{"", "", 5, "Hombres", "B", 100, 12, 50000, 0, 0},
			{"", "Ex", 6, "Mujeres", "B", 100, 12, 25000, 0, 0},
			{"", "", 7, "Hombres", "A", 100, 12, "abc", 0, 0},
			{"", "", 8, "Mujeres", "", 100, 12, 22000, 0, 0},
			{"Total", "", "", "", "", "", "", 999999, "", ""},
		},
		SalaryRules: [][]any{{"PS1", "Plus convenio", "Sí", "No"}},
		ExtraRules:  [][]any{{1, "Dietas", "No", "No"}},
	}
}

// Save writes the workbook to dir/name, encrypted when password is set.
func (w Workbook) Save(t testing.TB, dir, name, password string) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := w.Sheet
	if sheet == "" {
		sheet = "BASE GENERAL"
	}
	require.NoError(t, f.SetSheetName("Sheet1", sheet))
	writeSheet(t, f, sheet, w.Headers, w.Rows)

	configHeader := []string{"Cod", "Nombre", "¿Es Normalizable?", "¿Es Anualizable?"}
	if len(w.SalaryRules) > 0 {
		_, err := f.NewSheet("COMPLEMENTOS SALARIALES")
		require.NoError(t, err)
		writeSheet(t, f, "COMPLEMENTOS SALARIALES", configHeader, w.SalaryRules)
	}
	if len(w.ExtraRules) > 0 {
		_, err := f.NewSheet("COMPLEMENTOS EXTRASALARIALES")
		require.NoError(t, err)
		writeSheet(t, f, "COMPLEMENTOS EXTRASALARIALES", configHeader, w.ExtraRules)
	}

	path := filepath.Join(dir, name)
	if password != "" {
		require.NoError(t, f.SaveAs(path, excelize.Options{Password: password}))
	} else {
		require.NoError(t, f.SaveAs(path))
	}
	return path
}

// Bytes returns the encoded workbook.
func (w Workbook) Bytes(t testing.TB, password string) []byte {
	t.Helper()
	path := w.Save(t, t.TempDir(), "register.xlsx", password)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func writeSheet(t testing.TB, f *excelize.File, sheet string, headers []string, rows [][]any) {
	t.Helper()
	header := make([]any, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	require.NoError(t, f.SetSheetRow(sheet, "A1", &header))
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow(sheet, cell, &r))
	}
}
