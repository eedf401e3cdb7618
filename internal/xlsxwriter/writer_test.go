package xlsxwriter

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/payequity/internal/config"
	"github.com/ginjaninja78/payequity/internal/equalizer"
	"github.com/ginjaninja78/payequity/internal/normalizer"
	"github.com/ginjaninja78/payequity/internal/testutil"
	"github.com/ginjaninja78/payequity/internal/types"
	"github.com/ginjaninja78/payequity/internal/validation"
	"github.com/ginjaninja78/payequity/internal/xlsxparser"
)

func TestWriteRoundTripRowCount(t *testing.T) {
	table, err := xlsxparser.Parse("r.xlsx", testutil.SampleRegister().Bytes(t, ""), xlsxparser.Options{})
	require.NoError(t, err)
	profiles, err := config.LoadLayoutProfiles("")
	require.NoError(t, err)
	profile, err := profiles.Get("general")
	require.NoError(t, err)

	out, err := normalizer.Normalize(table, profile, nil)
	require.NoError(t, err)
	records, _ := equalizer.Equalize(out.Records)

	var buf bytes.Buffer
	require.NoError(t, Write(records, out.Errors.Errors, &buf, WriteOptions{ComplementHeaders: out.ComplementHeaders}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetData)
	require.NoError(t, err)
	assert.Len(t, rows, 1+out.RowsRead-out.Dropped, "header plus every valid row")

	header := rows[0]
	assert.Equal(t, "Orden", header[0])
	assert.Contains(t, header, "PS1 Plus convenio equiparado")
	assert.Equal(t, "SB+PS+PE", header[len(header)-1])

	first := rows[1]
	assert.Equal(t, "1", first[0])
	assert.Equal(t, "Mujeres", first[3])
	assert.Equal(t, "40000", first[len(first)-1])

	errRows, err := f.GetRows(SheetErrors)
	require.NoError(t, err)
	assert.Len(t, errRows, 2)
	assert.Equal(t, "numeric", errRows[1][4])
}

func TestWriteSkippedRecords(t *testing.T) {
	full := equalizer.EqualizeRecord(types.EmployeeRecord{
		ID: "1", RowNumber: 2, Gender: types.GenderFemale,
		BaseSalary: decimal.NewFromInt(20000), WorkFraction: decimal.NewFromFloat(0.5), MonthsWorked: decimal.NewFromInt(12),
	})
	records, summary := equalizer.Equalize([]types.EmployeeRecord{
		full.EmployeeRecord,
		{ID: "2", RowNumber: 3, Gender: types.GenderMale, BaseSalary: decimal.NewFromInt(15000), WorkFraction: decimal.Zero, MonthsWorked: decimal.NewFromInt(12)},
	})
	require.Equal(t, 1, summary.Skipped)

	var buf bytes.Buffer
	require.NoError(t, Write(records, nil, &buf, DefaultWriteOptions()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetData)
	require.NoError(t, err)
	require.Len(t, rows, 3, "skipped records are written too")

	header := rows[0]
	assert.Equal(t, "Omitido", header[5])
	assert.Equal(t, "No", rows[1][5])
	assert.Equal(t, "40000", rows[1][len(header)-1])

	skipped := rows[2]
	assert.Equal(t, "2", skipped[0])
	assert.Equal(t, "Sí", skipped[5])
	assert.Equal(t, "15000", skipped[indexOf(header, "SB+PS+PE efectivo")], "effective figures are kept")
	assert.Len(t, skipped, indexOf(header, "SB+PS+PE efectivo")+1, "equalized cells are blank")
}

func indexOf(values []string, want string) int {
	for i, v := range values {
		if v == want {
			return i
		}
	}
	return -1
}

func TestWriteWithoutErrorsHasNoErrorSheet(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(nil, nil, &buf, DefaultWriteOptions()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetData}, f.GetSheetList())
}

func TestWriteAttributesAndWarnings(t *testing.T) {
	record := types.EqualizedRecord{
		EmployeeRecord: types.EmployeeRecord{
			ID:           "9",
			Gender:       types.GenderMale,
			WorkFraction: decimal.NewFromInt(1),
			MonthsWorked: decimal.NewFromInt(12),
			Attributes:   map[string]string{"Puesto": "Analista"},
		},
	}
	errs := []*validation.ValidationError{{Severity: validation.SeverityWarning, RowNumber: 3, Field: "Meses"}}

	var buf bytes.Buffer
	require.NoError(t, Write([]types.EqualizedRecord{record}, errs, &buf, WriteOptions{AttributeHeaders: []string{"Puesto"}}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetData)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Puesto", rows[0][len(rows[0])-1])
	assert.Equal(t, "Analista", rows[1][len(rows[1])-1])
	assert.Equal(t, "Hombres", rows[1][3])

	errRows, err := f.GetRows(SheetErrors)
	require.NoError(t, err)
	assert.Equal(t, "warning", errRows[1][5])
}
