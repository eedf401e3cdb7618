package xlsxparser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/payequity/internal/testutil"
	"github.com/ginjaninja78/payequity/internal/types"
)

func TestParseReadsDataSheetAndRules(t *testing.T) {
	data := testutil.SampleRegister().Bytes(t, "")

	table, err := Parse("registro.xlsx", data, Options{})
	require.NoError(t, err)

	assert.Equal(t, "BASE GENERAL", table.SheetName)
	assert.Equal(t, "registro.xlsx", table.SourceName)
	assert.Equal(t, "Reg.", table.Headers[1])
	require.Len(t, table.Rows, 9)

	first := table.Rows[0]
	assert.Equal(t, 2, first.Number)
	assert.Equal(t, "Mujeres", first.Get("Sexo"))
	assert.Equal(t, "20000", first.Get("Salario base anual efectivo"))
	assert.Equal(t, "Ex", table.Rows[5].Get("Reg."))

	require.Len(t, table.ComplementRules, 2)
	ps1 := table.ComplementRules["PS1"]
	assert.Equal(t, types.ComplementSalary, ps1.Kind)
	assert.True(t, ps1.Normalizable)
	assert.False(t, ps1.Annualizable)

	pe1, ok := table.ComplementRules["PE1"]
	require.True(t, ok, "digit-only codes take the sheet prefix")
	assert.Equal(t, types.ComplementExtra, pe1.Kind)
	assert.False(t, pe1.Normalizable)
}

func TestParseMissingSheetIsFormatError(t *testing.T) {
	wb := testutil.SampleRegister()
	wb.Sheet = "Hoja1"
	data := wb.Bytes(t, "")

	_, err := Parse("otro.xlsx", data, Options{})
	require.Error(t, err)

	var fe *types.FormatError
	require.True(t, errors.As(err, &fe))
	assert.Contains(t, fe.Reason, `"BASE GENERAL"`)
	assert.Contains(t, fe.Reason, "Hoja1")
}

func TestParseSheetNameIgnoresCase(t *testing.T) {
	wb := testutil.SampleRegister()
	wb.Sheet = "Base General "
	data := wb.Bytes(t, "")

	table, err := Parse("a.xlsx", data, Options{})
	require.NoError(t, err)
	assert.Equal(t, "Base General ", table.SheetName)
}

func TestParseNotAWorkbook(t *testing.T) {
	_, err := Parse("notes.xlsx", []byte("just some text"), Options{})
	assert.ErrorIs(t, err, types.ErrFormat)
}

func TestParseEncryptedWorkbook(t *testing.T) {
	data := testutil.SampleRegister().Bytes(t, "secret")
	assert.True(t, IsEncrypted(data))

	t.Run("no password", func(t *testing.T) {
		table, err := Parse("p.xlsx", data, Options{})
		assert.Nil(t, table)
		var de *types.DecryptionError
		require.True(t, errors.As(err, &de))
		assert.False(t, de.PasswordSet)
	})

	t.Run("wrong password", func(t *testing.T) {
		table, err := Parse("p.xlsx", data, Options{Password: "nope"})
		assert.Nil(t, table)
		assert.ErrorIs(t, err, types.ErrDecryption)
	})

	t.Run("right password", func(t *testing.T) {
		table, err := Parse("p.xlsx", data, Options{Password: "secret"})
		require.NoError(t, err)
		assert.Len(t, table.Rows, 9)
	})
}

func TestCleanHeaders(t *testing.T) {
	got := cleanHeaders([]string{" Sexo ", "", "PS1", "PS1"})
	assert.Equal(t, []string{"Sexo", "Column_2", "PS1", "PS1.1"}, got)
}
