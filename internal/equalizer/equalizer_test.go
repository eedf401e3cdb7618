package equalizer

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/payequity/internal/types"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func record(base, wf, months string, complements ...types.Complement) types.EmployeeRecord {
	return types.EmployeeRecord{
		ID:           "x",
		Category:     "A",
		Gender:       types.GenderFemale,
		BaseSalary:   dec(base),
		WorkFraction: dec(wf),
		MonthsWorked: dec(months),
		Complements:  complements,
	}
}

func TestEqualizeHalfTime(t *testing.T) {
	out, summary := Equalize([]types.EmployeeRecord{record("20000", "0.5", "12")})

	require.Len(t, out, 1)
	assert.Equal(t, 1, summary.Equalized)
	assert.True(t, out[0].EqualizedSalary.Equal(dec("40000")), out[0].EqualizedSalary.String())
}

func TestEqualizeFullTimeIsIdentity(t *testing.T) {
	for _, base := range []string{"0", "18000.55", "123456.78"} {
		eq := EqualizeRecord(record(base, "1", "12"))
		assert.True(t, eq.EqualizedSalary.Equal(dec(base)), base)
		assert.True(t, eq.EqualizedBase.Equal(dec(base)), base)
	}
}

func TestEqualizeAnnualizesBase(t *testing.T) {
	eq := EqualizeRecord(record("18000", "1", "6"))
	assert.True(t, eq.EqualizedBase.Equal(dec("36000")))

	eq = EqualizeRecord(record("18000", "1", "0"))
	assert.True(t, eq.EqualizedBase.Equal(dec("18000")), "unknown months count as a full year")
}

func TestEqualizeComplementRules(t *testing.T) {
	noRule := types.Complement{Code: "PS9", Kind: types.ComplementSalary, Amount: dec("1000")}
	normalizable := types.Complement{
		Code: "PS1", Kind: types.ComplementSalary, Amount: dec("1000"),
		Rule: &types.ComplementRule{Code: "PS1", Normalizable: true},
	}
	annualizable := types.Complement{
		Code: "PS2", Kind: types.ComplementSalary, Amount: dec("1000"),
		Rule: &types.ComplementRule{Code: "PS2", Annualizable: true},
	}
	fixed := types.Complement{
		Code: "PE1", Kind: types.ComplementExtra, Amount: dec("500"),
		Rule: &types.ComplementRule{Code: "PE1"},
	}

	eq := EqualizeRecord(record("10000", "0.5", "6", noRule, normalizable, annualizable, fixed))

	require.Len(t, eq.EqualizedComplements, 4)
	assert.True(t, eq.EqualizedComplements[0].Equalized.Equal(dec("2000")), "no rule: divided by work fraction only")
	assert.True(t, eq.EqualizedComplements[1].Equalized.Equal(dec("2000")))
	assert.True(t, eq.EqualizedComplements[2].Equalized.Equal(dec("2000")), "annualized only")
	assert.True(t, eq.EqualizedComplements[3].Equalized.Equal(dec("500")))

	assert.True(t, eq.EqualizedBase.Equal(dec("40000")))
	assert.True(t, eq.SalaryComplements.Equal(dec("6000")))
	assert.True(t, eq.ExtraComplements.Equal(dec("500")))
	assert.True(t, eq.BasePlusSalary.Equal(dec("46000")))
	assert.True(t, eq.EqualizedSalary.Equal(dec("46500")))
}

func TestEqualizeMatchesTotalFormula(t *testing.T) {
	r := record("21000", "0.75", "12",
		types.Complement{Code: "PS1", Kind: types.ComplementSalary, Amount: dec("1500")},
		types.Complement{Code: "PE1", Kind: types.ComplementExtra, Amount: dec("300")},
	)
	eq := EqualizeRecord(r)

	want := r.BaseSalary.Add(r.ComplementTotal()).Div(r.WorkFraction)
	assert.True(t, Round(eq.EqualizedSalary).Equal(Round(want)))
}

func TestEqualizeSkipsInvalidWorkFraction(t *testing.T) {
	zero := record("1000", "0", "12")
	zero.RowNumber = 4
	negative := record("1000", "-0.5", "12")
	negative.RowNumber = 7

	out, summary := Equalize([]types.EmployeeRecord{zero, record("1000", "1", "12"), negative})

	require.Len(t, out, 3, "skipped records stay in the output")
	assert.Equal(t, Summary{Input: 3, Equalized: 1, Skipped: 2, SkippedRows: []int{4, 7}}, summary)

	assert.True(t, out[0].Skipped)
	assert.True(t, out[0].EqualizedSalary.IsZero())
	assert.True(t, out[0].EffectiveSalary.Equal(dec("1000")), "effective figures are still known")
	assert.False(t, out[1].Skipped)
	assert.True(t, out[2].Skipped)
}

func TestEqualizeKeepsEffectiveFigures(t *testing.T) {
	ps := types.Complement{Code: "PS1", Kind: types.ComplementSalary, Amount: dec("1000")}
	pe := types.Complement{Code: "PE1", Kind: types.ComplementExtra, Amount: dec("300")}

	eq := EqualizeRecord(record("10000", "0.5", "12", ps, pe))

	assert.True(t, eq.EffectiveSalaryComplements.Equal(dec("1000")))
	assert.True(t, eq.EffectiveExtraComplements.Equal(dec("300")))
	assert.True(t, eq.EffectiveBasePlusSalary.Equal(dec("11000")))
	assert.True(t, eq.EffectiveSalary.Equal(dec("11300")))
	assert.True(t, eq.EqualizedSalary.Equal(dec("22600")))
}

func TestRound(t *testing.T) {
	assert.Equal(t, "2.35", Round(dec("2.345")).String())
	assert.Equal(t, "-2.35", Round(dec("-2.345")).String())
}
