package aggregator

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/payequity/internal/types"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func eq(category string, g types.Gender, salary string, complements ...types.EqualizedComplement) types.EqualizedRecord {
	s := dec(salary)
	return types.EqualizedRecord{
		EmployeeRecord:          types.EmployeeRecord{Category: category, Gender: g, BaseSalary: s},
		EqualizedBase:           s,
		BasePlusSalary:          s,
		EqualizedSalary:         s,
		EqualizedComplements:    complements,
		EffectiveBasePlusSalary: s,
		EffectiveSalary:         s,
	}
}

func comp(code, amount string) types.EqualizedComplement {
	return types.EqualizedComplement{
		Complement: types.Complement{Code: code, Name: code + " header", Kind: types.ComplementSalary},
		Equalized:  dec(amount),
	}
}

const (
	F = types.GenderFemale
	M = types.GenderMale
)

func TestAggregateCategoryGap(t *testing.T) {
	records := []types.EqualizedRecord{
		eq("A", F, "40000"),
		eq("A", F, "31000"),
		eq("A", M, "38500"),
		eq("A", M, "36000"),
	}

	model := Aggregate(records, Options{})
	require.Len(t, model.Categories, 1)

	a := model.Categories[0]
	assert.Equal(t, 2, a.Female.Count)
	assert.True(t, a.Female.Mean.Equal(dec("35500")))
	assert.True(t, a.Female.Median.Equal(dec("35500")))
	assert.True(t, a.Male.Mean.Equal(dec("37250")))

	require.True(t, a.MeanGap.Publishable())
	want := dec("1750").Div(dec("37250"))
	assert.True(t, a.MeanGap.Value.Equal(want), a.MeanGap.Value.String())
	assert.Equal(t, types.ReportConsolidated, model.Type)
}

func TestAggregateSuppressesSmallGroups(t *testing.T) {
	records := []types.EqualizedRecord{
		eq("B", M, "50000"),
	}

	model := Aggregate(records, Options{MinGroupSize: 2})
	b := model.Categories[0]

	assert.True(t, b.Male.Suppressed)
	assert.True(t, b.Male.Mean.IsZero())
	assert.Equal(t, 1, b.Male.Count)
	assert.False(t, b.Female.Suppressed, "an empty group is not suppressed")
	assert.True(t, b.MeanGap.Suppressed, "one male and no female")
	assert.False(t, b.MeanGap.Publishable())
	assert.Equal(t, 1, model.Totals.SuppressedGroups)
}

func TestAggregateUndefinedGap(t *testing.T) {
	records := []types.EqualizedRecord{
		eq("C", F, "10"),
		eq("C", F, "20"),
		eq("D", F, "10"),
		eq("D", F, "10"),
		eq("D", M, "0"),
		eq("D", M, "0"),
	}

	model := Aggregate(records, Options{})
	require.Len(t, model.Categories, 2)

	c := model.Categories[0]
	assert.False(t, c.MeanGap.Defined, "no men")
	assert.False(t, c.MeanGap.Suppressed)
	assert.True(t, c.MeanGap.Value.IsZero())

	d := model.Categories[1]
	assert.False(t, d.MeanGap.Defined, "male mean is zero")
}

func TestAggregateExcludesAndCounts(t *testing.T) {
	excluded := eq("A", F, "99999")
	excluded.Excluded = true

	records := []types.EqualizedRecord{eq("A", F, "10"), eq("A", F, "20"), excluded}
	model := Aggregate(records, Options{SourceName: "r.xlsx"})

	assert.Equal(t, 3, model.Totals.Records)
	assert.Equal(t, 1, model.Totals.Excluded)
	assert.Equal(t, 2, model.Totals.Aggregated)
	assert.Equal(t, 2, model.Categories[0].Female.Count)
	assert.Equal(t, "r.xlsx", model.SourceName)
}

func TestAggregateConcepts(t *testing.T) {
	r1 := eq("A", F, "100")
	r1.EqualizedBase = dec("80")
	r1.BasePlusSalary = dec("90")
	r2 := eq("A", F, "100")
	r2.EqualizedBase = dec("80")
	r2.BasePlusSalary = dec("90")
	m1 := eq("B", M, "200")
	m2 := eq("B", M, "200")

	model := Aggregate([]types.EqualizedRecord{r1, r2, m1, m2}, Options{})

	require.Len(t, model.Concepts, 3)
	assert.Equal(t, types.ConceptBase, model.Concepts[0].Concept)
	assert.True(t, model.Concepts[0].Female.Mean.Equal(dec("80")))
	assert.True(t, model.Concepts[1].Female.Mean.Equal(dec("90")))
	assert.True(t, model.Concepts[2].MeanGap.Value.Equal(dec("0.5")))
	assert.Equal(t, model.Concepts[2].MeanGap, model.OverallGap)
}

func TestAggregateBaseConceptCountsPositiveBaseOnly(t *testing.T) {
	zeroBase := eq("A", F, "30000")
	zeroBase.EqualizedBase = decimal.Zero
	zeroBase.BaseSalary = decimal.Zero

	records := []types.EqualizedRecord{eq("A", F, "30000"), zeroBase, eq("A", M, "30000"), eq("A", M, "30000")}
	model := Aggregate(records, Options{})

	base := model.Concepts[0]
	assert.Equal(t, 1, base.Female.Count, "a zero base salary is not a base salary")
	assert.True(t, base.Female.Suppressed)
	assert.True(t, base.MeanGap.Suppressed)
	assert.Equal(t, 1, base.Effective.Female.Count)

	total := model.Concepts[2]
	assert.Equal(t, 2, total.Female.Count, "totals keep everyone")
	assert.False(t, total.Female.Suppressed)
}

func TestAggregateEffectiveFigures(t *testing.T) {
	f1, f2 := eq("A", F, "40000"), eq("A", F, "40000")
	f1.EffectiveSalary, f2.EffectiveSalary = dec("20000"), dec("20000")
	f1.BaseSalary, f2.BaseSalary = dec("20000"), dec("20000")
	records := []types.EqualizedRecord{f1, f2, eq("A", M, "40000"), eq("A", M, "40000")}

	model := Aggregate(records, Options{})

	a := model.Categories[0]
	assert.False(t, a.MeanGap.Value.IsPositive(), "no gap once equalized")
	assert.True(t, a.Effective.Female.Mean.Equal(dec("20000")))
	assert.True(t, a.Effective.MeanGap.Value.Equal(dec("0.5")))
	assert.Equal(t, a.Effective, a.Basis(types.BasisEffective))
	assert.Equal(t, a.Female, a.Basis(types.BasisEqualized).Female)

	total := model.Concepts[2]
	assert.True(t, total.Effective.MeanGap.Value.Equal(dec("0.5")))
	assert.True(t, model.Concepts[0].Effective.Female.Mean.Equal(dec("20000")))
}

func TestAggregateDimensions(t *testing.T) {
	withDim := func(r types.EqualizedRecord, puesto string) types.EqualizedRecord {
		r.Dimensions = map[string]string{"Puesto": puesto}
		return r
	}
	records := []types.EqualizedRecord{
		withDim(eq("A", F, "100"), "Analista"),
		withDim(eq("A", F, "100"), "Analista"),
		withDim(eq("B", M, "200"), "Analista"),
		withDim(eq("B", M, "200"), "Analista"),
		withDim(eq("B", M, "300"), ""),
	}

	model := Aggregate(records, Options{Dimensions: []string{"Puesto"}})

	require.Len(t, model.Dimensions, 1)
	d := model.Dimensions[0]
	assert.Equal(t, "Puesto", d.Name)
	require.Len(t, d.Categories, 2)
	assert.Equal(t, "Analista", d.Categories[0].Category)
	assert.True(t, d.Categories[0].MeanGap.Value.Equal(dec("0.5")))
	assert.Equal(t, types.UnclassifiedCategory, d.Categories[1].Category)
	assert.True(t, d.Categories[1].Male.Suppressed)

	// A and B each have one empty side, the blank puesto has a lone man.
	assert.Equal(t, 1, model.Totals.SuppressedGroups)
}

func TestAggregateIgnoresSkipped(t *testing.T) {
	skipped := eq("A", F, "0")
	skipped.Skipped = true

	model := Aggregate([]types.EqualizedRecord{eq("A", F, "10"), eq("A", F, "20"), skipped}, Options{})

	assert.Equal(t, 3, model.Totals.Records)
	assert.Equal(t, 1, model.Totals.Skipped)
	assert.Equal(t, 2, model.Totals.Aggregated)
	assert.Equal(t, 2, model.Categories[0].Female.Count)
}

func TestAggregateComplements(t *testing.T) {
	records := []types.EqualizedRecord{
		eq("A", F, "1", comp("PS1", "100"), comp("PS2", "0")),
		eq("A", F, "1", comp("PS1", "300"), comp("PS2", "0")),
		eq("A", M, "1", comp("PS1", "400"), comp("PS2", "50")),
		eq("A", M, "1", comp("PS1", "0"), comp("PS2", "0")),
	}

	model := Aggregate(records, Options{ReportType: types.ReportComplements})
	require.Len(t, model.Complements, 2)

	ps1 := model.Complements[0]
	assert.Equal(t, "PS1", ps1.Code)
	assert.Equal(t, "PS1 header", ps1.Name)
	assert.Equal(t, 2, ps1.Female.Count)
	assert.True(t, ps1.Female.Mean.Equal(dec("200")))
	assert.True(t, ps1.Male.Suppressed, "one male receiver")
	assert.True(t, ps1.MeanGap.Suppressed)

	ps2 := model.Complements[1]
	assert.Equal(t, 0, ps2.Female.Count)
	assert.Equal(t, 1, ps2.Male.Count)

	model = Aggregate(records, Options{ReportType: types.ReportMean})
	assert.Nil(t, model.Complements)
}

func TestSortCategories(t *testing.T) {
	names := []string{types.UnclassifiedCategory, "Grupo 10", "grupo 2", "Administración", "Grupo 1"}
	SortCategories(names)
	assert.Equal(t, []string{"Administración", "Grupo 1", "grupo 2", "Grupo 10", types.UnclassifiedCategory}, names)
}

func TestMedian(t *testing.T) {
	assert.True(t, Median([]decimal.Decimal{dec("3"), dec("1"), dec("2")}).Equal(dec("2")))
	assert.True(t, Median([]decimal.Decimal{dec("4"), dec("1"), dec("2"), dec("3")}).Equal(dec("2.5")))
	assert.True(t, Median(nil).IsZero())
	assert.True(t, Mean(nil).IsZero())
}
