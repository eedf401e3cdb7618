package report

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/payequity/internal/types"
	"github.com/ginjaninja78/payequity/pkg/logger"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleModel(t types.ReportType) *types.ReportModel {
	female := types.CategoryGroup{Category: "A", Gender: types.GenderFemale, Count: 2, Mean: dec("35500"), Median: dec("35500")}
	male := types.CategoryGroup{Category: "A", Gender: types.GenderMale, Count: 2, Mean: dec("37250"), Median: dec("37250")}
	gap := types.GapStat{Value: dec("0.047"), Defined: true}
	paid := types.Comparison{Female: female, Male: male, MeanGap: gap, MedianGap: gap}

	return &types.ReportModel{
		Type:       t,
		SourceName: "registro.xlsx",
		Categories: []types.CategorySummary{
			{Category: "A", Female: female, Male: male, MeanGap: gap, MedianGap: gap, Effective: paid},
			{
				Category: "B",
				Male:     types.CategoryGroup{Category: "B", Gender: types.GenderMale, Count: 1, Suppressed: true},
				MeanGap:  types.GapStat{Suppressed: true},
			},
		},
		Concepts: []types.ConceptSummary{
			{Concept: types.ConceptBase, Female: female, Male: male, MeanGap: gap, MedianGap: gap, Effective: paid},
			{Concept: types.ConceptBasePlusSalary, Female: female, Male: male, MeanGap: gap, MedianGap: gap, Effective: paid},
			{Concept: types.ConceptTotal, Female: female, Male: male, MeanGap: gap, MedianGap: gap, Effective: paid},
		},
		Dimensions: []types.DimensionSummary{{
			Name: "Puesto de trabajo",
			Categories: []types.CategorySummary{
				{Category: "Offside Leader - E2", Female: female, Male: male, MeanGap: gap, MedianGap: gap, Effective: paid},
			},
		}},
		Complements: []types.ComplementSummary{
			{Code: "PS1", Name: "Plus convenio", Kind: types.ComplementSalary, Female: female, Male: male, MeanGap: gap},
		},
		OverallGap: gap,
		Totals:     types.ReportTotals{Records: 7, Aggregated: 6, Excluded: 1},
	}
}

func TestRenderProducesPDF(t *testing.T) {
	for _, rt := range []types.ReportType{types.ReportConsolidated, types.ReportMean, types.ReportMedian, types.ReportComplements} {
		t.Run(string(rt), func(t *testing.T) {
			var buf bytes.Buffer
			err := NewRenderer("", logger.Nop()).Render(sampleModel(rt), &buf)
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
		})
	}
}

func TestRenderMissingTemplateFallsBack(t *testing.T) {
	var logs bytes.Buffer
	log := logger.New(logger.Config{Env: "production", Level: "warn", Out: &logs})

	var buf bytes.Buffer
	err := NewRenderer(filepath.Join(t.TempDir(), "nope.yaml"), log).Render(sampleModel(types.ReportConsolidated), &buf)

	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
	assert.Contains(t, logs.String(), "template not found")
}

func TestRenderMalformedTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.yaml")
	require.NoError(t, os.WriteFile(path, []byte("title: [unclosed"), 0644))

	err := NewRenderer(path, nil).Render(sampleModel(types.ReportMean), &bytes.Buffer{})
	var re *types.RenderError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "template", re.Stage)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestRenderWriteFailure(t *testing.T) {
	err := NewRenderer("", nil).Render(sampleModel(types.ReportMean), failingWriter{})
	assert.ErrorIs(t, err, types.ErrRender)
}

func TestRenderEmptyModelOmitsCharts(t *testing.T) {
	var logs bytes.Buffer
	log := logger.New(logger.Config{Env: "production", Level: "warn", Out: &logs})

	model := &types.ReportModel{Type: types.ReportConsolidated}
	var buf bytes.Buffer
	require.NoError(t, NewRenderer("", log).Render(model, &buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
	assert.Equal(t, 2, strings.Count(logs.String(), "Chart omitted"))
}

func TestPlan(t *testing.T) {
	tests := []struct {
		report types.ReportType
		want   []string
	}{
		{types.ReportConsolidated, []string{sectionSummary, sectionCharts, sectionCategories, sectionDimensions, sectionComplements, sectionTotals}},
		{types.ReportMean, []string{sectionSummary, sectionCharts, sectionCategories, sectionDimensions, sectionTotals}},
		{types.ReportMedian, []string{sectionSummary, sectionCharts, sectionCategories, sectionDimensions, sectionTotals}},
		{types.ReportComplements, []string{sectionCharts, sectionComplements, sectionTotals}},
	}
	for _, tt := range tests {
		t.Run(string(tt.report), func(t *testing.T) {
			assert.Equal(t, tt.want, plan(sampleModel(tt.report)))
		})
	}

	noDims := sampleModel(types.ReportMean)
	noDims.Dimensions = nil
	assert.NotContains(t, plan(noDims), sectionDimensions)
}

func TestStatisticsFollowReportType(t *testing.T) {
	labels := func(rt types.ReportType) []string {
		var out []string
		for _, st := range (sections{model: sampleModel(rt), tpl: DefaultTemplate()}).statistics() {
			out = append(out, st.label)
		}
		return out
	}
	assert.Equal(t, []string{"Media", "Mediana"}, labels(types.ReportConsolidated))
	assert.Equal(t, []string{"Media"}, labels(types.ReportMean))
	assert.Equal(t, []string{"Mediana"}, labels(types.ReportMedian))
	assert.Empty(t, labels(types.ReportComplements), "no mean fallback")
}

func TestRenderComplementsReportSkipsSalaryChart(t *testing.T) {
	var logs bytes.Buffer
	log := logger.New(logger.Config{Env: "production", Level: "warn", Out: &logs})

	model := &types.ReportModel{Type: types.ReportComplements}
	var buf bytes.Buffer
	require.NoError(t, NewRenderer("", log).Render(model, &buf))
	assert.Equal(t, 1, strings.Count(logs.String(), "Chart omitted"), "only the headcount chart is attempted")
	assert.NotContains(t, logs.String(), `"chart":"salary"`)
}

func TestLoadTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
title: Informe 2024
organization: ACME
colors:
  female: "#000000"
charts:
  salary: false
`), 0644))

	tpl, err := LoadTemplate(path)
	require.NoError(t, err)
	assert.Equal(t, "Informe 2024", tpl.Title)
	assert.Equal(t, "#000000", tpl.Colors.Female)
	assert.Equal(t, "#ea5d41", tpl.Colors.Male)
	assert.Equal(t, "Mujeres", tpl.Labels.Female)
	assert.False(t, tpl.SalaryChart())
	assert.True(t, tpl.HeadcountChart())

	require.NoError(t, os.WriteFile(path, []byte("colors:\n  male: red\n"), 0644))
	_, err = LoadTemplate(path)
	assert.Error(t, err)

	_, err = LoadTemplate("")
	assert.ErrorIs(t, err, errTemplateMissing)
}

func TestCharts(t *testing.T) {
	model := sampleModel(types.ReportConsolidated)
	tpl := DefaultTemplate()

	png, err := HeadcountChart(model, tpl)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	png, err = SalaryChart(model, tpl)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	_, err = SalaryChart(&types.ReportModel{}, tpl)
	assert.ErrorIs(t, err, errNoChartData)
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "1.234,56", FormatAmount(dec("1234.555")))
	assert.Equal(t, "0,00", FormatAmount(decimal.Zero))
	assert.Equal(t, "-1.234.567,10", FormatAmount(dec("-1234567.1")))
	assert.Equal(t, "999,00", FormatAmount(dec("999")))
	assert.Equal(t, "12,34 %", FormatPercent(dec("0.1234")))
	assert.Equal(t, "1.000", FormatCount(1000))

	assert.Equal(t, Blank, FormatGap(types.GapStat{Suppressed: true}))
	assert.Equal(t, Undefined, FormatGap(types.GapStat{}))
	assert.Equal(t, "4,70 %", FormatGap(types.GapStat{Value: dec("0.047"), Defined: true}))

	assert.Equal(t, Blank, FormatStat(types.CategoryGroup{Count: 1, Suppressed: true}, decimal.Zero))
	assert.Equal(t, Blank, FormatStat(types.CategoryGroup{}, decimal.Zero))
}
