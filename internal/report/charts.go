package report

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/ginjaninja78/payequity/internal/types"
)

// errNoChartData means a chart would be empty and is left out.
var errNoChartData = errors.New("no data to plot")

func chartColor(hex string) drawing.Color {
	return drawing.ColorFromHex(strings.TrimPrefix(strings.TrimSpace(hex), "#"))
}

// HeadcountChart draws the women/men headcount pie as a PNG.
func HeadcountChart(model *types.ReportModel, tpl Template) ([]byte, error) {
	total := totalConcept(model)
	female, male := total.Female.Count, total.Male.Count
	if female+male == 0 {
		return nil, errNoChartData
	}

	var values []chart.Value
	if female > 0 {
		values = append(values, chart.Value{
			Value: float64(female),
			Label: fmt.Sprintf("%s (%d)", tpl.Labels.Female, female),
			Style: chart.Style{FillColor: chartColor(tpl.Colors.Female)},
		})
	}
	if male > 0 {
		values = append(values, chart.Value{
			Value: float64(male),
			Label: fmt.Sprintf("%s (%d)", tpl.Labels.Male, male),
			Style: chart.Style{FillColor: chartColor(tpl.Colors.Male)},
		})
	}

	pie := chart.PieChart{
		Width:  480,
		Height: 480,
		Values: values,
	}

	var buf bytes.Buffer
	if err := pie.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render headcount chart: %w", err)
	}
	return buf.Bytes(), nil
}

// SalaryChart draws the mean equalized salary of each published
// (category, gender) group as a bar chart PNG.
func SalaryChart(model *types.ReportModel, tpl Template) ([]byte, error) {
	var bars []chart.Value
	add := func(g types.CategoryGroup, label, color string) {
		if g.Suppressed || g.Count == 0 {
			return
		}
		bars = append(bars, chart.Value{
			Value: g.Mean.InexactFloat64(),
			Label: label,
			Style: chart.Style{FillColor: chartColor(color), StrokeColor: chartColor(color)},
		})
	}

	for _, c := range model.Categories {
		add(c.Female, shortLabel(c.Category)+" M", tpl.Colors.Female)
		add(c.Male, shortLabel(c.Category)+" H", tpl.Colors.Male)
	}
	if len(bars) == 0 {
		return nil, errNoChartData
	}

	graph := chart.BarChart{
		Title:      tpl.Labels.Mean,
		Background: chart.Style{Padding: chart.Box{Top: 40}},
		Width:      1024,
		Height:     480,
		BarWidth:   36,
		Bars:       bars,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render salary chart: %w", err)
	}
	return buf.Bytes(), nil
}

func shortLabel(category string) string {
	if category == types.UnclassifiedCategory {
		return "Sin clasificar"
	}
	r := []rune(category)
	if len(r) > 14 {
		return string(r[:13]) + "…"
	}
	return category
}

func totalConcept(model *types.ReportModel) types.ConceptSummary {
	for _, c := range model.Concepts {
		if c.Concept == types.ConceptTotal {
			return c
		}
	}
	return types.ConceptSummary{}
}
