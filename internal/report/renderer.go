// =============================================================================
// Pay Equity Processor - Report Renderer
// =============================================================================
//
// The renderer turns a ReportModel into an A4 PDF:
//
//   ┌──────────────────────────────────────────────────────────┐
//   │ HEADER: title, organization, source file, date, type     │
//   │ RESUMEN GENERAL: SB / SB+PS / SB+PS+PE x gender + gap    │
//   │ CHARTS: headcount pie, mean salary bars                  │
//   │ ONE TABLE PER CATEGORY: headcount, mean, median, gap     │
//   │ ONE TABLE PER EXTRA DIMENSION (puesto, nivel...)         │
//   │ COMPLEMENTS: receivers and mean amount by gender         │
//   │ FOOTER: run counters                                     │
//   └──────────────────────────────────────────────────────────┘
//
// Statistics are shown on equalized and on effective amounts. A
// complements-only report carries the headcount chart, the complements
// and the footer.
//
// Suppressed statistics are shown as "—" and undefined gaps as "n/d".
// A missing template or a chart that cannot be drawn only logs a warning.
//
// =============================================================================

package report

import (
	"errors"
	"fmt"
	"io"
	"time"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/image"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/extension"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/payequity/internal/types"
	"github.com/ginjaninja78/payequity/pkg/logger"
)

var colorWhite = &props.Color{Red: 255, Green: 255, Blue: 255}

// Renderer produces PDF reports.
type Renderer struct {
	templatePath string
	log          *logger.Logger
	now          func() time.Time
}

// NewRenderer creates a renderer. templatePath may be empty.
func NewRenderer(templatePath string, log *logger.Logger) *Renderer {
	if log == nil {
		log = logger.Nop()
	}
	return &Renderer{templatePath: templatePath, log: log, now: time.Now}
}

// Render writes the PDF report of model to w.
//
// RETURNS:
//   - A *types.RenderError if the template is malformed, the document
//     cannot be generated or w fails.
func (r *Renderer) Render(model *types.ReportModel, w io.Writer) error {
	tpl, err := LoadTemplate(r.templatePath)
	switch {
	case errors.Is(err, errTemplateMissing):
		if r.templatePath != "" {
			r.log.Warn().Str("template", r.templatePath).Msg("Report template not found, using default styling")
		}
	case err != nil:
		return &types.RenderError{Stage: "template", Err: err}
	}

	pdf, err := r.build(model, tpl)
	if err != nil {
		return &types.RenderError{Stage: "generate", Err: err}
	}

	if _, err := w.Write(pdf); err != nil {
		return &types.RenderError{Stage: "write", Err: err}
	}
	return nil
}

func (r *Renderer) build(model *types.ReportModel, tpl Template) ([]byte, error) {
	builder := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(12).WithRightMargin(12).
		WithTopMargin(12).WithBottomMargin(12).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle(tpl.Title, true)
	if tpl.Organization != "" {
		builder = builder.WithAuthor(tpl.Organization, true)
	}

	m := maroto.New(builder.Build())
	s := sections{model: model, tpl: tpl, accent: mustHex(tpl.Colors.Accent), muted: mustHex(tpl.Colors.Muted)}

	m.AddRows(s.header(r.now())...)
	m.AddRows(line.NewRow(2, props.Line{Color: s.accent, Thickness: 0.5}))

	for _, section := range plan(model) {
		switch section {
		case sectionSummary:
			m.AddRows(s.summary()...)
		case sectionCharts:
			m.AddRows(r.charts(model, tpl)...)
		case sectionCategories:
			m.AddRows(s.categories()...)
		case sectionDimensions:
			m.AddRows(s.dimensions()...)
		case sectionComplements:
			m.AddRows(s.complements()...)
		case sectionTotals:
			m.AddRows(s.totals()...)
		}
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate document: %w", err)
	}
	return doc.GetBytes(), nil
}

// Report sections in page order.
const (
	sectionSummary     = "summary"
	sectionCharts      = "charts"
	sectionCategories  = "categories"
	sectionDimensions  = "dimensions"
	sectionComplements = "complements"
	sectionTotals      = "totals"
)

// plan lists the sections the report type carries.
func plan(model *types.ReportModel) []string {
	var out []string
	if model.Type.ShowsStatistics() {
		out = append(out, sectionSummary, sectionCharts, sectionCategories)
		if len(model.Dimensions) > 0 {
			out = append(out, sectionDimensions)
		}
	} else {
		out = append(out, sectionCharts)
	}
	if model.Type.ShowsComplements() && len(model.Complements) > 0 {
		out = append(out, sectionComplements)
	}
	return append(out, sectionTotals)
}

// charts renders the enabled charts; failures are logged and skipped. The
// salary chart plots means and is left out when no statistic is shown.
func (r *Renderer) charts(model *types.ReportModel, tpl Template) []core.Row {
	var cols []core.Col

	if tpl.HeadcountChart() {
		if png, err := HeadcountChart(model, tpl); err != nil {
			r.log.Warn().Err(err).Str("chart", "headcount").Msg("Chart omitted")
		} else {
			cols = append(cols, col.New(4).Add(image.NewFromBytes(png, extension.Png, props.Rect{Center: true, Percent: 95})))
		}
	}
	if tpl.SalaryChart() && model.Type.ShowsStatistics() {
		if png, err := SalaryChart(model, tpl); err != nil {
			r.log.Warn().Err(err).Str("chart", "salary").Msg("Chart omitted")
		} else {
			cols = append(cols, col.New(8).Add(image.NewFromBytes(png, extension.Png, props.Rect{Center: true, Percent: 95})))
		}
	}

	if len(cols) == 0 {
		return nil
	}
	return []core.Row{row.New(4), row.New(60).Add(cols...)}
}

// =============================================================================
// SECTIONS
// =============================================================================

type sections struct {
	model  *types.ReportModel
	tpl    Template
	accent *props.Color
	muted  *props.Color
}

func (s sections) header(now time.Time) []core.Row {
	rows := []core.Row{
		row.New(10).Add(
			col.New(8).Add(text.New(s.tpl.Title, props.Text{
				Style: fontstyle.Bold, Size: 15, Color: s.accent, Top: 1,
			})),
			col.New(4).Add(text.New(now.Format("02/01/2006"), props.Text{
				Size: 9, Align: align.Right, Color: s.muted, Top: 3,
			})),
		),
	}

	subtitle := s.tpl.Subtitle
	if s.tpl.Organization != "" {
		subtitle = s.tpl.Organization + "  |  " + subtitle
	}
	rows = append(rows, row.New(6).Add(col.New(12).Add(text.New(subtitle, props.Text{
		Size: 10, Color: s.muted,
	}))))

	rows = append(rows, row.New(6).Add(col.New(12).Add(text.New(
		fmt.Sprintf("Fichero: %s   |   Informe: %s", nonEmpty(s.model.SourceName, Blank), reportTypeLabel(s.model.Type)),
		props.Text{Size: 8, Color: s.muted},
	))))
	return rows
}

func (s sections) title(label string) core.Row {
	return row.New(10).Add(col.New(12).Add(text.New(label, props.Text{
		Style: fontstyle.Bold, Size: 11, Color: s.accent, Top: 4,
	})))
}

// tableHeader draws a header row on the accent color. widths must add to 12.
func (s sections) tableHeader(labels []string, widths []int) core.Row {
	cols := make([]core.Col, len(labels))
	for i, l := range labels {
		a := align.Right
		if i == 0 {
			a = align.Left
		}
		cols[i] = col.New(widths[i]).Add(text.New(l, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a, Color: colorWhite, Top: 1.5, Left: 1, Right: 1,
		}))
	}
	return row.New(7).Add(cols...).WithStyle(&props.Cell{BackgroundColor: s.accent})
}

func (s sections) tableRow(values []string, widths []int) core.Row {
	cols := make([]core.Col, len(values))
	for i, v := range values {
		a := align.Right
		if i == 0 {
			a = align.Left
		}
		cols[i] = col.New(widths[i]).Add(text.New(v, props.Text{
			Size: 8, Align: a, Top: 1.5, Left: 1, Right: 1,
		}))
	}
	return row.New(6).Add(cols...)
}

// statistics lists the statistics the report type shows.
func (s sections) statistics() []stat {
	var out []stat
	if s.model.Type.ShowsMean() {
		out = append(out, stat{
			label: s.tpl.Labels.Mean,
			value: func(g types.CategoryGroup) decimal.Decimal { return g.Mean },
			mean:  true,
		})
	}
	if s.model.Type.ShowsMedian() {
		out = append(out, stat{
			label: s.tpl.Labels.Median,
			value: func(g types.CategoryGroup) decimal.Decimal { return g.Median },
		})
	}
	return out
}

// bases lists the amount bases in display order.
var bases = []types.Basis{types.BasisEqualized, types.BasisEffective}

func (s sections) basisLabel(b types.Basis) string {
	if b == types.BasisEffective {
		return s.tpl.Labels.Effective
	}
	return s.tpl.Labels.Equalized
}

// caption is "Media (equiparado)".
func (s sections) caption(st stat, b types.Basis) string {
	return fmt.Sprintf("%s (%s)", st.label, s.basisLabel(b))
}

type stat struct {
	label string
	value func(types.CategoryGroup) decimal.Decimal
	mean  bool
}

func (st stat) gap(mean, median types.GapStat) types.GapStat {
	if st.mean {
		return mean
	}
	return median
}

func (s sections) summary() []core.Row {
	widths := []int{5, 2, 2, 3}
	rows := []core.Row{s.title(s.tpl.Labels.Summary)}

	for _, st := range s.statistics() {
		for _, b := range bases {
			rows = append(rows, s.tableHeader([]string{s.caption(st, b), s.tpl.Labels.Female, s.tpl.Labels.Male, s.tpl.Labels.Gap}, widths))
			for _, c := range s.model.Concepts {
				cmp := c.Basis(b)
				rows = append(rows, s.tableRow([]string{
					conceptLabel(c.Concept),
					FormatStat(cmp.Female, st.value(cmp.Female)),
					FormatStat(cmp.Male, st.value(cmp.Male)),
					FormatGap(st.gap(cmp.MeanGap, cmp.MedianGap)),
				}, widths))
			}
			rows = append(rows, row.New(3))
		}
	}
	return rows
}

func (s sections) categories() []core.Row {
	widths := []int{5, 2, 2, 3}
	rows := []core.Row{s.title(s.tpl.Labels.Categories)}

	for _, c := range s.model.Categories {
		rows = append(rows, row.New(7).Add(col.New(12).Add(text.New(categoryLabel(c.Category), props.Text{
			Style: fontstyle.Bold, Size: 9, Top: 2,
		}))))
		rows = append(rows, s.tableHeader([]string{"", s.tpl.Labels.Female, s.tpl.Labels.Male, s.tpl.Labels.Gap}, widths))
		rows = append(rows, s.tableRow([]string{
			s.tpl.Labels.Headcount, FormatCount(c.Female.Count), FormatCount(c.Male.Count), "",
		}, widths))
		for _, st := range s.statistics() {
			for _, b := range bases {
				cmp := c.Basis(b)
				rows = append(rows, s.tableRow([]string{
					s.caption(st, b),
					FormatStat(cmp.Female, st.value(cmp.Female)),
					FormatStat(cmp.Male, st.value(cmp.Male)),
					FormatGap(st.gap(cmp.MeanGap, cmp.MedianGap)),
				}, widths))
			}
		}
	}
	return rows
}

// dimensions draws one compact table per extra dimension and statistic.
func (s sections) dimensions() []core.Row {
	widths := []int{4, 1, 1, 2, 2, 2}
	var rows []core.Row

	for _, d := range s.model.Dimensions {
		rows = append(rows, s.title(fmt.Sprintf("%s %s", s.tpl.Labels.Dimension, d.Name)))
		for _, st := range s.statistics() {
			for _, b := range bases {
				rows = append(rows, s.tableHeader([]string{
					s.caption(st, b), "Nº M", "Nº H", s.tpl.Labels.Female, s.tpl.Labels.Male, s.tpl.Labels.Gap,
				}, widths))
				for _, c := range d.Categories {
					cmp := c.Basis(b)
					rows = append(rows, s.tableRow([]string{
						categoryLabel(c.Category),
						FormatCount(cmp.Female.Count),
						FormatCount(cmp.Male.Count),
						FormatStat(cmp.Female, st.value(cmp.Female)),
						FormatStat(cmp.Male, st.value(cmp.Male)),
						FormatGap(st.gap(cmp.MeanGap, cmp.MedianGap)),
					}, widths))
				}
				rows = append(rows, row.New(3))
			}
		}
	}
	return rows
}

func (s sections) complements() []core.Row {
	widths := []int{1, 3, 1, 1, 2, 1, 2, 1}
	rows := []core.Row{
		s.title(s.tpl.Labels.Complements),
		s.tableHeader([]string{"Cód.", "Nombre", "Tipo", "Nº M", "Media M", "Nº H", "Media H", s.tpl.Labels.Gap}, widths),
	}
	for _, c := range s.model.Complements {
		rows = append(rows, s.tableRow([]string{
			c.Code,
			c.Name,
			kindLabel(c.Kind),
			FormatCount(c.Female.Count),
			FormatStat(c.Female, c.Female.Mean),
			FormatCount(c.Male.Count),
			FormatStat(c.Male, c.Male.Mean),
			FormatGap(c.MeanGap),
		}, widths))
	}
	return rows
}

func (s sections) totals() []core.Row {
	t := s.model.Totals
	rows := []core.Row{
		row.New(4),
		line.NewRow(1, props.Line{Color: s.muted, Thickness: 0.3}),
		s.title(s.tpl.Labels.Totals),
	}
	pairs := [][2]string{
		{"Registros normalizados", FormatCount(t.Records)},
		{"Registros analizados", FormatCount(t.Aggregated)},
		{"Registros excluidos", FormatCount(t.Excluded)},
		{"Registros omitidos (jornada no válida)", FormatCount(t.Skipped)},
		{"Grupos suprimidos (menos de 2 personas)", FormatCount(t.SuppressedGroups)},
		{"Errores de validación", FormatCount(t.ValidationErrors)},
	}
	for _, p := range pairs {
		rows = append(rows, s.tableRow([]string{p[0], p[1]}, []int{9, 3}))
	}
	if s.tpl.Footer != "" {
		rows = append(rows, row.New(8).Add(col.New(12).Add(text.New(s.tpl.Footer, props.Text{
			Size: 7, Color: s.muted, Top: 3,
		}))))
	}
	return rows
}

// =============================================================================
// LABELS
// =============================================================================

func conceptLabel(c types.Concept) string {
	switch c {
	case types.ConceptBase:
		return "Salario base (SB)"
	case types.ConceptBasePlusSalary:
		return "SB + complementos salariales (SB+PS)"
	case types.ConceptTotal:
		return "Retribución total (SB+PS+PE)"
	}
	return string(c)
}

func categoryLabel(c string) string {
	if c == types.UnclassifiedCategory {
		return "Sin clasificar"
	}
	return c
}

func kindLabel(k types.ComplementKind) string {
	if k == types.ComplementExtra {
		return "PE"
	}
	return "PS"
}

func reportTypeLabel(t types.ReportType) string {
	switch t {
	case types.ReportMean:
		return "Promedio"
	case types.ReportMedian:
		return "Mediana"
	case types.ReportComplements:
		return "Complementos"
	}
	return "Consolidado"
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
