// =============================================================================
// Pay Equity Processor - Shared Types
// =============================================================================
//
// This package contains the record types that flow through the pipeline.
// They live here so that every stage can import them without creating
// import cycles between the stages themselves:
//   - reader      produces RawTable
//   - normalizer  produces EmployeeRecord
//   - equalizer   produces EqualizedRecord
//   - aggregator  produces ReportModel
//
// =============================================================================

package types

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// RAW TABLE
// =============================================================================

// RawRow is one data row from the source sheet.
type RawRow struct {
	// Number is the 1-indexed row number in the source sheet, used in
	// validation messages so users can find the offending cell.
	Number int

	// Cells maps header name to the trimmed cell value.
	Cells map[string]string
}

// RawTable is the untyped record set returned by the reader.
type RawTable struct {
	// SourceName is the file name (no directory) the table was read from.
	SourceName string

	// SheetName is the sheet the rows came from. Empty for CSV inputs.
	SheetName string

	// Headers lists header names in sheet order.
	Headers []string

	// Rows holds data rows in sheet order.
	Rows []RawRow

	// DecimalMark is the decimal separator of text numbers ("," or ".").
	// Empty for workbooks, whose numeric cells are read raw.
	DecimalMark string

	// ComplementRules are read from the workbook configuration sheets,
	// keyed by normalized complement code. Nil when the workbook carries none.
	ComplementRules map[string]ComplementRule
}

// Get returns the value of header in row, or "" when absent.
func (r RawRow) Get(header string) string {
	if r.Cells == nil {
		return ""
	}
	return r.Cells[header]
}

// =============================================================================
// EMPLOYEE RECORDS
// =============================================================================

// Gender of an employee as used for grouping.
type Gender string

const (
	GenderFemale Gender = "female"
	GenderMale   Gender = "male"
)

// Label returns the Spanish plural used in reports.
func (g Gender) Label() string {
	switch g {
	case GenderFemale:
		return "Mujeres"
	case GenderMale:
		return "Hombres"
	default:
		return string(g)
	}
}

// UnclassifiedCategory collects records whose category is blank or unknown.
const UnclassifiedCategory = "unclassified"

// ComplementKind distinguishes salary (PS) from extra-salary (PE) complements.
type ComplementKind string

const (
	ComplementSalary ComplementKind = "salary"
	ComplementExtra  ComplementKind = "extra"
)

// ComplementRule controls how a complement is equalized.
type ComplementRule struct {
	Code         string
	Name         string
	Kind         ComplementKind
	Normalizable bool
	Annualizable bool
}

// Complement is one additional pay component of an employee.
type Complement struct {
	// Code is the normalized complement code (e.g. "PS1", "A210").
	Code string

	// Name is the source column header.
	Name string

	Kind   ComplementKind
	Amount decimal.Decimal

	// Rule is nil when no configuration sheet mentions this complement.
	Rule *ComplementRule
}

// EmployeeRecord is the canonical, validated form of one source row.
// Records are passed by value and never modified after normalization.
type EmployeeRecord struct {
	ID        string
	RowNumber int
	Category  string
	Gender    Gender

	BaseSalary  decimal.Decimal
	Complements []Complement

	// WorkFraction is the part-time coefficient, 1 for full time.
	WorkFraction decimal.Decimal

	// MonthsWorked in the reference year, 12 when unknown.
	MonthsWorked decimal.Decimal

	// Excluded records are kept in the normalized spreadsheet but left out
	// of the statistics ("Reg." = "Ex" or a superseded contract situation).
	Excluded bool

	// Attributes holds the remaining source columns for the normalized output.
	Attributes map[string]string

	// Dimensions holds the label of the record in each extra analysis
	// dimension of the layout (puesto, nivel...), keyed by dimension name.
	Dimensions map[string]string
}

// ComplementTotal returns the sum of all complement amounts.
func (r EmployeeRecord) ComplementTotal() decimal.Decimal {
	total := decimal.Zero
	for _, c := range r.Complements {
		total = total.Add(c.Amount)
	}
	return total
}

// ComplementMap returns the complements as code -> amount.
func (r EmployeeRecord) ComplementMap() map[string]decimal.Decimal {
	m := make(map[string]decimal.Decimal, len(r.Complements))
	for _, c := range r.Complements {
		m[c.Code] = m[c.Code].Add(c.Amount)
	}
	return m
}

// EqualizedComplement is a complement after full-time/full-year adjustment.
type EqualizedComplement struct {
	Complement
	Equalized decimal.Decimal
}

// EqualizedRecord is an EmployeeRecord with full-time-equivalent figures.
type EqualizedRecord struct {
	EmployeeRecord

	EqualizedBase        decimal.Decimal
	EqualizedComplements []EqualizedComplement

	// SalaryComplements and ExtraComplements are equalized totals per kind.
	SalaryComplements decimal.Decimal
	ExtraComplements  decimal.Decimal

	// BasePlusSalary is SB + PS.
	BasePlusSalary decimal.Decimal

	// EqualizedSalary is SB + PS + PE, the figure used for gap statistics.
	EqualizedSalary decimal.Decimal

	// Effective figures are the amounts as paid. The effective base is
	// EmployeeRecord.BaseSalary.
	EffectiveSalaryComplements decimal.Decimal
	EffectiveExtraComplements  decimal.Decimal
	EffectiveBasePlusSalary    decimal.Decimal
	EffectiveSalary            decimal.Decimal

	// Skipped records have no usable work fraction. Only the effective
	// figures are set and the record is left out of the statistics.
	Skipped bool
}

// =============================================================================
// REPORT MODEL
// =============================================================================

// ReportType selects which sections the report carries.
type ReportType string

const (
	ReportConsolidated ReportType = "consolidated"
	ReportMean         ReportType = "mean"
	ReportMedian       ReportType = "median"
	ReportComplements  ReportType = "complements"
)

// ParseReportType accepts the English names and the original Spanish ones.
func ParseReportType(s string) (ReportType, bool) {
	switch s {
	case "", "consolidated", "CONSOLIDADO", "consolidado":
		return ReportConsolidated, true
	case "mean", "PROMEDIO", "promedio":
		return ReportMean, true
	case "median", "MEDIANA", "mediana":
		return ReportMedian, true
	case "complements", "COMPLEMENTOS", "complementos":
		return ReportComplements, true
	}
	return "", false
}

// ShowsMean reports whether mean tables are rendered.
func (t ReportType) ShowsMean() bool {
	return t == ReportConsolidated || t == ReportMean
}

// ShowsMedian reports whether median tables are rendered.
func (t ReportType) ShowsMedian() bool {
	return t == ReportConsolidated || t == ReportMedian
}

// ShowsStatistics reports whether any mean or median table is rendered.
func (t ReportType) ShowsStatistics() bool {
	return t.ShowsMean() || t.ShowsMedian()
}

// ShowsComplements reports whether the complement analysis is rendered.
func (t ReportType) ShowsComplements() bool {
	return t == ReportConsolidated || t == ReportComplements
}

// CategoryGroup holds statistics for one (category, gender) pair.
// When Suppressed is set Mean and Median are zero and must not be shown.
type CategoryGroup struct {
	Category   string
	Gender     Gender
	Count      int
	Mean       decimal.Decimal
	Median     decimal.Decimal
	Suppressed bool
}

// GapStat is a relative pay gap, (male - female) / male.
type GapStat struct {
	Value decimal.Decimal

	// Defined is false when one side is empty or the male figure is zero.
	Defined bool

	// Suppressed is set when a contributing group is too small to publish.
	Suppressed bool
}

// Publishable reports whether the gap value may be shown.
func (g GapStat) Publishable() bool {
	return g.Defined && !g.Suppressed
}

// Basis selects between paid and full-time-equivalent amounts.
type Basis string

const (
	BasisEffective Basis = "effective"
	BasisEqualized Basis = "equalized"
)

// Comparison is a female/male pair of groups with its gaps.
type Comparison struct {
	Female    CategoryGroup
	Male      CategoryGroup
	MeanGap   GapStat
	MedianGap GapStat
}

// CategorySummary pairs the female and male groups of one category. The
// top-level groups use equalized SB+PS+PE; Effective compares what was paid.
type CategorySummary struct {
	Category  string
	Female    CategoryGroup
	Male      CategoryGroup
	MeanGap   GapStat
	MedianGap GapStat

	Effective Comparison
}

// Basis returns the comparison on the given basis.
func (c CategorySummary) Basis(b Basis) Comparison {
	if b == BasisEffective {
		return c.Effective
	}
	return Comparison{Female: c.Female, Male: c.Male, MeanGap: c.MeanGap, MedianGap: c.MedianGap}
}

// DimensionSummary is the category breakdown along one extra dimension.
type DimensionSummary struct {
	Name       string
	Categories []CategorySummary
}

// Concept names a salary aggregate used in the overall summary.
type Concept string

const (
	ConceptBase           Concept = "base"
	ConceptBasePlusSalary Concept = "base_plus_salary"
	ConceptTotal          Concept = "total"
)

// ConceptSummary is the overall, category-independent comparison of a concept.
type ConceptSummary struct {
	Concept   Concept
	Female    CategoryGroup
	Male      CategoryGroup
	MeanGap   GapStat
	MedianGap GapStat

	Effective Comparison
}

// Basis returns the comparison on the given basis.
func (c ConceptSummary) Basis(b Basis) Comparison {
	if b == BasisEffective {
		return c.Effective
	}
	return Comparison{Female: c.Female, Male: c.Male, MeanGap: c.MeanGap, MedianGap: c.MedianGap}
}

// ComplementSummary compares receivers of one complement by gender.
type ComplementSummary struct {
	Code    string
	Name    string
	Kind    ComplementKind
	Female  CategoryGroup
	Male    CategoryGroup
	MeanGap GapStat
}

// ReportTotals are the run counters shown in the report footer.
type ReportTotals struct {
	Records          int
	Aggregated       int
	Excluded         int
	Skipped          int
	SuppressedGroups int
	ValidationErrors int
}

// ReportModel is everything the renderer needs. It is built once per run.
type ReportModel struct {
	Type       ReportType
	SourceName string

	Categories  []CategorySummary
	Dimensions  []DimensionSummary
	Concepts    []ConceptSummary
	Complements []ComplementSummary

	// OverallGap is the mean gap of the total concept.
	OverallGap GapStat

	Totals ReportTotals
}
