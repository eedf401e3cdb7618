// =============================================================================
// Pay Equity Processor - Aggregator
// =============================================================================
//
// The aggregator turns equalized records into the report model:
//   - Per category: female and male groups with mean and median equalized
//     salary, plus the mean and median gap
//   - The same breakdown for every extra dimension of the layout
//   - Overall, per salary concept (SB, SB+PS, SB+PS+PE)
//   - Per complement: receivers and mean equalized amount by gender
//
// Category and concept figures are computed twice: on equalized amounts
// and on effective (as paid) amounts. The SB concept only counts people
// with a base salary above zero.
//
// PRIVACY:
//   A group with fewer than MinGroupSize members (but at least one) is
//   suppressed: its mean and median are blanked and every gap it takes part
//   in is suppressed too.
//
// GAP:
//   gap = (male - female) / male
//   Undefined (Defined=false, Value=0) when a side is empty or male is zero.
//
// =============================================================================

package aggregator

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/payequity/internal/types"
)

// DefaultMinGroupSize is the smallest group whose statistics are published.
const DefaultMinGroupSize = 2

// Options controls aggregation.
type Options struct {
	ReportType   types.ReportType
	MinGroupSize int
	SourceName   string

	// Dimensions names the extra breakdowns, read from
	// EmployeeRecord.Dimensions.
	Dimensions []string
}

// Aggregate builds the report model.
//
// PARAMETERS:
//   - records: Equalized records, excluded and skipped ones included.
//   - opts: Report type, privacy threshold and dimensions.
//
// RETURNS:
//   - The report model. Totals.ValidationErrors is left for the caller,
//     which owns that counter.
func Aggregate(records []types.EqualizedRecord, opts Options) *types.ReportModel {
	if opts.MinGroupSize <= 0 {
		opts.MinGroupSize = DefaultMinGroupSize
	}
	if opts.ReportType == "" {
		opts.ReportType = types.ReportConsolidated
	}

	model := &types.ReportModel{
		Type:       opts.ReportType,
		SourceName: opts.SourceName,
	}
	model.Totals.Records = len(records)

	included := make([]types.EqualizedRecord, 0, len(records))
	for _, r := range records {
		switch {
		case r.Skipped:
			model.Totals.Skipped++
		case r.Excluded:
			model.Totals.Excluded++
		default:
			included = append(included, r)
		}
	}
	model.Totals.Aggregated = len(included)

	a := aggregator{min: opts.MinGroupSize}

	model.Categories = a.categories(included, func(r types.EqualizedRecord) string { return r.Category })
	model.Totals.SuppressedGroups += suppressed(model.Categories)

	for _, name := range opts.Dimensions {
		d := types.DimensionSummary{
			Name:       name,
			Categories: a.categories(included, dimension(name)),
		}
		model.Totals.SuppressedGroups += suppressed(d.Categories)
		model.Dimensions = append(model.Dimensions, d)
	}

	model.Concepts = []types.ConceptSummary{
		a.concept(types.ConceptBase, included, baseEqualized, baseEffective, true),
		a.concept(types.ConceptBasePlusSalary, included,
			func(r types.EqualizedRecord) decimal.Decimal { return r.BasePlusSalary },
			func(r types.EqualizedRecord) decimal.Decimal { return r.EffectiveBasePlusSalary },
			false),
		a.concept(types.ConceptTotal, included, salary, effectiveSalary, false),
	}
	model.OverallGap = model.Concepts[2].MeanGap

	if opts.ReportType.ShowsComplements() {
		model.Complements = a.complements(included)
	}

	return model
}

func suppressed(categories []types.CategorySummary) int {
	n := 0
	for _, c := range categories {
		if c.Female.Suppressed {
			n++
		}
		if c.Male.Suppressed {
			n++
		}
	}
	return n
}

// dimension keys records by their label in the named dimension.
func dimension(name string) func(types.EqualizedRecord) string {
	return func(r types.EqualizedRecord) string {
		if v := r.Dimensions[name]; v != "" {
			return v
		}
		return types.UnclassifiedCategory
	}
}

type aggregator struct {
	min int
}

// split returns the values of each gender. With positiveOnly, values of
// zero or below are left out.
func split(records []types.EqualizedRecord, value func(types.EqualizedRecord) decimal.Decimal, positiveOnly bool) (female, male []decimal.Decimal) {
	for _, r := range records {
		v := value(r)
		if positiveOnly && !v.IsPositive() {
			continue
		}
		switch r.Gender {
		case types.GenderFemale:
			female = append(female, v)
		case types.GenderMale:
			male = append(male, v)
		}
	}
	return female, male
}

func (a aggregator) categories(records []types.EqualizedRecord, key func(types.EqualizedRecord) string) []types.CategorySummary {
	byCategory := make(map[string][]types.EqualizedRecord)
	for _, r := range records {
		k := key(r)
		byCategory[k] = append(byCategory[k], r)
	}

	names := make([]string, 0, len(byCategory))
	for name := range byCategory {
		names = append(names, name)
	}
	SortCategories(names)

	out := make([]types.CategorySummary, 0, len(names))
	for _, name := range names {
		eq := a.compare(name, byCategory[name], salary, false)
		out = append(out, types.CategorySummary{
			Category:  name,
			Female:    eq.Female,
			Male:      eq.Male,
			MeanGap:   eq.MeanGap,
			MedianGap: eq.MedianGap,
			Effective: a.compare(name, byCategory[name], effectiveSalary, false),
		})
	}
	return out
}

func salary(r types.EqualizedRecord) decimal.Decimal          { return r.EqualizedSalary }
func effectiveSalary(r types.EqualizedRecord) decimal.Decimal { return r.EffectiveSalary }
func baseEqualized(r types.EqualizedRecord) decimal.Decimal   { return r.EqualizedBase }
func baseEffective(r types.EqualizedRecord) decimal.Decimal   { return r.BaseSalary }

// compare builds the female/male comparison of one measure.
func (a aggregator) compare(category string, records []types.EqualizedRecord, value func(types.EqualizedRecord) decimal.Decimal, positiveOnly bool) types.Comparison {
	female, male := split(records, value, positiveOnly)
	fg := a.group(category, types.GenderFemale, female)
	mg := a.group(category, types.GenderMale, male)
	return types.Comparison{
		Female:    fg,
		Male:      mg,
		MeanGap:   Gap(fg, mg, fg.Mean, mg.Mean),
		MedianGap: Gap(fg, mg, fg.Median, mg.Median),
	}
}

func (a aggregator) concept(c types.Concept, records []types.EqualizedRecord, equalized, effective func(types.EqualizedRecord) decimal.Decimal, positiveOnly bool) types.ConceptSummary {
	eq := a.compare("", records, equalized, positiveOnly)
	return types.ConceptSummary{
		Concept:   c,
		Female:    eq.Female,
		Male:      eq.Male,
		MeanGap:   eq.MeanGap,
		MedianGap: eq.MedianGap,
		Effective: a.compare("", records, effective, positiveOnly),
	}
}

// complements summarizes every complement code in first-seen order. Only
// receivers (equalized amount not zero) are counted.
func (a aggregator) complements(records []types.EqualizedRecord) []types.ComplementSummary {
	type entry struct {
		code, name   string
		kind         types.ComplementKind
		female, male []decimal.Decimal
	}
	var order []string
	entries := make(map[string]*entry)

	for _, r := range records {
		for _, c := range r.EqualizedComplements {
			e, ok := entries[c.Code]
			if !ok {
				name := c.Name
				if c.Rule != nil && c.Rule.Name != "" {
					name = c.Rule.Name
				}
				e = &entry{code: c.Code, name: name, kind: c.Kind}
				entries[c.Code] = e
				order = append(order, c.Code)
			}
			if c.Equalized.IsZero() {
				continue
			}
			switch r.Gender {
			case types.GenderFemale:
				e.female = append(e.female, c.Equalized)
			case types.GenderMale:
				e.male = append(e.male, c.Equalized)
			}
		}
	}

	out := make([]types.ComplementSummary, 0, len(order))
	for _, code := range order {
		e := entries[code]
		fg := a.group("", types.GenderFemale, e.female)
		mg := a.group("", types.GenderMale, e.male)
		out = append(out, types.ComplementSummary{
			Code:    e.code,
			Name:    e.name,
			Kind:    e.kind,
			Female:  fg,
			Male:    mg,
			MeanGap: Gap(fg, mg, fg.Mean, mg.Mean),
		})
	}
	return out
}

// group computes the statistics of one gender group.
func (a aggregator) group(category string, g types.Gender, values []decimal.Decimal) types.CategoryGroup {
	group := types.CategoryGroup{
		Category: category,
		Gender:   g,
		Count:    len(values),
		Mean:     decimal.Zero,
		Median:   decimal.Zero,
	}
	if group.Count == 0 {
		return group
	}
	if group.Count < a.min {
		group.Suppressed = true
		return group
	}
	group.Mean = Mean(values)
	group.Median = Median(values)
	return group
}

// =============================================================================
// STATISTICS
// =============================================================================

// Gap returns (male - female) / male for two groups.
func Gap(female, male types.CategoryGroup, femaleValue, maleValue decimal.Decimal) types.GapStat {
	if female.Suppressed || male.Suppressed {
		return types.GapStat{Value: decimal.Zero, Suppressed: true}
	}
	if female.Count == 0 || male.Count == 0 || maleValue.IsZero() {
		return types.GapStat{Value: decimal.Zero}
	}
	return types.GapStat{
		Value:   maleValue.Sub(femaleValue).Div(maleValue),
		Defined: true,
	}
}

// Mean returns the arithmetic mean, zero for no values.
func Mean(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	return decimal.Sum(decimal.Zero, values...).Div(decimal.NewFromInt(int64(len(values))))
}

// Median returns the middle value, or the mean of the two middle values.
func Median(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	sorted := make([]decimal.Decimal, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return sorted[mid-1].Add(sorted[mid]).Div(decimal.NewFromInt(2))
}

// =============================================================================
// CATEGORY ORDER
// =============================================================================

// SortCategories orders labels naturally ("Grupo 2" before "Grupo 10"),
// ignoring case, with the unclassified bucket last.
func SortCategories(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		a, b := names[i], names[j]
		if (a == types.UnclassifiedCategory) != (b == types.UnclassifiedCategory) {
			return b == types.UnclassifiedCategory
		}
		return naturalLess(strings.ToLower(a), strings.ToLower(b))
	})
}

func naturalLess(a, b string) bool {
	for a != "" && b != "" {
		ca, cb := a[0], b[0]
		if isDigit(ca) && isDigit(cb) {
			na, ra := leadingDigits(a)
			nb, rb := leadingDigits(b)
			ta, tb := strings.TrimLeft(na, "0"), strings.TrimLeft(nb, "0")
			if len(ta) != len(tb) {
				return len(ta) < len(tb)
			}
			if ta != tb {
				return ta < tb
			}
			a, b = ra, rb
			continue
		}
		if ca != cb {
			return ca < cb
		}
		a, b = a[1:], b[1:]
	}
	return len(a) < len(b)
}

func leadingDigits(s string) (digits, rest string) {
	i := 0
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	return s[:i], s[i:]
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
