// =============================================================================
// Pay Equity Processor - Field Normalizer
// =============================================================================
//
// The normalizer turns the untyped RawTable into canonical EmployeeRecords
// using a layout profile. It is responsible for:
//   - Matching profile headers to source headers (case and accent insensitive)
//   - Trimming the table (columns before "Reg.", rows after the last id)
//   - Coercing numbers, percentages and dates
//   - Mapping gender and category labels
//   - Detecting complement columns and attaching their rules
//   - Marking excluded rows and superseded contract situations
//
// Row problems never abort the run. Each one becomes a ValidationError; rows
// with an error-severity problem are dropped, rows with warnings are kept.
//
// =============================================================================

package normalizer

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/ginjaninja78/payequity/internal/config"
	"github.com/ginjaninja78/payequity/internal/types"
	"github.com/ginjaninja78/payequity/internal/validation"
)

// =============================================================================
// OUTPUT
// =============================================================================

// Output is the result of normalizing one table.
type Output struct {
	// Records holds the valid rows in source order.
	Records []types.EmployeeRecord

	// Errors collects every row problem, warnings included.
	Errors *validation.ValidationResult

	// RowsRead is the number of data rows considered after trimming.
	RowsRead int

	// Dropped rows had at least one error-severity problem.
	Dropped int

	// Ignored rows were removed silently: trailing rows after the last id
	// and rows blank in a skip_if_blank field.
	Ignored int

	// Headers lists the source headers kept after column trimming.
	Headers []string

	// ComplementHeaders lists the complement columns in sheet order.
	ComplementHeaders []string

	// Dimensions names the layout dimensions found in the sheet, in layout
	// order. Records carry a label for each.
	Dimensions []string
}

// =============================================================================
// NORMALIZER
// =============================================================================

var (
	escalaLabel = regexp.MustCompile(`(?i)^Escala\s+(\d+)\s*\+\s*(.+)$`)
	spaces      = regexp.MustCompile(`\s+`)
	hundred     = decimal.NewFromInt(100)
	twelve      = decimal.NewFromInt(12)
)

// Normalizer maps raw rows onto employee records for one layout profile.
// It holds no per-run state and may be reused.
type Normalizer struct {
	profile    *config.LayoutProfile
	complement *regexp.Regexp
	male       map[string]bool
	female     map[string]bool
	exclude    map[string]bool
	lookup     map[string]string
	allowed    map[string]bool
	extra      []string
	titleCaser cases.Caser
}

// New prepares a normalizer for profile.
func New(profile *config.LayoutProfile) (*Normalizer, error) {
	if profile == nil {
		return nil, fmt.Errorf("layout profile is required")
	}

	re, err := regexp.Compile("(?i)" + profile.ComplementPattern)
	if err != nil {
		return nil, fmt.Errorf("layout %q: invalid complement_pattern: %w", profile.Name, err)
	}

	n := &Normalizer{
		profile:    profile,
		complement: re,
		male:       foldSet(profile.GenderValues.Male),
		female:     foldSet(profile.GenderValues.Female),
		exclude:    foldSet(profile.ExcludeStatus),
		allowed:    foldSet(profile.AllowedCategories),
		lookup:     make(map[string]string, len(profile.CategoryLookup)),
		titleCaser: cases.Title(language.Spanish),
	}
	for raw, mapped := range profile.CategoryLookup {
		n.lookup[Fold(raw)] = mapped
	}
	for _, p := range profile.ExtraPrefixes {
		n.extra = append(n.extra, strings.ToUpper(strings.TrimSpace(p)))
	}
	return n, nil
}

// Normalize is a shortcut for New(profile) followed by Normalize. rules
// override the table's own complement rules when non-nil.
func Normalize(table *types.RawTable, profile *config.LayoutProfile, rules map[string]types.ComplementRule) (*Output, error) {
	n, err := New(profile)
	if err != nil {
		return nil, err
	}
	if rules != nil {
		copied := *table
		copied.ComplementRules = rules
		table = &copied
	}
	return n.Normalize(table)
}

// columns holds the resolved source header of each canonical field.
type columns struct {
	id, category, gender, base, workFraction, months, status, start, end string
}

func (c columns) mapped() map[string]bool {
	m := make(map[string]bool)
	for _, h := range []string{c.id, c.category, c.gender, c.base, c.workFraction, c.months, c.status, c.start, c.end} {
		if h != "" {
			m[h] = true
		}
	}
	return m
}

// Normalize converts table into employee records.
//
// PARAMETERS:
//   - table: The raw table from the reader.
//
// RETURNS:
//   - The records, row errors and counters.
//   - A *types.FormatError when a required column (gender, base salary)
//     is not present in the table.
func (n *Normalizer) Normalize(table *types.RawTable) (*Output, error) {
	headers := n.trimColumns(table.Headers)

	cols, err := n.resolveColumns(table.SourceName, headers)
	if err != nil {
		return nil, err
	}

	out := &Output{
		Errors:  &validation.ValidationResult{},
		Headers: headers,
	}

	dims := n.resolveDimensions(headers)
	for _, d := range dims {
		out.Dimensions = append(out.Dimensions, d.name)
	}

	mapped := cols.mapped()
	var attributeHeaders []string
	for _, h := range headers {
		switch {
		case mapped[h]:
		case n.complement.MatchString(h):
			out.ComplementHeaders = append(out.ComplementHeaders, h)
		default:
			attributeHeaders = append(attributeHeaders, h)
		}
	}

	rows := table.Rows
	if n.profile.TruncateAfterLastID && cols.id != "" {
		last := -1
		for i, row := range rows {
			if strings.TrimSpace(row.Get(cols.id)) != "" {
				last = i
			}
		}
		out.Ignored += len(rows) - (last + 1)
		rows = rows[:last+1]
	}

	var endDates []time.Time
	for _, row := range rows {
		if n.blankInSkipField(row) {
			out.Ignored++
			continue
		}
		out.RowsRead++
		out.Errors.RowsValidated++

		record, end, rowErrs := n.normalizeRow(row, cols, dims, out.ComplementHeaders, attributeHeaders, table.ComplementRules, table.DecimalMark)

		dropped := false
		for _, e := range rowErrs {
			out.Errors.Add(e)
			if e.Severity != validation.SeverityWarning {
				dropped = true
			}
		}
		if dropped {
			out.Dropped++
			continue
		}

		out.Records = append(out.Records, record)
		endDates = append(endDates, end)
	}

	if n.profile.SupersedeByID {
		markSuperseded(out.Records, endDates)
	}

	return out, nil
}

// trimColumns drops every header left of the profile's first kept column.
func (n *Normalizer) trimColumns(headers []string) []string {
	if n.profile.DropColumnsBefore == "" {
		return headers
	}
	want := Fold(n.profile.DropColumnsBefore)
	for i, h := range headers {
		if Fold(h) == want {
			return headers[i:]
		}
	}
	return headers
}

// finder returns a lookup from a configured header name to the source
// header it matches, "" when absent.
func finder(headers []string) func(string) string {
	index := make(map[string]string, len(headers))
	for _, h := range headers {
		key := Fold(h)
		if _, dup := index[key]; !dup {
			index[key] = h
		}
	}
	return func(name string) string {
		if name == "" {
			return ""
		}
		return index[Fold(name)]
	}
}

// dimensionColumns is a layout dimension resolved against the sheet.
type dimensionColumns struct {
	name    string
	headers []string
}

func (n *Normalizer) resolveDimensions(headers []string) []dimensionColumns {
	find := finder(headers)
	var out []dimensionColumns
	for _, d := range n.profile.Dimensions {
		dc := dimensionColumns{name: d.Name}
		for _, c := range d.Columns {
			if h := find(c); h != "" {
				dc.headers = append(dc.headers, h)
			}
		}
		if len(dc.headers) > 0 {
			out = append(out, dc)
		}
	}
	return out
}

func (n *Normalizer) resolveColumns(source string, headers []string) (columns, error) {
	find := finder(headers)

	c := n.profile.Columns
	cols := columns{
		id:           find(c.ID),
		category:     find(c.Category),
		gender:       find(c.Gender),
		base:         find(c.BaseSalary),
		workFraction: find(c.WorkFraction),
		months:       find(c.MonthsWorked),
		status:       find(c.Status),
		start:        find(c.StartDate),
		end:          find(c.EndDate),
	}

	var missing []string
	if cols.gender == "" {
		missing = append(missing, c.Gender)
	}
	if cols.base == "" {
		missing = append(missing, c.BaseSalary)
	}
	for _, field := range n.profile.SkipIfBlank {
		if c.Field(field) != "" && find(c.Field(field)) == "" {
			missing = append(missing, c.Field(field))
		}
	}
	if len(missing) > 0 {
		return cols, &types.FormatError{
			Source: source,
			Reason: fmt.Sprintf("layout %q: missing column(s) %s", n.profile.Name, strings.Join(quoteAll(missing), ", ")),
		}
	}
	return cols, nil
}

func (n *Normalizer) blankInSkipField(row types.RawRow) bool {
	if len(n.profile.SkipIfBlank) == 0 {
		return false
	}
	index := make(map[string]string, len(row.Cells))
	for h, v := range row.Cells {
		index[Fold(h)] = v
	}
	for _, field := range n.profile.SkipIfBlank {
		if strings.TrimSpace(index[Fold(n.profile.Columns.Field(field))]) == "" {
			return true
		}
	}
	return false
}

// =============================================================================
// ROW CONVERSION
// =============================================================================

func (n *Normalizer) normalizeRow(
	row types.RawRow,
	cols columns,
	dims []dimensionColumns,
	complementHeaders, attributeHeaders []string,
	rules map[string]types.ComplementRule,
	decimalMark string,
) (types.EmployeeRecord, time.Time, []*validation.ValidationError) {
	var errs []*validation.ValidationError
	id := strings.TrimSpace(row.Get(cols.id))

	fail := func(field, value, rule, msg string) {
		errs = append(errs, &validation.ValidationError{
			Severity:   validation.SeverityError,
			Field:      field,
			Value:      value,
			Rule:       rule,
			Message:    msg,
			EmployeeID: id,
			RowNumber:  row.Number,
		})
	}
	warn := func(field, value, rule, msg string) {
		errs = append(errs, &validation.ValidationError{
			Severity:   validation.SeverityWarning,
			Field:      field,
			Value:      value,
			Rule:       rule,
			Message:    msg,
			EmployeeID: id,
			RowNumber:  row.Number,
		})
	}

	record := types.EmployeeRecord{
		ID:        id,
		RowNumber: row.Number,
		Category:  n.category(row.Get(cols.category)),
	}

	rawGender := row.Get(cols.gender)
	switch g := Fold(rawGender); {
	case n.female[g]:
		record.Gender = types.GenderFemale
	case n.male[g]:
		record.Gender = types.GenderMale
	default:
		fail(cols.gender, rawGender, "gender", "unknown gender label")
	}

	number := func(header string) (decimal.Decimal, bool) {
		if header == "" {
			return decimal.Zero, false
		}
		value := row.Get(header)
		d, present, err := validation.ParseNumber(value, decimalMark)
		if err != nil {
			fail(header, value, "numeric", "value is not a number")
			return decimal.Zero, false
		}
		return d, present
	}

	record.BaseSalary, _ = number(cols.base)

	wf, present := number(cols.workFraction)
	switch {
	case !present:
		wf = decimal.NewFromInt(1)
	case wf.GreaterThan(decimal.NewFromInt(1)):
		wf = wf.Div(hundred)
	case !wf.IsPositive():
		warn(cols.workFraction, row.Get(cols.workFraction), "work_fraction", "work fraction is not positive, the record is not equalized")
	}
	record.WorkFraction = wf

	var end time.Time
	switch {
	case cols.months != "":
		months, present := number(cols.months)
		switch {
		case !present || months.IsZero():
			months = twelve
		case months.IsNegative():
			fail(cols.months, row.Get(cols.months), "range", "months worked cannot be negative")
		case months.GreaterThan(twelve):
			warn(cols.months, row.Get(cols.months), "range", "months worked above 12, using 12")
			months = twelve
		}
		record.MonthsWorked = months
	case cols.start != "" && cols.end != "":
		start, startSet, err := validation.ParseDate(row.Get(cols.start), n.profile.DateLayouts)
		if err != nil {
			fail(cols.start, row.Get(cols.start), "date", err.Error())
		}
		var endSet bool
		end, endSet, err = validation.ParseDate(row.Get(cols.end), n.profile.DateLayouts)
		if err != nil {
			fail(cols.end, row.Get(cols.end), "date", err.Error())
		}
		record.MonthsWorked = twelve
		if startSet && endSet && !start.IsZero() && !end.IsZero() {
			if end.Before(start) {
				fail(cols.end, row.Get(cols.end), "date", "situation ends before it starts")
			} else {
				record.MonthsWorked = MonthsBetween(start, end)
			}
		}
	default:
		record.MonthsWorked = twelve
	}

	for _, h := range complementHeaders {
		amount, _ := number(h)
		c := types.Complement{
			Code:   types.ComplementCode(h),
			Name:   h,
			Amount: amount,
		}
		if rule, ok := rules[c.Code]; ok {
			r := rule
			c.Rule = &r
			c.Kind = rule.Kind
		} else {
			c.Kind = n.kindByPrefix(c.Code)
		}
		record.Complements = append(record.Complements, c)
	}

	if cols.status != "" && n.exclude[Fold(row.Get(cols.status))] {
		record.Excluded = true
	}

	if len(attributeHeaders) > 0 {
		record.Attributes = make(map[string]string, len(attributeHeaders))
		for _, h := range attributeHeaders {
			record.Attributes[h] = row.Get(h)
		}
	}

	if len(dims) > 0 {
		record.Dimensions = make(map[string]string, len(dims))
		for _, d := range dims {
			var parts []string
			for _, h := range d.headers {
				if v := strings.TrimSpace(spaces.ReplaceAllString(row.Get(h), " ")); v != "" {
					parts = append(parts, v)
				}
			}
			record.Dimensions[d.name] = RelabelEscala(strings.Join(parts, " + "))
		}
	}

	return record, end, errs
}

// category maps a raw label to the report category.
func (n *Normalizer) category(raw string) string {
	label := strings.TrimSpace(spaces.ReplaceAllString(raw, " "))
	if label == "" {
		return types.UnclassifiedCategory
	}
	if mapped, ok := n.lookup[Fold(label)]; ok {
		label = mapped
	}
	if n.profile.TitleCaseCategory {
		label = n.titleCaser.String(label)
	}
	label = RelabelEscala(label)

	if len(n.allowed) > 0 && !n.allowed[Fold(label)] {
		return types.UnclassifiedCategory
	}
	return label
}

func (n *Normalizer) kindByPrefix(code string) types.ComplementKind {
	for _, p := range n.extra {
		if p != "" && strings.HasPrefix(code, p) {
			return types.ComplementExtra
		}
	}
	return types.ComplementSalary
}

// markSuperseded excludes every situation of an employee except the one
// with the latest end date. A blank end date counts as the latest.
func markSuperseded(records []types.EmployeeRecord, endDates []time.Time) {
	byID := make(map[string][]int)
	for i, r := range records {
		if r.ID != "" {
			byID[r.ID] = append(byID[r.ID], i)
		}
	}
	for _, idx := range byID {
		if len(idx) < 2 {
			continue
		}
		sort.SliceStable(idx, func(a, b int) bool {
			ea, eb := endDates[idx[a]], endDates[idx[b]]
			if ea.IsZero() || eb.IsZero() {
				return !ea.IsZero() && eb.IsZero()
			}
			return ea.Before(eb)
		})
		for _, i := range idx[:len(idx)-1] {
			records[i].Excluded = true
		}
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// RelabelEscala rewrites "Escala 2 + Offside Leader" as "Offside Leader - E2".
func RelabelEscala(label string) string {
	m := escalaLabel.FindStringSubmatch(strings.TrimSpace(label))
	if m == nil {
		return label
	}
	return fmt.Sprintf("%s - E%s", strings.TrimSpace(m[2]), m[1])
}

var accentFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold returns the comparison key of a header or label: accents removed,
// lower case, inner whitespace collapsed.
func Fold(s string) string {
	folded, _, err := transform.String(accentFolder, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(spaces.ReplaceAllString(folded, " ")))
}

func foldSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[Fold(v)] = true
	}
	return set
}

func quoteAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = fmt.Sprintf("%q", v)
	}
	return out
}

// MonthsBetween returns the months covered by a situation from start to end,
// both inclusive. Whole calendar months count as 1; partial months at either
// end count their days at 12/365 of a month. The result is clamped to
// [0.01, 12].
func MonthsBetween(start, end time.Time) decimal.Decimal {
	startFull := start.Day() == 1
	endFull := end.Day() == daysIn(end)

	diff := wholeMonths(start, end)

	var months float64
	switch {
	case start.Year() == end.Year() && start.Month() == end.Month() && !(startFull && endFull):
		months = float64(end.Day()-start.Day()+1) * 12 / 365
	case startFull && endFull:
		months = float64(diff + 1)
	default:
		startDays, endDays := 0, 0
		if !startFull {
			startDays = daysIn(start) - start.Day() + 1
		}
		if !endFull {
			endDays = end.Day()
		}

		full := diff
		if !startFull && !endFull {
			full = diff - 1
			if full < 0 {
				full = 0
			}
		}
		months = float64(startDays)*12/365 + float64(full) + float64(endDays)*12/365
	}

	if months < 0.01 {
		months = 0.01
	}
	if months > 12 {
		months = 12
	}
	return decimal.NewFromFloat(months)
}

// wholeMonths counts complete months from a to b, like a calendar delta.
func wholeMonths(a, b time.Time) int {
	n := (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
	if b.Day() < a.Day() {
		n--
	}
	return n
}

func daysIn(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
