// =============================================================================
// Pay Equity Processor - Equalizer
// =============================================================================
//
// The equalizer converts every record to a full-time, full-year basis so that
// part-time and partial-year employees can be compared with everyone else.
//
// FORMULAS:
//   base        = base / work_fraction * 12 / months
//   complement  = amount / work_fraction              (no configured rule)
//   complement  = amount [/ work_fraction if normalizable]
//                        [* 12 / months   if annualizable]
//
//   SB+PS       = base + salary complements
//   SB+PS+PE    = SB+PS + extra complements     (EqualizedSalary)
//
// Effective (as paid) totals are kept next to the equalized ones.
//
// Records with a work fraction of zero or below cannot be equalized; they are
// returned flagged Skipped, with effective figures only, and counted.
//
// =============================================================================

package equalizer

import (
	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/payequity/internal/types"
)

var twelve = decimal.NewFromInt(12)

// Summary counts what happened to the input records.
type Summary struct {
	Input     int
	Equalized int
	Skipped   int

	// SkippedRows holds the source row numbers of skipped records.
	SkippedRows []int
}

// Equalize computes the equalized figures of each record.
//
// PARAMETERS:
//   - records: Normalized records. They are not modified.
//
// RETURNS:
//   - One record per input record, in input order. Skipped ones carry
//     Skipped=true and zero equalized figures.
//   - The counters.
func Equalize(records []types.EmployeeRecord) ([]types.EqualizedRecord, Summary) {
	summary := Summary{Input: len(records)}
	out := make([]types.EqualizedRecord, 0, len(records))

	for _, r := range records {
		if !r.WorkFraction.IsPositive() {
			summary.Skipped++
			summary.SkippedRows = append(summary.SkippedRows, r.RowNumber)
			out = append(out, skip(r))
			continue
		}
		out = append(out, EqualizeRecord(r))
		summary.Equalized++
	}

	return out, summary
}

// skip builds the record of an employee that cannot be equalized.
func skip(r types.EmployeeRecord) types.EqualizedRecord {
	eq := types.EqualizedRecord{
		EmployeeRecord:    r,
		EqualizedBase:     decimal.Zero,
		SalaryComplements: decimal.Zero,
		ExtraComplements:  decimal.Zero,
		BasePlusSalary:    decimal.Zero,
		EqualizedSalary:   decimal.Zero,
		Skipped:           true,
	}
	effective(&eq)
	return eq
}

// effective fills the as-paid totals of eq.
func effective(eq *types.EqualizedRecord) {
	eq.EffectiveSalaryComplements = decimal.Zero
	eq.EffectiveExtraComplements = decimal.Zero
	for _, c := range eq.Complements {
		if c.Kind == types.ComplementExtra {
			eq.EffectiveExtraComplements = eq.EffectiveExtraComplements.Add(c.Amount)
		} else {
			eq.EffectiveSalaryComplements = eq.EffectiveSalaryComplements.Add(c.Amount)
		}
	}
	eq.EffectiveBasePlusSalary = eq.BaseSalary.Add(eq.EffectiveSalaryComplements)
	eq.EffectiveSalary = eq.EffectiveBasePlusSalary.Add(eq.EffectiveExtraComplements)
}

// EqualizeRecord equalizes one record. The work fraction must be positive.
func EqualizeRecord(r types.EmployeeRecord) types.EqualizedRecord {
	months := r.MonthsWorked
	if !months.IsPositive() {
		months = twelve
	}
	yearFactor := twelve.Div(months)

	eq := types.EqualizedRecord{
		EmployeeRecord:       r,
		EqualizedBase:        r.BaseSalary.Div(r.WorkFraction).Mul(yearFactor),
		SalaryComplements:    decimal.Zero,
		ExtraComplements:     decimal.Zero,
		EqualizedComplements: make([]types.EqualizedComplement, 0, len(r.Complements)),
	}

	for _, c := range r.Complements {
		amount := c.Amount
		switch {
		case c.Rule == nil:
			amount = amount.Div(r.WorkFraction)
		default:
			if c.Rule.Normalizable {
				amount = amount.Div(r.WorkFraction)
			}
			if c.Rule.Annualizable {
				amount = amount.Mul(yearFactor)
			}
		}

		eq.EqualizedComplements = append(eq.EqualizedComplements, types.EqualizedComplement{
			Complement: c,
			Equalized:  amount,
		})
		if c.Kind == types.ComplementExtra {
			eq.ExtraComplements = eq.ExtraComplements.Add(amount)
		} else {
			eq.SalaryComplements = eq.SalaryComplements.Add(amount)
		}
	}

	eq.BasePlusSalary = eq.EqualizedBase.Add(eq.SalaryComplements)
	eq.EqualizedSalary = eq.BasePlusSalary.Add(eq.ExtraComplements)
	effective(&eq)
	return eq
}

// Round presents an amount with two decimals, half away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
