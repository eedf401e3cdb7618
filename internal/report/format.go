package report

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/payequity/internal/types"
)

const (
	// Blank is shown in place of a suppressed statistic.
	Blank = "—"

	// Undefined is shown for a gap that cannot be computed.
	Undefined = "n/d"
)

// FormatAmount renders d with two decimals in Spanish notation: 1.234,56.
func FormatAmount(d decimal.Decimal) string {
	s := d.StringFixed(2)

	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac, _ := strings.Cut(s, ".")
	out := groupThousands(intPart) + "," + frac
	if neg {
		out = "-" + out
	}
	return out
}

// FormatCount renders an integer with thousands dots.
func FormatCount(n int) string {
	s := strconv.Itoa(n)
	if n < 0 {
		return "-" + groupThousands(s[1:])
	}
	return groupThousands(s)
}

// FormatPercent renders a ratio as a percentage: 0.1234 -> "12,34 %".
func FormatPercent(ratio decimal.Decimal) string {
	return FormatAmount(ratio.Mul(decimal.NewFromInt(100))) + " %"
}

// FormatGap renders a gap honouring suppression and undefined values.
func FormatGap(g types.GapStat) string {
	switch {
	case g.Suppressed:
		return Blank
	case !g.Defined:
		return Undefined
	}
	return FormatPercent(g.Value)
}

// FormatStat renders a group statistic, blank when suppressed or empty.
func FormatStat(g types.CategoryGroup, value decimal.Decimal) string {
	if g.Suppressed || g.Count == 0 {
		return Blank
	}
	return FormatAmount(value)
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
