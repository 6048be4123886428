package common

import (
	"math"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// CurrencyINR is the ISO code every amount in the portfolio is held in.
const CurrencyINR = "INR"

// rupee returns the INR currency definition. money.New never yields a nil currency.
func rupee() money.Currency {
	return *money.New(0, CurrencyINR).Currency()
}

// FormatIndianRupee formats v with two decimals and Indian digit grouping
// (lakh/crore: the last three digits, then groups of two), e.g.
// 1234567.5 -> "12,34,567.50" and -1234.5 -> "-1,234.50".
func FormatIndianRupee(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	d := decimal.NewFromFloat(v)
	neg := d.IsNegative()
	fixed := d.Abs().StringFixed(int32(rupee().Fraction))

	intPart, frac, _ := strings.Cut(fixed, ".")
	grouped := groupIndian(intPart)
	if frac != "" {
		grouped += "." + frac
	}
	// "-0.00" is not a thing
	if neg && strings.Trim(fixed, "0.") != "" {
		return "-" + grouped
	}
	return grouped
}

// FormatRupee is FormatIndianRupee prefixed with the rupee sign.
func FormatRupee(v float64) string {
	s := FormatIndianRupee(v)
	if strings.HasPrefix(s, "-") {
		return "-" + rupee().Grapheme + s[1:]
	}
	return rupee().Grapheme + s
}

// FormatOptionalRupee renders nil as "N/A".
func FormatOptionalRupee(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return FormatRupee(*v)
}

// FormatPercent renders a percentage with two decimals, nil as "N/A".
func FormatPercent(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return decimal.NewFromFloat(*v).StringFixed(2) + "%"
}

// FormatQuantity renders a share count without float noise, e.g. 0.1+0.2 -> "0.3".
func FormatQuantity(q float64) string {
	if math.IsNaN(q) || math.IsInf(q, 0) {
		return "-"
	}
	return decimal.NewFromFloat(q).Round(6).String()
}

func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	var parts []string
	for len(head) > 2 {
		parts = append([]string{head[len(head)-2:]}, parts...)
		head = head[:len(head)-2]
	}
	if head != "" {
		parts = append([]string{head}, parts...)
	}
	return strings.Join(append(parts, tail), ",")
}

// Dec converts a float to a decimal for exact intermediate arithmetic.
func Dec(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

// Float converts a decimal back to float64.
func Float(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// Ptr returns a pointer to v. Used for optional figures.
func Ptr(v float64) *float64 {
	return &v
}

// Amount returns quantity*price.
func Amount(quantity, price float64) float64 {
	return Float(Dec(quantity).Mul(Dec(price)))
}

// Profit returns quantity*(sell-cost).
func Profit(quantity, cost, sell float64) float64 {
	return Float(Dec(quantity).Mul(Dec(sell).Sub(Dec(cost))))
}

// ProfitPercentage returns profit/(quantity*cost)*100, or nil when the
// invested amount is zero.
func ProfitPercentage(profit, quantity, cost float64) *float64 {
	invested := Dec(quantity).Mul(Dec(cost))
	if invested.IsZero() {
		return nil
	}
	return Ptr(Float(Dec(profit).Div(invested).Mul(decimal.NewFromInt(100))))
}

// ChangePercentage returns (current-cost)/cost*100, or nil when cost is zero.
func ChangePercentage(cost, current float64) *float64 {
	if cost == 0 {
		return nil
	}
	c := Dec(cost)
	return Ptr(Float(Dec(current).Sub(c).Div(c).Mul(decimal.NewFromInt(100))))
}

// IsPositiveFinite reports whether v is a usable price or quantity.
func IsPositiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
