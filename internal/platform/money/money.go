// Package money formats decimal amounts for people.
package money

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Format renders an amount with thousands grouping and two decimals. It is
// for display only; stored values keep their full precision.
func Format(d decimal.Decimal) string {
	whole := d.Truncate(0)
	cents := d.Sub(whole).Abs().Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	if cents == 100 {
		whole = whole.Add(decimal.NewFromInt(int64(d.Sign())))
		cents = 0
	}
	sign := ""
	if d.Sign() < 0 {
		sign = "-"
	}
	return printer.Sprintf("%s%d.%02d", sign, whole.Abs().IntPart(), cents)
}
