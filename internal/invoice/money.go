package invoice

import (
	"github.com/shopspring/decimal"
)

// Total is the line amount, see LineTotal.
func (i Item) Total() decimal.Decimal {
	return LineTotal(i)
}

// LineTotal is quantity × price with negative inputs treated as zero.
func LineTotal(item Item) decimal.Decimal {
	qty := decimal.Max(item.Quantity, decimal.Zero)
	price := decimal.Max(item.Price, decimal.Zero)
	return qty.Mul(price)
}

// TotalAmount sums every line of the invoice.
func TotalAmount(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(LineTotal(item))
	}
	return total
}

// TotalDue is the total amount minus what has been paid. Overpayment yields a
// negative value.
func TotalDue(inv Invoice) decimal.Decimal {
	return TotalAmount(inv.Items).Sub(inv.PaidAmount)
}

// Totals returns both derived figures.
func Totals(inv Invoice) (amount, due decimal.Decimal) {
	amount = TotalAmount(inv.Items)
	return amount, amount.Sub(inv.PaidAmount)
}
