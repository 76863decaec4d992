package income

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerlane/invoicer/internal/invoice"
)

// Range is an inclusive reporting window snapped to whole months.
type Range struct {
	Start invoice.Date
	End   invoice.Date
}

// NewRange snaps start to the first day of its month and end to the last day
// of its month. An end month before the start month is rejected.
func NewRange(start, end invoice.Date) (Range, error) {
	var verrs invoice.ValidationErrors
	if !start.Valid() {
		verrs = append(verrs, invoice.FieldError{Field: "start", Message: "must be a valid date (YYYY-MM-DD)"})
	}
	if !end.Valid() {
		verrs = append(verrs, invoice.FieldError{Field: "end", Message: "must be a valid date (YYYY-MM-DD)"})
	}
	if len(verrs) > 0 {
		return Range{}, verrs
	}
	r := Range{Start: firstOfMonth(start), End: lastOfMonth(end)}
	if r.End.Before(r.Start) {
		return Range{}, invoice.ValidationErrors{{Field: "end", Message: "must not be before start"}}
	}
	return r, nil
}

// ParseRange builds a Range from YYYY-MM-DD strings.
func ParseRange(start, end string) (Range, error) {
	s, errStart := invoice.ParseDate(start)
	e, errEnd := invoice.ParseDate(end)
	if errStart != nil || errEnd != nil {
		var verrs invoice.ValidationErrors
		if errStart != nil {
			verrs = append(verrs, invoice.FieldError{Field: "start", Message: "must be a valid date (YYYY-MM-DD)"})
		}
		if errEnd != nil {
			verrs = append(verrs, invoice.FieldError{Field: "end", Message: "must be a valid date (YYYY-MM-DD)"})
		}
		return Range{}, verrs
	}
	return NewRange(s, e)
}

// TrailingMonths returns the window covering the n months ending with day's month.
func TrailingMonths(day invoice.Date, n int) Range {
	if n < 1 {
		n = 1
	}
	start := firstOfMonth(day)
	start = invoice.DateOf(start.AddDate(0, -(n - 1), 0))
	return Range{Start: start, End: lastOfMonth(day)}
}

// Contains reports whether day falls inside the range.
func (r Range) Contains(day invoice.Date) bool {
	return day.Valid() && !day.Before(r.Start) && !r.End.Before(day)
}

// Key is a stable identifier used for cache keys.
func (r Range) Key() string {
	return r.Start.Format("2006-01") + ":" + r.End.Format("2006-01")
}

// MonthlyIncome is the income recognised in one calendar month.
type MonthlyIncome struct {
	Year        int             `json:"year"`
	MonthIndex  int             `json:"monthIndex"`
	TotalIncome decimal.Decimal `json:"totalIncome"`
}

// Label renders the month as "Jul 2024".
func (m MonthlyIncome) Label() string {
	return time.Month(m.MonthIndex+1).String()[:3] + " " + strconv.Itoa(m.Year)
}

func (m MonthlyIncome) ordinal() int {
	return m.Year*12 + m.MonthIndex
}

// Report is the aggregated income for a range.
type Report struct {
	Start              invoice.Date    `json:"start"`
	End                invoice.Date    `json:"end"`
	MonthlyData        []MonthlyIncome `json:"monthlyData"`
	TotalIncomeInRange decimal.Decimal `json:"totalIncomeInRange"`
}

// Source computes monthly income for a range, typically inside the store.
type Source interface {
	IncomeByMonth(ctx context.Context, r Range) ([]MonthlyIncome, error)
}

// Months groups the paid amount of Completed invoices by invoice month.
// Income is recognised by invoice date using the status at query time.
func Months(invoices []invoice.Invoice, r Range) []MonthlyIncome {
	byMonth := make(map[int]*MonthlyIncome)
	for _, inv := range invoices {
		if inv.Status != invoice.StatusCompleted || !r.Contains(inv.InvoiceDate) {
			continue
		}
		entry := MonthlyIncome{Year: inv.InvoiceDate.Year(), MonthIndex: int(inv.InvoiceDate.Month()) - 1}
		key := entry.ordinal()
		current, ok := byMonth[key]
		if !ok {
			entry.TotalIncome = decimal.Zero
			current = &entry
			byMonth[key] = current
		}
		current.TotalIncome = current.TotalIncome.Add(inv.PaidAmount)
	}
	out := make([]MonthlyIncome, 0, len(byMonth))
	for _, m := range byMonth {
		out = append(out, *m)
	}
	return out
}

// Aggregate computes the full report from raw invoices.
func Aggregate(invoices []invoice.Invoice, r Range) Report {
	return Summarize(Months(invoices, r), r)
}

// Summarize sorts monthly entries ascending and totals them.
func Summarize(months []MonthlyIncome, r Range) Report {
	sorted := make([]MonthlyIncome, len(months))
	copy(sorted, months)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ordinal() < sorted[j].ordinal() })
	total := decimal.Zero
	for _, m := range sorted {
		total = total.Add(m.TotalIncome)
	}
	return Report{Start: r.Start, End: r.End, MonthlyData: sorted, TotalIncomeInRange: total}
}

// Fill expands the report into a continuous timeline, emitting zero for
// months without income.
func Fill(rep Report) []MonthlyIncome {
	if !rep.Start.Valid() || !rep.End.Valid() {
		return rep.MonthlyData
	}
	known := make(map[int]decimal.Decimal, len(rep.MonthlyData))
	for _, m := range rep.MonthlyData {
		known[m.ordinal()] = m.TotalIncome
	}
	var out []MonthlyIncome
	for cursor := firstOfMonth(rep.Start); !rep.End.Before(cursor); cursor = invoice.DateOf(cursor.AddDate(0, 1, 0)) {
		entry := MonthlyIncome{Year: cursor.Year(), MonthIndex: int(cursor.Month()) - 1, TotalIncome: decimal.Zero}
		if v, ok := known[entry.ordinal()]; ok {
			entry.TotalIncome = v
		}
		out = append(out, entry)
	}
	return out
}

func firstOfMonth(d invoice.Date) invoice.Date {
	return invoice.NewDate(d.Year(), d.Month(), 1)
}

func lastOfMonth(d invoice.Date) invoice.Date {
	first := firstOfMonth(d)
	return invoice.DateOf(first.AddDate(0, 1, -1))
}
