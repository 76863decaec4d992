// Package export writes income reports as CSV and PDF.
package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/ledgerlane/invoicer/internal/income"
)

// WriteIncomeCSV emits one row per month of the continuous timeline followed
// by the range total. Amounts keep full decimal precision.
func WriteIncomeCSV(w io.Writer, rep income.Report) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"Year", "Month", "Label", "Total Income"}); err != nil {
		return err
	}
	for _, m := range income.Fill(rep) {
		if err := writer.Write([]string{
			strconv.Itoa(m.Year),
			strconv.Itoa(m.MonthIndex + 1),
			m.Label(),
			m.TotalIncome.StringFixed(2),
		}); err != nil {
			return err
		}
	}
	if err := writer.Write([]string{"", "", "Total", rep.TotalIncomeInRange.StringFixed(2)}); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}
