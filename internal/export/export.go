// Package export renders a statement result for spreadsheets and terminals.
package export

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/gocarina/gocsv"

	"github.com/gsoares/extratorio/internal/domain"
)

// csvRow is the flat export shape. The columns are fixed; a record without
// a running balance leaves the balance cell empty.
type csvRow struct {
	Date        string `csv:"date"`
	Description string `csv:"description"`
	Amount      string `csv:"amount"`
	Balance     string `csv:"balance"`
}

// WriteCSV writes the merged records as CSV with the four fixed columns
// date, description, amount, balance. Amounts are rendered with two
// decimal places, debits negative.
func WriteCSV(w io.Writer, res *domain.StatementResult) error {
	rows := make([]csvRow, 0, len(res.Records))
	for _, r := range res.Records {
		row := csvRow{
			Date:        r.Date.String(),
			Description: r.Description,
			Amount:      r.Amount.StringFixed(2),
		}
		if r.BalanceAfter != nil {
			row.Balance = r.BalanceAfter.StringFixed(2)
		}
		rows = append(rows, row)
	}

	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("WriteCSV: %w", err)
	}
	return nil
}

// WriteTable writes an aligned table of the records followed by the
// totals, then any warnings and failed chunks. Meant for the CLI.
func WriteTable(w io.Writer, res *domain.StatementResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "DATE\tDESCRIPTION\tAMOUNT\tBALANCE")
	for _, r := range res.Records {
		balance := ""
		if r.BalanceAfter != nil {
			balance = r.BalanceAfter.StringFixed(2)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Date, r.Description, r.Amount.StringFixed(2), balance)
	}

	fmt.Fprintln(tw)
	fmt.Fprintf(tw, "Credits\t%s\n", res.Totals.Credits.StringFixed(2))
	fmt.Fprintf(tw, "Debits\t%s\n", res.Totals.Debits.StringFixed(2))
	fmt.Fprintf(tw, "Final balance\t%s\n", res.Totals.FinalBalance.StringFixed(2))

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("WriteTable: flush: %w", err)
	}

	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "warning: chunk %d: %s\n", warn.Chunk, warn.Message)
	}
	for _, f := range res.FailedChunks {
		fmt.Fprintf(w, "failed: chunk %d (pages %d-%d) after %d attempts: %s\n",
			f.Chunk, f.Pages.First, f.Pages.Last, f.Attempts, f.Reason)
	}
	return nil
}
