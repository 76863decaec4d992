package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/ledgerlane/invoicer/internal/app"
	"github.com/ledgerlane/invoicer/internal/invoice"
	"github.com/ledgerlane/invoicer/internal/platform/httpx"
)

func newSeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load demo invoices",
		Long:  "Creates a spread of demo invoices across every status and the last year. Existing invoice numbers are skipped.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			logger := app.NewLogger(cfg)
			backend, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer backend.Close()

			svc := invoice.NewService(backend, nil, nil, logger)
			today := invoice.DateOf(time.Now().In(cfg.Location()))
			return Seed(cmd.Context(), svc, today, cmd.OutOrStdout())
		},
	}
}

// InvoiceCreator is the part of the invoice service seeding needs.
type InvoiceCreator interface {
	CreateInvoice(ctx context.Context, in invoice.Input) (*invoice.Invoice, error)
}

type seedLine struct {
	description string
	quantity    int64
	price       string
}

type seedInvoice struct {
	customer string
	email    string
	ageDays  int
	dueIn    int
	status   invoice.Status
	paid     string
	lines    []seedLine
}

var demoInvoices = []seedInvoice{
	{"Acme Corp", "ap@acme.test", 330, -300, invoice.StatusCompleted, "1200", []seedLine{{"Website redesign", 1, "1200"}}},
	{"Globex", "billing@globex.test", 250, -220, invoice.StatusCompleted, "640", []seedLine{{"Support retainer", 8, "80"}}},
	{"Initech", "", 190, -160, invoice.StatusCompleted, "450.50", []seedLine{{"Data migration", 1, "450.50"}}},
	{"Acme Corp", "ap@acme.test", 120, -90, invoice.StatusCompleted, "2000", []seedLine{{"API integration", 20, "95"}, {"Hosting", 1, "100"}}},
	{"Umbrella", "finance@umbrella.test", 60, -30, invoice.StatusCancelled, "0", []seedLine{{"Workshop", 1, "900"}}},
	{"Globex", "billing@globex.test", 30, 0, invoice.StatusInProcess, "250", []seedLine{{"Quarterly audit", 1, "750"}}},
	{"Initech", "", 20, 10, invoice.StatusHold, "0", []seedLine{{"Printer repair", 3, "45"}}},
	{"Hooli", "ap@hooli.test", 5, 25, invoice.StatusPending, "0", []seedLine{{"Design sprint", 5, "300"}}},
	{"Acme Corp", "ap@acme.test", 2, 0, invoice.StatusPending, "0", []seedLine{{"Emergency fix", 2, "150"}}},
}

// Seed creates the demo invoices relative to today. Numbers already taken
// are reported and skipped.
func Seed(ctx context.Context, svc InvoiceCreator, today invoice.Date, out io.Writer) error {
	created := 0
	for i, demo := range demoInvoices {
		number := fmt.Sprintf("DEMO-%04d", i+1)
		items := make([]invoice.ItemInput, 0, len(demo.lines))
		for _, line := range demo.lines {
			items = append(items, invoice.ItemInput{
				Description: line.description,
				Quantity:    decimal.NewFromInt(line.quantity),
				Price:       decimal.RequireFromString(line.price),
			})
		}
		issued := today.AddDate(0, 0, -demo.ageDays)
		_, err := svc.CreateInvoice(ctx, invoice.Input{
			InvoiceNumber: number,
			CustomerName:  demo.customer,
			CustomerEmail: demo.email,
			InvoiceDate:   issued.Format(invoice.DateLayout),
			DueDate:       today.AddDate(0, 0, demo.dueIn).Format(invoice.DateLayout),
			Status:        demo.status,
			PaidAmount:    decimal.RequireFromString(demo.paid),
			Items:         items,
		})
		switch {
		case errors.Is(err, httpx.ErrDuplicate):
			fmt.Fprintf(out, "skip %s: already exists\n", number)
			continue
		case err != nil:
			return fmt.Errorf("seed %s: %w", number, err)
		}
		created++
	}
	fmt.Fprintf(out, "seeded %d invoice(s)\n", created)
	return nil
}
