package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	jobmetrics "github.com/ledgerlane/invoicer/internal/jobs"
	"github.com/ledgerlane/invoicer/internal/invoice"
	"github.com/ledgerlane/invoicer/internal/platform/money"
)

// DueLister finds open invoices due on a day.
type DueLister interface {
	DueOn(ctx context.Context, day invoice.Date) ([]invoice.Invoice, error)
}

// MailEnqueuer queues outgoing mail.
type MailEnqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error)
}

// DueReminderJob mails each customer a digest of their invoices due today,
// and the billing inbox a digest of all of them.
type DueReminderJob struct {
	Invoices  DueLister
	Mail      MailEnqueuer
	Recipient string
	Location  *time.Location
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// Handle implements asynq.HandlerFunc.
func (j *DueReminderJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Invoices == nil || j.Mail == nil {
		return errors.New("due reminder: handler not configured")
	}
	var payload DueReminderPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("decode reminder payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	day, err := j.day(payload)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	tracker := j.Metrics.Track(TaskDueReminder)
	defer func() { err = tracker.End(err) }()
	logger := loggerOrDefault(j.Logger).With(slog.String("day", day.String()))

	due, err := j.Invoices.DueOn(ctx, day)
	if err != nil {
		logger.Error("load due invoices", slog.Any("error", err))
		return err
	}
	if len(due) == 0 {
		logger.Info("no invoices due")
		return nil
	}

	mails := Digests(day, due, j.Recipient)
	for _, mail := range mails {
		if _, err := j.Mail.EnqueueSendEmail(ctx, mail); err != nil {
			logger.Error("enqueue reminder", slog.String("to", mail.To), slog.Any("error", err))
			return err
		}
	}
	j.Metrics.AddItems(TaskDueReminder, len(mails))
	logger.Info("due reminders queued", slog.Int("invoices", len(due)), slog.Int("mails", len(mails)))
	return nil
}

func (j *DueReminderJob) day(payload DueReminderPayload) (invoice.Date, error) {
	if payload.Day != "" {
		return invoice.ParseDate(payload.Day)
	}
	now := time.Now
	if j.clock != nil {
		now = j.clock
	}
	loc := j.Location
	if loc == nil {
		loc = time.UTC
	}
	return invoice.DateOf(now().In(loc)), nil
}

// Digests builds one mail per customer email plus, when recipient is set, a
// summary of every due invoice. Customers without an email only appear in
// the summary.
func Digests(day invoice.Date, due []invoice.Invoice, recipient string) []SendEmailPayload {
	byCustomer := make(map[string][]invoice.Invoice)
	for _, inv := range due {
		if email := strings.TrimSpace(inv.CustomerEmail); email != "" {
			byCustomer[email] = append(byCustomer[email], inv)
		}
	}
	emails := make([]string, 0, len(byCustomer))
	for email := range byCustomer {
		emails = append(emails, email)
	}
	sort.Strings(emails)

	out := make([]SendEmailPayload, 0, len(emails)+1)
	for _, email := range emails {
		invoices := byCustomer[email]
		out = append(out, SendEmailPayload{
			To:      email,
			Subject: fmt.Sprintf("Payment reminder: %d invoice(s) due %s", len(invoices), day),
			Body:    "The following invoices are due today:\n\n" + lines(invoices),
		})
	}
	if recipient != "" {
		out = append(out, SendEmailPayload{
			To:      recipient,
			Subject: fmt.Sprintf("Invoices due %s: %d open", day, len(due)),
			Body:    lines(due),
		})
	}
	return out
}

func lines(invoices []invoice.Invoice) string {
	var b strings.Builder
	total := decimal.Zero
	for _, inv := range invoices {
		due := invoice.TotalDue(inv)
		total = total.Add(due)
		fmt.Fprintf(&b, "%-16s %-28s %-10s %14s\n", inv.InvoiceNumber, inv.CustomerName, inv.Status, money.Format(due))
	}
	fmt.Fprintf(&b, "\nTotal due: %s\n", money.Format(total))
	return b.String()
}
