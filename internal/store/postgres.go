package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/ledgerlane/invoicer/internal/income"
	"github.com/ledgerlane/invoicer/internal/invoice"
	"github.com/ledgerlane/invoicer/internal/platform/db"
)

// DBTX is the subset of pgxpool.Pool (and pgx.Tx) the store needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres provides PostgreSQL backed persistence for invoices.
type Postgres struct {
	db DBTX
}

// NewPostgres constructs a repository over an injected pool or transaction.
func NewPostgres(db DBTX) *Postgres {
	return &Postgres{db: db}
}

const pgColumns = `id, invoice_number, customer_name, customer_email, customer_address,
	invoice_date, due_date, items::text, notes, paid_amount::text, status, created_at, updated_at`

// Create inserts a new invoice.
func (r *Postgres) Create(ctx context.Context, inv invoice.Invoice) (*invoice.Invoice, error) {
	items, err := json.Marshal(nonNilItems(inv.Items))
	if err != nil {
		return nil, fmt.Errorf("store: encode items: %w", err)
	}
	query := `
		INSERT INTO invoices (
			id, invoice_number, customer_name, customer_email, customer_address,
			invoice_date, due_date, items, notes, paid_amount, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		RETURNING ` + pgColumns

	row := r.db.QueryRow(ctx, query,
		uuid.NewString(),
		inv.InvoiceNumber,
		inv.CustomerName,
		inv.CustomerEmail,
		inv.CustomerAddress,
		inv.InvoiceDate.Time,
		inv.DueDate.Time,
		string(items),
		inv.Notes,
		inv.PaidAmount.String(),
		string(inv.Status),
	)
	out, err := scanInvoice(row)
	if err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// Get fetches an invoice by ID.
func (r *Postgres) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	row := r.db.QueryRow(ctx, `SELECT `+pgColumns+` FROM invoices WHERE id = $1`, id)
	out, err := scanInvoice(row)
	if err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// getForUpdate reads an invoice and locks its row until the transaction ends.
func (r *Postgres) getForUpdate(ctx context.Context, id string) (*invoice.Invoice, error) {
	row := r.db.QueryRow(ctx, `SELECT `+pgColumns+` FROM invoices WHERE id = $1 FOR UPDATE`, id)
	out, err := scanInvoice(row)
	if err != nil {
		return nil, classify(err)
	}
	return out, nil
}

func modifyInTx(ctx context.Context, beginner db.Beginner, id string, change func(invoice.Invoice) (invoice.Invoice, error)) (*invoice.Invoice, error) {
	var updated *invoice.Invoice
	err := db.WithTx(ctx, beginner, func(tx pgx.Tx) error {
		repo := NewPostgres(tx)
		current, err := repo.getForUpdate(ctx, id)
		if err != nil {
			return err
		}
		next, err := change(*current)
		if err != nil {
			return err
		}
		next.ID = id
		updated, err = repo.Update(ctx, next)
		return err
	})
	if err != nil {
		return nil, classify(err)
	}
	return updated, nil
}

// List returns invoices matching the filter ordered by invoice date descending.
func (r *Postgres) List(ctx context.Context, filter invoice.Filter) ([]invoice.Invoice, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + pgColumns + ` FROM invoices WHERE 1=1`)
	args := []any{}
	argNum := 1

	if filter.CustomerName != "" {
		sb.WriteString(fmt.Sprintf(" AND position(lower($%d) in lower(customer_name)) > 0", argNum))
		args = append(args, filter.CustomerName)
		argNum++
	}
	if filter.Status != "" {
		sb.WriteString(fmt.Sprintf(" AND status = $%d", argNum))
		args = append(args, string(filter.Status))
		argNum++
	}
	if filter.DueFrom.Valid() {
		sb.WriteString(fmt.Sprintf(" AND due_date >= $%d", argNum))
		args = append(args, filter.DueFrom.Time)
		argNum++
	}
	if filter.DueTo.Valid() {
		// due_date is a DATE, so comparing against the day covers its whole span.
		sb.WriteString(fmt.Sprintf(" AND due_date <= $%d", argNum))
		args = append(args, filter.DueTo.Time)
		argNum++
	}
	sb.WriteString(" ORDER BY invoice_date DESC, invoice_number ASC")

	rows, err := r.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var invoices []invoice.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, classify(err)
		}
		invoices = append(invoices, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return invoices, nil
}

// Update replaces every mutable column of an invoice.
func (r *Postgres) Update(ctx context.Context, inv invoice.Invoice) (*invoice.Invoice, error) {
	items, err := json.Marshal(nonNilItems(inv.Items))
	if err != nil {
		return nil, fmt.Errorf("store: encode items: %w", err)
	}
	query := `
		UPDATE invoices SET
			invoice_number = $2, customer_name = $3, customer_email = $4, customer_address = $5,
			invoice_date = $6, due_date = $7, items = $8, notes = $9, paid_amount = $10,
			status = $11, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + pgColumns

	row := r.db.QueryRow(ctx, query,
		inv.ID,
		inv.InvoiceNumber,
		inv.CustomerName,
		inv.CustomerEmail,
		inv.CustomerAddress,
		inv.InvoiceDate.Time,
		inv.DueDate.Time,
		string(items),
		inv.Notes,
		inv.PaidAmount.String(),
		string(inv.Status),
	)
	out, err := scanInvoice(row)
	if err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// UpdateStatus writes only the status column.
func (r *Postgres) UpdateStatus(ctx context.Context, id string, status invoice.Status) (*invoice.Invoice, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE invoices SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING `+pgColumns,
		id, string(status))
	out, err := scanInvoice(row)
	if err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// IncomeByMonth sums paid amounts of completed invoices per invoice month.
func (r *Postgres) IncomeByMonth(ctx context.Context, rng income.Range) ([]income.MonthlyIncome, error) {
	query := `
		SELECT EXTRACT(YEAR FROM invoice_date)::int AS year,
		       EXTRACT(MONTH FROM invoice_date)::int - 1 AS month_index,
		       SUM(paid_amount)::text AS total
		FROM invoices
		WHERE status = $1 AND invoice_date BETWEEN $2 AND $3
		GROUP BY 1, 2
		ORDER BY 1, 2`
	rows, err := r.db.Query(ctx, query, string(invoice.StatusCompleted), rng.Start.Time, rng.End.Time)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var months []income.MonthlyIncome
	for rows.Next() {
		var m income.MonthlyIncome
		var total string
		if err := rows.Scan(&m.Year, &m.MonthIndex, &total); err != nil {
			return nil, classify(err)
		}
		if m.TotalIncome, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("store: decode income total: %w", err)
		}
		months = append(months, m)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return months, nil
}

// Ping reports whether the database answers.
func (r *Postgres) Ping(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `SELECT 1`)
	return classify(err)
}

func scanInvoice(row pgx.Row) (*invoice.Invoice, error) {
	var (
		inv                  invoice.Invoice
		invoiceDate, dueDate time.Time
		items, paid, status  string
	)
	if err := row.Scan(
		&inv.ID,
		&inv.InvoiceNumber,
		&inv.CustomerName,
		&inv.CustomerEmail,
		&inv.CustomerAddress,
		&invoiceDate,
		&dueDate,
		&items,
		&inv.Notes,
		&paid,
		&status,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return hydrate(&inv, invoiceDate, dueDate, items, paid, status)
}

func hydrate(inv *invoice.Invoice, invoiceDate, dueDate time.Time, items, paid, status string) (*invoice.Invoice, error) {
	inv.InvoiceDate = invoice.DateOf(invoiceDate)
	inv.DueDate = invoice.DateOf(dueDate)
	inv.Status = invoice.Status(status)
	if err := json.Unmarshal([]byte(items), &inv.Items); err != nil {
		return nil, fmt.Errorf("store: decode items: %w", err)
	}
	amount, err := decimal.NewFromString(paid)
	if err != nil {
		return nil, fmt.Errorf("store: decode paid amount: %w", err)
	}
	inv.PaidAmount = amount
	return inv, nil
}

func nonNilItems(items []invoice.Item) []invoice.Item {
	if items == nil {
		return []invoice.Item{}
	}
	return items
}

var (
	_ invoice.Repository = (*Postgres)(nil)
	_ income.Source      = (*Postgres)(nil)
)
