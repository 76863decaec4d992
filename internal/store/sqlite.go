package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ledgerlane/invoicer/internal/income"
	"github.com/ledgerlane/invoicer/internal/invoice"
)

const timestampLayout = time.RFC3339Nano

// SQLite persists invoices in a single local database file.
type SQLite struct {
	db    *sql.DB
	clock func() time.Time
}

// OpenSQLite opens (creating when needed) the database at path and migrates it.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// modernc serialises writers per connection; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", classify(err))
	}
	if err := MigrateSQLite(path, DirectionUp); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewSQLite(db), nil
}

// NewSQLite wraps an already migrated database handle.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db, clock: time.Now}
}

// Close releases the underlying handle.
func (r *SQLite) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Ping reports whether the database file is reachable.
func (r *SQLite) Ping(ctx context.Context) error {
	return classify(r.db.PingContext(ctx))
}

const liteColumns = `id, invoice_number, customer_name, customer_email, customer_address,
	invoice_date, due_date, items, notes, paid_amount, status, created_at, updated_at`

// Create inserts a new invoice.
func (r *SQLite) Create(ctx context.Context, inv invoice.Invoice) (*invoice.Invoice, error) {
	items, err := json.Marshal(nonNilItems(inv.Items))
	if err != nil {
		return nil, fmt.Errorf("store: encode items: %w", err)
	}
	id := uuid.NewString()
	now := r.clock().UTC().Format(timestampLayout)
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO invoices (`+liteColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		inv.InvoiceNumber,
		inv.CustomerName,
		inv.CustomerEmail,
		inv.CustomerAddress,
		inv.InvoiceDate.String(),
		inv.DueDate.String(),
		string(items),
		inv.Notes,
		inv.PaidAmount.String(),
		string(inv.Status),
		now,
		now,
	)
	if err != nil {
		return nil, classify(err)
	}
	return r.Get(ctx, id)
}

// Get fetches an invoice by ID.
func (r *SQLite) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+liteColumns+` FROM invoices WHERE id = ?`, id)
	out, err := scanLite(row)
	if err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// List returns invoices matching the filter ordered by invoice date descending.
func (r *SQLite) List(ctx context.Context, filter invoice.Filter) ([]invoice.Invoice, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + liteColumns + ` FROM invoices WHERE 1=1`)
	var args []any
	if filter.CustomerName != "" {
		sb.WriteString(" AND instr(lower(customer_name), lower(?)) > 0")
		args = append(args, filter.CustomerName)
	}
	if filter.Status != "" {
		sb.WriteString(" AND status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.DueFrom.Valid() {
		sb.WriteString(" AND due_date >= ?")
		args = append(args, filter.DueFrom.String())
	}
	if filter.DueTo.Valid() {
		sb.WriteString(" AND due_date <= ?")
		args = append(args, filter.DueTo.String())
	}
	sb.WriteString(" ORDER BY invoice_date DESC, invoice_number ASC")

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var invoices []invoice.Invoice
	for rows.Next() {
		inv, err := scanLite(rows)
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
func (r *SQLite) Update(ctx context.Context, inv invoice.Invoice) (*invoice.Invoice, error) {
	items, err := json.Marshal(nonNilItems(inv.Items))
	if err != nil {
		return nil, fmt.Errorf("store: encode items: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE invoices SET
			invoice_number = ?, customer_name = ?, customer_email = ?, customer_address = ?,
			invoice_date = ?, due_date = ?, items = ?, notes = ?, paid_amount = ?,
			status = ?, updated_at = ?
		WHERE id = ?`,
		inv.InvoiceNumber,
		inv.CustomerName,
		inv.CustomerEmail,
		inv.CustomerAddress,
		inv.InvoiceDate.String(),
		inv.DueDate.String(),
		string(items),
		inv.Notes,
		inv.PaidAmount.String(),
		string(inv.Status),
		r.clock().UTC().Format(timestampLayout),
		inv.ID,
	)
	if err != nil {
		return nil, classify(err)
	}
	if err := requireRow(res); err != nil {
		return nil, err
	}
	return r.Get(ctx, inv.ID)
}

// UpdateStatus writes only the status column.
func (r *SQLite) UpdateStatus(ctx context.Context, id string, status invoice.Status) (*invoice.Invoice, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE invoices SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), r.clock().UTC().Format(timestampLayout), id)
	if err != nil {
		return nil, classify(err)
	}
	if err := requireRow(res); err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

// IncomeByMonth loads completed invoices in range and aggregates them with
// decimal arithmetic, since SQLite has no exact numeric type.
func (r *SQLite) IncomeByMonth(ctx context.Context, rng income.Range) ([]income.MonthlyIncome, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+liteColumns+` FROM invoices WHERE status = ? AND invoice_date BETWEEN ? AND ?`,
		string(invoice.StatusCompleted), rng.Start.String(), rng.End.String())
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var invoices []invoice.Invoice
	for rows.Next() {
		inv, err := scanLite(rows)
		if err != nil {
			return nil, classify(err)
		}
		invoices = append(invoices, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return income.Months(invoices, rng), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLite(row rowScanner) (*invoice.Invoice, error) {
	var (
		inv                               invoice.Invoice
		invoiceDate, dueDate, items, paid string
		status, createdAt, updatedAt      string
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
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}
	inv.CreatedAt, _ = time.Parse(timestampLayout, createdAt)
	inv.UpdatedAt, _ = time.Parse(timestampLayout, updatedAt)
	// Unparseable stored dates surface as the zero Date.
	invDay, _ := invoice.ParseDate(invoiceDate)
	dueDay, _ := invoice.ParseDate(dueDate)
	return hydrate(&inv, invDay.Time, dueDay.Time, items, paid, status)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return classify(err)
	}
	if n == 0 {
		return classify(sql.ErrNoRows)
	}
	return nil
}

var (
	_ invoice.Repository = (*SQLite)(nil)
	_ income.Source      = (*SQLite)(nil)
)
