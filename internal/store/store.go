package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerlane/invoicer/internal/income"
	"github.com/ledgerlane/invoicer/internal/invoice"
	"github.com/ledgerlane/invoicer/internal/platform/db"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Backend is everything the application needs from a store.
type Backend interface {
	invoice.Repository
	income.Source
	Ping(ctx context.Context) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Driver      string
	PostgresDSN string
	SQLitePath  string
	AutoMigrate bool
	Pool        db.PoolOptions
}

// Open builds the configured backend.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch opts.Driver {
	case DriverPostgres:
		if opts.AutoMigrate {
			if err := MigratePostgres(opts.PostgresDSN, DirectionUp); err != nil {
				return nil, err
			}
		}
		pool, err := db.New(ctx, opts.PostgresDSN, opts.Pool)
		if err != nil {
			return nil, classify(err)
		}
		logger.Info("invoice store ready", slog.String("driver", opts.Driver))
		return &pooled{Postgres: NewPostgres(pool), pool: pool}, nil
	case DriverSQLite:
		lite, err := OpenSQLite(ctx, opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info("invoice store ready", slog.String("driver", opts.Driver), slog.String("path", opts.SQLitePath))
		return lite, nil
	case DriverMemory:
		logger.Warn("invoice store is in-memory; data is lost on restart")
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("store: unknown driver %q", opts.Driver)
	}
}

// pooled owns the pool behind a Postgres repository.
type pooled struct {
	*Postgres
	pool *pgxpool.Pool
}

// Modify locks the invoice row, applies change and writes the result in one
// transaction.
func (p *pooled) Modify(ctx context.Context, id string, change func(invoice.Invoice) (invoice.Invoice, error)) (*invoice.Invoice, error) {
	return modifyInTx(ctx, p.pool, id, change)
}

func (p *pooled) Close() error {
	p.pool.Close()
	return nil
}

// Ping always succeeds for the in-memory store.
func (m *Memory) Ping(context.Context) error { return nil }

// Close is a no-op for the in-memory store.
func (m *Memory) Close() error { return nil }
