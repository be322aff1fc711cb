package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fixbench/repair-desk/internal/domain"
	"github.com/fixbench/repair-desk/internal/repository"
)

const uniqueViolation = "23505"

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store runs repository work inside pgx transactions.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore returns a Postgres-backed repository.Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// WithinTx implements repository.Store.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	if s == nil || s.pool == nil {
		return errors.New("postgres pool not configured")
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepos{tx: tx})
	})
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return errors.New("postgres pool not configured")
	}
	return s.pool.Ping(ctx)
}

type txRepos struct {
	tx pgx.Tx
}

func (t *txRepos) Tickets() repository.TicketRepository         { return &ticketRepository{db: t.tx} }
func (t *txRepos) Devices() repository.DeviceRepository         { return &deviceRepository{db: t.tx} }
func (t *txRepos) Customers() repository.CustomerRepository     { return &customerRepository{db: t.tx} }
func (t *txRepos) WorkLogs() repository.WorkLogRepository       { return &workLogRepository{db: t.tx} }
func (t *txRepos) Parts() repository.PartRepository             { return &partRepository{db: t.tx} }
func (t *txRepos) TicketParts() repository.TicketPartRepository { return &ticketPartRepository{db: t.tx} }
func (t *txRepos) Invoices() repository.InvoiceRepository       { return &invoiceRepository{db: t.tx} }

// Savepoint opens a nested pgx transaction, which pgx maps to SAVEPOINT.
func (t *txRepos) Savepoint(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	return pgx.BeginFunc(ctx, t.tx, func(sp pgx.Tx) error {
		return fn(ctx, &txRepos{tx: sp})
	})
}

func notFound(err error, entity, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", entity, id, domain.ErrNotFound)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func expectOne(tag pgconn.CommandTag, entity, id string) error {
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s: %w", entity, id, domain.ErrNotFound)
	}
	return nil
}
