package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fixbench/repair-desk/internal/domain"
)

type partRepository struct {
	db dbtx
}

func (r *partRepository) Create(ctx context.Context, part *domain.Part) error {
	if part.ID == "" {
		part.ID = uuid.NewString()
	}
	const query = `
        INSERT INTO parts (id, sku, name, unit_price, stock, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6)`
	_, err := r.db.Exec(ctx, query, part.ID, part.SKU, part.Name, part.UnitPrice, part.Stock, part.UpdatedAt)
	return err
}

func (r *partRepository) GetByID(ctx context.Context, id string) (*domain.Part, error) {
	const query = `SELECT id, sku, name, unit_price, stock, updated_at FROM parts WHERE id=$1`
	var part domain.Part
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&part.ID,
		&part.SKU,
		&part.Name,
		&part.UnitPrice,
		&part.Stock,
		&part.UpdatedAt,
	); err != nil {
		return nil, notFound(err, "part", id)
	}
	return &part, nil
}

// Reserve is a single conditional UPDATE so concurrent callers cannot both
// pass a stale stock check.
func (r *partRepository) Reserve(ctx context.Context, id string, qty int64) error {
	const query = `
        UPDATE parts SET stock = stock - $2, updated_at = NOW()
        WHERE id=$1 AND stock >= $2
        RETURNING stock`
	var remaining int64
	err := r.db.QueryRow(ctx, query, id, qty).Scan(&remaining)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("part %s: requested %d: %w", id, qty, domain.ErrInsufficientStock)
}

func (r *partRepository) Release(ctx context.Context, id string, qty int64) error {
	cmd, err := r.db.Exec(ctx, `UPDATE parts SET stock = stock + $2, updated_at = NOW() WHERE id=$1`, id, qty)
	if err != nil {
		return err
	}
	return expectOne(cmd, "part", id)
}

type ticketPartRepository struct {
	db dbtx
}

func (r *ticketPartRepository) Create(ctx context.Context, item *domain.TicketPartItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	const query = `
        INSERT INTO ticket_parts (id, ticket_id, part_id, quantity, unit_price, total, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := r.db.Exec(ctx, query,
		item.ID,
		item.TicketID,
		item.PartID,
		item.Quantity,
		item.UnitPrice,
		item.Total,
		item.CreatedAt,
	)
	return err
}

func (r *ticketPartRepository) GetByID(ctx context.Context, id string) (*domain.TicketPartItem, error) {
	const query = `
        SELECT id, ticket_id, part_id, quantity, unit_price, total, created_at
        FROM ticket_parts WHERE id=$1`
	item, err := scanTicketPart(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "ticket part", id)
	}
	return &item, nil
}

func (r *ticketPartRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM ticket_parts WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return expectOne(cmd, "ticket part", id)
}

func (r *ticketPartRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketPartItem, error) {
	const query = `
        SELECT id, ticket_id, part_id, quantity, unit_price, total, created_at
        FROM ticket_parts WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.TicketPartItem, error) {
		return scanTicketPart(row)
	})
}

func scanTicketPart(row pgx.Row) (domain.TicketPartItem, error) {
	var item domain.TicketPartItem
	err := row.Scan(
		&item.ID,
		&item.TicketID,
		&item.PartID,
		&item.Quantity,
		&item.UnitPrice,
		&item.Total,
		&item.CreatedAt,
	)
	return item, err
}
