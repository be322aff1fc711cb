package postgres

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fixbench/repair-desk/internal/domain"
	"github.com/fixbench/repair-desk/internal/repository"
)

const invoiceColumns = `id, ticket_id, customer_id, items, parts_raw_total, parts_total, labor_total, labor_waived,
               subtotal, tax, discount, deposit_applied, total, status, created_at, updated_at`

type invoiceRepository struct {
	db dbtx
}

// Create inserts the invoice and any payments already attached to it.
func (r *invoiceRepository) Create(ctx context.Context, invoice *domain.Invoice) error {
	if invoice.ID == "" {
		invoice.ID = uuid.NewString()
	}
	items, err := json.Marshal(invoice.Items)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO invoices (id, ticket_id, customer_id, items, parts_raw_total, parts_total, labor_total, labor_waived,
            subtotal, tax, discount, deposit_applied, total, status, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`
	_, err = r.db.Exec(ctx, query,
		invoice.ID,
		invoice.TicketID,
		invoice.CustomerID,
		items,
		invoice.PartsRawTotal,
		invoice.PartsTotal,
		invoice.LaborTotal,
		invoice.LaborWaived,
		invoice.Subtotal,
		invoice.Tax,
		invoice.Discount,
		invoice.DepositApplied,
		invoice.Total,
		invoice.Status,
		invoice.CreatedAt,
		invoice.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	if err != nil {
		return err
	}
	for i := range invoice.Payments {
		invoice.Payments[i].InvoiceID = invoice.ID
		if err := r.AddPayment(ctx, &invoice.Payments[i]); err != nil {
			return err
		}
	}
	return nil
}

// Update persists the derived status; amounts are fixed at creation.
func (r *invoiceRepository) Update(ctx context.Context, invoice *domain.Invoice) error {
	cmd, err := r.db.Exec(ctx, `UPDATE invoices SET status=$1, updated_at=$2 WHERE id=$3`,
		invoice.Status, invoice.UpdatedAt, invoice.ID)
	if err != nil {
		return err
	}
	return expectOne(cmd, "invoice", invoice.ID)
}

func (r *invoiceRepository) GetByID(ctx context.Context, id string) (*domain.Invoice, error) {
	return r.fetch(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id=$1`, id)
}

func (r *invoiceRepository) GetForUpdate(ctx context.Context, id string) (*domain.Invoice, error) {
	return r.fetch(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id=$1 FOR UPDATE`, id)
}

func (r *invoiceRepository) fetch(ctx context.Context, query, id string) (*domain.Invoice, error) {
	var (
		invoice domain.Invoice
		items   []byte
	)
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&invoice.ID,
		&invoice.TicketID,
		&invoice.CustomerID,
		&items,
		&invoice.PartsRawTotal,
		&invoice.PartsTotal,
		&invoice.LaborTotal,
		&invoice.LaborWaived,
		&invoice.Subtotal,
		&invoice.Tax,
		&invoice.Discount,
		&invoice.DepositApplied,
		&invoice.Total,
		&invoice.Status,
		&invoice.CreatedAt,
		&invoice.UpdatedAt,
	); err != nil {
		return nil, notFound(err, "invoice", id)
	}
	if err := json.Unmarshal(items, &invoice.Items); err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, `
        SELECT id, invoice_id, amount, method, created_at
        FROM payments WHERE invoice_id=$1 ORDER BY created_at ASC, id ASC`, id)
	if err != nil {
		return nil, err
	}
	invoice.Payments, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Payment, error) {
		var p domain.Payment
		err := row.Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.Method, &p.CreatedAt)
		return p, err
	})
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM invoices WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return expectOne(cmd, "invoice", id)
}

func (r *invoiceRepository) AddPayment(ctx context.Context, payment *domain.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	const query = `
        INSERT INTO payments (id, invoice_id, amount, method, created_at)
        VALUES ($1,$2,$3,$4,$5)`
	_, err := r.db.Exec(ctx, query, payment.ID, payment.InvoiceID, payment.Amount, payment.Method, payment.CreatedAt)
	return err
}
