package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/fixbench/repair-desk/internal/domain"
)

type customerRepository struct {
	db dbtx
}

func (r *customerRepository) Create(ctx context.Context, customer *domain.Customer) error {
	if customer.ID == "" {
		customer.ID = uuid.NewString()
	}
	const query = `
        INSERT INTO customers (id, name, phone, email, created_at, updated_at, deleted_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := r.db.Exec(ctx, query,
		customer.ID,
		customer.Name,
		customer.Phone,
		customer.Email,
		customer.CreatedAt,
		customer.UpdatedAt,
		customer.DeletedAt,
	)
	return err
}

func (r *customerRepository) Update(ctx context.Context, customer *domain.Customer) error {
	const query = `
        UPDATE customers SET name=$1, phone=$2, email=$3, updated_at=$4, deleted_at=$5
        WHERE id=$6`
	cmd, err := r.db.Exec(ctx, query,
		customer.Name,
		customer.Phone,
		customer.Email,
		customer.UpdatedAt,
		customer.DeletedAt,
		customer.ID,
	)
	if err != nil {
		return err
	}
	return expectOne(cmd, "customer", customer.ID)
}

func (r *customerRepository) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	const query = `
        SELECT id, name, phone, email, created_at, updated_at, deleted_at
        FROM customers WHERE id=$1`
	var customer domain.Customer
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&customer.ID,
		&customer.Name,
		&customer.Phone,
		&customer.Email,
		&customer.CreatedAt,
		&customer.UpdatedAt,
		&customer.DeletedAt,
	); err != nil {
		return nil, notFound(err, "customer", id)
	}
	return &customer, nil
}

type deviceRepository struct {
	db dbtx
}

func (r *deviceRepository) Create(ctx context.Context, device *domain.Device) error {
	if device.ID == "" {
		device.ID = uuid.NewString()
	}
	const query = `
        INSERT INTO devices (id, customer_id, brand, model, serial, lock_info, status, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err := r.db.Exec(ctx, query,
		device.ID,
		device.CustomerID,
		device.Brand,
		device.Model,
		device.Serial,
		device.LockInfo,
		device.Status,
		device.CreatedAt,
		device.UpdatedAt,
	)
	return err
}

func (r *deviceRepository) Update(ctx context.Context, device *domain.Device) error {
	const query = `
        UPDATE devices SET brand=$1, model=$2, serial=$3, lock_info=$4, status=$5, updated_at=$6
        WHERE id=$7`
	cmd, err := r.db.Exec(ctx, query,
		device.Brand,
		device.Model,
		device.Serial,
		device.LockInfo,
		device.Status,
		device.UpdatedAt,
		device.ID,
	)
	if err != nil {
		return err
	}
	return expectOne(cmd, "device", device.ID)
}

func (r *deviceRepository) GetByID(ctx context.Context, id string) (*domain.Device, error) {
	const query = `
        SELECT id, customer_id, brand, model, serial, lock_info, status, created_at, updated_at
        FROM devices WHERE id=$1`
	var device domain.Device
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&device.ID,
		&device.CustomerID,
		&device.Brand,
		&device.Model,
		&device.Serial,
		&device.LockInfo,
		&device.Status,
		&device.CreatedAt,
		&device.UpdatedAt,
	); err != nil {
		return nil, notFound(err, "device", id)
	}
	return &device, nil
}
