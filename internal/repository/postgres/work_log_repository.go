package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fixbench/repair-desk/internal/domain"
	"github.com/fixbench/repair-desk/internal/repository"
)

type workLogRepository struct {
	db dbtx
}

// Create relies on the partial unique index over active logs to enforce one
// open session per (ticket, technician).
func (r *workLogRepository) Create(ctx context.Context, log *domain.WorkLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	const query = `
        INSERT INTO work_logs (id, ticket_id, technician_id, start_time, end_time)
        VALUES ($1,$2,$3,$4,$5)`
	_, err := r.db.Exec(ctx, query, log.ID, log.TicketID, log.TechnicianID, log.StartTime, log.EndTime)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	return err
}

func (r *workLogRepository) Update(ctx context.Context, log *domain.WorkLog) error {
	cmd, err := r.db.Exec(ctx, `UPDATE work_logs SET start_time=$1, end_time=$2 WHERE id=$3`,
		log.StartTime, log.EndTime, log.ID)
	if err != nil {
		return err
	}
	return expectOne(cmd, "work log", log.ID)
}

func (r *workLogRepository) GetActive(ctx context.Context, ticketID, technicianID string) (*domain.WorkLog, error) {
	const query = `
        SELECT id, ticket_id, technician_id, start_time, end_time
        FROM work_logs WHERE ticket_id=$1 AND technician_id=$2 AND end_time IS NULL`
	var log domain.WorkLog
	if err := r.db.QueryRow(ctx, query, ticketID, technicianID).Scan(
		&log.ID,
		&log.TicketID,
		&log.TechnicianID,
		&log.StartTime,
		&log.EndTime,
	); err != nil {
		return nil, notFound(err, "active work log", ticketID+"/"+technicianID)
	}
	return &log, nil
}

func (r *workLogRepository) ListActive(ctx context.Context, ticketID string) ([]domain.WorkLog, error) {
	const query = `
        SELECT id, ticket_id, technician_id, start_time, end_time
        FROM work_logs WHERE ticket_id=$1 AND end_time IS NULL ORDER BY start_time ASC`
	return r.list(ctx, query, ticketID)
}

func (r *workLogRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.WorkLog, error) {
	const query = `
        SELECT id, ticket_id, technician_id, start_time, end_time
        FROM work_logs WHERE ticket_id=$1 ORDER BY start_time ASC`
	return r.list(ctx, query, ticketID)
}

func (r *workLogRepository) list(ctx context.Context, query, ticketID string) ([]domain.WorkLog, error) {
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.WorkLog, error) {
		var log domain.WorkLog
		err := row.Scan(&log.ID, &log.TicketID, &log.TechnicianID, &log.StartTime, &log.EndTime)
		return log, err
	})
}
