package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/fixbench/repair-desk/internal/domain"
	"github.com/fixbench/repair-desk/internal/events"
	"github.com/fixbench/repair-desk/internal/repository"
	"github.com/fixbench/repair-desk/internal/repository/boltstore"
	"github.com/fixbench/repair-desk/internal/service"
)

var staff = events.StaffActor("tech-1")

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) HandleEvent(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type fixture struct {
	store     repository.Store
	bus       *events.Bus
	recorder  *recorder
	clock     *testClock
	tickets   *service.TicketService
	workLogs  *service.WorkLogService
	parts     *service.PartsService
	invoices  *service.InvoiceService
	customers *service.CustomerService
}

func openStore(t *testing.T) *boltstore.Store {
	t.Helper()
	db, err := bolt.Open(filepath.Join(t.TempDir(), "repair.db"), 0o600, &bolt.Options{Timeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store, err := boltstore.NewStore(db)
	require.NoError(t, err)
	return store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithStore(t, openStore(t), zaptest.NewLogger(t))
}

func newFixtureWithStore(t *testing.T, store repository.Store, logger *zap.Logger) *fixture {
	t.Helper()
	f := &fixture{
		store:    store,
		bus:      events.NewBus(logger),
		recorder: &recorder{},
		clock:    &testClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)},
	}
	f.bus.Subscribe(events.AllEvents, f.recorder)

	f.workLogs = service.NewWorkLogService(service.WorkLogDependencies{
		Store: store, Dispatcher: f.bus, Logger: logger, Clock: f.clock.Now,
	})
	f.tickets = service.NewTicketService(service.TicketDependencies{
		Store: store, WorkLogs: f.workLogs, Dispatcher: f.bus, Logger: logger, Clock: f.clock.Now,
	})
	f.parts = service.NewPartsService(service.PartsDependencies{
		Store: store, Dispatcher: f.bus, Logger: logger, Clock: f.clock.Now,
	})
	f.invoices = service.NewInvoiceService(service.InvoiceDependencies{
		Store: store, Dispatcher: f.bus, Logger: logger, Policy: domain.DefaultInvoicePolicy(), Clock: f.clock.Now,
	})
	f.customers = service.NewCustomerService(service.CustomerDependencies{
		Store: store, Dispatcher: f.bus, Logger: logger, Clock: f.clock.Now,
	})
	return f
}

// newTicket creates a customer, device and open ticket with the given deposit.
func (f *fixture) newTicket(t *testing.T, deposit int64) *domain.Ticket {
	t.Helper()
	ctx := context.Background()
	customer, err := f.customers.Create(ctx, staff, service.CustomerInput{Name: "Ada Lovelace", Phone: "555-0100"})
	require.NoError(t, err)
	device, err := f.customers.RegisterDevice(ctx, customer.ID, service.DeviceInput{Brand: "Acme", Model: "Phone 3"})
	require.NoError(t, err)
	ticket, err := f.tickets.Create(ctx, staff, service.TicketCreateInput{
		CustomerID:  customer.ID,
		DeviceID:    device.ID,
		Description: "cracked screen",
		DepositPaid: deposit,
	})
	require.NoError(t, err)
	return ticket
}

func (f *fixture) newPart(t *testing.T, unitPrice, stock int64) *domain.Part {
	t.Helper()
	part, err := f.parts.CreatePart(context.Background(), service.PartCreateInput{
		SKU: "SCR-" + uuid.NewString()[:8], Name: "Screen", UnitPrice: unitPrice, Stock: stock,
	})
	require.NoError(t, err)
	return part
}

func (f *fixture) ticket(t *testing.T, id string) *domain.Ticket {
	t.Helper()
	detail, err := f.tickets.Get(context.Background(), id)
	require.NoError(t, err)
	return detail.Ticket
}

// faultyStore hands out transactions whose work log repository cannot list.
type faultyStore struct {
	repository.Store
}

func (s faultyStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	return s.Store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return fn(ctx, faultyTx{Tx: tx})
	})
}

type faultyTx struct {
	repository.Tx
}

func (t faultyTx) WorkLogs() repository.WorkLogRepository {
	return failingWorkLogs{WorkLogRepository: t.Tx.WorkLogs()}
}

func (t faultyTx) Savepoint(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	return t.Tx.Savepoint(ctx, func(ctx context.Context, tx repository.Tx) error {
		return fn(ctx, faultyTx{Tx: tx})
	})
}

type failingWorkLogs struct {
	repository.WorkLogRepository
}

var errStorageDown = errors.New("work log storage unavailable")

func (failingWorkLogs) ListActive(context.Context, string) ([]domain.WorkLog, error) {
	return nil, errStorageDown
}

// flakyStore hands out transactions whose work log repository fails every
// update after the first one.
type flakyStore struct {
	repository.Store
}

func (s flakyStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	return s.Store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return fn(ctx, flakyTx{Tx: tx, updates: new(int)})
	})
}

type flakyTx struct {
	repository.Tx
	updates *int
}

func (t flakyTx) WorkLogs() repository.WorkLogRepository {
	return flakyWorkLogs{WorkLogRepository: t.Tx.WorkLogs(), updates: t.updates}
}

func (t flakyTx) Savepoint(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	return t.Tx.Savepoint(ctx, func(ctx context.Context, tx repository.Tx) error {
		return fn(ctx, flakyTx{Tx: tx, updates: t.updates})
	})
}

type flakyWorkLogs struct {
	repository.WorkLogRepository
	updates *int
}

func (w flakyWorkLogs) Update(ctx context.Context, log *domain.WorkLog) error {
	*w.updates++
	if *w.updates > 1 {
		return errStorageDown
	}
	return w.WorkLogRepository.Update(ctx, log)
}
