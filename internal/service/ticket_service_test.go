package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fixbench/repair-desk/internal/domain"
	"github.com/fixbench/repair-desk/internal/events"
	"github.com/fixbench/repair-desk/internal/repository"
	"github.com/fixbench/repair-desk/internal/service"
)

func TestTicketService_CreateDefaultsAndPublishes(t *testing.T) {
	f := newFixture(t)
	ticket := f.newTicket(t, 2500)

	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, domain.TicketPriorityNormal, ticket.Priority)
	assert.Equal(t, int64(2500), ticket.DepositPaid)
	assert.Nil(t, ticket.CompletedAt)
	assert.Contains(t, f.recorder.types(), events.EventTicketCreated)
}

func TestTicketService_CreateRejectsForeignDevice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, err := f.customers.Create(ctx, staff, service.CustomerInput{Name: "Owner"})
	require.NoError(t, err)
	other, err := f.customers.Create(ctx, staff, service.CustomerInput{Name: "Other"})
	require.NoError(t, err)
	device, err := f.customers.RegisterDevice(ctx, owner.ID, service.DeviceInput{Brand: "Acme"})
	require.NoError(t, err)

	_, err = f.tickets.Create(ctx, staff, service.TicketCreateInput{CustomerID: other.ID, DeviceID: device.ID})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.tickets.Create(ctx, staff, service.TicketCreateInput{
		CustomerID: owner.ID, DeviceID: device.ID, Priority: domain.TicketPriority("Urgent"),
	})
	assert.ErrorIs(t, err, domain.ErrUnknownKey)
}

func TestTicketService_TransitionStopsActiveWorkLogs(t *testing.T) {
	for _, status := range []domain.TicketStatus{domain.TicketStatusCompleted, domain.TicketStatusCancelled} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			ticket := f.newTicket(t, 0)

			_, _, err := f.workLogs.Start(ctx, staff, ticket.ID, "tech-1")
			require.NoError(t, err)
			_, _, err = f.workLogs.Start(ctx, staff, ticket.ID, "tech-2")
			require.NoError(t, err)
			f.clock.Advance(45 * time.Minute)

			updated, err := f.tickets.Transition(ctx, staff, ticket.ID, status, "done")
			require.NoError(t, err)
			assert.Equal(t, status, updated.Status)
			require.NotNil(t, updated.CompletedAt)
			assert.True(t, updated.CompletedAt.Equal(f.clock.Now()))

			active, err := f.workLogs.Active(ctx, ticket.ID)
			require.NoError(t, err)
			assert.Empty(t, active)

			summary, err := f.workLogs.Summary(ctx, ticket.ID)
			require.NoError(t, err)
			require.Len(t, summary.Logs, 2)
			for _, log := range summary.Logs {
				require.NotNil(t, log.EndTime)
				assert.True(t, log.EndTime.Equal(f.clock.Now()))
			}
			assert.Equal(t, 90*time.Minute, summary.Elapsed)
		})
	}
}

func TestTicketService_TransitionToUnrepairableKeepsLabor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.newTicket(t, 0)
	_, _, err := f.workLogs.Start(ctx, staff, ticket.ID, "tech-1")
	require.NoError(t, err)

	_, err = f.tickets.Transition(ctx, staff, ticket.ID, domain.TicketStatusUnrepairable, "")
	require.NoError(t, err)

	active, err := f.workLogs.Active(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestTicketService_TransitionSucceedsWhenStopAllFails(t *testing.T) {
	store := openStore(t)
	healthy := newFixtureWithStore(t, store, zaptest.NewLogger(t))
	core, logs := observer.New(zap.WarnLevel)
	faulty := newFixtureWithStore(t, faultyStore{Store: store}, zap.New(core))
	ctx := context.Background()

	ticket := healthy.newTicket(t, 0)
	_, _, err := healthy.workLogs.Start(ctx, staff, ticket.ID, "tech-1")
	require.NoError(t, err)

	updated, err := faulty.tickets.Transition(ctx, staff, ticket.ID, domain.TicketStatusCompleted, "")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusCompleted, updated.Status)
	assert.Equal(t, domain.TicketStatusCompleted, healthy.ticket(t, ticket.ID).Status)
	assert.Equal(t, 1, logs.FilterMessage("stop all work logs failed").Len())
	assert.Equal(t, []events.EventType{events.EventTicketStatusChanged}, faulty.recorder.types())
}

func TestTicketService_PartialStopAllIsUndone(t *testing.T) {
	store := openStore(t)
	healthy := newFixtureWithStore(t, store, zaptest.NewLogger(t))
	core, logs := observer.New(zap.WarnLevel)
	flaky := newFixtureWithStore(t, flakyStore{Store: store}, zap.New(core))
	ctx := context.Background()

	ticket := healthy.newTicket(t, 0)
	for _, tech := range []string{"tech-1", "tech-2"} {
		_, _, err := healthy.workLogs.Start(ctx, staff, ticket.ID, tech)
		require.NoError(t, err)
	}

	updated, err := flaky.tickets.Transition(ctx, staff, ticket.ID, domain.TicketStatusCancelled, "")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusCancelled, updated.Status)
	assert.Equal(t, domain.TicketStatusCancelled, healthy.ticket(t, ticket.ID).Status)

	active, err := healthy.workLogs.Active(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, active, 2, "a failed stop-all closes nothing")

	entries := logs.FilterMessage("stop all work logs failed").All()
	require.Len(t, entries, 1)
	assert.EqualValues(t, 1, entries[0].ContextMap()["rolled_back"])
}

func TestTicketService_TerminalStatusIsFinal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.newTicket(t, 0)

	_, err := f.tickets.Transition(ctx, staff, ticket.ID, domain.TicketStatusDiagnosed, "")
	require.NoError(t, err)
	_, err = f.tickets.Transition(ctx, staff, ticket.ID, domain.TicketStatusOpen, "back to queue")
	require.NoError(t, err, "non-terminal moves may go backwards")
	_, err = f.tickets.Transition(ctx, staff, ticket.ID, domain.TicketStatusCompleted, "")
	require.NoError(t, err)

	_, err = f.tickets.Transition(ctx, staff, ticket.ID, domain.TicketStatusInProgress, "")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, domain.TicketStatusCompleted, f.ticket(t, ticket.ID).Status)
}

func TestTicketService_TransitionPublishesOldAndNew(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.newTicket(t, 0)
	f.recorder.reset()

	_, err := f.tickets.Transition(ctx, staff, ticket.ID, domain.TicketStatusAwaitingParts, " waiting on screen ")
	require.NoError(t, err)

	require.Len(t, f.recorder.events, 1)
	event := f.recorder.events[0]
	assert.Equal(t, events.EventTicketStatusChanged, event.Type)
	assert.Equal(t, ticket.ID, event.EntityID)
	assert.Equal(t, staff, event.Actor)
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, events.TicketStatusChangedPayload{
		OldStatus: domain.TicketStatusOpen,
		NewStatus: domain.TicketStatusAwaitingParts,
		Notes:     "waiting on screen",
	}, event.Payload)
}

func TestTicketService_TransitionRejectsDisplayLabels(t *testing.T) {
	f := newFixture(t)
	ticket := f.newTicket(t, 0)

	for _, label := range []string{"Completed", "In Progress", "terminé", ""} {
		_, err := f.tickets.Transition(context.Background(), staff, ticket.ID, domain.TicketStatus(label), "")
		assert.ErrorIs(t, err, domain.ErrUnknownKey, label)
	}
	assert.Equal(t, domain.TicketStatusOpen, f.ticket(t, ticket.ID).Status)
}

func TestTicketService_ReturnedDeviceLocksTicket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.newTicket(t, 0)
	part := f.newPart(t, 1000, 5)
	_, _, err := f.workLogs.Start(ctx, staff, ticket.ID, "tech-1")
	require.NoError(t, err)

	device, err := f.tickets.UpdateDeviceStatus(ctx, staff, ticket.ID, domain.DeviceStatusReturned)
	require.NoError(t, err)
	assert.Equal(t, domain.DeviceStatusReturned, device.Status)

	active, err := f.workLogs.Active(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Empty(t, active, "returning the device closes open labor")

	_, err = f.tickets.Transition(ctx, staff, ticket.ID, domain.TicketStatusCompleted, "")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = f.tickets.UpdateDeviceStatus(ctx, staff, ticket.ID, domain.DeviceStatusRepairing)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, _, err = f.workLogs.Start(ctx, staff, ticket.ID, "tech-1")
	assert.ErrorIs(t, err, domain.ErrDeviceLocked)
	_, _, err = f.parts.AddPart(ctx, staff, ticket.ID, part.ID, 1)
	assert.ErrorIs(t, err, domain.ErrDeviceLocked)
	_, err = f.tickets.AssignTechnician(ctx, staff, ticket.ID, "tech-2")
	assert.ErrorIs(t, err, domain.ErrDeviceLocked)

	got, err := f.parts.GetPart(ctx, part.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.Stock)
}

func TestTicketService_AssignTechnician(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.newTicket(t, 0)

	_, err := f.tickets.AssignTechnician(ctx, staff, ticket.ID, "tech-1")
	require.NoError(t, err)
	f.recorder.reset()
	updated, err := f.tickets.AssignTechnician(ctx, staff, ticket.ID, "tech-2")
	require.NoError(t, err)

	require.NotNil(t, updated.TechnicianID)
	assert.Equal(t, "tech-2", *updated.TechnicianID)
	require.Len(t, f.recorder.events, 1)
	payload, ok := f.recorder.events[0].Payload.(events.TicketTechnicianAssignedPayload)
	require.True(t, ok)
	require.NotNil(t, payload.OldTechnicianID)
	assert.Equal(t, "tech-1", *payload.OldTechnicianID)
	assert.Equal(t, "tech-2", payload.TechnicianID)

	_, err = f.tickets.AssignTechnician(ctx, staff, ticket.ID, "  ")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestTicketService_DeleteAndRestore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.newTicket(t, 0)
	f.recorder.reset()

	require.NoError(t, f.tickets.Delete(ctx, staff, ticket.ID))
	require.NoError(t, f.tickets.Delete(ctx, staff, ticket.ID))
	assert.Equal(t, []events.EventType{events.EventTicketDeleted}, f.recorder.types())

	_, err := f.tickets.Transition(ctx, staff, ticket.ID, domain.TicketStatusDiagnosed, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	listed, err := f.tickets.List(ctx, repository.TicketFilter{})
	require.NoError(t, err)
	assert.Empty(t, listed)

	require.NoError(t, f.tickets.Restore(ctx, staff, ticket.ID))
	assert.Equal(t, []events.EventType{events.EventTicketDeleted, events.EventTicketRestored}, f.recorder.types())

	_, err = f.tickets.Transition(ctx, staff, ticket.ID, domain.TicketStatusDiagnosed, "")
	assert.NoError(t, err)
}

func TestTicketService_UpdateFreezesDepositAfterInvoicing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.newTicket(t, 1000)

	priority := domain.TicketPriorityUrgent
	deposit := int64(2000)
	updated, err := f.tickets.Update(ctx, staff, ticket.ID, service.TicketUpdateInput{Priority: &priority, DepositPaid: &deposit})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityUrgent, updated.Priority)
	assert.Equal(t, int64(2000), updated.DepositPaid)

	_, err = f.tickets.Transition(ctx, staff, ticket.ID, domain.TicketStatusCompleted, "")
	require.NoError(t, err)
	_, err = f.invoices.CreateFromTicket(ctx, staff, ticket.ID, service.CreateInvoiceInput{})
	require.NoError(t, err)

	deposit = 3000
	_, err = f.tickets.Update(ctx, staff, ticket.ID, service.TicketUpdateInput{DepositPaid: &deposit})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestTicketService_ListFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.newTicket(t, 0)
	f.clock.Advance(time.Minute)
	second := f.newTicket(t, 0)
	_, err := f.tickets.Transition(ctx, staff, second.ID, domain.TicketStatusInProgress, "")
	require.NoError(t, err)

	all, err := f.tickets.List(ctx, repository.TicketFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)

	open, err := f.tickets.List(ctx, repository.TicketFilter{Statuses: []domain.TicketStatus{domain.TicketStatusOpen}})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, first.ID, open[0].ID)

	_, err = f.tickets.List(ctx, repository.TicketFilter{Statuses: []domain.TicketStatus{"Open"}})
	assert.ErrorIs(t, err, domain.ErrUnknownKey)
}

func TestTicketService_CreatedPayloadIsDetached(t *testing.T) {
	f := newFixture(t)
	var seen events.TicketCreatedPayload
	f.bus.Subscribe(events.EventTicketCreated, events.HandlerFunc(func(_ context.Context, event events.Event) error {
		payload, ok := event.Payload.(events.TicketCreatedPayload)
		require.True(t, ok, "payload %T", event.Payload)
		seen = payload
		payload.Status = domain.TicketStatusCompleted
		payload.DepositPaid = 0
		return nil
	}))

	ticket := f.newTicket(t, 2500)

	assert.Equal(t, domain.TicketStatusOpen, seen.Status)
	assert.Equal(t, int64(2500), seen.DepositPaid)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, int64(2500), ticket.DepositPaid)
	assert.Equal(t, domain.TicketStatusOpen, f.ticket(t, ticket.ID).Status)
}
