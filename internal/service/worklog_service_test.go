package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixbench/repair-desk/internal/domain"
	"github.com/fixbench/repair-desk/internal/events"
)

func TestWorkLogService_StartIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.newTicket(t, 0)
	f.recorder.reset()

	first, created, err := f.workLogs.Start(ctx, staff, ticket.ID, "tech-1")
	require.NoError(t, err)
	assert.True(t, created)

	f.clock.Advance(5 * time.Minute)
	second, created, err := f.workLogs.Start(ctx, staff, ticket.ID, "tech-1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.StartTime.Equal(first.StartTime))

	active, err := f.workLogs.Active(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, active, 1)
	assert.Equal(t, []events.EventType{events.EventTicketUpdated}, f.recorder.types())
	payload, ok := f.recorder.events[0].Payload.(events.TicketUpdatedPayload)
	require.True(t, ok)
	assert.Equal(t, events.ReasonLaborStarted, payload.Reason)
}

func TestWorkLogService_StopClosesOnlyThatTechnician(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.newTicket(t, 0)

	_, _, err := f.workLogs.Start(ctx, staff, ticket.ID, "tech-1")
	require.NoError(t, err)
	_, _, err = f.workLogs.Start(ctx, staff, ticket.ID, "tech-2")
	require.NoError(t, err)
	f.clock.Advance(20 * time.Minute)

	stopped, err := f.workLogs.Stop(ctx, staff, ticket.ID, "tech-1")
	require.NoError(t, err)
	require.NotNil(t, stopped)
	require.NotNil(t, stopped.EndTime)
	assert.Equal(t, 20*time.Minute, stopped.Elapsed(f.clock.Now()))

	active, err := f.workLogs.Active(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "tech-2", active[0].TechnicianID)

	f.clock.Advance(10 * time.Minute)
	summary, err := f.workLogs.Summary(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, summary.Logs, 2)
	assert.Len(t, summary.Active, 1)
	assert.Equal(t, 50*time.Minute, summary.Elapsed)
}

func TestWorkLogService_StopWithoutActiveLogIsNoop(t *testing.T) {
	f := newFixture(t)
	ticket := f.newTicket(t, 0)
	f.recorder.reset()

	stopped, err := f.workLogs.Stop(context.Background(), staff, ticket.ID, "tech-1")
	require.NoError(t, err)
	assert.Nil(t, stopped)
	assert.Empty(t, f.recorder.types())
}

func TestWorkLogService_StopAllNeverFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.newTicket(t, 0)
	for _, tech := range []string{"tech-1", "tech-2", "tech-3"} {
		_, _, err := f.workLogs.Start(ctx, staff, ticket.ID, tech)
		require.NoError(t, err)
	}

	assert.Equal(t, 3, f.workLogs.StopAll(ctx, ticket.ID))
	assert.Zero(t, f.workLogs.StopAll(ctx, ticket.ID))
	assert.Zero(t, f.workLogs.StopAll(ctx, "missing-ticket"))
}

func TestWorkLogService_StartValidates(t *testing.T) {
	f := newFixture(t)
	ticket := f.newTicket(t, 0)

	_, _, err := f.workLogs.Start(context.Background(), staff, ticket.ID, " ")
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, _, err = f.workLogs.Start(context.Background(), staff, "missing", "tech-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
