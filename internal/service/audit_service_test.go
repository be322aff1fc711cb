package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fixbench/repair-desk/internal/config"
	"github.com/fixbench/repair-desk/internal/domain"
	"github.com/fixbench/repair-desk/internal/events"
	"github.com/fixbench/repair-desk/internal/service"
)

type memorySink struct {
	mu      sync.Mutex
	streams map[string][]map[string]any
	err     error
}

func (m *memorySink) Append(_ context.Context, stream string, _ int64, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.streams == nil {
		m.streams = map[string][]map[string]any{}
	}
	m.streams[stream] = append(m.streams[stream], fields)
	return nil
}

func (m *memorySink) entries(stream string) []map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]map[string]any(nil), m.streams[stream]...)
}

var auditConfig = config.AuditConfig{Enabled: true, Stream: "repair-desk:events", MaxLen: 100}

func TestAuditService_RecordsEveryEvent(t *testing.T) {
	f := newFixture(t)
	sink := &memorySink{}
	audit := service.NewAuditService(f.bus, sink, zaptest.NewLogger(t), auditConfig)
	audit.RegisterHandlers()
	audit.RegisterHandlers()
	ctx := context.Background()

	ticket := f.newTicket(t, 0)
	_, err := f.tickets.Transition(ctx, staff, ticket.ID, domain.TicketStatusCompleted, "fixed")
	require.NoError(t, err)

	entries := sink.entries(auditConfig.Stream)
	require.Len(t, entries, 3)
	types := make([]string, 0, len(entries))
	for _, entry := range entries {
		types = append(types, entry["type"].(string))
	}
	assert.Equal(t, []string{"customer_created", "ticket_created", "ticket_status_changed"}, types)

	last := entries[2]
	assert.Equal(t, ticket.ID, last["entity_id"])
	assert.Equal(t, "staff", last["actor_type"])
	assert.Equal(t, "tech-1", last["actor_id"])
	var payload events.TicketStatusChangedPayload
	require.NoError(t, json.Unmarshal([]byte(last["payload"].(string)), &payload))
	assert.Equal(t, domain.TicketStatusCompleted, payload.NewStatus)
	assert.Equal(t, "fixed", payload.Notes)

	audit.Close()
	require.NoError(t, f.tickets.Delete(ctx, staff, ticket.ID))
	assert.Len(t, sink.entries(auditConfig.Stream), 3)
}

func TestAuditService_SinkFailureDoesNotBlockMutation(t *testing.T) {
	f := newFixture(t)
	sink := &memorySink{err: errors.New("redis down")}
	service.NewAuditService(f.bus, sink, zaptest.NewLogger(t), auditConfig).RegisterHandlers()

	ticket := f.newTicket(t, 0)
	_, err := f.tickets.Transition(context.Background(), staff, ticket.ID, domain.TicketStatusDiagnosed, "")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusDiagnosed, f.ticket(t, ticket.ID).Status)
}

func TestAuditService_DisabledDoesNotSubscribe(t *testing.T) {
	f := newFixture(t)
	before := f.bus.Len()
	service.NewAuditService(f.bus, &memorySink{}, nil, config.AuditConfig{Enabled: false}).RegisterHandlers()
	assert.Equal(t, before, f.bus.Len())
}
