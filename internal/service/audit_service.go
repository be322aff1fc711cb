package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/fixbench/repair-desk/internal/config"
	"github.com/fixbench/repair-desk/internal/events"
)

// AuditSink appends a flat record to a capped stream.
type AuditSink interface {
	Append(ctx context.Context, stream string, maxLen int64, fields map[string]any) error
}

// AuditService records every domain event to the audit stream.
type AuditService struct {
	dispatcher events.Dispatcher
	sink       AuditSink
	logger     *zap.Logger
	cfg        config.AuditConfig

	mu  sync.Mutex
	sub *events.Subscription
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, sink AuditSink, logger *zap.Logger, cfg config.AuditConfig) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{
		dispatcher: dispatcher,
		sink:       sink,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to all events. Calling it twice is a no-op.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil || a.sink == nil || !a.cfg.Enabled {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sub != nil {
		return
	}
	a.sub = a.dispatcher.Subscribe(events.AllEvents, a)
}

// Close removes the subscription.
func (a *AuditService) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sub != nil {
		a.sub.Unsubscribe()
		a.sub = nil
	}
}

// HandleEvent writes one stream entry. Errors are reported to the bus, which
// logs them.
func (a *AuditService) HandleEvent(ctx context.Context, event events.Event) error {
	fields, err := auditFields(event)
	if err != nil {
		return err
	}
	if err := a.sink.Append(ctx, a.cfg.Stream, a.cfg.MaxLen, fields); err != nil {
		return fmt.Errorf("append %s to %s: %w", event.Type, a.cfg.Stream, err)
	}
	a.logger.Debug("event audited",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("entity_id", event.EntityID))
	return nil
}

func auditFields(event events.Event) (map[string]any, error) {
	fields := map[string]any{
		"id":         event.ID,
		"type":       string(event.Type),
		"entity_id":  event.EntityID,
		"actor_type": string(event.Actor.Type),
		"actor_id":   event.Actor.ID,
		"timestamp":  event.Timestamp.UnixMilli(),
	}
	if event.Payload != nil {
		payload, err := json.Marshal(event.Payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", event.Type, err)
		}
		fields["payload"] = string(payload)
	}
	return fields, nil
}
