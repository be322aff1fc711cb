package worker

import (
	"github.com/fixbench/repair-desk/internal/events"
	"github.com/fixbench/repair-desk/internal/observability"
	"github.com/fixbench/repair-desk/internal/service"
)

// StartAuditWorker registers the audit stream handler.
func StartAuditWorker(auditService *service.AuditService) {
	if auditService == nil {
		return
	}
	auditService.RegisterHandlers()
}

// StartMetricsWorker counts every published event. The returned subscription
// detaches it.
func StartMetricsWorker(dispatcher events.Dispatcher, metrics *observability.Metrics) *events.Subscription {
	if dispatcher == nil || metrics == nil {
		return nil
	}
	return dispatcher.Subscribe(events.AllEvents, metrics)
}
