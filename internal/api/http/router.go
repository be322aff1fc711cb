package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fixbench/repair-desk/internal/api/http/handlers"
	"github.com/fixbench/repair-desk/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health    *handlers.HealthHandler
	Customers *handlers.CustomersHandler
	Tickets   *handlers.TicketsHandler
	Labor     *handlers.LaborHandler
	Parts     *handlers.PartsHandler
	Invoices  *handlers.InvoicesHandler
	Metrics   *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", handlers.Metrics(cfg.Metrics))
	}

	app.Post("/customers", cfg.Customers.CreateCustomer)
	app.Get("/customers/:id", cfg.Customers.GetCustomer)
	app.Patch("/customers/:id", cfg.Customers.UpdateCustomer)
	app.Delete("/customers/:id", cfg.Customers.DeleteCustomer)
	app.Post("/customers/:id/devices", cfg.Customers.RegisterDevice)

	app.Post("/parts", cfg.Parts.CreatePart)
	app.Get("/parts/:id", cfg.Parts.GetPart)

	app.Post("/tickets", cfg.Tickets.CreateTicket)
	app.Get("/tickets", cfg.Tickets.ListTickets)
	app.Get("/tickets/:id", cfg.Tickets.GetTicket)
	app.Patch("/tickets/:id", cfg.Tickets.UpdateTicket)
	app.Delete("/tickets/:id", cfg.Tickets.DeleteTicket)
	app.Post("/tickets/:id/restore", cfg.Tickets.RestoreTicket)
	app.Patch("/tickets/:id/status", cfg.Tickets.UpdateStatus)
	app.Patch("/tickets/:id/device-status", cfg.Tickets.UpdateDeviceStatus)
	app.Post("/tickets/:id/assign", cfg.Tickets.AssignTechnician)

	app.Post("/tickets/:id/labor/start", cfg.Labor.Start)
	app.Post("/tickets/:id/labor/stop", cfg.Labor.Stop)
	app.Get("/tickets/:id/labor", cfg.Labor.Summary)

	app.Post("/tickets/:id/parts", cfg.Parts.AddPart)
	app.Get("/tickets/:id/parts", cfg.Parts.ListParts)
	app.Delete("/tickets/:id/parts/:itemId", cfg.Parts.RemovePart)

	app.Post("/invoices/from-ticket/:id", cfg.Invoices.CreateFromTicket)
	app.Get("/invoices/:id", cfg.Invoices.GetInvoice)
	app.Delete("/invoices/:id", cfg.Invoices.DeleteInvoice)
	app.Post("/invoices/:id/payments", cfg.Invoices.AddPayment)
	app.Get("/invoices/:id/checkout", cfg.Invoices.Checkout)
}
