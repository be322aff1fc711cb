package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fixbench/repair-desk/internal/domain"
	"github.com/fixbench/repair-desk/internal/events"
	"github.com/fixbench/repair-desk/internal/repository"
)

// CustomerService manages customers and the devices they bring in.
type CustomerService struct {
	store      repository.Store
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        Clock
}

// CustomerDependencies bundles constructor inputs.
type CustomerDependencies struct {
	Store      repository.Store
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Clock      Clock
}

// CustomerInput describes customer contact details.
type CustomerInput struct {
	Name  string
	Phone string
	Email string
}

// CustomerUpdateInput carries editable contact details. Nil fields are left as is.
type CustomerUpdateInput struct {
	Name  *string
	Phone *string
	Email *string
}

// DeviceInput describes a device at intake.
type DeviceInput struct {
	Brand    string
	Model    string
	Serial   string
	LockInfo string
}

// NewCustomerService constructs the service.
func NewCustomerService(deps CustomerDependencies) *CustomerService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = defaultClock
	}
	return &CustomerService{
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		now:        clock,
	}
}

// Create registers a customer.
func (s *CustomerService) Create(ctx context.Context, actor events.Actor, input CustomerInput) (*domain.Customer, error) {
	now := s.now()
	customer := &domain.Customer{
		Name:      strings.TrimSpace(input.Name),
		Phone:     strings.TrimSpace(input.Phone),
		Email:     strings.TrimSpace(input.Email),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if customer.Name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.Customers().Create(ctx, customer)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("customer created", zap.String("customer_id", customer.ID))
	publishEvents(ctx, s.dispatcher, now, events.Event{
		Type:     events.EventCustomerCreated,
		EntityID: customer.ID,
		Actor:    actor,
		Payload:  events.NewCustomerPayload(customer),
	})
	return customer, nil
}

// Get returns a customer, deleted or not.
func (s *CustomerService) Get(ctx context.Context, customerID string) (*domain.Customer, error) {
	var customer *domain.Customer
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		customer, err = tx.Customers().GetByID(ctx, customerID)
		return err
	})
	return customer, err
}

// Update edits contact details.
func (s *CustomerService) Update(ctx context.Context, actor events.Actor, customerID string, input CustomerUpdateInput) (*domain.Customer, error) {
	var customer *domain.Customer
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		if customer, err = s.live(ctx, tx, customerID); err != nil {
			return err
		}
		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				return fmt.Errorf("%w: name is required", domain.ErrValidation)
			}
			customer.Name = name
		}
		if input.Phone != nil {
			customer.Phone = strings.TrimSpace(*input.Phone)
		}
		if input.Email != nil {
			customer.Email = strings.TrimSpace(*input.Email)
		}
		customer.UpdatedAt = s.now()
		return tx.Customers().Update(ctx, customer)
	})
	if err != nil {
		return nil, err
	}

	publishEvents(ctx, s.dispatcher, customer.UpdatedAt, events.Event{
		Type:     events.EventCustomerUpdated,
		EntityID: customer.ID,
		Actor:    actor,
		Payload:  events.NewCustomerPayload(customer),
	})
	return customer, nil
}

// Delete soft-deletes the customer. Existing tickets keep their reference.
func (s *CustomerService) Delete(ctx context.Context, actor events.Actor, customerID string) error {
	var customer *domain.Customer
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		if customer, err = s.live(ctx, tx, customerID); err != nil {
			return err
		}
		now := s.now()
		customer.DeletedAt = &now
		customer.UpdatedAt = now
		return tx.Customers().Update(ctx, customer)
	})
	if err != nil {
		return err
	}

	publishEvents(ctx, s.dispatcher, customer.UpdatedAt, events.Event{
		Type:     events.EventCustomerDeleted,
		EntityID: customer.ID,
		Actor:    actor,
	})
	return nil
}

// RegisterDevice records a device the customer left with the shop.
func (s *CustomerService) RegisterDevice(ctx context.Context, customerID string, input DeviceInput) (*domain.Device, error) {
	now := s.now()
	device := &domain.Device{
		CustomerID: customerID,
		Brand:      strings.TrimSpace(input.Brand),
		Model:      strings.TrimSpace(input.Model),
		Serial:     strings.TrimSpace(input.Serial),
		LockInfo:   strings.TrimSpace(input.LockInfo),
		Status:     domain.DeviceStatusReceived,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if device.Brand == "" && device.Model == "" {
		return nil, fmt.Errorf("%w: brand or model is required", domain.ErrValidation)
	}
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := s.live(ctx, tx, customerID); err != nil {
			return err
		}
		return tx.Devices().Create(ctx, device)
	})
	if err != nil {
		return nil, err
	}
	return device, nil
}

func (s *CustomerService) live(ctx context.Context, tx repository.Tx, customerID string) (*domain.Customer, error) {
	customer, err := tx.Customers().GetByID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if customer.DeletedAt != nil {
		return nil, fmt.Errorf("customer %s: %w", customerID, domain.ErrNotFound)
	}
	return customer, nil
}
