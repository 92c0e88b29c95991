package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront/internal/permissions"
	"github.com/angelmondragon/storefront/pkg/db/models"
	"github.com/angelmondragon/storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/outbox"
	"github.com/angelmondragon/storefront/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront/pkg/pagination"
	"github.com/angelmondragon/storefront/pkg/validation"
)

// Service manages the order lifecycle. Every operation checks the subject's
// permission before it changes anything.
type Service interface {
	List(ctx context.Context, subject permissions.Subject, params pagination.Params) (*ListResult, error)
	Get(ctx context.Context, subject permissions.Subject, id uuid.UUID) (*OrderDTO, error)
	CreateForm(ctx context.Context, subject permissions.Subject) (*CustomerInput, error)
	Create(ctx context.Context, subject permissions.Subject, input CustomerInput) (*OrderDTO, error)
	UpdateForm(ctx context.Context, subject permissions.Subject, id uuid.UUID) (*CustomerInput, error)
	Update(ctx context.Context, subject permissions.Subject, id uuid.UUID, input CustomerInput) (*OrderDTO, error)
	Deliver(ctx context.Context, subject permissions.Subject, id uuid.UUID) (*OrderDTO, error)
	Cancel(ctx context.Context, subject permissions.Subject, id uuid.UUID) (*OrderDTO, error)
	ItemForm(ctx context.Context, subject permissions.Subject, orderID uuid.UUID, itemID *uuid.UUID) (*ItemInput, error)
	AddItem(ctx context.Context, subject permissions.Subject, orderID uuid.UUID, input ItemInput) (*OrderItemDTO, error)
	UpdateItem(ctx context.Context, subject permissions.Subject, orderID, itemID uuid.UUID, input ItemInput) (*OrderItemDTO, error)
	DeleteItem(ctx context.Context, subject permissions.Subject, orderID, itemID uuid.UUID) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type transitionRecorder interface {
	IncOrderTransition(status string)
}

// ServiceParams groups the collaborators of the order service.
type ServiceParams struct {
	Repo    *Repository
	Tx      txRunner
	Outbox  outbox.Emitter
	Metrics transitionRecorder
	Logger  *logger.Logger
}

type service struct {
	repo    *Repository
	tx      txRunner
	outbox  outbox.Emitter
	metrics transitionRecorder
	logg    *logger.Logger
}

// NewService constructs the order service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		outbox:  params.Outbox,
		metrics: params.Metrics,
		logg:    params.Logger,
	}, nil
}

// List returns every order to subjects allowed to view all orders, the
// subject's own orders otherwise, and nothing to anonymous visitors.
func (s *service) List(ctx context.Context, subject permissions.Subject, params pagination.Params) (*ListResult, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Validation("invalid cursor", pkgerrors.FieldErrors{"cursor": err.Error()})
	}
	if !subject.Has(enums.CapabilityViewOrder) && !subject.IsAuthenticated() {
		return &ListResult{Orders: []OrderDTO{}}, nil
	}

	var owner *uuid.UUID
	if !subject.Has(enums.CapabilityViewOrder) {
		owner = subject.UserID
	}
	rows, err := s.repo.List(ctx, owner, cursor, params.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	page := pagination.Trim(rows, params.Limit, func(o models.Order) pagination.Cursor {
		return pagination.TimeCursor(o.CreatedAt, o.ID)
	})
	out := &ListResult{Orders: make([]OrderDTO, 0, len(page.Items)), NextCursor: page.NextCursor}
	for i := range page.Items {
		out.Orders = append(out.Orders, *FromModel(&page.Items[i]))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, subject permissions.Subject, id uuid.UUID) (*OrderDTO, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := permissions.Check(subject, permissions.ActionViewOrder, order); err != nil {
		return nil, err
	}
	return FromModel(order), nil
}

func (s *service) CreateForm(_ context.Context, subject permissions.Subject) (*CustomerInput, error) {
	if err := permissions.Check(subject, permissions.ActionAddOrder, nil); err != nil {
		return nil, err
	}
	return &CustomerInput{}, nil
}

// Create places an order directly, without a basket or owner.
func (s *service) Create(ctx context.Context, subject permissions.Subject, input CustomerInput) (*OrderDTO, error) {
	if err := permissions.Check(subject, permissions.ActionAddOrder, nil); err != nil {
		return nil, err
	}
	input, err := ValidateCustomer(input)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Phone:     input.Phone,
		Email:     input.Email,
		Status:    enums.OrderStatusNew,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		return s.emit(ctx, tx, subject, enums.EventOrderCreated, order.ID, payloads.OrderCreatedEvent{
			OrderID: order.ID,
			Email:   order.Email,
			Lines:   []payloads.OrderLine{},
		})
	})
	if err != nil {
		return nil, asDependency(err, "create order")
	}
	return s.reload(ctx, order.ID)
}

func (s *service) UpdateForm(ctx context.Context, subject permissions.Subject, id uuid.UUID) (*CustomerInput, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := permissions.Check(subject, permissions.ActionChangeOrder, order); err != nil {
		return nil, err
	}
	form := customerFromModel(order)
	return &form, nil
}

// Update changes the contact details; status is never touched here.
func (s *service) Update(ctx context.Context, subject permissions.Subject, id uuid.UUID, input CustomerInput) (*OrderDTO, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := permissions.Check(subject, permissions.ActionChangeOrder, order); err != nil {
		return nil, err
	}
	input, err = ValidateCustomer(input)
	if err != nil {
		return nil, err
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).UpdateCustomer(ctx, id, input); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
		}
		return s.emit(ctx, tx, subject, enums.EventOrderUpdated, id, payloads.OrderUpdatedEvent{
			OrderID:   id,
			FirstName: input.FirstName,
			LastName:  input.LastName,
			Phone:     input.Phone,
			Email:     input.Email,
			ChangedBy: subject.UserID,
		})
	})
	if err != nil {
		return nil, asDependency(err, "update order")
	}
	return s.reload(ctx, id)
}

// Deliver marks the order DELIVERED. The current status is deliberately not
// checked, so cancelled and delivered orders can be delivered again.
func (s *service) Deliver(ctx context.Context, subject permissions.Subject, id uuid.UUID) (*OrderDTO, error) {
	return s.transition(ctx, subject, id, permissions.ActionDeliverOrder, enums.OrderStatusDelivered, enums.EventOrderDelivered, nil)
}

// Cancel moves a NEW order to CANCELLED.
func (s *service) Cancel(ctx context.Context, subject permissions.Subject, id uuid.UUID) (*OrderDTO, error) {
	requireNew := func(order *models.Order) error {
		if order.Status != enums.OrderStatusNew {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only new orders can be cancelled").
				WithDetails(map[string]any{"status": order.Status})
		}
		return nil
	}
	return s.transition(ctx, subject, id, permissions.ActionCancelOrder, enums.OrderStatusCancelled, enums.EventOrderCancelled, requireNew)
}

func (s *service) transition(
	ctx context.Context,
	subject permissions.Subject,
	id uuid.UUID,
	action permissions.Action,
	target enums.OrderStatus,
	event enums.OutboxEventType,
	guard func(*models.Order) error,
) (*OrderDTO, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if err := permissions.Check(subject, action, order); err != nil {
			return err
		}
		if guard != nil {
			if err := guard(order); err != nil {
				return err
			}
		}
		previous := order.Status
		if err := repo.UpdateStatus(ctx, id, target); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		return s.emit(ctx, tx, subject, event, id, payloads.OrderStatusChangedEvent{
			OrderID:        id,
			PreviousStatus: previous,
			Status:         target,
			ChangedBy:      subject.UserID,
		})
	})
	if err != nil {
		return nil, asDependency(err, "order transition")
	}

	if s.metrics != nil {
		s.metrics.IncOrderTransition(target.String())
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{"order_id": id.String(), "status": target})
		s.logg.Info(logCtx, "order status changed")
	}
	return s.reload(ctx, id)
}

func (s *service) ItemForm(ctx context.Context, subject permissions.Subject, orderID uuid.UUID, itemID *uuid.UUID) (*ItemInput, error) {
	action := permissions.ActionAddItem
	if itemID != nil {
		action = permissions.ActionChangeItem
	}
	if _, err := s.authorizeItems(ctx, subject, orderID, action); err != nil {
		return nil, err
	}
	if itemID == nil {
		return &ItemInput{Amount: 1}, nil
	}
	item, err := s.loadItem(ctx, orderID, *itemID)
	if err != nil {
		return nil, err
	}
	return &ItemInput{ProductID: item.ProductID, Amount: item.Amount}, nil
}

func (s *service) AddItem(ctx context.Context, subject permissions.Subject, orderID uuid.UUID, input ItemInput) (*OrderItemDTO, error) {
	if _, err := s.authorizeItems(ctx, subject, orderID, permissions.ActionAddItem); err != nil {
		return nil, err
	}
	if err := s.validateItem(ctx, input); err != nil {
		return nil, err
	}
	item := &models.OrderProduct{OrderID: orderID, ProductID: input.ProductID, Amount: input.Amount}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).CreateItem(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add order item")
		}
		return s.emit(ctx, tx, subject, enums.EventOrderItemAdded, orderID, itemEvent(item, nil))
	})
	if err != nil {
		return nil, asDependency(err, "add order item")
	}
	return s.itemDTO(ctx, orderID, item.ID)
}

func (s *service) UpdateItem(ctx context.Context, subject permissions.Subject, orderID, itemID uuid.UUID, input ItemInput) (*OrderItemDTO, error) {
	if _, err := s.authorizeItems(ctx, subject, orderID, permissions.ActionChangeItem); err != nil {
		return nil, err
	}
	item, err := s.loadItem(ctx, orderID, itemID)
	if err != nil {
		return nil, err
	}
	if err := s.validateItem(ctx, input); err != nil {
		return nil, err
	}
	previous := &payloads.OrderLine{ProductID: item.ProductID, Amount: item.Amount}
	item.ProductID = input.ProductID
	item.Amount = input.Amount
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).UpdateItem(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order item")
		}
		return s.emit(ctx, tx, subject, enums.EventOrderItemChanged, orderID, itemEvent(item, previous))
	})
	if err != nil {
		return nil, asDependency(err, "update order item")
	}
	return s.itemDTO(ctx, orderID, itemID)
}

func (s *service) DeleteItem(ctx context.Context, subject permissions.Subject, orderID, itemID uuid.UUID) error {
	if _, err := s.authorizeItems(ctx, subject, orderID, permissions.ActionDeleteItem); err != nil {
		return err
	}
	item, err := s.loadItem(ctx, orderID, itemID)
	if err != nil {
		return err
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).DeleteItem(ctx, orderID, itemID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete order item")
		}
		return s.emit(ctx, tx, subject, enums.EventOrderItemRemoved, orderID, itemEvent(item, nil))
	})
	return asDependency(err, "delete order item")
}

func (s *service) authorizeItems(ctx context.Context, subject permissions.Subject, orderID uuid.UUID, action permissions.Action) (*models.Order, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := permissions.Check(subject, action, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) validateItem(ctx context.Context, input ItemInput) error {
	fields := pkgerrors.FieldErrors{}
	if err := validation.Struct(input); err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			if details, ok := typed.Details().(pkgerrors.FieldErrors); ok {
				fields = details
			}
		}
	}
	if input.ProductID == uuid.Nil {
		fields["product_id"] = "is required"
	} else {
		exists, err := s.repo.ProductExists(ctx, input.ProductID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check product")
		}
		if !exists {
			fields["product_id"] = "select a valid product"
		}
	}
	if len(fields) > 0 {
		return pkgerrors.Validation("invalid order item", fields)
	}
	return nil
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) reload(ctx context.Context, id uuid.UUID) (*OrderDTO, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return FromModel(order), nil
}

func (s *service) loadItem(ctx context.Context, orderID, itemID uuid.UUID) (*models.OrderProduct, error) {
	item, err := s.repo.FindItem(ctx, orderID, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order item")
	}
	return item, nil
}

func (s *service) itemDTO(ctx context.Context, orderID, itemID uuid.UUID) (*OrderItemDTO, error) {
	item, err := s.loadItem(ctx, orderID, itemID)
	if err != nil {
		return nil, err
	}
	dto := ItemFromModel(item)
	return &dto, nil
}

// emit appends an order event inside tx.
func (s *service) emit(ctx context.Context, tx *gorm.DB, subject permissions.Subject, event enums.OutboxEventType, orderID uuid.UUID, data any) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     event,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Actor:         actorFor(subject),
		Data:          data,
	})
}

func itemEvent(item *models.OrderProduct, previous *payloads.OrderLine) payloads.OrderItemEvent {
	return payloads.OrderItemEvent{
		OrderID:   item.OrderID,
		ItemID:    item.ID,
		ProductID: item.ProductID,
		Amount:    item.Amount,
		Previous:  previous,
	}
}

func actorFor(subject permissions.Subject) *outbox.ActorRef {
	if !subject.IsAuthenticated() {
		return nil
	}
	return &outbox.ActorRef{UserID: subject.UserID}
}

// asDependency keeps typed errors and wraps anything else as a dependency failure.
func asDependency(err error, msg string) error {
	if err == nil || pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
