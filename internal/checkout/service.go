package checkout

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront/internal/basket"
	"github.com/angelmondragon/storefront/internal/orders"
	"github.com/angelmondragon/storefront/internal/permissions"
	product "github.com/angelmondragon/storefront/internal/products"
	"github.com/angelmondragon/storefront/pkg/db/models"
	"github.com/angelmondragon/storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/metrics"
	"github.com/angelmondragon/storefront/pkg/outbox"
	"github.com/angelmondragon/storefront/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront/pkg/session"
)

// MsgBasketEmpty is the whole-form message returned when checking out an empty basket.
const MsgBasketEmpty = "basket empty"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productLoader interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

type checkoutRecorder interface {
	IncCheckout(result string)
}

// Service turns a session basket into a persisted order.
type Service interface {
	Preview(ctx context.Context, kv session.KV) (*Preview, error)
	Checkout(ctx context.Context, kv session.KV, subject permissions.Subject, input orders.CustomerInput) (*orders.OrderDTO, error)
}

// ServiceParams groups the checkout collaborators.
type ServiceParams struct {
	Tx       txRunner
	Products productLoader
	Orders   *orders.Repository
	Outbox   outbox.Emitter
	Metrics  checkoutRecorder
	Logger   *logger.Logger
}

type service struct {
	tx       txRunner
	products productLoader
	orders   *orders.Repository
	outbox   outbox.Emitter
	metrics  checkoutRecorder
	logg     *logger.Logger
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{
		tx:       params.Tx,
		products: params.Products,
		orders:   params.Orders,
		outbox:   params.Outbox,
		metrics:  params.Metrics,
		logg:     params.Logger,
	}, nil
}

func (s *service) Preview(ctx context.Context, kv session.KV) (*Preview, error) {
	store := basket.New(kv)
	lines, err := store.Lines()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read basket")
	}
	out := &Preview{Lines: make([]PreviewLine, 0, len(lines)), Total: decimal.Zero}
	if len(lines) == 0 {
		return out, nil
	}

	found, err := s.products.FindByIDs(ctx, lineProductIDs(lines))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load basket products")
	}
	for _, line := range lines {
		p, ok := found[line.ProductID]
		if !ok {
			continue
		}
		lineTotal := p.Price.Mul(decimal.NewFromInt(int64(line.Quantity))).Round(2)
		out.Lines = append(out.Lines, PreviewLine{
			Product:   *product.FromModel(&p),
			Quantity:  line.Quantity,
			LineTotal: lineTotal,
		})
		out.Count += line.Quantity
		out.Total = out.Total.Add(lineTotal)
	}
	return out, nil
}

// Checkout validates the basket and customer details, then writes the order,
// its grouped lines and the order_created event in one transaction. The basket
// is cleared only after the commit; any failure leaves it as it was.
func (s *service) Checkout(ctx context.Context, kv session.KV, subject permissions.Subject, input orders.CustomerInput) (*orders.OrderDTO, error) {
	store := basket.New(kv)
	lines, err := store.Lines()
	if err != nil {
		s.record(metrics.CheckoutFailed)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read basket")
	}
	if len(lines) == 0 {
		s.record(metrics.CheckoutEmpty)
		return nil, pkgerrors.NonField(MsgBasketEmpty)
	}

	input, err = orders.ValidateCustomer(input)
	if err != nil {
		s.record(metrics.CheckoutInvalid)
		return nil, err
	}

	order := &models.Order{
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Phone:     input.Phone,
		Email:     input.Email,
		Status:    enums.OrderStatusNew,
		UserID:    subject.UserID,
	}

	// Products are never hard deleted, so the lookup can precede the transaction.
	found, err := s.products.FindByIDs(ctx, lineProductIDs(lines))
	if err != nil {
		s.record(metrics.CheckoutFailed)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load basket products")
	}
	for _, line := range lines {
		if _, ok := found[line.ProductID]; !ok {
			s.record(metrics.CheckoutInvalid)
			return nil, pkgerrors.Validation("invalid basket", pkgerrors.FieldErrors{
				"products": fmt.Sprintf("product %s does not exist", line.ProductID),
			})
		}
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		if err := repo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		total := decimal.Zero
		eventLines := make([]payloads.OrderLine, 0, len(lines))
		for _, line := range lines {
			item := &models.OrderProduct{OrderID: order.ID, ProductID: line.ProductID, Amount: line.Quantity}
			if err := repo.CreateItem(ctx, item); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order item")
			}
			p := found[line.ProductID]
			item.Product = &p
			order.Products = append(order.Products, *item)
			total = total.Add(p.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
			eventLines = append(eventLines, payloads.OrderLine{ProductID: line.ProductID, Amount: line.Quantity})
		}

		var actor *outbox.ActorRef
		if subject.IsAuthenticated() {
			actor = &outbox.ActorRef{UserID: subject.UserID}
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actor,
			Data: payloads.OrderCreatedEvent{
				OrderID: order.ID,
				UserID:  order.UserID,
				Email:   order.Email,
				Lines:   eventLines,
				Total:   total.Round(2),
			},
		})
	})
	if err != nil {
		s.record(metrics.CheckoutFailed)
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checkout")
	}

	store.Clear()
	s.record(metrics.CheckoutCreated)
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id": order.ID.String(),
			"lines":    len(lines),
		})
		s.logg.Info(logCtx, "basket checked out")
	}
	// The order is committed and the basket gone; answer from what was written.
	return orders.FromModel(order), nil
}

func (s *service) record(result string) {
	if s.metrics != nil {
		s.metrics.IncCheckout(result)
	}
}

func lineProductIDs(lines []basket.Line) []uuid.UUID {
	ids := make([]uuid.UUID, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}
	return ids
}
