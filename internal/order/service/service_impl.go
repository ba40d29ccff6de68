package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/greenbasket/backoffice/internal/clock"
	"github.com/greenbasket/backoffice/internal/events"
	obsmetrics "github.com/greenbasket/backoffice/internal/observability/metrics"
	"github.com/greenbasket/backoffice/internal/order/domain"
	stockdomain "github.com/greenbasket/backoffice/internal/stock/domain"
	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	Outbox     *events.Outbox
	Stock      stockdomain.Service
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	outbox     *events.Outbox
	stock      stockdomain.Service
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("order.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		outbox:     p.Outbox,
		stock:      p.Stock,
		obsMetrics: p.ObsMetrics,
	}
}

// CreatePending persists a new PENDING order with its lines and emits
// order.created in the same transaction.
func (s *Service) CreatePending(ctx context.Context, req domain.CreateOrderRequest) (*domain.OrderResponse, error) {
	if strings.TrimSpace(req.CustomerID) == "" {
		return nil, domain.ErrInvalidCustomer
	}
	if strings.TrimSpace(req.ShippingAddress) == "" {
		return nil, domain.ErrInvalidAddress
	}
	if len(req.Lines) == 0 {
		return nil, domain.ErrEmptyOrder
	}

	now := s.clock.Now()
	order := &domain.Order{
		ID:              s.genID.Generate(),
		OrderNumber:     ulid.Make().String(),
		CustomerID:      strings.TrimSpace(req.CustomerID),
		Status:          domain.StatusPending,
		Subtotal:        req.Subtotal,
		Discount:        req.Discount,
		Tax:             req.Tax,
		ShippingCost:    req.ShippingCost,
		Total:           req.Total,
		ShippingAddress: strings.TrimSpace(req.ShippingAddress),
		PaymentMethod:   req.PaymentMethod,
		PaymentRef:      req.PaymentRef,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for _, line := range req.Lines {
		order.LineItems = append(order.LineItems, domain.LineItem{
			ID:           s.genID.Generate(),
			OrderID:      order.ID,
			ProductID:    line.ProductID,
			Quantity:     line.Quantity,
			UnitPrice:    line.UnitPrice,
			UnitDiscount: line.UnitDiscount,
			LineSubtotal: line.LineSubtotal,
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Create(ctx, tx, order); err != nil {
			return err
		}
		return s.outbox.PublishTx(ctx, tx, events.Event{
			Type: events.TypeOrderCreated,
			Payload: map[string]any{
				"order_id":     order.ID.String(),
				"order_number": order.OrderNumber,
				"customer_id":  order.CustomerID,
				"total":        order.Total.String(),
			},
			DedupeKey: "order_created:" + order.ID.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
	)
	resp := toOrderResponse(order)
	return &resp, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.OrderResponse, error) {
	order, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	resp := toOrderResponse(order)
	return &resp, nil
}

func (s *Service) GetByNumber(ctx context.Context, number string) (*domain.OrderResponse, error) {
	order, err := s.repo.FindByNumber(ctx, s.db, strings.TrimSpace(number))
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	resp := toOrderResponse(order)
	return &resp, nil
}

func (s *Service) List(ctx context.Context, filter domain.ListFilter) ([]domain.OrderResponse, error) {
	orders, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	resp := make([]domain.OrderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, toOrderResponse(&orders[i]))
	}
	return resp, nil
}

func (s *Service) Confirm(ctx context.Context, id snowflake.ID, actor string) (*domain.OrderResponse, error) {
	return s.transition(ctx, id, domain.StatusConfirmed, actor, nil)
}

func (s *Service) Prepare(ctx context.Context, id snowflake.ID, actor string) (*domain.OrderResponse, error) {
	return s.transition(ctx, id, domain.StatusPreparing, actor, nil)
}

func (s *Service) Ship(ctx context.Context, req domain.ShipRequest) (*domain.OrderResponse, error) {
	tracking := strings.TrimSpace(req.TrackingNumber)
	if tracking == "" {
		return nil, domain.ErrInvalidTracking
	}
	carrier := strings.TrimSpace(req.Carrier)
	return s.transition(ctx, req.OrderID, domain.StatusShipped, req.Actor, func(order *domain.Order) {
		order.TrackingNumber = &tracking
		if carrier != "" {
			order.Carrier = &carrier
		}
	})
}

func (s *Service) Deliver(ctx context.Context, id snowflake.ID, actor string) (*domain.OrderResponse, error) {
	return s.transition(ctx, id, domain.StatusDelivered, actor, func(order *domain.Order) {
		at := s.clock.Now()
		order.DeliveredAt = &at
	})
}

// Cancel moves the order to CANCELLED, then restocks every line. The state
// change and its event commit first so a restock failure never leaves a
// cancelled order looking active. When a restock fails, the cancelled order
// is returned together with the error so the caller knows the cancellation
// held and only the compensation needs retrying.
func (s *Service) Cancel(ctx context.Context, req domain.CancelRequest) (*domain.OrderResponse, error) {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, domain.ErrInvalidReason
	}

	resp, err := s.transition(ctx, req.OrderID, domain.StatusCancelled, req.Actor, func(order *domain.Order) {
		order.CancelReason = &reason
	})
	if err != nil {
		return nil, err
	}

	for _, line := range resp.Lines {
		productID, perr := snowflake.ParseString(line.ProductID)
		if perr != nil {
			return resp, perr
		}
		if _, rerr := s.stock.Restock(ctx, stockdomain.MutationRequest{
			ProductID: productID,
			Quantity:  line.Quantity,
			Actor:     normalizeActor(req.Actor),
			Reason:    "order cancelled: " + reason,
		}); rerr != nil {
			s.log.Error("restock after cancel failed",
				zap.String("order_id", resp.ID),
				zap.String("product_id", line.ProductID),
				zap.Error(rerr),
			)
			return resp, rerr
		}
	}
	return resp, nil
}

// transition loads the order, checks the legality map, applies mutate, and
// commits the update together with an order.state_changed event.
func (s *Service) transition(ctx context.Context, id snowflake.ID, target domain.Status, actor string, mutate func(*domain.Order)) (*domain.OrderResponse, error) {
	var resp *domain.OrderResponse
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if order == nil {
			return domain.ErrOrderNotFound
		}
		if !order.Status.CanTransitionTo(target) {
			return domain.TransitionError(order.Status, target)
		}

		from := order.Status
		order.Status = target
		order.UpdatedAt = s.clock.Now()
		if mutate != nil {
			mutate(order)
		}

		if err := s.repo.Update(ctx, tx, order); err != nil {
			return err
		}
		if err := s.outbox.PublishTx(ctx, tx, events.Event{
			Type: events.TypeOrderStateChanged,
			Payload: map[string]any{
				"order_id":     order.ID.String(),
				"order_number": order.OrderNumber,
				"from":         string(from),
				"to":           string(target),
				"actor":        normalizeActor(actor),
			},
			DedupeKey: "order_state:" + order.ID.String() + ":" + string(target),
		}); err != nil {
			return err
		}

		r := toOrderResponse(order)
		resp = &r
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordOrderTransition(ctx, string(target))
	}
	return resp, nil
}

func toOrderResponse(order *domain.Order) domain.OrderResponse {
	resp := domain.OrderResponse{
		ID:              order.ID.String(),
		OrderNumber:     order.OrderNumber,
		CustomerID:      order.CustomerID,
		Status:          order.Status,
		Subtotal:        order.Subtotal,
		Discount:        order.Discount,
		Tax:             order.Tax,
		ShippingCost:    order.ShippingCost,
		Total:           order.Total,
		ShippingAddress: order.ShippingAddress,
		PaymentMethod:   order.PaymentMethod,
		PaymentRef:      order.PaymentRef,
		TrackingNumber:  order.TrackingNumber,
		Carrier:         order.Carrier,
		CancelReason:    order.CancelReason,
		DeliveredAt:     order.DeliveredAt,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
	for _, line := range order.LineItems {
		resp.Lines = append(resp.Lines, domain.LineItemResponse{
			ProductID:    line.ProductID.String(),
			Quantity:     line.Quantity,
			UnitPrice:    line.UnitPrice,
			UnitDiscount: line.UnitDiscount,
			LineSubtotal: line.LineSubtotal,
		})
	}
	return resp
}

func normalizeActor(actor string) string {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return "SYSTEM"
	}
	return actor
}
