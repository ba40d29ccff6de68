package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	catalogdomain "github.com/greenbasket/backoffice/internal/catalog/domain"
	"github.com/greenbasket/backoffice/internal/checkout/domain"
	obsmetrics "github.com/greenbasket/backoffice/internal/observability/metrics"
	orderdomain "github.com/greenbasket/backoffice/internal/order/domain"
	"github.com/greenbasket/backoffice/internal/pricing"
	stockdomain "github.com/greenbasket/backoffice/internal/stock/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Catalog    catalogdomain.Service
	Stock      stockdomain.Service
	Orders     orderdomain.Service
	Engine     *pricing.Engine
	Payment    domain.PaymentProcessor
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	catalog    catalogdomain.Service
	stock      stockdomain.Service
	orders     orderdomain.Service
	engine     *pricing.Engine
	payment    domain.PaymentProcessor
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:        p.Log.Named("checkout.service"),
		catalog:    p.Catalog,
		stock:      p.Stock,
		orders:     p.Orders,
		engine:     p.Engine,
		payment:    p.Payment,
		obsMetrics: p.ObsMetrics,
	}
}

// resolvedLine pairs a cart item with the catalog product it priced against.
type resolvedLine struct {
	product  catalogdomain.ProductResponse
	id       snowflake.ID
	quantity int
	discount decimal.Decimal
}

// Checkout prices the cart at current catalog prices, authorizes payment,
// reserves stock per line, and records the PENDING order. Reservations walk
// the lines in product ID order so two concurrent checkouts over the same
// products never deadlock on each other; any failure restocks what was
// already taken before the error is returned.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (*orderdomain.OrderResponse, error) {
	resp, err := s.checkout(ctx, req)
	if s.obsMetrics != nil {
		result := "success"
		if err != nil {
			result = "failure"
		}
		s.obsMetrics.RecordCheckout(ctx, result)
	}
	return resp, err
}

func (s *Service) checkout(ctx context.Context, req domain.CheckoutRequest) (*orderdomain.OrderResponse, error) {
	lines, err := s.resolve(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	priced := make([]pricing.LineItem, 0, len(lines))
	for _, line := range lines {
		priced = append(priced, pricing.LineItem{
			ProductID:    line.id,
			Quantity:     line.quantity,
			UnitPrice:    line.product.Price,
			UnitDiscount: line.discount,
		})
	}
	totals, err := s.engine.Price(priced)
	if err != nil {
		return nil, err
	}

	paymentRef, err := s.payment.Authorize(ctx, req.CustomerID, req.PaymentMethod, totals.Total)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPaymentDeclined, err)
	}

	checkoutRef := uuid.NewString()
	actor := normalizeActor(req.Actor)
	reserved, err := s.reserveAll(ctx, lines, actor, checkoutRef)
	if err != nil {
		return nil, err
	}

	orderReq := orderdomain.CreateOrderRequest{
		CustomerID:      req.CustomerID,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		PaymentRef:      paymentRef,
		Subtotal:        totals.Subtotal,
		Discount:        totals.Discount,
		Tax:             totals.Tax,
		ShippingCost:    totals.ShippingCost,
		Total:           totals.Total,
	}
	for _, line := range priced {
		orderReq.Lines = append(orderReq.Lines, orderdomain.CreateOrderLine{
			ProductID:    line.ProductID,
			Quantity:     line.Quantity,
			UnitPrice:    line.UnitPrice,
			UnitDiscount: line.UnitDiscount,
			LineSubtotal: line.Subtotal(),
		})
	}

	resp, err := s.orders.CreatePending(ctx, orderReq)
	if err != nil {
		s.rollback(ctx, reserved, actor, checkoutRef)
		return nil, err
	}

	s.log.Info("checkout completed",
		zap.String("order_id", resp.ID),
		zap.String("order_number", resp.OrderNumber),
		zap.String("customer_id", resp.CustomerID),
		zap.String("total", resp.Total.String()),
	)
	return resp, nil
}

func (s *Service) Preview(ctx context.Context, items []domain.CartItem) (*domain.PreviewResponse, error) {
	lines, err := s.resolve(ctx, items)
	if err != nil {
		return nil, err
	}

	priced := make([]pricing.LineItem, 0, len(lines))
	resp := &domain.PreviewResponse{}
	for _, line := range lines {
		li := pricing.LineItem{
			ProductID:    line.id,
			Quantity:     line.quantity,
			UnitPrice:    line.product.Price,
			UnitDiscount: line.discount,
		}
		priced = append(priced, li)
		resp.Lines = append(resp.Lines, domain.PreviewLine{
			ProductID:    line.product.ID,
			Name:         line.product.Name,
			Quantity:     line.quantity,
			UnitPrice:    line.product.Price,
			UnitDiscount: line.discount,
			LineSubtotal: li.Subtotal(),
		})
	}

	totals, err := s.engine.Price(priced)
	if err != nil {
		return nil, err
	}
	resp.Totals = totals
	return resp, nil
}

// resolve validates the cart and loads each product at its current catalog
// price. Repeated product IDs merge into one line. Client-sent prices are
// never trusted; only the unit discount comes from the cart.
func (s *Service) resolve(ctx context.Context, items []domain.CartItem) ([]resolvedLine, error) {
	if len(items) == 0 {
		return nil, domain.ErrEmptyCart
	}

	merged := make(map[snowflake.ID]*resolvedLine, len(items))
	order := make([]snowflake.ID, 0, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, domain.ErrInvalidQuantity
		}
		if item.UnitDiscount.IsNegative() {
			return nil, pricing.ErrInvalidDiscount
		}
		if line, ok := merged[item.ProductID]; ok {
			line.quantity += item.Quantity
			continue
		}

		product, err := s.catalog.Get(ctx, item.ProductID)
		if err != nil {
			if err == catalogdomain.ErrProductNotFound {
				return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, item.ProductID)
			}
			return nil, err
		}
		if !product.Active {
			return nil, fmt.Errorf("%w: %s", domain.ErrProductInactive, product.Code)
		}

		merged[item.ProductID] = &resolvedLine{
			product:  *product,
			id:       item.ProductID,
			quantity: item.Quantity,
			discount: item.UnitDiscount,
		}
		order = append(order, item.ProductID)
	}

	lines := make([]resolvedLine, 0, len(order))
	for _, id := range order {
		lines = append(lines, *merged[id])
	}
	return lines, nil
}

func (s *Service) reserveAll(ctx context.Context, lines []resolvedLine, actor, checkoutRef string) ([]resolvedLine, error) {
	sorted := make([]resolvedLine, len(lines))
	copy(sorted, lines)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].id < sorted[j].id })

	reserved := make([]resolvedLine, 0, len(sorted))
	for _, line := range sorted {
		_, err := s.stock.Reserve(ctx, stockdomain.MutationRequest{
			ProductID: line.id,
			Quantity:  line.quantity,
			Actor:     actor,
			Reason:    "checkout " + checkoutRef,
		})
		if err != nil {
			s.rollback(ctx, reserved, actor, checkoutRef)
			if err == stockdomain.ErrInsufficientStock || err == stockdomain.ErrRecordNotFound {
				return nil, fmt.Errorf("%w: %s", domain.ErrStockUnavailable, line.product.Code)
			}
			return nil, err
		}
		reserved = append(reserved, line)
	}
	return reserved, nil
}

// rollback returns already reserved quantities. A failed restock here is
// logged and skipped so the remaining lines still get returned; the audit
// trail keeps enough to reconcile manually.
func (s *Service) rollback(ctx context.Context, reserved []resolvedLine, actor, checkoutRef string) {
	for _, line := range reserved {
		if _, err := s.stock.Restock(ctx, stockdomain.MutationRequest{
			ProductID: line.id,
			Quantity:  line.quantity,
			Actor:     actor,
			Reason:    "checkout rollback: " + checkoutRef,
		}); err != nil {
			s.log.Error("checkout rollback restock failed",
				zap.String("product_id", line.id.String()),
				zap.Int("quantity", line.quantity),
				zap.Error(err),
			)
		}
	}
}

func normalizeActor(actor string) string {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return "SYSTEM"
	}
	return actor
}
