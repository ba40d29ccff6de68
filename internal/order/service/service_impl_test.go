package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	sqlite "github.com/glebarez/sqlite"
	"github.com/greenbasket/backoffice/internal/clock"
	"github.com/greenbasket/backoffice/internal/events"
	"github.com/greenbasket/backoffice/internal/order/domain"
	"github.com/greenbasket/backoffice/internal/order/repository"
	stockdomain "github.com/greenbasket/backoffice/internal/stock/domain"
	stockrepository "github.com/greenbasket/backoffice/internal/stock/repository"
	stockservice "github.com/greenbasket/backoffice/internal/stock/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db    *gorm.DB
	fake  *clock.FakeClock
	order domain.Service
	stock stockdomain.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&domain.Order{},
		&domain.LineItem{},
		&stockdomain.StockRecord{},
		&stockdomain.HistoryEntry{},
		&events.OutboxEvent{},
	))

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC))
	outbox := events.NewOutbox(events.OutboxParams{Log: zap.NewNop(), GenID: node})

	stockSvc := stockservice.New(stockservice.Params{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  node,
		Clock:  fake,
		Repo:   stockrepository.Provide(),
		Outbox: outbox,
	})
	orderSvc := New(Params{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  node,
		Clock:  fake,
		Repo:   repository.Provide(),
		Outbox: outbox,
		Stock:  stockSvc,
	})

	return &fixture{db: db, fake: fake, order: orderSvc, stock: stockSvc}
}

func (f *fixture) createOrder(t *testing.T, lines ...domain.CreateOrderLine) *domain.OrderResponse {
	t.Helper()

	if len(lines) == 0 {
		lines = []domain.CreateOrderLine{{
			ProductID:    501,
			Quantity:     2,
			UnitPrice:    decimal.RequireFromString("10.00"),
			UnitDiscount: decimal.Zero,
			LineSubtotal: decimal.RequireFromString("20.00"),
		}}
	}

	resp, err := f.order.CreatePending(context.Background(), domain.CreateOrderRequest{
		CustomerID:      "cust-1",
		ShippingAddress: "12 Elm Street",
		PaymentMethod:   "card",
		PaymentRef:      "pay_test",
		Subtotal:        decimal.RequireFromString("20.00"),
		Discount:        decimal.RequireFromString("1.00"),
		Tax:             decimal.RequireFromString("3.42"),
		ShippingCost:    decimal.Zero,
		Total:           decimal.RequireFromString("22.42"),
		Lines:           lines,
	})
	require.NoError(t, err)
	return resp
}

func parseID(t *testing.T, s string) snowflake.ID {
	t.Helper()
	id, err := snowflake.ParseString(s)
	require.NoError(t, err)
	return id
}

func TestCreatePending(t *testing.T) {
	f := newFixture(t)
	resp := f.createOrder(t)

	assert.Equal(t, domain.StatusPending, resp.Status)
	assert.Len(t, resp.OrderNumber, 26)
	require.Len(t, resp.Lines, 1)
	assert.Equal(t, 2, resp.Lines[0].Quantity)

	var count int64
	require.NoError(t, f.db.Model(&events.OutboxEvent{}).
		Where("type = ?", string(events.TypeOrderCreated)).
		Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestCreatePendingValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.order.CreatePending(ctx, domain.CreateOrderRequest{
		ShippingAddress: "x", Lines: []domain.CreateOrderLine{{ProductID: 1, Quantity: 1}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidCustomer)

	_, err = f.order.CreatePending(ctx, domain.CreateOrderRequest{
		CustomerID: "c", Lines: []domain.CreateOrderLine{{ProductID: 1, Quantity: 1}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAddress)

	_, err = f.order.CreatePending(ctx, domain.CreateOrderRequest{
		CustomerID: "c", ShippingAddress: "x",
	})
	assert.ErrorIs(t, err, domain.ErrEmptyOrder)
}

func TestFullLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.createOrder(t)
	id := parseID(t, created.ID)

	confirmed, err := f.order.Confirm(ctx, id, "ops")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, confirmed.Status)

	prepared, err := f.order.Prepare(ctx, id, "warehouse")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPreparing, prepared.Status)

	shipped, err := f.order.Ship(ctx, domain.ShipRequest{
		OrderID:        id,
		TrackingNumber: "TRK-123",
		Carrier:        "DHL",
		Actor:          "warehouse",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusShipped, shipped.Status)
	require.NotNil(t, shipped.TrackingNumber)
	assert.Equal(t, "TRK-123", *shipped.TrackingNumber)

	f.fake.Advance(48 * time.Hour)
	delivered, err := f.order.Deliver(ctx, id, "courier")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, delivered.Status)
	require.NotNil(t, delivered.DeliveredAt)
	assert.Equal(t, f.fake.Now(), delivered.DeliveredAt.UTC())
}

func TestShipFromConfirmedSkipsPreparing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.createOrder(t)
	id := parseID(t, created.ID)

	_, err := f.order.Confirm(ctx, id, "ops")
	require.NoError(t, err)

	shipped, err := f.order.Ship(ctx, domain.ShipRequest{OrderID: id, TrackingNumber: "TRK-9"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusShipped, shipped.Status)
}

func TestShipRequiresTracking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.createOrder(t)
	id := parseID(t, created.ID)

	_, err := f.order.Confirm(ctx, id, "ops")
	require.NoError(t, err)

	_, err = f.order.Ship(ctx, domain.ShipRequest{OrderID: id, TrackingNumber: "   "})
	assert.ErrorIs(t, err, domain.ErrInvalidTracking)
}

func TestIllegalTransitionsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.createOrder(t)
	id := parseID(t, created.ID)

	// PENDING cannot ship, prepare, or deliver.
	_, err := f.order.Ship(ctx, domain.ShipRequest{OrderID: id, TrackingNumber: "TRK-1"})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = f.order.Prepare(ctx, id, "ops")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = f.order.Deliver(ctx, id, "ops")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.order.Confirm(ctx, id, "ops")
	require.NoError(t, err)

	// CONFIRMED cannot confirm again or deliver.
	_, err = f.order.Confirm(ctx, id, "ops")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = f.order.Deliver(ctx, id, "ops")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestTransitionMatrix(t *testing.T) {
	legal := map[domain.Status][]domain.Status{
		domain.StatusPending:   {domain.StatusConfirmed, domain.StatusCancelled},
		domain.StatusConfirmed: {domain.StatusPreparing, domain.StatusShipped, domain.StatusCancelled},
		domain.StatusPreparing: {domain.StatusShipped},
		domain.StatusShipped:   {domain.StatusDelivered},
		domain.StatusDelivered: {},
		domain.StatusCancelled: {},
	}
	all := []domain.Status{
		domain.StatusPending, domain.StatusConfirmed, domain.StatusPreparing,
		domain.StatusShipped, domain.StatusDelivered, domain.StatusCancelled,
	}

	for from, allowed := range legal {
		allowedSet := map[domain.Status]bool{}
		for _, s := range allowed {
			allowedSet[s] = true
		}
		for _, to := range all {
			assert.Equal(t, allowedSet[to], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}

	assert.True(t, domain.StatusDelivered.Terminal())
	assert.True(t, domain.StatusCancelled.Terminal())
	assert.False(t, domain.StatusPending.Terminal())
}

func TestCancelRestoresStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.stock.CreateRecord(ctx, stockdomain.CreateRecordRequest{
		ProductID:       501,
		InitialQuantity: 10,
	})
	require.NoError(t, err)
	_, err = f.stock.Reserve(ctx, stockdomain.MutationRequest{
		ProductID: 501, Quantity: 2, Reason: "checkout test",
	})
	require.NoError(t, err)

	created := f.createOrder(t)
	id := parseID(t, created.ID)
	_, err = f.order.Confirm(ctx, id, "ops")
	require.NoError(t, err)

	cancelled, err := f.order.Cancel(ctx, domain.CancelRequest{
		OrderID: id,
		Reason:  "customer changed mind",
		Actor:   "support",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelReason)
	assert.Equal(t, "customer changed mind", *cancelled.CancelReason)

	rec, err := f.stock.Get(ctx, 501)
	require.NoError(t, err)
	assert.Equal(t, 10, rec.Quantity)

	history, err := f.stock.History(ctx, 501, 10)
	require.NoError(t, err)
	assert.Equal(t, "order cancelled: customer changed mind", history[0].Reason)
}

func TestCancelRestockFailureStillReturnsCancelledOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Line references a product with no stock record, so the compensating
	// restock fails after the state change has committed.
	created := f.createOrder(t, domain.CreateOrderLine{
		ProductID:    909,
		Quantity:     1,
		UnitPrice:    decimal.RequireFromString("5.00"),
		UnitDiscount: decimal.Zero,
		LineSubtotal: decimal.RequireFromString("5.00"),
	})
	id := parseID(t, created.ID)

	resp, err := f.order.Cancel(ctx, domain.CancelRequest{
		OrderID: id,
		Reason:  "out of region",
	})
	assert.ErrorIs(t, err, stockdomain.ErrRecordNotFound)
	require.NotNil(t, resp, "caller must still see the cancelled order")
	assert.Equal(t, domain.StatusCancelled, resp.Status)

	persisted, gerr := f.order.Get(ctx, id)
	require.NoError(t, gerr)
	assert.Equal(t, domain.StatusCancelled, persisted.Status)
}

func TestCancelRequiresReason(t *testing.T) {
	f := newFixture(t)
	created := f.createOrder(t)
	id := parseID(t, created.ID)

	_, err := f.order.Cancel(context.Background(), domain.CancelRequest{OrderID: id})
	assert.ErrorIs(t, err, domain.ErrInvalidReason)
}

func TestCancelAfterShipRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.createOrder(t)
	id := parseID(t, created.ID)

	_, err := f.order.Confirm(ctx, id, "ops")
	require.NoError(t, err)
	_, err = f.order.Ship(ctx, domain.ShipRequest{OrderID: id, TrackingNumber: "TRK-2"})
	require.NoError(t, err)

	_, err = f.order.Cancel(ctx, domain.CancelRequest{OrderID: id, Reason: "too late"})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestTransitionEmitsStateChangedEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.createOrder(t)
	id := parseID(t, created.ID)

	_, err := f.order.Confirm(ctx, id, "ops")
	require.NoError(t, err)

	var evt events.OutboxEvent
	require.NoError(t, f.db.
		Where("type = ?", string(events.TypeOrderStateChanged)).
		First(&evt).Error)
	assert.Equal(t, "order_state:"+created.ID+":"+string(domain.StatusConfirmed), evt.DedupeKey)
	assert.Equal(t, "PENDING", evt.Payload["from"])
	assert.Equal(t, "CONFIRMED", evt.Payload["to"])
}

func TestListAndGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.createOrder(t)

	byNumber, err := f.order.GetByNumber(ctx, created.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, created.ID, byNumber.ID)

	listed, err := f.order.List(ctx, domain.ListFilter{CustomerID: "cust-1"})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, created.ID, listed[0].ID)

	none, err := f.order.List(ctx, domain.ListFilter{Status: domain.StatusShipped})
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = f.order.Get(ctx, 424242)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}
