package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	sqlite "github.com/glebarez/sqlite"
	"github.com/greenbasket/backoffice/internal/catalog/domain"
	"github.com/greenbasket/backoffice/internal/catalog/repository"
	"github.com/greenbasket/backoffice/internal/clock"
	"github.com/greenbasket/backoffice/internal/events"
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
	db      *gorm.DB
	catalog domain.Service
	stock   stockdomain.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&domain.Product{},
		&stockdomain.StockRecord{},
		&stockdomain.HistoryEntry{},
		&events.OutboxEvent{},
	))

	node, err := snowflake.NewNode(5)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	outbox := events.NewOutbox(events.OutboxParams{Log: log, GenID: node})

	stockSvc := stockservice.New(stockservice.Params{
		DB: db, Log: log, GenID: node, Clock: fake,
		Repo: stockrepository.Provide(), Outbox: outbox,
	})
	catalogSvc := New(Params{
		DB: db, Log: log, GenID: node, Clock: fake,
		Repo: repository.Provide(), Stock: stockSvc,
	})

	return &fixture{db: db, catalog: catalogSvc, stock: stockSvc}
}

func (f *fixture) productCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&domain.Product{}).Count(&count).Error)
	return count
}

func (f *fixture) stockRecordCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&stockdomain.StockRecord{}).Count(&count).Error)
	return count
}

func TestCreateProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.catalog.Create(ctx, domain.CreateProductRequest{
		Name:            "Organic Coffee Beans",
		Description:     "Single origin, 1kg",
		Price:           decimal.RequireFromString("18.50"),
		InitialQuantity: 40,
		Actor:           "merchandiser",
	})
	require.NoError(t, err)
	assert.Equal(t, "organic-coffee-beans", resp.Code)
	assert.True(t, resp.Active)
	assert.True(t, resp.Price.Equal(decimal.RequireFromString("18.50")))

	id, err := snowflake.ParseString(resp.ID)
	require.NoError(t, err)
	rec, err := f.stock.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 40, rec.Quantity)
	assert.Equal(t, "merchandiser", rec.LastUpdatedBy)

	history, err := f.stock.History(ctx, id, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, stockdomain.ChangeTypeCreation, history[0].ChangeType)
	assert.Equal(t, 40, history[0].Delta)
}

func TestCreateProductRejectedStockLeavesNoRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	capacity := 5
	_, err := f.catalog.Create(ctx, domain.CreateProductRequest{
		Name:            "Tiny Shelf Item",
		Price:           decimal.RequireFromString("2.00"),
		InitialQuantity: 10,
		MaxCapacity:     &capacity,
	})
	assert.ErrorIs(t, err, stockdomain.ErrCapacityExceeded)

	// Both writes share one transaction; the rejected stock record must take
	// the product row down with it.
	assert.EqualValues(t, 0, f.productCount(t))
	assert.EqualValues(t, 0, f.stockRecordCount(t))

	_, err = f.catalog.Lookup(ctx, "tiny-shelf-item")
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestCreateProductDuplicateCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := domain.CreateProductRequest{
		Name:            "Bamboo Toothbrush",
		Price:           decimal.RequireFromString("7.90"),
		InitialQuantity: 12,
	}
	_, err := f.catalog.Create(ctx, req)
	require.NoError(t, err)

	_, err = f.catalog.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrProductExists)
	assert.EqualValues(t, 1, f.productCount(t))
	assert.EqualValues(t, 1, f.stockRecordCount(t))
}

func TestCreateProductValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.catalog.Create(ctx, domain.CreateProductRequest{
		Name:  "   ",
		Price: decimal.RequireFromString("1.00"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = f.catalog.Create(ctx, domain.CreateProductRequest{
		Name:  "Negative",
		Price: decimal.RequireFromString("-1.00"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)

	_, err = f.catalog.Create(ctx, domain.CreateProductRequest{
		Name:            "Negative Stock",
		Price:           decimal.RequireFromString("1.00"),
		InitialQuantity: -1,
	})
	assert.ErrorIs(t, err, stockdomain.ErrInvalidQuantity)

	assert.EqualValues(t, 0, f.productCount(t))
}

func TestGetLookupList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.catalog.Create(ctx, domain.CreateProductRequest{
		Name:            "Reusable Bottle",
		Price:           decimal.RequireFromString("24.00"),
		InitialQuantity: 8,
	})
	require.NoError(t, err)

	byCode, err := f.catalog.Lookup(ctx, "reusable-bottle")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byCode.ID)

	listed, err := f.catalog.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	_, err = f.catalog.Get(ctx, 987654321)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}
