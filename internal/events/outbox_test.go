package events

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	sqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&OutboxEvent{}))
	return db
}

func newTestOutbox(t *testing.T) *Outbox {
	t.Helper()
	node, err := snowflake.NewNode(4)
	require.NoError(t, err)
	return NewOutbox(OutboxParams{Log: zap.NewNop(), GenID: node})
}

func publish(t *testing.T, db *gorm.DB, outbox *Outbox, evt Event) {
	t.Helper()
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return outbox.PublishTx(context.Background(), tx, evt)
	}))
}

func TestPublishTx(t *testing.T) {
	db := newTestDB(t)
	outbox := newTestOutbox(t)

	publish(t, db, outbox, Event{
		Type:      TypeStockChanged,
		Payload:   map[string]any{"product_id": "42"},
		DedupeKey: "stock_changed:1",
	})

	var rows []OutboxEvent
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, string(TypeStockChanged), rows[0].Type)
	assert.Equal(t, "42", rows[0].Payload["product_id"])
	assert.Nil(t, rows[0].PublishedAt)
}

func TestPublishTxDeduplicates(t *testing.T) {
	db := newTestDB(t)
	outbox := newTestOutbox(t)

	evt := Event{Type: TypeOrderCreated, DedupeKey: "order_created:7"}
	publish(t, db, outbox, evt)
	publish(t, db, outbox, evt)

	var count int64
	require.NoError(t, db.Model(&OutboxEvent{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestPublishTxValidation(t *testing.T) {
	db := newTestDB(t)
	outbox := newTestOutbox(t)
	ctx := context.Background()

	err := outbox.PublishTx(ctx, db, Event{DedupeKey: "k"})
	assert.ErrorIs(t, err, ErrInvalidType)

	err = outbox.PublishTx(ctx, db, Event{Type: TypeOrderCreated})
	assert.ErrorIs(t, err, ErrInvalidDedupeKey)
}

func TestDispatchPending(t *testing.T) {
	db := newTestDB(t)
	outbox := newTestOutbox(t)
	dispatcher := NewDispatcher(DispatcherParams{DB: db, Log: zap.NewNop()})

	publish(t, db, outbox, Event{Type: TypeStockChanged, DedupeKey: "a"})
	publish(t, db, outbox, Event{Type: TypeOrderCreated, DedupeKey: "b"})

	var delivered []string
	dispatcher.Subscribe(func(ctx context.Context, evt OutboxEvent) error {
		delivered = append(delivered, evt.DedupeKey)
		return nil
	})

	require.NoError(t, dispatcher.DispatchPending(context.Background()))
	assert.Equal(t, []string{"a", "b"}, delivered)

	var unpublished int64
	require.NoError(t, db.Model(&OutboxEvent{}).
		Where("published_at IS NULL").
		Count(&unpublished).Error)
	assert.EqualValues(t, 0, unpublished)

	// Already published rows are not redelivered.
	require.NoError(t, dispatcher.DispatchPending(context.Background()))
	assert.Len(t, delivered, 2)
}

func TestDispatchRetriesFailedHandler(t *testing.T) {
	db := newTestDB(t)
	outbox := newTestOutbox(t)
	dispatcher := NewDispatcher(DispatcherParams{DB: db, Log: zap.NewNop()})

	publish(t, db, outbox, Event{Type: TypeStockChanged, DedupeKey: "flaky"})

	attempts := 0
	dispatcher.Subscribe(func(ctx context.Context, evt OutboxEvent) error {
		attempts++
		if attempts == 1 {
			return errors.New("downstream unavailable")
		}
		return nil
	})

	require.NoError(t, dispatcher.DispatchPending(context.Background()))
	var unpublished int64
	require.NoError(t, db.Model(&OutboxEvent{}).
		Where("published_at IS NULL").
		Count(&unpublished).Error)
	assert.EqualValues(t, 1, unpublished, "failed delivery stays pending")

	require.NoError(t, dispatcher.DispatchPending(context.Background()))
	require.NoError(t, db.Model(&OutboxEvent{}).
		Where("published_at IS NULL").
		Count(&unpublished).Error)
	assert.EqualValues(t, 0, unpublished)
	assert.Equal(t, 2, attempts)
}
