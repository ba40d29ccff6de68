package events

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrInvalidType      = errors.New("invalid_event_type")
	ErrInvalidDedupeKey = errors.New("invalid_dedupe_key")
)

type OutboxParams struct {
	fx.In

	Log   *zap.Logger
	GenID *snowflake.Node
}

// Outbox persists events inside the caller's transaction so the event is
// durable exactly when the state change it describes is.
type Outbox struct {
	log   *zap.Logger
	genID *snowflake.Node
}

func NewOutbox(p OutboxParams) *Outbox {
	return &Outbox{
		log:   p.Log.Named("events.outbox"),
		genID: p.GenID,
	}
}

// PublishTx inserts the event in tx. A duplicate dedupe key is a no-op.
func (o *Outbox) PublishTx(ctx context.Context, tx *gorm.DB, evt Event) error {
	eventType := strings.TrimSpace(string(evt.Type))
	if eventType == "" {
		return ErrInvalidType
	}
	dedupeKey := strings.TrimSpace(evt.DedupeKey)
	if dedupeKey == "" {
		return ErrInvalidDedupeKey
	}

	row := OutboxEvent{
		ID:        o.genID.Generate(),
		Type:      eventType,
		DedupeKey: dedupeKey,
		CreatedAt: time.Now().UTC(),
	}
	if evt.Payload != nil {
		row.Payload = datatypes.JSONMap(evt.Payload)
	}

	// clause.OnConflict keeps the duplicate-key no-op portable across the
	// postgres/mysql/sqlite dialects.
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "dedupe_key"}},
			DoNothing: true,
		}).
		Create(&row).Error
}
