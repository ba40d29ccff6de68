package events

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Type identifies an emitted domain event.
type Type string

const (
	TypeOrderCreated      Type = "order.created"
	TypeOrderStateChanged Type = "order.state_changed"
	TypeStockChanged      Type = "stock.changed"
)

// Event is the publish request; the dedupe key makes re-publication a no-op.
type Event struct {
	Type      Type
	Payload   map[string]any
	DedupeKey string
}

// OutboxEvent is the persisted row consumed by the dispatcher.
type OutboxEvent struct {
	ID          snowflake.ID      `gorm:"primaryKey"`
	Type        string            `gorm:"type:text;not null;index"`
	Payload     datatypes.JSONMap `gorm:"type:jsonb"`
	DedupeKey   string            `gorm:"type:text;not null;uniqueIndex:ux_outbox_events_dedupe"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	PublishedAt *time.Time        `gorm:"index"`
}

// TableName sets the database table name.
func (OutboxEvent) TableName() string { return "outbox_events" }
