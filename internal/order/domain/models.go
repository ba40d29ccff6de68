package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusPreparing Status = "PREPARING"
	StatusShipped   Status = "SHIPPED"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

// transitions is the full legality map. Absent source states (DELIVERED,
// CANCELLED) are terminal.
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusPreparing, StatusShipped, StatusCancelled},
	StatusPreparing: {StatusShipped},
	StatusShipped:   {StatusDelivered},
}

func (s Status) CanTransitionTo(target Status) bool {
	for _, next := range transitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

type Order struct {
	ID              snowflake.ID    `gorm:"primaryKey"`
	OrderNumber     string          `gorm:"uniqueIndex:ux_orders_number;size:26;not null"`
	CustomerID      string          `gorm:"size:120;not null;index:ix_orders_customer"`
	Status          Status          `gorm:"size:20;not null"`
	Subtotal        decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Discount        decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Tax             decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	ShippingCost    decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Total           decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	ShippingAddress string          `gorm:"type:text;not null"`
	PaymentMethod   string          `gorm:"size:40;not null"`
	PaymentRef      string          `gorm:"size:64"`
	TrackingNumber  *string         `gorm:"size:64"`
	Carrier         *string         `gorm:"size:64"`
	CancelReason    *string         `gorm:"type:text"`
	DeliveredAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time

	LineItems []LineItem `gorm:"foreignKey:OrderID"`
}

func (Order) TableName() string {
	return "orders"
}

type LineItem struct {
	ID           snowflake.ID    `gorm:"primaryKey"`
	OrderID      snowflake.ID    `gorm:"not null;index:ix_order_line_items_order"`
	ProductID    snowflake.ID    `gorm:"not null"`
	Quantity     int             `gorm:"not null"`
	UnitPrice    decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	UnitDiscount decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	LineSubtotal decimal.Decimal `gorm:"type:numeric(12,2);not null"`
}

func (LineItem) TableName() string {
	return "order_line_items"
}
