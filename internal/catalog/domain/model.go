package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Product struct {
	ID          snowflake.ID      `gorm:"primaryKey"`
	Code        string            `gorm:"uniqueIndex:ux_products_code;size:120;not null"`
	Name        string            `gorm:"size:255;not null"`
	Description string            `gorm:"type:text"`
	Price       decimal.Decimal   `gorm:"type:numeric(12,2);not null"`
	Active      bool              `gorm:"not null;default:true"`
	Metadata    datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (Product) TableName() string {
	return "products"
}
