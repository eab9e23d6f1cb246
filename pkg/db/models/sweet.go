package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sweetshop/sweetshop-backend/pkg/enums"
)

// Sweet is a catalog item and its on-hand stock.
type Sweet struct {
	ID          int64               `gorm:"column:id;primaryKey;autoIncrement"`
	Name        string              `gorm:"column:name;not null;uniqueIndex:sweets_name_key"`
	Category    enums.SweetCategory `gorm:"column:category;type:text;not null"`
	Price       decimal.Decimal     `gorm:"column:price;type:numeric(10,2);not null;check:sweets_price_check,price >= 0"`
	Quantity    int                 `gorm:"column:quantity;not null;default:0;check:sweets_quantity_check,quantity >= 0"`
	Description *string             `gorm:"column:description"`
	ImageURL    *string             `gorm:"column:image_url"`
	CreatedAt   time.Time           `gorm:"column:created_at;not null;index:sweets_created_at_idx"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;not null"`
}

func (Sweet) TableName() string {
	return "sweets"
}
