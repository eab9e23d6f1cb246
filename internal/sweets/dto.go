package sweets

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sweetshop/sweetshop-backend/pkg/db/models"
	"github.com/sweetshop/sweetshop-backend/pkg/enums"
	"github.com/sweetshop/sweetshop-backend/pkg/types"
)

// SweetDTO is the public representation of a catalog item.
type SweetDTO struct {
	ID          int64               `json:"id"`
	Name        string              `json:"name"`
	Category    enums.SweetCategory `json:"category"`
	Price       json.Number         `json:"price"`
	Quantity    int                 `json:"quantity"`
	Description *string             `json:"description,omitempty"`
	ImageURL    *string             `json:"imageUrl,omitempty"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

// PriceDecimal returns the price as a decimal.
func (d SweetDTO) PriceDecimal() decimal.Decimal {
	return decimal.RequireFromString(d.Price.String())
}

// PurchaseResult is returned by a successful purchase.
type PurchaseResult struct {
	Sweet     SweetDTO `json:"sweet"`
	Purchased int      `json:"purchased"`
}

// RestockResult is returned by a successful restock.
type RestockResult struct {
	Sweet SweetDTO `json:"sweet"`
	Added int      `json:"added"`
}

// ListResult is one page of sweets.
type ListResult struct {
	Sweets     []SweetDTO       `json:"sweets"`
	Pagination types.Pagination `json:"pagination"`
}

// CreateInput holds the fields accepted when adding a sweet.
type CreateInput struct {
	Name        string
	Category    enums.SweetCategory
	Price       decimal.Decimal
	Quantity    int
	Description *string
	ImageURL    *string
}

// UpdateInput is a partial patch. Unset fields are left untouched. An empty
// description or image URL clears the stored value.
type UpdateInput struct {
	Name        Optional[string]
	Category    Optional[enums.SweetCategory]
	Price       Optional[decimal.Decimal]
	Quantity    Optional[int]
	Description Optional[string]
	ImageURL    Optional[string]
}

// SearchFilters narrows a listing. Category is the raw caller input; an
// unknown category matches nothing.
type SearchFilters struct {
	Name     string
	Category string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
}

func toDTO(m *models.Sweet) SweetDTO {
	return SweetDTO{
		ID:          m.ID,
		Name:        m.Name,
		Category:    m.Category,
		Price:       json.Number(m.Price.StringFixed(2)),
		Quantity:    m.Quantity,
		Description: m.Description,
		ImageURL:    m.ImageURL,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func toDTOs(rows []models.Sweet) []SweetDTO {
	out := make([]SweetDTO, 0, len(rows))
	for i := range rows {
		out = append(out, toDTO(&rows[i]))
	}
	return out
}
