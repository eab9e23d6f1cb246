package controllers

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sweetshop/sweetshop-backend/api/responses"
	"github.com/sweetshop/sweetshop-backend/api/validators"
	"github.com/sweetshop/sweetshop-backend/internal/sweets"
	"github.com/sweetshop/sweetshop-backend/pkg/config"
	"github.com/sweetshop/sweetshop-backend/pkg/enums"
	pkgerrors "github.com/sweetshop/sweetshop-backend/pkg/errors"
	"github.com/sweetshop/sweetshop-backend/pkg/logger"
	"github.com/sweetshop/sweetshop-backend/pkg/pagination"
)

const maxSearchNameLength = 100

type createSweetRequest struct {
	Name        string           `json:"name" validate:"required"`
	Category    string           `json:"category" validate:"required"`
	Price       *decimal.Decimal `json:"price" validate:"required"`
	Quantity    *int             `json:"quantity,omitempty"`
	Description *string          `json:"description,omitempty"`
	ImageURL    *string          `json:"imageUrl,omitempty"`
}

func (r createSweetRequest) toInput() (sweets.CreateInput, error) {
	category, err := parseCategory(r.Category)
	if err != nil {
		return sweets.CreateInput{}, err
	}
	input := sweets.CreateInput{
		Name:        r.Name,
		Category:    category,
		Price:       *r.Price,
		Description: r.Description,
		ImageURL:    r.ImageURL,
	}
	if r.Quantity != nil {
		input.Quantity = *r.Quantity
	}
	return input, nil
}

type updateSweetRequest struct {
	Name        *string          `json:"name,omitempty"`
	Category    *string          `json:"category,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Quantity    *int             `json:"quantity,omitempty"`
	Description *string          `json:"description,omitempty"`
	ImageURL    *string          `json:"imageUrl,omitempty"`
}

func (r updateSweetRequest) toInput() (sweets.UpdateInput, error) {
	patch := sweets.UpdateInput{
		Name:        sweets.FromPtr(r.Name),
		Price:       sweets.FromPtr(r.Price),
		Quantity:    sweets.FromPtr(r.Quantity),
		Description: sweets.FromPtr(r.Description),
		ImageURL:    sweets.FromPtr(r.ImageURL),
	}
	if r.Category != nil {
		category, err := parseCategory(*r.Category)
		if err != nil {
			return sweets.UpdateInput{}, err
		}
		patch.Category = sweets.Some(category)
	}
	return patch, nil
}

type stockRequest struct {
	Quantity *int `json:"quantity,omitempty"`
}

type deleteSweetResponse struct {
	ID      int64  `json:"id"`
	Message string `json:"message"`
}

func parseCategory(raw string) (enums.SweetCategory, error) {
	category, err := enums.ParseSweetCategory(raw)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category").
			WithDetails(map[string]any{"field": "category", "allowed": enums.SweetCategories()})
	}
	return category, nil
}

func parsePage(r *http.Request, cfg config.PaginationConfig) (pagination.Params, error) {
	defaultLimit := cfg.DefaultLimit
	if defaultLimit <= 0 {
		defaultLimit = pagination.DefaultLimit
	}
	maxLimit := cfg.MaxLimit
	if maxLimit <= 0 || maxLimit > pagination.MaxLimit {
		maxLimit = pagination.MaxLimit
	}
	page, err := validators.ParseQueryInt(r, "page", pagination.DefaultPage, 1, pagination.MaxPage)
	if err != nil {
		return pagination.Params{}, err
	}
	limit, err := validators.ParseQueryInt(r, "limit", defaultLimit, 1, maxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{Page: page, Limit: limit}, nil
}

func sweetsUnavailable() error {
	return pkgerrors.New(pkgerrors.CodeInternal, "sweets service unavailable")
}

// CreateSweet adds a catalog item.
func CreateSweet(svc sweets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, sweetsUnavailable())
			return
		}

		var payload createSweetRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sweet, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, sweet)
	}
}

// ListSweets returns a page of the catalog, newest first.
func ListSweets(svc sweets.Service, cfg config.PaginationConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, sweetsUnavailable())
			return
		}

		page, err := parsePage(r, cfg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// SearchSweets filters the catalog by name, category and price range.
func SearchSweets(svc sweets.Service, cfg config.PaginationConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, sweetsUnavailable())
			return
		}

		page, err := parsePage(r, cfg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		minPrice, err := validators.ParseQueryDecimal(r, "minPrice")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		maxPrice, err := validators.ParseQueryDecimal(r, "maxPrice")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		name, err := validators.ParseQueryText(r, "name", maxSearchNameLength)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filters := sweets.SearchFilters{
			Name:     name,
			Category: strings.TrimSpace(r.URL.Query().Get("category")),
			MinPrice: minPrice,
			MaxPrice: maxPrice,
		}

		result, err := svc.Search(r.Context(), filters, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// GetSweet returns one item by id.
func GetSweet(svc sweets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, sweetsUnavailable())
			return
		}

		id, err := validators.ParseIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sweet, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sweet)
	}
}

// UpdateSweet applies a partial patch.
func UpdateSweet(svc sweets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, sweetsUnavailable())
			return
		}

		id, err := validators.ParseIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateSweetRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		patch, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithSweetID(ctx, id)
		}
		sweet, err := svc.Update(ctx, id, patch)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, sweet)
	}
}

// DeleteSweet removes an item permanently.
func DeleteSweet(svc sweets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, sweetsUnavailable())
			return
		}

		id, err := validators.ParseIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithSweetID(ctx, id)
		}
		if err := svc.Delete(ctx, id); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, deleteSweetResponse{ID: id, Message: "sweet deleted"})
	}
}

// PurchaseSweet decrements stock. A missing body or quantity buys one unit.
func PurchaseSweet(svc sweets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, sweetsUnavailable())
			return
		}

		id, err := validators.ParseIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload stockRequest
		if err := validators.DecodeOptionalJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		qty := 1
		if payload.Quantity != nil {
			qty = *payload.Quantity
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithSweetID(ctx, id)
		}
		result, err := svc.Purchase(ctx, id, qty)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// RestockSweet increments stock. The quantity is required.
func RestockSweet(svc sweets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, sweetsUnavailable())
			return
		}

		id, err := validators.ParseIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload stockRequest
		if err := validators.DecodeOptionalJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		qty := 0
		if payload.Quantity != nil {
			qty = *payload.Quantity
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithSweetID(ctx, id)
		}
		result, err := svc.Restock(ctx, id, qty)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
