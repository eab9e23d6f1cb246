package sweets

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sweetshop/sweetshop-backend/pkg/db"
	"github.com/sweetshop/sweetshop-backend/pkg/db/models"
	"github.com/sweetshop/sweetshop-backend/pkg/enums"
	pkgerrors "github.com/sweetshop/sweetshop-backend/pkg/errors"
	"github.com/sweetshop/sweetshop-backend/pkg/logger"
	"github.com/sweetshop/sweetshop-backend/pkg/metrics"
	"github.com/sweetshop/sweetshop-backend/pkg/pagination"
)

const (
	minNameLength        = 2
	maxDescriptionLength = 500
)

// maxQuantity is the largest value the integer quantity column can hold.
const maxQuantity = math.MaxInt32

// maxPrice is the largest value numeric(10,2) can hold.
var maxPrice = decimal.RequireFromString("99999999.99")

const (
	opCreate   = "create"
	opUpdate   = "update"
	opDelete   = "delete"
	opPurchase = "purchase"
	opRestock  = "restock"
)

// Service is the inventory ledger for the sweet catalog.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*SweetDTO, error)
	Get(ctx context.Context, id int64) (*SweetDTO, error)
	List(ctx context.Context, page pagination.Params) (*ListResult, error)
	Search(ctx context.Context, filters SearchFilters, page pagination.Params) (*ListResult, error)
	Update(ctx context.Context, id int64, patch UpdateInput) (*SweetDTO, error)
	Delete(ctx context.Context, id int64) error
	Purchase(ctx context.Context, id int64, qty int) (*PurchaseResult, error)
	Restock(ctx context.Context, id int64, qty int) (*RestockResult, error)
}

// ServiceParams groups the ledger dependencies.
type ServiceParams struct {
	Repo    *Repository
	DB      *db.Client
	Logger  *logger.Logger
	Metrics *metrics.InventoryMetrics
	Clock   func() time.Time
}

type service struct {
	repo    *Repository
	db      *db.Client
	logg    *logger.Logger
	metrics *metrics.InventoryMetrics
	now     func() time.Time
}

// NewService constructs the ledger.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("sweets repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repo:    params.Repo,
		db:      params.DB,
		logg:    params.Logger,
		metrics: params.Metrics,
		now:     func() time.Time { return clock().UTC() },
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*SweetDTO, error) {
	name, err := validateName(input.Name)
	if err != nil {
		return nil, err
	}
	if !input.Category.IsValid() {
		return nil, errValidation("category", fmt.Sprintf("invalid category %q", input.Category))
	}
	price, err := validatePrice(input.Price)
	if err != nil {
		return nil, err
	}
	if err := validateQuantity(input.Quantity); err != nil {
		return nil, err
	}
	if err := validateDescription(input.Description); err != nil {
		return nil, err
	}

	now := s.now()
	sweet := &models.Sweet{
		Name:        name,
		Category:    input.Category,
		Price:       price,
		Quantity:    input.Quantity,
		Description: blankToNil(input.Description),
		ImageURL:    blankToNil(input.ImageURL),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		taken, err := repo.NameTaken(ctx, name, 0)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check sweet name")
		}
		if taken {
			return errDuplicateName(name)
		}
		if err := repo.Create(ctx, sweet); err != nil {
			if db.IsUniqueViolation(err, "") {
				return errDuplicateName(name)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create sweet")
		}
		return nil
	})
	if err != nil {
		s.observe(opCreate, err)
		return nil, err
	}

	s.observe(opCreate, nil)
	s.logg.Info(s.logg.WithSweetID(ctx, sweet.ID), "sweet.created")
	dto := toDTO(sweet)
	return &dto, nil
}

func (s *service) Get(ctx context.Context, id int64) (*SweetDTO, error) {
	sweet, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupErr(err, id)
	}
	dto := toDTO(sweet)
	return &dto, nil
}

func (s *service) List(ctx context.Context, page pagination.Params) (*ListResult, error) {
	return s.list(ctx, listQuery{}, page)
}

func (s *service) Search(ctx context.Context, filters SearchFilters, page pagination.Params) (*ListResult, error) {
	q := listQuery{
		nameContains: strings.TrimSpace(filters.Name),
		minPrice:     filters.MinPrice,
		maxPrice:     filters.MaxPrice,
	}
	if raw := strings.TrimSpace(filters.Category); raw != "" {
		category, err := enums.ParseSweetCategory(raw)
		if err != nil {
			return emptyPage(page), nil
		}
		q.category = &category
	}
	return s.list(ctx, q, page)
}

func (s *service) list(ctx context.Context, q listQuery, page pagination.Params) (*ListResult, error) {
	page = page.Normalize()
	rows, total, err := s.repo.List(ctx, q, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list sweets")
	}
	return &ListResult{
		Sweets:     toDTOs(rows),
		Pagination: pagination.Describe(page, total),
	}, nil
}

func (s *service) Update(ctx context.Context, id int64, patch UpdateInput) (*SweetDTO, error) {
	updates := map[string]any{}

	name, renaming := patch.Name.Get()
	if renaming {
		trimmed, err := validateName(name)
		if err != nil {
			return nil, err
		}
		name = trimmed
	}
	if category, ok := patch.Category.Get(); ok {
		if !category.IsValid() {
			return nil, errValidation("category", fmt.Sprintf("invalid category %q", category))
		}
		updates["category"] = category
	}
	if price, ok := patch.Price.Get(); ok {
		normalized, err := validatePrice(price)
		if err != nil {
			return nil, err
		}
		updates["price"] = normalized
	}
	if qty, ok := patch.Quantity.Get(); ok {
		if err := validateQuantity(qty); err != nil {
			return nil, err
		}
		updates["quantity"] = qty
	}
	if desc, ok := patch.Description.Get(); ok {
		if err := validateDescription(&desc); err != nil {
			return nil, err
		}
		updates["description"] = blankToNil(&desc)
	}
	if url, ok := patch.ImageURL.Get(); ok {
		updates["image_url"] = blankToNil(&url)
	}

	var updated *models.Sweet
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return mapLookupErr(err, id)
		}

		if renaming && name != current.Name {
			taken, err := repo.NameTaken(ctx, name, id)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check sweet name")
			}
			if taken {
				return errDuplicateName(name)
			}
			updates["name"] = name
		}

		updates["updated_at"] = s.now()
		if err := repo.Update(ctx, id, updates); err != nil {
			if db.IsUniqueViolation(err, "") {
				return errDuplicateName(name)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update sweet")
		}

		updated, err = repo.FindByID(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload sweet")
		}
		return nil
	})
	if err != nil {
		s.observe(opUpdate, err)
		return nil, err
	}

	s.observe(opUpdate, nil)
	s.logg.Info(s.logg.WithSweetID(ctx, id), "sweet.updated")
	dto := toDTO(updated)
	return &dto, nil
}

func (s *service) Delete(ctx context.Context, id int64) error {
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindByIDForUpdate(ctx, id); err != nil {
			return mapLookupErr(err, id)
		}
		affected, err := repo.Delete(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete sweet")
		}
		if affected == 0 {
			return errNotFound(id)
		}
		return nil
	})
	s.observe(opDelete, err)
	if err != nil {
		return err
	}
	s.logg.Info(s.logg.WithSweetID(ctx, id), "sweet.deleted")
	return nil
}

// Purchase checks quantity validity, then existence, then stock. The guarded
// decrement keeps quantity non-negative even if the row lock is unavailable.
func (s *service) Purchase(ctx context.Context, id int64, qty int) (*PurchaseResult, error) {
	if qty < 1 {
		err := errInvalidQuantity(qty)
		s.observe(opPurchase, err)
		return nil, err
	}

	var updated *models.Sweet
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return mapLookupErr(err, id)
		}
		if current.Quantity < qty {
			return errInsufficientStock(current.Quantity)
		}

		ok, err := repo.DecrementIfAvailable(ctx, id, qty, s.now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
		}
		if !ok {
			fresh, err := repo.FindByID(ctx, id)
			if err != nil {
				return mapLookupErr(err, id)
			}
			return errInsufficientStock(fresh.Quantity)
		}

		updated, err = repo.FindByID(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload sweet")
		}
		return nil
	})

	logCtx := s.logg.WithFields(ctx, map[string]any{"sweet_id": id, "quantity": qty})
	if err != nil {
		s.observe(opPurchase, err)
		if available, ok := AsInsufficientStock(err); ok {
			s.logg.Warn(s.logg.WithField(logCtx, "available", available), "sweet.purchase.rejected")
		}
		return nil, err
	}

	s.observe(opPurchase, nil)
	s.metrics.AddUnits(opPurchase, qty)
	s.logg.Info(s.logg.WithField(logCtx, "remaining", updated.Quantity), "sweet.purchased")
	return &PurchaseResult{Sweet: toDTO(updated), Purchased: qty}, nil
}

func (s *service) Restock(ctx context.Context, id int64, qty int) (*RestockResult, error) {
	if qty < 1 {
		err := errInvalidQuantity(qty)
		s.observe(opRestock, err)
		return nil, err
	}

	var updated *models.Sweet
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return mapLookupErr(err, id)
		}
		if qty > maxQuantity-current.Quantity {
			return errQuantityOverflow(current.Quantity)
		}
		ok, err := repo.Increment(ctx, id, qty, s.now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment stock")
		}
		if !ok {
			return errNotFound(id)
		}
		updated, err = repo.FindByID(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload sweet")
		}
		return nil
	})
	if err != nil {
		s.observe(opRestock, err)
		return nil, err
	}

	s.observe(opRestock, nil)
	s.metrics.AddUnits(opRestock, qty)
	logCtx := s.logg.WithFields(ctx, map[string]any{"sweet_id": id, "quantity": qty, "on_hand": updated.Quantity})
	s.logg.Info(logCtx, "sweet.restocked")
	return &RestockResult{Sweet: toDTO(updated), Added: qty}, nil
}

func (s *service) observe(op string, err error) {
	switch {
	case err == nil:
		s.metrics.Observe(op, metrics.OutcomeSuccess)
	case pkgerrors.CodeOf(err) == pkgerrors.CodeDependency || pkgerrors.CodeOf(err) == pkgerrors.CodeInternal:
		s.metrics.Observe(op, metrics.OutcomeError)
	default:
		s.metrics.Observe(op, metrics.OutcomeRejected)
	}
}

func mapLookupErr(err error, id int64) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errNotFound(id)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sweet")
}

func emptyPage(page pagination.Params) *ListResult {
	return &ListResult{
		Sweets:     []SweetDTO{},
		Pagination: pagination.Describe(page, 0),
	}
}

func validateName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if utf8.RuneCountInString(name) < minNameLength {
		return "", errValidation("name", fmt.Sprintf("name must be at least %d characters", minNameLength))
	}
	return name, nil
}

func validatePrice(price decimal.Decimal) (decimal.Decimal, error) {
	if price.IsNegative() {
		return decimal.Zero, errValidation("price", "price cannot be negative")
	}
	rounded := price.Round(2)
	if rounded.GreaterThan(maxPrice) {
		return decimal.Zero, errValidation("price", "price is too large")
	}
	return rounded, nil
}

func validateQuantity(qty int) error {
	switch {
	case qty < 0:
		return errValidation("quantity", "quantity cannot be negative")
	case qty > maxQuantity:
		return errValidation("quantity", fmt.Sprintf("quantity cannot exceed %d", maxQuantity))
	}
	return nil
}

func validateDescription(desc *string) error {
	if desc != nil && utf8.RuneCountInString(*desc) > maxDescriptionLength {
		return errValidation("description", fmt.Sprintf("description cannot exceed %d characters", maxDescriptionLength))
	}
	return nil
}

func blankToNil(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
