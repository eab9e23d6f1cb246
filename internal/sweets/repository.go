package sweets

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sweetshop/sweetshop-backend/pkg/db/models"
	"github.com/sweetshop/sweetshop-backend/pkg/enums"
	"github.com/sweetshop/sweetshop-backend/pkg/pagination"
)

// Repository persists sweets through GORM.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// listQuery is the resolved filter set for a listing.
type listQuery struct {
	nameContains string
	category     *enums.SweetCategory
	minPrice     *decimal.Decimal
	maxPrice     *decimal.Decimal
}

func (r *Repository) Create(ctx context.Context, sweet *models.Sweet) error {
	return r.db.WithContext(ctx).Create(sweet).Error
}

// FindByID loads a sweet or returns gorm.ErrRecordNotFound.
func (r *Repository) FindByID(ctx context.Context, id int64) (*models.Sweet, error) {
	var sweet models.Sweet
	if err := r.db.WithContext(ctx).First(&sweet, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &sweet, nil
}

// FindByIDForUpdate loads a sweet and holds a row lock until the surrounding
// transaction ends. Must be called on a repository bound with WithTx.
func (r *Repository) FindByIDForUpdate(ctx context.Context, id int64) (*models.Sweet, error) {
	q := r.db.WithContext(ctx)
	// sqlite has no row locks; its single-connection pool serializes transactions.
	if q.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var sweet models.Sweet
	if err := q.First(&sweet, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &sweet, nil
}

// NameTaken reports whether another sweet already uses name. excludeID of 0
// checks every row.
func (r *Repository) NameTaken(ctx context.Context, name string, excludeID int64) (bool, error) {
	q := r.db.WithContext(ctx).Model(&models.Sweet{}).Where("name = ?", name)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// List returns one page ordered newest first plus the total match count.
func (r *Repository) List(ctx context.Context, q listQuery, page pagination.Params) ([]models.Sweet, int64, error) {
	base := r.db.WithContext(ctx).Model(&models.Sweet{})
	if q.nameContains != "" {
		base = base.Where("LOWER(name) LIKE ? ESCAPE '\\'", "%"+escapeLike(strings.ToLower(q.nameContains))+"%")
	}
	if q.category != nil {
		base = base.Where("category = ?", string(*q.category))
	}
	if q.minPrice != nil {
		base = base.Where("price >= ?", *q.minPrice)
	}
	if q.maxPrice != nil {
		base = base.Where("price <= ?", *q.maxPrice)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []models.Sweet{}, 0, nil
	}

	page = page.Normalize()
	var rows []models.Sweet
	err := base.Session(&gorm.Session{}).
		Order("created_at DESC").
		Order("id DESC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// Update applies the column updates to a single row.
func (r *Repository) Update(ctx context.Context, id int64, updates map[string]any) error {
	return r.db.WithContext(ctx).Model(&models.Sweet{}).Where("id = ?", id).Updates(updates).Error
}

// Delete removes the row and returns how many rows were affected.
func (r *Repository) Delete(ctx context.Context, id int64) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&models.Sweet{}, "id = ?", id)
	return res.RowsAffected, res.Error
}

// DecrementIfAvailable removes qty units only when at least qty are on hand.
// It reports false when the guard rejected the write.
func (r *Repository) DecrementIfAvailable(ctx context.Context, id int64, qty int, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Exec(
		"UPDATE sweets SET quantity = quantity - ?, updated_at = ? WHERE id = ? AND quantity >= ?",
		qty, now, id, qty,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Increment adds qty units and reports whether the row existed.
func (r *Repository) Increment(ctx context.Context, id int64, qty int, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Exec(
		"UPDATE sweets SET quantity = quantity + ?, updated_at = ? WHERE id = ?",
		qty, now, id,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
