package sweets

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweetshop/sweetshop-backend/pkg/enums"
	pkgerrors "github.com/sweetshop/sweetshop-backend/pkg/errors"
	"github.com/sweetshop/sweetshop-backend/pkg/pagination"
)

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}

func TestCreateAssignsIDAndTimestamps(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	input := newCreateInput("  Kaju Katli ", enums.SweetCategoryBarfi, "12.5", 0)
	input.Description = strPtr("Cashew fudge")
	sweet, err := l.svc.Create(ctx, input)
	require.NoError(t, err)

	assert.NotZero(t, sweet.ID)
	assert.Equal(t, "Kaju Katli", sweet.Name)
	assert.Equal(t, enums.SweetCategoryBarfi, sweet.Category)
	assert.Equal(t, "12.50", sweet.Price.String())
	assert.Equal(t, 0, sweet.Quantity)
	require.NotNil(t, sweet.Description)
	assert.Equal(t, "Cashew fudge", *sweet.Description)
	assert.Nil(t, sweet.ImageURL)
	assert.False(t, sweet.CreatedAt.IsZero())
	assert.Equal(t, sweet.CreatedAt, sweet.UpdatedAt)

	other, err := l.svc.Create(ctx, newCreateInput("Kaju Roll", enums.SweetCategoryBarfi, "3", 1))
	require.NoError(t, err)
	assert.NotEqual(t, sweet.ID, other.ID)
}

func TestCreateRejectsDuplicateNameCaseSensitive(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	_, err := l.svc.Create(ctx, newCreateInput("Jalebi", enums.SweetCategoryJalebi, "2", 5))
	require.NoError(t, err)

	_, err = l.svc.Create(ctx, newCreateInput("Jalebi", enums.SweetCategoryJalebi, "3", 1))
	require.True(t, IsDuplicateName(err), "got %v", err)

	_, err = l.svc.Create(ctx, newCreateInput("jalebi", enums.SweetCategoryJalebi, "3", 1))
	require.NoError(t, err)
}

func TestCreateValidation(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input CreateInput
	}{
		{name: "short name", input: newCreateInput(" a ", enums.SweetCategoryCake, "1", 0)},
		{name: "unknown category", input: newCreateInput("Mystery", "Sweetmeat", "1", 0)},
		{name: "negative price", input: newCreateInput("Cheap", enums.SweetCategoryCake, "-0.01", 0)},
		{name: "price overflow", input: newCreateInput("Pricey", enums.SweetCategoryCake, "100000000", 0)},
		{name: "negative quantity", input: newCreateInput("Backorder", enums.SweetCategoryCake, "1", -1)},
		{name: "long description", input: func() CreateInput {
			in := newCreateInput("Wordy", enums.SweetCategoryCake, "1", 0)
			in.Description = strPtr(strings.Repeat("x", 501))
			return in
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.svc.Create(ctx, tt.input)
			require.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err), "got %v", err)
		})
	}
}

func TestGetNotFound(t *testing.T) {
	l := newTestLedger(t)
	_, err := l.svc.Get(context.Background(), 404)
	require.True(t, IsNotFound(err))
}

func TestPurchaseDecrementsExactlyAndRefreshesUpdatedAt(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	created, err := l.svc.Create(ctx, newCreateInput("Rasgulla", enums.SweetCategoryRasgulla, "4.25", 8))
	require.NoError(t, err)

	res, err := l.svc.Purchase(ctx, created.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Purchased)
	assert.Equal(t, 5, res.Sweet.Quantity)
	assert.True(t, res.Sweet.UpdatedAt.After(created.UpdatedAt))
	assert.True(t, created.CreatedAt.Equal(res.Sweet.CreatedAt))
	assert.Equal(t, 5, l.storedQuantity(t, created.ID))

	res, err = l.svc.Purchase(ctx, created.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Sweet.Quantity)
}

func TestPurchaseInsufficientStockLeavesStateUnchanged(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	created, err := l.svc.Create(ctx, newCreateInput("Peda", enums.SweetCategoryPeda, "1.10", 4))
	require.NoError(t, err)

	_, err = l.svc.Purchase(ctx, created.ID, 5)
	available, ok := AsInsufficientStock(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, 4, available)

	got, err := l.svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Quantity)
	assert.True(t, created.UpdatedAt.Equal(got.UpdatedAt), "rejected purchase must not touch updatedAt")
}

func TestPurchaseAndRestockCheckOrder(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	created, err := l.svc.Create(ctx, newCreateInput("Kheer", enums.SweetCategoryKheer, "3", 2))
	require.NoError(t, err)

	for _, qty := range []int{0, -3} {
		_, err = l.svc.Purchase(ctx, 999, qty)
		assert.True(t, IsInvalidQuantity(err), "missing id with qty %d: %v", qty, err)

		_, err = l.svc.Purchase(ctx, created.ID, qty)
		assert.True(t, IsInvalidQuantity(err))

		_, err = l.svc.Restock(ctx, 999, qty)
		assert.True(t, IsInvalidQuantity(err))

		_, err = l.svc.Restock(ctx, created.ID, qty)
		assert.True(t, IsInvalidQuantity(err))
	}
	assert.Equal(t, 2, l.storedQuantity(t, created.ID))

	_, err = l.svc.Purchase(ctx, 999, 100)
	assert.True(t, IsNotFound(err), "existence is checked before stock")

	_, err = l.svc.Restock(ctx, 999, 1)
	assert.True(t, IsNotFound(err))
}

func TestRestockIncrementsExactly(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	created, err := l.svc.Create(ctx, newCreateInput("Halwa", enums.SweetCategoryHalwa, "6", 0))
	require.NoError(t, err)

	res, err := l.svc.Restock(ctx, created.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, res.Added)
	assert.Equal(t, 7, res.Sweet.Quantity)
	assert.True(t, res.Sweet.UpdatedAt.After(created.UpdatedAt))

	res, err = l.svc.Restock(ctx, created.ID, 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, 1_000_007, res.Sweet.Quantity)
}

func TestQuantityStaysWithinColumnRange(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	_, err := l.svc.Create(ctx, newCreateInput("Bulk Ladoo", enums.SweetCategoryLadoo, "1", maxQuantity+1))
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation), "got %v", err)

	created, err := l.svc.Create(ctx, newCreateInput("Bulk Ladoo", enums.SweetCategoryLadoo, "1", maxQuantity-1))
	require.NoError(t, err)

	res, err := l.svc.Restock(ctx, created.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, maxQuantity, res.Sweet.Quantity)

	_, err = l.svc.Restock(ctx, created.ID, 1)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation), "got %v", err)
	meta := pkgerrors.MetadataFor(pkgerrors.CodeOf(err))
	assert.Equal(t, http.StatusBadRequest, meta.HTTPStatus)
	assert.False(t, meta.Retryable)
	assert.Equal(t, maxQuantity, l.storedQuantity(t, created.ID))

	_, err = l.svc.Update(ctx, created.ID, UpdateInput{Quantity: Some(maxQuantity + 1)})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation), "got %v", err)
	assert.Equal(t, maxQuantity, l.storedQuantity(t, created.ID))
}

func TestUpdatePriceOnlyLeavesOtherFields(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	input := newCreateInput("Barfi Box", enums.SweetCategoryBarfi, "9.99", 11)
	input.Description = strPtr("Assorted")
	created, err := l.svc.Create(ctx, input)
	require.NoError(t, err)

	updated, err := l.svc.Update(ctx, created.ID, UpdateInput{Price: Some(decimal.RequireFromString("10.5"))})
	require.NoError(t, err)

	assert.Equal(t, "10.50", updated.Price.String())
	assert.Equal(t, created.Name, updated.Name)
	assert.Equal(t, created.Category, updated.Category)
	assert.Equal(t, created.Quantity, updated.Quantity)
	assert.Equal(t, created.Description, updated.Description)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))
}

func TestUpdateAppliesEachPresentField(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	input := newCreateInput("Laddu", enums.SweetCategoryLadoo, "1", 3)
	input.ImageURL = strPtr("http://img/laddu.png")
	created, err := l.svc.Create(ctx, input)
	require.NoError(t, err)

	updated, err := l.svc.Update(ctx, created.ID, UpdateInput{
		Name:        Some("Motichoor Ladoo"),
		Category:    Some(enums.SweetCategoryMilkSweets),
		Quantity:    Some(0),
		Description: Some("Fried gram flour pearls"),
		ImageURL:    Some(""),
	})
	require.NoError(t, err)
	assert.Equal(t, "Motichoor Ladoo", updated.Name)
	assert.Equal(t, enums.SweetCategoryMilkSweets, updated.Category)
	assert.Equal(t, 0, updated.Quantity)
	require.NotNil(t, updated.Description)
	assert.Nil(t, updated.ImageURL)

	_, err = l.svc.Update(ctx, created.ID, UpdateInput{Quantity: Some(-1)})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestUpdateRenameChecksUniqueness(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	first, err := l.svc.Create(ctx, newCreateInput("Cham Cham", enums.SweetCategoryBengaliSweets, "2", 1))
	require.NoError(t, err)
	second, err := l.svc.Create(ctx, newCreateInput("Sandesh", enums.SweetCategoryBengaliSweets, "2", 1))
	require.NoError(t, err)

	_, err = l.svc.Update(ctx, second.ID, UpdateInput{Name: Some("Cham Cham")})
	assert.True(t, IsDuplicateName(err), "got %v", err)

	same, err := l.svc.Update(ctx, first.ID, UpdateInput{Name: Some("Cham Cham")})
	require.NoError(t, err, "keeping the current name is not a collision")
	assert.Equal(t, "Cham Cham", same.Name)

	_, err = l.svc.Update(ctx, 999, UpdateInput{Name: Some("Ghost")})
	assert.True(t, IsNotFound(err))
}

func TestDeleteIsPermanent(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	created, err := l.svc.Create(ctx, newCreateInput("Soan Papdi", enums.SweetCategoryDrySweets, "4", 1))
	require.NoError(t, err)

	require.NoError(t, l.svc.Delete(ctx, created.ID))
	_, err = l.svc.Get(ctx, created.ID)
	assert.True(t, IsNotFound(err))
	assert.True(t, IsNotFound(l.svc.Delete(ctx, created.ID)))

	recreated, err := l.svc.Create(ctx, newCreateInput("Soan Papdi", enums.SweetCategoryDrySweets, "4", 1))
	require.NoError(t, err)
	assert.NotEqual(t, created.ID, recreated.ID)
}

func TestListOrdersNewestFirstAndPaginates(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	names := []string{"Alpha", "Bravo", "Charlie", "Delta", "Echo"}
	for _, n := range names {
		_, err := l.svc.Create(ctx, newCreateInput(n, enums.SweetCategoryCandy, "1", 1))
		require.NoError(t, err)
	}

	page, err := l.svc.List(ctx, pagination.Params{Page: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Sweets, 2)
	assert.Equal(t, "Echo", page.Sweets[0].Name)
	assert.Equal(t, "Delta", page.Sweets[1].Name)
	assert.EqualValues(t, 5, page.Pagination.Total)
	assert.Equal(t, 3, page.Pagination.Pages)

	last, err := l.svc.List(ctx, pagination.Params{Page: 3, Limit: 2})
	require.NoError(t, err)
	require.Len(t, last.Sweets, 1)
	assert.Equal(t, "Alpha", last.Sweets[0].Name)

	beyond, err := l.svc.List(ctx, pagination.Params{Page: 9, Limit: 2})
	require.NoError(t, err)
	assert.Empty(t, beyond.Sweets)
	assert.EqualValues(t, 5, beyond.Pagination.Total)

	defaults, err := l.svc.List(ctx, pagination.Params{})
	require.NoError(t, err)
	assert.Equal(t, 1, defaults.Pagination.Page)
	assert.Equal(t, 10, defaults.Pagination.Limit)
}

func TestSearchFilters(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	seed := []CreateInput{
		newCreateInput("Dark Chocolate Bar", enums.SweetCategoryChocolate, "4.00", 3),
		newCreateInput("Milk Chocolate", enums.SweetCategoryChocolate, "2.50", 3),
		newCreateInput("Vanilla Ice Cream", enums.SweetCategoryIceCream, "5.00", 3),
		newCreateInput("100% Cocoa", enums.SweetCategoryChocolate, "9.00", 3),
	}
	for _, in := range seed {
		_, err := l.svc.Create(ctx, in)
		require.NoError(t, err)
	}

	names := func(res *ListResult) []string {
		out := []string{}
		for _, s := range res.Sweets {
			out = append(out, s.Name)
		}
		return out
	}
	dec := func(v string) *decimal.Decimal {
		d := decimal.RequireFromString(v)
		return &d
	}

	res, err := l.svc.Search(ctx, SearchFilters{Name: "chocolate"}, pagination.Params{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Dark Chocolate Bar", "Milk Chocolate"}, names(res))

	res, err = l.svc.Search(ctx, SearchFilters{Category: "Ice Cream"}, pagination.Params{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Vanilla Ice Cream"}, names(res))

	res, err = l.svc.Search(ctx, SearchFilters{Category: "Fudge"}, pagination.Params{})
	require.NoError(t, err)
	assert.Empty(t, res.Sweets)
	assert.EqualValues(t, 0, res.Pagination.Total)

	res, err = l.svc.Search(ctx, SearchFilters{MinPrice: dec("2.50"), MaxPrice: dec("5")}, pagination.Params{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Dark Chocolate Bar", "Milk Chocolate", "Vanilla Ice Cream"}, names(res))

	res, err = l.svc.Search(ctx, SearchFilters{Name: "%"}, pagination.Params{})
	require.NoError(t, err)
	assert.Equal(t, []string{"100% Cocoa"}, names(res), "wildcards in the name filter are literal")

	res, err = l.svc.Search(ctx, SearchFilters{Name: "choc", Category: "Chocolate", MinPrice: dec("3")}, pagination.Params{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Dark Chocolate Bar"}, names(res))
}

// sqlite serialises on its single connection and skips FOR UPDATE, so this
// covers the guarded decrement. The row lock is covered by the db-tagged
// Postgres tests.
func TestConcurrentPurchasesNeverOversell(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	created, err := l.svc.Create(ctx, newCreateInput("Flash Sale Fudge", enums.SweetCategoryCandy, "1", 8))
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		results = make([]error, 2)
	)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, results[i] = l.svc.Purchase(ctx, created.ID, 5)
		}(i)
	}
	close(start)
	wg.Wait()

	successes, rejections := 0, 0
	for _, err := range results {
		if err == nil {
			successes++
			continue
		}
		available, ok := AsInsufficientStock(err)
		require.True(t, ok, "unexpected error %v", err)
		assert.Equal(t, 3, available)
		rejections++
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, rejections)
	assert.Equal(t, 3, l.storedQuantity(t, created.ID))
}

func TestLedgerScenario(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	created, err := l.svc.Create(ctx, newCreateInput("Gulab Jamun", enums.SweetCategoryGulabJamun, "5.00", 20))
	require.NoError(t, err)
	require.Equal(t, 20, created.Quantity)

	_, err = l.svc.Purchase(ctx, created.ID, 25)
	available, ok := AsInsufficientStock(err)
	require.True(t, ok)
	require.Equal(t, 20, available)

	bought, err := l.svc.Purchase(ctx, created.ID, 5)
	require.NoError(t, err)
	require.Equal(t, 15, bought.Sweet.Quantity)
	require.Equal(t, 5, bought.Purchased)

	restocked, err := l.svc.Restock(ctx, created.ID, 10)
	require.NoError(t, err)
	require.Equal(t, 25, restocked.Sweet.Quantity)
	require.Equal(t, 10, restocked.Added)

	_, err = l.svc.Create(ctx, newCreateInput("Gulab Jamun", enums.SweetCategoryGulabJamun, "5.00", 1))
	require.True(t, IsDuplicateName(err))

	require.NoError(t, l.svc.Delete(ctx, created.ID))
	_, err = l.svc.Get(ctx, created.ID)
	require.True(t, IsNotFound(err))
}
