package sweets

import (
	"fmt"

	pkgerrors "github.com/sweetshop/sweetshop-backend/pkg/errors"
)

// StockDetails is attached to INSUFFICIENT_STOCK errors so callers can read
// the quantity that was on hand when the purchase was rejected.
type StockDetails struct {
	Available int `json:"available"`
}

func errNotFound(id int64) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("sweet %d not found", id))
}

func errDuplicateName(name string) error {
	return pkgerrors.New(pkgerrors.CodeDuplicateName, "a sweet with this name already exists").
		WithDetails(map[string]string{"name": name})
}

func errInvalidQuantity(qty int) error {
	return pkgerrors.New(pkgerrors.CodeInvalidQuantity, "quantity must be at least 1").
		WithDetails(map[string]int{"quantity": qty})
}

func errInsufficientStock(available int) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, fmt.Sprintf("insufficient stock, only %d available", available)).
		WithDetails(StockDetails{Available: available})
}

func errQuantityOverflow(onHand int) error {
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("restock would exceed %d units", maxQuantity)).
		WithDetails(map[string]any{"field": "quantity", "onHand": onHand})
}

func errValidation(field, msg string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, msg).
		WithDetails(map[string]string{"field": field})
}

// IsNotFound reports whether err is a missing-sweet error.
func IsNotFound(err error) bool {
	return pkgerrors.Is(err, pkgerrors.CodeNotFound)
}

// IsDuplicateName reports whether err is a name collision.
func IsDuplicateName(err error) bool {
	return pkgerrors.Is(err, pkgerrors.CodeDuplicateName)
}

// IsInvalidQuantity reports whether err rejected a non-positive purchase or restock amount.
func IsInvalidQuantity(err error) bool {
	return pkgerrors.Is(err, pkgerrors.CodeInvalidQuantity)
}

// AsInsufficientStock returns the available quantity carried by an
// INSUFFICIENT_STOCK error.
func AsInsufficientStock(err error) (int, bool) {
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		return 0, false
	}
	details, ok := typed.Details().(StockDetails)
	if !ok {
		return 0, false
	}
	return details.Available, true
}
