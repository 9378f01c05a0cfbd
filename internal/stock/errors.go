package stock

import (
	"errors"
	"fmt"
	"strings"
)

var ErrIngredientNotFound = errors.New("ingredient not found")

// InsufficientStockError names the item and the quantity on hand so the
// caller can surface an actionable message.
type InsufficientStockError struct {
	Item      string
	Available int32
	Requested int32
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q: %d available, %d requested", e.Item, e.Available, e.Requested)
}

// NoInventoryRecordError means a dine-in order referenced a menu item that
// has no finished-goods counter.
type NoInventoryRecordError struct {
	Item string
}

func (e *NoInventoryRecordError) Error() string {
	return fmt.Sprintf("no inventory record for %q", e.Item)
}

// IngredientInUseError blocks deletion of an ingredient still referenced by
// menu item recipes.
type IngredientInUseError struct {
	Ingredient string
	MenuItems  []string
}

func (e *IngredientInUseError) Error() string {
	return fmt.Sprintf("ingredient %q is used by: %s", e.Ingredient, strings.Join(e.MenuItems, ", "))
}

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
