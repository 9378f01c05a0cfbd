package stock

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"restaurant-pos-services/internal/utils"
)

// Stock log change types. Every mutation of ingredients.current_stock writes
// exactly one log row in the same transaction; the row's quantity is signed.
const (
	ChangePurchase   = "PURCHASE"
	ChangeWastage    = "WASTAGE"
	ChangeOrderUsage = "ORDER_USAGE"
)

type Ingredient struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Unit         string     `json:"unit"`
	CurrentStock float64    `json:"currentStock"`
	MinStock     float64    `json:"minStock"`
	CostPerUnit  *float64   `json:"costPerUnit"`
	Supplier     *string    `json:"supplier"`
	LowStock     bool       `json:"lowStock"` // derived, never stored
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
}

type StockLog struct {
	ID           int64     `json:"id"`
	IngredientID int64     `json:"ingredientId"`
	ChangeType   string    `json:"changeType"`
	Quantity     float64   `json:"quantity"`
	OrderID      *int64    `json:"orderId"`
	Notes        *string   `json:"notes"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Ledger is the single writer for inventory counters and ingredient stock.
// All callers mutate stock through it, either inside their own transaction
// (order paths) or through the self-contained operations below.
type Ledger struct {
	DB        *pgxpool.Pool
	Threshold int32 // inventory counter low-stock line
}

func NewLedger(db *pgxpool.Pool, threshold int32) *Ledger {
	if threshold <= 0 {
		threshold = 10
	}
	return &Ledger{DB: db, Threshold: threshold}
}

// LogDelta returns the signed quantity stored in a stock log row for the
// given change type. qty must be the positive magnitude of the change.
func LogDelta(changeType string, qty float64) float64 {
	switch changeType {
	case ChangeWastage, ChangeOrderUsage:
		return -qty
	default:
		return qty
	}
}

// CheckInventory verifies the finished-goods counter can satisfy qty for a
// menu item. Read-only pre-check; the transactional decrement re-validates.
func (l *Ledger) CheckInventory(ctx context.Context, menuItemID int64, itemName string, qty int32) error {
	var available int32
	err := l.DB.QueryRow(ctx, `select quantity from inventory where menu_item_id = $1`, menuItemID).Scan(&available)
	if errors.Is(err, pgx.ErrNoRows) {
		return &NoInventoryRecordError{Item: itemName}
	}
	if err != nil {
		return err
	}
	if available < qty {
		return &InsufficientStockError{Item: itemName, Available: available, Requested: qty}
	}
	return nil
}

// DeductInventory decrements a finished-goods counter inside the caller's
// transaction. The decrement is conditional on sufficient quantity so two
// concurrent orders cannot both pass the pre-check and over-draw.
func (l *Ledger) DeductInventory(ctx context.Context, tx pgx.Tx, menuItemID int64, itemName string, qty int32) error {
	tag, err := tx.Exec(ctx, `
		update inventory
		set quantity = quantity - $2,
		    low_stock = (quantity - $2) < $3,
		    updated_at = now()
		where menu_item_id = $1 and quantity >= $2
	`, menuItemID, qty, l.Threshold)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var available int32
		if err := tx.QueryRow(ctx, `select quantity from inventory where menu_item_id = $1`, menuItemID).Scan(&available); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return &NoInventoryRecordError{Item: itemName}
			}
			return err
		}
		return &InsufficientStockError{Item: itemName, Available: available, Requested: qty}
	}
	return nil
}

// DeductRecipe resolves a menu item's ingredient list and draws lineQty
// multiples of each per-unit quantity, logging ORDER_USAGE rows against the
// order. Recipe stock is allowed to go negative; the kitchen reconciles
// physical counts through wastage/purchase entries.
func (l *Ledger) DeductRecipe(ctx context.Context, tx pgx.Tx, menuItemID int64, lineQty int32, orderID int64, note string) error {
	rows, err := tx.Query(ctx, `
		select ingredient_id, quantity
		from menu_item_ingredients
		where menu_item_id = $1
	`, menuItemID)
	if err != nil {
		return err
	}

	type draw struct {
		ingredientID int64
		amount       float64
	}
	draws := make([]draw, 0)
	for rows.Next() {
		var d draw
		var perUnit pgtype.Numeric
		if err := rows.Scan(&d.ingredientID, &perUnit); err != nil {
			rows.Close()
			return err
		}
		d.amount = utils.NumericToFloat64(perUnit) * float64(lineQty)
		draws = append(draws, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, d := range draws {
		if _, err := tx.Exec(ctx, `
			update ingredients
			set current_stock = current_stock - $2, updated_at = now()
			where id = $1
		`, d.ingredientID, d.amount); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			insert into ingredient_stock_logs (ingredient_id, change_type, quantity, order_id, notes)
			values ($1, $2, $3, $4, $5)
		`, d.ingredientID, ChangeOrderUsage, LogDelta(ChangeOrderUsage, d.amount), orderID, note); err != nil {
			return err
		}
	}
	return nil
}

// AddStock records a purchase: increments current_stock and appends a
// PURCHASE log row atomically.
func (l *Ledger) AddStock(ctx context.Context, ingredientID int64, qty float64, notes string) (*Ingredient, error) {
	if qty <= 0 {
		return nil, &ValidationError{Field: "quantity", Message: "must be greater than zero"}
	}
	return l.adjust(ctx, ingredientID, ChangePurchase, qty, nil, notes)
}

// RecordWastage records spoilage/loss: decrements current_stock and appends
// a WASTAGE log row atomically. qty is the positive magnitude.
func (l *Ledger) RecordWastage(ctx context.Context, ingredientID int64, qty float64, notes string) (*Ingredient, error) {
	if qty <= 0 {
		return nil, &ValidationError{Field: "quantity", Message: "must be greater than zero"}
	}
	return l.adjust(ctx, ingredientID, ChangeWastage, qty, nil, notes)
}

func (l *Ledger) adjust(ctx context.Context, ingredientID int64, changeType string, qty float64, orderID *int64, notes string) (*Ingredient, error) {
	delta := LogDelta(changeType, qty)

	tx, err := l.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ing := Ingredient{}
	var (
		currentStock pgtype.Numeric
		minStock     pgtype.Numeric
		costPerUnit  pgtype.Numeric
		supplier     pgtype.Text
		updatedAt    time.Time
	)
	err = tx.QueryRow(ctx, `
		update ingredients
		set current_stock = current_stock + $2, updated_at = now()
		where id = $1
		returning id, name, unit, current_stock, min_stock, cost_per_unit, supplier, updated_at
	`, ingredientID, delta).Scan(&ing.ID, &ing.Name, &ing.Unit, &currentStock, &minStock, &costPerUnit, &supplier, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrIngredientNotFound
	}
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		insert into ingredient_stock_logs (ingredient_id, change_type, quantity, order_id, notes)
		values ($1, $2, $3, $4, nullif($5, ''))
	`, ingredientID, changeType, delta, orderID, notes); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	ing.CurrentStock = utils.NumericToFloat64(currentStock)
	ing.MinStock = utils.NumericToFloat64(minStock)
	if costPerUnit.Valid {
		v := utils.NumericToFloat64(costPerUnit)
		ing.CostPerUnit = &v
	}
	if supplier.Valid {
		ing.Supplier = &supplier.String
	}
	ing.LowStock = ing.CurrentStock <= ing.MinStock
	ing.UpdatedAt = &updatedAt
	return &ing, nil
}

// LowStock returns every ingredient at or below its minimum. Derived at
// call time, never cached.
func (l *Ledger) LowStock(ctx context.Context) ([]Ingredient, error) {
	return l.list(ctx, `where current_stock <= min_stock`)
}

func (l *Ledger) ListIngredients(ctx context.Context) ([]Ingredient, error) {
	return l.list(ctx, ``)
}

func (l *Ledger) list(ctx context.Context, filter string) ([]Ingredient, error) {
	rows, err := l.DB.Query(ctx, `
		select id, name, unit, current_stock, min_stock, cost_per_unit, supplier, updated_at
		from ingredients `+filter+`
		order by name asc
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Ingredient, 0)
	for rows.Next() {
		var ing Ingredient
		var (
			currentStock pgtype.Numeric
			minStock     pgtype.Numeric
			costPerUnit  pgtype.Numeric
			supplier     pgtype.Text
			updatedAt    time.Time
		)
		if err := rows.Scan(&ing.ID, &ing.Name, &ing.Unit, &currentStock, &minStock, &costPerUnit, &supplier, &updatedAt); err != nil {
			return nil, err
		}
		ing.CurrentStock = utils.NumericToFloat64(currentStock)
		ing.MinStock = utils.NumericToFloat64(minStock)
		if costPerUnit.Valid {
			v := utils.NumericToFloat64(costPerUnit)
			ing.CostPerUnit = &v
		}
		if supplier.Valid {
			ing.Supplier = &supplier.String
		}
		ing.LowStock = ing.CurrentStock <= ing.MinStock
		ing.UpdatedAt = &updatedAt
		out = append(out, ing)
	}
	return out, rows.Err()
}

// History returns the append-only audit trail for one ingredient, newest
// first.
func (l *Ledger) History(ctx context.Context, ingredientID int64, limit int) ([]StockLog, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}
	rows, err := l.DB.Query(ctx, `
		select id, ingredient_id, change_type, quantity, order_id, notes, created_at
		from ingredient_stock_logs
		where ingredient_id = $1
		order by created_at desc, id desc
		limit $2
	`, ingredientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]StockLog, 0)
	for rows.Next() {
		var entry StockLog
		var qty pgtype.Numeric
		var orderID pgtype.Int8
		var notes pgtype.Text
		if err := rows.Scan(&entry.ID, &entry.IngredientID, &entry.ChangeType, &qty, &orderID, &notes, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.Quantity = utils.NumericToFloat64(qty)
		if orderID.Valid {
			entry.OrderID = &orderID.Int64
		}
		if notes.Valid {
			entry.Notes = &notes.String
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// DeleteIngredient removes an unused ingredient and its audit trail. An
// ingredient referenced by any recipe cannot be deleted.
func (l *Ledger) DeleteIngredient(ctx context.Context, ingredientID int64) error {
	var name string
	err := l.DB.QueryRow(ctx, `select name from ingredients where id = $1`, ingredientID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrIngredientNotFound
	}
	if err != nil {
		return err
	}

	rows, err := l.DB.Query(ctx, `
		select m.name
		from menu_item_ingredients mii
		join menu_items m on m.id = mii.menu_item_id
		where mii.ingredient_id = $1
		order by m.name asc
	`, ingredientID)
	if err != nil {
		return err
	}
	dependents := make([]string, 0)
	for rows.Next() {
		var item string
		if err := rows.Scan(&item); err != nil {
			rows.Close()
			return err
		}
		dependents = append(dependents, item)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if len(dependents) > 0 {
		return &IngredientInUseError{Ingredient: name, MenuItems: dependents}
	}

	tx, err := l.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `delete from ingredient_stock_logs where ingredient_id = $1`, ingredientID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `delete from ingredients where id = $1`, ingredientID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
