package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"restaurant-pos-services/internal/billing"
	"restaurant-pos-services/internal/queue"
	"restaurant-pos-services/internal/utils"
	"restaurant-pos-services/pkg/response"
)

const billNumberAttempts = 5

type createOrderRequest struct {
	TableID    int64              `json:"tableId"`
	OrderItems []orderItemRequest `json:"orderItems"`
}

type orderItemRequest struct {
	MenuItemID    int64                 `json:"menuItemId"`
	Quantity      int32                 `json:"quantity"`
	Notes         *string               `json:"notes"`
	Modifications []modificationRequest `json:"modifications"`
}

type modificationRequest struct {
	ModificationID int64 `json:"modificationId"`
	Quantity       int32 `json:"quantity"`
}

type menuItemRow struct {
	ID       int64
	Name     string
	Price    float64
	IsActive bool
}

type modificationRow struct {
	ID       int64
	Name     string
	Price    float64
	IsActive bool
}

// resolvedLine is an order line with catalog prices snapshotted.
type resolvedLine struct {
	MenuItemID    int64
	Name          string
	Price         float64
	Quantity      int32
	Notes         *string
	Modifications []resolvedModification
}

type resolvedModification struct {
	ModificationID int64
	Name           string
	Price          float64
	Quantity       int32
}

// CreateOrder is the dine-in path: catalog-priced lines, a strict
// finished-goods stock check, and an atomic order + deduction + table flip.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if body.TableID <= 0 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "tableId is required")
		return
	}
	if len(body.OrderItems) == 0 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Order must have at least one item")
		return
	}
	for _, item := range body.OrderItems {
		if item.MenuItemID <= 0 || item.Quantity <= 0 {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Each order item needs a menuItemId and a positive quantity")
			return
		}
	}

	now := time.Now()
	if ok := h.checkTableForOrder(ctx, w, body.TableID, now); !ok {
		return
	}

	lines, err := h.resolveOrderLines(ctx, body.OrderItems)
	if err != nil {
		if msg, ok := asRequestError(err); ok {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", msg)
			return
		}
		h.Logger.Error("order line resolution failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create order")
		return
	}

	// Pre-check outside the transaction; the conditional decrement inside
	// re-validates, so a concurrent order cannot slip through.
	for _, line := range lines {
		if err := h.Ledger.CheckInventory(ctx, line.MenuItemID, line.Name, line.Quantity); err != nil {
			if h.writeStockError(w, err) {
				return
			}
			h.Logger.Error("inventory pre-check failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create order")
			return
		}
	}

	totals := billing.Compute(billingLines(lines), h.Config.TaxRate, billing.Charges{})

	var orderID int64
	for attempt := 0; attempt < billNumberAttempts; attempt++ {
		billNumber := billing.NewBillNumber(billing.SourceDirect, now)
		orderID, err = h.insertDineInOrder(ctx, body.TableID, billNumber, lines, totals)
		if err == nil {
			break
		}
		if isUniqueViolation(err) {
			continue
		}
		if h.writeStockError(w, err) {
			return
		}
		h.Logger.Error("dine-in order insert failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create order")
		return
	}
	if err != nil {
		h.Logger.Error("bill number collisions exhausted retries", zapError(err))
		response.Error(w, http.StatusConflict, "CONFLICT", "Could not allocate a bill number, please retry")
		return
	}

	order, err := h.fetchOrderView(ctx, orderID)
	if err != nil {
		h.Logger.Error("order fetch after create failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Order created but could not be loaded")
		return
	}

	h.publishEvent(ctx, queue.KeyOrderCreated, queue.OrderEvent{
		OrderID:    order.ID,
		BillNumber: order.BillNumber,
		OrderType:  order.OrderType,
		Status:     order.Status,
		TableID:    order.TableID,
		Total:      order.Total,
		OccurredAt: now,
	})

	response.Created(w, order)
}

// checkTableForOrder enforces the reservation window: a RESERVED table only
// accepts orders between reservedFrom and reservedUntil.
func (h *Handler) checkTableForOrder(ctx context.Context, w http.ResponseWriter, tableID int64, now time.Time) bool {
	var (
		status        string
		reservedFrom  pgtype.Timestamptz
		reservedUntil pgtype.Timestamptz
	)
	err := h.DB.QueryRow(ctx, `
		select status, reserved_from, reserved_until
		from restaurant_tables where id = $1
	`, tableID).Scan(&status, &reservedFrom, &reservedUntil)
	if isNoRows(err) {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Table not found")
		return false
	}
	if err != nil {
		h.Logger.Error("table lookup failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create order")
		return false
	}

	if status == "RESERVED" {
		if reservedFrom.Valid && now.Before(reservedFrom.Time) {
			response.Error(w, http.StatusBadRequest, "RESERVATION_WINDOW",
				fmt.Sprintf("Table is reserved from %s", reservedFrom.Time.Format(time.RFC3339)))
			return false
		}
		if reservedUntil.Valid && !now.Before(reservedUntil.Time) {
			response.Error(w, http.StatusBadRequest, "RESERVATION_WINDOW", "Table reservation has expired")
			return false
		}
	}
	return true
}

type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }

func asRequestError(err error) (string, bool) {
	if re, ok := err.(*requestError); ok {
		return re.msg, true
	}
	return "", false
}

// resolveOrderLines snapshots catalog prices for menu items and
// modifications; client prices are never trusted on the dine-in path.
func (h *Handler) resolveOrderLines(ctx context.Context, items []orderItemRequest) ([]resolvedLine, error) {
	menuIDs := make([]int64, 0, len(items))
	modIDs := make([]int64, 0)
	for _, item := range items {
		menuIDs = append(menuIDs, item.MenuItemID)
		for _, mod := range item.Modifications {
			modIDs = append(modIDs, mod.ModificationID)
		}
	}

	menus := make(map[int64]menuItemRow)
	rows, err := h.DB.Query(ctx, `
		select id, name, price, is_active from menu_items where id = any($1)
	`, menuIDs)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var m menuItemRow
		var price pgtype.Numeric
		if err := rows.Scan(&m.ID, &m.Name, &price, &m.IsActive); err != nil {
			rows.Close()
			return nil, err
		}
		m.Price = utils.NumericToFloat64(price)
		menus[m.ID] = m
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	mods := make(map[int64]modificationRow)
	if len(modIDs) > 0 {
		rows, err := h.DB.Query(ctx, `
			select id, name, price, is_active from modifications where id = any($1)
		`, modIDs)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var m modificationRow
			var price pgtype.Numeric
			if err := rows.Scan(&m.ID, &m.Name, &price, &m.IsActive); err != nil {
				rows.Close()
				return nil, err
			}
			m.Price = utils.NumericToFloat64(price)
			mods[m.ID] = m
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}

	lines := make([]resolvedLine, 0, len(items))
	for _, item := range items {
		menu, ok := menus[item.MenuItemID]
		if !ok {
			return nil, &requestError{msg: fmt.Sprintf("Menu item %d not found", item.MenuItemID)}
		}
		if !menu.IsActive {
			return nil, &requestError{msg: fmt.Sprintf("Menu item %q is not available", menu.Name)}
		}

		line := resolvedLine{
			MenuItemID: menu.ID,
			Name:       menu.Name,
			Price:      menu.Price,
			Quantity:   item.Quantity,
			Notes:      item.Notes,
		}
		for _, modReq := range item.Modifications {
			mod, ok := mods[modReq.ModificationID]
			if !ok {
				return nil, &requestError{msg: fmt.Sprintf("Modification %d not found", modReq.ModificationID)}
			}
			if !mod.IsActive {
				return nil, &requestError{msg: fmt.Sprintf("Modification %q is not available", mod.Name)}
			}
			qty := modReq.Quantity
			if qty <= 0 {
				qty = 1
			}
			line.Modifications = append(line.Modifications, resolvedModification{
				ModificationID: mod.ID,
				Name:           mod.Name,
				Price:          mod.Price,
				Quantity:       qty,
			})
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func billingLines(lines []resolvedLine) []billing.Line {
	out := make([]billing.Line, 0, len(lines))
	for _, line := range lines {
		bl := billing.Line{Price: line.Price, Quantity: line.Quantity}
		for _, mod := range line.Modifications {
			bl.Modifications = append(bl.Modifications, billing.Modification{
				Name:     mod.Name,
				Price:    mod.Price,
				Quantity: mod.Quantity,
			})
		}
		out = append(out, bl)
	}
	return out
}

// occupyTableSQL flips the table to OCCUPIED and drops any reservation
// window, so reservation fields are only ever set while status is RESERVED.
// An order placed inside the window converts the reservation into occupancy,
// same as the scheduler's lapsed-occupancy path.
const occupyTableSQL = `
	update restaurant_tables
	set status = 'OCCUPIED', current_bill = coalesce(current_bill, 0) + $2,
	    reserved_from = null, reserved_until = null,
	    order_time = now(), updated_at = now()
	where id = $1
`

// insertDineInOrder runs the whole creation atomically: order, line items,
// modification snapshots, conditional stock decrements, table occupation.
// Any failure rolls everything back.
func (h *Handler) insertDineInOrder(ctx context.Context, tableID int64, billNumber string, lines []resolvedLine, totals billing.Totals) (int64, error) {
	tx, err := h.DB.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var orderID int64
	if err := tx.QueryRow(ctx, `
		insert into orders (bill_number, order_type, table_id, status, subtotal, tax_amount, total_amount, updated_at)
		values ($1, 'DINE_IN', $2, 'PENDING', $3, $4, $5, now())
		returning id
	`, billNumber, tableID, totals.Subtotal, totals.Tax, totals.Total).Scan(&orderID); err != nil {
		return 0, err
	}

	for _, line := range lines {
		var orderItemID int64
		if err := tx.QueryRow(ctx, `
			insert into order_items (order_id, menu_item_id, item_name, item_price, quantity, notes)
			values ($1, $2, $3, $4, $5, $6)
			returning id
		`, orderID, line.MenuItemID, line.Name, line.Price, line.Quantity, line.Notes).Scan(&orderItemID); err != nil {
			return 0, err
		}

		for _, mod := range line.Modifications {
			if _, err := tx.Exec(ctx, `
				insert into order_item_modifications (order_item_id, modification_id, name, price, quantity)
				values ($1, $2, $3, $4, $5)
			`, orderItemID, mod.ModificationID, mod.Name, mod.Price, mod.Quantity); err != nil {
				return 0, err
			}
		}

		if err := h.Ledger.DeductInventory(ctx, tx, line.MenuItemID, line.Name, line.Quantity); err != nil {
			return 0, err
		}
	}

	if _, err := tx.Exec(ctx, occupyTableSQL, tableID, totals.Total); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return orderID, nil
}

// OrdersList returns orders newest first, optionally filtered by status.
func (h *Handler) OrdersList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 1 && parsed <= 200 {
			limit = parsed
		}
	}

	filter := ``
	args := []any{limit}
	if status := strings.TrimSpace(r.URL.Query().Get("status")); status != "" {
		filter = `where status = $2`
		args = append(args, strings.ToUpper(status))
	}

	orders, err := h.queryOrders(ctx, filter, `order by created_at desc limit $1`, args...)
	if err != nil {
		h.Logger.Error("orders list query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch orders")
		return
	}
	response.Success(w, orders)
}

// ActiveOrders returns every order still on the floor or in the kitchen.
func (h *Handler) ActiveOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.queryOrders(r.Context(),
		`where status in ('PENDING', 'PREPARING', 'SERVED')`,
		`order by created_at asc limit $1`, 200)
	if err != nil {
		h.Logger.Error("active orders query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch active orders")
		return
	}
	response.Success(w, orders)
}

func (h *Handler) OrderDetail(w http.ResponseWriter, r *http.Request) {
	orderID, err := readPathInt64(r, "orderId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid order id")
		return
	}

	order, err := h.fetchOrderView(r.Context(), orderID)
	if isNoRows(err) {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Order not found")
		return
	}
	if err != nil {
		h.Logger.Error("order detail query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch order")
		return
	}
	response.Success(w, order)
}

func (h *Handler) queryOrders(ctx context.Context, filter string, tail string, args ...any) ([]OrderView, error) {
	rows, err := h.DB.Query(ctx, `
		select id, bill_number, order_type, table_id, status, subtotal, tax_amount,
		       delivery_fee, packaging_fee, total_amount, payment_mode, paid_at, created_at
		from orders `+filter+` `+tail, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]OrderView, 0)
	for rows.Next() {
		order, err := scanOrderRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func scanOrderRow(scan func(dest ...any) error) (OrderView, error) {
	var order OrderView
	var (
		tableID      pgtype.Int8
		subtotal     pgtype.Numeric
		tax          pgtype.Numeric
		deliveryFee  pgtype.Numeric
		packagingFee pgtype.Numeric
		total        pgtype.Numeric
		paymentMode  pgtype.Text
		paidAt       pgtype.Timestamptz
	)
	if err := scan(
		&order.ID, &order.BillNumber, &order.OrderType, &tableID, &order.Status,
		&subtotal, &tax, &deliveryFee, &packagingFee, &total, &paymentMode, &paidAt, &order.CreatedAt,
	); err != nil {
		return OrderView{}, err
	}
	if tableID.Valid {
		order.TableID = &tableID.Int64
	}
	order.Subtotal = utils.NumericToFloat64(subtotal)
	order.Tax = utils.NumericToFloat64(tax)
	order.DeliveryFee = utils.NumericToFloat64(deliveryFee)
	order.PackagingFee = utils.NumericToFloat64(packagingFee)
	order.Total = utils.NumericToFloat64(total)
	if paymentMode.Valid {
		order.PaymentMode = &paymentMode.String
	}
	if paidAt.Valid {
		order.PaidAt = &paidAt.Time
	}
	order.Items = []OrderItemView{}
	return order, nil
}

// fetchOrderView loads one order with nested items, modification snapshots
// and delivery info.
func (h *Handler) fetchOrderView(ctx context.Context, orderID int64) (*OrderView, error) {
	row := h.DB.QueryRow(ctx, `
		select id, bill_number, order_type, table_id, status, subtotal, tax_amount,
		       delivery_fee, packaging_fee, total_amount, payment_mode, paid_at, created_at
		from orders where id = $1
	`, orderID)
	order, err := scanOrderRow(row.Scan)
	if err != nil {
		return nil, err
	}

	itemRows, err := h.DB.Query(ctx, `
		select id, menu_item_id, item_name, item_price, quantity, notes
		from order_items where order_id = $1 order by id asc
	`, orderID)
	if err != nil {
		return nil, err
	}
	itemIndex := make(map[int64]int)
	for itemRows.Next() {
		var item OrderItemView
		var price pgtype.Numeric
		var notes pgtype.Text
		if err := itemRows.Scan(&item.ID, &item.MenuItemID, &item.Name, &price, &item.Quantity, &notes); err != nil {
			itemRows.Close()
			return nil, err
		}
		item.Price = utils.NumericToFloat64(price)
		if notes.Valid {
			item.Notes = &notes.String
		}
		item.Modifications = []OrderModificationView{}
		itemIndex[item.ID] = len(order.Items)
		order.Items = append(order.Items, item)
	}
	itemRows.Close()
	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	modRows, err := h.DB.Query(ctx, `
		select oim.order_item_id, oim.id, oim.name, oim.price, oim.quantity
		from order_item_modifications oim
		join order_items oi on oi.id = oim.order_item_id
		where oi.order_id = $1
		order by oim.id asc
	`, orderID)
	if err != nil {
		return nil, err
	}
	for modRows.Next() {
		var orderItemID int64
		var mod OrderModificationView
		var price pgtype.Numeric
		if err := modRows.Scan(&orderItemID, &mod.ID, &mod.Name, &price, &mod.Quantity); err != nil {
			modRows.Close()
			return nil, err
		}
		mod.Price = utils.NumericToFloat64(price)
		if idx, ok := itemIndex[orderItemID]; ok {
			order.Items[idx].Modifications = append(order.Items[idx].Modifications, mod)
		}
	}
	modRows.Close()
	if err := modRows.Err(); err != nil {
		return nil, err
	}

	var info DeliveryInfoView
	var (
		phone        pgtype.Text
		address      pgtype.Text
		platformID   pgtype.Text
		deliveryFee  pgtype.Numeric
		packagingFee pgtype.Numeric
		instructions pgtype.Text
	)
	err = h.DB.QueryRow(ctx, `
		select id, customer_name, customer_phone, address, platform, platform_order_id,
		       delivery_status, delivery_fee, packaging_fee, special_instructions
		from delivery_info where order_id = $1
	`, orderID).Scan(&info.ID, &info.CustomerName, &phone, &address, &info.Platform,
		&platformID, &info.DeliveryStatus, &deliveryFee, &packagingFee, &instructions)
	if err == nil {
		if phone.Valid {
			info.CustomerPhone = &phone.String
		}
		if address.Valid {
			info.Address = &address.String
		}
		if platformID.Valid {
			info.PlatformOrderID = &platformID.String
		}
		if instructions.Valid {
			info.SpecialInstructions = &instructions.String
		}
		info.DeliveryFee = utils.NumericToFloat64(deliveryFee)
		info.PackagingFee = utils.NumericToFloat64(packagingFee)
		order.DeliveryInfo = &info
	} else if !isNoRows(err) {
		return nil, err
	}

	return &order, nil
}
