package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"restaurant-pos-services/internal/billing"
	"restaurant-pos-services/internal/queue"
	"restaurant-pos-services/pkg/response"
)

// Platforms an off-premise order can arrive from.
const (
	PlatformDirect   = "DIRECT"
	PlatformZomato   = "ZOMATO"
	PlatformSwiggy   = "SWIGGY"
	PlatformTakeaway = "TAKEAWAY"
)

// deliveryTransitions is the DeliveryInfo sub-state machine. DELIVERED and
// CANCELLED are terminal; READY_FOR_PICKUP goes straight to DELIVERED for
// takeaway orders that never leave the counter.
var deliveryTransitions = map[string][]string{
	"PENDING":          {"CONFIRMED", "CANCELLED"},
	"CONFIRMED":        {"PREPARING", "CANCELLED"},
	"PREPARING":        {"READY_FOR_PICKUP", "CANCELLED"},
	"READY_FOR_PICKUP": {"OUT_FOR_DELIVERY", "DELIVERED", "CANCELLED"},
	"OUT_FOR_DELIVERY": {"DELIVERED", "CANCELLED"},
	"DELIVERED":        {},
	"CANCELLED":        {},
}

func deliveryTransitionAllowed(from, to string) bool {
	for _, next := range deliveryTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func parsePlatform(raw string) (string, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case PlatformDirect:
		return PlatformDirect, true
	case PlatformZomato:
		return PlatformZomato, true
	case PlatformSwiggy:
		return PlatformSwiggy, true
	case PlatformTakeaway:
		return PlatformTakeaway, true
	default:
		return "", false
	}
}

func billSourceFor(platform string) billing.Source {
	if platform == PlatformZomato || platform == PlatformSwiggy {
		return billing.SourcePlatform
	}
	return billing.SourceDirect
}

type platformOrderRequest struct {
	CustomerName        string              `json:"customerName"`
	CustomerPhone       *string             `json:"customerPhone"`
	Address             *string             `json:"address"`
	Platform            string              `json:"platform"`
	PlatformOrderID     *string             `json:"platformOrderId"`
	DeliveryFee         float64             `json:"deliveryFee"`
	SpecialInstructions *string             `json:"specialInstructions"`
	Items               []platformOrderItem `json:"items"`
}

type platformOrderItem struct {
	MenuItemID int64   `json:"menuItemId"`
	Price      float64 `json:"price"`
	Quantity   int32   `json:"quantity"`
	Notes      *string `json:"notes"`
}

// CreateTakeawayOrder takes a counter order with no table. Line prices come
// from the caller; platform integrations send their own pricing and the
// catalog is not consulted.
func (h *Handler) CreateTakeawayOrder(w http.ResponseWriter, r *http.Request) {
	h.createPlatformOrder(w, r, PlatformTakeaway)
}

// CreateDeliveryOrder takes a direct delivery order.
func (h *Handler) CreateDeliveryOrder(w http.ResponseWriter, r *http.Request) {
	h.createPlatformOrder(w, r, "")
}

// PlatformWebhook is the unauthenticated intake for aggregator platforms.
// Signature verification happens upstream in the gateway collaborator.
func (h *Handler) PlatformWebhook(w http.ResponseWriter, r *http.Request) {
	platform, ok := parsePlatform(readPathString(r, "platform"))
	if !ok || (platform != PlatformZomato && platform != PlatformSwiggy) {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Unknown platform")
		return
	}
	h.createPlatformOrder(w, r, platform)
}

func (h *Handler) createPlatformOrder(w http.ResponseWriter, r *http.Request, forcePlatform string) {
	ctx := r.Context()

	var body platformOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	platform := forcePlatform
	if platform == "" {
		parsed, ok := parsePlatform(body.Platform)
		if !ok {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "platform must be one of DIRECT, ZOMATO, SWIGGY, TAKEAWAY")
			return
		}
		platform = parsed
	}

	if strings.TrimSpace(body.CustomerName) == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "customerName is required")
		return
	}
	if len(body.Items) == 0 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Order must have at least one item")
		return
	}
	for _, item := range body.Items {
		if item.MenuItemID <= 0 || item.Quantity <= 0 {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Each item needs a menuItemId and a positive quantity")
			return
		}
		if item.Price < 0 {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Item price cannot be negative")
			return
		}
	}

	orderType := "DELIVERY"
	deliveryFee := body.DeliveryFee
	if platform == PlatformTakeaway {
		orderType = "TAKEAWAY"
		deliveryFee = 0
	}
	if deliveryFee < 0 {
		deliveryFee = 0
	}

	lines := make([]billing.Line, 0, len(body.Items))
	for _, item := range body.Items {
		lines = append(lines, billing.Line{Price: item.Price, Quantity: item.Quantity})
	}
	totals := billing.Compute(lines, h.Config.TaxRate, billing.Charges{
		DeliveryFee:  deliveryFee,
		PackagingFee: h.Config.PackagingFee,
	})

	itemNames, err := h.menuItemNames(ctx, body.Items)
	if err != nil {
		if msg, ok := asRequestError(err); ok {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", msg)
			return
		}
		h.Logger.Error("platform order item lookup failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create order")
		return
	}

	now := time.Now()
	var orderID int64
	var billNumber string
	for attempt := 0; attempt < billNumberAttempts; attempt++ {
		billNumber = billing.NewBillNumber(billSourceFor(platform), now)
		orderID, err = h.insertPlatformOrder(ctx, orderType, platform, billNumber, body, itemNames, totals)
		if err == nil {
			break
		}
		if isUniqueViolation(err) {
			continue
		}
		h.Logger.Error("platform order insert failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create order")
		return
	}
	if err != nil {
		response.Error(w, http.StatusConflict, "CONFLICT", "Could not allocate a bill number, please retry")
		return
	}

	order, err := h.fetchOrderView(ctx, orderID)
	if err != nil {
		h.Logger.Error("order fetch after platform create failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Order created but could not be loaded")
		return
	}

	h.publishEvent(ctx, queue.KeyOrderCreated, queue.OrderEvent{
		OrderID:    order.ID,
		BillNumber: order.BillNumber,
		OrderType:  order.OrderType,
		Status:     order.Status,
		Total:      order.Total,
		OccurredAt: now,
	})

	response.Created(w, order)
}

func (h *Handler) menuItemNames(ctx context.Context, items []platformOrderItem) (map[int64]string, error) {
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.MenuItemID)
	}

	rows, err := h.DB.Query(ctx, `select id, name from menu_items where id = any($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make(map[int64]string)
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		names[id] = name
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, item := range items {
		if _, ok := names[item.MenuItemID]; !ok {
			return nil, &requestError{msg: fmt.Sprintf("Menu item %d not found", item.MenuItemID)}
		}
	}
	return names, nil
}

// insertPlatformOrder creates the order, its lines, the delivery info row
// and the recipe deductions in one transaction. The recipe path has no
// sufficiency pre-check: raw-material stock may go negative and is
// reconciled by the kitchen.
func (h *Handler) insertPlatformOrder(ctx context.Context, orderType, platform, billNumber string, body platformOrderRequest, itemNames map[int64]string, totals billing.Totals) (int64, error) {
	tx, err := h.DB.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var orderID int64
	if err := tx.QueryRow(ctx, `
		insert into orders (bill_number, order_type, table_id, status, subtotal, tax_amount,
		                    delivery_fee, packaging_fee, total_amount, updated_at)
		values ($1, $2, null, 'PENDING', $3, $4, $5, $6, $7, now())
		returning id
	`, billNumber, orderType, totals.Subtotal, totals.Tax, totals.DeliveryFee, totals.PackagingFee, totals.Total).Scan(&orderID); err != nil {
		return 0, err
	}

	usageNote := fmt.Sprintf("%s order %s", platform, billNumber)
	for _, item := range body.Items {
		if _, err := tx.Exec(ctx, `
			insert into order_items (order_id, menu_item_id, item_name, item_price, quantity, notes)
			values ($1, $2, $3, $4, $5, $6)
		`, orderID, item.MenuItemID, itemNames[item.MenuItemID], billing.Round2(item.Price), item.Quantity, item.Notes); err != nil {
			return 0, err
		}

		if err := h.Ledger.DeductRecipe(ctx, tx, item.MenuItemID, item.Quantity, orderID, usageNote); err != nil {
			return 0, err
		}
	}

	if _, err := tx.Exec(ctx, `
		insert into delivery_info (order_id, customer_name, customer_phone, address, platform,
		                           platform_order_id, delivery_status, delivery_fee, packaging_fee, special_instructions)
		values ($1, $2, $3, $4, $5, $6, 'PENDING', $7, $8, $9)
	`, orderID, strings.TrimSpace(body.CustomerName), body.CustomerPhone, body.Address, platform,
		body.PlatformOrderID, totals.DeliveryFee, totals.PackagingFee, body.SpecialInstructions); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return orderID, nil
}

type updateDeliveryStatusRequest struct {
	DeliveryStatus string `json:"deliveryStatus"`
}

// UpdateDeliveryStatus drives the DeliveryInfo sub-state machine.
// OUT_FOR_DELIVERY is only reachable for DELIVERY orders.
func (h *Handler) UpdateDeliveryStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orderID, err := readPathInt64(r, "orderId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid order id")
		return
	}

	var body updateDeliveryStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	newStatus := strings.ToUpper(strings.TrimSpace(body.DeliveryStatus))
	if _, known := deliveryTransitions[newStatus]; !known {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown delivery status")
		return
	}

	tx, err := h.DB.Begin(ctx)
	if err != nil {
		h.Logger.Error("delivery status begin failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update delivery status")
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		currentStatus string
		platform      string
		orderType     string
		billNumber    string
	)
	err = tx.QueryRow(ctx, `
		select di.delivery_status, di.platform, o.order_type, o.bill_number
		from delivery_info di
		join orders o on o.id = di.order_id
		where di.order_id = $1
		for update of di
	`, orderID).Scan(&currentStatus, &platform, &orderType, &billNumber)
	if isNoRows(err) {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Delivery order not found")
		return
	}
	if err != nil {
		h.Logger.Error("delivery status lookup failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update delivery status")
		return
	}

	if newStatus == "OUT_FOR_DELIVERY" && orderType != "DELIVERY" {
		response.Error(w, http.StatusBadRequest, "INVALID_TRANSITION", "Takeaway orders cannot go out for delivery")
		return
	}
	if !deliveryTransitionAllowed(currentStatus, newStatus) {
		response.Error(w, http.StatusBadRequest, "INVALID_TRANSITION",
			"Cannot move delivery from "+currentStatus+" to "+newStatus)
		return
	}

	if _, err := tx.Exec(ctx, `
		update delivery_info set delivery_status = $2 where order_id = $1
	`, orderID, newStatus); err != nil {
		h.Logger.Error("delivery status exec failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update delivery status")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		h.Logger.Error("delivery status commit failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update delivery status")
		return
	}

	h.publishEvent(ctx, queue.KeyDeliveryStatus, queue.DeliveryEvent{
		OrderID:        orderID,
		BillNumber:     billNumber,
		Platform:       platform,
		DeliveryStatus: newStatus,
		OccurredAt:     time.Now(),
	})

	order, err := h.fetchOrderView(ctx, orderID)
	if err != nil {
		h.Logger.Error("order fetch after delivery update failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Order updated but could not be loaded")
		return
	}
	response.Success(w, order)
}
