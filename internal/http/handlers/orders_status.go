package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"

	"restaurant-pos-services/internal/middleware"
	"restaurant-pos-services/internal/queue"
	"restaurant-pos-services/internal/utils"
	"restaurant-pos-services/pkg/response"
)

// allowedTransitions is the order status DAG. PAID and CANCELLED are
// terminal.
var allowedTransitions = map[string][]string{
	"PENDING":   {"PREPARING", "CANCELLED"},
	"PREPARING": {"SERVED", "CANCELLED"},
	"SERVED":    {"PAID", "CANCELLED"},
	"PAID":      {},
	"CANCELLED": {},
}

var validPaymentModes = map[string]bool{
	"cash": true,
	"card": true,
	"upi":  true,
}

func transitionAllowed(from, to string) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func isTerminalStatus(status string) bool {
	return status == "PAID" || status == "CANCELLED"
}

type updateOrderStatusRequest struct {
	Status      string  `json:"status"`
	PaymentMode *string `json:"paymentMode"`
}

// UpdateOrderStatus drives the state machine. Entering PAID requires a
// payment mode and stamps paid_at; terminal transitions free a dine-in
// order's table in the same transaction.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orderID, err := readPathInt64(r, "orderId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid order id")
		return
	}

	var body updateOrderStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	newStatus := strings.ToUpper(strings.TrimSpace(body.Status))
	if _, known := allowedTransitions[newStatus]; !known {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown order status")
		return
	}

	var paymentMode string
	if newStatus == "PAID" {
		if body.PaymentMode == nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "paymentMode is required to mark an order paid")
			return
		}
		paymentMode = strings.ToLower(strings.TrimSpace(*body.PaymentMode))
		if !validPaymentModes[paymentMode] {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "paymentMode must be one of cash, card, upi")
			return
		}
	}

	tx, err := h.DB.Begin(ctx)
	if err != nil {
		h.Logger.Error("status update begin failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update order status")
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		currentStatus string
		billNumber    string
		orderType     string
		tableID       pgtype.Int8
		total         pgtype.Numeric
	)
	err = tx.QueryRow(ctx, `
		select status, bill_number, order_type, table_id, total_amount
		from orders where id = $1
		for update
	`, orderID).Scan(&currentStatus, &billNumber, &orderType, &tableID, &total)
	if isNoRows(err) {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Order not found")
		return
	}
	if err != nil {
		h.Logger.Error("status update lookup failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update order status")
		return
	}

	if !transitionAllowed(currentStatus, newStatus) {
		response.Error(w, http.StatusBadRequest, "INVALID_TRANSITION",
			"Cannot move order from "+currentStatus+" to "+newStatus)
		return
	}

	if newStatus == "PAID" {
		_, err = tx.Exec(ctx, `
			update orders set status = 'PAID', payment_mode = $2, paid_at = now(), updated_at = now()
			where id = $1
		`, orderID, paymentMode)
	} else {
		_, err = tx.Exec(ctx, `
			update orders set status = $2, updated_at = now() where id = $1
		`, orderID, newStatus)
	}
	if err != nil {
		h.Logger.Error("status update exec failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update order status")
		return
	}

	// Table release is a dine-in side effect only; it happens in the same
	// transaction so table state can never diverge from a terminal order.
	if isTerminalStatus(newStatus) && tableID.Valid {
		if _, err := tx.Exec(ctx, `
			update restaurant_tables
			set status = 'AVAILABLE', customer_name = null, customer_phone = null,
			    reserved_from = null, reserved_until = null, current_bill = null,
			    order_time = null, updated_at = now()
			where id = $1
		`, tableID.Int64); err != nil {
			h.Logger.Error("table release failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update order status")
			return
		}
	}

	if err := tx.Commit(ctx); err != nil {
		h.Logger.Error("status update commit failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update order status")
		return
	}

	changedBy := ""
	if ac, ok := middleware.GetAuthContext(ctx); ok {
		changedBy = ac.UserID
	}
	h.Logger.Info("order status updated",
		zap.String("billNumber", billNumber),
		zap.String("from", currentStatus),
		zap.String("to", newStatus),
		zap.String("changedBy", changedBy))

	var tid *int64
	if tableID.Valid {
		tid = &tableID.Int64
	}
	h.publishEvent(ctx, queue.KeyOrderStatusUpdated, queue.OrderEvent{
		OrderID:    orderID,
		BillNumber: billNumber,
		OrderType:  orderType,
		Status:     newStatus,
		TableID:    tid,
		Total:      utils.NumericToFloat64(total),
		OccurredAt: time.Now(),
	})

	order, err := h.fetchOrderView(ctx, orderID)
	if err != nil {
		h.Logger.Error("order fetch after status update failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Order updated but could not be loaded")
		return
	}
	response.Success(w, order)
}
