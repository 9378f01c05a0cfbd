package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"restaurant-pos-services/internal/scheduler"
	"restaurant-pos-services/internal/utils"
	"restaurant-pos-services/pkg/response"
)

// TablesList returns every table with its derived reservationStatus
// (active / expiring_soon / expired); the field is computed per request and
// never stored.
func (h *Handler) TablesList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rows, err := h.DB.Query(ctx, `
		select id, table_number, status, current_bill, order_time, customer_name,
		       customer_phone, reserved_from, reserved_until, updated_at
		from restaurant_tables
		order by table_number asc
	`)
	if err != nil {
		h.Logger.Error("tables query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch tables")
		return
	}
	defer rows.Close()

	now := time.Now()
	tables := make([]TableView, 0)
	for rows.Next() {
		var table TableView
		var (
			currentBill   pgtype.Numeric
			orderTime     pgtype.Timestamptz
			customerName  pgtype.Text
			customerPhone pgtype.Text
			reservedFrom  pgtype.Timestamptz
			reservedUntil pgtype.Timestamptz
		)
		if err := rows.Scan(&table.ID, &table.TableNumber, &table.Status, &currentBill, &orderTime,
			&customerName, &customerPhone, &reservedFrom, &reservedUntil, &table.UpdatedAt); err != nil {
			h.Logger.Error("tables scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch tables")
			return
		}
		if currentBill.Valid {
			v := utils.NumericToFloat64(currentBill)
			table.CurrentBill = &v
		}
		if orderTime.Valid {
			table.OrderTime = &orderTime.Time
		}
		if customerName.Valid {
			table.CustomerName = &customerName.String
		}
		if customerPhone.Valid {
			table.CustomerPhone = &customerPhone.String
		}
		if reservedFrom.Valid {
			table.ReservedFrom = &reservedFrom.Time
		}
		if reservedUntil.Valid {
			table.ReservedUntil = &reservedUntil.Time
		}

		if state := scheduler.ReservationState(table.Status, table.ReservedUntil, now, h.Config.ExpiringSoonWindow); state != "" {
			table.ReservationStatus = &state
		}
		tables = append(tables, table)
	}
	if err := rows.Err(); err != nil {
		h.Logger.Error("tables read failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch tables")
		return
	}

	response.Success(w, tables)
}

type reserveTableRequest struct {
	TableID       int64     `json:"tableId"`
	CustomerName  string    `json:"customerName"`
	CustomerPhone *string   `json:"customerPhone"`
	ReservedFrom  time.Time `json:"reservedFrom"`
	ReservedUntil time.Time `json:"reservedUntil"`
}

func validateReservationWindow(from, until, now time.Time) error {
	if from.IsZero() || until.IsZero() {
		return &requestError{msg: "reservedFrom and reservedUntil are required"}
	}
	if !from.Before(until) {
		return &requestError{msg: "reservedFrom must be before reservedUntil"}
	}
	if !until.After(now) {
		return &requestError{msg: "reservedUntil must be in the future"}
	}
	return nil
}

func validateReservationExtension(currentEnd, newEnd, now time.Time) error {
	if newEnd.IsZero() {
		return &requestError{msg: "reservedUntil is required"}
	}
	if !newEnd.After(currentEnd) {
		return &requestError{msg: "New reservedUntil must be later than the current reservation end"}
	}
	if !newEnd.After(now) {
		return &requestError{msg: "reservedUntil must be in the future"}
	}
	return nil
}

// ReserveTable holds an AVAILABLE table for a customer. The status flip is
// conditional so two concurrent reservations cannot both win.
func (h *Handler) ReserveTable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body reserveTableRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if body.TableID <= 0 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "tableId is required")
		return
	}
	if strings.TrimSpace(body.CustomerName) == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "customerName is required")
		return
	}
	if err := validateReservationWindow(body.ReservedFrom, body.ReservedUntil, time.Now()); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	tag, err := h.DB.Exec(ctx, `
		update restaurant_tables
		set status = 'RESERVED', customer_name = $2, customer_phone = $3,
		    reserved_from = $4, reserved_until = $5, updated_at = now()
		where id = $1 and status = 'AVAILABLE'
	`, body.TableID, strings.TrimSpace(body.CustomerName), body.CustomerPhone, body.ReservedFrom, body.ReservedUntil)
	if err != nil {
		h.Logger.Error("reserve table failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to reserve table")
		return
	}
	if tag.RowsAffected() == 0 {
		var status string
		err := h.DB.QueryRow(ctx, `select status from restaurant_tables where id = $1`, body.TableID).Scan(&status)
		if isNoRows(err) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Table not found")
			return
		}
		response.Error(w, http.StatusConflict, "CONFLICT", "Table is not available (current status: "+status+")")
		return
	}

	h.respondWithTable(w, r, body.TableID)
}

// CancelReservation releases a RESERVED table back to AVAILABLE, clearing
// every customer and reservation field.
func (h *Handler) CancelReservation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tableID, err := readPathInt64(r, "tableId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid table id")
		return
	}

	tag, err := h.DB.Exec(ctx, `
		update restaurant_tables
		set status = 'AVAILABLE', customer_name = null, customer_phone = null,
		    reserved_from = null, reserved_until = null, current_bill = null,
		    order_time = null, updated_at = now()
		where id = $1 and status = 'RESERVED'
	`, tableID)
	if err != nil {
		h.Logger.Error("cancel reservation failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to cancel reservation")
		return
	}
	if tag.RowsAffected() == 0 {
		var status string
		err := h.DB.QueryRow(ctx, `select status from restaurant_tables where id = $1`, tableID).Scan(&status)
		if isNoRows(err) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Table not found")
			return
		}
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Table is not reserved")
		return
	}

	h.respondWithTable(w, r, tableID)
}

type extendReservationRequest struct {
	ReservedUntil time.Time `json:"reservedUntil"`
}

// extendReservationSQL re-validates the extension inside the update, so a
// concurrent cancel or sweep cannot make a stale read commit: the new end
// must beat the current one and lie in the future at write time.
const extendReservationSQL = `
	update restaurant_tables
	set reserved_until = $2, updated_at = now()
	where id = $1 and status = 'RESERVED'
	  and reserved_until is not null
	  and $2 > reserved_until
	  and $2 > now()
`

// ExtendReservation pushes a reservation's end later; it can never shorten
// the window.
func (h *Handler) ExtendReservation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tableID, err := readPathInt64(r, "tableId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid table id")
		return
	}

	var body extendReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	var status string
	var reservedUntil pgtype.Timestamptz
	err = h.DB.QueryRow(ctx, `
		select status, reserved_until from restaurant_tables where id = $1
	`, tableID).Scan(&status, &reservedUntil)
	if isNoRows(err) {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Table not found")
		return
	}
	if err != nil {
		h.Logger.Error("extend reservation lookup failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to extend reservation")
		return
	}
	if status != "RESERVED" || !reservedUntil.Valid {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Table is not reserved")
		return
	}

	if err := validateReservationExtension(reservedUntil.Time, body.ReservedUntil, time.Now()); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	tag, err := h.DB.Exec(ctx, extendReservationSQL, tableID, body.ReservedUntil)
	if err != nil {
		h.Logger.Error("extend reservation failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to extend reservation")
		return
	}
	if tag.RowsAffected() == 0 {
		// The reservation was cancelled, swept or re-extended between the
		// read above and this update.
		response.Error(w, http.StatusConflict, "CONFLICT", "Reservation changed, please retry")
		return
	}

	h.respondWithTable(w, r, tableID)
}

// ReleaseExpiredReservations is the administrative trigger for the sweep
// the scheduler runs on its timer.
func (h *Handler) ReleaseExpiredReservations(w http.ResponseWriter, r *http.Request) {
	result := h.Scheduler.ReleaseExpired(r.Context())
	response.Success(w, result)
}

// ExpiringReservations lists reservations ending within ?minutes (default
// 15); read-only, used to warn the floor staff.
func (h *Handler) ExpiringReservations(w http.ResponseWriter, r *http.Request) {
	minutes := 15
	if raw := strings.TrimSpace(r.URL.Query().Get("minutes")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			minutes = parsed
		}
	}

	reservations, err := h.Scheduler.ExpiringWithin(r.Context(), minutes)
	if err != nil {
		h.Logger.Error("expiring reservations query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch expiring reservations")
		return
	}
	response.Success(w, reservations)
}

func (h *Handler) respondWithTable(w http.ResponseWriter, r *http.Request, tableID int64) {
	var table TableView
	var (
		currentBill   pgtype.Numeric
		orderTime     pgtype.Timestamptz
		customerName  pgtype.Text
		customerPhone pgtype.Text
		reservedFrom  pgtype.Timestamptz
		reservedUntil pgtype.Timestamptz
	)
	err := h.DB.QueryRow(r.Context(), `
		select id, table_number, status, current_bill, order_time, customer_name,
		       customer_phone, reserved_from, reserved_until, updated_at
		from restaurant_tables where id = $1
	`, tableID).Scan(&table.ID, &table.TableNumber, &table.Status, &currentBill, &orderTime,
		&customerName, &customerPhone, &reservedFrom, &reservedUntil, &table.UpdatedAt)
	if err != nil {
		h.Logger.Error("table reload failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Table updated but could not be loaded")
		return
	}
	if currentBill.Valid {
		v := utils.NumericToFloat64(currentBill)
		table.CurrentBill = &v
	}
	if orderTime.Valid {
		table.OrderTime = &orderTime.Time
	}
	if customerName.Valid {
		table.CustomerName = &customerName.String
	}
	if customerPhone.Valid {
		table.CustomerPhone = &customerPhone.String
	}
	if reservedFrom.Valid {
		table.ReservedFrom = &reservedFrom.Time
	}
	if reservedUntil.Valid {
		table.ReservedUntil = &reservedUntil.Time
	}
	if state := scheduler.ReservationState(table.Status, table.ReservedUntil, time.Now(), h.Config.ExpiringSoonWindow); state != "" {
		table.ReservationStatus = &state
	}

	response.Success(w, table)
}
