package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"

	"restaurant-pos-services/internal/utils"
	"restaurant-pos-services/pkg/response"
)

type dailySales struct {
	Date     string  `json:"date"`
	Orders   int64   `json:"orders"`
	Subtotal float64 `json:"subtotal"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}

type topMenuItem struct {
	MenuItemID int64   `json:"menuItemId"`
	Name       string  `json:"name"`
	Quantity   int64   `json:"quantity"`
	Revenue    float64 `json:"revenue"`
}

func readDaysParam(r *http.Request, fallback int) int {
	days := fallback
	if raw := strings.TrimSpace(r.URL.Query().Get("days")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 1 && parsed <= 365 {
			days = parsed
		}
	}
	return days
}

// SalesSummary aggregates paid orders per day over the requested window.
func (h *Handler) SalesSummary(w http.ResponseWriter, r *http.Request) {
	days := readDaysParam(r, 7)

	rows, err := h.DB.Query(r.Context(), `
		select to_char(paid_at::date, 'YYYY-MM-DD') as day,
		       count(*), sum(subtotal), sum(tax_amount), sum(total_amount)
		from orders
		where status = 'PAID' and paid_at >= now() - make_interval(days => $1)
		group by day
		order by day desc
	`, days)
	if err != nil {
		h.Logger.Error("sales summary query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch sales summary")
		return
	}
	defer rows.Close()

	out := make([]dailySales, 0)
	for rows.Next() {
		var day dailySales
		var subtotal, tax, total pgtype.Numeric
		if err := rows.Scan(&day.Date, &day.Orders, &subtotal, &tax, &total); err != nil {
			h.Logger.Error("sales summary scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch sales summary")
			return
		}
		day.Subtotal = utils.NumericToFloat64(subtotal)
		day.Tax = utils.NumericToFloat64(tax)
		day.Total = utils.NumericToFloat64(total)
		out = append(out, day)
	}
	if err := rows.Err(); err != nil {
		h.Logger.Error("sales summary read failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch sales summary")
		return
	}

	response.Success(w, out)
}

// TopMenuItems ranks menu items by quantity sold on paid orders.
func (h *Handler) TopMenuItems(w http.ResponseWriter, r *http.Request) {
	days := readDaysParam(r, 30)

	rows, err := h.DB.Query(r.Context(), `
		select oi.menu_item_id, oi.item_name, sum(oi.quantity), sum(oi.item_price * oi.quantity)
		from order_items oi
		join orders o on o.id = oi.order_id
		where o.status = 'PAID' and o.paid_at >= now() - make_interval(days => $1)
		group by oi.menu_item_id, oi.item_name
		order by sum(oi.quantity) desc
		limit 10
	`, days)
	if err != nil {
		h.Logger.Error("top items query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch top items")
		return
	}
	defer rows.Close()

	out := make([]topMenuItem, 0)
	for rows.Next() {
		var item topMenuItem
		var revenue pgtype.Numeric
		if err := rows.Scan(&item.MenuItemID, &item.Name, &item.Quantity, &revenue); err != nil {
			h.Logger.Error("top items scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch top items")
			return
		}
		item.Revenue = utils.NumericToFloat64(revenue)
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		h.Logger.Error("top items read failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch top items")
		return
	}

	response.Success(w, out)
}
