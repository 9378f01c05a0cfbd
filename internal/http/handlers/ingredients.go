package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"restaurant-pos-services/internal/queue"
	"restaurant-pos-services/internal/stock"
	"restaurant-pos-services/pkg/response"
)

func (h *Handler) IngredientsList(w http.ResponseWriter, r *http.Request) {
	ingredients, err := h.Ledger.ListIngredients(r.Context())
	if err != nil {
		h.Logger.Error("ingredients list failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch ingredients")
		return
	}
	response.Success(w, ingredients)
}

func (h *Handler) LowStockIngredients(w http.ResponseWriter, r *http.Request) {
	ingredients, err := h.Ledger.LowStock(r.Context())
	if err != nil {
		h.Logger.Error("low stock query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch low stock ingredients")
		return
	}
	response.Success(w, ingredients)
}

type stockAdjustmentRequest struct {
	Quantity float64 `json:"quantity"`
	Notes    string  `json:"notes"`
}

// AddStock records a purchase against an ingredient.
func (h *Handler) AddStock(w http.ResponseWriter, r *http.Request) {
	h.adjustStock(w, r, stock.ChangePurchase)
}

// RecordWastage records spoilage/loss against an ingredient.
func (h *Handler) RecordWastage(w http.ResponseWriter, r *http.Request) {
	h.adjustStock(w, r, stock.ChangeWastage)
}

func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request, changeType string) {
	ctx := r.Context()

	ingredientID, err := readPathInt64(r, "ingredientId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid ingredient id")
		return
	}

	var body stockAdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	var ingredient *stock.Ingredient
	if changeType == stock.ChangePurchase {
		ingredient, err = h.Ledger.AddStock(ctx, ingredientID, body.Quantity, body.Notes)
	} else {
		ingredient, err = h.Ledger.RecordWastage(ctx, ingredientID, body.Quantity, body.Notes)
	}
	if err != nil {
		if h.writeStockError(w, err) {
			return
		}
		h.Logger.Error("stock adjustment failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to adjust stock")
		return
	}

	if ingredient.LowStock {
		h.publishEvent(ctx, queue.KeyStockLow, queue.StockLowEvent{
			IngredientID: ingredient.ID,
			Name:         ingredient.Name,
			CurrentStock: ingredient.CurrentStock,
			MinStock:     ingredient.MinStock,
			OccurredAt:   time.Now(),
		})
	}

	response.Success(w, ingredient)
}

func (h *Handler) IngredientStockLogs(w http.ResponseWriter, r *http.Request) {
	ingredientID, err := readPathInt64(r, "ingredientId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid ingredient id")
		return
	}

	logs, err := h.Ledger.History(r.Context(), ingredientID, 100)
	if err != nil {
		h.Logger.Error("stock log query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch stock logs")
		return
	}
	response.Success(w, logs)
}

func (h *Handler) DeleteIngredient(w http.ResponseWriter, r *http.Request) {
	ingredientID, err := readPathInt64(r, "ingredientId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid ingredient id")
		return
	}

	if err := h.Ledger.DeleteIngredient(r.Context(), ingredientID); err != nil {
		if h.writeStockError(w, err) {
			return
		}
		h.Logger.Error("ingredient delete failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete ingredient")
		return
	}

	response.Success(w, map[string]any{"deleted": true})
}
