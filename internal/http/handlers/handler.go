package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"restaurant-pos-services/internal/config"
	"restaurant-pos-services/internal/queue"
	"restaurant-pos-services/internal/scheduler"
	"restaurant-pos-services/internal/stock"
	"restaurant-pos-services/pkg/response"
)

// Broadcaster pushes events to connected websocket clients. Implemented by
// the ws server; nil-safe via the publish helpers below.
type Broadcaster interface {
	Broadcast(event any)
}

type Handler struct {
	DB        *pgxpool.Pool
	Logger    *zap.Logger
	Config    config.Config
	Queue     *queue.Client
	Ledger    *stock.Ledger
	Scheduler *scheduler.Scheduler
	Realtime  Broadcaster
}

func zapError(err error) zap.Field {
	return zap.Error(err)
}

func readPathString(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}

func readPathInt64(r *http.Request, key string) (int64, error) {
	value := readPathString(r, key)
	if value == "" {
		return 0, errMissingParam
	}
	var out int64
	_, err := fmt.Sscan(value, &out)
	return out, err
}

var errMissingParam = errors.New("missing param")

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// publishEvent fans an event out to RabbitMQ and the websocket board.
// Best-effort on both legs: a missing broker or a failed publish never fails
// the request that produced the event.
func (h *Handler) publishEvent(ctx context.Context, routingKey string, payload any) {
	if h.Realtime != nil {
		h.Realtime.Broadcast(map[string]any{"type": routingKey, "data": payload, "ts": time.Now()})
	}
	if h.Queue == nil {
		return
	}
	if err := h.Queue.PublishJSON(ctx, routingKey, payload); err != nil {
		h.Logger.Warn("event publish failed", zap.String("routingKey", routingKey), zapError(err))
	}
}

// writeStockError maps Stock Ledger errors onto the HTTP taxonomy. Returns
// false when err is not a ledger error the caller should surface as-is.
func (h *Handler) writeStockError(w http.ResponseWriter, err error) bool {
	var insufficient *stock.InsufficientStockError
	if errors.As(err, &insufficient) {
		response.Error(w, http.StatusBadRequest, "INSUFFICIENT_STOCK", insufficient.Error())
		return true
	}
	var noInventory *stock.NoInventoryRecordError
	if errors.As(err, &noInventory) {
		response.Error(w, http.StatusBadRequest, "NO_INVENTORY_RECORD", noInventory.Error())
		return true
	}
	var inUse *stock.IngredientInUseError
	if errors.As(err, &inUse) {
		response.Error(w, http.StatusBadRequest, "INGREDIENT_IN_USE", inUse.Error())
		return true
	}
	var invalid *stock.ValidationError
	if errors.As(err, &invalid) {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", invalid.Error())
		return true
	}
	if errors.Is(err, stock.ErrIngredientNotFound) {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Ingredient not found")
		return true
	}
	return false
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
