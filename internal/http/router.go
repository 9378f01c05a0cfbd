package httpapi

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"restaurant-pos-services/internal/config"
	"restaurant-pos-services/internal/http/handlers"
	"restaurant-pos-services/internal/middleware"
	"restaurant-pos-services/internal/queue"
	"restaurant-pos-services/internal/scheduler"
	"restaurant-pos-services/internal/stock"
	"restaurant-pos-services/internal/ws"
)

func NewRouter(db *pgxpool.Pool, logger *zap.Logger, cfg config.Config, queueClient *queue.Client, ledger *stock.Ledger, schd *scheduler.Scheduler, wsServer *ws.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Telemetry(logger))

	if cfg.Env == "development" || len(cfg.CorsAllowedOrigins) > 0 {
		options := cors.Options{
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{
				"Accept",
				"Authorization",
				"Content-Type",
				"X-Requested-With",
				"Cache-Control",
			},
			AllowCredentials: true,
			MaxAge:           300,
		}

		if cfg.Env == "development" {
			options.AllowOriginFunc = func(_ *http.Request, origin string) bool {
				return true
			}
		} else {
			options.AllowedOrigins = cfg.CorsAllowedOrigins
		}

		r.Use(cors.Handler(options))
	}

	h := &handlers.Handler{
		DB:        db,
		Logger:    logger,
		Config:    cfg,
		Queue:     queueClient,
		Ledger:    ledger,
		Scheduler: schd,
	}
	if wsServer != nil {
		h.Realtime = wsServer
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Aggregator platforms call in without staff credentials; signature
	// verification happens upstream in the gateway.
	r.Post("/api/delivery/webhook/{platform}", h.PlatformWebhook)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.StaffAuth(cfg.JWTSecret))

		r.Post("/orders", h.CreateOrder)
		r.Get("/orders", h.OrdersList)
		r.Get("/orders/active", h.ActiveOrders)
		r.Get("/orders/{orderId}", h.OrderDetail)
		r.Put("/orders/{orderId}/status", h.UpdateOrderStatus)

		r.Post("/delivery/takeaway", h.CreateTakeawayOrder)
		r.Post("/delivery/delivery", h.CreateDeliveryOrder)
		r.Put("/delivery/{orderId}/status", h.UpdateDeliveryStatus)

		r.Get("/tables", h.TablesList)
		r.Post("/tables/reserve", h.ReserveTable)
		r.Delete("/tables/{tableId}/reservation", h.CancelReservation)
		r.Put("/tables/{tableId}/reservation/extend", h.ExtendReservation)
		r.Post("/tables/release-expired", h.ReleaseExpiredReservations)
		r.Get("/tables/reservations/expiring", h.ExpiringReservations)

		r.Get("/ingredients", h.IngredientsList)
		r.Get("/ingredients/low-stock", h.LowStockIngredients)
		r.Post("/ingredients/{ingredientId}/add-stock", h.AddStock)
		r.Post("/ingredients/{ingredientId}/wastage", h.RecordWastage)
		r.Get("/ingredients/{ingredientId}/logs", h.IngredientStockLogs)
		r.Delete("/ingredients/{ingredientId}", h.DeleteIngredient)

		r.Get("/reports/sales", h.SalesSummary)
		r.Get("/reports/top-items", h.TopMenuItems)
	})

	if wsServer != nil {
		r.Get("/ws/events", wsServer.EventsWS)
	}

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info("",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
