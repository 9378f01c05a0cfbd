package ws

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"restaurant-pos-services/internal/auth"
	"restaurant-pos-services/internal/config"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server fans order, table and stock events out to connected staff
// dashboards. Handlers push into it through Broadcast; there is a single
// feed, every authenticated client sees every event.
type Server struct {
	DB     *pgxpool.Pool
	Logger *zap.Logger
	Config config.Config

	mu      sync.RWMutex
	clients map[*client]struct{}
}

func New(db *pgxpool.Pool, logger *zap.Logger, cfg config.Config) *Server {
	return &Server{
		DB:      db,
		Logger:  logger,
		Config:  cfg,
		clients: make(map[*client]struct{}),
	}
}

type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *client) writeJSON(value any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(value)
}

func (s *Server) subscribe(c *client) (unsubscribe func()) {
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.clients, c)
		s.mu.Unlock()
	}
}

// Broadcast sends one event to every connected client. A client whose write
// fails is closed and dropped; other clients are unaffected.
func (s *Server) Broadcast(event any) {
	s.mu.RLock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	for _, c := range clients {
		if err := c.writeJSON(event); err != nil {
			_ = c.conn.Close()
			s.mu.Lock()
			delete(s.clients, c)
			s.mu.Unlock()
		}
	}
}

type activeOrderSummary struct {
	ID         int64     `json:"id"`
	BillNumber string    `json:"billNumber"`
	OrderType  string    `json:"orderType"`
	Status     string    `json:"status"`
	TableID    *int64    `json:"tableId,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (s *Server) fetchActiveOrders(ctx context.Context) ([]activeOrderSummary, error) {
	rows, err := s.DB.Query(ctx, `
		select id, bill_number, order_type, status, table_id, updated_at
		from orders
		where status in ('PENDING', 'PREPARING', 'SERVED')
		order by created_at desc
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]activeOrderSummary, 0)
	for rows.Next() {
		var order activeOrderSummary
		var tableID pgtype.Int8
		if err := rows.Scan(&order.ID, &order.BillNumber, &order.OrderType, &order.Status, &tableID, &order.UpdatedAt); err != nil {
			return nil, err
		}
		if tableID.Valid {
			order.TableID = &tableID.Int64
		}
		out = append(out, order)
	}
	return out, rows.Err()
}

// EventsWS is the staff realtime endpoint. The JWT travels as a ?token=
// query parameter because browsers cannot set headers on websocket dials.
func (s *Server) EventsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	raw := r.URL.Query().Get("token")
	token := auth.ParseBearerToken(raw)
	if token == "" {
		token = strings.TrimSpace(raw)
	}
	claims, err := auth.VerifyAccessToken(token, s.Config.JWTSecret)
	if err != nil {
		_ = conn.WriteJSON(map[string]any{"type": "error", "message": "unauthorized"})
		return
	}

	c := &client{conn: conn}
	unsubscribe := s.subscribe(c)
	defer unsubscribe()

	_ = c.writeJSON(map[string]any{
		"type":        "connected",
		"user":        claims.UserID,
		"connectedAt": time.Now(),
	})

	// Initial snapshot so a freshly opened dashboard is not blank until the
	// next event.
	if snapshot, err := s.fetchActiveOrders(r.Context()); err == nil {
		_ = c.writeJSON(map[string]any{"type": "orders.snapshot", "data": snapshot})
	}

	if heartbeat := s.Config.WSHeartbeatInterval; heartbeat > 0 {
		done := make(chan struct{})
		defer close(done)
		go func() {
			ticker := time.NewTicker(heartbeat)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					if err := c.writeJSON(map[string]any{"type": "ping", "ts": time.Now()}); err != nil {
						return
					}
				}
			}
		}()
	}

	clientClosed := make(chan struct{})
	go func() {
		defer close(clientClosed)
		for {
			if _, _, readErr := conn.ReadMessage(); readErr != nil {
				return
			}
		}
	}()

	select {
	case <-clientClosed:
		return
	case <-r.Context().Done():
		return
	}
}
