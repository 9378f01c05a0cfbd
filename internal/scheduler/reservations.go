package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"restaurant-pos-services/internal/queue"
)

// Reservation display states derived from the table row; nothing here is
// stored.
const (
	StateActive       = "active"
	StateExpiringSoon = "expiring_soon"
	StateExpired      = "expired"
)

// ReservationState derives the display state for a table. Returns "" for
// tables that are not reserved.
func ReservationState(status string, reservedUntil *time.Time, now time.Time, soonWindow time.Duration) string {
	if status != "RESERVED" || reservedUntil == nil {
		return ""
	}
	until := *reservedUntil
	switch {
	case !now.Before(until):
		return StateExpired
	case until.Sub(now) <= soonWindow:
		return StateExpiringSoon
	default:
		return StateActive
	}
}

// Result summarizes one sweep. Errors are collected, never propagated, so a
// bad table cannot halt the sweep or future ticks.
type Result struct {
	Checked  int       `json:"checked"`
	Released int       `json:"released"`
	Occupied int       `json:"occupied"`
	Errors   []string  `json:"errors,omitempty"`
	SweptAt  time.Time `json:"sweptAt"`
}

type ExpiringReservation struct {
	TableID       int64     `json:"tableId"`
	TableNumber   string    `json:"tableNumber"`
	CustomerName  *string   `json:"customerName"`
	CustomerPhone *string   `json:"customerPhone"`
	ReservedUntil time.Time `json:"reservedUntil"`
}

// Scheduler keeps table status consistent with time-bounded reservations.
// It owns the only timer-driven flow in the process; everything else runs
// per-request.
type Scheduler struct {
	DB       *pgxpool.Pool
	Logger   *zap.Logger
	Queue    *queue.Client
	Interval time.Duration

	done chan struct{}
}

func New(db *pgxpool.Pool, logger *zap.Logger, queueClient *queue.Client, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{DB: db, Logger: logger, Queue: queueClient, Interval: interval, done: make(chan struct{})}
}

// Start runs the sweep loop until ctx is cancelled. Call in its own
// goroutine; Wait blocks until the loop exits.
func (s *Scheduler) Start(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Logger.Info("reservation scheduler started", zap.Duration("interval", s.Interval))
	for {
		select {
		case <-ctx.Done():
			s.Logger.Info("reservation scheduler stopped")
			return
		case <-ticker.C:
			result := s.ReleaseExpired(ctx)
			if result.Checked > 0 || len(result.Errors) > 0 {
				s.Logger.Info("reservation sweep",
					zap.Int("checked", result.Checked),
					zap.Int("released", result.Released),
					zap.Int("occupied", result.Occupied),
					zap.Strings("errors", result.Errors),
				)
			}
		}
	}
}

func (s *Scheduler) Wait() {
	<-s.done
}

// ReleaseExpired resolves every RESERVED table whose window has passed.
// Tables with an active order lapse into OCCUPIED keeping customer fields;
// idle tables are fully released. Each table is its own transaction, and
// re-running with no intervening change is a no-op.
func (s *Scheduler) ReleaseExpired(ctx context.Context) Result {
	result := Result{SweptAt: time.Now()}

	rows, err := s.DB.Query(ctx, `
		select id, table_number
		from restaurant_tables
		where status = 'RESERVED' and reserved_until < now()
		order by reserved_until asc
	`)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("scan expired reservations: %v", err))
		return result
	}

	type expired struct {
		id     int64
		number string
	}
	tables := make([]expired, 0)
	for rows.Next() {
		var t expired
		if err := rows.Scan(&t.id, &t.number); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("scan table row: %v", err))
			continue
		}
		tables = append(tables, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("read expired reservations: %v", err))
	}

	for _, table := range tables {
		result.Checked++
		newStatus, err := s.resolveTable(ctx, table.id)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("table %s: %v", table.number, err))
			continue
		}
		switch newStatus {
		case "OCCUPIED":
			result.Occupied++
		case "AVAILABLE":
			result.Released++
		}
		s.publishReleased(ctx, table.id, table.number, newStatus)
	}

	return result
}

func (s *Scheduler) resolveTable(ctx context.Context, tableID int64) (string, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var activeOrders int64
	if err := tx.QueryRow(ctx, `
		select count(*) from orders
		where table_id = $1 and status in ('PENDING', 'PREPARING', 'SERVED')
	`, tableID).Scan(&activeOrders); err != nil {
		return "", err
	}

	newStatus := "AVAILABLE"
	if activeOrders > 0 {
		// Reservation lapsed into real occupancy: keep customer and bill,
		// drop only the reservation window.
		newStatus = "OCCUPIED"
		if _, err := tx.Exec(ctx, `
			update restaurant_tables
			set status = 'OCCUPIED', reserved_from = null, reserved_until = null, updated_at = now()
			where id = $1 and status = 'RESERVED'
		`, tableID); err != nil {
			return "", err
		}
	} else {
		if _, err := tx.Exec(ctx, `
			update restaurant_tables
			set status = 'AVAILABLE', customer_name = null, customer_phone = null,
			    reserved_from = null, reserved_until = null, current_bill = null,
			    order_time = null, updated_at = now()
			where id = $1 and status = 'RESERVED'
		`, tableID); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return newStatus, nil
}

func (s *Scheduler) publishReleased(ctx context.Context, tableID int64, tableNumber string, newStatus string) {
	if s.Queue == nil {
		return
	}
	event := queue.TableReleasedEvent{
		TableID:     tableID,
		TableNumber: tableNumber,
		NewStatus:   newStatus,
		OccurredAt:  time.Now(),
	}
	if err := s.Queue.PublishJSON(ctx, queue.KeyTableReleased, event); err != nil {
		s.Logger.Warn("table release event publish failed", zap.Error(err))
	}
}

// ExpiringWithin lists RESERVED tables whose window ends inside
// (now, now+minutesAhead]. Read-only; used for notifications.
func (s *Scheduler) ExpiringWithin(ctx context.Context, minutesAhead int) ([]ExpiringReservation, error) {
	if minutesAhead <= 0 {
		minutesAhead = 15
	}
	rows, err := s.DB.Query(ctx, `
		select id, table_number, customer_name, customer_phone, reserved_until
		from restaurant_tables
		where status = 'RESERVED'
		  and reserved_until > now()
		  and reserved_until <= now() + make_interval(mins => $1)
		order by reserved_until asc
	`, minutesAhead)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]ExpiringReservation, 0)
	for rows.Next() {
		var res ExpiringReservation
		if err := rows.Scan(&res.TableID, &res.TableNumber, &res.CustomerName, &res.CustomerPhone, &res.ReservedUntil); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}
