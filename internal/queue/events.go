package queue

import "time"

// Routing keys published on the events exchange.
const (
	KeyOrderCreated       = "order.created"
	KeyOrderStatusUpdated = "order.status.updated"
	KeyDeliveryStatus     = "order.delivery.status"
	KeyTableReleased      = "table.released"
	KeyStockLow           = "stock.low"
)

type OrderEvent struct {
	OrderID    int64     `json:"orderId"`
	BillNumber string    `json:"billNumber"`
	OrderType  string    `json:"orderType"`
	Status     string    `json:"status"`
	TableID    *int64    `json:"tableId,omitempty"`
	Total      float64   `json:"total"`
	OccurredAt time.Time `json:"occurredAt"`
}

type DeliveryEvent struct {
	OrderID        int64     `json:"orderId"`
	BillNumber     string    `json:"billNumber"`
	Platform       string    `json:"platform"`
	DeliveryStatus string    `json:"deliveryStatus"`
	OccurredAt     time.Time `json:"occurredAt"`
}

type TableReleasedEvent struct {
	TableID     int64     `json:"tableId"`
	TableNumber string    `json:"tableNumber"`
	NewStatus   string    `json:"newStatus"`
	OccurredAt  time.Time `json:"occurredAt"`
}

type StockLowEvent struct {
	IngredientID int64     `json:"ingredientId"`
	Name         string    `json:"name"`
	CurrentStock float64   `json:"currentStock"`
	MinStock     float64   `json:"minStock"`
	OccurredAt   time.Time `json:"occurredAt"`
}
