package handlers

import "time"

// Order response types

type OrderModificationView struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int32   `json:"quantity"`
}

type OrderItemView struct {
	ID            int64                   `json:"id"`
	MenuItemID    int64                   `json:"menuItemId"`
	Name          string                  `json:"name"`
	Price         float64                 `json:"price"`
	Quantity      int32                   `json:"quantity"`
	Notes         *string                 `json:"notes"`
	Modifications []OrderModificationView `json:"modifications"`
}

type DeliveryInfoView struct {
	ID                  int64   `json:"id"`
	CustomerName        string  `json:"customerName"`
	CustomerPhone       *string `json:"customerPhone"`
	Address             *string `json:"address"`
	Platform            string  `json:"platform"`
	PlatformOrderID     *string `json:"platformOrderId"`
	DeliveryStatus      string  `json:"deliveryStatus"`
	DeliveryFee         float64 `json:"deliveryFee"`
	PackagingFee        float64 `json:"packagingFee"`
	SpecialInstructions *string `json:"specialInstructions"`
}

type OrderView struct {
	ID           int64             `json:"id"`
	BillNumber   string            `json:"billNumber"`
	OrderType    string            `json:"orderType"`
	TableID      *int64            `json:"tableId"`
	Status       string            `json:"status"`
	Subtotal     float64           `json:"subtotal"`
	Tax          float64           `json:"tax"`
	DeliveryFee  float64           `json:"deliveryFee"`
	PackagingFee float64           `json:"packagingFee"`
	Total        float64           `json:"total"`
	PaymentMode  *string           `json:"paymentMode"`
	PaidAt       *time.Time        `json:"paidAt"`
	CreatedAt    time.Time         `json:"createdAt"`
	Items        []OrderItemView   `json:"orderItems"`
	DeliveryInfo *DeliveryInfoView `json:"deliveryInfo,omitempty"`
}

// Table response types

type TableView struct {
	ID                int64      `json:"id"`
	TableNumber       string     `json:"tableNumber"`
	Status            string     `json:"status"`
	CurrentBill       *float64   `json:"currentBill"`
	OrderTime         *time.Time `json:"orderTime"`
	CustomerName      *string    `json:"customerName"`
	CustomerPhone     *string    `json:"customerPhone"`
	ReservedFrom      *time.Time `json:"reservedFrom"`
	ReservedUntil     *time.Time `json:"reservedUntil"`
	ReservationStatus *string    `json:"reservationStatus"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}
