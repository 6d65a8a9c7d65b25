package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusCancelled = "cancelled"
)

func init() {
	// Prices travel as JSON numbers, as the storefront frontend expects.
	decimal.MarshalJSONWithoutQuotes = true
}

type Order struct {
	ID         int             `json:"id"`
	UserID     int             `json:"user_id"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Status     string          `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	Items      []OrderItem     `json:"items"`
}

type OrderItem struct {
	ProductID int             `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// OrderLine is one requested (product, quantity) pair.
type OrderLine struct {
	ProductID int `json:"product_id" binding:"required,gt=0"`
	Quantity  int `json:"quantity" binding:"required,gt=0"`
}

type PlaceOrderRequest struct {
	UserID int         `json:"user_id"`
	Items  []OrderLine `json:"items" binding:"required,min=1,dive"`
}

type PlacedOrder struct {
	OrderID    int             `json:"order_id"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

const (
	EventOrderCreated   = "order.created"
	EventOrderCancelled = "order.cancelled"
)

type OrderEvent struct {
	OrderID  int             `json:"order_id"`
	UserID   int             `json:"user_id"`
	Type     string          `json:"type"`
	Status   string          `json:"status"`
	Total    decimal.Decimal `json:"total"`
	Items    []OrderItem     `json:"items,omitempty"`
	Occurred time.Time       `json:"occurred"`
}
