package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// статусы заказа
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

// Order представляет заказ, оформленный пользователем.
// Позиции хранят снимок имени и цены товара на момент оформления.
type Order struct {
	ID              uuid.UUID       `json:"id"`
	UserID          int64           `json:"user_id"`
	Items           []OrderItem     `json:"items"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	IsPaid          bool            `json:"is_paid"`
	IsDelivered     bool            `json:"is_delivered"`
	Status          string          `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
}

// OrderItem - позиция заказа
type OrderItem struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Subtotal возвращает стоимость позиции по снимку цены
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type ShippingAddress struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// ShortID возвращает короткий фрагмент идентификатора для сообщений
func (o *Order) ShortID() string {
	s := o.ID.String()
	if len(s) > 6 {
		s = s[:6]
	}
	return strings.ToUpper(s)
}
