package models_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/linemk/proshop/internal/domain/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestProduct_DiscountedPrice(t *testing.T) {
	tests := []struct {
		price    string
		discount float64
		want     string
	}{
		{"100", 0, "100"},
		{"100", 25, "75"},
		{"9.99", 10, "8.99"},
		{"19.99", 33.3, "13.33"},
	}
	for _, tt := range tests {
		p := models.Product{Price: decimal.RequireFromString(tt.price), Discount: tt.discount}
		assert.True(t, decimal.RequireFromString(tt.want).Equal(p.DiscountedPrice()), "%s at %v%% = %s", tt.price, tt.discount, p.DiscountedPrice())
	}
}

func TestOrder_ShortID(t *testing.T) {
	o := models.Order{ID: uuid.MustParse("9f3c2a10-1111-2222-3333-444455556666")}
	assert.Equal(t, "9F3C2A", o.ShortID())
}

func TestOrderItem_Subtotal(t *testing.T) {
	item := models.OrderItem{Quantity: 3, UnitPrice: decimal.RequireFromString("0.10")}
	assert.Equal(t, "0.3", item.Subtotal().String())
}
