package models

import "github.com/shopspring/decimal"

// Product представляет товар каталога.
// Для ядра важны только цена и скидка, остальные поля каталога здесь не хранятся.
type Product struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Discount float64         `json:"discount"` // процент скидки, 0..100
}

// DiscountedPrice возвращает цену с учетом скидки, округленную до копеек
func (p *Product) DiscountedPrice() decimal.Decimal {
	if p.Discount <= 0 {
		return p.Price
	}
	factor := decimal.NewFromInt(100).Sub(decimal.NewFromFloat(p.Discount)).Div(decimal.NewFromInt(100))
	return p.Price.Mul(factor).Round(2)
}
