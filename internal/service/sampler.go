package service

import (
	"context"
	"log/slog"
	"math/rand/v2"

	"github.com/linemk/proshop/internal/storage"
	"github.com/shopspring/decimal"
)

// диапазоны синтетических значений: salesCount в [10, 110), revenue в [1000.00, 6000.00)
const (
	sampleMinSales      = 10
	sampleSalesSpan     = 100
	sampleMinRevenueCts = 100000
	sampleRevenueSpan   = 500000
	sampleSeedSalt      = 0x70726f73686f70
)

// CatalogSampler подставляет правдоподобные значения продаж для первых товаров каталога,
// когда в журнале заказов еще нет ни одной позиции. Все записи помечены как synthetic
// и никогда не смешиваются с реальными продажами.
// Значения детерминированы: генератор засевается id товара, поэтому дашборд
// не "прыгает" между запросами.
type CatalogSampler struct {
	log         *slog.Logger
	productRepo storage.ProductStorage
}

func NewCatalogSampler(log *slog.Logger, productRepo storage.ProductStorage) *CatalogSampler {
	return &CatalogSampler{log: log, productRepo: productRepo}
}

// Sample никогда не возвращает ошибку: при недоступном каталоге результат пустой
func (s *CatalogSampler) Sample(ctx context.Context, limit int) []TopProduct {
	const op = "service.CatalogSampler.Sample"

	if limit <= 0 {
		return []TopProduct{}
	}

	products, err := s.productRepo.ListProducts(ctx, limit)
	if err != nil {
		s.log.Warn("catalog unavailable, returning empty sample", slog.String("op", op), slog.Any("error", err))
		return []TopProduct{}
	}

	result := make([]TopProduct, 0, len(products))
	for _, p := range products {
		rnd := rand.New(rand.NewPCG(uint64(p.ID), sampleSeedSalt))
		result = append(result, TopProduct{
			ProductID:  p.ID,
			Name:       p.Name,
			SalesCount: sampleMinSales + rnd.IntN(sampleSalesSpan),
			Revenue:    decimal.New(int64(sampleMinRevenueCts+rnd.IntN(sampleRevenueSpan)), -2),
			Synthetic:  true,
		})
	}
	return result
}
