package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/linemk/proshop/internal/domain/models"
	"github.com/linemk/proshop/internal/lib/background"
	"github.com/linemk/proshop/internal/storage"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidDiscount = errors.New("discount must be between 0 and 100")
	ErrInvalidPrice    = errors.New("price must not be negative")
	ErrInvalidName     = errors.New("name must not be empty")
)

// ProductUpdate - частичное обновление товара, nil-поля не меняются
type ProductUpdate struct {
	Name     *string
	Price    *decimal.Decimal
	Discount *float64
}

type ProductService interface {
	UpdateProduct(ctx context.Context, id int64, upd ProductUpdate) (*models.Product, error)
}

type productService struct {
	log         *slog.Logger
	db          *sql.DB
	productRepo storage.ProductStorage
	dispatcher  *OfferDispatcher
	runner      background.Submitter
}

func NewProductService(log *slog.Logger, db *sql.DB, productRepo storage.ProductStorage, dispatcher *OfferDispatcher, runner background.Submitter) ProductService {
	return &productService{
		log:         log,
		db:          db,
		productRepo: productRepo,
		dispatcher:  dispatcher,
		runner:      runner,
	}
}

// UpdateProduct применяет изменения в транзакции с блокировкой строки товара,
// поэтому прежняя скидка читается согласованно с записью новой.
// После коммита, если скидка пересекла порог, рассылка ставится в фон;
// ответ не ждет рассылку и не зависит от ее результата.
func (s *productService) UpdateProduct(ctx context.Context, id int64, upd ProductUpdate) (*models.Product, error) {
	const op = "service.ProductService.UpdateProduct"
	logger := s.log.With(slog.String("op", op), slog.Int64("productID", id))

	if err := validateProductUpdate(upd); err != nil {
		logger.Warn("invalid product update", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	product, err := s.productRepo.LockProductByIDTx(ctx, tx, id)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Error("failed to lock product", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to lock product: %w", op, err)
	}

	previous := product.Discount
	if upd.Name != nil {
		product.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Price != nil {
		product.Price = *upd.Price
	}
	if upd.Discount != nil {
		product.Discount = *upd.Discount
	}

	if err := s.productRepo.UpdateProductTx(ctx, tx, product); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Error("failed to update product", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to update product: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}
	logger.Info("product updated", slog.Float64("previousDiscount", previous), slog.Float64("discount", product.Discount))

	if IsBigOffer(&previous, upd.Discount) {
		s.scheduleOffer(logger, *product)
	}
	return product, nil
}

func (s *productService) scheduleOffer(logger *slog.Logger, product models.Product) {
	discount := product.Discount
	ok := s.runner.Submit("offer_fanout", func(ctx context.Context) error {
		return s.dispatcher.Dispatch(ctx, product, discount)
	})
	if !ok {
		logger.Error("offer fan-out was not scheduled")
		return
	}
	logger.Info("offer fan-out scheduled")
}

func validateProductUpdate(upd ProductUpdate) error {
	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
		return ErrInvalidName
	}
	if upd.Price != nil && upd.Price.IsNegative() {
		return ErrInvalidPrice
	}
	if upd.Discount != nil {
		d := *upd.Discount
		if math.IsNaN(d) || d < 0 || d > 100 {
			return ErrInvalidDiscount
		}
	}
	return nil
}
