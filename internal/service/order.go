package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/linemk/proshop/internal/domain/models"
	"github.com/linemk/proshop/internal/storage"
	"github.com/shopspring/decimal"
)

var (
	ErrEmptyOrder      = errors.New("order has no items")
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrInvalidStatus   = errors.New("invalid order status")
	ErrForbidden       = errors.New("forbidden")
)

var orderStatuses = []string{
	models.OrderStatusPending,
	models.OrderStatusProcessing,
	models.OrderStatusShipped,
	models.OrderStatusDelivered,
	models.OrderStatusCancelled,
}

type OrderItemInput struct {
	ProductID int64
	Quantity  int
}

type CreateOrderInput struct {
	Items           []OrderItemInput
	ShippingAddress models.ShippingAddress
}

type OrderService interface {
	CreateOrder(ctx context.Context, userID int64, in CreateOrderInput) (*models.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.Order, error)
	MarkPaid(ctx context.Context, id uuid.UUID, callerID int64, isAdmin bool) (*models.Order, error)
	ListMine(ctx context.Context, userID int64) ([]*models.Order, error)
}

// OrderEvents - то, что сервису заказов нужно от публикатора событий
type OrderEvents interface {
	Publish(ctx context.Context, order *models.Order, actor *models.User) error
	PublishStatusChange(ctx context.Context, order *models.Order) error
}

type orderService struct {
	log         *slog.Logger
	db          *sql.DB
	userRepo    storage.UserStorage
	productRepo storage.ProductStorage
	orderRepo   storage.OrderStorage
	events      OrderEvents
	now         func() time.Time
}

func NewOrderService(log *slog.Logger, db *sql.DB, userRepo storage.UserStorage, productRepo storage.ProductStorage, orderRepo storage.OrderStorage, events OrderEvents) OrderService {
	return &orderService{
		log:         log,
		db:          db,
		userRepo:    userRepo,
		productRepo: productRepo,
		orderRepo:   orderRepo,
		events:      events,
		now:         time.Now,
	}
}

// CreateOrder оформляет заказ: позиции фиксируют имя товара и цену со скидкой
// на момент оформления. Уведомление пишется после коммита и на результат не влияет.
func (s *orderService) CreateOrder(ctx context.Context, userID int64, in CreateOrderInput) (*models.Order, error) {
	const op = "service.OrderService.CreateOrder"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID))

	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyOrder)
	}
	for _, item := range in.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%s: product %d: %w", op, item.ProductID, ErrInvalidQuantity)
		}
	}

	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		logger.Error("failed to get user", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get user: %w", op, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	order := &models.Order{
		ID:              uuid.New(),
		UserID:          userID,
		ShippingAddress: in.ShippingAddress,
		TotalPrice:      decimal.Zero,
		Status:          models.OrderStatusPending,
		CreatedAt:       s.now().UTC(),
	}
	for _, item := range in.Items {
		product, err := s.productRepo.GetProductByIDTx(ctx, tx, item.ProductID)
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logger.Error("transaction rollback failed", slog.Any("error", rbErr))
			}
			logger.Error("failed to get product", slog.Int64("productID", item.ProductID), slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to get product %d: %w", op, item.ProductID, err)
		}

		line := models.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			Quantity:  item.Quantity,
			UnitPrice: product.DiscountedPrice(),
		}
		order.Items = append(order.Items, line)
		order.TotalPrice = order.TotalPrice.Add(line.Subtotal())
	}

	if err := s.orderRepo.CreateOrderTx(ctx, tx, order); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Error("failed to create order", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to create order: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}
	logger.Info("order created", slog.String("orderID", order.ID.String()), slog.String("total", order.TotalPrice.StringFixed(2)))

	if err := s.events.Publish(ctx, order, user); err != nil {
		logger.Error("failed to publish order notification", slog.Any("error", err))
	}
	return order, nil
}

// UpdateStatus меняет статус заказа; статус delivered выставляет и флаг доставки.
// Владелец заказа получает уведомление, ошибка уведомления только журналируется.
func (s *orderService) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.Order, error) {
	const op = "service.OrderService.UpdateStatus"
	logger := s.log.With(slog.String("op", op), slog.String("orderID", id.String()), slog.String("status", status))

	if !slices.Contains(orderStatuses, status) {
		return nil, fmt.Errorf("%s: %q: %w", op, status, ErrInvalidStatus)
	}

	delivered := status == models.OrderStatusDelivered
	if err := s.orderRepo.UpdateOrderStatus(ctx, id, status, delivered); err != nil {
		logger.Error("failed to update order status", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to update order status: %w", op, err)
	}

	order, err := s.orderRepo.GetOrderByID(ctx, id)
	if err != nil {
		logger.Error("failed to reload order", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to reload order: %w", op, err)
	}
	logger.Info("order status updated")

	if err := s.events.PublishStatusChange(ctx, order); err != nil {
		logger.Error("failed to publish status notification", slog.Any("error", err))
	}
	return order, nil
}

// MarkPaid отмечает заказ оплаченным. Доступно владельцу заказа и администратору.
func (s *orderService) MarkPaid(ctx context.Context, id uuid.UUID, callerID int64, isAdmin bool) (*models.Order, error) {
	const op = "service.OrderService.MarkPaid"
	logger := s.log.With(slog.String("op", op), slog.String("orderID", id.String()), slog.Int64("callerID", callerID))

	order, err := s.orderRepo.GetOrderByID(ctx, id)
	if err != nil {
		logger.Error("failed to get order", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get order: %w", op, err)
	}
	if order.UserID != callerID && !isAdmin {
		logger.Warn("caller does not own the order")
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}
	if order.IsPaid {
		return order, nil
	}

	if err := s.orderRepo.MarkOrderPaid(ctx, id); err != nil {
		logger.Error("failed to mark order paid", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to mark order paid: %w", op, err)
	}
	order.IsPaid = true
	logger.Info("order paid")
	return order, nil
}

func (s *orderService) ListMine(ctx context.Context, userID int64) ([]*models.Order, error) {
	const op = "service.OrderService.ListMine"

	orders, err := s.orderRepo.GetOrdersByUserID(ctx, userID)
	if err != nil {
		s.log.Error("failed to list orders", slog.String("op", op), slog.Int64("userID", userID), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return orders, nil
}
