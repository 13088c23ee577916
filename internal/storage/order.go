package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/linemk/proshop/internal/domain/models"
)

var ErrOrderNotFound = errors.New("order not found")

// OrderStorage описывает методы для работы с заказами.
type OrderStorage interface {
	// CreateOrderTx вставляет заказ и его позиции в рамках транзакции.
	CreateOrderTx(ctx context.Context, tx *sql.Tx, order *models.Order) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	// GetOrdersByUserID возвращает заказы пользователя вместе с позициями, новые первыми.
	GetOrdersByUserID(ctx context.Context, userID int64) ([]*models.Order, error)
	// ListLedger возвращает все заказы вместе с позициями - источник данных для аналитики.
	ListLedger(ctx context.Context) ([]*models.Order, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status string, delivered bool) error
	MarkOrderPaid(ctx context.Context, id uuid.UUID) error
}

// orderRepository — конкретная реализация OrderStorage.
type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт новый репозиторий заказов.
func NewOrderRepository(db *sql.DB) OrderStorage {
	return &orderRepository{db: db}
}

const orderColumns = `id, user_id, shipping_address, shipping_city, shipping_postal_code, shipping_country,
		total_price, is_paid, is_delivered, status, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	order := &models.Order{}
	err := row.Scan(
		&order.ID, &order.UserID,
		&order.ShippingAddress.Address, &order.ShippingAddress.City,
		&order.ShippingAddress.PostalCode, &order.ShippingAddress.Country,
		&order.TotalPrice, &order.IsPaid, &order.IsDelivered, &order.Status, &order.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) CreateOrderTx(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	query := `INSERT INTO orders (id, user_id, shipping_address, shipping_city, shipping_postal_code, shipping_country,
		total_price, is_paid, is_delivered, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := tx.ExecContext(ctx, query,
		order.ID, order.UserID,
		order.ShippingAddress.Address, order.ShippingAddress.City,
		order.ShippingAddress.PostalCode, order.ShippingAddress.Country,
		order.TotalPrice, order.IsPaid, order.IsDelivered, order.Status, order.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	itemQuery := `INSERT INTO order_items (order_id, product_id, name, quantity, unit_price) VALUES ($1, $2, $3, $4, $5)`
	for _, item := range order.Items {
		if _, err := tx.ExecContext(ctx, itemQuery, order.ID, item.ProductID, item.Name, item.Quantity, item.UnitPrice); err != nil {
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}
	return nil
}

func (r *orderRepository) GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if err := r.attachItems(ctx, []*models.Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) GetOrdersByUserID(ctx context.Context, userID int64) ([]*models.Order, error) {
	orders, err := r.queryOrders(ctx, "SELECT "+orderColumns+" FROM orders WHERE user_id = $1 ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, err
	}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) ListLedger(ctx context.Context) ([]*models.Order, error) {
	orders, err := r.queryOrders(ctx, "SELECT "+orderColumns+" FROM orders ORDER BY created_at")
	if err != nil {
		return nil, err
	}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) queryOrders(ctx context.Context, query string, args ...any) ([]*models.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

// attachItems одним запросом подгружает позиции для переданных заказов
func (r *orderRepository) attachItems(ctx context.Context, orders []*models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, 0, len(orders))
	byID := make(map[uuid.UUID]*models.Order, len(orders))
	for _, order := range orders {
		ids = append(ids, order.ID.String())
		byID[order.ID] = order
	}

	query := `SELECT order_id, product_id, name, quantity, unit_price
		FROM order_items
		WHERE order_id = ANY($1::uuid[])
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var orderID uuid.UUID
		var item models.OrderItem
		if err := rows.Scan(&orderID, &item.ProductID, &item.Name, &item.Quantity, &item.UnitPrice); err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		if order, ok := byID[orderID]; ok {
			order.Items = append(order.Items, item)
		}
	}
	return rows.Err()
}

func (r *orderRepository) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status string, delivered bool) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, is_delivered = is_delivered OR $2 WHERE id = $3",
		status, delivered, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	return expectAffected(res, ErrOrderNotFound)
}

func (r *orderRepository) MarkOrderPaid(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, "UPDATE orders SET is_paid = TRUE WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to mark order paid: %w", err)
	}
	return expectAffected(res, ErrOrderNotFound)
}

// expectAffected возвращает notFound, если запрос не затронул ни одной строки
func expectAffected(res sql.Result, notFound error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return notFound
	}
	return nil
}
