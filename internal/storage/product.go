package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/linemk/proshop/internal/domain/models"
)

// ProductStorage описывает методы для работы с каталогом.
type ProductStorage interface {
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	// GetProductByIDTx читает товар внутри транзакции оформления заказа.
	GetProductByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Product, error)
	// LockProductByIDTx блокирует строку товара до конца транзакции.
	LockProductByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Product, error)
	UpdateProductTx(ctx context.Context, tx *sql.Tx, product *models.Product) error
	// ListProducts возвращает первые limit товаров по возрастанию id.
	ListProducts(ctx context.Context, limit int) ([]*models.Product, error)
}

var (
	ErrProductNotFound = errors.New("product not found")
	// ErrProductLocked - строку товара держит другая транзакция
	ErrProductLocked = errors.New("resource is locked, please try again")
)

type productRepository struct {
	db *sql.DB
}

// NewProductRepository создаёт новый репозиторий каталога.
func NewProductRepository(db *sql.DB) ProductStorage {
	return &productRepository{db: db}
}

func scanProduct(row *sql.Row) (*models.Product, error) {
	product := &models.Product{}
	if err := row.Scan(&product.ID, &product.Name, &product.Price, &product.Discount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return product, nil
}

func (r *productRepository) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	row := r.db.QueryRowContext(ctx, "SELECT id, name, price, discount FROM products WHERE id = $1", id)
	return scanProduct(row)
}

func (r *productRepository) GetProductByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Product, error) {
	row := tx.QueryRowContext(ctx, "SELECT id, name, price, discount FROM products WHERE id = $1", id)
	return scanProduct(row)
}

func (r *productRepository) LockProductByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Product, error) {
	row := tx.QueryRowContext(ctx, "SELECT id, name, price, discount FROM products WHERE id = $1 FOR UPDATE NOWAIT", id)
	product, err := scanProduct(row)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "55P03" { // lock
				return nil, fmt.Errorf("%w: %w", ErrProductLocked, err)
			}
		}
		return nil, err
	}
	return product, nil
}

func (r *productRepository) UpdateProductTx(ctx context.Context, tx *sql.Tx, product *models.Product) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE products SET name = $1, price = $2, discount = $3 WHERE id = $4",
		product.Name, product.Price, product.Discount, product.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *productRepository) ListProducts(ctx context.Context, limit int) ([]*models.Product, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name, price, discount FROM products ORDER BY id LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		product := &models.Product{}
		if err := rows.Scan(&product.ID, &product.Name, &product.Price, &product.Discount); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}
