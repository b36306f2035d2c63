package postgres

import (
	"context"
	"errors"
	"fmt"

	"storefront-payments/internal/core/domain"
	"storefront-payments/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// ProductRepo implements ports.ProductRepository.
type ProductRepo struct {
	pool Pool
}

var _ ports.ProductRepository = (*ProductRepo)(nil)

// NewProductRepo creates a new ProductRepo.
func NewProductRepo(pool Pool) *ProductRepo {
	return &ProductRepo{pool: pool}
}

// GetByProductID fetches a product. It returns nil, nil when not found.
func (r *ProductRepo) GetByProductID(ctx context.Context, productID string) (*domain.Product, error) {
	var p domain.Product
	err := r.pool.QueryRow(ctx,
		`SELECT product_id, title, price, stock, sold, purchase_count, status, created_at, updated_at
		 FROM products WHERE product_id = $1`, productID,
	).Scan(&p.ProductID, &p.Title, &p.Price, &p.Stock, &p.Sold, &p.PurchaseCount, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

// DecrementStock atomically removes qty units when at least qty are left.
// A product that reaches zero is flagged out_of_stock.
func (r *ProductRepo) DecrementStock(ctx context.Context, productID string, qty int) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE products
		 SET stock = stock - $2,
		     status = CASE WHEN stock - $2 = 0 THEN 'out_of_stock' ELSE status END,
		     updated_at = NOW()
		 WHERE product_id = $1 AND stock >= $2`,
		productID, qty,
	)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %s: %w", productID, ports.ErrInsufficientStock)
	}
	return nil
}

// IncrementPurchaseCount adds qty to the product's sold and purchase counters.
func (r *ProductRepo) IncrementPurchaseCount(ctx context.Context, productID string, qty int) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE products SET purchase_count = purchase_count + $2, sold = sold + $2, updated_at = NOW()
		 WHERE product_id = $1`,
		productID, qty,
	)
	if err != nil {
		return fmt.Errorf("increment purchase count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product not found: %s", productID)
	}
	return nil
}
