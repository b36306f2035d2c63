package domain

import "time"

// ProductStatus is the sellable state of a product.
type ProductStatus string

const (
	ProductStatusActive     ProductStatus = "active"
	ProductStatusOutOfStock ProductStatus = "out_of_stock"
	ProductStatusInactive   ProductStatus = "inactive"
)

// Product is the catalog record the checkout reads prices and stock from.
type Product struct {
	ProductID     string        `json:"product_id"`
	Title         string        `json:"title"`
	Price         int64         `json:"price"`
	Stock         int           `json:"stock"`
	Sold          int           `json:"sold"`
	PurchaseCount int           `json:"purchase_count"`
	Status        ProductStatus `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// CanFulfil reports whether qty units can be ordered right now.
func (p *Product) CanFulfil(qty int) bool {
	return p.Status == ProductStatusActive && qty > 0 && p.Stock >= qty
}
