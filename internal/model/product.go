package model

import "github.com/shopspring/decimal"

// Product is a catalog entry from the `products` table.  Products are
// seeded once and read-only afterwards.
type Product struct {
	ID          uint64          `json:"id"`          // products.id
	Name        string          `json:"name"`        // products.name
	Description string          `json:"description"` // products.description
	Price       decimal.Decimal `json:"price"`       // products.price (>= 0)
	Category    string          `json:"category"`    // products.category
	ImageRef    string          `json:"image_ref"`   // products.image_ref
}
