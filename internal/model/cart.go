package model

import "github.com/shopspring/decimal"

// MaxLineQuantity is the most units of one product a cart line may hold.
const MaxLineQuantity = 99

// CartLine is a row of `cart_items`: how many units of a product a user
// wants.  (UserID, ProductID) is the primary key and Quantity is between one
// and MaxLineQuantity; a line that would drop to zero is deleted instead.
type CartLine struct {
	UserID    uint64 // cart_items.user_id
	ProductID uint64 // cart_items.product_id
	Quantity  int    // cart_items.quantity
}

// CartItem is a cart line joined with its product.
type CartItem struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// Subtotal is price times quantity.
func (i CartItem) Subtotal() decimal.Decimal {
	return i.Product.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CartTotal sums the subtotals of items.  It is always computed, never
// stored.
func CartTotal(items []CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}
