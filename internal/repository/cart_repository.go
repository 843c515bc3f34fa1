package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/huertohogar/internal/database"
	"github.com/iliyamo/huertohogar/internal/model"
	"github.com/iliyamo/huertohogar/internal/observe"
)

// CartRepo manages the cart_items table.  Every committed write publishes
// the owner's cart topic on the hub.
type CartRepo struct {
	DB      *sql.DB
	dialect database.Dialect
	hub     *observe.Hub
}

func NewCartRepo(db *sql.DB, d database.Dialect, hub *observe.Hub) *CartRepo {
	return &CartRepo{DB: db, dialect: d, hub: hub}
}

// Increment adds one unit of productID to the user's cart, creating the line
// when absent.  It is a single upsert statement, so concurrent increments on
// the same line never lose an update.  A line already at
// model.MaxLineQuantity is left as is and ErrQuantityLimit returned.
func (r *CartRepo) Increment(ctx context.Context, userID, productID uint64) error {
	if _, err := r.DB.ExecContext(ctx, r.dialect.UpsertIncrement, userID, productID); err != nil {
		switch {
		case r.dialect.IsForeignKeyViolation(err):
			return r.missingReference(ctx, productID)
		case r.dialect.IsCheckViolation(err):
			return ErrQuantityLimit
		}
		return err
	}
	r.NotifyChanged(userID)
	return nil
}

// missingReference tells which side of a failed foreign key check was absent.
func (r *CartRepo) missingReference(ctx context.Context, productID uint64) error {
	var one int
	err := r.DB.QueryRowContext(ctx, "SELECT 1 FROM products WHERE id = ?", productID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrProductNotFound
	}
	if err != nil {
		return err
	}
	return ErrUserNotFound
}

// AddDelta changes the quantity of an existing line by delta and returns the
// resulting quantity.  A line whose quantity would drop to zero or below is
// deleted and 0 is returned.  A missing line is left alone and reported with
// found == false.  The statements are guarded so that no non-positive
// quantity is ever written; a result above model.MaxLineQuantity fails
// with ErrQuantityLimit and leaves the line unchanged.
func (r *CartRepo) AddDelta(ctx context.Context, userID, productID uint64, delta int) (qty int, found bool, err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		"DELETE FROM cart_items WHERE user_id = ? AND product_id = ? AND quantity + ? <= 0",
		userID, productID, delta)
	if err != nil {
		return 0, false, err
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, false, err
	}
	if deleted == 0 {
		res, err = tx.ExecContext(ctx,
			"UPDATE cart_items SET quantity = quantity + ? WHERE user_id = ? AND product_id = ? AND quantity + ? > 0",
			delta, userID, productID, delta)
		if r.dialect.IsCheckViolation(err) {
			return 0, false, ErrQuantityLimit
		}
		if err != nil {
			return 0, false, err
		}
		updated, err := res.RowsAffected()
		if err != nil {
			return 0, false, err
		}
		if updated == 0 {
			return 0, false, nil
		}
		if err := tx.QueryRowContext(ctx,
			"SELECT quantity FROM cart_items WHERE user_id = ? AND product_id = ?",
			userID, productID).Scan(&qty); err != nil {
			return 0, false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, false, err
	}
	committed = true
	r.NotifyChanged(userID)
	return qty, true, nil
}

// Remove deletes a line.  Removing an absent line is not an error.
func (r *CartRepo) Remove(ctx context.Context, userID, productID uint64) error {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM cart_items WHERE user_id = ? AND product_id = ?", userID, productID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		r.NotifyChanged(userID)
	}
	return nil
}

// Get returns a single line.
func (r *CartRepo) Get(ctx context.Context, userID, productID uint64) (model.CartLine, bool, error) {
	l := model.CartLine{UserID: userID, ProductID: productID}
	err := r.DB.QueryRowContext(ctx,
		"SELECT quantity FROM cart_items WHERE user_id = ? AND product_id = ?",
		userID, productID).Scan(&l.Quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return model.CartLine{}, false, nil
	}
	if err != nil {
		return model.CartLine{}, false, err
	}
	return l, true, nil
}

const cartItemsQuery = `SELECT p.id, p.name, p.description, p.price, p.category, p.image_ref, c.quantity
	FROM cart_items c
	JOIN products p ON p.id = c.product_id
	WHERE c.user_id = ?
	ORDER BY p.name ASC, p.id ASC`

// ListItems returns the user's lines joined with their products, ordered by
// product name.
func (r *CartRepo) ListItems(ctx context.Context, userID uint64) ([]model.CartItem, error) {
	rows, err := r.DB.QueryContext(ctx, cartItemsQuery, userID)
	if err != nil {
		return nil, err
	}
	return scanItems(rows)
}

// ListItemsTx is ListItems inside the caller's transaction.
func (r *CartRepo) ListItemsTx(ctx context.Context, tx *sql.Tx, userID uint64) ([]model.CartItem, error) {
	rows, err := tx.QueryContext(ctx, cartItemsQuery, userID)
	if err != nil {
		return nil, err
	}
	return scanItems(rows)
}

func scanItems(rows *sql.Rows) ([]model.CartItem, error) {
	defer rows.Close()
	items := []model.CartItem{}
	for rows.Next() {
		var it model.CartItem
		p := &it.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Category, &p.ImageRef, &it.Quantity); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ClearTx deletes every line of the user inside the caller's transaction
// and returns how many were removed.  The caller publishes the change with
// NotifyChanged once the transaction has committed.
func (r *CartRepo) ClearTx(ctx context.Context, tx *sql.Tx, userID uint64) (int64, error) {
	res, err := tx.ExecContext(ctx, "DELETE FROM cart_items WHERE user_id = ?", userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Clear deletes every line of the user.
func (r *CartRepo) Clear(ctx context.Context, userID uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM cart_items WHERE user_id = ?", userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		r.NotifyChanged(userID)
	}
	return nil
}

// NotifyChanged announces a committed change to the user's cart.
func (r *CartRepo) NotifyChanged(userID uint64) {
	r.hub.Publish(observe.CartTopic(userID))
}
