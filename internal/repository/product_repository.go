package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/huertohogar/internal/database"
	"github.com/iliyamo/huertohogar/internal/model"
	"github.com/iliyamo/huertohogar/internal/observe"
)

// ProductRepo manages persistence for the catalog.
type ProductRepo struct {
	DB      *sql.DB
	dialect database.Dialect
	hub     *observe.Hub
}

// NewProductRepo returns a ProductRepo bound to db.
func NewProductRepo(db *sql.DB, d database.Dialect, hub *observe.Hub) *ProductRepo {
	return &ProductRepo{DB: db, dialect: d, hub: hub}
}

const productColumns = "id, name, description, price, category, image_ref"

// Count returns the number of products.
func (r *ProductRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM products").Scan(&n)
	return n, err
}

// InsertTx inserts p inside the caller's transaction and sets p.ID.
func (r *ProductRepo) InsertTx(ctx context.Context, tx *sql.Tx, p *model.Product) error {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO products (name, description, price, category, image_ref) VALUES (?, ?, ?, ?, ?)",
		p.Name, p.Description, p.Price, p.Category, p.ImageRef)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

// SeedIfEmpty inserts products only when the table has no rows.  The count
// and the inserts share one transaction, so concurrent seeders cannot
// double the catalog.  It returns the number of rows inserted.
func (r *ProductRepo) SeedIfEmpty(ctx context.Context, products []model.Product) (int, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	var n int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM products").Scan(&n); err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}
	for i := range products {
		p := products[i]
		if err := r.InsertTx(ctx, tx, &p); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	r.hub.Publish(observe.ProductsTopic)
	return len(products), nil
}

// List returns every product ordered by name.
func (r *ProductRepo) List(ctx context.Context) ([]model.Product, error) {
	return r.query(ctx, "SELECT "+productColumns+" FROM products ORDER BY name ASC, id ASC")
}

// ListByCategory returns the products of one category ordered by name.
func (r *ProductRepo) ListByCategory(ctx context.Context, category string) ([]model.Product, error) {
	return r.query(ctx, "SELECT "+productColumns+" FROM products WHERE category = ? ORDER BY name ASC, id ASC", category)
}

// Categories returns the distinct categories in alphabetical order.
func (r *ProductRepo) Categories(ctx context.Context) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT DISTINCT category FROM products ORDER BY category ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetByID fetches a product or returns ErrProductNotFound.
func (r *ProductRepo) GetByID(ctx context.Context, id uint64) (model.Product, error) {
	var p model.Product
	err := r.DB.QueryRowContext(ctx, "SELECT "+productColumns+" FROM products WHERE id = ? LIMIT 1", id).
		Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Category, &p.ImageRef)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Product{}, ErrProductNotFound
	}
	return p, err
}

// Delete removes a product together with every cart line referencing it.
func (r *ProductRepo) Delete(ctx context.Context, id uint64) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, "DELETE FROM cart_items WHERE product_id = ?", id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM products WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrProductNotFound
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	// cart views subscribe to the products topic, so this also refreshes them
	r.hub.Publish(observe.ProductsTopic)
	return nil
}

func (r *ProductRepo) query(ctx context.Context, q string, args ...any) ([]model.Product, error) {
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Product{}
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Category, &p.ImageRef); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
