package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/iliyamo/huertohogar/internal/model"
)

// quantityCheck bounds cart_items.quantity on both engines.
var quantityCheck = "CHECK (quantity BETWEEN 1 AND " + strconv.Itoa(model.MaxLineQuantity) + ")"

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		name          TEXT NOT NULL,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		address       TEXT NOT NULL DEFAULT '',
		image_ref     TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		price       TEXT NOT NULL,
		category    TEXT NOT NULL,
		image_ref   TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS cart_items (
		user_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		product_id INTEGER NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		quantity   INTEGER NOT NULL ` + quantityCheck + `,
		PRIMARY KEY (user_id, product_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_cart_items_product_id ON cart_items (product_id)`,
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		name          VARCHAR(255) NOT NULL,
		email         VARCHAR(255) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		address       VARCHAR(512) NOT NULL DEFAULT '',
		image_ref     VARCHAR(1024) NOT NULL DEFAULT '',
		UNIQUE KEY uq_users_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS products (
		id          BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		name        VARCHAR(255) NOT NULL,
		description TEXT NOT NULL,
		price       DECIMAL(12,2) NOT NULL,
		category    VARCHAR(128) NOT NULL,
		image_ref   VARCHAR(1024) NOT NULL DEFAULT ''
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS cart_items (
		user_id    BIGINT UNSIGNED NOT NULL,
		product_id BIGINT UNSIGNED NOT NULL,
		quantity   INT NOT NULL,
		PRIMARY KEY (user_id, product_id),
		KEY idx_cart_items_product_id (product_id),
		CONSTRAINT fk_cart_items_user FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE,
		CONSTRAINT fk_cart_items_product FOREIGN KEY (product_id) REFERENCES products (id) ON DELETE CASCADE,
		CONSTRAINT chk_cart_items_quantity ` + quantityCheck + `
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates the tables and indexes that do not exist yet.  Every
// statement is idempotent, so it runs on each startup.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	for i, stmt := range d.schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("database: migration %d: %w", i+1, err)
		}
	}
	return nil
}
