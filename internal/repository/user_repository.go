package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/huertohogar/internal/database"
	"github.com/iliyamo/huertohogar/internal/model"
	"github.com/iliyamo/huertohogar/internal/observe"
)

type UserRepo struct {
	DB      *sql.DB
	dialect database.Dialect
	hub     *observe.Hub
}

func NewUserRepo(db *sql.DB, d database.Dialect, hub *observe.Hub) *UserRepo {
	return &UserRepo{DB: db, dialect: d, hub: hub}
}

// NormalizeEmail is the canonical form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

const userColumns = "id, name, email, password_hash, address, image_ref"

// Create inserts a user and returns its ID.  A duplicate email aborts the
// insert with ErrEmailExists.
func (r *UserRepo) Create(ctx context.Context, name, email, passwordHash string) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (name, email, password_hash) VALUES (?, ?, ?)",
		strings.TrimSpace(name), NormalizeEmail(email), passwordHash)
	if err != nil {
		if r.dialect.IsUniqueViolation(err) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = ? LIMIT 1", NormalizeEmail(email)))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ? LIMIT 1", id))
}

func (r *UserRepo) scanOne(row *sql.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Address, &u.ImageRef)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrUserNotFound
	}
	return u, err
}

// UpdateProfile overwrites the editable profile columns.
func (r *UserRepo) UpdateProfile(ctx context.Context, id uint64, name, address, imageRef string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET name = ?, address = ?, image_ref = ? WHERE id = ?",
		name, address, imageRef, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Delete removes a user and every cart line the user owns.  The schema
// cascades as well; the explicit delete keeps the ownership rule intact on
// engines where foreign keys are not enforced.
func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
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
	if _, err := tx.ExecContext(ctx, "DELETE FROM cart_items WHERE user_id = ?", id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrUserNotFound
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	r.hub.Publish(observe.CartTopic(id))
	return nil
}
