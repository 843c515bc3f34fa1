package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Dialect holds the statements whose syntax differs between engines and
// classifies driver errors into the constraint failures the repositories
// turn into sentinel errors.
type Dialect struct {
	Name string

	// UpsertIncrement inserts (user_id, product_id) with quantity 1 or
	// bumps the existing row by one in the same statement.
	UpsertIncrement string

	schema []string
}

// DialectFor returns the dialect for a driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case DriverSQLite, "":
		return Dialect{
			Name: DriverSQLite,
			UpsertIncrement: `INSERT INTO cart_items (user_id, product_id, quantity) VALUES (?, ?, 1)
				ON CONFLICT (user_id, product_id) DO UPDATE SET quantity = cart_items.quantity + 1`,
			schema: sqliteSchema,
		}, nil
	case DriverMySQL:
		return Dialect{
			Name: DriverMySQL,
			UpsertIncrement: `INSERT INTO cart_items (user_id, product_id, quantity) VALUES (?, ?, 1)
				ON DUPLICATE KEY UPDATE quantity = quantity + 1`,
			schema: mysqlSchema,
		}, nil
	}
	return Dialect{}, fmt.Errorf("database: unsupported driver %q", driver)
}

// IsUniqueViolation reports whether err is a UNIQUE/duplicate key failure.
func (d Dialect) IsUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
		return isSQLiteConstraint(se, "UNIQUE constraint failed")
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return false
}

// IsForeignKeyViolation reports whether err is a failed foreign key check,
// e.g. a cart line pointing at a product that does not exist.
func (d Dialect) IsForeignKeyViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY ||
			isSQLiteConstraint(se, "FOREIGN KEY constraint failed")
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1452
	}
	return false
}

// IsCheckViolation reports whether err is a failed CHECK constraint, e.g. a
// cart quantity outside its allowed range.
func (d Dialect) IsCheckViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_CHECK ||
			isSQLiteConstraint(se, "CHECK constraint failed")
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 3819
	}
	return false
}

// isSQLiteConstraint matches on the message when the connection reports only
// the primary result code.
func isSQLiteConstraint(se *sqlite.Error, msg string) bool {
	return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), msg)
}
