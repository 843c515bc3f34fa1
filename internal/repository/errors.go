// Package repository holds the data access layer.  Each repository wraps a
// *sql.DB together with the engine Dialect and, optionally, the change hub
// it announces committed writes on.  The sentinel values below let higher
// layers such as services and handlers distinguish between failure
// scenarios without inspecting driver errors.
package repository

import "errors"

// ErrEmailExists is returned when an insert hits the unique email index.
// The insert is aborted; the existing row is never overwritten.
var ErrEmailExists = errors.New("email already exists")

// ErrUserNotFound indicates that no user has the requested id or email.
var ErrUserNotFound = errors.New("user not found")

// ErrProductNotFound indicates that no product has the requested id.
var ErrProductNotFound = errors.New("product not found")

// ErrQuantityLimit is returned when a cart line would exceed
// model.MaxLineQuantity.  The line keeps its previous quantity.
var ErrQuantityLimit = errors.New("cart line quantity limit reached")
