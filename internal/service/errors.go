// Package service holds the storefront use cases: accounts, catalog, cart
// and checkout.  Services validate input, talk to the repositories and
// return the sentinel errors below; the HTTP layer maps them to responses.
package service

import (
	"errors"
	"sort"
	"strings"

	"github.com/iliyamo/huertohogar/internal/repository"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrOrderProcessing    = errors.New("order could not be processed")

	// ErrSessionEnded means the caller is no longer the session user.
	ErrSessionEnded = errors.New("session ended")

	// The not-found errors are shared with the repository layer so that
	// errors.Is matches at either level.
	ErrUserNotFound    = repository.ErrUserNotFound
	ErrProductNotFound = repository.ErrProductNotFound
)

// ValidationError lists every invalid input field with a message meant for
// the person filling in the form.  No write happens when it is returned.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// validator collects field errors so all of them are reported together.
type validator struct {
	fields map[string]string
}

func (v *validator) add(field, msg string) {
	if v.fields == nil {
		v.fields = map[string]string{}
	}
	if _, dup := v.fields[field]; !dup {
		v.fields[field] = msg
	}
}

func (v *validator) err() error {
	if len(v.fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: v.fields}
}
