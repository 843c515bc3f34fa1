package service

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// emailPattern is the address pattern used by the mobile client's forms.
var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9+._%\-]{1,256}@[a-zA-Z0-9][a-zA-Z0-9\-]{0,64}(\.[a-zA-Z0-9][a-zA-Z0-9\-]{0,25})+$`)

const minPasswordLen = 8

// Field names reported in ValidationError.Fields.
const (
	FieldName            = "name"
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldConfirmPassword = "confirm_password"
	FieldAddress         = "address"
	FieldImage           = "image"
	FieldQuantity        = "quantity"
)

func blank(s string) bool { return strings.TrimSpace(s) == "" }

// ValidEmail reports whether s looks like an email address.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}

func validPassword(s string) bool {
	return !blank(s) && utf8.RuneCountInString(s) >= minPasswordLen
}
