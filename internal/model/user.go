package model

// User represents an account record as stored in the `users` table.
// Each field corresponds to a column in the database.  The json tags
// expose the profile to handlers; the password hash is never
// serialized.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Name         – display name, never blank.
//	Email        – unique, normalized (trimmed, lower-case) address.
//	PasswordHash – bcrypt hash of the password.
//	Address      – shipping address; blank until the profile is edited.
//	ImageRef     – path of the profile picture inside the app-owned
//	               image directory, or empty.
type User struct {
	ID           uint64 `json:"id"`        // users.id
	Name         string `json:"name"`      // users.name
	Email        string `json:"email"`     // users.email
	PasswordHash string `json:"-"`         // users.password_hash
	Address      string `json:"address"`   // users.address
	ImageRef     string `json:"image_ref"` // users.image_ref
}
