package service

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validationFields(t *testing.T, err error) map[string]string {
	t.Helper()
	var ve *ValidationError
	require.True(t, errors.As(err, &ve), "expected a validation error, got %v", err)
	return ve.Fields
}

func TestRegisterDuplicateEmail(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	id, err := e.accounts.Register(ctx, RegisterInput{Name: "Ana", Email: "ana@x.com", Password: "password1", ConfirmPassword: "password1"})
	require.NoError(t, err)
	assert.NotZero(t, id)

	_, err = e.accounts.Register(ctx, RegisterInput{Name: "Ana", Email: "ana@x.com", Password: "password1", ConfirmPassword: "password1"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	// case and surrounding space do not make a different address
	_, err = e.accounts.Register(ctx, RegisterInput{Name: "Ana", Email: " ANA@x.com ", Password: "password1", ConfirmPassword: "password1"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	var n int
	require.NoError(t, e.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestRegisterReportsEveryInvalidField(t *testing.T) {
	e := newEnv(t)
	_, err := e.accounts.Register(context.Background(), RegisterInput{Name: "  ", Email: "not-an-email", Password: "short", ConfirmPassword: "other"})
	fields := validationFields(t, err)
	assert.Len(t, fields, 4)
	for _, f := range []string{FieldName, FieldEmail, FieldPassword, FieldConfirmPassword} {
		assert.Contains(t, fields, f)
	}

	var n int
	require.NoError(t, e.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&n))
	assert.Zero(t, n)
}

func TestRegisterRejectsOverlongPassword(t *testing.T) {
	e := newEnv(t)
	pw := strings.Repeat("x", 73)
	_, err := e.accounts.Register(context.Background(), RegisterInput{Name: "Ana", Email: "ana@x.com", Password: pw, ConfirmPassword: pw})
	assert.Contains(t, validationFields(t, err), FieldPassword)
}

func TestRegisterStoresHashNotPassword(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id, err := e.accounts.Register(ctx, RegisterInput{Name: "Ana", Email: "ana@x.com", Password: "password1", ConfirmPassword: "password1"})
	require.NoError(t, err)

	u, err := e.users.GetByID(ctx, id)
	require.NoError(t, err)
	assert.NotEqual(t, "password1", u.PasswordHash)
	assert.NotEmpty(t, u.PasswordHash)
}

func TestLogin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id, err := e.accounts.Register(ctx, RegisterInput{Name: "Ana", Email: "ana@x.com", Password: "password1", ConfirmPassword: "password1"})
	require.NoError(t, err)

	got, err := e.accounts.Login(ctx, "ana@x.com", "password1")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	got, err = e.accounts.Login(ctx, "Ana@X.com", "password1")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = e.accounts.Login(ctx, "ana@x.com", "password2")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = e.accounts.Login(ctx, "bob@x.com", "password1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = e.accounts.Login(ctx, "bad", "")
	fields := validationFields(t, err)
	assert.Contains(t, fields, FieldEmail)
	assert.Contains(t, fields, FieldPassword)
}

func TestLoginNeverComparesPlaintext(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	// a row whose "hash" is the password itself must not authenticate
	_, err := e.users.Create(ctx, "Legacy", "legacy@x.com", "password1")
	require.NoError(t, err)

	_, err = e.accounts.Login(ctx, "legacy@x.com", "password1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestProfile(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.accounts.Profile(ctx, 77)
	assert.ErrorIs(t, err, ErrUserNotFound)

	id := e.login(t, "Ana", "ana@x.com")
	u, err := e.accounts.Profile(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Ana", u.Name)
	assert.Equal(t, "", u.Address)
}

func TestUpdateProfileValidation(t *testing.T) {
	e := newEnv(t)
	id := e.login(t, "Ana", "ana@x.com")

	_, err := e.accounts.UpdateProfile(context.Background(), id, ProfileInput{Name: "", Address: " "})
	fields := validationFields(t, err)
	assert.Contains(t, fields, FieldName)
	assert.Contains(t, fields, FieldAddress)

	_, err = e.accounts.UpdateProfile(context.Background(), 999, ProfileInput{Name: "x", Address: "y"})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUpdateProfileReplacesImage(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id := e.login(t, "Ana", "ana@x.com")
	imagesDir := filepath.Join(e.dir, "images")

	u, err := e.accounts.UpdateProfile(ctx, id, ProfileInput{
		Name: "Ana María", Address: "Calle 1",
		Image: &ImageUpload{Filename: "me.JPG", Body: bytes.NewReader([]byte("first"))},
	})
	require.NoError(t, err)
	assert.Equal(t, "Ana María", u.Name)
	assert.Equal(t, imagesDir, filepath.Dir(u.ImageRef))
	assert.Equal(t, ".jpg", filepath.Ext(u.ImageRef))
	first := u.ImageRef
	b, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, "first", string(b))

	u, err = e.accounts.UpdateProfile(ctx, id, ProfileInput{
		Name: "Ana María", Address: "Calle 2",
		Image: &ImageUpload{Filename: "me.png", Body: bytes.NewReader([]byte("second"))},
	})
	require.NoError(t, err)
	assert.NotEqual(t, first, u.ImageRef)
	_, err = os.Stat(first)
	assert.True(t, os.IsNotExist(err), "previous image should be removed")

	// without a new picture the stored one is kept
	u, err = e.accounts.UpdateProfile(ctx, id, ProfileInput{Name: "Ana", Address: "Calle 3"})
	require.NoError(t, err)
	stored, err := e.users.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, u.ImageRef, stored.ImageRef)
	assert.Equal(t, "Calle 3", stored.Address)

	entries, err := os.ReadDir(imagesDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestUpdateProfileRejectsUnsupportedImage(t *testing.T) {
	e := newEnv(t)
	id := e.login(t, "Ana", "ana@x.com")
	_, err := e.accounts.UpdateProfile(context.Background(), id, ProfileInput{
		Name: "Ana", Address: "Calle 1",
		Image: &ImageUpload{Filename: "script.sh", Body: bytes.NewReader([]byte("x"))},
	})
	assert.Contains(t, validationFields(t, err), FieldImage)
}

func TestAssetStoreIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	outside := filepath.Join(dir, "keep.jpg")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o600))

	s := NewAssetStore(filepath.Join(dir, "images"))
	assert.False(t, s.Owns(outside))
	require.NoError(t, s.Remove(outside))
	_, err := os.Stat(outside)
	assert.NoError(t, err)
	assert.False(t, s.Owns(""))
}

func TestValidEmail(t *testing.T) {
	for _, ok := range []string{"ana@x.com", "a.b+c@mail.example.cl", " ana@x.com "} {
		assert.True(t, ValidEmail(ok), ok)
	}
	for _, bad := range []string{"", "ana", "ana@", "@x.com", "ana@x", "ana x@y.com"} {
		assert.False(t, ValidEmail(bad), bad)
	}
}
