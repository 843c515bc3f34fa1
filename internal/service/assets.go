package service

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// MaxImageBytes bounds a single profile picture.
const MaxImageBytes = 5 << 20

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true}

// ImageUpload is a picture picked by the user.  Filename is only used for
// its extension.
type ImageUpload struct {
	Filename string
	Body     io.Reader
}

// AssetStore keeps durable copies of user images in a directory the
// application owns.  Stored files get random names so they never collide.
type AssetStore struct {
	dir string
}

func NewAssetStore(dir string) *AssetStore {
	return &AssetStore{dir: filepath.Clean(dir)}
}

// Import copies img into the store and returns the reference to persist.
// The copy is written to a temporary file and renamed into place, so a
// reference never points at a partial file.
func (s *AssetStore) Import(img ImageUpload) (string, error) {
	ext := strings.ToLower(filepath.Ext(img.Filename))
	if !imageExts[ext] {
		return "", &ValidationError{Fields: map[string]string{FieldImage: "Formato de imagen no soportado"}}
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("assets: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("assets: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	n, err := io.Copy(tmp, io.LimitReader(img.Body, MaxImageBytes+1))
	if err != nil {
		cleanup()
		return "", fmt.Errorf("assets: copy: %w", err)
	}
	if n > MaxImageBytes {
		cleanup()
		return "", &ValidationError{Fields: map[string]string{FieldImage: "La imagen es demasiado grande"}}
	}
	if n == 0 {
		cleanup()
		return "", &ValidationError{Fields: map[string]string{FieldImage: "La imagen está vacía"}}
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return "", fmt.Errorf("assets: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("assets: close: %w", err)
	}
	final := filepath.Join(s.dir, uuid.NewString()+ext)
	if err := os.Rename(tmpName, final); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("assets: rename: %w", err)
	}
	return final, nil
}

// Owns reports whether ref is a file inside the store.
func (s *AssetStore) Owns(ref string) bool {
	return ref != "" && filepath.Dir(filepath.Clean(ref)) == s.dir
}

// Remove deletes a stored image.  References the store does not own and
// files that are already gone are ignored.
func (s *AssetStore) Remove(ref string) error {
	if !s.Owns(ref) {
		return nil
	}
	if err := os.Remove(ref); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("assets: remove: %w", err)
	}
	return nil
}
