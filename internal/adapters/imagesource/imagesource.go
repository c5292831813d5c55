// Package imagesource resolves item image references to bytes.
package imagesource

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Sentinel kinds for image source errors.
var (
	ErrNotFound         = errors.New("image not found")
	ErrInvalidReference = errors.New("invalid image reference")
)

// Source reads encoded image bytes by reference.
type Source interface {
	Read(ctx context.Context, ref string) ([]byte, error)
}

// Dir serves images from files under a root directory. References are
// slash-separated paths relative to the root.
type Dir struct {
	root string
}

// NewDir returns a source rooted at root.
func NewDir(root string) *Dir {
	return &Dir{root: root}
}

// Read returns the file contents for ref.
func (d *Dir) Read(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}
	rel := filepath.FromSlash(ref)
	if ref == "" || !filepath.IsLocal(rel) {
		return nil, fmt.Errorf("%q: %w", ref, ErrInvalidReference)
	}
	data, err := os.ReadFile(filepath.Join(d.root, rel))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%q: %w", ref, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", ref, err)
	}
	return data, nil
}

// Map serves images from memory. Useful for tests and seeding.
type Map map[string][]byte

// Read returns the bytes stored under ref.
func (m Map) Read(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}
	data, ok := m[ref]
	if !ok {
		return nil, fmt.Errorf("%q: %w", ref, ErrNotFound)
	}
	return data, nil
}
