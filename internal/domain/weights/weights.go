// Package weights loads and generates the parameter bundle shared by
// the embedder and the compatibility scorer.
package weights

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-json"

	"github.com/okian/fitscore/internal/domain/embedding"
	"github.com/okian/fitscore/internal/domain/scoring"
)

// ErrInvalidBundle reports a bundle whose parts do not fit together.
var ErrInvalidBundle = errors.New("invalid weights bundle")

const versionHashLen = 12

// Bundle is the serialized form of all model parameters.
type Bundle struct {
	Version  string                   `json:"version"`
	Backbone embedding.BackboneParams `json:"backbone"`
	Scorer   scoring.Params           `json:"scorer"`
}

// Validate checks that the backbone output feeds the scorer.
func (b *Bundle) Validate() error {
	if b.Version == "" {
		return fmt.Errorf("missing version: %w", ErrInvalidBundle)
	}
	if w := b.Backbone.Width(); w != b.Scorer.Width {
		return fmt.Errorf("backbone width %d, scorer width %d: %w", w, b.Scorer.Width, ErrInvalidBundle)
	}
	return nil
}

// Load reads a JSON bundle. A missing version is derived from the
// file content so cache keys follow weight changes.
func Load(path string) (*Bundle, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator supplied path
	if err != nil {
		return nil, fmt.Errorf("read weights %q: %w", path, err)
	}
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse weights %q: %w", path, err)
	}
	if b.Version == "" {
		sum := sha256.Sum256(data)
		b.Version = "sha-" + hex.EncodeToString(sum[:])[:versionHashLen]
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

// Save writes the bundle as JSON.
func (b *Bundle) Save(path string) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode weights: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write weights %q: %w", path, err)
	}
	return nil
}

// Random builds a deterministic bundle with the default architecture
// for width.
func Random(resolution, width int, seed int64) (*Bundle, error) {
	return RandomWithDims(resolution, scoring.DefaultDims(width), seed)
}

// RandomWithDims builds a deterministic bundle for d.
func RandomWithDims(resolution int, d scoring.Dims, seed int64) (*Bundle, error) {
	bb, err := embedding.RandomBackbone(resolution, d.Width, seed)
	if err != nil {
		return nil, err
	}
	sp, err := scoring.RandomParams(d, seed)
	if err != nil {
		return nil, err
	}
	b := &Bundle{
		Version:  fmt.Sprintf("random-%d-%d-%d-%d-%d", seed, resolution, d.Width, d.Hidden, d.Projection),
		Backbone: bb,
		Scorer:   sp,
	}
	return b, b.Validate()
}

// Build constructs the embedder and scorer described by the bundle.
func (b *Bundle) Build(opts ...scoring.Option) (*embedding.ConvEmbedder, *scoring.Model, error) {
	e, err := embedding.New(b.Backbone)
	if err != nil {
		return nil, nil, fmt.Errorf("backbone: %w", err)
	}
	m, err := scoring.NewModel(b.Scorer, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("scorer: %w", err)
	}
	return e, m, nil
}
