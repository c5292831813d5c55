package loadtest

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/okian/fitscore/internal/domain/model"
	"github.com/okian/fitscore/internal/domain/types"
)

const swatchSize = 32

// Wardrobe is one synthetic owner and their items.
type Wardrobe struct {
	OwnerID string
	Items   []types.Item
}

// viable reports whether the wardrobe can form at least one outfit.
func (w Wardrobe) viable() bool {
	var top, shoes bool
	for _, it := range w.Items {
		switch model.Category(it.Category) {
		case model.CategoryTops, model.CategoryAllWear:
			top = true
		case model.CategoryShoes:
			shoes = true
		}
	}
	return top && shoes
}

// generateWardrobes builds cfg.Owners wardrobes. Every third owner gets a
// guaranteed body (a top and shoes); the rest draw categories at random.
func generateWardrobes(cfg *Config) []Wardrobe {
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	out := make([]Wardrobe, cfg.Owners)
	for i := range out {
		w := Wardrobe{OwnerID: "load-" + uuid.NewString()}
		for j := 0; j < cfg.ItemsPerOwner; j++ {
			cat := model.Categories[rng.IntN(len(model.Categories))]
			if i%3 == 0 && j < 2 {
				cat = []model.Category{model.CategoryTops, model.CategoryShoes}[j]
			}
			w.Items = append(w.Items, types.Item{
				ID:       fmt.Sprintf("%s-%02d", w.OwnerID, j),
				ImageRef: fmt.Sprintf("loadtest/%s/%02d.png", w.OwnerID, j),
				Category: string(cat),
			})
		}
		out[i] = w
	}
	return out
}

// writeSwatches stores one solid-colour PNG per item under dir.
func writeSwatches(dir string, w Wardrobe, rng *rand.Rand) error {
	for _, it := range w.Items {
		path := filepath.Join(dir, filepath.FromSlash(it.ImageRef))
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return fmt.Errorf("create image dir: %w", err)
		}
		c := color.RGBA{R: uint8(rng.IntN(256)), G: uint8(rng.IntN(256)), B: uint8(rng.IntN(256)), A: 255}
		if err := os.WriteFile(path, swatch(c), 0o600); err != nil {
			return fmt.Errorf("write %s: %w", it.ImageRef, err)
		}
	}
	return nil
}

func swatch(c color.Color) []byte {
	img := image.NewRGBA(image.Rect(0, 0, swatchSize, swatchSize))
	for y := 0; y < swatchSize; y++ {
		for x := 0; x < swatchSize; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}
