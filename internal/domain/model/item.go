// Package model contains domain models passed between layers.
package model

// Category is a wardrobe category label. The set is closed; items stored
// under an unknown label are still indexed but treated as optional.
type Category string

// Known wardrobe categories.
const (
	CategoryTops        Category = "Tops"
	CategoryBottoms     Category = "Bottoms"
	CategoryShoes       Category = "Shoes"
	CategoryOuterwear   Category = "Outerwear"
	CategoryAllWear     Category = "All-wear"
	CategoryAccessories Category = "Accessories"
	CategoryHats        Category = "Hats"
	CategorySunglasses  Category = "Sunglasses"
)

// Categories lists the known categories in catalog order. Optional slot
// selection follows this order.
var Categories = []Category{ //nolint:gochecknoglobals // fixed catalog
	CategoryTops,
	CategoryBottoms,
	CategoryShoes,
	CategoryOuterwear,
	CategoryAllWear,
	CategoryAccessories,
	CategoryHats,
	CategorySunglasses,
}

// Known reports whether c belongs to the fixed category catalog.
func (c Category) Known() bool {
	for _, k := range Categories {
		if k == c {
			return true
		}
	}
	return false
}

// Core reports whether c takes part in the mandatory outfit body
// (tops, all-wear, bottoms, shoes).
func (c Category) Core() bool {
	switch c {
	case CategoryTops, CategoryAllWear, CategoryBottoms, CategoryShoes:
		return true
	default:
		return false
	}
}

// Item is one wardrobe piece owned by exactly one user.
type Item struct {
	ID       string   // stable item identifier
	ImageRef string   // reference understood by the image source (stored filename)
	Category Category // wardrobe category
	OwnerID  string   // owning user
}
