// Package wardrobe builds the in-memory, per-owner category view used by
// candidate generation.
package wardrobe

import (
	"fmt"
	"sort"

	"github.com/okian/fitscore/internal/domain/model"
)

// Group is one category together with its items, in storage order.
type Group struct {
	Category model.Category
	Items    []model.Item
}

// Index groups one owner's items by category. It is immutable after New.
type Index struct {
	owner      string
	byCategory map[model.Category][]model.Item
	size       int
}

// New indexes items for ownerID. Items repeated by id are kept once; an
// item owned by someone else is rejected.
func New(ownerID string, items []model.Item) (*Index, error) {
	if ownerID == "" {
		return nil, ErrEmptyOwner
	}
	x := &Index{
		owner:      ownerID,
		byCategory: make(map[model.Category][]model.Item),
	}
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if it.OwnerID != ownerID {
			return nil, fmt.Errorf("item %s owned by %q: %w", it.ID, it.OwnerID, ErrForeignItem)
		}
		if _, dup := seen[it.ID]; dup {
			continue
		}
		seen[it.ID] = struct{}{}
		x.byCategory[it.Category] = append(x.byCategory[it.Category], it)
		x.size++
	}
	return x, nil
}

// Owner returns the indexed owner.
func (x *Index) Owner() string { return x.owner }

// Len returns the number of distinct items.
func (x *Index) Len() int { return x.size }

// Items returns a copy of the items stored under c.
func (x *Index) Items(c model.Category) []model.Item {
	return append([]model.Item(nil), x.byCategory[c]...)
}

// CoreTop is the derived Tops ∪ All-wear view. Tops come first.
func (x *Index) CoreTop() []model.Item {
	tops := x.byCategory[model.CategoryTops]
	all := x.byCategory[model.CategoryAllWear]
	out := make([]model.Item, 0, len(tops)+len(all))
	out = append(out, tops...)
	return append(out, all...)
}

// Bottoms returns the owner's bottoms.
func (x *Index) Bottoms() []model.Item { return x.Items(model.CategoryBottoms) }

// Shoes returns the owner's shoes.
func (x *Index) Shoes() []model.Item { return x.Items(model.CategoryShoes) }

// Optional returns every non-core category holding at least one item.
// Known categories come first in catalog order, then unknown labels by
// name ascending.
func (x *Index) Optional() []Group {
	var known, unknown []Group
	for c, items := range x.byCategory {
		if c.Core() || len(items) == 0 {
			continue
		}
		g := Group{Category: c, Items: append([]model.Item(nil), items...)}
		if c.Known() {
			known = append(known, g)
		} else {
			unknown = append(unknown, g)
		}
	}
	rank := make(map[model.Category]int, len(model.Categories))
	for i, c := range model.Categories {
		rank[c] = i
	}
	sort.Slice(known, func(i, j int) bool { return rank[known[i].Category] < rank[known[j].Category] })
	sort.Slice(unknown, func(i, j int) bool { return unknown[i].Category < unknown[j].Category })
	return append(known, unknown...)
}
