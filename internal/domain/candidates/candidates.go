// Package candidates enumerates valid outfit slot combinations from a
// wardrobe index.
//
// An outfit needs a body: CoreTop, Bottoms and Shoes when all three are
// present, otherwise CoreTop and Shoes. Optional categories are appended
// in wardrobe.Index.Optional order until the target size is reached, and
// each slot list expands into its Cartesian product.
package candidates

import (
	"github.com/okian/fitscore/internal/domain/model"
	"github.com/okian/fitscore/internal/domain/wardrobe"
)

// Outfit size bounds.
const (
	MinSize   = 2
	MaxSize   = 7
	SlotCount = 7
)

// Candidate is one concrete, unpadded outfit in slot order.
type Candidate []model.Item

// IDs returns the item ids in slot order.
func (c Candidate) IDs() []string {
	ids := make([]string, len(c))
	for i, it := range c {
		ids[i] = it.ID
	}
	return ids
}

// Result is the output of one generation.
type Result struct {
	Candidates []Candidate
	BySize     map[int]int // candidate count per outfit size
	Truncated  bool        // the max candidate cap was hit
}

// Generator produces outfit candidates.
type Generator struct {
	maxCandidates int
}

// New creates a Generator.
func New(opts ...Option) *Generator {
	g := &Generator{}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Mandatory returns the body slots for x, or nil when the wardrobe cannot
// form an outfit.
func Mandatory(x *wardrobe.Index) [][]model.Item {
	core, bottoms, shoes := x.CoreTop(), x.Bottoms(), x.Shoes()
	switch {
	case len(core) > 0 && len(bottoms) > 0 && len(shoes) > 0:
		return [][]model.Item{core, bottoms, shoes}
	case len(core) > 0 && len(shoes) > 0:
		return [][]model.Item{core, shoes}
	default:
		return nil
	}
}

// Generate enumerates every candidate for sizes MinSize..MaxSize. An empty
// result means the wardrobe is insufficient; that is not an error.
func (g *Generator) Generate(x *wardrobe.Index) Result {
	res := Result{BySize: make(map[int]int)}
	mandatory := Mandatory(x)
	if mandatory == nil {
		return res
	}
	optional := x.Optional()

	for r := MinSize; r <= MaxSize; r++ {
		extra := r - len(mandatory)
		if extra < 0 || extra > len(optional) {
			continue
		}
		slots := make([][]model.Item, 0, r)
		slots = append(slots, mandatory...)
		for _, grp := range optional[:extra] {
			slots = append(slots, grp.Items)
		}

		n := product(slots, func(c Candidate) bool {
			if g.maxCandidates > 0 && len(res.Candidates) >= g.maxCandidates {
				res.Truncated = true
				return false
			}
			res.Candidates = append(res.Candidates, c)
			return true
		})
		if n > 0 {
			res.BySize[r] += n
		}
		if res.Truncated {
			break
		}
	}
	return res
}

// product walks the Cartesian product of slots in odometer order (last
// slot varies fastest) and stops early when emit returns false. It
// returns the number of accepted candidates.
func product(slots [][]model.Item, emit func(Candidate) bool) int {
	for _, s := range slots {
		if len(s) == 0 {
			return 0
		}
	}
	idx := make([]int, len(slots))
	count := 0
	for {
		c := make(Candidate, len(slots))
		for i, s := range slots {
			c[i] = s[idx[i]]
		}
		if !emit(c) {
			return count
		}
		count++

		pos := len(slots) - 1
		for pos >= 0 {
			idx[pos]++
			if idx[pos] < len(slots[pos]) {
				break
			}
			idx[pos] = 0
			pos--
		}
		if pos < 0 {
			return count
		}
	}
}
