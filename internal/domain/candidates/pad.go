package candidates

import (
	"fmt"

	"github.com/okian/fitscore/internal/domain/model"
)

// Slot is one scorer position: a real item or the blank placeholder.
type Slot struct {
	Item  model.Item
	Blank bool
}

// Slots converts a candidate to unpadded slots.
func (c Candidate) Slots() []Slot {
	out := make([]Slot, len(c))
	for i, it := range c {
		out[i] = Slot{Item: it}
	}
	return out
}

// Pad right-pads slots with blanks to exactly SlotCount positions. Input
// already at SlotCount is returned unchanged; blanks never precede items.
func Pad(slots []Slot) ([]Slot, error) {
	if len(slots) > SlotCount {
		return nil, fmt.Errorf("%d slots: %w", len(slots), ErrTooManySlots)
	}
	out := make([]Slot, SlotCount)
	copy(out, slots)
	for i := len(slots); i < SlotCount; i++ {
		out[i] = Slot{Blank: true}
	}
	return out, nil
}

// Strip returns the ids of the non-blank slots, in order.
func Strip(slots []Slot) []string {
	ids := make([]string, 0, len(slots))
	for _, s := range slots {
		if !s.Blank {
			ids = append(ids, s.Item.ID)
		}
	}
	return ids
}
