package scoring

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Stage is one attention pass over a batch of outfits, each a slots×width
// matrix. It returns the transformed batch and the attention weights it
// produced (one matrix per outfit, or one shared matrix for global stages).
type Stage interface {
	Name() string
	Forward(batch []*mat.Dense) ([]*mat.Dense, []*mat.Dense, error)
}

// nestedStage attends over the leading block.width features of each outfit
// and re-attaches the untouched remainder.
type nestedStage struct {
	block *Block
}

func (s *nestedStage) Name() string { return s.block.name }

func (s *nestedStage) Forward(batch []*mat.Dense) ([]*mat.Dense, []*mat.Dense, error) {
	out := make([]*mat.Dense, len(batch))
	weights := make([]*mat.Dense, len(batch))
	w := s.block.width
	for i, x := range batch {
		r, c := x.Dims()
		if c < w {
			return nil, nil, fmt.Errorf("%s: outfit width %d below level width %d: %w", s.Name(), c, w, ErrShape)
		}
		head := x.Slice(0, r, 0, w)
		attended, aw, err := s.block.Attend(head, head)
		if err != nil {
			return nil, nil, err
		}
		if c == w {
			out[i] = attended
		} else {
			joined := mat.NewDense(r, c, nil)
			joined.Slice(0, r, 0, w).(*mat.Dense).Copy(attended)
			joined.Slice(0, r, w, c).(*mat.Dense).Copy(x.Slice(0, r, w, c))
			out[i] = joined
		}
		weights[i] = aw
	}
	return out, weights, nil
}

// crossStage attends each outfit against a context derived from the same
// tensor, using its own projections.
type crossStage struct {
	block *Block
}

func (s *crossStage) Name() string { return s.block.name }

func (s *crossStage) Forward(batch []*mat.Dense) ([]*mat.Dense, []*mat.Dense, error) {
	out := make([]*mat.Dense, len(batch))
	weights := make([]*mat.Dense, len(batch))
	for i, x := range batch {
		attended, aw, err := s.block.Attend(x, x)
		if err != nil {
			return nil, nil, err
		}
		out[i] = attended
		weights[i] = aw
	}
	return out, weights, nil
}

// globalStage merges the batch and slot axes so that every slot of every
// outfit attends to every slot in the batch.
type globalStage struct {
	block *Block
}

func (s *globalStage) Name() string { return s.block.name }

func (s *globalStage) Forward(batch []*mat.Dense) ([]*mat.Dense, []*mat.Dense, error) {
	flat, err := stack(batch)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", s.Name(), err)
	}
	attended, aw, err := s.block.Attend(flat, flat)
	if err != nil {
		return nil, nil, err
	}
	return split(attended, len(batch)), []*mat.Dense{aw}, nil
}

// stack concatenates equally shaped matrices along rows.
func stack(batch []*mat.Dense) (*mat.Dense, error) {
	if len(batch) == 0 {
		return nil, fmt.Errorf("empty batch: %w", ErrShape)
	}
	r, c := batch[0].Dims()
	out := mat.NewDense(r*len(batch), c, nil)
	for i, x := range batch {
		xr, xc := x.Dims()
		if xr != r || xc != c {
			return nil, fmt.Errorf("outfit %d is %dx%d, want %dx%d: %w", i, xr, xc, r, c, ErrShape)
		}
		out.Slice(i*r, (i+1)*r, 0, c).(*mat.Dense).Copy(x)
	}
	return out, nil
}

// split is the inverse of stack for n equal row blocks.
func split(m *mat.Dense, n int) []*mat.Dense {
	r, c := m.Dims()
	rows := r / n
	out := make([]*mat.Dense, n)
	for i := range out {
		part := mat.NewDense(rows, c, nil)
		part.Copy(m.Slice(i*rows, (i+1)*rows, 0, c))
		out[i] = part
	}
	return out
}
