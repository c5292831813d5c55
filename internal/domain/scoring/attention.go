package scoring

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Block is one dot-product attention unit. Queries come from x, keys and
// values from a context tensor; the attended values are added back onto x.
type Block struct {
	name     string
	width    int
	keyWidth int
	scaled   bool
	query    *linear
	key      *linear
	value    *linear
}

func newBlock(name string, p BlockParams, scaled bool) (*Block, error) {
	if p.Width < 1 || p.Reduction < 1 || p.Width%p.Reduction != 0 {
		return nil, fmt.Errorf("%s: width %d reduction %d: %w", name, p.Width, p.Reduction, ErrShape)
	}
	kw := p.Width / p.Reduction
	q, err := newLinear(name+".query", p.Query)
	if err != nil {
		return nil, err
	}
	k, err := newLinear(name+".key", p.Key)
	if err != nil {
		return nil, err
	}
	v, err := newLinear(name+".value", p.Value)
	if err != nil {
		return nil, err
	}
	if q.in != p.Width || q.out != kw || k.in != p.Width || k.out != kw || v.in != p.Width || v.out != p.Width {
		return nil, fmt.Errorf("%s: projections do not match width %d: %w", name, p.Width, ErrShape)
	}
	return &Block{name: name, width: p.Width, keyWidth: kw, scaled: scaled, query: q, key: k, value: v}, nil
}

// Width returns the feature width the block attends over.
func (b *Block) Width() int { return b.width }

// Attend returns softmax(Q·Kᵀ)·V + x and the attention weights. Rows of
// the weight matrix sum to one over the context rows.
func (b *Block) Attend(x, context mat.Matrix) (*mat.Dense, *mat.Dense, error) {
	xr, xc := x.Dims()
	_, cc := context.Dims()
	if xc != b.width || cc != b.width {
		return nil, nil, fmt.Errorf("%s: got widths %d/%d, want %d: %w", b.name, xc, cc, b.width, ErrShape)
	}

	q := b.query.forward(x)
	k := b.key.forward(context)
	v := b.value.forward(context)

	cr, _ := context.Dims()
	weights := mat.NewDense(xr, cr, nil)
	weights.Mul(q, k.T())
	if b.scaled {
		weights.Scale(1/math.Sqrt(float64(b.keyWidth)), weights)
	}
	softmaxRows(weights)

	out := residual(weights, v, x)
	return out, weights, nil
}

// residual computes weights·values + x.
func residual(weights, values *mat.Dense, x mat.Matrix) *mat.Dense {
	r, _ := weights.Dims()
	_, c := values.Dims()
	out := mat.NewDense(r, c, nil)
	out.Mul(weights, values)
	out.Add(out, x)
	return out
}

// softmaxRows normalizes every row in place, subtracting the row max
// before exponentiation.
func softmaxRows(m *mat.Dense) {
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		row := m.RawRowView(i)
		hi := floats.Max(row)
		sum := 0.0
		for j, v := range row {
			e := math.Exp(v - hi)
			row[j] = e
			sum += e
		}
		floats.Scale(1/sum, row)
	}
}
