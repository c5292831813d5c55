package scoring

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// linear is a dense layer computing x·Wᵀ + b row-wise.
type linear struct {
	in, out int
	w       *mat.Dense
	b       []float64
}

func newLinear(name string, p LinearParams) (*linear, error) {
	if p.In < 1 || p.Out < 1 || len(p.Weight) != p.In*p.Out || len(p.Bias) != p.Out {
		return nil, fmt.Errorf("%s: %dx%d with %d weights and %d biases: %w",
			name, p.Out, p.In, len(p.Weight), len(p.Bias), ErrShape)
	}
	w := make([]float64, len(p.Weight))
	copy(w, p.Weight)
	b := make([]float64, len(p.Bias))
	copy(b, p.Bias)
	return &linear{in: p.In, out: p.Out, w: mat.NewDense(p.Out, p.In, w), b: b}, nil
}

func (l *linear) forward(x mat.Matrix) *mat.Dense {
	r, _ := x.Dims()
	y := mat.NewDense(r, l.out, nil)
	y.Mul(x, l.w.T())
	for i := 0; i < r; i++ {
		floats.Add(y.RawRowView(i), l.b)
	}
	return y
}

// batchNorm applies inference-time normalization per feature column.
type batchNorm struct {
	scale, shift []float64
}

func newBatchNorm(p NormParams, width int) (*batchNorm, error) {
	if len(p.Gamma) != width || len(p.Beta) != width || len(p.Mean) != width || len(p.Var) != width {
		return nil, fmt.Errorf("norm width %d: %w", width, ErrShape)
	}
	eps := p.Eps
	if eps <= 0 {
		eps = defaultNormEps
	}
	n := &batchNorm{scale: make([]float64, width), shift: make([]float64, width)}
	for i := 0; i < width; i++ {
		n.scale[i] = p.Gamma[i] / math.Sqrt(p.Var[i]+eps)
		n.shift[i] = p.Beta[i] - p.Mean[i]*n.scale[i]
	}
	return n, nil
}

func (n *batchNorm) apply(x *mat.Dense) {
	r, _ := x.Dims()
	for i := 0; i < r; i++ {
		row := x.RawRowView(i)
		floats.Mul(row, n.scale)
		floats.Add(row, n.shift)
	}
}

func relu(x *mat.Dense) {
	x.Apply(func(_, _ int, v float64) float64 { return math.Max(0, v) }, x)
}

func tanh(x *mat.Dense) {
	x.Apply(func(_, _ int, v float64) float64 { return math.Tanh(v) }, x)
}

func sigmoid(v float64) float64 {
	return 1 / (1 + math.Exp(-v))
}
