package scoring

import (
	"fmt"
	"math"
	"math/rand"
)

// Default architecture constants.
const (
	DefaultSlots      = 7
	DefaultWidth      = 2048
	DefaultHidden     = 1024
	DefaultProjection = 128
	DefaultReduction  = 8
	DefaultLabels     = 13
	defaultNormEps    = 1e-5
)

// LinearParams holds a dense layer in out×in row-major order.
type LinearParams struct {
	In     int       `json:"in"`
	Out    int       `json:"out"`
	Weight []float64 `json:"weight"`
	Bias   []float64 `json:"bias"`
}

// BlockParams holds the query/key/value projections of one attention block.
type BlockParams struct {
	Width     int          `json:"width"`
	Reduction int          `json:"reduction"`
	Query     LinearParams `json:"query"`
	Key       LinearParams `json:"key"`
	Value     LinearParams `json:"value"`
}

// NormParams holds inference-time batch normalization statistics.
type NormParams struct {
	Gamma []float64 `json:"gamma"`
	Beta  []float64 `json:"beta"`
	Mean  []float64 `json:"running_mean"`
	Var   []float64 `json:"running_var"`
	Eps   float64   `json:"eps"`
}

// Params is the full set of scorer weights.
type Params struct {
	Slots      int           `json:"slots"`
	Width      int           `json:"width"`
	Levels     []BlockParams `json:"levels"` // nested self-attention, narrowest first
	Cross      BlockParams   `json:"cross"`
	Global     BlockParams   `json:"global"`
	Hidden     LinearParams  `json:"hidden"`
	Norm       NormParams    `json:"norm"`
	Projection LinearParams  `json:"projection"`
	Classifier LinearParams  `json:"classifier"`
}

// LevelConfig describes one nested self-attention level.
type LevelConfig struct {
	Width     int
	Reduction int
}

// Dims describes the architecture used to initialize fresh parameters.
type Dims struct {
	Slots      int
	Width      int
	Hidden     int
	Projection int
	Labels     int
	Levels     []LevelConfig
}

// DefaultLevels returns the nested widths width/4, width/2 and width.
func DefaultLevels(width int) []LevelConfig {
	return []LevelConfig{
		{Width: width / 4, Reduction: DefaultReduction},
		{Width: width / 2, Reduction: DefaultReduction},
		{Width: width, Reduction: DefaultReduction},
	}
}

// DefaultDims returns the production architecture for the given width.
func DefaultDims(width int) Dims {
	return Dims{
		Slots:      DefaultSlots,
		Width:      width,
		Hidden:     width / 2,
		Projection: DefaultProjection,
		Labels:     DefaultLabels,
		Levels:     DefaultLevels(width),
	}
}

// Validate checks that the dimensions can build a model.
func (d Dims) Validate() error {
	if d.Slots < 1 || d.Width < 1 || d.Hidden < 1 || d.Projection < 1 || d.Labels < 1 {
		return fmt.Errorf("dims %+v: %w", d, ErrShape)
	}
	if len(d.Levels) == 0 || d.Levels[len(d.Levels)-1].Width != d.Width {
		return fmt.Errorf("last level must span width %d: %w", d.Width, ErrShape)
	}
	prev := 0
	for _, l := range d.Levels {
		if l.Width <= prev || l.Width > d.Width || l.Reduction < 1 || l.Width%l.Reduction != 0 {
			return fmt.Errorf("level %+v: %w", l, ErrShape)
		}
		prev = l.Width
	}
	if d.Width%DefaultReduction != 0 {
		return fmt.Errorf("width %d not divisible by %d: %w", d.Width, DefaultReduction, ErrShape)
	}
	return nil
}

// RandomParams initializes parameters deterministically from seed using
// uniform(-1/sqrt(in), 1/sqrt(in)) weights and identity normalization.
func RandomParams(d Dims, seed int64) (Params, error) {
	if err := d.Validate(); err != nil {
		return Params{}, err
	}
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic init

	p := Params{
		Slots:      d.Slots,
		Width:      d.Width,
		Cross:      randomBlock(rng, d.Width, DefaultReduction),
		Global:     randomBlock(rng, d.Width, DefaultReduction),
		Hidden:     randomLinear(rng, d.Width, d.Hidden),
		Projection: randomLinear(rng, d.Hidden, d.Projection),
		Classifier: randomLinear(rng, d.Slots*d.Projection, d.Labels),
		Norm: NormParams{
			Gamma: fill(d.Hidden, 1),
			Beta:  fill(d.Hidden, 0),
			Mean:  fill(d.Hidden, 0),
			Var:   fill(d.Hidden, 1),
			Eps:   defaultNormEps,
		},
	}
	for _, l := range d.Levels {
		p.Levels = append(p.Levels, randomBlock(rng, l.Width, l.Reduction))
	}
	return p, nil
}

func randomBlock(rng *rand.Rand, width, reduction int) BlockParams {
	return BlockParams{
		Width:     width,
		Reduction: reduction,
		Query:     randomLinear(rng, width, width/reduction),
		Key:       randomLinear(rng, width, width/reduction),
		Value:     randomLinear(rng, width, width),
	}
}

func randomLinear(rng *rand.Rand, in, out int) LinearParams {
	bound := 1 / math.Sqrt(float64(in))
	w := make([]float64, in*out)
	for i := range w {
		w[i] = (rng.Float64()*2 - 1) * bound
	}
	b := make([]float64, out)
	for i := range b {
		b[i] = (rng.Float64()*2 - 1) * bound
	}
	return LinearParams{In: in, Out: out, Weight: w, Bias: b}
}

func fill(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
