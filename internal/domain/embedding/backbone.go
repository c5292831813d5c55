package embedding

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Default backbone constants.
const (
	DefaultResolution = 224
	defaultKernel     = 3
	defaultStride     = 2
	defaultPadding    = 1
	rgbChannels       = 3
)

// LayerParams holds one convolution in out×in×k×k row-major order.
type LayerParams struct {
	In      int       `json:"in"`
	Out     int       `json:"out"`
	Kernel  int       `json:"kernel"`
	Stride  int       `json:"stride"`
	Padding int       `json:"padding"`
	Weight  []float64 `json:"weight"`
	Bias    []float64 `json:"bias"`
}

// BackboneParams describes the convolutional feature extractor.
type BackboneParams struct {
	Resolution int           `json:"resolution"`
	Layers     []LayerParams `json:"layers"`
}

// Width returns the channel count of the last layer.
func (p BackboneParams) Width() int {
	if len(p.Layers) == 0 {
		return 0
	}
	return p.Layers[len(p.Layers)-1].Out
}

// RandomBackbone builds a deterministic three-stage backbone
// (3 → width/4 → width/2 → width channels, stride 2 each).
func RandomBackbone(resolution, width int, seed int64) (BackboneParams, error) {
	if resolution < 1 || width < 4 || width%4 != 0 {
		return BackboneParams{}, fmt.Errorf("resolution %d width %d: %w", resolution, width, ErrShape)
	}
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic init
	chans := []int{rgbChannels, width / 4, width / 2, width}
	p := BackboneParams{Resolution: resolution}
	for i := 0; i+1 < len(chans); i++ {
		in, out := chans[i], chans[i+1]
		fan := in * defaultKernel * defaultKernel
		bound := math.Sqrt(6 / float64(fan))
		w := make([]float64, out*fan)
		for j := range w {
			w[j] = (rng.Float64()*2 - 1) * bound
		}
		p.Layers = append(p.Layers, LayerParams{
			In: in, Out: out, Kernel: defaultKernel, Stride: defaultStride, Padding: defaultPadding,
			Weight: w, Bias: make([]float64, out),
		})
	}
	return p, nil
}

// tensor is a channel-major feature map.
type tensor struct {
	c, h, w int
	data    []float64
}

// conv is a 2-D convolution followed by ReLU, evaluated as an im2col
// matrix product.
type conv struct {
	in, out, k, stride, pad int
	w                       *mat.Dense // out × in·k·k
	b                       []float64
}

func newConv(i int, p LayerParams) (*conv, error) {
	if p.In < 1 || p.Out < 1 || p.Kernel < 1 || p.Stride < 1 || p.Padding < 0 ||
		len(p.Weight) != p.Out*p.In*p.Kernel*p.Kernel || len(p.Bias) != p.Out {
		return nil, fmt.Errorf("layer %d: %w", i, ErrShape)
	}
	w := append([]float64(nil), p.Weight...)
	return &conv{
		in: p.In, out: p.Out, k: p.Kernel, stride: p.Stride, pad: p.Padding,
		w: mat.NewDense(p.Out, p.In*p.Kernel*p.Kernel, w),
		b: append([]float64(nil), p.Bias...),
	}, nil
}

func (c *conv) forward(x tensor) (tensor, error) {
	if x.c != c.in {
		return tensor{}, fmt.Errorf("got %d channels, want %d: %w", x.c, c.in, ErrShape)
	}
	oh := (x.h+2*c.pad-c.k)/c.stride + 1
	ow := (x.w+2*c.pad-c.k)/c.stride + 1
	if oh < 1 || ow < 1 {
		return tensor{}, fmt.Errorf("feature map %dx%d too small: %w", x.h, x.w, ErrShape)
	}

	cols := mat.NewDense(c.in*c.k*c.k, oh*ow, nil)
	for ch := 0; ch < c.in; ch++ {
		plane := x.data[ch*x.h*x.w : (ch+1)*x.h*x.w]
		for ky := 0; ky < c.k; ky++ {
			for kx := 0; kx < c.k; kx++ {
				row := cols.RawRowView((ch*c.k+ky)*c.k + kx)
				for oy := 0; oy < oh; oy++ {
					iy := oy*c.stride + ky - c.pad
					if iy < 0 || iy >= x.h {
						continue
					}
					for ox := 0; ox < ow; ox++ {
						ix := ox*c.stride + kx - c.pad
						if ix < 0 || ix >= x.w {
							continue
						}
						row[oy*ow+ox] = plane[iy*x.w+ix]
					}
				}
			}
		}
	}

	y := mat.NewDense(c.out, oh*ow, nil)
	y.Mul(c.w, cols)
	for o := 0; o < c.out; o++ {
		row := y.RawRowView(o)
		floats.AddConst(c.b[o], row)
		for j, v := range row {
			if v < 0 {
				row[j] = 0
			}
		}
	}
	return tensor{c: c.out, h: oh, w: ow, data: y.RawMatrix().Data}, nil
}

// Backbone maps a preprocessed RGB tensor to a pooled feature vector.
type Backbone struct {
	resolution int
	layers     []*conv
}

// NewBackbone validates params and builds the backbone.
func NewBackbone(p BackboneParams) (*Backbone, error) {
	if p.Resolution < 1 || len(p.Layers) == 0 {
		return nil, fmt.Errorf("resolution %d with %d layers: %w", p.Resolution, len(p.Layers), ErrShape)
	}
	b := &Backbone{resolution: p.Resolution}
	prev := rgbChannels
	for i, lp := range p.Layers {
		if lp.In != prev {
			return nil, fmt.Errorf("layer %d expects %d channels, previous gives %d: %w", i, lp.In, prev, ErrShape)
		}
		c, err := newConv(i, lp)
		if err != nil {
			return nil, err
		}
		b.layers = append(b.layers, c)
		prev = lp.Out
	}
	return b, nil
}

// Resolution returns the square input size.
func (b *Backbone) Resolution() int { return b.resolution }

// Width returns the pooled vector width.
func (b *Backbone) Width() int { return b.layers[len(b.layers)-1].out }

// Forward runs every layer and averages the final map spatially.
func (b *Backbone) Forward(x tensor) ([]float64, error) {
	var err error
	for i, l := range b.layers {
		if x, err = l.forward(x); err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
	}
	n := x.h * x.w
	out := make([]float64, x.c)
	for ch := range out {
		out[ch] = floats.Sum(x.data[ch*n:(ch+1)*n]) / float64(n)
	}
	return out, nil
}
