// Package scoring implements the multi-level attention compatibility model
// that turns one outfit's slot embeddings into per-event logits.
//
// The forward pass is: nested self-attention over growing feature widths,
// one cross-attention pass, global attention across the whole batch, a
// shared per-slot feed-forward projection, and a linear classifier over the
// concatenated slot projections. Probabilities are independent sigmoids.
package scoring

import (
	"context"
	"fmt"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// Input is one outfit: exactly Slots embeddings of Width features each.
type Input struct {
	Embeddings [][]float64
}

// StageWeights are the attention weights one stage produced for an outfit.
// Global stages share a single batch-wide matrix across all outfits.
type StageWeights struct {
	Stage   string
	Weights *mat.Dense
}

// Result is the model output for one outfit.
type Result struct {
	Logits        []float64 // one per event label, in label order
	Probabilities []float64 // sigmoid(Logits), each in [0,1]
	Attention     []StageWeights
}

// Scorer computes event compatibility for a batch of outfits. Outfits in
// the same batch share the global attention context.
type Scorer interface {
	// Score evaluates the batch, honoring ctx between stages.
	Score(ctx context.Context, batch []Input) ([]Result, error)
	// Width is the embedding width every slot must have.
	Width() int
	// Slots is the number of slots every outfit must have.
	Slots() int
}

// Model is the inference-only attention network. It is immutable after
// construction and safe for concurrent use.
type Model struct {
	slots      int
	width      int
	labels     int
	scaled     bool
	stages     []Stage
	hidden     *linear
	norm       *batchNorm
	projection *linear
	classifier *linear
}

var _ Scorer = (*Model)(nil)

// NewModel builds a Model from trained parameters.
func NewModel(p Params, opts ...Option) (*Model, error) {
	m := &Model{slots: p.Slots, width: p.Width}
	for _, opt := range opts {
		opt(m)
	}
	if m.slots < 1 || m.width < 1 {
		return nil, fmt.Errorf("slots %d width %d: %w", m.slots, m.width, ErrShape)
	}
	if len(p.Levels) == 0 || p.Levels[len(p.Levels)-1].Width != m.width {
		return nil, fmt.Errorf("last attention level must span width %d: %w", m.width, ErrShape)
	}

	prev := 0
	for i, lp := range p.Levels {
		if lp.Width <= prev {
			return nil, fmt.Errorf("level %d width %d not increasing: %w", i, lp.Width, ErrShape)
		}
		prev = lp.Width
		b, err := newBlock("self_attention_"+strconv.Itoa(i), lp, m.scaled)
		if err != nil {
			return nil, err
		}
		m.stages = append(m.stages, &nestedStage{block: b})
	}
	cross, err := newBlock("cross_attention", p.Cross, m.scaled)
	if err != nil {
		return nil, err
	}
	global, err := newBlock("global_attention", p.Global, m.scaled)
	if err != nil {
		return nil, err
	}
	if cross.width != m.width || global.width != m.width {
		return nil, fmt.Errorf("cross/global width must be %d: %w", m.width, ErrShape)
	}
	m.stages = append(m.stages, &crossStage{block: cross}, &globalStage{block: global})

	if m.hidden, err = newLinear("hidden", p.Hidden); err != nil {
		return nil, err
	}
	if m.norm, err = newBatchNorm(p.Norm, m.hidden.out); err != nil {
		return nil, err
	}
	if m.projection, err = newLinear("projection", p.Projection); err != nil {
		return nil, err
	}
	if m.classifier, err = newLinear("classifier", p.Classifier); err != nil {
		return nil, err
	}
	if m.hidden.in != m.width || m.projection.in != m.hidden.out || m.classifier.in != m.slots*m.projection.out {
		return nil, fmt.Errorf("head layers do not chain: %w", ErrShape)
	}
	m.labels = m.classifier.out
	return m, nil
}

// Width returns the expected embedding width.
func (m *Model) Width() int { return m.width }

// Slots returns the expected slot count.
func (m *Model) Slots() int { return m.slots }

// Labels returns the number of logits per outfit.
func (m *Model) Labels() int { return m.labels }

// Score runs the forward pass for a batch of outfits.
func (m *Model) Score(ctx context.Context, batch []Input) ([]Result, error) {
	if len(batch) == 0 {
		return nil, nil
	}
	xs := make([]*mat.Dense, len(batch))
	for i, in := range batch {
		x, err := m.toMatrix(in)
		if err != nil {
			return nil, fmt.Errorf("outfit %d: %w", i, err)
		}
		xs[i] = x
	}

	attention := make([][]StageWeights, len(batch))
	for _, st := range m.stages {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled: %w", err)
		}
		out, weights, err := st.Forward(xs)
		if err != nil {
			return nil, err
		}
		for i := range batch {
			w := weights[0]
			if len(weights) == len(batch) {
				w = weights[i]
			}
			attention[i] = append(attention[i], StageWeights{Stage: st.Name(), Weights: w})
		}
		xs = out
	}

	logits, err := m.head(xs)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(batch))
	for i := range batch {
		row := logits.RawRowView(i)
		res := Result{
			Logits:        append([]float64(nil), row...),
			Probabilities: make([]float64, len(row)),
			Attention:     attention[i],
		}
		for j, v := range row {
			res.Probabilities[j] = sigmoid(v)
		}
		results[i] = res
	}
	return results, nil
}

// head projects every slot independently and classifies the concatenated
// slot projections of each outfit.
func (m *Model) head(xs []*mat.Dense) (*mat.Dense, error) {
	flat, err := stack(xs)
	if err != nil {
		return nil, err
	}
	h := m.hidden.forward(flat)
	relu(h)
	m.norm.apply(h)
	// dropout is the identity at inference
	p := m.projection.forward(h)
	tanh(p)

	// Rows are slot-major per outfit, so a row-major reshape concatenates
	// each outfit's slots in slot order.
	n := len(xs)
	joined := mat.NewDense(n, m.slots*m.projection.out, p.RawMatrix().Data)
	return m.classifier.forward(joined), nil
}

func (m *Model) toMatrix(in Input) (*mat.Dense, error) {
	if len(in.Embeddings) != m.slots {
		return nil, fmt.Errorf("got %d slots, want %d: %w", len(in.Embeddings), m.slots, ErrShape)
	}
	x := mat.NewDense(m.slots, m.width, nil)
	for i, e := range in.Embeddings {
		if len(e) != m.width {
			return nil, fmt.Errorf("slot %d has width %d, want %d: %w", i, len(e), m.width, ErrShape)
		}
		x.SetRow(i, e)
	}
	return x, nil
}
