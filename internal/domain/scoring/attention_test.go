package scoring

import (
	"errors"
	"math/rand"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func randomMatrix(rng *rand.Rand, r, c int) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	return mat.NewDense(r, c, data)
}

func TestBlock_Attend(t *testing.T) {
	Convey("Given a block whose value projection is zero", t, func() {
		rng := rand.New(rand.NewSource(1))
		p := randomBlock(rng, 16, 8)
		p.Value.Weight = make([]float64, len(p.Value.Weight))
		p.Value.Bias = make([]float64, len(p.Value.Bias))
		b, err := newBlock("zero", p, false)
		So(err, ShouldBeNil)

		x := randomMatrix(rng, 7, 16)
		out, _, err := b.Attend(x, x)
		So(err, ShouldBeNil)

		Convey("Then the output should equal the input", func() {
			So(mat.EqualApprox(out, x, 1e-12), ShouldBeTrue)
		})
	})

	Convey("Given attention weights that are all zero", t, func() {
		rng := rand.New(rand.NewSource(2))
		x := randomMatrix(rng, 7, 16)
		values := randomMatrix(rng, 7, 16)

		out := residual(mat.NewDense(7, 7, nil), values, x)

		Convey("Then the residual should pass the input through", func() {
			So(mat.Equal(out, x), ShouldBeTrue)
		})
	})

	Convey("Given a random block", t, func() {
		rng := rand.New(rand.NewSource(3))
		b, err := newBlock("rand", randomBlock(rng, 32, 8), false)
		So(err, ShouldBeNil)
		x := randomMatrix(rng, 7, 32)

		_, w, err := b.Attend(x, x)
		So(err, ShouldBeNil)

		Convey("Then every weight row should sum to one", func() {
			r, _ := w.Dims()
			for i := 0; i < r; i++ {
				So(floats.Sum(w.RawRowView(i)), ShouldAlmostEqual, 1.0, 1e-9)
			}
		})

		Convey("Then a wrong input width should be rejected", func() {
			_, _, err := b.Attend(randomMatrix(rng, 7, 16), randomMatrix(rng, 7, 16))
			So(errors.Is(err, ErrShape), ShouldBeTrue)
		})
	})
}

func TestNestedStage(t *testing.T) {
	Convey("Given a nested stage over the first 16 of 64 features", t, func() {
		rng := rand.New(rand.NewSource(4))
		b, err := newBlock("level", randomBlock(rng, 16, 8), false)
		So(err, ShouldBeNil)
		st := &nestedStage{block: b}
		x := randomMatrix(rng, 7, 64)

		out, weights, err := st.Forward([]*mat.Dense{x})
		So(err, ShouldBeNil)

		Convey("Then the untouched remainder should be carried over", func() {
			So(mat.Equal(out[0].Slice(0, 7, 16, 64), x.Slice(0, 7, 16, 64)), ShouldBeTrue)
			So(mat.Equal(out[0].Slice(0, 7, 0, 16), x.Slice(0, 7, 0, 16)), ShouldBeFalse)
			So(len(weights), ShouldEqual, 1)
		})
	})
}

func TestStackSplit(t *testing.T) {
	Convey("Given three outfits", t, func() {
		rng := rand.New(rand.NewSource(5))
		batch := []*mat.Dense{randomMatrix(rng, 7, 8), randomMatrix(rng, 7, 8), randomMatrix(rng, 7, 8)}

		flat, err := stack(batch)
		So(err, ShouldBeNil)

		Convey("Then split should invert stack", func() {
			parts := split(flat, 3)
			for i := range batch {
				So(mat.Equal(parts[i], batch[i]), ShouldBeTrue)
			}
		})

		Convey("Then mismatched shapes should be rejected", func() {
			_, err := stack([]*mat.Dense{batch[0], randomMatrix(rng, 6, 8)})
			So(errors.Is(err, ErrShape), ShouldBeTrue)
		})
	})
}
