package repository

import (
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/fitscore/internal/domain/model"
)

func withScore(id string, label model.EventLabel, s float64) model.Recommendation {
	return model.Recommendation{
		ID:        id,
		Scores:    map[model.EventLabel]float64{label: s},
		BestScore: s,
		CreatedAt: time.Now(),
	}
}

func TestFilterByEvent(t *testing.T) {
	Convey("Given stored records", t, func() {
		recs := []model.Recommendation{
			withScore("a", "Beach", 0.61),
			withScore("b", "Beach", 0.95),
			withScore("c", "Beach", 0.20),
			withScore("d", "Wedding", 0.99),
			withScore("e", "Beach", 0.61),
		}

		Convey("Only records above the threshold are returned, best first", func() {
			got, err := FilterByEvent(recs, "Beach", DefaultThreshold)
			So(err, ShouldBeNil)
			So(len(got), ShouldEqual, 3)
			So(got[0].Recommendation.ID, ShouldEqual, "b")
			So(got[1].Recommendation.ID, ShouldEqual, "a")
			So(got[2].Recommendation.ID, ShouldEqual, "e")
			So(got[0].Score, ShouldEqual, 0.95)
		})

		Convey("A zero threshold returns every record with the label", func() {
			got, err := FilterByEvent(recs, "Beach", 0)
			So(err, ShouldBeNil)
			So(len(got), ShouldEqual, 4)
		})

		Convey("Unknown events are rejected", func() {
			_, err := FilterByEvent(recs, "Disco", DefaultThreshold)
			So(errors.Is(err, ErrUnknownEvent), ShouldBeTrue)
		})
	})
}

func TestFilterByBest(t *testing.T) {
	Convey("Given records with different best scores", t, func() {
		recs := []model.Recommendation{
			withScore("a", "Beach", 0.40),
			withScore("b", "Wedding", 0.90),
			withScore("c", "Gym", 0.70),
		}

		Convey("Records under the threshold are dropped and the rest ranked", func() {
			got := FilterByBest(recs, DefaultThreshold)
			So(len(got), ShouldEqual, 2)
			So(got[0].Recommendation.ID, ShouldEqual, "b")
			So(got[1].Recommendation.ID, ShouldEqual, "c")
		})

		Convey("Nothing qualifying yields an empty result", func() {
			So(FilterByBest(recs, 0.95), ShouldBeEmpty)
		})
	})
}
