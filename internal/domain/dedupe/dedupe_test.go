package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/fitscore/internal/domain/dedupe"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new deduper", t, func() {
		d := dedupe.NewInMemoryDeduper()
		So(d.Size(), ShouldEqual, 0)

		Convey("The first trigger for an owner is new", func() {
			So(d.SeenAndRecord(ctx, "owner-1"), ShouldBeFalse)
			So(d.Size(), ShouldEqual, 1)

			Convey("A repeated trigger is collapsed", func() {
				So(d.SeenAndRecord(ctx, "owner-1"), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("Unrecord lets the next trigger through", func() {
				d.Unrecord(ctx, "owner-1")
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, "owner-1"), ShouldBeFalse)
			})
		})

		Convey("Unrecording an unknown owner is a no-op", func() {
			d.Unrecord(ctx, "ghost")
			So(d.Size(), ShouldEqual, 0)
		})
	})

	Convey("Given a bounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
		for i := 0; i < 4; i++ {
			So(d.SeenAndRecord(ctx, fmt.Sprintf("owner-%d", i)), ShouldBeFalse)
		}

		Convey("The oldest owner is dropped when full", func() {
			So(d.Size(), ShouldEqual, 3)
			So(d.SeenAndRecord(ctx, "owner-3"), ShouldBeTrue)
			So(d.SeenAndRecord(ctx, "owner-0"), ShouldBeFalse)
		})

		Convey("Removing from the middle keeps order intact", func() {
			d.Unrecord(ctx, "owner-2")
			So(d.SeenAndRecord(ctx, "owner-4"), ShouldBeFalse)
			So(d.Size(), ShouldEqual, 3)
			So(d.SeenAndRecord(ctx, "owner-1"), ShouldBeTrue)
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
		for i := 0; i < 1000; i++ {
			d.SeenAndRecord(ctx, fmt.Sprintf("owner-%d", i))
		}
		So(d.Size(), ShouldEqual, 1000)
	})

	Convey("Concurrent triggers for one owner record exactly once", t, func() {
		d := dedupe.NewInMemoryDeduper()
		var fresh int32
		var wg sync.WaitGroup
		for i := 0; i < 64; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if !d.SeenAndRecord(ctx, "owner-x") {
					atomic.AddInt32(&fresh, 1)
				}
			}()
		}
		wg.Wait()
		So(fresh, ShouldEqual, 1)
	})
}
