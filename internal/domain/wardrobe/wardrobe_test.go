package wardrobe_test

import (
	"errors"
	"testing"

	"github.com/okian/fitscore/internal/domain/model"
	"github.com/okian/fitscore/internal/domain/wardrobe"
	. "github.com/smartystreets/goconvey/convey"
)

func item(id string, c model.Category) model.Item {
	return model.Item{ID: id, ImageRef: id + ".jpg", Category: c, OwnerID: "u1"}
}

func TestIndex(t *testing.T) {
	Convey("Given a mixed wardrobe", t, func() {
		items := []model.Item{
			item("TOP01", model.CategoryTops),
			item("ALL01", model.CategoryAllWear),
			item("TOP02", model.CategoryTops),
			item("BTM01", model.CategoryBottoms),
			item("SHO01", model.CategoryShoes),
			item("SUN01", model.CategorySunglasses),
			item("BAG01", model.Category("Bags")),
			item("HAT01", model.CategoryHats),
			item("OUT01", model.CategoryOuterwear),
			item("TOP01", model.CategoryTops),
		}
		x, err := wardrobe.New("u1", items)
		So(err, ShouldBeNil)

		Convey("Then duplicated ids should be indexed once", func() {
			So(x.Len(), ShouldEqual, 9)
			So(len(x.Items(model.CategoryTops)), ShouldEqual, 2)
		})

		Convey("Then CoreTop should merge tops and all-wear without mutating either", func() {
			core := x.CoreTop()
			So(len(core), ShouldEqual, 3)
			So(core[0].ID, ShouldEqual, "TOP01")
			So(core[2].ID, ShouldEqual, "ALL01")
			So(len(x.Items(model.CategoryTops)), ShouldEqual, 2)
			So(len(x.Items(model.CategoryAllWear)), ShouldEqual, 1)
		})

		Convey("Then optional groups should follow catalog order then name", func() {
			groups := x.Optional()
			var got []model.Category
			for _, g := range groups {
				got = append(got, g.Category)
			}
			So(got, ShouldResemble, []model.Category{
				model.CategoryOuterwear, model.CategoryHats, model.CategorySunglasses, "Bags",
			})
		})
	})

	Convey("Given an item owned by someone else", t, func() {
		foreign := model.Item{ID: "X", Category: model.CategoryTops, OwnerID: "u2"}

		Convey("Then indexing should fail", func() {
			_, err := wardrobe.New("u1", []model.Item{foreign})
			So(errors.Is(err, wardrobe.ErrForeignItem), ShouldBeTrue)
		})
	})

	Convey("Given an empty owner id", t, func() {
		_, err := wardrobe.New("", nil)
		So(errors.Is(err, wardrobe.ErrEmptyOwner), ShouldBeTrue)
	})
}
