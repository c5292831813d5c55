package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/fitscore/internal/config"
	"github.com/okian/fitscore/internal/domain/model"
	"github.com/okian/fitscore/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func writePNG(t *testing.T, path string, c color.Color) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 6, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 6; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestRun(t *testing.T) {
	convey.Convey("Given an image root and an items file", t, func() {
		root := t.TempDir()
		writePNG(t, filepath.Join(root, "a.png"), color.RGBA{R: 255, A: 255})
		writePNG(t, filepath.Join(root, "b.png"), color.RGBA{G: 255, A: 255})
		writePNG(t, filepath.Join(root, "c.png"), color.RGBA{B: 255, A: 255})

		itemsPath := filepath.Join(t.TempDir(), "items.json")
		body := `{"items":[
			{"id":"tee","image_ref":"a.png","category":"Tops"},
			{"id":"jeans","image_ref":"b.png","category":"Bottoms"},
			{"id":"boots","image_ref":"c.png","category":"Shoes"}]}`
		convey.So(os.WriteFile(itemsPath, []byte(body), 0o600), convey.ShouldBeNil)

		cfg := config.New(context.Background())
		cfg.ImageRoot = root
		cfg.BackboneWidth = 64
		cfg.ImageResolution = 16
		cfg.HiddenWidth = 32
		cfg.ProjectionWidth = 8

		convey.Convey("The ranked table lists the single outfit", func() {
			var out bytes.Buffer
			err := run(context.Background(), cfg, options{owner: "u1", itemsFile: itemsPath, top: 5}, &out)
			convey.So(err, convey.ShouldBeNil)
			convey.So(out.String(), convey.ShouldContainSubstring, "1 candidates, 0 skipped, 1 stored")
			convey.So(out.String(), convey.ShouldContainSubstring, "RANK")
			convey.So(out.String(), convey.ShouldContainSubstring, "tee, jeans, boots")
		})

		convey.Convey("An event column is used when ranking by event", func() {
			var out bytes.Buffer
			err := run(context.Background(), cfg, options{owner: "u1", itemsFile: itemsPath, event: "Beach"}, &out)
			convey.So(err, convey.ShouldBeNil)
			convey.So(out.String(), convey.ShouldContainSubstring, "BEACH")
		})

		convey.Convey("An unknown event fails", func() {
			var out bytes.Buffer
			err := run(context.Background(), cfg, options{owner: "u1", itemsFile: itemsPath, event: "Disco"}, &out)
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("An owner without a body reports it", func() {
			var out bytes.Buffer
			err := run(context.Background(), cfg, options{owner: "nobody"}, &out)
			convey.So(err, convey.ShouldBeNil)
			convey.So(out.String(), convey.ShouldContainSubstring, "cannot form an outfit")
		})
	})
}

func TestTopEvent(t *testing.T) {
	convey.Convey("Given a record with a clear favourite", t, func() {
		probs := make([]float64, model.EventCount)
		probs[3] = 0.8
		probs[7] = 0.8
		r := model.NewRecommendation("r", "u", nil, probs, time.Now())
		convey.So(topEvent(r), convey.ShouldEqual, string(model.EventLabels[3]))
		convey.So(strings.ToUpper(topEvent(r)), convey.ShouldEqual, "MET GALA")
	})
}
