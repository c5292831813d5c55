package embedding

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register decoder
)

// decode parses encoded image bytes in any registered format.
func decode(ref string, data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Ref: ref, Err: errEmptyImage}
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Ref: ref, Err: err}
	}
	return img, nil
}

// preprocess flattens transparency onto white, resizes to res×res
// and scales channels into [0,1] in channel-major order.
func preprocess(img image.Image, res int) tensor {
	flat := image.NewRGBA(img.Bounds())
	draw.Draw(flat, flat.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(flat, flat.Bounds(), img, img.Bounds().Min, draw.Over)

	dst := image.NewRGBA(image.Rect(0, 0, res, res))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), flat, flat.Bounds(), xdraw.Src, nil)

	plane := res * res
	t := tensor{c: rgbChannels, h: res, w: res, data: make([]float64, rgbChannels*plane)}
	for y := 0; y < res; y++ {
		for x := 0; x < res; x++ {
			i := dst.PixOffset(x, y)
			p := y*res + x
			t.data[p] = float64(dst.Pix[i]) / 255
			t.data[plane+p] = float64(dst.Pix[i+1]) / 255
			t.data[2*plane+p] = float64(dst.Pix[i+2]) / 255
		}
	}
	return t
}

// blankImage is the all-white square used for padding slots.
func blankImage(res int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, res, res))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return img
}
