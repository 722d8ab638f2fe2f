package draw

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
)

// RGBTriplesToPNG encodes finalized pixels as a deflate-compressed,
// non-interlaced PNG. Every pixel is opaque, so the encoder emits an RGB
// (truecolor) stream.
func RGBTriplesToPNG(triples RGBTriples, width, height int) ([]byte, error) {
	if len(triples) != width*height {
		return nil, fmt.Errorf("pixel count %d does not match %dx%d", len(triples), width, height)
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i, t := range triples {
		x, y := i%width, i/width
		img.SetNRGBA(x, y, color.NRGBA{R: t[0], G: t[1], B: t[2], A: 255})
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// PNGToRGBTriples decodes a PNG back into RGB triples; the alpha channel,
// if any, is dropped. Used by the golden-image test tooling.
func PNGToRGBTriples(r io.Reader) (RGBTriples, int, int, error) {
	img, err := png.Decode(r)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to decode PNG: %w", err)
	}

	bounds := img.Bounds()
	triples := make(RGBTriples, 0, bounds.Dx()*bounds.Dy())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			triples = append(triples, [3]uint8{c.R, c.G, c.B})
		}
	}
	return triples, bounds.Dx(), bounds.Dy(), nil
}
