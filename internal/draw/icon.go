package draw

import (
	"fmt"
	"image"
	"image/png"
	"os"
)

// Icon is a decoded bitmap ready for blitting into a figure.
type Icon struct {
	Width  int
	Height int
	pixels []RGBA
}

// LoadIcon reads and decodes a PNG icon. RGB, RGBA and grayscale+alpha
// color types are supported; grayscale maps to (g, g, g, a).
func LoadIcon(path string) (*Icon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open icon file: %w", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("icon is not a valid PNG file: %w", err)
	}

	return iconFromImage(img), nil
}

func iconFromImage(img image.Image) *Icon {
	bounds := img.Bounds()
	icon := &Icon{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		pixels: make([]RGBA, 0, bounds.Dx()*bounds.Dy()),
	}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			// RGBA() returns premultiplied 16-bit components, which is the
			// figure's native representation.
			r, g, b, a := img.At(x, y).RGBA()
			icon.pixels = append(icon.pixels, RGBA{
				R: float64(r) / 0xffff,
				G: float64(g) / 0xffff,
				B: float64(b) / 0xffff,
				A: float64(a) / 0xffff,
			})
		}
	}
	return icon
}

// At returns the premultiplied pixel at (x, y).
func (i *Icon) At(x, y int) RGBA {
	return i.pixels[y*i.Width+x]
}

// Draw blits the icon centered at (centerX, centerY) into the figure.
func (i *Icon) Draw(figure *Figure, centerX, centerY float64) {
	startX := int(centerX - float64(i.Width)/2)
	startY := int(centerY - float64(i.Height)/2)

	for y := 0; y < i.Height; y++ {
		for x := 0; x < i.Width; x++ {
			figure.Add(startX+x, startY+y, i.At(x, y))
		}
	}
}
