package imageproc

import (
	"fmt"
	"image"
	"image/draw"
	_ "image/png"
	"os"
)

// LoadGray decodes the PNG at path and converts it to 8-bit grayscale.
func LoadGray(path string) (*image.Gray, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("imageproc: open %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("imageproc: decode %s: %w", path, err)
	}
	return ToGray(img), nil
}

// ToGray converts img to grayscale, returning it unchanged when it already is.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), img, b.Min, draw.Src)
	return g
}
