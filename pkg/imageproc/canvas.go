package imageproc

import (
	"image"
	"image/color"
)

// Canvas is a grayscale drawing surface usable as a tinygo drivers.Displayer.
// Display packs the image and hands the bytes to the sink.
type Canvas struct {
	img  *image.Gray
	sink func(packed []byte) error
}

// NewCanvas allocates a black width x height canvas. height must be a
// multiple of PageHeight.
func NewCanvas(width, height int, sink func(packed []byte) error) *Canvas {
	return &Canvas{
		img:  image.NewGray(image.Rect(0, 0, width, height)),
		sink: sink,
	}
}

func (c *Canvas) Size() (x, y int16) {
	b := c.img.Bounds()
	return int16(b.Dx()), int16(b.Dy())
}

func (c *Canvas) SetPixel(x, y int16, col color.RGBA) {
	if !(image.Point{X: int(x), Y: int(y)}).In(c.img.Rect) {
		return
	}
	c.img.SetGray(int(x), int(y), color.GrayModel.Convert(col).(color.Gray))
}

// Fill paints the whole canvas with a single level.
func (c *Canvas) Fill(level uint8) {
	for i := range c.img.Pix {
		c.img.Pix[i] = level
	}
}

// Draw copies img onto the canvas, resizing it to fit.
func (c *Canvas) Draw(img *image.Gray) {
	b := c.img.Bounds()
	copy(c.img.Pix, Resize(img, b.Dx(), b.Dy()).Pix)
}

// Image exposes the backing image.
func (c *Canvas) Image() *image.Gray { return c.img }

func (c *Canvas) Display() error {
	if c.sink == nil {
		return nil
	}
	packed, err := Pack(c.img)
	if err != nil {
		return err
	}
	return c.sink(packed)
}
