package imageproc

import (
	"bytes"
	"image"
	"image/color"
	"math/rand"
	"testing"
)

func TestPackScalarBitLayout(t *testing.T) {
	const w = 4
	src := make([]byte, w*16)
	// Column 0: rows 0 and 7 lit. Column 3: row 9 lit, row 10 just below.
	src[0*w+0] = 0xFF
	src[7*w+0] = 0x80
	src[9*w+3] = 0x80
	src[10*w+3] = 0x7F

	dst := make([]byte, w*2)
	PackScalar(dst, src, w, 2)

	want := []byte{0x81, 0, 0, 0, 0, 0, 0, 0x02}
	if !bytes.Equal(dst, want) {
		t.Errorf("PackScalar = % X, want % X", dst, want)
	}
}

func TestPackLanesMatchesScalar(t *testing.T) {
	rng := rand.New(rand.NewSource(1306))
	for _, dims := range [][2]int{{16, 8}, {32, 16}, {128, 32}, {128, 64}, {64, 48}} {
		w, h := dims[0], dims[1]
		pages := h / PageHeight
		for iter := 0; iter < 50; iter++ {
			src := make([]byte, w*h)
			rng.Read(src)

			scalar := make([]byte, w*pages)
			lanes := make([]byte, w*pages)
			PackScalar(scalar, src, w, pages)
			PackLanes(lanes, src, w, pages)
			if !bytes.Equal(scalar, lanes) {
				t.Fatalf("%dx%d iteration %d: lane output differs from scalar", w, h, iter)
			}
		}
	}
}

func TestPackLanesThresholdEdges(t *testing.T) {
	const w, h = 16, 8
	for _, v := range []byte{0x00, 0x7F, 0x80, 0xFE, 0xFF} {
		src := bytes.Repeat([]byte{v}, w*h)
		scalar := make([]byte, w)
		lanes := make([]byte, w)
		PackScalar(scalar, src, w, 1)
		PackLanes(lanes, src, w, 1)
		if !bytes.Equal(scalar, lanes) {
			t.Errorf("level %#x: lanes % X, scalar % X", v, lanes, scalar)
		}
		want := byte(0)
		if v >= Threshold {
			want = 0xFF
		}
		if scalar[0] != want {
			t.Errorf("level %#x packed to %#x, want %#x", v, scalar[0], want)
		}
	}
}

func TestSelectPacker(t *testing.T) {
	var packWith = func(p Packer) []byte {
		src := make([]byte, 16*8)
		src[0] = 0xFF
		dst := make([]byte, 16)
		p(dst, src, 16, 1)
		return dst
	}
	if !bytes.Equal(packWith(SelectPacker(128)), packWith(PackLanes)) {
		t.Errorf("width 128 did not select a working packer")
	}
	// Width 20 cannot use lanes; the scalar packer handles it.
	src := make([]byte, 20*8)
	dst := make([]byte, 20)
	SelectPacker(20)(dst, src, 20, 1)
}

func TestPackSubImage(t *testing.T) {
	full := image.NewGray(image.Rect(0, 0, 40, 16))
	full.SetGray(5, 3, color.Gray{Y: 0xFF})
	sub := full.SubImage(image.Rect(4, 0, 36, 16)).(*image.Gray)

	got, err := Pack(sub)
	if err != nil {
		t.Fatalf("Pack failed: %v", err)
	}
	if len(got) != 32*2 {
		t.Fatalf("Pack returned %d bytes, want 64", len(got))
	}
	if got[1] != 1<<3 {
		t.Errorf("byte 1 = %#x, want %#x", got[1], 1<<3)
	}

	if _, err := Pack(image.NewGray(image.Rect(0, 0, 16, 12))); err == nil {
		t.Errorf("Pack accepted a height that is not a page multiple")
	}
}

func TestResizeNearest(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 2, 2))
	src.Pix = []byte{10, 20, 30, 40}

	if Resize(src, 2, 2) != src {
		t.Errorf("same-size Resize copied the image")
	}
	out := Resize(src, 4, 4)
	want := []byte{
		10, 10, 20, 20,
		10, 10, 20, 20,
		30, 30, 40, 40,
		30, 30, 40, 40,
	}
	if !bytes.Equal(out.Pix, want) {
		t.Errorf("Resize = %v, want %v", out.Pix, want)
	}
}

func TestCanvasDisplayPacks(t *testing.T) {
	var got []byte
	c := NewCanvas(32, 8, func(b []byte) error {
		got = b
		return nil
	})
	if x, y := c.Size(); x != 32 || y != 8 {
		t.Fatalf("Size() = %d,%d", x, y)
	}
	c.SetPixel(2, 4, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	c.SetPixel(-1, 0, color.RGBA{R: 255, A: 255})
	c.SetPixel(32, 0, color.RGBA{R: 255, A: 255})
	if err := c.Display(); err != nil {
		t.Fatalf("Display failed: %v", err)
	}
	if len(got) != 32 || got[2] != 1<<4 {
		t.Errorf("packed = % X", got)
	}
	for i, b := range got {
		if i != 2 && b != 0 {
			t.Errorf("byte %d = %#x, want 0", i, b)
		}
	}
}

func TestCanvasDrawScalesImage(t *testing.T) {
	var got []byte
	c := NewCanvas(16, 8, func(b []byte) error {
		got = b
		return nil
	})

	// 2x1 source: left half lit, right half dark.
	src := image.NewGray(image.Rect(0, 0, 2, 1))
	src.Pix = []byte{0xFF, 0x00}
	c.Draw(src)
	if err := c.Display(); err != nil {
		t.Fatalf("Display failed: %v", err)
	}
	for i, b := range got {
		want := byte(0)
		if i < 8 {
			want = 0xFF
		}
		if b != want {
			t.Errorf("column %d = %#x, want %#x", i, b, want)
		}
	}
}
