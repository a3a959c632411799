// Package imageproc converts 8-bit grayscale images into the page-packed
// 1-bit layout of a monochrome OLED. A pixel is lit when its value is at
// least Threshold.
package imageproc

import (
	"encoding/binary"
	"fmt"
	"image"
)

const (
	// Threshold is the lowest lit gray level; packing only inspects bit 7.
	Threshold = 0x80
	// PageHeight is the number of rows folded into one output byte.
	PageHeight = 8
	// LaneColumns is how many columns PackLanes handles per step.
	LaneColumns = 16
)

// Packer packs a row-major grayscale buffer of width x pages*8 pixels into
// dst, one byte per (page, column), bit i holding row page*8+i.
type Packer func(dst, src []byte, width, pages int)

// PackScalar is the reference packer.
func PackScalar(dst, src []byte, width, pages int) {
	for page := 0; page < pages; page++ {
		out := dst[page*width : (page+1)*width]
		for col := 0; col < width; col++ {
			var b byte
			for i := 0; i < PageHeight; i++ {
				b |= (src[(page*PageHeight+i)*width+col] >> 7) << i
			}
			out[col] = b
		}
	}
}

const lsbs = 0x0101010101010101

// PackLanes packs 16 columns at a time as two 64-bit lanes: each row's MSBs
// are moved to bit 0 of every byte, shifted to the row's bit position and
// ORed into the accumulator. width must be a multiple of LaneColumns.
func PackLanes(dst, src []byte, width, pages int) {
	for col := 0; col < width; col += LaneColumns {
		for page := 0; page < pages; page++ {
			var lo, hi uint64
			base := page * PageHeight * width
			for r := 0; r < PageHeight; r++ {
				row := src[base+r*width+col:]
				lo |= (binary.LittleEndian.Uint64(row) >> 7 & lsbs) << r
				hi |= (binary.LittleEndian.Uint64(row[8:]) >> 7 & lsbs) << r
			}
			out := dst[page*width+col:]
			binary.LittleEndian.PutUint64(out, lo)
			binary.LittleEndian.PutUint64(out[8:], hi)
		}
	}
}

// SelectPacker returns PackLanes when width suits it, PackScalar otherwise.
func SelectPacker(width int) Packer {
	if width > 0 && width%LaneColumns == 0 {
		return PackLanes
	}
	return PackScalar
}

// Pack converts img into page-packed bytes. The image height must be a
// multiple of PageHeight.
func Pack(img *image.Gray) ([]byte, error) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if w <= 0 || h <= 0 || h%PageHeight != 0 {
		return nil, fmt.Errorf("imageproc: cannot pack %dx%d image", w, h)
	}
	src := img.Pix
	if img.Stride != w || img.Rect.Min != (image.Point{}) {
		src = make([]byte, w*h)
		for y := 0; y < h; y++ {
			off := img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y+y)
			copy(src[y*w:], img.Pix[off:off+w])
		}
	}
	pages := h / PageHeight
	dst := make([]byte, w*pages)
	SelectPacker(w)(dst, src, w, pages)
	return dst, nil
}

// Resize scales img to width x height with nearest-neighbour sampling. The
// image is returned unchanged when it already has that size.
func Resize(img *image.Gray, width, height int) *image.Gray {
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img
	}
	out := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		sy := b.Min.Y + y*b.Dy()/height
		for x := 0; x < width; x++ {
			sx := b.Min.X + x*b.Dx()/width
			out.Pix[y*out.Stride+x] = img.Pix[img.PixOffset(sx, sy)]
		}
	}
	return out
}
