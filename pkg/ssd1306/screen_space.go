package ssd1306

import (
	"errors"
	"fmt"
)

// PageHeight is the number of pixel rows packed into one byte column.
const PageHeight = 8

// MaxPages is the largest page count the dirty bitset can track.
const MaxPages = 64

var ErrOutOfBounds = errors.New("ssd1306: write out of bounds")

// ScreenSpace is the page-addressed frame buffer with per-page dirty flags.
// It is not safe for concurrent use.
type ScreenSpace struct {
	width  int
	height int
	pages  int
	buffer []byte
	dirty  uint64
}

// NewScreenSpace allocates a zeroed buffer for a width x height panel. Every
// page starts dirty so the first flush writes the full panel.
func NewScreenSpace(width, height int) (*ScreenSpace, error) {
	if width <= 0 || width > 256 {
		return nil, fmt.Errorf("ssd1306: width %d outside 1..256", width)
	}
	if height <= 0 || height%PageHeight != 0 || height/PageHeight > MaxPages {
		return nil, fmt.Errorf("ssd1306: height %d is not a positive multiple of %d", height, PageHeight)
	}
	pages := height / PageHeight
	s := &ScreenSpace{
		width:  width,
		height: height,
		pages:  pages,
		buffer: make([]byte, width*pages),
	}
	s.markAll()
	return s, nil
}

func (s *ScreenSpace) markAll() {
	if s.pages == MaxPages {
		s.dirty = ^uint64(0)
		return
	}
	s.dirty = 1<<uint(s.pages) - 1
}

// Update copies data into the buffer at pos and marks every page whose byte
// range overlaps [pos, pos+len(data)). Nothing changes when the write does
// not fit.
func (s *ScreenSpace) Update(pos int, data []byte) error {
	if pos < 0 || pos+len(data) > len(s.buffer) {
		return fmt.Errorf("%w: %d+%d exceeds %d bytes", ErrOutOfBounds, pos, len(data), len(s.buffer))
	}
	if len(data) == 0 {
		return nil
	}
	copy(s.buffer[pos:], data)
	first, last := pos/s.width, (pos+len(data)-1)/s.width
	for p := first; p <= last; p++ {
		s.dirty |= 1 << uint(p)
	}
	return nil
}

// Clear zeroes the buffer and marks every page dirty.
func (s *ScreenSpace) Clear() {
	clear(s.buffer)
	s.markAll()
}

// TakeDirty returns the dirty bitset and resets it.
func (s *ScreenSpace) TakeDirty() uint64 {
	d := s.dirty
	s.dirty = 0
	return d
}

// MarkDirty flags the pages set in mask.
func (s *ScreenSpace) MarkDirty(mask uint64) {
	s.dirty |= mask
}

// DirtyPages lists the pending pages in ascending order.
func (s *ScreenSpace) DirtyPages() []int {
	var out []int
	for p := 0; p < s.pages; p++ {
		if s.dirty&(1<<uint(p)) != 0 {
			out = append(out, p)
		}
	}
	return out
}

// Page returns the bytes of page p. The slice aliases the buffer.
func (s *ScreenSpace) Page(p int) []byte {
	return s.buffer[p*s.width : (p+1)*s.width]
}

func (s *ScreenSpace) Buffer() []byte { return s.buffer }
func (s *ScreenSpace) Width() int     { return s.width }
func (s *ScreenSpace) Height() int    { return s.height }
func (s *ScreenSpace) PageCount() int { return s.pages }
