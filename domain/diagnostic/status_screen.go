package diagnostic

import (
	"image"
	"image/color"
	"strings"
	"sync"

	"github.com/goliath-teleop/core/domain/session"
	"github.com/goliath-teleop/core/pkg/imageproc"
	"github.com/goliath-teleop/core/pkg/log"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
)

const lineHeight = 10

var white = color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}

// Screen is the page-addressed display the status screen draws on.
type Screen interface {
	Update(pos int, data []byte) error
	Flush() error
	Width() int
	Height() int
}

// StatusScreen renders session state as text lines on a Screen.
type StatusScreen struct {
	mu        sync.Mutex
	canvas    *imageproc.Canvas
	font      tinyfont.Fonter
	logo      *image.Gray
	vehicleID string
	logger    log.Logger
}

func NewStatusScreen(screen Screen, vehicleID string, logger log.Logger) *StatusScreen {
	sink := func(packed []byte) error {
		if err := screen.Update(0, packed); err != nil {
			return err
		}
		return screen.Flush()
	}
	return &StatusScreen{
		canvas:    imageproc.NewCanvas(screen.Width(), screen.Height(), sink),
		font:      &proggy.TinySZ8pt7b,
		vehicleID: vehicleID,
		logger:    logger.WithField("component", "status_screen"),
	}
}

// SetLogo makes Splash draw img, scaled to the screen, instead of the text
// banner. nil restores the banner.
func (s *StatusScreen) SetLogo(img *image.Gray) {
	s.mu.Lock()
	s.logo = img
	s.mu.Unlock()
}

// Splash shows the idle banner.
func (s *StatusScreen) Splash() error {
	s.mu.Lock()
	logo := s.logo
	if logo != nil {
		defer s.mu.Unlock()
		s.canvas.Draw(logo)
		return s.canvas.Display()
	}
	s.mu.Unlock()
	return s.Show("GOLIATH", s.vehicleID, "waiting for operator")
}

// Show replaces the screen contents with lines, top to bottom. Lines that do
// not fit are dropped.
func (s *StatusScreen) Show(lines ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.canvas.Fill(0)
	_, h := s.canvas.Size()
	for i, line := range lines {
		baseline := int16((i+1)*lineHeight - 2)
		if baseline > h {
			break
		}
		tinyfont.WriteLine(s.canvas, s.font, 0, baseline, line, white)
	}
	return s.canvas.Display()
}

// Observe renders a transition. It is a session.Observer.
func (s *StatusScreen) Observe(t session.Transition) {
	var err error
	switch t.State {
	case session.Running:
		err = s.Show("DRIVING", t.Remote, shortID(t.SessionID))
	case session.Draining:
		err = s.Show("STOPPING", t.Remote)
	case session.Terminated:
		if t.Err != nil {
			err = s.Show("FAULT", truncate(t.Err.Error(), 24))
		} else {
			err = s.Splash()
		}
	}
	if err != nil {
		s.logger.Warnf("Status screen update failed: %v", err)
	}
}

// Canvas exposes the drawing surface.
func (s *StatusScreen) Canvas() *imageproc.Canvas { return s.canvas }

func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
