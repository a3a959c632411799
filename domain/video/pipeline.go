// Package video holds the vehicle's video collaborator: something the
// session starts when it begins running and stops when it drains.
package video

import (
	"errors"
	"time"
)

var ErrNotRunning = errors.New("video: pipeline not running")

// Caps overrides stream parameters for one Start. Zero fields keep the
// configured values.
type Caps struct {
	PayloadType uint8
	MTU         int
}

// Pipeline is the lifecycle the session drives. Start and Stop must be safe
// to call in any order and more than once. A nil caps keeps the configured
// stream parameters.
type Pipeline interface {
	Start(caps *Caps) error
	Stop() error
	// Push sends one encoded access unit covering duration of video.
	Push(frame []byte, duration time.Duration) error
}

// NopPipeline is used when video is disabled. Frames are discarded.
type NopPipeline struct{}

func (NopPipeline) Start(*Caps) error                { return nil }
func (NopPipeline) Stop() error                      { return nil }
func (NopPipeline) Push([]byte, time.Duration) error { return nil }
