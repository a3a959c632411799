package motors

import (
	"errors"
	"fmt"
	"math"
)

// ErrOutOfRange is returned for thrust or steer values outside [-1, 1] or NaN.
var ErrOutOfRange = errors.New("motors: value out of range")

// TrackOutput is the drive applied to one track.
type TrackOutput struct {
	Power   float64 // [0, 1]
	Forward bool
}

// TrackState holds the requested thrust and steer. Both stay in [-1, 1].
type TrackState struct {
	thrust float32
	steer  float32
}

func checkUnit(name string, v float32) error {
	if math.IsNaN(float64(v)) || v < -1 || v > 1 {
		return fmt.Errorf("%w: %s %v", ErrOutOfRange, name, v)
	}
	return nil
}

// SetThrust sets forward/backward demand. The state is unchanged on error.
func (s *TrackState) SetThrust(v float32) error {
	if err := checkUnit("thrust", v); err != nil {
		return err
	}
	s.thrust = v
	return nil
}

// SetSteer sets the requested left/right split. The state is unchanged on error.
func (s *TrackState) SetSteer(v float32) error {
	if err := checkUnit("steer", v); err != nil {
		return err
	}
	s.steer = v
	return nil
}

// Zero stops both tracks.
func (s *TrackState) Zero() {
	s.thrust, s.steer = 0, 0
}

func (s *TrackState) Thrust() float32 { return s.thrust }
func (s *TrackState) Steer() float32  { return s.steer }

// Mix computes the differential drive. Steer authority shrinks as |thrust|
// grows so neither track exceeds full power:
//
//	max_steer = 1                  if thrust == 0
//	          = (1-|t|)/|t|        otherwise
//	left  = t * (1 - clamp(s, -max_steer, max_steer))
//	right = t * (1 + clamp(s, -max_steer, max_steer))
func (s *TrackState) Mix() (left, right TrackOutput) {
	t := s.thrust
	abs := float32(math.Abs(float64(t)))

	maxSteer := float32(1)
	if abs > 0 {
		maxSteer = (1 - abs) / abs
	}
	steer := min(max(s.steer, -maxSteer), maxSteer)

	l := t * (1 - steer)
	r := t * (1 + steer)
	return output(l), output(r)
}

func output(p float32) TrackOutput {
	power := math.Abs(float64(p))
	if power > 1 { // float32 rounding
		power = 1
	}
	return TrackOutput{Power: power, Forward: p >= 0}
}
