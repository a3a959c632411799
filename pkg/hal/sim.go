package hal

import (
	"fmt"
	"sync"

	"github.com/goliath-teleop/core/pkg/log"
)

// Sim is an in-memory Provider. It logs every write at debug level and keeps
// the created devices so callers can inspect them.
type Sim struct {
	logger log.Logger

	mu    sync.Mutex
	pins  map[string]*SimPin
	pwms  map[string]*SimPWM
	buses map[string]*SimBus
}

// NewSim returns an empty simulated provider.
func NewSim(logger log.Logger) *Sim {
	return &Sim{
		logger: logger.WithField("driver", "sim"),
		pins:   make(map[string]*SimPin),
		pwms:   make(map[string]*SimPWM),
		buses:  make(map[string]*SimBus),
	}
}

func (s *Sim) DigitalPin(name string) (DigitalPin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pins[name]
	if !ok {
		p = &SimPin{name: name, logger: s.logger}
		s.pins[name] = p
	}
	return p, nil
}

func (s *Sim) PWM(name string, frequencyHz int) (PWM, error) {
	if frequencyHz <= 0 {
		return nil, hwError("configure pwm", name, fmt.Errorf("frequency %d", frequencyHz))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pwms[name]
	if !ok {
		p = &SimPWM{name: name, logger: s.logger}
		s.pwms[name] = p
	}
	return p, nil
}

func (s *Sim) Bus(name string) (BusCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buses[name]
	if !ok {
		b = &SimBus{name: name, logger: s.logger}
		s.buses[name] = b
	}
	return b, nil
}

// Pin returns a pin created earlier, or nil.
func (s *Sim) Pin(name string) *SimPin {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pins[name]
}

// PWMOutput returns a PWM created earlier, or nil.
func (s *Sim) PWMOutput(name string) *SimPWM {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pwms[name]
}

// SimPin records its level and every transition.
type SimPin struct {
	name   string
	logger log.Logger

	mu      sync.Mutex
	high    bool
	writes  int
	failure error
}

// NewSimPin returns a standalone simulated pin.
func NewSimPin(name string, logger log.Logger) *SimPin {
	return &SimPin{name: name, logger: logger}
}

func (p *SimPin) set(high bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failure != nil {
		return hwError("set level", p.name, p.failure)
	}
	p.high = high
	p.writes++
	p.logger.Debugf("pin %s high=%t", p.name, high)
	return nil
}

func (p *SimPin) SetHigh() error { return p.set(true) }
func (p *SimPin) SetLow() error  { return p.set(false) }

// High reports the last level written.
func (p *SimPin) High() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.high
}

// Writes counts successful level writes.
func (p *SimPin) Writes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writes
}

// Fail makes every later write return err; nil clears it.
func (p *SimPin) Fail(err error) {
	p.mu.Lock()
	p.failure = err
	p.mu.Unlock()
}

// SimPWM records its duty cycle history.
type SimPWM struct {
	name   string
	logger log.Logger

	mu      sync.Mutex
	history []float64
	failure error
}

// NewSimPWM returns a standalone simulated PWM output.
func NewSimPWM(name string, logger log.Logger) *SimPWM {
	return &SimPWM{name: name, logger: logger}
}

func (p *SimPWM) SetDutyCycle(fraction float64) error {
	if !validDuty(fraction) {
		return hwError("set duty", p.name, fmt.Errorf("duty %v outside [0, 1]", fraction))
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failure != nil {
		return hwError("set duty", p.name, p.failure)
	}
	p.history = append(p.history, fraction)
	p.logger.Debugf("pwm %s duty=%.3f", p.name, fraction)
	return nil
}

// Duty returns the last duty cycle written, 0 if none.
func (p *SimPWM) Duty() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.history) == 0 {
		return 0
	}
	return p.history[len(p.history)-1]
}

// History returns a copy of every duty cycle written.
func (p *SimPWM) History() []float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]float64(nil), p.history...)
}

// Fail makes every later write return err; nil clears it.
func (p *SimPWM) Fail(err error) {
	p.mu.Lock()
	p.failure = err
	p.mu.Unlock()
}

// SimBus records every write transaction.
type SimBus struct {
	name   string
	logger log.Logger

	mu      sync.Mutex
	writes  []SimWrite
	failure error
	closed  bool
}

// SimWrite is one recorded bus transaction.
type SimWrite struct {
	Addr uint16
	Data []byte
}

// NewSimBus returns a standalone simulated bus.
func NewSimBus(name string, logger log.Logger) *SimBus {
	return &SimBus{name: name, logger: logger}
}

func (b *SimBus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return hwError("i2c tx", b.name, fmt.Errorf("bus closed"))
	}
	if b.failure != nil {
		return hwError("i2c tx", b.name, b.failure)
	}
	for i := range r {
		r[i] = 0
	}
	if len(w) > 0 {
		b.writes = append(b.writes, SimWrite{Addr: addr, Data: append([]byte(nil), w...)})
		b.logger.Debugf("i2c %s addr=0x%02X len=%d", b.name, addr, len(w))
	}
	return nil
}

func (b *SimBus) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

// Writes returns a copy of every recorded write.
func (b *SimBus) Writes() []SimWrite {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]SimWrite(nil), b.writes...)
}

// Reset forgets recorded writes.
func (b *SimBus) Reset() {
	b.mu.Lock()
	b.writes = nil
	b.mu.Unlock()
}

// Fail makes every later transaction return err; nil clears it.
func (b *SimBus) Fail(err error) {
	b.mu.Lock()
	b.failure = err
	b.mu.Unlock()
}
