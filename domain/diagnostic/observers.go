package diagnostic

import (
	"github.com/goliath-teleop/core/domain/session"
	"github.com/goliath-teleop/core/pkg/log"
	"github.com/goliath-teleop/core/pkg/processing"
)

const observerQueueSize = 32

// ObserverPool delivers transitions to slow observers (the I2C status
// screen, the telemetry bus) on a single worker, in order, off the session
// goroutine.
type ObserverPool struct {
	pool *processing.Pool[session.Transition]
}

func NewObserverPool(logger log.Logger, observers ...session.Observer) *ObserverPool {
	fanOut := func(t session.Transition) error {
		for _, o := range observers {
			o(t)
		}
		return nil
	}
	return &ObserverPool{pool: processing.NewPool("observer", 1, observerQueueSize, fanOut, logger)}
}

func (p *ObserverPool) Start() { p.pool.Start() }

// Stop delivers queued transitions and stops the worker.
func (p *ObserverPool) Stop() { p.pool.Stop() }

// Observe queues t. It is a session.Observer and never blocks.
func (p *ObserverPool) Observe(t session.Transition) { p.pool.Submit(t) }
