// Package processing runs queued work on a fixed set of worker goroutines.
package processing

import (
	"sync"
	"time"

	customlog "github.com/goliath-teleop/core/pkg/log"
)

// Processor handles one queued item.
type Processor[T any] func(item T) error

// PoolMetrics tracks metrics for a processing pool
type PoolMetrics struct {
	ProcessedCount    int64
	ErrorCount        int64
	QueuedCount       int64
	DroppedCount      int64
	LastProcessedTime int64
	ProcessingTimeAvg int64 // in microseconds
	ProcessingTimeMax int64 // in microseconds
}

// Pool delivers submitted items to its processor. With one worker, items
// are processed in submission order.
type Pool[T any] struct {
	name        string
	workerCount int
	queueSize   int
	logger      customlog.Logger
	processor   Processor[T]

	mu      sync.RWMutex
	queue   chan T
	running bool
	stopped bool
	wg      sync.WaitGroup

	metricsMu sync.Mutex
	metrics   PoolMetrics
}

// NewPool creates a new processing pool
func NewPool[T any](name string, workerCount, queueSize int, processor Processor[T], logger customlog.Logger) *Pool[T] {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Pool[T]{
		name:        name,
		workerCount: workerCount,
		queueSize:   queueSize,
		logger:      logger,
		processor:   processor,
		queue:       make(chan T, queueSize),
	}
}

// Submit queues item without blocking. It returns false when the pool is
// not running or the queue is full.
func (p *Pool[T]) Submit(item T) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.running {
		p.logger.Warnf("%s pool not running, discarding item", p.name)
		return false
	}

	select {
	case p.queue <- item:
		p.metricsMu.Lock()
		p.metrics.QueuedCount++
		p.metricsMu.Unlock()
		return true
	default:
		p.metricsMu.Lock()
		p.metrics.DroppedCount++
		p.metricsMu.Unlock()
		p.logger.Warnf("%s pool queue is full, discarding item", p.name)
		return false
	}
}

// Start starts the processing pool workers. A stopped pool cannot restart.
func (p *Pool[T]) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running || p.stopped {
		return
	}
	p.running = true
	p.logger.Infof("Starting %s pool with %d workers", p.name, p.workerCount)

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop refuses new items, processes what is queued and waits for the
// workers.
func (p *Pool[T]) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.stopped = true
	close(p.queue)
	p.mu.Unlock()

	p.logger.Infof("Stopping %s pool", p.name)
	p.wg.Wait()
	p.logMetrics()
}

func (p *Pool[T]) worker(id int) {
	defer p.wg.Done()
	p.logger.Debugf("%s pool worker %d started", p.name, id)

	for item := range p.queue {
		start := time.Now()
		err := p.processor(item)
		elapsed := time.Since(start).Microseconds()

		p.metricsMu.Lock()
		p.metrics.ProcessedCount++
		p.metrics.LastProcessedTime = time.Now().UnixNano()
		if p.metrics.ProcessingTimeAvg == 0 {
			p.metrics.ProcessingTimeAvg = elapsed
		} else {
			p.metrics.ProcessingTimeAvg = (p.metrics.ProcessingTimeAvg + elapsed) / 2
		}
		if elapsed > p.metrics.ProcessingTimeMax {
			p.metrics.ProcessingTimeMax = elapsed
		}
		if err != nil {
			p.metrics.ErrorCount++
		}
		p.metricsMu.Unlock()

		if err != nil {
			p.logger.Errorf("Error processing item in %s pool: %v", p.name, err)
		}
	}

	p.logger.Debugf("%s pool worker %d stopped", p.name, id)
}

// GetMetrics returns a copy of the current metrics
func (p *Pool[T]) GetMetrics() PoolMetrics {
	p.metricsMu.Lock()
	defer p.metricsMu.Unlock()
	return p.metrics
}

func (p *Pool[T]) logMetrics() {
	m := p.GetMetrics()
	p.logger.Infof("%s pool metrics: processed=%d, errors=%d, dropped=%d, avg_time=%dµs, max_time=%dµs",
		p.name, m.ProcessedCount, m.ErrorCount, m.DroppedCount, m.ProcessingTimeAvg, m.ProcessingTimeMax)
}

// GetName returns the pool name
func (p *Pool[T]) GetName() string { return p.name }

// GetQueueLength returns the current length of the queue
func (p *Pool[T]) GetQueueLength() int { return len(p.queue) }

// GetQueueCapacity returns the capacity of the queue
func (p *Pool[T]) GetQueueCapacity() int { return p.queueSize }
