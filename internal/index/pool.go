package index

import (
	"context"
	"sync"

	"media-index/internal/logging"
	"media-index/internal/metrics"
)

const defaultQueueSize = 1024

// pool runs background index tasks with bounded concurrency. Submission is
// non-blocking: a full queue drops the path, which simply surfaces again on
// a later scan.
type pool struct {
	tasks   chan string
	run     func(ctx context.Context, path string)
	workers int

	mu      sync.Mutex
	pending map[string]struct{}
	stopped bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func newPool(workerCount, queueSize int, run func(ctx context.Context, path string)) *pool {
	ctx, cancel := context.WithCancel(context.Background())
	return &pool{
		tasks:   make(chan string, queueSize),
		run:     run,
		workers: workerCount,
		pending: make(map[string]struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the workers. Tasks submitted before Start sit in the queue.
func (p *pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	logging.Debug("Index pool started with %d workers", p.workers)
}

// Submit enqueues path for background indexing. A path already queued or in
// flight is not enqueued twice. Returns false when the queue is full or the
// pool is stopped.
func (p *pool) Submit(path string) bool {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return false
	}
	if _, dup := p.pending[path]; dup {
		p.mu.Unlock()
		return true
	}
	p.pending[path] = struct{}{}
	p.mu.Unlock()

	select {
	case p.tasks <- path:
		metrics.IndexQueueDepth.Set(float64(len(p.tasks)))
		return true
	default:
		p.forget(path)
		metrics.IndexTasksTotal.WithLabelValues("dropped").Inc()
		logging.Debug("Index queue full, dropping %s", path)
		return false
	}
}

// Pending reports how many paths are queued or in flight.
func (p *pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Stop stops accepting work, cancels in-flight tool invocations, and waits
// for the workers to exit.
func (p *pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	p.cancel()
	close(p.tasks)
	p.wg.Wait()
	metrics.IndexQueueDepth.Set(0)
	logging.Debug("Index pool stopped")
}

func (p *pool) worker(id int) {
	defer p.wg.Done()

	logging.Debug("Index worker %d started", id)

	for path := range p.tasks {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		metrics.IndexQueueDepth.Set(float64(len(p.tasks)))
		p.run(p.ctx, path)
		p.forget(path)
	}

	logging.Debug("Index worker %d finished", id)
}

func (p *pool) forget(path string) {
	p.mu.Lock()
	delete(p.pending, path)
	p.mu.Unlock()
}
