package dispatch

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Job is a unit of work executed on a pool worker.
type Job func(ctx context.Context)

// Pool runs jobs on a fixed number of workers fed by an unbounded intake
// buffer, so Submit never blocks the caller.
type Pool struct {
	workers int

	mu     sync.Mutex
	cond   *sync.Cond
	buffer []Job
	closed bool

	group *errgroup.Group
}

// NewPool creates a pool with the given worker count.
func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{workers: workers}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Start launches the workers. Jobs receive ctx; cancelling it interrupts
// blocking work inside jobs but the pool itself drains via Stop.
func (p *Pool) Start(ctx context.Context) {
	p.group = &errgroup.Group{}
	for i := 0; i < p.workers; i++ {
		p.group.Go(func() error {
			p.run(ctx)
			return nil
		})
	}
}

// Submit appends a job to the intake buffer. It reports false when the
// pool has already been stopped.
func (p *Pool) Submit(job Job) bool {
	if job == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.buffer = append(p.buffer, job)
	p.cond.Signal()
	return true
}

// Pending returns the number of buffered jobs not yet picked up.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buffer)
}

// Stop closes intake and waits for buffered and in-flight jobs to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()

	if p.group != nil {
		_ = p.group.Wait()
	}
}

func (p *Pool) run(ctx context.Context) {
	for {
		p.mu.Lock()
		for len(p.buffer) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.buffer) == 0 && p.closed {
			p.mu.Unlock()
			return
		}
		job := p.buffer[0]
		p.buffer = p.buffer[1:]
		p.mu.Unlock()

		job(ctx)
	}
}
