// Package worker paces scoring calls and runs independent ranking runs
// concurrently.
package worker

import (
	"context"
	"errors"
	"sync"
)

// ErrPoolClosed is returned by Submit once Wait has been called
var ErrPoolClosed = errors.New("worker pool closed")

// Job is one independent unit of work, such as ranking a single digest
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

// Pool runs jobs on a fixed number of workers. Every accepted job yields
// exactly one result: after cancellation queued jobs still run and are
// expected to return the context error promptly.
type Pool struct {
	workers  int
	ctx      context.Context
	jobs     chan Job
	results  chan Result
	done     chan struct{}
	onResult func(Result)

	submitMu  sync.Mutex // guards closed and sends on jobs
	closed    bool
	resultsMu sync.Mutex
	collected []Result
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewPool creates a pool whose jobs run under ctx
func NewPool(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	return &Pool{
		workers: workers,
		ctx:     ctx,
		jobs:    make(chan Job, workers*2),
		results: make(chan Result, workers*2),
		done:    make(chan struct{}),
	}
}

// OnResult registers fn to be called from a single goroutine as each result
// arrives. It must be set before Start.
func (p *Pool) OnResult(fn func(Result)) {
	p.onResult = fn
}

// Start starts the workers and the result collector. Call it before Submit.
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.work()
	}

	go p.collect()
}

func (p *Pool) work() {
	defer p.wg.Done()
	for job := range p.jobs {
		p.results <- job.Execute(p.ctx)
	}
}

func (p *Pool) collect() {
	defer close(p.done)
	for result := range p.results {
		if p.onResult != nil {
			p.onResult(result)
		}
		p.resultsMu.Lock()
		p.collected = append(p.collected, result)
		p.resultsMu.Unlock()
	}
}

// Submit queues a job, blocking while the queue is full
func (p *Pool) Submit(job Job) error {
	p.submitMu.Lock()
	defer p.submitMu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}
	p.jobs <- job
	return nil
}

// Wait closes the pool to new jobs, waits for every accepted job, and
// returns the results in completion order
func (p *Pool) Wait() []Result {
	p.submitMu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.submitMu.Unlock()

	p.wg.Wait()
	p.closeOnce.Do(func() { close(p.results) })
	<-p.done

	p.resultsMu.Lock()
	defer p.resultsMu.Unlock()
	out := make([]Result, len(p.collected))
	copy(out, p.collected)
	return out
}
