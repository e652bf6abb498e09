// File: internal/infra/worker/pool.go
package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/rs/zerolog"

	"captive-portal/internal/usecase"
)

var _ usecase.Runner = (*Pool)(nil)

// Task is a unit of background work. Errors are logged by the pool.
type Task func(ctx context.Context) error

// ErrQueueFull is returned by Submit when every worker is busy and the queue is at capacity.
var ErrQueueFull = errors.New("worker queue full")

// Pool is a fixed set of goroutines draining a buffered queue. The sweeps use RunAll
// to fan out per-row work and wait for it; Submit is fire-and-forget.
type Pool struct {
	wg   sync.WaitGroup
	jobs chan Task
	quit chan struct{}
	n    int
	log  zerolog.Logger
}

func NewPool(workers int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{
		jobs: make(chan Task, workers*4),
		quit: make(chan struct{}),
		n:    workers,
		log:  logger.With().Str("component", "WorkerPool").Logger(),
	}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-p.quit:
					return
				case task := <-p.jobs:
					if task == nil {
						continue
					}
					p.run(ctx, id, task)
				}
			}
		}(i)
	}
}

func (p *Pool) run(ctx context.Context, id int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Int("worker", id).Interface("panic", r).Msg("task panicked")
		}
	}()
	if err := task(ctx); err != nil {
		p.log.Warn().Err(err).Int("worker", id).Msg("task error")
	}
}

func (p *Pool) Stop() {
	close(p.quit)
	p.wg.Wait()
}

func (p *Pool) Submit(task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	select {
	case p.jobs <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// RunAll runs jobs on at most n goroutines and blocks until all of them return.
// It does not need Start and does not share the Submit queue.
func (p *Pool) RunAll(ctx context.Context, jobs []func(ctx context.Context)) {
	if len(jobs) == 0 {
		return
	}
	sem := make(chan struct{}, p.n)
	var wg sync.WaitGroup
	for i, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(id int, job func(ctx context.Context)) {
			defer func() { <-sem; wg.Done() }()
			p.run(ctx, id, func(ctx context.Context) error { job(ctx); return nil })
		}(i, job)
	}
	wg.Wait()
}
