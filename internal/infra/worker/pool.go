// File: internal/infra/worker/pool.go
package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"
)

type Task func(ctx context.Context) error

// Pool is a small fixed-size worker pool. Tasks are dropped when the queue
// is saturated; the claim loop will re-claim the job on a later tick.
type Pool struct {
	wg   sync.WaitGroup
	jobs chan Task
	quit chan struct{}
	n    int

	errFn func(error)
}

func NewPool(workers int, errFn func(error)) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if errFn == nil {
		errFn = func(error) {}
	}
	return &Pool{jobs: make(chan Task, workers*4), quit: make(chan struct{}), n: workers, errFn: errFn}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func() {
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
					if err := task(ctx); err != nil {
						p.errFn(err)
					}
				}
			}
		}()
	}
}

func (p *Pool) Stop() {
	close(p.quit)
	p.wg.Wait()
}

var ErrPoolSaturated = errors.New("worker queue full")

// Saturated reports whether Submit would be rejected right now.
func (p *Pool) Saturated() bool {
	return len(p.jobs) == cap(p.jobs)
}

func (p *Pool) Submit(task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	select {
	case p.jobs <- task:
		return nil
	default:
		return ErrPoolSaturated
	}
}
