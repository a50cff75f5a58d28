package workerpool

import (
	"errors"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

var ErrPoolClosed = errors.New("worker pool is closed")

// Pool is a fixed-size worker pool backed by ants. Tool executions for one
// step are submitted here so sibling calls run concurrently without spawning
// an unbounded number of goroutines.
type Pool struct {
	pool   *ants.Pool
	logger *zap.Logger
}

// New creates a worker pool with the given number of workers
func New(size int, logger *zap.Logger) (*Pool, error) {
	if size <= 0 {
		size = 10
	}

	p, err := ants.NewPool(size, ants.WithPanicHandler(func(v interface{}) {
		logger.Error("worker panic recovered", zap.Any("panic", v))
	}))
	if err != nil {
		return nil, err
	}

	return &Pool{pool: p, logger: logger}, nil
}

// Submit schedules a task on the pool
func (p *Pool) Submit(task func()) error {
	if err := p.pool.Submit(task); err != nil {
		if errors.Is(err, ants.ErrPoolClosed) {
			return ErrPoolClosed
		}
		return err
	}
	return nil
}

// Running returns the number of currently running workers
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Release stops the pool and waits for running tasks to finish
func (p *Pool) Release() {
	p.pool.Release()
}
