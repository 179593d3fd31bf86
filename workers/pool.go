package workers

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/mrsingh-rishi/meeting-report/logger"
)

// ErrPoolStopped is returned by Submit once the pool no longer accepts jobs.
var ErrPoolStopped = errors.New("worker pool stopped")

// PanicError is returned for a job that panicked. The worker survives.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("job panicked: %v", e.Value)
}

// Job is one unit of work. It must return once ctx is done.
type Job func(ctx context.Context) error

type task struct {
	ctx  context.Context
	fn   Job
	done chan error
}

// Pool runs jobs on a fixed number of goroutines. It bounds how many
// requests use a shared backend handle at the same time; a pool of size 1
// serializes access to it.
type Pool struct {
	ctx    context.Context
	cancel context.CancelFunc
	name   string
	size   int
	jobs   chan task
	wg     sync.WaitGroup
	log    *logger.Logger

	startOnce sync.Once
	stopOnce  sync.Once
}

func NewPool(name string, size int, log *logger.Logger) (*Pool, error) {
	if name == "" {
		return nil, fmt.Errorf("pool name is required")
	}
	if size <= 0 {
		return nil, fmt.Errorf("pool size must be positive (got: %d)", size)
	}
	if log == nil {
		log = logger.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		ctx:    ctx,
		cancel: cancel,
		name:   name,
		size:   size,
		jobs:   make(chan task),
		log:    log.WithComponent("workers").WithFields(map[string]interface{}{"pool": name}),
	}, nil
}

func (p *Pool) Name() string { return p.name }
func (p *Pool) Size() int    { return p.size }

// Start launches the worker goroutines. Calling it more than once is a no-op.
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		for i := 0; i < p.size; i++ {
			p.wg.Add(1)
			go p.run()
		}
		p.log.Debug("worker pool started", map[string]interface{}{"size": p.size})
	})
}

func (p *Pool) run() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case t := <-p.jobs:
			t.done <- p.exec(t)
		}
	}
}

func (p *Pool) exec(t task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			perr := &PanicError{Value: r, Stack: debug.Stack()}
			p.log.WithError(perr).Error("recovered from job panic", map[string]interface{}{"stack": string(perr.Stack)})
			err = perr
		}
	}()
	return t.fn(t.ctx)
}

// Stop stops accepting jobs and waits for running ones to finish.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.cancel()
		p.wg.Wait()
		p.log.Debug("worker pool stopped")
	})
}

// Submit hands fn to a free worker and blocks until it has run, returning
// its error. If ctx ends before a worker is free the job is never run.
func (p *Pool) Submit(ctx context.Context, fn Job) error {
	t := task{ctx: ctx, fn: fn, done: make(chan error, 1)}
	select {
	case p.jobs <- t:
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return ErrPoolStopped
	}
	return <-t.done
}

// Do runs fn on the pool and returns its result.
func Do[T any](ctx context.Context, p *Pool, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := p.Submit(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
