package stream

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
)

var ErrTaskPanicked = errors.New("task panicked")

// Pool runs tasks on a fixed set of goroutines. Submission never blocks: a
// full queue rejects the task and the caller tries again on a later tick.
type Pool struct {
	mu     sync.RWMutex
	closed bool
	jobs   chan func()
	wg     sync.WaitGroup
}

func NewPool(workers, queue int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if queue <= 0 {
		queue = workers * 4
	}
	p := &Pool{jobs: make(chan func(), queue)}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for f := range p.jobs {
		f()
	}
}

// TrySubmit queues f if there is room.
func (p *Pool) TrySubmit(f func()) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.jobs <- f:
		return true
	default:
		return false
	}
}

// Close stops accepting work and waits for queued tasks to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}

// Task is the handle of one submitted unit of work.
type Task[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Spawn submits fn to the pool. A panic inside fn is reported to sentry and
// surfaces as an error from Poll instead of killing the worker.
func Spawn[T any](p *Pool, fn func() (T, error)) (*Task[T], bool) {
	t := &Task[T]{done: make(chan struct{})}
	ok := p.TrySubmit(func() {
		defer close(t.done)
		defer func() {
			if r := recover(); r != nil {
				hub := sentry.CurrentHub().Clone()
				hub.Recover(r)
				hub.Flush(2 * time.Second)
				t.err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
			}
		}()
		t.val, t.err = fn()
	})
	if !ok {
		return nil, false
	}
	return t, true
}

// Poll returns the result without blocking; done is false while fn runs.
func (t *Task[T]) Poll() (val T, done bool, err error) {
	select {
	case <-t.done:
		return t.val, true, t.err
	default:
		var zero T
		return zero, false, nil
	}
}

func (t *Task[T]) Done() <-chan struct{} { return t.done }
