// Package workpool bounds CPU-heavy transform execution to a fixed set of
// worker goroutines so image work cannot starve request handling, and so the
// native image library never sees unbounded parallel invocation.
package workpool

import (
	"context"
	"errors"
	"sync"
)

var ErrClosed = errors.New("work pool is closed")

type Pool struct {
	tasks chan func()
	done  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once

	// mu orders enqueues against shutdown: every task that enters the
	// queue under the read lock is in before closed flips, so the drain
	// loop is guaranteed to see it.
	mu     sync.RWMutex
	closed bool
}

// New starts workers goroutines draining a queue of queueDepth pending
// tasks. Submission blocks once the queue is full.
func New(workers, queueDepth int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueDepth < 0 {
		queueDepth = 0
	}

	p := &Pool{
		tasks: make(chan func(), queueDepth),
		done:  make(chan struct{}),
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.work()
	}

	return p
}

func (p *Pool) work() {
	defer p.wg.Done()
	for {
		select {
		case task := <-p.tasks:
			task()
		case <-p.done:
			// Drain tasks accepted before shutdown.
			for {
				select {
				case task := <-p.tasks:
					task()
				default:
					return
				}
			}
		}
	}
}

// Submit queues fn, blocking until a queue slot frees or ctx ends. Once
// queued, fn always runs to completion: a caller that gives up between
// Submit returning and fn finishing does not cancel the work, and a
// Shutdown racing the enqueue still drains it.
func (p *Pool) Submit(ctx context.Context, fn func()) error {
	if fn == nil {
		return errors.New("nil task")
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.tasks <- fn:
		return nil
	}
}

// Shutdown stops intake and waits for queued tasks to drain. Submits that
// already hold a queue slot are honored; later ones get ErrClosed.
func (p *Pool) Shutdown() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		close(p.done)
	})
	p.wg.Wait()
}
