package systems

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/spaghettifunk/gensou/engine/core"
)

// DefaultWorkerCount is the size of the engine's general purpose pool.
const DefaultWorkerCount = 4

var ErrNoWorkers = errors.New("attempting to create worker pool with less than 1 worker")

type job struct {
	run func(ctx context.Context)
}

// ThreadPool runs independent tasks on a fixed set of workers fed from a
// single mutex guarded queue.
type ThreadPool struct {
	numWorkers int
	mu         sync.Mutex
	cond       *sync.Cond
	queue      []job
	running    bool
	wg         sync.WaitGroup
}

func NewThreadPool(ctx context.Context, numWorkers int) (*ThreadPool, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	tp := &ThreadPool{
		numWorkers: numWorkers,
		running:    true,
	}
	tp.cond = sync.NewCond(&tp.mu)

	tp.start(core.WithThreadRole(ctx, core.RoleWorker))

	return tp, nil
}

func (tp *ThreadPool) start(ctx context.Context) {
	for i := 0; i < tp.numWorkers; i++ {
		tp.wg.Add(1)
		go func() {
			defer tp.wg.Done()
			for {
				tp.mu.Lock()
				for len(tp.queue) == 0 && tp.running {
					tp.cond.Wait()
				}
				if len(tp.queue) == 0 {
					tp.mu.Unlock()
					return
				}
				j := tp.queue[0]
				tp.queue[0] = job{}
				tp.queue = tp.queue[1:]
				tp.mu.Unlock()

				j.run(ctx)
			}
		}()
	}
}

// Workers returns the number of worker goroutines.
func (tp *ThreadPool) Workers() int { return tp.numWorkers }

// Pending returns the number of queued tasks no worker has picked up yet.
func (tp *ThreadPool) Pending() int {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	return len(tp.queue)
}

func (tp *ThreadPool) enqueue(j job) bool {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	if !tp.running {
		return false
	}
	tp.queue = append(tp.queue, j)
	tp.cond.Signal()
	return true
}

// Submit queues fn. The future carries the error fn returned, or the panic
// it raised.
func (tp *ThreadPool) Submit(fn func(ctx context.Context) error) *Future[struct{}] {
	return Go(tp, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
}

// Go queues fn on tp and returns a future for its result.
func Go[T any](tp *ThreadPool, fn func(ctx context.Context) (T, error)) *Future[T] {
	f := newFuture[T]()
	ok := tp.enqueue(job{run: func(ctx context.Context) {
		v, err := run(ctx, fn)
		if err != nil {
			core.LogError("worker task %s", describe(err))
		}
		f.resolve(v, err)
	}})
	if !ok {
		var zero T
		f.resolve(zero, core.ErrThreadStopped)
	}
	return f
}

// Shutdown stops the pool. Queued tasks still run.
func (tp *ThreadPool) Shutdown() error {
	tp.mu.Lock()
	if !tp.running {
		tp.mu.Unlock()
		return nil
	}
	tp.running = false
	tp.cond.Broadcast()
	tp.mu.Unlock()

	tp.wg.Wait()
	return nil
}
