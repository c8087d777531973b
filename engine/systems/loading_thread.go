package systems

import (
	"context"
	"runtime"
	"sync"

	"github.com/spaghettifunk/gensou/engine/containers"
	"github.com/spaghettifunk/gensou/engine/core"
)

// LoadingQueueSize is the number of tasks the loading thread can hold.
const LoadingQueueSize = 256

type loadingTask struct {
	fn     func(ctx context.Context) error
	future *Future[struct{}]
}

// LoadingThread runs one-shot asset work (decode and upload) away from the
// main thread. It has a single producer: only the main thread may Submit.
type LoadingThread struct {
	mu      sync.Mutex
	cond    *sync.Cond
	ring    *containers.RingQueue[loadingTask]
	running bool
	stopped chan struct{}
}

func NewLoadingThread() *LoadingThread {
	l := &LoadingThread{ring: containers.NewRingQueue[loadingTask](LoadingQueueSize)}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Start launches the loading goroutine. Tasks receive ctx tagged with the
// loading role, which routes their command buffers to the loading pools.
func (l *LoadingThread) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return
	}
	l.running = true
	l.stopped = make(chan struct{})
	go l.loop(core.WithThreadRole(ctx, core.RoleLoading))
	core.LogDebug("loading thread started")
}

func (l *LoadingThread) loop(ctx context.Context) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(l.stopped)

	for {
		l.mu.Lock()
		for l.ring.IsEmpty() && l.running {
			l.cond.Wait()
		}
		task, err := l.ring.Dequeue()
		l.cond.Broadcast()
		l.mu.Unlock()
		if err != nil {
			return
		}

		_, err = run(ctx, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, task.fn(ctx)
		})
		if err != nil {
			core.LogError("loading task %s", describe(err))
		}
		task.future.resolve(struct{}{}, err)
	}
}

// Submit stores fn in the next ring slot and wakes the loading thread. It
// blocks while the ring is full.
func (l *LoadingThread) Submit(fn func(ctx context.Context) error) *Future[struct{}] {
	l.mu.Lock()
	defer l.mu.Unlock()
	for l.running && l.ring.IsFull() {
		l.cond.Wait()
	}
	if !l.running {
		return Resolved(struct{}{}, core.ErrThreadStopped)
	}
	f := newFuture[struct{}]()
	_ = l.ring.Enqueue(loadingTask{fn: fn, future: f})
	l.cond.Broadcast()
	return f
}

// Pending returns the number of queued tasks not yet started.
func (l *LoadingThread) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ring.Len()
}

// Stop finishes the queued tasks and waits for the loading thread to exit.
func (l *LoadingThread) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	stopped := l.stopped
	l.cond.Broadcast()
	l.mu.Unlock()

	<-stopped
	core.LogDebug("loading thread stopped")
}
