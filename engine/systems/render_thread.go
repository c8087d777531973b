package systems

import (
	"context"
	"runtime"
	"sync"

	"github.com/spaghettifunk/gensou/engine/core"
)

// RenderCmd is a closure recorded by the main thread and run on the render
// thread.
type RenderCmd func(ctx context.Context)

type renderJob struct {
	frame  uint32
	future *Future[struct{}]
}

// RenderThread owns GPU submission. The main thread queues closures per
// frame in flight with Submit and hands a frame over with Execute. Closures
// of one frame run in submission order; frames have no ordering between
// each other beyond the order Execute was called in.
type RenderThread struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queues  [][]RenderCmd
	pending []renderJob
	running bool
	stopped chan struct{}
}

func NewRenderThread(framesInFlight uint32) *RenderThread {
	r := &RenderThread{queues: make([][]RenderCmd, max(framesInFlight, 1))}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Start launches the render goroutine pinned to its own OS thread. Closures
// receive ctx tagged with the render role.
func (r *RenderThread) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	r.running = true
	r.stopped = make(chan struct{})
	go r.loop(core.WithThreadRole(ctx, core.RoleRender))
	core.LogDebug("render thread started")
}

func (r *RenderThread) loop(ctx context.Context) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(r.stopped)

	for {
		r.mu.Lock()
		for len(r.pending) == 0 && r.running {
			r.cond.Wait()
		}
		if len(r.pending) == 0 {
			r.mu.Unlock()
			return
		}
		job := r.pending[0]
		r.pending = r.pending[1:]
		cmds := r.queues[job.frame]
		r.queues[job.frame] = nil
		r.mu.Unlock()

		var firstErr error
		for _, cmd := range cmds {
			_, err := run(ctx, func(ctx context.Context) (struct{}, error) {
				cmd(ctx)
				return struct{}{}, nil
			})
			if err != nil {
				core.LogError("render command for frame %d %s", job.frame, describe(err))
				if firstErr == nil {
					firstErr = err
				}
			}
		}
		job.future.resolve(struct{}{}, firstErr)
	}
}

// Submit queues cmd for frame.
func (r *RenderThread) Submit(frame uint32, cmd RenderCmd) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureFrames(frame + 1)
	r.queues[frame] = append(r.queues[frame], cmd)
}

// Execute wakes the render thread for frame. The future resolves once every
// closure queued for frame so far has run.
func (r *RenderThread) Execute(frame uint32) *Future[struct{}] {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return Resolved(struct{}{}, core.ErrThreadStopped)
	}
	r.ensureFrames(frame + 1)
	f := newFuture[struct{}]()
	r.pending = append(r.pending, renderJob{frame: frame, future: f})
	r.cond.Signal()
	return f
}

// Queued returns how many closures wait for frame.
func (r *RenderThread) Queued(frame uint32) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if int(frame) >= len(r.queues) {
		return 0
	}
	return len(r.queues[frame])
}

func (r *RenderThread) ensureFrames(n uint32) {
	for uint32(len(r.queues)) < n {
		r.queues = append(r.queues, nil)
	}
}

// Stop lets the render thread finish every frame already handed over with
// Execute and waits for it to exit.
func (r *RenderThread) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	stopped := r.stopped
	r.cond.Broadcast()
	r.mu.Unlock()

	<-stopped
	core.LogDebug("render thread stopped")
}
