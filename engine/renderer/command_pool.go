package renderer

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/spaghettifunk/gensou/engine/core"
	"github.com/spaghettifunk/gensou/engine/renderer/gpu"
)

const defaultPoolSlots = 8

// CommandBuffer is a command buffer handed out by a CommandPool. It does not
// own the pool and becomes invalid once the pool is reset or cleared.
type CommandBuffer struct {
	gpu.CommandBuffer
	pool *CommandPool
}

func (c CommandBuffer) Pool() *CommandPool { return c.pool }

func (c CommandBuffer) Valid() bool { return c.CommandBuffer != nil && c.pool != nil }

// CommandPool recycles command buffers and fences for one queue. A pool has a
// single producer; only the native submit is guarded by the queue mutex.
type CommandPool struct {
	name   string
	device *Device
	pool   gpu.CommandPool
	queue  gpu.Queue
	mu     *sync.Mutex

	cmds          []gpu.CommandBuffer
	recordedCount int
	createdCmds   int

	fences       []gpu.Fence
	fencesInUse  int
	createdFence int
}

func NewCommandPool(d *Device, role QueueRole, name string) (*CommandPool, error) {
	pool, err := d.GPU().CreateCommandPool(d.QueueFamily(role), false)
	if err != nil {
		d.reportError(gpu.ErrorInitializationFailed, "could not create "+name+" command pool", true)
		err = errors.Wrapf(err, "create %s command pool", name)
		core.LogError(err.Error())
		return nil, err
	}
	return &CommandPool{
		name:   name,
		device: d,
		pool:   pool,
		queue:  d.Queue(role),
		mu:     d.QueueMutex(role),
		cmds:   make([]gpu.CommandBuffer, defaultPoolSlots),
		fences: make([]gpu.Fence, defaultPoolSlots),
	}, nil
}

func (p *CommandPool) Name() string            { return p.name }
func (p *CommandPool) Queue() gpu.Queue        { return p.queue }
func (p *CommandPool) QueueMutex() *sync.Mutex { return p.mu }
func (p *CommandPool) RecordedCount() int      { return p.recordedCount }
func (p *CommandPool) FencesInUse() int        { return p.fencesInUse }
func (p *CommandPool) Capacity() int           { return len(p.cmds) }
func (p *CommandPool) FenceCapacity() int      { return len(p.fences) }

// RecordedCmds returns the command buffers handed out this cycle, in order.
func (p *CommandPool) RecordedCmds() []gpu.CommandBuffer {
	return p.cmds[:p.recordedCount]
}

// NextCmd returns the next recycled command buffer, allocating it on first use.
func (p *CommandPool) NextCmd() (CommandBuffer, error) {
	if p.recordedCount == len(p.cmds) {
		p.cmds = append(p.cmds, make([]gpu.CommandBuffer, max(len(p.cmds), 1))...)
	}
	cmd := p.cmds[p.recordedCount]
	if cmd == nil {
		var err error
		if cmd, err = p.pool.Allocate(); err != nil {
			p.device.reportError(gpu.ErrorOutOfDeviceMemory, "could not create command buffer", false)
			return CommandBuffer{}, errors.Wrapf(err, "%s: allocate command buffer", p.name)
		}
		p.cmds[p.recordedCount] = cmd
		p.createdCmds++
	}
	p.recordedCount++
	return CommandBuffer{CommandBuffer: cmd, pool: p}, nil
}

// NextFence returns the next recycled fence. New fences start signaled.
func (p *CommandPool) NextFence() (gpu.Fence, error) {
	if p.fencesInUse == len(p.fences) {
		p.fences = append(p.fences, make([]gpu.Fence, max(len(p.fences), 1))...)
	}
	fence := p.fences[p.fencesInUse]
	if fence == nil {
		var err error
		if fence, err = p.device.GPU().CreateFence(true); err != nil {
			p.device.reportError(gpu.ErrorOutOfDeviceMemory, "could not create fence", false)
			return nil, errors.Wrapf(err, "%s: create fence", p.name)
		}
		p.fences[p.fencesInUse] = fence
		p.createdFence++
	}
	p.fencesInUse++
	return fence, nil
}

// Reset blocks until every fence in use has signaled, resets the native pool
// and zeroes both counters.
func (p *CommandPool) Reset() error {
	if p.fencesInUse > 0 {
		if r := p.device.GPU().WaitForFences(p.fences[:p.fencesInUse], true, gpu.WaitForever); r != gpu.Success {
			return p.device.check(r, p.name+": wait for fences")
		}
	}
	if p.recordedCount > 0 {
		if err := p.pool.Reset(); err != nil {
			return errors.Wrapf(err, "%s: reset command pool", p.name)
		}
	}
	p.fencesInUse = 0
	p.recordedCount = 0
	return nil
}

// Wait blocks on the fences in use without resetting anything.
func (p *CommandPool) Wait() error {
	if p.fencesInUse == 0 {
		return nil
	}
	return p.device.check(p.device.GPU().WaitForFences(p.fences[:p.fencesInUse], true, gpu.WaitForever), p.name+": wait for fences")
}

// Clear resets the pool and releases every command buffer, fence and the
// native pool. The pool cannot be used afterwards.
func (p *CommandPool) Clear() {
	if p.pool == nil {
		return
	}
	if err := p.Reset(); err != nil {
		core.LogError(err.Error())
	}
	if p.createdCmds > 0 {
		p.pool.Free(p.cmds[:p.createdCmds])
	}
	for i, f := range p.fences {
		if f != nil {
			f.Destroy()
			p.fences[i] = nil
		}
	}
	p.cmds, p.fences = nil, nil
	p.createdCmds, p.createdFence = 0, 0
	p.pool.Destroy()
	p.pool = nil
	p.queue = nil
}

// Submit submits cmds with a fresh fence. The queue mutex is held only for
// the native call. With wait set it blocks until the fence signals.
func (p *CommandPool) Submit(cmds []gpu.CommandBuffer, waitSems []gpu.Semaphore, signalSems []gpu.Semaphore, wait bool) error {
	info, fence, err := p.prepareSubmit(cmds, waitSems, signalSems)
	if err != nil {
		return err
	}

	p.mu.Lock()
	r := p.queue.Submit([]gpu.SubmitInfo{info}, fence)
	p.mu.Unlock()
	if err := p.device.check(r, p.name+": queue submit"); err != nil {
		p.dropLastFence()
		return err
	}

	if wait {
		return p.device.check(p.device.GPU().WaitForFences([]gpu.Fence{fence}, true, gpu.WaitForever), p.name+": wait for submit")
	}
	return nil
}

// dropLastFence gives back the fence taken by a submit the queue rejected.
// Nothing will signal it, so Reset must not wait on it.
func (p *CommandPool) dropLastFence() {
	if p.fencesInUse > 0 {
		p.fencesInUse--
	}
}

// prepareSubmit takes and resets the next fence and builds the submit info.
// Every wait semaphore waits at the colour attachment output stage.
func (p *CommandPool) prepareSubmit(cmds []gpu.CommandBuffer, waitSems []gpu.Semaphore, signalSems []gpu.Semaphore) (gpu.SubmitInfo, gpu.Fence, error) {
	fence, err := p.NextFence()
	if err != nil {
		return gpu.SubmitInfo{}, nil, err
	}
	if err := p.device.GPU().ResetFences([]gpu.Fence{fence}); err != nil {
		return gpu.SubmitInfo{}, nil, errors.Wrapf(err, "%s: reset fence", p.name)
	}

	info := gpu.SubmitInfo{
		WaitSemaphores:   waitSems,
		CommandBuffers:   cmds,
		SignalSemaphores: signalSems,
	}
	for range waitSems {
		info.WaitStages = append(info.WaitStages, gpu.PipelineStageColorAttachmentOutput)
	}
	return info, fence, nil
}
