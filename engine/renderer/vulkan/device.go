package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/gensou/engine/core"
	"github.com/spaghettifunk/gensou/engine/renderer/gpu"
)

// Device implements gpu.Device.
type Device struct {
	adapter *Adapter
	handle  vk.Device
	queues  map[[2]uint32]*Queue
	locks   *lockPool
	sets    *descriptorAllocator
}

func newDevice(a *Adapter, handle vk.Device, requests []gpu.QueueRequest) (*Device, error) {
	d := &Device{
		adapter: a,
		handle:  handle,
		queues:  map[[2]uint32]*Queue{},
		locks:   newLockPool(),
	}
	for _, r := range requests {
		for i := uint32(0); i < r.Count; i++ {
			var q vk.Queue
			vk.GetDeviceQueue(handle, r.Family, i, &q)
			d.queues[[2]uint32{r.Family, i}] = &Queue{device: d, handle: q, family: r.Family, index: i}
		}
	}
	d.sets = newDescriptorAllocator(d)
	core.LogDebug("obtained %d queues", len(d.queues))
	return d, nil
}

func (d *Device) Queue(family, index uint32) gpu.Queue {
	q, ok := d.queues[[2]uint32{family, index}]
	if !ok {
		return nil
	}
	return q
}

func (d *Device) WaitIdle() error {
	return check(vk.DeviceWaitIdle(d.handle), "device wait idle")
}

func (d *Device) Destroy() {
	if d.handle == nil {
		return
	}
	d.sets.destroy()
	vk.DestroyDevice(d.handle, nil)
	d.handle = nil
	core.LogInfo("logical device destroyed")
}

// Queue implements gpu.Queue.
type Queue struct {
	device *Device
	handle vk.Queue
	family uint32
	index  uint32
}

func (q *Queue) Family() uint32 { return q.family }
func (q *Queue) Index() uint32  { return q.index }

func semaphores(sems []gpu.Semaphore) []vk.Semaphore {
	out := make([]vk.Semaphore, len(sems))
	for i, s := range sems {
		out[i] = s.(*Semaphore).handle
	}
	return out
}

func (q *Queue) Submit(submits []gpu.SubmitInfo, fence gpu.Fence) gpu.Result {
	infos := make([]vk.SubmitInfo, len(submits))
	for i, s := range submits {
		cmds := make([]vk.CommandBuffer, len(s.CommandBuffers))
		for j, c := range s.CommandBuffers {
			cmds[j] = c.(*CommandBuffer).handle
		}
		stages := make([]vk.PipelineStageFlags, len(s.WaitStages))
		for j, st := range s.WaitStages {
			stages[j] = vk.PipelineStageFlags(st)
		}
		infos[i] = vk.SubmitInfo{
			SType:                vk.StructureTypeSubmitInfo,
			WaitSemaphoreCount:   uint32(len(s.WaitSemaphores)),
			PWaitSemaphores:      semaphores(s.WaitSemaphores),
			PWaitDstStageMask:    stages,
			CommandBufferCount:   uint32(len(cmds)),
			PCommandBuffers:      cmds,
			SignalSemaphoreCount: uint32(len(s.SignalSemaphores)),
			PSignalSemaphores:    semaphores(s.SignalSemaphores),
		}
	}
	f := vk.NullFence
	if fence != nil {
		f = fence.(*Fence).handle
	}
	return toResult(vk.QueueSubmit(q.handle, uint32(len(infos)), infos, f))
}

func (q *Queue) Present(info gpu.PresentInfo) gpu.Result {
	present := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: uint32(len(info.WaitSemaphores)),
		PWaitSemaphores:    semaphores(info.WaitSemaphores),
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{info.Swapchain.(*Swapchain).handle},
		PImageIndices:      []uint32{info.ImageIndex},
	}
	return toResult(vk.QueuePresent(q.handle, &present))
}

func (q *Queue) WaitIdle() gpu.Result {
	return toResult(vk.QueueWaitIdle(q.handle))
}
