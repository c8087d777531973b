package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/gensou/engine/core"
	"github.com/spaghettifunk/gensou/engine/renderer/gpu"
)

// Fence implements gpu.Fence.
type Fence struct {
	device *Device
	handle vk.Fence
}

func (d *Device) CreateFence(signaled bool) (gpu.Fence, error) {
	info := vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	if signaled {
		info.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	f := &Fence{device: d}
	if err := check(vk.CreateFence(d.handle, &info, nil, &f.handle), "create fence"); err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	return f, nil
}

func (f *Fence) Status() gpu.Result {
	return toResult(vk.GetFenceStatus(f.device.handle, f.handle))
}

func (f *Fence) Destroy() {
	if f.handle != vk.NullFence {
		vk.DestroyFence(f.device.handle, f.handle, nil)
		f.handle = vk.NullFence
	}
}

func fenceHandles(fences []gpu.Fence) []vk.Fence {
	out := make([]vk.Fence, len(fences))
	for i, f := range fences {
		out[i] = f.(*Fence).handle
	}
	return out
}

func (d *Device) WaitForFences(fences []gpu.Fence, waitAll bool, timeout uint64) gpu.Result {
	if len(fences) == 0 {
		return gpu.Success
	}
	r := vk.WaitForFences(d.handle, uint32(len(fences)), fenceHandles(fences), boolean(waitAll), timeout)
	switch r {
	case vk.Success:
	case vk.Timeout:
		core.LogWarn("fence wait timed out")
	case vk.ErrorDeviceLost:
		core.LogError("fence wait: VK_ERROR_DEVICE_LOST")
	default:
		core.LogError("fence wait: %s", toResult(r))
	}
	return toResult(r)
}

func (d *Device) ResetFences(fences []gpu.Fence) error {
	if len(fences) == 0 {
		return nil
	}
	return check(vk.ResetFences(d.handle, uint32(len(fences)), fenceHandles(fences)), "reset fences")
}

// Semaphore implements gpu.Semaphore.
type Semaphore struct {
	device *Device
	handle vk.Semaphore
}

func (d *Device) CreateSemaphore() (gpu.Semaphore, error) {
	info := vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
	s := &Semaphore{device: d}
	if err := check(vk.CreateSemaphore(d.handle, &info, nil, &s.handle), "create semaphore"); err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	return s, nil
}

func (s *Semaphore) Destroy() {
	if s.handle != vk.NullSemaphore {
		vk.DestroySemaphore(s.device.handle, s.handle, nil)
		s.handle = vk.NullSemaphore
	}
}
