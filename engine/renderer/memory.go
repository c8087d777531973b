package renderer

import (
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/spaghettifunk/gensou/engine/core"
	"github.com/spaghettifunk/gensou/engine/renderer/gpu"
)

// Allocator is the single shared entry point for buffer and image memory. It
// keeps running totals for diagnostics. Callers are the main and loading
// threads.
type Allocator struct {
	device *Device
	cmds   *CommandManager

	totalAllocated   atomic.Uint64
	currentAllocated atomic.Uint64
	liveBuffers      atomic.Int64
	liveImages       atomic.Int64
}

func NewAllocator(d *Device, cmds *CommandManager) *Allocator {
	return &Allocator{device: d, cmds: cmds}
}

func (a *Allocator) Device() *Device               { return a.device }
func (a *Allocator) Commands() *CommandManager     { return a.cmds }
func (a *Allocator) TotalAllocatedBytes() uint64   { return a.totalAllocated.Load() }
func (a *Allocator) CurrentAllocatedBytes() uint64 { return a.currentAllocated.Load() }
func (a *Allocator) LiveBuffers() int64            { return a.liveBuffers.Load() }
func (a *Allocator) LiveImages() int64             { return a.liveImages.Load() }

func (a *Allocator) record(size uint64) {
	a.totalAllocated.Add(size)
	a.currentAllocated.Add(size)
}

func (a *Allocator) release(size uint64) {
	a.currentAllocated.Add(^(size - 1))
}

func (a *Allocator) CreateBuffer(info gpu.BufferInfo, usage gpu.MemoryUsage) (gpu.Buffer, error) {
	b, err := a.device.GPU().CreateBuffer(info, usage)
	if err != nil {
		a.device.reportError(gpu.ErrorOutOfDeviceMemory, "could not allocate buffer", false)
		err = errors.Wrapf(err, "allocate %d byte %s buffer", info.Size, usage)
		core.LogError(err.Error())
		return nil, err
	}
	a.record(b.AllocationSize())
	a.liveBuffers.Add(1)
	return b, nil
}

// DestroyBuffer is a no-op on nil.
func (a *Allocator) DestroyBuffer(b gpu.Buffer) {
	if b == nil {
		return
	}
	a.release(b.AllocationSize())
	a.liveBuffers.Add(-1)
	b.Destroy()
}

func (a *Allocator) CreateImage(info gpu.ImageInfo, usage gpu.MemoryUsage) (gpu.Image, error) {
	if usage == gpu.MemoryUsageGPULazilyAllocated && !a.device.SupportsLazyAllocation() {
		usage = gpu.MemoryUsageGPUOnly
	}
	img, err := a.device.GPU().CreateImage(info, usage)
	if err != nil {
		a.device.reportError(gpu.ErrorOutOfDeviceMemory, "could not allocate image", false)
		err = errors.Wrapf(err, "allocate %dx%d %s image", info.Extent.Width, info.Extent.Height, info.Format)
		core.LogError(err.Error())
		return nil, err
	}
	a.record(img.AllocationSize())
	a.liveImages.Add(1)
	return img, nil
}

// DestroyImage is a no-op on nil.
func (a *Allocator) DestroyImage(img gpu.Image) {
	if img == nil {
		return
	}
	a.release(img.AllocationSize())
	a.liveImages.Add(-1)
	img.Destroy()
}
