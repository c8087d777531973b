package renderer

import (
	"context"
	"unsafe"

	"github.com/pkg/errors"

	"github.com/spaghettifunk/gensou/engine/core"
	"github.com/spaghettifunk/gensou/engine/renderer/gpu"
)

const cpuBufferAlignment = 64

// Buffer is the capability shared by the three buffer variants.
type Buffer interface {
	Capacity() uint64
	UsedSize() uint64
	Write(ctx context.Context, data []byte, offset uint64) error
	Resize(ctx context.Context, newSize uint64, keepOldData bool) error
	Destroy()
}

// GPUBuffer is a Buffer backed by a native buffer.
type GPUBuffer interface {
	Buffer
	Handle() gpu.Buffer
}

var (
	_ Buffer    = (*CPUBuffer)(nil)
	_ GPUBuffer = (*DeviceBuffer)(nil)
	_ GPUBuffer = (*HostVisibleBuffer)(nil)
)

func checkRange(capacity, offset, size uint64) error {
	if offset >= capacity || size > capacity-offset {
		return errors.Wrapf(core.ErrOutOfRange, "%d bytes at offset %d in a %d byte buffer", size, offset, capacity)
	}
	return nil
}

// growCapacity is the over-allocation applied when a copy does not fit:
// floor((capacity - dstOffset + size) * 1.5), never less than the end of the
// copied range.
func growCapacity(capacity, dstOffset, size uint64) uint64 {
	return max((capacity-dstOffset+size)*3/2, dstOffset+size)
}

// CPUBuffer is plain host memory aligned to 64 bytes. It has no GPU residency.
type CPUBuffer struct {
	raw  []byte
	data []byte
	used uint64
}

func alignedBytes(size uint64) (raw, data []byte) {
	raw = make([]byte, size+cpuBufferAlignment-1)
	pad := (cpuBufferAlignment - uintptr(unsafe.Pointer(unsafe.SliceData(raw)))%cpuBufferAlignment) % cpuBufferAlignment
	return raw, raw[pad : pad+uintptr(size) : pad+uintptr(size)]
}

func NewCPUBuffer(size uint64, data []byte) *CPUBuffer {
	b := &CPUBuffer{}
	b.raw, b.data = alignedBytes(size)
	if len(data) > 0 {
		b.used = uint64(copy(b.data, data))
	}
	return b
}

func (b *CPUBuffer) Capacity() uint64 { return uint64(len(b.data)) }
func (b *CPUBuffer) UsedSize() uint64 { return b.used }
func (b *CPUBuffer) Bytes() []byte    { return b.data }

func (b *CPUBuffer) Write(_ context.Context, data []byte, offset uint64) error {
	if err := checkRange(b.Capacity(), offset, uint64(len(data))); err != nil {
		return err
	}
	copy(b.data[offset:], data)
	b.used = max(b.used, offset+uint64(len(data)))
	return nil
}

func (b *CPUBuffer) Resize(_ context.Context, newSize uint64, keepOldData bool) error {
	core.LogDebug("resizing cpu only buffer | old size == %d, new size == %d", b.Capacity(), newSize)
	raw, data := alignedBytes(newSize)
	if keepOldData {
		copy(data, b.data)
		b.used = min(b.used, newSize)
	} else {
		b.used = 0
	}
	b.raw, b.data = raw, data
	return nil
}

func (b *CPUBuffer) Destroy() {
	b.raw, b.data, b.used = nil, nil, 0
}

// transferBuffer records and submits a one-off buffer copy from the calling
// thread's pool for role and blocks on its fence.
func transferBuffer(ctx context.Context, cmds *CommandManager, role QueueRole, src, dst gpu.Buffer, region gpu.BufferCopy) error {
	cmd, err := cmds.CmdBuffer(ctx, role)
	if err != nil {
		return err
	}
	if err := cmd.Begin(true); err != nil {
		return errors.Wrap(err, "begin transfer")
	}
	cmd.CopyBuffer(src, dst, []gpu.BufferCopy{region})
	if err := cmd.End(); err != nil {
		return errors.Wrap(err, "end transfer")
	}
	return cmds.Submit(cmd, true)
}

// stage fills a transient cpu-to-gpu transfer source with data.
func stage(a *Allocator, data []byte) (gpu.Buffer, error) {
	staging, err := a.CreateBuffer(gpu.BufferInfo{Size: uint64(len(data)), Usage: gpu.BufferUsageTransferSrc}, gpu.MemoryUsageCPUToGPU)
	if err != nil {
		return nil, err
	}
	mem, err := staging.Map()
	if err != nil {
		a.DestroyBuffer(staging)
		return nil, errors.Wrap(err, "map staging buffer")
	}
	copy(mem, data)
	staging.Unmap()
	return staging, nil
}

// DeviceBuffer lives in device-local memory. Every write and resize goes
// through a staging buffer and a blocking queue copy.
type DeviceBuffer struct {
	alloc    *Allocator
	buffer   gpu.Buffer
	usage    gpu.BufferUsageFlags
	capacity uint64
	used     uint64
}

// NewDeviceBuffer creates a device-local buffer. Initial data is uploaded on
// the transfer queue.
func NewDeviceBuffer(ctx context.Context, a *Allocator, size uint64, usage gpu.BufferUsageFlags, data []byte) (*DeviceBuffer, error) {
	b := &DeviceBuffer{alloc: a, usage: usage | gpu.BufferUsageTransferDst | gpu.BufferUsageTransferSrc}
	buf, err := a.CreateBuffer(gpu.BufferInfo{Size: size, Usage: b.usage}, gpu.MemoryUsageGPUOnly)
	if err != nil {
		return nil, err
	}
	b.buffer, b.capacity = buf, size

	if len(data) > 0 {
		if err := checkRange(size, 0, uint64(len(data))); err != nil {
			b.Destroy()
			return nil, err
		}
		if err := b.upload(ctx, QueueTransfer, data, 0); err != nil {
			b.Destroy()
			return nil, err
		}
		b.used = uint64(len(data))
	}
	return b, nil
}

func (b *DeviceBuffer) Handle() gpu.Buffer { return b.buffer }
func (b *DeviceBuffer) Capacity() uint64   { return b.capacity }
func (b *DeviceBuffer) UsedSize() uint64   { return b.used }

func (b *DeviceBuffer) upload(ctx context.Context, role QueueRole, data []byte, offset uint64) error {
	staging, err := stage(b.alloc, data)
	if err != nil {
		return err
	}
	defer b.alloc.DestroyBuffer(staging)
	return transferBuffer(ctx, b.alloc.cmds, role, staging, b.buffer, gpu.BufferCopy{DstOffset: offset, Size: uint64(len(data))})
}

// Write stages data and copies it on the graphics queue, which has lower
// submission latency for mid-frame updates.
func (b *DeviceBuffer) Write(ctx context.Context, data []byte, offset uint64) error {
	if err := checkRange(b.capacity, offset, uint64(len(data))); err != nil {
		return err
	}
	if err := b.upload(ctx, QueueGraphics, data, offset); err != nil {
		return err
	}
	b.used = max(b.used, offset+uint64(len(data)))
	return nil
}

// Resize swaps in a new allocation. Only the used bytes are carried over.
func (b *DeviceBuffer) Resize(ctx context.Context, newSize uint64, keepOldData bool) error {
	core.LogDebug("resizing gpu only buffer | old size == %d, new size == %d", b.capacity, newSize)
	buf, err := b.alloc.CreateBuffer(gpu.BufferInfo{Size: newSize, Usage: b.usage}, gpu.MemoryUsageGPUOnly)
	if err != nil {
		return err
	}
	if keepOldData && b.used > 0 {
		keep := min(b.used, newSize)
		if err := transferBuffer(ctx, b.alloc.cmds, QueueGraphics, b.buffer, buf, gpu.BufferCopy{Size: keep}); err != nil {
			b.alloc.DestroyBuffer(buf)
			return err
		}
		b.used = keep
	} else {
		b.used = 0
	}
	b.alloc.DestroyBuffer(b.buffer)
	b.buffer, b.capacity = buf, newSize
	return nil
}

// Copy copies size bytes from src, growing this buffer first when the
// destination range does not fit.
func (b *DeviceBuffer) Copy(ctx context.Context, src *DeviceBuffer, size, srcOffset, dstOffset uint64) error {
	if dstOffset >= b.capacity {
		return errors.Wrapf(core.ErrOutOfRange, "copy destination offset %d in a %d byte buffer", dstOffset, b.capacity)
	}
	if err := checkRange(src.capacity, srcOffset, size); err != nil {
		return err
	}
	if b.capacity-dstOffset < size {
		if err := b.Resize(ctx, growCapacity(b.capacity, dstOffset, size), true); err != nil {
			return err
		}
	}
	if err := transferBuffer(ctx, b.alloc.cmds, QueueGraphics, src.buffer, b.buffer, gpu.BufferCopy{SrcOffset: srcOffset, DstOffset: dstOffset, Size: size}); err != nil {
		return err
	}
	b.used = max(b.used, dstOffset+size)
	return nil
}

// Read copies size bytes at offset into a gpu-to-cpu staging buffer and
// returns them.
func (b *DeviceBuffer) Read(ctx context.Context, offset, size uint64) ([]byte, error) {
	if err := checkRange(b.capacity, offset, size); err != nil {
		return nil, err
	}
	staging, err := b.alloc.CreateBuffer(gpu.BufferInfo{Size: size, Usage: gpu.BufferUsageTransferDst}, gpu.MemoryUsageGPUToCPU)
	if err != nil {
		return nil, err
	}
	defer b.alloc.DestroyBuffer(staging)

	if err := transferBuffer(ctx, b.alloc.cmds, QueueGraphics, b.buffer, staging, gpu.BufferCopy{SrcOffset: offset, Size: size}); err != nil {
		return nil, err
	}
	mem, err := staging.Map()
	if err != nil {
		return nil, errors.Wrap(err, "map readback buffer")
	}
	defer staging.Unmap()
	return append([]byte(nil), mem[:size]...), nil
}

func (b *DeviceBuffer) Destroy() {
	b.alloc.DestroyBuffer(b.buffer)
	b.buffer, b.capacity, b.used = nil, 0, 0
}

// HostVisibleBuffer is persistently mapped from creation until Destroy.
type HostVisibleBuffer struct {
	alloc    *Allocator
	buffer   gpu.Buffer
	mapped   []byte
	usage    gpu.BufferUsageFlags
	memUsage gpu.MemoryUsage
	capacity uint64
	used     uint64
}

func NewHostVisibleBuffer(a *Allocator, size uint64, usage gpu.BufferUsageFlags, memUsage gpu.MemoryUsage, data []byte) (*HostVisibleBuffer, error) {
	if !memUsage.HostVisible() {
		memUsage = gpu.MemoryUsageCPUToGPU
	}
	b := &HostVisibleBuffer{alloc: a, usage: usage, memUsage: memUsage}
	if err := b.allocate(size); err != nil {
		return nil, err
	}
	if len(data) > 0 {
		if err := checkRange(size, 0, uint64(len(data))); err != nil {
			b.Destroy()
			return nil, err
		}
		b.used = uint64(copy(b.mapped, data))
	}
	return b, nil
}

func (b *HostVisibleBuffer) allocate(size uint64) error {
	buf, err := b.alloc.CreateBuffer(gpu.BufferInfo{Size: size, Usage: b.usage}, b.memUsage)
	if err != nil {
		return err
	}
	mem, err := buf.Map()
	if err != nil {
		b.alloc.DestroyBuffer(buf)
		return errors.Wrap(err, "map host visible buffer")
	}
	if b.buffer != nil {
		copy(mem, b.mapped)
		b.buffer.Unmap()
		b.alloc.DestroyBuffer(b.buffer)
	}
	b.buffer, b.mapped, b.capacity = buf, mem[:size], size
	return nil
}

func (b *HostVisibleBuffer) Handle() gpu.Buffer { return b.buffer }
func (b *HostVisibleBuffer) Capacity() uint64   { return b.capacity }
func (b *HostVisibleBuffer) UsedSize() uint64   { return b.used }

// Bytes is the persistent mapping.
func (b *HostVisibleBuffer) Bytes() []byte { return b.mapped }

func (b *HostVisibleBuffer) Write(_ context.Context, data []byte, offset uint64) error {
	if err := checkRange(b.capacity, offset, uint64(len(data))); err != nil {
		return err
	}
	copy(b.mapped[offset:], data)
	b.used = max(b.used, offset+uint64(len(data)))
	return nil
}

// Resize maps a new allocation, copies the old bytes when asked and releases
// the old buffer.
func (b *HostVisibleBuffer) Resize(_ context.Context, newSize uint64, keepOldData bool) error {
	core.LogDebug("resizing host visible buffer | old size == %d, new size == %d", b.capacity, newSize)
	if !keepOldData || b.used == 0 {
		b.used = 0
		old := b.mapped
		b.mapped = nil
		if err := b.allocate(newSize); err != nil {
			b.mapped = old
			return err
		}
		return nil
	}
	if err := b.allocate(newSize); err != nil {
		return err
	}
	b.used = min(b.used, newSize)
	return nil
}

// Copy copies from another host-visible buffer, growing first when needed.
func (b *HostVisibleBuffer) Copy(src *HostVisibleBuffer, size, srcOffset, dstOffset uint64) error {
	if dstOffset >= b.capacity {
		return errors.Wrapf(core.ErrOutOfRange, "copy destination offset %d in a %d byte buffer", dstOffset, b.capacity)
	}
	if err := checkRange(src.capacity, srcOffset, size); err != nil {
		return err
	}
	if b.capacity-dstOffset < size {
		if err := b.Resize(context.Background(), growCapacity(b.capacity, dstOffset, size), true); err != nil {
			return err
		}
	}
	copy(b.mapped[dstOffset:dstOffset+size], src.mapped[srcOffset:srcOffset+size])
	b.used = max(b.used, dstOffset+size)
	return nil
}

func (b *HostVisibleBuffer) Destroy() {
	if b.buffer == nil {
		return
	}
	b.buffer.Unmap()
	b.alloc.DestroyBuffer(b.buffer)
	b.buffer, b.mapped, b.capacity, b.used = nil, nil, 0, 0
}
