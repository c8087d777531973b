package software

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/spaghettifunk/gensou/engine/renderer/gpu"
)

// allocationGranularity rounds every allocation like a real memory heap would.
const allocationGranularity = 64

func alignAllocation(size uint64) uint64 {
	return (size + allocationGranularity - 1) &^ (allocationGranularity - 1)
}

// Buffer implements gpu.Buffer over a byte slice.
type Buffer struct {
	dev       *Device
	info      gpu.BufferInfo
	usage     gpu.MemoryUsage
	mu        sync.Mutex
	mem       []byte
	mapped    bool
	destroyed bool
}

func (b *Buffer) Size() uint64 {
	return b.info.Size
}

func (b *Buffer) AllocationSize() uint64 {
	return alignAllocation(b.info.Size)
}

func (b *Buffer) Usage() gpu.MemoryUsage {
	return b.usage
}

func (b *Buffer) Map() ([]byte, error) {
	if !b.usage.HostVisible() {
		return nil, errors.Wrapf(gpu.ErrorMemoryMapFailed.Err(), "buffer memory is %s", b.usage)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return nil, errors.New("map of destroyed buffer")
	}
	b.mapped = true
	return b.mem, nil
}

func (b *Buffer) Unmap() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mapped = false
}

func (b *Buffer) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return
	}
	b.destroyed = true
	b.dev.update(func(s *Stats) { s.LiveBuffers-- })
}

func (b *Buffer) Destroyed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.destroyed
}

// Image implements gpu.Image. Each layer and mip level is a tightly packed
// byte slice.
type Image struct {
	dev            *Device
	info           gpu.ImageInfo
	mu             sync.Mutex
	levels         [][][]byte
	layouts        [][]gpu.ImageLayout
	swapchainOwned bool
	destroyed      bool
}

func levelSize(info gpu.ImageInfo, mip uint32) (uint32, uint32, uint64) {
	w, h := info.Extent.Width, info.Extent.Height
	for i := uint32(0); i < mip; i++ {
		w, h = max(w/2, 1), max(h/2, 1)
	}
	bpp := uint64(info.Format.BytesPerPixel())
	if info.Format.IsCompressed() {
		bw, bh := (w+3)/4, (h+3)/4
		return w, h, uint64(bw) * uint64(bh) * bpp
	}
	return w, h, uint64(w) * uint64(h) * bpp
}

func newImage(d *Device, info gpu.ImageInfo, swapchainOwned bool) *Image {
	if info.MipLevels == 0 {
		info.MipLevels = 1
	}
	if info.ArrayLayers == 0 {
		info.ArrayLayers = 1
	}
	if info.Extent.Depth == 0 {
		info.Extent.Depth = 1
	}
	img := &Image{dev: d, info: info, swapchainOwned: swapchainOwned}
	img.levels = make([][][]byte, info.ArrayLayers)
	img.layouts = make([][]gpu.ImageLayout, info.ArrayLayers)
	for l := range img.levels {
		img.levels[l] = make([][]byte, info.MipLevels)
		img.layouts[l] = make([]gpu.ImageLayout, info.MipLevels)
		for m := range img.levels[l] {
			_, _, size := levelSize(info, uint32(m))
			img.levels[l][m] = make([]byte, size)
		}
	}
	return img
}

func (i *Image) Info() gpu.ImageInfo {
	return i.info
}

func (i *Image) AllocationSize() uint64 {
	var total uint64
	for m := uint32(0); m < i.info.MipLevels; m++ {
		_, _, s := levelSize(i.info, m)
		total += s
	}
	return alignAllocation(total * uint64(i.info.ArrayLayers))
}

func (i *Image) Destroy() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.destroyed {
		return
	}
	i.destroyed = true
	if !i.swapchainOwned {
		i.dev.update(func(s *Stats) { s.LiveImages-- })
	}
}

func (i *Image) Destroyed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.destroyed
}

// Pixels returns a copy of one layer and mip level.
func (i *Image) Pixels(layer, mip uint32) []byte {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]byte(nil), i.levels[layer][mip]...)
}

// Layout returns the layout the last barrier left the subresource in.
func (i *Image) Layout(layer, mip uint32) gpu.ImageLayout {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.layouts[layer][mip]
}
