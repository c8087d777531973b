package software

import (
	"github.com/pkg/errors"

	"github.com/spaghettifunk/gensou/engine/renderer/gpu"
)

// Swapchain implements gpu.Swapchain. Images are handed out round robin.
type Swapchain struct {
	dev       *Device
	info      gpu.SwapchainInfo
	images    []*Image
	next      uint32
	retired   bool
	destroyed bool
}

func newSwapchain(d *Device, info gpu.SwapchainInfo) (*Swapchain, error) {
	surface, ok := info.Surface.(*Surface)
	if !ok || surface == nil || surface.destroyed {
		return nil, errors.Wrap(gpu.ErrorSurfaceLost.Err(), "create swapchain")
	}
	caps, _ := d.adapter.SurfaceCapabilities(surface)
	if info.MinImageCount < caps.MinImageCount || (caps.MaxImageCount > 0 && info.MinImageCount > caps.MaxImageCount) {
		return nil, errors.Wrapf(gpu.ErrorInitializationFailed.Err(), "image count %d outside [%d, %d]",
			info.MinImageCount, caps.MinImageCount, caps.MaxImageCount)
	}
	if info.Extent.Width == 0 || info.Extent.Height == 0 {
		return nil, errors.Wrap(gpu.ErrorInitializationFailed.Err(), "zero swapchain extent")
	}
	if old, ok := info.OldSwapchain.(*Swapchain); ok && old != nil {
		old.retired = true
	}
	sc := &Swapchain{dev: d, info: info}
	for i := uint32(0); i < info.MinImageCount; i++ {
		sc.images = append(sc.images, newImage(d, gpu.ImageInfo{
			Extent:      gpu.Extent3D{Width: info.Extent.Width, Height: info.Extent.Height, Depth: 1},
			Format:      info.Format,
			MipLevels:   1,
			ArrayLayers: 1,
			Samples:     gpu.SampleCount1,
			Usage:       info.Usage,
		}, true))
	}
	return sc, nil
}

// Info returns the creation parameters.
func (s *Swapchain) Info() gpu.SwapchainInfo {
	return s.info
}

func (s *Swapchain) Images() ([]gpu.Image, error) {
	out := make([]gpu.Image, len(s.images))
	for i, img := range s.images {
		out[i] = img
	}
	return out, nil
}

func (s *Swapchain) AcquireNextImage(timeout uint64, sem gpu.Semaphore, fence gpu.Fence) (uint32, gpu.Result) {
	if s.destroyed || s.retired {
		return 0, gpu.ErrorOutOfDate
	}
	idx := s.next
	s.next = (s.next + 1) % uint32(len(s.images))
	if fence != nil {
		fence.(*Fence).signal()
	}
	return idx, gpu.Success
}

func (s *Swapchain) Destroy() {
	s.destroyed = true
}

func (s *Swapchain) Destroyed() bool {
	return s.destroyed
}
