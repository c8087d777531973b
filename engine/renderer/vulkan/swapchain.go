package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/gensou/engine/core"
	"github.com/spaghettifunk/gensou/engine/renderer/gpu"
)

// Swapchain implements gpu.Swapchain.
type Swapchain struct {
	device *Device
	handle vk.Swapchain
	info   gpu.SwapchainInfo
	images []gpu.Image
}

func (d *Device) CreateSwapchain(info gpu.SwapchainInfo) (gpu.Swapchain, error) {
	create := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          surfaceHandle(info.Surface),
		MinImageCount:    info.MinImageCount,
		ImageFormat:      vk.Format(info.Format),
		ImageColorSpace:  vk.ColorSpace(info.ColorSpace),
		ImageExtent:      extent2D(info.Extent),
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(info.Usage),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     vk.SurfaceTransformFlagBits(info.Transform),
		CompositeAlpha:   vk.CompositeAlphaFlagBits(info.CompositeAlpha),
		PresentMode:      vk.PresentMode(info.PresentMode),
		Clipped:          boolean(info.Clipped),
		OldSwapchain:     vk.NullSwapchain,
	}
	if info.OldSwapchain != nil {
		create.OldSwapchain = info.OldSwapchain.(*Swapchain).handle
	}

	s := &Swapchain{device: d, info: info}
	if err := check(vk.CreateSwapchain(d.handle, &create, nil, &s.handle), "create swapchain"); err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	core.LogDebug("swapchain created %dx%d (%s, %s)", info.Extent.Width, info.Extent.Height, info.Format, info.PresentMode)
	return s, nil
}

func (s *Swapchain) Images() ([]gpu.Image, error) {
	if s.images != nil {
		return s.images, nil
	}
	var count uint32
	if err := check(vk.GetSwapchainImages(s.device.handle, s.handle, &count, nil), "query swapchain images"); err != nil {
		return nil, err
	}
	handles := make([]vk.Image, count)
	if err := check(vk.GetSwapchainImages(s.device.handle, s.handle, &count, handles), "get swapchain images"); err != nil {
		return nil, err
	}

	info := gpu.ImageInfo{
		Extent:      gpu.Extent3D{Width: s.info.Extent.Width, Height: s.info.Extent.Height, Depth: 1},
		Format:      s.info.Format,
		MipLevels:   1,
		ArrayLayers: 1,
		Samples:     gpu.SampleCount1,
		Usage:       s.info.Usage,
	}
	s.images = make([]gpu.Image, count)
	for i, h := range handles[:count] {
		s.images[i] = &Image{device: s.device, handle: h, info: info, borrowed: true}
	}
	return s.images, nil
}

func (s *Swapchain) AcquireNextImage(timeout uint64, sem gpu.Semaphore, fence gpu.Fence) (uint32, gpu.Result) {
	semaphore, f := vk.NullSemaphore, vk.NullFence
	if sem != nil {
		semaphore = sem.(*Semaphore).handle
	}
	if fence != nil {
		f = fence.(*Fence).handle
	}
	var index uint32
	r := vk.AcquireNextImage(s.device.handle, s.handle, timeout, semaphore, f, &index)
	return index, toResult(r)
}

func (s *Swapchain) Destroy() {
	if s.handle != vk.NullSwapchain {
		vk.DestroySwapchain(s.device.handle, s.handle, nil)
		s.handle = vk.NullSwapchain
	}
	s.images = nil
}
