package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"

	"github.com/spaghettifunk/gensou/engine/core"
	"github.com/spaghettifunk/gensou/engine/renderer/gpu"
)

// memoryProperties maps an allocation hint onto Vulkan memory properties.
func memoryProperties(usage gpu.MemoryUsage) vk.MemoryPropertyFlagBits {
	switch usage {
	case gpu.MemoryUsageCPUOnly, gpu.MemoryUsageCPUToGPU, gpu.MemoryUsageGPUToCPU:
		return vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit
	case gpu.MemoryUsageGPULazilyAllocated:
		return vk.MemoryPropertyLazilyAllocatedBit
	}
	return vk.MemoryPropertyDeviceLocalBit
}

// allocate backs a resource with its own device memory block.
func (d *Device) allocate(reqs vk.MemoryRequirements, usage gpu.MemoryUsage) (vk.DeviceMemory, uint64, error) {
	reqs.Deref()
	index, ok := d.adapter.memoryType(reqs.MemoryTypeBits, memoryProperties(usage))
	if !ok && usage == gpu.MemoryUsageGPULazilyAllocated {
		index, ok = d.adapter.memoryType(reqs.MemoryTypeBits, vk.MemoryPropertyDeviceLocalBit)
	}
	if !ok {
		return vk.NullDeviceMemory, 0, errors.Errorf("no memory type for %s allocation", usage)
	}
	info := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: index,
	}
	var mem vk.DeviceMemory
	if err := check(vk.AllocateMemory(d.handle, &info, nil, &mem), "allocate memory"); err != nil {
		return vk.NullDeviceMemory, 0, err
	}
	return mem, uint64(reqs.Size), nil
}

// Buffer implements gpu.Buffer.
type Buffer struct {
	device    *Device
	handle    vk.Buffer
	memory    vk.DeviceMemory
	size      uint64
	allocated uint64
	usage     gpu.MemoryUsage
	mapped    []byte
}

func (d *Device) CreateBuffer(info gpu.BufferInfo, usage gpu.MemoryUsage) (gpu.Buffer, error) {
	create := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(info.Size),
		Usage:       vk.BufferUsageFlags(info.Usage),
		SharingMode: vk.SharingModeExclusive,
	}
	b := &Buffer{device: d, size: info.Size, usage: usage}
	if err := check(vk.CreateBuffer(d.handle, &create, nil, &b.handle), "create buffer"); err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.handle, b.handle, &reqs)
	mem, size, err := d.allocate(reqs, usage)
	if err != nil {
		vk.DestroyBuffer(d.handle, b.handle, nil)
		return nil, err
	}
	b.memory, b.allocated = mem, size
	if err := check(vk.BindBufferMemory(d.handle, b.handle, b.memory, 0), "bind buffer memory"); err != nil {
		b.Destroy()
		return nil, err
	}
	return b, nil
}

func (b *Buffer) Size() uint64           { return b.size }
func (b *Buffer) AllocationSize() uint64 { return b.allocated }

func (b *Buffer) Map() ([]byte, error) {
	if !b.usage.HostVisible() {
		return nil, errors.Errorf("buffer memory is %s and cannot be mapped", b.usage)
	}
	if b.mapped != nil {
		return b.mapped, nil
	}
	var ptr unsafe.Pointer
	if err := check(vk.MapMemory(b.device.handle, b.memory, 0, vk.DeviceSize(b.size), 0, &ptr), "map buffer"); err != nil {
		return nil, err
	}
	b.mapped = unsafe.Slice((*byte)(ptr), b.size)
	return b.mapped, nil
}

func (b *Buffer) Unmap() {
	if b.mapped == nil {
		return
	}
	vk.UnmapMemory(b.device.handle, b.memory)
	b.mapped = nil
}

func (b *Buffer) Destroy() {
	b.Unmap()
	if b.handle != vk.NullBuffer {
		vk.DestroyBuffer(b.device.handle, b.handle, nil)
		b.handle = vk.NullBuffer
	}
	if b.memory != vk.NullDeviceMemory {
		vk.FreeMemory(b.device.handle, b.memory, nil)
		b.memory = vk.NullDeviceMemory
	}
}

// Image implements gpu.Image. Swapchain images carry no memory and are
// owned by their swapchain.
type Image struct {
	device    *Device
	handle    vk.Image
	memory    vk.DeviceMemory
	info      gpu.ImageInfo
	allocated uint64
	borrowed  bool
}

func (d *Device) CreateImage(info gpu.ImageInfo, usage gpu.MemoryUsage) (gpu.Image, error) {
	create := vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		ImageType:     vk.ImageType2d,
		Format:        vk.Format(info.Format),
		Extent:        extent3D(info.Extent),
		MipLevels:     info.MipLevels,
		ArrayLayers:   info.ArrayLayers,
		Samples:       vk.SampleCountFlagBits(info.Samples),
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(info.Usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	if info.Cube {
		create.Flags = vk.ImageCreateFlags(vk.ImageCreateCubeCompatibleBit)
	}
	img := &Image{device: d, info: info}
	if err := check(vk.CreateImage(d.handle, &create, nil, &img.handle), "create image"); err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.handle, img.handle, &reqs)
	mem, size, err := d.allocate(reqs, usage)
	if err != nil {
		vk.DestroyImage(d.handle, img.handle, nil)
		return nil, err
	}
	img.memory, img.allocated = mem, size
	if err := check(vk.BindImageMemory(d.handle, img.handle, img.memory, 0), "bind image memory"); err != nil {
		img.Destroy()
		return nil, err
	}
	return img, nil
}

func (i *Image) Info() gpu.ImageInfo    { return i.info }
func (i *Image) AllocationSize() uint64 { return i.allocated }

func (i *Image) Destroy() {
	if i.borrowed {
		return
	}
	if i.handle != vk.NullImage {
		vk.DestroyImage(i.device.handle, i.handle, nil)
		i.handle = vk.NullImage
	}
	if i.memory != vk.NullDeviceMemory {
		vk.FreeMemory(i.device.handle, i.memory, nil)
		i.memory = vk.NullDeviceMemory
	}
}

// ImageView implements gpu.ImageView.
type ImageView struct {
	device *Device
	handle vk.ImageView
	image  *Image
}

func (d *Device) CreateImageView(info gpu.ImageViewInfo) (gpu.ImageView, error) {
	img := info.Image.(*Image)
	create := vk.ImageViewCreateInfo{
		SType:            vk.StructureTypeImageViewCreateInfo,
		Image:            img.handle,
		ViewType:         vk.ImageViewType(info.Type),
		Format:           vk.Format(info.Format),
		SubresourceRange: subresourceRange(info.Aspect, info.BaseMip, info.MipCount, info.BaseLayer, info.LayerCount),
	}
	v := &ImageView{device: d, image: img}
	if err := check(vk.CreateImageView(d.handle, &create, nil, &v.handle), "create image view"); err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	return v, nil
}

func (v *ImageView) Image() gpu.Image { return v.image }

func (v *ImageView) Destroy() {
	if v.handle != vk.NullImageView {
		vk.DestroyImageView(v.device.handle, v.handle, nil)
		v.handle = vk.NullImageView
	}
}

// Sampler implements gpu.Sampler.
type Sampler struct {
	device *Device
	handle vk.Sampler
}

func (d *Device) CreateSampler(info gpu.SamplerInfo) (gpu.Sampler, error) {
	mode := vk.SamplerAddressMode(info.AddressMode)
	create := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.Filter(info.MagFilter),
		MinFilter:               vk.Filter(info.MinFilter),
		AddressModeU:            mode,
		AddressModeV:            mode,
		AddressModeW:            mode,
		AnisotropyEnable:        boolean(info.Anisotropy > 0),
		MaxAnisotropy:           info.Anisotropy,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MipmapMode:              vk.SamplerMipmapModeLinear,
		MaxLod:                  info.MaxLod,
	}
	s := &Sampler{device: d}
	if err := check(vk.CreateSampler(d.handle, &create, nil, &s.handle), "create sampler"); err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	return s, nil
}

func (s *Sampler) Destroy() {
	if s.handle != nil {
		vk.DestroySampler(s.device.handle, s.handle, nil)
		s.handle = nil
	}
}
