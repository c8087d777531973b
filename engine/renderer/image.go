package renderer

import (
	"context"

	"github.com/pkg/errors"

	"github.com/spaghettifunk/gensou/engine/core"
	emath "github.com/spaghettifunk/gensou/engine/math"
	"github.com/spaghettifunk/gensou/engine/renderer/gpu"
)

// AllLayers selects every layer of an image in GenerateMipChain.
const AllLayers = ^uint32(0)

// TextureContainer is a decoded texture container (KTX-like): one tightly
// packed blob with an offset per layer and mip level.
type TextureContainer struct {
	Width, Height uint32
	Layers        uint32
	Levels        uint32
	Data          []byte
	// Offsets[layer][mip] is the byte offset of that subresource in Data.
	Offsets [][]uint64
}

// Image2D is an image, its view and the metadata needed to recreate them.
// Swapchain-backed images never free the native image, only their view.
type Image2D struct {
	alloc *Allocator

	image gpu.Image
	view  gpu.ImageView

	extent     gpu.Extent2D
	format     gpu.Format
	usage      gpu.ImageUsageFlags
	samples    gpu.SampleCountFlags
	mipLevels  uint32
	layerCount uint32

	swapchainTarget bool
	lazilyAllocated bool
}

// NewImage2DFromPixels uploads raw pixels into a sampled image. When mips
// are requested the upload and the chain share one graphics submit.
func NewImage2DFromPixels(ctx context.Context, a *Allocator, pixels []byte, extent gpu.Extent2D, format gpu.Format, generateMips bool, layers uint32) (*Image2D, error) {
	if len(pixels) == 0 || extent.Width == 0 || extent.Height == 0 {
		return nil, errors.New("image needs pixels and a non-zero extent")
	}
	img := &Image2D{
		alloc:      a,
		extent:     extent,
		format:     format,
		usage:      gpu.ImageUsageTransferDst | gpu.ImageUsageTransferSrc | gpu.ImageUsageSampled,
		samples:    gpu.SampleCount1,
		mipLevels:  1,
		layerCount: max(layers, 1),
	}
	if generateMips {
		if a.device.FormatSupportsBlit(format) {
			img.mipLevels = emath.MipCount(extent.Width, extent.Height)
		} else {
			core.LogError("mips requested but the chosen format's optimal tiling does not support blitting. No mips were generated")
			generateMips = false
		}
	}
	if err := img.allocate(gpu.MemoryUsageGPUOnly); err != nil {
		return nil, err
	}

	region := gpu.BufferImageCopy{
		LayerCount: 1,
		Extent:     gpu.Extent3D{Width: extent.Width, Height: extent.Height, Depth: 1},
	}
	role, final := QueueTransfer, gpu.ImageLayoutShaderReadOnlyOptimal
	if generateMips {
		role, final = QueueGraphics, gpu.ImageLayoutTransferDstOptimal
	}
	err := img.upload(ctx, role, pixels, []gpu.BufferImageCopy{region}, gpu.ImageLayoutUndefined, final, func(cmd gpu.CommandBuffer) {
		if generateMips {
			img.GenerateMipChain(cmd, gpu.ImageLayoutTransferDstOptimal, gpu.ImageLayoutShaderReadOnlyOptimal, img.mipLevels, 0)
		}
	})
	if err != nil {
		img.Destroy()
		return nil, err
	}
	return img, nil
}

// NewImage2D creates an attachment or render target.
func NewImage2D(a *Allocator, usage gpu.ImageUsageFlags, extent gpu.Extent2D, format gpu.Format, samples gpu.SampleCountFlags, generateMips bool) (*Image2D, error) {
	levels := uint32(1)
	if generateMips {
		levels = emath.MipCount(extent.Width, extent.Height)
	}
	return NewImage2DWithLevels(a, usage, extent, format, levels, 1, samples)
}

func NewImage2DWithLevels(a *Allocator, usage gpu.ImageUsageFlags, extent gpu.Extent2D, format gpu.Format, levels, layers uint32, samples gpu.SampleCountFlags) (*Image2D, error) {
	img := &Image2D{
		alloc:      a,
		extent:     extent,
		format:     format,
		usage:      usage,
		samples:    max(samples, gpu.SampleCount1),
		mipLevels:  max(levels, 1),
		layerCount: max(layers, 1),
	}
	if err := img.create(); err != nil {
		return nil, err
	}
	return img, nil
}

// NewSwapchainImage2D wraps an image owned by the swapchain. Only the view
// belongs to the wrapper.
func NewSwapchainImage2D(a *Allocator, image gpu.Image, extent gpu.Extent2D, format gpu.Format) (*Image2D, error) {
	img := &Image2D{
		alloc:           a,
		format:          format,
		usage:           gpu.ImageUsageColorAttachment,
		samples:         gpu.SampleCount1,
		mipLevels:       1,
		layerCount:      1,
		swapchainTarget: true,
	}
	if err := img.wrap(image, extent); err != nil {
		return nil, err
	}
	return img, nil
}

// NewImage2DFromContainer uploads every stored mip and layer of a texture
// container, one copy region per mip×layer. A single-level container may have
// its chain generated.
func NewImage2DFromContainer(ctx context.Context, a *Allocator, c *TextureContainer, format gpu.Format, generateMips bool) (*Image2D, error) {
	if c == nil || len(c.Data) == 0 {
		return nil, errors.New("empty texture container")
	}
	core.LogInfo("creating image2d from container with format %s", format)
	img := &Image2D{
		alloc:      a,
		extent:     gpu.Extent2D{Width: c.Width, Height: c.Height},
		format:     format,
		usage:      gpu.ImageUsageTransferDst | gpu.ImageUsageSampled,
		samples:    gpu.SampleCount1,
		layerCount: max(c.Layers, 1),
		mipLevels:  max(c.Levels, 1),
	}
	if generateMips {
		img.usage |= gpu.ImageUsageTransferSrc
	}
	if c.Levels <= 1 && generateMips {
		if a.device.FormatSupportsBlit(format) {
			img.mipLevels = emath.MipCount(c.Width, c.Height)
		} else {
			core.LogError("mips requested but the chosen format's optimal tiling does not support blitting. No mips were generated")
			generateMips = false
		}
	} else {
		generateMips = false
	}
	if err := img.allocate(gpu.MemoryUsageGPUOnly); err != nil {
		return nil, err
	}

	var regions []gpu.BufferImageCopy
	for layer := uint32(0); layer < img.layerCount; layer++ {
		for mip := uint32(0); mip < max(c.Levels, 1); mip++ {
			var offset uint64
			if int(layer) < len(c.Offsets) && int(mip) < len(c.Offsets[layer]) {
				offset = c.Offsets[layer][mip]
			}
			regions = append(regions, gpu.BufferImageCopy{
				BufferOffset: offset,
				MipLevel:     mip,
				BaseLayer:    layer,
				LayerCount:   1,
				Extent:       gpu.Extent3D{Width: max(c.Width>>mip, 1), Height: max(c.Height>>mip, 1), Depth: 1},
			})
		}
	}

	role, final := QueueTransfer, gpu.ImageLayoutShaderReadOnlyOptimal
	if generateMips {
		role, final = QueueGraphics, gpu.ImageLayoutTransferDstOptimal
	}
	err := img.upload(ctx, role, c.Data, regions, gpu.ImageLayoutUndefined, final, func(cmd gpu.CommandBuffer) {
		if generateMips {
			img.GenerateMipChain(cmd, gpu.ImageLayoutTransferDstOptimal, gpu.ImageLayoutShaderReadOnlyOptimal, img.mipLevels, AllLayers)
		}
	})
	if err != nil {
		img.Destroy()
		return nil, err
	}
	return img, nil
}

func (i *Image2D) info() gpu.ImageInfo {
	return gpu.ImageInfo{
		Extent:      gpu.Extent3D{Width: i.extent.Width, Height: i.extent.Height, Depth: 1},
		Format:      i.format,
		MipLevels:   i.mipLevels,
		ArrayLayers: i.layerCount,
		Samples:     i.samples,
		Usage:       i.usage,
	}
}

func (i *Image2D) viewInfo() gpu.ImageViewInfo {
	viewType := gpu.ImageViewType2D
	if i.layerCount > 1 {
		viewType = gpu.ImageViewType2DArray
	}
	aspect := gpu.ImageAspectColor
	if i.usage&gpu.ImageUsageDepthStencilAttachment != 0 {
		aspect = gpu.ImageAspectDepth
	}
	return gpu.ImageViewInfo{
		Image:      i.image,
		Type:       viewType,
		Format:     i.format,
		Aspect:     aspect,
		MipCount:   i.mipLevels,
		LayerCount: i.layerCount,
	}
}

func (i *Image2D) allocate(memUsage gpu.MemoryUsage) error {
	image, err := i.alloc.CreateImage(i.info(), memUsage)
	if err != nil {
		return err
	}
	i.image = image
	view, err := i.alloc.device.GPU().CreateImageView(i.viewInfo())
	if err != nil {
		i.alloc.device.reportError(gpu.ErrorInitializationFailed, "could not create texture imageview", false)
		i.alloc.DestroyImage(i.image)
		i.image = nil
		return errors.Wrap(err, "create image view")
	}
	i.view = view
	return nil
}

// create builds the image from the stored parameters, clamping mips when the
// format cannot blit and stripping transient usage without lazy allocation.
func (i *Image2D) create() error {
	memUsage := gpu.MemoryUsageGPUOnly
	i.lazilyAllocated = false
	if i.usage&gpu.ImageUsageTransientAttachment != 0 {
		if i.alloc.device.SupportsLazyAllocation() {
			memUsage = gpu.MemoryUsageGPULazilyAllocated
			i.lazilyAllocated = true
		} else {
			i.usage &^= gpu.ImageUsageTransientAttachment
		}
	}
	if i.mipLevels > 1 && !i.alloc.device.FormatSupportsBlit(i.format) {
		core.LogWarn("mips requested but the chosen format's optimal tiling does not support blitting")
		i.mipLevels = 1
	}
	return i.allocate(memUsage)
}

func (i *Image2D) wrap(image gpu.Image, extent gpu.Extent2D) error {
	if image == nil {
		return errors.New("swapchain image is nil")
	}
	i.image, i.extent = image, extent
	view, err := i.alloc.device.GPU().CreateImageView(i.viewInfo())
	if err != nil {
		i.alloc.device.reportError(gpu.ErrorInitializationFailed, "could not create swapchain imageview", true)
		return errors.Wrap(err, "create swapchain image view")
	}
	i.view = view
	return nil
}

// upload stages data and copies it into the image with the given regions,
// moving every level from initial to final. extra runs before the command buffer ends.
func (i *Image2D) upload(ctx context.Context, role QueueRole, data []byte, regions []gpu.BufferImageCopy, initial, final gpu.ImageLayout, extra func(cmd gpu.CommandBuffer)) error {
	staging, err := stage(i.alloc, data)
	if err != nil {
		return err
	}
	defer i.alloc.DestroyBuffer(staging)

	cmds := i.alloc.cmds
	cmd, err := cmds.CmdBuffer(ctx, role)
	if err != nil {
		return err
	}
	if err := cmd.Begin(true); err != nil {
		return errors.Wrap(err, "begin image upload")
	}
	bufferToImage(cmd, i.image, staging, regions, initial, final, i.mipLevels, i.layerCount)
	if extra != nil {
		extra(cmd)
	}
	if err := cmd.End(); err != nil {
		return errors.Wrap(err, "end image upload")
	}
	return cmds.Submit(cmd, true)
}

// bufferToImage transitions the whole image to transfer-dst, copies the
// regions and transitions to newLayout.
func bufferToImage(cmd gpu.CommandBuffer, image gpu.Image, src gpu.Buffer, regions []gpu.BufferImageCopy, oldLayout, newLayout gpu.ImageLayout, mips, layers uint32) {
	barrier := gpu.ImageBarrier{
		Image:      image,
		OldLayout:  oldLayout,
		NewLayout:  gpu.ImageLayoutTransferDstOptimal,
		SrcAccess:  gpu.AccessForLayout(oldLayout),
		DstAccess:  gpu.AccessTransferWrite,
		Aspect:     gpu.ImageAspectColor,
		MipCount:   mips,
		LayerCount: layers,
	}
	cmd.PipelineBarrier(gpu.PipelineStageTopOfPipe, gpu.PipelineStageTransfer, 0, []gpu.ImageBarrier{barrier})

	cmd.CopyBufferToImage(src, image, gpu.ImageLayoutTransferDstOptimal, regions)

	barrier.OldLayout = gpu.ImageLayoutTransferDstOptimal
	barrier.NewLayout = newLayout
	barrier.SrcAccess = gpu.AccessTransferWrite
	barrier.DstAccess = gpu.AccessMemoryRead
	cmd.PipelineBarrier(gpu.PipelineStageTransfer, gpu.PipelineStageBottomOfPipe, 0, []gpu.ImageBarrier{barrier})
}

// Write copies pixels into a region of one layer of mip 0 and leaves the
// image shader readable.
func (i *Image2D) Write(ctx context.Context, pixels []byte, extent gpu.Extent2D, offset gpu.Offset3D, layer uint32) error {
	if i.image == nil {
		return errors.New("write to an invalidated image")
	}
	if uint32(offset.X)+extent.Width > i.extent.Width || uint32(offset.Y)+extent.Height > i.extent.Height || layer >= i.layerCount {
		return errors.Wrapf(core.ErrOutOfRange, "%dx%d region at %d,%d layer %d", extent.Width, extent.Height, offset.X, offset.Y, layer)
	}
	region := gpu.BufferImageCopy{
		BaseLayer:  layer,
		LayerCount: 1,
		Offset:     gpu.Offset3D{X: offset.X, Y: offset.Y},
		Extent:     gpu.Extent3D{Width: extent.Width, Height: extent.Height, Depth: 1},
	}
	return i.upload(ctx, QueueGraphics, pixels, []gpu.BufferImageCopy{region}, gpu.ImageLayoutShaderReadOnlyOptimal, gpu.ImageLayoutShaderReadOnlyOptimal, nil)
}

// GenerateMipChain blits level n-1 into level n for every level up to
// maxLevels (0 means all). Each level ends in newLayout once it has served as
// a blit source. layer is a single layer or AllLayers.
func (i *Image2D) GenerateMipChain(cmd gpu.CommandBuffer, oldLayout, newLayout gpu.ImageLayout, maxLevels, layer uint32) {
	levels := i.mipLevels
	if maxLevels > 0 {
		if maxLevels > levels {
			core.LogError("requested %d mip levels but the image was created with %d", maxLevels, levels)
		} else {
			levels = maxLevels
		}
	}

	baseLayer, layerCount := uint32(0), uint32(1)
	switch {
	case layer == AllLayers:
		layerCount = i.layerCount
	case layer >= i.layerCount:
		core.LogError("requested mips for layer %d of an image with %d layers", layer, i.layerCount)
	default:
		baseLayer = layer
	}

	barrier := gpu.ImageBarrier{
		Image:      i.image,
		Aspect:     gpu.ImageAspectColor,
		BaseLayer:  baseLayer,
		LayerCount: layerCount,
	}

	if oldLayout != gpu.ImageLayoutTransferDstOptimal {
		barrier.MipCount = levels
		barrier.OldLayout = oldLayout
		barrier.NewLayout = gpu.ImageLayoutTransferDstOptimal
		barrier.SrcAccess = gpu.AccessForLayout(oldLayout)
		barrier.DstAccess = gpu.AccessTransferWrite
		cmd.PipelineBarrier(gpu.PipelineStageAllCommands, gpu.PipelineStageTransfer, 0, []gpu.ImageBarrier{barrier})
	}

	barrier.MipCount = 1
	extents := emath.MipChainExtents(int32(i.extent.Width), int32(i.extent.Height), levels)

	for level := uint32(1); level < levels; level++ {
		barrier.BaseMip = level - 1
		barrier.OldLayout = gpu.ImageLayoutTransferDstOptimal
		barrier.NewLayout = gpu.ImageLayoutTransferSrcOptimal
		barrier.SrcAccess = gpu.AccessTransferWrite
		barrier.DstAccess = gpu.AccessTransferRead
		cmd.PipelineBarrier(gpu.PipelineStageTransfer, gpu.PipelineStageTransfer, 0, []gpu.ImageBarrier{barrier})

		src, dst := extents[level-1], extents[level]
		cmd.BlitImage(i.image, gpu.ImageLayoutTransferSrcOptimal, i.image, gpu.ImageLayoutTransferDstOptimal, []gpu.ImageBlit{{
			SrcMip:     level - 1,
			SrcOffsets: [2]gpu.Offset3D{{}, {X: src[0], Y: src[1], Z: 1}},
			DstMip:     level,
			DstOffsets: [2]gpu.Offset3D{{}, {X: dst[0], Y: dst[1], Z: 1}},
			BaseLayer:  baseLayer,
			LayerCount: layerCount,
		}}, gpu.FilterLinear)

		barrier.OldLayout = gpu.ImageLayoutTransferSrcOptimal
		barrier.NewLayout = newLayout
		barrier.SrcAccess = gpu.AccessTransferRead
		barrier.DstAccess = gpu.AccessForLayout(newLayout)
		cmd.PipelineBarrier(gpu.PipelineStageTransfer, gpu.PipelineStageFragmentShader, 0, []gpu.ImageBarrier{barrier})
	}

	barrier.BaseMip = levels - 1
	barrier.OldLayout = gpu.ImageLayoutTransferDstOptimal
	barrier.NewLayout = newLayout
	barrier.SrcAccess = gpu.AccessTransferWrite
	barrier.DstAccess = gpu.AccessForLayout(newLayout)
	cmd.PipelineBarrier(gpu.PipelineStageTransfer, gpu.PipelineStageFragmentShader, 0, []gpu.ImageBarrier{barrier})
}

// Resize recreates the image at the new extent. Swapchain images must use
// ResizeSwapchain.
func (i *Image2D) Resize(width, height uint32) error {
	if i.swapchainTarget {
		return errors.New("swapchain image cannot be resized, only updated")
	}
	if i.extent.Width == width && i.extent.Height == height {
		return nil
	}
	i.invalidate()
	i.extent = gpu.Extent2D{Width: width, Height: height}
	return i.create()
}

// ResizeSwapchain rebuilds the view over a new swapchain image.
func (i *Image2D) ResizeSwapchain(image gpu.Image, width, height uint32) error {
	if !i.swapchainTarget {
		return errors.New("swapchain image passed to resize a non-swapchain image")
	}
	i.invalidate()
	return i.wrap(image, gpu.Extent2D{Width: width, Height: height})
}

func (i *Image2D) invalidate() {
	if i.view != nil {
		i.view.Destroy()
		i.view = nil
	}
	if i.image != nil && !i.swapchainTarget {
		i.alloc.DestroyImage(i.image)
	}
	i.image = nil
}

func (i *Image2D) Destroy() { i.invalidate() }

func (i *Image2D) Image() gpu.Image              { return i.image }
func (i *Image2D) View() gpu.ImageView           { return i.view }
func (i *Image2D) Extent() gpu.Extent2D          { return i.extent }
func (i *Image2D) Format() gpu.Format            { return i.format }
func (i *Image2D) Usage() gpu.ImageUsageFlags    { return i.usage }
func (i *Image2D) Samples() gpu.SampleCountFlags { return i.samples }
func (i *Image2D) MipLevels() uint32             { return i.mipLevels }
func (i *Image2D) LayerCount() uint32            { return i.layerCount }
func (i *Image2D) IsSwapchainTarget() bool       { return i.swapchainTarget }
func (i *Image2D) LazilyAllocated() bool         { return i.lazilyAllocated }

// ImageCube is a six layer cube-compatible image.
type ImageCube struct {
	alloc  *Allocator
	image  gpu.Image
	view   gpu.ImageView
	extent gpu.Extent2D
	format gpu.Format
}

// NewImageCube uploads six tightly packed faces (+X, -X, +Y, -Y, +Z, -Z).
func NewImageCube(ctx context.Context, a *Allocator, faces []byte, format gpu.Format, width, height uint32) (*ImageCube, error) {
	faceSize := uint64(width) * uint64(height) * uint64(format.BytesPerPixel())
	if uint64(len(faces)) < faceSize*6 {
		return nil, errors.Wrapf(core.ErrOutOfRange, "cube needs %d bytes, got %d", faceSize*6, len(faces))
	}
	c := &ImageCube{alloc: a, extent: gpu.Extent2D{Width: width, Height: height}, format: format}

	image, err := a.CreateImage(gpu.ImageInfo{
		Extent:      gpu.Extent3D{Width: width, Height: height, Depth: 1},
		Format:      format,
		MipLevels:   1,
		ArrayLayers: 6,
		Samples:     gpu.SampleCount1,
		Usage:       gpu.ImageUsageTransferDst | gpu.ImageUsageTransferSrc | gpu.ImageUsageSampled,
		Cube:        true,
	}, gpu.MemoryUsageGPUOnly)
	if err != nil {
		return nil, err
	}
	c.image = image

	view, err := a.device.GPU().CreateImageView(gpu.ImageViewInfo{
		Image:      image,
		Type:       gpu.ImageViewTypeCube,
		Format:     format,
		Aspect:     gpu.ImageAspectColor,
		MipCount:   1,
		LayerCount: 6,
	})
	if err != nil {
		a.device.reportError(gpu.ErrorInitializationFailed, "could not create cube imageview", false)
		c.Destroy()
		return nil, errors.Wrap(err, "create cube image view")
	}
	c.view = view
	core.LogInfo("created image views for ImageCube")

	staging, err := stage(a, faces[:faceSize*6])
	if err != nil {
		c.Destroy()
		return nil, err
	}
	defer a.DestroyBuffer(staging)

	cmd, err := a.cmds.CmdBuffer(ctx, QueueTransfer)
	if err != nil {
		c.Destroy()
		return nil, err
	}
	if err := cmd.Begin(true); err != nil {
		c.Destroy()
		return nil, errors.Wrap(err, "begin cube upload")
	}
	bufferToImage(cmd, image, staging, []gpu.BufferImageCopy{{
		LayerCount: 6,
		Extent:     gpu.Extent3D{Width: width, Height: height, Depth: 1},
	}}, gpu.ImageLayoutUndefined, gpu.ImageLayoutShaderReadOnlyOptimal, 1, 6)
	if err := cmd.End(); err != nil {
		c.Destroy()
		return nil, errors.Wrap(err, "end cube upload")
	}
	if err := a.cmds.Submit(cmd, true); err != nil {
		c.Destroy()
		return nil, err
	}
	return c, nil
}

func (c *ImageCube) Image() gpu.Image     { return c.image }
func (c *ImageCube) View() gpu.ImageView  { return c.view }
func (c *ImageCube) Extent() gpu.Extent2D { return c.extent }
func (c *ImageCube) Format() gpu.Format   { return c.format }

func (c *ImageCube) Destroy() {
	if c.view != nil {
		c.view.Destroy()
		c.view = nil
	}
	c.alloc.DestroyImage(c.image)
	c.image = nil
}
