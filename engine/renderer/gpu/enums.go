package gpu

// Format values match VkFormat so a Vulkan backend can convert with a cast.
type Format uint32

const (
	FormatUndefined            Format = 0
	FormatR8G8B8A8Unorm        Format = 37
	FormatR8G8B8A8Srgb         Format = 43
	FormatB8G8R8A8Unorm        Format = 44
	FormatB8G8R8A8Srgb         Format = 50
	FormatR16G16B16A16Sfloat   Format = 97
	FormatR32G32Sfloat         Format = 103
	FormatR32G32B32Sfloat      Format = 106
	FormatR32G32B32A32Sfloat   Format = 109
	FormatD16Unorm             Format = 124
	FormatD32Sfloat            Format = 126
	FormatD16UnormS8Uint       Format = 128
	FormatD24UnormS8Uint       Format = 129
	FormatD32SfloatS8Uint      Format = 130
	FormatASTC4x4UnormBlock    Format = 157
	FormatASTC4x4SrgbBlock     Format = 158
	FormatBC7UnormBlock        Format = 145
	FormatBC7SrgbBlock         Format = 146
	FormatR8Unorm              Format = 9
	FormatR32Uint              Format = 98
	FormatA2B10G10R10UnormPack Format = 64
)

var formatNames = map[Format]string{
	FormatUndefined:            "UNDEFINED",
	FormatR8G8B8A8Unorm:        "R8G8B8A8_UNORM",
	FormatR8G8B8A8Srgb:         "R8G8B8A8_SRGB",
	FormatB8G8R8A8Unorm:        "B8G8R8A8_UNORM",
	FormatB8G8R8A8Srgb:         "B8G8R8A8_SRGB",
	FormatR16G16B16A16Sfloat:   "R16G16B16A16_SFLOAT",
	FormatR32G32Sfloat:         "R32G32_SFLOAT",
	FormatR32G32B32Sfloat:      "R32G32B32_SFLOAT",
	FormatR32G32B32A32Sfloat:   "R32G32B32A32_SFLOAT",
	FormatD16Unorm:             "D16_UNORM",
	FormatD32Sfloat:            "D32_SFLOAT",
	FormatD16UnormS8Uint:       "D16_UNORM_S8_UINT",
	FormatD24UnormS8Uint:       "D24_UNORM_S8_UINT",
	FormatD32SfloatS8Uint:      "D32_SFLOAT_S8_UINT",
	FormatASTC4x4UnormBlock:    "ASTC_4x4_UNORM_BLOCK",
	FormatASTC4x4SrgbBlock:     "ASTC_4x4_SRGB_BLOCK",
	FormatBC7UnormBlock:        "BC7_UNORM_BLOCK",
	FormatBC7SrgbBlock:         "BC7_SRGB_BLOCK",
	FormatR8Unorm:              "R8_UNORM",
	FormatR32Uint:              "R32_UINT",
	FormatA2B10G10R10UnormPack: "A2B10G10R10_UNORM_PACK32",
}

func (f Format) String() string {
	if n, ok := formatNames[f]; ok {
		return n
	}
	return "FORMAT_UNKNOWN"
}

// IsDepth reports whether the format has a depth aspect.
func (f Format) IsDepth() bool {
	switch f {
	case FormatD16Unorm, FormatD32Sfloat, FormatD16UnormS8Uint, FormatD24UnormS8Uint, FormatD32SfloatS8Uint:
		return true
	}
	return false
}

// HasStencil reports whether the format has a stencil aspect.
func (f Format) HasStencil() bool {
	switch f {
	case FormatD16UnormS8Uint, FormatD24UnormS8Uint, FormatD32SfloatS8Uint:
		return true
	}
	return false
}

// IsCompressed reports whether the format is a block compressed format.
func (f Format) IsCompressed() bool {
	switch f {
	case FormatASTC4x4UnormBlock, FormatASTC4x4SrgbBlock, FormatBC7UnormBlock, FormatBC7SrgbBlock:
		return true
	}
	return false
}

// BytesPerPixel returns the texel size of uncompressed formats. Block
// compressed formats return the size of one 4x4 block.
func (f Format) BytesPerPixel() uint32 {
	switch f {
	case FormatR8Unorm:
		return 1
	case FormatD16Unorm:
		return 2
	case FormatD16UnormS8Uint:
		return 3
	case FormatR8G8B8A8Unorm, FormatR8G8B8A8Srgb, FormatB8G8R8A8Unorm, FormatB8G8R8A8Srgb,
		FormatD32Sfloat, FormatD24UnormS8Uint, FormatR32Uint, FormatA2B10G10R10UnormPack:
		return 4
	case FormatD32SfloatS8Uint:
		return 5
	case FormatR16G16B16A16Sfloat, FormatR32G32Sfloat:
		return 8
	case FormatR32G32B32Sfloat:
		return 12
	case FormatR32G32B32A32Sfloat, FormatASTC4x4UnormBlock, FormatASTC4x4SrgbBlock, FormatBC7UnormBlock, FormatBC7SrgbBlock:
		return 16
	}
	return 4
}

type FormatFeatureFlags uint32

const (
	FormatFeatureSampledImage             FormatFeatureFlags = 0x00000001
	FormatFeatureStorageImage             FormatFeatureFlags = 0x00000002
	FormatFeatureVertexBuffer             FormatFeatureFlags = 0x00000040
	FormatFeatureColorAttachment          FormatFeatureFlags = 0x00000080
	FormatFeatureColorAttachmentBlend     FormatFeatureFlags = 0x00000100
	FormatFeatureDepthStencilAttachment   FormatFeatureFlags = 0x00000200
	FormatFeatureBlitSrc                  FormatFeatureFlags = 0x00000400
	FormatFeatureBlitDst                  FormatFeatureFlags = 0x00000800
	FormatFeatureSampledImageFilterLinear FormatFeatureFlags = 0x00001000
	FormatFeatureTransferSrc              FormatFeatureFlags = 0x00004000
	FormatFeatureTransferDst              FormatFeatureFlags = 0x00008000
)

// Has reports whether every bit of want is present.
func (f FormatFeatureFlags) Has(want FormatFeatureFlags) bool {
	return f&want == want
}

type ColorSpace uint32

const (
	ColorSpaceSrgbNonlinear      ColorSpace = 0
	ColorSpaceExtendedSrgbLinear ColorSpace = 1000104002
	ColorSpaceHDR10ST2084        ColorSpace = 1000104008
	ColorSpaceDisplayP3Nonlinear ColorSpace = 1000104001
)

type PresentMode uint32

const (
	PresentModeImmediate   PresentMode = 0
	PresentModeMailbox     PresentMode = 1
	PresentModeFifo        PresentMode = 2
	PresentModeFifoRelaxed PresentMode = 3
)

func (p PresentMode) String() string {
	switch p {
	case PresentModeImmediate:
		return "IMMEDIATE"
	case PresentModeMailbox:
		return "MAILBOX"
	case PresentModeFifo:
		return "FIFO"
	case PresentModeFifoRelaxed:
		return "FIFO_RELAXED"
	}
	return "UNKNOWN"
}

type CompositeAlphaFlags uint32

const (
	CompositeAlphaOpaque         CompositeAlphaFlags = 0x1
	CompositeAlphaPreMultiplied  CompositeAlphaFlags = 0x2
	CompositeAlphaPostMultiplied CompositeAlphaFlags = 0x4
	CompositeAlphaInherit        CompositeAlphaFlags = 0x8
)

type SurfaceTransformFlags uint32

const (
	SurfaceTransformIdentity  SurfaceTransformFlags = 0x1
	SurfaceTransformRotate90  SurfaceTransformFlags = 0x2
	SurfaceTransformRotate180 SurfaceTransformFlags = 0x4
	SurfaceTransformRotate270 SurfaceTransformFlags = 0x8
)

type QueueFlags uint32

const (
	QueueGraphics QueueFlags = 0x1
	QueueCompute  QueueFlags = 0x2
	QueueTransfer QueueFlags = 0x4
)

type SampleCountFlags uint32

const (
	SampleCount1  SampleCountFlags = 0x01
	SampleCount2  SampleCountFlags = 0x02
	SampleCount4  SampleCountFlags = 0x04
	SampleCount8  SampleCountFlags = 0x08
	SampleCount16 SampleCountFlags = 0x10
	SampleCount32 SampleCountFlags = 0x20
	SampleCount64 SampleCountFlags = 0x40
)

// MemoryUsage is the allocation hint handed to the pooled allocator.
type MemoryUsage uint32

const (
	MemoryUsageUnknown MemoryUsage = iota
	MemoryUsageGPUOnly
	MemoryUsageCPUOnly
	MemoryUsageCPUToGPU
	MemoryUsageGPUToCPU
	MemoryUsageGPULazilyAllocated
)

func (m MemoryUsage) String() string {
	switch m {
	case MemoryUsageGPUOnly:
		return "gpu-only"
	case MemoryUsageCPUOnly:
		return "cpu-only"
	case MemoryUsageCPUToGPU:
		return "cpu-to-gpu"
	case MemoryUsageGPUToCPU:
		return "gpu-to-cpu"
	case MemoryUsageGPULazilyAllocated:
		return "gpu-lazily-allocated"
	}
	return "unknown"
}

// HostVisible reports whether allocations with this hint can be mapped.
func (m MemoryUsage) HostVisible() bool {
	return m == MemoryUsageCPUOnly || m == MemoryUsageCPUToGPU || m == MemoryUsageGPUToCPU
}

type BufferUsageFlags uint32

const (
	BufferUsageTransferSrc         BufferUsageFlags = 0x00000001
	BufferUsageTransferDst         BufferUsageFlags = 0x00000002
	BufferUsageUniformBuffer       BufferUsageFlags = 0x00000010
	BufferUsageStorageBuffer       BufferUsageFlags = 0x00000020
	BufferUsageIndexBuffer         BufferUsageFlags = 0x00000040
	BufferUsageVertexBuffer        BufferUsageFlags = 0x00000080
	BufferUsageShaderDeviceAddress BufferUsageFlags = 0x00020000
)

type ImageUsageFlags uint32

const (
	ImageUsageTransferSrc            ImageUsageFlags = 0x00000001
	ImageUsageTransferDst            ImageUsageFlags = 0x00000002
	ImageUsageSampled                ImageUsageFlags = 0x00000004
	ImageUsageStorage                ImageUsageFlags = 0x00000008
	ImageUsageColorAttachment        ImageUsageFlags = 0x00000010
	ImageUsageDepthStencilAttachment ImageUsageFlags = 0x00000020
	ImageUsageTransientAttachment    ImageUsageFlags = 0x00000040
	ImageUsageInputAttachment        ImageUsageFlags = 0x00000080
)

type ImageLayout uint32

const (
	ImageLayoutUndefined                     ImageLayout = 0
	ImageLayoutGeneral                       ImageLayout = 1
	ImageLayoutColorAttachmentOptimal        ImageLayout = 2
	ImageLayoutDepthStencilAttachmentOptimal ImageLayout = 3
	ImageLayoutDepthStencilReadOnlyOptimal   ImageLayout = 4
	ImageLayoutShaderReadOnlyOptimal         ImageLayout = 5
	ImageLayoutTransferSrcOptimal            ImageLayout = 6
	ImageLayoutTransferDstOptimal            ImageLayout = 7
	ImageLayoutPresentSrc                    ImageLayout = 1000001002
)

type AccessFlags uint32

const (
	AccessNone                        AccessFlags = 0
	AccessIndexRead                   AccessFlags = 0x00000002
	AccessVertexAttributeRead         AccessFlags = 0x00000004
	AccessUniformRead                 AccessFlags = 0x00000008
	AccessInputAttachmentRead         AccessFlags = 0x00000010
	AccessShaderRead                  AccessFlags = 0x00000020
	AccessShaderWrite                 AccessFlags = 0x00000040
	AccessColorAttachmentRead         AccessFlags = 0x00000080
	AccessColorAttachmentWrite        AccessFlags = 0x00000100
	AccessDepthStencilAttachmentRead  AccessFlags = 0x00000200
	AccessDepthStencilAttachmentWrite AccessFlags = 0x00000400
	AccessTransferRead                AccessFlags = 0x00000800
	AccessTransferWrite               AccessFlags = 0x00001000
	AccessMemoryRead                  AccessFlags = 0x00008000
	AccessMemoryWrite                 AccessFlags = 0x00010000
)

// AccessForLayout returns the access mask that matches a destination layout.
func AccessForLayout(layout ImageLayout) AccessFlags {
	switch layout {
	case ImageLayoutTransferDstOptimal:
		return AccessTransferWrite
	case ImageLayoutTransferSrcOptimal:
		return AccessTransferRead
	case ImageLayoutColorAttachmentOptimal:
		return AccessColorAttachmentWrite
	case ImageLayoutDepthStencilAttachmentOptimal:
		return AccessDepthStencilAttachmentWrite
	case ImageLayoutShaderReadOnlyOptimal, ImageLayoutDepthStencilReadOnlyOptimal:
		return AccessShaderRead
	case ImageLayoutGeneral:
		return AccessShaderRead | AccessShaderWrite
	case ImageLayoutPresentSrc:
		return AccessMemoryRead
	}
	return AccessNone
}

type PipelineStageFlags uint32

const (
	PipelineStageTopOfPipe             PipelineStageFlags = 0x00000001
	PipelineStageVertexInput           PipelineStageFlags = 0x00000004
	PipelineStageVertexShader          PipelineStageFlags = 0x00000008
	PipelineStageFragmentShader        PipelineStageFlags = 0x00000080
	PipelineStageEarlyFragmentTests    PipelineStageFlags = 0x00000100
	PipelineStageLateFragmentTests     PipelineStageFlags = 0x00000200
	PipelineStageColorAttachmentOutput PipelineStageFlags = 0x00000400
	PipelineStageComputeShader         PipelineStageFlags = 0x00000800
	PipelineStageTransfer              PipelineStageFlags = 0x00001000
	PipelineStageBottomOfPipe          PipelineStageFlags = 0x00002000
	PipelineStageAllCommands           PipelineStageFlags = 0x00010000
)

type DependencyFlags uint32

const DependencyByRegion DependencyFlags = 0x1

// SubpassExternal refers to commands outside the render pass.
const SubpassExternal = ^uint32(0)

type ImageAspectFlags uint32

const (
	ImageAspectColor   ImageAspectFlags = 0x1
	ImageAspectDepth   ImageAspectFlags = 0x2
	ImageAspectStencil ImageAspectFlags = 0x4
)

// AspectForFormat returns the aspect mask a view of the format should use.
func AspectForFormat(f Format) ImageAspectFlags {
	if f.IsDepth() {
		if f.HasStencil() {
			return ImageAspectDepth | ImageAspectStencil
		}
		return ImageAspectDepth
	}
	return ImageAspectColor
}

type ImageViewType uint32

const (
	ImageViewType2D      ImageViewType = 1
	ImageViewTypeCube    ImageViewType = 3
	ImageViewType2DArray ImageViewType = 5
)

type AttachmentLoadOp uint32

const (
	AttachmentLoadOpLoad     AttachmentLoadOp = 0
	AttachmentLoadOpClear    AttachmentLoadOp = 1
	AttachmentLoadOpDontCare AttachmentLoadOp = 2
)

type AttachmentStoreOp uint32

const (
	AttachmentStoreOpStore    AttachmentStoreOp = 0
	AttachmentStoreOpDontCare AttachmentStoreOp = 1
)

type Filter uint32

const (
	FilterNearest Filter = 0
	FilterLinear  Filter = 1
)

type SamplerAddressMode uint32

const (
	SamplerAddressModeRepeat         SamplerAddressMode = 0
	SamplerAddressModeMirroredRepeat SamplerAddressMode = 1
	SamplerAddressModeClampToEdge    SamplerAddressMode = 2
)

type IndexType uint32

const (
	IndexTypeUint16 IndexType = 0
	IndexTypeUint32 IndexType = 1
)

type ShaderStageFlags uint32

const (
	ShaderStageVertex   ShaderStageFlags = 0x01
	ShaderStageFragment ShaderStageFlags = 0x10
	ShaderStageCompute  ShaderStageFlags = 0x20
)

type PrimitiveTopology uint32

const (
	PrimitiveTopologyPointList    PrimitiveTopology = 0
	PrimitiveTopologyLineList     PrimitiveTopology = 1
	PrimitiveTopologyTriangleList PrimitiveTopology = 3
)

type CullMode uint32

const (
	CullModeNone  CullMode = 0
	CullModeFront CullMode = 1
	CullModeBack  CullMode = 2
)

type FrontFace uint32

const (
	FrontFaceCounterClockwise FrontFace = 0
	FrontFaceClockwise        FrontFace = 1
)

type VertexInputRate uint32

const (
	VertexInputRateVertex   VertexInputRate = 0
	VertexInputRateInstance VertexInputRate = 1
)

type DescriptorType uint32

const (
	DescriptorTypeSampler              DescriptorType = 0
	DescriptorTypeCombinedImageSampler DescriptorType = 1
	DescriptorTypeSampledImage         DescriptorType = 2
	DescriptorTypeStorageImage         DescriptorType = 3
	DescriptorTypeUniformBuffer        DescriptorType = 6
	DescriptorTypeStorageBuffer        DescriptorType = 7
)
