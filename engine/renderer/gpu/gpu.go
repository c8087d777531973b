// Package gpu describes the explicit GPU object model the renderer is written
// against. Drivers (vulkan, software) implement these interfaces; enum values
// follow the Vulkan numbering.
package gpu

// WaitForever is the timeout used for unbounded waits.
const WaitForever = ^uint64(0)

type Destroyer interface {
	Destroy()
}

type Extent2D struct {
	Width, Height uint32
}

type Extent3D struct {
	Width, Height, Depth uint32
}

type Offset3D struct {
	X, Y, Z int32
}

type Rect2D struct {
	X, Y   int32
	Extent Extent2D
}

type Viewport struct {
	X, Y, Width, Height, MinDepth, MaxDepth float32
}

type Limits struct {
	MaxImageDimension2D             uint32
	MaxPushConstantsSize            uint32
	MinUniformBufferOffsetAlignment uint64
	MinStorageBufferOffsetAlignment uint64
	NonCoherentAtomSize             uint64
	MaxSamplerAnisotropy            float32
	MaxSamplerLodBias               float32
	LineWidthRange                  [2]float32
	FramebufferColorSampleCounts    SampleCountFlags
	FramebufferDepthSampleCounts    SampleCountFlags
}

type AdapterProperties struct {
	Name              string
	VendorID          uint32
	DeviceID          uint32
	DriverVersion     uint32
	APIVersion        uint32
	PipelineCacheUUID [16]byte
	Integrated        bool
	Limits            Limits
}

type AdapterFeatures struct {
	ShaderSampledImageArrayDynamicIndexing bool
	SamplerAnisotropy                      bool
	TextureCompressionASTC                 bool
	BufferDeviceAddress                    bool
	WideLines                              bool
	FillModeNonSolid                       bool
}

type QueueFamily struct {
	Flags QueueFlags
	Count uint32
}

type SurfaceCapabilities struct {
	MinImageCount           uint32
	MaxImageCount           uint32
	CurrentExtent           Extent2D
	MinImageExtent          Extent2D
	MaxImageExtent          Extent2D
	SupportedCompositeAlpha CompositeAlphaFlags
	CurrentTransform        SurfaceTransformFlags
	SupportedUsage          ImageUsageFlags
}

type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

type Surface interface {
	Destroyer
}

// Driver is the entry point of a backend.
type Driver interface {
	Name() string
	Adapters() ([]Adapter, error)
	// CreateSurface creates a presentable surface for a platform window.
	CreateSurface(window any) (Surface, error)
	RequiredInstanceExtensions() []string
	Terminate()
}

// Adapter is a physical device.
type Adapter interface {
	Properties() AdapterProperties
	Features() AdapterFeatures
	QueueFamilies() []QueueFamily
	SupportsLazyAllocation() bool
	// FormatFeatures returns the optimal tiling features of the format.
	FormatFeatures(f Format) FormatFeatureFlags
	SurfaceSupport(family uint32, s Surface) (bool, error)
	SurfaceCapabilities(s Surface) (SurfaceCapabilities, error)
	SurfaceFormats(s Surface) ([]SurfaceFormat, error)
	PresentModes(s Surface) ([]PresentMode, error)
	CreateDevice(info DeviceInfo) (Device, error)
}

type QueueRequest struct {
	Family uint32
	Count  uint32
}

type DeviceInfo struct {
	Queues     []QueueRequest
	Features   AdapterFeatures
	Extensions []string
}

// Device is a logical device.
type Device interface {
	Queue(family, index uint32) Queue
	CreateCommandPool(family uint32, transient bool) (CommandPool, error)
	CreateFence(signaled bool) (Fence, error)
	WaitForFences(fences []Fence, waitAll bool, timeout uint64) Result
	ResetFences(fences []Fence) error
	CreateSemaphore() (Semaphore, error)
	CreateBuffer(info BufferInfo, usage MemoryUsage) (Buffer, error)
	CreateImage(info ImageInfo, usage MemoryUsage) (Image, error)
	CreateImageView(info ImageViewInfo) (ImageView, error)
	CreateSampler(info SamplerInfo) (Sampler, error)
	CreateRenderPass(info RenderPassInfo) (RenderPass, error)
	CreateFramebuffer(info FramebufferInfo) (Framebuffer, error)
	CreateSwapchain(info SwapchainInfo) (Swapchain, error)
	CreatePipelineCache(initial []byte) (PipelineCache, error)
	CreateDescriptorSetLayout(bindings []DescriptorBinding) (DescriptorSetLayout, error)
	AllocateDescriptorSet(layout DescriptorSetLayout) (DescriptorSet, error)
	CreateGraphicsPipeline(info GraphicsPipelineInfo) (Pipeline, error)
	WaitIdle() error
	Destroyer
}

type SubmitInfo struct {
	WaitSemaphores   []Semaphore
	WaitStages       []PipelineStageFlags
	CommandBuffers   []CommandBuffer
	SignalSemaphores []Semaphore
}

type PresentInfo struct {
	WaitSemaphores []Semaphore
	Swapchain      Swapchain
	ImageIndex     uint32
}

// Queue submissions are not synchronized by the driver. Callers hold the
// queue's mutex around Submit and Present.
type Queue interface {
	Family() uint32
	Index() uint32
	Submit(submits []SubmitInfo, fence Fence) Result
	Present(info PresentInfo) Result
	WaitIdle() Result
}

type Fence interface {
	Destroyer
	// Status returns Success when signaled and NotReady otherwise.
	Status() Result
}

type Semaphore interface {
	Destroyer
}

type CommandPool interface {
	Destroyer
	Allocate() (CommandBuffer, error)
	// Reset returns every command buffer allocated from the pool to the
	// initial state.
	Reset() error
	Free(cmds []CommandBuffer)
}

type BufferCopy struct {
	SrcOffset, DstOffset, Size uint64
}

type BufferImageCopy struct {
	BufferOffset uint64
	MipLevel     uint32
	BaseLayer    uint32
	LayerCount   uint32
	Offset       Offset3D
	Extent       Extent3D
}

type ImageBarrier struct {
	Image      Image
	OldLayout  ImageLayout
	NewLayout  ImageLayout
	SrcAccess  AccessFlags
	DstAccess  AccessFlags
	Aspect     ImageAspectFlags
	BaseMip    uint32
	MipCount   uint32
	BaseLayer  uint32
	LayerCount uint32
}

type ImageBlit struct {
	SrcMip     uint32
	SrcOffsets [2]Offset3D
	DstMip     uint32
	DstOffsets [2]Offset3D
	BaseLayer  uint32
	LayerCount uint32
}

type ClearValue struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
}

type RenderPassBeginInfo struct {
	RenderPass  RenderPass
	Framebuffer Framebuffer
	Area        Rect2D
	ClearValues []ClearValue
}

type CommandBuffer interface {
	Begin(oneTimeSubmit bool) error
	End() error
	CopyBuffer(src, dst Buffer, regions []BufferCopy)
	CopyBufferToImage(src Buffer, dst Image, layout ImageLayout, regions []BufferImageCopy)
	PipelineBarrier(srcStage, dstStage PipelineStageFlags, flags DependencyFlags, barriers []ImageBarrier)
	BlitImage(src Image, srcLayout ImageLayout, dst Image, dstLayout ImageLayout, regions []ImageBlit, filter Filter)
	BeginRenderPass(info RenderPassBeginInfo)
	EndRenderPass()
	SetViewport(v Viewport)
	SetScissor(r Rect2D)
	BindPipeline(p Pipeline)
	BindDescriptorSet(p Pipeline, index uint32, set DescriptorSet, dynamicOffsets []uint32)
	BindVertexBuffer(binding uint32, b Buffer, offset uint64)
	BindIndexBuffer(b Buffer, offset uint64, t IndexType)
	PushConstants(p Pipeline, stages ShaderStageFlags, offset uint32, data []byte)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)
}

type BufferInfo struct {
	Size  uint64
	Usage BufferUsageFlags
}

type Buffer interface {
	Destroyer
	Size() uint64
	// AllocationSize is the size of the backing memory, which may exceed Size.
	AllocationSize() uint64
	// Map returns the host view of the buffer memory. It fails for memory
	// that is not host visible.
	Map() ([]byte, error)
	Unmap()
}

type ImageInfo struct {
	Extent      Extent3D
	Format      Format
	MipLevels   uint32
	ArrayLayers uint32
	Samples     SampleCountFlags
	Usage       ImageUsageFlags
	Cube        bool
}

type Image interface {
	Destroyer
	Info() ImageInfo
	AllocationSize() uint64
}

type ImageViewInfo struct {
	Image      Image
	Type       ImageViewType
	Format     Format
	Aspect     ImageAspectFlags
	BaseMip    uint32
	MipCount   uint32
	BaseLayer  uint32
	LayerCount uint32
}

type ImageView interface {
	Destroyer
	Image() Image
}

type SamplerInfo struct {
	MagFilter   Filter
	MinFilter   Filter
	AddressMode SamplerAddressMode
	// Anisotropy of 0 disables anisotropic filtering.
	Anisotropy float32
	MaxLod     float32
}

type Sampler interface {
	Destroyer
}

type AttachmentDescription struct {
	Format        Format
	Samples       SampleCountFlags
	LoadOp        AttachmentLoadOp
	StoreOp       AttachmentStoreOp
	InitialLayout ImageLayout
	FinalLayout   ImageLayout
}

type SubpassDependency struct {
	SrcSubpass uint32
	DstSubpass uint32
	SrcStage   PipelineStageFlags
	DstStage   PipelineStageFlags
	SrcAccess  AccessFlags
	DstAccess  AccessFlags
	Flags      DependencyFlags
}

// RenderPassInfo describes a single subpass render pass. Depth formats are
// bound as the depth attachment, everything else as colour.
type RenderPassInfo struct {
	Attachments  []AttachmentDescription
	Dependencies []SubpassDependency
}

type RenderPass interface {
	Destroyer
	Info() RenderPassInfo
}

type FramebufferInfo struct {
	RenderPass  RenderPass
	Attachments []ImageView
	Extent      Extent2D
}

type Framebuffer interface {
	Destroyer
}

type SwapchainInfo struct {
	Surface        Surface
	MinImageCount  uint32
	Format         Format
	ColorSpace     ColorSpace
	Extent         Extent2D
	Usage          ImageUsageFlags
	Transform      SurfaceTransformFlags
	CompositeAlpha CompositeAlphaFlags
	PresentMode    PresentMode
	Clipped        bool
	OldSwapchain   Swapchain
}

type Swapchain interface {
	Destroyer
	// Images are owned by the swapchain and must not be destroyed.
	Images() ([]Image, error)
	AcquireNextImage(timeout uint64, sem Semaphore, fence Fence) (uint32, Result)
}

type PipelineCache interface {
	Destroyer
	// Data returns the native cache blob, starting with the 32 byte header.
	Data() ([]byte, error)
}

type DescriptorBinding struct {
	Binding uint32
	Type    DescriptorType
	Count   uint32
	Stages  ShaderStageFlags
}

type DescriptorSetLayout interface {
	Destroyer
}

type DescriptorSet interface {
	Destroyer
	WriteBuffer(binding uint32, t DescriptorType, b Buffer, offset, size uint64)
	WriteImage(binding, arrayElement uint32, view ImageView, sampler Sampler, layout ImageLayout)
}

type VertexBinding struct {
	Binding   uint32
	Stride    uint32
	InputRate VertexInputRate
}

type VertexAttribute struct {
	Location uint32
	Binding  uint32
	Format   Format
	Offset   uint32
}

type GraphicsPipelineInfo struct {
	Name               string
	RenderPass         RenderPass
	Subpass            uint32
	VertexShader       []byte
	FragmentShader     []byte
	VertexBindings     []VertexBinding
	VertexAttributes   []VertexAttribute
	Topology           PrimitiveTopology
	CullMode           CullMode
	FrontFace          FrontFace
	Samples            SampleCountFlags
	DepthTest          bool
	DepthWrite         bool
	Blend              bool
	LineWidth          float32
	SetLayouts         []DescriptorSetLayout
	PushConstantSize   uint32
	PushConstantStages ShaderStageFlags
	Cache              PipelineCache
}

type Pipeline interface {
	Destroyer
}
