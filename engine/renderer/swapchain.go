package renderer

import (
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/spaghettifunk/gensou/engine/core"
	emath "github.com/spaghettifunk/gensou/engine/math"
	"github.com/spaghettifunk/gensou/engine/renderer/gpu"
)

type SwapchainState int32

const (
	SwapchainUninitialized SwapchainState = iota
	SwapchainSurfaceCreated
	SwapchainReady
	SwapchainPresenting
	SwapchainOutOfDate
	SwapchainRecreating
	SwapchainTerminated
)

func (s SwapchainState) String() string {
	switch s {
	case SwapchainSurfaceCreated:
		return "surface-created"
	case SwapchainReady:
		return "ready"
	case SwapchainPresenting:
		return "presenting"
	case SwapchainOutOfDate:
		return "out-of-date"
	case SwapchainRecreating:
		return "recreating"
	case SwapchainTerminated:
		return "terminated"
	}
	return "uninitialized"
}

// SwapchainProperties are the caller's wishes for a surface. They are
// negotiated against what the surface supports.
type SwapchainProperties struct {
	Extent                gpu.Extent2D
	VSync                 bool
	PreferMailbox         bool
	Transform             gpu.SurfaceTransformFlags
	DesiredFormat         gpu.Format
	DesiredCompositeAlpha gpu.CompositeAlphaFlags
}

func DefaultSwapchainProperties(extent gpu.Extent2D) SwapchainProperties {
	return SwapchainProperties{
		Extent:                extent,
		VSync:                 true,
		Transform:             gpu.SurfaceTransformIdentity,
		DesiredFormat:         gpu.FormatB8G8R8A8Srgb,
		DesiredCompositeAlpha: gpu.CompositeAlphaOpaque,
	}
}

// resizableWindow is implemented by windows the swapchain can push its
// negotiated extent back to.
type resizableWindow interface {
	Size() (uint32, uint32)
	Resize(width, height uint32)
}

// Swapchain owns the surface, the presentable images, the screen render pass
// with one framebuffer per image, and the pipeline that draws the final
// image to the screen.
type Swapchain struct {
	driver  gpu.Driver
	device  *Device
	alloc   *Allocator
	cmds    *CommandManager
	frames  *FrameCounter
	shaders ShaderSource

	state atomic.Int32

	window    any
	surface   gpu.Surface
	swapchain gpu.Swapchain

	extent         gpu.Extent2D
	vsync          bool
	transform      gpu.SurfaceTransformFlags
	compositeAlpha gpu.CompositeAlphaFlags
	vsyncMode      gpu.PresentMode
	nonVSyncMode   gpu.PresentMode
	surfaceFormat  gpu.SurfaceFormat

	images       []*Image2D
	framebuffers []gpu.Framebuffer
	renderPass   gpu.RenderPass
	clearColor   [4]float32

	screenLayout   gpu.DescriptorSetLayout
	screenPipeline gpu.Pipeline
	pipelineCache  gpu.PipelineCache

	imageAcquired  gpu.Semaphore
	renderComplete gpu.Semaphore
	imageIndex     uint32

	waitRender func() error
}

// NewSwapchain prepares an uninitialized swapchain. CreateSurface and Create
// must follow before the first frame.
func NewSwapchain(driver gpu.Driver, alloc *Allocator, shaders ShaderSource) (*Swapchain, error) {
	if shaders == nil {
		shaders = NoShaders{}
	}
	cmds := alloc.Commands()
	s := &Swapchain{
		driver:     driver,
		device:     alloc.Device(),
		alloc:      alloc,
		cmds:       cmds,
		frames:     cmds.Frames(),
		shaders:    shaders,
		clearColor: [4]float32{0, 0, 0, 1},
		vsync:      true,
	}
	s.waitRender = cmds.WaitAllRenderCmds
	return s, nil
}

func (s *Swapchain) State() SwapchainState { return SwapchainState(s.state.Load()) }

func (s *Swapchain) setState(st SwapchainState) { s.state.Store(int32(st)) }

// SetRenderWait replaces how WaitForCmds drains in-flight render work. The
// default waits on every render pool's fences. WaitForCmds also runs on the
// render thread, so fn must not wait for that thread.
func (s *Swapchain) SetRenderWait(fn func() error) {
	if fn != nil {
		s.waitRender = fn
	}
}

// SetPipelineCache makes the screen pipeline compile against cache.
func (s *Swapchain) SetPipelineCache(cache gpu.PipelineCache) { s.pipelineCache = cache }

// CreateSurface (re)creates the surface for window and negotiates how to
// present to it. The render pass and screen pipeline are only rebuilt when
// the surface format changed.
func (s *Swapchain) CreateSurface(window any, props SwapchainProperties) error {
	if err := s.WaitForCmds(); err != nil {
		return err
	}
	s.destroyFramebuffers()

	// the swapchain depends on the surface
	if s.swapchain != nil {
		s.swapchain.Destroy()
		s.swapchain = nil
	}
	if s.surface != nil {
		s.surface.Destroy()
		s.surface = nil
	}

	surface, err := s.driver.CreateSurface(window)
	if err != nil {
		s.device.reportError(gpu.ErrorInitializationFailed, "could not create surface", true)
		return core.Fatal(errors.Wrap(err, "create surface"))
	}
	s.surface, s.window = surface, window
	s.extent = props.Extent
	s.vsync = props.VSync
	s.transform = props.Transform
	if s.transform == 0 {
		s.transform = gpu.SurfaceTransformIdentity
	}

	adapter := s.device.Adapter()
	supported, err := adapter.SurfaceSupport(s.device.QueueFamily(QueueGraphics), surface)
	if err != nil || !supported {
		core.LogError("this device's driver does not have surface support, impossible to present")
		return core.Fatal(errors.Wrap(core.ErrNoPresentQueue, "graphics family cannot present"))
	}
	core.LogDebug("device has surface support")
	if err := s.device.SelectPresentQueue(surface); err != nil {
		return err
	}

	caps, err := adapter.SurfaceCapabilities(surface)
	if err != nil {
		return core.Fatal(errors.Wrap(err, "query surface capabilities"))
	}
	s.compositeAlpha = negotiateCompositeAlpha(caps.SupportedCompositeAlpha, props.DesiredCompositeAlpha)

	modes, err := adapter.PresentModes(surface)
	if err != nil {
		return core.Fatal(errors.Wrap(err, "query present modes"))
	}
	s.vsyncMode, s.nonVSyncMode = negotiatePresentModes(modes, props.PreferMailbox)
	if s.nonVSyncMode == gpu.PresentModeFifo {
		core.LogInfo("this device does not support a non-vsync present mode")
	}
	if !s.vsync && !s.SupportsNonVSyncMode() {
		s.vsync = true
		core.LogWarn("non vsync mode asked but not supported")
	}

	formats, err := adapter.SurfaceFormats(surface)
	if err != nil {
		return core.Fatal(errors.Wrap(err, "query surface formats"))
	}
	selected, ok := negotiateSurfaceFormat(formats, props.DesiredFormat)
	if !ok {
		core.LogError("this device does not offer a suitable surface format for the swapchain images")
		return core.Fatal(core.ErrNoSurfaceFormat)
	}
	recreate := selected != s.surfaceFormat
	s.surfaceFormat = selected

	if s.renderPass == nil || recreate {
		if err := s.createRenderPass(); err != nil {
			return err
		}
		s.destroyScreenPipeline()
	}
	if s.screenPipeline == nil {
		if err := s.createScreenPipeline(); err != nil {
			return err
		}
	}

	s.setState(SwapchainSurfaceCreated)
	core.LogInfo("surface created with format %s, present modes %s/%s", selected.Format, s.vsyncMode, s.nonVSyncMode)
	return nil
}

func negotiateCompositeAlpha(supported, desired gpu.CompositeAlphaFlags) gpu.CompositeAlphaFlags {
	switch {
	case desired != 0 && supported&desired == desired:
		return desired
	case supported&gpu.CompositeAlphaOpaque != 0:
		core.LogDebug("using opaque composite alpha")
		return gpu.CompositeAlphaOpaque
	}
	core.LogDebug("using inherited composite alpha")
	return gpu.CompositeAlphaInherit
}

// negotiatePresentModes returns the vsync and the non-vsync mode. FIFO is
// always available; a non-vsync result of FIFO means none exists.
func negotiatePresentModes(modes []gpu.PresentMode, preferMailbox bool) (vsync, nonVSync gpu.PresentMode) {
	vsync, nonVSync = gpu.PresentModeFifo, gpu.PresentModeFifo
	for _, m := range modes {
		switch m {
		case gpu.PresentModeMailbox:
			if preferMailbox {
				vsync = gpu.PresentModeMailbox
			}
		case gpu.PresentModeImmediate:
			nonVSync = gpu.PresentModeImmediate
		case gpu.PresentModeFifoRelaxed:
			if nonVSync != gpu.PresentModeImmediate {
				nonVSync = gpu.PresentModeFifoRelaxed
			}
		}
	}
	return vsync, nonVSync
}

// negotiateSurfaceFormat prefers the desired format in the sRGB non-linear
// colour space, then R8G8B8A8_SRGB, then B8G8R8A8_SRGB.
func negotiateSurfaceFormat(formats []gpu.SurfaceFormat, desired gpu.Format) (gpu.SurfaceFormat, bool) {
	priority := func(f gpu.SurfaceFormat) int {
		if f.ColorSpace != gpu.ColorSpaceSrgbNonlinear {
			return 0
		}
		switch f.Format {
		case desired:
			return 3
		case gpu.FormatR8G8B8A8Srgb:
			return 2
		case gpu.FormatB8G8R8A8Srgb:
			return 1
		}
		return 0
	}
	var best gpu.SurfaceFormat
	bestPriority := 0
	for _, f := range formats {
		if p := priority(f); p > bestPriority {
			best, bestPriority = f, p
		}
	}
	return best, bestPriority > 0
}

// SwapchainImageCount is the number of images requested for a surface:
// frames in flight clamped to [minImageCount, maxImageCount], where a
// maxImageCount of 0 is unlimited.
func SwapchainImageCount(framesInFlight uint32, caps gpu.SurfaceCapabilities) uint32 {
	count := framesInFlight
	if caps.MaxImageCount > 0 {
		count = min(count, caps.MaxImageCount)
	}
	return max(count, caps.MinImageCount)
}

// Create builds the swapchain for the surface, passing the previous one so
// in-flight presents can drain, then recreates the present semaphores and
// framebuffers.
func (s *Swapchain) Create(extent gpu.Extent2D, vsync bool) error {
	if s.surface == nil {
		return errors.New("swapchain created before its surface")
	}
	s.setState(SwapchainRecreating)

	s.vsync = vsync
	if !s.vsync && !s.SupportsNonVSyncMode() {
		s.vsync = true
		core.LogWarn("non vsync mode asked but not supported")
	}

	caps, err := s.device.Adapter().SurfaceCapabilities(s.surface)
	if err != nil {
		return core.Fatal(errors.Wrap(err, "query surface capabilities"))
	}

	count := SwapchainImageCount(s.frames.Count(), caps)
	if count < 2 {
		core.LogError("this device's driver supports only %d swapchain image, at least 2 are required", count)
		return core.Fatal(core.ErrTooFewSwapchainImages)
	}
	if count < 3 {
		core.LogWarn("swapchain can not hold 3 or more images, triple-buffering not possible with this device")
	}
	if count != s.frames.Count() {
		s.frames.SetCount(count)
		if err := s.cmds.EnsureRenderPools(count); err != nil {
			return err
		}
	}

	if caps.CurrentExtent.Width == ^uint32(0) {
		s.extent = gpu.Extent2D{
			Width:  emath.Clamp(extent.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
			Height: emath.Clamp(extent.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
		}
	} else {
		s.extent = caps.CurrentExtent
	}

	mode := s.nonVSyncMode
	if s.vsync {
		mode = s.vsyncMode
	}
	old := s.swapchain
	sc, err := s.device.GPU().CreateSwapchain(gpu.SwapchainInfo{
		Surface:        s.surface,
		MinImageCount:  count,
		Format:         s.surfaceFormat.Format,
		ColorSpace:     s.surfaceFormat.ColorSpace,
		Extent:         s.extent,
		Usage:          gpu.ImageUsageColorAttachment,
		Transform:      s.transform,
		CompositeAlpha: s.compositeAlpha,
		PresentMode:    mode,
		Clipped:        true,
		OldSwapchain:   old,
	})
	if err != nil {
		s.device.reportError(gpu.ErrorInitializationFailed, "could not create swapchain", true)
		return core.Fatal(errors.Wrap(err, "create swapchain"))
	}
	s.swapchain = sc
	core.LogDebug("created swapchain %dx%d with %d images (%s)", s.extent.Width, s.extent.Height, count, mode)
	if old != nil {
		old.Destroy()
	}
	// a failed present can leave image-acquired signaled with no waiter
	if err := s.createSemaphores(); err != nil {
		return err
	}

	if err := s.createFramebuffers(); err != nil {
		return err
	}

	if w, ok := s.window.(resizableWindow); ok {
		if ww, wh := w.Size(); ww != s.extent.Width || wh != s.extent.Height {
			w.Resize(s.extent.Width, s.extent.Height)
		}
	}
	s.setState(SwapchainReady)
	return nil
}

// WaitForCmds drains render work and resets the general and render pools.
func (s *Swapchain) WaitForCmds() error {
	if err := s.waitRender(); err != nil {
		return err
	}
	if err := s.cmds.ResetGeneralPools(); err != nil {
		return err
	}
	return s.cmds.ResetAllRenderPools()
}

// AcquireNextImage blocks until an image is available and remembers its
// index. An out-of-date swapchain is recreated and reported as
// ErrSwapchainOutOfDate.
func (s *Swapchain) AcquireNextImage(fence gpu.Fence) (uint32, error) {
	idx, r := s.swapchain.AcquireNextImage(gpu.WaitForever, s.imageAcquired, fence)
	switch r {
	case gpu.Success, gpu.Suboptimal:
		s.imageIndex = idx
		return idx, nil
	case gpu.ErrorOutOfDate:
		s.setState(SwapchainOutOfDate)
		core.LogWarn("swapchain out of date on acquire")
		if err := s.recover(); err != nil {
			return 0, err
		}
		return 0, core.ErrSwapchainOutOfDate
	}
	return 0, s.device.check(r, "acquire next swapchain image")
}

// Present submits everything recorded into the frame's render pool, waiting
// for the acquired image and signalling render completion, then presents the
// image. On success the frame counter advances and the next frame's pool is
// reset, which blocks until the GPU is done with it.
func (s *Swapchain) Present(frame uint32) error {
	s.setState(SwapchainPresenting)

	pool := s.cmds.RenderPool(frame)
	info, fence, err := pool.prepareSubmit(pool.RecordedCmds(), []gpu.Semaphore{s.imageAcquired}, []gpu.Semaphore{s.renderComplete})
	if err != nil {
		s.setState(SwapchainReady)
		return err
	}

	present := gpu.PresentInfo{
		WaitSemaphores: []gpu.Semaphore{s.renderComplete},
		Swapchain:      s.swapchain,
		ImageIndex:     s.imageIndex,
	}
	presentMu := s.device.QueueMutex(QueuePresent)

	pool.QueueMutex().Lock()
	if r := pool.Queue().Submit([]gpu.SubmitInfo{info}, fence); r != gpu.Success {
		pool.QueueMutex().Unlock()
		pool.dropLastFence()
		s.setState(SwapchainReady)
		return s.device.check(r, "submit frame")
	}
	if presentMu != pool.QueueMutex() {
		presentMu.Lock()
	}
	result := s.device.Queue(QueuePresent).Present(present)
	if presentMu != pool.QueueMutex() {
		presentMu.Unlock()
	}
	pool.QueueMutex().Unlock()

	if result != gpu.Success {
		core.LogWarn("swapchain present result was '%s'", result)
		if err := s.cmds.ResetGeneralPools(); err != nil {
			return err
		}
		if err := s.cmds.ResetAllRenderPools(); err != nil {
			return err
		}
		if result == gpu.ErrorOutOfDate {
			s.setState(SwapchainOutOfDate)
			core.LogWarn("swapchain out of date")
			if err := s.Create(s.extent, s.vsync); err != nil {
				return err
			}
			return core.ErrSwapchainOutOfDate
		}
		s.setState(SwapchainReady)
		return errors.Wrap(result.Err(), "present")
	}

	next := s.frames.Advance()
	s.setState(SwapchainReady)
	return s.cmds.ResetRenderPool(next)
}

func (s *Swapchain) recover() error {
	if err := s.WaitForCmds(); err != nil {
		return err
	}
	return s.Create(s.extent, s.vsync)
}

// OnResize recreates the swapchain for a new window size. Minimized (0x0)
// and unchanged sizes are ignored.
func (s *Swapchain) OnResize(width, height uint32) error {
	if width+height == 0 || (s.extent.Width == width && s.extent.Height == height) {
		return nil
	}
	if err := s.WaitForCmds(); err != nil {
		return err
	}
	if err := s.Create(gpu.Extent2D{Width: width, Height: height}, s.vsync); err != nil {
		return err
	}
	core.LogDebug("swapchain attachments updated with size [%d x %d]", width, height)
	return nil
}

// screenRenderPassInfo clears the image, stores it for presentation and makes
// the colour writes visible to a later fragment shader read.
func screenRenderPassInfo(format gpu.Format) gpu.RenderPassInfo {
	return gpu.RenderPassInfo{
		Attachments: []gpu.AttachmentDescription{{
			Format:        format,
			Samples:       gpu.SampleCount1,
			LoadOp:        gpu.AttachmentLoadOpClear,
			StoreOp:       gpu.AttachmentStoreOpStore,
			InitialLayout: gpu.ImageLayoutUndefined,
			FinalLayout:   gpu.ImageLayoutPresentSrc,
		}},
		Dependencies: []gpu.SubpassDependency{
			{
				SrcSubpass: gpu.SubpassExternal,
				DstSubpass: 0,
				SrcStage:   gpu.PipelineStageColorAttachmentOutput,
				DstStage:   gpu.PipelineStageColorAttachmentOutput,
				DstAccess:  gpu.AccessColorAttachmentWrite,
			},
			{
				SrcSubpass: 0,
				DstSubpass: gpu.SubpassExternal,
				SrcStage:   gpu.PipelineStageColorAttachmentOutput,
				DstStage:   gpu.PipelineStageFragmentShader,
				SrcAccess:  gpu.AccessColorAttachmentWrite,
				DstAccess:  gpu.AccessMemoryRead,
				Flags:      gpu.DependencyByRegion,
			},
		},
	}
}

func (s *Swapchain) createRenderPass() error {
	if s.renderPass != nil {
		s.renderPass.Destroy()
	}
	rp, err := s.device.GPU().CreateRenderPass(screenRenderPassInfo(s.surfaceFormat.Format))
	if err != nil {
		s.device.reportError(gpu.ErrorInitializationFailed, "could not create screen renderpass", true)
		return core.Fatal(errors.Wrap(err, "create screen render pass"))
	}
	s.renderPass = rp
	return nil
}

func (s *Swapchain) createScreenPipeline() error {
	vert, frag, err := loadStages(s.shaders, "screen_quad")
	if err != nil {
		return core.Fatal(err)
	}
	layout, err := s.device.GPU().CreateDescriptorSetLayout([]gpu.DescriptorBinding{
		{Binding: 0, Type: gpu.DescriptorTypeCombinedImageSampler, Count: 1, Stages: gpu.ShaderStageFragment},
	})
	if err != nil {
		s.device.reportError(gpu.ErrorInitializationFailed, "could not create descriptor set layout", false)
		return errors.Wrap(err, "create screen descriptor layout")
	}
	pipeline, err := s.device.GPU().CreateGraphicsPipeline(gpu.GraphicsPipelineInfo{
		Name:           "screen",
		RenderPass:     s.renderPass,
		VertexShader:   vert,
		FragmentShader: frag,
		Topology:       gpu.PrimitiveTopologyTriangleList,
		CullMode:       gpu.CullModeNone,
		FrontFace:      gpu.FrontFaceCounterClockwise,
		Samples:        gpu.SampleCount1,
		LineWidth:      1,
		SetLayouts:     []gpu.DescriptorSetLayout{layout},
		Cache:          s.pipelineCache,
	})
	if err != nil {
		layout.Destroy()
		s.device.reportError(gpu.ErrorInitializationFailed, "could not create screen pipeline", true)
		return core.Fatal(errors.Wrap(err, "create screen pipeline"))
	}
	s.screenLayout, s.screenPipeline = layout, pipeline
	return nil
}

func (s *Swapchain) destroyScreenPipeline() {
	if s.screenPipeline != nil {
		s.screenPipeline.Destroy()
		s.screenPipeline = nil
	}
	if s.screenLayout != nil {
		s.screenLayout.Destroy()
		s.screenLayout = nil
	}
}

func (s *Swapchain) createFramebuffers() error {
	if s.renderPass == nil {
		if err := s.createRenderPass(); err != nil {
			return err
		}
	}
	s.destroyFramebuffers()

	natives, err := s.swapchain.Images()
	if err != nil {
		s.device.reportError(gpu.ErrorInitializationFailed, "could not get swapchain images", true)
		return core.Fatal(errors.Wrap(err, "get swapchain images"))
	}
	core.LogDebug("got %d swapchain images", len(natives))

	for _, native := range natives {
		img, err := NewSwapchainImage2D(s.alloc, native, s.extent, s.surfaceFormat.Format)
		if err != nil {
			return err
		}
		fb, err := s.device.GPU().CreateFramebuffer(gpu.FramebufferInfo{
			RenderPass:  s.renderPass,
			Attachments: []gpu.ImageView{img.View()},
			Extent:      s.extent,
		})
		if err != nil {
			img.Destroy()
			s.device.reportError(gpu.ErrorInitializationFailed, "could not create swapchain framebuffer", true)
			return core.Fatal(errors.Wrap(err, "create swapchain framebuffer"))
		}
		s.images = append(s.images, img)
		s.framebuffers = append(s.framebuffers, fb)
	}
	return nil
}

func (s *Swapchain) destroyFramebuffers() {
	for _, fb := range s.framebuffers {
		fb.Destroy()
	}
	for _, img := range s.images {
		img.Destroy()
	}
	s.framebuffers, s.images = nil, nil
}

func (s *Swapchain) createSemaphores() error {
	acquired, err := s.device.GPU().CreateSemaphore()
	if err != nil {
		s.device.reportError(gpu.ErrorInitializationFailed, "could not create image acquired semaphore", true)
		return core.Fatal(errors.Wrap(err, "create image acquired semaphore"))
	}
	complete, err := s.device.GPU().CreateSemaphore()
	if err != nil {
		acquired.Destroy()
		s.device.reportError(gpu.ErrorInitializationFailed, "could not create render complete semaphore", true)
		return core.Fatal(errors.Wrap(err, "create render complete semaphore"))
	}
	if s.imageAcquired != nil {
		s.imageAcquired.Destroy()
	}
	if s.renderComplete != nil {
		s.renderComplete.Destroy()
	}
	s.imageAcquired, s.renderComplete = acquired, complete
	core.LogDebug("created present semaphores")
	return nil
}

// Terminate releases everything the swapchain owns. The caller must have
// waited for the device to go idle.
func (s *Swapchain) Terminate() {
	if s.imageAcquired != nil {
		s.imageAcquired.Destroy()
		s.imageAcquired = nil
	}
	if s.renderComplete != nil {
		s.renderComplete.Destroy()
		s.renderComplete = nil
	}
	s.destroyFramebuffers()
	s.destroyScreenPipeline()
	if s.renderPass != nil {
		s.renderPass.Destroy()
		s.renderPass = nil
	}
	if s.swapchain != nil {
		s.swapchain.Destroy()
		s.swapchain = nil
		core.LogDebug("destroyed swapchain")
	}
	if s.surface != nil {
		s.surface.Destroy()
		s.surface = nil
		core.LogDebug("destroyed surface")
	}
	s.setState(SwapchainTerminated)
}

func (s *Swapchain) Extent() gpu.Extent2D                 { return s.extent }
func (s *Swapchain) ImageCount() uint32                   { return uint32(len(s.images)) }
func (s *Swapchain) Images() []*Image2D                   { return s.images }
func (s *Swapchain) ImageIndex() uint32                   { return s.imageIndex }
func (s *Swapchain) RenderPass() gpu.RenderPass           { return s.renderPass }
func (s *Swapchain) Framebuffer(i uint32) gpu.Framebuffer { return s.framebuffers[i] }
func (s *Swapchain) CurrentFramebuffer() gpu.Framebuffer  { return s.framebuffers[s.imageIndex] }
func (s *Swapchain) ScreenPipeline() gpu.Pipeline         { return s.screenPipeline }
func (s *Swapchain) ScreenLayout() gpu.DescriptorSetLayout {
	return s.screenLayout
}
func (s *Swapchain) Format() gpu.Format         { return s.surfaceFormat.Format }
func (s *Swapchain) ColorSpace() gpu.ColorSpace { return s.surfaceFormat.ColorSpace }
func (s *Swapchain) PresentMode() gpu.PresentMode {
	if s.vsync {
		return s.vsyncMode
	}
	return s.nonVSyncMode
}
func (s *Swapchain) VSync() bool                             { return s.vsync }
func (s *Swapchain) CompositeAlpha() gpu.CompositeAlphaFlags { return s.compositeAlpha }
func (s *Swapchain) ClearColor() [4]float32                  { return s.clearColor }
func (s *Swapchain) SetClearColor(c [4]float32)              { s.clearColor = c }
func (s *Swapchain) ImageAcquiredSemaphore() gpu.Semaphore   { return s.imageAcquired }
func (s *Swapchain) RenderCompleteSemaphore() gpu.Semaphore  { return s.renderComplete }

// SupportsNonVSyncMode reports whether a present mode other than FIFO exists
// for running without vsync.
func (s *Swapchain) SupportsNonVSyncMode() bool { return s.nonVSyncMode != gpu.PresentModeFifo }
