package renderer

import (
	"context"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/spaghettifunk/gensou/engine/core"
	emath "github.com/spaghettifunk/gensou/engine/math"
	"github.com/spaghettifunk/gensou/engine/renderer/gpu"
	"github.com/spaghettifunk/gensou/engine/systems"
)

// MaxTextureSlots is the size of the per-frame texture array bound to the
// quad pipeline. Slot 0 always holds the white texture.
const MaxTextureSlots = 16

const cameraMatrixSize = uint64(unsafe.Sizeof(mgl32.Mat4{}))

// frameTarget is everything one frame in flight renders into or reads from.
type frameTarget struct {
	color       *Image2D
	depth       *Image2D
	framebuffer gpu.Framebuffer

	cameraSet  gpu.DescriptorSet
	textureSet gpu.DescriptorSet
	screenSet  gpu.DescriptorSet

	slots [MaxTextureSlots]gpu.ImageView
	held  []*Texture
}

func (t *frameTarget) releaseTextures() {
	for _, tex := range t.held {
		tex.Release()
	}
	t.held = t.held[:0]
}

func (t *frameTarget) destroyAttachments() {
	if t.framebuffer != nil {
		t.framebuffer.Destroy()
		t.framebuffer = nil
	}
	if t.color != nil {
		t.color.Destroy()
		t.color = nil
	}
	if t.depth != nil {
		t.depth.Destroy()
		t.depth = nil
	}
}

func (t *frameTarget) freeSets() {
	for _, set := range []gpu.DescriptorSet{t.cameraSet, t.textureSet, t.screenSet} {
		if set != nil {
			set.Destroy()
		}
	}
	t.cameraSet, t.textureSet, t.screenSet = nil, nil, nil
}

type quadCall struct {
	slot  uint32
	count uint32
}

// frameJob is the snapshot of authored work the render thread records.
type frameJob struct {
	frame      uint32
	quads      []quadCall
	lines      []LineDrawCall
	cubes      uint32
	clearColor [4]float32
}

// Renderer batches quads, lines and cubes on the main thread and hands each
// frame to the render thread, which records the scene into an offscreen
// target and draws that target to the acquired swapchain image.
//
// Submit*, UpdateViewProjection, Render, OnResize and SetClearValue must be
// called from the main thread.
type Renderer struct {
	cfg      Config
	sc       *Swapchain
	device   *Device
	alloc    *Allocator
	cmds     *CommandManager
	frames   *FrameCounter
	thread   *systems.RenderThread
	textures *TextureCache

	quads QuadBatch
	lines LineBatch
	cubes CubeBatch

	preRender  []func()
	future     *systems.Future[struct{}]
	frameErr   error
	clearColor [4]float32
	overflowed bool

	white *Texture

	renderPass  gpu.RenderPass
	depthFormat gpu.Format
	extent      gpu.Extent2D
	targets     []frameTarget
	screenSrc   gpu.DescriptorSetLayout
	targetSmp   gpu.Sampler

	cameraUBO    *HostVisibleBuffer
	cameraStride uint64
	quadVertices *HostVisibleBuffer
	lineVertices *HostVisibleBuffer
	cubeInstance *HostVisibleBuffer
	quadIndices  *DeviceBuffer
	cubeVertices *DeviceBuffer
	cubeIndices  *DeviceBuffer

	cameraLayout  gpu.DescriptorSetLayout
	textureLayout gpu.DescriptorSetLayout
	quadPipeline  gpu.Pipeline
	linePipeline  gpu.Pipeline
	cubePipeline  gpu.Pipeline
}

// New builds the renderer on top of a created swapchain. ctx must carry the
// main thread role; static buffers and the white texture upload through it.
func New(ctx context.Context, sc *Swapchain, thread *systems.RenderThread, textures *TextureCache, cfg Config) (*Renderer, error) {
	if sc.State() != SwapchainReady {
		return nil, errors.Errorf("renderer needs a ready swapchain, state is %s", sc.State())
	}
	r := &Renderer{
		cfg:        cfg.Normalize(),
		sc:         sc,
		device:     sc.device,
		alloc:      sc.alloc,
		cmds:       sc.cmds,
		frames:     sc.frames,
		thread:     thread,
		textures:   textures,
		future:     systems.Resolved(struct{}{}, nil),
		clearColor: cfg.ClearColor,
	}
	// each frame's camera slot starts at a uniform-aligned offset
	r.cameraStride = emath.AlignUp(cameraMatrixSize, r.device.MinUniformBufferOffsetAlignment())
	if err := r.init(ctx); err != nil {
		r.Terminate()
		return nil, err
	}
	core.LogInfo("renderer initialized with %d frames in flight", r.frames.Count())
	return r, nil
}

func (r *Renderer) init(ctx context.Context) error {
	white := make([]byte, 4*4*4)
	for i := range white {
		white[i] = 0xff
	}
	tex, err := r.textures.FromPixels(ctx, white, gpu.Extent2D{Width: 4, Height: 4}, DefaultTextureOptions())
	if err != nil {
		return errors.Wrap(err, "white texture")
	}
	r.white = tex

	if r.targetSmp, err = r.textures.Sampler(SamplerOptions{Filter: gpu.FilterLinear, Wrap: gpu.SamplerAddressModeMirroredRepeat}); err != nil {
		return err
	}

	if err := r.createStaticBuffers(ctx); err != nil {
		return err
	}
	if err := r.createRenderPass(); err != nil {
		return err
	}
	if err := r.createPipelines(); err != nil {
		return err
	}
	return r.syncFrames()
}

func (r *Renderer) createStaticBuffers(ctx context.Context) error {
	var err error
	if r.quadIndices, err = NewDeviceBuffer(ctx, r.alloc, MaxQuadsPerFrame*6*2, gpu.BufferUsageIndexBuffer, sliceBytes(quadIndices(MaxQuadsPerFrame))); err != nil {
		return errors.Wrap(err, "quad index buffer")
	}
	if r.cubeVertices, err = NewDeviceBuffer(ctx, r.alloc, uint64(len(cubeVertices)*4), gpu.BufferUsageVertexBuffer, sliceBytes(cubeVertices[:])); err != nil {
		return errors.Wrap(err, "cube vertex buffer")
	}
	if r.cubeIndices, err = NewDeviceBuffer(ctx, r.alloc, uint64(len(cubeIndices)*2), gpu.BufferUsageIndexBuffer, sliceBytes(cubeIndices[:])); err != nil {
		return errors.Wrap(err, "cube index buffer")
	}
	return nil
}

// sceneRenderPassInfo renders colour into a sampled target and keeps depth
// transient.
func sceneRenderPassInfo(depth gpu.Format) gpu.RenderPassInfo {
	return gpu.RenderPassInfo{
		Attachments: []gpu.AttachmentDescription{
			{
				Format:        gpu.FormatR8G8B8A8Srgb,
				Samples:       gpu.SampleCount1,
				LoadOp:        gpu.AttachmentLoadOpClear,
				StoreOp:       gpu.AttachmentStoreOpStore,
				InitialLayout: gpu.ImageLayoutUndefined,
				FinalLayout:   gpu.ImageLayoutShaderReadOnlyOptimal,
			},
			{
				Format:        depth,
				Samples:       gpu.SampleCount1,
				LoadOp:        gpu.AttachmentLoadOpClear,
				StoreOp:       gpu.AttachmentStoreOpDontCare,
				InitialLayout: gpu.ImageLayoutUndefined,
				FinalLayout:   gpu.ImageLayoutDepthStencilAttachmentOptimal,
			},
		},
		Dependencies: []gpu.SubpassDependency{
			{
				SrcSubpass: gpu.SubpassExternal,
				DstSubpass: 0,
				SrcStage:   gpu.PipelineStageColorAttachmentOutput,
				DstStage:   gpu.PipelineStageColorAttachmentOutput,
				DstAccess:  gpu.AccessColorAttachmentWrite,
				Flags:      gpu.DependencyByRegion,
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

func (r *Renderer) createRenderPass() error {
	r.depthFormat = r.device.DepthFormat(r.cfg.DepthPrecision, false)
	if r.depthFormat == gpu.FormatUndefined {
		return core.Fatal(errors.New("no depth format available"))
	}
	rp, err := r.device.GPU().CreateRenderPass(sceneRenderPassInfo(r.depthFormat))
	if err != nil {
		r.device.reportError(gpu.ErrorInitializationFailed, "could not create scene renderpass", true)
		return core.Fatal(errors.Wrap(err, "create scene render pass"))
	}
	r.renderPass = rp
	return nil
}

func (r *Renderer) createPipelines() error {
	gd := r.device.GPU()
	var err error
	if r.cameraLayout, err = gd.CreateDescriptorSetLayout([]gpu.DescriptorBinding{
		{Binding: 0, Type: gpu.DescriptorTypeUniformBuffer, Count: 1, Stages: gpu.ShaderStageVertex},
	}); err != nil {
		return errors.Wrap(err, "create camera descriptor layout")
	}
	if r.textureLayout, err = gd.CreateDescriptorSetLayout([]gpu.DescriptorBinding{
		{Binding: 0, Type: gpu.DescriptorTypeCombinedImageSampler, Count: MaxTextureSlots, Stages: gpu.ShaderStageFragment},
	}); err != nil {
		return errors.Wrap(err, "create texture descriptor layout")
	}

	base := gpu.GraphicsPipelineInfo{
		RenderPass: r.renderPass,
		Topology:   gpu.PrimitiveTopologyTriangleList,
		CullMode:   gpu.CullModeNone,
		FrontFace:  gpu.FrontFaceCounterClockwise,
		Samples:    gpu.SampleCount1,
		DepthTest:  true,
		DepthWrite: true,
		Blend:      true,
		LineWidth:  1,
		SetLayouts: []gpu.DescriptorSetLayout{r.cameraLayout},
		Cache:      r.sc.pipelineCache,
	}

	quad := base
	quad.Name = "quad"
	quad.VertexBindings = []gpu.VertexBinding{{Binding: 0, Stride: quadVertexSize, InputRate: gpu.VertexInputRateVertex}}
	quad.VertexAttributes = []gpu.VertexAttribute{
		{Location: 0, Binding: 0, Format: gpu.FormatR32G32B32Sfloat, Offset: uint32(unsafe.Offsetof(QuadVertex{}.Position))},
		{Location: 1, Binding: 0, Format: gpu.FormatR32G32Sfloat, Offset: uint32(unsafe.Offsetof(QuadVertex{}.UV))},
		{Location: 2, Binding: 0, Format: gpu.FormatR32G32B32A32Sfloat, Offset: uint32(unsafe.Offsetof(QuadVertex{}.Color))},
	}
	quad.SetLayouts = []gpu.DescriptorSetLayout{r.cameraLayout, r.textureLayout}
	quad.PushConstantSize, quad.PushConstantStages = 4, gpu.ShaderStageFragment
	if r.quadPipeline, err = r.pipeline(quad); err != nil {
		return err
	}

	line := base
	line.Name = "line"
	line.Topology = gpu.PrimitiveTopologyLineList
	line.VertexBindings = []gpu.VertexBinding{{Binding: 0, Stride: lineVertexSize, InputRate: gpu.VertexInputRateVertex}}
	line.VertexAttributes = []gpu.VertexAttribute{
		{Location: 0, Binding: 0, Format: gpu.FormatR32G32B32Sfloat, Offset: uint32(unsafe.Offsetof(LineVertex{}.Position))},
		{Location: 1, Binding: 0, Format: gpu.FormatR32G32B32A32Sfloat, Offset: uint32(unsafe.Offsetof(LineVertex{}.Color))},
	}
	line.PushConstantSize, line.PushConstantStages = 8, gpu.ShaderStageFragment
	if r.linePipeline, err = r.pipeline(line); err != nil {
		return err
	}

	cube := base
	cube.Name = "cube"
	cube.CullMode = gpu.CullModeBack
	cube.VertexBindings = []gpu.VertexBinding{
		{Binding: 0, Stride: 12, InputRate: gpu.VertexInputRateVertex},
		{Binding: 1, Stride: cubeInstanceSize, InputRate: gpu.VertexInputRateInstance},
	}
	cube.VertexAttributes = []gpu.VertexAttribute{
		{Location: 0, Binding: 0, Format: gpu.FormatR32G32B32Sfloat},
		{Location: 1, Binding: 1, Format: gpu.FormatR32G32B32A32Sfloat, Offset: 0},
	}
	for col := uint32(0); col < 4; col++ {
		cube.VertexAttributes = append(cube.VertexAttributes, gpu.VertexAttribute{
			Location: 2 + col, Binding: 1, Format: gpu.FormatR32G32B32A32Sfloat, Offset: 16 + col*16,
		})
	}
	if r.cubePipeline, err = r.pipeline(cube); err != nil {
		return err
	}
	return nil
}

func (r *Renderer) pipeline(info gpu.GraphicsPipelineInfo) (gpu.Pipeline, error) {
	vert, frag, err := loadStages(r.sc.shaders, info.Name)
	if err != nil {
		return nil, core.Fatal(err)
	}
	info.VertexShader, info.FragmentShader = vert, frag
	info.Cache = r.sc.pipelineCache
	p, err := r.device.GPU().CreateGraphicsPipeline(info)
	if err != nil {
		r.device.reportError(gpu.ErrorInitializationFailed, "could not create "+info.Name+" pipeline", true)
		return nil, core.Fatal(errors.Wrapf(err, "create %s pipeline", info.Name))
	}
	return p, nil
}

// syncFrames rebuilds per-frame resources when the swapchain changed the
// number of frames in flight, its extent or its screen pipeline. The render
// thread must be idle.
func (r *Renderer) syncFrames() error {
	count := int(r.frames.Count())
	extent := r.sc.Extent()
	layout := r.sc.ScreenLayout()

	if count != len(r.targets) {
		if err := r.resizeFrameBuffers(count); err != nil {
			return err
		}
	}
	if extent != r.extent || layout != r.screenSrc {
		if err := r.createAttachments(extent, layout); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) resizeFrameBuffers(count int) error {
	for i := range r.targets {
		r.targets[i].releaseTextures()
		r.targets[i].destroyAttachments()
	}
	for _, b := range []*HostVisibleBuffer{r.cameraUBO, r.quadVertices, r.lineVertices, r.cubeInstance} {
		if b != nil {
			b.Destroy()
		}
	}

	n := uint64(count)
	var err error
	if r.cameraUBO, err = NewHostVisibleBuffer(r.alloc, r.cameraStride*n, gpu.BufferUsageUniformBuffer, gpu.MemoryUsageCPUToGPU, nil); err != nil {
		return errors.Wrap(err, "camera buffer")
	}
	identity := mgl32.Ident4()
	for i := uint64(0); i < n; i++ {
		if err := r.cameraUBO.Write(context.Background(), matrixBytes(&identity), i*r.cameraStride); err != nil {
			core.LogError("initialize camera slot %d: %s", i, err)
		}
	}
	if r.quadVertices, err = NewHostVisibleBuffer(r.alloc, quadFrameBytes*n, gpu.BufferUsageVertexBuffer, gpu.MemoryUsageCPUToGPU, nil); err != nil {
		return errors.Wrap(err, "quad vertex buffer")
	}
	if r.lineVertices, err = NewHostVisibleBuffer(r.alloc, lineFrameBytes*n, gpu.BufferUsageVertexBuffer, gpu.MemoryUsageCPUToGPU, nil); err != nil {
		return errors.Wrap(err, "line vertex buffer")
	}
	if r.cubeInstance, err = NewHostVisibleBuffer(r.alloc, cubeFrameBytes*n, gpu.BufferUsageVertexBuffer, gpu.MemoryUsageCPUToGPU, nil); err != nil {
		return errors.Wrap(err, "cube instance buffer")
	}

	old := r.targets
	for i := count; i < len(old); i++ {
		old[i].freeSets()
	}
	r.targets = make([]frameTarget, count)
	gd := r.device.GPU()
	for i := range r.targets {
		t := &r.targets[i]
		if i < len(old) {
			t.cameraSet, t.textureSet, t.screenSet = old[i].cameraSet, old[i].textureSet, old[i].screenSet
		}
		if t.cameraSet == nil {
			if t.cameraSet, err = gd.AllocateDescriptorSet(r.cameraLayout); err != nil {
				return errors.Wrap(err, "allocate camera set")
			}
		}
		if t.textureSet == nil {
			if t.textureSet, err = gd.AllocateDescriptorSet(r.textureLayout); err != nil {
				return errors.Wrap(err, "allocate texture set")
			}
		}
		t.cameraSet.WriteBuffer(0, gpu.DescriptorTypeUniformBuffer, r.cameraUBO.Handle(), uint64(i)*r.cameraStride, cameraMatrixSize)
		for s := range t.slots {
			t.textureSet.WriteImage(0, uint32(s), r.white.View(), r.white.Sampler(), gpu.ImageLayoutShaderReadOnlyOptimal)
			t.slots[s] = r.white.View()
		}
	}
	r.extent = gpu.Extent2D{}
	core.LogDebug("renderer frame resources built for %d frames", count)
	return nil
}

func (r *Renderer) createAttachments(extent gpu.Extent2D, layout gpu.DescriptorSetLayout) error {
	gd := r.device.GPU()
	for i := range r.targets {
		t := &r.targets[i]
		t.destroyAttachments()

		color, err := NewImage2D(r.alloc, gpu.ImageUsageColorAttachment|gpu.ImageUsageSampled, extent, gpu.FormatR8G8B8A8Srgb, gpu.SampleCount1, false)
		if err != nil {
			return errors.Wrap(err, "scene colour target")
		}
		t.color = color
		depth, err := NewImage2D(r.alloc, gpu.ImageUsageDepthStencilAttachment|gpu.ImageUsageTransientAttachment, extent, r.depthFormat, gpu.SampleCount1, false)
		if err != nil {
			return errors.Wrap(err, "scene depth target")
		}
		t.depth = depth
		fb, err := gd.CreateFramebuffer(gpu.FramebufferInfo{
			RenderPass:  r.renderPass,
			Attachments: []gpu.ImageView{color.View(), depth.View()},
			Extent:      extent,
		})
		if err != nil {
			r.device.reportError(gpu.ErrorInitializationFailed, "could not create scene framebuffer", true)
			return core.Fatal(errors.Wrap(err, "create scene framebuffer"))
		}
		t.framebuffer = fb

		if t.screenSet == nil || layout != r.screenSrc {
			if t.screenSet != nil {
				t.screenSet.Destroy()
			}
			if t.screenSet, err = gd.AllocateDescriptorSet(layout); err != nil {
				return errors.Wrap(err, "allocate screen set")
			}
		}
		t.screenSet.WriteImage(0, 0, color.View(), r.targetSmp, gpu.ImageLayoutShaderReadOnlyOptimal)
	}
	r.extent, r.screenSrc = extent, layout
	core.LogDebug("renderer targets resized to [%d x %d]", extent.Width, extent.Height)
	return nil
}

func matrixBytes(m *mgl32.Mat4) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(&m[0])), cameraMatrixSize)
}

// SubmitQuad draws an untextured quad.
func (r *Renderer) SubmitQuad(size mgl32.Vec2, transform mgl32.Mat4, color mgl32.Vec4) {
	r.quads.Add(r.white, whiteUV, whiteStride, size, color, transform, 1, false)
}

// SubmitTexturedQuad draws the uv..uv+stride region of tex. A nil texture
// falls back to white.
func (r *Renderer) SubmitTexturedQuad(tex *Texture, uv, stride, size mgl32.Vec2, color mgl32.Vec4, transform mgl32.Mat4, squash float32, mirror bool) {
	if tex == nil {
		tex, uv, stride = r.white, whiteUV, whiteStride
	}
	r.quads.Add(tex, uv, stride, size, color, transform, squash, mirror)
}

func (r *Renderer) SubmitLine(edgeRange mgl32.Vec2, p1 mgl32.Vec3, c1 mgl32.Vec4, p2 mgl32.Vec3, c2 mgl32.Vec4) {
	r.lines.Add(edgeRange, p1, c1, p2, c2)
}

func (r *Renderer) SubmitLineRange(vertices []LineVertex, edgeRange mgl32.Vec2) {
	r.lines.AddRange(vertices, edgeRange)
}

func (r *Renderer) SubmitCube(color mgl32.Vec4, transform mgl32.Mat4) {
	r.cubes.Add(color, transform)
}

// SubmitText lays text out with font and submits one quad per glyph.
// transform places the top-left of the first line; scale converts font
// pixels to world units.
func (r *Renderer) SubmitText(font *Font, text string, transform mgl32.Mat4, scale float32, color mgl32.Vec4) int {
	n := 0
	for _, g := range font.layout(text) {
		page := font.Page(g.page)
		if page == nil {
			continue
		}
		t := transform.Mul4(mgl32.Translate3D(g.center.X()*scale, g.center.Y()*scale, 0))
		if r.quads.Add(page, g.uv, g.stride, g.size.Mul(scale), color, t, 1, false) {
			n++
		}
	}
	return n
}

// SubmitPreRenderCmd queues fn to run during the next Render, after the
// frame's previous GPU work has finished and before its vertex data upload.
func (r *Renderer) SubmitPreRenderCmd(fn func()) {
	r.preRender = append(r.preRender, fn)
}

// UpdateViewProjection writes m into frame's slot of the camera buffer once
// that frame is safe to touch.
func (r *Renderer) UpdateViewProjection(m mgl32.Mat4, frame uint32) {
	r.SubmitPreRenderCmd(func() {
		if err := r.cameraUBO.Write(context.Background(), matrixBytes(&m), uint64(frame)*r.cameraStride); err != nil {
			core.LogError("update view projection for frame %d: %s", frame, err)
		}
	})
}

// WaitRenderCmds blocks until the last frame handed to the render thread was
// recorded and presented, and returns its error.
func (r *Renderer) WaitRenderCmds() error {
	_, err := r.future.Wait()
	if err == nil {
		err = r.frameErr
	}
	r.frameErr = nil
	return err
}

// Render hands the authored frame to the render thread and returns without
// waiting for it. Errors of the previous frame are logged.
func (r *Renderer) Render(ctx context.Context) error {
	if err := r.WaitRenderCmds(); err != nil {
		core.LogError("previous frame failed: %s", err)
	}
	if err := r.cmds.ResetGeneralPools(); err != nil {
		return err
	}
	if err := r.syncFrames(); err != nil {
		return err
	}

	frame := r.frames.Current()
	target := &r.targets[frame]
	target.releaseTextures()

	for _, fn := range r.preRender {
		fn()
	}
	r.preRender = r.preRender[:0]

	if err := r.upload(frame); err != nil {
		return err
	}

	job := frameJob{
		frame:      frame,
		quads:      r.bindTextures(target),
		lines:      append([]LineDrawCall(nil), r.lines.DrawCalls()...),
		cubes:      uint32(r.cubes.Count()),
		clearColor: r.clearColor,
	}

	r.thread.Submit(frame, func(context.Context) {
		r.frameErr = r.record(job)
	})
	r.future = r.thread.Execute(frame)

	r.quads.Reset()
	r.lines.Reset()
	r.cubes.Reset()
	return nil
}

func (r *Renderer) upload(frame uint32) error {
	ctx := context.Background()
	f := uint64(frame)
	if b := r.quads.Bytes(); len(b) > 0 {
		if err := r.quadVertices.Write(ctx, b, f*quadFrameBytes); err != nil {
			return errors.Wrap(err, "upload quads")
		}
	}
	if b := r.lines.Bytes(); len(b) > 0 {
		if err := r.lineVertices.Write(ctx, b, f*lineFrameBytes); err != nil {
			return errors.Wrap(err, "upload lines")
		}
	}
	if b := r.cubes.Bytes(); len(b) > 0 {
		if err := r.cubeInstance.Write(ctx, b, f*cubeFrameBytes); err != nil {
			return errors.Wrap(err, "upload cubes")
		}
	}
	return nil
}

// bindTextures assigns the frame's texture slots in draw order, rewrites
// the descriptors that changed and merges draw calls landing on the same
// slot. Textures beyond MaxTextureSlots draw white.
func (r *Renderer) bindTextures(t *frameTarget) []quadCall {
	var slots [MaxTextureSlots]*Texture
	slots[0] = r.white
	used := 1

	calls := make([]quadCall, 0, len(r.quads.DrawCalls()))
	for _, c := range r.quads.DrawCalls() {
		slot := 0
		if c.Texture != r.white {
			slot = -1
			for i := 1; i < used; i++ {
				if slots[i] == c.Texture {
					slot = i
					break
				}
			}
			if slot < 0 {
				if used == MaxTextureSlots {
					if !r.overflowed {
						core.LogWarn("more than %d textures in one frame, extra textures draw white", MaxTextureSlots)
						r.overflowed = true
					}
					slot = 0
				} else {
					slots[used] = c.Texture
					slot = used
					used++
				}
			}
		}
		if n := len(calls); n > 0 && calls[n-1].slot == uint32(slot) {
			calls[n-1].count += c.Count
		} else {
			calls = append(calls, quadCall{slot: uint32(slot), count: c.Count})
		}
	}

	for i := 0; i < used; i++ {
		tex := slots[i]
		if t.slots[i] != tex.View() {
			t.textureSet.WriteImage(0, uint32(i), tex.View(), tex.Sampler(), gpu.ImageLayoutShaderReadOnlyOptimal)
			t.slots[i] = tex.View()
		}
		t.held = append(t.held, tex.Acquire())
	}
	for i := used; i < MaxTextureSlots; i++ {
		if t.slots[i] != r.white.View() {
			t.textureSet.WriteImage(0, uint32(i), r.white.View(), r.white.Sampler(), gpu.ImageLayoutShaderReadOnlyOptimal)
			t.slots[i] = r.white.View()
		}
	}
	return calls
}

// record runs on the render thread.
func (r *Renderer) record(job frameJob) error {
	cmd, err := r.cmds.RenderCmdBuffer(job.frame)
	if err != nil {
		return err
	}
	if err := cmd.Begin(true); err != nil {
		return errors.Wrap(err, "begin frame command buffer")
	}

	t := &r.targets[job.frame]
	r.recordScene(cmd, t, job)

	if _, err := r.sc.AcquireNextImage(nil); err != nil {
		if errors.Is(err, core.ErrSwapchainOutOfDate) {
			return nil
		}
		_ = cmd.End()
		_ = r.cmds.ResetRenderPool(job.frame)
		return err
	}

	extent := r.sc.Extent()
	cmd.BeginRenderPass(gpu.RenderPassBeginInfo{
		RenderPass:  r.sc.RenderPass(),
		Framebuffer: r.sc.CurrentFramebuffer(),
		Area:        gpu.Rect2D{Extent: extent},
		ClearValues: []gpu.ClearValue{{Color: r.sc.ClearColor()}},
	})
	cmd.SetViewport(gpu.Viewport{Width: float32(extent.Width), Height: float32(extent.Height), MaxDepth: 1})
	cmd.SetScissor(gpu.Rect2D{Extent: extent})
	cmd.BindPipeline(r.sc.ScreenPipeline())
	cmd.BindDescriptorSet(r.sc.ScreenPipeline(), 0, t.screenSet, nil)
	cmd.Draw(3, 1, 0, 0)
	cmd.EndRenderPass()

	if err := cmd.End(); err != nil {
		return errors.Wrap(err, "end frame command buffer")
	}
	if err := r.sc.Present(job.frame); err != nil && !errors.Is(err, core.ErrSwapchainOutOfDate) {
		return err
	}
	return nil
}

func (r *Renderer) recordScene(cmd CommandBuffer, t *frameTarget, job frameJob) {
	cmd.BeginRenderPass(gpu.RenderPassBeginInfo{
		RenderPass:  r.renderPass,
		Framebuffer: t.framebuffer,
		Area:        gpu.Rect2D{Extent: r.extent},
		ClearValues: []gpu.ClearValue{{Color: job.clearColor}, {Depth: 1}},
	})
	// y points up in world space
	h := float32(r.extent.Height)
	cmd.SetViewport(gpu.Viewport{Y: h, Width: float32(r.extent.Width), Height: -h, MaxDepth: 1})
	cmd.SetScissor(gpu.Rect2D{Extent: r.extent})

	frame := uint64(job.frame)
	if len(job.lines) > 0 {
		cmd.BindVertexBuffer(0, r.lineVertices.Handle(), frame*lineFrameBytes)
		cmd.BindPipeline(r.linePipeline)
		cmd.BindDescriptorSet(r.linePipeline, 0, t.cameraSet, nil)
		var offset uint32
		for _, c := range job.lines {
			cmd.PushConstants(r.linePipeline, gpu.ShaderStageFragment, 0, vec2Bytes(c.EdgeRange))
			cmd.Draw(c.Count*2, 1, offset*2, 0)
			offset += c.Count
		}
	}

	if job.cubes > 0 {
		cmd.BindVertexBuffer(0, r.cubeVertices.Handle(), 0)
		cmd.BindVertexBuffer(1, r.cubeInstance.Handle(), frame*cubeFrameBytes)
		cmd.BindIndexBuffer(r.cubeIndices.Handle(), 0, gpu.IndexTypeUint16)
		cmd.BindPipeline(r.cubePipeline)
		cmd.BindDescriptorSet(r.cubePipeline, 0, t.cameraSet, nil)
		cmd.DrawIndexed(uint32(len(cubeIndices)), job.cubes, 0, 0, 0)
	}

	if len(job.quads) > 0 {
		cmd.BindVertexBuffer(0, r.quadVertices.Handle(), frame*quadFrameBytes)
		cmd.BindIndexBuffer(r.quadIndices.Handle(), 0, gpu.IndexTypeUint16)
		cmd.BindPipeline(r.quadPipeline)
		cmd.BindDescriptorSet(r.quadPipeline, 0, t.cameraSet, nil)
		cmd.BindDescriptorSet(r.quadPipeline, 1, t.textureSet, nil)
		var offset uint32
		for _, c := range job.quads {
			cmd.PushConstants(r.quadPipeline, gpu.ShaderStageFragment, 0, binary.LittleEndian.AppendUint32(nil, c.slot))
			cmd.DrawIndexed(c.count*6, 1, 0, int32(offset*4), 0)
			offset += c.count
		}
	}
	cmd.EndRenderPass()
}

func vec2Bytes(v mgl32.Vec2) []byte {
	b := binary.LittleEndian.AppendUint32(nil, math.Float32bits(v[0]))
	return binary.LittleEndian.AppendUint32(b, math.Float32bits(v[1]))
}

// OnResize drains the render thread, drops in-flight draw calls and
// recreates the swapchain and the offscreen targets.
func (r *Renderer) OnResize(width, height uint32) error {
	if err := r.WaitRenderCmds(); err != nil {
		core.LogWarn("frame before resize failed: %s", err)
	}
	r.quads.Reset()
	r.lines.Reset()
	r.cubes.Reset()
	if err := r.sc.OnResize(width, height); err != nil {
		return err
	}
	return r.syncFrames()
}

// SetClearValue sets the scene clear colour from the next frame on.
func (r *Renderer) SetClearValue(color mgl32.Vec4) {
	r.clearColor = [4]float32{color[0], color[1], color[2], color[3]}
}

func (r *Renderer) ClearValue() [4]float32 { return r.clearColor }

// QuadCount is the number of quads submitted for the frame being authored.
func (r *Renderer) QuadCount() int { return r.quads.Count() }
func (r *Renderer) LineCount() int { return r.lines.Count() }
func (r *Renderer) CubeCount() int { return r.cubes.Count() }

func (r *Renderer) Swapchain() *Swapchain            { return r.sc }
func (r *Renderer) WindowExtent() gpu.Extent2D       { return r.sc.Extent() }
func (r *Renderer) RenderExtent() gpu.Extent2D       { return r.extent }
func (r *Renderer) Config() Config                   { return r.cfg }
func (r *Renderer) Textures() *TextureCache          { return r.textures }
func (r *Renderer) WhiteTexture() *Texture           { return r.white }
func (r *Renderer) RenderPass() gpu.RenderPass       { return r.renderPass }
func (r *Renderer) FrameCount() int                  { return len(r.targets) }
func (r *Renderer) CurrentFrame() uint32             { return r.frames.Current() }
func (r *Renderer) CameraBuffer() *HostVisibleBuffer { return r.cameraUBO }

// Terminate waits for the render thread and the device, then releases
// everything the renderer created.
func (r *Renderer) Terminate() {
	if r.future != nil {
		if err := r.WaitRenderCmds(); err != nil {
			core.LogWarn("last frame failed: %s", err)
		}
	}
	if err := r.device.GPU().WaitIdle(); err != nil {
		core.LogError("wait idle before renderer shutdown: %s", err)
	}
	for i := range r.targets {
		r.targets[i].releaseTextures()
		r.targets[i].destroyAttachments()
		r.targets[i].freeSets()
	}
	r.targets = nil
	for _, b := range []*HostVisibleBuffer{r.cameraUBO, r.quadVertices, r.lineVertices, r.cubeInstance} {
		if b != nil {
			b.Destroy()
		}
	}
	for _, b := range []*DeviceBuffer{r.quadIndices, r.cubeVertices, r.cubeIndices} {
		if b != nil {
			b.Destroy()
		}
	}
	for _, p := range []gpu.Pipeline{r.quadPipeline, r.linePipeline, r.cubePipeline} {
		if p != nil {
			p.Destroy()
		}
	}
	r.quadPipeline, r.linePipeline, r.cubePipeline = nil, nil, nil
	if r.cameraLayout != nil {
		r.cameraLayout.Destroy()
		r.cameraLayout = nil
	}
	if r.textureLayout != nil {
		r.textureLayout.Destroy()
		r.textureLayout = nil
	}
	if r.renderPass != nil {
		r.renderPass.Destroy()
		r.renderPass = nil
	}
	if r.white != nil {
		r.white.Release()
		r.white = nil
	}
	core.LogDebug("renderer terminated")
}
