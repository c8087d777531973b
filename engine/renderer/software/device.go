package software

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/spaghettifunk/gensou/engine/renderer/gpu"
)

// Stats counts the work a device has executed.
type Stats struct {
	Submits       int
	Presents      int
	Draws         int
	IndexedDraws  int
	IndexCount    uint64
	VertexCount   uint64
	CopiedBytes   uint64
	Blits         int
	PoolResets    int
	LiveBuffers   int
	LiveImages    int
	LiveSets      int
	RenderPasses  int
	PushConstants []byte
}

// Device implements gpu.Device.
type Device struct {
	adapter *Adapter
	info    gpu.DeviceInfo

	mu             sync.Mutex
	queues         map[[2]uint32]*Queue
	stats          Stats
	presentResults []gpu.Result
	destroyed      bool
}

func newDevice(a *Adapter, info gpu.DeviceInfo) *Device {
	d := &Device{
		adapter: a,
		info:    info,
		queues:  make(map[[2]uint32]*Queue),
	}
	for _, q := range info.Queues {
		for i := uint32(0); i < q.Count; i++ {
			d.queues[[2]uint32{q.Family, i}] = &Queue{dev: d, family: q.Family, index: i}
		}
	}
	return d
}

// Stats returns a snapshot of the device counters.
func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.stats
	s.PushConstants = append([]byte(nil), d.stats.PushConstants...)
	return s
}

func (d *Device) update(fn func(s *Stats)) {
	d.mu.Lock()
	fn(&d.stats)
	d.mu.Unlock()
}

// InjectPresentResult makes the next present return r instead of Success.
// Injected results are consumed in order.
func (d *Device) InjectPresentResult(r gpu.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.presentResults = append(d.presentResults, r)
}

func (d *Device) nextPresentResult() gpu.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.presentResults) == 0 {
		return gpu.Success
	}
	r := d.presentResults[0]
	d.presentResults = d.presentResults[1:]
	return r
}

func (d *Device) Queue(family, index uint32) gpu.Queue {
	d.mu.Lock()
	defer d.mu.Unlock()
	q, ok := d.queues[[2]uint32{family, index}]
	if !ok {
		return nil
	}
	return q
}

func (d *Device) CreateCommandPool(family uint32, transient bool) (gpu.CommandPool, error) {
	if int(family) >= len(d.adapter.config.QueueFamilies) {
		return nil, errors.Errorf("queue family %d out of range", family)
	}
	return &CommandPool{dev: d, family: family}, nil
}

func (d *Device) CreateFence(signaled bool) (gpu.Fence, error) {
	return newFence(signaled), nil
}

func (d *Device) WaitForFences(fences []gpu.Fence, waitAll bool, timeout uint64) gpu.Result {
	if len(fences) == 0 {
		return gpu.Success
	}
	chans := make([]<-chan struct{}, 0, len(fences))
	for _, f := range fences {
		chans = append(chans, f.(*Fence).done())
	}

	var deadline <-chan time.Time
	if timeout != gpu.WaitForever {
		if timeout > uint64(1<<62) {
			timeout = 1 << 62
		}
		t := time.NewTimer(time.Duration(timeout))
		defer t.Stop()
		deadline = t.C
	}

	if waitAll {
		for _, c := range chans {
			select {
			case <-c:
			case <-deadline:
				return gpu.Timeout
			}
		}
		return gpu.Success
	}

	first := make(chan struct{})
	var once sync.Once
	for _, c := range chans {
		go func(c <-chan struct{}) {
			select {
			case <-c:
				once.Do(func() { close(first) })
			case <-first:
			}
		}(c)
	}
	select {
	case <-first:
		return gpu.Success
	case <-deadline:
		once.Do(func() { close(first) })
		return gpu.Timeout
	}
}

func (d *Device) ResetFences(fences []gpu.Fence) error {
	for _, f := range fences {
		f.(*Fence).reset()
	}
	return nil
}

func (d *Device) CreateSemaphore() (gpu.Semaphore, error) {
	return &Semaphore{}, nil
}

func (d *Device) CreateBuffer(info gpu.BufferInfo, usage gpu.MemoryUsage) (gpu.Buffer, error) {
	if info.Size == 0 {
		return nil, errors.New("buffer size must be greater than zero")
	}
	if usage == gpu.MemoryUsageGPULazilyAllocated {
		return nil, errors.Wrap(gpu.ErrorFeatureNotPresent.Err(), "buffers cannot be lazily allocated")
	}
	d.update(func(s *Stats) { s.LiveBuffers++ })
	return &Buffer{
		dev:   d,
		info:  info,
		usage: usage,
		mem:   make([]byte, info.Size),
	}, nil
}

func (d *Device) CreateImage(info gpu.ImageInfo, usage gpu.MemoryUsage) (gpu.Image, error) {
	if usage == gpu.MemoryUsageGPULazilyAllocated && !d.adapter.config.LazyAllocation {
		return nil, errors.Wrap(gpu.ErrorFeatureNotPresent.Err(), "lazy allocation")
	}
	if info.Extent.Width == 0 || info.Extent.Height == 0 {
		return nil, errors.New("image extent must be greater than zero")
	}
	if d.adapter.config.Formats[info.Format] == 0 {
		return nil, errors.Wrapf(gpu.ErrorFormatNotSupported.Err(), "format %s", info.Format)
	}
	d.update(func(s *Stats) { s.LiveImages++ })
	return newImage(d, info, false), nil
}

func (d *Device) CreateImageView(info gpu.ImageViewInfo) (gpu.ImageView, error) {
	if info.Image == nil {
		return nil, errors.New("image view without image")
	}
	return &ImageView{info: info}, nil
}

func (d *Device) CreateSampler(info gpu.SamplerInfo) (gpu.Sampler, error) {
	return &Sampler{info: info}, nil
}

func (d *Device) CreateRenderPass(info gpu.RenderPassInfo) (gpu.RenderPass, error) {
	if len(info.Attachments) == 0 {
		return nil, errors.New("render pass without attachments")
	}
	return &RenderPass{info: info}, nil
}

func (d *Device) CreateFramebuffer(info gpu.FramebufferInfo) (gpu.Framebuffer, error) {
	if info.RenderPass == nil {
		return nil, errors.New("framebuffer without render pass")
	}
	if len(info.Attachments) != len(info.RenderPass.Info().Attachments) {
		return nil, errors.Errorf("framebuffer has %d attachments, render pass expects %d",
			len(info.Attachments), len(info.RenderPass.Info().Attachments))
	}
	return &Framebuffer{info: info}, nil
}

func (d *Device) CreateSwapchain(info gpu.SwapchainInfo) (gpu.Swapchain, error) {
	return newSwapchain(d, info)
}

// pipelineCacheHeaderSize is the size of the standard native cache header.
const pipelineCacheHeaderSize = 32

func (d *Device) CreatePipelineCache(initial []byte) (gpu.PipelineCache, error) {
	props := d.adapter.config.Properties
	header := make([]byte, pipelineCacheHeaderSize)
	binary.LittleEndian.PutUint32(header[0:], pipelineCacheHeaderSize)
	binary.LittleEndian.PutUint32(header[4:], 1)
	binary.LittleEndian.PutUint32(header[8:], props.VendorID)
	binary.LittleEndian.PutUint32(header[12:], props.DeviceID)
	copy(header[16:], props.PipelineCacheUUID[:])

	pc := &PipelineCache{data: header}
	if len(initial) >= pipelineCacheHeaderSize && string(initial[:pipelineCacheHeaderSize]) == string(header) {
		pc.data = append([]byte(nil), initial...)
	}
	return pc, nil
}

func (d *Device) CreateDescriptorSetLayout(bindings []gpu.DescriptorBinding) (gpu.DescriptorSetLayout, error) {
	return &DescriptorSetLayout{bindings: append([]gpu.DescriptorBinding(nil), bindings...)}, nil
}

func (d *Device) AllocateDescriptorSet(layout gpu.DescriptorSetLayout) (gpu.DescriptorSet, error) {
	l, ok := layout.(*DescriptorSetLayout)
	if !ok || l == nil {
		return nil, errors.New("descriptor set without layout")
	}
	d.update(func(s *Stats) { s.LiveSets++ })
	return &DescriptorSet{dev: d, layout: l, buffers: map[uint32]gpu.Buffer{}, images: map[[2]uint32]gpu.ImageView{}}, nil
}

func (d *Device) CreateGraphicsPipeline(info gpu.GraphicsPipelineInfo) (gpu.Pipeline, error) {
	if info.RenderPass == nil {
		return nil, errors.New("graphics pipeline without render pass")
	}
	if info.PushConstantSize > d.adapter.config.Properties.Limits.MaxPushConstantsSize {
		return nil, errors.Errorf("push constant range %d exceeds device limit", info.PushConstantSize)
	}
	if pc, ok := info.Cache.(*PipelineCache); ok && pc != nil {
		pc.add(info)
	}
	return &Pipeline{info: info}, nil
}

func (d *Device) WaitIdle() error {
	return nil
}

func (d *Device) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyed = true
}

// Queue implements gpu.Queue.
type Queue struct {
	dev           *Device
	family, index uint32
}

func (q *Queue) Family() uint32 { return q.family }
func (q *Queue) Index() uint32  { return q.index }

func (q *Queue) Submit(submits []gpu.SubmitInfo, fence gpu.Fence) gpu.Result {
	for _, s := range submits {
		for _, c := range s.CommandBuffers {
			cb, ok := c.(*CommandBuffer)
			if !ok || cb.state != cbExecutable {
				return gpu.ErrorDeviceLost
			}
		}
	}
	for _, s := range submits {
		for _, c := range s.CommandBuffers {
			c.(*CommandBuffer).execute()
		}
	}
	q.dev.update(func(s *Stats) { s.Submits++ })
	if fence != nil {
		fence.(*Fence).signal()
	}
	return gpu.Success
}

func (q *Queue) Present(info gpu.PresentInfo) gpu.Result {
	if r := q.dev.nextPresentResult(); r != gpu.Success {
		return r
	}
	sc, ok := info.Swapchain.(*Swapchain)
	if !ok || sc.destroyed {
		return gpu.ErrorOutOfDate
	}
	if int(info.ImageIndex) >= len(sc.images) {
		return gpu.ErrorDeviceLost
	}
	q.dev.update(func(s *Stats) { s.Presents++ })
	return gpu.Success
}

func (q *Queue) WaitIdle() gpu.Result {
	return gpu.Success
}

// Fence implements gpu.Fence.
type Fence struct {
	mu       sync.Mutex
	signaled bool
	ch       chan struct{}
}

func newFence(signaled bool) *Fence {
	f := &Fence{ch: make(chan struct{})}
	if signaled {
		f.signal()
	}
	return f
}

func (f *Fence) signal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.signaled {
		f.signaled = true
		close(f.ch)
	}
}

func (f *Fence) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signaled {
		f.signaled = false
		f.ch = make(chan struct{})
	}
}

func (f *Fence) done() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ch
}

func (f *Fence) Status() gpu.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signaled {
		return gpu.Success
	}
	return gpu.NotReady
}

func (f *Fence) Destroy() {}

type Semaphore struct {
	destroyed bool
}

func (s *Semaphore) Destroy() { s.destroyed = true }

func (s *Semaphore) Destroyed() bool { return s.destroyed }

type ImageView struct {
	info      gpu.ImageViewInfo
	destroyed bool
}

func (v *ImageView) Image() gpu.Image { return v.info.Image }
func (v *ImageView) Destroy()         { v.destroyed = true }
func (v *ImageView) Destroyed() bool  { return v.destroyed }

type Sampler struct {
	info gpu.SamplerInfo
}

func (s *Sampler) Destroy() {}

// Info returns the description the sampler was created with.
func (s *Sampler) Info() gpu.SamplerInfo { return s.info }

type RenderPass struct {
	info gpu.RenderPassInfo
}

func (r *RenderPass) Info() gpu.RenderPassInfo { return r.info }
func (r *RenderPass) Destroy()                 {}

type Framebuffer struct {
	info gpu.FramebufferInfo
}

func (f *Framebuffer) Destroy() {}

type Pipeline struct {
	info gpu.GraphicsPipelineInfo
}

func (p *Pipeline) Destroy() {}

// PipelineCache keeps a header followed by one record per pipeline created
// against it.
type PipelineCache struct {
	mu   sync.Mutex
	data []byte
}

func (pc *PipelineCache) add(info gpu.GraphicsPipelineInfo) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	var rec [8]byte
	binary.LittleEndian.PutUint32(rec[0:], uint32(len(info.VertexShader)))
	binary.LittleEndian.PutUint32(rec[4:], uint32(len(info.FragmentShader)))
	pc.data = append(pc.data, rec[:]...)
	pc.data = append(pc.data, info.Name...)
}

func (pc *PipelineCache) Data() ([]byte, error) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return append([]byte(nil), pc.data...), nil
}

func (pc *PipelineCache) Destroy() {}

type DescriptorSetLayout struct {
	bindings []gpu.DescriptorBinding
}

func (l *DescriptorSetLayout) Destroy() {}

type DescriptorSet struct {
	mu      sync.Mutex
	dev     *Device
	layout  *DescriptorSetLayout
	buffers map[uint32]gpu.Buffer
	images  map[[2]uint32]gpu.ImageView
	freed   bool
}

func (s *DescriptorSet) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.freed {
		return
	}
	s.freed = true
	s.dev.update(func(st *Stats) { st.LiveSets-- })
}

func (s *DescriptorSet) WriteBuffer(binding uint32, t gpu.DescriptorType, b gpu.Buffer, offset, size uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffers[binding] = b
}

func (s *DescriptorSet) WriteImage(binding, arrayElement uint32, view gpu.ImageView, sampler gpu.Sampler, layout gpu.ImageLayout) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images[[2]uint32{binding, arrayElement}] = view
}

// BoundBuffer returns the buffer written at binding.
func (s *DescriptorSet) BoundBuffer(binding uint32) gpu.Buffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffers[binding]
}

// BoundImage returns the view written at binding and array element.
func (s *DescriptorSet) BoundImage(binding, element uint32) gpu.ImageView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.images[[2]uint32{binding, element}]
}
