package renderer

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/spaghettifunk/gensou/engine/core"
	"github.com/spaghettifunk/gensou/engine/renderer/gpu"
)

// QueueRole is a logical class of GPU work. Several roles may share one
// native queue.
type QueueRole uint8

const (
	QueueGraphics QueueRole = iota
	QueueCompute
	QueueTransfer
	QueuePresent
	queueRoleCount
)

func (r QueueRole) String() string {
	switch r {
	case QueueGraphics:
		return "graphics"
	case QueueCompute:
		return "compute"
	case QueueTransfer:
		return "transfer"
	case QueuePresent:
		return "present"
	}
	return "unknown"
}

type queueSlot struct {
	family uint32
	index  uint32
	queue  gpu.Queue
	mu     *sync.Mutex
}

type DeviceOptions struct {
	Events *core.EngineEvents
	// Features are optional features to enable when the adapter has them.
	Features gpu.AdapterFeatures
	// MultisampleCount is the desired sample count, clamped to the device maximum.
	MultisampleCount uint32
}

// Device owns the adapter, the logical device and the four queue roles.
type Device struct {
	events  *core.EngineEvents
	adapter gpu.Adapter
	device  gpu.Device

	properties gpu.AdapterProperties
	supported  gpu.AdapterFeatures
	enabled    gpu.AdapterFeatures

	roles [queueRoleCount]queueSlot

	hasComputeFamily           bool
	hasTransferFamily          bool
	computeSharedWithGraphics  bool
	transferSharedWithGraphics bool
	transferSharedWithCompute  bool

	maxSamples       gpu.SampleCountFlags
	multisampleCount gpu.SampleCountFlags
	lazyAllocation   bool
}

// NewDevice picks the first adapter with a graphics queue family, derives the
// queue roles and creates the logical device. Failures are fatal.
func NewDevice(driver gpu.Driver, opts DeviceOptions) (*Device, error) {
	core.LogInfo("initializing %s device", driver.Name())

	adapters, err := driver.Adapters()
	if err != nil {
		return nil, core.Fatal(errors.Wrap(core.ErrNoSuitableDevice, err.Error()))
	}

	d := &Device{events: opts.Events}
	for _, a := range adapters {
		if _, ok := firstFamily(a.QueueFamilies(), gpu.QueueGraphics, 0); ok {
			d.adapter = a
			break
		}
	}
	if d.adapter == nil {
		if len(adapters) == 0 {
			return nil, core.Fatal(core.ErrNoSuitableDevice)
		}
		return nil, core.Fatal(errors.Wrap(core.ErrNoGraphicsQueue, "no adapter can render"))
	}

	d.properties = d.adapter.Properties()
	d.supported = d.adapter.Features()
	d.lazyAllocation = d.adapter.SupportsLazyAllocation()
	core.LogInfo("using adapter '%s' (vendor 0x%x, device 0x%x)", d.properties.Name, d.properties.VendorID, d.properties.DeviceID)
	if d.properties.Integrated {
		core.LogInfo("device is integrated")
	}
	if d.lazyAllocation {
		core.LogInfo("has lazily allocated support")
	} else {
		core.LogInfo("does not have lazily allocated support")
	}

	if !d.supported.ShaderSampledImageArrayDynamicIndexing {
		return nil, core.Fatal(errors.Wrap(core.ErrMissingRequiredFeature, "shaderSampledImageArrayDynamicIndexing"))
	}
	d.enabled.ShaderSampledImageArrayDynamicIndexing = true
	d.enableOptionalFeatures(opts.Features)

	d.maxSamples = maxSampleCount(d.properties.Limits.FramebufferColorSampleCounts & d.properties.Limits.FramebufferDepthSampleCounts)
	d.SetMultisampleCount(max(opts.MultisampleCount, 1))

	requests := d.assignQueueRoles(d.adapter.QueueFamilies())

	dev, err := d.adapter.CreateDevice(gpu.DeviceInfo{
		Queues:     requests,
		Features:   d.enabled,
		Extensions: []string{"VK_KHR_swapchain"},
	})
	if err != nil {
		d.reportError(gpu.ErrorInitializationFailed, "could not create a logical device", true)
		return nil, core.Fatal(errors.Wrap(err, "create logical device"))
	}
	d.device = dev
	d.resolveQueues()

	core.LogInfo("created logical device on '%s'", d.properties.Name)
	return d, nil
}

func (d *Device) enableOptionalFeatures(want gpu.AdapterFeatures) {
	optional := []struct {
		name      string
		want, has bool
		enable    *bool
	}{
		{"samplerAnisotropy", want.SamplerAnisotropy, d.supported.SamplerAnisotropy && d.properties.Limits.MaxSamplerAnisotropy > 1, &d.enabled.SamplerAnisotropy},
		{"textureCompressionASTC_LDR", want.TextureCompressionASTC, d.supported.TextureCompressionASTC, &d.enabled.TextureCompressionASTC},
		{"bufferDeviceAddress", want.BufferDeviceAddress, d.supported.BufferDeviceAddress, &d.enabled.BufferDeviceAddress},
		{"wideLines", want.WideLines, d.supported.WideLines, &d.enabled.WideLines},
		{"fillModeNonSolid", want.FillModeNonSolid, d.supported.FillModeNonSolid, &d.enabled.FillModeNonSolid},
	}
	for _, f := range optional {
		if !f.want {
			continue
		}
		if f.has {
			*f.enable = true
			core.LogDebug("%s feature enabled", f.name)
		} else {
			core.LogWarn("%s feature not supported", f.name)
		}
	}
}

func firstFamily(families []gpu.QueueFamily, want, exclude gpu.QueueFlags) (uint32, bool) {
	for i, f := range families {
		if f.Count > 0 && f.Flags&want != 0 && f.Flags&exclude == 0 {
			return uint32(i), true
		}
	}
	return 0, false
}

// assignQueueRoles implements the fallback ladder: dedicated families first,
// then extra queues of the graphics (or compute) family, then sharing.
func (d *Device) assignQueueRoles(families []gpu.QueueFamily) []gpu.QueueRequest {
	g, _ := firstFamily(families, gpu.QueueGraphics, 0)
	c, hasCompute := firstFamily(families, gpu.QueueCompute, gpu.QueueGraphics)
	t, hasTransfer := firstFamily(families, gpu.QueueTransfer, gpu.QueueGraphics|gpu.QueueCompute)
	d.hasComputeFamily, d.hasTransferFamily = hasCompute, hasTransfer

	gCount := families[g].Count
	d.roles[QueueGraphics] = queueSlot{family: g, index: 0}

	switch {
	case hasCompute:
		d.roles[QueueCompute] = queueSlot{family: c, index: 0}
		core.LogDebug("compute queue using a dedicated compute queue")
	case gCount > 1:
		d.roles[QueueCompute] = queueSlot{family: g, index: 1}
		core.LogDebug("compute queue using a dedicated graphics queue")
	default:
		d.roles[QueueCompute] = queueSlot{family: g, index: 0}
		d.computeSharedWithGraphics = true
		core.LogDebug("compute queue sharing a graphics queue with graphics")
	}

	switch {
	case hasTransfer:
		d.roles[QueueTransfer] = queueSlot{family: t, index: 0}
		core.LogDebug("transfer queue using a dedicated transfer queue")
	case !hasCompute && gCount > 2:
		d.roles[QueueTransfer] = queueSlot{family: g, index: 2}
		core.LogDebug("transfer queue using a dedicated graphics queue")
	case !hasCompute && gCount > 1:
		d.roles[QueueTransfer] = queueSlot{family: g, index: 1}
		d.transferSharedWithCompute = true
		core.LogDebug("transfer queue sharing a graphics queue with compute")
	case !hasCompute:
		d.roles[QueueTransfer] = queueSlot{family: g, index: 0}
		d.transferSharedWithGraphics = true
		d.transferSharedWithCompute = true
		core.LogDebug("graphics, compute and transfer queues all share the same graphics queue")
	case gCount > 1:
		d.roles[QueueTransfer] = queueSlot{family: g, index: 1}
		core.LogDebug("transfer queue using a dedicated graphics queue")
	case families[c].Count > 1:
		d.roles[QueueTransfer] = queueSlot{family: c, index: 1}
		core.LogDebug("transfer queue using a dedicated compute queue")
	default:
		d.roles[QueueTransfer] = queueSlot{family: c, index: 0}
		d.transferSharedWithCompute = true
		core.LogDebug("transfer and compute queues sharing the same compute queue")
	}
	d.roles[QueuePresent] = d.roles[QueueGraphics]

	counts := map[uint32]uint32{}
	var order []uint32
	for _, r := range d.roles[:QueuePresent] {
		if _, ok := counts[r.family]; !ok {
			order = append(order, r.family)
		}
		counts[r.family] = max(counts[r.family], r.index+1)
	}
	requests := make([]gpu.QueueRequest, 0, len(order))
	for _, f := range order {
		requests = append(requests, gpu.QueueRequest{Family: f, Count: counts[f]})
	}
	return requests
}

// resolveQueues fetches the native queues and gives every distinct native
// queue exactly one submission mutex.
func (d *Device) resolveQueues() {
	mutexes := map[[2]uint32]*sync.Mutex{}
	for i := range d.roles {
		r := &d.roles[i]
		key := [2]uint32{r.family, r.index}
		mu, ok := mutexes[key]
		if !ok {
			mu = &sync.Mutex{}
			mutexes[key] = mu
		}
		r.mu = mu
		r.queue = d.device.Queue(r.family, r.index)
	}
}

// SelectPresentQueue picks the first of the graphics, compute and transfer
// families that can present to the surface.
func (d *Device) SelectPresentQueue(surface gpu.Surface) error {
	for _, role := range []QueueRole{QueueGraphics, QueueCompute, QueueTransfer} {
		ok, err := d.adapter.SurfaceSupport(d.roles[role].family, surface)
		if err != nil {
			core.LogWarn("surface support query for %s family failed: %s", role, err.Error())
			continue
		}
		if ok {
			d.roles[QueuePresent] = d.roles[role]
			core.LogDebug("presenting on the %s queue (family %d)", role, d.roles[role].family)
			return nil
		}
	}
	return core.Fatal(core.ErrNoPresentQueue)
}

func (d *Device) reportError(r gpu.Result, context string, fatal bool) {
	if d.events != nil {
		d.events.GPUError.Broadcast(core.GPUErrorEvent{Result: int32(r), Context: context, Fatal: fatal})
	}
}

// check adapts a result to an error and broadcasts failures on the GPU error
// channel.
func (d *Device) check(r gpu.Result, context string) error {
	if r == gpu.Success {
		return nil
	}
	d.reportError(r, context, false)
	return errors.Wrap(r.Err(), context)
}

// Terminate waits for the device to go idle and destroys it.
func (d *Device) Terminate() {
	if d.device == nil {
		return
	}
	if err := d.device.WaitIdle(); err != nil {
		core.LogError("device wait idle: %s", err.Error())
	}
	d.device.Destroy()
	d.device = nil
	core.LogWarn("terminated %s device", d.properties.Name)
}

func (d *Device) GPU() gpu.Device            { return d.device }
func (d *Device) Adapter() gpu.Adapter       { return d.adapter }
func (d *Device) Events() *core.EngineEvents { return d.events }

func (d *Device) Queue(role QueueRole) gpu.Queue        { return d.roles[role].queue }
func (d *Device) QueueFamily(role QueueRole) uint32     { return d.roles[role].family }
func (d *Device) QueueIndex(role QueueRole) uint32      { return d.roles[role].index }
func (d *Device) QueueMutex(role QueueRole) *sync.Mutex { return d.roles[role].mu }

// QueueByFamily returns the queue used for a family index, checked in
// graphics, compute, transfer order.
func (d *Device) QueueByFamily(family uint32) gpu.Queue {
	for _, role := range []QueueRole{QueueGraphics, QueueCompute, QueueTransfer} {
		if d.roles[role].family == family {
			return d.roles[role].queue
		}
	}
	return nil
}

func (d *Device) IsComputeQueueSameAsGraphics() bool  { return d.computeSharedWithGraphics }
func (d *Device) IsTransferQueueSameAsGraphics() bool { return d.transferSharedWithGraphics }
func (d *Device) IsTransferQueueSameAsCompute() bool  { return d.transferSharedWithCompute }
func (d *Device) HasDedicatedComputeFamily() bool     { return d.hasComputeFamily }
func (d *Device) HasDedicatedTransferFamily() bool    { return d.hasTransferFamily }

func (d *Device) Properties() gpu.AdapterProperties { return d.properties }
func (d *Device) VendorID() uint32                  { return d.properties.VendorID }
func (d *Device) DeviceID() uint32                  { return d.properties.DeviceID }
func (d *Device) DriverVersion() uint32             { return d.properties.DriverVersion }
func (d *Device) PipelineCacheUUID() [16]byte       { return d.properties.PipelineCacheUUID }
func (d *Device) Integrated() bool                  { return d.properties.Integrated }
func (d *Device) LineWidthRange() [2]float32        { return d.properties.Limits.LineWidthRange }

func (d *Device) MinUniformBufferOffsetAlignment() uint64 {
	return d.properties.Limits.MinUniformBufferOffsetAlignment
}

func (d *Device) MinStorageBufferOffsetAlignment() uint64 {
	return d.properties.Limits.MinStorageBufferOffsetAlignment
}

func (d *Device) SupportsAnisotropy() bool          { return d.enabled.SamplerAnisotropy }
func (d *Device) MaxAnisotropy() float32            { return d.properties.Limits.MaxSamplerAnisotropy }
func (d *Device) SupportsASTC() bool                { return d.enabled.TextureCompressionASTC }
func (d *Device) SupportsBufferDeviceAddress() bool { return d.enabled.BufferDeviceAddress }
func (d *Device) SupportsLazyAllocation() bool      { return d.lazyAllocation }
func (d *Device) SupportsWideLines() bool           { return d.enabled.WideLines }

func maxSampleCount(counts gpu.SampleCountFlags) gpu.SampleCountFlags {
	for s := gpu.SampleCount64; s > gpu.SampleCount1; s >>= 1 {
		if counts&s != 0 {
			return s
		}
	}
	return gpu.SampleCount1
}

func (d *Device) MaxMultisampleCount() gpu.SampleCountFlags { return d.maxSamples }
func (d *Device) MultisampleCount() gpu.SampleCountFlags    { return d.multisampleCount }

// SetMultisampleCount stores min(desired, device maximum).
func (d *Device) SetMultisampleCount(desired uint32) {
	d.multisampleCount = min(gpu.SampleCountFlags(desired), d.maxSamples)
}

func (d *Device) FormatFeatures(f gpu.Format) gpu.FormatFeatureFlags {
	return d.adapter.FormatFeatures(f)
}

func (d *Device) FormatSupportsBlit(f gpu.Format) bool {
	return d.FormatFeatures(f).Has(gpu.FormatFeatureBlitSrc | gpu.FormatFeatureBlitDst)
}

func (d *Device) FormatSupportsBlitSrc(f gpu.Format) bool {
	return d.FormatFeatures(f).Has(gpu.FormatFeatureBlitSrc)
}

func (d *Device) FormatSupportsBlitDst(f gpu.Format) bool {
	return d.FormatFeatures(f).Has(gpu.FormatFeatureBlitDst)
}

// findFormat returns the first candidate whose optimal tiling features hold
// every bit of want, or FormatUndefined.
func (d *Device) findFormat(preferred gpu.Format, fallbacks []gpu.Format, want gpu.FormatFeatureFlags) gpu.Format {
	if preferred != gpu.FormatUndefined && d.FormatFeatures(preferred).Has(want) {
		return preferred
	}
	for _, f := range fallbacks {
		if d.FormatFeatures(f).Has(want) {
			return f
		}
	}
	return gpu.FormatUndefined
}

var hdrFormats = []gpu.Format{gpu.FormatR32G32B32A32Sfloat, gpu.FormatR16G16B16A16Sfloat}

func (d *Device) HDRAttachmentBlendFormat(preferred gpu.Format) gpu.Format {
	f := d.findFormat(preferred, hdrFormats, gpu.FormatFeatureColorAttachmentBlend)
	if f == gpu.FormatUndefined {
		core.LogWarn("this device does not have any format which supports HDR color attachment with blend")
	}
	return f
}

func (d *Device) HDRLinearSampleFormat(preferred gpu.Format) gpu.Format {
	f := d.findFormat(preferred, hdrFormats, gpu.FormatFeatureSampledImageFilterLinear)
	if f == gpu.FormatUndefined {
		core.LogWarn("this device does not have any HDR format which supports linear sampling")
	}
	return f
}

func (d *Device) HDRLinearSampleBlitFormat(preferred gpu.Format) gpu.Format {
	f := d.findFormat(preferred, hdrFormats,
		gpu.FormatFeatureSampledImageFilterLinear|gpu.FormatFeatureBlitSrc|gpu.FormatFeatureBlitDst)
	if f == gpu.FormatUndefined {
		core.LogWarn("this device does not have any HDR format which supports linear sampling and blit")
	}
	return f
}

func (d *Device) ColorBlitFormat(preferred gpu.Format) gpu.Format {
	f := d.findFormat(preferred, []gpu.Format{gpu.FormatR8G8B8A8Srgb, gpu.FormatR8G8B8A8Unorm},
		gpu.FormatFeatureBlitSrc|gpu.FormatFeatureBlitDst)
	if f == gpu.FormatR8G8B8A8Unorm && preferred != gpu.FormatR8G8B8A8Unorm {
		core.LogWarn("no sRGB format with blit support was found, returning a linear one")
	}
	return f
}

func (d *Device) StorageImageFormat(preferred gpu.Format) gpu.Format {
	return d.findFormat(preferred,
		[]gpu.Format{gpu.FormatR8G8B8A8Srgb, gpu.FormatR16G16B16A16Sfloat, gpu.FormatR8G8B8A8Unorm},
		gpu.FormatFeatureStorageImage)
}

// DepthFormat picks a depth attachment format for the requested precision.
// Depth-only requests accept a stencil variant when the plain format is
// missing; stencil requests fall back to a depth-only format.
func (d *Device) DepthFormat(precision uint8, stencil bool) gpu.Format {
	var candidates []gpu.Format
	var depthOnly gpu.Format
	switch {
	case precision <= 16:
		candidates, depthOnly = []gpu.Format{gpu.FormatD16UnormS8Uint}, gpu.FormatD16Unorm
		if !stencil {
			candidates = []gpu.Format{gpu.FormatD16Unorm, gpu.FormatD16UnormS8Uint}
		}
	case precision <= 24:
		candidates, depthOnly = []gpu.Format{gpu.FormatD24UnormS8Uint}, gpu.FormatD32Sfloat
	default:
		candidates, depthOnly = []gpu.Format{gpu.FormatD32SfloatS8Uint}, gpu.FormatD32Sfloat
		if !stencil {
			candidates = []gpu.Format{gpu.FormatD32Sfloat, gpu.FormatD32SfloatS8Uint}
		}
	}

	if f := d.findFormat(gpu.FormatUndefined, candidates, gpu.FormatFeatureDepthStencilAttachment); f != gpu.FormatUndefined {
		return f
	}
	if stencil {
		core.LogError("no stencil buffer support, trying to find depth only support")
		if f := d.findFormat(depthOnly, nil, gpu.FormatFeatureDepthStencilAttachment); f != gpu.FormatUndefined {
			return f
		}
	}
	core.LogError("no depth buffer support")
	return gpu.FormatUndefined
}
