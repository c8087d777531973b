// Package software is a headless driver that implements the gpu object model
// in plain Go memory. Submissions execute synchronously on the calling
// goroutine and fences signal before Submit returns. It backs the test suite
// and the --headless run mode.
package software

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/spaghettifunk/gensou/engine/renderer/gpu"
)

// AdapterConfig describes the capabilities a software adapter reports.
type AdapterConfig struct {
	Properties          gpu.AdapterProperties
	Features            gpu.AdapterFeatures
	QueueFamilies       []gpu.QueueFamily
	Formats             map[gpu.Format]gpu.FormatFeatureFlags
	PresentFamilies     []uint32
	SurfaceCapabilities gpu.SurfaceCapabilities
	SurfaceFormats      []gpu.SurfaceFormat
	PresentModes        []gpu.PresentMode
	LazyAllocation      bool
}

const (
	colorFeatures = gpu.FormatFeatureSampledImage | gpu.FormatFeatureSampledImageFilterLinear |
		gpu.FormatFeatureColorAttachment | gpu.FormatFeatureColorAttachmentBlend |
		gpu.FormatFeatureBlitSrc | gpu.FormatFeatureBlitDst |
		gpu.FormatFeatureTransferSrc | gpu.FormatFeatureTransferDst
	depthFeatures = gpu.FormatFeatureDepthStencilAttachment | gpu.FormatFeatureSampledImage |
		gpu.FormatFeatureTransferSrc | gpu.FormatFeatureTransferDst
)

// DefaultAdapterConfig returns a desktop-class adapter with dedicated compute
// and transfer families.
func DefaultAdapterConfig() AdapterConfig {
	return AdapterConfig{
		Properties: gpu.AdapterProperties{
			Name:              "Gensou Software Rasterizer",
			VendorID:          0x10005,
			DeviceID:          0x0001,
			DriverVersion:     1,
			APIVersion:        1<<22 | 3<<12,
			PipelineCacheUUID: [16]byte{'g', 'e', 'n', 's', 'o', 'u', '-', 's', 'o', 'f', 't', 'w', 'a', 'r', 'e', 1},
			Limits: gpu.Limits{
				MaxImageDimension2D:             16384,
				MaxPushConstantsSize:            128,
				MinUniformBufferOffsetAlignment: 64,
				MinStorageBufferOffsetAlignment: 64,
				NonCoherentAtomSize:             64,
				MaxSamplerAnisotropy:            16,
				MaxSamplerLodBias:               15,
				LineWidthRange:                  [2]float32{1, 8},
				FramebufferColorSampleCounts:    gpu.SampleCount1 | gpu.SampleCount2 | gpu.SampleCount4 | gpu.SampleCount8,
				FramebufferDepthSampleCounts:    gpu.SampleCount1 | gpu.SampleCount2 | gpu.SampleCount4 | gpu.SampleCount8,
			},
		},
		Features: gpu.AdapterFeatures{
			ShaderSampledImageArrayDynamicIndexing: true,
			SamplerAnisotropy:                      true,
			WideLines:                              true,
			FillModeNonSolid:                       true,
		},
		QueueFamilies: []gpu.QueueFamily{
			{Flags: gpu.QueueGraphics | gpu.QueueCompute | gpu.QueueTransfer, Count: 4},
			{Flags: gpu.QueueCompute | gpu.QueueTransfer, Count: 2},
			{Flags: gpu.QueueTransfer, Count: 1},
		},
		Formats: map[gpu.Format]gpu.FormatFeatureFlags{
			gpu.FormatR8G8B8A8Unorm:      colorFeatures | gpu.FormatFeatureStorageImage,
			gpu.FormatR8G8B8A8Srgb:       colorFeatures,
			gpu.FormatB8G8R8A8Unorm:      colorFeatures,
			gpu.FormatB8G8R8A8Srgb:       colorFeatures,
			gpu.FormatR16G16B16A16Sfloat: colorFeatures | gpu.FormatFeatureStorageImage,
			gpu.FormatR32G32B32A32Sfloat: gpu.FormatFeatureSampledImage | gpu.FormatFeatureColorAttachment | gpu.FormatFeatureStorageImage,
			gpu.FormatD16Unorm:           depthFeatures,
			gpu.FormatD32Sfloat:          depthFeatures,
			gpu.FormatD24UnormS8Uint:     depthFeatures,
			gpu.FormatD32SfloatS8Uint:    depthFeatures,
		},
		SurfaceCapabilities: gpu.SurfaceCapabilities{
			MinImageCount:           2,
			MaxImageCount:           8,
			CurrentExtent:           gpu.Extent2D{Width: 1280, Height: 720},
			MinImageExtent:          gpu.Extent2D{Width: 1, Height: 1},
			MaxImageExtent:          gpu.Extent2D{Width: 16384, Height: 16384},
			SupportedCompositeAlpha: gpu.CompositeAlphaOpaque | gpu.CompositeAlphaInherit,
			CurrentTransform:        gpu.SurfaceTransformIdentity,
			SupportedUsage:          gpu.ImageUsageColorAttachment | gpu.ImageUsageTransferDst | gpu.ImageUsageTransferSrc,
		},
		SurfaceFormats: []gpu.SurfaceFormat{
			{Format: gpu.FormatB8G8R8A8Srgb, ColorSpace: gpu.ColorSpaceSrgbNonlinear},
			{Format: gpu.FormatR8G8B8A8Srgb, ColorSpace: gpu.ColorSpaceSrgbNonlinear},
			{Format: gpu.FormatB8G8R8A8Unorm, ColorSpace: gpu.ColorSpaceSrgbNonlinear},
		},
		PresentModes:   []gpu.PresentMode{gpu.PresentModeFifo, gpu.PresentModeMailbox, gpu.PresentModeImmediate},
		LazyAllocation: true,
	}
}

// Driver implements gpu.Driver.
type Driver struct {
	mu         sync.Mutex
	adapters   []*Adapter
	terminated bool
}

// New creates a driver exposing one adapter per config. Without configs it
// exposes a single default adapter.
func New(configs ...AdapterConfig) *Driver {
	if len(configs) == 0 {
		configs = []AdapterConfig{DefaultAdapterConfig()}
	}
	d := &Driver{}
	for _, c := range configs {
		d.adapters = append(d.adapters, &Adapter{config: c})
	}
	return d
}

func (d *Driver) Name() string {
	return "software"
}

func (d *Driver) Adapters() ([]gpu.Adapter, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.terminated {
		return nil, errors.New("software driver terminated")
	}
	out := make([]gpu.Adapter, len(d.adapters))
	for i, a := range d.adapters {
		out[i] = a
	}
	return out, nil
}

// Window is a headless stand-in for a platform window.
type Window struct {
	mu            sync.Mutex
	width, height uint32
}

func NewWindow(width, height uint32) *Window {
	return &Window{width: width, height: height}
}

// Resize changes the size reported as the surface's current extent.
func (w *Window) Resize(width, height uint32) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.width, w.height = width, height
}

func (w *Window) Size() (uint32, uint32) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.width, w.height
}

// Surface implements gpu.Surface.
type Surface struct {
	window    *Window
	destroyed bool
}

func (s *Surface) Destroy() {
	s.destroyed = true
}

func (s *Surface) Destroyed() bool {
	return s.destroyed
}

// CreateSurface accepts a *Window or nil.
func (d *Driver) CreateSurface(window any) (gpu.Surface, error) {
	switch w := window.(type) {
	case nil:
		return &Surface{}, nil
	case *Window:
		return &Surface{window: w}, nil
	}
	return nil, errors.Errorf("software driver cannot present to %T", window)
}

func (d *Driver) RequiredInstanceExtensions() []string {
	return nil
}

func (d *Driver) Terminate() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.terminated = true
}

// Adapter implements gpu.Adapter.
type Adapter struct {
	config AdapterConfig
}

func (a *Adapter) Properties() gpu.AdapterProperties {
	return a.config.Properties
}

func (a *Adapter) Features() gpu.AdapterFeatures {
	return a.config.Features
}

func (a *Adapter) QueueFamilies() []gpu.QueueFamily {
	return append([]gpu.QueueFamily(nil), a.config.QueueFamilies...)
}

func (a *Adapter) SupportsLazyAllocation() bool {
	return a.config.LazyAllocation
}

func (a *Adapter) FormatFeatures(f gpu.Format) gpu.FormatFeatureFlags {
	return a.config.Formats[f]
}

func (a *Adapter) SurfaceSupport(family uint32, s gpu.Surface) (bool, error) {
	if int(family) >= len(a.config.QueueFamilies) {
		return false, errors.Errorf("queue family %d out of range", family)
	}
	if a.config.PresentFamilies == nil {
		return true, nil
	}
	for _, f := range a.config.PresentFamilies {
		if f == family {
			return true, nil
		}
	}
	return false, nil
}

func (a *Adapter) SurfaceCapabilities(s gpu.Surface) (gpu.SurfaceCapabilities, error) {
	caps := a.config.SurfaceCapabilities
	if ss, ok := s.(*Surface); ok && ss.window != nil && caps.CurrentExtent.Width != ^uint32(0) {
		w, h := ss.window.Size()
		caps.CurrentExtent = gpu.Extent2D{Width: w, Height: h}
	}
	return caps, nil
}

func (a *Adapter) SurfaceFormats(s gpu.Surface) ([]gpu.SurfaceFormat, error) {
	return append([]gpu.SurfaceFormat(nil), a.config.SurfaceFormats...), nil
}

func (a *Adapter) PresentModes(s gpu.Surface) ([]gpu.PresentMode, error) {
	return append([]gpu.PresentMode(nil), a.config.PresentModes...), nil
}

func (a *Adapter) CreateDevice(info gpu.DeviceInfo) (gpu.Device, error) {
	fams := a.config.QueueFamilies
	for _, q := range info.Queues {
		if int(q.Family) >= len(fams) || q.Count > fams[q.Family].Count {
			return nil, errors.Wrapf(gpu.ErrorInitializationFailed.Err(), "queue request %+v", q)
		}
	}
	have, want := a.config.Features, info.Features
	if (want.SamplerAnisotropy && !have.SamplerAnisotropy) ||
		(want.TextureCompressionASTC && !have.TextureCompressionASTC) ||
		(want.BufferDeviceAddress && !have.BufferDeviceAddress) ||
		(want.WideLines && !have.WideLines) ||
		(want.ShaderSampledImageArrayDynamicIndexing && !have.ShaderSampledImageArrayDynamicIndexing) {
		return nil, gpu.ErrorFeatureNotPresent.Err()
	}
	return newDevice(a, info), nil
}
