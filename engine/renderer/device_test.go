package renderer

import (
	"testing"

	"github.com/spaghettifunk/gensou/engine/core"
	"github.com/spaghettifunk/gensou/engine/renderer/gpu"
	"github.com/spaghettifunk/gensou/engine/renderer/software"
)

func TestSingleGraphicsFamilyAliasesAllRoles(t *testing.T) {
	cfg := software.DefaultAdapterConfig()
	cfg.QueueFamilies = []gpu.QueueFamily{{Flags: gpu.QueueGraphics, Count: 1}}
	d := newDeviceWith(t, cfg)

	if !d.IsComputeQueueSameAsGraphics() {
		t.Errorf("compute should alias graphics")
	}
	if !d.IsTransferQueueSameAsGraphics() {
		t.Errorf("transfer should alias graphics")
	}
	if d.HasDedicatedComputeFamily() || d.HasDedicatedTransferFamily() {
		t.Errorf("single family reported a dedicated compute or transfer family")
	}
	mu := d.QueueMutex(QueueGraphics)
	for _, role := range []QueueRole{QueueCompute, QueueTransfer, QueuePresent} {
		if d.QueueMutex(role) != mu {
			t.Errorf("%s role uses a different mutex than graphics", role)
		}
		if d.Queue(role) != d.Queue(QueueGraphics) {
			t.Errorf("%s role uses a different queue than graphics", role)
		}
	}
}

func TestQueueFallbackLadder(t *testing.T) {
	type slot struct{ family, index uint32 }
	cases := []struct {
		name       string
		families   []gpu.QueueFamily
		compute    slot
		transfer   slot
		computeG   bool
		transferG  bool
		transferC  bool
		sameMutexT QueueRole
	}{
		{
			name:       "dedicated families",
			families:   software.DefaultAdapterConfig().QueueFamilies,
			compute:    slot{1, 0},
			transfer:   slot{2, 0},
			sameMutexT: QueueTransfer,
		},
		{
			name:       "three graphics queues",
			families:   []gpu.QueueFamily{{Flags: gpu.QueueGraphics | gpu.QueueCompute | gpu.QueueTransfer, Count: 3}},
			compute:    slot{0, 1},
			transfer:   slot{0, 2},
			sameMutexT: QueueTransfer,
		},
		{
			name:       "two graphics queues",
			families:   []gpu.QueueFamily{{Flags: gpu.QueueGraphics | gpu.QueueCompute | gpu.QueueTransfer, Count: 2}},
			compute:    slot{0, 1},
			transfer:   slot{0, 1},
			transferC:  true,
			sameMutexT: QueueCompute,
		},
		{
			name: "compute family with one queue",
			families: []gpu.QueueFamily{
				{Flags: gpu.QueueGraphics, Count: 1},
				{Flags: gpu.QueueCompute | gpu.QueueTransfer, Count: 1},
			},
			compute:    slot{1, 0},
			transfer:   slot{1, 0},
			transferC:  true,
			sameMutexT: QueueCompute,
		},
		{
			name: "compute family with two queues",
			families: []gpu.QueueFamily{
				{Flags: gpu.QueueGraphics, Count: 1},
				{Flags: gpu.QueueCompute | gpu.QueueTransfer, Count: 2},
			},
			compute:    slot{1, 0},
			transfer:   slot{1, 1},
			sameMutexT: QueueTransfer,
		},
		{
			name: "second graphics queue preferred over compute",
			families: []gpu.QueueFamily{
				{Flags: gpu.QueueGraphics | gpu.QueueTransfer, Count: 2},
				{Flags: gpu.QueueCompute, Count: 2},
			},
			compute:    slot{1, 0},
			transfer:   slot{0, 1},
			sameMutexT: QueueTransfer,
		},
		{
			name:       "single queue",
			families:   []gpu.QueueFamily{{Flags: gpu.QueueGraphics | gpu.QueueCompute, Count: 1}},
			compute:    slot{0, 0},
			transfer:   slot{0, 0},
			computeG:   true,
			transferG:  true,
			transferC:  true,
			sameMutexT: QueueGraphics,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := software.DefaultAdapterConfig()
			cfg.QueueFamilies = tc.families
			d := newDeviceWith(t, cfg)

			if got := (slot{d.QueueFamily(QueueCompute), d.QueueIndex(QueueCompute)}); got != tc.compute {
				t.Errorf("compute = %+v, want %+v", got, tc.compute)
			}
			if got := (slot{d.QueueFamily(QueueTransfer), d.QueueIndex(QueueTransfer)}); got != tc.transfer {
				t.Errorf("transfer = %+v, want %+v", got, tc.transfer)
			}
			if d.IsComputeQueueSameAsGraphics() != tc.computeG {
				t.Errorf("compute shared with graphics = %v", d.IsComputeQueueSameAsGraphics())
			}
			if d.IsTransferQueueSameAsGraphics() != tc.transferG {
				t.Errorf("transfer shared with graphics = %v", d.IsTransferQueueSameAsGraphics())
			}
			if d.IsTransferQueueSameAsCompute() != tc.transferC {
				t.Errorf("transfer shared with compute = %v", d.IsTransferQueueSameAsCompute())
			}
			if d.QueueMutex(QueueTransfer) != d.QueueMutex(tc.sameMutexT) {
				t.Errorf("transfer mutex is not the %s mutex", tc.sameMutexT)
			}
		})
	}
}

func TestMissingDynamicIndexingIsFatal(t *testing.T) {
	calls := captureFatal(t)
	cfg := software.DefaultAdapterConfig()
	cfg.Features.ShaderSampledImageArrayDynamicIndexing = false

	if _, err := NewDevice(software.New(cfg), DeviceOptions{}); err == nil {
		t.Fatalf("expected an error")
	}
	if *calls != 1 {
		t.Fatalf("fatal called %d times", *calls)
	}
}

func TestNoAdapterIsFatal(t *testing.T) {
	calls := captureFatal(t)
	cfg := software.DefaultAdapterConfig()
	cfg.QueueFamilies = []gpu.QueueFamily{{Flags: gpu.QueueTransfer, Count: 1}}

	if _, err := NewDevice(software.New(cfg), DeviceOptions{}); err == nil {
		t.Fatalf("expected an error")
	}
	if *calls != 1 {
		t.Fatalf("fatal called %d times", *calls)
	}
}

func TestOptionalFeaturesDegrade(t *testing.T) {
	cfg := software.DefaultAdapterConfig()
	cfg.Features.SamplerAnisotropy = false
	cfg.LazyAllocation = false
	d := newDeviceWith(t, cfg)

	if d.SupportsAnisotropy() {
		t.Errorf("anisotropy should be off")
	}
	if d.SupportsASTC() {
		t.Errorf("ASTC should be off")
	}
	if d.SupportsLazyAllocation() {
		t.Errorf("lazy allocation should be off")
	}
}

func TestCapabilityQueries(t *testing.T) {
	d := newTestDevice(t)

	if !d.HasDedicatedComputeFamily() || !d.HasDedicatedTransferFamily() {
		t.Errorf("dedicated families = %v/%v, want both", d.HasDedicatedComputeFamily(), d.HasDedicatedTransferFamily())
	}
	if !d.SupportsWideLines() {
		t.Errorf("requested wide lines not enabled")
	}
	if d.SupportsBufferDeviceAddress() {
		t.Errorf("buffer device address enabled without being requested")
	}
	if !d.FormatSupportsBlitSrc(gpu.FormatR8G8B8A8Srgb) || !d.FormatSupportsBlitDst(gpu.FormatR8G8B8A8Srgb) {
		t.Errorf("colour format should blit")
	}
	if d.FormatSupportsBlitSrc(gpu.FormatD32Sfloat) {
		t.Errorf("depth format should not blit")
	}
}

func TestMultisampleClamp(t *testing.T) {
	d := newTestDevice(t)
	if d.MaxMultisampleCount() != gpu.SampleCount8 {
		t.Fatalf("max samples = %d", d.MaxMultisampleCount())
	}
	d.SetMultisampleCount(64)
	if d.MultisampleCount() != gpu.SampleCount8 {
		t.Errorf("clamped samples = %d", d.MultisampleCount())
	}
	d.SetMultisampleCount(4)
	if d.MultisampleCount() != gpu.SampleCount4 {
		t.Errorf("samples = %d", d.MultisampleCount())
	}
}

func TestPresentQueueSelection(t *testing.T) {
	cfg := software.DefaultAdapterConfig()
	cfg.PresentFamilies = []uint32{1}
	d := newDeviceWith(t, cfg)
	drv := software.New(cfg)
	s, _ := drv.CreateSurface(nil)

	if err := d.SelectPresentQueue(s); err != nil {
		t.Fatalf("select present queue: %v", err)
	}
	if d.QueueFamily(QueuePresent) != d.QueueFamily(QueueCompute) {
		t.Errorf("present family = %d", d.QueueFamily(QueuePresent))
	}
	if d.QueueMutex(QueuePresent) != d.QueueMutex(QueueCompute) {
		t.Errorf("present should share the compute mutex")
	}
}

func TestNoPresentQueueIsFatal(t *testing.T) {
	cfg := software.DefaultAdapterConfig()
	cfg.PresentFamilies = []uint32{}
	d := newDeviceWith(t, cfg)
	calls := captureFatal(t)
	s, _ := software.New(cfg).CreateSurface(nil)

	if err := d.SelectPresentQueue(s); err == nil {
		t.Fatalf("expected an error")
	}
	if *calls != 1 {
		t.Fatalf("fatal called %d times", *calls)
	}
}

func withFormats(formats map[gpu.Format]gpu.FormatFeatureFlags) software.AdapterConfig {
	cfg := software.DefaultAdapterConfig()
	cfg.Formats = formats
	return cfg
}

func TestFormatFallbackSearch(t *testing.T) {
	const blend = gpu.FormatFeatureColorAttachmentBlend
	const linear = gpu.FormatFeatureSampledImageFilterLinear
	const blit = gpu.FormatFeatureBlitSrc | gpu.FormatFeatureBlitDst

	cases := []struct {
		name  string
		only  gpu.Format
		flags gpu.FormatFeatureFlags
		query func(d *Device) gpu.Format
	}{
		{"hdr blend preferred", gpu.FormatB8G8R8A8Unorm, blend, func(d *Device) gpu.Format { return d.HDRAttachmentBlendFormat(gpu.FormatB8G8R8A8Unorm) }},
		{"hdr blend first fallback", gpu.FormatR32G32B32A32Sfloat, blend, func(d *Device) gpu.Format { return d.HDRAttachmentBlendFormat(gpu.FormatB8G8R8A8Unorm) }},
		{"hdr blend second fallback", gpu.FormatR16G16B16A16Sfloat, blend, func(d *Device) gpu.Format { return d.HDRAttachmentBlendFormat(gpu.FormatB8G8R8A8Unorm) }},
		{"hdr linear second fallback", gpu.FormatR16G16B16A16Sfloat, linear, func(d *Device) gpu.Format { return d.HDRLinearSampleFormat(gpu.FormatUndefined) }},
		{"hdr linear blit first fallback", gpu.FormatR32G32B32A32Sfloat, linear | blit, func(d *Device) gpu.Format { return d.HDRLinearSampleBlitFormat(gpu.FormatUndefined) }},
		{"color blit unorm", gpu.FormatR8G8B8A8Unorm, blit, func(d *Device) gpu.Format { return d.ColorBlitFormat(gpu.FormatUndefined) }},
		{"storage half float", gpu.FormatR16G16B16A16Sfloat, gpu.FormatFeatureStorageImage, func(d *Device) gpu.Format { return d.StorageImageFormat(gpu.FormatUndefined) }},
		{"depth 16", gpu.FormatD16Unorm, gpu.FormatFeatureDepthStencilAttachment, func(d *Device) gpu.Format { return d.DepthFormat(16, false) }},
		{"depth 16 stencil", gpu.FormatD16UnormS8Uint, gpu.FormatFeatureDepthStencilAttachment, func(d *Device) gpu.Format { return d.DepthFormat(16, true) }},
		{"depth 16 stencil fallback", gpu.FormatD16Unorm, gpu.FormatFeatureDepthStencilAttachment, func(d *Device) gpu.Format { return d.DepthFormat(16, true) }},
		{"depth 24", gpu.FormatD24UnormS8Uint, gpu.FormatFeatureDepthStencilAttachment, func(d *Device) gpu.Format { return d.DepthFormat(24, true) }},
		{"depth 24 stencil fallback", gpu.FormatD32Sfloat, gpu.FormatFeatureDepthStencilAttachment, func(d *Device) gpu.Format { return d.DepthFormat(24, true) }},
		{"depth 32 stencil", gpu.FormatD32SfloatS8Uint, gpu.FormatFeatureDepthStencilAttachment, func(d *Device) gpu.Format { return d.DepthFormat(32, true) }},
		{"depth 32 stencil fallback", gpu.FormatD32Sfloat, gpu.FormatFeatureDepthStencilAttachment, func(d *Device) gpu.Format { return d.DepthFormat(32, true) }},
		{"depth 16 only stencil variant", gpu.FormatD16UnormS8Uint, gpu.FormatFeatureDepthStencilAttachment, func(d *Device) gpu.Format { return d.DepthFormat(16, false) }},
		{"depth 32 only stencil variant", gpu.FormatD32SfloatS8Uint, gpu.FormatFeatureDepthStencilAttachment, func(d *Device) gpu.Format { return d.DepthFormat(32, false) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := newDeviceWith(t, withFormats(map[gpu.Format]gpu.FormatFeatureFlags{tc.only: tc.flags}))
			if got := tc.query(d); got != tc.only {
				t.Fatalf("got %s, want %s", got, tc.only)
			}
		})
	}
}

func TestFormatSearchExhausted(t *testing.T) {
	d := newDeviceWith(t, withFormats(map[gpu.Format]gpu.FormatFeatureFlags{}))

	queries := map[string]gpu.Format{
		"hdr blend":       d.HDRAttachmentBlendFormat(gpu.FormatR8G8B8A8Unorm),
		"hdr linear":      d.HDRLinearSampleFormat(gpu.FormatUndefined),
		"hdr linear blit": d.HDRLinearSampleBlitFormat(gpu.FormatUndefined),
		"color blit":      d.ColorBlitFormat(gpu.FormatUndefined),
		"storage":         d.StorageImageFormat(gpu.FormatUndefined),
		"depth 16":        d.DepthFormat(16, true),
		"depth 24":        d.DepthFormat(24, false),
		"depth 32":        d.DepthFormat(32, true),
	}
	for name, got := range queries {
		if got != gpu.FormatUndefined {
			t.Errorf("%s = %s, want undefined", name, got)
		}
	}
}

func TestDefaultDepthFormatPrefersDepthOnly(t *testing.T) {
	d := newTestDevice(t)
	if got := d.DepthFormat(32, false); got != gpu.FormatD32Sfloat {
		t.Errorf("depth 32 = %s", got)
	}
	if got := d.DepthFormat(16, true); got != gpu.FormatD16Unorm {
		t.Errorf("depth 16 stencil = %s, want the D16 fallback", got)
	}
}

func TestCheckBroadcastsGPUErrors(t *testing.T) {
	d := newTestDevice(t)
	var got []core.GPUErrorEvent
	d.Events().GPUError.Subscribe(func(e core.GPUErrorEvent) { got = append(got, e) })

	if err := d.check(gpu.Success, "ok"); err != nil {
		t.Fatalf("success produced %v", err)
	}
	if err := d.check(gpu.ErrorDeviceLost, "submit"); err == nil {
		t.Fatalf("device lost produced no error")
	}
	if len(got) != 1 || got[0].Result != int32(gpu.ErrorDeviceLost) || got[0].Context != "submit" {
		t.Fatalf("events = %+v", got)
	}
}
