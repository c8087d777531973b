package renderer

import (
	"bytes"
	"errors"
	"testing"

	"github.com/spaghettifunk/gensou/engine/core"
	"github.com/spaghettifunk/gensou/engine/renderer/gpu"
	"github.com/spaghettifunk/gensou/engine/renderer/software"
)

func newTestStack(t *testing.T, cfg software.AdapterConfig, framesInFlight uint32) (*Device, *CommandManager, *Allocator) {
	t.Helper()
	d := newDeviceWith(t, cfg)
	m, err := NewCommandManager(d, NewFrameCounter(framesInFlight))
	if err != nil {
		t.Fatalf("command manager: %v", err)
	}
	t.Cleanup(m.Clear)
	return d, m, NewAllocator(d, m)
}

func newTestSwapchain(t *testing.T, cfg software.AdapterConfig, framesInFlight uint32, window *software.Window) *Swapchain {
	t.Helper()
	d, _, a := newTestStack(t, cfg, framesInFlight)
	sc, err := NewSwapchain(software.New(cfg), a, NoShaders{})
	if err != nil {
		t.Fatalf("new swapchain: %v", err)
	}
	t.Cleanup(func() {
		_ = d.GPU().WaitIdle()
		sc.Terminate()
	})

	w, h := window.Size()
	extent := gpu.Extent2D{Width: w, Height: h}
	if err := sc.CreateSurface(window, DefaultSwapchainProperties(extent)); err != nil {
		t.Fatalf("create surface: %v", err)
	}
	if sc.State() != SwapchainSurfaceCreated {
		t.Fatalf("state = %s, want surface-created", sc.State())
	}
	if err := sc.Create(extent, true); err != nil {
		t.Fatalf("create: %v", err)
	}
	return sc
}

// renderFrame records a clear of the acquired image into the frame's render
// pool and presents it.
func renderFrame(t *testing.T, sc *Swapchain, color [4]float32) error {
	t.Helper()
	frame := sc.frames.Current()
	if _, err := sc.AcquireNextImage(nil); err != nil {
		return err
	}
	cmd, err := sc.cmds.RenderCmdBuffer(frame)
	if err != nil {
		t.Fatalf("render cmd: %v", err)
	}
	if err := cmd.Begin(true); err != nil {
		t.Fatalf("begin: %v", err)
	}
	cmd.BeginRenderPass(gpu.RenderPassBeginInfo{
		RenderPass:  sc.RenderPass(),
		Framebuffer: sc.CurrentFramebuffer(),
		Area:        gpu.Rect2D{Extent: sc.Extent()},
		ClearValues: []gpu.ClearValue{{Color: color}},
	})
	cmd.EndRenderPass()
	if err := cmd.End(); err != nil {
		t.Fatalf("end: %v", err)
	}
	return sc.Present(frame)
}

func TestSwapchainImageCount(t *testing.T) {
	cases := []struct {
		name          string
		minImages     uint32
		maxImages     uint32
		requested     uint32
		expectedCount uint32
	}{
		{"within range", 2, 8, 3, 3},
		{"unlimited maximum", 2, 0, 5, 5},
		{"raised to minimum", 3, 8, 2, 3},
		{"clamped to maximum", 1, 2, 3, 2},
		{"minimum equals maximum", 2, 2, 3, 2},
		{"single image surface", 1, 1, 3, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			caps := gpu.SurfaceCapabilities{MinImageCount: tc.minImages, MaxImageCount: tc.maxImages}
			if got := SwapchainImageCount(tc.requested, caps); got != tc.expectedCount {
				t.Fatalf("image count = %d, want %d", got, tc.expectedCount)
			}
		})
	}
}

func TestSwapchainCreateUsesClampedImageCount(t *testing.T) {
	cfg := software.DefaultAdapterConfig()
	cfg.SurfaceCapabilities.MinImageCount = 2
	cfg.SurfaceCapabilities.MaxImageCount = 2

	sc := newTestSwapchain(t, cfg, 3, software.NewWindow(320, 240))
	if sc.ImageCount() != 2 {
		t.Fatalf("image count = %d, want 2", sc.ImageCount())
	}
	if sc.frames.Count() != 2 {
		t.Fatalf("frames in flight = %d, want 2", sc.frames.Count())
	}
	if sc.State() != SwapchainReady {
		t.Fatalf("state = %s, want ready", sc.State())
	}
}

func TestSwapchainTooFewImagesIsFatal(t *testing.T) {
	cfg := software.DefaultAdapterConfig()
	cfg.SurfaceCapabilities.MinImageCount = 1
	cfg.SurfaceCapabilities.MaxImageCount = 1

	_, _, a := newTestStack(t, cfg, 3)
	calls := captureFatal(t)
	sc, err := NewSwapchain(software.New(cfg), a, nil)
	if err != nil {
		t.Fatalf("new swapchain: %v", err)
	}
	defer sc.Terminate()

	extent := gpu.Extent2D{Width: 64, Height: 64}
	if err := sc.CreateSurface(software.NewWindow(64, 64), DefaultSwapchainProperties(extent)); err != nil {
		t.Fatalf("create surface: %v", err)
	}
	err = sc.Create(extent, true)
	if !errors.Is(err, core.ErrTooFewSwapchainImages) {
		t.Fatalf("err = %v, want ErrTooFewSwapchainImages", err)
	}
	if *calls != 1 {
		t.Fatalf("fatal called %d times, want 1", *calls)
	}
}

func TestSwapchainPresentAdvancesFrame(t *testing.T) {
	sc := newTestSwapchain(t, software.DefaultAdapterConfig(), 3, software.NewWindow(16, 8))
	if sc.Extent() != (gpu.Extent2D{Width: 16, Height: 8}) {
		t.Fatalf("extent = %v", sc.Extent())
	}
	if sc.Format() != gpu.FormatB8G8R8A8Srgb || sc.ColorSpace() != gpu.ColorSpaceSrgbNonlinear {
		t.Fatalf("surface format = %s/%d", sc.Format(), sc.ColorSpace())
	}

	for i := uint32(1); i <= 3; i++ {
		if err := renderFrame(t, sc, [4]float32{1, 0, 0, 1}); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if got, want := sc.frames.Current(), i%3; got != want {
			t.Fatalf("after %d presents frame = %d, want %d", i, got, want)
		}
	}

	stats := softDevice(sc.device).Stats()
	if stats.Presents != 3 || stats.RenderPasses != 3 {
		t.Fatalf("presents = %d, render passes = %d, want 3 and 3", stats.Presents, stats.RenderPasses)
	}

	img := sc.Images()[0].Image().(*software.Image)
	if got := img.Layout(0, 0); got != gpu.ImageLayoutPresentSrc {
		t.Fatalf("layout = %v, want present src", got)
	}
	// BGRA storage of opaque red
	if px := img.Pixels(0, 0)[:4]; !bytes.Equal(px, []byte{0, 0, 255, 255}) {
		t.Fatalf("pixel = %v", px)
	}
}

func TestSwapchainOutOfDateRecreates(t *testing.T) {
	sc := newTestSwapchain(t, software.DefaultAdapterConfig(), 2, software.NewWindow(32, 32))
	old := sc.swapchain.(*software.Swapchain)

	softDevice(sc.device).InjectPresentResult(gpu.ErrorOutOfDate)
	err := renderFrame(t, sc, [4]float32{})
	if !errors.Is(err, core.ErrSwapchainOutOfDate) {
		t.Fatalf("err = %v, want ErrSwapchainOutOfDate", err)
	}
	if sc.frames.Current() != 0 {
		t.Fatalf("frame advanced on a failed present")
	}
	if !old.Destroyed() || sc.swapchain == gpu.Swapchain(old) {
		t.Fatal("swapchain was not recreated")
	}
	if sc.State() != SwapchainReady {
		t.Fatalf("state = %s, want ready", sc.State())
	}
	for i := uint32(0); i < sc.frames.Count(); i++ {
		if n := sc.cmds.RenderPool(i).RecordedCount(); n != 0 {
			t.Fatalf("render pool %d still holds %d commands", i, n)
		}
	}

	if err := renderFrame(t, sc, [4]float32{}); err != nil {
		t.Fatalf("present after recreation: %v", err)
	}
	if sc.frames.Current() != 1 {
		t.Fatalf("frame = %d, want 1", sc.frames.Current())
	}
}

func TestSwapchainSuboptimalPresentKeepsSwapchain(t *testing.T) {
	sc := newTestSwapchain(t, software.DefaultAdapterConfig(), 2, software.NewWindow(32, 32))
	old := sc.swapchain

	softDevice(sc.device).InjectPresentResult(gpu.Suboptimal)
	if err := renderFrame(t, sc, [4]float32{}); err == nil {
		t.Fatal("expected suboptimal present to be reported")
	}
	if sc.swapchain != old {
		t.Fatal("suboptimal present recreated the swapchain")
	}
	if sc.frames.Current() != 0 {
		t.Fatal("frame advanced on a failed present")
	}
}

func TestSwapchainResize(t *testing.T) {
	window := software.NewWindow(64, 64)
	sc := newTestSwapchain(t, software.DefaultAdapterConfig(), 2, window)
	old := sc.swapchain

	if err := sc.OnResize(0, 0); err != nil || sc.swapchain != old {
		t.Fatal("minimized resize should be ignored")
	}
	if err := sc.OnResize(64, 64); err != nil || sc.swapchain != old {
		t.Fatal("unchanged resize should be ignored")
	}

	window.Resize(128, 96)
	if err := sc.OnResize(128, 96); err != nil {
		t.Fatalf("resize: %v", err)
	}
	if sc.Extent() != (gpu.Extent2D{Width: 128, Height: 96}) {
		t.Fatalf("extent = %v", sc.Extent())
	}
	if sc.swapchain == old {
		t.Fatal("swapchain not recreated")
	}
}

func TestSwapchainExtentClampedAndPushedToWindow(t *testing.T) {
	cfg := software.DefaultAdapterConfig()
	cfg.SurfaceCapabilities.CurrentExtent = gpu.Extent2D{Width: ^uint32(0), Height: ^uint32(0)}
	cfg.SurfaceCapabilities.MaxImageExtent = gpu.Extent2D{Width: 4096, Height: 4096}

	window := software.NewWindow(5000, 100)
	sc := newTestSwapchain(t, cfg, 2, window)
	if sc.Extent() != (gpu.Extent2D{Width: 4096, Height: 100}) {
		t.Fatalf("extent = %v", sc.Extent())
	}
	if w, h := window.Size(); w != 4096 || h != 100 {
		t.Fatalf("window = %dx%d, want 4096x100", w, h)
	}
}

func TestSwapchainForcesVSyncWithoutNonVSyncMode(t *testing.T) {
	cfg := software.DefaultAdapterConfig()
	cfg.PresentModes = []gpu.PresentMode{gpu.PresentModeFifo}

	sc := newTestSwapchain(t, cfg, 2, software.NewWindow(8, 8))
	if sc.SupportsNonVSyncMode() {
		t.Fatal("fifo-only surface reported a non-vsync mode")
	}
	if err := sc.Create(sc.Extent(), false); err != nil {
		t.Fatalf("create: %v", err)
	}
	if !sc.VSync() || sc.PresentMode() != gpu.PresentModeFifo {
		t.Fatalf("vsync = %v, mode = %s", sc.VSync(), sc.PresentMode())
	}
}

func TestNegotiatePresentModes(t *testing.T) {
	cases := []struct {
		name      string
		modes     []gpu.PresentMode
		mailbox   bool
		wantVSync gpu.PresentMode
		wantFree  gpu.PresentMode
	}{
		{"fifo only", []gpu.PresentMode{gpu.PresentModeFifo}, true, gpu.PresentModeFifo, gpu.PresentModeFifo},
		{"mailbox preferred", []gpu.PresentMode{gpu.PresentModeFifo, gpu.PresentModeMailbox}, true, gpu.PresentModeMailbox, gpu.PresentModeFifo},
		{"mailbox not preferred", []gpu.PresentMode{gpu.PresentModeMailbox}, false, gpu.PresentModeFifo, gpu.PresentModeFifo},
		{"immediate beats relaxed", []gpu.PresentMode{gpu.PresentModeImmediate, gpu.PresentModeFifoRelaxed}, false, gpu.PresentModeFifo, gpu.PresentModeImmediate},
		{"relaxed after immediate", []gpu.PresentMode{gpu.PresentModeFifoRelaxed, gpu.PresentModeImmediate}, false, gpu.PresentModeFifo, gpu.PresentModeImmediate},
		{"relaxed only", []gpu.PresentMode{gpu.PresentModeFifo, gpu.PresentModeFifoRelaxed}, false, gpu.PresentModeFifo, gpu.PresentModeFifoRelaxed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			vsync, free := negotiatePresentModes(tc.modes, tc.mailbox)
			if vsync != tc.wantVSync || free != tc.wantFree {
				t.Fatalf("got %s/%s, want %s/%s", vsync, free, tc.wantVSync, tc.wantFree)
			}
		})
	}
}

func TestNegotiateCompositeAlpha(t *testing.T) {
	all := gpu.CompositeAlphaOpaque | gpu.CompositeAlphaPreMultiplied | gpu.CompositeAlphaInherit
	if got := negotiateCompositeAlpha(all, gpu.CompositeAlphaPreMultiplied); got != gpu.CompositeAlphaPreMultiplied {
		t.Fatalf("desired not honoured: %v", got)
	}
	if got := negotiateCompositeAlpha(gpu.CompositeAlphaOpaque|gpu.CompositeAlphaInherit, gpu.CompositeAlphaPostMultiplied); got != gpu.CompositeAlphaOpaque {
		t.Fatalf("opaque fallback: %v", got)
	}
	if got := negotiateCompositeAlpha(gpu.CompositeAlphaInherit, gpu.CompositeAlphaPostMultiplied); got != gpu.CompositeAlphaInherit {
		t.Fatalf("inherit fallback: %v", got)
	}
}

func TestNegotiateSurfaceFormat(t *testing.T) {
	srgb := func(f gpu.Format) gpu.SurfaceFormat {
		return gpu.SurfaceFormat{Format: f, ColorSpace: gpu.ColorSpaceSrgbNonlinear}
	}
	cases := []struct {
		name    string
		formats []gpu.SurfaceFormat
		desired gpu.Format
		want    gpu.Format
		ok      bool
	}{
		{"desired", []gpu.SurfaceFormat{srgb(gpu.FormatB8G8R8A8Srgb), srgb(gpu.FormatB8G8R8A8Unorm)}, gpu.FormatB8G8R8A8Unorm, gpu.FormatB8G8R8A8Unorm, true},
		{"rgba before bgra", []gpu.SurfaceFormat{srgb(gpu.FormatB8G8R8A8Srgb), srgb(gpu.FormatR8G8B8A8Srgb)}, gpu.FormatR16G16B16A16Sfloat, gpu.FormatR8G8B8A8Srgb, true},
		{"bgra", []gpu.SurfaceFormat{srgb(gpu.FormatB8G8R8A8Unorm), srgb(gpu.FormatB8G8R8A8Srgb)}, gpu.FormatR16G16B16A16Sfloat, gpu.FormatB8G8R8A8Srgb, true},
		{"wrong colour space", []gpu.SurfaceFormat{{Format: gpu.FormatB8G8R8A8Srgb, ColorSpace: gpu.ColorSpaceHDR10ST2084}}, gpu.FormatB8G8R8A8Srgb, gpu.FormatUndefined, false},
		{"none", []gpu.SurfaceFormat{srgb(gpu.FormatB8G8R8A8Unorm)}, gpu.FormatR8G8B8A8Srgb, gpu.FormatUndefined, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := negotiateSurfaceFormat(tc.formats, tc.desired)
			if ok != tc.ok || got.Format != tc.want {
				t.Fatalf("got %s (%v), want %s (%v)", got.Format, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestNoSurfaceFormatIsFatal(t *testing.T) {
	cfg := software.DefaultAdapterConfig()
	cfg.SurfaceFormats = []gpu.SurfaceFormat{{Format: gpu.FormatB8G8R8A8Unorm, ColorSpace: gpu.ColorSpaceSrgbNonlinear}}

	_, _, a := newTestStack(t, cfg, 2)
	calls := captureFatal(t)
	sc, err := NewSwapchain(software.New(cfg), a, nil)
	if err != nil {
		t.Fatalf("new swapchain: %v", err)
	}
	defer sc.Terminate()

	err = sc.CreateSurface(nil, DefaultSwapchainProperties(gpu.Extent2D{Width: 8, Height: 8}))
	if !errors.Is(err, core.ErrNoSurfaceFormat) || *calls != 1 {
		t.Fatalf("err = %v, fatal calls = %d", err, *calls)
	}
}

func TestScreenRenderPassDependencies(t *testing.T) {
	info := screenRenderPassInfo(gpu.FormatB8G8R8A8Srgb)
	if len(info.Attachments) != 1 {
		t.Fatalf("attachments = %d, want 1", len(info.Attachments))
	}
	a := info.Attachments[0]
	if a.LoadOp != gpu.AttachmentLoadOpClear || a.StoreOp != gpu.AttachmentStoreOpStore || a.FinalLayout != gpu.ImageLayoutPresentSrc {
		t.Fatalf("attachment = %+v", a)
	}
	if len(info.Dependencies) != 2 {
		t.Fatalf("dependencies = %d, want 2", len(info.Dependencies))
	}
	in, out := info.Dependencies[0], info.Dependencies[1]
	if in.SrcSubpass != gpu.SubpassExternal || in.DstAccess != gpu.AccessColorAttachmentWrite {
		t.Fatalf("external to subpass = %+v", in)
	}
	if out.DstSubpass != gpu.SubpassExternal || out.DstStage != gpu.PipelineStageFragmentShader || out.Flags != gpu.DependencyByRegion {
		t.Fatalf("subpass to external = %+v", out)
	}
}

func TestSwapchainSurfaceRecreationKeepsRenderPass(t *testing.T) {
	window := software.NewWindow(16, 16)
	sc := newTestSwapchain(t, software.DefaultAdapterConfig(), 2, window)
	rp, pipeline := sc.RenderPass(), sc.ScreenPipeline()
	acquired, complete := sc.ImageAcquiredSemaphore(), sc.RenderCompleteSemaphore()

	if err := sc.CreateSurface(window, DefaultSwapchainProperties(sc.Extent())); err != nil {
		t.Fatalf("create surface: %v", err)
	}
	if sc.RenderPass() != rp || sc.ScreenPipeline() != pipeline {
		t.Fatal("render pass rebuilt although the surface format did not change")
	}

	props := DefaultSwapchainProperties(sc.Extent())
	props.DesiredFormat = gpu.FormatB8G8R8A8Unorm
	if err := sc.CreateSurface(window, props); err != nil {
		t.Fatalf("create surface: %v", err)
	}
	if sc.RenderPass() == rp {
		t.Fatal("render pass not rebuilt for a new surface format")
	}
	if err := sc.Create(sc.Extent(), true); err != nil {
		t.Fatalf("create: %v", err)
	}
	if sc.ImageAcquiredSemaphore() == acquired || sc.RenderCompleteSemaphore() == complete {
		t.Fatal("present semaphores reused across swapchain recreation")
	}
	if !acquired.(*software.Semaphore).Destroyed() {
		t.Fatal("old image acquired semaphore not destroyed")
	}
}

func TestSwapchainRejectedSubmitSkipsPresent(t *testing.T) {
	sc := newTestSwapchain(t, software.DefaultAdapterConfig(), 2, software.NewWindow(16, 8))
	frame := sc.frames.Current()
	if _, err := sc.AcquireNextImage(nil); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	cmd, err := sc.cmds.RenderCmdBuffer(frame)
	if err != nil {
		t.Fatalf("render cmd: %v", err)
	}
	if err := cmd.Begin(true); err != nil {
		t.Fatalf("begin: %v", err)
	}
	// left open, so the queue refuses the batch
	if err := sc.Present(frame); err == nil {
		t.Fatal("present after a rejected submit succeeded")
	}
	if got := softDevice(sc.device).Stats().Presents; got != 0 {
		t.Fatalf("presents = %d, want 0", got)
	}
	if sc.frames.Current() != frame {
		t.Fatalf("frame advanced to %d", sc.frames.Current())
	}
	if sc.State() != SwapchainReady {
		t.Fatalf("state = %s, want ready", sc.State())
	}
	pool := sc.cmds.RenderPool(frame)
	if pool.FencesInUse() != 0 {
		t.Fatalf("fences in use = %d", pool.FencesInUse())
	}
	resetWithin(t, func() error { return sc.cmds.ResetRenderPool(frame) })
}

func TestSwapchainResizeUsesRenderWait(t *testing.T) {
	window := software.NewWindow(16, 8)
	sc := newTestSwapchain(t, software.DefaultAdapterConfig(), 2, window)
	waits := 0
	sc.SetRenderWait(func() error {
		waits++
		return sc.cmds.WaitAllRenderCmds()
	})

	window.Resize(32, 16)
	if err := sc.OnResize(32, 16); err != nil {
		t.Fatalf("resize: %v", err)
	}
	if waits != 1 {
		t.Fatalf("render waits = %d, want 1", waits)
	}
	if sc.Extent() != (gpu.Extent2D{Width: 32, Height: 16}) {
		t.Fatalf("extent = %v", sc.Extent())
	}
}
