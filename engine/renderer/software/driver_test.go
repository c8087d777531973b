package software

import (
	"bytes"
	"testing"

	"github.com/spaghettifunk/gensou/engine/renderer/gpu"
)

func newTestDevice(t *testing.T) (*Adapter, *Device) {
	t.Helper()
	adapters, err := New().Adapters()
	if err != nil {
		t.Fatalf("adapters: %v", err)
	}
	a := adapters[0].(*Adapter)
	dev, err := a.CreateDevice(gpu.DeviceInfo{Queues: []gpu.QueueRequest{{Family: 0, Count: 1}}})
	if err != nil {
		t.Fatalf("create device: %v", err)
	}
	return a, dev.(*Device)
}

func TestDeviceRejectsUnknownQueues(t *testing.T) {
	adapters, _ := New().Adapters()
	_, err := adapters[0].CreateDevice(gpu.DeviceInfo{Queues: []gpu.QueueRequest{{Family: 0, Count: 9}}})
	if err == nil {
		t.Fatalf("expected an error for too many queues")
	}
}

func TestFenceWait(t *testing.T) {
	_, dev := newTestDevice(t)
	f, _ := dev.CreateFence(true)
	if r := dev.WaitForFences([]gpu.Fence{f}, true, gpu.WaitForever); r != gpu.Success {
		t.Fatalf("wait on signaled fence = %s", r)
	}
	dev.ResetFences([]gpu.Fence{f})
	if f.Status() != gpu.NotReady {
		t.Fatalf("reset fence still signaled")
	}
	if r := dev.WaitForFences([]gpu.Fence{f}, true, 1000); r != gpu.Timeout {
		t.Fatalf("wait on unsignaled fence = %s", r)
	}
}

func TestSubmitCopiesBuffer(t *testing.T) {
	_, dev := newTestDevice(t)
	src, _ := dev.CreateBuffer(gpu.BufferInfo{Size: 16, Usage: gpu.BufferUsageTransferSrc}, gpu.MemoryUsageCPUToGPU)
	dst, _ := dev.CreateBuffer(gpu.BufferInfo{Size: 16, Usage: gpu.BufferUsageTransferDst}, gpu.MemoryUsageGPUToCPU)
	m, err := src.Map()
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	copy(m, []byte("0123456789abcdef"))

	pool, _ := dev.CreateCommandPool(0, true)
	cmd, _ := pool.Allocate()
	cmd.Begin(true)
	cmd.CopyBuffer(src, dst, []gpu.BufferCopy{{SrcOffset: 4, DstOffset: 0, Size: 8}})
	cmd.End()

	fence, _ := dev.CreateFence(false)
	if r := dev.Queue(0, 0).Submit([]gpu.SubmitInfo{{CommandBuffers: []gpu.CommandBuffer{cmd}}}, fence); r != gpu.Success {
		t.Fatalf("submit = %s", r)
	}
	if fence.Status() != gpu.Success {
		t.Fatalf("fence not signaled after submit")
	}
	out, _ := dst.Map()
	if !bytes.Equal(out[:8], []byte("456789ab")) {
		t.Fatalf("copied bytes = %q", out[:8])
	}
}

func TestDeviceLocalBufferCannotMap(t *testing.T) {
	_, dev := newTestDevice(t)
	b, _ := dev.CreateBuffer(gpu.BufferInfo{Size: 8}, gpu.MemoryUsageGPUOnly)
	if _, err := b.Map(); err == nil {
		t.Fatalf("mapping device-local memory should fail")
	}
}

func TestSubmitRejectsUnendedBuffer(t *testing.T) {
	_, dev := newTestDevice(t)
	pool, _ := dev.CreateCommandPool(0, false)
	cmd, _ := pool.Allocate()
	cmd.Begin(true)
	if r := dev.Queue(0, 0).Submit([]gpu.SubmitInfo{{CommandBuffers: []gpu.CommandBuffer{cmd}}}, nil); r == gpu.Success {
		t.Fatalf("submitting a recording buffer succeeded")
	}
}

func TestBlitHalvesImage(t *testing.T) {
	_, dev := newTestDevice(t)
	img, err := dev.CreateImage(gpu.ImageInfo{
		Extent:    gpu.Extent3D{Width: 4, Height: 4, Depth: 1},
		Format:    gpu.FormatR8G8B8A8Unorm,
		MipLevels: 2,
	}, gpu.MemoryUsageGPUOnly)
	if err != nil {
		t.Fatalf("create image: %v", err)
	}
	sw := img.(*Image)
	for i := range sw.levels[0][0] {
		sw.levels[0][0][i] = 200
	}

	pool, _ := dev.CreateCommandPool(0, true)
	cmd, _ := pool.Allocate()
	cmd.Begin(true)
	cmd.BlitImage(img, gpu.ImageLayoutTransferSrcOptimal, img, gpu.ImageLayoutTransferDstOptimal, []gpu.ImageBlit{{
		SrcMip:     0,
		SrcOffsets: [2]gpu.Offset3D{{}, {X: 4, Y: 4, Z: 1}},
		DstMip:     1,
		DstOffsets: [2]gpu.Offset3D{{}, {X: 2, Y: 2, Z: 1}},
		LayerCount: 1,
	}}, gpu.FilterNearest)
	cmd.End()
	dev.Queue(0, 0).Submit([]gpu.SubmitInfo{{CommandBuffers: []gpu.CommandBuffer{cmd}}}, nil)

	px := sw.Pixels(0, 1)
	if len(px) != 16 {
		t.Fatalf("mip 1 size = %d, want 16", len(px))
	}
	for i, b := range px {
		if b != 200 {
			t.Fatalf("mip 1 byte %d = %d, want 200", i, b)
		}
	}
}

func TestPresentInjectedResult(t *testing.T) {
	a, dev := newTestDevice(t)
	surface, _ := New().CreateSurface(NewWindow(64, 64))
	caps, _ := a.SurfaceCapabilities(surface)
	if caps.CurrentExtent != (gpu.Extent2D{Width: 64, Height: 64}) {
		t.Fatalf("current extent = %+v", caps.CurrentExtent)
	}
	sc, err := dev.CreateSwapchain(gpu.SwapchainInfo{
		Surface:       surface,
		MinImageCount: 2,
		Format:        gpu.FormatB8G8R8A8Srgb,
		Extent:        caps.CurrentExtent,
	})
	if err != nil {
		t.Fatalf("create swapchain: %v", err)
	}
	q := dev.Queue(0, 0)
	dev.InjectPresentResult(gpu.ErrorOutOfDate)
	if r := q.Present(gpu.PresentInfo{Swapchain: sc}); r != gpu.ErrorOutOfDate {
		t.Fatalf("present = %s, want out of date", r)
	}
	if r := q.Present(gpu.PresentInfo{Swapchain: sc}); r != gpu.Success {
		t.Fatalf("second present = %s", r)
	}
	if dev.Stats().Presents != 1 {
		t.Fatalf("presents = %d", dev.Stats().Presents)
	}
}
