package renderer

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/gensou/engine/renderer/gpu"
	"github.com/spaghettifunk/gensou/engine/renderer/software"
)

func writePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 16), G: uint8(y * 16), B: 0x80, A: 0xff})
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
	return path
}

func newTestTextureCache(t *testing.T) (*TextureCache, *Allocator) {
	t.Helper()
	_, _, a := newTestStack(t, software.DefaultAdapterConfig(), 3)
	c := NewTextureCache(a)
	t.Cleanup(c.Destroy)
	return c, a
}

func TestTextureCacheDeduplicates(t *testing.T) {
	c, a := newTestTextureCache(t)
	path := writePNG(t, t.TempDir(), "sprite.png", 8, 4)

	first, err := c.Load(mainCtx(), path, DefaultTextureOptions())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	second, err := c.Load(mainCtx(), path, DefaultTextureOptions())
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if first != second {
		t.Fatal("second load decoded the file again")
	}
	if first.Refs() != 2 {
		t.Fatalf("refs = %d, want 2", first.Refs())
	}
	if first.Extent() != (gpu.Extent2D{Width: 8, Height: 4}) {
		t.Fatalf("extent = %+v", first.Extent())
	}
	if c.Len() != 1 || a.LiveImages() != 1 {
		t.Fatalf("entries = %d live images = %d", c.Len(), a.LiveImages())
	}

	first.Release()
	if !c.Cached(path) {
		t.Fatal("entry evicted while a handle is alive")
	}
	second.Release()
	if c.Cached(path) {
		t.Fatal("entry kept after the final release")
	}
	if a.LiveImages() != 0 {
		t.Fatalf("live images = %d after final release", a.LiveImages())
	}
}

func TestTextureCacheUploadsPixels(t *testing.T) {
	c, _ := newTestTextureCache(t)
	path := writePNG(t, t.TempDir(), "pixels.png", 2, 2)

	tex, err := c.Load(mainCtx(), path, DefaultTextureOptions())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	defer tex.Release()

	pixels := tex.Image().Image().(*software.Image).Pixels(0, 0)
	want := []byte{0, 0, 0x80, 0xff, 16, 0, 0x80, 0xff, 0, 16, 0x80, 0xff, 16, 16, 0x80, 0xff}
	if string(pixels) != string(want) {
		t.Fatalf("pixels = %v, want %v", pixels, want)
	}
}

func TestTextureCacheEvict(t *testing.T) {
	c, _ := newTestTextureCache(t)
	path := writePNG(t, t.TempDir(), "hot.png", 4, 4)

	old, err := c.Load(mainCtx(), path, DefaultTextureOptions())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !c.Evict(path) {
		t.Fatal("evict of a cached path reported false")
	}
	if c.Evict(path) {
		t.Fatal("second evict reported true")
	}

	fresh, err := c.Load(mainCtx(), path, DefaultTextureOptions())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if fresh == old {
		t.Fatal("reload returned the evicted texture")
	}

	old.Release()
	if !c.Cached(path) {
		t.Fatal("releasing the evicted texture dropped the fresh entry")
	}
	fresh.Release()
}

func TestTextureCacheMissingFile(t *testing.T) {
	c, _ := newTestTextureCache(t)
	if _, err := c.Load(mainCtx(), filepath.Join(t.TempDir(), "missing.png"), DefaultTextureOptions()); err == nil {
		t.Fatal("expected an error for a missing file")
	}
	if c.Len() != 0 {
		t.Fatalf("entries = %d after a failed load", c.Len())
	}
}

func TestTextureCacheSharesSamplers(t *testing.T) {
	c, _ := newTestTextureCache(t)
	linear := SamplerOptions{Filter: gpu.FilterLinear, Wrap: gpu.SamplerAddressModeRepeat}

	s1, err := c.Sampler(linear)
	if err != nil {
		t.Fatalf("sampler: %v", err)
	}
	s2, _ := c.Sampler(linear)
	s3, _ := c.Sampler(SamplerOptions{Filter: gpu.FilterNearest, Wrap: gpu.SamplerAddressModeRepeat})
	if s1 != s2 {
		t.Fatal("equal options created two samplers")
	}
	if s1 == s3 {
		t.Fatal("different options shared a sampler")
	}
}

func TestTextureFromPixels(t *testing.T) {
	c, a := newTestTextureCache(t)

	if _, err := c.FromPixels(mainCtx(), make([]byte, 10), gpu.Extent2D{Width: 2, Height: 2}, DefaultTextureOptions()); err == nil {
		t.Fatal("expected a size mismatch error")
	}

	tex, err := c.FromPixels(mainCtx(), make([]byte, 16), gpu.Extent2D{Width: 2, Height: 2}, DefaultTextureOptions())
	if err != nil {
		t.Fatalf("from pixels: %v", err)
	}
	if tex.Path() != "" || c.Len() != 0 {
		t.Fatal("in-memory texture was indexed")
	}
	tex.Release()
	if a.LiveImages() != 0 {
		t.Fatalf("live images = %d", a.LiveImages())
	}
}
