package renderer

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/spaghettifunk/gensou/engine/assets/loaders"
	"github.com/spaghettifunk/gensou/engine/core"
	"github.com/spaghettifunk/gensou/engine/renderer/gpu"
)

// SamplerOptions is the subset of sampler state textures choose from.
type SamplerOptions struct {
	Filter gpu.Filter
	Wrap   gpu.SamplerAddressMode
}

type TextureOptions struct {
	Mips    bool
	FlipY   bool
	Sampler SamplerOptions
}

// DefaultTextureOptions is nearest filtering, clamped, without mips.
func DefaultTextureOptions() TextureOptions {
	return TextureOptions{Sampler: SamplerOptions{Filter: gpu.FilterNearest, Wrap: gpu.SamplerAddressModeClampToEdge}}
}

// Texture is a shared, reference counted sampled image. The cache hands out
// acquired handles; the final Release destroys the image.
type Texture struct {
	id      uuid.UUID
	path    string
	image   *Image2D
	sampler gpu.Sampler
	refs    atomic.Int32
	cache   *TextureCache
}

func (t *Texture) ID() uuid.UUID        { return t.id }
func (t *Texture) Path() string         { return t.path }
func (t *Texture) Image() *Image2D      { return t.image }
func (t *Texture) View() gpu.ImageView  { return t.image.View() }
func (t *Texture) Sampler() gpu.Sampler { return t.sampler }
func (t *Texture) Extent() gpu.Extent2D { return t.image.Extent() }
func (t *Texture) Refs() int32          { return t.refs.Load() }

func (t *Texture) Acquire() *Texture {
	t.refs.Add(1)
	return t
}

func (t *Texture) Release() {
	n := t.refs.Add(-1)
	switch {
	case n == 0:
		if t.cache != nil {
			t.cache.forget(t)
		}
		t.image.Destroy()
		core.LogDebug("destroyed texture %s", t.name())
	case n < 0:
		core.LogError("texture %s released more times than acquired", t.name())
	}
}

func (t *Texture) name() string {
	if t.path != "" {
		return t.path
	}
	return t.id.String()
}

// TextureCache de-duplicates textures loaded from disk and owns the samplers
// they share.
type TextureCache struct {
	alloc *Allocator

	mu       sync.Mutex
	entries  map[string]*Texture
	samplers map[SamplerOptions]gpu.Sampler
}

func NewTextureCache(a *Allocator) *TextureCache {
	return &TextureCache{
		alloc:    a,
		entries:  make(map[string]*Texture),
		samplers: make(map[SamplerOptions]gpu.Sampler),
	}
}

// Load returns the cached texture for path, decoding and uploading it on a
// miss. The returned handle is acquired.
func (c *TextureCache) Load(ctx context.Context, path string, opts TextureOptions) (*Texture, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.entries[path]; ok {
		return t.Acquire(), nil
	}

	img, err := loaders.LoadImage(path, opts.FlipY)
	if err != nil {
		err = errors.Wrapf(err, "load texture %s", path)
		core.LogError(err.Error())
		return nil, err
	}
	t, err := c.create(ctx, img.Pixels, gpu.Extent2D{Width: img.Width, Height: img.Height}, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "upload texture %s", path)
	}
	t.path = path
	c.entries[path] = t
	core.LogDebug("loaded texture %s (%dx%d)", path, img.Width, img.Height)
	return t, nil
}

// FromPixels uploads RGBA pixels into a texture the cache does not index.
func (c *TextureCache) FromPixels(ctx context.Context, pixels []byte, extent gpu.Extent2D, opts TextureOptions) (*Texture, error) {
	if uint64(len(pixels)) != uint64(extent.Width)*uint64(extent.Height)*4 {
		return nil, errors.Errorf("texture needs %d bytes for %dx%d, got %d", extent.Width*extent.Height*4, extent.Width, extent.Height, len(pixels))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.create(ctx, pixels, extent, opts)
}

func (c *TextureCache) create(ctx context.Context, pixels []byte, extent gpu.Extent2D, opts TextureOptions) (*Texture, error) {
	sampler, err := c.sampler(opts.Sampler)
	if err != nil {
		return nil, err
	}
	img, err := NewImage2DFromPixels(ctx, c.alloc, pixels, extent, gpu.FormatR8G8B8A8Srgb, opts.Mips, 1)
	if err != nil {
		return nil, err
	}
	t := &Texture{id: uuid.New(), image: img, sampler: sampler, cache: c}
	t.refs.Store(1)
	return t, nil
}

// Sampler returns the shared sampler for opts, creating it once.
func (c *TextureCache) Sampler(opts SamplerOptions) (gpu.Sampler, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sampler(opts)
}

func (c *TextureCache) sampler(opts SamplerOptions) (gpu.Sampler, error) {
	if s, ok := c.samplers[opts]; ok {
		return s, nil
	}
	d := c.alloc.Device()
	info := gpu.SamplerInfo{
		MagFilter:   opts.Filter,
		MinFilter:   opts.Filter,
		AddressMode: opts.Wrap,
		MaxLod:      1000,
	}
	if d.SupportsAnisotropy() {
		info.Anisotropy = d.MaxAnisotropy()
	}
	s, err := d.GPU().CreateSampler(info)
	if err != nil {
		d.reportError(gpu.ErrorInitializationFailed, "could not create sampler", false)
		err = errors.Wrap(err, "create sampler")
		core.LogError(err.Error())
		return nil, err
	}
	c.samplers[opts] = s
	return s, nil
}

// Evict drops the entry for path. Existing handles stay valid; the next Load
// decodes the file again.
func (c *TextureCache) Evict(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[path]; !ok {
		return false
	}
	delete(c.entries, path)
	core.LogDebug("evicted texture %s", path)
	return true
}

func (c *TextureCache) forget(t *Texture) {
	if t.path == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries[t.path] == t {
		delete(c.entries, t.path)
	}
}

func (c *TextureCache) Cached(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[path]
	return ok
}

func (c *TextureCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Destroy releases the samplers. Textures still referenced are logged and
// left to their holders.
func (c *TextureCache) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for path, t := range c.entries {
		core.LogWarn("texture %s still holds %d references at shutdown", path, t.Refs())
	}
	for _, s := range c.samplers {
		s.Destroy()
	}
	c.samplers = make(map[SamplerOptions]gpu.Sampler)
}
