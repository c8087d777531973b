package renderer

import (
	"context"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/spaghettifunk/gensou/engine/assets/loaders"
	"github.com/spaghettifunk/gensou/engine/renderer/gpu"
)

// Font is a bitmap font with its atlas pages uploaded.
type Font struct {
	data  *loaders.BitmapFont
	pages map[int]*Texture
}

func NewFont(data *loaders.BitmapFont, pages map[int]*Texture) *Font {
	return &Font{data: data, pages: pages}
}

// LoadFont reads a .fnt descriptor and loads every atlas page through the
// texture cache with linear filtering.
func LoadFont(ctx context.Context, cache *TextureCache, path string) (*Font, error) {
	data, err := loaders.LoadBitmapFont(path)
	if err != nil {
		return nil, err
	}
	opts := TextureOptions{Sampler: SamplerOptions{Filter: gpu.FilterLinear, Wrap: gpu.SamplerAddressModeClampToEdge}}
	f := &Font{data: data, pages: make(map[int]*Texture, len(data.Pages))}
	for id, page := range data.Pages {
		t, err := cache.Load(ctx, page, opts)
		if err != nil {
			f.Release()
			return nil, errors.Wrapf(err, "font page %d", id)
		}
		f.pages[id] = t
	}
	return f, nil
}

func (f *Font) Data() *loaders.BitmapFont { return f.data }

func (f *Font) Page(id int) *Texture { return f.pages[id] }

// Release drops the font's references to its pages.
func (f *Font) Release() {
	for id, t := range f.pages {
		t.Release()
		delete(f.pages, id)
	}
}

// glyphQuad is one laid out glyph in font pixels, y pointing up from the
// top line's origin.
type glyphQuad struct {
	center mgl32.Vec2
	size   mgl32.Vec2
	uv     mgl32.Vec2
	stride mgl32.Vec2
	page   int
}

// layout places each rune on the baseline grid. Newlines move down one line
// height; runes without a glyph are skipped.
func (f *Font) layout(text string) []glyphQuad {
	d := f.data
	if d.ScaleW == 0 || d.ScaleH == 0 {
		return nil
	}
	quads := make([]glyphQuad, 0, len(text))
	var x, y int
	var prev rune = -1
	for _, r := range text {
		if r == '\n' {
			x, y, prev = 0, y-d.LineHeight, -1
			continue
		}
		g, ok := d.Glyphs[r]
		if !ok {
			prev = -1
			continue
		}
		if prev >= 0 {
			x += d.Kerning(prev, r)
		}
		if g.Width > 0 && g.Height > 0 {
			w, h := float32(g.Width), float32(g.Height)
			sw, sh := float32(d.ScaleW), float32(d.ScaleH)
			quads = append(quads, glyphQuad{
				center: mgl32.Vec2{float32(x+g.XOffset) + w/2, float32(y-g.YOffset) - h/2},
				size:   mgl32.Vec2{w, h},
				// atlas rows grow downwards, quad v grows upwards
				uv:     mgl32.Vec2{float32(g.X) / sw, float32(g.Y+g.Height) / sh},
				stride: mgl32.Vec2{w / sw, -h / sh},
				page:   g.Page,
			})
		}
		x += g.XAdvance
		prev = r
	}
	return quads
}

// Measure returns the width of the longest line and the total height in
// font pixels.
func (f *Font) Measure(text string) mgl32.Vec2 {
	var width, line, lines int
	lines = 1
	var prev rune = -1
	for _, r := range text {
		if r == '\n' {
			width, line, prev = max(width, line), 0, -1
			lines++
			continue
		}
		g, ok := f.data.Glyphs[r]
		if !ok {
			prev = -1
			continue
		}
		if prev >= 0 {
			line += f.data.Kerning(prev, r)
		}
		line += g.XAdvance
		prev = r
	}
	return mgl32.Vec2{float32(max(width, line)), float32(lines * f.data.LineHeight)}
}
