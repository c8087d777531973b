package renderer

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/gensou/engine/assets/loaders"
)

func testFont() *Font {
	data := &loaders.BitmapFont{
		LineHeight: 10,
		ScaleW:     64,
		ScaleH:     32,
		Glyphs: map[rune]loaders.Glyph{
			'A': {Codepoint: 'A', X: 0, Y: 0, Width: 8, Height: 10, XOffset: 1, YOffset: 2, XAdvance: 9},
			'B': {Codepoint: 'B', X: 8, Y: 0, Width: 6, Height: 10, XAdvance: 7},
			' ': {Codepoint: ' ', XAdvance: 4},
		},
		Kernings: map[loaders.KerningPair]int{{First: 'A', Second: 'B'}: -1},
	}
	return NewFont(data, map[int]*Texture{0: {}})
}

func TestFontLayout(t *testing.T) {
	f := testFont()

	quads := f.layout("AB")
	if len(quads) != 2 {
		t.Fatalf("quads = %d, want 2", len(quads))
	}
	a, b := quads[0], quads[1]
	if a.center.Sub(mgl32.Vec2{5, -7}).Len() > 1e-4 {
		t.Errorf("A centre = %v", a.center)
	}
	if a.uv.Sub(mgl32.Vec2{0, 0.3125}).Len() > 1e-4 || a.stride.Sub(mgl32.Vec2{0.125, -0.3125}).Len() > 1e-4 {
		t.Errorf("A uv = %v stride = %v", a.uv, a.stride)
	}
	if b.center.Sub(mgl32.Vec2{11, -5}).Len() > 1e-4 {
		t.Errorf("kerned B centre = %v, want (11, -5)", b.center)
	}
}

func TestFontLayoutSpacesAndLines(t *testing.T) {
	f := testFont()

	quads := f.layout("A BZ\nA")
	if len(quads) != 3 {
		t.Fatalf("quads = %d, want 3 (space and unknown rune have no quad)", len(quads))
	}
	if quads[1].center.Sub(mgl32.Vec2{16, -5}).Len() > 1e-4 {
		t.Errorf("B after space centre = %v, want (16, -5)", quads[1].center)
	}
	if quads[2].center.Sub(mgl32.Vec2{5, -17}).Len() > 1e-4 {
		t.Errorf("second line centre = %v, want (5, -17)", quads[2].center)
	}
}

func TestFontMeasure(t *testing.T) {
	f := testFont()
	if got := f.Measure("AB\nA"); got.Sub(mgl32.Vec2{15, 20}).Len() > 1e-4 {
		t.Fatalf("measure = %v, want (15, 20)", got)
	}
	if got := f.Measure(""); got.Sub(mgl32.Vec2{0, 10}).Len() > 1e-4 {
		t.Fatalf("empty measure = %v", got)
	}
}

func TestSubmitTextBatchesGlyphs(t *testing.T) {
	f := testFont()
	r := &Renderer{}
	n := r.SubmitText(f, "AB A", mgl32.Ident4(), 2, mgl32.Vec4{1, 1, 1, 1})
	if n != 3 {
		t.Fatalf("glyph quads = %d, want 3", n)
	}
	calls := r.quads.DrawCalls()
	if len(calls) != 1 || calls[0].Count != 3 || calls[0].Texture != f.Page(0) {
		t.Fatalf("draw calls = %+v, want one call of 3 on the page texture", calls)
	}
	// A is 8x10 font pixels, scaled by 2 and centred at (10, -14)
	v := r.quads.Vertices()
	if v[0].Position.Sub(mgl32.Vec3{2, -24, 0}).Len() > 1e-4 {
		t.Fatalf("first corner = %v, want (2, -24, 0)", v[0].Position)
	}
}
