package loaders

import (
	"path/filepath"

	"github.com/fzipp/bmfont"
	"github.com/pkg/errors"
)

// Glyph is one character of a bitmap font atlas, in atlas pixels.
type Glyph struct {
	Codepoint rune
	X, Y      int
	Width     int
	Height    int
	XOffset   int
	YOffset   int
	XAdvance  int
	Page      int
}

type KerningPair struct {
	First, Second rune
}

// BitmapFont is the layout data of a .fnt descriptor. Page paths are resolved
// relative to the descriptor.
type BitmapFont struct {
	Face       string
	Size       int
	LineHeight int
	Base       int
	ScaleW     int
	ScaleH     int
	Pages      map[int]string
	Glyphs     map[rune]Glyph
	Kernings   map[KerningPair]int
}

func LoadBitmapFont(path string) (*BitmapFont, error) {
	font, err := bmfont.Load(path)
	if err != nil {
		return nil, errors.Wrapf(err, "load bitmap font '%s'", path)
	}
	d := font.Descriptor

	out := &BitmapFont{
		Face:       d.Info.Face,
		Size:       int(d.Info.Size),
		LineHeight: int(d.Common.LineHeight),
		Base:       int(d.Common.Base),
		ScaleW:     int(d.Common.ScaleW),
		ScaleH:     int(d.Common.ScaleH),
		Pages:      make(map[int]string, len(d.Pages)),
		Glyphs:     make(map[rune]Glyph, len(d.Chars)),
		Kernings:   make(map[KerningPair]int, len(d.Kerning)),
	}

	dir := filepath.Dir(path)
	for _, p := range d.Pages {
		out.Pages[int(p.ID)] = filepath.Join(dir, p.File)
	}
	for _, g := range d.Chars {
		out.Glyphs[rune(g.ID)] = Glyph{
			Codepoint: rune(g.ID),
			X:         int(g.X),
			Y:         int(g.Y),
			Width:     int(g.Width),
			Height:    int(g.Height),
			XOffset:   int(g.XOffset),
			YOffset:   int(g.YOffset),
			XAdvance:  int(g.XAdvance),
			Page:      int(g.Page),
		}
	}
	for p, k := range d.Kerning {
		out.Kernings[KerningPair{First: rune(p.First), Second: rune(p.Second)}] = int(k.Amount)
	}
	return out, nil
}

// Kerning returns the advance adjustment between two characters.
func (f *BitmapFont) Kerning(first, second rune) int {
	return f.Kernings[KerningPair{First: first, Second: second}]
}
