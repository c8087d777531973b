package loaders

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Image is decoded pixel data in tightly packed RGBA8 rows.
type Image struct {
	Pixels []byte
	Width  uint32
	Height uint32
}

// LoadImage decodes a png, jpeg, bmp, tiff or webp file. With flipY the rows
// are stored bottom up.
func LoadImage(path string, flipY bool) (*Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, errors.Wrapf(err, "decode image '%s'", path)
	}
	return FromImage(img, flipY), nil
}

// FromImage converts any image to RGBA8.
func FromImage(img image.Image, flipY bool) *Image {
	b := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != b.Dx()*4 || b.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}
	out := &Image{
		Pixels: append([]byte(nil), rgba.Pix...),
		Width:  uint32(b.Dx()),
		Height: uint32(b.Dy()),
	}
	if flipY {
		row := int(out.Width) * 4
		tmp := make([]byte, row)
		for top, bottom := 0, int(out.Height)-1; top < bottom; top, bottom = top+1, bottom-1 {
			t := out.Pixels[top*row : (top+1)*row]
			bt := out.Pixels[bottom*row : (bottom+1)*row]
			copy(tmp, t)
			copy(t, bt)
			copy(bt, tmp)
		}
	}
	return out
}
