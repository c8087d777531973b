package loaders

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadImage(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 3))
	src.Set(0, 0, color.NRGBA{R: 255, A: 255})
	src.Set(1, 2, color.NRGBA{B: 255, A: 255})
	path := filepath.Join(t.TempDir(), "img.png")
	writePNG(t, path, src)

	img, err := LoadImage(path, false)
	if err != nil {
		t.Fatalf("LoadImage: %v", err)
	}
	if img.Width != 2 || img.Height != 3 || len(img.Pixels) != 2*3*4 {
		t.Fatalf("got %dx%d with %d bytes", img.Width, img.Height, len(img.Pixels))
	}
	if !bytes.Equal(img.Pixels[0:4], []byte{255, 0, 0, 255}) {
		t.Fatalf("top left = %v", img.Pixels[0:4])
	}
	last := ((2 * 2) + 1) * 4
	if !bytes.Equal(img.Pixels[last:last+4], []byte{0, 0, 255, 255}) {
		t.Fatalf("bottom right = %v", img.Pixels[last:last+4])
	}

	flipped, err := LoadImage(path, true)
	if err != nil {
		t.Fatalf("LoadImage flipped: %v", err)
	}
	if !bytes.Equal(flipped.Pixels[(2*2)*4:(2*2)*4+4], []byte{255, 0, 0, 255}) {
		t.Fatalf("flipped bottom left = %v", flipped.Pixels[16:20])
	}
}

func TestLoadImageRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.png")
	if err := os.WriteFile(path, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadImage(path, false); err == nil {
		t.Fatalf("LoadImage accepted garbage")
	}
}

func TestLoadSPIRV(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.spv")
	bad := filepath.Join(dir, "bad.spv")
	if err := os.WriteFile(good, []byte{0x03, 0x02, 0x23, 0x07, 0, 0, 1, 0}, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bad, []byte{1, 2, 3}, 0o644); err != nil {
		t.Fatal(err)
	}
	if b, err := LoadSPIRV(good); err != nil || len(b) != 8 {
		t.Fatalf("LoadSPIRV(good) = %d bytes, %v", len(b), err)
	}
	if _, err := LoadSPIRV(bad); err == nil {
		t.Fatalf("LoadSPIRV accepted a truncated module")
	}
	if _, err := LoadSPIRV(filepath.Join(dir, "missing.spv")); err == nil {
		t.Fatalf("LoadSPIRV of a missing file returned nil error")
	}
}
