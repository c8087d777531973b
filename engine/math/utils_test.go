package math

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestClamp(t *testing.T) {
	if Clamp(5, 1, 3) != 3 || Clamp(-1, 0, 3) != 0 || Clamp(2, 0, 3) != 2 {
		t.Fatalf("int clamp failed")
	}
	if Clamp(1.5, 0.0, 1.0) != 1.0 {
		t.Fatalf("float clamp failed")
	}
}

func TestMipCount(t *testing.T) {
	tests := []struct {
		w, h uint32
		want uint32
	}{
		{1, 1, 1},
		{2, 2, 2},
		{256, 256, 9},
		{256, 16, 9},
		{300, 100, 9},
		{1024, 1, 11},
	}
	for _, tt := range tests {
		if got := MipCount(tt.w, tt.h); got != tt.want {
			t.Errorf("MipCount(%d, %d) = %d, want %d", tt.w, tt.h, got, tt.want)
		}
	}
}

func TestMipChainExtentsNonPowerOfTwo(t *testing.T) {
	chain := MipChainExtents(300, 100, MipCount(300, 100))
	want := [][2]int32{
		{300, 100}, {150, 50}, {75, 25}, {37, 12}, {18, 6},
		{9, 3}, {4, 1}, {2, 1}, {1, 1},
	}
	if len(chain) != len(want) {
		t.Fatalf("len = %d, want %d", len(chain), len(want))
	}
	for i := range want {
		if chain[i] != want[i] {
			t.Fatalf("level %d = %v, want %v", i, chain[i], want[i])
		}
		// integer halving of the previous level agrees with max(1, dim>>level)
		shifted := [2]int32{max(int32(300)>>i, 1), max(int32(100)>>i, 1)}
		if chain[i] != shifted {
			t.Fatalf("level %d: halving %v != shift %v", i, chain[i], shifted)
		}
	}
}

func TestMipChainHalvingMatchesShiftForPowerOfTwo(t *testing.T) {
	levels := MipCount(64, 16)
	chain := MipChainExtents(64, 16, levels)
	for i, e := range chain {
		w := max(int32(64)>>i, 1)
		h := max(int32(16)>>i, 1)
		if e != [2]int32{w, h} {
			t.Fatalf("level %d = %v, want %v", i, e, [2]int32{w, h})
		}
	}
}

func TestAlignUp(t *testing.T) {
	if AlignUp[uint64](65, 64) != 128 || AlignUp[uint64](64, 64) != 64 || AlignUp[uint64](3, 0) != 3 {
		t.Fatalf("AlignUp mismatch")
	}
}

func TestTransformWorld(t *testing.T) {
	parent := TransformFromPosition(mgl32.Vec3{10, 0, 0})
	child := TransformFromPosition(mgl32.Vec3{1, 2, 0})
	child.Parent = parent

	p := child.World().Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	if p.Sub(mgl32.Vec4{11, 2, 0, 1}).Len() > 1e-4 {
		t.Fatalf("world origin = %v", p)
	}

	child.SetScale(mgl32.Vec3{2, 2, 2})
	p = child.World().Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	if p.Sub(mgl32.Vec4{13, 2, 0, 1}).Len() > 1e-4 {
		t.Fatalf("scaled point = %v", p)
	}
}

func TestTransformRotateThenTranslate(t *testing.T) {
	tr := TransformFromPosition(mgl32.Vec3{})
	tr.SetRotation(mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 0, 1}))
	tr.Translate(mgl32.Vec3{1, 0, 0})

	p := tr.Local().Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	if p.Sub(mgl32.Vec4{1, 1, 0, 1}).Len() > 1e-4 {
		t.Fatalf("rotated point = %v, want (1, 1, 0, 1)", p)
	}

	tr.Rotate(mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 0, 1}))
	p = tr.Local().Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	if p.Sub(mgl32.Vec4{0, 0, 0, 1}).Len() > 1e-4 {
		t.Fatalf("point after a second quarter turn = %v, want the origin", p)
	}
}
