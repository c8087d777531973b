package renderer

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	emath "github.com/spaghettifunk/gensou/engine/math"
)

func TestQuadBatchMergesConsecutiveTextures(t *testing.T) {
	a, b := &Texture{}, &Texture{}
	var batch QuadBatch
	for _, tex := range []*Texture{a, a, b, a, a, a} {
		batch.Add(tex, mgl32.Vec2{}, mgl32.Vec2{1, 1}, mgl32.Vec2{1, 1}, mgl32.Vec4{1, 1, 1, 1}, mgl32.Ident4(), 1, false)
	}

	want := []QuadDrawCall{{a, 2}, {b, 1}, {a, 3}}
	got := batch.DrawCalls()
	if len(got) != len(want) {
		t.Fatalf("draw calls = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if batch.Count() != 6 {
		t.Fatalf("count = %d, want 6", batch.Count())
	}
	if len(batch.Bytes()) != 6*4*int(quadVertexSize) {
		t.Fatalf("bytes = %d, want %d", len(batch.Bytes()), 6*4*quadVertexSize)
	}

	batch.Reset()
	if batch.Count() != 0 || len(batch.DrawCalls()) != 0 {
		t.Fatalf("reset left %d quads and %d calls", batch.Count(), len(batch.DrawCalls()))
	}
}

func TestQuadBatchGeometry(t *testing.T) {
	var batch QuadBatch
	transform := mgl32.Translate3D(10, 0, 0)
	batch.Add(nil, mgl32.Vec2{0.25, 0}, mgl32.Vec2{0.5, 1}, mgl32.Vec2{2, 4}, mgl32.Vec4{0.5, 1, 0, 0.25}, transform, 0.5, true)

	v := batch.Vertices()
	positions := []mgl32.Vec3{{9, -1, 0}, {11, -1, 0}, {11, 2, 0}, {9, 2, 0}}
	uvs := []mgl32.Vec2{{0.75, 0}, {1.25, 0}, {1.25, 1}, {0.75, 1}}
	for i := range positions {
		if v[i].Position.Sub(positions[i]).Len() > 1e-4 {
			t.Errorf("vertex %d position = %v, want %v", i, v[i].Position, positions[i])
		}
		if v[i].UV.Sub(uvs[i]).Len() > 1e-4 {
			t.Errorf("vertex %d uv = %v, want %v", i, v[i].UV, uvs[i])
		}
	}

	wantColor := mgl32.Vec4{emath.RevertGamma(0.5), 1, 0, 0.25}
	if v[0].Color.Sub(wantColor).Len() > 1e-4 {
		t.Fatalf("colour = %v, want %v", v[0].Color, wantColor)
	}
}

func TestQuadBatchDropsPastCapacity(t *testing.T) {
	var batch QuadBatch
	for i := 0; i < MaxQuadsPerFrame; i++ {
		if !batch.Add(nil, mgl32.Vec2{}, mgl32.Vec2{}, mgl32.Vec2{1, 1}, mgl32.Vec4{}, mgl32.Ident4(), 1, false) {
			t.Fatalf("quad %d rejected", i)
		}
	}
	if batch.Add(nil, mgl32.Vec2{}, mgl32.Vec2{}, mgl32.Vec2{1, 1}, mgl32.Vec4{}, mgl32.Ident4(), 1, false) {
		t.Fatal("quad past capacity accepted")
	}
	if batch.Dropped() != 1 || batch.Count() != MaxQuadsPerFrame {
		t.Fatalf("dropped = %d count = %d", batch.Dropped(), batch.Count())
	}
}

func TestQuadIndices(t *testing.T) {
	got := quadIndices(2)
	want := []uint16{0, 1, 2, 2, 3, 0, 4, 5, 6, 6, 7, 4}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestLineBatch(t *testing.T) {
	var batch LineBatch
	edgeA, edgeB := mgl32.Vec2{0, 1}, mgl32.Vec2{0.5, 1}
	white := mgl32.Vec4{1, 1, 1, 1}

	batch.Add(edgeA, mgl32.Vec3{}, white, mgl32.Vec3{1, 0, 0}, white)
	batch.Add(edgeA, mgl32.Vec3{}, white, mgl32.Vec3{0, 1, 0}, white)
	batch.AddRange([]LineVertex{{}, {}, {}, {}, {}}, edgeB)
	batch.Add(edgeB, mgl32.Vec3{}, white, mgl32.Vec3{0, 0, 1}, white)

	want := []LineDrawCall{{2, edgeA}, {3, edgeB}}
	got := batch.DrawCalls()
	if len(got) != len(want) {
		t.Fatalf("draw calls = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if batch.Count() != 5 {
		t.Fatalf("count = %d, want 5", batch.Count())
	}
	if len(batch.Bytes()) != 10*int(lineVertexSize) {
		t.Fatalf("bytes = %d", len(batch.Bytes()))
	}
}

func TestLineRangeKeepsColours(t *testing.T) {
	var batch LineBatch
	c := mgl32.Vec4{0.5, 0.5, 0.5, 1}
	batch.AddRange([]LineVertex{{Color: c}, {Color: c}}, mgl32.Vec2{})
	if batch.vertices[0].Color != c {
		t.Fatalf("range colour = %v, want %v untouched", batch.vertices[0].Color, c)
	}
	batch.Add(mgl32.Vec2{}, mgl32.Vec3{}, c, mgl32.Vec3{}, c)
	if batch.vertices[2].Color == c {
		t.Fatal("submitted line colour was not linearized")
	}
}

func TestCubeBatch(t *testing.T) {
	var batch CubeBatch
	m := mgl32.Translate3D(1, 2, 3)
	batch.Add(mgl32.Vec4{1, 1, 1, 1}, m)
	batch.Add(mgl32.Vec4{0, 0, 0, 1}, mgl32.Ident4())
	if batch.Count() != 2 {
		t.Fatalf("count = %d", batch.Count())
	}
	if cubeInstanceSize != 80 {
		t.Fatalf("instance size = %d, want 80", cubeInstanceSize)
	}
	if len(batch.Bytes()) != 160 {
		t.Fatalf("bytes = %d, want 160", len(batch.Bytes()))
	}
	if batch.instances[0].Transform != m {
		t.Fatal("transform not kept")
	}
	batch.Reset()
	if batch.Count() != 0 {
		t.Fatal("reset kept instances")
	}
}

func TestVertexLayouts(t *testing.T) {
	if quadVertexSize != 36 {
		t.Errorf("quad vertex = %d bytes, want 36", quadVertexSize)
	}
	if lineVertexSize != 28 {
		t.Errorf("line vertex = %d bytes, want 28", lineVertexSize)
	}
	if MaxQuadsPerFrame*4*quadVertexSize > quadFrameBytes {
		t.Error("quad frame region cannot hold MaxQuadsPerFrame quads")
	}
}
