package renderer

import (
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/gensou/engine/core"
	emath "github.com/spaghettifunk/gensou/engine/math"
)

// Per-frame region sizes of the vertex buffers.
const (
	quadFrameBytes = 512 << 10
	lineFrameBytes = 4 << 20
	cubeFrameBytes = 1 << 20

	// MaxQuadsPerFrame bounds the shared uint16 index buffer.
	MaxQuadsPerFrame = 2048
)

type QuadVertex struct {
	Position mgl32.Vec3
	UV       mgl32.Vec2
	Color    mgl32.Vec4
}

type LineVertex struct {
	Position mgl32.Vec3
	Color    mgl32.Vec4
}

type CubeInstance struct {
	Color     mgl32.Vec4
	Transform mgl32.Mat4
}

const (
	quadVertexSize   = uint32(unsafe.Sizeof(QuadVertex{}))
	lineVertexSize   = uint32(unsafe.Sizeof(LineVertex{}))
	cubeInstanceSize = uint32(unsafe.Sizeof(CubeInstance{}))

	maxLinesPerFrame = lineFrameBytes / (2 * lineVertexSize)
	maxCubesPerFrame = cubeFrameBytes / cubeInstanceSize
)

// White quads sample the centre of the white texture.
var (
	whiteUV     = mgl32.Vec2{0.125, 0.125}
	whiteStride = mgl32.Vec2{0.75, 0.75}
)

var cubeVertices = [24]float32{
	-1, 1, 1,
	-1, -1, 1,
	1, 1, 1,
	1, -1, 1,
	-1, 1, -1,
	-1, -1, -1,
	1, 1, -1,
	1, -1, -1,
}

var cubeIndices = [36]uint16{
	0, 2, 3, 0, 3, 1,
	2, 6, 7, 2, 7, 3,
	6, 4, 5, 6, 5, 7,
	4, 0, 1, 4, 1, 5,
	0, 4, 6, 0, 6, 2,
	1, 5, 7, 1, 7, 3,
}

// quadIndices builds the shared index buffer: two triangles per quad.
func quadIndices(quads int) []uint16 {
	out := make([]uint16, 0, quads*6)
	var offset uint16
	for i := 0; i < quads; i++ {
		out = append(out, offset, offset+1, offset+2, offset+2, offset+3, offset)
		offset += 4
	}
	return out
}

func linearColor(c mgl32.Vec4) mgl32.Vec4 {
	return mgl32.Vec4{emath.RevertGamma(c[0]), emath.RevertGamma(c[1]), emath.RevertGamma(c[2]), c[3]}
}

func sliceBytes[T any](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(s[0])))
}

// QuadDrawCall is a run of consecutive quads sharing a texture.
type QuadDrawCall struct {
	Texture *Texture
	Count   uint32
}

// QuadBatch accumulates quads for the frame being authored.
type QuadBatch struct {
	vertices []QuadVertex
	calls    []QuadDrawCall
	dropped  int
}

// Add appends one quad. The quad is centred on the origin of transform, its
// bottom edge scaled by squash. Mirroring flips the u coordinate.
func (b *QuadBatch) Add(tex *Texture, uv, stride, size mgl32.Vec2, color mgl32.Vec4, transform mgl32.Mat4, squash float32, mirror bool) bool {
	if b.Count() >= MaxQuadsPerFrame {
		if b.dropped == 0 {
			core.LogWarn("quad batch is full (%d quads), dropping submissions until the next frame", MaxQuadsPerFrame)
		}
		b.dropped++
		return false
	}

	right := size.X() / 2
	left := -right
	up := size.Y() / 2
	down := -up * squash

	uvX := uv.X()
	if mirror {
		uvX = 1 - uv.X()
	}
	c := linearColor(color)

	corners := [4]mgl32.Vec4{{left, down, 0, 1}, {right, down, 0, 1}, {right, up, 0, 1}, {left, up, 0, 1}}
	uvs := [4]mgl32.Vec2{
		{uvX, uv.Y()},
		{uvX + stride.X(), uv.Y()},
		{uvX + stride.X(), uv.Y() + stride.Y()},
		{uvX, uv.Y() + stride.Y()},
	}
	for i, corner := range corners {
		b.vertices = append(b.vertices, QuadVertex{
			Position: transform.Mul4x1(corner).Vec3(),
			UV:       uvs[i],
			Color:    c,
		})
	}

	if n := len(b.calls); n > 0 && b.calls[n-1].Texture == tex {
		b.calls[n-1].Count++
	} else {
		b.calls = append(b.calls, QuadDrawCall{Texture: tex, Count: 1})
	}
	return true
}

func (b *QuadBatch) Count() int                { return len(b.vertices) / 4 }
func (b *QuadBatch) DrawCalls() []QuadDrawCall { return b.calls }
func (b *QuadBatch) Vertices() []QuadVertex    { return b.vertices }
func (b *QuadBatch) Bytes() []byte             { return sliceBytes(b.vertices) }

// Dropped is the number of quads rejected since the last Reset.
func (b *QuadBatch) Dropped() int { return b.dropped }

func (b *QuadBatch) Reset() {
	b.vertices = b.vertices[:0]
	b.calls = b.calls[:0]
	b.dropped = 0
}

// LineDrawCall is a run of consecutive lines sharing an edge range.
type LineDrawCall struct {
	Count     uint32
	EdgeRange mgl32.Vec2
}

type LineBatch struct {
	vertices []LineVertex
	calls    []LineDrawCall
}

func (b *LineBatch) push(edge mgl32.Vec2, count uint32) {
	if n := len(b.calls); n > 0 && b.calls[n-1].EdgeRange == edge {
		b.calls[n-1].Count += count
		return
	}
	b.calls = append(b.calls, LineDrawCall{Count: count, EdgeRange: edge})
}

// Add appends a line with gamma corrected endpoint colours.
func (b *LineBatch) Add(edge mgl32.Vec2, p1 mgl32.Vec3, c1 mgl32.Vec4, p2 mgl32.Vec3, c2 mgl32.Vec4) bool {
	if uint32(b.Count())+1 > maxLinesPerFrame {
		core.LogWarn("line batch is full, dropping line")
		return false
	}
	b.vertices = append(b.vertices, LineVertex{p1, linearColor(c1)}, LineVertex{p2, linearColor(c2)})
	b.push(edge, 1)
	return true
}

// AddRange appends vertex pairs as they are. An odd trailing vertex is ignored.
func (b *LineBatch) AddRange(vertices []LineVertex, edge mgl32.Vec2) bool {
	lines := uint32(len(vertices) / 2)
	if lines == 0 {
		return true
	}
	if uint32(b.Count())+lines > maxLinesPerFrame {
		core.LogWarn("line batch is full, dropping %d lines", lines)
		return false
	}
	b.vertices = append(b.vertices, vertices[:lines*2]...)
	b.push(edge, lines)
	return true
}

func (b *LineBatch) Count() int                { return len(b.vertices) / 2 }
func (b *LineBatch) DrawCalls() []LineDrawCall { return b.calls }
func (b *LineBatch) Bytes() []byte             { return sliceBytes(b.vertices) }

func (b *LineBatch) Reset() {
	b.vertices = b.vertices[:0]
	b.calls = b.calls[:0]
}

// CubeBatch holds one instance per submitted cube; all cubes draw with one
// instanced call.
type CubeBatch struct {
	instances []CubeInstance
}

func (b *CubeBatch) Add(color mgl32.Vec4, transform mgl32.Mat4) bool {
	if uint32(len(b.instances)) >= maxCubesPerFrame {
		core.LogWarn("cube batch is full, dropping cube")
		return false
	}
	b.instances = append(b.instances, CubeInstance{Color: linearColor(color), Transform: transform})
	return true
}

func (b *CubeBatch) Count() int    { return len(b.instances) }
func (b *CubeBatch) Bytes() []byte { return sliceBytes(b.instances) }
func (b *CubeBatch) Reset()        { b.instances = b.instances[:0] }
