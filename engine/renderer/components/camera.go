package components

import (
	"github.com/go-gl/mathgl/mgl32"

	emath "github.com/spaghettifunk/gensou/engine/math"
)

// pitchLimit is 89 degrees, short of the gimbal lock at 90.
const pitchLimit = float32(1.55334306)

// Camera is a free-look camera. Position and rotation setters mark the view
// matrix dirty; it is rebuilt on the next View call.
type Camera struct {
	position mgl32.Vec3
	// rotation holds Euler angles (pitch, yaw, roll) in radians.
	rotation mgl32.Vec3
	dirty    bool
	view     mgl32.Mat4

	FovY float32
	Near float32
	Far  float32
}

func NewCamera() *Camera {
	c := &Camera{FovY: mgl32.DegToRad(45), Near: 0.1, Far: 1000}
	c.Reset()
	return c
}

func (c *Camera) Reset() {
	c.rotation = mgl32.Vec3{}
	c.position = mgl32.Vec3{}
	c.dirty = false
	c.view = mgl32.Ident4()
}

func (c *Camera) Position() mgl32.Vec3 { return c.position }

func (c *Camera) SetPosition(position mgl32.Vec3) {
	c.position = position
	c.dirty = true
}

func (c *Camera) EulerRotation() mgl32.Vec3 { return c.rotation }

func (c *Camera) SetEulerRotation(rotation mgl32.Vec3) {
	c.rotation = rotation
	c.dirty = true
}

// View is the inverse of the camera's rotation and translation.
func (c *Camera) View() mgl32.Mat4 {
	if c.dirty {
		rotation := mgl32.HomogRotate3DX(c.rotation[0]).
			Mul4(mgl32.HomogRotate3DY(c.rotation[1])).
			Mul4(mgl32.HomogRotate3DZ(c.rotation[2]))
		translation := mgl32.Translate3D(c.position[0], c.position[1], c.position[2])
		c.view = translation.Mul4(rotation).Inv()
		c.dirty = false
	}
	return c.view
}

// Projection is a right-handed perspective with Vulkan's inverted clip Y.
func (c *Camera) Projection(aspect float32) mgl32.Mat4 {
	p := mgl32.Perspective(c.FovY, aspect, c.Near, c.Far)
	p[5] *= -1
	return p
}

func (c *Camera) ViewProjection(aspect float32) mgl32.Mat4 {
	return c.Projection(aspect).Mul4(c.View())
}

// Forward is the direction the camera looks along, -Z in view space.
func (c *Camera) Forward() mgl32.Vec3 {
	v := c.View()
	return mgl32.Vec3{-v[2], -v[6], -v[10]}.Normalize()
}

func (c *Camera) Backward() mgl32.Vec3 { return c.Forward().Mul(-1) }

func (c *Camera) Right() mgl32.Vec3 {
	v := c.View()
	return mgl32.Vec3{v[0], v[4], v[8]}.Normalize()
}

func (c *Camera) Left() mgl32.Vec3 { return c.Right().Mul(-1) }

func (c *Camera) move(direction mgl32.Vec3, amount float32) {
	c.position = c.position.Add(direction.Mul(amount))
	c.dirty = true
}

func (c *Camera) MoveForward(amount float32)  { c.move(c.Forward(), amount) }
func (c *Camera) MoveBackward(amount float32) { c.move(c.Backward(), amount) }
func (c *Camera) MoveLeft(amount float32)     { c.move(c.Left(), amount) }
func (c *Camera) MoveRight(amount float32)    { c.move(c.Right(), amount) }
func (c *Camera) MoveUp(amount float32)       { c.move(mgl32.Vec3{0, 1, 0}, amount) }
func (c *Camera) MoveDown(amount float32)     { c.move(mgl32.Vec3{0, -1, 0}, amount) }

func (c *Camera) Yaw(amount float32) {
	c.rotation[1] += amount
	c.dirty = true
}

func (c *Camera) Pitch(amount float32) {
	c.rotation[0] = emath.Clamp(c.rotation[0]+amount, -pitchLimit, pitchLimit)
	c.dirty = true
}
