package testbed

import (
	"math"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/gensou/engine"
	"github.com/spaghettifunk/gensou/engine/core"
	emath "github.com/spaghettifunk/gensou/engine/math"
	"github.com/spaghettifunk/gensou/engine/renderer"
	"github.com/spaghettifunk/gensou/engine/renderer/components"
	"github.com/spaghettifunk/gensou/engine/scene"
)

const worldCamera = "world"

type TestGame struct {
	*engine.Game
}

type gameState struct {
	engine      *engine.Engine
	WorldCamera *components.Camera

	width  uint32
	height uint32

	cubes      []scene.NodeID
	colors     map[scene.NodeID]mgl32.Vec4
	transforms map[scene.NodeID]*emath.Transform
	axes       []renderer.LineVertex
	font       *renderer.Font
	logo       *renderer.Texture
	elapsed    float64
}

func NewTestGame(cfg *engine.ApplicationConfig) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: cfg,
			State: &gameState{
				colors:     map[scene.NodeID]mgl32.Vec4{},
				transforms: map[scene.NodeID]*emath.Transform{},
			},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown
	return tg
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

func (g *TestGame) Initialize(e *engine.Engine) error {
	core.LogDebug("TestGame Initialize fn....")

	state := g.state()
	state.engine = e
	cam, err := e.Systems().CameraSystem().Acquire(worldCamera)
	if err != nil {
		return err
	}
	state.WorldCamera = cam
	state.WorldCamera.SetPosition(mgl32.Vec3{10.5, 5.0, 9.5})
	state.WorldCamera.Yaw(mgl32.DegToRad(45))
	state.WorldCamera.Pitch(mgl32.DegToRad(-15))

	// three cubes, each parented to the previous one
	sc := e.Scene()
	parent := scene.None
	placements := []struct {
		name  string
		pos   mgl32.Vec3
		scale float32
		color mgl32.Vec4
	}{
		{"test_cube", mgl32.Vec3{0, 0, 0}, 10, mgl32.Vec4{0.8, 0.3, 0.2, 1}},
		{"test_cube_2", mgl32.Vec3{10, 0, 1}, 0.5, mgl32.Vec4{0.2, 0.8, 0.3, 1}},
		{"test_cube_3", mgl32.Vec3{5, 0, 1}, 0.4, mgl32.Vec4{0.2, 0.3, 0.8, 1}},
	}
	for _, p := range placements {
		id, err := sc.Create(p.name, parent)
		if err != nil {
			return err
		}
		t := emath.TransformFromPositionRotationScale(p.pos, mgl32.QuatIdent(), mgl32.Vec3{p.scale, p.scale, p.scale})
		sc.SetTransform(id, t.Local())
		state.transforms[id] = t
		state.cubes = append(state.cubes, id)
		state.colors[id] = p.color
		parent = id
	}

	// world axes, colours already linear
	red, green, blue := mgl32.Vec4{1, 0, 0, 1}, mgl32.Vec4{0, 1, 0, 1}, mgl32.Vec4{0, 0, 1, 1}
	state.axes = []renderer.LineVertex{
		{Position: mgl32.Vec3{}, Color: red}, {Position: mgl32.Vec3{5, 0, 0}, Color: red},
		{Position: mgl32.Vec3{}, Color: green}, {Position: mgl32.Vec3{0, 5, 0}, Color: green},
		{Position: mgl32.Vec3{}, Color: blue}, {Position: mgl32.Vec3{0, 0, 5}, Color: blue},
	}

	assets := e.Config().AssetsDir
	if logo, err := e.Renderer().Textures().Load(e.Context(), filepath.Join(assets, "textures", "logo.png"), renderer.DefaultTextureOptions()); err == nil {
		state.logo = logo
	} else {
		core.LogDebug("no logo texture: %s", err)
	}
	if font, err := renderer.LoadFont(e.Context(), e.Renderer().Textures(), filepath.Join(assets, "fonts", "Ubuntu Mono 21px.fnt")); err == nil {
		state.font = font
	} else {
		core.LogDebug("no bitmap font: %s", err)
	}
	return nil
}

func (g *TestGame) Update(e *engine.Engine, deltaTime float64) error {
	state := g.state()
	state.elapsed += deltaTime
	in := e.Input()
	cam := state.WorldCamera
	speed := float32(50 * deltaTime)
	turn := float32(deltaTime)

	if in.IsKeyDown(core.KeyW) {
		cam.MoveForward(speed)
	}
	if in.IsKeyDown(core.KeyS) {
		cam.MoveBackward(speed)
	}
	if in.IsKeyDown(core.KeyA) {
		cam.MoveLeft(speed)
	}
	if in.IsKeyDown(core.KeyD) {
		cam.MoveRight(speed)
	}
	if in.IsKeyDown(core.KeySpace) {
		cam.MoveUp(speed)
	}
	if in.IsKeyDown(core.KeyLShift) {
		cam.MoveDown(speed)
	}
	if in.IsKeyDown(core.KeyLeft) {
		cam.Yaw(turn)
	}
	if in.IsKeyDown(core.KeyRight) {
		cam.Yaw(-turn)
	}
	if in.IsKeyDown(core.KeyUp) {
		cam.Pitch(turn)
	}
	if in.IsKeyDown(core.KeyDown) {
		cam.Pitch(-turn)
	}
	if in.KeyPressed(core.KeyV) && len(state.cubes) > 1 {
		sc := e.Scene()
		id := state.cubes[1]
		sc.SetVisible(id, !sc.Visible(id))
	}

	// small rotation on every cube, children inherit their parent's spin
	rotation := mgl32.QuatRotate(float32(0.5*deltaTime), mgl32.Vec3{0, 1, 0})
	sc := e.Scene()
	for _, id := range state.cubes {
		t := state.transforms[id]
		t.Rotate(rotation)
		sc.SetTransform(id, t.Local())
	}
	return nil
}

func (g *TestGame) Render(r *renderer.Renderer, deltaTime float64) error {
	state := g.state()
	aspect := float32(1)
	if state.height != 0 {
		aspect = float32(state.width) / float32(state.height)
	}
	r.UpdateViewProjection(state.WorldCamera.ViewProjection(aspect), r.CurrentFrame())

	sc := state.engine.Scene()
	for _, root := range sc.Roots() {
		sc.ForEachVisible(root, func(id scene.NodeID) bool {
			r.SubmitCube(state.colors[id], sc.WorldTransform(id))
			return false
		})
	}

	r.SubmitLineRange(state.axes, mgl32.Vec2{0, 1})

	// ground grid, fading with depth
	grey := mgl32.Vec4{0.5, 0.5, 0.5, 1}
	for i := -10; i <= 10; i++ {
		f := float32(i) * 5
		r.SubmitLine(mgl32.Vec2{0.9, 1}, mgl32.Vec3{f, -5, -50}, grey, mgl32.Vec3{f, -5, 50}, grey)
		r.SubmitLine(mgl32.Vec2{0.9, 1}, mgl32.Vec3{-50, -5, f}, grey, mgl32.Vec3{50, -5, f}, grey)
	}

	pulse := float32(0.5 + 0.5*math.Sin(state.elapsed*2))
	r.SubmitQuad(mgl32.Vec2{4, 4}, mgl32.Translate3D(0, 12, 0), mgl32.Vec4{1, pulse, 0.2, 1})
	if state.logo != nil {
		r.SubmitTexturedQuad(state.logo, mgl32.Vec2{}, mgl32.Vec2{1, 1}, mgl32.Vec2{6, 6}, mgl32.Vec4{1, 1, 1, 1}, mgl32.Translate3D(8, 12, 0), 1, false)
	}
	if state.font != nil {
		r.SubmitText(state.font, "Gensou testbed", mgl32.Translate3D(-10, 20, 0), 0.1, mgl32.Vec4{1, 1, 1, 1})
	}
	return nil
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	state := g.state()
	state.width = width
	state.height = height
	return nil
}

func (g *TestGame) Shutdown() error {
	state := g.state()
	if state.font != nil {
		state.font.Release()
	}
	if state.logo != nil {
		state.logo.Release()
	}
	if state.WorldCamera != nil {
		state.engine.Systems().CameraSystem().Release(worldCamera)
	}
	return nil
}
