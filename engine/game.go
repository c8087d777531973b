package engine

import (
	"github.com/spaghettifunk/gensou/engine/renderer"
)

// Game is the set of hooks the engine drives. Only FnUpdate and FnRender
// are required.
type Game struct {
	ApplicationConfig *ApplicationConfig
	State             interface{}
	FnInitialize      Initialize
	FnUpdate          Update
	FnRender          Render
	FnOnResize        OnResize
	FnShutdown        Shutdown
}

type Initialize func(e *Engine) error
type Update func(e *Engine, deltaTime float64) error

// Render authors the frame through the renderer's Submit calls. The engine
// hands the frame to the render thread after it returns.
type Render func(r *renderer.Renderer, deltaTime float64) error
type OnResize func(width uint32, height uint32) error
type Shutdown func() error
