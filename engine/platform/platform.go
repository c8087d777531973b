// Package platform owns the glfw window and forwards its events to the
// engine.
package platform

import (
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/pkg/errors"

	"github.com/spaghettifunk/gensou/engine/core"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

// Init initializes glfw. It must run before the Vulkan driver loads.
func Init() error {
	if err := glfw.Init(); err != nil {
		core.LogError("failed to initialize glfw: %s", err)
		return errors.Wrap(err, "glfw init")
	}
	return nil
}

func Terminate() {
	glfw.Terminate()
}

// AbsoluteTime is the time in seconds since Init.
func AbsoluteTime() float64 {
	return glfw.GetTime()
}

type WindowConfig struct {
	Title     string
	X, Y      int
	Width     uint32
	Height    uint32
	Resizable bool
}

// Window is a Vulkan-capable glfw window.
type Window struct {
	handle *glfw.Window
	events *core.EngineEvents
	input  *core.Input
}

func NewWindow(cfg WindowConfig, events *core.EngineEvents, input *core.Input) (*Window, error) {
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.
	glfw.WindowHint(glfw.Visible, glfw.False)
	resizable := glfw.False
	if cfg.Resizable {
		resizable = glfw.True
	}
	glfw.WindowHint(glfw.Resizable, resizable)

	handle, err := glfw.CreateWindow(int(cfg.Width), int(cfg.Height), cfg.Title, nil, nil)
	if err != nil {
		core.LogError("failed to create window: %s", err)
		return nil, errors.Wrap(err, "create window")
	}
	w := &Window{handle: handle, events: events, input: input}

	handle.SetKeyCallback(w.keyCallback)
	handle.SetMouseButtonCallback(w.mouseButtonCallback)
	handle.SetCursorPosCallback(w.cursorPosCallback)
	handle.SetScrollCallback(w.scrollCallback)
	handle.SetFramebufferSizeCallback(w.framebufferSizeCallback)
	handle.SetFocusCallback(w.focusCallback)
	handle.SetCloseCallback(w.closeCallback)
	handle.SetPos(cfg.X, cfg.Y)
	handle.Show()

	width, height := w.Size()
	core.LogInfo("window '%s' created (%dx%d)", cfg.Title, width, height)
	return w, nil
}

func (w *Window) Handle() *glfw.Window { return w.handle }

// RequiredInstanceExtensions lists the Vulkan instance extensions needed to
// present to this window.
func (w *Window) RequiredInstanceExtensions() []string {
	return w.handle.GetRequiredInstanceExtensions()
}

// CreateWindowSurface lets the Vulkan driver create a surface for the window.
func (w *Window) CreateWindowSurface(instance interface{}, allocCallbacks unsafe.Pointer) (uintptr, error) {
	return w.handle.CreateWindowSurface(instance, allocCallbacks)
}

// Size is the framebuffer size in pixels.
func (w *Window) Size() (uint32, uint32) {
	width, height := w.handle.GetFramebufferSize()
	return uint32(width), uint32(height)
}

// Resize applies the extent the swapchain settled on.
func (w *Window) Resize(width, height uint32) {
	cw, ch := w.Size()
	if cw == width && ch == height {
		return
	}
	w.handle.SetSize(int(width), int(height))
}

// PumpMessages processes pending window events. It returns false once the
// window was asked to close.
func (w *Window) PumpMessages() bool {
	glfw.PollEvents()
	return !w.handle.ShouldClose()
}

// WaitWhileMinimized blocks on window events while the framebuffer is empty.
func (w *Window) WaitWhileMinimized() {
	for {
		width, height := w.Size()
		if (width != 0 && height != 0) || w.handle.ShouldClose() {
			return
		}
		glfw.WaitEvents()
	}
}

func (w *Window) Destroy() {
	if w.handle != nil {
		w.handle.Destroy()
		w.handle = nil
	}
}

func (w *Window) keyCallback(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
	if key < 0 || action == glfw.Repeat {
		return
	}
	w.input.ProcessKey(core.KeyCode(key), action == glfw.Press)
}

func (w *Window) mouseButtonCallback(_ *glfw.Window, button glfw.MouseButton, action glfw.Action, _ glfw.ModifierKey) {
	var b core.Button
	switch button {
	case glfw.MouseButtonLeft:
		b = core.ButtonLeft
	case glfw.MouseButtonRight:
		b = core.ButtonRight
	case glfw.MouseButtonMiddle:
		b = core.ButtonMiddle
	default:
		return
	}
	w.input.ProcessButton(b, action == glfw.Press)
}

func (w *Window) cursorPosCallback(_ *glfw.Window, x, y float64) {
	w.input.ProcessMouseMove(int32(x), int32(y))
}

func (w *Window) scrollCallback(_ *glfw.Window, _, yoff float64) {
	w.input.ProcessMouseWheel(yoff)
}

func (w *Window) framebufferSizeCallback(_ *glfw.Window, width, height int) {
	w.events.WindowResize.Broadcast(core.ResizeEvent{Width: uint32(width), Height: uint32(height)})
}

func (w *Window) focusCallback(_ *glfw.Window, focused bool) {
	w.events.WindowFocus.Broadcast(core.FocusEvent{Focused: focused})
}

func (w *Window) closeCallback(_ *glfw.Window) {
	w.events.Quit.Broadcast(struct{}{})
}
