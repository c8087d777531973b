package core

type Button uint8

const (
	ButtonLeft Button = iota
	ButtonRight
	ButtonMiddle
	maxButtons
)

// KeyCode follows the glfw key numbering so platform callbacks can pass keys
// through unchanged.
type KeyCode uint16

const (
	KeySpace  KeyCode = 32
	Key0      KeyCode = 48
	Key1      KeyCode = 49
	Key2      KeyCode = 50
	Key3      KeyCode = 51
	KeyA      KeyCode = 65
	KeyB      KeyCode = 66
	KeyC      KeyCode = 67
	KeyD      KeyCode = 68
	KeyE      KeyCode = 69
	KeyQ      KeyCode = 81
	KeyS      KeyCode = 83
	KeyV      KeyCode = 86
	KeyW      KeyCode = 87
	KeyEscape KeyCode = 256
	KeyEnter  KeyCode = 257
	KeyTab    KeyCode = 258
	KeyRight  KeyCode = 262
	KeyLeft   KeyCode = 263
	KeyDown   KeyCode = 264
	KeyUp     KeyCode = 265
	KeyF1     KeyCode = 290
	KeyF12    KeyCode = 301
	KeyLShift KeyCode = 340
	maxKeys   KeyCode = 349
)

type keyboardState struct {
	keys [maxKeys]bool
}

type mouseState struct {
	x, y    int32
	buttons [maxButtons]bool
}

// Input keeps the current and previous keyboard and mouse state. It is fed by
// the platform layer and read by the game, both on the main thread.
type Input struct {
	events *EngineEvents

	keyboardCurrent  keyboardState
	keyboardPrevious keyboardState
	mouseCurrent     mouseState
	mousePrevious    mouseState
	scroll           float64
}

// NewInput returns an input state that reports key changes on events.Key.
// events may be nil.
func NewInput(events *EngineEvents) *Input {
	return &Input{events: events}
}

// Update copies the current state into the previous one. Call it once per
// frame after the game consumed the input.
func (in *Input) Update() {
	in.keyboardPrevious = in.keyboardCurrent
	in.mousePrevious = in.mouseCurrent
	in.scroll = 0
}

func (in *Input) IsKeyDown(key KeyCode) bool {
	return key < maxKeys && in.keyboardCurrent.keys[key]
}

func (in *Input) WasKeyDown(key KeyCode) bool {
	return key < maxKeys && in.keyboardPrevious.keys[key]
}

// KeyPressed reports a key that went down this frame.
func (in *Input) KeyPressed(key KeyCode) bool {
	return in.IsKeyDown(key) && !in.WasKeyDown(key)
}

func (in *Input) ProcessKey(key KeyCode, pressed bool) {
	if key >= maxKeys || in.keyboardCurrent.keys[key] == pressed {
		return
	}
	in.keyboardCurrent.keys[key] = pressed
	if in.events != nil {
		in.events.Key.Broadcast(KeyEvent{Key: key, Pressed: pressed})
	}
}

func (in *Input) IsButtonDown(b Button) bool {
	return b < maxButtons && in.mouseCurrent.buttons[b]
}

func (in *Input) WasButtonDown(b Button) bool {
	return b < maxButtons && in.mousePrevious.buttons[b]
}

func (in *Input) ProcessButton(b Button, pressed bool) {
	if b < maxButtons {
		in.mouseCurrent.buttons[b] = pressed
	}
}

func (in *Input) MousePosition() (int32, int32) {
	return in.mouseCurrent.x, in.mouseCurrent.y
}

// MouseDelta is the cursor movement since the last Update.
func (in *Input) MouseDelta() (int32, int32) {
	return in.mouseCurrent.x - in.mousePrevious.x, in.mouseCurrent.y - in.mousePrevious.y
}

func (in *Input) ProcessMouseMove(x, y int32) {
	in.mouseCurrent.x, in.mouseCurrent.y = x, y
}

func (in *Input) ProcessMouseWheel(delta float64) {
	in.scroll += delta
}

// Scroll is the wheel movement accumulated this frame.
func (in *Input) Scroll() float64 { return in.scroll }
