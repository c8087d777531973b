package core

// GPUErrorEvent carries a failed GPU API result and where it happened.
type GPUErrorEvent struct {
	Result  int32
	Context string
	Fatal   bool
}

type ResizeEvent struct {
	Width  uint32
	Height uint32
}

type FocusEvent struct {
	Focused bool
}

type KeyEvent struct {
	Key     KeyCode
	Pressed bool
}

// AssetChangedEvent is fired by the asset watcher when a file on disk changes.
type AssetChangedEvent struct {
	Path    string
	Removed bool
}

// EngineEvents groups the engine-wide notification channels. Listener order is
// not relied upon by any of them.
type EngineEvents struct {
	GPUError     *Event[GPUErrorEvent]
	WindowResize *Event[ResizeEvent]
	WindowFocus  *Event[FocusEvent]
	AssetChanged *Event[AssetChangedEvent]
	Key          *Event[KeyEvent]
	Quit         *Event[struct{}]
}

func NewEngineEvents() *EngineEvents {
	return &EngineEvents{
		GPUError:     NewEvent[GPUErrorEvent](),
		WindowResize: NewEvent[ResizeEvent](),
		WindowFocus:  NewEvent[FocusEvent](),
		AssetChanged: NewEvent[AssetChangedEvent](),
		Key:          NewEvent[KeyEvent](),
		Quit:         NewEvent[struct{}](),
	}
}
