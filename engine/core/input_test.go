package core

import "testing"

func TestInputKeyTransitions(t *testing.T) {
	events := NewEngineEvents()
	var got []KeyEvent
	events.Key.Subscribe(func(e KeyEvent) { got = append(got, e) })

	in := NewInput(events)
	in.ProcessKey(KeyW, true)
	in.ProcessKey(KeyW, true)
	if !in.IsKeyDown(KeyW) || !in.KeyPressed(KeyW) {
		t.Fatal("W should be down and newly pressed")
	}
	if len(got) != 1 {
		t.Fatalf("key events = %d, want 1 for a repeated press", len(got))
	}

	in.Update()
	if in.KeyPressed(KeyW) {
		t.Fatal("W reported as newly pressed after Update")
	}
	if !in.WasKeyDown(KeyW) {
		t.Fatal("previous state lost W")
	}

	in.ProcessKey(KeyW, false)
	if in.IsKeyDown(KeyW) || len(got) != 2 || got[1].Pressed {
		t.Fatalf("release not recorded: %+v", got)
	}
}

func TestInputIgnoresOutOfRangeKeys(t *testing.T) {
	in := NewInput(nil)
	in.ProcessKey(maxKeys+10, true)
	if in.IsKeyDown(maxKeys + 10) {
		t.Fatal("out of range key reported down")
	}
}

func TestInputMouse(t *testing.T) {
	in := NewInput(nil)
	in.ProcessMouseMove(10, 20)
	in.Update()
	in.ProcessMouseMove(15, 18)
	if dx, dy := in.MouseDelta(); dx != 5 || dy != -2 {
		t.Fatalf("delta = (%d, %d), want (5, -2)", dx, dy)
	}
	if x, y := in.MousePosition(); x != 15 || y != 18 {
		t.Fatalf("position = (%d, %d), want (15, 18)", x, y)
	}
	in.ProcessButton(ButtonLeft, true)
	if !in.IsButtonDown(ButtonLeft) || in.WasButtonDown(ButtonLeft) {
		t.Fatal("button state wrong")
	}
	in.ProcessMouseWheel(1.5)
	in.ProcessMouseWheel(-0.5)
	if in.Scroll() != 1 {
		t.Fatalf("scroll = %v, want 1", in.Scroll())
	}
	in.Update()
	if in.Scroll() != 0 {
		t.Fatal("scroll not reset by Update")
	}
}
