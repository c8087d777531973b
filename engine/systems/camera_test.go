package systems

import (
	"errors"
	"testing"
)

func TestCameraSystemRefCounting(t *testing.T) {
	cs, err := NewCameraSystem(2)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	a, err := cs.Acquire("world")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	b, _ := cs.Acquire("world")
	if a != b {
		t.Fatal("same name returned two cameras")
	}
	cs.Release("world")
	if cs.Len() != 1 {
		t.Fatal("camera dropped while still referenced")
	}
	cs.Release("world")
	if cs.Len() != 0 {
		t.Fatal("camera kept after the last release")
	}
	c, _ := cs.Acquire("world")
	if c == a {
		t.Fatal("released camera was handed out again")
	}
}

func TestCameraSystemLimits(t *testing.T) {
	if _, err := NewCameraSystem(0); err == nil {
		t.Fatal("expected an error for a zero capacity")
	}
	cs, _ := NewCameraSystem(1)
	if _, err := cs.Acquire("one"); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := cs.Acquire("two"); !errors.Is(err, ErrTooManyCameras) {
		t.Fatalf("err = %v, want ErrTooManyCameras", err)
	}

	def, err := cs.Acquire(DefaultCameraName)
	if err != nil || def != cs.GetDefault() {
		t.Fatal("default camera not returned past capacity")
	}
	cs.Release(DefaultCameraName)
	cs.Release("unknown")
	if cs.GetDefault() != def {
		t.Fatal("default camera replaced")
	}
}
