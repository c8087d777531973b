package core

import (
	"testing"
	"time"
)

func TestMetricsAverages(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < int(AVG_COUNT); i++ {
		m.Update(0.0625)
	}
	if got := m.FrameTime(); got != 62.5 {
		t.Fatalf("frame time = %v ms, want 62.5", got)
	}
}

func TestMetricsFPS(t *testing.T) {
	m := NewMetrics()
	// 62.5ms frames cross one second on the 17th update
	for i := 0; i < 16; i++ {
		m.Update(0.0625)
	}
	if m.FPS() != 0 {
		t.Fatalf("fps = %v before a full second", m.FPS())
	}
	m.Update(0.0625)
	if fps, _ := m.Frame(); fps != 16 {
		t.Fatalf("fps = %v, want 16", fps)
	}
}

func TestClock(t *testing.T) {
	c := NewClock()
	c.Update()
	if c.Elapsed() != 0 {
		t.Fatalf("elapsed = %v before Start", c.Elapsed())
	}

	c.Start()
	time.Sleep(5 * time.Millisecond)
	c.Update()
	elapsed := c.Elapsed()
	if elapsed < 0.005 {
		t.Fatalf("elapsed = %v, want at least 5ms", elapsed)
	}

	c.Stop()
	time.Sleep(2 * time.Millisecond)
	c.Update()
	if c.Elapsed() != elapsed {
		t.Fatalf("stopped clock moved from %v to %v", elapsed, c.Elapsed())
	}
}
