package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/gensou/engine/core"
	"github.com/spaghettifunk/gensou/engine/renderer"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gensou.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadApplicationConfig(t *testing.T) {
	path := writeConfig(t, `
name = "testbed"
start_width = 800
log_level = "debug"

[renderer]
frames_in_flight = 2
vsync = false
clear_color = [0.1, 0.2, 0.3, 1.0]
`)
	cfg, err := LoadApplicationConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Name != "testbed" || cfg.StartWidth != 800 || cfg.LogLevel != "debug" {
		t.Fatalf("application = %+v", cfg)
	}
	if cfg.StartHeight != 720 {
		t.Fatalf("missing start_height = %d, want the default 720", cfg.StartHeight)
	}
	r := cfg.Renderer
	if r.FramesInFlight != 2 || r.VSync || r.ClearColor != [4]float32{0.1, 0.2, 0.3, 1} {
		t.Fatalf("renderer = %+v", r)
	}
	if r.ShaderDir != renderer.DefaultConfig().ShaderDir || r.DepthPrecision != 16 {
		t.Fatalf("renderer defaults lost: %+v", r)
	}
}

func TestLoadApplicationConfigNormalizes(t *testing.T) {
	path := writeConfig(t, `
name = ""
[renderer]
frames_in_flight = 9
`)
	cfg, err := LoadApplicationConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Name != "Gensou" {
		t.Fatalf("name = %q", cfg.Name)
	}
	if cfg.Renderer.FramesInFlight != renderer.MaxFramesInFlight {
		t.Fatalf("frames in flight = %d, want clamp to %d", cfg.Renderer.FramesInFlight, renderer.MaxFramesInFlight)
	}
}

func TestLoadApplicationConfigErrors(t *testing.T) {
	if _, err := LoadApplicationConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
	if _, err := LoadApplicationConfig(writeConfig(t, "name = [")); err == nil {
		t.Fatal("expected a decode error")
	}
	cfg, err := LoadApplicationConfig("")
	if err != nil || cfg != DefaultApplicationConfig() {
		t.Fatalf("empty path = %+v, %v", cfg, err)
	}
}

func TestEngineHeadlessRun(t *testing.T) {
	restore := core.SetFatalHooks(func(string, string) {}, func(int) { t.Error("fatal called") })
	defer restore()

	cfg := DefaultApplicationConfig()
	cfg.StartWidth, cfg.StartHeight = 64, 48
	cfg.AssetsDir = t.TempDir()
	cfg.Renderer.PipelineCache = filepath.Join(t.TempDir(), "pipeline.cache")

	var updates, renders int
	var resized [2]uint32
	game := &Game{
		ApplicationConfig: &cfg,
		FnUpdate: func(e *Engine, dt float64) error {
			updates++
			return nil
		},
		FnRender: func(r *renderer.Renderer, dt float64) error {
			renders++
			r.SubmitQuad(mgl32.Vec2{1, 1}, mgl32.Ident4(), mgl32.Vec4{1, 0, 0, 1})
			r.SubmitCube(mgl32.Vec4{1, 1, 1, 1}, mgl32.Ident4())
			return nil
		},
		FnOnResize: func(w, h uint32) error {
			resized = [2]uint32{w, h}
			return nil
		},
	}

	e, err := New(game, Options{Headless: true, MaxFrames: 5})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := e.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if e.Stage() != EngineStageInitialized {
		t.Fatalf("stage = %d", e.Stage())
	}
	if resized != [2]uint32{64, 48} {
		t.Fatalf("initial resize = %v", resized)
	}
	if err := e.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	if updates != 5 || renders != 5 || e.FramesRendered() != 5 {
		t.Fatalf("updates = %d renders = %d frames = %d", updates, renders, e.FramesRendered())
	}
	if err := e.Shutdown(); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if _, err := os.Stat(cfg.Renderer.PipelineCache); err != nil {
		t.Fatalf("pipeline cache not saved: %v", err)
	}
}

func TestEngineQuitOnEscape(t *testing.T) {
	e, err := New(&Game{
		FnUpdate: func(*Engine, float64) error { return nil },
		FnRender: func(*renderer.Renderer, float64) error { return nil },
	}, Options{Headless: true})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	e.events.Quit.Subscribe(e.onQuit)
	e.events.Key.Subscribe(e.onKey)
	e.isRunning.Store(true)

	e.input.ProcessKey(core.KeyA, true)
	if !e.isRunning.Load() {
		t.Fatal("A stopped the engine")
	}
	e.input.ProcessKey(core.KeyEscape, true)
	if e.isRunning.Load() {
		t.Fatal("escape did not stop the engine")
	}
}

func TestNewRequiresHooks(t *testing.T) {
	if _, err := New(&Game{}, Options{}); err == nil {
		t.Fatal("expected an error without update and render hooks")
	}
}
