package engine

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/spaghettifunk/gensou/engine/assets"
	"github.com/spaghettifunk/gensou/engine/core"
	"github.com/spaghettifunk/gensou/engine/platform"
	"github.com/spaghettifunk/gensou/engine/renderer"
	"github.com/spaghettifunk/gensou/engine/renderer/gpu"
	"github.com/spaghettifunk/gensou/engine/renderer/software"
	"github.com/spaghettifunk/gensou/engine/renderer/vulkan"
	"github.com/spaghettifunk/gensou/engine/scene"
	"github.com/spaghettifunk/gensou/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

// Options are the command line switches of a run.
type Options struct {
	// ConfigPath is watched for log level changes when set.
	ConfigPath string
	// Headless renders through the software driver without a window.
	Headless bool
	// MaxFrames stops the loop after that many frames. Zero runs until quit.
	MaxFrames uint64
}

type Engine struct {
	currentStage Stage
	gameInstance *Game
	config       ApplicationConfig
	opts         Options

	isRunning   atomic.Bool
	logLevel    string
	isSuspended bool
	width       uint32
	height      uint32
	frames      uint64

	ctx     context.Context
	cancel  context.CancelFunc
	clock   *core.Clock
	metrics *core.Metrics
	events  *core.EngineEvents
	input   *core.Input
	scene   *scene.Scene

	window        *platform.Window
	headless      *software.Window
	driver        gpu.Driver
	device        *renderer.Device
	commands      *renderer.CommandManager
	allocator     *renderer.Allocator
	pipelineCache *renderer.PipelineCache
	swapchain     *renderer.Swapchain
	textures      *renderer.TextureCache
	renderer      *renderer.Renderer

	systemManager *systems.SystemManager
	assetManager  *assets.AssetManager
	configWatcher *configWatcher
}

func New(g *Game, opts Options) (*Engine, error) {
	if g.FnUpdate == nil || g.FnRender == nil {
		return nil, errors.New("game must provide update and render hooks")
	}
	cfg := DefaultApplicationConfig()
	if g.ApplicationConfig != nil {
		cfg = *g.ApplicationConfig
	}
	cfg.normalize()

	events := core.NewEngineEvents()
	ctx, cancel := context.WithCancel(core.WithThreadRole(context.Background(), core.RoleMain))
	e := &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		config:       cfg,
		opts:         opts,
		width:        cfg.StartWidth,
		height:       cfg.StartHeight,
		ctx:          ctx,
		cancel:       cancel,
		clock:        core.NewClock(),
		metrics:      core.NewMetrics(),
		events:       events,
		input:        core.NewInput(events),
		scene:        scene.New(),
	}
	return e, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing
	if core.SetLogLevel(e.config.LogLevel) {
		e.logLevel = e.config.LogLevel
	}

	e.events.Quit.Subscribe(e.onQuit)
	e.events.Key.Subscribe(e.onKey)
	e.events.WindowResize.Subscribe(e.onResized)
	e.events.GPUError.Subscribe(e.onGPUError)
	e.events.AssetChanged.Subscribe(e.onAssetChanged)

	surface, err := e.createDriver()
	if err != nil {
		return err
	}
	if err := e.createRenderer(surface); err != nil {
		return err
	}

	am, err := assets.NewAssetManager(e.events)
	if err != nil {
		return err
	}
	e.assetManager = am
	if dir := e.assetsDir(); dir != "" {
		if err := am.Initialize(dir); err != nil {
			core.LogWarn("asset hot reload disabled: %s", err)
		}
	}

	if e.opts.ConfigPath != "" {
		w, err := watchApplicationConfig(e.opts.ConfigPath, e.onConfigChanged)
		if err != nil {
			core.LogWarn("config hot reload disabled: %s", err)
		} else {
			e.configWatcher = w
		}
	}

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(e); err != nil {
			return err
		}
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
			return err
		}
	}
	e.currentStage = EngineStageInitialized
	return nil
}

// createDriver opens the window and the matching driver. It returns the
// object the swapchain creates its surface for.
func (e *Engine) createDriver() (any, error) {
	if e.opts.Headless {
		e.driver = software.New(software.DefaultAdapterConfig())
		e.headless = software.NewWindow(e.width, e.height)
		return e.headless, nil
	}

	if err := platform.Init(); err != nil {
		return nil, core.Fatal(err)
	}
	w, err := platform.NewWindow(platform.WindowConfig{
		Title:     e.config.Name,
		X:         e.config.StartPosX,
		Y:         e.config.StartPosY,
		Width:     e.width,
		Height:    e.height,
		Resizable: true,
	}, e.events, e.input)
	if err != nil {
		return nil, core.Fatal(err)
	}
	e.window = w

	driver, err := vulkan.New(vulkan.Options{
		ApplicationName: e.config.Name,
		Extensions:      w.RequiredInstanceExtensions(),
		Debug:           e.config.Debug,
	})
	if err != nil {
		return nil, core.Fatal(err)
	}
	e.driver = driver
	return w, nil
}

func (e *Engine) createRenderer(surface any) error {
	cfg := e.config.Renderer
	var err error

	e.device, err = renderer.NewDevice(e.driver, renderer.DeviceOptions{
		Events:           e.events,
		Features:         gpu.AdapterFeatures{SamplerAnisotropy: true, WideLines: true},
		MultisampleCount: cfg.Multisample,
	})
	if err != nil {
		return err
	}
	if e.commands, err = renderer.NewCommandManager(e.device, renderer.NewFrameCounter(cfg.FramesInFlight)); err != nil {
		return err
	}
	e.allocator = renderer.NewAllocator(e.device, e.commands)

	if e.pipelineCache, err = renderer.LoadPipelineCache(e.device, cfg.PipelineCache); err != nil {
		return err
	}

	var shaders renderer.ShaderSource = renderer.ShaderDir(cfg.ShaderDir)
	if e.opts.Headless {
		shaders = renderer.NoShaders{}
	}
	if e.swapchain, err = renderer.NewSwapchain(e.driver, e.allocator, shaders); err != nil {
		return err
	}
	e.swapchain.SetPipelineCache(e.pipelineCache.Native())

	extent := gpu.Extent2D{Width: e.width, Height: e.height}
	props := renderer.DefaultSwapchainProperties(extent)
	props.VSync = cfg.VSync
	if err := e.swapchain.CreateSurface(surface, props); err != nil {
		return err
	}
	if err := e.swapchain.Create(extent, cfg.VSync); err != nil {
		return err
	}

	if e.systemManager, err = systems.NewSystemManager(e.ctx, cfg.FramesInFlight); err != nil {
		return err
	}
	e.textures = renderer.NewTextureCache(e.allocator)
	if e.renderer, err = renderer.New(e.ctx, e.swapchain, e.systemManager.RenderThread(), e.textures, cfg); err != nil {
		return err
	}
	return nil
}

func (e *Engine) assetsDir() string {
	dir := e.config.AssetsDir
	if dir == "" {
		return ""
	}
	if !filepath.IsAbs(dir) {
		wd, err := os.Getwd()
		if err != nil {
			return ""
		}
		dir = filepath.Join(wd, dir)
	}
	if s, err := os.Stat(dir); err != nil || !s.IsDir() {
		core.LogWarn("assets directory '%s' not found", dir)
		return ""
	}
	return dir
}

func (e *Engine) Run() error {
	e.currentStage = EngineStageRunning
	e.isRunning.Store(true)
	e.clock.Start()
	e.clock.Update()
	lastTime := e.clock.Elapsed()

	for e.isRunning.Load() {
		if e.window != nil && !e.window.PumpMessages() {
			break
		}
		if e.isSuspended && e.window != nil {
			e.window.WaitWhileMinimized()
			continue
		}

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - lastTime

		if err := e.gameInstance.FnUpdate(e, delta); err != nil {
			core.LogError("game update failed, shutting down: %s", err)
			return err
		}
		if err := e.gameInstance.FnRender(e.renderer, delta); err != nil {
			core.LogError("game render failed, shutting down: %s", err)
			return err
		}
		if err := e.renderer.Render(e.ctx); err != nil {
			core.LogError("render failed, shutting down: %s", err)
			return err
		}

		e.clock.Update()
		e.metrics.Update(e.clock.Elapsed() - currentTime)
		e.input.Update()
		lastTime = currentTime

		e.frames++
		if e.frames%600 == 0 {
			fps, ms := e.metrics.Frame()
			core.LogDebug("frame %d: %.0f fps, %.3f ms", e.frames, fps, ms)
		}
		if e.opts.MaxFrames > 0 && e.frames >= e.opts.MaxFrames {
			break
		}
	}
	e.isRunning.Store(false)
	return e.renderer.WaitRenderCmds()
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	var result error
	keep := func(err error) {
		if err != nil {
			core.LogError(err.Error())
			if result == nil {
				result = err
			}
		}
	}

	if e.gameInstance.FnShutdown != nil {
		keep(e.gameInstance.FnShutdown())
	}
	if e.configWatcher != nil {
		keep(e.configWatcher.Close())
	}
	if e.assetManager != nil {
		keep(e.assetManager.Shutdown())
	}
	if e.renderer != nil {
		e.renderer.Terminate()
	}
	if e.textures != nil {
		e.textures.Destroy()
	}
	if e.systemManager != nil {
		keep(e.systemManager.Shutdown())
	}
	if e.device != nil {
		keep(e.device.GPU().WaitIdle())
	}
	if e.pipelineCache != nil {
		e.pipelineCache.Destroy()
	}
	if e.swapchain != nil {
		e.swapchain.Terminate()
	}
	if e.commands != nil {
		e.commands.Clear()
	}
	if e.device != nil {
		e.device.Terminate()
	}
	if e.driver != nil {
		e.driver.Terminate()
	}
	if e.window != nil {
		e.window.Destroy()
		platform.Terminate()
	}
	e.cancel()
	e.currentStage = EngineStageUninitialized
	return result
}

func (e *Engine) Stage() Stage                         { return e.currentStage }
func (e *Engine) Config() ApplicationConfig            { return e.config }
func (e *Engine) Events() *core.EngineEvents           { return e.events }
func (e *Engine) Input() *core.Input                   { return e.input }
func (e *Engine) Scene() *scene.Scene                  { return e.scene }
func (e *Engine) Renderer() *renderer.Renderer         { return e.renderer }
func (e *Engine) Metrics() *core.Metrics               { return e.metrics }
func (e *Engine) Systems() *systems.SystemManager      { return e.systemManager }
func (e *Engine) Context() context.Context             { return e.ctx }
func (e *Engine) FramesRendered() uint64               { return e.frames }
func (e *Engine) GetFramebufferSize() (uint32, uint32) { return e.width, e.height }

// Quit stops the main loop after the current frame.
func (e *Engine) Quit() {
	e.events.Quit.Broadcast(struct{}{})
}

func (e *Engine) onQuit(struct{}) {
	core.LogInfo("quit requested, shutting down")
	e.isRunning.Store(false)
}

func (e *Engine) onKey(k core.KeyEvent) {
	if k.Pressed && k.Key == core.KeyEscape {
		e.Quit()
	}
}

func (e *Engine) onResized(r core.ResizeEvent) {
	if r.Width == e.width && r.Height == e.height {
		return
	}
	e.width, e.height = r.Width, r.Height
	core.LogDebug("window resize: %d, %d", r.Width, r.Height)

	if r.Width == 0 || r.Height == 0 {
		core.LogInfo("window minimized, suspending application")
		e.isSuspended = true
		return
	}
	if e.isSuspended {
		core.LogInfo("window restored, resuming application")
		e.isSuspended = false
	}
	if e.renderer != nil {
		if err := e.renderer.OnResize(r.Width, r.Height); err != nil {
			core.LogError(err.Error())
		}
		e.width, e.height = e.renderer.WindowExtent().Width, e.renderer.WindowExtent().Height
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
			core.LogError(err.Error())
		}
	}
}

// onGPUError may run on any thread that touched the device. Sites that
// report a fatal error terminate through core.Fatal themselves.
func (e *Engine) onGPUError(ev core.GPUErrorEvent) {
	r := gpu.Result(ev.Result)
	switch {
	case ev.Fatal:
		core.LogError("gpu: %s (%s)", ev.Context, r)
	case r == gpu.ErrorDeviceLost:
		core.Fatal(errors.Errorf("gpu: %s (%s)", ev.Context, r))
	default:
		core.LogWarn("gpu: %s (%s)", ev.Context, r)
	}
}

// onAssetChanged runs on the asset watcher goroutine. Textures are cached
// under the path they were loaded with, which may be relative.
func (e *Engine) onAssetChanged(ev core.AssetChangedEvent) {
	if e.textures == nil {
		return
	}
	paths := []string{ev.Path}
	if wd, err := os.Getwd(); err == nil {
		if rel, err := filepath.Rel(wd, ev.Path); err == nil {
			paths = append(paths, rel)
		}
	}
	for _, p := range paths {
		if e.textures.Evict(p) {
			core.LogInfo("texture '%s' evicted, it reloads on next use", p)
		}
	}
}

// onConfigChanged runs on the config watcher goroutine and only applies
// settings that are safe to change while running.
func (e *Engine) onConfigChanged(cfg ApplicationConfig) {
	if cfg.LogLevel == e.logLevel {
		return
	}
	if core.SetLogLevel(cfg.LogLevel) {
		core.LogInfo("log level set to %s", cfg.LogLevel)
		e.logLevel = cfg.LogLevel
	}
}

// SetClearColor forwards to the renderer from the next frame on.
func (e *Engine) SetClearColor(c mgl32.Vec4) {
	e.renderer.SetClearValue(c)
}
