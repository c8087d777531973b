package engine

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"

	"github.com/spaghettifunk/gensou/engine/core"
	"github.com/spaghettifunk/gensou/engine/renderer"
)

type ApplicationConfig struct {
	// Window starting position x axis, if applicable.
	StartPosX int `toml:"start_pos_x"`
	// Window starting position y axis, if applicable.
	StartPosY int `toml:"start_pos_y"`
	// Window starting width, if applicable.
	StartWidth uint32 `toml:"start_width"`
	// Window starting height, if applicable.
	StartHeight uint32 `toml:"start_height"`
	// The application name used in windowing, if applicable.
	Name      string `toml:"name"`
	LogLevel  string `toml:"log_level"`
	AssetsDir string `toml:"assets_dir"`
	// Debug enables the GPU validation layer.
	Debug    bool            `toml:"debug"`
	Renderer renderer.Config `toml:"renderer"`
}

func DefaultApplicationConfig() ApplicationConfig {
	return ApplicationConfig{
		StartPosX:   100,
		StartPosY:   100,
		StartWidth:  1280,
		StartHeight: 720,
		Name:        "Gensou",
		LogLevel:    "info",
		AssetsDir:   "assets",
		Renderer:    renderer.DefaultConfig(),
	}
}

// LoadApplicationConfig reads a TOML file on top of the defaults. Keys
// missing from the file keep their default value. An empty path returns the
// defaults.
func LoadApplicationConfig(path string) (ApplicationConfig, error) {
	cfg := DefaultApplicationConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "read config %s", path)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return cfg, errors.Errorf("config %s:%d:%d: %s", path, row, col, derr.Error())
		}
		return cfg, errors.Wrapf(err, "decode config %s", path)
	}
	cfg.normalize()
	return cfg, nil
}

func (c *ApplicationConfig) normalize() {
	def := DefaultApplicationConfig()
	if c.StartWidth == 0 {
		c.StartWidth = def.StartWidth
	}
	if c.StartHeight == 0 {
		c.StartHeight = def.StartHeight
	}
	if c.Name == "" {
		c.Name = def.Name
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	c.Renderer = c.Renderer.Normalize()
}

// configWatcher reloads the config file whenever it is written and hands the
// new values to onChange.
type configWatcher struct {
	path     string
	onChange func(ApplicationConfig)
	watcher  *fsnotify.Watcher
	done     chan struct{}
	wg       sync.WaitGroup
}

// watchApplicationConfig watches the directory holding path, since editors
// often replace the file instead of writing it in place.
func watchApplicationConfig(path string, onChange func(ApplicationConfig)) (*configWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, errors.Wrapf(err, "watch %s", filepath.Dir(abs))
	}

	cw := &configWatcher{path: abs, onChange: onChange, watcher: w, done: make(chan struct{})}
	cw.wg.Add(1)
	go cw.run()
	return cw, nil
}

func (cw *configWatcher) run() {
	defer cw.wg.Done()
	for {
		select {
		case e, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(e.Name) != cw.path || e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := LoadApplicationConfig(cw.path)
			if err != nil {
				core.LogWarn("config reload failed: %s", err)
				continue
			}
			core.LogInfo("reloaded config '%s'", cw.path)
			cw.onChange(cfg)

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			core.LogError(err.Error())

		case <-cw.done:
			return
		}
	}
}

func (cw *configWatcher) Close() error {
	close(cw.done)
	err := cw.watcher.Close()
	cw.wg.Wait()
	return err
}
