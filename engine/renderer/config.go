package renderer

// Config is the [renderer] table of the engine configuration file.
type Config struct {
	FramesInFlight uint32     `toml:"frames_in_flight"`
	VSync          bool       `toml:"vsync"`
	ClearColor     [4]float32 `toml:"clear_color"`
	DepthPrecision uint8      `toml:"depth_precision"`
	ShaderDir      string     `toml:"shader_dir"`
	PipelineCache  string     `toml:"pipeline_cache"`
	Multisample    uint32     `toml:"multisample"`
}

func DefaultConfig() Config {
	return Config{
		FramesInFlight: MaxFramesInFlight,
		VSync:          true,
		ClearColor:     [4]float32{0, 0, 0, 1},
		DepthPrecision: 16,
		ShaderDir:      "assets/shaders",
		PipelineCache:  "pipeline.cache",
		Multisample:    1,
	}
}

// Normalize fills zero values with defaults and clamps out of range ones.
func (c Config) Normalize() Config {
	def := DefaultConfig()
	if c.FramesInFlight == 0 || c.FramesInFlight > MaxFramesInFlight {
		c.FramesInFlight = def.FramesInFlight
	}
	if c.DepthPrecision == 0 {
		c.DepthPrecision = def.DepthPrecision
	}
	if c.ShaderDir == "" {
		c.ShaderDir = def.ShaderDir
	}
	if c.Multisample == 0 {
		c.Multisample = 1
	}
	return c
}
