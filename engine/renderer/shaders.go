package renderer

import (
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/spaghettifunk/gensou/engine/assets/loaders"
)

// ShaderSource resolves compiled SPIR-V modules by name, for example
// "screen_quad.vert".
type ShaderSource interface {
	Shader(name string) ([]byte, error)
}

// ShaderDir loads <dir>/<name>.spv from disk.
type ShaderDir string

func (d ShaderDir) Shader(name string) ([]byte, error) {
	code, err := loaders.LoadSPIRV(filepath.Join(string(d), name+".spv"))
	if err != nil {
		return nil, errors.Wrapf(err, "load shader %s", name)
	}
	return code, nil
}

// NoShaders hands out empty modules. Only drivers that never execute shader
// code (the software driver) accept them.
type NoShaders struct{}

func (NoShaders) Shader(string) ([]byte, error) { return nil, nil }

func loadStages(src ShaderSource, name string) (vert, frag []byte, err error) {
	if vert, err = src.Shader(name + ".vert"); err != nil {
		return nil, nil, err
	}
	if frag, err = src.Shader(name + ".frag"); err != nil {
		return nil, nil, err
	}
	return vert, frag, nil
}
