package loaders

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

// LoadSPIRV reads a compiled shader module. SPIR-V is a stream of 32 bit
// words so the size must be a multiple of four.
func LoadSPIRV(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	if len(buf)%4 != 0 {
		return nil, errors.Errorf("shader '%s' is %d bytes, not a whole number of words", path, len(buf))
	}
	return buf, nil
}
