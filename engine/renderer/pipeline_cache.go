package renderer

import (
	"bytes"
	"encoding/binary"
	"hash/fnv"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/spaghettifunk/gensou/engine/core"
	"github.com/spaghettifunk/gensou/engine/renderer/gpu"
)

const (
	// pipelineCacheHeaderSize is the engine header {size, hash, driverVersion}
	// written in front of the native blob.
	pipelineCacheHeaderSize = 12

	nativeCacheHeaderSize       = 32
	nativeCacheHeaderVersionOne = 1
)

type pipelineCacheHeader struct {
	Size          uint32
	Hash          uint32
	DriverVersion uint32
}

func hashPipelineCache(native []byte) uint32 {
	h := fnv.New32a()
	_, _ = h.Write(native)
	return h.Sum32()
}

// SerializePipelineCache prefixes a native cache blob with the engine header.
func SerializePipelineCache(native []byte, driverVersion uint32) []byte {
	var buf bytes.Buffer
	buf.Grow(pipelineCacheHeaderSize + len(native))
	_ = binary.Write(&buf, binary.LittleEndian, pipelineCacheHeader{
		Size:          uint32(len(native)),
		Hash:          hashPipelineCache(native),
		DriverVersion: driverVersion,
	})
	buf.Write(native)
	return buf.Bytes()
}

// CheckPipelineCache reports whether blob was written by this device and
// driver and arrived intact. Any failed check means the cache must be
// rebuilt from scratch.
func CheckPipelineCache(blob []byte, d *Device) bool {
	if len(blob) < pipelineCacheHeaderSize+nativeCacheHeaderSize {
		core.LogWarn("pipeline cache invalid, blob too short (%d bytes)", len(blob))
		return false
	}
	var header pipelineCacheHeader
	_ = binary.Read(bytes.NewReader(blob[:pipelineCacheHeaderSize]), binary.LittleEndian, &header)
	native := blob[pipelineCacheHeaderSize:]

	le := binary.LittleEndian
	switch {
	case le.Uint32(native[0:]) != nativeCacheHeaderSize:
		core.LogWarn("pipeline cache invalid, invalid header")
		return false
	case le.Uint32(native[4:]) != nativeCacheHeaderVersionOne:
		core.LogWarn("pipeline cache invalid, invalid header version")
		return false
	case le.Uint32(native[8:]) != d.VendorID():
		core.LogWarn("pipeline cache invalid, invalid vendor id")
		return false
	case le.Uint32(native[12:]) != d.DeviceID():
		core.LogWarn("pipeline cache invalid, invalid device id")
		return false
	}
	uuid := d.PipelineCacheUUID()
	if !bytes.Equal(native[16:32], uuid[:]) {
		core.LogWarn("pipeline cache invalid, invalid pipeline cache UUID")
		return false
	}
	if header.DriverVersion != d.DriverVersion() {
		core.LogWarn("pipeline cache invalid, not same driver version")
		return false
	}
	if uint64(header.Size) != uint64(len(native)) {
		core.LogWarn("pipeline cache invalid, size %d does not match payload of %d bytes", header.Size, len(native))
		return false
	}
	if got := hashPipelineCache(native); got != header.Hash {
		core.LogWarn("pipeline cache invalid, hash code not the same (loaded = %d, generated = %d). data probably corrupt", header.Hash, got)
		return false
	}
	core.LogInfo("pipeline cache found and valid")
	return true
}

// PipelineCache is the native cache plus the file it persists to.
type PipelineCache struct {
	device *Device
	native gpu.PipelineCache
	path   string
}

// LoadPipelineCache creates a pipeline cache seeded from path when the file
// holds a valid blob for this device. A missing or invalid file starts an
// empty cache. An empty path disables persistence.
func LoadPipelineCache(d *Device, path string) (*PipelineCache, error) {
	var initial []byte
	if path != "" {
		blob, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			core.LogDebug("no pipeline cache at '%s'", path)
		case err != nil:
			core.LogWarn("could not read pipeline cache '%s': %s", path, err.Error())
		case CheckPipelineCache(blob, d):
			initial = blob[pipelineCacheHeaderSize:]
			core.LogDebug("reusing pipeline cache loaded from '%s'", path)
		}
	}

	native, err := d.GPU().CreatePipelineCache(initial)
	if err != nil {
		d.reportError(gpu.ErrorInitializationFailed, "failed to create pipeline cache", false)
		return nil, errors.Wrap(err, "create pipeline cache")
	}
	return &PipelineCache{device: d, native: native, path: path}, nil
}

func (c *PipelineCache) Native() gpu.PipelineCache { return c.native }
func (c *PipelineCache) Path() string              { return c.path }

// Serialize returns the engine blob for the current cache contents.
func (c *PipelineCache) Serialize() ([]byte, error) {
	native, err := c.native.Data()
	if err != nil {
		return nil, errors.Wrap(err, "get pipeline cache data")
	}
	return SerializePipelineCache(native, c.device.DriverVersion()), nil
}

// Save writes the serialized cache to its path.
func (c *PipelineCache) Save() error {
	if c.path == "" {
		return nil
	}
	blob, err := c.Serialize()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return errors.Wrap(err, "create pipeline cache directory")
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o644); err != nil {
		return errors.Wrap(err, "write pipeline cache")
	}
	if err := os.Rename(tmp, c.path); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(err, "replace pipeline cache")
	}
	core.LogDebug("serialized pipeline cache with hash %d in path '%s'", hashPipelineCache(blob[pipelineCacheHeaderSize:]), c.path)
	return nil
}

// Destroy saves the cache and releases the native object.
func (c *PipelineCache) Destroy() {
	if c.native == nil {
		return
	}
	if err := c.Save(); err != nil {
		core.LogError(err.Error())
	}
	c.native.Destroy()
	c.native = nil
	core.LogDebug("destroyed pipeline cache")
}
