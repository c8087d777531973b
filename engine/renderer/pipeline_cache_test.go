package renderer

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/gensou/engine/renderer/gpu"
	"github.com/spaghettifunk/gensou/engine/renderer/software"
)

// populatedCacheBlob creates a cache holding one pipeline and serializes it.
func populatedCacheBlob(t *testing.T, d *Device) []byte {
	t.Helper()
	cache, err := LoadPipelineCache(d, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	defer cache.Destroy()

	rp, err := d.GPU().CreateRenderPass(screenRenderPassInfo(gpu.FormatB8G8R8A8Srgb))
	if err != nil {
		t.Fatalf("render pass: %v", err)
	}
	defer rp.Destroy()
	p, err := d.GPU().CreateGraphicsPipeline(gpu.GraphicsPipelineInfo{
		Name:           "quad",
		RenderPass:     rp,
		VertexShader:   make([]byte, 64),
		FragmentShader: make([]byte, 32),
		Cache:          cache.Native(),
	})
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	defer p.Destroy()

	blob, err := cache.Serialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	return blob
}

func TestPipelineCacheValid(t *testing.T) {
	d := newTestDevice(t)
	blob := populatedCacheBlob(t, d)
	if len(blob) <= pipelineCacheHeaderSize+nativeCacheHeaderSize {
		t.Fatalf("blob has no payload (%d bytes)", len(blob))
	}
	if !CheckPipelineCache(blob, d) {
		t.Fatal("freshly serialized cache rejected")
	}
	if got := binary.LittleEndian.Uint32(blob[0:]); got != uint32(len(blob)-pipelineCacheHeaderSize) {
		t.Fatalf("stored size = %d", got)
	}
}

func TestPipelineCacheRejectsPayloadTampering(t *testing.T) {
	d := newTestDevice(t)
	blob := populatedCacheBlob(t, d)

	for i := pipelineCacheHeaderSize + nativeCacheHeaderSize; i < len(blob); i++ {
		tampered := append([]byte(nil), blob...)
		tampered[i] ^= 0xff
		if CheckPipelineCache(tampered, d) {
			t.Fatalf("flipping byte %d was not detected", i)
		}
	}
}

func TestPipelineCacheRejectsForeignHeader(t *testing.T) {
	d := newTestDevice(t)
	blob := populatedCacheBlob(t, d)
	native := pipelineCacheHeaderSize

	cases := []struct {
		name   string
		mutate func(b []byte)
	}{
		{"native header size", func(b []byte) { binary.LittleEndian.PutUint32(b[native:], 16) }},
		{"native header version", func(b []byte) { binary.LittleEndian.PutUint32(b[native+4:], 2) }},
		{"vendor id", func(b []byte) { binary.LittleEndian.PutUint32(b[native+8:], 0x10de) }},
		{"device id", func(b []byte) { binary.LittleEndian.PutUint32(b[native+12:], 0x2204) }},
		{"uuid", func(b []byte) { b[native+20] ^= 0x01 }},
		{"driver version", func(b []byte) { binary.LittleEndian.PutUint32(b[8:], 99) }},
		{"stored hash", func(b []byte) { b[4] ^= 0x01 }},
		{"stored size", func(b []byte) { binary.LittleEndian.PutUint32(b[0:], 8) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tampered := append([]byte(nil), blob...)
			tc.mutate(tampered)
			if CheckPipelineCache(tampered, d) {
				t.Fatal("tampered cache accepted")
			}
		})
	}

	if CheckPipelineCache(blob[:pipelineCacheHeaderSize+10], d) {
		t.Fatal("truncated cache accepted")
	}
}

func TestPipelineCacheRejectsOtherDriverVersion(t *testing.T) {
	blob := populatedCacheBlob(t, newTestDevice(t))

	cfg := software.DefaultAdapterConfig()
	cfg.Properties.DriverVersion++
	if CheckPipelineCache(blob, newDeviceWith(t, cfg)) {
		t.Fatal("cache from another driver version accepted")
	}
}

func TestPipelineCacheSaveAndLoad(t *testing.T) {
	d := newTestDevice(t)
	path := filepath.Join(t.TempDir(), "cache", "pipeline_cache")

	cache, err := LoadPipelineCache(d, path)
	if err != nil {
		t.Fatalf("load missing file: %v", err)
	}
	rp, err := d.GPU().CreateRenderPass(screenRenderPassInfo(gpu.FormatB8G8R8A8Srgb))
	if err != nil {
		t.Fatalf("render pass: %v", err)
	}
	defer rp.Destroy()
	if _, err := d.GPU().CreateGraphicsPipeline(gpu.GraphicsPipelineInfo{Name: "screen", RenderPass: rp, Cache: cache.Native()}); err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	want, err := cache.Native().Data()
	if err != nil {
		t.Fatalf("data: %v", err)
	}
	cache.Destroy()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("cache not written: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temporary cache file left behind: %v", err)
	}

	reloaded, err := LoadPipelineCache(d, path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	defer reloaded.Destroy()
	got, err := reloaded.Native().Data()
	if err != nil {
		t.Fatalf("data: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatal("reloaded cache lost its contents")
	}
}

func TestPipelineCacheCorruptFileStartsEmpty(t *testing.T) {
	d := newTestDevice(t)
	path := filepath.Join(t.TempDir(), "pipeline_cache")
	if err := os.WriteFile(path, []byte("definitely not a cache"), 0o644); err != nil {
		t.Fatal(err)
	}

	cache, err := LoadPipelineCache(d, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	defer cache.Destroy()
	data, err := cache.Native().Data()
	if err != nil {
		t.Fatalf("data: %v", err)
	}
	if len(data) != nativeCacheHeaderSize {
		t.Fatalf("cache seeded from a corrupt file (%d bytes)", len(data))
	}
}
