package renderer

import (
	"context"
	"testing"

	"github.com/spaghettifunk/gensou/engine/core"
	"github.com/spaghettifunk/gensou/engine/renderer/gpu"
	"github.com/spaghettifunk/gensou/engine/renderer/software"
)

// captureFatal replaces the fatal hooks for the duration of the test and
// reports how many times Fatal was called.
func captureFatal(t *testing.T) *int {
	t.Helper()
	calls := new(int)
	restore := core.SetFatalHooks(func(string, string) {}, func(int) { *calls++ })
	t.Cleanup(restore)
	return calls
}

func newDeviceWith(t *testing.T, cfg software.AdapterConfig) *Device {
	t.Helper()
	captureFatal(t)
	d, err := NewDevice(software.New(cfg), DeviceOptions{
		Events:           core.NewEngineEvents(),
		Features:         gpu.AdapterFeatures{SamplerAnisotropy: true, WideLines: true},
		MultisampleCount: 1,
	})
	if err != nil {
		t.Fatalf("new device: %v", err)
	}
	t.Cleanup(d.Terminate)
	return d
}

func newTestDevice(t *testing.T) *Device {
	t.Helper()
	return newDeviceWith(t, software.DefaultAdapterConfig())
}

func newTestManager(t *testing.T, framesInFlight uint32) (*Device, *CommandManager) {
	t.Helper()
	d := newTestDevice(t)
	m, err := NewCommandManager(d, NewFrameCounter(framesInFlight))
	if err != nil {
		t.Fatalf("command manager: %v", err)
	}
	t.Cleanup(m.Clear)
	return d, m
}

func mainCtx() context.Context {
	return core.WithThreadRole(context.Background(), core.RoleMain)
}

func softDevice(d *Device) *software.Device {
	return d.GPU().(*software.Device)
}
