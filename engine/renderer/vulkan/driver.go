// Package vulkan implements the gpu object model on top of goki/vulkan.
package vulkan

import (
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"

	"github.com/spaghettifunk/gensou/engine/core"
	"github.com/spaghettifunk/gensou/engine/renderer/gpu"
)

const validationLayer = "VK_LAYER_KHRONOS_validation"

// Options configures instance creation.
type Options struct {
	ApplicationName string
	// Extensions are the instance extensions the windowing system needs.
	Extensions []string
	// Debug enables the validation layer and the debug report callback.
	Debug bool
}

// Driver implements gpu.Driver.
type Driver struct {
	instance   vk.Instance
	debug      vk.DebugReportCallback
	extensions []string
	adapters   []gpu.Adapter
}

// New loads the Vulkan loader through glfw and creates the instance.
func New(opts Options) (*Driver, error) {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		err := errors.New("GetInstanceProcAddress is nil")
		core.LogError(err.Error())
		return nil, err
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		core.LogError("failed to initialize vk: %s", err)
		return nil, err
	}

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   safeString(opts.ApplicationName),
		PEngineName:        safeString("Gensou Engine"),
	}

	extensions := append([]string{"VK_KHR_surface"}, opts.Extensions...)
	var flags vk.InstanceCreateFlags
	if runtime.GOOS == "darwin" {
		extensions = append(extensions, "VK_KHR_portability_enumeration", "VK_KHR_get_physical_device_properties2")
		flags |= 1
	}

	var layers []string
	if opts.Debug {
		extensions = append(extensions, vk.ExtDebugReportExtensionName)
		if hasLayer(validationLayer) {
			layers = append(layers, validationLayer)
		} else {
			core.LogWarn("validation layer %s is not available", validationLayer)
		}
	}
	for _, e := range extensions {
		core.LogDebug("instance extension: %s", e)
	}

	createInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		Flags:                   flags,
		PApplicationInfo:        appInfo,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: safeStrings(extensions),
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     safeStrings(layers),
	}

	d := &Driver{extensions: extensions}
	if err := check(vk.CreateInstance(&createInfo, nil, &d.instance), "create instance"); err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	if err := vk.InitInstance(d.instance); err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	core.LogInfo("vulkan instance created")

	if opts.Debug {
		info := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: debugReport,
		}
		if err := check(vk.CreateDebugReportCallback(d.instance, &info, nil, &d.debug), "create debug report callback"); err != nil {
			core.LogWarn(err.Error())
		}
	}
	return d, nil
}

func hasLayer(name string) bool {
	var count uint32
	if vk.EnumerateInstanceLayerProperties(&count, nil) != vk.Success || count == 0 {
		return false
	}
	layers := make([]vk.LayerProperties, count)
	if vk.EnumerateInstanceLayerProperties(&count, layers) != vk.Success {
		return false
	}
	for i := range layers {
		layers[i].Deref()
		if cString(layers[i].LayerName[:]) == name {
			return true
		}
	}
	return false
}

func debugReport(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("[%s] code %d: %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit|vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("[%s] code %d: %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("[%s] code %d: %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}

func (d *Driver) Name() string { return "vulkan" }

func (d *Driver) RequiredInstanceExtensions() []string { return d.extensions }

func (d *Driver) Adapters() ([]gpu.Adapter, error) {
	if d.adapters != nil {
		return d.adapters, nil
	}
	var count uint32
	if err := check(vk.EnumeratePhysicalDevices(d.instance, &count, nil), "enumerate physical devices"); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, core.ErrNoSuitableDevice
	}
	devices := make([]vk.PhysicalDevice, count)
	if err := check(vk.EnumeratePhysicalDevices(d.instance, &count, devices), "enumerate physical devices"); err != nil {
		return nil, err
	}
	for _, pd := range devices[:count] {
		d.adapters = append(d.adapters, newAdapter(pd))
	}
	return d.adapters, nil
}

// windowSurface is satisfied by *glfw.Window and the platform window.
type windowSurface interface {
	CreateWindowSurface(instance interface{}, allocCallbacks unsafe.Pointer) (uintptr, error)
}

// Surface implements gpu.Surface.
type Surface struct {
	instance vk.Instance
	handle   vk.Surface
}

func (s *Surface) Destroy() {
	if s.handle != vk.NullSurface {
		vk.DestroySurface(s.instance, s.handle, nil)
		s.handle = vk.NullSurface
	}
}

func (d *Driver) CreateSurface(window any) (gpu.Surface, error) {
	w, ok := window.(windowSurface)
	if !ok {
		return nil, errors.Errorf("vulkan driver cannot present to %T", window)
	}
	ptr, err := w.CreateWindowSurface(d.instance, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create window surface")
	}
	return &Surface{instance: d.instance, handle: vk.SurfaceFromPointer(ptr)}, nil
}

func (d *Driver) Terminate() {
	if d.debug != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(d.instance, d.debug, nil)
		d.debug = vk.NullDebugReportCallback
	}
	if d.instance != nil {
		vk.DestroyInstance(d.instance, nil)
		d.instance = nil
	}
	d.adapters = nil
}
