package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/gensou/engine/core"
	"github.com/spaghettifunk/gensou/engine/renderer/gpu"
)

const portabilitySubset = "VK_KHR_portability_subset"

// Adapter implements gpu.Adapter for one physical device.
type Adapter struct {
	physical   vk.PhysicalDevice
	properties gpu.AdapterProperties
	features   gpu.AdapterFeatures
	families   []gpu.QueueFamily
	memory     vk.PhysicalDeviceMemoryProperties
	extensions map[string]bool
}

func newAdapter(pd vk.PhysicalDevice) *Adapter {
	a := &Adapter{physical: pd, extensions: map[string]bool{}}

	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(pd, &props)
	props.Deref()
	props.Limits.Deref()
	l := props.Limits
	a.properties = gpu.AdapterProperties{
		Name:              cString(props.DeviceName[:]),
		VendorID:          props.VendorID,
		DeviceID:          props.DeviceID,
		DriverVersion:     props.DriverVersion,
		APIVersion:        props.ApiVersion,
		PipelineCacheUUID: props.PipelineCacheUUID,
		Integrated:        props.DeviceType == vk.PhysicalDeviceTypeIntegratedGpu,
		Limits: gpu.Limits{
			MaxImageDimension2D:             l.MaxImageDimension2D,
			MaxPushConstantsSize:            l.MaxPushConstantsSize,
			MinUniformBufferOffsetAlignment: uint64(l.MinUniformBufferOffsetAlignment),
			MinStorageBufferOffsetAlignment: uint64(l.MinStorageBufferOffsetAlignment),
			NonCoherentAtomSize:             uint64(l.NonCoherentAtomSize),
			MaxSamplerAnisotropy:            l.MaxSamplerAnisotropy,
			MaxSamplerLodBias:               l.MaxSamplerLodBias,
			LineWidthRange:                  l.LineWidthRange,
			FramebufferColorSampleCounts:    gpu.SampleCountFlags(l.FramebufferColorSampleCounts),
			FramebufferDepthSampleCounts:    gpu.SampleCountFlags(l.FramebufferDepthSampleCounts),
		},
	}

	var features vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(pd, &features)
	features.Deref()
	a.features = gpu.AdapterFeatures{
		ShaderSampledImageArrayDynamicIndexing: features.ShaderSampledImageArrayDynamicIndexing == vk.True,
		SamplerAnisotropy:                      features.SamplerAnisotropy == vk.True,
		TextureCompressionASTC:                 features.TextureCompressionASTC_LDR == vk.True,
		WideLines:                              features.WideLines == vk.True,
		FillModeNonSolid:                       features.FillModeNonSolid == vk.True,
	}

	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &count, nil)
	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &count, families)
	for i := range families {
		families[i].Deref()
		a.families = append(a.families, gpu.QueueFamily{
			Flags: gpu.QueueFlags(families[i].QueueFlags),
			Count: families[i].QueueCount,
		})
	}

	vk.GetPhysicalDeviceMemoryProperties(pd, &a.memory)
	a.memory.Deref()

	var extCount uint32
	if vk.EnumerateDeviceExtensionProperties(pd, "", &extCount, nil) == vk.Success && extCount > 0 {
		exts := make([]vk.ExtensionProperties, extCount)
		if vk.EnumerateDeviceExtensionProperties(pd, "", &extCount, exts) == vk.Success {
			for i := range exts {
				exts[i].Deref()
				a.extensions[cString(exts[i].ExtensionName[:])] = true
			}
		}
	}
	return a
}

func (a *Adapter) Properties() gpu.AdapterProperties { return a.properties }
func (a *Adapter) Features() gpu.AdapterFeatures     { return a.features }

func (a *Adapter) QueueFamilies() []gpu.QueueFamily {
	return append([]gpu.QueueFamily(nil), a.families...)
}

func (a *Adapter) SupportsLazyAllocation() bool {
	for i := uint32(0); i < a.memory.MemoryTypeCount; i++ {
		t := a.memory.MemoryTypes[i]
		t.Deref()
		if vk.MemoryPropertyFlagBits(t.PropertyFlags)&vk.MemoryPropertyLazilyAllocatedBit != 0 {
			return true
		}
	}
	return false
}

func (a *Adapter) FormatFeatures(f gpu.Format) gpu.FormatFeatureFlags {
	var props vk.FormatProperties
	vk.GetPhysicalDeviceFormatProperties(a.physical, vk.Format(f), &props)
	props.Deref()
	return gpu.FormatFeatureFlags(props.OptimalTilingFeatures)
}

func surfaceHandle(s gpu.Surface) vk.Surface {
	if vs, ok := s.(*Surface); ok {
		return vs.handle
	}
	return vk.NullSurface
}

func (a *Adapter) SurfaceSupport(family uint32, s gpu.Surface) (bool, error) {
	var supported vk.Bool32
	if err := check(vk.GetPhysicalDeviceSurfaceSupport(a.physical, family, surfaceHandle(s), &supported), "query surface support"); err != nil {
		return false, err
	}
	return supported == vk.True, nil
}

func (a *Adapter) SurfaceCapabilities(s gpu.Surface) (gpu.SurfaceCapabilities, error) {
	var caps vk.SurfaceCapabilities
	if err := check(vk.GetPhysicalDeviceSurfaceCapabilities(a.physical, surfaceHandle(s), &caps), "query surface capabilities"); err != nil {
		return gpu.SurfaceCapabilities{}, err
	}
	caps.Deref()
	return gpu.SurfaceCapabilities{
		MinImageCount:           caps.MinImageCount,
		MaxImageCount:           caps.MaxImageCount,
		CurrentExtent:           fromExtent2D(caps.CurrentExtent),
		MinImageExtent:          fromExtent2D(caps.MinImageExtent),
		MaxImageExtent:          fromExtent2D(caps.MaxImageExtent),
		SupportedCompositeAlpha: gpu.CompositeAlphaFlags(caps.SupportedCompositeAlpha),
		CurrentTransform:        gpu.SurfaceTransformFlags(caps.CurrentTransform),
		SupportedUsage:          gpu.ImageUsageFlags(caps.SupportedUsageFlags),
	}, nil
}

func (a *Adapter) SurfaceFormats(s gpu.Surface) ([]gpu.SurfaceFormat, error) {
	var count uint32
	if err := check(vk.GetPhysicalDeviceSurfaceFormats(a.physical, surfaceHandle(s), &count, nil), "query surface formats"); err != nil {
		return nil, err
	}
	formats := make([]vk.SurfaceFormat, count)
	if count > 0 {
		if err := check(vk.GetPhysicalDeviceSurfaceFormats(a.physical, surfaceHandle(s), &count, formats), "query surface formats"); err != nil {
			return nil, err
		}
	}
	out := make([]gpu.SurfaceFormat, 0, count)
	for i := range formats {
		formats[i].Deref()
		out = append(out, gpu.SurfaceFormat{Format: gpu.Format(formats[i].Format), ColorSpace: gpu.ColorSpace(formats[i].ColorSpace)})
	}
	return out, nil
}

func (a *Adapter) PresentModes(s gpu.Surface) ([]gpu.PresentMode, error) {
	var count uint32
	if err := check(vk.GetPhysicalDeviceSurfacePresentModes(a.physical, surfaceHandle(s), &count, nil), "query present modes"); err != nil {
		return nil, err
	}
	modes := make([]vk.PresentMode, count)
	if count > 0 {
		if err := check(vk.GetPhysicalDeviceSurfacePresentModes(a.physical, surfaceHandle(s), &count, modes), "query present modes"); err != nil {
			return nil, err
		}
	}
	out := make([]gpu.PresentMode, len(modes))
	for i, m := range modes {
		out[i] = gpu.PresentMode(m)
	}
	return out, nil
}

func (a *Adapter) CreateDevice(info gpu.DeviceInfo) (gpu.Device, error) {
	queueInfos := make([]vk.DeviceQueueCreateInfo, len(info.Queues))
	for i, q := range info.Queues {
		priorities := make([]float32, q.Count)
		for j := range priorities {
			priorities[j] = 1
		}
		queueInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: q.Family,
			QueueCount:       q.Count,
			PQueuePriorities: priorities,
		}
	}

	features := vk.PhysicalDeviceFeatures{
		SamplerAnisotropy:                      boolean(info.Features.SamplerAnisotropy),
		TextureCompressionASTC_LDR:             boolean(info.Features.TextureCompressionASTC),
		WideLines:                              boolean(info.Features.WideLines),
		FillModeNonSolid:                       boolean(info.Features.FillModeNonSolid),
		ShaderSampledImageArrayDynamicIndexing: boolean(info.Features.ShaderSampledImageArrayDynamicIndexing),
	}

	extensions := append([]string{vk.KhrSwapchainExtensionName}, info.Extensions...)
	if a.extensions[portabilitySubset] {
		core.LogInfo("adding required extension '%s'", portabilitySubset)
		extensions = append(extensions, portabilitySubset)
	}
	for _, e := range extensions {
		if !a.extensions[cString([]byte(e))] {
			return nil, check(vk.ErrorExtensionNotPresent, "device extension "+e)
		}
	}

	createInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{features},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: safeStrings(extensions),
	}
	var handle vk.Device
	if err := check(vk.CreateDevice(a.physical, &createInfo, nil, &handle), "create logical device"); err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	core.LogInfo("logical device created on %s", a.properties.Name)
	return newDevice(a, handle, info.Queues)
}

// memoryType picks the first memory type allowed by typeBits with every
// wanted property bit.
func (a *Adapter) memoryType(typeBits uint32, want vk.MemoryPropertyFlagBits) (uint32, bool) {
	for i := uint32(0); i < a.memory.MemoryTypeCount; i++ {
		t := a.memory.MemoryTypes[i]
		t.Deref()
		if typeBits&(1<<i) != 0 && vk.MemoryPropertyFlagBits(t.PropertyFlags)&want == want {
			return i, true
		}
	}
	return 0, false
}
