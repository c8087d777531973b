package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"

	"github.com/spaghettifunk/gensou/engine/core"
	"github.com/spaghettifunk/gensou/engine/renderer/gpu"
)

// Pipeline implements gpu.Pipeline and owns its layout.
type Pipeline struct {
	device *Device
	handle vk.Pipeline
	layout vk.PipelineLayout
}

// shaderCode copies SPIR-V bytes into the word slice the bindings expect.
func shaderCode(data []byte) []uint32 {
	code := make([]uint32, (len(data)+3)/4)
	if len(code) > 0 {
		copy(unsafe.Slice((*byte)(unsafe.Pointer(&code[0])), len(code)*4), data)
	}
	return code
}

func (d *Device) createShaderModule(data []byte) (vk.ShaderModule, error) {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, errors.Errorf("invalid SPIR-V size %d", len(data))
	}
	info := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(data)),
		PCode:    shaderCode(data),
	}
	var module vk.ShaderModule
	if err := check(vk.CreateShaderModule(d.handle, &info, nil, &module), "create shader module"); err != nil {
		return nil, err
	}
	return module, nil
}

func (d *Device) createPipelineLayout(info gpu.GraphicsPipelineInfo) (vk.PipelineLayout, error) {
	layouts := make([]vk.DescriptorSetLayout, len(info.SetLayouts))
	for i, l := range info.SetLayouts {
		layouts[i] = l.(*DescriptorSetLayout).handle
	}
	create := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(layouts)),
		PSetLayouts:    layouts,
	}
	if info.PushConstantSize > 0 {
		limit := d.adapter.properties.Limits.MaxPushConstantsSize
		if info.PushConstantSize > limit {
			return nil, errors.Errorf("push constant block of %d bytes exceeds the device limit of %d", info.PushConstantSize, limit)
		}
		create.PushConstantRangeCount = 1
		create.PPushConstantRanges = []vk.PushConstantRange{{
			StageFlags: vk.ShaderStageFlags(info.PushConstantStages),
			Size:       info.PushConstantSize,
		}}
	}

	var layout vk.PipelineLayout
	err := d.locks.safeCall(pipelineManagement, func() error {
		return check(vk.CreatePipelineLayout(d.handle, &create, nil, &layout), "create pipeline layout")
	})
	return layout, err
}

func (d *Device) CreateGraphicsPipeline(info gpu.GraphicsPipelineInfo) (gpu.Pipeline, error) {
	vert, err := d.createShaderModule(info.VertexShader)
	if err != nil {
		return nil, errors.Wrapf(err, "pipeline %s vertex stage", info.Name)
	}
	defer vk.DestroyShaderModule(d.handle, vert, nil)
	frag, err := d.createShaderModule(info.FragmentShader)
	if err != nil {
		return nil, errors.Wrapf(err, "pipeline %s fragment stage", info.Name)
	}
	defer vk.DestroyShaderModule(d.handle, frag, nil)

	stages := []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageVertexBit,
			Module: vert,
			PName:  safeString("main"),
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: frag,
			PName:  safeString("main"),
		},
	}

	bindings := make([]vk.VertexInputBindingDescription, len(info.VertexBindings))
	for i, b := range info.VertexBindings {
		bindings[i] = vk.VertexInputBindingDescription{Binding: b.Binding, Stride: b.Stride, InputRate: vk.VertexInputRate(b.InputRate)}
	}
	attributes := make([]vk.VertexInputAttributeDescription, len(info.VertexAttributes))
	for i, a := range info.VertexAttributes {
		attributes[i] = vk.VertexInputAttributeDescription{Location: a.Location, Binding: a.Binding, Format: vk.Format(a.Format), Offset: a.Offset}
	}
	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(bindings)),
		PVertexBindingDescriptions:      bindings,
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}
	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopology(info.Topology),
		PrimitiveRestartEnable: vk.False,
	}
	// viewport and scissor are dynamic
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	lineWidth := info.LineWidth
	if lineWidth <= 0 {
		lineWidth = 1
	}
	rasterizer := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		CullMode:                vk.CullModeFlags(info.CullMode),
		FrontFace:               vk.FrontFace(info.FrontFace),
		DepthBiasEnable:         vk.False,
		LineWidth:               lineWidth,
	}

	samples := info.Samples
	if samples == 0 {
		samples = gpu.SampleCount1
	}
	multisampling := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCountFlagBits(samples),
		SampleShadingEnable:  vk.False,
		MinSampleShading:     1,
	}

	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:             vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:   boolean(info.DepthTest),
		DepthWriteEnable:  boolean(info.DepthWrite),
		DepthCompareOp:    vk.CompareOpLess,
		StencilTestEnable: vk.False,
	}

	blend := vk.PipelineColorBlendAttachmentState{
		BlendEnable:         boolean(info.Blend),
		SrcColorBlendFactor: vk.BlendFactorSrcAlpha,
		DstColorBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		ColorBlendOp:        vk.BlendOpAdd,
		SrcAlphaBlendFactor: vk.BlendFactorSrcAlpha,
		DstAlphaBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		AlphaBlendOp:        vk.BlendOpAdd,
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit |
			vk.ColorComponentBBit | vk.ColorComponentABit),
	}
	colorBlend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{blend},
	}

	dynamicStates := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
	dynamic := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	layout, err := d.createPipelineLayout(info)
	if err != nil {
		core.LogError("pipeline %s: %v", info.Name, err)
		return nil, err
	}

	create := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisampling,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlend,
		PDynamicState:       &dynamic,
		Layout:              layout,
		RenderPass:          info.RenderPass.(*RenderPass).handle,
		Subpass:             info.Subpass,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}
	cache := vk.NullPipelineCache
	if info.Cache != nil {
		cache = info.Cache.(*PipelineCache).handle
	}

	pipelines := make([]vk.Pipeline, 1)
	err = d.locks.safeCall(pipelineManagement, func() error {
		return check(vk.CreateGraphicsPipelines(d.handle, cache, 1, []vk.GraphicsPipelineCreateInfo{create}, nil, pipelines), "create graphics pipeline")
	})
	if err != nil {
		vk.DestroyPipelineLayout(d.handle, layout, nil)
		core.LogError("pipeline %s: %v", info.Name, err)
		return nil, err
	}
	core.LogDebug("graphics pipeline %s created", info.Name)
	return &Pipeline{device: d, handle: pipelines[0], layout: layout}, nil
}

func (p *Pipeline) Destroy() {
	_ = p.device.locks.safeCall(pipelineManagement, func() error {
		if p.handle != vk.NullPipeline {
			vk.DestroyPipeline(p.device.handle, p.handle, nil)
			p.handle = vk.NullPipeline
		}
		if p.layout != nil {
			vk.DestroyPipelineLayout(p.device.handle, p.layout, nil)
			p.layout = nil
		}
		return nil
	})
}

// PipelineCache implements gpu.PipelineCache.
type PipelineCache struct {
	device *Device
	handle vk.PipelineCache
}

// CreatePipelineCache seeds the cache with a blob from an earlier run. The
// driver ignores blobs it does not recognise.
func (d *Device) CreatePipelineCache(initial []byte) (gpu.PipelineCache, error) {
	create := vk.PipelineCacheCreateInfo{
		SType: vk.StructureTypePipelineCacheCreateInfo,
	}
	if len(initial) > 0 {
		create.InitialDataSize = uint(len(initial))
		create.PInitialData = unsafe.Pointer(&initial[0])
	}
	c := &PipelineCache{device: d}
	if err := check(vk.CreatePipelineCache(d.handle, &create, nil, &c.handle), "create pipeline cache"); err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	return c, nil
}

func (c *PipelineCache) Data() ([]byte, error) {
	var size uint
	if err := check(vk.GetPipelineCacheData(c.device.handle, c.handle, &size, nil), "query pipeline cache size"); err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, nil
	}
	data := make([]byte, size)
	if err := check(vk.GetPipelineCacheData(c.device.handle, c.handle, &size, unsafe.Pointer(&data[0])), "read pipeline cache"); err != nil {
		return nil, err
	}
	return data[:size], nil
}

func (c *PipelineCache) Destroy() {
	if c.handle != vk.NullPipelineCache {
		vk.DestroyPipelineCache(c.device.handle, c.handle, nil)
		c.handle = vk.NullPipelineCache
	}
}
