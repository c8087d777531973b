package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/gensou/engine/core"
	"github.com/spaghettifunk/gensou/engine/renderer/gpu"
)

// CommandPool implements gpu.CommandPool.
type CommandPool struct {
	device *Device
	handle vk.CommandPool
}

func (d *Device) CreateCommandPool(family uint32, transient bool) (gpu.CommandPool, error) {
	info := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: family,
	}
	if transient {
		info.Flags = vk.CommandPoolCreateFlags(vk.CommandPoolCreateTransientBit)
	}
	p := &CommandPool{device: d}
	if err := check(vk.CreateCommandPool(d.handle, &info, nil, &p.handle), "create command pool"); err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	return p, nil
}

func (p *CommandPool) Allocate() (gpu.CommandBuffer, error) {
	info := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        p.handle,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	handles := make([]vk.CommandBuffer, 1)
	if err := check(vk.AllocateCommandBuffers(p.device.handle, &info, handles), "allocate command buffer"); err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	return &CommandBuffer{device: p.device, handle: handles[0]}, nil
}

func (p *CommandPool) Reset() error {
	return check(vk.ResetCommandPool(p.device.handle, p.handle, 0), "reset command pool")
}

func (p *CommandPool) Free(cmds []gpu.CommandBuffer) {
	if len(cmds) == 0 {
		return
	}
	handles := make([]vk.CommandBuffer, len(cmds))
	for i, c := range cmds {
		handles[i] = c.(*CommandBuffer).handle
	}
	vk.FreeCommandBuffers(p.device.handle, p.handle, uint32(len(handles)), handles)
}

func (p *CommandPool) Destroy() {
	if p.handle != nil {
		vk.DestroyCommandPool(p.device.handle, p.handle, nil)
		p.handle = nil
	}
}

// CommandBuffer implements gpu.CommandBuffer.
type CommandBuffer struct {
	device *Device
	handle vk.CommandBuffer
}

func (c *CommandBuffer) Begin(oneTimeSubmit bool) error {
	info := vk.CommandBufferBeginInfo{SType: vk.StructureTypeCommandBufferBeginInfo}
	if oneTimeSubmit {
		info.Flags = vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	return check(vk.BeginCommandBuffer(c.handle, &info), "begin command buffer")
}

func (c *CommandBuffer) End() error {
	return check(vk.EndCommandBuffer(c.handle), "end command buffer")
}

func (c *CommandBuffer) CopyBuffer(src, dst gpu.Buffer, regions []gpu.BufferCopy) {
	copies := make([]vk.BufferCopy, len(regions))
	for i, r := range regions {
		copies[i] = vk.BufferCopy{SrcOffset: vk.DeviceSize(r.SrcOffset), DstOffset: vk.DeviceSize(r.DstOffset), Size: vk.DeviceSize(r.Size)}
	}
	vk.CmdCopyBuffer(c.handle, src.(*Buffer).handle, dst.(*Buffer).handle, uint32(len(copies)), copies)
}

func (c *CommandBuffer) CopyBufferToImage(src gpu.Buffer, dst gpu.Image, layout gpu.ImageLayout, regions []gpu.BufferImageCopy) {
	img := dst.(*Image)
	copies := make([]vk.BufferImageCopy, len(regions))
	for i, r := range regions {
		copies[i] = vk.BufferImageCopy{
			BufferOffset: vk.DeviceSize(r.BufferOffset),
			ImageSubresource: vk.ImageSubresourceLayers{
				AspectMask:     vk.ImageAspectFlags(gpu.AspectForFormat(img.info.Format)),
				MipLevel:       r.MipLevel,
				BaseArrayLayer: r.BaseLayer,
				LayerCount:     r.LayerCount,
			},
			ImageOffset: offset3D(r.Offset),
			ImageExtent: extent3D(r.Extent),
		}
	}
	vk.CmdCopyBufferToImage(c.handle, src.(*Buffer).handle, img.handle, vk.ImageLayout(layout), uint32(len(copies)), copies)
}

func (c *CommandBuffer) PipelineBarrier(srcStage, dstStage gpu.PipelineStageFlags, flags gpu.DependencyFlags, barriers []gpu.ImageBarrier) {
	out := make([]vk.ImageMemoryBarrier, len(barriers))
	for i, b := range barriers {
		out[i] = vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       vk.AccessFlags(b.SrcAccess),
			DstAccessMask:       vk.AccessFlags(b.DstAccess),
			OldLayout:           vk.ImageLayout(b.OldLayout),
			NewLayout:           vk.ImageLayout(b.NewLayout),
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               b.Image.(*Image).handle,
			SubresourceRange:    subresourceRange(b.Aspect, b.BaseMip, b.MipCount, b.BaseLayer, b.LayerCount),
		}
	}
	vk.CmdPipelineBarrier(c.handle, vk.PipelineStageFlags(srcStage), vk.PipelineStageFlags(dstStage), vk.DependencyFlags(flags),
		0, nil, 0, nil, uint32(len(out)), out)
}

func (c *CommandBuffer) BlitImage(src gpu.Image, srcLayout gpu.ImageLayout, dst gpu.Image, dstLayout gpu.ImageLayout, regions []gpu.ImageBlit, filter gpu.Filter) {
	s, d := src.(*Image), dst.(*Image)
	blits := make([]vk.ImageBlit, len(regions))
	for i, r := range regions {
		blits[i] = vk.ImageBlit{
			SrcSubresource: vk.ImageSubresourceLayers{
				AspectMask:     vk.ImageAspectFlags(gpu.AspectForFormat(s.info.Format)),
				MipLevel:       r.SrcMip,
				BaseArrayLayer: r.BaseLayer,
				LayerCount:     r.LayerCount,
			},
			SrcOffsets: [2]vk.Offset3D{offset3D(r.SrcOffsets[0]), offset3D(r.SrcOffsets[1])},
			DstSubresource: vk.ImageSubresourceLayers{
				AspectMask:     vk.ImageAspectFlags(gpu.AspectForFormat(d.info.Format)),
				MipLevel:       r.DstMip,
				BaseArrayLayer: r.BaseLayer,
				LayerCount:     r.LayerCount,
			},
			DstOffsets: [2]vk.Offset3D{offset3D(r.DstOffsets[0]), offset3D(r.DstOffsets[1])},
		}
	}
	vk.CmdBlitImage(c.handle, s.handle, vk.ImageLayout(srcLayout), d.handle, vk.ImageLayout(dstLayout), uint32(len(blits)), blits, vk.Filter(filter))
}

func (c *CommandBuffer) BeginRenderPass(info gpu.RenderPassBeginInfo) {
	rp := info.RenderPass.(*RenderPass)
	clears := make([]vk.ClearValue, len(info.ClearValues))
	for i, cv := range info.ClearValues {
		if i < len(rp.info.Attachments) && rp.info.Attachments[i].Format.IsDepth() {
			clears[i] = vk.NewClearDepthStencil(cv.Depth, cv.Stencil)
		} else {
			clears[i] = vk.NewClearValue(cv.Color[:])
		}
	}
	begin := vk.RenderPassBeginInfo{
		SType:           vk.StructureTypeRenderPassBeginInfo,
		RenderPass:      rp.handle,
		Framebuffer:     info.Framebuffer.(*Framebuffer).handle,
		RenderArea:      rect2D(info.Area),
		ClearValueCount: uint32(len(clears)),
		PClearValues:    clears,
	}
	vk.CmdBeginRenderPass(c.handle, &begin, vk.SubpassContentsInline)
}

func (c *CommandBuffer) EndRenderPass() {
	vk.CmdEndRenderPass(c.handle)
}

func (c *CommandBuffer) SetViewport(v gpu.Viewport) {
	vk.CmdSetViewport(c.handle, 0, 1, []vk.Viewport{{
		X: v.X, Y: v.Y, Width: v.Width, Height: v.Height, MinDepth: v.MinDepth, MaxDepth: v.MaxDepth,
	}})
}

func (c *CommandBuffer) SetScissor(r gpu.Rect2D) {
	vk.CmdSetScissor(c.handle, 0, 1, []vk.Rect2D{rect2D(r)})
}

func (c *CommandBuffer) BindPipeline(p gpu.Pipeline) {
	vk.CmdBindPipeline(c.handle, vk.PipelineBindPointGraphics, p.(*Pipeline).handle)
}

func (c *CommandBuffer) BindDescriptorSet(p gpu.Pipeline, index uint32, set gpu.DescriptorSet, dynamicOffsets []uint32) {
	vk.CmdBindDescriptorSets(c.handle, vk.PipelineBindPointGraphics, p.(*Pipeline).layout, index,
		1, []vk.DescriptorSet{set.(*DescriptorSet).handle}, uint32(len(dynamicOffsets)), dynamicOffsets)
}

func (c *CommandBuffer) BindVertexBuffer(binding uint32, b gpu.Buffer, offset uint64) {
	vk.CmdBindVertexBuffers(c.handle, binding, 1, []vk.Buffer{b.(*Buffer).handle}, []vk.DeviceSize{vk.DeviceSize(offset)})
}

func (c *CommandBuffer) BindIndexBuffer(b gpu.Buffer, offset uint64, t gpu.IndexType) {
	vk.CmdBindIndexBuffer(c.handle, b.(*Buffer).handle, vk.DeviceSize(offset), vk.IndexType(t))
}

func (c *CommandBuffer) PushConstants(p gpu.Pipeline, stages gpu.ShaderStageFlags, offset uint32, data []byte) {
	if len(data) == 0 {
		return
	}
	vk.CmdPushConstants(c.handle, p.(*Pipeline).layout, vk.ShaderStageFlags(stages), offset, uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (c *CommandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vk.CmdDraw(c.handle, vertexCount, instanceCount, firstVertex, firstInstance)
}

func (c *CommandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	vk.CmdDrawIndexed(c.handle, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}
