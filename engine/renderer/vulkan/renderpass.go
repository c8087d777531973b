package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/gensou/engine/core"
	"github.com/spaghettifunk/gensou/engine/renderer/gpu"
)

// RenderPass implements gpu.RenderPass with a single graphics subpass.
type RenderPass struct {
	device *Device
	handle vk.RenderPass
	info   gpu.RenderPassInfo
}

func (d *Device) CreateRenderPass(info gpu.RenderPassInfo) (gpu.RenderPass, error) {
	attachments := make([]vk.AttachmentDescription, len(info.Attachments))
	var colors []vk.AttachmentReference
	var depth *vk.AttachmentReference
	for i, a := range info.Attachments {
		attachments[i] = vk.AttachmentDescription{
			Format:         vk.Format(a.Format),
			Samples:        vk.SampleCountFlagBits(a.Samples),
			LoadOp:         vk.AttachmentLoadOp(a.LoadOp),
			StoreOp:        vk.AttachmentStoreOp(a.StoreOp),
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayout(a.InitialLayout),
			FinalLayout:    vk.ImageLayout(a.FinalLayout),
		}
		if a.Format.IsDepth() {
			depth = &vk.AttachmentReference{Attachment: uint32(i), Layout: vk.ImageLayoutDepthStencilAttachmentOptimal}
			continue
		}
		colors = append(colors, vk.AttachmentReference{Attachment: uint32(i), Layout: vk.ImageLayoutColorAttachmentOptimal})
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    uint32(len(colors)),
		PColorAttachments:       colors,
		PDepthStencilAttachment: depth,
	}

	deps := make([]vk.SubpassDependency, len(info.Dependencies))
	for i, dep := range info.Dependencies {
		deps[i] = vk.SubpassDependency{
			SrcSubpass:      dep.SrcSubpass,
			DstSubpass:      dep.DstSubpass,
			SrcStageMask:    vk.PipelineStageFlags(dep.SrcStage),
			DstStageMask:    vk.PipelineStageFlags(dep.DstStage),
			SrcAccessMask:   vk.AccessFlags(dep.SrcAccess),
			DstAccessMask:   vk.AccessFlags(dep.DstAccess),
			DependencyFlags: vk.DependencyFlags(dep.Flags),
		}
	}

	create := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: uint32(len(deps)),
		PDependencies:   deps,
	}
	rp := &RenderPass{device: d, info: info}
	if err := check(vk.CreateRenderPass(d.handle, &create, nil, &rp.handle), "create render pass"); err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	return rp, nil
}

func (r *RenderPass) Info() gpu.RenderPassInfo { return r.info }

func (r *RenderPass) Destroy() {
	if r.handle != vk.NullRenderPass {
		vk.DestroyRenderPass(r.device.handle, r.handle, nil)
		r.handle = vk.NullRenderPass
	}
}

// Framebuffer implements gpu.Framebuffer.
type Framebuffer struct {
	device *Device
	handle vk.Framebuffer
}

func (d *Device) CreateFramebuffer(info gpu.FramebufferInfo) (gpu.Framebuffer, error) {
	views := make([]vk.ImageView, len(info.Attachments))
	for i, v := range info.Attachments {
		views[i] = v.(*ImageView).handle
	}
	create := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      info.RenderPass.(*RenderPass).handle,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           info.Extent.Width,
		Height:          info.Extent.Height,
		Layers:          1,
	}
	fb := &Framebuffer{device: d}
	if err := check(vk.CreateFramebuffer(d.handle, &create, nil, &fb.handle), "create framebuffer"); err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	return fb, nil
}

func (f *Framebuffer) Destroy() {
	if f.handle != nil {
		vk.DestroyFramebuffer(f.device.handle, f.handle, nil)
		f.handle = nil
	}
}
