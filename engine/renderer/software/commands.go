package software

import (
	"image"
	"math"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"

	"github.com/spaghettifunk/gensou/engine/renderer/gpu"
)

// CommandPool implements gpu.CommandPool.
type CommandPool struct {
	dev       *Device
	family    uint32
	buffers   []*CommandBuffer
	destroyed bool
}

func (p *CommandPool) Allocate() (gpu.CommandBuffer, error) {
	if p.destroyed {
		return nil, errors.New("allocate from destroyed command pool")
	}
	cb := &CommandBuffer{pool: p}
	p.buffers = append(p.buffers, cb)
	return cb, nil
}

func (p *CommandPool) Reset() error {
	for _, cb := range p.buffers {
		cb.ops = nil
		cb.state = cbInitial
	}
	p.dev.update(func(s *Stats) { s.PoolResets++ })
	return nil
}

func (p *CommandPool) Free(cmds []gpu.CommandBuffer) {
	for _, c := range cmds {
		cb, ok := c.(*CommandBuffer)
		if !ok || cb == nil {
			continue
		}
		for i, b := range p.buffers {
			if b == cb {
				p.buffers = append(p.buffers[:i], p.buffers[i+1:]...)
				break
			}
		}
		cb.state = cbFreed
	}
}

func (p *CommandPool) Destroy() {
	p.destroyed = true
	p.buffers = nil
}

// Allocated returns how many command buffers the pool currently owns.
func (p *CommandPool) Allocated() int {
	return len(p.buffers)
}

type cbState int

const (
	cbInitial cbState = iota
	cbRecording
	cbExecutable
	cbFreed
)

// CommandBuffer records closures that run when the buffer is submitted.
type CommandBuffer struct {
	pool  *CommandPool
	state cbState
	ops   []func()

	pass *gpu.RenderPassBeginInfo
}

func (cb *CommandBuffer) record(op func()) {
	if cb.state == cbRecording {
		cb.ops = append(cb.ops, op)
	}
}

func (cb *CommandBuffer) execute() {
	for _, op := range cb.ops {
		op()
	}
}

func (cb *CommandBuffer) Begin(oneTimeSubmit bool) error {
	switch cb.state {
	case cbRecording:
		return errors.New("command buffer is already recording")
	case cbFreed:
		return errors.New("command buffer was freed")
	}
	cb.ops = nil
	cb.state = cbRecording
	return nil
}

func (cb *CommandBuffer) End() error {
	if cb.state != cbRecording {
		return errors.New("command buffer is not recording")
	}
	if cb.pass != nil {
		return errors.New("command buffer ended inside a render pass")
	}
	cb.state = cbExecutable
	return nil
}

// Recording reports whether Begin was called without a matching End.
func (cb *CommandBuffer) Recording() bool {
	return cb.state == cbRecording
}

func (cb *CommandBuffer) CopyBuffer(src, dst gpu.Buffer, regions []gpu.BufferCopy) {
	s, d := src.(*Buffer), dst.(*Buffer)
	regions = append([]gpu.BufferCopy(nil), regions...)
	cb.record(func() {
		for _, r := range regions {
			s.mu.Lock()
			chunk := append([]byte(nil), s.mem[r.SrcOffset:r.SrcOffset+r.Size]...)
			s.mu.Unlock()
			d.mu.Lock()
			copy(d.mem[r.DstOffset:r.DstOffset+r.Size], chunk)
			d.mu.Unlock()
			cb.pool.dev.update(func(st *Stats) { st.CopiedBytes += r.Size })
		}
	})
}

func (cb *CommandBuffer) CopyBufferToImage(src gpu.Buffer, dst gpu.Image, layout gpu.ImageLayout, regions []gpu.BufferImageCopy) {
	s, img := src.(*Buffer), dst.(*Image)
	regions = append([]gpu.BufferImageCopy(nil), regions...)
	cb.record(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		img.mu.Lock()
		defer img.mu.Unlock()
		for _, r := range regions {
			layers := max(r.LayerCount, 1)
			for l := r.BaseLayer; l < r.BaseLayer+layers; l++ {
				level := img.levels[l][r.MipLevel]
				lw, _, _ := levelSize(img.info, r.MipLevel)
				if img.info.Format.IsCompressed() {
					off := r.BufferOffset + uint64(l-r.BaseLayer)*uint64(len(level))
					copy(level, s.mem[min(off, uint64(len(s.mem))):])
					continue
				}
				bpp := uint64(img.info.Format.BytesPerPixel())
				row := uint64(r.Extent.Width) * bpp
				layerBytes := row * uint64(r.Extent.Height)
				for y := uint64(0); y < uint64(r.Extent.Height); y++ {
					so := r.BufferOffset + uint64(l-r.BaseLayer)*layerBytes + y*row
					do := ((uint64(r.Offset.Y)+y)*uint64(lw) + uint64(r.Offset.X)) * bpp
					copy(level[do:do+row], s.mem[so:so+row])
				}
			}
		}
	})
}

func (cb *CommandBuffer) PipelineBarrier(srcStage, dstStage gpu.PipelineStageFlags, flags gpu.DependencyFlags, barriers []gpu.ImageBarrier) {
	barriers = append([]gpu.ImageBarrier(nil), barriers...)
	cb.record(func() {
		for _, b := range barriers {
			img := b.Image.(*Image)
			img.mu.Lock()
			for l := b.BaseLayer; l < b.BaseLayer+max(b.LayerCount, 1) && int(l) < len(img.layouts); l++ {
				for m := b.BaseMip; m < b.BaseMip+max(b.MipCount, 1) && int(m) < len(img.layouts[l]); m++ {
					img.layouts[l][m] = b.NewLayout
				}
			}
			img.mu.Unlock()
		}
	})
}

func rgbaView(img *Image, layer, mip uint32) *image.RGBA {
	w, h, _ := levelSize(img.info, mip)
	return &image.RGBA{
		Pix:    img.levels[layer][mip],
		Stride: int(w) * 4,
		Rect:   image.Rect(0, 0, int(w), int(h)),
	}
}

func blitRect(o [2]gpu.Offset3D) image.Rectangle {
	return image.Rect(int(o[0].X), int(o[0].Y), int(o[1].X), int(o[1].Y))
}

// BlitImage scales four byte per pixel formats. Other formats only count the blit.
func (cb *CommandBuffer) BlitImage(src gpu.Image, srcLayout gpu.ImageLayout, dst gpu.Image, dstLayout gpu.ImageLayout, regions []gpu.ImageBlit, filter gpu.Filter) {
	s, d := src.(*Image), dst.(*Image)
	regions = append([]gpu.ImageBlit(nil), regions...)
	var scaler draw.Scaler = draw.NearestNeighbor
	if filter == gpu.FilterLinear {
		scaler = draw.BiLinear
	}
	cb.record(func() {
		cb.pool.dev.update(func(st *Stats) { st.Blits++ })
		if s.info.Format.BytesPerPixel() != 4 || d.info.Format.BytesPerPixel() != 4 || s.info.Format.IsDepth() {
			return
		}
		for _, r := range regions {
			for l := r.BaseLayer; l < r.BaseLayer+max(r.LayerCount, 1); l++ {
				var srcImg *image.RGBA
				if s == d {
					s.mu.Lock()
					srcImg = rgbaView(s, l, r.SrcMip)
					srcCopy := &image.RGBA{Pix: append([]byte(nil), srcImg.Pix...), Stride: srcImg.Stride, Rect: srcImg.Rect}
					dstImg := rgbaView(d, l, r.DstMip)
					scaler.Scale(dstImg, blitRect(r.DstOffsets), srcCopy, blitRect(r.SrcOffsets), draw.Src, nil)
					s.mu.Unlock()
					continue
				}
				s.mu.Lock()
				d.mu.Lock()
				srcImg = rgbaView(s, l, r.SrcMip)
				scaler.Scale(rgbaView(d, l, r.DstMip), blitRect(r.DstOffsets), srcImg, blitRect(r.SrcOffsets), draw.Src, nil)
				d.mu.Unlock()
				s.mu.Unlock()
			}
		}
	})
}

func unorm8(v float32) byte {
	return byte(math.Round(float64(min(max(v, 0), 1)) * 255))
}

// BeginRenderPass clears colour attachments whose load op is clear.
func (cb *CommandBuffer) BeginRenderPass(info gpu.RenderPassBeginInfo) {
	if cb.state != cbRecording {
		return
	}
	begin := info
	cb.pass = &begin
	fb, ok := info.Framebuffer.(*Framebuffer)
	if !ok {
		return
	}
	attachments := info.RenderPass.Info().Attachments
	views := fb.info.Attachments
	clears := append([]gpu.ClearValue(nil), info.ClearValues...)
	cb.record(func() {
		cb.pool.dev.update(func(st *Stats) { st.RenderPasses++ })
		for i, a := range attachments {
			if a.LoadOp != gpu.AttachmentLoadOpClear || i >= len(views) || i >= len(clears) || a.Format.IsDepth() {
				continue
			}
			view := views[i].(*ImageView)
			img := view.info.Image.(*Image)
			if img.info.Format.BytesPerPixel() != 4 {
				continue
			}
			c := clears[i].Color
			px := [4]byte{unorm8(c[0]), unorm8(c[1]), unorm8(c[2]), unorm8(c[3])}
			if img.info.Format == gpu.FormatB8G8R8A8Unorm || img.info.Format == gpu.FormatB8G8R8A8Srgb {
				px[0], px[2] = px[2], px[0]
			}
			img.mu.Lock()
			level := img.levels[view.info.BaseLayer][view.info.BaseMip]
			for p := 0; p+4 <= len(level); p += 4 {
				copy(level[p:p+4], px[:])
			}
			img.layouts[view.info.BaseLayer][view.info.BaseMip] = a.FinalLayout
			img.mu.Unlock()
		}
	})
}

func (cb *CommandBuffer) EndRenderPass() {
	cb.pass = nil
}

func (cb *CommandBuffer) SetViewport(v gpu.Viewport)  {}
func (cb *CommandBuffer) SetScissor(r gpu.Rect2D)     {}
func (cb *CommandBuffer) BindPipeline(p gpu.Pipeline) {}

func (cb *CommandBuffer) BindDescriptorSet(p gpu.Pipeline, index uint32, set gpu.DescriptorSet, dynamicOffsets []uint32) {
}

func (cb *CommandBuffer) BindVertexBuffer(binding uint32, b gpu.Buffer, offset uint64) {}

func (cb *CommandBuffer) BindIndexBuffer(b gpu.Buffer, offset uint64, t gpu.IndexType) {}

func (cb *CommandBuffer) PushConstants(p gpu.Pipeline, stages gpu.ShaderStageFlags, offset uint32, data []byte) {
	data = append([]byte(nil), data...)
	cb.record(func() {
		cb.pool.dev.update(func(st *Stats) { st.PushConstants = data })
	})
}

func (cb *CommandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	cb.record(func() {
		cb.pool.dev.update(func(st *Stats) {
			st.Draws++
			st.VertexCount += uint64(vertexCount) * uint64(max(instanceCount, 1))
		})
	})
}

func (cb *CommandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	cb.record(func() {
		cb.pool.dev.update(func(st *Stats) {
			st.IndexedDraws++
			st.IndexCount += uint64(indexCount) * uint64(max(instanceCount, 1))
		})
	})
}
