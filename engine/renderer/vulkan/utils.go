package vulkan

import (
	"strings"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"

	"github.com/spaghettifunk/gensou/engine/renderer/gpu"
)

// VkResult and gpu.Result share their numbering.
func toResult(r vk.Result) gpu.Result { return gpu.Result(r) }

// check turns a failed call into an error carrying the gpu result.
func check(r vk.Result, what string) error {
	if r == vk.Success {
		return nil
	}
	return errors.Wrap(toResult(r).Err(), what)
}

const nul = "\x00"

// safeString terminates s for the C side of the bindings.
func safeString(s string) string {
	if strings.HasSuffix(s, nul) {
		return s
	}
	return s + nul
}

func safeStrings(list []string) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = safeString(s)
	}
	return out
}

// cString reads a fixed size, NUL terminated name array.
func cString(b []byte) string {
	if i := strings.IndexByte(string(b), 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

func boolean(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}

func extent2D(e gpu.Extent2D) vk.Extent2D {
	return vk.Extent2D{Width: e.Width, Height: e.Height}
}

func extent3D(e gpu.Extent3D) vk.Extent3D {
	return vk.Extent3D{Width: e.Width, Height: e.Height, Depth: e.Depth}
}

func offset3D(o gpu.Offset3D) vk.Offset3D {
	return vk.Offset3D{X: o.X, Y: o.Y, Z: o.Z}
}

func fromExtent2D(e vk.Extent2D) gpu.Extent2D {
	e.Deref()
	return gpu.Extent2D{Width: e.Width, Height: e.Height}
}

func rect2D(r gpu.Rect2D) vk.Rect2D {
	return vk.Rect2D{Offset: vk.Offset2D{X: r.X, Y: r.Y}, Extent: extent2D(r.Extent)}
}

func subresourceRange(aspect gpu.ImageAspectFlags, baseMip, mips, baseLayer, layers uint32) vk.ImageSubresourceRange {
	return vk.ImageSubresourceRange{
		AspectMask:     vk.ImageAspectFlags(aspect),
		BaseMipLevel:   baseMip,
		LevelCount:     mips,
		BaseArrayLayer: baseLayer,
		LayerCount:     layers,
	}
}
