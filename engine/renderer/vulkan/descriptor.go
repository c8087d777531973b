package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/gensou/engine/core"
	"github.com/spaghettifunk/gensou/engine/renderer/gpu"
)

const setsPerPool = 64

// DescriptorSetLayout implements gpu.DescriptorSetLayout.
type DescriptorSetLayout struct {
	device   *Device
	handle   vk.DescriptorSetLayout
	bindings []gpu.DescriptorBinding
}

func (d *Device) CreateDescriptorSetLayout(bindings []gpu.DescriptorBinding) (gpu.DescriptorSetLayout, error) {
	out := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		out[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  vk.DescriptorType(b.Type),
			DescriptorCount: b.Count,
			StageFlags:      vk.ShaderStageFlags(b.Stages),
		}
	}
	create := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(out)),
		PBindings:    out,
	}
	l := &DescriptorSetLayout{device: d, bindings: append([]gpu.DescriptorBinding(nil), bindings...)}
	err := d.locks.safeCall(descriptorManagement, func() error {
		return check(vk.CreateDescriptorSetLayout(d.handle, &create, nil, &l.handle), "create descriptor set layout")
	})
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	return l, nil
}

func (l *DescriptorSetLayout) Destroy() {
	_ = l.device.locks.safeCall(descriptorManagement, func() error {
		if l.handle != vk.NullDescriptorSetLayout {
			vk.DestroyDescriptorSetLayout(l.device.handle, l.handle, nil)
			l.handle = vk.NullDescriptorSetLayout
		}
		return nil
	})
}

// descriptorAllocator hands out sets from a growing list of pools. Sets can
// be freed one by one; the pools live as long as the device.
type descriptorAllocator struct {
	device *Device
	pools  []vk.DescriptorPool
}

func newDescriptorAllocator(d *Device) *descriptorAllocator {
	return &descriptorAllocator{device: d}
}

func (a *descriptorAllocator) newPool() (vk.DescriptorPool, error) {
	sizes := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: setsPerPool * 2},
		{Type: vk.DescriptorTypeStorageBuffer, DescriptorCount: setsPerPool},
		{Type: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: setsPerPool * 16},
	}
	create := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit),
		MaxSets:       setsPerPool,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	var pool vk.DescriptorPool
	if err := check(vk.CreateDescriptorPool(a.device.handle, &create, nil, &pool), "create descriptor pool"); err != nil {
		return vk.NullDescriptorPool, err
	}
	a.pools = append(a.pools, pool)
	core.LogDebug("descriptor pool %d created", len(a.pools))
	return pool, nil
}

func (a *descriptorAllocator) allocate(layout vk.DescriptorSetLayout) (vk.DescriptorSet, vk.DescriptorPool, error) {
	var set vk.DescriptorSet
	var from vk.DescriptorPool
	err := a.device.locks.safeCall(descriptorManagement, func() error {
		if len(a.pools) > 0 {
			info := vk.DescriptorSetAllocateInfo{
				SType:              vk.StructureTypeDescriptorSetAllocateInfo,
				DescriptorPool:     a.pools[len(a.pools)-1],
				DescriptorSetCount: 1,
				PSetLayouts:        []vk.DescriptorSetLayout{layout},
			}
			switch r := vk.AllocateDescriptorSets(a.device.handle, &info, &set); r {
			case vk.Success:
				from = info.DescriptorPool
				return nil
			case vk.ErrorOutOfPoolMemory, vk.ErrorFragmentedPool:
			default:
				return check(r, "allocate descriptor set")
			}
		}

		pool, err := a.newPool()
		if err != nil {
			return err
		}
		info := vk.DescriptorSetAllocateInfo{
			SType:              vk.StructureTypeDescriptorSetAllocateInfo,
			DescriptorPool:     pool,
			DescriptorSetCount: 1,
			PSetLayouts:        []vk.DescriptorSetLayout{layout},
		}
		from = pool
		return check(vk.AllocateDescriptorSets(a.device.handle, &info, &set), "allocate descriptor set")
	})
	return set, from, err
}

func (a *descriptorAllocator) free(pool vk.DescriptorPool, set vk.DescriptorSet) {
	err := a.device.locks.safeCall(descriptorManagement, func() error {
		return check(vk.FreeDescriptorSets(a.device.handle, pool, 1, &set), "free descriptor set")
	})
	if err != nil {
		core.LogError(err.Error())
	}
}

func (a *descriptorAllocator) destroy() {
	for _, p := range a.pools {
		vk.DestroyDescriptorPool(a.device.handle, p, nil)
	}
	a.pools = nil
}

// DescriptorSet implements gpu.DescriptorSet.
type DescriptorSet struct {
	device *Device
	pool   vk.DescriptorPool
	handle vk.DescriptorSet
	freed  bool
}

func (d *Device) AllocateDescriptorSet(layout gpu.DescriptorSetLayout) (gpu.DescriptorSet, error) {
	set, pool, err := d.sets.allocate(layout.(*DescriptorSetLayout).handle)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	return &DescriptorSet{device: d, pool: pool, handle: set}, nil
}

func (s *DescriptorSet) Destroy() {
	if s.freed {
		return
	}
	s.freed = true
	s.device.sets.free(s.pool, s.handle)
}

func (s *DescriptorSet) WriteBuffer(binding uint32, t gpu.DescriptorType, b gpu.Buffer, offset, size uint64) {
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          s.handle,
		DstBinding:      binding,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorType(t),
		PBufferInfo: []vk.DescriptorBufferInfo{{
			Buffer: b.(*Buffer).handle,
			Offset: vk.DeviceSize(offset),
			Range:  vk.DeviceSize(size),
		}},
	}
	vk.UpdateDescriptorSets(s.device.handle, 1, []vk.WriteDescriptorSet{write}, 0, nil)
}

func (s *DescriptorSet) WriteImage(binding, arrayElement uint32, view gpu.ImageView, sampler gpu.Sampler, layout gpu.ImageLayout) {
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          s.handle,
		DstBinding:      binding,
		DstArrayElement: arrayElement,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
		PImageInfo: []vk.DescriptorImageInfo{{
			Sampler:     sampler.(*Sampler).handle,
			ImageView:   view.(*ImageView).handle,
			ImageLayout: vk.ImageLayout(layout),
		}},
	}
	vk.UpdateDescriptorSets(s.device.handle, 1, []vk.WriteDescriptorSet{write}, 0, nil)
}
