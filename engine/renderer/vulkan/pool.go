package vulkan

import "sync"

type lockGroup string

const (
	descriptorManagement lockGroup = "descriptor_management"
	pipelineManagement   lockGroup = "pipeline_management"
)

// lockPool hands out one mutex per group of externally synchronized calls.
// Queue access is synchronized by the caller.
type lockPool struct {
	mu    sync.Mutex
	locks map[lockGroup]*sync.Mutex
}

func newLockPool() *lockPool {
	return &lockPool{locks: make(map[lockGroup]*sync.Mutex)}
}

func (p *lockPool) lock(group lockGroup) *sync.Mutex {
	p.mu.Lock()
	l, ok := p.locks[group]
	if !ok {
		l = &sync.Mutex{}
		p.locks[group] = l
	}
	p.mu.Unlock()
	l.Lock()
	return l
}

func (p *lockPool) safeCall(group lockGroup, fn func() error) error {
	l := p.lock(group)
	defer l.Unlock()
	return fn()
}
