package renderer

import (
	"context"

	"github.com/pkg/errors"

	"github.com/spaghettifunk/gensou/engine/core"
	"github.com/spaghettifunk/gensou/engine/renderer/gpu"
)

// CommandManager assigns command pools to engine threads:
//   - loading: its own graphics and transfer pools
//   - render: one graphics pool per frame in flight
//   - main: general graphics, compute and transfer pools
type CommandManager struct {
	device *Device
	frames *FrameCounter

	loadingGraphics *CommandPool
	loadingTransfer *CommandPool

	general [3]*CommandPool
	render  []*CommandPool
}

func NewCommandManager(d *Device, frames *FrameCounter) (*CommandManager, error) {
	m := &CommandManager{device: d, frames: frames}

	var err error
	if m.loadingGraphics, err = NewCommandPool(d, QueueGraphics, "loading graphics"); err != nil {
		return nil, err
	}
	if m.loadingTransfer, err = NewCommandPool(d, QueueTransfer, "loading transfer"); err != nil {
		return nil, err
	}
	for i, role := range []QueueRole{QueueGraphics, QueueCompute, QueueTransfer} {
		if m.general[i], err = NewCommandPool(d, role, "general "+role.String()); err != nil {
			return nil, err
		}
	}
	if err = m.EnsureRenderPools(frames.Count()); err != nil {
		return nil, err
	}
	return m, nil
}

// EnsureRenderPools grows the per-frame render pools to n.
func (m *CommandManager) EnsureRenderPools(n uint32) error {
	for uint32(len(m.render)) < n {
		p, err := NewCommandPool(m.device, QueueGraphics, "render graphics")
		if err != nil {
			return err
		}
		m.render = append(m.render, p)
	}
	return nil
}

func (m *CommandManager) Device() *Device       { return m.device }
func (m *CommandManager) Frames() *FrameCounter { return m.frames }

// Pool returns the pool the calling thread must record into for role.
func (m *CommandManager) Pool(ctx context.Context, role QueueRole) (*CommandPool, error) {
	thread := core.ThreadRoleFrom(ctx)
	switch thread {
	case core.RoleLoading:
		if role == QueueTransfer {
			return m.loadingTransfer, nil
		}
		return m.loadingGraphics, nil
	case core.RoleRender:
		return m.RenderPool(m.frames.Current()), nil
	case core.RoleMain:
		switch role {
		case QueueGraphics, QueuePresent:
			return m.general[0], nil
		case QueueCompute:
			return m.general[1], nil
		case QueueTransfer:
			return m.general[2], nil
		}
	}
	err := errors.Wrapf(core.ErrInvalidThreadRole, "%s queue requested from %s thread", role, thread)
	core.LogError(err.Error())
	return nil, err
}

// CmdBuffer returns the next command buffer for the calling thread.
func (m *CommandManager) CmdBuffer(ctx context.Context, role QueueRole) (CommandBuffer, error) {
	p, err := m.Pool(ctx, role)
	if err != nil {
		return CommandBuffer{}, err
	}
	core.LogDebug("new cmd buffer from the %s pool", p.Name())
	return p.NextCmd()
}

// LoadingCmdBuffer returns a command buffer from the loading pools. Compute
// work goes to the loading graphics pool.
func (m *CommandManager) LoadingCmdBuffer(role QueueRole) (CommandBuffer, error) {
	if role == QueueTransfer {
		return m.loadingTransfer.NextCmd()
	}
	return m.loadingGraphics.NextCmd()
}

func (m *CommandManager) RenderPool(frame uint32) *CommandPool {
	return m.render[frame]
}

func (m *CommandManager) RenderCmdBuffer(frame uint32) (CommandBuffer, error) {
	return m.render[frame].NextCmd()
}

// Submit submits a single command buffer on its pool's queue.
func (m *CommandManager) Submit(cmd CommandBuffer, wait bool) error {
	if !cmd.Valid() {
		return errors.New("submit of an invalid command buffer")
	}
	return cmd.pool.Submit([]gpu.CommandBuffer{cmd.CommandBuffer}, nil, nil, wait)
}

// SubmitRenderCmds submits every command buffer recorded for frame in one
// batch. With nothing recorded and no semaphores to honour it succeeds
// without touching the queue.
func (m *CommandManager) SubmitRenderCmds(frame uint32, wait bool, waitSems, signalSems []gpu.Semaphore) error {
	p := m.render[frame]
	if p.RecordedCount() == 0 && len(waitSems) == 0 && len(signalSems) == 0 {
		return nil
	}
	return p.Submit(p.RecordedCmds(), waitSems, signalSems, wait)
}

func (m *CommandManager) ResetGeneralPools() error {
	return resetPools(m.general[:]...)
}

func (m *CommandManager) ResetGeneralPool(role QueueRole) error {
	switch role {
	case QueueGraphics:
		return m.general[0].Reset()
	case QueueCompute:
		return m.general[1].Reset()
	case QueueTransfer:
		return m.general[2].Reset()
	}
	return nil
}

func (m *CommandManager) ResetLoadingPools() error {
	return resetPools(m.loadingGraphics, m.loadingTransfer)
}

// ResetRenderPool blocks on the frame's fences and recycles its pool.
func (m *CommandManager) ResetRenderPool(frame uint32) error {
	return m.render[frame].Reset()
}

func (m *CommandManager) ResetAllRenderPools() error {
	return resetPools(m.render...)
}

// ResetAllPools recycles the loading, render and general pools.
func (m *CommandManager) ResetAllPools() error {
	if err := m.ResetLoadingPools(); err != nil {
		return err
	}
	if err := m.ResetAllRenderPools(); err != nil {
		return err
	}
	return m.ResetGeneralPools()
}

// WaitAllRenderCmds waits on every render pool's fences without resetting.
func (m *CommandManager) WaitAllRenderCmds() error {
	for _, p := range m.render {
		if err := p.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// Clear releases every pool. Used at shutdown only.
func (m *CommandManager) Clear() {
	m.loadingGraphics.Clear()
	m.loadingTransfer.Clear()
	for _, p := range m.render {
		p.Clear()
	}
	for _, p := range m.general {
		p.Clear()
	}
}

func resetPools(pools ...*CommandPool) error {
	for _, p := range pools {
		if err := p.Reset(); err != nil {
			return err
		}
	}
	return nil
}
