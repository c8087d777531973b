package renderer

import "sync/atomic"

// MaxFramesInFlight is the default upper bound of frames the CPU may author
// ahead of the GPU.
const MaxFramesInFlight = 3

// FrameCounter is the process-wide frame-in-flight index. It lives in
// [0, Count()) and advances once per successful present.
type FrameCounter struct {
	current atomic.Uint32
	count   atomic.Uint32
}

func NewFrameCounter(framesInFlight uint32) *FrameCounter {
	f := &FrameCounter{}
	f.SetCount(framesInFlight)
	return f
}

func (f *FrameCounter) Current() uint32 {
	return f.current.Load()
}

// Next is the index Advance will move to.
func (f *FrameCounter) Next() uint32 {
	return (f.current.Load() + 1) % f.count.Load()
}

func (f *FrameCounter) Advance() uint32 {
	next := f.Next()
	f.current.Store(next)
	return next
}

func (f *FrameCounter) Count() uint32 {
	return f.count.Load()
}

// SetCount changes the number of frames in flight. The index restarts at 0
// when it no longer fits.
func (f *FrameCounter) SetCount(n uint32) {
	f.count.Store(max(n, 1))
	if f.current.Load() >= max(n, 1) {
		f.current.Store(0)
	}
}
