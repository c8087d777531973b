package systems

import (
	"context"
)

// SystemManager owns the engine's threads, the render thread, the loading
// thread and the worker pool, plus the camera registry. The main thread is
// whoever calls its methods.
type SystemManager struct {
	renderThread  *RenderThread
	loadingThread *LoadingThread
	threadPool    *ThreadPool
	cameraSystem  *CameraSystem
}

func NewSystemManager(ctx context.Context, framesInFlight uint32) (*SystemManager, error) {
	cs, err := NewCameraSystem(DefaultMaxCameraCount)
	if err != nil {
		return nil, err
	}
	tp, err := NewThreadPool(ctx, DefaultWorkerCount)
	if err != nil {
		return nil, err
	}
	rt := NewRenderThread(framesInFlight)
	rt.Start(ctx)
	lt := NewLoadingThread()
	lt.Start(ctx)

	return &SystemManager{
		renderThread:  rt,
		loadingThread: lt,
		threadPool:    tp,
		cameraSystem:  cs,
	}, nil
}

func (sm *SystemManager) RenderThread() *RenderThread   { return sm.renderThread }
func (sm *SystemManager) LoadingThread() *LoadingThread { return sm.loadingThread }
func (sm *SystemManager) ThreadPool() *ThreadPool       { return sm.threadPool }
func (sm *SystemManager) CameraSystem() *CameraSystem   { return sm.cameraSystem }

// Shutdown stops the loading thread first so pending uploads land before
// the render thread drains.
func (sm *SystemManager) Shutdown() error {
	sm.loadingThread.Stop()
	sm.renderThread.Stop()
	if err := sm.threadPool.Shutdown(); err != nil {
		return err
	}
	return nil
}
