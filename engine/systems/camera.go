package systems

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/spaghettifunk/gensou/engine/core"
	"github.com/spaghettifunk/gensou/engine/renderer/components"
)

// DefaultCameraName is the camera that always exists and is never released.
const DefaultCameraName = "default"

const DefaultMaxCameraCount = 61

var ErrTooManyCameras = errors.New("camera system is full")

type cameraLookup struct {
	camera *components.Camera
	refs   uint16
}

// CameraSystem hands out named cameras with reference counting.
type CameraSystem struct {
	mu            sync.Mutex
	maxCameras    int
	cameras       map[string]*cameraLookup
	defaultCamera *components.Camera
}

func NewCameraSystem(maxCameras int) (*CameraSystem, error) {
	if maxCameras <= 0 {
		err := errors.Errorf("max camera count must be > 0, got %d", maxCameras)
		core.LogError(err.Error())
		return nil, err
	}
	return &CameraSystem{
		maxCameras:    maxCameras,
		cameras:       make(map[string]*cameraLookup, maxCameras),
		defaultCamera: components.NewCamera(),
	}, nil
}

// Acquire returns the camera registered under name, creating it on first
// use, and increments its reference count.
func (cs *CameraSystem) Acquire(name string) (*components.Camera, error) {
	if name == DefaultCameraName {
		return cs.defaultCamera, nil
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()

	l, ok := cs.cameras[name]
	if !ok {
		if len(cs.cameras) >= cs.maxCameras {
			err := errors.Wrapf(ErrTooManyCameras, "acquire '%s', adjust the max camera count", name)
			core.LogError(err.Error())
			return nil, err
		}
		core.LogDebug("creating new camera named '%s'", name)
		l = &cameraLookup{camera: components.NewCamera()}
		cs.cameras[name] = l
	}
	l.refs++
	return l.camera, nil
}

// Release decrements the camera's reference count. The camera is dropped when
// it reaches zero.
func (cs *CameraSystem) Release(name string) {
	if name == DefaultCameraName {
		core.LogDebug("cannot release default camera, nothing was done")
		return
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()

	l, ok := cs.cameras[name]
	if !ok {
		core.LogWarn("release of unknown camera '%s', nothing was done", name)
		return
	}
	l.refs--
	if l.refs == 0 {
		delete(cs.cameras, name)
	}
}

func (cs *CameraSystem) GetDefault() *components.Camera {
	return cs.defaultCamera
}

func (cs *CameraSystem) Len() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return len(cs.cameras)
}
