package core

import (
	"errors"
)

var (
	ErrSwapchainBooting       = errors.New("swapchain resized or recreated, booting")
	ErrSwapchainOutOfDate     = errors.New("swapchain is out of date")
	ErrNoSuitableDevice       = errors.New("no suitable GPU device found")
	ErrNoGraphicsQueue        = errors.New("no graphics queue family available")
	ErrNoPresentQueue         = errors.New("no queue family supports presentation")
	ErrNoSurfaceFormat        = errors.New("no supported surface format")
	ErrNoDepthFormat          = errors.New("no supported depth format")
	ErrTooFewSwapchainImages  = errors.New("device cannot provide at least 2 swapchain images")
	ErrMissingRequiredFeature = errors.New("required device feature is missing")
	ErrInvalidThreadRole      = errors.New("command buffer requested from a thread without an engine role")
	ErrOutOfRange             = errors.New("range does not fit the buffer")
	ErrInvalidPipelineCache   = errors.New("pipeline cache blob is invalid")
	ErrQueueFull              = errors.New("queue is full")
	ErrQueueEmpty             = errors.New("queue is empty")
	ErrThreadStopped          = errors.New("thread is not running")
	ErrUnknown                = errors.New("unknown")
)
