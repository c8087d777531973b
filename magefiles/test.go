//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Test mg.Namespace

// Runs every package's tests with the race detector.
func (Test) All() error {
	if _, err := executeCmd("go", withArgs("test", "-race", "./..."), withStream()); err != nil {
		return err
	}
	return nil
}

// Runs the renderer tests only.
func (Test) Renderer() error {
	if _, err := executeCmd("go", withArgs("test", "./engine/renderer/..."), withStream()); err != nil {
		return err
	}
	return nil
}
