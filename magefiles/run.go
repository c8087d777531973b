//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Compiles the shaders and runs the testbed in a window.
func (Run) Engine() error {
	if err := buildShaders(); err != nil {
		return err
	}
	fmt.Println("Run engine...")
	if _, err := executeCmd("go", withArgs("run", ".", "-config", "gensou.toml"), withStream()); err != nil {
		return err
	}
	return nil
}

// Runs the testbed for a few hundred frames on the software driver.
func (Run) Headless() error {
	fmt.Println("Run engine headless...")
	if _, err := executeCmd("go", withArgs("run", ".", "-headless", "-frames", "300"), withStream()); err != nil {
		return err
	}
	return nil
}
