/*
This is an example of application that will use the
engine package to test things out
*/
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/gensou/engine"
	"github.com/spaghettifunk/gensou/engine/core"
	"github.com/spaghettifunk/gensou/testbed"
)

func main() {
	configPath := flag.String("config", "", "path to the TOML configuration file")
	headless := flag.Bool("headless", false, "render with the software driver and no window")
	frames := flag.Uint64("frames", 0, "stop after this many frames (0 runs until quit)")
	flag.Parse()

	cfg, err := engine.LoadApplicationConfig(*configPath)
	if err != nil {
		core.LogFatal(err.Error())
	}
	tb := testbed.NewTestGame(&cfg)

	e, err := engine.New(tb.Game, engine.Options{
		ConfigPath: *configPath,
		Headless:   *headless,
		MaxFrames:  *frames,
	})
	if err != nil {
		core.LogFatal(err.Error())
	}

	if err := e.Initialize(); err != nil {
		_ = e.Shutdown()
		core.LogFatal(err.Error())
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	// the loop owns the GPU objects, so a signal only asks it to stop
	go func() {
		<-sigCh
		e.Quit()
	}()

	runErr := e.Run()
	if err := e.Shutdown(); err != nil {
		core.LogError(err.Error())
	}
	if runErr != nil {
		core.LogFatal(runErr.Error())
	}
}
