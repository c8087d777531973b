package core

import (
	"os"
	"sync"
)

// DialogFunc shows a blocking user-facing message. The platform layer installs
// a native implementation; the default only logs.
type DialogFunc func(title, message string)

type fatalHooks struct {
	mu     sync.Mutex
	dialog DialogFunc
	exit   func(code int)
}

var hooks = &fatalHooks{
	dialog: func(title, message string) {
		LogError("%s: %s", title, message)
	},
	exit: os.Exit,
}

// SetFatalHooks replaces the dialog and exit functions used by Fatal. A nil
// argument keeps the current hook. It returns a function restoring the
// previous hooks.
func SetFatalHooks(dialog DialogFunc, exit func(code int)) (restore func()) {
	hooks.mu.Lock()
	defer hooks.mu.Unlock()

	prevDialog, prevExit := hooks.dialog, hooks.exit
	if dialog != nil {
		hooks.dialog = dialog
	}
	if exit != nil {
		hooks.exit = exit
	}
	return func() {
		hooks.mu.Lock()
		defer hooks.mu.Unlock()
		hooks.dialog, hooks.exit = prevDialog, prevExit
	}
}

// Fatal reports an unrecoverable error to the user and terminates the process.
// It returns err so callers under a test exit hook can keep unwinding.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	hooks.mu.Lock()
	dialog, exit := hooks.dialog, hooks.exit
	hooks.mu.Unlock()

	LogError("fatal: %s", err.Error())
	dialog("Gensou fatal error", err.Error())
	exit(1)
	return err
}
