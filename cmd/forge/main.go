// Command forge drives the exercise generation pipeline from the shell: run
// a single stage, set up a whole exercise, validate payloads, inspect the
// contract registry and audit log, and check dependencies.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/zero-day-ai/exercise-forge/gate"
)

const (
	Version = "0.1.0"
	appName = "forge"
)

// Exit codes.
const (
	exitOK       = 0
	exitError    = 1
	exitRejected = 2
	exitPanic    = 3
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(exitPanic)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	if _, ok := gate.AsRejection(err); ok {
		return exitRejected
	}
	return exitError
}
