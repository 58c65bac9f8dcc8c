package signalhandler

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"

	"capsulecheck/logging"
)

// SetupHandler returns a context that is cancelled on SIGINT or SIGTERM so a
// scan can stop taking new work while in-flight OpenCV calls finish. A second
// signal exits immediately. The returned stop function releases the handler.
func SetupHandler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go watchSignals(sigChan, done, cancel, os.Exit)

	var once sync.Once
	stop := func() {
		once.Do(func() {
			signal.Stop(sigChan)
			close(done)
			cancel()
		})
	}
	return ctx, stop
}

// watchSignals cancels on the first signal and calls exit(130) on the
// second. It returns once done is closed.
func watchSignals(sigChan <-chan os.Signal, done <-chan struct{}, cancel context.CancelFunc, exit func(int)) {
	select {
	case sig := <-sigChan:
		logging.LogWarning("Received %v, finishing in-flight work (signal again to exit now)", sig)
		cancel()
	case <-done:
		return
	}

	select {
	case <-sigChan:
		exit(130)
	case <-done:
	}
}

// GetOptimalProcs returns the optimal number of worker goroutines for the system
func GetOptimalProcs() int {
	numCPU := runtime.NumCPU()

	// For image processing with CGo, using too many goroutines can cause issues
	maxProcs := (numCPU * 3) / 4
	if maxProcs < 1 {
		maxProcs = 1
	}

	return maxProcs
}
