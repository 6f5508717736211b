package cmd

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/gfiber/diagd/pkg/util"
)

var (
	hooksLock sync.Mutex
	hooks     = []func() error{}

	exit = os.Exit
)

func addShutdown(f func() error) {
	hooksLock.Lock()
	defer hooksLock.Unlock()

	if len(hooks) == 0 {
		registerShutdown()
	}

	hooks = append(hooks, f)
	logrus.Debugf("Added shutdown func %v", util.GetFunctionName(f))
}

// runShutdownHooks runs the hooks in reverse registration order.
func runShutdownHooks() {
	hooksLock.Lock()
	defer hooksLock.Unlock()

	for i := len(hooks) - 1; i >= 0; i-- {
		hook := hooks[i]
		logrus.Infof("Starting to execute registered shutdown func %v", util.GetFunctionName(hook))
		if err := hook(); err != nil {
			logrus.WithError(err).Warnf("Shutdown func %v failed", util.GetFunctionName(hook))
		}
	}
	hooks = hooks[:0]
}

func registerShutdown() {
	c := make(chan os.Signal, 1024)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		shutdownOnSignal(<-c)
	}()
}

// shutdownOnSignal runs the hooks and exits. A connection held by a hung peer
// keeps Serve from returning, so the process does not wait for it.
func shutdownOnSignal(s os.Signal) {
	logrus.Warnf("Received signal %v to shutdown", s)
	runShutdownHooks()
	exit(1)
}
