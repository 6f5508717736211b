// Package system runs the device-level actions diagd may trigger: the
// Ethernet loopback self test and a full reboot.
package system

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"

	lhexec "github.com/longhorn/go-common-libs/exec"
	lhtypes "github.com/longhorn/go-common-libs/types"
)

const (
	DefaultLoopbackBinary  = "diag_loopback"
	DefaultInterface       = "eth0"
	DefaultRebootBinary    = "reboot"
	DefaultLoopbackTimeout = 2 * time.Minute

	loopbackTypeInternal = "internal"
)

var log = logrus.WithFields(logrus.Fields{"pkg": "system"})

// Executor runs an external binary. lhexec.NewExecutor() satisfies it.
type Executor interface {
	Execute(envs []string, binary string, args []string, timeout time.Duration) (string, error)
}

type Config struct {
	LoopbackBinary  string
	Interface       string
	LoopbackTimeout time.Duration
	RebootBinary    string
}

func DefaultConfig() Config {
	return Config{
		LoopbackBinary:  DefaultLoopbackBinary,
		Interface:       DefaultInterface,
		LoopbackTimeout: DefaultLoopbackTimeout,
		RebootBinary:    DefaultRebootBinary,
	}
}

// Controller shells out for the loopback test and reboot.
type Controller struct {
	cfg  Config
	exec Executor
}

func NewController(cfg Config, exec Executor) *Controller {
	def := DefaultConfig()
	if cfg.LoopbackBinary == "" {
		cfg.LoopbackBinary = def.LoopbackBinary
	}
	if cfg.Interface == "" {
		cfg.Interface = def.Interface
	}
	if cfg.LoopbackTimeout <= 0 {
		cfg.LoopbackTimeout = def.LoopbackTimeout
	}
	if cfg.RebootBinary == "" {
		cfg.RebootBinary = def.RebootBinary
	}
	if exec == nil {
		exec = lhexec.NewExecutor()
	}
	return &Controller{cfg: cfg, exec: exec}
}

// RunLoopbackTest runs the internal loopback test on the configured interface.
// The test writes its own results to the test-result log.
func (c *Controller) RunLoopbackTest() error {
	log.Infof("Running %v loopback test on %v", loopbackTypeInternal, c.cfg.Interface)
	out, err := c.exec.Execute([]string{}, c.cfg.LoopbackBinary, []string{c.cfg.Interface, loopbackTypeInternal}, c.cfg.LoopbackTimeout)
	if err != nil {
		return errors.Wrapf(err, "loopback test on %v failed", c.cfg.Interface)
	}
	log.Debugf("Loopback test output: %v", out)
	return nil
}

// Reboot restarts the device. On success the process does not outlive the call for long.
func (c *Controller) Reboot() error {
	log.Warn("Issuing reboot")
	if _, err := c.exec.Execute([]string{}, c.cfg.RebootBinary, []string{}, lhtypes.ExecuteNoTimeout); err != nil {
		return errors.Wrap(err, "failed to reboot")
	}
	return nil
}
