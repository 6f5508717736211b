package cmd

import (
	"net"
	"net/http"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	lhexec "github.com/longhorn/go-common-libs/exec"

	"github.com/gfiber/diagd/pkg/diag"
	"github.com/gfiber/diagd/pkg/moca"
	"github.com/gfiber/diagd/pkg/rest"
	"github.com/gfiber/diagd/pkg/system"
	"github.com/gfiber/diagd/pkg/util"
)

func ServerCmd() cli.Command {
	def := DefaultServerConfig()
	return cli.Command{
		Name:  "server",
		Usage: "Serve diagnostic requests from the host",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  "config",
				Usage: "TOML file with server settings; flags that are set take precedence",
			},
			cli.StringFlag{
				Name:   "listen",
				Value:  def.Listen,
				EnvVar: "DIAGD_LISTEN",
			},
			cli.StringFlag{
				Name:   "status-listen",
				EnvVar: "DIAGD_STATUS_LISTEN",
				Usage:  "Address for the HTTP status endpoint, or leave it empty to disable it",
			},
			cli.StringFlag{
				Name:  "buffer-size",
				Value: def.BufferSize,
				Usage: "Request buffer size in bytes or human readable 1kb, 4kb",
			},
			cli.StringFlag{
				Name:  "lock-file",
				Value: def.LockFile,
				Usage: "Lock file guarding against a second server, or leave it empty to skip locking",
			},
			cli.DurationFlag{
				Name:  "io-timeout",
				Usage: "Deadline for each host connection, 0 to wait indefinitely",
			},
			cli.DurationFlag{
				Name:  "run-tests-delay",
				Value: def.RunTestsDelay,
				Usage: "Pause between acknowledging run-tests and starting them",
			},
			cli.StringFlag{
				Name:   "monitor-log",
				Value:  def.MonitorLog,
				EnvVar: "DIAGD_MONITOR_LOG",
			},
			cli.StringFlag{
				Name:   "test-result-log",
				Value:  def.TestResultLog,
				EnvVar: "DIAGD_TEST_RESULT_LOG",
			},
			cli.StringFlag{
				Name:   "moca-log",
				Value:  def.MocaLog,
				EnvVar: "DIAGD_MOCA_LOG",
			},
			cli.StringFlag{
				Name:  "mocactl",
				Value: def.Mocactl,
				Usage: "MoCA control binary, or leave it empty when the device has no MoCA interface",
			},
			cli.DurationFlag{
				Name:  "moca-timeout",
				Value: def.MocaTimeout,
			},
			cli.StringFlag{
				Name:  "loopback-binary",
				Value: def.LoopbackBinary,
			},
			cli.StringFlag{
				Name:  "loopback-interface",
				Value: def.LoopbackInterface,
			},
			cli.DurationFlag{
				Name:  "loopback-timeout",
				Value: def.LoopbackTimeout,
			},
			cli.StringFlag{
				Name:  "reboot-binary",
				Value: def.RebootBinary,
			},
		},
		Action: func(c *cli.Context) {
			if err := startServer(c); err != nil {
				logrus.WithError(err).Fatalf("Error running server command")
			}
		},
	}
}

func startServer(c *cli.Context) error {
	cfg, err := LoadServerConfig(c)
	if err != nil {
		return err
	}
	bufSize, err := cfg.RequestBufferSize()
	if err != nil {
		return err
	}

	if cfg.LockFile != "" {
		lock, err := util.LockFile(cfg.LockFile)
		if err != nil {
			return errors.Wrap(err, "failed to acquire server lock")
		}
		addShutdown(lock.Unlock)
	}

	logFile, err := util.SetUpLogger(cfg.MonitorLog)
	if err != nil {
		return err
	}
	addShutdown(logFile.Close)

	exec := lhexec.NewExecutor()
	handlers := &diag.Handlers{
		Files:         cfg.LogFiles(),
		System:        system.NewController(cfg.SystemConfig(), exec),
		RunTestsDelay: cfg.RunTestsDelay,
	}
	if cfg.Mocactl != "" {
		handlers.Moca = moca.NewCommandQuerier(cfg.Mocactl, cfg.MocaTimeout, exec)
	} else {
		logrus.Info("No MoCA control binary configured, MoCA queries will return empty responses")
	}

	l, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %v", cfg.Listen)
	}
	dispatcher := diag.NewDispatcher(bufSize, handlers.Commands()...)
	server := diag.NewServer(l, dispatcher, diag.ServerConfig{
		RequestBufferSize: bufSize,
		IOTimeout:         cfg.IOTimeout,
	})
	addShutdown(server.Close)

	if cfg.StatusListen != "" {
		startStatusServer(cfg.StatusListen, dispatcher.Stats())
	}

	logrus.Infof("Starting diagd with request buffer %v and I/O timeout %v", cfg.BufferSize, cfg.IOTimeout)
	err = server.Serve()
	runShutdownHooks()
	return err
}

func startStatusServer(address string, stats *diag.Stats) {
	go func() {
		router := util.AccessLogHandler(os.Stdout, rest.NewRouter(rest.NewServer(stats)))
		logrus.Infof("Listening on status %s", address)
		err := http.ListenAndServe(address, router)
		logrus.Warnf("Status server at %v is down: %v", address, err)
	}()
}
