package cmd

import (
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/docker/go-units"
	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/gfiber/diagd/pkg/client"
	"github.com/gfiber/diagd/pkg/diag"
	"github.com/gfiber/diagd/pkg/moca"
	"github.com/gfiber/diagd/pkg/system"
)

const (
	DefaultListen = ":8999"

	defaultLogDir = "/var/log/diagd"
)

// ServerConfig is the diagd server configuration. TOML keys match the flag
// names of the server command.
type ServerConfig struct {
	Listen       string `toml:"listen"`
	StatusListen string `toml:"status-listen"`
	BufferSize   string `toml:"buffer-size"`
	LockFile     string `toml:"lock-file"`

	IOTimeout     time.Duration `toml:"io-timeout"`
	RunTestsDelay time.Duration `toml:"run-tests-delay"`

	MonitorLog    string `toml:"monitor-log"`
	TestResultLog string `toml:"test-result-log"`
	MocaLog       string `toml:"moca-log"`

	Mocactl     string        `toml:"mocactl"`
	MocaTimeout time.Duration `toml:"moca-timeout"`

	LoopbackBinary    string        `toml:"loopback-binary"`
	LoopbackInterface string        `toml:"loopback-interface"`
	LoopbackTimeout   time.Duration `toml:"loopback-timeout"`
	RebootBinary      string        `toml:"reboot-binary"`
}

func DefaultServerConfig() *ServerConfig {
	sys := system.DefaultConfig()
	return &ServerConfig{
		Listen:     DefaultListen,
		BufferSize: units.BytesSize(diag.DefaultRequestBufferSize),
		LockFile:   "/var/run/diagd.lock",

		RunTestsDelay: diag.DefaultRunTestsDelay,

		MonitorLog:    defaultLogDir + "/diagd.log",
		TestResultLog: defaultLogDir + "/diag_test_results.log",
		MocaLog:       defaultLogDir + "/moca.log",

		Mocactl:     moca.DefaultBinary,
		MocaTimeout: moca.DefaultQueryTimeout,

		LoopbackBinary:    sys.LoopbackBinary,
		LoopbackInterface: sys.Interface,
		LoopbackTimeout:   sys.LoopbackTimeout,
		RebootBinary:      sys.RebootBinary,
	}
}

func (cfg *ServerConfig) strings() map[string]*string {
	return map[string]*string{
		"listen":             &cfg.Listen,
		"status-listen":      &cfg.StatusListen,
		"buffer-size":        &cfg.BufferSize,
		"lock-file":          &cfg.LockFile,
		"monitor-log":        &cfg.MonitorLog,
		"test-result-log":    &cfg.TestResultLog,
		"moca-log":           &cfg.MocaLog,
		"mocactl":            &cfg.Mocactl,
		"loopback-binary":    &cfg.LoopbackBinary,
		"loopback-interface": &cfg.LoopbackInterface,
		"reboot-binary":      &cfg.RebootBinary,
	}
}

func (cfg *ServerConfig) durations() map[string]*time.Duration {
	return map[string]*time.Duration{
		"io-timeout":       &cfg.IOTimeout,
		"run-tests-delay":  &cfg.RunTestsDelay,
		"moca-timeout":     &cfg.MocaTimeout,
		"loopback-timeout": &cfg.LoopbackTimeout,
	}
}

// LoadServerConfig layers the configuration: defaults, then the TOML file
// named by --config, then flags and environment variables that were set.
func LoadServerConfig(c *cli.Context) (*ServerConfig, error) {
	cfg := DefaultServerConfig()

	if path := c.String("config"); path != "" {
		md, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse config file %v", path)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			return nil, errors.Errorf("unknown keys in config file %v: %v", path, strings.Join(keys, ", "))
		}
	}

	for name, dst := range cfg.strings() {
		if c.IsSet(name) {
			*dst = c.String(name)
		}
	}
	for name, dst := range cfg.durations() {
		if c.IsSet(name) {
			*dst = c.Duration(name)
		}
	}
	return cfg, cfg.validate()
}

func (cfg *ServerConfig) validate() error {
	if cfg.Listen == "" {
		return errors.New("listen address is required")
	}
	size, err := cfg.RequestBufferSize()
	if err != nil {
		return err
	}
	if size < diag.HeaderSize {
		return errors.Errorf("buffer-size %v is smaller than a request header", cfg.BufferSize)
	}
	for name, d := range cfg.durations() {
		if *d < 0 {
			return errors.Errorf("%v must not be negative", name)
		}
	}
	return nil
}

func (cfg *ServerConfig) RequestBufferSize() (int, error) {
	size, err := units.RAMInBytes(cfg.BufferSize)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid buffer-size %v", cfg.BufferSize)
	}
	return int(size), nil
}

func (cfg *ServerConfig) SystemConfig() system.Config {
	return system.Config{
		LoopbackBinary:  cfg.LoopbackBinary,
		Interface:       cfg.LoopbackInterface,
		LoopbackTimeout: cfg.LoopbackTimeout,
		RebootBinary:    cfg.RebootBinary,
	}
}

func (cfg *ServerConfig) LogFiles() diag.LogFiles {
	return diag.LogFiles{
		MonitorLog:    cfg.MonitorLog,
		TestResultLog: cfg.TestResultLog,
		MocaLog:       cfg.MocaLog,
	}
}

// clientFlags are shared by every client command.
func clientFlags() []cli.Flag {
	return []cli.Flag{
		cli.DurationFlag{
			Name:  "dial-timeout",
			Value: client.DefaultDialTimeout,
			Usage: "How long to keep retrying the connection to diagd",
		},
		cli.DurationFlag{
			Name:  "timeout",
			Value: client.DefaultIOTimeout,
			Usage: "Deadline for one request and its response",
		},
	}
}

func getClient(c *cli.Context) *client.Client {
	diagClient := client.NewClient(c.GlobalString("url"))
	diagClient.DialTimeout = c.Duration("dial-timeout")
	diagClient.IOTimeout = c.Duration("timeout")
	return diagClient
}
