package moca

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"

	lhexec "github.com/longhorn/go-common-libs/exec"
)

const (
	DefaultBinary       = "mocactl"
	DefaultQueryTimeout = 10 * time.Second
)

var (
	log = logrus.WithFields(logrus.Fields{"pkg": "moca"})

	argsInitParms  = []string{"show", "--initparms"}
	argsStatus     = []string{"show", "--status"}
	argsConfig     = []string{"show", "--config"}
	argsNodeStatus = []string{"showtbl", "--nodestatus"}
	argsNodeStats  = []string{"showtbl", "--nodestats"}
	argsConnInfo   = []string{"fmr", "--a"}
)

// Executor runs an external binary. lhexec.NewExecutor() satisfies it.
type Executor interface {
	Execute(envs []string, binary string, args []string, timeout time.Duration) (string, error)
}

// CommandQuerier answers queries by running the vendor mocactl tool and
// relaying its output. Output longer than the record buffer is truncated.
type CommandQuerier struct {
	Binary  string
	Timeout time.Duration

	exec Executor
}

func NewCommandQuerier(binary string, timeout time.Duration, exec Executor) *CommandQuerier {
	if binary == "" {
		binary = DefaultBinary
	}
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	if exec == nil {
		exec = lhexec.NewExecutor()
	}
	return &CommandQuerier{
		Binary:  binary,
		Timeout: timeout,
		exec:    exec,
	}
}

func (q *CommandQuerier) GetInitParms(buf []byte) (int, error) {
	return q.run(buf, argsInitParms)
}

func (q *CommandQuerier) GetStatus(buf []byte) (int, error) {
	return q.run(buf, argsStatus)
}

func (q *CommandQuerier) GetConfig(buf []byte) (int, error) {
	return q.run(buf, argsConfig)
}

func (q *CommandQuerier) GetNodeStatus(buf []byte) (int, error) {
	return q.run(buf, argsNodeStatus)
}

func (q *CommandQuerier) GetNodeStatistics(buf []byte) (int, error) {
	return q.run(buf, argsNodeStats)
}

func (q *CommandQuerier) GetConnInfo(buf []byte) (int, error) {
	return q.run(buf, argsConnInfo)
}

func (q *CommandQuerier) run(buf []byte, args []string) (int, error) {
	out, err := q.exec.Execute([]string{}, q.Binary, args, q.Timeout)
	if err != nil {
		return 0, errors.Mark(errors.Wrapf(err, "%v %v", q.Binary, args), ErrQueryFailed)
	}
	n := copy(buf, out)
	if n < len(out) {
		log.Warnf("Truncated %v %v output from %d to %d bytes", q.Binary, args, len(out), n)
	}
	return n, nil
}
