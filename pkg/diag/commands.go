package diag

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/gfiber/diagd/pkg/moca"
)

// HandlerFunc serves one command. It is responsible for every byte sent to
// the peer; the returned error is only logged.
type HandlerFunc func(rsp *Responder) error

// Command is one host command table entry.
type Command struct {
	Request  RequestType
	Response ResponseType
	Handler  HandlerFunc
}

// SystemControl performs the irreversible device actions of the run-tests command.
type SystemControl interface {
	RunLoopbackTest() error
	Reboot() error
}

type LogFiles struct {
	MonitorLog    string
	TestResultLog string
	MocaLog       string
}

const DefaultRunTestsDelay = 5 * time.Second

var ErrBadQueryLength = errors.New("diag: query reported a length outside its buffer")

// Handlers binds the command handlers to their collaborators.
type Handlers struct {
	Files  LogFiles
	Moca   moca.Querier
	System SystemControl

	// RunTestsDelay lets the run-tests ACK drain before the test starts.
	RunTestsDelay time.Duration
}

// Commands returns the host command table served by h.
func (h *Handlers) Commands() []Command {
	q := h.Moca
	if q == nil {
		q = moca.Unavailable{}
	}
	return []Command{
		fileRelay(ReqGetMonLog, RspGetMonLog, h.Files.MonitorLog),
		fileRelay(ReqGetDiagResultLog, RspGetDiagResultLog, h.Files.TestResultLog),
		{Request: ReqRunTests, Response: RspRunTests, Handler: h.RunTests},

		queryRelay(ReqMocaGetConnInfo, RspMocaGetConnInfo, moca.ConnInfoSize, q.GetConnInfo),
		fileRelay(ReqMocaGetMocaLog, RspMocaGetMocaLog, h.Files.MocaLog),
		queryRelay(ReqMocaGetMocaInitParms, RspMocaGetMocaInitParms, moca.InitParmsSize, q.GetInitParms),
		queryRelay(ReqMocaGetStatus, RspMocaGetStatus, moca.StatusSize, q.GetStatus),
		queryRelay(ReqMocaGetConfig, RspMocaGetConfig, moca.ConfigSize, q.GetConfig),
		queryRelay(ReqMocaGetNodeStatusTbl, RspMocaGetNodeStatusTbl, moca.NodeStatusSize, q.GetNodeStatus),
		queryRelay(ReqMocaGetNodeStatsTbl, RspMocaGetNodeStatusTbl, moca.NodeStatsTableSize, q.GetNodeStatistics),
	}
}

// RunTests acknowledges the request, drops the connection, runs the loopback
// test and reboots the device whatever the test outcome.
func (h *Handlers) RunTests(rsp *Responder) error {
	if _, err := rsp.SendResponse(RspRunTests, nil); err != nil {
		rsp.log.WithError(err).Debug("Failed to acknowledge run tests")
	}
	if err := rsp.Close(); err != nil {
		rsp.log.WithError(err).Debug("Failed to close connection before running tests")
	}

	time.Sleep(h.RunTestsDelay)

	if h.System == nil {
		return errors.New("no system control configured")
	}
	if err := h.System.RunLoopbackTest(); err != nil {
		log.WithError(err).Warn("Loopback test failed")
	}

	log.Info("Issuing reboot after diagnostic tests")
	return h.System.Reboot()
}

func fileRelay(req RequestType, op ResponseType, path string) Command {
	return Command{
		Request:  req,
		Response: op,
		Handler: func(rsp *Responder) error {
			_, err := rsp.SendFile(path, op)
			return err
		},
	}
}

func queryRelay(req RequestType, op ResponseType, size int, query func([]byte) (int, error)) Command {
	return Command{
		Request:  req,
		Response: op,
		Handler: func(rsp *Responder) error {
			buf := make([]byte, size)
			n, err := query(buf)
			if err == nil && (n < 0 || n > len(buf)) {
				err = errors.Wrapf(ErrBadQueryLength, "%d of %d", n, len(buf))
			}
			if err != nil {
				// an empty payload is the only failure signal the peer gets
				if _, serr := rsp.SendResponse(op, nil); serr != nil {
					rsp.log.WithError(serr).Debugf("Failed to notify peer of %v failure", req)
				}
				return errors.Wrapf(err, "%v query failed", req)
			}
			_, err = rsp.SendResponse(op, buf[:n])
			return err
		},
	}
}
