package diag

import (
	"bytes"
	"io"
	"net"
	"sync"
	"time"

	. "gopkg.in/check.v1"
)

// recordConn records each Write as one transmission. It exposes no
// descriptor, so file relays take the copy path.
type recordConn struct {
	net.Conn

	mu       sync.Mutex
	writes   [][]byte
	attempts int
	closed   int
	failing  bool
	// failWrite fails only the write with this 1-based index.
	failWrite int
	// afterWrite runs after each successful write.
	afterWrite func()
}

func (r *recordConn) Write(b []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts++
	if r.failing || r.attempts == r.failWrite {
		return 0, io.ErrClosedPipe
	}
	r.writes = append(r.writes, append([]byte(nil), b...))
	if r.afterWrite != nil {
		r.afterWrite()
	}
	return len(b), nil
}

func (r *recordConn) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed++
	return nil
}

func (r *recordConn) all() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return bytes.Join(r.writes, nil)
}

// tcpPair returns both ends of a loopback TCP connection.
func tcpPair(c *C) (server, client net.Conn) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	c.Assert(err, IsNil)
	defer l.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := l.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- conn
	}()

	client, err = net.Dial("tcp", l.Addr().String())
	c.Assert(err, IsNil)
	select {
	case server = <-accepted:
	case <-time.After(5 * time.Second):
		c.Fatal("timed out accepting loopback connection")
	}
	c.Assert(server, NotNil)
	return server, client
}

func splitResponse(c *C, raw []byte) (Header, []byte) {
	c.Assert(len(raw) >= HeaderSize, Equals, true, Commentf("response %q", raw))
	h, err := DecodeHeader(raw)
	c.Assert(err, IsNil)
	return h, raw[HeaderSize:]
}

type stubMoca struct {
	mu      sync.Mutex
	payload []byte
	err     error
	calls   []string
}

func (m *stubMoca) query(name string, buf []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
	if m.err != nil {
		return 0, m.err
	}
	return copy(buf, m.payload), nil
}

func (m *stubMoca) GetInitParms(buf []byte) (int, error) { return m.query("initparms", buf) }
func (m *stubMoca) GetStatus(buf []byte) (int, error)    { return m.query("status", buf) }
func (m *stubMoca) GetConfig(buf []byte) (int, error)    { return m.query("config", buf) }
func (m *stubMoca) GetNodeStatus(buf []byte) (int, error) {
	return m.query("nodestatus", buf)
}
func (m *stubMoca) GetNodeStatistics(buf []byte) (int, error) {
	return m.query("nodestats", buf)
}
func (m *stubMoca) GetConnInfo(buf []byte) (int, error) { return m.query("conninfo", buf) }

type recordingSystem struct {
	loopbackErr error
	events      chan string
}

func newRecordingSystem() *recordingSystem {
	return &recordingSystem{events: make(chan string, 4)}
}

func (r *recordingSystem) RunLoopbackTest() error {
	r.events <- "loopback"
	return r.loopbackErr
}

func (r *recordingSystem) Reboot() error {
	r.events <- "reboot"
	return nil
}
