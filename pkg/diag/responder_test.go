package diag

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	. "gopkg.in/check.v1"
)

type ResponderSuite struct {
	dir string
}

var _ = Suite(&ResponderSuite{})

func (s *ResponderSuite) SetUpTest(c *C) {
	s.dir = c.MkDir()
}

func (s *ResponderSuite) writeFile(c *C, name string, data []byte) string {
	path := filepath.Join(s.dir, name)
	c.Assert(os.WriteFile(path, data, 0644), IsNil)
	return path
}

func (s *ResponderSuite) TestSendResponseHeaderThenPayload(c *C) {
	conn := &recordConn{}
	rsp := NewResponder(conn, nil)

	n, err := rsp.SendResponse(RspMocaGetStatus, []byte("status"))
	c.Assert(err, IsNil)
	c.Assert(n, Equals, HeaderSize+len("status"))
	c.Assert(conn.writes, HasLen, 2)
	c.Assert(conn.writes[0], DeepEquals, EncodeHeader(NewResponseHeader(RspMocaGetStatus, 6)))
	c.Assert(string(conn.writes[1]), Equals, "status")
}

func (s *ResponderSuite) TestSendResponseWithoutPayload(c *C) {
	conn := &recordConn{}
	rsp := NewResponder(conn, nil)

	n, err := rsp.SendResponse(RspRunTests, nil)
	c.Assert(err, IsNil)
	c.Assert(n, Equals, HeaderSize)
	c.Assert(conn.writes, HasLen, 1)
}

func (s *ResponderSuite) TestSendResponseSurfacesTransportError(c *C) {
	conn := &recordConn{failing: true}
	rsp := NewResponder(conn, nil)

	n, err := rsp.SendResponse(RspMocaGetConfig, []byte("cfg"))
	c.Assert(n, Equals, 0)
	c.Assert(err, NotNil)
	c.Assert(errors.Is(err, io.ErrClosedPipe), Equals, true)
}

func (s *ResponderSuite) TestSendFileCopyPath(c *C) {
	path := s.writeFile(c, "mon.log", []byte("hello\n"))
	conn := &recordConn{}
	rsp := NewResponder(conn, nil)

	sent, err := rsp.SendFile(path, RspGetMonLog)
	c.Assert(err, IsNil)
	c.Assert(sent, Equals, int64(6))

	h, payload := splitResponse(c, conn.all())
	c.Assert(ResponseType(h.MsgType), Equals, RspGetMonLog)
	c.Assert(h.Len, Equals, uint32(6))
	c.Assert(string(payload), Equals, "hello\n")
}

func (s *ResponderSuite) TestSendFileZeroCopy(c *C) {
	data := bytes.Repeat([]byte("0123456789abcdef"), 64*1024)
	path := s.writeFile(c, "big.log", data)

	server, client := tcpPair(c)
	defer client.Close()

	done := make(chan error, 1)
	go func() {
		rsp := NewResponder(server, nil)
		_, err := rsp.SendFile(path, RspMocaGetMocaLog)
		rsp.Close()
		done <- err
	}()

	raw, err := io.ReadAll(client)
	c.Assert(err, IsNil)
	c.Assert(<-done, IsNil)

	h, payload := splitResponse(c, raw)
	c.Assert(ResponseType(h.MsgType), Equals, RspMocaGetMocaLog)
	c.Assert(int(h.Len), Equals, len(data))
	c.Assert(bytes.Equal(payload, data), Equals, true)
}

func (s *ResponderSuite) TestSendFilePayloadFailureFollowedByEmptyResponse(c *C) {
	path := s.writeFile(c, "mon.log", []byte("hello\n"))
	conn := &recordConn{failWrite: 2}
	rsp := NewResponder(conn, nil)

	sent, err := rsp.SendFile(path, RspGetMonLog)
	c.Assert(err, NotNil)
	c.Assert(errors.Is(err, io.ErrClosedPipe), Equals, true)
	c.Assert(errors.Is(err, ErrIncompleteTransfer), Equals, false)
	c.Assert(sent, Equals, int64(0))

	c.Assert(conn.writes, HasLen, 2)
	c.Assert(conn.writes[0], DeepEquals, EncodeHeader(NewResponseHeader(RspGetMonLog, 6)))
	c.Assert(conn.writes[1], DeepEquals, EncodeHeader(NewResponseHeader(RspGetMonLog, 0)))
}

func (s *ResponderSuite) TestSendFileShrunkDuringTransfer(c *C) {
	path := s.writeFile(c, "mon.log", []byte("hello\n"))
	conn := &recordConn{}
	conn.afterWrite = func() {
		// the log is rotated once the header is out
		c.Check(os.Truncate(path, 2), IsNil)
	}
	rsp := NewResponder(conn, nil)

	sent, err := rsp.SendFile(path, RspGetMonLog)
	c.Assert(errors.Is(err, ErrIncompleteTransfer), Equals, true)
	c.Assert(sent, Equals, int64(2))

	c.Assert(conn.writes, HasLen, 3)
	c.Assert(conn.writes[0], DeepEquals, EncodeHeader(NewResponseHeader(RspGetMonLog, 6)))
	c.Assert(string(conn.writes[1]), Equals, "he")
	c.Assert(conn.writes[2], DeepEquals, EncodeHeader(NewResponseHeader(RspGetMonLog, 0)))
}

func (s *ResponderSuite) TestSendFileMissing(c *C) {
	conn := &recordConn{}
	rsp := NewResponder(conn, nil)

	sent, err := rsp.SendFile(filepath.Join(s.dir, "absent.log"), RspGetDiagResultLog)
	c.Assert(sent, Equals, int64(0))
	c.Assert(errors.Is(err, ErrOpenFile), Equals, true)

	c.Assert(conn.writes, HasLen, 1)
	h, payload := splitResponse(c, conn.all())
	c.Assert(ResponseType(h.MsgType), Equals, RspGetDiagResultLog)
	c.Assert(h.Len, Equals, uint32(0))
	c.Assert(payload, HasLen, 0)
}

func (s *ResponderSuite) TestSendFileEmpty(c *C) {
	path := s.writeFile(c, "empty.log", nil)
	conn := &recordConn{}
	rsp := NewResponder(conn, nil)

	sent, err := rsp.SendFile(path, RspMocaGetMocaLog)
	c.Assert(err, IsNil)
	c.Assert(sent, Equals, int64(0))
	c.Assert(conn.writes, HasLen, 1)
	h, _ := splitResponse(c, conn.all())
	c.Assert(h.Len, Equals, uint32(0))
}

func (s *ResponderSuite) TestCloseIsIdempotent(c *C) {
	conn := &recordConn{}
	rsp := NewResponder(conn, nil)

	c.Assert(rsp.Closed(), Equals, false)
	c.Assert(rsp.Close(), IsNil)
	c.Assert(rsp.Close(), IsNil)
	c.Assert(rsp.Closed(), Equals, true)
	c.Assert(conn.closed, Equals, 1)
}
