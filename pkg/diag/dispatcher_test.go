package diag

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"

	. "gopkg.in/check.v1"
)

type DispatcherSuite struct{}

var _ = Suite(&DispatcherSuite{})

func flagHandler(invoked *atomic.Bool) HandlerFunc {
	return func(*Responder) error {
		invoked.Store(true)
		return nil
	}
}

func (s *DispatcherSuite) TestInvalidMarkerSendsNothing(c *C) {
	var invoked atomic.Bool
	d := NewDispatcher(0, Command{Request: ReqGetMonLog, Response: RspGetMonLog, Handler: flagHandler(&invoked)})

	for _, marker := range []string{"XXXX", "diag", "DIAG", "\x00\x00\x00\x00", "DIa\x00"} {
		conn := &recordConn{}
		raw := EncodeHeader(NewRequestHeader(ReqGetMonLog))
		copy(raw, marker)

		err := d.Dispatch(NewResponder(conn, nil), raw)
		c.Assert(errors.Is(err, ErrInvalidMarker), Equals, true, Commentf("marker %q", marker))
		c.Assert(IsProtocolError(err), Equals, true)
		c.Assert(conn.writes, HasLen, 0)
		c.Assert(conn.closed, Equals, 0)
	}
	c.Assert(invoked.Load(), Equals, false)
	c.Assert(d.Stats().Snapshot().InvalidMarker, Equals, uint64(5))
}

func (s *DispatcherSuite) TestUnknownCommandSendsNothing(c *C) {
	var invoked atomic.Bool
	d := NewDispatcher(0, Command{Request: ReqGetMonLog, Response: RspGetMonLog, Handler: flagHandler(&invoked)})

	for _, op := range []RequestType{ReqRunTests, RequestType(RspGetMonLog), RequestType(0xdead)} {
		conn := &recordConn{}
		err := d.Dispatch(NewResponder(conn, nil), EncodeHeader(NewRequestHeader(op)))
		c.Assert(errors.Is(err, ErrUnknownCommand), Equals, true, Commentf("opcode %v", op))
		c.Assert(conn.writes, HasLen, 0)
	}
	c.Assert(invoked.Load(), Equals, false)
	c.Assert(d.Stats().Snapshot().UnknownCommand, Equals, uint64(3))
}

func (s *DispatcherSuite) TestShortRequest(c *C) {
	var invoked atomic.Bool
	d := NewDispatcher(0, Command{Request: ReqGetMonLog, Response: RspGetMonLog, Handler: flagHandler(&invoked)})

	err := d.Dispatch(NewResponder(&recordConn{}, nil), []byte("DIag\x01\x00"))
	c.Assert(errors.Is(err, ErrShortHeader), Equals, true)
	c.Assert(invoked.Load(), Equals, false)
}

func (s *DispatcherSuite) TestRequestLargerThanBuffer(c *C) {
	var invoked atomic.Bool
	d := NewDispatcher(64, Command{Request: ReqGetMonLog, Response: RspGetMonLog, Handler: flagHandler(&invoked)})

	h := NewRequestHeader(ReqGetMonLog)
	h.Len = 64
	err := d.Dispatch(NewResponder(&recordConn{}, nil), EncodeHeader(h))
	c.Assert(errors.Is(err, ErrRequestTooLarge), Equals, true)
	c.Assert(invoked.Load(), Equals, false)

	h.Len = 64 - HeaderSize
	err = d.Dispatch(NewResponder(&recordConn{}, nil), EncodeHeader(h))
	c.Assert(err, IsNil)
	c.Assert(invoked.Load(), Equals, true)
}

func (s *DispatcherSuite) TestHandlerErrorIsReturnedNotAnswered(c *C) {
	d := NewDispatcher(0, Command{
		Request:  ReqMocaGetConfig,
		Response: RspMocaGetConfig,
		Handler:  func(*Responder) error { return fmt.Errorf("chip busy") },
	})
	conn := &recordConn{}

	err := d.Dispatch(NewResponder(conn, nil), EncodeHeader(NewRequestHeader(ReqMocaGetConfig)))
	c.Assert(err, ErrorMatches, "MOCA_GET_CONFIG handler: chip busy")
	c.Assert(IsProtocolError(err), Equals, false)
	c.Assert(conn.writes, HasLen, 0)

	snap := d.Stats().Snapshot()
	c.Assert(snap.HandlerFailed, Equals, uint64(1))
	c.Assert(snap.Commands["MOCA_GET_CONFIG"], Equals, uint64(1))
}

func (s *DispatcherSuite) TestLockReleasedAfterPanic(c *C) {
	var invoked atomic.Bool
	d := NewDispatcher(0,
		Command{Request: ReqRunTests, Response: RspRunTests, Handler: func(*Responder) error { panic("boom") }},
		Command{Request: ReqGetMonLog, Response: RspGetMonLog, Handler: flagHandler(&invoked)},
	)

	c.Assert(func() {
		d.Dispatch(nil, EncodeHeader(NewRequestHeader(ReqRunTests)))
	}, PanicMatches, "boom")

	c.Assert(d.Dispatch(nil, EncodeHeader(NewRequestHeader(ReqGetMonLog))), IsNil)
	c.Assert(invoked.Load(), Equals, true)
}

func (s *DispatcherSuite) TestDuplicateCommandPanics(c *C) {
	cmd := Command{Request: ReqGetMonLog, Response: RspGetMonLog, Handler: func(*Responder) error { return nil }}
	c.Assert(func() { NewDispatcher(0, cmd, cmd) }, PanicMatches, "diag: duplicate command GET_MON_LOG")
	c.Assert(func() { NewDispatcher(0, Command{Request: ReqRunTests}) }, PanicMatches, "diag: command RUN_TESTS has no handler")
}

func (s *DispatcherSuite) TestHandlersNeverInterleave(c *C) {
	var (
		mu       sync.Mutex
		events   []string
		inflight atomic.Int32
		overlap  atomic.Bool
	)
	record := func(e string) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	}
	handler := func(name string) HandlerFunc {
		return func(*Responder) error {
			if inflight.Add(1) > 1 {
				overlap.Store(true)
			}
			record("enter " + name)
			time.Sleep(200 * time.Microsecond)
			record("exit " + name)
			inflight.Add(-1)
			return nil
		}
	}
	d := NewDispatcher(0,
		Command{Request: ReqMocaGetStatus, Response: RspMocaGetStatus, Handler: handler("status")},
		Command{Request: ReqMocaGetConfig, Response: RspMocaGetConfig, Handler: handler("config")},
	)

	const rounds = 25
	var wg sync.WaitGroup
	for _, op := range []RequestType{ReqMocaGetStatus, ReqMocaGetConfig, ReqMocaGetStatus, ReqMocaGetConfig} {
		wg.Add(1)
		go func(op RequestType) {
			defer wg.Done()
			raw := EncodeHeader(NewRequestHeader(op))
			for i := 0; i < rounds; i++ {
				c.Check(d.Dispatch(nil, raw), IsNil)
			}
		}(op)
	}
	wg.Wait()

	c.Assert(overlap.Load(), Equals, false)
	c.Assert(events, HasLen, 4*rounds*2)
	for i := 0; i < len(events); i += 2 {
		name := strings.TrimPrefix(events[i], "enter ")
		c.Assert(events[i+1], Equals, "exit "+name, Commentf("event %d", i))
	}
}
