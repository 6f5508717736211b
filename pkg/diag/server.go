package diag

import (
	"io"
	"net"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	DefaultRequestBufferSize = 1024

	maxAcceptBackoff = time.Second
)

var log = logrus.WithFields(logrus.Fields{"pkg": "diag"})

type ServerConfig struct {
	// RequestBufferSize bounds one request. A request is read with a single
	// receive; bytes beyond the first receive are ignored.
	RequestBufferSize int
	// IOTimeout bounds each connection. Zero blocks for as long as the peer does.
	IOTimeout time.Duration
}

// Server serves one connection at a time: accept, read one request, dispatch
// it, close, repeat.
type Server struct {
	cfg        ServerConfig
	listener   net.Listener
	dispatcher *Dispatcher
	reqBuf     []byte

	done      chan struct{}
	closeOnce sync.Once
}

func NewServer(l net.Listener, d *Dispatcher, cfg ServerConfig) *Server {
	if cfg.RequestBufferSize < HeaderSize {
		cfg.RequestBufferSize = DefaultRequestBufferSize
	}
	return &Server{
		cfg:        cfg,
		listener:   l,
		dispatcher: d,
		reqBuf:     make([]byte, cfg.RequestBufferSize),
		done:       make(chan struct{}),
	}
}

func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve runs the connection loop until Close is called, then returns nil.
func (s *Server) Serve() error {
	log.Infof("Listening for diag requests on %v", s.listener.Addr())

	var backoff time.Duration
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return errors.Wrap(err, "diag listener closed")
			}
			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else if backoff *= 2; backoff > maxAcceptBackoff {
				backoff = maxAcceptBackoff
			}
			log.WithError(err).Warnf("Accept failed, retrying in %v", backoff)
			time.Sleep(backoff)
			continue
		}
		backoff = 0
		s.handleConn(conn)
	}
}

func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.listener.Close()
	})
	return err
}

func (s *Server) handleConn(conn net.Conn) {
	entry := log.WithFields(logrus.Fields{
		"conn": uuid.NewString(),
		"peer": conn.RemoteAddr().String(),
	})
	rsp := NewResponder(conn, entry)
	defer func() {
		if err := rsp.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			entry.WithError(err).Debug("Failed to close connection")
		}
	}()

	stats := s.dispatcher.Stats()
	stats.connections.Add(1)

	if s.cfg.IOTimeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(s.cfg.IOTimeout)); err != nil {
			entry.WithError(err).Warn("Failed to set connection deadline")
		}
	}

	n, err := conn.Read(s.reqBuf)
	if n <= 0 {
		if err != nil && !errors.Is(err, io.EOF) {
			entry.WithError(err).Debug("Failed to receive request")
		}
		stats.emptyReads.Add(1)
		return
	}

	if err := s.dispatcher.Dispatch(rsp, s.reqBuf[:n]); err != nil {
		if IsProtocolError(err) {
			entry.WithError(err).Info("Rejected request")
		} else {
			entry.WithError(err).Warn("Command handler failed")
		}
	}
}
