package client

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/gfiber/diagd/pkg/diag"
)

const (
	DefaultDialTimeout  = 10 * time.Second
	DefaultIOTimeout    = 60 * time.Second
	defaultDialInterval = 500 * time.Millisecond
)

var (
	// ErrNoResponse means diagd closed the connection without answering,
	// which is how it rejects malformed or unknown requests.
	ErrNoResponse = errors.New("diagd closed the connection without a response")
	// ErrEmptyResponse means diagd answered with a zero-length payload on a
	// command that carries data, which is how handler failures are reported.
	ErrEmptyResponse      = errors.New("diagd returned an empty response")
	ErrUnexpectedResponse = errors.New("unexpected response opcode")
	ErrTruncated          = errors.New("response payload truncated")
)

var log = logrus.WithFields(logrus.Fields{"pkg": "client"})

// Client issues one request per connection to a diagd server.
type Client struct {
	Address      string
	DialTimeout  time.Duration
	DialInterval time.Duration
	IOTimeout    time.Duration
}

func NewClient(address string) *Client {
	return &Client{
		Address:      address,
		DialTimeout:  DefaultDialTimeout,
		DialInterval: defaultDialInterval,
		IOTimeout:    DefaultIOTimeout,
	}
}

// Stream is an open response. Payload yields exactly Header.Len bytes unless
// the server hangs up early, in which case reading ends with ErrTruncated.
type Stream struct {
	Header  diag.Header
	Payload io.Reader

	conn net.Conn
}

func (s *Stream) Close() error {
	return s.conn.Close()
}

// Open sends a request for op and reads the response header.
func (c *Client) Open(ctx context.Context, op diag.RequestType) (*Stream, error) {
	expected, ok := op.ExpectedResponse()
	if !ok {
		return nil, errors.Newf("unsupported request %v", op)
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	if c.IOTimeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(c.IOTimeout)); err != nil {
			conn.Close()
			return nil, errors.Wrap(err, "failed to set deadline")
		}
	}

	if _, err := diag.WriteHeader(conn, diag.NewRequestHeader(op)); err != nil {
		conn.Close()
		return nil, errors.Wrapf(err, "failed to send %v", op)
	}

	h, err := diag.ReadHeader(conn)
	if err != nil {
		conn.Close()
		if errors.Is(err, io.EOF) {
			return nil, errors.Wrapf(ErrNoResponse, "%v", op)
		}
		return nil, errors.Wrapf(err, "failed to read %v response", op)
	}
	if got := diag.ResponseType(h.MsgType); got != expected {
		conn.Close()
		return nil, errors.Wrapf(ErrUnexpectedResponse, "%v answered with %v, expected %v", op, got, expected)
	}

	log.Debugf("Received %v len=%d", diag.ResponseType(h.MsgType), h.Len)
	return &Stream{
		Header:  h,
		Payload: &exactReader{r: conn, left: int64(h.Len)},
		conn:    conn,
	}, nil
}

// Fetch runs op and returns the whole payload. Data commands answered with
// an empty payload fail with ErrEmptyResponse.
func (c *Client) Fetch(ctx context.Context, op diag.RequestType) ([]byte, error) {
	s, err := c.Open(ctx, op)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	if s.Header.Len == 0 && op != diag.ReqRunTests {
		return nil, errors.Wrapf(ErrEmptyResponse, "%v", op)
	}
	return io.ReadAll(s.Payload)
}

// RequestTo runs op and copies the payload to w.
func (c *Client) RequestTo(ctx context.Context, op diag.RequestType, w io.Writer) (int64, error) {
	s, err := c.Open(ctx, op)
	if err != nil {
		return 0, err
	}
	defer s.Close()

	if s.Header.Len == 0 && op != diag.ReqRunTests {
		return 0, errors.Wrapf(ErrEmptyResponse, "%v", op)
	}
	return io.Copy(w, s.Payload)
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	var (
		conn    net.Conn
		lastErr error
		dialer  net.Dialer
	)
	interval := c.DialInterval
	if interval <= 0 {
		interval = defaultDialInterval
	}
	timeout := c.DialTimeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}

	err := wait.PollUntilContextTimeout(ctx, interval, timeout, true, func(ctx context.Context) (bool, error) {
		conn, lastErr = dialer.DialContext(ctx, "tcp", c.Address)
		if lastErr != nil {
			log.WithError(lastErr).Debugf("Failed to connect to %v, retrying", c.Address)
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		if lastErr != nil {
			err = lastErr
		}
		return nil, errors.Wrapf(err, "failed to connect to diagd at %v", c.Address)
	}
	return conn, nil
}

type exactReader struct {
	r    io.Reader
	left int64
}

func (e *exactReader) Read(p []byte) (int, error) {
	if e.left <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > e.left {
		p = p[:e.left]
	}
	n, err := e.r.Read(p)
	e.left -= int64(n)
	if errors.Is(err, io.EOF) {
		if e.left > 0 {
			return n, errors.Wrapf(ErrTruncated, "%d bytes missing", e.left)
		}
		return n, io.EOF
	}
	return n, err
}
