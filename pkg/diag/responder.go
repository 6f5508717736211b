package diag

import (
	"io"
	"math"
	"net"
	"os"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/docker/go-units"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// Responder writes responses on one accepted connection. The connection loop
// owns it; handlers only borrow it for the duration of one dispatch.
//
// Sends are best effort: failures are logged and returned, never retried.
type Responder struct {
	conn   net.Conn
	header [HeaderSize]byte
	log    *logrus.Entry

	closeOnce sync.Once
	closed    atomic.Bool
	closeErr  error
}

func NewResponder(conn net.Conn, entry *logrus.Entry) *Responder {
	if entry == nil {
		entry = log
	}
	return &Responder{
		conn: conn,
		log:  entry,
	}
}

// SendResponse sends a header for op followed by payload, if any, as a
// separate transmission. It returns the number of bytes written.
func (r *Responder) SendResponse(op ResponseType, payload []byte) (int, error) {
	n, err := r.sendHeader(op, uint32(len(payload)))

	if len(payload) > 0 {
		sent, perr := r.conn.Write(payload)
		n += sent
		if perr != nil {
			r.log.WithError(perr).Debugf("Error sending %v payload", op)
			err = multierr.Append(err, errors.Wrapf(perr, "send %v payload", op))
		}
		r.log.Debugf("Sent %d payload bytes", sent)
	}
	return n, err
}

// SendFile streams the file at path as the payload of op, using the file size
// as the header length. The file bytes go from the file descriptor to the
// socket without being staged in process memory where the platform allows.
//
// On failure a zero-length op response is sent so the peer learns the request
// failed. It returns the number of file bytes transferred.
func (r *Responder) SendFile(path string, op ResponseType) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		r.log.WithError(err).Debugf("Failed to open %v", path)
		r.sendFailure(op)
		return 0, errors.Mark(errors.Wrapf(err, "open %v", path), ErrOpenFile)
	}

	sent, err := r.streamFile(f, op)

	if cerr := f.Close(); cerr != nil {
		r.log.WithError(cerr).Warnf("Failed to close %v", path)
	}
	if err != nil {
		r.log.WithError(err).Debugf("Failed to send %v", path)
		r.sendFailure(op)
		return sent, err
	}
	return sent, nil
}

func (r *Responder) streamFile(f *os.File, op ResponseType) (int64, error) {
	fi, err := f.Stat()
	if err != nil {
		return 0, errors.Mark(errors.Wrapf(err, "stat %v", f.Name()), ErrOpenFile)
	}
	size := fi.Size()
	if size > math.MaxUint32 {
		return 0, errors.Mark(errors.Newf("%v is %v, larger than a message can describe",
			f.Name(), units.HumanSize(float64(size))), ErrOpenFile)
	}

	_, err = r.sendHeader(op, uint32(size))
	if size == 0 {
		return 0, err
	}

	sent, serr := sendFile(r.conn, f, size)
	if serr != nil {
		return sent, multierr.Append(err, errors.Wrapf(serr, "sendfile %v", f.Name()))
	}
	if sent != size {
		return sent, multierr.Append(err, errors.Wrapf(ErrIncompleteTransfer,
			"%d of %d bytes of %v sent", sent, size, f.Name()))
	}
	r.log.Debugf("Sent %v (%v)", f.Name(), units.HumanSize(float64(size)))
	return sent, err
}

func (r *Responder) sendHeader(op ResponseType, length uint32) (int, error) {
	h := NewResponseHeader(op, length)
	h.MarshalTo(r.header[:])

	r.log.Debugf("Response header marker=%q msgType=%v len=%d", h.Marker[:], op, h.Len)

	n, err := r.conn.Write(r.header[:])
	if err == nil && n != HeaderSize {
		err = ErrShortWrite
	}
	if err != nil {
		r.log.WithError(err).Debugf("Bad header length (expected %d, actual %d)", HeaderSize, n)
		return n, errors.Wrapf(err, "send %v header", op)
	}
	return n, nil
}

func (r *Responder) sendFailure(op ResponseType) {
	if _, err := r.SendResponse(op, nil); err != nil {
		r.log.WithError(err).Debugf("Failed to notify peer of %v failure", op)
	}
}

// Close closes the connection. It is safe to call more than once.
func (r *Responder) Close() error {
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		r.closeErr = r.conn.Close()
	})
	return r.closeErr
}

func (r *Responder) Closed() bool {
	return r.closed.Load()
}

func copyFile(w io.Writer, f *os.File, size int64) (int64, error) {
	n, err := io.CopyN(w, f, size)
	if err == io.EOF {
		err = nil
	}
	return n, err
}
