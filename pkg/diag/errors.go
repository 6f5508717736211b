package diag

import "github.com/cockroachdb/errors"

var (
	ErrShortHeader     = errors.New("diag: request shorter than message header")
	ErrInvalidMarker   = errors.New("diag: invalid message header marker")
	ErrUnknownCommand  = errors.New("diag: unknown command")
	ErrRequestTooLarge = errors.New("diag: request payload exceeds request buffer")

	ErrOpenFile           = errors.New("diag: cannot open file to send")
	ErrShortWrite         = errors.New("diag: short write")
	ErrIncompleteTransfer = errors.New("diag: incomplete file transfer")
)

// IsProtocolError reports whether err rejected a request before any handler ran.
// The peer sees these as a closed connection with nothing sent.
func IsProtocolError(err error) bool {
	return errors.IsAny(err, ErrShortHeader, ErrInvalidMarker, ErrUnknownCommand, ErrRequestTooLarge)
}
