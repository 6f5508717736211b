package diag

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/cockroachdb/errors"
)

const (
	// HeaderSize is the encoded size of Header: marker, msgType and len, four bytes each.
	HeaderSize = 12

	markerLen = 4
)

// Marker prefaces every message in both directions.
var Marker = [markerLen]byte{'D', 'I', 'a', 'g'}

// Header is the fixed message header. Fields are little-endian on the wire.
type Header struct {
	Marker  [markerLen]byte
	MsgType uint32
	Len     uint32
}

// NewResponseHeader builds a well-formed response header.
func NewResponseHeader(op ResponseType, length uint32) Header {
	return Header{
		Marker:  Marker,
		MsgType: uint32(op),
		Len:     length,
	}
}

// NewRequestHeader builds a well-formed request header with no payload.
func NewRequestHeader(op RequestType) Header {
	return Header{
		Marker:  Marker,
		MsgType: uint32(op),
	}
}

// Valid reports whether the header carries the expected marker.
func (h Header) Valid() bool {
	return h.Marker == Marker
}

// MarshalTo encodes h into b, which must hold at least HeaderSize bytes.
func (h Header) MarshalTo(b []byte) {
	copy(b[0:markerLen], h.Marker[:])
	binary.LittleEndian.PutUint32(b[4:8], h.MsgType)
	binary.LittleEndian.PutUint32(b[8:12], h.Len)
}

func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	h.MarshalTo(buf)
	return buf
}

// DecodeHeader decodes the header at the start of b. The marker is checked
// before msgType and len are read, so nothing else is trusted on a mismatch.
func DecodeHeader(b []byte) (Header, error) {
	var h Header
	if len(b) < HeaderSize {
		return h, errors.Wrapf(ErrShortHeader, "got %d bytes", len(b))
	}
	if !bytes.Equal(b[0:markerLen], Marker[:]) {
		return h, errors.Wrapf(ErrInvalidMarker, "got %q", b[0:markerLen])
	}
	h.Marker = Marker
	h.MsgType = binary.LittleEndian.Uint32(b[4:8])
	h.Len = binary.LittleEndian.Uint32(b[8:12])
	return h, nil
}

// ReadHeader reads exactly one header from r.
func ReadHeader(r io.Reader) (Header, error) {
	var b [HeaderSize]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Header{}, errors.Wrapf(ErrShortHeader, "read: %v", err)
		}
		return Header{}, err
	}
	return DecodeHeader(b[:])
}

// WriteHeader writes h to w as a single transmission.
func WriteHeader(w io.Writer, h Header) (int, error) {
	var b [HeaderSize]byte
	h.MarshalTo(b[:])
	n, err := w.Write(b[:])
	if err == nil && n != HeaderSize {
		err = errors.Wrapf(ErrShortWrite, "header: wrote %d of %d bytes", n, HeaderSize)
	}
	return n, err
}
