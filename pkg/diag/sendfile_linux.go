//go:build linux

package diag

import (
	"net"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

const maxSendfileChunk = 1 << 30

// sendFile moves size bytes of f to conn with sendfile(2). Connections that
// do not expose a descriptor, like net.Pipe, fall back to a buffered copy.
func sendFile(conn net.Conn, f *os.File, size int64) (int64, error) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return copyFile(conn, f, size)
	}
	rc, err := sc.SyscallConn()
	if err != nil {
		return copyFile(conn, f, size)
	}

	var (
		src     = int(f.Fd())
		offset  int64
		written int64
		serr    error
	)
	err = rc.Write(func(fd uintptr) bool {
		for written < size {
			chunk := size - written
			if chunk > maxSendfileChunk {
				chunk = maxSendfileChunk
			}
			n, e := unix.Sendfile(int(fd), src, &offset, int(chunk))
			if n > 0 {
				written += int64(n)
			}
			switch {
			case e == unix.EAGAIN:
				return false
			case e == unix.EINTR:
				continue
			case e != nil:
				serr = os.NewSyscallError("sendfile", e)
				return true
			case n == 0:
				// file shrank underneath us
				return true
			}
		}
		return true
	})
	if serr != nil {
		return written, serr
	}
	return written, err
}
