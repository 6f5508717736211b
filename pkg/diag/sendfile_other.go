//go:build !linux

package diag

import (
	"net"
	"os"
)

func sendFile(conn net.Conn, f *os.File, size int64) (int64, error) {
	return copyFile(conn, f, size)
}
