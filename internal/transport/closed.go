package transport

import (
	"errors"
	"io"
	"net"
	"syscall"
)

// IsExpectedClose reports whether err is an ordinary connection teardown:
// EOF, use of a closed connection, broken pipe or connection reset. These
// happen whenever the viewer goes away and are not worth a warning.
func IsExpectedClose(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EPIPE || errno == syscall.ECONNRESET
	}
	return false
}

// Personal.AI order the ending
