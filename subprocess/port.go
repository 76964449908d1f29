package subprocess

import (
	"net"

	"github.com/pkg/errors"
)

// AllocatePort asks the operating system for a free TCP port on the
// loopback interface. The listener is closed before returning, so the port
// is only known to be free at the time of the call.
func AllocatePort() (int, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, &AllocationError{Cause: errors.Wrap(err, "listening on loopback")}
	}

	addr, ok := listener.Addr().(*net.TCPAddr)
	closeErr := listener.Close()
	if !ok {
		return 0, &AllocationError{Cause: errors.Errorf("listener returned non-TCP address '%s'", listener.Addr())}
	}
	if addr.Port <= 0 {
		return 0, &AllocationError{Cause: errors.Errorf("listener returned unusable port %d", addr.Port)}
	}
	if closeErr != nil {
		return 0, &AllocationError{Cause: errors.Wrap(closeErr, "releasing probe listener")}
	}

	return addr.Port, nil
}
