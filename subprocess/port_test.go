package subprocess

import (
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocatePort(t *testing.T) {
	port, err := AllocatePort()
	require.NoError(t, err)
	assert.True(t, port > 0 && port < 65536, "port %d out of range", port)

	// the allocator released the port, so it can be bound again
	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	require.NoError(t, err)
	assert.NoError(t, listener.Close())
}

func TestAllocatePortReturnsFreshPorts(t *testing.T) {
	held := map[int]net.Listener{}
	defer func() {
		for _, l := range held {
			l.Close()
		}
	}()

	for i := 0; i < 5; i++ {
		port, err := AllocatePort()
		require.NoError(t, err)
		_, dup := held[port]
		require.False(t, dup, "port %d handed out while still bound", port)

		listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		require.NoError(t, err)
		held[port] = listener
	}
}

func TestAllocationErrorMessage(t *testing.T) {
	err := &AllocationError{Cause: fmt.Errorf("no ports left")}
	assert.Contains(t, err.Error(), "AllocationError")
	assert.Contains(t, err.Error(), "no ports left")
}
