//go:build !windows
// +build !windows

package ipc

import (
	"fmt"
	"net"
	"os"
	"time"
)

// dialTimeout bounds how long a subscriber waits on the socket before
// its retry loop takes over.
const dialTimeout = time.Second

// listenFrameSocket opens the frame socket as a Unix domain socket.
// A stale socket file left by a crashed server is removed first.
func listenFrameSocket(socketPath string) (net.Listener, error) {
	if err := CleanupSocket(socketPath); err != nil {
		return nil, fmt.Errorf("cleanup stale socket: %w", err)
	}

	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen unix %s: %w", socketPath, err)
	}

	// The recorder may run as a different user than the server
	if err := os.Chmod(socketPath, 0666); err != nil {
		ln.Close()
		return nil, fmt.Errorf("chmod %s: %w", socketPath, err)
	}

	return ln, nil
}

// dialFrameSocket connects to a running publisher's socket.
func dialFrameSocket(socketPath string) (net.Conn, error) {
	return net.DialTimeout("unix", socketPath, dialTimeout)
}

// frameSocketAddr is the address form shown in logs.
func frameSocketAddr(socketPath string) string {
	return socketPath
}
