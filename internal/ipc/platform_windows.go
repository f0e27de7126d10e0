//go:build windows
// +build windows

package ipc

import (
	"fmt"
	"net"
	"time"
)

// dialTimeout bounds how long a subscriber waits on the socket before
// its retry loop takes over.
const dialTimeout = time.Second

// listenFrameSocket opens the frame socket as loopback TCP. Unix
// domain sockets are unreliable on Windows, and loopback TCP stays
// well under a frame interval; socketPath is ignored here.
func listenFrameSocket(socketPath string) (net.Listener, error) {
	ln, err := net.Listen("tcp", DefaultTCPAddr)
	if err != nil {
		return nil, fmt.Errorf("listen tcp %s: %w", DefaultTCPAddr, err)
	}
	return ln, nil
}

// dialFrameSocket connects to a running publisher over loopback TCP.
func dialFrameSocket(socketPath string) (net.Conn, error) {
	return net.DialTimeout("tcp", DefaultTCPAddr, dialTimeout)
}

// frameSocketAddr is the address form shown in logs.
func frameSocketAddr(socketPath string) string {
	return DefaultTCPAddr + " (loopback TCP)"
}
