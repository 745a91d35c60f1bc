//go:build !linux

package engine

import (
	"net"
	"strconv"
)

// listenTCP binds an IPv4 listener. The backlog is left to the platform.
func listenTCP(host string, port, _ int) (net.Listener, error) {
	return net.Listen("tcp4", net.JoinHostPort(host, strconv.Itoa(port)))
}
