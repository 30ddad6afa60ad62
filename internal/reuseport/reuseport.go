// +build linux freebsd dragonfly darwin

package reuseport

import (
	"net"
)

// TCPSocket returns a listening TCP socket fd for addr, along with the
// address it actually bound to (meaningful when addr carries port 0).
func TCPSocket(proto, addr string, reusePort bool) (int, net.Addr, error) {
	return tcpReusablePort(proto, addr, reusePort)
}
