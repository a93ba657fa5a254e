// Package netmon reports whether a network path to the backend exists, so
// the client can reject doomed requests up front instead of waiting out a
// transport timeout.
package netmon

import (
	"net"
	"time"
)

// Monitor reports current connectivity.
type Monitor interface {
	Connected() bool
}

// DialMonitor probes connectivity with a short TCP dial to a host.
type DialMonitor struct {
	Address string
	Timeout time.Duration
}

// NewDialMonitor creates a monitor probing the given host:port.
func NewDialMonitor(address string) *DialMonitor {
	return &DialMonitor{Address: address, Timeout: 2 * time.Second}
}

// Connected dials the configured address and reports whether it succeeded.
func (m *DialMonitor) Connected() bool {
	conn, err := net.DialTimeout("tcp", m.Address, m.Timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Static is a fixed-answer monitor for wiring and tests.
type Static bool

// Connected returns the fixed answer.
func (s Static) Connected() bool {
	return bool(s)
}
