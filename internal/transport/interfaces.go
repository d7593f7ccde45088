package transport

import (
	"errors"
	"net"
)

// Sender writes a datagram to a peer. Delivery is fire-and-forget: a nil error
// only means the datagram left the socket.
type Sender interface {
	SendMessage(data []byte, addr net.Addr) error
}

// MessageHandler defines the interface for handling incoming SIP datagrams.
// sender is the transport the datagram arrived on and addr the peer it came from.
type MessageHandler interface {
	HandleMessage(data []byte, sender Sender, addr *net.UDPAddr) error
}

// MessageHandlerFunc adapts a function to MessageHandler
type MessageHandlerFunc func(data []byte, sender Sender, addr *net.UDPAddr) error

// HandleMessage calls f
func (f MessageHandlerFunc) HandleMessage(data []byte, sender Sender, addr *net.UDPAddr) error {
	return f(data, sender, addr)
}

// Transport is a datagram socket with a single receive worker
type Transport interface {
	Sender
	Start(address string) error
	Stop() error
	RegisterHandler(handler MessageHandler)
	LocalAddr() net.Addr
	IsRunning() bool
}

var (
	// ErrNotRunning is returned when sending on a transport that has no socket
	ErrNotRunning = errors.New("UDP transport not running")
	// ErrAlreadyRunning is returned by Start on a running transport
	ErrAlreadyRunning = errors.New("UDP transport already running")
)
