package transport

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"braces.dev/errtrace"

	"github.com/zurustar/sipproxy/internal/logging"
)

// MaxDatagramSize is the largest UDP payload read in one call
const MaxDatagramSize = 65536

// pollInterval bounds how long the worker blocks before checking for shutdown
const pollInterval = time.Second

// UDPTransport handles UDP transport for SIP messages.
//
// Datagrams are handled one at a time on a single worker goroutine: the
// handler for one datagram returns before the next datagram is read.
type UDPTransport struct {
	conn     *net.UDPConn
	handler  MessageHandler
	logger   logging.Logger
	running  bool
	mu       sync.RWMutex
	wg       sync.WaitGroup
	stopChan chan struct{}
}

// NewUDPTransport creates a new UDP transport handler
func NewUDPTransport(logger logging.Logger) *UDPTransport {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &UDPTransport{
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start binds the socket to address ("ip:port", port 0 picks a free one) and starts the worker
func (u *UDPTransport) Start(address string) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.running {
		return errtrace.Wrap(ErrAlreadyRunning)
	}

	addr, err := net.ResolveUDPAddr("udp4", address)
	if err != nil {
		return errtrace.Wrap(fmt.Errorf("failed to resolve UDP address %s: %w", address, err))
	}

	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return errtrace.Wrap(fmt.Errorf("failed to listen on UDP address %s: %w", address, err))
	}

	u.conn = conn
	u.running = true
	u.stopChan = make(chan struct{})

	u.wg.Add(1)
	go u.receiveMessages(conn, u.stopChan)

	u.logger.Info("UDP transport started", logging.AddressField("local_addr", conn.LocalAddr()))
	return nil
}

// Stop stops reading new datagrams, waits for the in-flight one and closes the socket
func (u *UDPTransport) Stop() error {
	u.mu.Lock()
	if !u.running {
		u.mu.Unlock()
		return nil
	}
	u.running = false
	close(u.stopChan)
	conn := u.conn
	u.mu.Unlock()

	// wake the worker out of ReadFromUDP; replies from the in-flight handler still go out
	conn.SetReadDeadline(time.Now())
	u.wg.Wait()

	u.mu.Lock()
	u.conn = nil
	u.mu.Unlock()

	if err := conn.Close(); err != nil {
		return errtrace.Wrap(fmt.Errorf("failed to close UDP socket: %w", err))
	}
	u.logger.Info("UDP transport stopped")
	return nil
}

// SendMessage sends a SIP message over UDP
func (u *UDPTransport) SendMessage(data []byte, addr net.Addr) error {
	u.mu.RLock()
	defer u.mu.RUnlock()

	if u.conn == nil {
		return errtrace.Wrap(ErrNotRunning)
	}

	udpAddr, ok := addr.(*net.UDPAddr)
	if !ok {
		return errtrace.Errorf("invalid address type for UDP transport: %T", addr)
	}

	if _, err := u.conn.WriteToUDP(data, udpAddr); err != nil {
		return errtrace.Wrap(fmt.Errorf("failed to send UDP message to %s: %w", udpAddr, err))
	}

	return nil
}

// RegisterHandler registers a message handler for incoming messages
func (u *UDPTransport) RegisterHandler(handler MessageHandler) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.handler = handler
}

// receiveMessages is the single worker reading and handling datagrams
func (u *UDPTransport) receiveMessages(conn *net.UDPConn, stop <-chan struct{}) {
	defer u.wg.Done()

	buffer := make([]byte, MaxDatagramSize)

	for {
		select {
		case <-stop:
			return
		default:
		}

		// Set read timeout to allow periodic checking of stop signal
		conn.SetReadDeadline(time.Now().Add(pollInterval))

		n, addr, err := conn.ReadFromUDP(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			select {
			case <-stop:
				return
			default:
			}
			u.logger.Warn("UDP read failed", logging.ErrorField(err))
			continue
		}

		u.mu.RLock()
		handler := u.handler
		u.mu.RUnlock()

		if n == 0 || handler == nil {
			continue
		}

		data := make([]byte, n)
		copy(data, buffer[:n])
		u.dispatch(handler, data, addr)
	}
}

// dispatch runs the handler for one datagram; nothing it does stops the worker
func (u *UDPTransport) dispatch(handler MessageHandler, data []byte, addr *net.UDPAddr) {
	defer func() {
		if r := recover(); r != nil {
			u.logger.Error("panic while handling datagram",
				logging.AddressField("remote_addr", addr),
				logging.StringField("panic", fmt.Sprint(r)))
		}
	}()

	if err := handler.HandleMessage(data, u, addr); err != nil {
		u.logger.Warn("failed to handle datagram",
			logging.AddressField("remote_addr", addr),
			logging.ErrorField(err))
	}
}

// IsRunning returns true if the UDP transport is running
func (u *UDPTransport) IsRunning() bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.running
}

// LocalAddr returns the local address of the UDP connection
func (u *UDPTransport) LocalAddr() net.Addr {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if u.conn != nil {
		return u.conn.LocalAddr()
	}
	return nil
}

var _ Transport = (*UDPTransport)(nil)
