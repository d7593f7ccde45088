package transport

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/zurustar/sipproxy/internal/logging"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// mockMessageHandler implements MessageHandler for testing
type mockMessageHandler struct {
	messages []mockMessage
	mu       sync.Mutex
}

type mockMessage struct {
	data []byte
	addr *net.UDPAddr
}

func (m *mockMessageHandler) HandleMessage(data []byte, sender Sender, addr *net.UDPAddr) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.messages = append(m.messages, mockMessage{data: data, addr: addr})
	return nil
}

func (m *mockMessageHandler) getMessages() []mockMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]mockMessage, len(m.messages))
	copy(result, m.messages)
	return result
}

func startTransport(t *testing.T, logger logging.Logger) *UDPTransport {
	t.Helper()
	transport := NewUDPTransport(logger)
	if err := transport.Start("127.0.0.1:0"); err != nil {
		t.Fatalf("Failed to start UDP transport: %v", err)
	}
	t.Cleanup(func() { transport.Stop() })
	return transport
}

func dialTransport(t *testing.T, transport *UDPTransport) *net.UDPConn {
	t.Helper()
	conn, err := net.DialUDP("udp4", nil, transport.LocalAddr().(*net.UDPAddr))
	if err != nil {
		t.Fatalf("Failed to create client connection: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func TestUDPTransport_StartStop(t *testing.T) {
	transport := NewUDPTransport(nil)

	if err := transport.Start("127.0.0.1:0"); err != nil {
		t.Fatalf("Failed to start UDP transport: %v", err)
	}
	if !transport.IsRunning() {
		t.Error("Transport should be running after start")
	}

	if err := transport.Stop(); err != nil {
		t.Fatalf("Failed to stop UDP transport: %v", err)
	}
	if transport.IsRunning() {
		t.Error("Transport should not be running after stop")
	}
	if transport.LocalAddr() != nil {
		t.Error("Expected nil address after stop")
	}

	// stopping twice is a no-op
	if err := transport.Stop(); err != nil {
		t.Errorf("Second stop failed: %v", err)
	}

	// the transport can be started again
	if err := transport.Start("127.0.0.1:0"); err != nil {
		t.Fatalf("Failed to restart UDP transport: %v", err)
	}
	if err := transport.Stop(); err != nil {
		t.Fatalf("Failed to stop restarted transport: %v", err)
	}
}

func TestUDPTransport_StartTwice(t *testing.T) {
	transport := startTransport(t, nil)

	if err := transport.Start("127.0.0.1:0"); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("Expected ErrAlreadyRunning, got %v", err)
	}
}

func TestUDPTransport_StartInvalidAddress(t *testing.T) {
	transport := NewUDPTransport(nil)

	if err := transport.Start("not an address"); err == nil {
		t.Error("Expected error for invalid address")
	}
	if transport.IsRunning() {
		t.Error("Transport should not be running after a failed start")
	}
}

func TestUDPTransport_SendMessage(t *testing.T) {
	transport := startTransport(t, nil)

	peer, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	defer peer.Close()

	testMessage := []byte("INVITE sip:test@example.com SIP/2.0\r\n\r\n")
	if err := transport.SendMessage(testMessage, peer.LocalAddr()); err != nil {
		t.Fatalf("Failed to send message: %v", err)
	}

	buffer := make([]byte, MaxDatagramSize)
	peer.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := peer.ReadFromUDP(buffer)
	if err != nil {
		t.Fatalf("Failed to read sent message: %v", err)
	}
	if diff := cmp.Diff(string(testMessage), string(buffer[:n])); diff != "" {
		t.Errorf("Sent message mismatch (-want +got):\n%s", diff)
	}
}

func TestUDPTransport_SendMessageNotRunning(t *testing.T) {
	transport := NewUDPTransport(nil)
	addr, _ := net.ResolveUDPAddr("udp4", "127.0.0.1:5060")

	if err := transport.SendMessage([]byte("test message"), addr); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Expected ErrNotRunning, got %v", err)
	}
}

func TestUDPTransport_SendMessageInvalidAddress(t *testing.T) {
	transport := startTransport(t, nil)

	// Use TCP address instead of UDP
	addr, _ := net.ResolveTCPAddr("tcp", "127.0.0.1:5060")
	if err := transport.SendMessage([]byte("test message"), addr); err == nil {
		t.Error("Expected error when sending message with invalid address type")
	}
}

func TestUDPTransport_ReceiveMessage(t *testing.T) {
	transport := startTransport(t, nil)
	handler := &mockMessageHandler{}
	transport.RegisterHandler(handler)

	client := dialTransport(t, transport)
	testMessage := []byte("REGISTER sip:test@example.com SIP/2.0\r\n\r\n")
	if _, err := client.Write(testMessage); err != nil {
		t.Fatalf("Failed to send test message: %v", err)
	}

	waitFor(t, "datagram", func() bool { return len(handler.getMessages()) == 1 })

	msg := handler.getMessages()[0]
	if string(msg.data) != string(testMessage) {
		t.Errorf("Expected message %q, got %q", testMessage, msg.data)
	}
	if msg.addr == nil || msg.addr.Port != client.LocalAddr().(*net.UDPAddr).Port {
		t.Errorf("Expected sender address %v, got %v", client.LocalAddr(), msg.addr)
	}
}

func TestUDPTransport_HandlesDatagramsSequentially(t *testing.T) {
	transport := startTransport(t, nil)

	var active, maxActive int32
	var order []string
	var mu sync.Mutex

	transport.RegisterHandler(MessageHandlerFunc(func(data []byte, sender Sender, addr *net.UDPAddr) error {
		n := atomic.AddInt32(&active, 1)
		defer atomic.AddInt32(&active, -1)
		for {
			old := atomic.LoadInt32(&maxActive)
			if n <= old || atomic.CompareAndSwapInt32(&maxActive, old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		order = append(order, string(data))
		mu.Unlock()
		return nil
	}))

	client := dialTransport(t, transport)
	var want []string
	for i := 0; i < 10; i++ {
		msg := fmt.Sprintf("OPTIONS sip:%d@example.com SIP/2.0", i)
		want = append(want, msg)
		if _, err := client.Write([]byte(msg)); err != nil {
			t.Fatalf("Failed to send: %v", err)
		}
	}

	waitFor(t, "all datagrams", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == len(want)
	})

	if got := atomic.LoadInt32(&maxActive); got != 1 {
		t.Errorf("Expected at most one handler at a time, saw %d", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff(want, order); diff != "" {
		t.Errorf("Datagrams handled out of order (-want +got):\n%s", diff)
	}
}

func TestUDPTransport_HandlerErrorKeepsWorker(t *testing.T) {
	rec := logging.NewRecorder()
	transport := startTransport(t, rec)

	var calls int32
	transport.RegisterHandler(MessageHandlerFunc(func(data []byte, sender Sender, addr *net.UDPAddr) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			return errors.New("bad datagram")
		}
		if string(data) == "panic" {
			panic("boom")
		}
		return nil
	}))

	client := dialTransport(t, transport)
	for _, msg := range []string{"first", "panic", "third"} {
		if _, err := client.Write([]byte(msg)); err != nil {
			t.Fatalf("Failed to send: %v", err)
		}
	}

	waitFor(t, "worker to survive", func() bool { return atomic.LoadInt32(&calls) == 3 })

	if got := rec.Messages(logging.WarnLevel); len(got) != 1 || got[0] != "failed to handle datagram" {
		t.Errorf("Expected one handler warning, got %v", got)
	}
	if got := rec.Messages(logging.ErrorLevel); len(got) != 1 {
		t.Errorf("Expected one panic error, got %v", got)
	}
}

func TestUDPTransport_ReplyFromHandler(t *testing.T) {
	transport := startTransport(t, nil)
	transport.RegisterHandler(MessageHandlerFunc(func(data []byte, sender Sender, addr *net.UDPAddr) error {
		return sender.SendMessage(append([]byte("echo "), data...), addr)
	}))

	client := dialTransport(t, transport)
	if _, err := client.Write([]byte("ping")); err != nil {
		t.Fatalf("Failed to send: %v", err)
	}

	buffer := make([]byte, 64)
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := client.Read(buffer)
	if err != nil {
		t.Fatalf("Failed to read reply: %v", err)
	}
	if got := string(buffer[:n]); got != "echo ping" {
		t.Errorf("Expected reply %q, got %q", "echo ping", got)
	}
}

func TestUDPTransport_StopWaitsForInFlightDatagram(t *testing.T) {
	transport := NewUDPTransport(nil)
	if err := transport.Start("127.0.0.1:0"); err != nil {
		t.Fatalf("Failed to start UDP transport: %v", err)
	}

	started := make(chan struct{})
	release := make(chan struct{})
	var sendErr error
	transport.RegisterHandler(MessageHandlerFunc(func(data []byte, sender Sender, addr *net.UDPAddr) error {
		close(started)
		<-release
		sendErr = sender.SendMessage([]byte("late reply"), addr)
		return nil
	}))

	client := dialTransport(t, transport)
	if _, err := client.Write([]byte("slow")); err != nil {
		t.Fatalf("Failed to send: %v", err)
	}
	<-started

	stopped := make(chan error)
	go func() { stopped <- transport.Stop() }()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a datagram was still being handled")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	if err := <-stopped; err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if sendErr != nil {
		t.Errorf("Reply from the in-flight handler should still be sent, got %v", sendErr)
	}
}

func TestUDPTransport_LocalAddr(t *testing.T) {
	transport := NewUDPTransport(nil)

	if addr := transport.LocalAddr(); addr != nil {
		t.Error("Expected nil address when transport not running")
	}

	if err := transport.Start("127.0.0.1:0"); err != nil {
		t.Fatalf("Failed to start UDP transport: %v", err)
	}
	defer transport.Stop()

	udpAddr, ok := transport.LocalAddr().(*net.UDPAddr)
	if !ok {
		t.Fatalf("Expected UDP address, got %T", transport.LocalAddr())
	}
	if udpAddr.Port == 0 {
		t.Error("Expected non-zero port")
	}
}
