package proxy

import (
	"net"

	"github.com/zurustar/sipproxy/internal/transport"
)

// ProxyEngine handles one received datagram end to end
type ProxyEngine interface {
	HandleMessage(data []byte, sender transport.Sender, addr *net.UDPAddr) error
}

// Config holds the header values the proxy stamps on forwarded requests
type Config struct {
	// TopVia is the proxy's own Via line without a branch, e.g. "Via: SIP/2.0/UDP 10.0.0.1:5060"
	TopVia string
	// RecordRoute is the full Record-Route line inserted on forwarded requests
	RecordRoute string
	// Language selects the reason phrase table for locally built responses
	Language string
}
