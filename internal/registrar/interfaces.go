package registrar

import (
	"net"

	"github.com/zurustar/sipproxy/internal/transport"
)

// Entry is the current location of one address-of-record
type Entry struct {
	AOR string
	// Contact is the host[:port] taken from the Contact URI. It is informational:
	// datagrams are delivered to Source.
	Contact string
	// Transport is the socket used to reach the registrant
	Transport transport.Sender
	// Source is the address the REGISTER request arrived from
	Source *net.UDPAddr
	// Expiry is the Unix time after which the entry is stale
	Expiry int64
}

// Result tells what a Register call did to the store
type Result int

const (
	// Registered means the entry was created or replaced
	Registered Result = iota
	// Unregistered means an existing entry was removed
	Unregistered
)

// String returns the string representation of the result
func (r Result) String() string {
	switch r {
	case Registered:
		return "registered"
	case Unregistered:
		return "unregistered"
	default:
		return "unknown"
	}
}

// Registrar defines the interface for the location service
type Registrar interface {
	Register(aor, contact string, tr transport.Sender, source *net.UDPAddr, expires int) Result
	LookupValid(aor string) (*Entry, bool)
	LookupRaw(aor string) (*Entry, bool)
	Unregister(aor string) bool
	// Dump writes the store content to the debug log
	Dump()
}

// Viewer gives read-only access to the store without purging stale entries
type Viewer interface {
	Snapshot() []Entry
	Peek(aor string) (Entry, bool)
	Now() int64
}
