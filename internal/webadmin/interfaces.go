package webadmin

import "net"

// WebAdminServer defines the interface for the read-only web administration interface
type WebAdminServer interface {
	Start(port int) error
	Stop() error
	Addr() net.Addr
}

// HTTP endpoints:
// GET /registrations - List every registrar entry, stale ones included
// GET /registrations/{aor} - Get one registrar entry
// GET /healthz - Liveness probe
