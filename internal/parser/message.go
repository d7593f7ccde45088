package parser

import (
	"regexp"
	"strconv"
	"strings"
)

// SIP Methods
const (
	MethodINVITE    = "INVITE"
	MethodACK       = "ACK"
	MethodBYE       = "BYE"
	MethodCANCEL    = "CANCEL"
	MethodREGISTER  = "REGISTER"
	MethodOPTIONS   = "OPTIONS"
	MethodINFO      = "INFO"
	MethodPRACK     = "PRACK"
	MethodUPDATE    = "UPDATE"
	MethodSUBSCRIBE = "SUBSCRIBE"
	MethodPUBLISH   = "PUBLISH"
	MethodNOTIFY    = "NOTIFY"
	MethodREFER     = "REFER"
	MethodMESSAGE   = "MESSAGE"
)

// SIP Response Codes answered by the proxy itself
const (
	StatusOK                     = 200
	StatusBadRequest             = 400
	StatusNotAcceptable          = 406
	StatusTemporarilyUnavailable = 480
	StatusServerInternalError    = 500
)

// SIP Version
const SIPVersion = "SIP/2.0"

// CRLF terminates every line of a SIP message
const CRLF = "\r\n"

var (
	requestLinePattern = regexp.MustCompile(`^([^ ]*) sip:([^ ]*) SIP/2.0`)
	statusLinePattern  = regexp.MustCompile(`^SIP/2.0 ([^ ]*)`)
)

// SIPMessage is a SIP message kept as text lines.
//
// Lines holds the start line, the header lines and, when the message has one,
// the empty line closing the header section. Body is everything after it.
// Header lines are never normalized: long and compact names are kept as received.
type SIPMessage struct {
	Lines []string
	Body  string
}

// NewSIPMessage creates a message from lines with an empty body
func NewSIPMessage(lines []string) *SIPMessage {
	return &SIPMessage{Lines: lines}
}

// StartLine returns the request-line or status-line
func (m *SIPMessage) StartLine() string {
	if len(m.Lines) == 0 {
		return ""
	}
	return m.Lines[0]
}

// IsRequest returns true if the start line is a request-line with a sip: URI
func (m *SIPMessage) IsRequest() bool {
	return requestLinePattern.MatchString(m.StartLine())
}

// IsResponse returns true if the start line is a status-line
func (m *SIPMessage) IsResponse() bool {
	return statusLinePattern.MatchString(m.StartLine())
}

// GetMethod returns the method token of a request-line
func (m *SIPMessage) GetMethod() string {
	if match := requestLinePattern.FindStringSubmatch(m.StartLine()); match != nil {
		return match[1]
	}
	return ""
}

// GetRequestURI returns the request URI without the sip: scheme
func (m *SIPMessage) GetRequestURI() string {
	if match := requestLinePattern.FindStringSubmatch(m.StartLine()); match != nil {
		return match[2]
	}
	return ""
}

// GetStatusCode returns the numeric code of a status-line, or 0
func (m *SIPMessage) GetStatusCode() int {
	match := statusLinePattern.FindStringSubmatch(m.StartLine())
	if match == nil {
		return 0
	}
	code, err := strconv.Atoi(match[1])
	if err != nil {
		return 0
	}
	return code
}

// Headers returns the header lines, excluding the start line and the blank terminator
func (m *SIPMessage) Headers() []string {
	if len(m.Lines) < 2 {
		return nil
	}
	headers := m.Lines[1:]
	for i, line := range headers {
		if line == "" {
			return headers[:i]
		}
	}
	return headers
}

// WithLines returns a copy of the message carrying different lines and the same body
func (m *SIPMessage) WithLines(lines []string) *SIPMessage {
	return &SIPMessage{Lines: lines, Body: m.Body}
}

// Clone creates a deep copy of the SIP message
func (m *SIPMessage) Clone() *SIPMessage {
	lines := make([]string, len(m.Lines))
	copy(lines, m.Lines)
	return &SIPMessage{Lines: lines, Body: m.Body}
}

// String returns the wire form of the message
func (m *SIPMessage) String() string {
	return strings.Join(m.Lines, CRLF) + CRLF + m.Body
}

// IsValidMethod checks if a method is one the proxy knows about
func IsValidMethod(method string) bool {
	switch method {
	case MethodINVITE, MethodACK, MethodBYE, MethodCANCEL, MethodREGISTER,
		MethodOPTIONS, MethodINFO, MethodPRACK, MethodUPDATE, MethodSUBSCRIBE,
		MethodPUBLISH, MethodNOTIFY, MethodREFER, MethodMESSAGE:
		return true
	default:
		return false
	}
}
