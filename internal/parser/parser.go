package parser

import (
	"errors"
	"strings"
	"unicode/utf8"

	"braces.dev/errtrace"
)

var (
	// ErrEmptyMessage is returned for zero-length datagrams
	ErrEmptyMessage = errors.New("empty message data")
	// ErrUndecodable is returned when the datagram is not valid UTF-8 text
	ErrUndecodable = errors.New("message is not valid UTF-8")
)

// Parser implements the MessageParser interface
type Parser struct{}

// NewParser creates a new SIP message parser
func NewParser() *Parser {
	return &Parser{}
}

// Parse splits a datagram into CRLF-delimited lines.
//
// Everything up to the first empty line becomes Lines (the empty line included),
// the rest is kept verbatim as Body. A datagram without an empty line yields only
// Lines; a single trailing CRLF is not turned into an empty line so that
// Serialize reproduces the input.
func (p *Parser) Parse(data []byte) (*SIPMessage, error) {
	if len(data) == 0 {
		return nil, errtrace.Wrap(ErrEmptyMessage)
	}
	if !utf8.Valid(data) {
		return nil, errtrace.Wrap(ErrUndecodable)
	}

	text := string(data)
	if idx := strings.Index(text, CRLF+CRLF); idx >= 0 {
		lines := strings.Split(text[:idx], CRLF)
		return &SIPMessage{
			Lines: append(lines, ""),
			Body:  text[idx+2*len(CRLF):],
		}, nil
	}

	lines := strings.Split(strings.TrimSuffix(text, CRLF), CRLF)
	return &SIPMessage{Lines: lines}, nil
}

// Serialize joins the lines with CRLF, closes the last line and appends the body
func (p *Parser) Serialize(msg *SIPMessage) []byte {
	return []byte(msg.String())
}
