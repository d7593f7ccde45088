package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func crlf(lines ...string) string {
	return strings.Join(lines, CRLF)
}

func TestParseINVITERequest(t *testing.T) {
	raw := crlf(
		"INVITE sip:bob@example.com SIP/2.0",
		"Via: SIP/2.0/UDP 192.168.1.1:5060;branch=z9hG4bK776asdhds",
		"To: Bob <sip:bob@example.com>",
		"From: Alice <sip:alice@example.com>;tag=1928301774",
		"Content-Length: 4",
		"",
		"v=0\r\n",
	)

	msg, err := NewParser().Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Failed to parse INVITE request: %v", err)
	}

	if !msg.IsRequest() || msg.IsResponse() {
		t.Error("Message should be a request")
	}
	if msg.GetMethod() != MethodINVITE {
		t.Errorf("Expected method %s, got %s", MethodINVITE, msg.GetMethod())
	}
	if msg.GetRequestURI() != "bob@example.com" {
		t.Errorf("Expected request URI bob@example.com, got %s", msg.GetRequestURI())
	}

	wantLines := []string{
		"INVITE sip:bob@example.com SIP/2.0",
		"Via: SIP/2.0/UDP 192.168.1.1:5060;branch=z9hG4bK776asdhds",
		"To: Bob <sip:bob@example.com>",
		"From: Alice <sip:alice@example.com>;tag=1928301774",
		"Content-Length: 4",
		"",
	}
	if diff := cmp.Diff(wantLines, msg.Lines); diff != "" {
		t.Errorf("Lines mismatch (-want +got):\n%s", diff)
	}
	if msg.Body != "v=0\r\n" {
		t.Errorf("Expected body %q, got %q", "v=0\r\n", msg.Body)
	}
	if got := len(msg.Headers()); got != 4 {
		t.Errorf("Expected 4 header lines, got %d", got)
	}
}

func TestParseStatusLine(t *testing.T) {
	msg, err := NewParser().Parse([]byte(crlf("SIP/2.0 180 Ringing", "Via: SIP/2.0/UDP a;branch=1", "", "")))
	if err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if !msg.IsResponse() || msg.IsRequest() {
		t.Error("Message should be a response")
	}
	if msg.GetStatusCode() != 180 {
		t.Errorf("Expected status 180, got %d", msg.GetStatusCode())
	}
	if msg.GetMethod() != "" {
		t.Errorf("Expected no method on a response, got %q", msg.GetMethod())
	}
}

func TestParseErrors(t *testing.T) {
	p := NewParser()

	if _, err := p.Parse(nil); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("Expected ErrEmptyMessage, got %v", err)
	}
	if _, err := p.Parse([]byte{'R', 'E', 0xff, 0xfe, '\r', '\n'}); !errors.Is(err, ErrUndecodable) {
		t.Errorf("Expected ErrUndecodable, got %v", err)
	}
}

func TestParseSerializeRoundTrip(t *testing.T) {
	p := NewParser()

	tests := []struct {
		name string
		raw  string
	}{
		{"request without body", crlf("OPTIONS sip:a@b SIP/2.0", "Via: SIP/2.0/UDP h;branch=x", "Content-Length: 0", "", "")},
		{"request with body", crlf("INVITE sip:a@b SIP/2.0", "l: 9", "", "v=0", "s=-", "")},
		{"response", crlf("SIP/2.0 200 OK", "v: SIP/2.0/UDP h;branch=x", "", "")},
		{"headers without blank line", crlf("REGISTER sip:b SIP/2.0", "t: <sip:a@b>", "")},
		{"body without trailing crlf", crlf("MESSAGE sip:a@b SIP/2.0", "", "hello")},
		{"keep-alive", "\r\n\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := p.Parse([]byte(tt.raw))
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if got := string(p.Serialize(msg)); got != tt.raw {
				t.Errorf("Round trip mismatch:\nwant %q\ngot  %q", tt.raw, got)
			}
		})
	}
}

func TestSIPMessage_NotSIP(t *testing.T) {
	tests := []string{
		"GET / HTTP/1.1",
		"INVITE bob@example.com SIP/2.0",
		"hello",
		"",
	}
	for _, line := range tests {
		msg := NewSIPMessage([]string{line})
		if msg.IsRequest() || msg.IsResponse() {
			t.Errorf("%q should be neither a request nor a response", line)
		}
	}
}

func TestHexDump(t *testing.T) {
	rows := HexDump([]byte("ab\x00\r\nXYZ0123456789-+tail"), " ", 16)

	want := []string{
		"61 62 00 0d 0a 58 59 5a 30 31 32 33 34 35 36 37 ab...XYZ01234567",
		"38 39 2d 2b 74 61 69 6c 00 00 00 00 00 00 00 00 89..tail........",
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("HexDump mismatch (-want +got):\n%s", diff)
	}

	if rows := HexDump(nil, " ", 16); len(rows) != 0 {
		t.Errorf("Expected no rows for empty input, got %v", rows)
	}
}
