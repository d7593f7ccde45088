package parser

import (
	"fmt"
	"net"
	"strings"
)

// branchSuffix is appended to the client's branch to form the proxy's own branch
const branchSuffix = "m"

// AnnotateVia records the address a message was actually received from on a Via line.
// A bare rport parameter is filled in with the observed port; otherwise only
// received= is appended.
func AnnotateVia(line string, client *net.UDPAddr) string {
	if HasBareRport(line) {
		return strings.ReplaceAll(line, "rport", fmt.Sprintf("received=%s;rport=%d", client.IP, client.Port))
	}
	return fmt.Sprintf("%s;received=%s", line, client.IP)
}

// PushTopVia inserts the proxy's Via above every Via line that carries a branch and
// annotates the client's Via lines with its address.
func PushTopVia(lines []string, topVia string, client *net.UDPAddr) []string {
	out := make([]string, 0, len(lines)+1)
	for _, line := range lines {
		if !HeaderVia.Match(line) {
			out = append(out, line)
			continue
		}
		if branch, ok := ExtractBranch(line); ok {
			out = append(out, topVia+";branch="+branch+branchSuffix)
		}
		out = append(out, AnnotateVia(line, client))
	}
	return out
}

// PopTopVia drops every Via line that starts with the proxy's own Via
func PopTopVia(lines []string, topVia string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if HeaderVia.Match(line) && strings.HasPrefix(line, topVia) {
			continue
		}
		out = append(out, line)
	}
	return out
}

// StripRoute removes every Route line
func StripRoute(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if HeaderRoute.Match(line) {
			continue
		}
		out = append(out, line)
	}
	return out
}

// InsertRecordRoute places recordRoute directly after the start line
func InsertRecordRoute(lines []string, recordRoute string) []string {
	if len(lines) == 0 {
		return []string{recordRoute}
	}
	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[0], recordRoute)
	return append(out, lines[1:]...)
}

// BuildResponse turns a request into a locally generated response with the given
// status text (for example "200 OK").
//
// Header lines are copied up to the blank line; the body is dropped. A To line
// without a tag gets a fixed tag, Via lines are annotated like PushTopVia does
// and Content-Length is forced to zero.
func BuildResponse(req *SIPMessage, status string, client *net.UDPAddr) *SIPMessage {
	lines := make([]string, 0, len(req.Lines)+1)
	lines = append(lines, SIPVersion+" "+status)

	var headers []string
	if len(req.Lines) > 1 {
		headers = req.Lines[1:]
	}

	terminated := false
	for _, line := range headers {
		switch {
		case HeaderTo.Match(line):
			if !HasTag(line) {
				line += ";tag=" + LocalTag
			}
		case HeaderVia.Match(line):
			line = AnnotateVia(line, client)
		case HeaderContentLength.Match(line):
			line = HeaderContentLength.ZeroLength(line)
		}
		lines = append(lines, line)
		if line == "" {
			terminated = true
			break
		}
	}
	if !terminated {
		lines = append(lines, "")
	}
	return NewSIPMessage(lines)
}

// LocalTag is the To tag put on every response the proxy builds itself.
// It is constant, so it does not identify dialogs the way RFC 3261 expects.
const LocalTag = "123456"
