package parser

import (
	"regexp"
	"strconv"
	"strings"
)

// HeaderName pairs the long and compact spelling of a header.
// Both forms are matched case-sensitively at the start of a line.
type HeaderName struct {
	Long    string
	Compact string
}

// Header names recognised by the proxy
var (
	HeaderFrom          = HeaderName{Long: "From:", Compact: "f:"}
	HeaderTo            = HeaderName{Long: "To:", Compact: "t:"}
	HeaderContact       = HeaderName{Long: "Contact:", Compact: "m:"}
	HeaderVia           = HeaderName{Long: "Via:", Compact: "v:"}
	HeaderRoute         = HeaderName{Long: "Route:"}
	HeaderContentLength = HeaderName{Long: "Content-Length:", Compact: "l:"}
	HeaderExpires       = HeaderName{Long: "Expires: "}
)

// Match reports whether line carries this header in either form
func (h HeaderName) Match(line string) bool {
	if strings.HasPrefix(line, h.Long) {
		return true
	}
	return h.Compact != "" && strings.HasPrefix(line, h.Compact)
}

// ZeroLength returns the header line with a zero value, keeping the form of line
func (h HeaderName) ZeroLength(line string) string {
	if h.Compact != "" && strings.HasPrefix(line, h.Compact) {
		return h.Compact + " 0"
	}
	return h.Long + " 0"
}

var (
	userURIPattern        = regexp.MustCompile(`sip:([^@]*)@([^;>$]*)`)
	addrURIPattern        = regexp.MustCompile(`sip:([^ ;>$]*)`)
	branchPattern         = regexp.MustCompile(`;branch=([^;]*)`)
	bareRportPattern      = regexp.MustCompile(`;rport$|;rport;`)
	contactExpiresPattern = regexp.MustCompile(`expires=([^;$]*)`)
)

// ExtractAOR returns the user@host address-of-record of the first sip:user@host URI in line.
// A URI without a user part yields no AOR.
func ExtractAOR(line string) (string, bool) {
	match := userURIPattern.FindStringSubmatch(line)
	if match == nil {
		return "", false
	}
	return match[1] + "@" + match[2], true
}

// ExtractContactAddress returns the host[:port] of a Contact URI, falling back to the
// whole address when the URI has no user part.
func ExtractContactAddress(line string) (string, bool) {
	if match := userURIPattern.FindStringSubmatch(line); match != nil {
		return match[2], true
	}
	if match := addrURIPattern.FindStringSubmatch(line); match != nil {
		return match[1], true
	}
	return "", false
}

// ExtractBranch returns the branch parameter of a Via line
func ExtractBranch(line string) (string, bool) {
	match := branchPattern.FindStringSubmatch(line)
	if match == nil {
		return "", false
	}
	return match[1], true
}

// HasBareRport reports whether a Via line carries an rport parameter without a value
func HasBareRport(line string) bool {
	return bareRportPattern.MatchString(line)
}

// HasTag reports whether a From/To line already carries a tag parameter
func HasTag(line string) bool {
	return strings.Contains(line, ";tag")
}

// firstAOR returns the AOR of the first line carrying header h.
// Only that line is considered: a later matching line never substitutes for it.
func (m *SIPMessage) firstAOR(h HeaderName) string {
	for _, line := range m.Headers() {
		if h.Match(line) {
			aor, _ := ExtractAOR(line)
			return aor
		}
	}
	return ""
}

// GetOrigin returns the From AOR, or "" when absent or host-only
func (m *SIPMessage) GetOrigin() string {
	return m.firstAOR(HeaderFrom)
}

// GetDestination returns the To AOR, or "" when absent or host-only
func (m *SIPMessage) GetDestination() string {
	return m.firstAOR(HeaderTo)
}

// Registration holds the fields a REGISTER request contributes to the registrar
type Registration struct {
	AOR            string
	Contact        string
	ContactExpires string
	HeaderExpires  string
}

// GetRegistration scans every header line of a REGISTER request.
// When a header repeats, the last usable value wins.
func (m *SIPMessage) GetRegistration() Registration {
	var reg Registration
	for _, line := range m.Headers() {
		if HeaderTo.Match(line) {
			if aor, ok := ExtractAOR(line); ok {
				reg.AOR = aor
			}
		}
		if HeaderContact.Match(line) {
			if contact, ok := ExtractContactAddress(line); ok {
				reg.Contact = contact
			}
			if match := contactExpiresPattern.FindStringSubmatch(line); match != nil {
				reg.ContactExpires = match[1]
			}
		}
		if HeaderExpires.Match(line) {
			reg.HeaderExpires = strings.TrimPrefix(line, HeaderExpires.Long)
		}
	}
	return reg
}

// Expires returns the effective registration lifetime in seconds.
// The Contact expires parameter takes priority over the Expires header;
// a value that is not an integer counts as absent. Absent everywhere means 0.
func (r Registration) Expires() int {
	for _, raw := range []string{r.ContactExpires, r.HeaderExpires} {
		if raw == "" {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
			return n
		}
	}
	return 0
}
