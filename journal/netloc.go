package journal

import (
	"net"
	"strings"
)

// NetlocTable maps hosting domains whose subdomains all belong to one
// service to the canonical name of that service. Keys are lower case.
type NetlocTable map[string]string

// DefaultNetlocs collapses the project subdomains of Google Code.
var DefaultNetlocs = NetlocTable{
	"googlecode.com": "googlecode.com",
}

// NewNetlocTable returns a table holding the default entries plus extra.
func NewNetlocTable(extra map[string]string) NetlocTable {
	t := make(NetlocTable, len(DefaultNetlocs)+len(extra))
	for k, v := range DefaultNetlocs {
		t[k] = v
	}
	for k, v := range extra {
		t[strings.ToLower(k)] = v
	}
	return t
}

// Normalize returns the normalized form of a network location (a host with
// an optional port). A host equal to, or a subdomain of, a table entry
// collapses to the entry's canonical name and loses its port. Table entries
// match regardless of case. Other locations are returned unchanged, so
// mixed-case hosts keep their case.
func (t NetlocTable) Normalize(netloc string) string {
	host := netloc
	if h, _, err := net.SplitHostPort(netloc); err == nil {
		host = h
	}
	host = strings.ToLower(host)
	// The most specific suffix wins.
	for d := host; d != ""; {
		if canonical, ok := t[d]; ok {
			return canonical
		}
		i := strings.IndexByte(d, '.')
		if i < 0 {
			break
		}
		d = d[i+1:]
	}
	return netloc
}
