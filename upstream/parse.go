package upstream

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ParseMode selects the grammar AddUpstream applies to a single spec
// string.
type ParseMode int

const (
	// ParseModeDefault accepts host[:port][:priority], resolving host
	// synchronously (A/AAAA or hosts-file lookup) if it isn't itself a
	// literal address.
	ParseModeDefault ParseMode = iota
	// ParseModeNameserver accepts a literal IP[:port] only.
	ParseModeNameserver
)

// policyPrefixes maps a parse_line policy prefix to the Policy it
// selects, in the order spec's grammar lists them.
var policyPrefixes = []struct {
	prefix string
	policy Policy
}{
	{"random:", PolicyRandom},
	{"master-slave:", PolicyMasterSlave},
	{"round-robin:", PolicyRoundRobin},
	{"hash:", PolicyHash},
	{"sequential:", PolicySequential},
}

// separators is every byte parse_line treats as an entry delimiter.
const separators = ";, \t\n\r"

// ParseLine recognizes an optional leading policy prefix, sets the list's
// rotation policy if one is found, and feeds every non-empty
// separator-delimited remainder to AddUpstream. It returns true if at
// least one upstream was accepted (partial success still counts).
func ParseLine(list *List, s string, defaultPort uint16, data any) bool {
	for _, p := range policyPrefixes {
		if strings.HasPrefix(s, p.prefix) {
			list.SetRotation(p.policy)
			s = s[len(p.prefix):]
			break
		}
	}

	accepted := false
	for _, entry := range strings.FieldsFunc(s, func(r rune) bool {
		return strings.ContainsRune(separators, r)
	}) {
		ok, err := AddUpstream(list, entry, defaultPort, ParseModeDefault, data)
		if err != nil {
			Log().Warn("failed to add upstream", zapErr(err))
		}
		if ok {
			accepted = true
		}
	}
	return accepted
}

// ParseLineLen behaves like ParseLine but only considers the first n
// bytes of s, matching the C API's length-bounded string variant.
func ParseLineLen(list *List, s string, n int, defaultPort uint16, data any) bool {
	if n < len(s) {
		s = s[:n]
	}
	return ParseLine(list, s, defaultPort, data)
}

// FromYAML feeds every string found in value (a bare string, or a
// sequence of strings, as produced by unmarshaling a YAML node into
// `any`) to ParseLine: a structured configuration value containing one
// or many upstream specification strings.
func FromYAML(list *List, value any, defaultPort uint16, data any) bool {
	accepted := false
	switch v := value.(type) {
	case string:
		accepted = ParseLine(list, v, defaultPort, data) || accepted
	case []string:
		for _, s := range v {
			accepted = ParseLine(list, s, defaultPort, data) || accepted
		}
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				accepted = ParseLine(list, s, defaultPort, data) || accepted
			}
		}
	}
	return accepted
}

// AddUpstream parses a single "host[:port][:priority]" (or, in
// ParseModeNameserver, literal-IP[:port]) spec string, resolves it to one
// or more addresses, and — if at least one address resolved — registers a
// new Upstream on list.
func AddUpstream(list *List, spec string, defaultPort uint16, mode ParseMode, data any) (bool, error) {
	if strings.HasPrefix(spec, "unix:") {
		u := newUpstream(spec, 0)
		u.flags |= flagNoResolve
		u.addrs = []Addr{unixAddr(spec[len("unix:"):])}
		u.data = data

		list.mu.Lock()
		list.addUpstreamLocked(u)
		list.mu.Unlock()
		return true, nil
	}

	host, portStr, priorityStr := splitHostPortPriority(spec)

	port := defaultPort
	if portStr != "" {
		p, err := strconv.ParseUint(portStr, 10, 16)
		if err != nil {
			return false, fmt.Errorf("upstream: invalid port in %q: %w", spec, err)
		}
		port = uint16(p)
	}

	weight := 0
	if priorityStr != "" {
		p, err := strconv.Atoi(priorityStr)
		if err != nil {
			return false, fmt.Errorf("upstream: invalid priority in %q: %w", spec, err)
		}
		weight = p
	}

	var addrs []Addr
	literal := net.ParseIP(host) != nil

	switch mode {
	case ParseModeNameserver:
		ip := net.ParseIP(host)
		if ip == nil {
			return false, fmt.Errorf("upstream: %q is not a literal address", host)
		}
		addrs = []Addr{ipAddr(ip, port)}

	default:
		if literal {
			addrs = []Addr{ipAddr(net.ParseIP(host), port)}
		} else {
			ips, err := net.LookupIP(host)
			if err != nil || len(ips) == 0 {
				return false, fmt.Errorf("upstream: resolving %q: %w", host, err)
			}
			for _, ip := range ips {
				addrs = append(addrs, ipAddr(ip, port))
			}
		}
	}

	if len(addrs) == 0 {
		return false, fmt.Errorf("upstream: %q yielded no addresses", spec)
	}

	sortAddrs(addrs)

	u := newUpstream(spec, weight)
	u.addrs = addrs
	u.data = data
	if literal {
		u.flags |= flagNoResolve
	}

	list.mu.Lock()
	list.addUpstreamLocked(u)
	list.mu.Unlock()

	return true, nil
}

// splitHostPortPriority splits a "host[:port][:priority]" spec, handling
// bracketed IPv6 literals ("[::1]:53:5") the same way net.SplitHostPort
// does, but additionally accepting the trailing ":priority" field.
func splitHostPortPriority(spec string) (host, port, priority string) {
	if strings.HasPrefix(spec, "[") {
		end := strings.Index(spec, "]")
		if end < 0 {
			return spec, "", ""
		}
		host = spec[1:end]
		rest := strings.TrimPrefix(spec[end+1:], ":")
		if rest == "" {
			return host, "", ""
		}
		parts := strings.SplitN(rest, ":", 2)
		port = parts[0]
		if len(parts) > 1 {
			priority = parts[1]
		}
		return host, port, priority
	}

	parts := strings.Split(spec, ":")
	switch len(parts) {
	case 1:
		return parts[0], "", ""
	case 2:
		return parts[0], parts[1], ""
	case 3:
		return parts[0], parts[1], parts[2]
	default:
		// More than two colons with no brackets: an unbracketed IPv6
		// literal, which can't carry a port/priority suffix in this
		// grammar.
		return spec, "", ""
	}
}
