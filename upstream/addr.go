package upstream

import (
	"fmt"
	"net"
	"sort"
)

// Family orders the address kinds an Upstream can resolve to. Sort order
// is UNIX > IPv4 > IPv6, matching spec's family-preference rule: Family
// values are declared so that a plain descending sort by Family produces
// that order.
type Family int

const (
	FamilyIPv6 Family = iota
	FamilyIPv4
	FamilyUnix
)

// Addr is a single resolved endpoint belonging to an Upstream, along with
// its own failure count. Addrs are compared for DNS-merge purposes by IP
// (or path) only, ignoring port, per the "no_port" comparison the refresh
// merge relies on.
type Addr struct {
	IP     net.IP // nil for a UNIX address
	Path   string // set only for FamilyUnix
	Port   uint16
	Family Family
	Errors int
}

// unixAddr builds a UNIX-socket Addr.
func unixAddr(path string) Addr {
	return Addr{Path: path, Family: FamilyUnix}
}

// ipAddr builds an IPv4/IPv6 Addr, inferring Family from the IP's shape.
func ipAddr(ip net.IP, port uint16) Addr {
	fam := FamilyIPv6
	if ip.To4() != nil {
		fam = FamilyIPv4
	}
	return Addr{IP: ip, Port: port, Family: fam}
}

// sameHost reports whether two addresses refer to the same numeric
// endpoint, ignoring port — the comparison spec's DNS merge step uses to
// decide whether to carry over a prior error count.
func (a Addr) sameHost(b Addr) bool {
	if a.Family == FamilyUnix || b.Family == FamilyUnix {
		return a.Family == b.Family && a.Path == b.Path
	}
	return a.IP.Equal(b.IP)
}

// String renders addr as host:port or a UNIX path, for logs and the CLI.
func (a Addr) String() string {
	if a.Family == FamilyUnix {
		return "unix:" + a.Path
	}
	return net.JoinHostPort(a.IP.String(), fmt.Sprintf("%d", a.Port))
}

// sortAddrs orders addrs by family preference (UNIX, then IPv4, then
// IPv6), stably, so that repeated sorts after a DNS merge never reorder
// addresses within a family without cause.
func sortAddrs(addrs []Addr) {
	sort.SliceStable(addrs, func(i, j int) bool {
		return addrs[i].Family > addrs[j].Family
	})
}
