package upstream

import (
	"net"

	"github.com/miekg/dns"
)

var dnsQuestionTypes = []uint16{dns.TypeA, dns.TypeAAAA}

// launchResolve schedules concurrent A and AAAA lookups for u through the
// list's context resolver. Each scheduled lookup increments u.dnsRequests;
// the merge happens once both have replied (see onDNSReply).
func (l *List) launchResolve(u *Upstream) {
	l.mu.Lock()
	if l.ctx == nil || l.ctx.resolver == nil {
		l.mu.Unlock()
		return
	}
	resolver := l.ctx.resolver
	lim := l.effectiveLimits()
	name := u.name
	u.dnsRequests += 2
	l.mu.Unlock()

	for _, qtype := range dnsQuestionTypes {
		qtype := qtype
		resolver.LookupAsync(name, qtype, lim.DNSTimeout, lim.DNSRetransmits, func(addrs []net.IP, err error) {
			l.onDNSReply(u, addrs, err)
		})
	}
}

// onDNSReply is the DNS reply callback described in spec §4.5: on success
// it stages returned addresses into u.newAddrs; it always decrements
// dnsRequests and, once that reaches zero, merges the staged addresses
// into u.addrs.
func (l *List) onDNSReply(u *Upstream, addrs []net.IP, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if u.list != l {
		// Upstream was detached (its list was closed) while this lookup
		// was in flight; tolerate that and suppress the merge entirely.
		return
	}

	if err == nil {
		for _, ip := range addrs {
			u.newAddrs = append(u.newAddrs, ipAddr(ip, 0))
		}
	}

	u.dnsRequests--
	if u.dnsRequests == 0 {
		l.mergeAddrs(u)
	}
}

// mergeAddrs folds u.newAddrs into u.addrs. If DNS returned nothing usable
// (errors on both queries, or successful-but-empty answers), u.addrs is
// left untouched — stale addresses beat no addresses.
func (l *List) mergeAddrs(u *Upstream) {
	if len(u.newAddrs) == 0 {
		u.newAddrs = nil
		return
	}

	var port uint16
	if len(u.addrs) > 0 {
		port = u.addrs[0].Port
	}

	amnesty := l.rng.Float64() < 0.10

	merged := make([]Addr, 0, len(u.newAddrs))
	for _, na := range u.newAddrs {
		na.Port = port
		na.Errors = 0
		if !amnesty {
			for _, old := range u.addrs {
				if old.sameHost(na) {
					na.Errors = old.Errors
					break
				}
			}
		}
		merged = append(merged, na)
	}

	u.addrs = merged
	u.addrCursor = 0
	u.newAddrs = nil
	sortAddrs(u.addrs)
}
