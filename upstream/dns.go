package upstream

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/miekg/dns"
	"golang.org/x/sync/errgroup"
)

// Resolver is the abstract DNS capability a Context is bound to — the Go
// encoding of spec's "DNS resolver handle". It must never block: a
// lookup is scheduled and cb is invoked later, from whatever goroutine the
// Resolver chooses, exactly once.
type Resolver interface {
	LookupAsync(name string, qtype uint16, timeout time.Duration, retransmits int, cb func([]net.IP, error))
}

// DNSResolver is the default Resolver, built on github.com/miekg/dns —
// every DNS-handling repository in this module's reference corpus resolves
// A/AAAA records with that library, so it is the idiomatic choice here
// too. It queries each configured nameserver concurrently via
// golang.org/x/sync/errgroup and takes the first successful reply,
// retrying up to retransmits times if all nameservers fail or time out.
type DNSResolver struct {
	// Nameservers are host:port pairs; NewDNSResolver fills them from
	// /etc/resolv.conf (or 127.0.0.1:53) when none are given.
	Nameservers []string
	client      *dns.Client
}

// NewDNSResolver builds a DNSResolver using the given nameservers, or the
// system's configured resolvers if ns is empty.
func NewDNSResolver(ns []string) *DNSResolver {
	if len(ns) == 0 {
		ns = systemNameservers()
	}
	return &DNSResolver{Nameservers: ns, client: new(dns.Client)}
}

func systemNameservers() []string {
	cfg, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || cfg == nil || len(cfg.Servers) == 0 {
		return []string{"127.0.0.1:53"}
	}
	addrs := make([]string, 0, len(cfg.Servers))
	for _, s := range cfg.Servers {
		addrs = append(addrs, net.JoinHostPort(s, cfg.Port))
	}
	return addrs
}

// LookupAsync implements Resolver.
func (r *DNSResolver) LookupAsync(name string, qtype uint16, timeout time.Duration, retransmits int, cb func([]net.IP, error)) {
	go func() {
		addrs, err := r.lookup(name, qtype, timeout, retransmits)
		cb(addrs, err)
	}()
}

func (r *DNSResolver) lookup(name string, qtype uint16, timeout time.Duration, retransmits int) ([]net.IP, error) {
	fqdn := dns.Fqdn(name)

	var lastErr error
	for attempt := 0; attempt <= retransmits; attempt++ {
		addrs, err := r.queryAll(fqdn, qtype, timeout)
		if err == nil {
			return addrs, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// queryAll races the query across every configured nameserver and returns
// the first successful reply.
func (r *DNSResolver) queryAll(fqdn string, qtype uint16, timeout time.Duration) ([]net.IP, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	type result struct {
		addrs []net.IP
		err   error
	}
	results := make(chan result, len(r.Nameservers))

	g, _ := errgroup.WithContext(ctx)
	for _, ns := range r.Nameservers {
		ns := ns
		g.Go(func() error {
			m := new(dns.Msg)
			m.SetQuestion(fqdn, qtype)
			client := *r.client
			client.Timeout = timeout
			in, _, err := client.ExchangeContext(ctx, m, ns)
			if err != nil {
				results <- result{err: err}
				return nil
			}
			results <- result{addrs: extractAddrs(in, qtype)}
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(results)
	}()

	var lastErr error = errors.New("no nameservers configured")
	for res := range results {
		if res.err != nil {
			lastErr = res.err
			continue
		}
		return res.addrs, nil
	}
	return nil, lastErr
}

func extractAddrs(m *dns.Msg, qtype uint16) []net.IP {
	var out []net.IP
	for _, rr := range m.Answer {
		switch qtype {
		case dns.TypeA:
			if a, ok := rr.(*dns.A); ok {
				out = append(out, a.A)
			}
		case dns.TypeAAAA:
			if aaaa, ok := rr.(*dns.AAAA); ok {
				out = append(out, aaaa.AAAA)
			}
		}
	}
	return out
}
