// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package mailcheck

import (
	"log/slog"
	"slices"
	"time"

	"github.com/miekg/dns"
)

// Option is a functional option for configuring a [Checker].
type Option func(*Checker)

// WithServers sets the DNS servers queried in order, replacing the
// Cloudflare and Google defaults.
func WithServers(servers []DNSServer) Option {
	return func(c *Checker) {
		c.servers = servers
	}
}

// SetServers upserts DNS servers on a running [Checker], keyed by
// Address: a known address is replaced where it stands, a new one is
// appended. Safe for concurrent use with every other method.
//
// Lookups already in flight keep the list they started with.
//
//	c.SetServers(mailcheck.DNSServer{Address: "9.9.9.9", Name: "quad9"})
func (c *Checker) SetServers(servers ...DNSServer) {
	if len(servers) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	next := slices.Clone(c.servers)
	for _, srv := range servers {
		if i := slices.IndexFunc(next, func(s DNSServer) bool { return s.Address == srv.Address }); i >= 0 {
			next[i] = srv
			continue
		}
		next = append(next, srv)
	}
	c.servers = next
}

// DeleteServers drops the servers with the given addresses. Unknown
// addresses are ignored.
func (c *Checker) DeleteServers(addresses ...string) {
	if len(addresses) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.servers = slices.DeleteFunc(slices.Clone(c.servers), func(s DNSServer) bool {
		return slices.Contains(addresses, s.Address)
	})
}

// WithTimeout bounds a single DNS exchange. The default is 3 seconds.
// A client passed to [WithDNSClient] keeps its own Timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithCheckTimeout bounds each of the four checks run by
// [Checker.CheckDomain], including retries and SPF recursion.
// The default is 15 seconds.
func WithCheckTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.checkTimeout = d
		}
	}
}

// WithMaxRetries sets how often a query is resent to the same server
// after a transport error. The default is 2; negative values keep it.
func WithMaxRetries(n int) Option {
	return func(c *Checker) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithCache replaces the in-memory result cache. A nil cache turns
// caching off.
func WithCache(cache Cache) Option {
	return func(c *Checker) {
		c.cache = cache
		c.cacheSet = true
	}
}

// WithCacheTTL sets how long the in-memory cache keeps a result.
// The default is 5 minutes. Ignored when [WithCache] is used.
func WithCacheTTL(d time.Duration) Option {
	return func(c *Checker) {
		c.cacheTTL = d
	}
}

// WithConcurrency sets the maximum number of concurrent domain checks in
// [Checker.Check], and of DKIM probes and SMTP sessions across all calls.
// The default is 100.
func WithConcurrency(n int) Option {
	return func(c *Checker) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithDNSClient swaps the UDP client for c, e.g. one with Net "tcp" or
// "tcp-tls". Passing nil is a no-op.
func WithDNSClient(client *dns.Client) Option {
	return func(c *Checker) {
		if client != nil {
			c.dnsClient = client
		}
	}
}

// WithEDNS0Size sets the advertised EDNS0 buffer size.
// The default is 1232 bytes (DNS Flag Day 2020).
func WithEDNS0Size(size uint16) Option {
	return func(c *Checker) {
		if size > 0 {
			c.edns0Size = size
		}
	}
}

// WithResolver replaces the built-in DNS client with r. The configured
// servers, retries and EDNS0 size are then only used by
// [Checker.DNSStatus].
//
// Passing nil is a no-op.
func WithResolver(r Resolver) Option {
	return func(c *Checker) {
		if r != nil {
			c.resolver = r
		}
	}
}

// WithSelectors sets the DKIM selectors to probe. Empty names are
// ignored; passing none keeps [DefaultSelectors].
func WithSelectors(selectors ...string) Option {
	return func(c *Checker) {
		var list []string
		for _, s := range selectors {
			if s != "" {
				list = append(list, s)
			}
		}
		if len(list) > 0 {
			c.selectors = list
		}
	}
}

// WithSPFLookupLimit sets the number of DNS-consuming SPF terms above
// which the SPF check reports a warning. The default is 10, the limit
// receivers enforce.
func WithSPFLookupLimit(n int) Option {
	return func(c *Checker) {
		if n > 0 {
			c.spfLookupLimit = n
		}
	}
}

// WithSMTPPort sets the port dialed by [Checker.MailEcho].
// The default is 25.
func WithSMTPPort(port int) Option {
	return func(c *Checker) {
		if port > 0 && port <= 65535 {
			c.smtpPort = port
		}
	}
}

// WithSMTPTimeout bounds the whole SMTP session of [Checker.MailEcho],
// from dial to QUIT. The default is 10 seconds.
func WithSMTPTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.smtpTimeout = d
		}
	}
}

// WithHeloName sets the host name announced in EHLO.
// The default is "localhost".
func WithHeloName(name string) Option {
	return func(c *Checker) {
		if name != "" {
			c.heloName = name
		}
	}
}

// WithDialer sets the dialer used for SMTP connections.
// Passing nil is a no-op.
func WithDialer(d Dialer) Option {
	return func(c *Checker) {
		if d != nil {
			c.dialer = d
		}
	}
}

// WithLogger sets the logger for debug and error records.
// The default is [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(c *Checker) {
		if l != nil {
			c.logger = l
		}
	}
}
