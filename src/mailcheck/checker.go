// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package mailcheck

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/miekg/dns"
	"golang.org/x/sync/singleflight"
)

// Default configuration values.
const (
	defaultTimeout        = 3 * time.Second
	defaultCheckTimeout   = 15 * time.Second
	defaultRetries        = 2
	defaultCacheTTL       = 5 * time.Minute
	defaultConcurrency    = 100
	defaultEDNS0Size      = 1232 // Recommended size to prevent IP fragmentation
	defaultSPFLookupLimit = 10
	defaultSMTPPort       = 25
	defaultSMTPTimeout    = 10 * time.Second
	defaultHeloName       = "localhost"

	// runGrace bounds a shared CheckDomain run beyond the per-check timeout.
	runGrace = time.Second

	retryBackoff    = 100 * time.Millisecond
	maxRetryBackoff = 2 * time.Second
)

// defaultServers are public recursive resolvers used when no servers
// are configured.
var defaultServers = []DNSServer{
	{Address: "1.1.1.1", Name: "cloudflare"},
	{Address: "8.8.8.8", Name: "google"},
}

// DefaultSelectors is the DKIM selector guess list probed when none is
// configured with [WithSelectors]. It covers the common generic names and
// the selectors used by large mail providers.
var DefaultSelectors = []string{
	"default", "google", "k1", "k2", "s1", "s2", "dkim", "mail", "smtp",
	"email", "selector1", "selector2", "mxvault", "everlytickey1",
	"everlytickey2", "ctct1", "ctct2", "sm", "sig1", "litesrv",
	"zendesk1", "zendesk2",
}

// Engine verifies the email configuration of a domain.
//
// [Checker] performs the work in-process; [ProcessEngine] delegates it to
// an external program.
type Engine interface {
	// CheckDomain runs the SPF, DKIM, DMARC and MX checks.
	CheckDomain(ctx context.Context, domain string) (CheckResultData, error)

	// MailEcho opens a live SMTP session with the domain's primary
	// mail exchanger.
	MailEcho(ctx context.Context, domain string) (MailEchoResult, error)
}

var _ Engine = (*Checker)(nil)

// Dialer opens the outbound TCP connections used by the SMTP probe.
// [*net.Dialer] satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Checker is the in-process [Engine]. It is safe for concurrent use.
type Checker struct {
	mu             sync.RWMutex
	servers        []DNSServer
	timeout        time.Duration
	checkTimeout   time.Duration
	maxRetries     int
	concurrency    int
	cache          Cache
	cacheSet       bool
	cacheTTL       time.Duration
	edns0Size      uint16
	dnsClient      *dns.Client
	resolver       Resolver
	selectors      []string
	spfLookupLimit int
	smtpPort       int
	smtpTimeout    time.Duration
	heloName       string
	dialer         Dialer
	logger         *slog.Logger

	// probes bounds the DKIM lookups and SMTP sessions in flight across
	// all calls.
	probes chan struct{}
	group  singleflight.Group
}

// New creates a new [Checker] that resolves through public DNS
// resolvers. Use functional options to customize behavior.
//
//	// Default configuration:
//	c := mailcheck.New()
//
//	// Custom configuration:
//	c := mailcheck.New(
//	    mailcheck.WithTimeout(2 * time.Second),
//	    mailcheck.WithSelectors("s1", "s2"),
//	)
func New(opts ...Option) *Checker {
	c := &Checker{
		servers:        make([]DNSServer, len(defaultServers)),
		timeout:        defaultTimeout,
		checkTimeout:   defaultCheckTimeout,
		maxRetries:     defaultRetries,
		concurrency:    defaultConcurrency,
		edns0Size:      defaultEDNS0Size,
		cacheTTL:       defaultCacheTTL,
		selectors:      DefaultSelectors,
		spfLookupLimit: defaultSPFLookupLimit,
		smtpPort:       defaultSMTPPort,
		smtpTimeout:    defaultSMTPTimeout,
		heloName:       defaultHeloName,
	}
	copy(c.servers, defaultServers)

	for _, opt := range opts {
		opt(c)
	}

	// Initialize cache if not set (or explicitly disabled) by option.
	if !c.cacheSet {
		c.cache = newMemoryCache(c.cacheTTL)
	}

	// Initialize shared DNS client if not set by WithDNSClient option.
	if c.dnsClient == nil {
		c.dnsClient = &dns.Client{
			Timeout: c.timeout,
			Net:     "udp",
		}
	}

	if c.resolver == nil {
		c.resolver = &dnsResolver{c: c}
	}
	if c.dialer == nil {
		c.dialer = &net.Dialer{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.probes = make(chan struct{}, c.concurrency)

	return c
}

// CheckDomain normalizes domain and runs the four checks concurrently.
//
// All four fields of the returned data are always populated. The error is
// non-nil only when the input is not a domain ([ErrInvalidDomain]), when
// ctx ends before the checks finish, or when no DNS server could be
// reached for any check ([ErrAllDNSFailed]).
//
// Concurrent calls for the same domain share one run, and complete
// results are cached for the configured TTL. The shared run is not tied
// to any caller's ctx: a caller that gives up gets ctx's error at once
// while the others keep waiting for the result.
func (c *Checker) CheckDomain(ctx context.Context, domain string) (CheckResultData, error) {
	name, err := NormalizeDomain(domain)
	if err != nil {
		return CheckResultData{}, err
	}

	if c.cache != nil {
		if cached, ok := c.cache.Get(name); ok {
			return cached, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return abandoned(err), err
	}

	// The run is detached from ctx; each caller stops waiting when its
	// own ctx ends.
	ch := c.group.DoChan(name, func() (v any, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %v", ErrInternalPanic, r)
			}
		}()
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.checkTimeout+runGrace)
		defer cancel()
		return c.checkAll(rctx, name)
	})

	select {
	case res := <-ch:
		data, _ := res.Val.(CheckResultData)
		return data, res.Err
	case <-ctx.Done():
		return abandoned(ctx.Err()), ctx.Err()
	}
}

// abandoned is the result handed to a caller whose context ended before
// the checks finished.
func abandoned(cause error) CheckResultData {
	err := fmt.Errorf("%w: %v", ErrDNSTimeout, cause)
	return CheckResultData{
		SPF:      spfFailure(err),
		DKIM:     dkimFailure(err),
		DMARC:    dmarcFailure(err),
		MailEcho: mailEchoFailure(err),
	}
}

// Check checks multiple domains concurrently. It returns a [Report] for
// each domain, in input order.
//
// Invalid domains are returned with [ErrInvalidDomain] in the Report's
// Error field.
func (c *Checker) Check(ctx context.Context, domains ...string) ([]Report, error) {
	reports := make([]Report, len(domains))
	var wg sync.WaitGroup

	// Semaphore to limit concurrency.
	// We use a buffered channel to limit the number
	// of concurrent goroutines.
	sem := make(chan struct{}, c.concurrency)

Loop:
	for i, domain := range domains {
		// Check context before starting new work
		select {
		case <-ctx.Done():
			// Fill remaining reports with context error
			for j := i; j < len(domains); j++ {
				reports[j] = Report{
					Domain: domains[j],
					Error:  ctx.Err(),
				}
			}
			// Do not return immediately! We must wait for active goroutines.
			// Break the loop to stop spawning new ones.
			break Loop
		default:
		}

		wg.Add(1)

		// Acquire semaphore before spawning goroutine to limit
		// the number of active goroutines.
		sem <- struct{}{}

		go func(idx int, d string) {
			defer wg.Done()
			defer func() { <-sem }() // Release semaphore
			defer func() {
				if r := recover(); r != nil {
					reports[idx] = Report{
						Domain: d,
						Error:  fmt.Errorf("%w: %v", ErrInternalPanic, r),
					}
				}
			}()

			reports[idx] = c.checkReport(ctx, d)
		}(i, domain)
	}

	wg.Wait()
	// Check context one last time to return correct error if we broke early
	if ctx.Err() != nil {
		return reports, ctx.Err()
	}
	return reports, nil
}

// checkReport wraps [Checker.CheckDomain] into a [Report].
func (c *Checker) checkReport(ctx context.Context, domain string) Report {
	report := Report{Domain: domain}
	if name, err := NormalizeDomain(domain); err == nil {
		report.Domain = name
	}
	report.Result, report.Error = c.CheckDomain(ctx, domain)
	return report
}

// DNSStatus checks the health of all configured DNS servers.
// It returns the online/offline status and latency for each server.
func (c *Checker) DNSStatus(ctx context.Context) ([]ServerStatus, error) {
	servers := c.Servers()
	if len(servers) == 0 {
		return nil, ErrNoDNSServers
	}

	statuses := make([]ServerStatus, len(servers))
	var wg sync.WaitGroup

	// Semaphore to limit concurrency.
	// We use a buffered channel to limit the number
	// of concurrent goroutines.
	sem := make(chan struct{}, c.concurrency)

Loop:
	for i, srv := range servers {
		// Check context before starting new work
		select {
		case <-ctx.Done():
			// Fill remaining results with context error
			for j := i; j < len(servers); j++ {
				statuses[j] = ServerStatus{
					Server: servers[j].Address,
					Error:  ctx.Err(),
				}
			}
			break Loop
		default:
		}

		wg.Add(1)

		// Acquire semaphore before spawning goroutine.
		sem <- struct{}{}

		go func(idx int, server DNSServer) {
			defer wg.Done()
			defer func() { <-sem }() // Release semaphore
			defer func() {
				if r := recover(); r != nil {
					statuses[idx] = ServerStatus{
						Server: server.Address,
						Error:  fmt.Errorf("%w: %v", ErrInternalPanic, r),
					}
				}
			}()

			statuses[idx] = checkDNSHealth(ctx, c.dnsClient, server.Address, c.edns0Size)
		}(i, srv)
	}

	wg.Wait()
	if ctx.Err() != nil {
		return statuses, ctx.Err()
	}
	return statuses, nil
}

// FlushCache clears all cached check results.
func (c *Checker) FlushCache() {
	if c.cache != nil {
		c.cache.Flush()
	}
}

// Servers returns a copy of the currently configured DNS servers.
func (c *Checker) Servers() []DNSServer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	servers := make([]DNSServer, len(c.servers))
	copy(servers, c.servers)
	return servers
}

// Selectors returns a copy of the DKIM selectors probed by the checker.
func (c *Checker) Selectors() []string {
	selectors := make([]string, len(c.selectors))
	copy(selectors, c.selectors)
	return selectors
}

// checkAll runs the four checks for a normalized domain and joins them.
func (c *Checker) checkAll(ctx context.Context, domain string) (CheckResultData, error) {
	var (
		data CheckResultData
		errs [4]error
		wg   sync.WaitGroup
	)

	checks := [4]struct {
		name string
		run  func(ctx context.Context) error
		fail func(err error)
	}{
		{
			name: "spf",
			run: func(ctx context.Context) (err error) {
				data.SPF, err = c.checkSPF(ctx, domain)
				return err
			},
			fail: func(err error) { data.SPF = spfFailure(err) },
		},
		{
			name: "dkim",
			run: func(ctx context.Context) (err error) {
				data.DKIM, err = c.checkDKIM(ctx, domain)
				return err
			},
			fail: func(err error) { data.DKIM = dkimFailure(err) },
		},
		{
			name: "dmarc",
			run: func(ctx context.Context) (err error) {
				data.DMARC, err = c.checkDMARC(ctx, domain)
				return err
			},
			fail: func(err error) { data.DMARC = dmarcFailure(err) },
		},
		{
			name: "mail_echo",
			run: func(ctx context.Context) (err error) {
				data.MailEcho, _, err = c.checkMX(ctx, domain)
				return err
			},
			fail: func(err error) { data.MailEcho = mailEchoFailure(err) },
		},
	}

	for i := range checks {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			check := checks[idx]
			defer func() {
				if r := recover(); r != nil {
					errs[idx] = fmt.Errorf("%w: %v", ErrInternalPanic, r)
					c.logger.Error("check panicked",
						slog.String("domain", domain),
						slog.String("check", check.name),
						slog.Any("panic", r))
					check.fail(errs[idx])
				}
			}()

			cctx, cancel := context.WithTimeout(ctx, c.checkTimeout)
			defer cancel()
			errs[idx] = check.run(cctx)
		}(i)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return data, err
	}

	unavailable := 0
	clean := true
	for _, err := range errs {
		if err == nil {
			continue
		}
		clean = false
		if errors.Is(err, ErrAllDNSFailed) || errors.Is(err, ErrNoDNSServers) {
			unavailable++
		}
	}
	if unavailable == len(errs) {
		return data, fmt.Errorf("%w: %s", ErrAllDNSFailed, domain)
	}

	// Transient failures are not cached so the next call retries them.
	if clean && c.cache != nil {
		c.cache.Set(domain, data)
	}
	return data, nil
}

// acquireProbe takes a slot of the shared probe semaphore.
func (c *Checker) acquireProbe(ctx context.Context) error {
	select {
	case c.probes <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrDNSTimeout, ctx.Err())
	}
}

func (c *Checker) releaseProbe() { <-c.probes }
