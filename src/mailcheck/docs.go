// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package mailcheck verifies the email authentication setup of a domain.
//
// For a domain it inspects the published SPF policy, probes a list of
// common DKIM selectors, evaluates the DMARC policy, and looks up the mail
// exchangers. It can also open a short SMTP session with the primary
// exchanger to prove that mail is actually accepted.
//
// Every sub-check reports one of four statuses ([StatusValid],
// [StatusMissing], [StatusWarning], [StatusError]) and, for anything but
// valid, a [Feedback] pair naming the problem and how to fix it.
//
// # Features
//
//   - Concurrent sub-checks: SPF, DKIM, DMARC and MX run in parallel
//     with a per-check timeout
//   - SPF walking: include and redirect chains are followed and every
//     DNS-consuming term is listed, with loop and depth guards
//   - DKIM key inspection: revoked, malformed and short RSA keys are
//     reported as warnings
//   - DMARC organizational domain fallback using the public suffix list
//   - DNS server failover with retries and exponential backoff
//   - Built-in caching and coalescing of concurrent calls for one domain
//   - Server hot reload with [Checker.SetServers] and
//     [Checker.DeleteServers]
//   - Panic recovery: a panicking check becomes an error result instead
//     of taking the caller down
//   - Context-aware: every blocking call honors [context.Context]
//
// # Quick Start
//
//	c := mailcheck.New()
//
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//
//	data, err := c.CheckDomain(ctx, "user@example.com")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(data.SPF.Status, data.DKIM.Status, data.DMARC.Status, data.MailEcho.Status)
//
// Input may be a bare domain, an email address, or a URL; it is reduced to
// the domain with [NormalizeDomain] before any lookup.
//
// # Configuration
//
//	c := mailcheck.New(
//	    // Query a local resolver first, then a public one.
//	    mailcheck.WithServers([]mailcheck.DNSServer{
//	        {Address: "127.0.0.1:53", Name: "local"},
//	        {Address: "9.9.9.9", Name: "quad9"},
//	    }),
//
//	    // Probe only the selectors you actually publish.
//	    mailcheck.WithSelectors("s1", "s2"),
//
//	    // Announce a real host name in EHLO.
//	    mailcheck.WithHeloName("checker.example.net"),
//	)
//
// Available options:
//
//   - [WithTimeout]: timeout per DNS query (default: 3s)
//   - [WithCheckTimeout]: budget for each sub-check (default: 15s)
//   - [WithMaxRetries]: retry attempts per query, total = n+1 (default: 2)
//   - [WithCacheTTL]: TTL of the built-in cache (default: 5m)
//   - [WithCache]: custom [Cache]; pass nil to disable caching
//   - [WithConcurrency]: batch size of [Checker.Check] and the probe limit (default: 100)
//   - [WithEDNS0Size]: EDNS0 UDP buffer size (default: 1232)
//   - [WithDNSClient]: custom client for TCP or DNS-over-TLS
//   - [WithServers]: replace the DNS servers (default: Cloudflare and Google)
//   - [WithResolver]: replace DNS resolution altogether
//   - [WithSelectors]: DKIM selectors to probe (default: [DefaultSelectors])
//   - [WithSPFLookupLimit]: SPF lookup ceiling (default: 10)
//   - [WithSMTPPort], [WithSMTPTimeout], [WithHeloName], [WithDialer]: SMTP probe settings
//   - [WithLogger]: [slog.Logger] for debug and error records
//
// # Errors
//
// Sentinel errors for use with [errors.Is]:
//
//	var (
//	    ErrNoDNSServers  // No DNS servers configured
//	    ErrAllDNSFailed  // No DNS server could be reached
//	    ErrInvalidDomain // Input is not a domain
//	    ErrDNSTimeout    // DNS query exceeded its timeout
//	    ErrInternalPanic // An internal panic was recovered
//	    ErrNXDOMAIN      // Name does not exist
//	    ErrNoRecords     // Name exists without records of the type
//	    ErrServFail      // Server answered SERVFAIL
//	    ErrQueryRejected // Format Error, Refused or Not Implemented
//	    ErrProcessFailed // External checker failed
//	)
//
// Only input errors, cancellation and total DNS unavailability fail
// [Checker.CheckDomain]; every other problem is reported in the result.
//
// # External Checkers
//
// [ProcessEngine] runs a separate program per check and decodes the JSON
// it prints. The mailcheck command satisfies that contract, so a server
// can delegate checks to a sandboxed binary.
package mailcheck
