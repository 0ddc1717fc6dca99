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
	"strings"
	"time"

	"github.com/miekg/dns"
)

// Resolver answers the DNS questions the checks need.
//
// Implementations must be safe for concurrent use. Errors should wrap
// [ErrNXDOMAIN] when the name does not exist and [ErrNoRecords] when it
// exists without records of the requested type; any other error is
// treated as a resolution failure.
type Resolver interface {
	LookupTXT(ctx context.Context, name string) ([]string, error)
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
}

// dnsResolver is the default [Resolver]. It queries the checker's DNS
// servers in order with failover and retries.
type dnsResolver struct {
	c *Checker
}

// LookupTXT returns the TXT strings published at name. Multi-string
// records are joined without separator.
func (r *dnsResolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	resp, err := r.exchange(ctx, name, dns.TypeTXT)
	if err != nil {
		return nil, err
	}

	var records []string
	for _, rr := range resp.Answer {
		if txt, ok := rr.(*dns.TXT); ok {
			records = append(records, strings.Join(txt.Txt, ""))
		}
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: TXT %s", ErrNoRecords, name)
	}
	return records, nil
}

// LookupMX returns the MX records published at name.
func (r *dnsResolver) LookupMX(ctx context.Context, name string) ([]*net.MX, error) {
	resp, err := r.exchange(ctx, name, dns.TypeMX)
	if err != nil {
		return nil, err
	}

	var records []*net.MX
	for _, rr := range resp.Answer {
		if mx, ok := rr.(*dns.MX); ok {
			records = append(records, &net.MX{Host: mx.Mx, Pref: mx.Preference})
		}
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: MX %s", ErrNoRecords, name)
	}
	return records, nil
}

// exchange asks each configured server in turn until one gives an
// authoritative answer (NOERROR or NXDOMAIN).
//
// SERVFAIL and rejected queries move on to the next server. When every
// server failed at the transport level the error wraps [ErrAllDNSFailed].
func (r *dnsResolver) exchange(ctx context.Context, name string, qtype uint16) (*dns.Msg, error) {
	servers := r.c.Servers()
	if len(servers) == 0 {
		return nil, ErrNoDNSServers
	}

	var (
		lastErr   error
		responded bool
	)
	for _, srv := range servers {
		resp, err := r.c.queryWithRetries(ctx, name, srv.Address, qtype)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("%w: %v", ErrDNSTimeout, ctxErr)
			}
			r.c.logger.Debug("dns query failed",
				slog.String("server", srv.Address),
				slog.String("name", name),
				slog.String("type", dns.TypeToString[qtype]),
				slog.Any("error", err))
			lastErr = err
			continue
		}

		switch resp.Rcode {
		case dns.RcodeSuccess:
			return resp, nil
		case dns.RcodeNameError:
			return nil, fmt.Errorf("%w: %s", ErrNXDOMAIN, name)
		case dns.RcodeServerFailure:
			responded = true
			lastErr = fmt.Errorf("%w: %s", ErrServFail, name)
		case dns.RcodeFormatError, dns.RcodeRefused, dns.RcodeNotImplemented:
			responded = true
			lastErr = fmt.Errorf("%w: %s (%s)", ErrQueryRejected, name, dns.RcodeToString[resp.Rcode])
		default:
			responded = true
			lastErr = fmt.Errorf("mailcheck: unexpected rcode %s for %s", dns.RcodeToString[resp.Rcode], name)
		}
	}

	if responded {
		return nil, lastErr
	}
	return nil, fmt.Errorf("%w: %w", ErrAllDNSFailed, lastErr)
}

// queryWithRetries sends a DNS query to one server, retrying transport
// errors with exponential backoff. Any DNS response, whatever its rcode,
// ends the retry loop.
func (c *Checker) queryWithRetries(ctx context.Context, name, server string, qtype uint16) (*dns.Msg, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff: 100ms, 200ms, 400ms, ...
			backoff := min(
				// Cap backoff to prevent overflow or excessive waits.
				time.Duration(1<<uint(attempt-1))*retryBackoff, maxRetryBackoff)

			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrDNSTimeout, ctx.Err())
			case <-time.After(backoff):
			}
		}

		resp, err := queryDNS(ctx, c.dnsClient, name, server, qtype, c.edns0Size)
		if err != nil {
			lastErr = err
			continue
		}
		return resp, nil
	}

	return nil, lastErr
}

// queryDNS sends a DNS query for the given name to the specified server.
// It respects context cancellation and the configured timeout, and
// repeats a truncated UDP answer over TCP.
func queryDNS(ctx context.Context, client *dns.Client, name, server string, qtype uint16, edns0Size uint16) (*dns.Msg, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), qtype)
	msg.RecursionDesired = true
	msg.SetEdns0(edns0Size, false)

	// Ensure server has port.
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}

	resp, err := exchangeContext(ctx, client, msg, server)
	if err != nil {
		return nil, err
	}

	if resp.Truncated && client.Net != "tcp" && client.Net != "tcp-tls" {
		tcp := &dns.Client{
			Net:     "tcp",
			Timeout: client.Timeout,
			Dialer:  client.Dialer,
		}
		return exchangeContext(ctx, tcp, msg, server)
	}
	return resp, nil
}

// exchangeContext runs the exchange in its own goroutine so that a
// cancelled context returns immediately.
func exchangeContext(ctx context.Context, client *dns.Client, msg *dns.Msg, server string) (*dns.Msg, error) {
	type dnsResult struct {
		msg *dns.Msg
		err error
	}
	ch := make(chan dnsResult, 1)

	go func() {
		resp, _, err := client.ExchangeContext(ctx, msg, server)
		ch <- dnsResult{msg: resp, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrDNSTimeout, ctx.Err())
	case result := <-ch:
		if result.err != nil {
			var netErr net.Error
			if errors.As(result.err, &netErr) && netErr.Timeout() {
				return nil, fmt.Errorf("%w: %v", ErrDNSTimeout, result.err)
			}
			return nil, result.err
		}
		return result.msg, nil
	}
}

// checkDNSHealth performs a health check on a single DNS server by
// asking for the root NS set and measuring the latency.
func checkDNSHealth(ctx context.Context, client *dns.Client, server string, edns0Size uint16) ServerStatus {
	start := time.Now()

	resp, err := queryDNS(ctx, client, ".", server, dns.TypeNS, edns0Size)
	latency := time.Since(start).Milliseconds()

	if err != nil {
		return ServerStatus{
			Server: server,
			Online: false,
			Error:  err,
		}
	}

	if resp.Rcode != dns.RcodeSuccess {
		return ServerStatus{
			Server: server,
			Online: false,
			Error:  fmt.Errorf("unexpected response code: %s", dns.RcodeToString[resp.Rcode]),
		}
	}

	return ServerStatus{
		Server:    server,
		Online:    true,
		LatencyMs: latency,
	}
}

// describeFailure turns a lookup error into the short text used in
// result messages.
func describeFailure(err error) string {
	switch {
	case errors.Is(err, ErrInternalPanic):
		return "internal error"
	case errors.Is(err, ErrNXDOMAIN):
		return "domain does not exist (NXDOMAIN)"
	case errors.Is(err, ErrAllDNSFailed):
		return "no DNS server responded"
	case errors.Is(err, ErrDNSTimeout):
		return "DNS query timed out"
	case errors.Is(err, ErrServFail):
		return "DNS server failure (SERVFAIL)"
	case errors.Is(err, ErrQueryRejected):
		return "DNS query rejected"
	case errors.Is(err, ErrNoDNSServers):
		return "no DNS servers configured"
	default:
		return err.Error()
	}
}

// failureFeedback picks the remediation hint for a check that could not
// complete.
func failureFeedback(err error) *Feedback {
	if errors.Is(err, ErrInternalPanic) {
		return feedbackFor(feedbackInternal)
	}
	return feedbackFor(feedbackUnresolvable)
}
