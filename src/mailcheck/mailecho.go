// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package mailcheck

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sort"
	"strconv"
	"strings"
)

// checkMX looks up the mail exchangers of domain. On success the hosts are
// returned by preference, then name, without the trailing dot.
func (c *Checker) checkMX(ctx context.Context, domain string) (MailEchoResult, []string, error) {
	records, err := c.resolver.LookupMX(ctx, domain)
	if err != nil && !errors.Is(err, ErrNoRecords) {
		return mailEchoFailure(err), nil, transient(err)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].Pref != records[j].Pref {
			return records[i].Pref < records[j].Pref
		}
		return records[i].Host < records[j].Host
	})

	hosts := make([]string, 0, len(records))
	for _, mx := range records {
		host := strings.TrimSuffix(mx.Host, ".")
		if host == "" {
			continue
		}
		hosts = append(hosts, host)
	}

	if len(hosts) == 0 {
		res := MailEchoResult{
			Status:   StatusMissing,
			Message:  "No MX records found",
			Feedback: feedbackFor(feedbackMXMissing),
		}
		if len(records) > 0 {
			res.Message = "Domain does not accept mail (null MX)"
		}
		return res, nil, nil
	}

	return MailEchoResult{
		Status:  StatusValid,
		Message: MXMarker + " " + strings.Join(hosts, ", "),
	}, hosts, nil
}

// mailEchoFailure is the mail echo result for a check that could not run.
func mailEchoFailure(err error) MailEchoResult {
	return MailEchoResult{
		Status:   StatusError,
		Message:  "Could not resolve MX records: " + describeFailure(err),
		Feedback: failureFeedback(err),
	}
}

// MailEcho opens an SMTP session with the highest-priority mail exchanger
// of domain, reads the greeting, sends EHLO and QUIT, and returns the
// dialogue in the Echo field.
//
// Network failures are not returned as errors: they produce a result with
// [StatusError], a message naming the condition and no Echo. The error is
// non-nil for invalid input, when ctx ends, or when no DNS server could be
// reached.
func (c *Checker) MailEcho(ctx context.Context, domain string) (MailEchoResult, error) {
	name, err := NormalizeDomain(domain)
	if err != nil {
		return MailEchoResult{}, err
	}

	res, hosts, err := c.checkMX(ctx, name)
	if res.Status != StatusValid {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}
		if errors.Is(err, ErrAllDNSFailed) {
			return res, err
		}
		return res, nil
	}

	host := hosts[0]
	if err := c.acquireProbe(ctx); err != nil {
		return mailEchoFailure(err), ctx.Err()
	}
	defer c.releaseProbe()

	address := net.JoinHostPort(host, strconv.Itoa(c.smtpPort))
	echo, err := c.smtpEcho(ctx, address)
	if err != nil {
		c.logger.Debug("smtp probe failed",
			slog.String("domain", name),
			slog.String("address", address),
			slog.String("transcript", echo),
			slog.Any("error", err))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return smtpFailure(host, err), ctxErr
		}
		return smtpFailure(host, err), nil
	}

	return MailEchoResult{
		Status:  StatusValid,
		Message: "SMTP server " + host + " responded",
		Echo:    echo,
	}, nil
}
