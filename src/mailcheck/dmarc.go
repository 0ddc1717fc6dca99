// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package mailcheck

import (
	"context"
	"fmt"
	"strings"

	"github.com/emersion/go-msgauth/dmarc"
	"golang.org/x/net/publicsuffix"
)

// isDMARCRecord reports whether a TXT value is a DMARC version 1 record.
func isDMARCRecord(txt string) bool {
	version, _, _ := strings.Cut(strings.TrimSpace(txt), ";")
	return strings.EqualFold(strings.ReplaceAll(version, " ", ""), "v=DMARC1")
}

// organizationalDomain returns the registrable domain directly under the
// public suffix, or domain itself when it cannot be determined.
func organizationalDomain(domain string) string {
	org, err := publicsuffix.EffectiveTLDPlusOne(domain)
	if err != nil {
		return domain
	}
	return org
}

// canonicalDMARC folds the case of tag names and of keyword values.
// Report URIs are left as published.
func canonicalDMARC(raw string) string {
	tags := strings.Split(raw, ";")
	for i, tag := range tags {
		name, value, ok := strings.Cut(tag, "=")
		if !ok {
			continue
		}
		name = strings.ToLower(strings.TrimSpace(name))
		value = strings.TrimSpace(value)
		switch name {
		case "v":
			value = strings.ToUpper(value)
		case "p", "sp", "adkim", "aspf", "fo", "rf":
			value = strings.ToLower(value)
		}
		tags[i] = name + "=" + value
	}
	return strings.Join(tags, ";")
}

// lookupDMARC returns the DMARC records that apply to domain. inherited
// is true when they were found at the organizational domain.
func (c *Checker) lookupDMARC(ctx context.Context, domain string) (records []string, inherited bool, err error) {
	records, err = c.dmarcRecordsAt(ctx, domain)
	if err != nil || len(records) > 0 {
		return records, false, err
	}

	org := organizationalDomain(domain)
	if org == domain {
		return nil, false, nil
	}
	records, err = c.dmarcRecordsAt(ctx, org)
	return records, len(records) > 0, err
}

func (c *Checker) dmarcRecordsAt(ctx context.Context, domain string) ([]string, error) {
	txts, err := c.resolver.LookupTXT(ctx, "_dmarc."+domain)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	var records []string
	for _, txt := range txts {
		if isDMARCRecord(txt) {
			records = append(records, txt)
		}
	}
	return records, nil
}

// checkDMARC fetches and evaluates the DMARC policy of domain.
func (c *Checker) checkDMARC(ctx context.Context, domain string) (DMARCResult, error) {
	records, inherited, err := c.lookupDMARC(ctx, domain)
	if err != nil {
		return dmarcFailure(err), err
	}

	switch {
	case len(records) == 0:
		return DMARCResult{
			Status:   StatusMissing,
			Message:  "No DMARC record found",
			Feedback: feedbackFor(feedbackDMARCMissing),
		}, nil
	case len(records) > 1:
		return DMARCResult{
			Status:   StatusError,
			Message:  "Multiple DMARC records found (RFC violation)",
			Feedback: feedbackFor(feedbackDMARCMultiple),
		}, nil
	}

	raw := records[0]
	found := DMARCMarker + " " + raw

	rec, err := dmarc.Parse(canonicalDMARC(raw))
	if err != nil {
		return DMARCResult{
			Status:   StatusError,
			Message:  fmt.Sprintf("Malformed DMARC record (%v). %s", err, found),
			Feedback: feedbackFor(feedbackDMARCMalformed),
		}, nil
	}

	policy := rec.Policy
	if inherited && rec.SubdomainPolicy != "" {
		policy = rec.SubdomainPolicy
	}

	res := DMARCResult{Policy: string(policy)}
	switch policy {
	case dmarc.PolicyQuarantine, dmarc.PolicyReject:
		res.Status = StatusValid
		res.Message = found
	case dmarc.PolicyNone:
		res.Status = StatusWarning
		res.Message = "Policy p=none only monitors failing mail. " + found
		res.Feedback = feedbackFor(feedbackDMARCWeakPolicy)
	default:
		res.Status = StatusError
		res.Message = fmt.Sprintf("Unknown DMARC policy %q. %s", policy, found)
		res.Feedback = feedbackFor(feedbackDMARCMalformed)
	}
	return res, nil
}

// dmarcFailure is the DMARC result for a check that could not run.
func dmarcFailure(err error) DMARCResult {
	return DMARCResult{
		Status:   StatusError,
		Message:  "Could not resolve DMARC record: " + describeFailure(err),
		Feedback: failureFeedback(err),
	}
}
