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
	"net/netip"
	"strconv"
	"strings"
)

// maxSPFDepth stops include/redirect recursion on pathological trees.
const maxSPFDepth = 10

// spfTerm is one whitespace-separated term of an SPF record.
type spfTerm struct {
	raw       string
	qualifier byte   // '+', '-', '~' or '?'; zero for modifiers
	mechanism string // all, include, a, mx, ptr, ip4, ip6, exists
	modifier  string // redirect, exp or an unknown name
	target    string // domain-spec, IP network or modifier value
}

// spfSyntaxError reports the term that made a record unparseable.
type spfSyntaxError struct {
	token  string
	reason string
}

func (e *spfSyntaxError) Error() string {
	return fmt.Sprintf("invalid SPF term %q: %s", e.token, e.reason)
}

// isSPFRecord reports whether a TXT value is an SPF version 1 record.
func isSPFRecord(txt string) bool {
	fields := strings.Fields(txt)
	return len(fields) > 0 && strings.EqualFold(fields[0], "v=spf1")
}

// parseSPF splits an SPF record into terms and validates each one.
func parseSPF(record string) ([]spfTerm, error) {
	fields := strings.Fields(record)
	if len(fields) == 0 || !strings.EqualFold(fields[0], "v=spf1") {
		return nil, &spfSyntaxError{token: record, reason: "missing v=spf1 version"}
	}

	terms := make([]spfTerm, 0, len(fields)-1)
	seen := make(map[string]bool)
	for _, raw := range fields[1:] {
		term, err := parseSPFTerm(raw)
		if err != nil {
			return nil, err
		}
		if term.modifier == "redirect" || term.modifier == "exp" {
			if seen[term.modifier] {
				return nil, &spfSyntaxError{token: raw, reason: "modifier repeated"}
			}
			seen[term.modifier] = true
		}
		terms = append(terms, term)
	}
	return terms, nil
}

func parseSPFTerm(raw string) (spfTerm, error) {
	term := spfTerm{raw: raw}
	lower := strings.ToLower(raw)

	// Modifier: name "=" value, where name comes before any ':' or '/'.
	if eq := strings.IndexByte(lower, '='); eq > 0 && !strings.ContainsAny(lower[:eq], ":/") {
		name := lower[:eq]
		if !isSPFName(name) {
			return term, &spfSyntaxError{token: raw, reason: "invalid modifier name"}
		}
		term.modifier = name
		term.target = raw[eq+1:]
		if (name == "redirect" || name == "exp") && term.target == "" {
			return term, &spfSyntaxError{token: raw, reason: "missing domain"}
		}
		return term, nil
	}

	term.qualifier = '+'
	if strings.IndexByte("+-~?", lower[0]) >= 0 {
		term.qualifier = lower[0]
		lower = lower[1:]
		raw = raw[1:]
	}

	name, arg := lower, ""
	hasArg := false
	if i := strings.IndexAny(lower, ":/"); i >= 0 {
		name = lower[:i]
		arg = raw[i:]
		hasArg = true
	}
	term.mechanism = name

	switch name {
	case "all":
		if hasArg {
			return term, &spfSyntaxError{token: term.raw, reason: "all takes no argument"}
		}
	case "include", "exists":
		domain, ok := strings.CutPrefix(arg, ":")
		if !ok || domain == "" {
			return term, &spfSyntaxError{token: term.raw, reason: "missing domain"}
		}
		term.target = domain
	case "a", "mx":
		domain, cidr := arg, ""
		if i := strings.IndexByte(arg, '/'); i >= 0 {
			domain, cidr = arg[:i], arg[i:]
		}
		if d, ok := strings.CutPrefix(domain, ":"); ok {
			domain = d
			if domain == "" {
				return term, &spfSyntaxError{token: term.raw, reason: "missing domain"}
			}
		} else if domain != "" {
			return term, &spfSyntaxError{token: term.raw, reason: "unexpected argument"}
		}
		if cidr != "" && !validDualCIDR(cidr) {
			return term, &spfSyntaxError{token: term.raw, reason: "invalid CIDR length"}
		}
		term.target = domain
	case "ptr":
		if hasArg {
			domain, ok := strings.CutPrefix(arg, ":")
			if !ok || domain == "" {
				return term, &spfSyntaxError{token: term.raw, reason: "missing domain"}
			}
			term.target = domain
		}
	case "ip4", "ip6":
		network, ok := strings.CutPrefix(arg, ":")
		if !ok || network == "" {
			return term, &spfSyntaxError{token: term.raw, reason: "missing address"}
		}
		if !validIPNetwork(network, name == "ip4") {
			return term, &spfSyntaxError{token: term.raw, reason: "invalid " + name + " address"}
		}
		term.target = network
	default:
		return term, &spfSyntaxError{token: term.raw, reason: "unknown mechanism"}
	}
	return term, nil
}

func isSPFName(name string) bool {
	if name == "" || !isAlpha(name[0]) {
		return false
	}
	for i := 1; i < len(name); i++ {
		ch := name[i]
		if !isAlpha(ch) && (ch < '0' || ch > '9') && ch != '-' && ch != '_' && ch != '.' {
			return false
		}
	}
	return true
}

func isAlpha(ch byte) bool { return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' }

// validIPNetwork checks an ip4/ip6 argument with an optional prefix length.
func validIPNetwork(s string, v4 bool) bool {
	addr, bits, hasBits := strings.Cut(s, "/")
	ip, err := netip.ParseAddr(addr)
	if err != nil || ip.Is4() != v4 || ip.Zone() != "" {
		return false
	}
	if !hasBits {
		return true
	}
	n, err := strconv.Atoi(bits)
	return err == nil && n >= 0 && n <= ip.BitLen()
}

// validDualCIDR checks the "/n", "//m" or "/n//m" suffix of a and mx.
func validDualCIDR(s string) bool {
	v4, v6, _ := strings.Cut(s, "//")
	v4 = strings.TrimPrefix(v4, "/")
	if v4 != "" {
		n, err := strconv.Atoi(v4)
		if err != nil || n < 0 || n > 32 {
			return false
		}
	}
	if v6 != "" {
		n, err := strconv.Atoi(v6)
		if err != nil || n < 0 || n > 128 {
			return false
		}
	}
	return v4 != "" || v6 != ""
}

// checkSPF fetches and evaluates the SPF record of domain. The returned
// error is the resolution failure of the base TXT lookup, if any.
func (c *Checker) checkSPF(ctx context.Context, domain string) (SPFResult, error) {
	res := SPFResult{Lookups: []SPFLookup{}}

	txts, err := c.resolver.LookupTXT(ctx, domain)
	if err != nil && !errors.Is(err, ErrNoRecords) {
		return spfFailure(err), transient(err)
	}

	var records []string
	for _, txt := range txts {
		if isSPFRecord(txt) {
			records = append(records, txt)
		}
	}

	switch {
	case len(records) == 0:
		res.Status = StatusMissing
		res.Message = "No SPF record found"
		res.Feedback = feedbackFor(feedbackSPFMissing)
		return res, nil
	case len(records) > 1:
		res.Status = StatusError
		res.Message = "Multiple SPF records found (RFC violation)"
		res.Feedback = feedbackFor(feedbackSPFMultiple)
		return res, nil
	}

	res.Record = records[0]
	terms, err := parseSPF(res.Record)
	if err != nil {
		res.Status = StatusError
		res.Message = fmt.Sprintf("Malformed SPF record: %v", err)
		fb := feedbackFor(feedbackSPFInvalid)
		var synErr *spfSyntaxError
		if errors.As(err, &synErr) {
			fb.Error = fmt.Sprintf("%s: %s", fb.Error, synErr.token)
		}
		res.Feedback = fb
		return res, nil
	}

	w := &spfWalker{c: c, lookups: []SPFLookup{}}
	w.walk(ctx, domain, terms, map[string]bool{domain: true}, 0)
	res.Lookups = w.lookups
	res.LookupCount = len(w.lookups)

	found := "SPF record found: " + res.Record
	switch {
	case res.LookupCount > c.spfLookupLimit:
		res.Status = StatusWarning
		res.Message = fmt.Sprintf("DNS lookup count (%d) exceeds the maximum limit of %d. %s",
			res.LookupCount, c.spfLookupLimit, found)
		res.Feedback = feedbackFor(feedbackSPFTooManyLookups)
	case allowsAll(terms):
		res.Status = StatusWarning
		res.Message = "Record authorizes every sender (+all). " + found
		res.Feedback = feedbackFor(feedbackSPFPlusAll)
	case !terminates(terms):
		res.Status = StatusWarning
		res.Message = "Record does not end with an all mechanism. " + found
		res.Feedback = feedbackFor(feedbackSPFNoAll)
	default:
		res.Status = StatusValid
		res.Message = found
	}
	return res, nil
}

// allowsAll reports whether the record ends in a pass-qualified all.
func allowsAll(terms []spfTerm) bool {
	for _, t := range terms {
		if t.mechanism == "all" {
			return t.qualifier == '+'
		}
	}
	return false
}

// terminates reports whether the record has an all mechanism or a
// redirect to hand over to.
func terminates(terms []spfTerm) bool {
	for _, t := range terms {
		if t.mechanism == "all" || t.modifier == "redirect" {
			return true
		}
	}
	return false
}

// spfFailure is the SPF result for a check that could not run.
func spfFailure(err error) SPFResult {
	return SPFResult{
		Status:   StatusError,
		Lookups:  []SPFLookup{},
		Message:  "Could not resolve domain: " + describeFailure(err),
		Feedback: failureFeedback(err),
	}
}

// spfWalker collects the DNS-consuming terms of an SPF tree.
type spfWalker struct {
	c       *Checker
	lookups []SPFLookup
}

// walk records the lookups of terms and descends into include and
// redirect targets. visited holds the domains on the current branch.
func (w *spfWalker) walk(ctx context.Context, domain string, terms []spfTerm, visited map[string]bool, depth int) {
	for _, t := range terms {
		kind := t.mechanism
		if t.modifier == "redirect" {
			kind = "redirect"
		}

		switch kind {
		case "include", "exists", "redirect", "a", "mx", "ptr":
		default:
			continue
		}

		target := strings.TrimSuffix(strings.ToLower(t.target), ".")
		if target == "" {
			target = domain
		}
		w.lookups = append(w.lookups, SPFLookup{
			Type:      kind,
			Domain:    target,
			Mechanism: strings.ToLower(t.raw),
		})

		if kind != "include" && kind != "redirect" {
			continue
		}
		if visited[target] || depth+1 > maxSPFDepth || ctx.Err() != nil {
			continue
		}

		nested := w.fetch(ctx, target)
		if nested == nil {
			continue
		}
		branch := make(map[string]bool, len(visited)+1)
		for d := range visited {
			branch[d] = true
		}
		branch[target] = true
		w.walk(ctx, target, nested, branch, depth+1)
	}
}

// fetch returns the parsed SPF record of an include or redirect target,
// or nil when there is none usable.
func (w *spfWalker) fetch(ctx context.Context, domain string) []spfTerm {
	txts, err := w.c.resolver.LookupTXT(ctx, domain)
	if err != nil {
		w.c.logger.Debug("spf target lookup failed",
			slog.String("domain", domain),
			slog.Any("error", err))
		return nil
	}
	for _, txt := range txts {
		if !isSPFRecord(txt) {
			continue
		}
		terms, err := parseSPF(txt)
		if err != nil {
			w.c.logger.Debug("spf target record malformed",
				slog.String("domain", domain),
				slog.Any("error", err))
			return nil
		}
		return terms
	}
	return nil
}
