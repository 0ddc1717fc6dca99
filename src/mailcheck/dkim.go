// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package mailcheck

import (
	"context"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// minRSAKeyBits is the smallest RSA key receivers still accept.
const minRSAKeyBits = 1024

// dkimIssue is a problem found in a published DKIM key.
type dkimIssue struct {
	kind   feedbackKind
	detail string
}

// parseDKIMTags splits a tag=value list. Tag names are lowercased and
// folding whitespace inside values is removed.
func parseDKIMTags(txt string) map[string]string {
	tags := make(map[string]string)
	for _, part := range strings.Split(txt, ";") {
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if _, dup := tags[name]; dup {
			continue
		}
		tags[name] = strings.Join(strings.Fields(value), "")
	}
	return tags
}

// isDKIMRecord reports whether a TXT value looks like a DKIM key record.
func isDKIMRecord(txt string) bool {
	trimmed := strings.TrimSpace(txt)
	if len(trimmed) >= 7 && strings.EqualFold(trimmed[:7], "v=DKIM1") {
		return true
	}
	tags := parseDKIMTags(trimmed)
	_, hasK := tags["k"]
	_, hasP := tags["p"]
	return hasK && hasP
}

// inspectDKIMKey validates the public key of a DKIM record.
func inspectDKIMKey(txt string) *dkimIssue {
	tags := parseDKIMTags(txt)
	p, ok := tags["p"]
	if !ok {
		return &dkimIssue{kind: feedbackDKIMMalformed, detail: "no p= tag"}
	}
	if p == "" {
		return &dkimIssue{kind: feedbackDKIMRevoked, detail: "key revoked (empty p=)"}
	}

	der, err := base64.StdEncoding.DecodeString(p)
	if err != nil {
		return &dkimIssue{kind: feedbackDKIMMalformed, detail: "public key is not valid base64"}
	}

	keyType := strings.ToLower(tags["k"])
	switch keyType {
	case "", "rsa":
		bits, err := rsaKeyBits(der)
		if err != nil {
			return &dkimIssue{kind: feedbackDKIMMalformed, detail: "public key could not be parsed"}
		}
		if bits < minRSAKeyBits {
			return &dkimIssue{kind: feedbackDKIMKeyTooShort, detail: fmt.Sprintf("key too short (%d bits)", bits)}
		}
	case "ed25519":
		if len(der) != ed25519.PublicKeySize {
			return &dkimIssue{kind: feedbackDKIMMalformed, detail: "ed25519 key has wrong size"}
		}
	}
	return nil
}

// rsaKeyBits returns the modulus size of a SubjectPublicKeyInfo or PKCS#1
// encoded RSA key.
func rsaKeyBits(der []byte) (int, error) {
	if pub, err := x509.ParsePKIXPublicKey(der); err == nil {
		key, ok := pub.(*rsa.PublicKey)
		if !ok {
			return 0, errors.New("not an RSA key")
		}
		return key.N.BitLen(), nil
	}
	key, err := x509.ParsePKCS1PublicKey(der)
	if err != nil {
		return 0, err
	}
	return key.N.BitLen(), nil
}

// checkDKIM probes every configured selector concurrently.
func (c *Checker) checkDKIM(ctx context.Context, domain string) (DKIMResult, error) {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		records  []DKIMRecord
		firstErr error
	)

	for _, selector := range c.selectors {
		wg.Add(1)
		go func(selector string) {
			defer wg.Done()
			if err := c.acquireProbe(ctx); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			defer c.releaseProbe()
			defer func() {
				if r := recover(); r != nil {
					c.logger.Error("dkim probe panicked",
						slog.String("selector", selector),
						slog.Any("panic", r))
					mu.Lock()
					if firstErr == nil {
						firstErr = fmt.Errorf("%w: %v", ErrInternalPanic, r)
					}
					mu.Unlock()
				}
			}()

			txts, err := c.resolver.LookupTXT(ctx, selector+"._domainkey."+domain)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if !isNotFound(err) && firstErr == nil {
					firstErr = err
				}
				return
			}
			for _, txt := range txts {
				if isDKIMRecord(txt) {
					records = append(records, DKIMRecord{Selector: selector, Record: txt})
				}
			}
		}(selector)
	}
	wg.Wait()

	if len(records) == 0 {
		if firstErr != nil {
			return dkimFailure(firstErr), firstErr
		}
		return DKIMResult{
			Status:   StatusMissing,
			Message:  "No DKIM records found for common selectors",
			Records:  []DKIMRecord{},
			Feedback: feedbackFor(feedbackDKIMMissing),
		}, nil
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Selector < records[j].Selector
	})

	selectors := make([]string, 0, len(records))
	for _, r := range records {
		if len(selectors) == 0 || selectors[len(selectors)-1] != r.Selector {
			selectors = append(selectors, r.Selector)
		}
	}
	found := "DKIM records found for selectors: " + strings.Join(selectors, ", ")

	res := DKIMResult{Records: records}
	for _, r := range records {
		if issue := inspectDKIMKey(r.Record); issue != nil {
			res.Status = StatusWarning
			res.Message = fmt.Sprintf("Selector %s: %s. %s", r.Selector, issue.detail, found)
			res.Feedback = feedbackFor(issue.kind)
			return res, nil
		}
	}

	res.Status = StatusValid
	res.Message = found
	return res, nil
}

// dkimFailure is the DKIM result for a check that could not run.
func dkimFailure(err error) DKIMResult {
	return DKIMResult{
		Status:   StatusError,
		Message:  "Could not query DKIM selectors: " + describeFailure(err),
		Records:  []DKIMRecord{},
		Feedback: failureFeedback(err),
	}
}
