// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package mailcheck

import (
	"fmt"
	"strings"

	"golang.org/x/net/idna"
)

// IsValidDomain reports whether domain is a syntactically valid domain name.
//
// A valid domain must have at least two labels separated by dots,
// each label must be 1-63 characters long, contain only ASCII
// letters, digits, hyphens or underscores, and must not start or end
// with a hyphen. The TLD (last label) must be letters only, or a
// Punycode label starting with "xn--".
func IsValidDomain(domain string) bool {
	domain = strings.TrimSuffix(domain, ".")
	if domain == "" || len(domain) > 253 {
		return false
	}

	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return false
	}

	for i, label := range labels {
		if len(label) < 1 || len(label) > 63 {
			return false
		}

		// Labels must not start or end with a hyphen.
		if label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}

		if i == len(labels)-1 {
			if !isValidTLD(label) {
				return false
			}
			continue
		}

		for _, c := range label {
			switch {
			case c >= 'a' && c <= 'z':
				// ok
			case c >= 'A' && c <= 'Z':
				// ok
			case c >= '0' && c <= '9', c == '-', c == '_':
				// ok
			default:
				return false
			}
		}
	}

	return true
}

// NormalizeDomain turns user input into the bare hostname the checks run
// against. It accepts a hostname, a URL or an email address:
//
//	NormalizeDomain("user@example.com")          // "example.com"
//	NormalizeDomain("https://example.com/path")  // "example.com"
//	NormalizeDomain("www.Example.com:443")       // "example.com"
//
// Internationalized names are converted to their ASCII (Punycode) form.
// The error wraps [ErrInvalidDomain].
func NormalizeDomain(input string) (string, error) {
	domain := normalizeDomain(input)
	if domain == "" {
		return "", fmt.Errorf("%w: empty domain", ErrInvalidDomain)
	}

	ascii := domain
	if !isASCII(domain) {
		var err error
		ascii, err = idna.Lookup.ToASCII(domain)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrInvalidDomain, domain, err)
		}
	}

	if !IsValidDomain(ascii) {
		return "", fmt.Errorf("%w: %s", ErrInvalidDomain, ascii)
	}
	return ascii, nil
}

// normalizeDomain strips everything around the host part of the input.
func normalizeDomain(input string) string {
	domain := strings.ToLower(strings.TrimSpace(input))

	if at := strings.LastIndex(domain, "@"); at >= 0 {
		domain = domain[at+1:]
	}

	for _, scheme := range []string{"http://", "https://"} {
		if strings.HasPrefix(domain, scheme) {
			domain = strings.TrimPrefix(domain, scheme)
			break
		}
	}

	if i := strings.IndexAny(domain, "/?#"); i >= 0 {
		domain = domain[:i]
	}
	if i := strings.IndexByte(domain, ':'); i >= 0 {
		domain = domain[:i]
	}

	domain = strings.TrimSuffix(domain, ".")
	domain = strings.TrimPrefix(domain, "www.")
	return domain
}

// isValidTLD reports whether label can be a top-level domain: letters
// only, or a Punycode label ("xn--" followed by letters, digits and
// hyphens).
func isValidTLD(label string) bool {
	if len(label) < 2 {
		return false
	}

	if len(label) > 4 && strings.EqualFold(label[:4], "xn--") {
		for _, c := range label[4:] {
			switch {
			case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-':
			default:
				return false
			}
		}
		return true
	}

	for _, c := range label {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
			return false
		}
	}
	return true
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 127 {
			return false
		}
	}
	return true
}
