// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package mailcheck

import "errors"

// Sentinel errors for the mailcheck package.
var (
	// ErrNoDNSServers is returned when no DNS servers are configured.
	ErrNoDNSServers = errors.New("mailcheck: no DNS servers configured")

	// ErrAllDNSFailed is returned when all configured DNS servers
	// fail to respond to queries.
	ErrAllDNSFailed = errors.New("mailcheck: all DNS servers failed to respond")

	// ErrInvalidDomain is returned when a domain name fails validation.
	ErrInvalidDomain = errors.New("mailcheck: invalid domain name")

	// ErrDNSTimeout is returned when a DNS query exceeds the configured timeout.
	ErrDNSTimeout = errors.New("mailcheck: DNS query timed out")

	// ErrInternalPanic is returned when an internal panic is recovered during execution.
	ErrInternalPanic = errors.New("mailcheck: internal panic recovered")

	// ErrNXDOMAIN is returned when the DNS server responds with NXDOMAIN (domain does not exist).
	ErrNXDOMAIN = errors.New("mailcheck: nxdomain")

	// ErrNoRecords is returned when the name exists but carries no record
	// of the requested type (NODATA).
	ErrNoRecords = errors.New("mailcheck: no records of requested type")

	// ErrServFail is returned when the DNS server answers with SERVFAIL.
	ErrServFail = errors.New("mailcheck: server failure")

	// ErrQueryRejected is returned when the query is explicitly rejected by
	// the server (Format Error, Refused, Not Implemented).
	ErrQueryRejected = errors.New("mailcheck: query rejected by server")

	// ErrProcessFailed is returned by [ProcessEngine] when the external
	// checker exits non-zero or prints something that is not JSON.
	ErrProcessFailed = errors.New("mailcheck: external checker failed")
)

// isNotFound reports whether err means "this record does not exist" as
// opposed to "the question could not be answered".
func isNotFound(err error) bool {
	return errors.Is(err, ErrNXDOMAIN) || errors.Is(err, ErrNoRecords)
}

// transient drops errors that are a definite answer from the DNS, so that
// only failures worth retrying reach the caller of a check.
func transient(err error) error {
	if err == nil || isNotFound(err) {
		return nil
	}
	return err
}
