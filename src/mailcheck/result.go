// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package mailcheck

// Status is the outcome of a single sub-check.
//
// The same closed vocabulary is used for SPF, DKIM, DMARC and mail echo.
// Only [StatusValid] is a good state; every other status carries [Feedback].
type Status string

const (
	StatusValid   Status = "valid"
	StatusMissing Status = "missing"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

// Message markers that presentation layers split on to recover raw data.
const (
	DMARCMarker = "DMARC record found:"
	MXMarker    = "MX records found:"
)

// Feedback is a human-readable remediation hint.
type Feedback struct {
	Error string `json:"error"`
	Fix   string `json:"fix"`
}

// SPFLookup is one DNS-consuming SPF term met while walking the record tree.
type SPFLookup struct {
	Type      string `json:"type"`
	Domain    string `json:"domain"`
	Mechanism string `json:"mechanism"`
}

// SPFResult is the SPF part of a report.
type SPFResult struct {
	Record      string      `json:"record"`
	Status      Status      `json:"status"`
	Lookups     []SPFLookup `json:"lookups"`
	LookupCount int         `json:"lookup_count"`
	Message     string      `json:"message"`
	Feedback    *Feedback   `json:"feedback,omitempty"`
}

// DKIMRecord is a DKIM key record found under a selector.
type DKIMRecord struct {
	Selector string `json:"selector"`
	Record   string `json:"record"`
}

// DKIMResult is the DKIM part of a report.
type DKIMResult struct {
	Status   Status       `json:"status"`
	Message  string       `json:"message"`
	Records  []DKIMRecord `json:"records"`
	Feedback *Feedback    `json:"feedback,omitempty"`
}

// DMARCResult is the DMARC part of a report.
//
// When a record exists, Message ends with the raw record text after
// [DMARCMarker].
type DMARCResult struct {
	Status   Status    `json:"status"`
	Message  string    `json:"message"`
	Policy   string    `json:"policy,omitempty"`
	Feedback *Feedback `json:"feedback,omitempty"`
}

// MailEchoResult is the mail server part of a report, and the result of
// the live SMTP probe.
//
// Echo is only set by [Checker.MailEcho] after a successful SMTP dialogue.
type MailEchoResult struct {
	Status   Status    `json:"status"`
	Message  string    `json:"message"`
	Feedback *Feedback `json:"feedback,omitempty"`
	Echo     string    `json:"echo,omitempty"`
}

// CheckResultData is the full report for one domain.
type CheckResultData struct {
	SPF      SPFResult      `json:"spf"`
	DKIM     DKIMResult     `json:"dkim"`
	DMARC    DMARCResult    `json:"dmarc"`
	MailEcho MailEchoResult `json:"mail_echo"`
}

// Report is the outcome of checking a single domain with [Checker.Check].
type Report struct {
	// Domain is the normalized domain name that was checked.
	Domain string

	// Result holds all four sub-check results. It is populated even
	// when Error is set, unless the input itself was invalid.
	Result CheckResultData

	// Error is non-nil for invalid input, cancellation, or when no DNS
	// server could be reached at all.
	Error error
}

// ServerStatus represents the health status of a single DNS server.
type ServerStatus struct {
	// Server is the DNS server address.
	Server string

	// Online indicates whether the server is responding to queries.
	Online bool

	// LatencyMs is the round-trip time in milliseconds.
	// Only meaningful when Online is true.
	LatencyMs int64

	// Error is non-nil if the health check failed.
	Error error
}

// DNSServer is a recursive resolver used for all lookups.
type DNSServer struct {
	// Address is the IP address of the DNS server, with optional port.
	Address string

	// Name is a free-form label used in logs and status output.
	Name string
}
