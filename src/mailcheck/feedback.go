// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package mailcheck

// feedbackKind identifies an entry of the remediation table.
type feedbackKind int

const (
	feedbackUnresolvable feedbackKind = iota
	feedbackInternal

	feedbackSPFMissing
	feedbackSPFTooManyLookups
	feedbackSPFPlusAll
	feedbackSPFNoAll
	feedbackSPFMultiple
	feedbackSPFInvalid

	feedbackDKIMMissing
	feedbackDKIMMalformed
	feedbackDKIMKeyTooShort
	feedbackDKIMRevoked

	feedbackDMARCMissing
	feedbackDMARCWeakPolicy
	feedbackDMARCMalformed
	feedbackDMARCMultiple

	feedbackMXMissing
	feedbackSMTPUnreachable
)

var feedbackTable = map[feedbackKind]Feedback{
	feedbackUnresolvable: {
		Error: "Domain could not be resolved",
		Fix:   "Check that the domain is registered and its nameservers answer queries, then try again.",
	},
	feedbackInternal: {
		Error: "Check could not be completed",
		Fix:   "Try again later. If the problem persists, report it with the domain name.",
	},

	feedbackSPFMissing: {
		Error: "No SPF record",
		Fix:   "Add v=spf1 record in DNS. Example: v=spf1 include:_spf.google.com ~all",
	},
	feedbackSPFTooManyLookups: {
		Error: "Too many DNS lookups",
		Fix:   "Reduce includes. Use ip4: or ip6: directly. Use SPF flattening.",
	},
	feedbackSPFPlusAll: {
		Error: "Use of +all",
		Fix:   "Replace +all with ~all (soft fail) or -all (hard fail).",
	},
	feedbackSPFNoAll: {
		Error: "Mechanism not ending with ~all or -all",
		Fix:   "Always end SPF with one: ~all (soft fail) or -all (hard fail).",
	},
	feedbackSPFMultiple: {
		Error: "Multiple SPF records",
		Fix:   "Combine into a single record. Only one v=spf1 allowed.",
	},
	feedbackSPFInvalid: {
		Error: "Invalid mechanisms",
		Fix:   "Validate syntax: v=spf1 ip4:xxx.xxx.xxx.xxx include:example.com -all",
	},

	feedbackDKIMMissing: {
		Error: "Missing DKIM record",
		Fix:   "Generate DKIM key, add public part in DNS under selector._domainkey.yourdomain.com",
	},
	feedbackDKIMMalformed: {
		Error: "Malformed record",
		Fix:   "Use DNS tools or validators to verify the TXT is formatted correctly.",
	},
	feedbackDKIMKeyTooShort: {
		Error: "Key too short (<1024)",
		Fix:   "Use at least 1024-bit (2048-bit recommended) RSA keys.",
	},
	feedbackDKIMRevoked: {
		Error: "Revoked key",
		Fix:   "Remove the selector from DNS or publish a new public key under it.",
	},

	feedbackDMARCMissing: {
		Error: "No DMARC record",
		Fix:   "Add one like: v=DMARC1; p=none; rua=mailto:dmarc@example.com",
	},
	feedbackDMARCWeakPolicy: {
		Error: "Policy too weak (p=none)",
		Fix:   "Change to quarantine or reject when ready.",
	},
	feedbackDMARCMalformed: {
		Error: "Malformed syntax",
		Fix:   "Validate using DMARC analyzer tools.",
	},
	feedbackDMARCMultiple: {
		Error: "Multiple DMARC records",
		Fix:   "Publish exactly one v=DMARC1 TXT record at _dmarc.yourdomain.com.",
	},

	feedbackMXMissing: {
		Error: "No MX records",
		Fix:   "Add MX records pointing to the servers that receive mail for the domain.",
	},
	feedbackSMTPUnreachable: {
		Error: "SMTP server unreachable",
		Fix:   "Make sure the mail server accepts connections on port 25 and is not blocked by a firewall.",
	},
}

// feedbackFor returns a fresh copy of the table entry for kind.
func feedbackFor(kind feedbackKind) *Feedback {
	fb, ok := feedbackTable[kind]
	if !ok {
		fb = feedbackTable[feedbackInternal]
	}
	return &fb
}
