// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Command mailcheck checks the SPF, DKIM, DMARC and MX setup of domains,
// probes mail servers over SMTP, and serves both over HTTP.
//
//	mailcheck check example.com
//	mailcheck echo example.com
//	mailcheck serve --config mailcheck.yaml
//
// The check and echo commands print one JSON document on standard output
// and exit non-zero with the reason on standard error when they fail, so
// the binary can back a [mailcheck.ProcessEngine].
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "mailcheck:", err)
		stop()
		os.Exit(1)
	}
}
