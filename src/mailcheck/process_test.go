// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package mailcheck

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helperEnv = "MAILCHECK_WANT_HELPER_PROCESS"

// TestHelperProcess is not a real test. It plays the external checker for
// the ProcessEngine tests when re-executed by them.
func TestHelperProcess(t *testing.T) {
	if os.Getenv(helperEnv) != "1" {
		return
	}

	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: -- <mode> <domain>")
		os.Exit(2)
	}
	mode, domain := args[1], args[2]

	switch domain {
	case "fail.com":
		fmt.Fprintln(os.Stderr, "resolver exploded")
		os.Exit(3)
	case "silent-fail.com":
		os.Exit(4)
	case "garbage.com":
		fmt.Print("this is not json")
		os.Exit(0)
	case "slow.com":
		time.Sleep(30 * time.Second)
		os.Exit(0)
	}

	var out any
	switch mode {
	case "check":
		out = CheckResultData{
			SPF:      SPFResult{Status: StatusValid, Record: "v=spf1 -all", Message: "SPF record found: v=spf1 -all", Lookups: []SPFLookup{}},
			DKIM:     DKIMResult{Status: StatusMissing, Message: "No DKIM records found for common selectors", Records: []DKIMRecord{}},
			DMARC:    DMARCResult{Status: StatusValid, Message: DMARCMarker + " v=DMARC1; p=reject", Policy: "reject"},
			MailEcho: MailEchoResult{Status: StatusValid, Message: MXMarker + " mx." + domain},
		}
	case "echo":
		out = map[string]MailEchoResult{
			"mail_echo": {Status: StatusValid, Message: "SMTP server mx." + domain + " responded", Echo: "S: 220 hi"},
		}
	default:
		fmt.Fprintln(os.Stderr, "unknown mode", mode)
		os.Exit(2)
	}
	_ = json.NewEncoder(os.Stdout).Encode(out)
	os.Exit(0)
}

func newHelperEngine(t *testing.T) *ProcessEngine {
	t.Helper()
	if runtime.GOOS == "js" || runtime.GOOS == "wasip1" {
		t.Skip("cannot execute subprocesses on " + runtime.GOOS)
	}
	t.Setenv(helperEnv, "1")
	return NewProcessEngine(os.Args[0],
		WithCheckArgs("-test.run=^TestHelperProcess$", "--", "check"),
		WithEchoArgs("-test.run=^TestHelperProcess$", "--", "echo"),
	)
}

func TestProcessEngineCheckDomain(t *testing.T) {
	e := newHelperEngine(t)
	ctx := context.Background()

	t.Run("decodes report", func(t *testing.T) {
		data, err := e.CheckDomain(ctx, "https://www.Example.com/")
		require.NoError(t, err)
		assert.Equal(t, StatusValid, data.SPF.Status)
		assert.Equal(t, "v=spf1 -all", data.SPF.Record)
		assert.Equal(t, StatusMissing, data.DKIM.Status)
		assert.Equal(t, "reject", data.DMARC.Policy)
		assert.Equal(t, MXMarker+" mx.example.com", data.MailEcho.Message, "domain is normalized before the run")
	})

	t.Run("non-zero exit carries stderr", func(t *testing.T) {
		_, err := e.CheckDomain(ctx, "fail.com")
		require.ErrorIs(t, err, ErrProcessFailed)
		assert.Contains(t, err.Error(), "resolver exploded")
	})

	t.Run("non-zero exit without stderr", func(t *testing.T) {
		_, err := e.CheckDomain(ctx, "silent-fail.com")
		require.ErrorIs(t, err, ErrProcessFailed)
		assert.Contains(t, err.Error(), "exit status 4")
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := e.CheckDomain(ctx, "garbage.com")
		require.ErrorIs(t, err, ErrProcessFailed)
		assert.Contains(t, err.Error(), "invalid JSON output")
	})

	t.Run("invalid domain is not executed", func(t *testing.T) {
		_, err := e.CheckDomain(ctx, "not a domain")
		assert.ErrorIs(t, err, ErrInvalidDomain)
	})

	t.Run("context deadline kills the program", func(t *testing.T) {
		cctx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
		defer cancel()

		start := time.Now()
		_, err := e.CheckDomain(cctx, "slow.com")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), 20*time.Second)
	})

	t.Run("missing program", func(t *testing.T) {
		missing := NewProcessEngine("/nonexistent/mailcheck-binary")
		_, err := missing.CheckDomain(ctx, "example.com")
		assert.ErrorIs(t, err, ErrProcessFailed)
	})
}

func TestProcessEngineMailEcho(t *testing.T) {
	e := newHelperEngine(t)

	res, err := e.MailEcho(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, StatusValid, res.Status)
	assert.Equal(t, "SMTP server mx.example.com responded", res.Message)
	assert.Equal(t, "S: 220 hi", res.Echo)
}
