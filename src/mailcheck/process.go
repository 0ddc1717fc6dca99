// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package mailcheck

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// ProcessEngine is an [Engine] backed by an external program.
//
// The program is started with the configured arguments followed by the
// normalized domain. It must print a single JSON document on standard
// output and exit 0; for CheckDomain the document is a [CheckResultData],
// for MailEcho it is {"mail_echo": MailEchoResult}. A non-zero exit or
// output that is not JSON fails the call with [ErrProcessFailed], carrying
// the program's standard error text.
//
// The mailcheck binary itself satisfies this contract:
//
//	e := mailcheck.NewProcessEngine("mailcheck")
type ProcessEngine struct {
	path      string
	checkArgs []string
	echoArgs  []string
	logger    *slog.Logger
}

var _ Engine = (*ProcessEngine)(nil)

// ProcessOption configures a [ProcessEngine].
type ProcessOption func(*ProcessEngine)

// WithCheckArgs sets the arguments placed before the domain for
// CheckDomain. The default is "check".
func WithCheckArgs(args ...string) ProcessOption {
	return func(e *ProcessEngine) {
		e.checkArgs = args
	}
}

// WithEchoArgs sets the arguments placed before the domain for MailEcho.
// The default is "echo".
func WithEchoArgs(args ...string) ProcessOption {
	return func(e *ProcessEngine) {
		e.echoArgs = args
	}
}

// WithProcessLogger sets the logger for failed runs.
// The default is [slog.Default].
func WithProcessLogger(l *slog.Logger) ProcessOption {
	return func(e *ProcessEngine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewProcessEngine creates a [ProcessEngine] running the program at path.
func NewProcessEngine(path string, opts ...ProcessOption) *ProcessEngine {
	e := &ProcessEngine{
		path:      path,
		checkArgs: []string{"check"},
		echoArgs:  []string{"echo"},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CheckDomain runs the program and decodes its report.
func (e *ProcessEngine) CheckDomain(ctx context.Context, domain string) (CheckResultData, error) {
	var data CheckResultData
	if err := e.run(ctx, e.checkArgs, domain, &data); err != nil {
		return CheckResultData{}, err
	}
	return data, nil
}

// MailEcho runs the program in echo mode and decodes its result.
func (e *ProcessEngine) MailEcho(ctx context.Context, domain string) (MailEchoResult, error) {
	var out struct {
		MailEcho MailEchoResult `json:"mail_echo"`
	}
	if err := e.run(ctx, e.echoArgs, domain, &out); err != nil {
		return MailEchoResult{}, err
	}
	return out.MailEcho, nil
}

func (e *ProcessEngine) run(ctx context.Context, args []string, domain string, v any) error {
	name, err := NormalizeDomain(domain)
	if err != nil {
		return err
	}

	argv := make([]string, 0, len(args)+1)
	argv = append(argv, args...)
	argv = append(argv, name)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.path, argv...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		reason := strings.TrimSpace(stderr.String())
		if reason == "" {
			reason = err.Error()
		}
		e.logger.Debug("external checker failed",
			slog.String("path", e.path),
			slog.String("domain", name),
			slog.Any("error", err))
		return fmt.Errorf("%w: %s", ErrProcessFailed, reason)
	}

	if err := json.Unmarshal(stdout.Bytes(), v); err != nil {
		reason := strings.TrimSpace(stderr.String())
		if reason == "" {
			reason = "invalid JSON output: " + err.Error()
		}
		return fmt.Errorf("%w: %s", ErrProcessFailed, reason)
	}
	return nil
}
