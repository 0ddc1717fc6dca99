// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package mailcheck

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// maxReplyLines caps multiline SMTP replies.
const maxReplyLines = 256

// smtpReplyError is an SMTP reply with an unexpected code.
type smtpReplyError struct {
	stage string
	code  int
	text  string
}

func (e *smtpReplyError) Error() string {
	return fmt.Sprintf("%s: unexpected reply %d %s", e.stage, e.code, e.text)
}

// transcript accumulates the SMTP dialogue. Server lines are prefixed
// "S: " and client lines "C: ".
type transcript struct {
	lines []string
}

func (t *transcript) server(line string) { t.lines = append(t.lines, "S: "+line) }
func (t *transcript) client(line string) { t.lines = append(t.lines, "C: "+line) }
func (t *transcript) String() string     { return strings.Join(t.lines, "\n") }

// smtpEcho dials address and runs the greeting, EHLO and QUIT exchange.
// The transcript is returned even on error once the greeting was read.
func (c *Checker) smtpEcho(ctx context.Context, address string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.smtpTimeout)
	defer cancel()

	conn, err := c.dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return "", fmt.Errorf("dial %s: %w", address, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	// Unblock reads when the caller goes away.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	var t transcript
	tp := textproto.NewConn(conn)

	code, err := readReply(tp, &t)
	if err != nil {
		return "", fmt.Errorf("read banner: %w", err)
	}
	if code != 220 {
		return t.String(), &smtpReplyError{stage: "banner", code: code, text: lastLine(t)}
	}

	ehlo := "EHLO " + c.heloName
	t.client(ehlo)
	if err := tp.PrintfLine("%s", ehlo); err != nil {
		return t.String(), fmt.Errorf("send EHLO: %w", err)
	}
	if _, err := readReply(tp, &t); err != nil {
		return t.String(), fmt.Errorf("read EHLO reply: %w", err)
	}

	t.client("QUIT")
	if err := tp.PrintfLine("QUIT"); err != nil {
		return t.String(), nil
	}
	// Some servers drop the connection without a 221.
	_, _ = readReply(tp, &t)

	return t.String(), nil
}

// readReply reads one possibly multiline SMTP reply into t and returns its
// code.
func readReply(tp *textproto.Conn, t *transcript) (int, error) {
	for i := 0; i < maxReplyLines; i++ {
		line, err := tp.ReadLine()
		if err != nil {
			return 0, err
		}
		t.server(line)

		if len(line) < 3 {
			return 0, fmt.Errorf("short reply line %q", line)
		}
		code, err := strconv.Atoi(line[:3])
		if err != nil {
			return 0, fmt.Errorf("malformed reply line %q", line)
		}
		if len(line) == 3 || line[3] != '-' {
			return code, nil
		}
	}
	return 0, errors.New("reply too long")
}

func lastLine(t transcript) string {
	if len(t.lines) == 0 {
		return ""
	}
	line := strings.TrimPrefix(t.lines[len(t.lines)-1], "S: ")
	if len(line) > 4 {
		return line[4:]
	}
	return ""
}

// smtpCondition names the network condition behind an SMTP failure.
func smtpCondition(err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return "connection refused"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrDNSTimeout),
		errors.As(err, &netErr) && netErr.Timeout():
		return "connection timed out"
	case errors.Is(err, context.Canceled):
		return "probe cancelled"
	default:
		return "host unreachable"
	}
}

// smtpFailure is the mail echo result for a failed SMTP session. It
// never carries a transcript; an SMTP refusal is quoted in the message.
func smtpFailure(host string, err error) MailEchoResult {
	res := MailEchoResult{
		Status:   StatusError,
		Feedback: feedbackFor(feedbackSMTPUnreachable),
	}

	var replyErr *smtpReplyError
	if errors.As(err, &replyErr) {
		res.Message = fmt.Sprintf("SMTP server %s refused the session: %d %s", host, replyErr.code, replyErr.text)
		return res
	}

	res.Message = fmt.Sprintf("SMTP server %s: %s", host, smtpCondition(err))
	return res
}
