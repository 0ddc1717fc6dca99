// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package mailcheck

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSMTPServer simulates an SMTP server on one end of a net.Pipe.
func testSMTPServer(server net.Conn, banner string, responses map[string]string) {
	defer func() { _ = server.Close() }()

	_, _ = fmt.Fprintf(server, "%s\r\n", banner)

	buf := make([]byte, 4096)
	for {
		n, err := server.Read(buf)
		if err != nil {
			return
		}
		cmd := string(buf[:n])

		for prefix, resp := range responses {
			if len(cmd) >= len(prefix) && cmd[:len(prefix)] == prefix {
				_, _ = fmt.Fprintf(server, "%s\r\n", resp)
				break
			}
		}

		if len(cmd) >= 4 && cmd[:4] == "QUIT" {
			_, _ = fmt.Fprintf(server, "221 Bye\r\n")
			return
		}
	}
}

// recordingDialer hands out pipes served by serve and remembers the
// addresses it was asked to dial.
type recordingDialer struct {
	mu        sync.Mutex
	addresses []string
	serve     func(server net.Conn)
	err       error
}

func (d *recordingDialer) DialContext(ctx context.Context, _, address string) (net.Conn, error) {
	d.mu.Lock()
	d.addresses = append(d.addresses, address)
	d.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.err != nil {
		return nil, d.err
	}
	client, server := net.Pipe()
	go d.serve(server)
	return client, nil
}

func (d *recordingDialer) dialed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.addresses...)
}

func mxZone() testZone {
	return testZone{mx: map[string][]*net.MX{
		"example.com": {
			{Host: "mx2.example.com.", Pref: 20},
			{Host: "mx1.example.com.", Pref: 10},
		},
	}}
}

func TestCheckMX(t *testing.T) {
	zone := testZone{
		mx: map[string][]*net.MX{
			"example.com": {
				{Host: "mx3.example.com.", Pref: 20},
				{Host: "b.example.com.", Pref: 10},
				{Host: "a.example.com.", Pref: 10},
			},
			"nullmx.com": {{Host: ".", Pref: 0}},
		},
		txt: map[string][]string{"nomx.com": {"v=spf1 -all"}},
	}
	f := &fakeResolver{zone: zone, errs: map[string]error{
		"servfail.com": fmt.Errorf("%w: servfail.com", ErrServFail),
	}}
	c := newFakeChecker(f)
	ctx := context.Background()

	t.Run("sorted by preference then host", func(t *testing.T) {
		res, hosts, err := c.checkMX(ctx, "example.com")
		require.NoError(t, err)
		assert.Equal(t, StatusValid, res.Status)
		assert.Equal(t, []string{"a.example.com", "b.example.com", "mx3.example.com"}, hosts)
		assert.Equal(t, "MX records found: a.example.com, b.example.com, mx3.example.com", res.Message)
		assert.Nil(t, res.Feedback)
		assert.Empty(t, res.Echo)
	})

	t.Run("null mx", func(t *testing.T) {
		res, hosts, err := c.checkMX(ctx, "nullmx.com")
		require.NoError(t, err)
		assert.Empty(t, hosts)
		assert.Equal(t, StatusMissing, res.Status)
		assert.Equal(t, "Domain does not accept mail (null MX)", res.Message)
		assert.Equal(t, "No MX records", res.Feedback.Error)
	})

	t.Run("no mx records", func(t *testing.T) {
		res, _, err := c.checkMX(ctx, "nomx.com")
		require.NoError(t, err)
		assert.Equal(t, StatusMissing, res.Status)
		assert.Equal(t, "No MX records found", res.Message)
	})

	t.Run("nxdomain", func(t *testing.T) {
		res, _, err := c.checkMX(ctx, "doesnotexist.com")
		require.NoError(t, err)
		assert.Equal(t, StatusError, res.Status)
		assert.Equal(t, "Could not resolve MX records: domain does not exist (NXDOMAIN)", res.Message)
		assert.Equal(t, "Domain could not be resolved", res.Feedback.Error)
	})

	t.Run("servfail", func(t *testing.T) {
		res, _, err := c.checkMX(ctx, "servfail.com")
		assert.ErrorIs(t, err, ErrServFail)
		assert.Equal(t, StatusError, res.Status)
	})
}

func TestMailEcho(t *testing.T) {
	ctx := context.Background()

	t.Run("successful session", func(t *testing.T) {
		d := &recordingDialer{serve: func(server net.Conn) {
			testSMTPServer(server, "220 mx1.example.com ESMTP", map[string]string{
				"EHLO": "250-mx1.example.com\r\n250 SIZE 1000",
			})
		}}
		c := newFakeChecker(&fakeResolver{zone: mxZone()}, WithDialer(d), WithHeloName("checker.test"))

		res, err := c.MailEcho(ctx, "user@Example.com")
		require.NoError(t, err)
		assert.Equal(t, StatusValid, res.Status)
		assert.Equal(t, "SMTP server mx1.example.com responded", res.Message)
		assert.Nil(t, res.Feedback)
		assert.Equal(t, "S: 220 mx1.example.com ESMTP\n"+
			"C: EHLO checker.test\n"+
			"S: 250-mx1.example.com\n"+
			"S: 250 SIZE 1000\n"+
			"C: QUIT\n"+
			"S: 221 Bye", res.Echo)
		assert.Equal(t, []string{"mx1.example.com:25"}, d.dialed())
	})

	t.Run("custom port", func(t *testing.T) {
		d := &recordingDialer{serve: func(server net.Conn) {
			testSMTPServer(server, "220 ready", map[string]string{"EHLO": "250 ok"})
		}}
		c := newFakeChecker(&fakeResolver{zone: mxZone()}, WithDialer(d), WithSMTPPort(2525))

		res, err := c.MailEcho(ctx, "example.com")
		require.NoError(t, err)
		assert.Equal(t, StatusValid, res.Status)
		assert.Equal(t, []string{"mx1.example.com:2525"}, d.dialed())
	})

	t.Run("server closes after EHLO without 221", func(t *testing.T) {
		d := &recordingDialer{serve: func(server net.Conn) {
			defer server.Close()
			_, _ = fmt.Fprintf(server, "220 ready\r\n")
			buf := make([]byte, 512)
			if _, err := server.Read(buf); err != nil {
				return
			}
			_, _ = fmt.Fprintf(server, "250 ok\r\n")
		}}
		c := newFakeChecker(&fakeResolver{zone: mxZone()}, WithDialer(d))

		res, err := c.MailEcho(ctx, "example.com")
		require.NoError(t, err)
		assert.Equal(t, StatusValid, res.Status)
		assert.Contains(t, res.Echo, "C: QUIT")
	})

	t.Run("rejecting banner has no echo", func(t *testing.T) {
		d := &recordingDialer{serve: func(server net.Conn) {
			testSMTPServer(server, "554 no service here", nil)
		}}
		c := newFakeChecker(&fakeResolver{zone: mxZone()}, WithDialer(d))

		res, err := c.MailEcho(ctx, "example.com")
		require.NoError(t, err)
		assert.Equal(t, StatusError, res.Status)
		assert.Equal(t, "SMTP server mx1.example.com refused the session: 554 no service here", res.Message)
		assert.Empty(t, res.Echo)
		assert.Equal(t, "SMTP server unreachable", res.Feedback.Error)
	})

	t.Run("connection refused", func(t *testing.T) {
		d := &recordingDialer{err: &net.OpError{
			Op:  "dial",
			Net: "tcp",
			Err: os.NewSyscallError("connect", syscall.ECONNREFUSED),
		}}
		c := newFakeChecker(&fakeResolver{zone: mxZone()}, WithDialer(d))

		res, err := c.MailEcho(ctx, "example.com")
		require.NoError(t, err)
		assert.Equal(t, StatusError, res.Status)
		assert.Equal(t, "SMTP server mx1.example.com: connection refused", res.Message)
		assert.Empty(t, res.Echo)
	})

	t.Run("silent server times out", func(t *testing.T) {
		d := &recordingDialer{serve: func(server net.Conn) {
			defer server.Close()
			_, _ = io.Copy(io.Discard, server)
		}}
		c := newFakeChecker(&fakeResolver{zone: mxZone()}, WithDialer(d), WithSMTPTimeout(100*time.Millisecond))

		start := time.Now()
		res, err := c.MailEcho(ctx, "example.com")
		require.NoError(t, err)
		assert.Less(t, time.Since(start), 5*time.Second)
		assert.Equal(t, StatusError, res.Status)
		assert.Equal(t, "SMTP server mx1.example.com: connection timed out", res.Message)
		assert.Empty(t, res.Echo)
	})

	t.Run("unreachable host", func(t *testing.T) {
		d := &recordingDialer{err: errors.New("no route to host")}
		c := newFakeChecker(&fakeResolver{zone: mxZone()}, WithDialer(d))

		res, err := c.MailEcho(ctx, "example.com")
		require.NoError(t, err)
		assert.Equal(t, "SMTP server mx1.example.com: host unreachable", res.Message)
	})

	t.Run("no mx records", func(t *testing.T) {
		d := &recordingDialer{}
		zone := testZone{txt: map[string][]string{"nomx.com": {"v=spf1 -all"}}}
		c := newFakeChecker(&fakeResolver{zone: zone}, WithDialer(d))

		res, err := c.MailEcho(ctx, "nomx.com")
		require.NoError(t, err)
		assert.Equal(t, StatusMissing, res.Status)
		assert.Empty(t, d.dialed())
	})

	t.Run("dns unavailable", func(t *testing.T) {
		f := &fakeResolver{errs: map[string]error{
			"example.com": fmt.Errorf("%w: %w", ErrAllDNSFailed, ErrDNSTimeout),
		}}
		c := newFakeChecker(f, WithDialer(&recordingDialer{}))

		res, err := c.MailEcho(ctx, "example.com")
		assert.ErrorIs(t, err, ErrAllDNSFailed)
		assert.Equal(t, StatusError, res.Status)
	})

	t.Run("invalid domain", func(t *testing.T) {
		c := newFakeChecker(&fakeResolver{})
		_, err := c.MailEcho(ctx, "not a domain")
		assert.ErrorIs(t, err, ErrInvalidDomain)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		d := &recordingDialer{serve: func(server net.Conn) { _ = server.Close() }}
		c := newFakeChecker(&fakeResolver{zone: mxZone()}, WithDialer(d))

		res, err := c.MailEcho(cctx, "example.com")
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, StatusError, res.Status)
	})
}
