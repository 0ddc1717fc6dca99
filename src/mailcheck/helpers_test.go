// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package mailcheck

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"
)

// startTestDNSServer starts a local DNS server that responds with configurable answers.
// It returns the server address (ip:port) and a cleanup function.
func startTestDNSServer(t *testing.T, handler dns.HandlerFunc) (string, func()) {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err, "failed to listen")

	server := &dns.Server{
		PacketConn: pc,
		Handler:    handler,
	}

	started := make(chan struct{})
	go func() {
		server.NotifyStartedFunc = func() { close(started) }
		if err := server.ActivateAndServe(); err != nil {
			// Server shutdown is expected after started.
			select {
			case <-started:
			default:
				t.Logf("DNS server error: %v", err)
			}
		}
	}()

	<-started
	addr := pc.LocalAddr().String()

	return addr, func() {
		_ = server.Shutdown()
	}
}

// testZone is a tiny authoritative data set. Names are lowercase without
// the trailing dot. A name that appears in no map does not exist.
type testZone struct {
	txt map[string][]string
	mx  map[string][]*net.MX
}

func (z testZone) exists(name string) bool {
	if _, ok := z.txt[name]; ok {
		return true
	}
	_, ok := z.mx[name]
	return ok
}

// handler answers queries from the zone.
func (z testZone) handler() dns.HandlerFunc {
	return func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)

		q := r.Question[0]
		name := strings.TrimSuffix(strings.ToLower(q.Name), ".")
		if !z.exists(name) {
			m.Rcode = dns.RcodeNameError
			_ = w.WriteMsg(m)
			return
		}

		hdr := dns.RR_Header{Name: q.Name, Rrtype: q.Qtype, Class: dns.ClassINET, Ttl: 60}
		switch q.Qtype {
		case dns.TypeTXT:
			for _, txt := range z.txt[name] {
				m.Answer = append(m.Answer, &dns.TXT{Hdr: hdr, Txt: splitTXT(txt)})
			}
		case dns.TypeMX:
			for _, mx := range z.mx[name] {
				m.Answer = append(m.Answer, &dns.MX{Hdr: hdr, Preference: mx.Pref, Mx: dns.Fqdn(mx.Host)})
			}
		}
		_ = w.WriteMsg(m)
	}
}

// splitTXT cuts a value into 255-byte character strings.
func splitTXT(s string) []string {
	var parts []string
	for len(s) > 255 {
		parts = append(parts, s[:255])
		s = s[255:]
	}
	return append(parts, s)
}

// fakeResolver is a map-backed [Resolver] with the same not-found
// semantics as testZone.
type fakeResolver struct {
	zone testZone

	// errs fails lookups of a name with the given error.
	errs map[string]error

	// panicOn panics when the name is looked up.
	panicOn string

	mu      sync.Mutex
	queries []string
	calls   atomic.Int32
}

func (f *fakeResolver) record(kind, name string) error {
	f.calls.Add(1)
	f.mu.Lock()
	f.queries = append(f.queries, kind+" "+name)
	f.mu.Unlock()

	if name == f.panicOn {
		panic("resolver exploded on " + name)
	}
	if err, ok := f.errs[name]; ok {
		return err
	}
	if !f.zone.exists(name) {
		return fmt.Errorf("%w: %s", ErrNXDOMAIN, name)
	}
	return nil
}

func (f *fakeResolver) LookupTXT(_ context.Context, name string) ([]string, error) {
	if err := f.record("TXT", name); err != nil {
		return nil, err
	}
	txts := f.zone.txt[name]
	if len(txts) == 0 {
		return nil, fmt.Errorf("%w: TXT %s", ErrNoRecords, name)
	}
	return append([]string(nil), txts...), nil
}

func (f *fakeResolver) LookupMX(_ context.Context, name string) ([]*net.MX, error) {
	if err := f.record("MX", name); err != nil {
		return nil, err
	}
	records := f.zone.mx[name]
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: MX %s", ErrNoRecords, name)
	}
	out := make([]*net.MX, len(records))
	for i, mx := range records {
		copied := *mx
		out[i] = &copied
	}
	return out, nil
}

// dialFunc adapts a function to [Dialer].
type dialFunc func(ctx context.Context, network, address string) (net.Conn, error)

func (f dialFunc) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return f(ctx, network, address)
}

// rsaPublicKeyTag returns a base64 SubjectPublicKeyInfo for a p= tag.
// Keys below 1024 bits are built by hand since GenerateKey refuses them.
func rsaPublicKeyTag(t *testing.T, bits int) string {
	t.Helper()

	var pub *rsa.PublicKey
	if bits >= 1024 {
		key, err := rsa.GenerateKey(rand.Reader, bits)
		require.NoError(t, err)
		pub = &key.PublicKey
	} else {
		n, err := rand.Prime(rand.Reader, bits)
		require.NoError(t, err)
		pub = &rsa.PublicKey{N: n, E: 65537}
	}

	der, err := x509.MarshalPKIXPublicKey(pub)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(der)
}
