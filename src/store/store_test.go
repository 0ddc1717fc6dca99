// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixrowen/mail-checker/src/mailcheck"
)

// openTestStore opens a store in a temporary file whose clock advances
// one second per call.
func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "checks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s
}

func sampleResult(spf mailcheck.Status) mailcheck.CheckResultData {
	return mailcheck.CheckResultData{
		SPF: mailcheck.SPFResult{
			Record:      "v=spf1 include:_spf.example.net -all",
			Status:      spf,
			Lookups:     []mailcheck.SPFLookup{{Type: "include", Domain: "_spf.example.net", Mechanism: "include:_spf.example.net"}},
			LookupCount: 1,
			Message:     "SPF record found: v=spf1 include:_spf.example.net -all",
		},
		DKIM: mailcheck.DKIMResult{
			Status:   mailcheck.StatusMissing,
			Message:  "No DKIM record found",
			Feedback: &mailcheck.Feedback{Error: "Missing DKIM record", Fix: "Publish a key"},
		},
		DMARC: mailcheck.DMARCResult{
			Status:  mailcheck.StatusValid,
			Message: mailcheck.DMARCMarker + " v=DMARC1; p=reject",
			Policy:  "reject",
		},
		MailEcho: mailcheck.MailEchoResult{
			Status:  mailcheck.StatusValid,
			Message: mailcheck.MXMarker + " mx.example.com",
		},
	}
}

func TestOpenMigratesIdempotently(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, NewMigrator(s.db).Up(context.Background()), "second run")

	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM check_records`).Scan(&n)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMigratorCancelled(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, NewMigrator(s.db).Up(ctx), context.Canceled)
}

func TestSaveCreates(t *testing.T) {
	s := openTestStore(t)
	result := sampleResult(mailcheck.StatusValid)

	rec, err := s.Save(context.Background(), "user-1", "example.com", result)
	require.NoError(t, err)

	_, err = uuid.Parse(rec.ID)
	assert.NoError(t, err, "id is a uuid")
	assert.Equal(t, "example.com", rec.Domain)
	assert.Equal(t, "user-1", rec.UserID)
	assert.Equal(t, result, rec.Result)
	assert.True(t, rec.CreatedAt.Equal(rec.UpdatedAt))

	got, err := s.Get(context.Background(), "user-1", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, result, got.Result)
	assert.True(t, got.CreatedAt.Equal(rec.CreatedAt))
}

func TestSaveOverwritesSameDomainAndUser(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first, err := s.Save(ctx, "user-1", "example.com", sampleResult(mailcheck.StatusValid))
	require.NoError(t, err)

	second, err := s.Save(ctx, "user-1", "example.com", sampleResult(mailcheck.StatusWarning))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.CreatedAt.Equal(first.CreatedAt), "createdAt is kept")
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt), "updatedAt is bumped")

	records, err := s.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, records, 1, "no duplicate rows")
	assert.Equal(t, mailcheck.StatusWarning, records[0].Result.SPF.Status)
}

func TestSaveSeparatesUsers(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a, err := s.Save(ctx, "user-1", "example.com", sampleResult(mailcheck.StatusValid))
	require.NoError(t, err)
	b, err := s.Save(ctx, "user-2", "example.com", sampleResult(mailcheck.StatusValid))
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
}

func TestSaveInvalid(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Save(context.Background(), "", "example.com", mailcheck.CheckResultData{})
	assert.ErrorIs(t, err, ErrInvalidRecord)

	_, err = s.Save(context.Background(), "user-1", "", mailcheck.CheckResultData{})
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestListByUserOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, domain := range []string{"a.example", "b.example", "c.example"} {
		_, err := s.Save(ctx, "user-1", domain, sampleResult(mailcheck.StatusValid))
		require.NoError(t, err)
	}
	_, err := s.Save(ctx, "user-2", "z.example", sampleResult(mailcheck.StatusValid))
	require.NoError(t, err)

	// Re-checking moves a domain to the front.
	_, err = s.Save(ctx, "user-1", "a.example", sampleResult(mailcheck.StatusValid))
	require.NoError(t, err)

	records, err := s.ListByUser(ctx, "user-1")
	require.NoError(t, err)

	domains := make([]string, 0, len(records))
	for _, r := range records {
		domains = append(domains, r.Domain)
		assert.Equal(t, "user-1", r.UserID)
	}
	assert.Equal(t, []string{"a.example", "c.example", "b.example"}, domains)
}

func TestListByUserEmpty(t *testing.T) {
	s := openTestStore(t)

	records, err := s.ListByUser(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestGetNotFound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec, err := s.Save(ctx, "user-1", "example.com", sampleResult(mailcheck.StatusValid))
	require.NoError(t, err)

	_, err = s.Get(ctx, "user-2", rec.ID)
	assert.ErrorIs(t, err, ErrNotFound, "records are scoped to their owner")

	_, err = s.Get(ctx, "user-1", uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec, err := s.Save(ctx, "user-1", "example.com", sampleResult(mailcheck.StatusValid))
	require.NoError(t, err)

	assert.ErrorIs(t, s.Delete(ctx, "user-2", rec.ID), ErrNotFound)
	require.NoError(t, s.Delete(ctx, "user-1", rec.ID))
	assert.ErrorIs(t, s.Delete(ctx, "user-1", rec.ID), ErrNotFound)

	records, err := s.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCorruptResult(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec, err := s.Save(ctx, "user-1", "example.com", sampleResult(mailcheck.StatusValid))
	require.NoError(t, err)

	_, err = s.db.Exec(`UPDATE check_records SET result_json = '{' WHERE id = ?`, rec.ID)
	require.NoError(t, err)

	_, err = s.Get(ctx, "user-1", rec.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode result")
}

func TestCancelledContext(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Save(ctx, "user-1", "example.com", sampleResult(mailcheck.StatusValid))
	assert.Error(t, err)

	_, err = s.ListByUser(ctx, "user-1")
	assert.Error(t, err)
}
