// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package store persists check results in SQLite.
//
// A user has at most one record per domain: checking the same domain
// again replaces the stored result and bumps UpdatedAt, keeping the
// record ID and CreatedAt.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/felixrowen/mail-checker/src/mailcheck"
)

var (
	// ErrNotFound is returned when no record matches the user and ID.
	ErrNotFound = errors.New("store: record not found")

	// ErrInvalidRecord is returned when the user or domain is empty.
	ErrInvalidRecord = errors.New("store: user and domain are required")
)

// CheckRecord is a stored check result.
type CheckRecord struct {
	ID        string                    `json:"id"`
	Domain    string                    `json:"domain"`
	Result    mailcheck.CheckResultData `json:"result"`
	UserID    string                    `json:"userId"`
	CreatedAt time.Time                 `json:"createdAt"`
	UpdatedAt time.Time                 `json:"updatedAt"`
}

// Store reads and writes check records.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore wraps an open database. The schema must already exist, see
// [Migrator].
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Open opens the SQLite database at path, applies the migrations, and
// returns a ready [Store].
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	// busy_timeout is per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}

	if err := NewMigrator(db).Up(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return NewStore(db), nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores result as the latest check of domain by userID.
//
// An existing record for the pair is overwritten in place.
func (s *Store) Save(ctx context.Context, userID, domain string, result mailcheck.CheckResultData) (CheckRecord, error) {
	if userID == "" || domain == "" {
		return CheckRecord{}, ErrInvalidRecord
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return CheckRecord{}, fmt.Errorf("encode result: %w", err)
	}

	now := s.now().UnixMilli()
	rec := CheckRecord{Domain: domain, UserID: userID, Result: result}

	var created, updated int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO check_records(id, domain, user_id, result_json, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?)
		ON CONFLICT(domain, user_id) DO UPDATE SET
			result_json=excluded.result_json,
			updated_at=excluded.updated_at
		RETURNING id, created_at, updated_at
	`, uuid.NewString(), domain, userID, string(payload), now, now).Scan(&rec.ID, &created, &updated)
	if err != nil {
		return CheckRecord{}, fmt.Errorf("upsert check record: %w", err)
	}

	rec.CreatedAt = fromMillis(created)
	rec.UpdatedAt = fromMillis(updated)
	return rec, nil
}

// ListByUser returns the records of userID, most recently updated first.
// The slice is empty, not nil, when the user has no records.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]CheckRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, domain, user_id, result_json, created_at, updated_at
		FROM check_records
		WHERE user_id = ?
		ORDER BY updated_at DESC, domain ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query check records: %w", err)
	}
	defer rows.Close()

	records := make([]CheckRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate check records: %w", err)
	}
	return records, nil
}

// Get returns the record id owned by userID.
func (s *Store) Get(ctx context.Context, userID, id string) (CheckRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, domain, user_id, result_json, created_at, updated_at
		FROM check_records
		WHERE user_id = ? AND id = ?
		LIMIT 1
	`, userID, id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return CheckRecord{}, ErrNotFound
	}
	return rec, err
}

// Delete removes the record id owned by userID.
func (s *Store) Delete(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM check_records
		WHERE user_id = ? AND id = ?
	`, userID, id)
	if err != nil {
		return fmt.Errorf("delete check record %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete check record %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (CheckRecord, error) {
	var (
		rec              CheckRecord
		payload          string
		created, updated int64
	)
	if err := row.Scan(&rec.ID, &rec.Domain, &rec.UserID, &payload, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CheckRecord{}, err
		}
		return CheckRecord{}, fmt.Errorf("scan check record: %w", err)
	}

	if err := json.Unmarshal([]byte(payload), &rec.Result); err != nil {
		return CheckRecord{}, fmt.Errorf("decode result of %s: %w", rec.ID, err)
	}

	rec.CreatedAt = fromMillis(created)
	rec.UpdatedAt = fromMillis(updated)
	return rec, nil
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
