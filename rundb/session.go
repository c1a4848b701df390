// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rundb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-lpc/trng/acq"
	"github.com/rs/xid"
)

// Outcome kinds stored in the outcomes table.
const (
	KindOK         = "ok"
	KindSuspicious = "suspicious"
	KindAnomaly    = "anomaly"
)

// Info describes a new acquisition session.
type Info struct {
	Host   string
	Bridge string    // bridge description, e.g. "usb:1209:5bf0"
	Start  time.Time // defaults to time.Now()
}

// Session records the outcomes of an acquisition session.
// Session implements acq.Sink: the first database error is retained, later
// records are dropped and the error is reported by Err and Close.
type Session struct {
	db  *DB
	id  xid.ID
	now func() time.Time

	mu  sync.Mutex
	seq int64
	err error
}

// Begin creates a new session row.
func (db *DB) Begin(ctx context.Context, info Info) (*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if info.Start.IsZero() {
		info.Start = time.Now().UTC()
	}

	s := &Session{
		db:  db,
		id:  xid.NewWithTime(info.Start),
		now: func() time.Time { return time.Now().UTC() },
	}

	_, err := db.db.ExecContext(
		ctx,
		"INSERT INTO sessions (id, host, bridge, started) VALUES (?, ?, ?, ?)",
		s.id.String(), info.Host, info.Bridge, info.Start,
	)
	if err != nil {
		return nil, fmt.Errorf("rundb: could not create session: %w", err)
	}

	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id.String() }

func (s *Session) RecordOK(block int) {
	s.record(KindOK, block, "")
}

func (s *Session) RecordSuspicious(block int, raw []byte) {
	s.record(KindSuspicious, block, fmt.Sprintf("%d bytes suppressed", len(raw)))
}

func (s *Session) RecordAnomaly(msg string) {
	s.record(KindAnomaly, -1, msg)
}

func (s *Session) record(kind string, block int, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.seq++
	_, err := s.db.db.ExecContext(
		ctx,
		"INSERT INTO outcomes (session, seq, kind, block, msg, at) VALUES (?, ?, ?, ?, ?, ?)",
		s.id.String(), s.seq, kind, block, msg, s.now(),
	)
	if err != nil {
		s.err = fmt.Errorf("rundb: could not record %s outcome %d: %w", kind, s.seq, err)
	}
}

// Err returns the first error encountered while recording outcomes.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stamps the end of the session with the final loop counters.
func (s *Session) Close(ctx context.Context, stats acq.Stats) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.db.ExecContext(
		ctx,
		`UPDATE sessions SET stopped=?, cycles=?, accepted=?, suspicious=?, duplicates=?, io_errors=?, forced=?
WHERE id=?`,
		s.now(), stats.Cycles, stats.Accepted, stats.Suspicious,
		stats.Duplicates, stats.IOErrors, stats.Forced,
		s.id.String(),
	)
	if err != nil {
		return fmt.Errorf("rundb: could not close session %s: %w", s.id, err)
	}
	return s.err
}

var (
	_ acq.Sink = (*Session)(nil)
)
