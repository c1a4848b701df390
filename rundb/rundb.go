// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rundb records acquisition sessions and their per-cycle outcomes
// into a SQL database (MySQL or SQLite).
package rundb // import "github.com/go-lpc/trng/rundb"

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

const timeout = 5 * time.Second

var schema = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
	id         VARCHAR(20) NOT NULL PRIMARY KEY,
	host       VARCHAR(255) NOT NULL,
	bridge     VARCHAR(255) NOT NULL,
	started    DATETIME NOT NULL,
	stopped    DATETIME NULL,
	cycles     BIGINT NOT NULL DEFAULT 0,
	accepted   BIGINT NOT NULL DEFAULT 0,
	suspicious BIGINT NOT NULL DEFAULT 0,
	duplicates BIGINT NOT NULL DEFAULT 0,
	io_errors  BIGINT NOT NULL DEFAULT 0,
	forced     BIGINT NOT NULL DEFAULT 0
)`,
	`CREATE TABLE IF NOT EXISTS outcomes (
	session VARCHAR(20) NOT NULL,
	seq     BIGINT NOT NULL,
	kind    VARCHAR(16) NOT NULL,
	block   BIGINT NOT NULL,
	msg     TEXT NOT NULL,
	at      DATETIME NOT NULL,
	PRIMARY KEY (session, seq)
)`,
}

// DB is a handle to the run database.
type DB struct {
	db  *sql.DB
	drv string
}

// Open opens the run database.
// drv is a database/sql driver name ("mysql" or "sqlite3").
// MySQL DSNs need parseTime=true for Sessions to decode timestamps.
func Open(drv, dsn string) (*DB, error) {
	db, err := sql.Open(drv, dsn)
	if err != nil {
		return nil, fmt.Errorf("rundb: could not open %s db: %w", drv, err)
	}

	err = ping(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("rundb: could not ping %s db: %w", drv, err)
	}

	return &DB{db: db, drv: drv}, nil
}

func ping(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return db.PingContext(ctx)
}

func (db *DB) Close() error {
	return db.db.Close()
}

// Init creates the tables when they do not exist yet.
func (db *DB) Init(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for _, stmt := range schema {
		_, err := db.db.ExecContext(ctx, stmt)
		if err != nil {
			return fmt.Errorf("rundb: could not create schema: %w", err)
		}
	}
	return nil
}

// SessionInfo describes a recorded acquisition session.
type SessionInfo struct {
	ID         string
	Host       string
	Bridge     string
	Start      time.Time
	Stop       time.Time // zero while the session runs
	Cycles     int64
	Accepted   int64
	Suspicious int64
	Duplicates int64
	IOErrors   int64
	Forced     int64
}

// Sessions returns the n most recent sessions, newest first.
func (db *DB) Sessions(ctx context.Context, n int) ([]SessionInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rows, err := db.db.QueryContext(
		ctx,
		`SELECT id, host, bridge, started, stopped, cycles, accepted, suspicious, duplicates, io_errors, forced
FROM sessions ORDER BY started DESC LIMIT ?`,
		n,
	)
	if err != nil {
		return nil, fmt.Errorf("rundb: could not query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []SessionInfo
	for rows.Next() {
		var (
			s    SessionInfo
			stop sql.NullTime
		)
		err = rows.Scan(
			&s.ID, &s.Host, &s.Bridge, &s.Start, &stop,
			&s.Cycles, &s.Accepted, &s.Suspicious, &s.Duplicates,
			&s.IOErrors, &s.Forced,
		)
		if err != nil {
			return sessions, fmt.Errorf("rundb: could not scan session %d: %w", len(sessions), err)
		}
		if stop.Valid {
			s.Stop = stop.Time
		}
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return sessions, fmt.Errorf("rundb: could not scan db for sessions: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return sessions, fmt.Errorf("rundb: context error while retrieving sessions: %w", err)
	}

	return sessions, nil
}
