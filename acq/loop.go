// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package acq drains the TRNG double buffer in lockstep with the device.
//
// The device fills two buffers, A and B, in alternation. Each cycle the host
// waits for the phase-out register to advance, requests the next fill through
// the request register, then burst-reads the buffer selected by the phase
// parity while the device refills the other one.
// Blocks failing the quality screen or re-delivered unchanged are kept out of
// the output stream and reported to a diagnostic Sink.
package acq // import "github.com/go-lpc/trng/acq"

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/go-lpc/trng/bridge"
)

// Stats holds the counters of an acquisition loop.
type Stats struct {
	Cycles     int64  // completed cycles
	Accepted   int64  // blocks written to the output
	Suspicious int64  // blocks failing the quality screen
	Duplicates int64  // stale blocks
	IOErrors   int64  // failed transport calls (phase polls, requests and burst reads)
	Forced     int64  // phase advances forced by a timeout
	Phase      uint32 // current phase
}

// Loop is a double-buffer acquisition loop.
// A Loop is not safe for concurrent use.
type Loop struct {
	dev bridge.Transport
	w   io.Writer
	cfg config
	syn *Synchronizer

	phase  uint32
	recent [2][]byte // last block read, per role
	stats  Stats
}

// New creates an acquisition loop draining dev into w.
func New(dev bridge.Transport, w io.Writer, opts ...Option) (*Loop, error) {
	cfg := newConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	err := cfg.validate()
	if err != nil {
		return nil, err
	}
	if dev == nil {
		return nil, fmt.Errorf("acq: nil transport")
	}
	if w == nil {
		return nil, fmt.Errorf("acq: nil output writer")
	}

	return &Loop{
		dev:   dev,
		w:     w,
		cfg:   cfg,
		syn:   newSynchronizer(dev, cfg),
		phase: cfg.seed,
	}, nil
}

// Seed writes the initial fill request and resets the current phase to the
// seed value.
func (lp *Loop) Seed() error {
	lp.phase = lp.cfg.seed
	lp.stats.Phase = lp.phase
	return lp.syn.Seed(lp.cfg.seed)
}

// Run seeds the device and cycles until ctx is done or the output stream
// fails. Cancellation of ctx is not reported as an error.
func (lp *Loop) Run(ctx context.Context) error {
	err := lp.Seed()
	if err != nil {
		return fmt.Errorf("acq: could not seed fill request: %w", err)
	}
	lp.cfg.msg.Infof(
		"acquisition started (bufs=[0x%08x, 0x%08x], burst=%d, seed=%d, odd=%v, mode=%v)",
		lp.cfg.bufs[RoleA], lp.cfg.bufs[RoleB], lp.cfg.burst,
		lp.cfg.seed, lp.cfg.oddRole, lp.cfg.mode,
	)

	for {
		err = lp.Cycle(ctx)
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				lp.cfg.msg.Infof("acquisition stopped: %d blocks accepted", lp.stats.Accepted)
				return nil
			}
			return err
		}
	}
}

// Cycle runs a single acquisition cycle.
// Only context cancellation and output write failures are reported as errors;
// transport errors are recorded and the cycle completes.
func (lp *Loop) Cycle(ctx context.Context) error {
	perrs := lp.syn.PeekErrors()
	next, forced, err := lp.syn.WaitForNextPhase(ctx, lp.phase)
	lp.stats.IOErrors += lp.syn.PeekErrors() - perrs
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lp.stats.IOErrors++
		lp.cfg.msg.Errorf("could not request next fill: %+v", err)
		lp.cfg.sink.RecordAnomaly(fmt.Sprintf(
			"Bridge error %v, could not request next fill (phase %d)", err, next,
		))
	}
	if forced {
		lp.stats.Forced++
		lp.cfg.sink.RecordAnomaly(fmt.Sprintf(
			"Timeout synchronizing phase %d, advancing phase counter anyways (phase %d).",
			lp.phase, next,
		))
	}

	lp.phase = next
	lp.stats.Phase = next
	lp.stats.Cycles++

	role := lp.roleOf(next)
	blk, err := lp.dev.BurstRead(lp.cfg.bufs[role], lp.cfg.burst)
	if err != nil {
		lp.stats.IOErrors++
		lp.recent[role] = nil
		lp.cfg.msg.Errorf("could not read buffer %v (phase %d): %+v", role, next, err)
		lp.cfg.sink.RecordAnomaly(fmt.Sprintf(
			"Bridge error %v, ignoring packet (phase %d)", err, next,
		))
		return nil
	}

	switch {
	case lp.cfg.screen && !lp.cfg.an.IsGood(blk):
		lp.stats.Suspicious++
		q := lp.cfg.an.Inspect(blk)
		lp.cfg.msg.Warnf(
			"suspicious block from buffer %v (phase %d): max-bin=%d (0x%02x), max-run=%d (0x%02x)",
			role, next, q.MaxBin, q.MaxByte, q.MaxRun, q.RunByte,
		)
		lp.cfg.sink.RecordSuspicious(int(lp.stats.Accepted), blk)

	case lp.cfg.dedup && IsDuplicate(blk, lp.recent[RoleA], lp.recent[RoleB]):
		lp.stats.Duplicates++
		lp.cfg.msg.Warnf("duplicate block from buffer %v (phase %d)", role, next)
		lp.cfg.sink.RecordAnomaly(fmt.Sprintf(
			"Protocol error: duplicate block found block %d (buffer %v, phase %d), suppressing.",
			lp.stats.Accepted, role, next,
		))

	default:
		_, err = lp.w.Write(blk)
		if err != nil {
			lp.recent[role] = blk
			return fmt.Errorf("acq: could not write block %d to output: %w", lp.stats.Accepted+1, err)
		}
		lp.stats.Accepted++
		lp.cfg.msg.Debugf("block %d ok (buffer %v, phase %d)", lp.stats.Accepted, role, next)
		lp.cfg.sink.RecordOK(int(lp.stats.Accepted))
	}

	lp.recent[role] = blk
	return nil
}

// Stats returns a snapshot of the loop counters.
func (lp *Loop) Stats() Stats {
	return lp.stats
}

// roleOf returns the buffer drained for phase.
func (lp *Loop) roleOf(phase uint32) Role {
	if phase%2 == 1 {
		return lp.cfg.oddRole
	}
	return lp.cfg.oddRole.other()
}
