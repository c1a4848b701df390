// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acq

import (
	"context"
	"fmt"
	"time"

	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/trng/bridge"
)

// PhaseMode selects how an observed phase is judged to have advanced.
type PhaseMode int

const (
	// PhaseToggle considers any value different from the current phase as
	// an advance. Firmware alternating between 1 and 2 needs this mode.
	PhaseToggle PhaseMode = iota
	// PhaseCounter requires the observed value to be strictly greater than
	// the current phase.
	PhaseCounter
)

func (mode PhaseMode) String() string {
	switch mode {
	case PhaseToggle:
		return "toggle"
	case PhaseCounter:
		return "counter"
	}
	return fmt.Sprintf("PhaseMode(%d)", int(mode))
}

// ParsePhaseMode returns the mode named s.
func ParsePhaseMode(s string) (PhaseMode, error) {
	switch s {
	case "toggle":
		return PhaseToggle, nil
	case "counter":
		return PhaseCounter, nil
	}
	return 0, fmt.Errorf("acq: invalid phase mode %q", s)
}

func (mode PhaseMode) advanced(obs, cur uint32) bool {
	if mode == PhaseCounter {
		return obs > cur
	}
	return obs != cur
}

// Clock abstracts the passage of time for the phase synchronizer.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type sysClock struct{}

func (sysClock) Now() time.Time        { return time.Now() }
func (sysClock) Sleep(d time.Duration) { time.Sleep(d) }

// Synchronizer keeps the host in lockstep with the device fill cycle through
// the phase-out and request registers.
type Synchronizer struct {
	dev     bridge.Transport
	out     uint32 // phase-out register
	in      uint32 // request register
	poll    time.Duration
	timeout time.Duration
	mode    PhaseMode
	clock   Clock
	msg     log.MsgStream
	sink    Sink

	errs int64 // failed phase-register reads
}

// NewSynchronizer returns a synchronizer polling dev with the provided options.
func NewSynchronizer(dev bridge.Transport, opts ...Option) *Synchronizer {
	cfg := newConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return newSynchronizer(dev, cfg)
}

func newSynchronizer(dev bridge.Transport, cfg config) *Synchronizer {
	return &Synchronizer{
		dev:     dev,
		out:     cfg.phaseOut,
		in:      cfg.phaseIn,
		poll:    cfg.poll,
		timeout: cfg.timeout,
		mode:    cfg.mode,
		clock:   cfg.clock,
		msg:     cfg.msg,
		sink:    cfg.sink,
	}
}

// PeekErrors returns the number of failed phase-register reads.
func (syn *Synchronizer) PeekErrors() int64 { return syn.errs }

// Seed writes v to the request register so the device holds a pending fill
// request before the first wait.
func (syn *Synchronizer) Seed(v uint32) error {
	return syn.request(v)
}

func (syn *Synchronizer) request(v uint32) error {
	err := syn.dev.Poke(syn.in, v)
	if err != nil {
		return fmt.Errorf("acq: could not request fill for phase %d: %w", v, err)
	}
	return nil
}

// WaitForNextPhase polls the phase-out register until it has advanced past
// cur, then writes the new phase to the request register.
//
// When the timeout elapses first, the last observed value (or cur when no
// read succeeded) is taken as the new phase, written to the request register
// and reported with forced=true.
// A non-nil error is either the context error, in which case no request was
// issued, or a failure of the request write.
func (syn *Synchronizer) WaitForNextPhase(ctx context.Context, cur uint32) (next uint32, forced bool, err error) {
	var (
		start = syn.clock.Now()
		last  = cur
	)
	for {
		if err := ctx.Err(); err != nil {
			return cur, false, err
		}

		v, err := syn.dev.Peek(syn.out)
		switch {
		case err != nil:
			syn.errs++
			syn.msg.Errorf("could not read phase register 0x%08x: %+v", syn.out, err)
			syn.sink.RecordAnomaly(fmt.Sprintf(
				"Bridge error %v, could not read phase register 0x%08x (phase %d)",
				err, syn.out, cur,
			))
		case syn.mode.advanced(v, cur):
			return v, false, syn.request(v)
		default:
			last = v
		}

		if syn.clock.Now().Sub(start) >= syn.timeout {
			syn.msg.Warnf(
				"timeout synchronizing phase (current=%d, observed=%d), advancing anyways",
				cur, last,
			)
			return last, true, syn.request(last)
		}
		syn.clock.Sleep(syn.poll)
	}
}
