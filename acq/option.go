// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acq

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-daq/tdaq/log"
)

const (
	DefaultBufA     = 0x4020_0000
	DefaultBufB     = 0x4030_0000
	DefaultBurstLen = 512 * 1024

	DefaultPhaseOut = 0xf001_0004 // messible_out
	DefaultPhaseIn  = 0xf001_1000 // messible2_in

	DefaultPollInterval = 10 * time.Millisecond
	DefaultPhaseTimeout = 20 * time.Second

	DefaultSeed = 2
)

// Role identifies one of the two device buffers.
type Role int

const (
	RoleA Role = iota
	RoleB
)

func (r Role) String() string {
	switch r {
	case RoleA:
		return "A"
	case RoleB:
		return "B"
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// ParseRole returns the role named s ("a" or "b", case-insensitive).
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(s) {
	case "a":
		return RoleA, nil
	case "b":
		return RoleB, nil
	}
	return 0, fmt.Errorf("acq: invalid buffer role %q", s)
}

func (r Role) other() Role { return 1 - r }

type config struct {
	bufs     [2]uint32
	burst    uint32
	phaseOut uint32
	phaseIn  uint32
	poll     time.Duration
	timeout  time.Duration
	an       Analyzer
	screen   bool
	dedup    bool
	oddRole  Role
	mode     PhaseMode
	seed     uint32
	clock    Clock
	msg      log.MsgStream
	sink     Sink
}

func newConfig() config {
	return config{
		bufs:     [2]uint32{DefaultBufA, DefaultBufB},
		burst:    DefaultBurstLen,
		phaseOut: DefaultPhaseOut,
		phaseIn:  DefaultPhaseIn,
		poll:     DefaultPollInterval,
		timeout:  DefaultPhaseTimeout,
		an:       DefaultAnalyzer(),
		screen:   true,
		dedup:    true,
		oddRole:  RoleB,
		mode:     PhaseToggle,
		seed:     DefaultSeed,
		clock:    sysClock{},
		msg:      log.NewMsgStream("acq", log.LvlInfo, io.Discard),
		sink:     nopSink{},
	}
}

func (cfg *config) validate() error {
	switch {
	case cfg.bufs[RoleA] == cfg.bufs[RoleB]:
		return fmt.Errorf("acq: buffers A and B share base address 0x%08x", cfg.bufs[RoleA])
	case cfg.burst == 0:
		return fmt.Errorf("acq: invalid zero burst length")
	case cfg.phaseOut == cfg.phaseIn:
		return fmt.Errorf("acq: phase registers share address 0x%08x", cfg.phaseOut)
	case cfg.poll <= 0:
		return fmt.Errorf("acq: invalid poll interval %v", cfg.poll)
	case cfg.timeout < cfg.poll:
		return fmt.Errorf("acq: phase timeout %v shorter than poll interval %v", cfg.timeout, cfg.poll)
	case cfg.an.MaxBinFactor <= 0 || cfg.an.MaxRun <= 0:
		return fmt.Errorf("acq: invalid quality thresholds (bin-factor=%d, run=%d)", cfg.an.MaxBinFactor, cfg.an.MaxRun)
	case cfg.oddRole != RoleA && cfg.oddRole != RoleB:
		return fmt.Errorf("acq: invalid odd-phase role %v", cfg.oddRole)
	case cfg.mode != PhaseToggle && cfg.mode != PhaseCounter:
		return fmt.Errorf("acq: invalid phase mode %v", cfg.mode)
	case cfg.clock == nil:
		return fmt.Errorf("acq: nil clock")
	case cfg.msg == nil:
		return fmt.Errorf("acq: nil message stream")
	case cfg.sink == nil:
		return fmt.Errorf("acq: nil diagnostic sink")
	}
	return nil
}

// Option configures an acquisition loop or a phase synchronizer.
type Option func(*config)

// WithBuffers sets the base addresses of buffers A and B.
func WithBuffers(a, b uint32) Option {
	return func(cfg *config) {
		cfg.bufs = [2]uint32{a, b}
	}
}

// WithBurstLen sets the number of bytes drained per cycle.
func WithBurstLen(n uint32) Option {
	return func(cfg *config) {
		cfg.burst = n
	}
}

// WithPhaseRegs sets the phase-out and request register addresses.
func WithPhaseRegs(out, in uint32) Option {
	return func(cfg *config) {
		cfg.phaseOut = out
		cfg.phaseIn = in
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(cfg *config) {
		cfg.poll = d
	}
}

func WithPhaseTimeout(d time.Duration) Option {
	return func(cfg *config) {
		cfg.timeout = d
	}
}

// WithQuality sets the block quality thresholds.
func WithQuality(maxBinFactor, maxRun int) Option {
	return func(cfg *config) {
		cfg.an = Analyzer{MaxBinFactor: maxBinFactor, MaxRun: maxRun}
	}
}

// WithScreening enables or disables the block quality screen.
func WithScreening(v bool) Option {
	return func(cfg *config) {
		cfg.screen = v
	}
}

// WithDuplicateDetection enables or disables the stale-block check.
func WithDuplicateDetection(v bool) Option {
	return func(cfg *config) {
		cfg.dedup = v
	}
}

// WithOddRole sets the buffer drained on odd phases.
// The other buffer is drained on even phases.
func WithOddRole(r Role) Option {
	return func(cfg *config) {
		cfg.oddRole = r
	}
}

func WithPhaseMode(mode PhaseMode) Option {
	return func(cfg *config) {
		cfg.mode = mode
	}
}

// WithSeed sets the value written to the request register before the first
// cycle. It is also the initial current phase.
func WithSeed(v uint32) Option {
	return func(cfg *config) {
		cfg.seed = v
	}
}

func WithClock(c Clock) Option {
	return func(cfg *config) {
		cfg.clock = c
	}
}

func WithMsgStream(msg log.MsgStream) Option {
	return func(cfg *config) {
		cfg.msg = msg
	}
}

// WithSink sets the diagnostic sink receiving per-cycle outcomes.
func WithSink(sink Sink) Option {
	return func(cfg *config) {
		cfg.sink = sink
	}
}
