// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acq

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestWaitForNextPhase(t *testing.T) {
	const (
		poll    = 10 * time.Millisecond
		timeout = 200 * time.Millisecond
	)
	errUSB := errors.New("usb pipe error")

	for _, tc := range []struct {
		name    string
		mode    PhaseMode
		cur     uint32
		phases  []uint32
		peekErr func(i int) error
		next    uint32
		forced  bool
		sleeps  int
	}{
		{
			name:   "toggle-immediate",
			cur:    2,
			phases: []uint32{1},
			next:   1,
		},
		{
			name:   "toggle-after-3-polls",
			cur:    2,
			phases: []uint32{2, 2, 2, 1},
			next:   1,
			sleeps: 3,
		},
		{
			name:   "toggle-stalled",
			cur:    2,
			phases: []uint32{2},
			next:   2,
			forced: true,
			sleeps: 20,
		},
		{
			name:   "counter-advance",
			mode:   PhaseCounter,
			cur:    2,
			phases: []uint32{1, 2, 3},
			next:   3,
			sleeps: 2,
		},
		{
			name:   "toggle-ignores-order",
			mode:   PhaseToggle,
			cur:    2,
			phases: []uint32{1, 2, 3},
			next:   1,
		},
		{
			name:   "counter-stalled-last-observed",
			mode:   PhaseCounter,
			cur:    5,
			phases: []uint32{4, 3},
			next:   3,
			forced: true,
			sleeps: 20,
		},
		{
			name:    "peek-errors-then-advance",
			cur:     1,
			phases:  []uint32{2},
			peekErr: func(i int) error {
				if i < 2 {
					return errUSB
				}
				return nil
			},
			next:   2,
			sleeps: 2,
		},
		{
			name:    "peek-always-failing",
			cur:     7,
			phases:  []uint32{1},
			peekErr: func(int) error { return errUSB },
			next:    7,
			forced:  true,
			sleeps:  20,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var (
				clk = newFakeClock()
				dev = &fakeDev{
					phaseOut: DefaultPhaseOut,
					phases:   tc.phases,
					peekErr:  tc.peekErr,
				}
				syn = NewSynchronizer(dev,
					WithPollInterval(poll),
					WithPhaseTimeout(timeout),
					WithPhaseMode(tc.mode),
					WithClock(clk),
				)
			)

			next, forced, err := syn.WaitForNextPhase(context.Background(), tc.cur)
			if err != nil {
				t.Fatalf("could not wait for next phase: %+v", err)
			}
			if got, want := next, tc.next; got != want {
				t.Fatalf("invalid next phase: got=%d, want=%d", got, want)
			}
			if got, want := forced, tc.forced; got != want {
				t.Fatalf("invalid forced status: got=%v, want=%v", got, want)
			}
			if got, want := clk.sleeps, tc.sleeps; got != want {
				t.Fatalf("invalid number of polls: got=%d, want=%d", got, want)
			}
			if got, want := dev.pokes, []poke{{DefaultPhaseIn, tc.next}}; !reflect.DeepEqual(got, want) {
				t.Fatalf("invalid request writes: got=%v, want=%v", got, want)
			}
			if elapsed := clk.Now().Sub(newFakeClock().Now()); tc.forced && elapsed < timeout {
				t.Fatalf("forced advance before timeout: %v", elapsed)
			}
		})
	}
}

func TestWaitForNextPhaseCanceled(t *testing.T) {
	dev := &fakeDev{phaseOut: DefaultPhaseOut, phases: []uint32{2}}
	syn := NewSynchronizer(dev, WithClock(newFakeClock()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := syn.WaitForNextPhase(ctx, 2)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("invalid error: got=%+v, want=%v", err, context.Canceled)
	}
	if len(dev.pokes) != 0 {
		t.Fatalf("request issued on a canceled wait: %v", dev.pokes)
	}
}

func TestWaitForNextPhaseRequestError(t *testing.T) {
	errUSB := errors.New("usb pipe error")
	dev := &fakeDev{phaseOut: DefaultPhaseOut, phases: []uint32{1}, pokeErr: errUSB}
	syn := NewSynchronizer(dev, WithClock(newFakeClock()))

	next, forced, err := syn.WaitForNextPhase(context.Background(), 2)
	if !errors.Is(err, errUSB) {
		t.Fatalf("invalid error: got=%+v, want=%v", err, errUSB)
	}
	if next != 1 || forced {
		t.Fatalf("invalid phase: next=%d, forced=%v", next, forced)
	}
}

func TestSeed(t *testing.T) {
	dev := &fakeDev{phaseOut: DefaultPhaseOut}
	syn := NewSynchronizer(dev, WithPhaseRegs(DefaultPhaseOut, 0x1234))
	err := syn.Seed(2)
	if err != nil {
		t.Fatalf("could not seed: %+v", err)
	}
	if got, want := dev.pokes, []poke{{0x1234, 2}}; !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid seed write: got=%v, want=%v", got, want)
	}
}

func TestParsePhaseMode(t *testing.T) {
	for _, mode := range []PhaseMode{PhaseToggle, PhaseCounter} {
		got, err := ParsePhaseMode(mode.String())
		if err != nil {
			t.Fatalf("could not parse %v: %+v", mode, err)
		}
		if got != mode {
			t.Fatalf("invalid round-trip: got=%v, want=%v", got, mode)
		}
	}
	_, err := ParsePhaseMode("gray")
	if err == nil {
		t.Fatalf("expected an error")
	}
}
