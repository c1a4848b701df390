// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acq

import (
	"fmt"
	"time"
)

// fakeClock advances only when slept on.
type fakeClock struct {
	now    time.Time
	sleeps int
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (clk *fakeClock) Now() time.Time { return clk.now }
func (clk *fakeClock) Sleep(d time.Duration) {
	clk.sleeps++
	clk.now = clk.now.Add(d)
}

type poke struct {
	addr uint32
	v    uint32
}

// fakeDev is a scripted device.
//
// Successive peeks of the phase-out register return the values of phases;
// once exhausted, the last value sticks. Successive burst reads of a buffer
// return its queued blocks in order.
type fakeDev struct {
	phaseOut uint32
	phases   []uint32
	peeks    int
	peekErr  func(i int) error

	pokes   []poke
	pokeErr error

	bufs    map[uint32][][]byte
	readErr map[int]error // keyed by burst-read index
	reads   int

	trace []string
}

func (dev *fakeDev) Peek(addr uint32) (uint32, error) {
	i := dev.peeks
	dev.peeks++
	dev.trace = append(dev.trace, "peek")
	if addr != dev.phaseOut {
		return 0, fmt.Errorf("peek of unexpected register 0x%08x", addr)
	}
	if dev.peekErr != nil {
		if err := dev.peekErr(i); err != nil {
			return 0, err
		}
	}
	if len(dev.phases) == 0 {
		return 0, nil
	}
	if i >= len(dev.phases) {
		i = len(dev.phases) - 1
	}
	return dev.phases[i], nil
}

func (dev *fakeDev) Poke(addr, v uint32) error {
	dev.trace = append(dev.trace, fmt.Sprintf("poke %d", v))
	if dev.pokeErr != nil {
		return dev.pokeErr
	}
	dev.pokes = append(dev.pokes, poke{addr, v})
	return nil
}

func (dev *fakeDev) BurstRead(addr, n uint32) ([]byte, error) {
	i := dev.reads
	dev.reads++
	dev.trace = append(dev.trace, fmt.Sprintf("read 0x%08x", addr))
	if err := dev.readErr[i]; err != nil {
		return nil, err
	}
	q := dev.bufs[addr]
	if len(q) == 0 {
		return nil, fmt.Errorf("no block queued at 0x%08x", addr)
	}
	blk := q[0]
	dev.bufs[addr] = q[1:]
	if uint32(len(blk)) != n {
		return nil, fmt.Errorf("invalid burst length %d (queued %d)", n, len(blk))
	}
	return append([]byte(nil), blk...), nil
}
