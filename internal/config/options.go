// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"fmt"
	"time"

	"github.com/go-lpc/trng/acq"
	"github.com/go-lpc/trng/bridge"
)

// Options returns the acquisition options described by a normalized and
// validated configuration.
func (cfg *Config) Options() []acq.Option {
	a := cfg.Acq
	role, _ := acq.ParseRole(a.OddRole)
	mode, _ := acq.ParsePhaseMode(a.PhaseMode)
	return []acq.Option{
		acq.WithBuffers(a.BufA, a.BufB),
		acq.WithBurstLen(a.BurstLen),
		acq.WithPhaseRegs(a.PhaseOut, a.PhaseIn),
		acq.WithPollInterval(time.Duration(a.PollMs) * time.Millisecond),
		acq.WithPhaseTimeout(time.Duration(a.TimeoutMs) * time.Millisecond),
		acq.WithQuality(a.MaxBinFactor, a.MaxRun),
		acq.WithScreening(*a.Screen),
		acq.WithDuplicateDetection(*a.Dedup),
		acq.WithOddRole(role),
		acq.WithPhaseMode(mode),
		acq.WithSeed(*a.Seed),
	}
}

// Open opens the bridge described by a normalized configuration.
func (b BridgeConfig) Open() (bridge.Device, error) {
	var (
		dev bridge.Device
		err error
	)
	switch b.Kind {
	case "usb":
		var usb *bridge.USB
		usb, err = bridge.OpenUSB(b.VID, b.PID)
		if err == nil {
			dev = usb
		}
	case "uart":
		var uart *bridge.UART
		uart, err = bridge.OpenUART(b.Port, b.Baud)
		if err == nil {
			dev = uart
		}
	case "mem":
		var mem *bridge.Mem
		mem, err = bridge.OpenMem(b.Device, b.Base, b.Span)
		if err == nil {
			dev = mem
		}
	default:
		err = fmt.Errorf("config: invalid bridge kind %q", b.Kind)
	}
	if err != nil {
		return nil, err
	}
	return dev, nil
}

// String describes the bridge, as recorded in run databases.
func (b BridgeConfig) String() string {
	switch b.Kind {
	case "usb":
		return fmt.Sprintf("usb:%04x:%04x", b.VID, b.PID)
	case "uart":
		return fmt.Sprintf("uart:%s@%d", b.Port, b.Baud)
	case "mem":
		return fmt.Sprintf("mem:%s+0x%08x", b.Device, b.Base)
	}
	return b.Kind
}
