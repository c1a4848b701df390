// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"fmt"

	"github.com/go-lpc/trng/acq"
)

// Validate checks the configuration.
// It does not mutate it.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil configuration")
	}

	b := cfg.Bridge
	switch b.Kind {
	case "usb":
	case "uart":
		if b.Port == "" {
			return fmt.Errorf("config: uart bridge requires a serial port")
		}
		if b.Baud <= 0 {
			return fmt.Errorf("config: invalid uart baud rate %d", b.Baud)
		}
	case "mem":
		if b.Device == "" {
			return fmt.Errorf("config: mem bridge requires a device")
		}
		if b.Span == 0 {
			return fmt.Errorf("config: mem bridge requires a non-zero span")
		}
	default:
		return fmt.Errorf("config: invalid bridge kind %q (want usb, uart or mem)", b.Kind)
	}

	if cfg.CSR.Size != 0 && cfg.CSR.Size < 4+64 {
		return fmt.Errorf("config: csr region too small (size=%d)", cfg.CSR.Size)
	}

	a := cfg.Acq
	switch {
	case a.BufA == 0 || a.BufB == 0:
		return fmt.Errorf("config: buffer base addresses must be non-zero (a=0x%08x, b=0x%08x)", a.BufA, a.BufB)
	case a.BufA == a.BufB:
		return fmt.Errorf("config: buffers A and B share base address 0x%08x", a.BufA)
	case a.BurstLen == 0 || a.BurstLen%256 != 0:
		return fmt.Errorf("config: burst length %d is not a positive multiple of 256", a.BurstLen)
	case a.PhaseOut == a.PhaseIn:
		return fmt.Errorf("config: phase registers share address 0x%08x", a.PhaseOut)
	case a.PollMs <= 0:
		return fmt.Errorf("config: invalid poll interval %dms", a.PollMs)
	case a.TimeoutMs < a.PollMs:
		return fmt.Errorf("config: phase timeout %dms shorter than poll interval %dms", a.TimeoutMs, a.PollMs)
	case a.MaxBinFactor <= 0 || a.MaxRun <= 0:
		return fmt.Errorf("config: invalid quality thresholds (bin-factor=%d, run=%d)", a.MaxBinFactor, a.MaxRun)
	}
	if _, err := acq.ParseRole(a.OddRole); err != nil {
		return fmt.Errorf("config: invalid odd_role %q (want a or b)", a.OddRole)
	}
	if _, err := acq.ParsePhaseMode(a.PhaseMode); err != nil {
		return fmt.Errorf("config: invalid phase_mode %q (want toggle or counter)", a.PhaseMode)
	}

	switch cfg.DB.Driver {
	case "", "mysql", "sqlite3":
	default:
		return fmt.Errorf("config: invalid db driver %q (want mysql or sqlite3)", cfg.DB.Driver)
	}
	if cfg.DB.Driver != "" && cfg.DB.DSN == "" {
		return fmt.Errorf("config: db driver %q requires a dsn", cfg.DB.Driver)
	}

	if cfg.Alert.Enabled && (cfg.Alert.Threshold <= 0 || cfg.Alert.MaxAlerts <= 0) {
		return fmt.Errorf("config: invalid alert settings (threshold=%d, max=%d)", cfg.Alert.Threshold, cfg.Alert.MaxAlerts)
	}

	return nil
}
