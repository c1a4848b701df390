// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"strings"
	"time"

	"github.com/go-lpc/trng/acq"
	"github.com/go-lpc/trng/alert"
	"github.com/go-lpc/trng/bridge"
)

const defaultMemDevice = "/dev/mem"

// Normalize fills unset fields with their defaults and lower-cases
// enumerated values. It MUST be called before Validate.
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	b := &cfg.Bridge
	b.Kind = strings.ToLower(strings.TrimSpace(b.Kind))
	if b.Kind == "" {
		b.Kind = "usb"
	}
	switch b.Kind {
	case "usb":
		if b.VID == 0 {
			b.VID = bridge.DefaultVID
		}
		if b.PID == 0 {
			b.PID = bridge.DefaultPID
		}
	case "uart":
		if b.Baud == 0 {
			b.Baud = bridge.DefaultBaudRate
		}
	case "mem":
		if b.Device == "" {
			b.Device = defaultMemDevice
		}
	}

	a := &cfg.Acq
	if a.BufA == 0 {
		a.BufA = acq.DefaultBufA
	}
	if a.BufB == 0 {
		a.BufB = acq.DefaultBufB
	}
	if a.BurstLen == 0 {
		a.BurstLen = acq.DefaultBurstLen
	}
	if a.PhaseOut == 0 {
		a.PhaseOut = acq.DefaultPhaseOut
	}
	if a.PhaseIn == 0 {
		a.PhaseIn = acq.DefaultPhaseIn
	}
	if a.PollMs == 0 {
		a.PollMs = int(acq.DefaultPollInterval / time.Millisecond)
	}
	if a.TimeoutMs == 0 {
		a.TimeoutMs = int(acq.DefaultPhaseTimeout / time.Millisecond)
	}
	def := acq.DefaultAnalyzer()
	if a.MaxBinFactor == 0 {
		a.MaxBinFactor = def.MaxBinFactor
	}
	if a.MaxRun == 0 {
		a.MaxRun = def.MaxRun
	}
	if a.Screen == nil {
		a.Screen = ptr(true)
	}
	if a.Dedup == nil {
		a.Dedup = ptr(true)
	}
	a.OddRole = strings.ToLower(a.OddRole)
	if a.OddRole == "" {
		a.OddRole = "b"
	}
	a.PhaseMode = strings.ToLower(a.PhaseMode)
	if a.PhaseMode == "" {
		a.PhaseMode = acq.PhaseToggle.String()
	}
	if a.Seed == nil {
		a.Seed = ptr(uint32(acq.DefaultSeed))
	}

	cfg.DB.Driver = strings.ToLower(cfg.DB.Driver)
	if cfg.DB.DSN != "" && cfg.DB.Driver == "" {
		cfg.DB.Driver = "sqlite3"
	}

	al := &cfg.Alert
	if al.Threshold == 0 {
		al.Threshold = alert.DefaultThreshold
	}
	if al.MaxAlerts == 0 {
		al.MaxAlerts = alert.DefaultMaxAlerts
	}
	if al.Name == "" {
		al.Name = "trng-acq"
	}
}

func ptr[T any](v T) *T { return &v }
