// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-lpc/trng/acq"
	"github.com/go-lpc/trng/bridge"
)

const example = `
bridge:
  kind: UART
  port: /dev/ttyUSB1
csr:
  addr: 0x10000000
  size: 8192
acq:
  buf_a: 0x40200000
  buf_b: 0x40300000
  burst_len: 4096
  poll_ms: 5
  timeout_ms: 1000
  screen: false
  odd_role: A
  phase_mode: counter
  seed: 0
diag_log: log.txt
db:
  dsn: /var/lib/trng/runs.db
alert:
  enabled: true
  env: .env
  threshold: 3
`

func TestLoad(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "trng.yaml")
	err := os.WriteFile(fname, []byte(example), 0644)
	if err != nil {
		t.Fatalf("could not create config file: %+v", err)
	}

	cfg, err := Load(fname)
	if err != nil {
		t.Fatalf("could not load config: %+v", err)
	}
	Normalize(cfg)
	err = Validate(cfg)
	if err != nil {
		t.Fatalf("invalid config: %+v", err)
	}

	for _, tc := range []struct {
		name      string
		got, want any
	}{
		{"bridge.kind", cfg.Bridge.Kind, "uart"},
		{"bridge.baud", cfg.Bridge.Baud, bridge.DefaultBaudRate},
		{"bridge", cfg.Bridge.String(), "uart:/dev/ttyUSB1@115200"},
		{"csr.addr", cfg.CSR.Addr, uint32(0x10000000)},
		{"acq.burst_len", cfg.Acq.BurstLen, uint32(4096)},
		{"acq.phase_out", cfg.Acq.PhaseOut, uint32(acq.DefaultPhaseOut)},
		{"acq.screen", *cfg.Acq.Screen, false},
		{"acq.dedup", *cfg.Acq.Dedup, true},
		{"acq.odd_role", cfg.Acq.OddRole, "a"},
		{"acq.seed", *cfg.Acq.Seed, uint32(0)},
		{"acq.max_run", cfg.Acq.MaxRun, 4},
		{"diag_log", cfg.Diag, "log.txt"},
		{"db.driver", cfg.DB.Driver, "sqlite3"},
		{"alert.threshold", cfg.Alert.Threshold, 3},
		{"alert.max_alerts", cfg.Alert.MaxAlerts, 5},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Fatalf("got=%v, want=%v", tc.got, tc.want)
			}
		})
	}

	if got, want := len(cfg.Options()), 11; got != want {
		t.Fatalf("invalid number of options: got=%d, want=%d", got, want)
	}
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("expected an error loading a missing file")
	}

	_, err = Decode(strings.NewReader("bridge:\n  knd: usb\n"))
	if err == nil {
		t.Fatalf("expected an error decoding an unknown field")
	}

	cfg, err := Decode(strings.NewReader(""))
	if err != nil {
		t.Fatalf("could not decode empty document: %+v", err)
	}
	Normalize(cfg)
	err = Validate(cfg)
	if err != nil {
		t.Fatalf("default config is invalid: %+v", err)
	}
	if got, want := cfg.Bridge.String(), "usb:1209:5bf0"; got != want {
		t.Fatalf("invalid default bridge: got=%q, want=%q", got, want)
	}
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name string
		edit func(cfg *Config)
		err  string
	}{
		{
			name: "valid",
			edit: func(*Config) {},
		},
		{
			name: "bridge-kind",
			edit: func(cfg *Config) { cfg.Bridge.Kind = "pcie" },
			err:  `config: invalid bridge kind "pcie" (want usb, uart or mem)`,
		},
		{
			name: "uart-port",
			edit: func(cfg *Config) { cfg.Bridge.Kind = "uart"; cfg.Bridge.Baud = 9600 },
			err:  "config: uart bridge requires a serial port",
		},
		{
			name: "mem-span",
			edit: func(cfg *Config) { cfg.Bridge.Kind = "mem"; cfg.Bridge.Device = "/dev/mem" },
			err:  "config: mem bridge requires a non-zero span",
		},
		{
			name: "csr-size",
			edit: func(cfg *Config) { cfg.CSR.Size = 16 },
			err:  "config: csr region too small (size=16)",
		},
		{
			name: "zero-buffer",
			edit: func(cfg *Config) { cfg.Acq.BufA = 0 },
			err:  "config: buffer base addresses must be non-zero (a=0x00000000, b=0x40300000)",
		},
		{
			name: "shared-buffer",
			edit: func(cfg *Config) { cfg.Acq.BufB = cfg.Acq.BufA },
			err:  "config: buffers A and B share base address 0x40200000",
		},
		{
			name: "burst",
			edit: func(cfg *Config) { cfg.Acq.BurstLen = 1000 },
			err:  "config: burst length 1000 is not a positive multiple of 256",
		},
		{
			name: "phase-regs",
			edit: func(cfg *Config) { cfg.Acq.PhaseIn = cfg.Acq.PhaseOut },
			err:  "config: phase registers share address 0xf0010004",
		},
		{
			name: "poll",
			edit: func(cfg *Config) { cfg.Acq.PollMs = -1 },
			err:  "config: invalid poll interval -1ms",
		},
		{
			name: "timeout",
			edit: func(cfg *Config) { cfg.Acq.TimeoutMs = 5 },
			err:  "config: phase timeout 5ms shorter than poll interval 10ms",
		},
		{
			name: "thresholds",
			edit: func(cfg *Config) { cfg.Acq.MaxRun = -4 },
			err:  "config: invalid quality thresholds (bin-factor=4, run=-4)",
		},
		{
			name: "odd-role",
			edit: func(cfg *Config) { cfg.Acq.OddRole = "c" },
			err:  `config: invalid odd_role "c" (want a or b)`,
		},
		{
			name: "phase-mode",
			edit: func(cfg *Config) { cfg.Acq.PhaseMode = "gray" },
			err:  `config: invalid phase_mode "gray" (want toggle or counter)`,
		},
		{
			name: "db-driver",
			edit: func(cfg *Config) { cfg.DB.Driver = "postgres"; cfg.DB.DSN = "x" },
			err:  `config: invalid db driver "postgres" (want mysql or sqlite3)`,
		},
		{
			name: "db-dsn",
			edit: func(cfg *Config) { cfg.DB.Driver = "mysql" },
			err:  `config: db driver "mysql" requires a dsn`,
		},
		{
			name: "alert",
			edit: func(cfg *Config) { cfg.Alert.Enabled = true; cfg.Alert.MaxAlerts = -1 },
			err:  "config: invalid alert settings (threshold=8, max=-1)",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := new(Config)
			Normalize(cfg)
			tc.edit(cfg)
			err := Validate(cfg)
			switch {
			case err == nil && tc.err == "":
				// ok
			case err == nil && tc.err != "":
				t.Fatalf("expected an error (%s)", tc.err)
			case err != nil && tc.err == "":
				t.Fatalf("unexpected error: %+v", err)
			default:
				if got, want := err.Error(), tc.err; got != want {
					t.Fatalf("invalid error:\ngot= %q\nwant=%q", got, want)
				}
			}
		})
	}
}

func TestOpenMem(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "regs.bin")
	err := os.WriteFile(fname, make([]byte, 4096), 0644)
	if err != nil {
		t.Fatalf("could not create register file: %+v", err)
	}

	b := BridgeConfig{Kind: "mem", Device: fname, Span: 4096}
	dev, err := b.Open()
	if err != nil {
		t.Fatalf("could not open bridge: %+v", err)
	}
	defer dev.Close()

	err = dev.Poke(0x10, 0xcafe)
	if err != nil {
		t.Fatalf("could not poke: %+v", err)
	}
	v, err := dev.Peek(0x10)
	if err != nil {
		t.Fatalf("could not peek: %+v", err)
	}
	if got, want := v, uint32(0xcafe); got != want {
		t.Fatalf("invalid register: got=0x%x, want=0x%x", got, want)
	}

	_, err = BridgeConfig{Kind: "pcie"}.Open()
	if err == nil {
		t.Fatalf("expected an error opening an invalid bridge")
	}
}
