// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config holds the YAML configuration of the acquisition commands.
package config // import "github.com/go-lpc/trng/internal/config"

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the configuration of an acquisition run.
type Config struct {
	Bridge BridgeConfig `yaml:"bridge"`
	CSR    CSRConfig    `yaml:"csr"`
	Acq    AcqConfig    `yaml:"acq"`
	Diag   string       `yaml:"diag_log"`
	DB     DBConfig     `yaml:"db"`
	Alert  AlertConfig  `yaml:"alert"`
}

// ---- BRIDGE ----

type BridgeConfig struct {
	Kind string `yaml:"kind"` // usb, uart or mem

	// usb
	VID uint16 `yaml:"vid"`
	PID uint16 `yaml:"pid"`

	// uart
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`

	// mem
	Device string `yaml:"device"`
	Base   uint32 `yaml:"base"`
	Span   uint32 `yaml:"span"`
}

// ---- CSR ----

// CSRConfig locates the CSR region on the device.
// A zero size disables resolution and keeps the static register addresses.
type CSRConfig struct {
	Addr uint32 `yaml:"addr"`
	Size uint32 `yaml:"size"`
}

// ---- ACQUISITION ----

type AcqConfig struct {
	BufA      uint32 `yaml:"buf_a"`
	BufB      uint32 `yaml:"buf_b"`
	BurstLen  uint32 `yaml:"burst_len"`
	PhaseOut  uint32 `yaml:"phase_out"`
	PhaseIn   uint32 `yaml:"phase_in"`
	PollMs    int    `yaml:"poll_ms"`
	TimeoutMs int    `yaml:"timeout_ms"`

	MaxBinFactor int `yaml:"max_bin_factor"`
	MaxRun       int `yaml:"max_run"`

	Screen    *bool   `yaml:"screen"`
	Dedup     *bool   `yaml:"dedup"`
	OddRole   string  `yaml:"odd_role"`
	PhaseMode string  `yaml:"phase_mode"`
	Seed      *uint32 `yaml:"seed"`
}

// ---- RUN DATABASE ----

type DBConfig struct {
	Driver string `yaml:"driver"` // mysql or sqlite3
	DSN    string `yaml:"dsn"`
}

// ---- ALERTS ----

type AlertConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Env       string `yaml:"env"` // optional .env file with the mail credentials
	Name      string `yaml:"name"`
	Threshold int    `yaml:"threshold"`
	MaxAlerts int    `yaml:"max_alerts"`
}

// Load reads the YAML configuration file fname.
// Unknown fields are rejected.
func Load(fname string) (*Config, error) {
	raw, err := os.ReadFile(fname)
	if err != nil {
		return nil, fmt.Errorf("config: could not read %q: %w", fname, err)
	}
	cfg, err := Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("config: could not decode %q: %w", fname, err)
	}
	return cfg, nil
}

// Decode decodes a YAML configuration from r.
// An empty document yields the zero configuration.
func Decode(r io.Reader) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	err := dec.Decode(&cfg)
	if err != nil && err != io.EOF {
		return nil, err
	}
	return &cfg, nil
}
