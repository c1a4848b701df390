// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package trng holds code for the acquisition of random numbers from the
// FPGA true random number generator.
//
// The device fills two on-chip buffers in alternation while the host drains
// the other one. Both sides stay in lockstep through a pair of handshake
// registers: the device publishes its phase in messible_out and the host
// requests the next fill through messible2_in.
//
// Packages:
//   - bridge: register-level transports (USB, UART, memory-mapped)
//   - csr: resolution of the CSR symbol table stored on the device
//   - acq: the double-buffer acquisition loop and its block screens
//   - rundb: recording of acquisition sessions in a SQL database
//   - alert: mail alerts on link failures
//   - stats: offline statistics over captured streams
package trng // import "github.com/go-lpc/trng"

import (
	"fmt"
	"runtime/debug"
)

// Version returns the version of trng and its checksum.
// The returned values are only valid in binaries built with module support.
func Version() (version, sum string) {
	b, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	return versionOf(b)
}

func versionOf(b *debug.BuildInfo) (version, sum string) {
	if b == nil {
		return "", ""
	}

	const root = "github.com/go-lpc/trng"
	if b.Main.Path == root {
		return b.Main.Version, b.Main.Sum
	}
	for _, m := range b.Deps {
		if m.Path != root {
			continue
		}
		if m.Replace != nil {
			switch {
			case m.Replace.Version != "" && m.Replace.Path != "":
				return fmt.Sprintf("%s %s", m.Replace.Path, m.Replace.Version), m.Replace.Sum
			case m.Replace.Version != "":
				return m.Replace.Version, m.Replace.Sum
			case m.Replace.Path != "":
				return m.Replace.Path, m.Replace.Sum
			default:
				return m.Version + "*", ""
			}
		}
		return m.Version, m.Sum
	}
	return "", ""
}
