// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bridge provides register-level access to the TRNG FPGA.
//
// A bridge turns peek, poke and burst-read requests into traffic on the
// underlying link: Wishbone-over-USB control transfers, the LiteX UART bridge
// protocol, or plain loads and stores into a memory-mapped register window.
package bridge // import "github.com/go-lpc/trng/bridge"

import (
	"errors"
	"io"
)

var (
	// ErrShortRead is returned when a bridge delivered fewer bytes than requested.
	ErrShortRead = errors.New("bridge: short read")

	// ErrClosed is returned when an operation is attempted on a closed bridge.
	ErrClosed = errors.New("bridge: closed")
)

// Transport is a synchronous register-level link to the device.
// Every call is a blocking round-trip and may fail with a transient I/O error.
type Transport interface {
	// Peek reads the 32-bit register at addr.
	Peek(addr uint32) (uint32, error)
	// Poke writes v to the 32-bit register at addr.
	Poke(addr, v uint32) error
	// BurstRead reads exactly n bytes starting at addr.
	BurstRead(addr, n uint32) ([]byte, error)
}

// Device is a Transport holding link resources.
type Device interface {
	Transport
	io.Closer
}

var (
	_ Device = (*USB)(nil)
	_ Device = (*UART)(nil)
	_ Device = (*Mem)(nil)
)
