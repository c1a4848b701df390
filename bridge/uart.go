// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bridge

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

const (
	uartCmdWrite = 0x01
	uartCmdRead  = 0x02

	uartMaxWords = 255

	// DefaultBaudRate is the baud rate of the LiteX UART bridge.
	DefaultBaudRate = 115200

	uartReadTimeout = 1 * time.Second
)

type uartPort interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

var (
	uartOpen = uartOpenImpl
)

func uartOpenImpl(name string, baud int) (uartPort, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}
	return serial.Open(name, mode)
}

// UART is a LiteX UART bridge.
//
// Frames are: command byte, word count, big-endian word address (addr/4),
// then big-endian data words for writes.
type UART struct {
	name string
	port uartPort
	buf  []byte
}

// OpenUART opens the serial port name at the given baud rate.
func OpenUART(name string, baud int) (*UART, error) {
	port, err := uartOpen(name, baud)
	if err != nil {
		return nil, fmt.Errorf("bridge: could not open serial port %q: %w", name, err)
	}
	err = port.SetReadTimeout(uartReadTimeout)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("bridge: could not set read timeout on %q: %w", name, err)
	}
	return &UART{name: name, port: port}, nil
}

// Close closes the underlying serial port.
func (uart *UART) Close() error {
	if uart.port == nil {
		return nil
	}
	err := uart.port.Close()
	uart.port = nil
	return err
}

func (uart *UART) Peek(addr uint32) (uint32, error) {
	if uart.port == nil {
		return 0, ErrClosed
	}
	buf := make([]byte, 4)
	err := uart.read(addr, buf)
	if err != nil {
		return 0, fmt.Errorf("bridge: could not peek 0x%08x: %w", addr, err)
	}
	return binary.BigEndian.Uint32(buf), nil
}

func (uart *UART) Poke(addr, v uint32) error {
	if uart.port == nil {
		return ErrClosed
	}
	uart.buf = append(uart.buf[:0], uartCmdWrite, 1, 0, 0, 0, 0, 0, 0, 0, 0)
	binary.BigEndian.PutUint32(uart.buf[2:], addr>>2)
	binary.BigEndian.PutUint32(uart.buf[6:], v)
	_, err := uart.port.Write(uart.buf)
	if err != nil {
		return fmt.Errorf("bridge: could not poke (0x%08x, 0x%x): %w", addr, v, err)
	}
	return nil
}

func (uart *UART) BurstRead(addr, n uint32) ([]byte, error) {
	if uart.port == nil {
		return nil, ErrClosed
	}
	if n%4 != 0 {
		return nil, fmt.Errorf("bridge: invalid burst length %d (not a multiple of 4)", n)
	}
	out := make([]byte, n)
	for beg := uint32(0); beg < n; beg += 4 * uartMaxWords {
		end := beg + 4*uartMaxWords
		if end > n {
			end = n
		}
		err := uart.read(addr+beg, out[beg:end])
		if err != nil {
			return nil, fmt.Errorf("bridge: could not burst-read 0x%08x (%d/%d bytes): %w", addr, beg, n, err)
		}
	}
	for i := 0; i < len(out); i += 4 {
		v := binary.BigEndian.Uint32(out[i:])
		binary.LittleEndian.PutUint32(out[i:], v)
	}
	return out, nil
}

// read issues a read command for len(p)/4 words and fills p with the
// big-endian reply.
func (uart *UART) read(addr uint32, p []byte) error {
	uart.buf = append(uart.buf[:0], uartCmdRead, byte(len(p)/4), 0, 0, 0, 0)
	binary.BigEndian.PutUint32(uart.buf[2:], addr>>2)
	_, err := uart.port.Write(uart.buf)
	if err != nil {
		return err
	}

	for got := 0; got < len(p); {
		n, err := uart.port.Read(p[got:])
		if err != nil {
			return err
		}
		if n == 0 {
			// read timed out.
			return ErrShortRead
		}
		got += n
	}
	return nil
}
