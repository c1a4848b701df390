// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bridge

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/go-lpc/trng/internal/mmap"
)

// Window is a register window addressable by byte offset.
type Window interface {
	io.ReaderAt
	io.WriterAt
}

// Mem is a bridge over a register window starting at bus address Base.
type Mem struct {
	Base uint32

	win Window
	buf [4]byte
}

// NewMem returns a bridge translating bus addresses into offsets of win.
func NewMem(win Window, base uint32) *Mem {
	return &Mem{Base: base, win: win}
}

// OpenMem memory-maps span bytes of fname (typically /dev/mem) starting at
// the physical address base.
func OpenMem(fname string, base, span uint32) (*Mem, error) {
	h, err := mmap.Open(fname, int64(base), int(span))
	if err != nil {
		return nil, fmt.Errorf("bridge: could not map %q: %w", fname, err)
	}
	return NewMem(h, base), nil
}

// Close closes the underlying window if it is an io.Closer.
func (mem *Mem) Close() error {
	if mem.win == nil {
		return nil
	}
	var err error
	if c, ok := mem.win.(io.Closer); ok {
		err = c.Close()
	}
	mem.win = nil
	return err
}

func (mem *Mem) offset(addr uint32) (int64, error) {
	if addr < mem.Base {
		return 0, fmt.Errorf("bridge: address 0x%08x below window base 0x%08x", addr, mem.Base)
	}
	return int64(addr - mem.Base), nil
}

func (mem *Mem) Peek(addr uint32) (uint32, error) {
	if mem.win == nil {
		return 0, ErrClosed
	}
	off, err := mem.offset(addr)
	if err != nil {
		return 0, err
	}
	_, err = mem.win.ReadAt(mem.buf[:], off)
	if err != nil {
		return 0, fmt.Errorf("bridge: could not peek 0x%08x: %w", addr, shortRead(err))
	}
	return binary.LittleEndian.Uint32(mem.buf[:]), nil
}

func (mem *Mem) Poke(addr, v uint32) error {
	if mem.win == nil {
		return ErrClosed
	}
	off, err := mem.offset(addr)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(mem.buf[:], v)
	_, err = mem.win.WriteAt(mem.buf[:], off)
	if err != nil {
		return fmt.Errorf("bridge: could not poke (0x%08x, 0x%x): %w", addr, v, err)
	}
	return nil
}

func (mem *Mem) BurstRead(addr, n uint32) ([]byte, error) {
	if mem.win == nil {
		return nil, ErrClosed
	}
	off, err := mem.offset(addr)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	_, err = mem.win.ReadAt(out, off)
	if err != nil {
		return nil, fmt.Errorf("bridge: could not burst-read 0x%08x: %w", addr, shortRead(err))
	}
	return out, nil
}

func shortRead(err error) error {
	if errors.Is(err, io.EOF) {
		return ErrShortRead
	}
	return err
}
