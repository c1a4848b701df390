// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bridge

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/google/gousb"
)

const (
	// DefaultVID is the pid.codes vendor ID used by the Fomu bitstreams.
	DefaultVID = 0x1209
	// DefaultPID is the product ID of the Wishbone USB bridge.
	DefaultPID = 0x5bf0

	usbReqRead  uint8 = gousb.ControlIn | gousb.ControlVendor | gousb.ControlOther  // 0xc3
	usbReqWrite uint8 = gousb.ControlOut | gousb.ControlVendor | gousb.ControlOther // 0x43

	usbBurstChunk  = 4096
	usbCtrlTimeout = 1 * time.Second
)

type usbDevice interface {
	Control(rType, request uint8, val, idx uint16, data []byte) (int, error)
	io.Closer
}

var (
	usbOpen = usbOpenImpl
)

type usbHandle struct {
	ctx *gousb.Context
	dev *gousb.Device
}

func (h *usbHandle) Control(rType, request uint8, val, idx uint16, data []byte) (int, error) {
	return h.dev.Control(rType, request, val, idx, data)
}

func (h *usbHandle) Close() error {
	err := h.dev.Close()
	if e := h.ctx.Close(); e != nil && err == nil {
		err = e
	}
	return err
}

func usbOpenImpl(vid, pid uint16) (usbDevice, error) {
	ctx := gousb.NewContext()
	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil {
		ctx.Close()
		return nil, err
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("no USB device with vid=0x%04x, pid=0x%04x", vid, pid)
	}
	dev.ControlTimeout = usbCtrlTimeout
	return &usbHandle{ctx: ctx, dev: dev}, nil
}

// USB is a Wishbone bridge reached through USB vendor control transfers.
//
// Each transfer carries the low half of the bus address in wValue and the
// high half in wIndex; register words travel little-endian.
type USB struct {
	vid uint16
	pid uint16
	dev usbDevice
}

// OpenUSB opens the first USB device matching vid and pid.
func OpenUSB(vid, pid uint16) (*USB, error) {
	dev, err := usbOpen(vid, pid)
	if err != nil {
		return nil, fmt.Errorf("bridge: could not open USB device (vid=0x%04x, pid=0x%04x): %w", vid, pid, err)
	}
	return &USB{vid: vid, pid: pid, dev: dev}, nil
}

// Close releases the USB resources.
func (usb *USB) Close() error {
	if usb.dev == nil {
		return nil
	}
	err := usb.dev.Close()
	usb.dev = nil
	return err
}

func (usb *USB) Peek(addr uint32) (uint32, error) {
	if usb.dev == nil {
		return 0, ErrClosed
	}
	buf := make([]byte, 4)
	n, err := usb.dev.Control(usbReqRead, 0, uint16(addr), uint16(addr>>16), buf)
	switch {
	case err != nil:
		return 0, fmt.Errorf("bridge: could not peek 0x%08x: %w", addr, err)
	case n != len(buf):
		return 0, fmt.Errorf("bridge: could not peek 0x%08x: %w", addr, ErrShortRead)
	}
	return binary.LittleEndian.Uint32(buf), nil
}

func (usb *USB) Poke(addr, v uint32) error {
	if usb.dev == nil {
		return ErrClosed
	}
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	n, err := usb.dev.Control(usbReqWrite, 0, uint16(addr), uint16(addr>>16), buf)
	switch {
	case err != nil:
		return fmt.Errorf("bridge: could not poke (0x%08x, 0x%x): %w", addr, v, err)
	case n != len(buf):
		return fmt.Errorf("bridge: could not poke (0x%08x, 0x%x): %w", addr, v, io.ErrShortWrite)
	}
	return nil
}

func (usb *USB) BurstRead(addr, n uint32) ([]byte, error) {
	if usb.dev == nil {
		return nil, ErrClosed
	}
	out := make([]byte, n)
	for beg := uint32(0); beg < n; beg += usbBurstChunk {
		end := beg + usbBurstChunk
		if end > n {
			end = n
		}
		cur := addr + beg
		got, err := usb.dev.Control(usbReqRead, 0, uint16(cur), uint16(cur>>16), out[beg:end])
		switch {
		case err != nil:
			return nil, fmt.Errorf("bridge: could not burst-read 0x%08x (%d/%d bytes): %w", addr, beg, n, err)
		case got != int(end-beg):
			return nil, fmt.Errorf("bridge: could not burst-read 0x%08x (%d/%d bytes): %w", addr, beg+uint32(got), n, ErrShortRead)
		}
	}
	return out, nil
}
