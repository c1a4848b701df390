// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/go-daq/tdaq"
	"github.com/go-lpc/trng/acq"
	"github.com/go-lpc/trng/bridge"
	"github.com/go-lpc/trng/csr"
	"github.com/go-lpc/trng/internal/config"
)

const queueLen = 16

type node struct {
	name string
	open func(config.BridgeConfig) (bridge.Device, error)

	cfg  *config.Config
	dev  bridge.Device
	opts []acq.Option
	diag *os.File

	loop *acq.Loop
	out  *blockWriter
	data chan []byte
	n    atomic.Int64
}

func newNode(name string) *node {
	return &node{
		name: name,
		open: func(cfg config.BridgeConfig) (bridge.Device, error) {
			return cfg.Open()
		},
	}
}

func (dev *node) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")

	cfg, err := config.Decode(bytes.NewReader(req.Body))
	if err != nil {
		return fmt.Errorf("could not decode configuration: %w", err)
	}
	config.Normalize(cfg)
	err = config.Validate(cfg)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	dev.close()

	bdev, err := dev.open(cfg.Bridge)
	if err != nil {
		return fmt.Errorf("could not open bridge %v: %w", cfg.Bridge, err)
	}

	opts := cfg.Options()
	switch cfg.CSR.Size {
	case 0:
		ctx.Msg.Warnf("csr: resolution disabled, using static registers (messible_out=0x%08x, messible2_in=0x%08x)",
			cfg.Acq.PhaseOut, cfg.Acq.PhaseIn,
		)
	default:
		tbl, err := csr.ReadRegion(bdev, cfg.CSR.Addr, cfg.CSR.Size, "messible_out", "messible2_in")
		if err != nil {
			_ = bdev.Close()
			return fmt.Errorf("could not resolve CSR table: %w", err)
		}
		out, _ := tbl.Lookup("messible_out")
		in, _ := tbl.Lookup("messible2_in")
		opts = append(opts, acq.WithPhaseRegs(out, in))
		ctx.Msg.Infof("csr: %d symbols", tbl.Len())
	}

	dev.cfg = cfg
	dev.dev = bdev
	dev.opts = opts
	ctx.Msg.Infof("bridge %v configured", cfg.Bridge)
	return nil
}

func (dev *node) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")
	return dev.init(ctx)
}

func (dev *node) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")
	return dev.init(ctx)
}

func (dev *node) init(ctx tdaq.Context) error {
	if dev.dev == nil {
		return fmt.Errorf("trng-srv: bridge not configured")
	}

	if dev.diag != nil {
		_ = dev.diag.Close()
		dev.diag = nil
	}

	opts := append([]acq.Option{}, dev.opts...)
	opts = append(opts, acq.WithMsgStream(ctx.Msg))
	if dev.cfg.Diag != "" {
		f, err := os.OpenFile(dev.cfg.Diag, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("could not open diagnostic log: %w", err)
		}
		dev.diag = f
		opts = append(opts, acq.WithSink(acq.NewLogSink(f)))
	}

	dev.data = make(chan []byte, queueLen)
	dev.out = &blockWriter{ch: dev.data}
	loop, err := acq.New(dev.dev, dev.out, opts...)
	if err != nil {
		return fmt.Errorf("could not create acquisition loop: %w", err)
	}
	dev.loop = loop
	dev.n.Store(0)
	return nil
}

func (dev *node) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")
	if dev.loop == nil {
		return fmt.Errorf("trng-srv: acquisition loop not initialized")
	}
	return nil
}

func (dev *node) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	n := dev.n.Load()
	ctx.Msg.Debugf("received /stop command... -> n=%d", n)
	if dev.loop != nil {
		st := dev.loop.Stats()
		ctx.Msg.Infof(
			"cycles=%d, accepted=%d, suspicious=%d, duplicates=%d, io-errors=%d, forced=%d",
			st.Cycles, st.Accepted, st.Suspicious, st.Duplicates, st.IOErrors, st.Forced,
		)
	}
	return nil
}

func (dev *node) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")
	dev.close()
	return nil
}

func (dev *node) close() {
	if dev.dev != nil {
		_ = dev.dev.Close()
		dev.dev = nil
	}
	if dev.diag != nil {
		_ = dev.diag.Close()
		dev.diag = nil
	}
	dev.loop = nil
}

func (dev *node) trng(ctx tdaq.Context, dst *tdaq.Frame) error {
	select {
	case <-ctx.Ctx.Done():
		dst.Body = nil
		return nil
	case data := <-dev.data:
		dst.Body = data
	}
	return nil
}

func (dev *node) run(ctx tdaq.Context) error {
	if dev.loop == nil {
		return fmt.Errorf("trng-srv: acquisition loop not initialized")
	}
	dev.out.done = ctx.Ctx.Done()

	// the run goroutine is started before OnStart: seeding here keeps
	// the seed request ahead of the first phase wait.
	err := dev.loop.Seed()
	if err != nil {
		return fmt.Errorf("could not seed fill request: %w", err)
	}

	for {
		err := dev.loop.Cycle(ctx.Ctx)
		if err != nil {
			if ctx.Ctx.Err() != nil {
				return nil
			}
			return err
		}
		dev.n.Store(dev.loop.Stats().Accepted)
	}
}

// blockWriter publishes each written block on a channel.
type blockWriter struct {
	ch   chan []byte
	done <-chan struct{}
}

func (w *blockWriter) Write(p []byte) (int, error) {
	blk := make([]byte, len(p))
	copy(blk, p)
	select {
	case w.ch <- blk:
		return len(p), nil
	case <-w.done:
		return 0, context.Canceled
	}
}
