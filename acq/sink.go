// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acq

import (
	"bytes"
	"fmt"
	"io"
	"sync"
)

// Sink receives the outcome of every acquisition cycle.
type Sink interface {
	// RecordOK is called for every block appended to the output.
	// block is the accepted-block count, including this block.
	RecordOK(block int)
	// RecordSuspicious is called for every block failing the quality screen.
	// block is the accepted-block count at the time of the rejection.
	RecordSuspicious(block int, raw []byte)
	// RecordAnomaly is called for duplicates, transport errors and forced
	// phase advances.
	RecordAnomaly(msg string)
}

type nopSink struct{}

func (nopSink) RecordOK(int)                 {}
func (nopSink) RecordSuspicious(int, []byte) {}
func (nopSink) RecordAnomaly(string)         {}

type syncer interface {
	Sync() error
}

// LogSink writes the diagnostic log.
//
// Each record is flushed with a single write, followed by a Sync when the
// underlying writer is an *os.File (or anything with a Sync method).
// The first write error is retained and reported by Err; subsequent records
// are dropped.
type LogSink struct {
	mu  sync.Mutex
	w   io.Writer
	buf bytes.Buffer
	err error
}

// NewLogSink returns a diagnostic log writing to w.
func NewLogSink(w io.Writer) *LogSink {
	return &LogSink{w: w}
}

func (sink *LogSink) RecordOK(block int) {
	sink.mu.Lock()
	defer sink.mu.Unlock()

	sink.buf.Reset()
	fmt.Fprintf(&sink.buf, "block %d ok\n", block)
	sink.flush()
}

func (sink *LogSink) RecordSuspicious(block int, raw []byte) {
	sink.mu.Lock()
	defer sink.mu.Unlock()

	sink.buf.Reset()
	fmt.Fprintf(&sink.buf, "Suspicious block found block %d, suppressing.\n", block)
	sink.buf.WriteString("Block for guru meditation:")
	hexdump(&sink.buf, raw)
	sink.buf.WriteString("\n\n")
	sink.flush()
}

func (sink *LogSink) RecordAnomaly(msg string) {
	sink.mu.Lock()
	defer sink.mu.Unlock()

	sink.buf.Reset()
	sink.buf.WriteString(msg)
	sink.buf.WriteString("\n")
	sink.flush()
}

// Err returns the first error encountered while writing the log.
func (sink *LogSink) Err() error {
	sink.mu.Lock()
	defer sink.mu.Unlock()
	return sink.err
}

func (sink *LogSink) flush() {
	if sink.err != nil {
		return
	}
	_, err := sink.w.Write(sink.buf.Bytes())
	if err != nil {
		sink.err = fmt.Errorf("acq: could not write diagnostic log: %w", err)
		return
	}
	if f, ok := sink.w.(syncer); ok {
		err = f.Sync()
		if err != nil {
			sink.err = fmt.Errorf("acq: could not sync diagnostic log: %w", err)
		}
	}
}

const hexDigits = "0123456789abcdef"

// hexdump writes raw as rows of 64 bytes, each row prefixed by its offset.
func hexdump(buf *bytes.Buffer, raw []byte) {
	buf.Grow(len(raw)*3 + (len(raw)/64+1)*10)
	for i, v := range raw {
		if i%64 == 0 {
			fmt.Fprintf(buf, "\n0x%05x: ", i)
		}
		buf.WriteByte(hexDigits[v>>4])
		buf.WriteByte(hexDigits[v&0x0f])
		buf.WriteByte(' ')
	}
}

type multiSink []Sink

// MultiSink returns a sink duplicating every record to all the provided sinks.
func MultiSink(sinks ...Sink) Sink {
	return multiSink(append([]Sink(nil), sinks...))
}

func (ms multiSink) RecordOK(block int) {
	for _, s := range ms {
		s.RecordOK(block)
	}
}

func (ms multiSink) RecordSuspicious(block int, raw []byte) {
	for _, s := range ms {
		s.RecordSuspicious(block, raw)
	}
}

func (ms multiSink) RecordAnomaly(msg string) {
	for _, s := range ms {
		s.RecordAnomaly(msg)
	}
}

var (
	_ Sink = nopSink{}
	_ Sink = (*LogSink)(nil)
	_ Sink = multiSink(nil)
)
