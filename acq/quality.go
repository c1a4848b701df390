// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acq

const (
	defaultMaxBinFactor = 4
	defaultMaxRun       = 4
)

// Analyzer screens blocks for link-level corruption.
//
// A block is rejected when its most frequent byte value occurs more than
// MaxBinFactor*(len/256) times, or when it holds more than MaxRun identical
// consecutive bytes.
type Analyzer struct {
	MaxBinFactor int
	MaxRun       int
}

// DefaultAnalyzer returns the analyzer with the stock thresholds.
func DefaultAnalyzer() Analyzer {
	return Analyzer{
		MaxBinFactor: defaultMaxBinFactor,
		MaxRun:       defaultMaxRun,
	}
}

// Quality summarizes the byte distribution of a block.
type Quality struct {
	Len     int  // block length
	MaxBin  int  // count of the most frequent byte value
	MaxByte byte // most frequent byte value
	MaxRun  int  // longest run of identical consecutive bytes
	RunByte byte // byte value of the longest run
}

// Inspect computes the histogram maximum and the longest run of block in a
// single pass.
func (an Analyzer) Inspect(block []byte) Quality {
	var (
		hist [256]int
		q    = Quality{Len: len(block)}
		run  = 0
		prev byte
	)
	for i, v := range block {
		hist[v]++
		if i > 0 && v == prev {
			run++
		} else {
			run = 1
			prev = v
		}
		if run > q.MaxRun {
			q.MaxRun = run
			q.RunByte = v
		}
	}
	for i, n := range hist {
		if n > q.MaxBin {
			q.MaxBin = n
			q.MaxByte = byte(i)
		}
	}
	return q
}

// Accept applies the thresholds to a quality summary.
func (an Analyzer) Accept(q Quality) bool {
	if q.MaxBin > an.MaxBinFactor*(q.Len/256) {
		return false
	}
	if q.MaxRun > an.MaxRun {
		return false
	}
	return true
}

// IsGood reports whether block passes the quality screen.
func (an Analyzer) IsGood(block []byte) bool {
	return an.Accept(an.Inspect(block))
}
