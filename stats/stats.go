// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package stats computes offline statistics over captured TRNG streams.
package stats // import "github.com/go-lpc/trng/stats"

import (
	"errors"
	"fmt"
	"io"
	"math"
	"math/bits"

	"github.com/go-lpc/trng/acq"
	"go-hep.org/x/hep/hbook"
	"gonum.org/v1/gonum/stat/distuv"
)

// Block summarizes one block of a capture.
type Block struct {
	Index   int
	Quality acq.Quality
	Good    bool
	Ones    int     // number of bits set
	ZScore  float64 // deviation of Ones from len*4, in standard deviations
}

// Report holds the statistics of a capture.
type Report struct {
	Name     string
	BlockLen int
	Blocks   []Block
	Partial  int   // length of the trailing incomplete block
	Bytes    int64 // total number of bytes scanned

	Hist   *hbook.H1D // byte-value distribution
	counts [256]int64
}

// Scan reads r in blocks of blockLen bytes and screens each of them with an.
// A trailing incomplete block is included in the byte distribution only.
func Scan(r io.Reader, name string, blockLen int, an acq.Analyzer) (*Report, error) {
	if blockLen <= 0 {
		return nil, fmt.Errorf("stats: invalid block length %d", blockLen)
	}

	rep := &Report{
		Name:     name,
		BlockLen: blockLen,
		Hist:     hbook.NewH1D(256, 0, 256),
	}
	rep.Hist.Annotation()["name"] = name

	buf := make([]byte, blockLen)
	for {
		n, err := io.ReadFull(r, buf)
		switch {
		case err == nil:
			blk := buf[:n]
			rep.fill(blk)
			q := an.Inspect(blk)
			ones := popcount(blk)
			rep.Blocks = append(rep.Blocks, Block{
				Index:   len(rep.Blocks),
				Quality: q,
				Good:    an.Accept(q),
				Ones:    ones,
				ZScore:  zscore(ones, 8*n),
			})
		case errors.Is(err, io.EOF):
			return rep, nil
		case errors.Is(err, io.ErrUnexpectedEOF):
			rep.fill(buf[:n])
			rep.Partial = n
			return rep, nil
		default:
			return rep, fmt.Errorf("stats: could not read block %d of %q: %w", len(rep.Blocks), name, err)
		}
	}
}

func (rep *Report) fill(blk []byte) {
	var hist [256]int64
	for _, v := range blk {
		hist[v]++
	}
	for i, n := range hist {
		if n == 0 {
			continue
		}
		rep.counts[i] += n
		rep.Hist.Fill(float64(i)+0.5, float64(n))
	}
	rep.Bytes += int64(len(blk))
}

func popcount(blk []byte) int {
	n := 0
	for _, v := range blk {
		n += bits.OnesCount8(v)
	}
	return n
}

func zscore(ones, nbits int) float64 {
	if nbits == 0 {
		return 0
	}
	var (
		mean = float64(nbits) / 2
		sd   = math.Sqrt(float64(nbits) / 4)
	)
	return (float64(ones) - mean) / sd
}

// Good returns the number of blocks passing the quality screen.
func (rep *Report) Good() int {
	n := 0
	for _, blk := range rep.Blocks {
		if blk.Good {
			n++
		}
	}
	return n
}

// Count returns the number of occurrences of byte value v.
func (rep *Report) Count(v byte) int64 {
	return rep.counts[v]
}

// ChiSquare tests the byte distribution against the uniform distribution.
// It returns the chi-square statistic, the number of degrees of freedom and
// the p-value.
func (rep *Report) ChiSquare() (chi2 float64, ndf int, pvalue float64) {
	ndf = len(rep.counts) - 1
	if rep.Bytes == 0 {
		return 0, ndf, 1
	}
	exp := float64(rep.Bytes) / float64(len(rep.counts))
	for _, n := range rep.counts {
		d := float64(n) - exp
		chi2 += d * d / exp
	}
	pvalue = distuv.ChiSquared{K: float64(ndf)}.Survival(chi2)
	return chi2, ndf, pvalue
}

// Summary writes a human readable summary of the report.
func (rep *Report) Summary(w io.Writer) error {
	chi2, ndf, p := rep.ChiSquare()
	var zmin, zmax float64
	for i, blk := range rep.Blocks {
		if i == 0 || blk.ZScore < zmin {
			zmin = blk.ZScore
		}
		if i == 0 || blk.ZScore > zmax {
			zmax = blk.ZScore
		}
	}
	_, err := fmt.Fprintf(w,
		"file:    %s\nbytes:   %d\nblocks:  %d (good=%d, bad=%d, partial=%d bytes)\nchi2:    %.2f/%d (p=%.4f)\nz-score: [%+.3f, %+.3f]\n",
		rep.Name, rep.Bytes,
		len(rep.Blocks), rep.Good(), len(rep.Blocks)-rep.Good(), rep.Partial,
		chi2, ndf, p,
		zmin, zmax,
	)
	if err != nil {
		return fmt.Errorf("stats: could not write summary: %w", err)
	}
	return nil
}

// WriteYODA writes the byte distribution in the YODA format.
func (rep *Report) WriteYODA(w io.Writer) error {
	raw, err := rep.Hist.MarshalYODA()
	if err != nil {
		return fmt.Errorf("stats: could not marshal histogram: %w", err)
	}
	_, err = w.Write(raw)
	if err != nil {
		return fmt.Errorf("stats: could not write histogram: %w", err)
	}
	return nil
}
