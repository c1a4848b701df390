// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command trng-stats computes statistics over captured TRNG streams.
//
// Usage:
//
//	$> trng-stats [OPTIONS] file1.bin [file2.bin [...]]
//
// Example:
//
//	$> trng-stats -blk 524288 -xlsx ./random.bin
//	file:    ./random.bin
//	bytes:   10485760
//	blocks:  20 (good=20, bad=0, partial=0 bytes)
//	chi2:    243.81/255 (p=0.6788)
//	z-score: [-1.732, +2.011]
//
// For each input file, trng-stats writes the byte distribution to a .yoda
// file and, optionally, a spreadsheet report to a .xlsx file.
package main // import "github.com/go-lpc/trng/cmd/trng-stats"

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-lpc/trng/acq"
	"github.com/go-lpc/trng/stats"
	"golang.org/x/sync/errgroup"
)

func main() {
	log.SetPrefix("trng-stats: ")
	log.SetFlags(0)

	var (
		blk  = flag.Int("blk", acq.DefaultBurstLen, "block length in bytes")
		odir = flag.String("o", "", "output directory for .yoda and .xlsx files (default: next to inputs)")
		xlsx = flag.Bool("xlsx", false, "write a spreadsheet report")
		bin  = flag.Int("bin-factor", acq.DefaultAnalyzer().MaxBinFactor, "histogram quality threshold factor")
		run  = flag.Int("run", acq.DefaultAnalyzer().MaxRun, "longest run quality threshold")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: trng-stats [OPTIONS] file1.bin [file2.bin [...]]

ex:
 $> trng-stats -blk 524288 -xlsx ./random.bin

options:
`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		log.Fatalf("missing input file(s)")
	}

	an := acq.Analyzer{MaxBinFactor: *bin, MaxRun: *run}
	err := process(os.Stdout, flag.Args(), *odir, *blk, an, *xlsx)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func process(w io.Writer, fnames []string, odir string, blk int, an acq.Analyzer, xlsx bool) error {
	var (
		grp  errgroup.Group
		reps = make([]*stats.Report, len(fnames))
	)
	for i, fname := range fnames {
		i, fname := i, fname
		grp.Go(func() error {
			rep, err := scan(fname, blk, an)
			if err != nil {
				return err
			}
			reps[i] = rep

			base := outName(fname, odir)
			err = writeYODA(base+".yoda", rep)
			if err != nil {
				return err
			}
			if xlsx {
				err = rep.WriteXLSX(base + ".xlsx")
				if err != nil {
					return err
				}
			}
			return nil
		})
	}

	err := grp.Wait()
	if err != nil {
		return err
	}

	for i, rep := range reps {
		if i > 0 {
			fmt.Fprintf(w, "\n")
		}
		err = rep.Summary(w)
		if err != nil {
			return err
		}
	}
	return nil
}

func scan(fname string, blk int, an acq.Analyzer) (*stats.Report, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, fmt.Errorf("could not open input file: %w", err)
	}
	defer f.Close()

	rep, err := stats.Scan(bufio.NewReader(f), fname, blk, an)
	if err != nil {
		return nil, fmt.Errorf("could not scan %q: %w", fname, err)
	}
	return rep, nil
}

func outName(fname, odir string) string {
	base := strings.TrimSuffix(fname, filepath.Ext(fname))
	if odir != "" {
		base = filepath.Join(odir, filepath.Base(base))
	}
	return base
}

func writeYODA(fname string, rep *stats.Report) error {
	f, err := os.Create(fname)
	if err != nil {
		return fmt.Errorf("could not create YODA file: %w", err)
	}
	defer f.Close()

	err = rep.WriteYODA(f)
	if err != nil {
		return err
	}

	err = f.Close()
	if err != nil {
		return fmt.Errorf("could not close YODA file %q: %w", fname, err)
	}
	return nil
}
