// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stats

import (
	"bytes"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-lpc/trng/acq"
	"github.com/xuri/excelize/v2"
)

func ramp(n int) []byte {
	blk := make([]byte, n)
	for i := range blk {
		blk[i] = byte(i * 7)
	}
	return blk
}

func TestScanUniform(t *testing.T) {
	raw := bytes.Repeat(ramp(1024), 3)
	raw = append(raw, ramp(100)...)

	rep, err := Scan(bytes.NewReader(raw), "ramp.bin", 1024, acq.DefaultAnalyzer())
	if err != nil {
		t.Fatalf("could not scan: %+v", err)
	}

	if got, want := len(rep.Blocks), 3; got != want {
		t.Fatalf("invalid number of blocks: got=%d, want=%d", got, want)
	}
	if got, want := rep.Good(), 3; got != want {
		t.Fatalf("invalid number of good blocks: got=%d, want=%d", got, want)
	}
	if got, want := rep.Partial, 100; got != want {
		t.Fatalf("invalid partial block: got=%d, want=%d", got, want)
	}
	if got, want := rep.Bytes, int64(len(raw)); got != want {
		t.Fatalf("invalid byte count: got=%d, want=%d", got, want)
	}
	if got, want := rep.Count(0), int64(3*4+1); got != want {
		t.Fatalf("invalid count of 0x00: got=%d, want=%d", got, want)
	}
	if got, want := rep.Hist.SumW(), float64(len(raw)); got != want {
		t.Fatalf("invalid histogram sum: got=%v, want=%v", got, want)
	}

	// every byte value occurs 4 times in a 1024-byte ramp: 8192 bits, 4096 set.
	for i, blk := range rep.Blocks {
		if got, want := blk.Ones, 4096; got != want {
			t.Fatalf("block %d: invalid ones count: got=%d, want=%d", i, got, want)
		}
		if blk.ZScore != 0 {
			t.Fatalf("block %d: invalid z-score: %v", i, blk.ZScore)
		}
	}
}

func TestChiSquare(t *testing.T) {
	rep, err := Scan(bytes.NewReader(ramp(4096)), "ramp", 1024, acq.DefaultAnalyzer())
	if err != nil {
		t.Fatalf("could not scan: %+v", err)
	}
	chi2, ndf, p := rep.ChiSquare()
	if chi2 != 0 || ndf != 255 || math.Abs(p-1) > 1e-9 {
		t.Fatalf("invalid chi2 for a uniform stream: chi2=%v, ndf=%d, p=%v", chi2, ndf, p)
	}

	rep, err = Scan(bytes.NewReader(make([]byte, 4096)), "zeros", 1024, acq.DefaultAnalyzer())
	if err != nil {
		t.Fatalf("could not scan: %+v", err)
	}
	chi2, _, p = rep.ChiSquare()
	// all 4096 bytes in one bin: (4096-16)^2/16 + 255*16.
	if want := 4080.0*4080.0/16 + 255*16; math.Abs(chi2-want) > 1e-6 {
		t.Fatalf("invalid chi2: got=%v, want=%v", chi2, want)
	}
	if p > 1e-9 {
		t.Fatalf("invalid p-value for a constant stream: %v", p)
	}
	if got, want := rep.Good(), 0; got != want {
		t.Fatalf("constant blocks passed the screen: got=%d, want=%d", got, want)
	}
	for i, blk := range rep.Blocks {
		if got, want := blk.ZScore, -math.Sqrt(8*1024); math.Abs(got-want) > 1e-9 {
			t.Fatalf("block %d: invalid z-score: got=%v, want=%v", i, got, want)
		}
	}

	empty, err := Scan(bytes.NewReader(nil), "empty", 1024, acq.DefaultAnalyzer())
	if err != nil {
		t.Fatalf("could not scan: %+v", err)
	}
	if chi2, _, p := empty.ChiSquare(); chi2 != 0 || p != 1 {
		t.Fatalf("invalid chi2 for an empty stream: chi2=%v, p=%v", chi2, p)
	}
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("i/o error") }

func TestScanErrors(t *testing.T) {
	_, err := Scan(bytes.NewReader(nil), "x", 0, acq.DefaultAnalyzer())
	if err == nil {
		t.Fatalf("expected an error for a zero block length")
	}

	_, err = Scan(errReader{}, "x", 16, acq.DefaultAnalyzer())
	if err == nil || !strings.Contains(err.Error(), "i/o error") {
		t.Fatalf("invalid error: %+v", err)
	}
}

func TestSummary(t *testing.T) {
	rep, err := Scan(bytes.NewReader(ramp(2048)), "ramp.bin", 1024, acq.DefaultAnalyzer())
	if err != nil {
		t.Fatalf("could not scan: %+v", err)
	}
	var buf strings.Builder
	err = rep.Summary(&buf)
	if err != nil {
		t.Fatalf("could not write summary: %+v", err)
	}
	for _, want := range []string{
		"file:    ramp.bin\n",
		"bytes:   2048\n",
		"blocks:  2 (good=2, bad=0, partial=0 bytes)\n",
		"chi2:    0.00/255 (p=1.0000)\n",
	} {
		if !strings.Contains(buf.String(), want) {
			t.Fatalf("summary is missing %q:\n%s", want, buf.String())
		}
	}
}

func TestWriteYODA(t *testing.T) {
	rep, err := Scan(bytes.NewReader(ramp(1024)), "ramp", 1024, acq.DefaultAnalyzer())
	if err != nil {
		t.Fatalf("could not scan: %+v", err)
	}
	var buf bytes.Buffer
	err = rep.WriteYODA(&buf)
	if err != nil {
		t.Fatalf("could not write YODA: %+v", err)
	}
	if !strings.Contains(buf.String(), "YODA_HISTO1D") {
		t.Fatalf("invalid YODA output:\n%s", buf.String())
	}
}

func TestWriteXLSX(t *testing.T) {
	rep, err := Scan(bytes.NewReader(append(ramp(2048), make([]byte, 1024)...)), "capture.bin", 1024, acq.DefaultAnalyzer())
	if err != nil {
		t.Fatalf("could not scan: %+v", err)
	}

	fname := filepath.Join(t.TempDir(), "capture.xlsx")
	err = rep.WriteXLSX(fname)
	if err != nil {
		t.Fatalf("could not write xlsx: %+v", err)
	}

	f, err := excelize.OpenFile(fname)
	if err != nil {
		t.Fatalf("could not open xlsx: %+v", err)
	}
	defer f.Close()

	for _, tc := range []struct {
		sheet, cell string
		want        string
	}{
		{blocksSheet, "A1", "block"},
		{blocksSheet, "A4", "2"},
		{blocksSheet, "B2", "TRUE"},
		{blocksSheet, "B4", "FALSE"},
		{blocksSheet, "C4", "1024"},
		{histSheet, "A2", "0"},
		{histSheet, "B2", "1032"},
	} {
		got, err := f.GetCellValue(tc.sheet, tc.cell)
		if err != nil {
			t.Fatalf("could not read %s!%s: %+v", tc.sheet, tc.cell, err)
		}
		if got != tc.want {
			t.Fatalf("invalid %s!%s: got=%q, want=%q", tc.sheet, tc.cell, got, tc.want)
		}
	}
}

func TestFillSheetErrors(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	blocks := []Block{{Index: 0, Good: true, Ones: 4096}}
	for _, tc := range []struct {
		name string
		fill func() error
		want string
	}{
		{
			name: "blocks",
			fill: func() error { return fillBlocks(f, "missing", blocks) },
			want: `stats: could not fill sheet "missing": `,
		},
		{
			name: "bytes",
			fill: func() error { return fillBytes(f, "absent", []int64{1, 2}) },
			want: `stats: could not fill sheet "absent": `,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.fill()
			if err == nil {
				t.Fatalf("expected an error")
			}
			if got := err.Error(); !strings.HasPrefix(got, tc.want) {
				t.Fatalf("invalid error:\ngot= %q\nwant=%q...", got, tc.want)
			}
			if errors.Unwrap(err) == nil {
				t.Fatalf("underlying excelize error not wrapped: %+v", err)
			}
		})
	}

	err := fillBlocks(f, f.GetSheetName(0), blocks)
	if err != nil {
		t.Fatalf("could not fill existing sheet: %+v", err)
	}
}
