// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acq

import (
	"bytes"
	"math/rand"
	"testing"
)

// ramp returns a block where every byte value occurs n/256 times and no two
// consecutive bytes are equal.
func ramp(n int, off byte) []byte {
	blk := make([]byte, n)
	for i := range blk {
		blk[i] = byte(i*7) + off
	}
	return blk
}

func TestIsGood(t *testing.T) {
	an := DefaultAnalyzer()

	for _, tc := range []struct {
		name string
		blk  func() []byte
		want bool
	}{
		{
			name: "empty",
			blk:  func() []byte { return nil },
			want: true,
		},
		{
			name: "ramp",
			blk:  func() []byte { return ramp(1024, 0) },
			want: true,
		},
		{
			name: "constant",
			blk:  func() []byte { return bytes.Repeat([]byte{0x42}, 4096) },
			want: false,
		},
		{
			name: "zeros",
			blk:  func() []byte { return make([]byte, DefaultBurstLen) },
			want: false,
		},
		{
			name: "run-4",
			blk: func() []byte {
				blk := ramp(1024, 0)
				copy(blk[100:], []byte{9, 9, 9, 9})
				return blk
			},
			want: true,
		},
		{
			name: "run-5",
			blk: func() []byte {
				blk := ramp(1024, 0)
				copy(blk[100:], []byte{9, 9, 9, 9, 9})
				return blk
			},
			want: false,
		},
		{
			name: "run-5-at-end",
			blk: func() []byte {
				blk := ramp(1024, 0)
				copy(blk[1019:], []byte{9, 9, 9, 9, 9})
				return blk
			},
			want: false,
		},
		{
			name: "run-5-at-start",
			blk: func() []byte {
				blk := ramp(1024, 0)
				copy(blk, []byte{0, 0, 0, 0, 0})
				return blk
			},
			want: false,
		},
		{
			name: "short-block",
			blk:  func() []byte { return []byte{1, 2, 3} },
			want: false, // len/256 == 0: any count exceeds the limit
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got, want := an.IsGood(tc.blk()), tc.want; got != want {
				t.Fatalf("invalid quality: got=%v, want=%v (%+v)", got, want, an.Inspect(tc.blk()))
			}
		})
	}
}

func TestIsGoodBinBoundary(t *testing.T) {
	an := DefaultAnalyzer()

	// 1024/256 = 4: the limit is 4*4 = 16 occurrences.
	// a ramp of stride 1 holds 0xaa 4 times, at offsets 170, 426, 682 and 938.
	mk := func(extra int) []byte {
		blk := make([]byte, 1024)
		for i := range blk {
			blk[i] = byte(i)
		}
		for j := 0; j < extra; j++ {
			blk[10*j] = 0xaa
		}
		return blk
	}

	pass := mk(12)
	if q := an.Inspect(pass); q.MaxBin != 16 || q.MaxByte != 0xaa {
		t.Fatalf("invalid histogram: %+v", q)
	}
	if !an.IsGood(pass) {
		t.Fatalf("block at the limit rejected")
	}

	fail := mk(13)
	if q := an.Inspect(fail); q.MaxBin != 17 {
		t.Fatalf("invalid histogram: %+v", q)
	}
	if an.IsGood(fail) {
		t.Fatalf("block over the limit accepted")
	}
}

func TestIsGoodRandom(t *testing.T) {
	var (
		an  = DefaultAnalyzer()
		rnd = rand.New(rand.NewSource(1234))
		blk = make([]byte, DefaultBurstLen)
	)
	for i := 0; i < 8; i++ {
		_, _ = rnd.Read(blk)
		if !an.IsGood(blk) {
			t.Fatalf("random block %d rejected: %+v", i, an.Inspect(blk))
		}
	}
}

func TestInspect(t *testing.T) {
	an := DefaultAnalyzer()
	q := an.Inspect([]byte{1, 2, 2, 3, 3, 3, 2, 2})
	want := Quality{Len: 8, MaxBin: 4, MaxByte: 2, MaxRun: 3, RunByte: 3}
	if q != want {
		t.Fatalf("invalid quality:\ngot= %+v\nwant=%+v", q, want)
	}
}

func TestAnalyzerThresholds(t *testing.T) {
	blk := ramp(1024, 0)
	copy(blk[10:], []byte{5, 5, 5})

	if !(Analyzer{MaxBinFactor: 4, MaxRun: 3}).IsGood(blk) {
		t.Fatalf("run of 3 rejected with max-run=3")
	}
	if (Analyzer{MaxBinFactor: 4, MaxRun: 2}).IsGood(blk) {
		t.Fatalf("run of 3 accepted with max-run=2")
	}
	if (Analyzer{MaxBinFactor: 1, MaxRun: 4}).IsGood(blk) {
		t.Fatalf("skewed histogram accepted with bin-factor=1")
	}
}

func TestIsDuplicate(t *testing.T) {
	var (
		x = ramp(1024, 0)
		y = ramp(1024, 1)
		z = ramp(1024, 2)
	)

	for _, tc := range []struct {
		name string
		blk  []byte
		a, b []byte
		want bool
	}{
		{"x-x-y", x, x, y, true},
		{"x-y-x", x, y, x, true},
		{"x-copy", x, append([]byte(nil), x...), nil, true},
		{"x-y-z", x, y, z, false},
		{"empty-slots", x, nil, nil, false},
		{"empty-block-empty-slots", nil, nil, nil, false},
		{"prefix", x[:512], x, nil, false},
		{"longer", x, x[:512], x[:1023], false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got, want := IsDuplicate(tc.blk, tc.a, tc.b), tc.want; got != want {
				t.Fatalf("invalid duplicate status: got=%v, want=%v", got, want)
			}
		})
	}
}
