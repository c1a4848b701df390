// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package csr resolves the CSR symbol table published by the TRNG gateware.
//
// The device exposes a fixed-size region laid out as:
//
//	[u32 little-endian length][table bytes][64-byte SHA-512 digest of the table]
//
// The table holds comma-delimited records whose first column is one of
// csr_register, memory_region or csr_base.
package csr // import "github.com/go-lpc/trng/csr"

import (
	"bytes"
	"crypto/sha512"
	"encoding/binary"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/go-lpc/trng/bridge"
)

const (
	hdrLen    = 4
	DigestLen = sha512.Size

	maxWords = 32 // widest register, in 32-bit words
)

var (
	// ErrTransport reports a failure reading the region off the device.
	ErrTransport = errors.New("csr: transport error")
	// ErrDigest reports a table whose digest does not match its content.
	ErrDigest = errors.New("csr: digest mismatch")
	// ErrMissingSymbol reports a required name absent from the table.
	ErrMissingSymbol = errors.New("csr: missing symbol")
	// ErrFormat reports a malformed region or record.
	ErrFormat = errors.New("csr: invalid format")
)

// Kind is the discriminator of a table record.
type Kind int

const (
	Register Kind = iota // csr_register
	Region               // memory_region
	Base                 // csr_base
)

func (k Kind) String() string {
	switch k {
	case Register:
		return "csr_register"
	case Region:
		return "memory_region"
	case Base:
		return "csr_base"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Record is one entry of the symbol table.
// Words is the register width in 32-bit words and is only meaningful for
// registers.
type Record struct {
	Kind  Kind
	Name  string
	Addr  uint32
	Words uint32
}

// Table maps lower-case names to resolved bus addresses.
type Table struct {
	addrs map[string]uint32
}

// Lookup returns the address bound to name.
func (tbl *Table) Lookup(name string) (uint32, bool) {
	addr, ok := tbl.addrs[strings.ToLower(name)]
	return addr, ok
}

// Names returns the sorted list of resolved names.
func (tbl *Table) Names() []string {
	names := make([]string, 0, len(tbl.addrs))
	for k := range tbl.addrs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of resolved names.
func (tbl *Table) Len() int { return len(tbl.addrs) }

// ReadRegion reads size bytes at addr off the device and resolves them.
func ReadRegion(dev bridge.Transport, addr, size uint32, required ...string) (*Table, error) {
	raw, err := dev.BurstRead(addr, size)
	if err != nil {
		return nil, fmt.Errorf("%w: could not read region at 0x%08x: %w", ErrTransport, addr, err)
	}
	return Resolve(raw, required...)
}

// Resolve verifies the digest of the raw region, parses its records and
// checks every required name is bound.
func Resolve(raw []byte, required ...string) (*Table, error) {
	if len(raw) < hdrLen {
		return nil, fmt.Errorf("%w: region too short (%d bytes)", ErrFormat, len(raw))
	}
	n := uint64(binary.LittleEndian.Uint32(raw))
	if end := uint64(hdrLen) + n + DigestLen; end > uint64(len(raw)) {
		return nil, fmt.Errorf("%w: table length %d overruns %d-byte region", ErrFormat, n, len(raw))
	}
	var (
		table  = raw[hdrLen : hdrLen+n]
		digest = raw[hdrLen+n : hdrLen+n+DigestLen]
		sum    = sha512.Sum512(table)
	)
	if !bytes.Equal(sum[:], digest) {
		return nil, fmt.Errorf("%w: got=%x, want=%x", ErrDigest, sum[:8], digest[:8])
	}

	recs, err := Parse(bytes.NewReader(table))
	if err != nil {
		return nil, err
	}

	tbl := &Table{addrs: make(map[string]uint32, len(recs))}
	for _, rec := range recs {
		tbl.bind(rec)
	}

	for _, name := range required {
		if _, ok := tbl.Lookup(name); !ok {
			return nil, fmt.Errorf("%w %q", ErrMissingSymbol, strings.ToLower(name))
		}
	}
	return tbl, nil
}

func (tbl *Table) bind(rec Record) {
	tbl.addrs[rec.Name] = rec.Addr
	if rec.Kind != Register || rec.Words <= 1 {
		return
	}
	n := rec.Words
	for i := uint32(0); i < n; i++ {
		tbl.addrs[rec.Name+strconv.Itoa(int(i))] = rec.Addr + 4*(n-1-i)
	}
}

// Parse decodes the records of a table.
// Unknown discriminators, blank lines and '#' comments are skipped.
func Parse(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.Comment = '#'
	cr.TrimLeadingSpace = true

	var recs []Record
	for {
		row, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%w: %w", ErrFormat, err)
		}
		line, _ := cr.FieldPos(0)

		var rec Record
		switch strings.TrimSpace(row[0]) {
		case "csr_register":
			rec.Kind = Register
		case "memory_region":
			rec.Kind = Region
		case "csr_base":
			rec.Kind = Base
		default:
			continue
		}

		nfields := 3
		if rec.Kind == Register {
			nfields = 4
		}
		if len(row) < nfields {
			return nil, fmt.Errorf("%w: line %d: %s record needs %d fields, got %d", ErrFormat, line, rec.Kind, nfields, len(row))
		}
		rec.Name = strings.ToLower(strings.TrimSpace(row[1]))
		if rec.Name == "" {
			return nil, fmt.Errorf("%w: line %d: empty name", ErrFormat, line)
		}
		rec.Addr, err = parseUint(row[2])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: invalid address: %w", ErrFormat, line, err)
		}
		if rec.Kind == Register {
			rec.Words, err = parseUint(row[3])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: invalid width: %w", ErrFormat, line, err)
			}
			if rec.Words > maxWords {
				return nil, fmt.Errorf("%w: line %d: register %q is %d words wide (max %d)", ErrFormat, line, rec.Name, rec.Words, maxWords)
			}
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// parseUint parses a C-style number (0x, 0b, leading-zero octal or decimal).
// Go-only forms such as 0o prefixes and '_' separators are rejected.
func parseUint(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "_") || strings.HasPrefix(s, "0o") || strings.HasPrefix(s, "0O") {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

// Encode writes a CSR region holding recs to w.
func Encode(w io.Writer, recs []Record) error {
	var tbl bytes.Buffer
	for _, rec := range recs {
		switch rec.Kind {
		case Register:
			fmt.Fprintf(&tbl, "%s,%s,0x%08x,%d,rw\n", rec.Kind, rec.Name, rec.Addr, rec.Words)
		default:
			fmt.Fprintf(&tbl, "%s,%s,0x%08x\n", rec.Kind, rec.Name, rec.Addr)
		}
	}

	var hdr [hdrLen]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(tbl.Len()))
	sum := sha512.Sum512(tbl.Bytes())

	for _, p := range [][]byte{hdr[:], tbl.Bytes(), sum[:]} {
		_, err := w.Write(p)
		if err != nil {
			return fmt.Errorf("csr: could not write region: %w", err)
		}
	}
	return nil
}
