// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-lpc/trng/bridge"
	"github.com/go-lpc/trng/csr"
)

var errQuit = errors.New("quit")

var cmds = []string{"csr", "dump", "help", "peek", "poke", "quit"}

type console struct {
	dev bridge.Transport
	tbl *csr.Table
	w   io.Writer
}

func (con *console) exec(line string) error {
	args := strings.Fields(line)
	if len(args) == 0 {
		return nil
	}

	switch cmd, args := strings.ToLower(args[0]), args[1:]; cmd {
	case "quit", "exit":
		return errQuit

	case "help":
		fmt.Fprintf(con.w, `commands:
  csr                    list the CSR symbols
  peek <reg>             read a 32-bit register
  poke <reg> <value>     write a 32-bit register
  dump <addr> <nbytes>   burst-read memory
  quit                   leave the console
`)
		return nil

	case "csr":
		if con.tbl == nil {
			return fmt.Errorf("no CSR table loaded")
		}
		for _, name := range con.tbl.Names() {
			addr, _ := con.tbl.Lookup(name)
			fmt.Fprintf(con.w, "0x%08x  %s\n", addr, name)
		}
		return nil

	case "peek":
		if len(args) != 1 {
			return fmt.Errorf("usage: peek <reg>")
		}
		addr, err := con.addr(args[0])
		if err != nil {
			return err
		}
		v, err := con.dev.Peek(addr)
		if err != nil {
			return fmt.Errorf("could not peek 0x%08x: %w", addr, err)
		}
		fmt.Fprintf(con.w, "0x%08x: 0x%08x (%d)\n", addr, v, v)
		return nil

	case "poke":
		if len(args) != 2 {
			return fmt.Errorf("usage: poke <reg> <value>")
		}
		addr, err := con.addr(args[0])
		if err != nil {
			return err
		}
		v, err := parseUint(args[1])
		if err != nil {
			return fmt.Errorf("invalid value %q: %w", args[1], err)
		}
		err = con.dev.Poke(addr, v)
		if err != nil {
			return fmt.Errorf("could not poke 0x%08x: %w", addr, err)
		}
		return nil

	case "dump":
		if len(args) != 2 {
			return fmt.Errorf("usage: dump <addr> <nbytes>")
		}
		addr, err := con.addr(args[0])
		if err != nil {
			return err
		}
		n, err := parseUint(args[1])
		if err != nil {
			return fmt.Errorf("invalid size %q: %w", args[1], err)
		}
		raw, err := con.dev.BurstRead(addr, n)
		if err != nil {
			return fmt.Errorf("could not read %d bytes at 0x%08x: %w", n, addr, err)
		}
		dump(con.w, addr, raw)
		return nil
	}

	return fmt.Errorf("unknown command %q (try help)", args[0])
}

// addr resolves s as a CSR symbol or as a numeric address.
func (con *console) addr(s string) (uint32, error) {
	if con.tbl != nil {
		if addr, ok := con.tbl.Lookup(s); ok {
			return addr, nil
		}
	}
	addr, err := parseUint(s)
	if err != nil {
		return 0, fmt.Errorf("unknown register %q", s)
	}
	return addr, nil
}

func (con *console) complete(line string) []string {
	var (
		out    []string
		fields = strings.Fields(line)
	)
	switch {
	case len(fields) == 0:
		return cmds
	case len(fields) == 1 && !strings.HasSuffix(line, " "):
		for _, cmd := range cmds {
			if strings.HasPrefix(cmd, fields[0]) {
				out = append(out, cmd)
			}
		}
	case con.tbl != nil && len(fields) <= 2:
		prefix := ""
		if len(fields) == 2 {
			prefix = fields[1]
		}
		for _, name := range con.tbl.Names() {
			if strings.HasPrefix(name, prefix) {
				out = append(out, fields[0]+" "+name)
			}
		}
	}
	return out
}

func parseUint(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

func dump(w io.Writer, addr uint32, raw []byte) {
	for i := 0; i < len(raw); i += 16 {
		end := min(i+16, len(raw))
		fmt.Fprintf(w, "0x%08x:", addr+uint32(i))
		for _, v := range raw[i:end] {
			fmt.Fprintf(w, " %02x", v)
		}
		fmt.Fprintf(w, "\n")
	}
}
