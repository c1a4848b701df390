// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command trng-csr is an interactive console to inspect the TRNG registers.
//
// Usage:
//
//	$> trng-csr [OPTIONS]
//	trng> csr
//	trng> peek messible_out
//	trng> poke messible2_in 2
//	trng> dump 0x40200000 256
//	trng> quit
package main // import "github.com/go-lpc/trng/cmd/trng-csr"

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-lpc/trng/csr"
	"github.com/go-lpc/trng/internal/config"
	"github.com/peterh/liner"
)

func main() {
	log.SetPrefix("trng-csr: ")
	log.SetFlags(0)

	var (
		fname   = flag.String("cfg", "", "path to a YAML configuration file")
		kind    = flag.String("bridge", "", "bridge kind (usb, uart or mem)")
		port    = flag.String("port", "", "serial port of the uart bridge")
		csrAddr = flag.Uint("csr-addr", 0, "address of the CSR region")
		csrSize = flag.Uint("csr-size", 0, "size of the CSR region")
	)

	flag.Parse()

	cfg := new(config.Config)
	if *fname != "" {
		v, err := config.Load(*fname)
		if err != nil {
			log.Fatalf("could not load configuration: %+v", err)
		}
		cfg = v
	}
	if *kind != "" {
		cfg.Bridge.Kind = *kind
	}
	if *port != "" {
		cfg.Bridge.Port = *port
	}
	if *csrSize != 0 {
		cfg.CSR.Addr = uint32(*csrAddr)
		cfg.CSR.Size = uint32(*csrSize)
	}
	config.Normalize(cfg)
	err := config.Validate(cfg)
	if err != nil {
		log.Fatalf("invalid configuration: %+v", err)
	}

	dev, err := cfg.Bridge.Open()
	if err != nil {
		log.Fatalf("could not open bridge %v: %+v", cfg.Bridge, err)
	}
	defer dev.Close()

	con := &console{dev: dev, w: os.Stdout}
	if cfg.CSR.Size != 0 {
		tbl, err := csr.ReadRegion(dev, cfg.CSR.Addr, cfg.CSR.Size)
		if err != nil {
			log.Fatalf("could not resolve CSR table: %+v", err)
		}
		con.tbl = tbl
		log.Printf("csr: %d symbols", tbl.Len())
	}

	err = repl(con)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func repl(con *console) error {
	term := liner.NewLiner()
	defer term.Close()

	term.SetCtrlCAborts(true)
	term.SetCompleter(con.complete)

	hist := filepath.Join(os.TempDir(), ".trng-csr.history")
	if f, err := os.Open(hist); err == nil {
		_, _ = term.ReadHistory(f)
		f.Close()
	}
	defer func() {
		f, err := os.Create(hist)
		if err != nil {
			return
		}
		defer f.Close()
		_, _ = term.WriteHistory(f)
	}()

	for {
		line, err := term.Prompt("trng> ")
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				return nil
			}
			return fmt.Errorf("could not read command: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		term.AppendHistory(line)

		err = con.exec(line)
		switch {
		case errors.Is(err, errQuit):
			return nil
		case err != nil:
			fmt.Fprintf(con.w, "error: %+v\n", err)
		}
	}
}
