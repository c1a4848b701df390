// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command trng-acq drains validated random blocks from the TRNG to stdout.
//
// Usage:
//
//	$> trng-acq [OPTIONS] > random.bin
//
// Example:
//
//	$> trng-acq -cfg trng.yaml -diag log.txt -http :8080 > random.bin
//	$> trng-acq -bridge uart -port /dev/ttyUSB1 -csr-addr 0x10000000 -csr-size 8192 > random.bin
//
// Options:
//
//	-bridge string   bridge kind (usb, uart or mem)
//	-cfg string      path to a YAML configuration file
//	-csr-addr uint   address of the CSR region
//	-csr-size uint   size of the CSR region (0: static register addresses)
//	-db string       run database DSN
//	-db-drv string   run database driver (mysql or sqlite3)
//	-diag string     path to the diagnostic log (default "log.txt")
//	-env string      path to a .env file with the alert mail credentials
//	-freq duration   pmon frequency (default 1s)
//	-http string     [ip]:port of the status endpoint
//	-pmon            enable pmon monitoring
//	-port string     serial port of the uart bridge
//	-v               enable verbose mode
package main // import "github.com/go-lpc/trng/cmd/trng-acq"

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tlog "github.com/go-daq/tdaq/log"
	"github.com/go-lpc/trng/acq"
	"github.com/go-lpc/trng/alert"
	"github.com/go-lpc/trng/csr"
	"github.com/go-lpc/trng/internal/config"
	"github.com/go-lpc/trng/rundb"
	"github.com/sbinet/pmon"
	"github.com/tebeka/atexit"
	"golang.org/x/sync/errgroup"
)

// CSR symbols of the phase handshake registers.
const (
	symPhaseOut = "messible_out"
	symPhaseIn  = "messible2_in"
)

func main() {
	log.SetPrefix("trng-acq: ")
	log.SetFlags(0)

	var (
		fname   = flag.String("cfg", "", "path to a YAML configuration file")
		kind    = flag.String("bridge", "", "bridge kind (usb, uart or mem)")
		port    = flag.String("port", "", "serial port of the uart bridge")
		csrAddr = flag.Uint("csr-addr", 0, "address of the CSR region")
		csrSize = flag.Uint("csr-size", 0, "size of the CSR region (0: static register addresses)")
		diag    = flag.String("diag", "", "path to the diagnostic log (default \"log.txt\")")
		dbDrv   = flag.String("db-drv", "", "run database driver (mysql or sqlite3)")
		dbDSN   = flag.String("db", "", "run database DSN")
		env     = flag.String("env", "", "path to a .env file with the alert mail credentials")
		addr    = flag.String("http", "", "[ip]:port of the status endpoint")
		doMon   = flag.Bool("pmon", false, "enable pmon monitoring")
		freq    = flag.Duration("freq", 1*time.Second, "pmon frequency")
		verbose = flag.Bool("v", false, "enable verbose mode")
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

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "bridge":
			cfg.Bridge.Kind = *kind
		case "port":
			cfg.Bridge.Port = *port
		case "csr-addr":
			cfg.CSR.Addr = uint32(*csrAddr)
		case "csr-size":
			cfg.CSR.Size = uint32(*csrSize)
		case "diag":
			cfg.Diag = *diag
		case "db-drv":
			cfg.DB.Driver = *dbDrv
		case "db":
			cfg.DB.DSN = *dbDSN
		case "env":
			cfg.Alert.Enabled = true
			cfg.Alert.Env = *env
		}
	})
	if cfg.Diag == "" {
		cfg.Diag = "log.txt"
	}

	config.Normalize(cfg)
	err := config.Validate(cfg)
	if err != nil {
		log.Fatalf("invalid configuration: %+v", err)
	}

	lvl := tlog.LvlInfo
	if *verbose {
		lvl = tlog.LvlDebug
	}
	msg := tlog.NewMsgStream("trng-acq", lvl, os.Stderr)

	if *doMon {
		err = monitor(*freq, cfg.Diag)
		if err != nil {
			log.Fatalf("could not start pmon: %+v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = run(ctx, cfg, os.Stdout, msg, *addr)
	if err != nil {
		log.Printf("%+v", err)
		atexit.Exit(1)
	}
	atexit.Exit(0)
}

func monitor(freq time.Duration, diag string) error {
	p, err := pmon.Monitor(os.Getpid())
	if err != nil {
		return fmt.Errorf("could not monitor pid=%d: %w", os.Getpid(), err)
	}
	fname := strings.TrimSuffix(diag, filepath.Ext(diag)) + "-pmon.log"
	f, err := os.Create(fname)
	if err != nil {
		return fmt.Errorf("could not create pmon log file: %w", err)
	}
	p.W = f
	p.Freq = freq

	go func() {
		err := p.Run()
		if err != nil {
			log.Printf("could not run pmon: %+v", err)
		}
	}()

	atexit.Register(func() {
		err := p.Kill()
		if err != nil {
			log.Printf("could not stop monitoring: %+v", err)
		}
		_ = f.Close()
	})
	return nil
}

func run(ctx context.Context, cfg *config.Config, out io.Writer, msg tlog.MsgStream, addr string) error {
	dev, err := cfg.Bridge.Open()
	if err != nil {
		return fmt.Errorf("could not open bridge %v: %w", cfg.Bridge, err)
	}
	defer dev.Close()

	opts := cfg.Options()
	switch cfg.CSR.Size {
	case 0:
		msg.Warnf("csr: resolution disabled, using static registers (%s=0x%08x, %s=0x%08x)",
			symPhaseOut, cfg.Acq.PhaseOut, symPhaseIn, cfg.Acq.PhaseIn,
		)
	default:
		tbl, err := csr.ReadRegion(dev, cfg.CSR.Addr, cfg.CSR.Size, symPhaseOut, symPhaseIn)
		if err != nil {
			return fmt.Errorf("could not resolve CSR table: %w", err)
		}
		phaseOut, _ := tbl.Lookup(symPhaseOut)
		phaseIn, _ := tbl.Lookup(symPhaseIn)
		msg.Infof("csr: %d symbols (%s=0x%08x, %s=0x%08x)",
			tbl.Len(), symPhaseOut, phaseOut, symPhaseIn, phaseIn,
		)
		opts = append(opts, acq.WithPhaseRegs(phaseOut, phaseIn))
	}

	f, err := os.OpenFile(cfg.Diag, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("could not open diagnostic log: %w", err)
	}
	defer f.Close()

	var (
		diag  = acq.NewLogSink(f)
		st    = newStatus(cfg.Bridge.String())
		sinks = []acq.Sink{diag, st}
	)

	var sess *rundb.Session
	if cfg.DB.DSN != "" {
		db, err := rundb.Open(cfg.DB.Driver, cfg.DB.DSN)
		if err != nil {
			return fmt.Errorf("could not open run database: %w", err)
		}
		defer db.Close()

		err = db.Init(ctx)
		if err != nil {
			return fmt.Errorf("could not initialize run database: %w", err)
		}

		host, _ := os.Hostname()
		sess, err = db.Begin(ctx, rundb.Info{
			Host:   host,
			Bridge: cfg.Bridge.String(),
		})
		if err != nil {
			return fmt.Errorf("could not create run session: %w", err)
		}
		msg.Infof("run session: %s", sess.ID())
		sinks = append(sinks, sess)
	}

	sink := acq.MultiSink(sinks...)
	if cfg.Alert.Enabled {
		if cfg.Alert.Env != "" {
			err = alert.LoadEnv(cfg.Alert.Env)
			if err != nil {
				return err
			}
		}
		ntf := alert.New(sink,
			alert.WithThreshold(cfg.Alert.Threshold),
			alert.WithMaxAlerts(cfg.Alert.MaxAlerts),
			alert.WithName(cfg.Alert.Name),
			alert.WithMsgStream(msg),
		)
		defer ntf.Close()
		sink = ntf
	}

	opts = append(opts, acq.WithSink(sink), acq.WithMsgStream(msg))
	loop, err := acq.New(dev, out, opts...)
	if err != nil {
		return fmt.Errorf("could not create acquisition loop: %w", err)
	}

	grp, ctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		return loop.Run(ctx)
	})

	if addr != "" {
		srv := &http.Server{
			Addr:              addr,
			Handler:           st.router(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		grp.Go(func() error {
			msg.Infof("serving status on %q...", addr)
			err := srv.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("could not serve status: %w", err)
			}
			return nil
		})
		grp.Go(func() error {
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	err = grp.Wait()

	stats := loop.Stats()
	msg.Infof(
		"cycles=%d, accepted=%d, suspicious=%d, duplicates=%d, io-errors=%d, forced=%d",
		stats.Cycles, stats.Accepted, stats.Suspicious,
		stats.Duplicates, stats.IOErrors, stats.Forced,
	)

	if sess != nil {
		// the run context may already be canceled.
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if e := sess.Close(sctx, stats); e != nil && err == nil {
			err = fmt.Errorf("could not close run session: %w", e)
		}
	}
	if e := diag.Err(); e != nil && err == nil {
		err = e
	}

	return err
}
