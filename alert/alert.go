// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package alert sends mail alerts when the acquisition link misbehaves.
package alert // import "github.com/go-lpc/trng/alert"

import (
	"crypto/tls"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/trng/acq"
	"github.com/joho/godotenv"
	mail "gopkg.in/gomail.v2"
)

const (
	DefaultThreshold = 8
	DefaultMaxAlerts = 5

	maxHistory = 16
)

// Config holds the mail credentials and recipients.
type Config struct {
	Username string
	Password string
	Server   string
	Port     int
	Targets  []string
}

// LoadEnv loads the provided .env files into the process environment.
// Variables already set are left untouched.
func LoadEnv(fnames ...string) error {
	err := godotenv.Load(fnames...)
	if err != nil {
		return fmt.Errorf("alert: could not load env files %q: %w", fnames, err)
	}
	return nil
}

// ConfigFromEnv reads the MAIL_USERNAME, MAIL_PASSWORD, MAIL_SERVER,
// MAIL_PORT and MAIL_TGTS (comma-separated) variables.
func ConfigFromEnv() Config {
	port, _ := strconv.Atoi(os.Getenv("MAIL_PORT"))
	var tgts []string
	for _, v := range strings.Split(os.Getenv("MAIL_TGTS"), ",") {
		v = strings.TrimSpace(v)
		if v != "" {
			tgts = append(tgts, v)
		}
	}
	return Config{
		Username: os.Getenv("MAIL_USERNAME"),
		Password: os.Getenv("MAIL_PASSWORD"),
		Server:   os.Getenv("MAIL_SERVER"),
		Port:     port,
		Targets:  tgts,
	}
}

func (cfg Config) valid() bool {
	return cfg.Username != "" && cfg.Password != "" &&
		cfg.Server != "" && cfg.Port != 0 && len(cfg.Targets) != 0
}

// SendFunc delivers one alert.
type SendFunc func(subject, body string) error

// Mailer returns a SendFunc delivering alerts by mail with cfg.
func Mailer(cfg Config) SendFunc {
	return func(subject, body string) error {
		if !cfg.valid() {
			return fmt.Errorf("alert: missing mail credentials")
		}

		msg := mail.NewMessage()
		msg.SetHeader("From", cfg.Username)
		msg.SetHeader("Bcc", cfg.Targets...)
		msg.SetHeader("Subject", subject)
		msg.SetBody("text/plain", body)

		dial := mail.NewDialer(cfg.Server, cfg.Port, cfg.Username, cfg.Password)
		dial.TLSConfig = &tls.Config{
			ServerName: cfg.Server,
		}
		err := dial.DialAndSend(msg)
		if err != nil {
			return fmt.Errorf("alert: could not send mail: %w", err)
		}
		return nil
	}
}

// Notifier is an acq.Sink forwarding every record to an underlying sink and
// sending an alert when the number of consecutive non-OK records reaches a
// threshold. It re-arms after the next accepted block.
// At most MaxAlerts alerts are sent over the lifetime of a Notifier.
type Notifier struct {
	sink      acq.Sink
	send      SendFunc
	name      string
	threshold int
	maxAlerts int
	msg       log.MsgStream
	now       func() time.Time

	mu      sync.Mutex
	run     int
	sent    int
	armed   bool
	history []string

	wg sync.WaitGroup
}

// Option configures a Notifier.
type Option func(*Notifier)

func WithThreshold(n int) Option {
	return func(ntf *Notifier) { ntf.threshold = n }
}

func WithMaxAlerts(n int) Option {
	return func(ntf *Notifier) { ntf.maxAlerts = n }
}

// WithSender sets the function delivering alerts.
// The default delivers mails configured from the environment.
func WithSender(send SendFunc) Option {
	return func(ntf *Notifier) { ntf.send = send }
}

// WithName sets the name used in alert subjects.
func WithName(name string) Option {
	return func(ntf *Notifier) { ntf.name = name }
}

func WithMsgStream(msg log.MsgStream) Option {
	return func(ntf *Notifier) { ntf.msg = msg }
}

// New returns a Notifier decorating sink.
func New(sink acq.Sink, opts ...Option) *Notifier {
	ntf := &Notifier{
		sink:      sink,
		name:      "trng-acq",
		threshold: DefaultThreshold,
		maxAlerts: DefaultMaxAlerts,
		msg:       log.NewMsgStream("alert", log.LvlInfo, io.Discard),
		now:       time.Now,
		armed:     true,
	}
	for _, opt := range opts {
		opt(ntf)
	}
	if ntf.send == nil {
		ntf.send = Mailer(ConfigFromEnv())
	}
	return ntf
}

func (ntf *Notifier) RecordOK(block int) {
	ntf.sink.RecordOK(block)

	ntf.mu.Lock()
	defer ntf.mu.Unlock()
	ntf.run = 0
	ntf.armed = true
	ntf.history = ntf.history[:0]
}

func (ntf *Notifier) RecordSuspicious(block int, raw []byte) {
	ntf.sink.RecordSuspicious(block, raw)
	ntf.bad(fmt.Sprintf("suspicious block (%d blocks accepted so far)", block))
}

func (ntf *Notifier) RecordAnomaly(msg string) {
	ntf.sink.RecordAnomaly(msg)
	ntf.bad(msg)
}

func (ntf *Notifier) bad(what string) {
	ntf.mu.Lock()
	defer ntf.mu.Unlock()

	ntf.run++
	if len(ntf.history) == maxHistory {
		copy(ntf.history, ntf.history[1:])
		ntf.history = ntf.history[:maxHistory-1]
	}
	ntf.history = append(ntf.history, what)

	if !ntf.armed || ntf.run < ntf.threshold {
		return
	}
	ntf.armed = false
	if ntf.sent >= ntf.maxAlerts {
		ntf.msg.Warnf("%d consecutive failed cycles, alert quota exhausted", ntf.run)
		return
	}
	ntf.sent++

	var (
		subject = fmt.Sprintf("[%s] link alert: %d consecutive failed cycles", ntf.name, ntf.run)
		body    = new(strings.Builder)
	)
	fmt.Fprintf(body, "time: %s\n", ntf.now().UTC().Format(time.RFC3339))
	fmt.Fprintf(body, "alert: %d/%d\n\nlast records:\n", ntf.sent, ntf.maxAlerts)
	for _, v := range ntf.history {
		fmt.Fprintf(body, "- %s\n", v)
	}

	ntf.msg.Warnf("%d consecutive failed cycles, sending alert %d/%d", ntf.run, ntf.sent, ntf.maxAlerts)
	ntf.wg.Add(1)
	go func(subject, body string) {
		defer ntf.wg.Done()
		err := ntf.send(subject, body)
		if err != nil {
			ntf.msg.Errorf("could not send alert: %+v", err)
		}
	}(subject, body.String())
}

// Sent returns the number of alerts sent so far.
func (ntf *Notifier) Sent() int {
	ntf.mu.Lock()
	defer ntf.mu.Unlock()
	return ntf.sent
}

// Close waits for in-flight alerts to be delivered.
func (ntf *Notifier) Close() error {
	ntf.wg.Wait()
	return nil
}

var (
	_ acq.Sink = (*Notifier)(nil)
)
