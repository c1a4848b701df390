// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-lpc/trng/acq"
	"github.com/gorilla/mux"
)

// status is a sink tracking the acquisition outcomes for the status endpoint.
type status struct {
	mu  sync.Mutex
	now func() time.Time
	cur snapshot
}

type snapshot struct {
	Bridge      string    `json:"bridge"`
	Start       time.Time `json:"start"`
	Accepted    int64     `json:"accepted"`
	Suspicious  int64     `json:"suspicious"`
	Anomalies   int64     `json:"anomalies"`
	LastOK      time.Time `json:"last_ok"`
	LastAnomaly string    `json:"last_anomaly,omitempty"`
}

func newStatus(bridge string) *status {
	st := &status{now: time.Now}
	st.cur.Bridge = bridge
	st.cur.Start = st.now().UTC()
	return st
}

func (st *status) RecordOK(block int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.cur.Accepted++
	st.cur.LastOK = st.now().UTC()
}

func (st *status) RecordSuspicious(block int, raw []byte) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.cur.Suspicious++
}

func (st *status) RecordAnomaly(msg string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.cur.Anomalies++
	st.cur.LastAnomaly = msg
}

func (st *status) snapshot() snapshot {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.cur
}

func (st *status) router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/status", st.handleStatus).Methods(http.MethodGet)
	return r
}

func (st *status) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(st.snapshot())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

var (
	_ acq.Sink = (*status)(nil)
)
