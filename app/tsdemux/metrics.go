// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/m2ts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/q191201771/m2ts/pkg/mpegts"
	"github.com/q191201771/naza/pkg/nazalog"
)

const (
	metricsNamespace = "m2ts"
	demuxSubsystem   = "demux"
)

var sessionLabels = []string{"session", "name"}

func newCounterDesc(name, help string) *prometheus.Desc {
	return prometheus.NewDesc(
		prometheus.BuildFQName(metricsNamespace, demuxSubsystem, name),
		help,
		sessionLabels, nil,
	)
}

var (
	activeSessionsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(metricsNamespace, demuxSubsystem, "active_sessions"),
		"The number of active demux sessions",
		nil, nil,
	)

	packetsTotalDesc         = newCounterDesc("packets_total", "total number of transport packets")
	resyncBytesTotalDesc     = newCounterDesc("resync_bytes_total", "total number of bytes skipped while searching for sync")
	packetErrorsTotalDesc    = newCounterDesc("packet_errors_total", "total number of packets with a malformed adaptation field")
	transportErrorsTotalDesc = newCounterDesc("transport_errors_total", "total number of packets with transport_error_indicator set")
	scrambledTotalDesc       = newCounterDesc("scrambled_packets_total", "total number of scrambled packets")
	ccErrorsTotalDesc        = newCounterDesc("cc_errors_total", "total number of continuity counter errors")
	duplicatesTotalDesc      = newCounterDesc("duplicate_packets_total", "total number of duplicate packets")
	sectionsTotalDesc        = newCounterDesc("sections_total", "total number of sections with a valid CRC")
	crcErrorsTotalDesc       = newCounterDesc("crc_errors_total", "total number of sections with a CRC mismatch")
	sectionErrorsTotalDesc   = newCounterDesc("section_errors_total", "total number of malformed sections")
	oversizedTotalDesc       = newCounterDesc("oversized_sections_total", "total number of sections longer than allowed")
	pesTotalDesc             = newCounterDesc("pes_packets_total", "total number of reassembled PES packets")
	droppedPesTotalDesc      = newCounterDesc("dropped_pes_total", "total number of dropped PES packets")

	eventsTotalDesc = prometheus.NewDesc(
		prometheus.BuildFQName(metricsNamespace, demuxSubsystem, "events_total"),
		"total number of dispatched events by type",
		[]string{"session", "name", "type"}, nil,
	)
)

// Exporter collects metrics. It implements prometheus.Collector.
type Exporter struct {
	sm *SessionManager
}

func NewExporter(sm *SessionManager) *Exporter {
	return &Exporter{sm: sm}
}

// Describe implements prometheus.Collector.
func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- activeSessionsDesc
	ch <- packetsTotalDesc
	ch <- resyncBytesTotalDesc
	ch <- packetErrorsTotalDesc
	ch <- transportErrorsTotalDesc
	ch <- scrambledTotalDesc
	ch <- ccErrorsTotalDesc
	ch <- duplicatesTotalDesc
	ch <- sectionsTotalDesc
	ch <- crcErrorsTotalDesc
	ch <- sectionErrorsTotalDesc
	ch <- oversizedTotalDesc
	ch <- pesTotalDesc
	ch <- droppedPesTotalDesc
	ch <- eventsTotalDesc
}

// Collect implements prometheus.Collector.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	sessions := e.sm.Sessions()
	ch <- prometheus.MustNewConstMetric(activeSessionsDesc, prometheus.GaugeValue, float64(len(sessions)))
	for _, s := range sessions {
		st := s.Stats()
		uk, name := s.UniqueKey(), s.Name()
		counter := func(desc *prometheus.Desc, v uint64) {
			ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v), uk, name)
		}
		counter(packetsTotalDesc, st.Packets)
		counter(resyncBytesTotalDesc, st.ResyncBytes)
		counter(packetErrorsTotalDesc, st.PacketErrors)
		counter(transportErrorsTotalDesc, st.TransportErrors)
		counter(scrambledTotalDesc, st.Scrambled)
		counter(ccErrorsTotalDesc, st.CcErrors)
		counter(duplicatesTotalDesc, st.Duplicates)
		counter(sectionsTotalDesc, st.Sections)
		counter(crcErrorsTotalDesc, st.CrcErrors)
		counter(sectionErrorsTotalDesc, st.SectionErrors)
		counter(oversizedTotalDesc, st.OversizedSections)
		counter(pesTotalDesc, st.PesPackets)
		counter(droppedPesTotalDesc, st.DroppedPes)
		for typ, n := range st.Events {
			ch <- prometheus.MustNewConstMetric(eventsTotalDesc, prometheus.CounterValue, float64(n), uk, name, typ)
		}
	}
}

// runHttpServer /metrics 给prometheus拉取，/api/stat 返回json格式的统计
func runHttpServer(addr string, sm *SessionManager) {
	nazalog.Infof("start http server listen. addr=%s", addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      newHttpRouter(sm),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		nazalog.Errorf("http server failed. err=%+v", err)
	}
}

func newHttpRouter(sm *SessionManager) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewExporter(sm))

	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.HandleFunc("/api/stat", func(w http.ResponseWriter, req *http.Request) {
		var ret []sessionStat
		for _, s := range sm.Sessions() {
			ret = append(ret, newSessionStat(s))
		}
		writeJson(w, http.StatusOK, ret)
	}).Methods(http.MethodGet)
	r.HandleFunc("/api/stat/{session}", func(w http.ResponseWriter, req *http.Request) {
		s := sm.Get(mux.Vars(req)["session"])
		if s == nil {
			writeJson(w, http.StatusNotFound, nil)
			return
		}
		writeJson(w, http.StatusOK, newSessionStat(s))
	}).Methods(http.MethodGet)
	return r
}

type sessionStat struct {
	SessionId string               `json:"session_id"`
	Name      string               `json:"name"`
	PesCount  map[uint16]int       `json:"pes_count"`
	Stats     mpegts.StatsSnapshot `json:"stats"`
}

func newSessionStat(s *DemuxSession) sessionStat {
	return sessionStat{
		SessionId: s.UniqueKey(),
		Name:      s.Name(),
		PesCount:  s.PesCount(),
		Stats:     s.Stats(),
	}
}

func writeJson(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
