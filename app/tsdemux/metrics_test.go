// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/m2ts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/q191201771/naza/pkg/assert"
)

func TestExporter(t *testing.T) {
	config := defaultTestConfig(t)
	sm := NewSessionManager()
	e := NewExporter(sm)

	assert.Equal(t, 1, testutil.CollectAndCount(e, "m2ts_demux_active_sessions"))
	assert.Equal(t, 0, testutil.CollectAndCount(e, "m2ts_demux_packets_total"))

	s, err := NewDemuxSession("sample", &config.Demuxer, SessionOption{DumpPid: -1})
	assert.Equal(t, nil, err)
	sample := genSample(t)
	assert.Equal(t, nil, feedFromReader(s, bytes.NewReader(sample), config.Input.ReadBufSize))
	assert.Equal(t, nil, s.Close())
	sm.Add(s)

	assert.Equal(t, 1, testutil.CollectAndCount(e, "m2ts_demux_packets_total"))
	expected := `
# HELP m2ts_demux_active_sessions The number of active demux sessions
# TYPE m2ts_demux_active_sessions gauge
m2ts_demux_active_sessions 1
`
	err = testutil.CollectAndCompare(e, strings.NewReader(expected), "m2ts_demux_active_sessions")
	assert.Equal(t, nil, err)

	// PAT_FOUND PAT_REPEAT PMT_FOUND PMT_REPEAT PES_PCK PES_PCR AAC_CFG
	assert.Equal(t, 7, testutil.CollectAndCount(e, "m2ts_demux_events_total"))
}

func TestHttpRouter(t *testing.T) {
	config := defaultTestConfig(t)
	sm := NewSessionManager()
	s, err := NewDemuxSession("sample", &config.Demuxer, SessionOption{DumpPid: -1})
	assert.Equal(t, nil, err)
	assert.Equal(t, nil, feedFromReader(s, bytes.NewReader(genSample(t)), config.Input.ReadBufSize))
	assert.Equal(t, nil, s.Close())
	sm.Add(s)

	srv := httptest.NewServer(newHttpRouter(sm))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/stat")
	assert.Equal(t, nil, err)
	var all []sessionStat
	assert.Equal(t, nil, json.NewDecoder(resp.Body).Decode(&all))
	_ = resp.Body.Close()
	assert.Equal(t, 1, len(all))
	assert.Equal(t, s.UniqueKey(), all[0].SessionId)
	assert.Equal(t, testVideoFrames, all[0].PesCount[genVideoPid])
	assert.Equal(t, uint64(testVideoFrames+testAudioFrames), all[0].Stats.PesPackets)

	resp, err = http.Get(srv.URL + "/api/stat/" + s.UniqueKey())
	assert.Equal(t, nil, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = http.Get(srv.URL + "/api/stat/NOT_EXIST")
	assert.Equal(t, nil, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = http.Get(srv.URL + "/metrics")
	assert.Equal(t, nil, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()
}
