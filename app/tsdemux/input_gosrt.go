// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/m2ts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

//go:build !srt
// +build !srt

package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	gosrt "github.com/datarhei/gosrt"
	"github.com/q191201771/naza/pkg/nazaatomic"
	"github.com/q191201771/naza/pkg/nazalog"
)

// runSrtListener 纯Go实现的srt listener，不依赖libsrt。带 srt 编译标签时换成基于libsrt的实现
//
// @param addr: host:port，host可以为空
func runSrtListener(addr string, config *Config, sm *SessionManager, opt SessionOption) error {
	conf := gosrt.DefaultConfig()
	conf.Latency = time.Duration(config.Input.SrtLatencyMs) * time.Millisecond
	ln, err := gosrt.Listen("srt", addr, conf)
	if err != nil {
		return err
	}
	defer ln.Close()
	nazalog.Infof("start srt listen. addr=%s", addr)

	var conns nazaatomic.Int32
	for {
		req, err := ln.Accept2()
		if err != nil {
			if errors.Is(err, gosrt.ErrListenerClosed) {
				return nil
			}
			nazalog.Errorf("srt accept failed. err=%+v", err)
			continue
		}

		nazalog.Infof("srt socket will connect. addr=%s, streamid=%s", req.RemoteAddr(), req.StreamId())
		id, err := parseStreamId(req.StreamId())
		if err != nil || id.Resource == "" || !id.IsPublish() {
			req.Reject(gosrt.REJ_PEER)
			continue
		}
		if !id.Allowed(config.Input.SrtAllow) || int(conns.Load()) >= config.Input.SrtMaxConn {
			req.Reject(gosrt.REJX_UNAUTHORIZED)
			continue
		}

		conn, err := req.Accept()
		if err != nil {
			nazalog.Errorf("srt accept failed. err=%+v", err)
			continue
		}
		conns.Add(1)
		go func() {
			defer conns.Add(-1)
			handleSrtConn(conn, id, config, sm, opt)
		}()
	}
}

func handleSrtConn(conn gosrt.Conn, id *StreamId, config *Config, sm *SessionManager, opt SessionOption) {
	defer conn.Close()

	if opt.DumpPid >= 0 {
		opt.DumpFilename = fmt.Sprintf("%s.%s", opt.DumpFilename, strings.ReplaceAll(id.Resource, "/", "_"))
	}
	s, err := NewDemuxSession(id.Resource, &config.Demuxer, opt)
	if err != nil {
		nazalog.Errorf("new demux session failed. err=%+v", err)
		return
	}
	sm.Add(s)
	defer sm.Remove(s)

	err = feedFromReader(s, conn, config.Input.ReadBufSize)
	if err != nil && !errors.Is(err, io.EOF) {
		nazalog.Errorf("[%s] srt read failed. addr=%s, err=%+v", s.UniqueKey(), conn.RemoteAddr(), err)
	} else {
		nazalog.Infof("[%s] srt connection closed. addr=%s", s.UniqueKey(), conn.RemoteAddr())
	}
	if err = s.Close(); err != nil {
		nazalog.Warnf("[%s] flush. err=%+v", s.UniqueKey(), err)
	}
}
