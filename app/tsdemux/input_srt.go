// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/m2ts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

//go:build srt
// +build srt

package main

// #cgo LDFLAGS: -lsrt
// #include <srt/srt.h>
import "C"

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/haivision/srtgo"
	"github.com/q191201771/naza/pkg/nazaatomic"
	"github.com/q191201771/naza/pkg/nazalog"
)

type srtListener struct {
	config *Config
	sm     *SessionManager
	opt    SessionOption

	conns nazaatomic.Int32
}

// runSrtListener 每个推流的连接创建一个独立的 DemuxSession
//
// @param addr: host:port，host可以为空
func runSrtListener(addr string, config *Config, sm *SessionManager, opt SessionOption) error {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if host == "" {
		host = "0.0.0.0"
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return err
	}

	options := make(map[string]string)
	options["transtype"] = "live"
	options["latency"] = strconv.Itoa(config.Input.SrtLatencyMs)

	sck := srtgo.NewSrtSocket(host, uint16(port), options)
	if sck == nil {
		return fmt.Errorf("create srt socket failed. addr=%s", addr)
	}
	defer sck.Close()

	l := &srtListener{
		config: config,
		sm:     sm,
		opt:    opt,
	}
	sck.SetListenCallback(l.listenCallback)
	if err = sck.Listen(config.Input.SrtMaxConn); err != nil {
		return err
	}
	nazalog.Infof("start srt listen. addr=%s:%d", host, port)

	for {
		socket, raddr, err := sck.Accept()
		if err != nil {
			nazalog.Errorf("srt accept failed. err=%+v", err)
			continue
		}
		go l.handle(socket, raddr)
	}
}

func (l *srtListener) listenCallback(socket *srtgo.SrtSocket, version int, addr *net.UDPAddr, streamid string) bool {
	nazalog.Infof("srt socket will connect. hs_version=%d, addr=%s, streamid=%s", version, addr, streamid)

	id, err := parseStreamId(streamid)
	if err != nil || id.Resource == "" {
		socket.SetRejectReason(srtgo.RejectionReasonBadRequest)
		return false
	}
	// 只接收推流
	if !id.IsPublish() {
		socket.SetRejectReason(srtgo.RejectionReasonBadRequest)
		return false
	}
	if !id.Allowed(l.config.Input.SrtAllow) || int(l.conns.Load()) >= l.config.Input.SrtMaxConn {
		socket.SetRejectReason(srtgo.RejectionReasonBadRequest)
		return false
	}
	return true
}

func (l *srtListener) handle(socket *srtgo.SrtSocket, addr *net.UDPAddr) {
	defer socket.Close()
	l.conns.Add(1)
	defer l.conns.Add(-1)

	idString, err := socket.GetSockOptString(C.SRTO_STREAMID)
	if err != nil {
		nazalog.Errorf("get srt streamid failed. addr=%s, err=%+v", addr, err)
		return
	}
	id, err := parseStreamId(idString)
	if err != nil {
		nazalog.Errorf("invalid srt streamid. addr=%s, err=%+v", addr, err)
		return
	}

	opt := l.opt
	if opt.DumpPid >= 0 {
		opt.DumpFilename = fmt.Sprintf("%s.%s", l.opt.DumpFilename, strings.ReplaceAll(id.Resource, "/", "_"))
	}
	s, err := NewDemuxSession(id.Resource, &l.config.Demuxer, opt)
	if err != nil {
		nazalog.Errorf("new demux session failed. err=%+v", err)
		return
	}
	l.sm.Add(s)
	defer l.sm.Remove(s)

	err = feedFromReader(s, socket, l.config.Input.ReadBufSize)
	if errors.Is(err, srtgo.EConnLost) {
		nazalog.Infof("[%s] srt connection lost. addr=%s", s.UniqueKey(), addr)
	} else if err != nil {
		nazalog.Errorf("[%s] srt read failed. err=%+v", s.UniqueKey(), err)
	}
	if err = s.Close(); err != nil {
		nazalog.Warnf("[%s] flush. err=%+v", s.UniqueKey(), err)
	}
}
