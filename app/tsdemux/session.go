// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/m2ts
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package main

import (
	"encoding/hex"
	"encoding/json"
	"sort"
	"sync"

	"github.com/q191201771/m2ts/pkg/base"
	"github.com/q191201771/m2ts/pkg/mpegts"
	"github.com/q191201771/naza/pkg/nazabytes"
	"github.com/q191201771/naza/pkg/nazalog"
)

// DemuxSession 一路输入对应一个session，持有一个 mpegts.Demuxer
type DemuxSession struct {
	name    string
	demuxer *mpegts.Demuxer
	dump    *base.DumpFile
	dumpPid int // 小于0表示不dump

	mu       sync.Mutex
	pesCount map[uint16]int
}

type SessionOption struct {
	DumpPid      int // 小于0表示不dump
	DumpFilename string
}

func NewDemuxSession(name string, dc *DemuxerConfig, opt SessionOption) (*DemuxSession, error) {
	s := &DemuxSession{
		name:     name,
		dumpPid:  opt.DumpPid,
		pesCount: make(map[uint16]int),
	}
	if opt.DumpPid >= 0 {
		s.dump = base.NewDumpFile()
		if err := s.dump.OpenToWrite(opt.DumpFilename); err != nil {
			return nil, err
		}
	}
	s.demuxer = mpegts.NewDemuxer(s.onEvent, dc.ModOption())
	nazalog.Infof("[%s] lifecycle new demux session. name=%s, dump_pid=%d", s.demuxer.UniqueKey(), name, opt.DumpPid)
	return s, nil
}

// Feed 非线程安全，同一个session只能在一个协程中调用
func (s *DemuxSession) Feed(b []byte) error {
	return s.demuxer.ProcessData(b)
}

// Close 输入结束，吐出缓存中的PES并关闭dump文件
func (s *DemuxSession) Close() error {
	err := s.demuxer.Flush()
	if s.dump != nil {
		_ = s.dump.Close()
	}
	nazalog.Infof("[%s] lifecycle dispose demux session. stats=%s", s.demuxer.UniqueKey(), s.StatsString())
	return err
}

func (s *DemuxSession) Name() string {
	return s.name
}

func (s *DemuxSession) UniqueKey() string {
	return s.demuxer.UniqueKey()
}

func (s *DemuxSession) Stats() mpegts.StatsSnapshot {
	return s.demuxer.Stats().Snapshot()
}

func (s *DemuxSession) StatsString() string {
	b, _ := json.Marshal(s.Stats())
	return string(b)
}

// PesCount 每个PID上收到的 PES_PCK 事件个数
func (s *DemuxSession) PesCount() map[uint16]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := make(map[uint16]int, len(s.pesCount))
	for k, v := range s.pesCount {
		ret[k] = v
	}
	return ret
}

func (s *DemuxSession) onEvent(evt *mpegts.Event) {
	uk := s.demuxer.UniqueKey()
	switch evt.Type {
	case mpegts.EventPatFound, mpegts.EventPatUpdate, mpegts.EventPatRepeat:
		nazalog.Infof("[%s] %s. tsid=%d, version=%d, programs=%+v, network_pid=%d",
			uk, evt.Type, evt.Pat.TransportStreamId, evt.Pat.Version, evt.Pat.Programs, evt.Pat.NetworkPid)
	case mpegts.EventPmtFound, mpegts.EventPmtUpdate, mpegts.EventPmtRepeat:
		p := evt.Program
		nazalog.Infof("[%s] %s. program=%d, pmt_pid=%d, pcr_pid=%d, streams=%d",
			uk, evt.Type, p.Number, p.PmtPid, p.PcrPid, len(p.Streams))
		for _, st := range p.Streams {
			nazalog.Infof("[%s]   pid=%d, stream_type=0x%02x, kind=%s, lang=%s",
				uk, st.Pid, st.StreamType, st.Kind, st.Lang)
		}
	case mpegts.EventPesPck:
		s.mu.Lock()
		s.pesCount[evt.Pid]++
		s.mu.Unlock()
		nazalog.Debugf("[%s] %s. pid=%d, pts=%d, dts=%d, flags=0x%x, len=%d",
			uk, evt.Type, evt.Pid, evt.Pes.Pts, evt.Pes.Dts, evt.Pes.Flags, len(evt.Pes.Data))
		if s.dump != nil && int(evt.Pid) == s.dumpPid {
			if err := s.dump.Write(evt.Pid, uint32(evt.Pes.Dts/90), evt.Pes.Data); err != nil {
				nazalog.Errorf("[%s] write dump file failed. err=%+v", uk, err)
			}
		}
	case mpegts.EventPesPcr:
		nazalog.Debugf("[%s] %s. pid=%d, pcr=%d, discontinuity=%v",
			uk, evt.Type, evt.Pcr.Pid, evt.Pcr.Pcr, evt.Pcr.Discontinuity)
	case mpegts.EventAacCfg:
		nazalog.Infof("[%s] %s. pid=%d, asc=%s, ctx=%+v",
			uk, evt.Type, evt.Pid, hex.EncodeToString(evt.AacConfig.Asc), evt.AacConfig.AscCtx)
	case mpegts.EventSlPck:
		nazalog.Debugf("[%s] %s. pid=%d", uk, evt.Type, evt.Pid)
	case mpegts.EventIpDatagram:
		nazalog.Debugf("[%s] %s. pid=%d, len=%d", uk, evt.Type, evt.Pid, len(evt.Datagram.Data))
	default:
		if evt.Section != nil {
			nazalog.Infof("[%s] %s. pid=%d, table_id=0x%02x, ext=%d, version=%d, section=%d/%d, hex=%s",
				uk, evt.Type, evt.Pid, evt.Section.TableId, evt.Section.ExtId, evt.Section.Version,
				evt.Section.SectionNumber, evt.Section.LastSectionNumber,
				hex.EncodeToString(nazabytes.Prefix(evt.Section.Data, 16)))
		} else {
			nazalog.Infof("[%s] %s. pid=%d", uk, evt.Type, evt.Pid)
		}
	}
}

// ---------------------------------------------------------------------------------------------------------------------

// SessionManager 记录当前存活的session，供统计打印和metrics使用
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*DemuxSession
}

func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*DemuxSession),
	}
}

func (sm *SessionManager) Add(s *DemuxSession) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.sessions[s.UniqueKey()] = s
}

func (sm *SessionManager) Remove(s *DemuxSession) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.sessions, s.UniqueKey())
}

func (sm *SessionManager) Get(uniqueKey string) *DemuxSession {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.sessions[uniqueKey]
}

// Sessions 按UniqueKey排序
func (sm *SessionManager) Sessions() []*DemuxSession {
	sm.mu.Lock()
	ret := make([]*DemuxSession, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		ret = append(ret, s)
	}
	sm.mu.Unlock()
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].UniqueKey() < ret[j].UniqueKey()
	})
	return ret
}

func (sm *SessionManager) LogStats() {
	for _, s := range sm.Sessions() {
		nazalog.Infof("[%s] stats. name=%s, stats=%s", s.UniqueKey(), s.Name(), s.StatsString())
	}
}
